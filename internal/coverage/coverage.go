// Package coverage matches vessel laycan windows against point-in-time
// port inventory and windowed rail arrivals to compute coverage ratios
// and demurrage exposure.
package coverage

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/model"
)

const (
	// coverageThreshold is the ratio below which the flat congestion
	// penalty applies.
	coverageThreshold = 0.95
	// flatPenaltyDays is added to expected demurrage days when coverage
	// falls below the threshold.
	flatPenaltyDays = 1.5
)

// Build computes the vessel coverage view. Counters receives unmatched
// and ambiguous contract join tallies.
func Build(
	vessels []model.VesselSchedule,
	snapshots []model.PortInventorySnapshot,
	rails []model.RailMovement,
	contracts []model.Contract,
	counters *model.Counters,
) []model.VesselCoverage {
	inv := newInventoryIndex(snapshots)

	out := make([]model.VesselCoverage, 0, len(vessels))
	for _, v := range vessels {
		out = append(out, buildOne(v, inv, rails, contracts, counters))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].VesselID < out[j].VesselID })

	zap.L().Info("coverage: vessels evaluated", zap.Int("rows", len(out)))
	return out
}

func buildOne(
	v model.VesselSchedule,
	inv *inventoryIndex,
	rails []model.RailMovement,
	contracts []model.Contract,
	counters *model.Counters,
) model.VesselCoverage {
	cov := model.VesselCoverage{
		VesselID:      v.VesselID,
		VesselName:    v.VesselName,
		Customer:      v.Customer,
		Product:       v.Product,
		Site:          v.Site,
		LaycanStart:   v.LaycanStart,
		LaycanEnd:     v.LaycanEnd,
		PlannedTonnes: v.PlannedTonnes,
	}

	cov.TonnesOnHandAtStart = inv.onHandAt(v.Site, v.Product, v.LaycanStart)
	cov.TonnesInTransit = transitTonnes(rails, v)

	available := cov.TonnesOnHandAtStart + cov.TonnesInTransit
	cov.CoveredTonnes = available
	if v.PlannedTonnes < available {
		cov.CoveredTonnes = v.PlannedTonnes
	}

	if v.PlannedTonnes > 0 {
		ratio := cov.CoveredTonnes / v.PlannedTonnes
		if ratio < 0 {
			ratio = 0
		}
		if ratio > 1 {
			ratio = 1
		}
		cov.CoverageRatio = model.Float(ratio)
	}

	cov.DaysLate = model.Day(v.ActualArrival).Sub(v.LaycanEnd).Hours() / 24

	days := cov.DaysLate
	if days < 0 {
		days = 0
	}
	if cov.CoverageRatio != nil && *cov.CoverageRatio < coverageThreshold {
		days += flatPenaltyDays
	}
	cov.ExpectedDemurrageDays = days

	contract, ambiguous := matchContract(contracts, v)
	if contract != nil {
		cov.ContractID = contract.ContractID
		cov.ContractAmbiguous = ambiguous
		if ambiguous {
			counters.AmbiguousJoins++
			zap.L().Warn("coverage: ambiguous contract match",
				zap.String("vessel", v.VesselID),
				zap.String("contract", contract.ContractID),
			)
		}
	} else {
		counters.UnmatchedJoins++
	}

	cov.DemurrageRate = effectiveRate(contract, v)
	cov.DemurrageExposureUSD = cov.ExpectedDemurrageDays * cov.DemurrageRate

	return cov
}

// effectiveRate prefers the matched contract's demurrage rate, falling
// back to the vessel's own rate.
func effectiveRate(contract *model.Contract, v model.VesselSchedule) float64 {
	if contract != nil && contract.DemurrageRate > 0 {
		return contract.DemurrageRate
	}
	return v.DemurrageRate
}

// transitTonnes sums rail arrivals bound for the vessel's site and
// product whose arrival date falls inside the laycan window.
func transitTonnes(rails []model.RailMovement, v model.VesselSchedule) float64 {
	var sum float64
	for _, r := range rails {
		if r.PortSite != v.Site || r.Product != v.Product {
			continue
		}
		arr := model.Day(r.ArrivalTime)
		if arr.Before(v.LaycanStart) || arr.After(v.LaycanEnd) {
			continue
		}
		sum += r.Tonnes
	}
	return sum
}

// matchContract finds the contract covering a vessel: customer and
// product match, laycan start inside the contract term. Multiple
// qualifying contracts tie-break deterministically on earliest start
// date, then contract ID; the second return reports ambiguity.
func matchContract(contracts []model.Contract, v model.VesselSchedule) (*model.Contract, bool) {
	var candidates []model.Contract
	for _, c := range contracts {
		if c.Customer != v.Customer || c.Product != v.Product {
			continue
		}
		if v.LaycanStart.Before(c.StartDate) || v.LaycanStart.After(c.EndDate) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].StartDate.Equal(candidates[j].StartDate) {
			return candidates[i].StartDate.Before(candidates[j].StartDate)
		}
		return candidates[i].ContractID < candidates[j].ContractID
	})
	return &candidates[0], len(candidates) > 1
}

// inventoryIndex answers as-of lookups: the cumulative tonnes on hand
// from the most recent snapshot on or before a date.
type inventoryIndex struct {
	byPartition map[[2]string][]model.PortInventorySnapshot
}

func newInventoryIndex(snapshots []model.PortInventorySnapshot) *inventoryIndex {
	idx := &inventoryIndex{byPartition: make(map[[2]string][]model.PortInventorySnapshot)}
	for _, s := range snapshots {
		key := [2]string{s.Site, s.Product}
		idx.byPartition[key] = append(idx.byPartition[key], s)
	}
	for key := range idx.byPartition {
		rows := idx.byPartition[key]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
		idx.byPartition[key] = rows
	}
	return idx
}

func (idx *inventoryIndex) onHandAt(site, product string, d time.Time) float64 {
	rows := idx.byPartition[[2]string{site, product}]
	i := sort.Search(len(rows), func(i int) bool { return rows[i].Date.After(d) })
	if i == 0 {
		return 0
	}
	return rows[i-1].TonnesOnHand
}
