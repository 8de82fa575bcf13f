// Package quality compares per-shipment assay averages against contract
// specification thresholds and computes asymmetric penalty and bonus
// dollar amounts.
package quality

import (
	"sort"

	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/model"
)

// Dollar rates per 0.1 percentage point of deviation.
const (
	fePenaltyPer01       = 500_000
	feBonusPer01         = 300_000
	moisturePenaltyPer01 = 300_000
)

// Build computes the quality deviation view. Shipments without any assay
// reading contribute no record; shipments whose contract cannot be
// resolved carry a nil penalty and count as unmatched joins.
func Build(
	assays []model.QualityAssay,
	shipments []model.ShipmentRevenue,
	contracts []model.Contract,
	counters *model.Counters,
) []model.QualityDeviation {
	type accum struct {
		fe       float64
		moisture float64
		n        int
	}
	byShipment := make(map[string]*accum)
	for _, a := range assays {
		if a.ShipmentID == "" {
			continue
		}
		acc, ok := byShipment[a.ShipmentID]
		if !ok {
			acc = &accum{}
			byShipment[a.ShipmentID] = acc
		}
		acc.fe += a.FePct
		acc.moisture += a.MoisturePct
		acc.n++
	}

	contractByID := make(map[string]model.Contract, len(contracts))
	for _, c := range contracts {
		contractByID[c.ContractID] = c
	}
	contractIDByShipment := make(map[string]string, len(shipments))
	for _, s := range shipments {
		contractIDByShipment[s.ShipmentID] = s.ContractID
	}

	out := make([]model.QualityDeviation, 0, len(byShipment))
	for shipmentID, acc := range byShipment {
		dev := model.QualityDeviation{
			ShipmentID:     shipmentID,
			SampleCount:    acc.n,
			AvgFePct:       acc.fe / float64(acc.n),
			AvgMoisturePct: acc.moisture / float64(acc.n),
		}

		contract, ok := resolveContract(shipmentID, contractIDByShipment, contractByID)
		if !ok {
			counters.UnmatchedJoins++
			zap.L().Debug("quality: no contract for shipment", zap.String("shipment", shipmentID))
			out = append(out, dev)
			continue
		}

		dev.ContractID = contract.ContractID
		dev.FeMinPct = model.Float(contract.FeMinPct)
		dev.MoistureMaxPct = model.Float(contract.MoistureMaxPct)
		dev.PenaltyUSD = model.Float(Penalty(dev.AvgFePct, dev.AvgMoisturePct, contract.FeMinPct, contract.MoistureMaxPct))
		out = append(out, dev)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ShipmentID < out[j].ShipmentID })

	zap.L().Info("quality: deviations computed", zap.Int("rows", len(out)))
	return out
}

// Penalty computes the signed quality dollar amount for a shipment. Fe
// deficit and moisture excess are penalties, Fe surplus is a bonus; the
// three terms are additive and independent, each scaled per 0.1 pct of
// deviation, and zero when no threshold is crossed.
func Penalty(avgFe, avgMoisture, feMin, moistureMax float64) float64 {
	var total float64
	switch {
	case avgFe < feMin:
		total -= fePenaltyPer01 * (feMin - avgFe) / 0.1
	case avgFe > feMin:
		total += feBonusPer01 * (avgFe - feMin) / 0.1
	}
	if avgMoisture > moistureMax {
		total -= moisturePenaltyPer01 * (avgMoisture - moistureMax) / 0.1
	}
	return total
}

func resolveContract(shipmentID string, contractIDByShipment map[string]string, contractByID map[string]model.Contract) (model.Contract, bool) {
	contractID, ok := contractIDByShipment[shipmentID]
	if !ok {
		return model.Contract{}, false
	}
	c, ok := contractByID[contractID]
	return c, ok
}
