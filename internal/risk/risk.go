// Package risk converts per-asset telemetry into 14-day failure
// probabilities and downtime estimates, then propagates them onto
// shipments scheduled within the forward window to produce
// revenue-at-risk and a top-N ranking.
package risk

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/model"
)

// Failure probability heuristic: linear score of anomalous utilization
// and vibration relative to baseline, clamped to [0,1].
const (
	probBase        = 0.02
	utilCoeff       = 0.004
	utilBaseline    = 75
	vibrationCoeff  = 0.03
	vibrationNormal = 5
)

// forwardWindowDays bounds both the shipment exposure window and the
// ranking lookback.
const forwardWindowDays = 14

// rankTopN is the number of assets kept per evaluation date in the
// ranking view.
const rankTopN = 10

// Asset types exposed to port-side failure propagation.
const (
	AssetShipLoader       = "ship_loader"
	AssetConveyor         = "conveyor"
	AssetStackerReclaimer = "stacker_reclaimer"
)

// Asset identifies a physical asset's type and site. The registry is
// derived from maintenance logs, which carry both per work order.
type Asset struct {
	ID   string
	Type string
	Site string
}

// Registry builds the asset id -> (type, site) map from maintenance
// logs. Conflicting rows resolve to the most recent work order start.
func Registry(logs []model.MaintenanceLog) map[string]Asset {
	latest := make(map[string]time.Time)
	assets := make(map[string]Asset)
	for _, l := range logs {
		if seen, ok := latest[l.AssetID]; ok && !l.StartTime.After(seen) {
			continue
		}
		latest[l.AssetID] = l.StartTime
		assets[l.AssetID] = Asset{ID: l.AssetID, Type: l.AssetType, Site: l.Site}
	}
	return assets
}

// FailureProb computes the 14-day failure probability for one telemetry
// reading, clamped to [0,1].
func FailureProb(utilization, vibration float64) float64 {
	p := probBase + utilCoeff*(utilization-utilBaseline) + vibrationCoeff*(vibration-vibrationNormal)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// DowntimeIfFail estimates outage hours by asset type, adjusted by
// vibration above baseline and floored at zero.
func DowntimeIfFail(assetType string, vibration float64) float64 {
	var base, coeff float64
	switch assetType {
	case AssetShipLoader:
		base, coeff = 36, 2.0
	case AssetConveyor:
		base, coeff = 30, 1.5
	default:
		base, coeff = 24, 1.0
	}
	h := base + coeff*(vibration-vibrationNormal)
	if h < 0 {
		return 0
	}
	return h
}

// Scores computes one AssetRiskScore per telemetry reading. Assets absent
// from the registry score with the default downtime profile and empty
// site, and count as unmatched joins.
func Scores(telemetry []model.AssetTelemetry, assets map[string]Asset, counters *model.Counters) []model.AssetRiskScore {
	out := make([]model.AssetRiskScore, 0, len(telemetry))
	for _, t := range telemetry {
		asset, ok := assets[t.AssetID]
		if !ok {
			counters.UnmatchedJoins++
			zap.L().Debug("risk: asset not in registry", zap.String("asset", t.AssetID))
			asset = Asset{ID: t.AssetID}
		}

		prob := FailureProb(t.UtilizationPct, t.VibrationIndex)
		downtime := DowntimeIfFail(asset.Type, t.VibrationIndex)

		out = append(out, model.AssetRiskScore{
			AssetID:             t.AssetID,
			AssetType:           asset.Type,
			Site:                asset.Site,
			EvaluationDate:      model.Day(t.Date),
			UtilizationPct:      t.UtilizationPct,
			VibrationIndex:      t.VibrationIndex,
			FailureProb14d:      prob,
			DowntimeHoursIfFail: downtime,
			ExpectedDowntime:    downtime * prob,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetID != out[j].AssetID {
			return out[i].AssetID < out[j].AssetID
		}
		return out[i].EvaluationDate.Before(out[j].EvaluationDate)
	})

	zap.L().Info("risk: scores computed", zap.Int("rows", len(out)))
	return out
}

// RevenueAtRisk propagates each port-side asset score onto shipments at
// the asset's site whose planned load date falls within the forward
// window. Revenue is weighted by failure probability; tonnes and counts
// are raw exposure.
func RevenueAtRisk(
	scores []model.AssetRiskScore,
	shipments []model.ShipmentRevenue,
	vessels []model.VesselSchedule,
	counters *model.Counters,
) []model.RevenueAtRisk {
	siteByVessel := make(map[string]string, len(vessels))
	for _, v := range vessels {
		siteByVessel[v.VesselID] = v.Site
	}

	type exposure struct {
		shipment model.ShipmentRevenue
		site     string
	}
	exposures := make([]exposure, 0, len(shipments))
	for _, s := range shipments {
		site, ok := siteByVessel[s.VesselID]
		if !ok {
			counters.UnmatchedJoins++
			zap.L().Debug("risk: shipment vessel unknown", zap.String("shipment", s.ShipmentID))
			continue
		}
		exposures = append(exposures, exposure{shipment: s, site: site})
	}

	out := make([]model.RevenueAtRisk, 0, len(scores))
	for _, score := range scores {
		if !propagates(score.AssetType) {
			continue
		}
		windowEnd := score.EvaluationDate.AddDate(0, 0, forwardWindowDays)

		rar := model.RevenueAtRisk{
			AssetID:          score.AssetID,
			AssetType:        score.AssetType,
			Site:             score.Site,
			EvaluationDate:   score.EvaluationDate,
			FailureProb14d:   score.FailureProb14d,
			ExpectedDowntime: score.ExpectedDowntime,
		}

		var revenue float64
		for _, e := range exposures {
			if e.site != score.Site {
				continue
			}
			d := e.shipment.PlannedLoadDate
			if d.Before(score.EvaluationDate) || d.After(windowEnd) {
				continue
			}
			rar.ShipmentsAtRisk++
			rar.TonnesAtRisk += e.shipment.PlannedTonnes
			revenue += e.shipment.RealizedRevenue
		}
		rar.RevenueAtRiskUSD = revenue * score.FailureProb14d

		out = append(out, rar)
	}

	zap.L().Info("risk: revenue at risk computed", zap.Int("rows", len(out)))
	return out
}

func propagates(assetType string) bool {
	switch assetType {
	case AssetShipLoader, AssetConveyor, AssetStackerReclaimer:
		return true
	}
	return false
}

// TopRanking selects, for the most recent 14-day window of evaluation
// dates, the top N assets by revenue at risk per evaluation date. Ties
// break lexicographically on asset ID so re-runs are byte identical.
func TopRanking(rars []model.RevenueAtRisk, n int) []model.RevenueAtRisk {
	if n <= 0 {
		n = rankTopN
	}
	if len(rars) == 0 {
		return nil
	}

	var latest time.Time
	for _, r := range rars {
		if r.EvaluationDate.After(latest) {
			latest = r.EvaluationDate
		}
	}
	cutoff := latest.AddDate(0, 0, -(forwardWindowDays - 1))

	byDate := make(map[time.Time][]model.RevenueAtRisk)
	for _, r := range rars {
		if r.EvaluationDate.Before(cutoff) {
			continue
		}
		byDate[r.EvaluationDate] = append(byDate[r.EvaluationDate], r)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var out []model.RevenueAtRisk
	for _, d := range dates {
		day := byDate[d]
		sort.Slice(day, func(i, j int) bool {
			if day[i].RevenueAtRiskUSD != day[j].RevenueAtRiskUSD {
				return day[i].RevenueAtRiskUSD > day[j].RevenueAtRiskUSD
			}
			return day[i].AssetID < day[j].AssetID
		})
		if len(day) > n {
			day = day[:n]
		}
		out = append(out, day...)
	}
	return out
}
