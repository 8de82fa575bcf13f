package store

import (
	"github.com/mega-minerals/oreflow/internal/model"
)

// Row builders shared by the SQLite and Postgres backends. Nullable
// metrics pass through as *float64; nil becomes SQL NULL.

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func inventoryRows(snaps []model.PortInventorySnapshot) [][]any {
	out := make([][]any, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, []any{
			s.Site, s.Product, fmtDay(s.Date),
			s.NetDelta, s.TonnesOnHand, s.AvgShipLoad14d,
			s.DaysOnHand, s.IndexPrice, s.InventoryValue,
		})
	}
	return out
}

func coverageRows(covs []model.VesselCoverage) [][]any {
	out := make([][]any, 0, len(covs))
	for _, c := range covs {
		out = append(out, []any{
			c.VesselID, c.VesselName, c.Customer, c.Product, c.Site,
			fmtDay(c.LaycanStart), fmtDay(c.LaycanEnd),
			c.PlannedTonnes, c.TonnesOnHandAtStart, c.TonnesInTransit, c.CoveredTonnes,
			c.CoverageRatio, c.DaysLate, c.ExpectedDemurrageDays,
			c.DemurrageRate, c.DemurrageExposureUSD,
			nullIfEmpty(c.ContractID), boolInt(c.ContractAmbiguous),
		})
	}
	return out
}

func qualityRows(devs []model.QualityDeviation) [][]any {
	out := make([][]any, 0, len(devs))
	for _, q := range devs {
		out = append(out, []any{
			q.ShipmentID, nullIfEmpty(q.ContractID), q.SampleCount,
			q.AvgFePct, q.AvgMoisturePct,
			q.FeMinPct, q.MoistureMaxPct, q.PenaltyUSD,
		})
	}
	return out
}

func scenarioRows(scenarios []model.ContractFinancialScenario) [][]any {
	out := make([][]any, 0, len(scenarios))
	for _, sc := range scenarios {
		out = append(out, []any{
			sc.PositionID, sc.ContractID, nullIfEmpty(sc.Customer),
			sc.Product, sc.Quarter, sc.PriceType, sc.TotalVolume,
			sc.BaseRealizedPrice, sc.UnitCashCost, sc.FxRateQuarterAvg,
			sc.BaseCaseMargin, sc.ScenarioMargin, sc.EBITDAImpactUSD,
			boolInt(sc.CostCurveAmbiguous),
		})
	}
	return out
}

func riskScoreRows(scores []model.AssetRiskScore) [][]any {
	out := make([][]any, 0, len(scores))
	for _, r := range scores {
		out = append(out, []any{
			r.AssetID, nullIfEmpty(r.AssetType), nullIfEmpty(r.Site),
			fmtDay(r.EvaluationDate),
			r.UtilizationPct, r.VibrationIndex, r.FailureProb14d,
			r.DowntimeHoursIfFail, r.ExpectedDowntime,
		})
	}
	return out
}

func revenueAtRiskRows(risks []model.RevenueAtRisk) [][]any {
	out := make([][]any, 0, len(risks))
	for _, r := range risks {
		out = append(out, []any{
			r.AssetID, nullIfEmpty(r.AssetType), nullIfEmpty(r.Site),
			fmtDay(r.EvaluationDate),
			r.FailureProb14d, r.ExpectedDowntime,
			r.ShipmentsAtRisk, r.TonnesAtRisk, r.RevenueAtRiskUSD,
		})
	}
	return out
}

func semanticRows(records []model.SemanticRecord) [][]any {
	out := make([][]any, 0, len(records))
	for _, rec := range records {
		var date any
		if !rec.Date.IsZero() {
			date = fmtDay(rec.Date)
		}
		out = append(out, []any{
			string(rec.RecordType), nullIfEmpty(rec.KeyID), date,
			nullIfEmpty(rec.Site), nullIfEmpty(rec.Product),
			nullIfEmpty(rec.Customer), nullIfEmpty(rec.ContractID),
			rec.Metric1, rec.Metric2, rec.Metric3, rec.Metric4, rec.Metric5,
		})
	}
	return out
}

func rollupRows(rollups []model.MonthlyRollup) [][]any {
	out := make([][]any, 0, len(rollups))
	for _, r := range rollups {
		out = append(out, []any{
			r.Month, r.Product, r.TotalDemurrageUSD,
			r.AvgTonnesOnHand, r.VesselLoadedTonnes, r.VesselCount,
		})
	}
	return out
}
