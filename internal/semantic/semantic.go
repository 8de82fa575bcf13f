// Package semantic projects every derived view into the common tagged
// record schema the ad-hoc query layer reads. Pure schema flattening,
// no new computation.
package semantic

import (
	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/model"
)

// FromInventory projects one inventory snapshot.
func FromInventory(s model.PortInventorySnapshot) model.SemanticRecord {
	return model.SemanticRecord{
		RecordType: model.RecordPortInventory,
		Date:       s.Date,
		Site:       s.Site,
		Product:    s.Product,
		Metric1:    model.Float(s.TonnesOnHand),
		Metric2:    model.Float(s.NetDelta),
		Metric3:    s.DaysOnHand,
		Metric4:    s.InventoryValue,
		Metric5:    model.Float(s.AvgShipLoad14d),
	}
}

// FromCoverage projects one vessel coverage row, keyed by vessel ID.
func FromCoverage(c model.VesselCoverage) model.SemanticRecord {
	return model.SemanticRecord{
		RecordType: model.RecordVesselCoverage,
		KeyID:      c.VesselID,
		Date:       c.LaycanStart,
		Site:       c.Site,
		Product:    c.Product,
		Customer:   c.Customer,
		ContractID: c.ContractID,
		Metric1:    c.CoverageRatio,
		Metric2:    model.Float(c.CoveredTonnes),
		Metric3:    model.Float(c.ExpectedDemurrageDays),
		Metric4:    model.Float(c.DemurrageExposureUSD),
		Metric5:    model.Float(c.PlannedTonnes),
	}
}

// FromRisk projects one revenue-at-risk row, keyed by asset ID.
func FromRisk(r model.RevenueAtRisk) model.SemanticRecord {
	return model.SemanticRecord{
		RecordType: model.RecordAssetRisk,
		KeyID:      r.AssetID,
		Date:       r.EvaluationDate,
		Site:       r.Site,
		Metric1:    model.Float(r.FailureProb14d),
		Metric2:    model.Float(r.ExpectedDowntime),
		Metric3:    model.Float(r.RevenueAtRiskUSD),
		Metric4:    model.Float(r.TonnesAtRisk),
		Metric5:    model.Float(float64(r.ShipmentsAtRisk)),
	}
}

// FromScenario projects one pricing scenario, keyed by position ID and
// dated at publication rather than by quarter; the quarter stays in the
// underlying view.
func FromScenario(s model.ContractFinancialScenario) model.SemanticRecord {
	return model.SemanticRecord{
		RecordType: model.RecordPricingPosition,
		KeyID:      s.PositionID,
		Product:    s.Product,
		Customer:   s.Customer,
		ContractID: s.ContractID,
		Metric1:    s.BaseCaseMargin,
		Metric2:    s.ScenarioMargin,
		Metric3:    s.EBITDAImpactUSD,
		Metric4:    model.Float(s.TotalVolume),
		Metric5:    s.BaseRealizedPrice,
	}
}

// FromContractESG projects a contract's ESG and commercial terms.
// Boolean flags flatten to 0/1 in the metric slots.
func FromContractESG(c model.Contract) model.SemanticRecord {
	return model.SemanticRecord{
		RecordType: model.RecordContractESG,
		KeyID:      c.ContractID,
		Date:       c.StartDate,
		Product:    c.Product,
		Customer:   c.Customer,
		ContractID: c.ContractID,
		Metric1:    model.Float(boolMetric(c.CarbonReopener)),
		Metric2:    model.Float(boolMetric(c.Scope3Required)),
		Metric3:    model.Float(float64(c.DemurrageFreeDays)),
		Metric4:    model.Float(c.DemurrageRate),
		Metric5:    model.Float(c.BaseMarginTarget),
	}
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Build flattens all derived views plus contract ESG terms into the
// unified record set, in a deterministic order: inventory, coverage,
// asset risk, pricing positions, contract ESG.
func Build(
	inventory []model.PortInventorySnapshot,
	coverage []model.VesselCoverage,
	risks []model.RevenueAtRisk,
	scenarios []model.ContractFinancialScenario,
	contracts []model.Contract,
) []model.SemanticRecord {
	out := make([]model.SemanticRecord, 0,
		len(inventory)+len(coverage)+len(risks)+len(scenarios)+len(contracts))
	for _, s := range inventory {
		out = append(out, FromInventory(s))
	}
	for _, c := range coverage {
		out = append(out, FromCoverage(c))
	}
	for _, r := range risks {
		out = append(out, FromRisk(r))
	}
	for _, s := range scenarios {
		out = append(out, FromScenario(s))
	}
	for _, c := range contracts {
		out = append(out, FromContractESG(c))
	}

	zap.L().Info("semantic: records unified", zap.Int("rows", len(out)))
	return out
}
