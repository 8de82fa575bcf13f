// Package export writes the published snapshot to an XLSX workbook,
// one sheet per derived view.
package export

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/mega-minerals/oreflow/internal/model"
)

// Workbook writes every derived view of snap to an XLSX file at path.
func Workbook(path string, snap *model.Snapshot) error {
	f := xlsx.NewFile()

	if err := inventorySheet(f, snap.Inventory); err != nil {
		return err
	}
	if err := coverageSheet(f, snap.Coverage); err != nil {
		return err
	}
	if err := qualitySheet(f, snap.Quality); err != nil {
		return err
	}
	if err := scenarioSheet(f, snap.Scenarios); err != nil {
		return err
	}
	if err := riskSheet(f, snap.RiskScores); err != nil {
		return err
	}
	if err := revenueAtRiskSheet(f, "Revenue At Risk", snap.RevenueAtRisk); err != nil {
		return err
	}
	if err := revenueAtRiskSheet(f, "Top Risks", snap.TopRisks); err != nil {
		return err
	}
	if err := rollupSheet(f, snap.Rollups); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addHeader(sheet *xlsx.Sheet, cols ...string) {
	row := sheet.AddRow()
	for _, col := range cols {
		row.AddCell().SetString(col)
	}
}

func setDay(cell *xlsx.Cell, t time.Time) {
	cell.SetString(t.UTC().Format("2006-01-02"))
}

func setNullable(cell *xlsx.Cell, v *float64) {
	if v == nil {
		cell.SetString("")
		return
	}
	cell.SetFloat(*v)
}

func inventorySheet(f *xlsx.File, snaps []model.PortInventorySnapshot) error {
	sheet, err := f.AddSheet("Port Inventory")
	if err != nil {
		return eris.Wrap(err, "export: add inventory sheet")
	}
	addHeader(sheet, "site", "product_code", "date", "net_tonnes_delta", "tonnes_on_hand",
		"avg_ship_load_14d", "days_on_hand", "index_price", "inventory_value_usd")
	for _, s := range snaps {
		row := sheet.AddRow()
		row.AddCell().SetString(s.Site)
		row.AddCell().SetString(s.Product)
		setDay(row.AddCell(), s.Date)
		row.AddCell().SetFloat(s.NetDelta)
		row.AddCell().SetFloat(s.TonnesOnHand)
		row.AddCell().SetFloat(s.AvgShipLoad14d)
		setNullable(row.AddCell(), s.DaysOnHand)
		setNullable(row.AddCell(), s.IndexPrice)
		setNullable(row.AddCell(), s.InventoryValue)
	}
	return nil
}

func coverageSheet(f *xlsx.File, covs []model.VesselCoverage) error {
	sheet, err := f.AddSheet("Vessel Coverage")
	if err != nil {
		return eris.Wrap(err, "export: add coverage sheet")
	}
	addHeader(sheet, "vessel_id", "vessel_name", "customer_name", "product_code", "site",
		"laycan_start", "laycan_end", "planned_tonnes", "tonnes_on_hand_at_start",
		"tonnes_in_transit", "covered_tonnes", "coverage_ratio", "days_late",
		"expected_demurrage_days", "demurrage_rate", "demurrage_exposure_usd", "contract_id")
	for _, c := range covs {
		row := sheet.AddRow()
		row.AddCell().SetString(c.VesselID)
		row.AddCell().SetString(c.VesselName)
		row.AddCell().SetString(c.Customer)
		row.AddCell().SetString(c.Product)
		row.AddCell().SetString(c.Site)
		setDay(row.AddCell(), c.LaycanStart)
		setDay(row.AddCell(), c.LaycanEnd)
		row.AddCell().SetFloat(c.PlannedTonnes)
		row.AddCell().SetFloat(c.TonnesOnHandAtStart)
		row.AddCell().SetFloat(c.TonnesInTransit)
		row.AddCell().SetFloat(c.CoveredTonnes)
		setNullable(row.AddCell(), c.CoverageRatio)
		row.AddCell().SetFloat(c.DaysLate)
		row.AddCell().SetFloat(c.ExpectedDemurrageDays)
		row.AddCell().SetFloat(c.DemurrageRate)
		row.AddCell().SetFloat(c.DemurrageExposureUSD)
		row.AddCell().SetString(c.ContractID)
	}
	return nil
}

func qualitySheet(f *xlsx.File, devs []model.QualityDeviation) error {
	sheet, err := f.AddSheet("Quality Deviation")
	if err != nil {
		return eris.Wrap(err, "export: add quality sheet")
	}
	addHeader(sheet, "shipment_id", "contract_id", "sample_count", "avg_fe_pct",
		"avg_moisture_pct", "fe_min_pct", "moisture_max_pct", "quality_penalty_usd")
	for _, q := range devs {
		row := sheet.AddRow()
		row.AddCell().SetString(q.ShipmentID)
		row.AddCell().SetString(q.ContractID)
		row.AddCell().SetInt(q.SampleCount)
		row.AddCell().SetFloat(q.AvgFePct)
		row.AddCell().SetFloat(q.AvgMoisturePct)
		setNullable(row.AddCell(), q.FeMinPct)
		setNullable(row.AddCell(), q.MoistureMaxPct)
		setNullable(row.AddCell(), q.PenaltyUSD)
	}
	return nil
}

func scenarioSheet(f *xlsx.File, scenarios []model.ContractFinancialScenario) error {
	sheet, err := f.AddSheet("Pricing Scenarios")
	if err != nil {
		return eris.Wrap(err, "export: add scenarios sheet")
	}
	addHeader(sheet, "position_id", "contract_id", "customer_name", "product_code",
		"quarter", "price_type", "total_volume_t", "base_realized_price",
		"unit_cash_cost", "fx_rate_quarter_avg", "base_case_margin",
		"scenario_margin", "ebitda_impact_usd")
	for _, sc := range scenarios {
		row := sheet.AddRow()
		row.AddCell().SetString(sc.PositionID)
		row.AddCell().SetString(sc.ContractID)
		row.AddCell().SetString(sc.Customer)
		row.AddCell().SetString(sc.Product)
		row.AddCell().SetString(sc.Quarter)
		row.AddCell().SetString(sc.PriceType)
		row.AddCell().SetFloat(sc.TotalVolume)
		setNullable(row.AddCell(), sc.BaseRealizedPrice)
		setNullable(row.AddCell(), sc.UnitCashCost)
		setNullable(row.AddCell(), sc.FxRateQuarterAvg)
		setNullable(row.AddCell(), sc.BaseCaseMargin)
		setNullable(row.AddCell(), sc.ScenarioMargin)
		setNullable(row.AddCell(), sc.EBITDAImpactUSD)
	}
	return nil
}

func riskSheet(f *xlsx.File, scores []model.AssetRiskScore) error {
	sheet, err := f.AddSheet("Asset Risk")
	if err != nil {
		return eris.Wrap(err, "export: add risk sheet")
	}
	addHeader(sheet, "asset_id", "asset_type", "site", "evaluation_date",
		"utilization_pct", "vibration_index", "failure_prob_14d",
		"downtime_hours_if_fail", "expected_downtime_hours")
	for _, r := range scores {
		row := sheet.AddRow()
		row.AddCell().SetString(r.AssetID)
		row.AddCell().SetString(r.AssetType)
		row.AddCell().SetString(r.Site)
		setDay(row.AddCell(), r.EvaluationDate)
		row.AddCell().SetFloat(r.UtilizationPct)
		row.AddCell().SetFloat(r.VibrationIndex)
		row.AddCell().SetFloat(r.FailureProb14d)
		row.AddCell().SetFloat(r.DowntimeHoursIfFail)
		row.AddCell().SetFloat(r.ExpectedDowntime)
	}
	return nil
}

func revenueAtRiskSheet(f *xlsx.File, name string, risks []model.RevenueAtRisk) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add %s sheet", name)
	}
	addHeader(sheet, "asset_id", "asset_type", "site", "evaluation_date",
		"failure_prob_14d", "expected_downtime_hours", "shipments_at_risk_count",
		"tonnes_at_risk", "revenue_at_risk_usd")
	for _, r := range risks {
		row := sheet.AddRow()
		row.AddCell().SetString(r.AssetID)
		row.AddCell().SetString(r.AssetType)
		row.AddCell().SetString(r.Site)
		setDay(row.AddCell(), r.EvaluationDate)
		row.AddCell().SetFloat(r.FailureProb14d)
		row.AddCell().SetFloat(r.ExpectedDowntime)
		row.AddCell().SetInt(r.ShipmentsAtRisk)
		row.AddCell().SetFloat(r.TonnesAtRisk)
		row.AddCell().SetFloat(r.RevenueAtRiskUSD)
	}
	return nil
}

func rollupSheet(f *xlsx.File, rollups []model.MonthlyRollup) error {
	sheet, err := f.AddSheet("Monthly Rollups")
	if err != nil {
		return eris.Wrap(err, "export: add rollups sheet")
	}
	addHeader(sheet, "month", "product_code", "total_demurrage_usd",
		"avg_tonnes_on_hand", "vessel_loaded_tonnes", "vessel_count")
	for _, r := range rollups {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Month)
		row.AddCell().SetString(r.Product)
		row.AddCell().SetFloat(r.TotalDemurrageUSD)
		row.AddCell().SetFloat(r.AvgTonnesOnHand)
		row.AddCell().SetFloat(r.VesselLoadedTonnes)
		row.AddCell().SetInt(r.VesselCount)
	}
	return nil
}
