package model

import "time"

// Derived views are fully recomputed each run. Nullable metrics are
// pointers: nil means the value is undefined for that row (missing price,
// zero denominator), never zero.

// PortInventorySnapshot is one (site, product, day) inventory position.
type PortInventorySnapshot struct {
	Site           string    `json:"site"`
	Product        string    `json:"product_code"`
	Date           time.Time `json:"date"`
	NetDelta       float64   `json:"net_tonnes_delta"`
	TonnesOnHand   float64   `json:"tonnes_on_hand"`
	AvgShipLoad14d float64   `json:"avg_ship_load_14d"`
	DaysOnHand     *float64  `json:"days_on_hand,omitempty"`
	IndexPrice     *float64  `json:"index_price,omitempty"`
	InventoryValue *float64  `json:"inventory_value_usd,omitempty"`
}

// VesselCoverage is the supply position of one vessel call against its
// laycan window. Contract fields are empty when no contract matched.
type VesselCoverage struct {
	VesselID              string    `json:"vessel_id"`
	VesselName            string    `json:"vessel_name"`
	Customer              string    `json:"customer_name"`
	Product               string    `json:"product_code"`
	Site                  string    `json:"site"`
	LaycanStart           time.Time `json:"laycan_start_date"`
	LaycanEnd             time.Time `json:"laycan_end_date"`
	PlannedTonnes         float64   `json:"planned_tonnes"`
	TonnesOnHandAtStart   float64   `json:"tonnes_on_hand_at_start"`
	TonnesInTransit       float64   `json:"tonnes_in_transit"`
	CoveredTonnes         float64   `json:"covered_tonnes"`
	CoverageRatio         *float64  `json:"coverage_ratio,omitempty"`
	DaysLate              float64   `json:"days_late"`
	ExpectedDemurrageDays float64   `json:"expected_demurrage_days"`
	DemurrageRate         float64   `json:"effective_demurrage_rate_usd_per_day"`
	DemurrageExposureUSD  float64   `json:"demurrage_exposure_usd"`
	ContractID            string    `json:"contract_id,omitempty"`
	ContractAmbiguous     bool      `json:"contract_ambiguous,omitempty"`
}

// QualityDeviation compares a shipment's assay averages against its
// contract specification. PenaltyUSD is nil when no contract matched.
type QualityDeviation struct {
	ShipmentID     string   `json:"shipment_id"`
	ContractID     string   `json:"contract_id,omitempty"`
	SampleCount    int      `json:"sample_count"`
	AvgFePct       float64  `json:"avg_fe_pct"`
	AvgMoisturePct float64  `json:"avg_moisture_pct"`
	FeMinPct       *float64 `json:"fe_min_pct,omitempty"`
	MoistureMaxPct *float64 `json:"moisture_max_pct,omitempty"`
	PenaltyUSD     *float64 `json:"quality_penalty_usd,omitempty"`
}

// Price types for contract positions.
const (
	PriceTypeFixed       = "fixed"
	PriceTypeIndexLinked = "index_linked"
)

// ContractFinancialScenario is the base and stressed margin view of one
// quarterly contract position.
type ContractFinancialScenario struct {
	PositionID        string   `json:"position_id"`
	ContractID        string   `json:"contract_id"`
	Customer          string   `json:"customer_name"`
	Product           string   `json:"product_code"`
	Quarter           string   `json:"quarter"`
	PriceType         string   `json:"price_type"`
	TotalVolume       float64  `json:"total_volume_t"`
	BaseRealizedPrice *float64 `json:"base_realized_price_usd_per_t,omitempty"`
	UnitCashCost      *float64 `json:"unit_cash_cost_usd_per_t,omitempty"`
	FxRateQuarterAvg  *float64 `json:"fx_rate_quarter_avg,omitempty"`
	BaseCaseMargin    *float64 `json:"base_case_margin_usd_per_t,omitempty"`
	ScenarioMargin    *float64 `json:"scenario_margin_usd_per_t,omitempty"`
	EBITDAImpactUSD   *float64 `json:"ebitda_impact_usd,omitempty"`
	CostCurveAmbiguous bool    `json:"cost_curve_ambiguous,omitempty"`
}

// AssetRiskScore is a 14-day forward failure estimate for one asset/day.
type AssetRiskScore struct {
	AssetID             string    `json:"asset_id"`
	AssetType           string    `json:"asset_type"`
	Site                string    `json:"site"`
	EvaluationDate      time.Time `json:"evaluation_date"`
	UtilizationPct      float64   `json:"utilization_pct"`
	VibrationIndex      float64   `json:"vibration_index"`
	FailureProb14d      float64   `json:"failure_prob_14d"`
	DowntimeHoursIfFail float64   `json:"downtime_hours_if_fail"`
	ExpectedDowntime    float64   `json:"expected_downtime_hours"`
}

// RevenueAtRisk propagates an asset's failure probability onto shipments
// planned to load within the forward window.
type RevenueAtRisk struct {
	AssetID             string    `json:"asset_id"`
	AssetType           string    `json:"asset_type"`
	Site                string    `json:"site"`
	EvaluationDate      time.Time `json:"evaluation_date"`
	FailureProb14d      float64   `json:"failure_prob_14d"`
	ExpectedDowntime    float64   `json:"expected_downtime_hours"`
	ShipmentsAtRisk     int       `json:"shipments_at_risk_count"`
	TonnesAtRisk        float64   `json:"tonnes_at_risk"`
	RevenueAtRiskUSD    float64   `json:"revenue_at_risk_usd"`
}

// MonthlyRollup aggregates demurrage, inventory, and water tonnage by
// month and product for trend reporting. Month is formatted YYYY-MM.
type MonthlyRollup struct {
	Month                string  `json:"month"`
	Product              string  `json:"product_code"`
	TotalDemurrageUSD    float64 `json:"total_demurrage_usd"`
	AvgTonnesOnHand      float64 `json:"avg_tonnes_on_hand"`
	VesselLoadedTonnes   float64 `json:"vessel_loaded_tonnes"`
	VesselCount          int     `json:"vessel_count"`
}

// Counters are the data-quality tallies surfaced by a run. Local
// anomalies are absorbed here; only total inability to compute a view is
// fatal.
type Counters struct {
	Malformed      map[string]int `json:"malformed,omitempty"`
	UnmatchedJoins int            `json:"unmatched_joins"`
	AmbiguousJoins int            `json:"ambiguous_joins"`
}

// AddMalformed records n dropped records for a fact stream.
func (c *Counters) AddMalformed(stream string, n int) {
	if n == 0 {
		return
	}
	if c.Malformed == nil {
		c.Malformed = make(map[string]int)
	}
	c.Malformed[stream] += n
}

// Merge folds other into c.
func (c *Counters) Merge(other Counters) {
	for stream, n := range other.Malformed {
		c.AddMalformed(stream, n)
	}
	c.UnmatchedJoins += other.UnmatchedJoins
	c.AmbiguousJoins += other.AmbiguousJoins
}

// Snapshot is the complete, consistent output of one pipeline run. It is
// published atomically: either all views land or none do.
type Snapshot struct {
	Inventory  []PortInventorySnapshot     `json:"inventory"`
	Coverage   []VesselCoverage            `json:"coverage"`
	Quality    []QualityDeviation          `json:"quality"`
	Scenarios  []ContractFinancialScenario `json:"scenarios"`
	RiskScores []AssetRiskScore            `json:"risk_scores"`
	RevenueAtRisk []RevenueAtRisk          `json:"revenue_at_risk"`
	TopRisks   []RevenueAtRisk             `json:"top_risks"`
	Semantic   []SemanticRecord            `json:"semantic"`
	Rollups    []MonthlyRollup             `json:"rollups"`
	Counters   Counters                    `json:"counters"`
}

// Float returns a pointer to v. Convenience for nullable metrics.
func Float(v float64) *float64 { return &v }
