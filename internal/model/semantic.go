package model

import "time"

// RecordType tags a SemanticRecord with the view it was projected from.
type RecordType string

const (
	RecordPortInventory   RecordType = "port_inventory"
	RecordVesselCoverage  RecordType = "vessel_coverage"
	RecordAssetRisk       RecordType = "asset_risk"
	RecordPricingPosition RecordType = "pricing_position"
	RecordContractESG     RecordType = "contract_esg"
)

// SemanticRecord is the flattened 12-field schema the query layer reads.
// Each record type populates a different subset of the five metric slots;
// MetricNames documents the slot meaning per type. Consumers filter by
// RecordType to recover the original semantics.
type SemanticRecord struct {
	RecordType RecordType `json:"record_type"`
	KeyID      string     `json:"key_id,omitempty"`
	Date       time.Time  `json:"date"`
	Site       string     `json:"site,omitempty"`
	Product    string     `json:"product_code,omitempty"`
	Customer   string     `json:"customer_name,omitempty"`
	ContractID string     `json:"contract_id,omitempty"`
	Metric1    *float64   `json:"metric_1,omitempty"`
	Metric2    *float64   `json:"metric_2,omitempty"`
	Metric3    *float64   `json:"metric_3,omitempty"`
	Metric4    *float64   `json:"metric_4,omitempty"`
	Metric5    *float64   `json:"metric_5,omitempty"`
}

// MetricNames maps each record type to the meaning of its metric slots,
// in slot order. Slots beyond the listed names are unused for that type.
var MetricNames = map[RecordType][]string{
	RecordPortInventory:   {"tonnes_on_hand", "net_tonnes_delta", "days_on_hand", "inventory_value_usd", "avg_ship_load_14d"},
	RecordVesselCoverage:  {"coverage_ratio", "covered_tonnes", "expected_demurrage_days", "demurrage_exposure_usd", "planned_tonnes"},
	RecordAssetRisk:       {"failure_prob_14d", "expected_downtime_hours", "revenue_at_risk_usd", "tonnes_at_risk", "shipments_at_risk_count"},
	RecordPricingPosition: {"base_case_margin_usd_per_t", "scenario_margin_usd_per_t", "ebitda_impact_usd", "total_volume_t", "base_realized_price_usd_per_t"},
	RecordContractESG:     {"has_carbon_price_reopener", "requires_scope3_reporting", "demurrage_free_days", "demurrage_rate_usd_per_day", "base_margin_target_usd_per_t"},
}
