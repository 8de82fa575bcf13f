// Package store persists raw facts, run bookkeeping, and the published
// derived-view snapshot. Facts are append-only; the snapshot is replaced
// atomically per run so readers never see cross-view inconsistency.
package store

import (
	"context"
	"sort"

	"github.com/mega-minerals/oreflow/internal/model"
	"github.com/mega-minerals/oreflow/internal/normalize"
)

// SemanticFilter narrows semantic record queries for the query layer.
type SemanticFilter struct {
	RecordType string `json:"record_type,omitempty"`
	Site       string `json:"site,omitempty"`
	Product    string `json:"product_code,omitempty"`
	Customer   string `json:"customer_name,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the metrics pipeline.
type Store interface {
	// Facts (append-only raw layer)
	InsertFacts(ctx context.Context, stream string, rows []normalize.Record) (int, error)
	LoadFacts(ctx context.Context) (map[string][]normalize.Record, error)
	FactCounts(ctx context.Context) (map[string]int, error)

	// Runs
	CreateRun(ctx context.Context) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Snapshot (replaced atomically by a successful run)
	PublishSnapshot(ctx context.Context, runID string, snap *model.Snapshot) error
	LoadSnapshot(ctx context.Context) (*model.Snapshot, error)
	SemanticRecords(ctx context.Context, filter SemanticFilter) ([]model.SemanticRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// factColumns fixes the raw column set per fact stream. Import and load
// both go through this registry so the raw layer round-trips exactly
// what was delivered.
var factColumns = map[string][]string{
	normalize.StreamProduction:  {"production_id", "production_date", "mine_site", "product_code", "tonnes_produced"},
	normalize.StreamRail:        {"rail_id", "departure_time", "arrival_time", "origin_mine", "port_site", "product_code", "tonnes_rail"},
	normalize.StreamStockpile:   {"event_id", "event_time", "site", "stockpile_id", "product_code", "event_type", "tonnes_delta", "shipment_id"},
	normalize.StreamVessels:     {"vessel_id", "vessel_name", "customer_name", "product_code", "site", "laycan_start_date", "laycan_end_date", "planned_arrival_time", "actual_arrival_time", "planned_tonnes", "actual_loaded_tonnes", "demurrage_rate_usd_per_day"},
	normalize.StreamAssays:      {"assay_id", "sample_time", "site", "product_code", "shipment_id", "fe_pct", "moisture_pct", "sio2_pct", "al2o3_pct", "p_pct"},
	normalize.StreamContracts:   {"contract_id", "customer_name", "product_code", "contract_start_date", "contract_end_date", "pricing_index", "freight_term", "fx_currency", "fe_min_pct", "moisture_max_pct", "has_carbon_price_reopener", "requires_scope3_reporting", "demurrage_free_days", "demurrage_rate_usd_per_day", "base_margin_target_usd_per_t"},
	normalize.StreamPrices:      {"price_date", "index_name", "price_usd_per_t"},
	normalize.StreamFx:          {"fx_date", "currency_pair", "fx_rate"},
	normalize.StreamCostCurves:  {"cost_curve_id", "product_code", "region", "quarter", "unit_cash_cost_usd_per_t", "fuel_cost_sensitivity_usd_per_t", "freight_cost_sensitivity_usd_per_t", "fx_sensitivity_usd_per_t"},
	normalize.StreamPositions:   {"position_id", "contract_id", "quarter", "product_code", "total_volume_t", "fixed_price_usd_per_t", "index_premium_discount_usd_per_t"},
	normalize.StreamMaintenance: {"work_order_id", "asset_id", "asset_type", "site", "work_order_type", "start_time", "end_time", "downtime_hours"},
	normalize.StreamTelemetry:   {"asset_id", "date", "utilization_pct", "vibration_index", "temperature_index"},
	normalize.StreamShipments:   {"shipment_id", "contract_id", "vessel_id", "product_code", "nomination_date", "planned_load_date", "planned_tonnes", "realized_price_usd_per_t", "realized_revenue_usd"},
}

// Streams lists the known fact streams in stable order.
func Streams() []string {
	out := make([]string, 0, len(factColumns))
	for s := range factColumns {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Columns returns the raw column set for a stream, or nil when unknown.
func Columns(stream string) []string {
	return factColumns[stream]
}

func factTable(stream string) string { return "fact_" + stream }
