package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mega-minerals/oreflow/internal/graph"
	"github.com/mega-minerals/oreflow/internal/normalize"
	"github.com/mega-minerals/oreflow/internal/pricing"
)

// testFacts covers enough streams to exercise every node: one stockpile
// partition, one vessel with a contract, assays on a shipment, a priced
// position, and telemetry on a registered ship loader.
func testFacts() RawFacts {
	return RawFacts{
		normalize.StreamStockpile: {
			{"event_id": "E1", "event_time": "2025-08-01 06:00:00", "site": "PORT_A", "product_code": "MM62", "event_type": "rail_in", "tonnes_delta": "60000"},
			{"event_id": "E2", "event_time": "2025-08-05 10:00:00", "site": "PORT_A", "product_code": "MM62", "event_type": "ship_load", "tonnes_delta": "-20000", "shipment_id": "SHP-1"},
		},
		normalize.StreamVessels: {
			{"vessel_id": "V1", "vessel_name": "MV Iron Duke", "customer_name": "BAOWU", "product_code": "MM62", "site": "PORT_A",
				"laycan_start_date": "2025-08-04", "laycan_end_date": "2025-08-06",
				"planned_arrival_time": "2025-08-04 06:00:00", "actual_arrival_time": "2025-08-05 08:00:00",
				"planned_tonnes": "50000", "actual_loaded_tonnes": "20000", "demurrage_rate_usd_per_day": "20000"},
		},
		normalize.StreamContracts: {
			{"contract_id": "C-1", "customer_name": "BAOWU", "product_code": "MM62",
				"contract_start_date": "2025-01-01", "contract_end_date": "2025-12-31",
				"pricing_index": "62FE_CFR", "freight_term": "CFR", "fx_currency": "AUD",
				"fe_min_pct": "62.0", "moisture_max_pct": "9.0",
				"has_carbon_price_reopener": "false", "requires_scope3_reporting": "true",
				"demurrage_free_days": "2", "demurrage_rate_usd_per_day": "25000",
				"base_margin_target_usd_per_t": "35"},
		},
		normalize.StreamAssays: {
			{"assay_id": "A1", "sample_time": "2025-08-05 09:00:00", "site": "PORT_A", "product_code": "MM62", "shipment_id": "SHP-1",
				"fe_pct": "61.5", "moisture_pct": "8.0", "sio2_pct": "4.0", "al2o3_pct": "2.0", "p_pct": "0.08"},
		},
		normalize.StreamShipments: {
			{"shipment_id": "SHP-1", "contract_id": "C-1", "vessel_id": "V1", "product_code": "MM62",
				"nomination_date": "2025-07-20", "planned_load_date": "2025-08-05",
				"planned_tonnes": "50000", "realized_price_usd_per_t": "100", "realized_revenue_usd": "5000000"},
		},
		normalize.StreamPrices: {
			{"price_date": "2025-08-01", "index_name": "62FE_CFR", "price_usd_per_t": "100"},
			{"price_date": "2025-08-05", "index_name": "62FE_CFR", "price_usd_per_t": "104"},
		},
		normalize.StreamPositions: {
			{"position_id": "P1", "contract_id": "C-1", "quarter": "2025Q3", "product_code": "MM62",
				"total_volume_t": "500000", "fixed_price_usd_per_t": "110", "index_premium_discount_usd_per_t": "0"},
		},
		normalize.StreamCostCurves: {
			{"cost_curve_id": "CC1", "product_code": "MM62", "region": "PILBARA", "quarter": "2025Q3",
				"unit_cash_cost_usd_per_t": "40", "fuel_cost_sensitivity_usd_per_t": "2",
				"freight_cost_sensitivity_usd_per_t": "3", "fx_sensitivity_usd_per_t": "1"},
		},
		normalize.StreamMaintenance: {
			{"work_order_id": "W1", "asset_id": "SL-1", "asset_type": "ship_loader", "site": "PORT_A",
				"work_order_type": "preventive", "start_time": "2025-07-01 08:00:00", "end_time": "2025-07-01 16:00:00", "downtime_hours": "8"},
		},
		normalize.StreamTelemetry: {
			{"asset_id": "SL-1", "date": "2025-08-04", "utilization_pct": "90", "vibration_index": "8", "temperature_index": "1.0"},
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	p := New(pricing.DefaultCalendar(), Options{})
	snap, err := p.Run(context.Background(), testFacts())
	require.NoError(t, err)
	require.NotNil(t, snap)

	require.Len(t, snap.Inventory, 2)
	assert.InDelta(t, 40000, snap.Inventory[1].TonnesOnHand, 1e-9)

	require.Len(t, snap.Coverage, 1)
	assert.Equal(t, "C-1", snap.Coverage[0].ContractID)
	require.NotNil(t, snap.Coverage[0].CoverageRatio)

	require.Len(t, snap.Quality, 1)
	require.NotNil(t, snap.Quality[0].PenaltyUSD)
	assert.InDelta(t, -2_500_000, *snap.Quality[0].PenaltyUSD, 1e-6)

	require.Len(t, snap.Scenarios, 1)
	require.NotNil(t, snap.Scenarios[0].BaseCaseMargin)
	assert.InDelta(t, 70, *snap.Scenarios[0].BaseCaseMargin, 1e-9)

	require.Len(t, snap.RiskScores, 1)
	assert.InDelta(t, 0.17, snap.RiskScores[0].FailureProb14d, 1e-9)
	require.Len(t, snap.RevenueAtRisk, 1)
	assert.Equal(t, 1, snap.RevenueAtRisk[0].ShipmentsAtRisk)
	require.Len(t, snap.TopRisks, 1)

	// inventory(2) + coverage(1) + risk(1) + scenario(1) + contract ESG(1)
	assert.Len(t, snap.Semantic, 6)
	assert.Len(t, snap.Rollups, 1)

	counts := ViewCounts(snap)
	assert.Equal(t, 2, counts["port_inventory"])
	assert.Equal(t, 1, counts["vessel_coverage"])
	assert.Equal(t, 6, counts["semantic_records"])
}

func TestRunDeterministic(t *testing.T) {
	t.Parallel()

	p := New(pricing.DefaultCalendar(), Options{})

	first, err := p.Run(context.Background(), testFacts())
	require.NoError(t, err)
	second, err := p.Run(context.Background(), testFacts())
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestRunMalformedCounted(t *testing.T) {
	t.Parallel()

	raw := testFacts()
	raw[normalize.StreamPrices] = append(raw[normalize.StreamPrices], normalize.Record{
		"price_date": "garbage", "index_name": "62FE_CFR", "price_usd_per_t": "100",
	})

	p := New(pricing.DefaultCalendar(), Options{})
	snap, err := p.Run(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Counters.Malformed[normalize.StreamPrices])
}

func TestRunEmptyFacts(t *testing.T) {
	t.Parallel()

	p := New(pricing.DefaultCalendar(), Options{})
	snap, err := p.Run(context.Background(), RawFacts{})
	require.Error(t, err)
	assert.Nil(t, snap)

	var nodeErr *graph.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, NodeNormalize, nodeErr.Node)
}

func TestRunAllMalformedStreamIsNotFatal(t *testing.T) {
	t.Parallel()

	// One healthy stream keeps the run alive even when another stream
	// drops every row.
	raw := RawFacts{
		normalize.StreamPrices: {
			{"price_date": "2025-08-01", "index_name": "62FE_CFR", "price_usd_per_t": "100"},
		},
		normalize.StreamTelemetry: {
			{"asset_id": "SL-1", "date": "bad", "utilization_pct": "90", "vibration_index": "8", "temperature_index": "1"},
		},
	}

	p := New(pricing.DefaultCalendar(), Options{})
	snap, err := p.Run(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Counters.Malformed[normalize.StreamTelemetry])
	assert.Empty(t, snap.RiskScores)
}
