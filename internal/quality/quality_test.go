package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mega-minerals/oreflow/internal/model"
)

func TestPenalty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                 string
		avgFe, avgMoisture   float64
		feMin, moistureMax   float64
		want                 float64
	}{
		{
			name:  "fe deficit",
			avgFe: 61.5, avgMoisture: 8.0,
			feMin: 62.0, moistureMax: 9.0,
			// 0.5 pct under spec -> 5 increments of 0.1 at -500k each.
			want: -2_500_000,
		},
		{
			name:  "fe surplus bonus",
			avgFe: 62.3, avgMoisture: 8.0,
			feMin: 62.0, moistureMax: 9.0,
			// 0.3 pct over spec -> 3 increments at +300k each.
			want: 900_000,
		},
		{
			name:  "moisture excess stacks on fe deficit",
			avgFe: 61.8, avgMoisture: 9.4,
			feMin: 62.0, moistureMax: 9.0,
			// fe: -500k * 2, moisture: -300k * 4.
			want: -2_200_000,
		},
		{
			name:  "bonus offset by moisture penalty",
			avgFe: 62.1, avgMoisture: 9.1,
			feMin: 62.0, moistureMax: 9.0,
			// +300k - 300k.
			want: 0,
		},
		{
			name:  "exactly on spec",
			avgFe: 62.0, avgMoisture: 9.0,
			feMin: 62.0, moistureMax: 9.0,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Penalty(tt.avgFe, tt.avgMoisture, tt.feMin, tt.moistureMax)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	assays := []model.QualityAssay{
		{ID: "A1", ShipmentID: "SHP-1", FePct: 61.0, MoisturePct: 8.0},
		{ID: "A2", ShipmentID: "SHP-1", FePct: 62.0, MoisturePct: 8.4},
		{ID: "A3", ShipmentID: "SHP-2", FePct: 62.5, MoisturePct: 8.0},
		{ID: "A4", ShipmentID: "", FePct: 50.0, MoisturePct: 20.0}, // stockpile sample, no shipment
	}
	shipments := []model.ShipmentRevenue{
		{ShipmentID: "SHP-1", ContractID: "C-1"},
		{ShipmentID: "SHP-2", ContractID: "C-MISSING"},
	}
	contracts := []model.Contract{
		{ContractID: "C-1", FeMinPct: 62.0, MoistureMaxPct: 9.0},
	}

	var counters model.Counters
	got := Build(assays, shipments, contracts, &counters)
	require.Len(t, got, 2)

	// Sorted by shipment ID.
	assert.Equal(t, "SHP-1", got[0].ShipmentID)
	assert.Equal(t, "SHP-2", got[1].ShipmentID)

	matched := got[0]
	assert.Equal(t, "C-1", matched.ContractID)
	assert.Equal(t, 2, matched.SampleCount)
	assert.InDelta(t, 61.5, matched.AvgFePct, 1e-9)
	assert.InDelta(t, 8.2, matched.AvgMoisturePct, 1e-9)
	require.NotNil(t, matched.PenaltyUSD)
	// 0.5 pct fe deficit, moisture within spec.
	assert.InDelta(t, -2_500_000, *matched.PenaltyUSD, 1e-6)

	unmatched := got[1]
	assert.Empty(t, unmatched.ContractID)
	assert.Nil(t, unmatched.PenaltyUSD)
	assert.Nil(t, unmatched.FeMinPct)
	assert.Equal(t, 1, counters.UnmatchedJoins)
}

func TestBuildNoShipmentAssays(t *testing.T) {
	t.Parallel()

	assays := []model.QualityAssay{
		{ID: "A1", ShipmentID: "", FePct: 62.0, MoisturePct: 8.0},
	}
	var counters model.Counters
	got := Build(assays, nil, nil, &counters)
	assert.Empty(t, got)
	assert.Zero(t, counters.UnmatchedJoins)
}
