package semantic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mega-minerals/oreflow/internal/model"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestFromInventory(t *testing.T) {
	t.Parallel()

	rec := FromInventory(model.PortInventorySnapshot{
		Site:           "PORT_A",
		Product:        "MM62",
		Date:           day("2025-08-10"),
		NetDelta:       -500,
		TonnesOnHand:   12000,
		AvgShipLoad14d: 800,
		DaysOnHand:     model.Float(15),
	})

	assert.Equal(t, model.RecordPortInventory, rec.RecordType)
	assert.Equal(t, "PORT_A", rec.Site)
	require.NotNil(t, rec.Metric1)
	assert.InDelta(t, 12000, *rec.Metric1, 1e-9)
	require.NotNil(t, rec.Metric3)
	assert.InDelta(t, 15, *rec.Metric3, 1e-9)
	// Missing price keeps inventory value undefined in the projection.
	assert.Nil(t, rec.Metric4)
}

func TestFromCoverage(t *testing.T) {
	t.Parallel()

	rec := FromCoverage(model.VesselCoverage{
		VesselID:              "V1",
		Customer:              "BAOWU",
		Product:               "MM62",
		Site:                  "PORT_A",
		LaycanStart:           day("2025-08-10"),
		PlannedTonnes:         50000,
		CoveredTonnes:         40000,
		CoverageRatio:         model.Float(0.8),
		ExpectedDemurrageDays: 1.5,
		DemurrageExposureUSD:  30000,
		ContractID:            "C-1",
	})

	assert.Equal(t, model.RecordVesselCoverage, rec.RecordType)
	assert.Equal(t, "V1", rec.KeyID)
	assert.Equal(t, "C-1", rec.ContractID)
	require.NotNil(t, rec.Metric1)
	assert.InDelta(t, 0.8, *rec.Metric1, 1e-9)
	require.NotNil(t, rec.Metric4)
	assert.InDelta(t, 30000, *rec.Metric4, 1e-9)
}

func TestFromContractESG(t *testing.T) {
	t.Parallel()

	rec := FromContractESG(model.Contract{
		ContractID:        "C-1",
		Customer:          "POSCO",
		Product:           "MM62",
		StartDate:         day("2025-01-01"),
		CarbonReopener:    true,
		Scope3Required:    false,
		DemurrageFreeDays: 3,
		DemurrageRate:     25000,
		BaseMarginTarget:  35,
	})

	assert.Equal(t, model.RecordContractESG, rec.RecordType)
	assert.Equal(t, "C-1", rec.KeyID)
	require.NotNil(t, rec.Metric1)
	assert.InDelta(t, 1, *rec.Metric1, 1e-9)
	require.NotNil(t, rec.Metric2)
	assert.InDelta(t, 0, *rec.Metric2, 1e-9)
	require.NotNil(t, rec.Metric3)
	assert.InDelta(t, 3, *rec.Metric3, 1e-9)
}

func TestBuildOrder(t *testing.T) {
	t.Parallel()

	got := Build(
		[]model.PortInventorySnapshot{{Site: "PORT_A", Product: "MM62", Date: day("2025-08-10")}},
		[]model.VesselCoverage{{VesselID: "V1", LaycanStart: day("2025-08-10")}},
		[]model.RevenueAtRisk{{AssetID: "SL-1", EvaluationDate: day("2025-08-10")}},
		[]model.ContractFinancialScenario{{PositionID: "P1"}},
		[]model.Contract{{ContractID: "C-1", StartDate: day("2025-01-01")}},
	)
	require.Len(t, got, 5)

	want := []model.RecordType{
		model.RecordPortInventory,
		model.RecordVesselCoverage,
		model.RecordAssetRisk,
		model.RecordPricingPosition,
		model.RecordContractESG,
	}
	for i, rt := range want {
		assert.Equal(t, rt, got[i].RecordType)
	}
}
