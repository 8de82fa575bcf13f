package rollup

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

func TestBuild(t *testing.T) {
	t.Parallel()

	coverage := []model.VesselCoverage{
		{VesselID: "V1", Product: "MM62", LaycanEnd: day("2025-08-12"), DemurrageExposureUSD: 30000},
		{VesselID: "V2", Product: "MM62", LaycanEnd: day("2025-08-20"), DemurrageExposureUSD: 45000},
		{VesselID: "V3", Product: "MM58", LaycanEnd: day("2025-08-15"), DemurrageExposureUSD: 10000},
		{VesselID: "V4", Product: "MM62", LaycanEnd: day("2025-09-02"), DemurrageExposureUSD: 5000},
	}
	vessels := []model.VesselSchedule{
		{VesselID: "V1", Product: "MM62", LaycanEnd: day("2025-08-12"), ActualLoadedTonnes: 168000},
		{VesselID: "V2", Product: "MM62", LaycanEnd: day("2025-08-20"), ActualLoadedTonnes: 171000},
		{VesselID: "V4", Product: "MM62", LaycanEnd: day("2025-09-02"), ActualLoadedTonnes: 90000},
	}
	inventory := []model.PortInventorySnapshot{
		{Site: "PORT_A", Product: "MM62", Date: day("2025-08-10"), TonnesOnHand: 10000},
		{Site: "PORT_A", Product: "MM62", Date: day("2025-08-11"), TonnesOnHand: 14000},
	}

	got := Build(coverage, inventory, vessels)
	require.Len(t, got, 3)

	// Sorted by month then product.
	assert.Equal(t, "2025-08", got[0].Month)
	assert.Equal(t, "MM58", got[0].Product)
	assert.InDelta(t, 10000, got[0].TotalDemurrageUSD, 1e-9)
	assert.Equal(t, 1, got[0].VesselCount)

	aug62 := got[1]
	assert.Equal(t, "2025-08", aug62.Month)
	assert.Equal(t, "MM62", aug62.Product)
	assert.InDelta(t, 75000, aug62.TotalDemurrageUSD, 1e-9)
	assert.Equal(t, 2, aug62.VesselCount)
	assert.InDelta(t, 168000+171000, aug62.VesselLoadedTonnes, 1e-9)
	// Two snapshot days averaged.
	assert.InDelta(t, 12000, aug62.AvgTonnesOnHand, 1e-9)

	sep62 := got[2]
	assert.Equal(t, "2025-09", sep62.Month)
	assert.InDelta(t, 5000, sep62.TotalDemurrageUSD, 1e-9)
	assert.InDelta(t, 90000, sep62.VesselLoadedTonnes, 1e-9)
	assert.Zero(t, sep62.AvgTonnesOnHand)
}

func TestBuildEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Build(nil, nil, nil))
}
