package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mega-minerals/oreflow/internal/model"
	"github.com/mega-minerals/oreflow/internal/normalize"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "oreflow_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestSQLiteFactsRoundTrip(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rows := []normalize.Record{
		{"price_date": "2025-08-01", "index_name": "62FE_CFR", "price_usd_per_t": "101.5"},
		{"price_date": "2025-08-02", "index_name": "62FE_CFR", "price_usd_per_t": "102.0"},
	}
	n, err := st.InsertFacts(ctx, normalize.StreamPrices, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	facts, err := st.LoadFacts(ctx)
	require.NoError(t, err)
	require.Len(t, facts[normalize.StreamPrices], 2)
	assert.Equal(t, "101.5", facts[normalize.StreamPrices][0]["price_usd_per_t"])
	assert.Equal(t, "62FE_CFR", facts[normalize.StreamPrices][0]["index_name"])

	counts, err := st.FactCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[normalize.StreamPrices])
	assert.Zero(t, counts[normalize.StreamVessels])
}

func TestSQLiteFactsAppendOnly(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	row := []normalize.Record{{"price_date": "2025-08-01", "index_name": "62FE_CFR", "price_usd_per_t": "100"}}
	_, err := st.InsertFacts(ctx, normalize.StreamPrices, row)
	require.NoError(t, err)
	_, err = st.InsertFacts(ctx, normalize.StreamPrices, row)
	require.NoError(t, err)

	counts, err := st.FactCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[normalize.StreamPrices])
}

func TestSQLiteInsertFactsUnknownStream(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)

	_, err := st.InsertFacts(context.Background(), "no_such_stream", []normalize.Record{{"a": "b"}})
	assert.Error(t, err)
}

func TestSQLiteRunLifecycle(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	result := &model.RunResult{
		ViewCounts: map[string]int{"port_inventory": 3},
		Counters:   model.Counters{UnmatchedJoins: 2},
		DurationMS: 120,
	}
	require.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusPublished, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPublished, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 3, got.Result.ViewCounts["port_inventory"])
	assert.Equal(t, 2, got.Result.Counters.UnmatchedJoins)

	_, err = st.GetRun(ctx, "no-such-run")
	assert.Error(t, err)
}

func TestSQLiteListRuns(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var last string
	for i := 0; i < 3; i++ {
		run, err := st.CreateRun(ctx)
		require.NoError(t, err)
		last = run.ID
	}

	runs, err := st.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first.
	assert.Equal(t, last, runs[0].ID)
}

func testSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Inventory: []model.PortInventorySnapshot{{
			Site: "PORT_A", Product: "MM62", Date: day("2025-08-10"),
			NetDelta: 1000, TonnesOnHand: 12000, AvgShipLoad14d: 800,
			DaysOnHand: model.Float(15), IndexPrice: model.Float(104), InventoryValue: model.Float(12000 * 104),
		}},
		Coverage: []model.VesselCoverage{{
			VesselID: "V1", VesselName: "MV Iron Duke", Customer: "BAOWU", Product: "MM62", Site: "PORT_A",
			LaycanStart: day("2025-08-10"), LaycanEnd: day("2025-08-12"),
			PlannedTonnes: 50000, TonnesOnHandAtStart: 30000, TonnesInTransit: 10000,
			CoveredTonnes: 40000, CoverageRatio: model.Float(0.8),
			DaysLate: -1, ExpectedDemurrageDays: 1.5, DemurrageRate: 20000, DemurrageExposureUSD: 30000,
			ContractID: "C-1",
		}},
		Quality: []model.QualityDeviation{{
			ShipmentID: "SHP-1", ContractID: "C-1", SampleCount: 2,
			AvgFePct: 61.5, AvgMoisturePct: 8.2,
			FeMinPct: model.Float(62), MoistureMaxPct: model.Float(9),
			PenaltyUSD: model.Float(-2_500_000),
		}},
		Scenarios: []model.ContractFinancialScenario{{
			PositionID: "P1", ContractID: "C-1", Customer: "BAOWU", Product: "MM62",
			Quarter: "2025Q3", PriceType: model.PriceTypeFixed, TotalVolume: 100000,
			BaseRealizedPrice: model.Float(110), UnitCashCost: model.Float(40),
			BaseCaseMargin: model.Float(70), ScenarioMargin: model.Float(56),
			EBITDAImpactUSD: model.Float(-1_400_000),
		}},
		RiskScores: []model.AssetRiskScore{{
			AssetID: "SL-1", AssetType: "ship_loader", Site: "PORT_A",
			EvaluationDate: day("2025-08-10"), UtilizationPct: 90, VibrationIndex: 8,
			FailureProb14d: 0.17, DowntimeHoursIfFail: 42, ExpectedDowntime: 7.14,
		}},
		RevenueAtRisk: []model.RevenueAtRisk{{
			AssetID: "SL-1", AssetType: "ship_loader", Site: "PORT_A",
			EvaluationDate: day("2025-08-10"), FailureProb14d: 0.17,
			ExpectedDowntime: 7.14, ShipmentsAtRisk: 1, TonnesAtRisk: 70000, RevenueAtRiskUSD: 1_190_000,
		}},
		TopRisks: []model.RevenueAtRisk{{
			AssetID: "SL-1", AssetType: "ship_loader", Site: "PORT_A",
			EvaluationDate: day("2025-08-10"), FailureProb14d: 0.17,
			ExpectedDowntime: 7.14, ShipmentsAtRisk: 1, TonnesAtRisk: 70000, RevenueAtRiskUSD: 1_190_000,
		}},
		Semantic: []model.SemanticRecord{
			{
				RecordType: model.RecordPortInventory, Date: day("2025-08-10"),
				Site: "PORT_A", Product: "MM62",
				Metric1: model.Float(12000), Metric2: model.Float(1000),
			},
			{
				RecordType: model.RecordVesselCoverage, KeyID: "V1", Date: day("2025-08-10"),
				Site: "PORT_A", Product: "MM62", Customer: "BAOWU", ContractID: "C-1",
				Metric1: model.Float(0.8),
			},
			{
				RecordType: model.RecordPricingPosition, KeyID: "P1",
				Product: "MM62", Customer: "BAOWU", ContractID: "C-1",
				Metric1: model.Float(70),
			},
		},
		Rollups: []model.MonthlyRollup{{
			Month: "2025-08", Product: "MM62",
			TotalDemurrageUSD: 30000, AvgTonnesOnHand: 12000,
			VesselLoadedTonnes: 168000, VesselCount: 1,
		}},
	}
}

func TestSQLiteSnapshotRoundTrip(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, st.PublishSnapshot(ctx, run.ID, testSnapshot()))

	got, err := st.LoadSnapshot(ctx)
	require.NoError(t, err)

	require.Len(t, got.Inventory, 1)
	inv := got.Inventory[0]
	assert.Equal(t, "PORT_A", inv.Site)
	assert.Equal(t, day("2025-08-10"), inv.Date)
	assert.InDelta(t, 12000, inv.TonnesOnHand, 1e-9)
	require.NotNil(t, inv.DaysOnHand)
	assert.InDelta(t, 15, *inv.DaysOnHand, 1e-9)

	require.Len(t, got.Coverage, 1)
	cov := got.Coverage[0]
	assert.Equal(t, "V1", cov.VesselID)
	require.NotNil(t, cov.CoverageRatio)
	assert.InDelta(t, 0.8, *cov.CoverageRatio, 1e-9)
	assert.InDelta(t, -1, cov.DaysLate, 1e-9)
	assert.Equal(t, "C-1", cov.ContractID)
	assert.False(t, cov.ContractAmbiguous)

	require.Len(t, got.Quality, 1)
	require.NotNil(t, got.Quality[0].PenaltyUSD)
	assert.InDelta(t, -2_500_000, *got.Quality[0].PenaltyUSD, 1e-6)

	require.Len(t, got.Scenarios, 1)
	assert.Equal(t, model.PriceTypeFixed, got.Scenarios[0].PriceType)
	require.NotNil(t, got.Scenarios[0].EBITDAImpactUSD)
	assert.InDelta(t, -1_400_000, *got.Scenarios[0].EBITDAImpactUSD, 1e-6)

	require.Len(t, got.RiskScores, 1)
	assert.InDelta(t, 0.17, got.RiskScores[0].FailureProb14d, 1e-9)

	require.Len(t, got.RevenueAtRisk, 1)
	require.Len(t, got.TopRisks, 1)
	assert.Equal(t, 1, got.RevenueAtRisk[0].ShipmentsAtRisk)

	require.Len(t, got.Semantic, 3)
	require.Len(t, got.Rollups, 1)
	assert.InDelta(t, 30000, got.Rollups[0].TotalDemurrageUSD, 1e-9)
}

func TestSQLiteRepublishReplaces(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, st.PublishSnapshot(ctx, run.ID, testSnapshot()))

	second := testSnapshot()
	second.Inventory = append(second.Inventory, model.PortInventorySnapshot{
		Site: "PORT_B", Product: "MM58", Date: day("2025-08-11"), NetDelta: 500, TonnesOnHand: 500,
	})
	second.Quality = nil

	run2, err := st.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, st.PublishSnapshot(ctx, run2.ID, second))

	got, err := st.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Inventory, 2)
	// Old quality rows are gone, not merged.
	assert.Empty(t, got.Quality)
}

func TestSQLiteSemanticRecords(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, st.PublishSnapshot(ctx, run.ID, testSnapshot()))

	all, err := st.SemanticRecords(ctx, SemanticFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byType, err := st.SemanticRecords(ctx, SemanticFilter{RecordType: string(model.RecordVesselCoverage)})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "V1", byType[0].KeyID)

	byCustomer, err := st.SemanticRecords(ctx, SemanticFilter{Customer: "BAOWU"})
	require.NoError(t, err)
	assert.Len(t, byCustomer, 2)

	limited, err := st.SemanticRecords(ctx, SemanticFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := st.SemanticRecords(ctx, SemanticFilter{Site: "PORT_Z"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteLoadSnapshotEmpty(t *testing.T) {
	t.Parallel()
	st := newTestSQLiteStore(t)

	got, err := st.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Inventory)
	assert.Empty(t, got.Semantic)
}
