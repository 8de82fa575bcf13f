// Package pipeline assembles the derived-metric engines into a fixed
// dependency graph and executes one batch run over a materialized fact
// set, producing a complete snapshot or nothing.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/coverage"
	"github.com/mega-minerals/oreflow/internal/graph"
	"github.com/mega-minerals/oreflow/internal/inventory"
	"github.com/mega-minerals/oreflow/internal/model"
	"github.com/mega-minerals/oreflow/internal/normalize"
	"github.com/mega-minerals/oreflow/internal/pricing"
	"github.com/mega-minerals/oreflow/internal/quality"
	"github.com/mega-minerals/oreflow/internal/risk"
	"github.com/mega-minerals/oreflow/internal/rollup"
	"github.com/mega-minerals/oreflow/internal/semantic"
)

// Node names, used in run results to report the failing view.
const (
	NodeNormalize = "normalize"
	NodeInventory = "inventory"
	NodeCoverage  = "coverage"
	NodeQuality   = "quality"
	NodePricing   = "pricing"
	NodeRisk      = "risk"
	NodeSemantic  = "semantic"
	NodeRollup    = "rollup"
)

// RawFacts carries the unparsed fact rows per stream, keyed by the
// normalize.Stream* names. Alias so the store can return it without
// depending on this package.
type RawFacts = map[string][]normalize.Record

// Options tunes view computation. Zero values fall back to the
// engine defaults.
type Options struct {
	// DefaultIndex is the reference price index used to value products
	// without a specific index mapping.
	DefaultIndex string
	// RiskTopN is the per-date size of the top revenue-at-risk ranking.
	RiskTopN int
}

// Pipeline computes all derived views for one run.
type Pipeline struct {
	cal  pricing.Calendar
	opts Options
}

// New creates a pipeline with the given quarter calendar.
func New(cal pricing.Calendar, opts Options) *Pipeline {
	return &Pipeline{cal: cal, opts: opts}
}

// state is the shared result holder. Each node writes only its own
// fields; counters are kept per node and merged after the graph
// completes so parallel nodes never share mutable state.
type state struct {
	facts model.FactSet

	inventory  []model.PortInventorySnapshot
	coverage   []model.VesselCoverage
	quality    []model.QualityDeviation
	scenarios  []model.ContractFinancialScenario
	riskScores []model.AssetRiskScore
	atRisk     []model.RevenueAtRisk
	topRisks   []model.RevenueAtRisk
	semantic   []model.SemanticRecord
	rollups    []model.MonthlyRollup

	counters map[string]*model.Counters
}

// Run executes the full DAG over the raw facts. On success it returns a
// consistent snapshot of every derived view; on failure it returns a
// *graph.NodeError naming the failed node, and no snapshot.
func (p *Pipeline) Run(ctx context.Context, raw RawFacts) (*model.Snapshot, error) {
	st := &state{counters: map[string]*model.Counters{
		NodeNormalize: {},
		NodeCoverage:  {},
		NodeQuality:   {},
		NodePricing:   {},
		NodeRisk:      {},
	}}

	g := graph.New().
		Add(graph.Node{Name: NodeNormalize, Run: func(context.Context) error {
			return p.normalizeFacts(raw, st)
		}}).
		Add(graph.Node{Name: NodeInventory, Deps: []string{NodeNormalize}, Run: func(context.Context) error {
			st.inventory = inventory.Build(st.facts.Stockpile, st.facts.Prices, p.opts.DefaultIndex)
			return nil
		}}).
		Add(graph.Node{Name: NodeCoverage, Deps: []string{NodeInventory}, Run: func(context.Context) error {
			st.coverage = coverage.Build(st.facts.Vessels, st.inventory, st.facts.RailMovements, st.facts.Contracts, st.counters[NodeCoverage])
			return nil
		}}).
		Add(graph.Node{Name: NodeQuality, Deps: []string{NodeNormalize}, Run: func(context.Context) error {
			st.quality = quality.Build(st.facts.Assays, st.facts.Shipments, st.facts.Contracts, st.counters[NodeQuality])
			return nil
		}}).
		Add(graph.Node{Name: NodePricing, Deps: []string{NodeNormalize}, Run: func(context.Context) error {
			st.scenarios = pricing.Build(st.facts.Positions, st.facts.Contracts, st.facts.Prices, st.facts.FxRates, st.facts.CostCurves, p.cal, st.counters[NodePricing])
			return nil
		}}).
		Add(graph.Node{Name: NodeRisk, Deps: []string{NodeNormalize}, Run: func(context.Context) error {
			counters := st.counters[NodeRisk]
			assets := risk.Registry(st.facts.Maintenance)
			st.riskScores = risk.Scores(st.facts.Telemetry, assets, counters)
			st.atRisk = risk.RevenueAtRisk(st.riskScores, st.facts.Shipments, st.facts.Vessels, counters)
			st.topRisks = risk.TopRanking(st.atRisk, p.opts.RiskTopN)
			return nil
		}}).
		Add(graph.Node{Name: NodeSemantic, Deps: []string{NodeInventory, NodeCoverage, NodePricing, NodeRisk}, Run: func(context.Context) error {
			st.semantic = semantic.Build(st.inventory, st.coverage, st.atRisk, st.scenarios, st.facts.Contracts)
			return nil
		}}).
		Add(graph.Node{Name: NodeRollup, Deps: []string{NodeInventory, NodeCoverage}, Run: func(context.Context) error {
			st.rollups = rollup.Build(st.coverage, st.inventory, st.facts.Vessels)
			return nil
		}})

	if err := g.Run(ctx); err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		Inventory:     st.inventory,
		Coverage:      st.coverage,
		Quality:       st.quality,
		Scenarios:     st.scenarios,
		RiskScores:    st.riskScores,
		RevenueAtRisk: st.atRisk,
		TopRisks:      st.topRisks,
		Semantic:      st.semantic,
		Rollups:       st.rollups,
	}
	for _, c := range st.counters {
		snap.Counters.Merge(*c)
	}

	zap.L().Info("pipeline: snapshot assembled",
		zap.Int("inventory", len(snap.Inventory)),
		zap.Int("coverage", len(snap.Coverage)),
		zap.Int("quality", len(snap.Quality)),
		zap.Int("scenarios", len(snap.Scenarios)),
		zap.Int("risk_scores", len(snap.RiskScores)),
		zap.Int("semantic", len(snap.Semantic)),
		zap.Int("rollups", len(snap.Rollups)),
		zap.Int("ambiguous_joins", snap.Counters.AmbiguousJoins),
		zap.Int("unmatched_joins", snap.Counters.UnmatchedJoins),
	)
	return snap, nil
}

// normalizeFacts types every raw stream, dropping and counting malformed
// rows. A stream missing entirely is not an error; downstream views
// simply compute over what exists. A fact set that is empty across all
// streams fails the run.
func (p *Pipeline) normalizeFacts(raw RawFacts, st *state) error {
	counters := st.counters[NodeNormalize]
	var dropped int

	st.facts.Production, dropped = normalize.Stream(normalize.StreamProduction, raw[normalize.StreamProduction], normalize.ParseProduction)
	counters.AddMalformed(normalize.StreamProduction, dropped)

	st.facts.RailMovements, dropped = normalize.Stream(normalize.StreamRail, raw[normalize.StreamRail], normalize.ParseRail)
	counters.AddMalformed(normalize.StreamRail, dropped)

	st.facts.Stockpile, dropped = normalize.Stream(normalize.StreamStockpile, raw[normalize.StreamStockpile], normalize.ParseStockpile)
	counters.AddMalformed(normalize.StreamStockpile, dropped)

	st.facts.Vessels, dropped = normalize.Stream(normalize.StreamVessels, raw[normalize.StreamVessels], normalize.ParseVessel)
	counters.AddMalformed(normalize.StreamVessels, dropped)

	st.facts.Assays, dropped = normalize.Stream(normalize.StreamAssays, raw[normalize.StreamAssays], normalize.ParseAssay)
	counters.AddMalformed(normalize.StreamAssays, dropped)

	st.facts.Contracts, dropped = normalize.Stream(normalize.StreamContracts, raw[normalize.StreamContracts], normalize.ParseContract)
	counters.AddMalformed(normalize.StreamContracts, dropped)

	st.facts.Prices, dropped = normalize.Stream(normalize.StreamPrices, raw[normalize.StreamPrices], normalize.ParsePrice)
	counters.AddMalformed(normalize.StreamPrices, dropped)

	st.facts.FxRates, dropped = normalize.Stream(normalize.StreamFx, raw[normalize.StreamFx], normalize.ParseFx)
	counters.AddMalformed(normalize.StreamFx, dropped)

	st.facts.CostCurves, dropped = normalize.Stream(normalize.StreamCostCurves, raw[normalize.StreamCostCurves], normalize.ParseCostCurve)
	counters.AddMalformed(normalize.StreamCostCurves, dropped)

	st.facts.Positions, dropped = normalize.Stream(normalize.StreamPositions, raw[normalize.StreamPositions], normalize.ParsePosition)
	counters.AddMalformed(normalize.StreamPositions, dropped)

	st.facts.Maintenance, dropped = normalize.Stream(normalize.StreamMaintenance, raw[normalize.StreamMaintenance], normalize.ParseMaintenance)
	counters.AddMalformed(normalize.StreamMaintenance, dropped)

	st.facts.Telemetry, dropped = normalize.Stream(normalize.StreamTelemetry, raw[normalize.StreamTelemetry], normalize.ParseTelemetry)
	counters.AddMalformed(normalize.StreamTelemetry, dropped)

	st.facts.Shipments, dropped = normalize.Stream(normalize.StreamShipments, raw[normalize.StreamShipments], normalize.ParseShipment)
	counters.AddMalformed(normalize.StreamShipments, dropped)

	total := len(st.facts.Production) + len(st.facts.RailMovements) + len(st.facts.Stockpile) +
		len(st.facts.Vessels) + len(st.facts.Assays) + len(st.facts.Contracts) +
		len(st.facts.Prices) + len(st.facts.FxRates) + len(st.facts.CostCurves) +
		len(st.facts.Positions) + len(st.facts.Maintenance) + len(st.facts.Telemetry) +
		len(st.facts.Shipments)
	if total == 0 {
		return eris.New("pipeline: no facts to process")
	}
	return nil
}

// ViewCounts summarizes a snapshot's per-view row counts for run
// bookkeeping.
func ViewCounts(snap *model.Snapshot) map[string]int {
	return map[string]int{
		"port_inventory":    len(snap.Inventory),
		"vessel_coverage":   len(snap.Coverage),
		"quality_deviation": len(snap.Quality),
		"pricing_scenarios": len(snap.Scenarios),
		"asset_risk_scores": len(snap.RiskScores),
		"revenue_at_risk":   len(snap.RevenueAtRisk),
		"top_risks":         len(snap.TopRisks),
		"semantic_records":  len(snap.Semantic),
		"monthly_rollups":   len(snap.Rollups),
	}
}
