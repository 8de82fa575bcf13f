package main

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/graph"
	"github.com/mega-minerals/oreflow/internal/model"
	"github.com/mega-minerals/oreflow/internal/pipeline"
	"github.com/mega-minerals/oreflow/internal/pricing"
	"github.com/mega-minerals/oreflow/internal/store"
)

var runCalendarPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recompute all derived views and publish a snapshot",
	Long:  "Loads the fact layer, executes the derived-metric graph, and atomically replaces the published snapshot. A failed run leaves the previous snapshot untouched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		cal, err := loadCalendar()
		if err != nil {
			return err
		}

		run, err := executeRun(ctx, st, cal)
		if err != nil {
			return err
		}

		result := run.Result
		zap.L().Info("run published",
			zap.String("run_id", run.ID),
			zap.Int64("duration_ms", result.DurationMS),
			zap.Any("view_counts", result.ViewCounts),
			zap.Int("unmatched_joins", result.Counters.UnmatchedJoins),
			zap.Int("ambiguous_joins", result.Counters.AmbiguousJoins),
		)
		return nil
	},
}

// executeRun runs the full recompute-and-publish cycle: load facts,
// execute the graph, and atomically replace the snapshot. The run record
// is finished with the outcome either way.
func executeRun(ctx context.Context, st store.Store, cal pricing.Calendar) (*model.Run, error) {
	raw, err := st.LoadFacts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "load facts")
	}

	run, err := st.CreateRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "create run")
	}
	zap.L().Info("run started", zap.String("run_id", run.ID))

	p := pipeline.New(cal, pipeline.Options{
		DefaultIndex: cfg.Pipeline.DefaultIndexName,
		RiskTopN:     cfg.Pipeline.RiskTopN,
	})

	started := time.Now()
	snap, err := p.Run(ctx, raw)
	if err != nil {
		result := &model.RunResult{
			Error:      err.Error(),
			DurationMS: time.Since(started).Milliseconds(),
		}
		var nodeErr *graph.NodeError
		if errors.As(err, &nodeErr) {
			result.FailedNode = nodeErr.Node
		}
		if ferr := st.FinishRun(ctx, run.ID, model.RunStatusFailed, result); ferr != nil {
			zap.L().Error("record failed run", zap.Error(ferr))
		}
		zap.L().Error("run failed",
			zap.String("run_id", run.ID),
			zap.String("node", result.FailedNode),
			zap.Error(err),
		)
		return nil, eris.Wrap(err, "pipeline run")
	}

	if err := st.PublishSnapshot(ctx, run.ID, snap); err != nil {
		result := &model.RunResult{
			Error:      err.Error(),
			DurationMS: time.Since(started).Milliseconds(),
		}
		if ferr := st.FinishRun(ctx, run.ID, model.RunStatusFailed, result); ferr != nil {
			zap.L().Error("record failed run", zap.Error(ferr))
		}
		return nil, eris.Wrap(err, "publish snapshot")
	}

	result := &model.RunResult{
		ViewCounts: pipeline.ViewCounts(snap),
		Counters:   snap.Counters,
		DurationMS: time.Since(started).Milliseconds(),
	}
	if err := st.FinishRun(ctx, run.ID, model.RunStatusPublished, result); err != nil {
		return nil, eris.Wrap(err, "finish run")
	}

	run.Status = model.RunStatusPublished
	run.Result = result
	return run, nil
}

// loadCalendar resolves the quarter calendar: an explicit --calendar
// file wins, then the configured quarters, then the built-in default.
func loadCalendar() (pricing.Calendar, error) {
	if runCalendarPath != "" {
		return pricing.LoadCalendar(runCalendarPath)
	}
	if len(cfg.Calendar.Quarters) > 0 {
		return pricing.ParseCalendar(cfg.Calendar.Quarters)
	}
	return pricing.DefaultCalendar(), nil
}

func init() {
	runCmd.Flags().StringVar(&runCalendarPath, "calendar", "", "path to a YAML quarter calendar")
	rootCmd.AddCommand(runCmd)
}
