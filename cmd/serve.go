package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mega-minerals/oreflow/internal/model"
	"github.com/mega-minerals/oreflow/internal/pricing"
	"github.com/mega-minerals/oreflow/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only query API",
	Long:  "Serves the published snapshot over HTTP: semantic records with filters, per-view data, run history, and a recompute trigger.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

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

		router := newRouter(ctx, st, cal, cfg.Server.AllowedOrigins)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the full API router.
func newRouter(ctx context.Context, st store.Store, cal pricing.Calendar, origins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/semantic", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		filter := store.SemanticFilter{
			RecordType: q.Get("record_type"),
			Site:       q.Get("site"),
			Product:    q.Get("product_code"),
			Customer:   q.Get("customer_name"),
			Limit:      limit,
		}

		records, err := st.SemanticRecords(req.Context(), filter)
		if err != nil {
			zap.L().Error("semantic query failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
			return
		}
		if records == nil {
			records = []model.SemanticRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	})

	r.Get("/api/views/{view}", func(w http.ResponseWriter, req *http.Request) {
		snap, err := st.LoadSnapshot(req.Context())
		if err != nil {
			zap.L().Error("snapshot load failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
			return
		}

		view := chi.URLParam(req, "view")
		var payload any
		switch view {
		case "port_inventory":
			payload = snap.Inventory
		case "vessel_coverage":
			payload = snap.Coverage
		case "quality_deviation":
			payload = snap.Quality
		case "pricing_scenarios":
			payload = snap.Scenarios
		case "asset_risk_scores":
			payload = snap.RiskScores
		case "revenue_at_risk":
			payload = snap.RevenueAtRisk
		case "top_risks":
			payload = snap.TopRisks
		case "monthly_rollups":
			payload = snap.Rollups
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown view " + view})
			return
		}
		writeJSON(w, http.StatusOK, payload)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		runs, err := st.ListRuns(req.Context(), limit)
		if err != nil {
			zap.L().Error("run list failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Post("/api/runs", func(w http.ResponseWriter, _ *http.Request) {
		// Recompute asynchronously; pollers pick up the outcome from
		// the run record.
		go func() {
			run, err := executeRun(ctx, st, cal)
			if err != nil {
				zap.L().Error("triggered run failed", zap.Error(err))
				return
			}
			zap.L().Info("triggered run published", zap.String("run_id", run.ID))
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
