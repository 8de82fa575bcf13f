package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mega-minerals/oreflow/internal/db"
	"github.com/mega-minerals/oreflow/internal/model"
	"github.com/mega-minerals/oreflow/internal/normalize"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests pass a pgxmock pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

CREATE TABLE IF NOT EXISTS derived_port_inventory (
	site                TEXT NOT NULL,
	product_code        TEXT NOT NULL,
	date                DATE NOT NULL,
	net_tonnes_delta    DOUBLE PRECISION NOT NULL,
	tonnes_on_hand      DOUBLE PRECISION NOT NULL,
	avg_ship_load_14d   DOUBLE PRECISION NOT NULL,
	days_on_hand        DOUBLE PRECISION,
	index_price         DOUBLE PRECISION,
	inventory_value_usd DOUBLE PRECISION,
	PRIMARY KEY (site, product_code, date)
);

CREATE TABLE IF NOT EXISTS derived_vessel_coverage (
	vessel_id                TEXT PRIMARY KEY,
	vessel_name              TEXT NOT NULL,
	customer_name            TEXT NOT NULL,
	product_code             TEXT NOT NULL,
	site                     TEXT NOT NULL,
	laycan_start_date        DATE NOT NULL,
	laycan_end_date          DATE NOT NULL,
	planned_tonnes           DOUBLE PRECISION NOT NULL,
	tonnes_on_hand_at_start  DOUBLE PRECISION NOT NULL,
	tonnes_in_transit        DOUBLE PRECISION NOT NULL,
	covered_tonnes           DOUBLE PRECISION NOT NULL,
	coverage_ratio           DOUBLE PRECISION,
	days_late                DOUBLE PRECISION NOT NULL,
	expected_demurrage_days  DOUBLE PRECISION NOT NULL,
	effective_demurrage_rate DOUBLE PRECISION NOT NULL,
	demurrage_exposure_usd   DOUBLE PRECISION NOT NULL,
	contract_id              TEXT,
	contract_ambiguous       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS derived_quality_deviation (
	shipment_id         TEXT PRIMARY KEY,
	contract_id         TEXT,
	sample_count        INTEGER NOT NULL,
	avg_fe_pct          DOUBLE PRECISION NOT NULL,
	avg_moisture_pct    DOUBLE PRECISION NOT NULL,
	fe_min_pct          DOUBLE PRECISION,
	moisture_max_pct    DOUBLE PRECISION,
	quality_penalty_usd DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS derived_pricing_scenarios (
	position_id          TEXT PRIMARY KEY,
	contract_id          TEXT NOT NULL,
	customer_name        TEXT,
	product_code         TEXT NOT NULL,
	quarter              TEXT NOT NULL,
	price_type           TEXT NOT NULL,
	total_volume_t       DOUBLE PRECISION NOT NULL,
	base_realized_price  DOUBLE PRECISION,
	unit_cash_cost       DOUBLE PRECISION,
	fx_rate_quarter_avg  DOUBLE PRECISION,
	base_case_margin     DOUBLE PRECISION,
	scenario_margin      DOUBLE PRECISION,
	ebitda_impact_usd    DOUBLE PRECISION,
	cost_curve_ambiguous INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS derived_asset_risk (
	asset_id                TEXT NOT NULL,
	asset_type              TEXT,
	site                    TEXT,
	evaluation_date         DATE NOT NULL,
	utilization_pct         DOUBLE PRECISION NOT NULL,
	vibration_index         DOUBLE PRECISION NOT NULL,
	failure_prob_14d        DOUBLE PRECISION NOT NULL,
	downtime_hours_if_fail  DOUBLE PRECISION NOT NULL,
	expected_downtime_hours DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (asset_id, evaluation_date)
);

CREATE TABLE IF NOT EXISTS derived_revenue_at_risk (
	asset_id                TEXT NOT NULL,
	asset_type              TEXT,
	site                    TEXT,
	evaluation_date         DATE NOT NULL,
	failure_prob_14d        DOUBLE PRECISION NOT NULL,
	expected_downtime_hours DOUBLE PRECISION NOT NULL,
	shipments_at_risk_count INTEGER NOT NULL,
	tonnes_at_risk          DOUBLE PRECISION NOT NULL,
	revenue_at_risk_usd     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (asset_id, evaluation_date)
);

CREATE TABLE IF NOT EXISTS derived_top_risks (
	asset_id                TEXT NOT NULL,
	asset_type              TEXT,
	site                    TEXT,
	evaluation_date         DATE NOT NULL,
	failure_prob_14d        DOUBLE PRECISION NOT NULL,
	expected_downtime_hours DOUBLE PRECISION NOT NULL,
	shipments_at_risk_count INTEGER NOT NULL,
	tonnes_at_risk          DOUBLE PRECISION NOT NULL,
	revenue_at_risk_usd     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (asset_id, evaluation_date)
);

CREATE TABLE IF NOT EXISTS derived_semantic (
	record_type   TEXT NOT NULL,
	key_id        TEXT,
	date          DATE,
	site          TEXT,
	product_code  TEXT,
	customer_name TEXT,
	contract_id   TEXT,
	metric_1      DOUBLE PRECISION,
	metric_2      DOUBLE PRECISION,
	metric_3      DOUBLE PRECISION,
	metric_4      DOUBLE PRECISION,
	metric_5      DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_semantic_type ON derived_semantic(record_type);

CREATE TABLE IF NOT EXISTS derived_monthly_rollup (
	month                TEXT NOT NULL,
	product_code         TEXT NOT NULL,
	total_demurrage_usd  DOUBLE PRECISION NOT NULL,
	avg_tonnes_on_hand   DOUBLE PRECISION NOT NULL,
	vessel_loaded_tonnes DOUBLE PRECISION NOT NULL,
	vessel_count         INTEGER NOT NULL,
	PRIMARY KEY (month, product_code)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	var b strings.Builder
	for _, stream := range Streams() {
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", factTable(stream))
		for i, col := range Columns(stream) {
			if i > 0 {
				b.WriteString(",\n")
			}
			fmt.Fprintf(&b, "\t%s TEXT", col)
		}
		b.WriteString("\n);\n")
	}
	b.WriteString(postgresMigration)

	_, err := s.pool.Exec(ctx, b.String())
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InsertFacts bulk-loads raw rows through COPY.
func (s *PostgresStore) InsertFacts(ctx context.Context, stream string, rows []normalize.Record) (int, error) {
	cols := Columns(stream)
	if cols == nil {
		return 0, eris.Errorf("postgres: unknown fact stream %s", stream)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	copyRows := make([][]any, 0, len(rows))
	for _, row := range rows {
		args := make([]any, len(cols))
		for i, col := range cols {
			args[i] = row[col]
		}
		copyRows = append(copyRows, args)
	}

	n, err := db.CopyFrom(ctx, s.pool, factTable(stream), cols, copyRows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: insert %s facts", stream)
	}
	return int(n), nil
}

func (s *PostgresStore) LoadFacts(ctx context.Context) (map[string][]normalize.Record, error) {
	out := make(map[string][]normalize.Record, len(factColumns))
	for _, stream := range Streams() {
		recs, err := s.loadStream(ctx, stream)
		if err != nil {
			return nil, err
		}
		out[stream] = recs
	}
	return out, nil
}

func (s *PostgresStore) loadStream(ctx context.Context, stream string) ([]normalize.Record, error) {
	cols := Columns(stream)
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), factTable(stream))
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load %s", stream)
	}
	defer rows.Close()

	var out []normalize.Record
	for rows.Next() {
		values := make([]*string, len(cols))
		scan := make([]any, len(cols))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", stream)
		}
		rec := make(normalize.Record, len(cols))
		for i, col := range cols {
			if values[i] != nil {
				rec[col] = *values[i]
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate %s", stream)
}

func (s *PostgresStore) FactCounts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(factColumns))
	for _, stream := range Streams() {
		var n int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", factTable(stream))
		if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", stream)
		}
		out[stream] = n
	}
	return out, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, started_at, updated_at) VALUES ($1, $2, $3, $4)`,
		id, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{ID: id, Status: model.RunStatusRunning, StartedAt: now, UpdatedAt: now}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, result = $2, updated_at = $3 WHERE id = $4`,
		string(status), resultJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var status string
	var resultJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, status, result, started_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &status, &resultJSON, &r.StartedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.New("store: run not found")
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	r.Status = model.RunStatus(status)
	if len(resultJSON) > 0 {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, result, started_at, updated_at FROM runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		var resultJSON []byte
		if err := rows.Scan(&r.ID, &status, &resultJSON, &r.StartedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		if len(resultJSON) > 0 {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

// derivedInserts pairs each derived table with its columns and row builder.
type derivedInsert struct {
	table   string
	columns []string
	rows    [][]any
}

func derivedInserts(snap *model.Snapshot) []derivedInsert {
	return []derivedInsert{
		{"derived_port_inventory",
			[]string{"site", "product_code", "date", "net_tonnes_delta", "tonnes_on_hand", "avg_ship_load_14d", "days_on_hand", "index_price", "inventory_value_usd"},
			inventoryRows(snap.Inventory)},
		{"derived_vessel_coverage",
			[]string{"vessel_id", "vessel_name", "customer_name", "product_code", "site", "laycan_start_date", "laycan_end_date", "planned_tonnes", "tonnes_on_hand_at_start", "tonnes_in_transit", "covered_tonnes", "coverage_ratio", "days_late", "expected_demurrage_days", "effective_demurrage_rate", "demurrage_exposure_usd", "contract_id", "contract_ambiguous"},
			coverageRows(snap.Coverage)},
		{"derived_quality_deviation",
			[]string{"shipment_id", "contract_id", "sample_count", "avg_fe_pct", "avg_moisture_pct", "fe_min_pct", "moisture_max_pct", "quality_penalty_usd"},
			qualityRows(snap.Quality)},
		{"derived_pricing_scenarios",
			[]string{"position_id", "contract_id", "customer_name", "product_code", "quarter", "price_type", "total_volume_t", "base_realized_price", "unit_cash_cost", "fx_rate_quarter_avg", "base_case_margin", "scenario_margin", "ebitda_impact_usd", "cost_curve_ambiguous"},
			scenarioRows(snap.Scenarios)},
		{"derived_asset_risk",
			[]string{"asset_id", "asset_type", "site", "evaluation_date", "utilization_pct", "vibration_index", "failure_prob_14d", "downtime_hours_if_fail", "expected_downtime_hours"},
			riskScoreRows(snap.RiskScores)},
		{"derived_revenue_at_risk",
			[]string{"asset_id", "asset_type", "site", "evaluation_date", "failure_prob_14d", "expected_downtime_hours", "shipments_at_risk_count", "tonnes_at_risk", "revenue_at_risk_usd"},
			revenueAtRiskRows(snap.RevenueAtRisk)},
		{"derived_top_risks",
			[]string{"asset_id", "asset_type", "site", "evaluation_date", "failure_prob_14d", "expected_downtime_hours", "shipments_at_risk_count", "tonnes_at_risk", "revenue_at_risk_usd"},
			revenueAtRiskRows(snap.TopRisks)},
		{"derived_semantic",
			[]string{"record_type", "key_id", "date", "site", "product_code", "customer_name", "contract_id", "metric_1", "metric_2", "metric_3", "metric_4", "metric_5"},
			semanticRows(snap.Semantic)},
		{"derived_monthly_rollup",
			[]string{"month", "product_code", "total_demurrage_usd", "avg_tonnes_on_hand", "vessel_loaded_tonnes", "vessel_count"},
			rollupRows(snap.Rollups)},
	}
}

// PublishSnapshot replaces every derived table inside one transaction,
// bulk-loading each view through COPY.
func (s *PostgresStore) PublishSnapshot(ctx context.Context, runID string, snap *model.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin publish")
	}
	defer tx.Rollback(ctx)

	for _, ins := range derivedInserts(snap) {
		if _, err := tx.Exec(ctx, "DELETE FROM "+ins.table); err != nil {
			return eris.Wrapf(err, "postgres: clear %s", ins.table)
		}
		if _, err := db.CopyFromTx(ctx, tx, ins.table, ins.columns, ins.rows); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit publish")
}

func (s *PostgresStore) SemanticRecords(ctx context.Context, filter SemanticFilter) ([]model.SemanticRecord, error) {
	query := `SELECT record_type, key_id, date, site, product_code, customer_name, contract_id, metric_1, metric_2, metric_3, metric_4, metric_5 FROM derived_semantic WHERE true`
	args := []any{}
	argIdx := 1

	if filter.RecordType != "" {
		query += fmt.Sprintf(` AND record_type = $%d`, argIdx)
		args = append(args, filter.RecordType)
		argIdx++
	}
	if filter.Site != "" {
		query += fmt.Sprintf(` AND site = $%d`, argIdx)
		args = append(args, filter.Site)
		argIdx++
	}
	if filter.Product != "" {
		query += fmt.Sprintf(` AND product_code = $%d`, argIdx)
		args = append(args, filter.Product)
		argIdx++
	}
	if filter.Customer != "" {
		query += fmt.Sprintf(` AND customer_name = $%d`, argIdx)
		args = append(args, filter.Customer)
		argIdx++
	}
	query += ` ORDER BY record_type, key_id, date`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query semantic records")
	}
	defer rows.Close()

	var out []model.SemanticRecord
	for rows.Next() {
		var rec model.SemanticRecord
		var recordType string
		var keyID, site, product, customer, contractID *string
		var date *time.Time
		metrics := make([]*float64, 5)
		if err := rows.Scan(&recordType, &keyID, &date, &site, &product, &customer, &contractID,
			&metrics[0], &metrics[1], &metrics[2], &metrics[3], &metrics[4]); err != nil {
			return nil, eris.Wrap(err, "postgres: scan semantic record")
		}
		rec.RecordType = model.RecordType(recordType)
		rec.KeyID = deref(keyID)
		rec.Site = deref(site)
		rec.Product = deref(product)
		rec.Customer = deref(customer)
		rec.ContractID = deref(contractID)
		if date != nil {
			rec.Date = date.UTC()
		}
		rec.Metric1, rec.Metric2, rec.Metric3, rec.Metric4, rec.Metric5 =
			metrics[0], metrics[1], metrics[2], metrics[3], metrics[4]
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate semantic records")
}

// LoadSnapshot reads the complete published snapshot back.
func (s *PostgresStore) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	var err error

	if snap.Inventory, err = s.loadInventory(ctx); err != nil {
		return nil, err
	}
	if snap.Coverage, err = s.loadCoverage(ctx); err != nil {
		return nil, err
	}
	if snap.Quality, err = s.loadQuality(ctx); err != nil {
		return nil, err
	}
	if snap.Scenarios, err = s.loadScenarios(ctx); err != nil {
		return nil, err
	}
	if snap.RiskScores, err = s.loadRiskScores(ctx); err != nil {
		return nil, err
	}
	if snap.RevenueAtRisk, err = s.loadRevenueAtRisk(ctx, "derived_revenue_at_risk"); err != nil {
		return nil, err
	}
	if snap.TopRisks, err = s.loadRevenueAtRisk(ctx, "derived_top_risks"); err != nil {
		return nil, err
	}
	if snap.Semantic, err = s.SemanticRecords(ctx, SemanticFilter{}); err != nil {
		return nil, err
	}
	if snap.Rollups, err = s.loadRollups(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *PostgresStore) loadInventory(ctx context.Context) ([]model.PortInventorySnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT site, product_code, date, net_tonnes_delta, tonnes_on_hand, avg_ship_load_14d, days_on_hand, index_price, inventory_value_usd
		 FROM derived_port_inventory ORDER BY site, product_code, date`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load inventory")
	}
	defer rows.Close()

	var out []model.PortInventorySnapshot
	for rows.Next() {
		var snap model.PortInventorySnapshot
		var date time.Time
		if err := rows.Scan(&snap.Site, &snap.Product, &date, &snap.NetDelta, &snap.TonnesOnHand,
			&snap.AvgShipLoad14d, &snap.DaysOnHand, &snap.IndexPrice, &snap.InventoryValue); err != nil {
			return nil, eris.Wrap(err, "postgres: scan inventory")
		}
		snap.Date = date.UTC()
		out = append(out, snap)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate inventory")
}

func (s *PostgresStore) loadCoverage(ctx context.Context) ([]model.VesselCoverage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT vessel_id, vessel_name, customer_name, product_code, site, laycan_start_date, laycan_end_date, planned_tonnes, tonnes_on_hand_at_start, tonnes_in_transit, covered_tonnes, coverage_ratio, days_late, expected_demurrage_days, effective_demurrage_rate, demurrage_exposure_usd, contract_id, contract_ambiguous
		 FROM derived_vessel_coverage ORDER BY vessel_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load coverage")
	}
	defer rows.Close()

	var out []model.VesselCoverage
	for rows.Next() {
		var c model.VesselCoverage
		var start, end time.Time
		var contractID *string
		var ambiguous int
		if err := rows.Scan(&c.VesselID, &c.VesselName, &c.Customer, &c.Product, &c.Site, &start, &end,
			&c.PlannedTonnes, &c.TonnesOnHandAtStart, &c.TonnesInTransit, &c.CoveredTonnes, &c.CoverageRatio,
			&c.DaysLate, &c.ExpectedDemurrageDays, &c.DemurrageRate, &c.DemurrageExposureUSD,
			&contractID, &ambiguous); err != nil {
			return nil, eris.Wrap(err, "postgres: scan coverage")
		}
		c.LaycanStart = start.UTC()
		c.LaycanEnd = end.UTC()
		c.ContractID = deref(contractID)
		c.ContractAmbiguous = ambiguous != 0
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate coverage")
}

func (s *PostgresStore) loadQuality(ctx context.Context) ([]model.QualityDeviation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT shipment_id, contract_id, sample_count, avg_fe_pct, avg_moisture_pct, fe_min_pct, moisture_max_pct, quality_penalty_usd
		 FROM derived_quality_deviation ORDER BY shipment_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load quality")
	}
	defer rows.Close()

	var out []model.QualityDeviation
	for rows.Next() {
		var q model.QualityDeviation
		var contractID *string
		if err := rows.Scan(&q.ShipmentID, &contractID, &q.SampleCount, &q.AvgFePct, &q.AvgMoisturePct,
			&q.FeMinPct, &q.MoistureMaxPct, &q.PenaltyUSD); err != nil {
			return nil, eris.Wrap(err, "postgres: scan quality")
		}
		q.ContractID = deref(contractID)
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate quality")
}

func (s *PostgresStore) loadScenarios(ctx context.Context) ([]model.ContractFinancialScenario, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT position_id, contract_id, customer_name, product_code, quarter, price_type, total_volume_t, base_realized_price, unit_cash_cost, fx_rate_quarter_avg, base_case_margin, scenario_margin, ebitda_impact_usd, cost_curve_ambiguous
		 FROM derived_pricing_scenarios ORDER BY position_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load scenarios")
	}
	defer rows.Close()

	var out []model.ContractFinancialScenario
	for rows.Next() {
		var sc model.ContractFinancialScenario
		var customer *string
		var ambiguous int
		if err := rows.Scan(&sc.PositionID, &sc.ContractID, &customer, &sc.Product, &sc.Quarter,
			&sc.PriceType, &sc.TotalVolume, &sc.BaseRealizedPrice, &sc.UnitCashCost, &sc.FxRateQuarterAvg,
			&sc.BaseCaseMargin, &sc.ScenarioMargin, &sc.EBITDAImpactUSD, &ambiguous); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scenario")
		}
		sc.Customer = deref(customer)
		sc.CostCurveAmbiguous = ambiguous != 0
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate scenarios")
}

func (s *PostgresStore) loadRiskScores(ctx context.Context) ([]model.AssetRiskScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT asset_id, asset_type, site, evaluation_date, utilization_pct, vibration_index, failure_prob_14d, downtime_hours_if_fail, expected_downtime_hours
		 FROM derived_asset_risk ORDER BY asset_id, evaluation_date`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load risk scores")
	}
	defer rows.Close()

	var out []model.AssetRiskScore
	for rows.Next() {
		var r model.AssetRiskScore
		var assetType, site *string
		var date time.Time
		if err := rows.Scan(&r.AssetID, &assetType, &site, &date, &r.UtilizationPct, &r.VibrationIndex,
			&r.FailureProb14d, &r.DowntimeHoursIfFail, &r.ExpectedDowntime); err != nil {
			return nil, eris.Wrap(err, "postgres: scan risk score")
		}
		r.AssetType = deref(assetType)
		r.Site = deref(site)
		r.EvaluationDate = date.UTC()
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate risk scores")
}

func (s *PostgresStore) loadRevenueAtRisk(ctx context.Context, table string) ([]model.RevenueAtRisk, error) {
	query := fmt.Sprintf(
		`SELECT asset_id, asset_type, site, evaluation_date, failure_prob_14d, expected_downtime_hours, shipments_at_risk_count, tonnes_at_risk, revenue_at_risk_usd
		 FROM %s ORDER BY evaluation_date, revenue_at_risk_usd DESC, asset_id`, table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load %s", table)
	}
	defer rows.Close()

	var out []model.RevenueAtRisk
	for rows.Next() {
		var r model.RevenueAtRisk
		var assetType, site *string
		var date time.Time
		if err := rows.Scan(&r.AssetID, &assetType, &site, &date, &r.FailureProb14d, &r.ExpectedDowntime,
			&r.ShipmentsAtRisk, &r.TonnesAtRisk, &r.RevenueAtRiskUSD); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", table)
		}
		r.AssetType = deref(assetType)
		r.Site = deref(site)
		r.EvaluationDate = date.UTC()
		out = append(out, r)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate %s", table)
}

func (s *PostgresStore) loadRollups(ctx context.Context) ([]model.MonthlyRollup, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT month, product_code, total_demurrage_usd, avg_tonnes_on_hand, vessel_loaded_tonnes, vessel_count
		 FROM derived_monthly_rollup ORDER BY month, product_code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load rollups")
	}
	defer rows.Close()

	var out []model.MonthlyRollup
	for rows.Next() {
		var r model.MonthlyRollup
		if err := rows.Scan(&r.Month, &r.Product, &r.TotalDemurrageUSD, &r.AvgTonnesOnHand,
			&r.VesselLoadedTonnes, &r.VesselCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rollup")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate rollups")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
