package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mega-minerals/oreflow/internal/model"
	"github.com/mega-minerals/oreflow/internal/normalize"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteRunsMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

const sqliteDerivedMigration = `
CREATE TABLE IF NOT EXISTS derived_port_inventory (
	site                TEXT NOT NULL,
	product_code        TEXT NOT NULL,
	date                TEXT NOT NULL,
	net_tonnes_delta    REAL NOT NULL,
	tonnes_on_hand      REAL NOT NULL,
	avg_ship_load_14d   REAL NOT NULL,
	days_on_hand        REAL,
	index_price         REAL,
	inventory_value_usd REAL,
	PRIMARY KEY (site, product_code, date)
);

CREATE TABLE IF NOT EXISTS derived_vessel_coverage (
	vessel_id                TEXT PRIMARY KEY,
	vessel_name              TEXT NOT NULL,
	customer_name            TEXT NOT NULL,
	product_code             TEXT NOT NULL,
	site                     TEXT NOT NULL,
	laycan_start_date        TEXT NOT NULL,
	laycan_end_date          TEXT NOT NULL,
	planned_tonnes           REAL NOT NULL,
	tonnes_on_hand_at_start  REAL NOT NULL,
	tonnes_in_transit        REAL NOT NULL,
	covered_tonnes           REAL NOT NULL,
	coverage_ratio           REAL,
	days_late                REAL NOT NULL,
	expected_demurrage_days  REAL NOT NULL,
	effective_demurrage_rate REAL NOT NULL,
	demurrage_exposure_usd   REAL NOT NULL,
	contract_id              TEXT,
	contract_ambiguous       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS derived_quality_deviation (
	shipment_id         TEXT PRIMARY KEY,
	contract_id         TEXT,
	sample_count        INTEGER NOT NULL,
	avg_fe_pct          REAL NOT NULL,
	avg_moisture_pct    REAL NOT NULL,
	fe_min_pct          REAL,
	moisture_max_pct    REAL,
	quality_penalty_usd REAL
);

CREATE TABLE IF NOT EXISTS derived_pricing_scenarios (
	position_id          TEXT PRIMARY KEY,
	contract_id          TEXT NOT NULL,
	customer_name        TEXT,
	product_code         TEXT NOT NULL,
	quarter              TEXT NOT NULL,
	price_type           TEXT NOT NULL,
	total_volume_t       REAL NOT NULL,
	base_realized_price  REAL,
	unit_cash_cost       REAL,
	fx_rate_quarter_avg  REAL,
	base_case_margin     REAL,
	scenario_margin      REAL,
	ebitda_impact_usd    REAL,
	cost_curve_ambiguous INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS derived_asset_risk (
	asset_id               TEXT NOT NULL,
	asset_type             TEXT,
	site                   TEXT,
	evaluation_date        TEXT NOT NULL,
	utilization_pct        REAL NOT NULL,
	vibration_index        REAL NOT NULL,
	failure_prob_14d       REAL NOT NULL,
	downtime_hours_if_fail REAL NOT NULL,
	expected_downtime_hours REAL NOT NULL,
	PRIMARY KEY (asset_id, evaluation_date)
);

CREATE TABLE IF NOT EXISTS derived_revenue_at_risk (
	asset_id                TEXT NOT NULL,
	asset_type              TEXT,
	site                    TEXT,
	evaluation_date         TEXT NOT NULL,
	failure_prob_14d        REAL NOT NULL,
	expected_downtime_hours REAL NOT NULL,
	shipments_at_risk_count INTEGER NOT NULL,
	tonnes_at_risk          REAL NOT NULL,
	revenue_at_risk_usd     REAL NOT NULL,
	PRIMARY KEY (asset_id, evaluation_date)
);

CREATE TABLE IF NOT EXISTS derived_top_risks (
	asset_id                TEXT NOT NULL,
	asset_type              TEXT,
	site                    TEXT,
	evaluation_date         TEXT NOT NULL,
	failure_prob_14d        REAL NOT NULL,
	expected_downtime_hours REAL NOT NULL,
	shipments_at_risk_count INTEGER NOT NULL,
	tonnes_at_risk          REAL NOT NULL,
	revenue_at_risk_usd     REAL NOT NULL,
	PRIMARY KEY (asset_id, evaluation_date)
);

CREATE TABLE IF NOT EXISTS derived_semantic (
	record_type   TEXT NOT NULL,
	key_id        TEXT,
	date          TEXT,
	site          TEXT,
	product_code  TEXT,
	customer_name TEXT,
	contract_id   TEXT,
	metric_1      REAL,
	metric_2      REAL,
	metric_3      REAL,
	metric_4      REAL,
	metric_5      REAL
);
CREATE INDEX IF NOT EXISTS idx_semantic_type ON derived_semantic(record_type);

CREATE TABLE IF NOT EXISTS derived_monthly_rollup (
	month                TEXT NOT NULL,
	product_code         TEXT NOT NULL,
	total_demurrage_usd  REAL NOT NULL,
	avg_tonnes_on_hand   REAL NOT NULL,
	vessel_loaded_tonnes REAL NOT NULL,
	vessel_count         INTEGER NOT NULL,
	PRIMARY KEY (month, product_code)
);
`

// Migrate creates the raw fact tables, run bookkeeping, and derived-view
// tables. Fact tables store the delivered values verbatim as TEXT; typing
// happens in the pipeline's normalization node.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
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
	b.WriteString(sqliteRunsMigration)
	b.WriteString(sqliteDerivedMigration)

	_, err := s.db.ExecContext(ctx, b.String())
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertFacts appends raw rows to a stream's fact table.
func (s *SQLiteStore) InsertFacts(ctx context.Context, stream string, rows []normalize.Record) (int, error) {
	cols := Columns(stream)
	if cols == nil {
		return 0, eris.Errorf("sqlite: unknown fact stream %s", stream)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert facts")
	}
	defer tx.Rollback()

	placeholders := "?" + strings.Repeat(", ?", len(cols)-1)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		factTable(stream), strings.Join(cols, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert facts")
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(cols))
		for i, col := range cols {
			args[i] = row[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert %s row", stream)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert facts")
	}
	return len(rows), nil
}

// LoadFacts reads every fact stream back as raw records.
func (s *SQLiteStore) LoadFacts(ctx context.Context) (map[string][]normalize.Record, error) {
	out := make(map[string][]normalize.Record, len(factColumns))
	for _, stream := range Streams() {
		rows, err := s.loadStream(ctx, stream)
		if err != nil {
			return nil, err
		}
		out[stream] = rows
	}
	return out, nil
}

func (s *SQLiteStore) loadStream(ctx context.Context, stream string) ([]normalize.Record, error) {
	cols := Columns(stream)
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), factTable(stream))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load %s", stream)
	}
	defer rows.Close()

	var out []normalize.Record
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		scan := make([]any, len(cols))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", stream)
		}
		rec := make(normalize.Record, len(cols))
		for i, col := range cols {
			if values[i].Valid {
				rec[col] = values[i].String
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate %s", stream)
}

// FactCounts reports the row count per fact stream.
func (s *SQLiteStore) FactCounts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(factColumns))
	for _, stream := range Streams() {
		var n int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", factTable(stream))
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", stream)
		}
		out[stream] = n
	}
	return out, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{ID: id, Status: model.RunStatusRunning, StartedAt: now, UpdatedAt: now}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run result")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, result = ?, updated_at = ? WHERE id = ?`,
		string(status), string(resultJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, result, started_at, updated_at FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, result, started_at, updated_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var status string
	var result sql.NullString
	if err := row.Scan(&run.ID, &status, &result, &run.StartedAt, &run.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.New("store: run not found")
		}
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	run.Status = model.RunStatus(status)
	if result.Valid && result.String != "" {
		var rr model.RunResult
		if err := json.Unmarshal([]byte(result.String), &rr); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run result")
		}
		run.Result = &rr
	}
	return &run, nil
}

// PublishSnapshot replaces every derived table inside one transaction.
// A failed publish rolls back, leaving the previous snapshot intact.
func (s *SQLiteStore) PublishSnapshot(ctx context.Context, runID string, snap *model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin publish")
	}
	defer tx.Rollback()

	tables := []string{
		"derived_port_inventory", "derived_vessel_coverage", "derived_quality_deviation",
		"derived_pricing_scenarios", "derived_asset_risk", "derived_revenue_at_risk",
		"derived_top_risks", "derived_semantic", "derived_monthly_rollup",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s", table)
		}
	}

	exec := func(query string, rows [][]any) error {
		if len(rows) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare publish insert")
		}
		defer stmt.Close()
		for _, args := range rows {
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return eris.Wrap(err, "sqlite: publish insert")
			}
		}
		return nil
	}

	if err := exec(
		`INSERT INTO derived_port_inventory (site, product_code, date, net_tonnes_delta, tonnes_on_hand, avg_ship_load_14d, days_on_hand, index_price, inventory_value_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inventoryRows(snap.Inventory)); err != nil {
		return err
	}
	if err := exec(
		`INSERT INTO derived_vessel_coverage (vessel_id, vessel_name, customer_name, product_code, site, laycan_start_date, laycan_end_date, planned_tonnes, tonnes_on_hand_at_start, tonnes_in_transit, covered_tonnes, coverage_ratio, days_late, expected_demurrage_days, effective_demurrage_rate, demurrage_exposure_usd, contract_id, contract_ambiguous)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		coverageRows(snap.Coverage)); err != nil {
		return err
	}
	if err := exec(
		`INSERT INTO derived_quality_deviation (shipment_id, contract_id, sample_count, avg_fe_pct, avg_moisture_pct, fe_min_pct, moisture_max_pct, quality_penalty_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		qualityRows(snap.Quality)); err != nil {
		return err
	}
	if err := exec(
		`INSERT INTO derived_pricing_scenarios (position_id, contract_id, customer_name, product_code, quarter, price_type, total_volume_t, base_realized_price, unit_cash_cost, fx_rate_quarter_avg, base_case_margin, scenario_margin, ebitda_impact_usd, cost_curve_ambiguous)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scenarioRows(snap.Scenarios)); err != nil {
		return err
	}
	if err := exec(
		`INSERT INTO derived_asset_risk (asset_id, asset_type, site, evaluation_date, utilization_pct, vibration_index, failure_prob_14d, downtime_hours_if_fail, expected_downtime_hours)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		riskScoreRows(snap.RiskScores)); err != nil {
		return err
	}
	if err := exec(
		`INSERT INTO derived_revenue_at_risk (asset_id, asset_type, site, evaluation_date, failure_prob_14d, expected_downtime_hours, shipments_at_risk_count, tonnes_at_risk, revenue_at_risk_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		revenueAtRiskRows(snap.RevenueAtRisk)); err != nil {
		return err
	}
	if err := exec(
		`INSERT INTO derived_top_risks (asset_id, asset_type, site, evaluation_date, failure_prob_14d, expected_downtime_hours, shipments_at_risk_count, tonnes_at_risk, revenue_at_risk_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		revenueAtRiskRows(snap.TopRisks)); err != nil {
		return err
	}
	if err := exec(
		`INSERT INTO derived_semantic (record_type, key_id, date, site, product_code, customer_name, contract_id, metric_1, metric_2, metric_3, metric_4, metric_5)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		semanticRows(snap.Semantic)); err != nil {
		return err
	}
	if err := exec(
		`INSERT INTO derived_monthly_rollup (month, product_code, total_demurrage_usd, avg_tonnes_on_hand, vessel_loaded_tonnes, vessel_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rollupRows(snap.Rollups)); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit publish")
}

// SemanticRecords queries the published semantic layer.
func (s *SQLiteStore) SemanticRecords(ctx context.Context, filter SemanticFilter) ([]model.SemanticRecord, error) {
	query := `SELECT record_type, key_id, date, site, product_code, customer_name, contract_id, metric_1, metric_2, metric_3, metric_4, metric_5 FROM derived_semantic`
	var conds []string
	var args []any
	if filter.RecordType != "" {
		conds = append(conds, "record_type = ?")
		args = append(args, filter.RecordType)
	}
	if filter.Site != "" {
		conds = append(conds, "site = ?")
		args = append(args, filter.Site)
	}
	if filter.Product != "" {
		conds = append(conds, "product_code = ?")
		args = append(args, filter.Product)
	}
	if filter.Customer != "" {
		conds = append(conds, "customer_name = ?")
		args = append(args, filter.Customer)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY record_type, key_id, date"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query semantic records")
	}
	defer rows.Close()

	var out []model.SemanticRecord
	for rows.Next() {
		var rec model.SemanticRecord
		var recordType string
		var keyID, date, site, product, customer, contractID sql.NullString
		metrics := make([]sql.NullFloat64, 5)
		if err := rows.Scan(&recordType, &keyID, &date, &site, &product, &customer, &contractID,
			&metrics[0], &metrics[1], &metrics[2], &metrics[3], &metrics[4]); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan semantic record")
		}
		rec.RecordType = model.RecordType(recordType)
		rec.KeyID = keyID.String
		rec.Site = site.String
		rec.Product = product.String
		rec.Customer = customer.String
		rec.ContractID = contractID.String
		if date.Valid && date.String != "" {
			d, err := time.Parse("2006-01-02", date.String)
			if err != nil {
				return nil, eris.Wrap(err, "sqlite: parse semantic date")
			}
			rec.Date = d.UTC()
		}
		slots := []**float64{&rec.Metric1, &rec.Metric2, &rec.Metric3, &rec.Metric4, &rec.Metric5}
		for i, m := range metrics {
			if m.Valid {
				*slots[i] = model.Float(m.Float64)
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate semantic records")
}

// LoadSnapshot reads the complete published snapshot back. Used by the
// export and serve surfaces; counters are not persisted per view.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
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

func (s *SQLiteStore) loadInventory(ctx context.Context) ([]model.PortInventorySnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT site, product_code, date, net_tonnes_delta, tonnes_on_hand, avg_ship_load_14d, days_on_hand, index_price, inventory_value_usd
		 FROM derived_port_inventory ORDER BY site, product_code, date`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load inventory")
	}
	defer rows.Close()

	var out []model.PortInventorySnapshot
	for rows.Next() {
		var snap model.PortInventorySnapshot
		var date string
		var daysOnHand, indexPrice, value sql.NullFloat64
		if err := rows.Scan(&snap.Site, &snap.Product, &date, &snap.NetDelta, &snap.TonnesOnHand,
			&snap.AvgShipLoad14d, &daysOnHand, &indexPrice, &value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan inventory")
		}
		if snap.Date, err = parseDay(date); err != nil {
			return nil, err
		}
		snap.DaysOnHand = nullFloat(daysOnHand)
		snap.IndexPrice = nullFloat(indexPrice)
		snap.InventoryValue = nullFloat(value)
		out = append(out, snap)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate inventory")
}

func (s *SQLiteStore) loadCoverage(ctx context.Context) ([]model.VesselCoverage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vessel_id, vessel_name, customer_name, product_code, site, laycan_start_date, laycan_end_date, planned_tonnes, tonnes_on_hand_at_start, tonnes_in_transit, covered_tonnes, coverage_ratio, days_late, expected_demurrage_days, effective_demurrage_rate, demurrage_exposure_usd, contract_id, contract_ambiguous
		 FROM derived_vessel_coverage ORDER BY vessel_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load coverage")
	}
	defer rows.Close()

	var out []model.VesselCoverage
	for rows.Next() {
		var c model.VesselCoverage
		var start, end string
		var ratio sql.NullFloat64
		var contractID sql.NullString
		var ambiguous int
		if err := rows.Scan(&c.VesselID, &c.VesselName, &c.Customer, &c.Product, &c.Site, &start, &end,
			&c.PlannedTonnes, &c.TonnesOnHandAtStart, &c.TonnesInTransit, &c.CoveredTonnes, &ratio,
			&c.DaysLate, &c.ExpectedDemurrageDays, &c.DemurrageRate, &c.DemurrageExposureUSD,
			&contractID, &ambiguous); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan coverage")
		}
		if c.LaycanStart, err = parseDay(start); err != nil {
			return nil, err
		}
		if c.LaycanEnd, err = parseDay(end); err != nil {
			return nil, err
		}
		c.CoverageRatio = nullFloat(ratio)
		c.ContractID = contractID.String
		c.ContractAmbiguous = ambiguous != 0
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate coverage")
}

func (s *SQLiteStore) loadQuality(ctx context.Context) ([]model.QualityDeviation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT shipment_id, contract_id, sample_count, avg_fe_pct, avg_moisture_pct, fe_min_pct, moisture_max_pct, quality_penalty_usd
		 FROM derived_quality_deviation ORDER BY shipment_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load quality")
	}
	defer rows.Close()

	var out []model.QualityDeviation
	for rows.Next() {
		var q model.QualityDeviation
		var contractID sql.NullString
		var feMin, moistureMax, penalty sql.NullFloat64
		if err := rows.Scan(&q.ShipmentID, &contractID, &q.SampleCount, &q.AvgFePct, &q.AvgMoisturePct,
			&feMin, &moistureMax, &penalty); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan quality")
		}
		q.ContractID = contractID.String
		q.FeMinPct = nullFloat(feMin)
		q.MoistureMaxPct = nullFloat(moistureMax)
		q.PenaltyUSD = nullFloat(penalty)
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate quality")
}

func (s *SQLiteStore) loadScenarios(ctx context.Context) ([]model.ContractFinancialScenario, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position_id, contract_id, customer_name, product_code, quarter, price_type, total_volume_t, base_realized_price, unit_cash_cost, fx_rate_quarter_avg, base_case_margin, scenario_margin, ebitda_impact_usd, cost_curve_ambiguous
		 FROM derived_pricing_scenarios ORDER BY position_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load scenarios")
	}
	defer rows.Close()

	var out []model.ContractFinancialScenario
	for rows.Next() {
		var sc model.ContractFinancialScenario
		var customer sql.NullString
		var price, cost, fx, base, scenario, ebitda sql.NullFloat64
		var ambiguous int
		if err := rows.Scan(&sc.PositionID, &sc.ContractID, &customer, &sc.Product, &sc.Quarter,
			&sc.PriceType, &sc.TotalVolume, &price, &cost, &fx, &base, &scenario, &ebitda, &ambiguous); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scenario")
		}
		sc.Customer = customer.String
		sc.BaseRealizedPrice = nullFloat(price)
		sc.UnitCashCost = nullFloat(cost)
		sc.FxRateQuarterAvg = nullFloat(fx)
		sc.BaseCaseMargin = nullFloat(base)
		sc.ScenarioMargin = nullFloat(scenario)
		sc.EBITDAImpactUSD = nullFloat(ebitda)
		sc.CostCurveAmbiguous = ambiguous != 0
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate scenarios")
}

func (s *SQLiteStore) loadRiskScores(ctx context.Context) ([]model.AssetRiskScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, asset_type, site, evaluation_date, utilization_pct, vibration_index, failure_prob_14d, downtime_hours_if_fail, expected_downtime_hours
		 FROM derived_asset_risk ORDER BY asset_id, evaluation_date`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load risk scores")
	}
	defer rows.Close()

	var out []model.AssetRiskScore
	for rows.Next() {
		var r model.AssetRiskScore
		var assetType, site sql.NullString
		var date string
		if err := rows.Scan(&r.AssetID, &assetType, &site, &date, &r.UtilizationPct, &r.VibrationIndex,
			&r.FailureProb14d, &r.DowntimeHoursIfFail, &r.ExpectedDowntime); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan risk score")
		}
		r.AssetType = assetType.String
		r.Site = site.String
		if r.EvaluationDate, err = parseDay(date); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate risk scores")
}

func (s *SQLiteStore) loadRevenueAtRisk(ctx context.Context, table string) ([]model.RevenueAtRisk, error) {
	query := fmt.Sprintf(
		`SELECT asset_id, asset_type, site, evaluation_date, failure_prob_14d, expected_downtime_hours, shipments_at_risk_count, tonnes_at_risk, revenue_at_risk_usd
		 FROM %s ORDER BY evaluation_date, revenue_at_risk_usd DESC, asset_id`, table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load %s", table)
	}
	defer rows.Close()

	var out []model.RevenueAtRisk
	for rows.Next() {
		var r model.RevenueAtRisk
		var assetType, site sql.NullString
		var date string
		if err := rows.Scan(&r.AssetID, &assetType, &site, &date, &r.FailureProb14d, &r.ExpectedDowntime,
			&r.ShipmentsAtRisk, &r.TonnesAtRisk, &r.RevenueAtRiskUSD); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		r.AssetType = assetType.String
		r.Site = site.String
		if r.EvaluationDate, err = parseDay(date); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate %s", table)
}

func (s *SQLiteStore) loadRollups(ctx context.Context) ([]model.MonthlyRollup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT month, product_code, total_demurrage_usd, avg_tonnes_on_hand, vessel_loaded_tonnes, vessel_count
		 FROM derived_monthly_rollup ORDER BY month, product_code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load rollups")
	}
	defer rows.Close()

	var out []model.MonthlyRollup
	for rows.Next() {
		var r model.MonthlyRollup
		if err := rows.Scan(&r.Month, &r.Product, &r.TotalDemurrageUSD, &r.AvgTonnesOnHand,
			&r.VesselLoadedTonnes, &r.VesselCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rollup")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate rollups")
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return model.Float(v.Float64)
}

func parseDay(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "store: parse date %q", s)
	}
	return d.UTC(), nil
}

func fmtDay(t time.Time) string { return t.UTC().Format("2006-01-02") }
