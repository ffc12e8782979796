package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mohammad-safakhou/gamescout/internal/alerts"
)

// Store wraps the Postgres connection. It implements the persistence
// collaborator for the alert matcher and the seen-items ledger for ad hoc
// search.
type Store struct {
	DB *sql.DB
}

// New connects using DATABASE_URL or the individual POSTGRES_* variables.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN connects to the given Postgres DSN and verifies connectivity.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.DB.Close() }

// CreateAlert inserts a new alert and returns its ID.
func (s *Store) CreateAlert(ctx context.Context, gameTitle, platform string, maxPrice decimal.Decimal) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO alerts (game_title, platform, max_price, is_active)
VALUES ($1, NULLIF($2, ''), $3, true)
RETURNING id`, gameTitle, platform, maxPrice).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create alert: %w", err)
	}
	return id, nil
}

// ListActiveAlerts returns all alerts currently enabled, oldest first.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]alerts.Alert, error) {
	return s.listAlerts(ctx, true)
}

// ListAlerts returns all alerts regardless of state.
func (s *Store) ListAlerts(ctx context.Context) ([]alerts.Alert, error) {
	return s.listAlerts(ctx, false)
}

func (s *Store) listAlerts(ctx context.Context, activeOnly bool) ([]alerts.Alert, error) {
	q := `
SELECT id, game_title, COALESCE(platform, ''), max_price, is_active, triggered_count, triggered_at
FROM alerts`
	if activeOnly {
		q += `
WHERE is_active = true`
	}
	q += `
ORDER BY id`

	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []alerts.Alert
	for rows.Next() {
		var a alerts.Alert
		var maxPrice string
		var triggeredAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.GameTitle, &a.Platform, &maxPrice, &a.IsActive, &a.TriggeredCount, &triggeredAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if a.MaxPrice, err = decimal.NewFromString(maxPrice); err != nil {
			return nil, fmt.Errorf("alert %d: bad max_price %q: %w", a.ID, maxPrice, err)
		}
		if triggeredAt.Valid {
			t := triggeredAt.Time
			a.TriggeredAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetAlertActive toggles an alert.
func (s *Store) SetAlertActive(ctx context.Context, id int64, active bool) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE alerts SET is_active = $2 WHERE id = $1`, id, active)
	return err
}

// InsertMatch records an (alert, item) match with conflict-ignore semantics
// on the primary key. The boolean reports whether a new row was inserted;
// false means this pairing was already recorded by an earlier sweep, which
// is what keeps repeated scheduled runs idempotent.
func (s *Store) InsertMatch(ctx context.Context, alertID, itemID int64, reason string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
INSERT INTO alert_matches (alert_id, item_id, match_reason)
VALUES ($1, $2, $3)
ON CONFLICT (alert_id, item_id) DO NOTHING`, alertID, itemID, reason)
	if err != nil {
		return false, fmt.Errorf("insert alert match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkAlertTriggered bumps the alert's trigger counter and timestamp.
// Called once per newly inserted match.
func (s *Store) MarkAlertTriggered(ctx context.Context, alertID int64, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE alerts
SET triggered_count = triggered_count + 1, triggered_at = $2
WHERE id = $1`, alertID, at)
	if err != nil {
		return fmt.Errorf("mark alert triggered: %w", err)
	}
	return nil
}

// MissingItemIDs returns the subset of ids that have not been recorded in
// the seen-items ledger. Used by ad hoc search to avoid re-surfacing
// listings the user already saw.
func (s *Store) MissingItemIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT candidate
FROM unnest($1::bigint[]) AS candidate
WHERE candidate NOT IN (SELECT item_id FROM seen_items)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("missing item ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MarkItemsSeen adds ids to the seen-items ledger, ignoring duplicates.
func (s *Store) MarkItemsSeen(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO seen_items (item_id)
SELECT unnest($1::bigint[])
ON CONFLICT (item_id) DO NOTHING`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark items seen: %w", err)
	}
	return nil
}

// CreateSweep records the start of a sweep run.
func (s *Store) CreateSweep(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO sweeps (run_id, started_at, status)
VALUES ($1, $2, 'running')
ON CONFLICT (run_id) DO NOTHING`, runID, startedAt)
	if err != nil {
		return fmt.Errorf("create sweep: %w", err)
	}
	return nil
}

// FinishSweep stores the outcome of a sweep run, including the per-alert
// error detail JSON for partially successful runs.
func (s *Store) FinishSweep(ctx context.Context, summary *alerts.SweepSummary, detail []byte) error {
	status := "succeeded"
	if len(summary.Errors) > 0 {
		status = "partial"
	}
	// lib/pq would send []byte as bytea; jsonb needs text.
	detailJSON := string(detail)
	if detailJSON == "" {
		detailJSON = "null"
	}
	_, err := s.DB.ExecContext(ctx, `
UPDATE sweeps
SET finished_at = $2,
    status = $3,
    alerts_checked = $4,
    items_checked = $5,
    matches_found = $6,
    detail = $7
WHERE run_id = $1`,
		summary.RunID, summary.FinishedAt, status,
		summary.AlertsChecked, summary.ItemsChecked, len(summary.Matches), detailJSON)
	if err != nil {
		return fmt.Errorf("finish sweep: %w", err)
	}
	return nil
}
