package store_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/gamescout/internal/alerts"
	"github.com/mohammad-safakhou/gamescout/internal/server"
	"github.com/mohammad-safakhou/gamescout/internal/store"
)

func startPostgres(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "gamescout",
			"POSTGRES_PASSWORD": "gamescout",
			"POSTGRES_DB":       "gamescout",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(1).WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start postgres: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := pg.Host(ctx)
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get host: %v", err)
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", "gamescout", "gamescout", host, port.Port(), "gamescout")
	return pg, dsn
}

func findMigrationsDir(t *testing.T) string {
	t.Helper()
	cwd, _ := os.Getwd()
	for i := 0; i < 6; i++ {
		candidate := filepath.Join(cwd, "migrations")
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return "file://" + candidate
		}
		cwd = filepath.Dir(cwd)
	}
	t.Fatalf("could not locate migrations directory from test cwd")
	return ""
}

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pg, dsn := startPostgres(t, ctx)
	defer func() { _ = pg.Terminate(ctx) }()

	migDir := findMigrationsDir(t)
	var migErr error
	for i := 0; i < 6; i++ {
		migErr = server.Migrate(migDir, dsn, "up", 0)
		if migErr == nil {
			break
		}
		time.Sleep(300 * time.Millisecond)
	}
	if migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer st.Close()

	maxPrice, _ := decimal.NewFromString("39.99")
	alertID, err := st.CreateAlert(ctx, "Dragon Quest XI", "switch", maxPrice)
	if err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	if _, err := st.CreateAlert(ctx, "Celeste", "", decimal.NewFromInt(15)); err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}

	active, err := st.ListActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ListActiveAlerts: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d active alerts; want 2", len(active))
	}
	if active[0].ID != alertID || active[0].GameTitle != "Dragon Quest XI" ||
		active[0].Platform != "switch" || !active[0].MaxPrice.Equal(maxPrice) {
		t.Fatalf("alert round trip mismatch: %+v", active[0])
	}
	if active[1].Platform != "" {
		t.Fatalf("empty platform must survive as empty, got %q", active[1].Platform)
	}

	// Deactivation removes the alert from the active list but not the table.
	if err := st.SetAlertActive(ctx, active[1].ID, false); err != nil {
		t.Fatalf("SetAlertActive: %v", err)
	}
	active, err = st.ListActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ListActiveAlerts: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("got %d active alerts after deactivation; want 1", len(active))
	}
	all, err := st.ListAlerts(ctx)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d alerts total; want 2", len(all))
	}

	// Match insertion is idempotent per (alert, item).
	inserted, err := st.InsertMatch(ctx, alertID, 1001, "price 35.00 <= 39.99")
	if err != nil {
		t.Fatalf("InsertMatch: %v", err)
	}
	if !inserted {
		t.Fatalf("first InsertMatch must report a new row")
	}
	inserted, err = st.InsertMatch(ctx, alertID, 1001, "price 35.00 <= 39.99")
	if err != nil {
		t.Fatalf("InsertMatch repeat: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate InsertMatch must report no new row")
	}

	now := time.Now().UTC()
	if err := st.MarkAlertTriggered(ctx, alertID, now); err != nil {
		t.Fatalf("MarkAlertTriggered: %v", err)
	}
	active, err = st.ListActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ListActiveAlerts: %v", err)
	}
	if active[0].TriggeredCount != 1 || active[0].TriggeredAt == nil {
		t.Fatalf("trigger bookkeeping not updated: %+v", active[0])
	}

	// Seen-items ledger.
	missing, err := st.MissingItemIDs(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("MissingItemIDs: %v", err)
	}
	if len(missing) != 3 {
		t.Fatalf("fresh ids reported seen: %v", missing)
	}
	if err := st.MarkItemsSeen(ctx, []int64{1, 3}); err != nil {
		t.Fatalf("MarkItemsSeen: %v", err)
	}
	if err := st.MarkItemsSeen(ctx, []int64{1}); err != nil {
		t.Fatalf("MarkItemsSeen repeat must be a no-op: %v", err)
	}
	missing, err = st.MissingItemIDs(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("MissingItemIDs: %v", err)
	}
	if len(missing) != 1 || missing[0] != 2 {
		t.Fatalf("missing = %v; want [2]", missing)
	}

	// Sweep run bookkeeping.
	summary := &alerts.SweepSummary{
		RunID:         "a3df77f2-0b5c-4d36-9a07-6a3f6f0f2a4e",
		StartedAt:     now,
		FinishedAt:    now.Add(2 * time.Second),
		AlertsChecked: 1,
		ItemsChecked:  5,
		Matches:       []alerts.Match{{AlertID: alertID, AlertTitle: "Dragon Quest XI"}},
		Errors:        []alerts.AlertError{{AlertID: 99, Stage: "fetching", Message: "boom"}},
	}
	if err := st.CreateSweep(ctx, summary.RunID, summary.StartedAt); err != nil {
		t.Fatalf("CreateSweep: %v", err)
	}
	detail, _ := json.Marshal(summary.Errors)
	if err := st.FinishSweep(ctx, summary, detail); err != nil {
		t.Fatalf("FinishSweep: %v", err)
	}

	var status string
	var matchesFound int
	err = st.DB.QueryRowContext(ctx,
		`SELECT status, matches_found FROM sweeps WHERE run_id = $1`, summary.RunID).
		Scan(&status, &matchesFound)
	if err != nil {
		t.Fatalf("read back sweep: %v", err)
	}
	if status != "partial" || matchesFound != 1 {
		t.Fatalf("sweep row = %s / %d; want partial / 1", status, matchesFound)
	}
}
