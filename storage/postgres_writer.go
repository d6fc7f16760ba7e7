package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"emlak-ingest/models"
)

// PostgresRunLog persists monitoring run summaries to PostgreSQL.
type PostgresRunLog struct {
	db *sql.DB
}

// NewPostgresRunLog opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresRunLog.
func NewPostgresRunLog(dsn string) (*PostgresRunLog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	rl := &PostgresRunLog{db: db}
	if err := rl.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return rl, nil
}

func (rl *PostgresRunLog) migrate() error {
	_, err := rl.db.Exec(`
		CREATE TABLE IF NOT EXISTS monitor_runs (
			id               BIGSERIAL PRIMARY KEY,
			user_id          TEXT        NOT NULL,
			started_at       TIMESTAMPTZ NOT NULL,
			finished_at      TIMESTAMPTZ NOT NULL,
			criteria_count   INTEGER     NOT NULL DEFAULT 0,
			searches_run     INTEGER     NOT NULL DEFAULT 0,
			searches_failed  INTEGER     NOT NULL DEFAULT 0,
			previews_found   INTEGER     NOT NULL DEFAULT 0,
			new_listings     INTEGER     NOT NULL DEFAULT 0,
			notifications_ok INTEGER     NOT NULL DEFAULT 0,
			errors           INTEGER     NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_monitor_runs_user    ON monitor_runs(user_id);
		CREATE INDEX IF NOT EXISTS idx_monitor_runs_started ON monitor_runs(started_at);
	`)
	return err
}

const runColumns = 10

// WriteRuns batch-inserts run summaries and sets their IDs.
func (rl *PostgresRunLog) WriteRuns(ctx context.Context, runs []*models.MonitorRun) error {
	if len(runs) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(runs); i += batchSize {
		end := i + batchSize
		if end > len(runs) {
			end = len(runs)
		}
		if err := rl.insertBatch(ctx, runs[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (rl *PostgresRunLog) insertBatch(ctx context.Context, batch []*models.MonitorRun) error {
	query, args := buildInsert(batch)

	rows, err := rl.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: insert runs: %w", err)
	}
	defer rows.Close()

	for i := 0; rows.Next() && i < len(batch); i++ {
		if err := rows.Scan(&batch[i].ID); err != nil {
			return fmt.Errorf("postgres: scan run id: %w", err)
		}
	}
	return rows.Err()
}

func buildInsert(batch []*models.MonitorRun) (string, []interface{}) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*runColumns)

	for idx, r := range batch {
		base := idx * runColumns
		placeholders := make([]string, runColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			r.UserID, r.StartedAt, r.FinishedAt, r.CriteriaCount, r.SearchesRun,
			r.SearchesFailed, r.PreviewsFound, r.NewListings, r.NotificationsOK, r.Errors)
	}

	query := fmt.Sprintf(`
		INSERT INTO monitor_runs (user_id, started_at, finished_at, criteria_count, searches_run,
			searches_failed, previews_found, new_listings, notifications_ok, errors)
		VALUES %s
		RETURNING id
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

// RecentRuns returns the latest run summaries, newest first.
func (rl *PostgresRunLog) RecentRuns(ctx context.Context, limit int) ([]*models.MonitorRun, error) {
	rows, err := rl.db.QueryContext(ctx, `
		SELECT id, user_id, started_at, finished_at, criteria_count, searches_run,
			searches_failed, previews_found, new_listings, notifications_ok, errors
		FROM monitor_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.MonitorRun
	for rows.Next() {
		r := &models.MonitorRun{}
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.StartedAt, &r.FinishedAt, &r.CriteriaCount, &r.SearchesRun,
			&r.SearchesFailed, &r.PreviewsFound, &r.NewListings, &r.NotificationsOK, &r.Errors,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (rl *PostgresRunLog) Close() error {
	return rl.db.Close()
}
