package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
)

// ErrNotFound is returned when no report has the requested identifier.
var ErrNotFound = errors.New("report not found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	sqlMigrate = `
        CREATE TABLE IF NOT EXISTS reports (
            id           UUID PRIMARY KEY,
            url          TEXT NOT NULL,
            analyzed_at  TIMESTAMPTZ NOT NULL,
            passes       INTEGER NOT NULL DEFAULT 0,
            total_issues INTEGER NOT NULL DEFAULT 0,
            note         TEXT NOT NULL DEFAULT '',
            error        TEXT NOT NULL DEFAULT '',
            violations   JSONB NOT NULL DEFAULT '[]',
            created_at   TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at DESC);
    `
	sqlInsert = `
        INSERT INTO reports (id, url, analyzed_at, passes, total_issues, note, error, violations, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `
	sqlSelectColumns = `SELECT id, url, analyzed_at, passes, total_issues, note, error, violations, created_at FROM reports`
	sqlList          = sqlSelectColumns + ` ORDER BY created_at DESC;`
	sqlGet           = sqlSelectColumns + ` WHERE id = $1;`
	sqlDelete        = `DELETE FROM reports WHERE id = $1;`
)

// Store provides a PostgreSQL implementation of schemas.ReportStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

var _ schemas.ReportStore = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Migrate creates the reports table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlMigrate); err != nil {
		return fmt.Errorf("failed to migrate reports table: %w", err)
	}
	s.log.Debug("Reports schema is up to date.")
	return nil
}

// Create persists report under a fresh identifier.
func (s *Store) Create(ctx context.Context, report schemas.Report) (schemas.StoredReport, error) {
	if strings.TrimSpace(report.URL) == "" {
		return schemas.StoredReport{}, errors.New("report url is required")
	}
	violations := report.Violations
	if violations == nil {
		violations = []schemas.Violation{}
	}
	payload, err := json.Marshal(violations)
	if err != nil {
		return schemas.StoredReport{}, fmt.Errorf("failed to encode violations: %w", err)
	}

	stored := schemas.StoredReport{
		ID:        uuid.NewString(),
		CreatedAt: s.now(),
		Report:    report,
	}
	stored.Violations = violations

	_, err = s.pool.Exec(ctx, sqlInsert,
		stored.ID, report.URL, report.Timestamp.UTC(),
		report.Passes, report.TotalIssues,
		report.Note, report.Error,
		payload, stored.CreatedAt,
	)
	if err != nil {
		return schemas.StoredReport{}, fmt.Errorf("failed to insert report: %w", err)
	}
	s.log.Info("Report stored.", zap.String("id", stored.ID), zap.String("url", report.URL))
	return stored, nil
}

// List returns every stored report, newest first.
func (s *Store) List(ctx context.Context) ([]schemas.StoredReport, error) {
	rows, err := s.pool.Query(ctx, sqlList)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []schemas.StoredReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return reports, nil
}

// Get returns the report with the given identifier.
func (s *Store) Get(ctx context.Context, id string) (schemas.StoredReport, error) {
	if _, err := uuid.Parse(id); err != nil {
		return schemas.StoredReport{}, ErrNotFound
	}
	r, err := scanReport(s.pool.QueryRow(ctx, sqlGet, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return schemas.StoredReport{}, ErrNotFound
	}
	return r, err
}

// Delete removes the report with the given identifier.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, sqlDelete, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.log.Info("Report deleted.", zap.String("id", id))
	return nil
}

func scanReport(row pgx.Row) (schemas.StoredReport, error) {
	var (
		r          schemas.StoredReport
		violations []byte
	)
	err := row.Scan(
		&r.ID, &r.URL, &r.Timestamp,
		&r.Passes, &r.TotalIssues,
		&r.Note, &r.Error,
		&violations, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan report row: %w", err)
	}
	r.Violations = []schemas.Violation{}
	if len(violations) > 0 {
		if err := json.Unmarshal(violations, &r.Violations); err != nil {
			return r, fmt.Errorf("failed to decode violations for report %s: %w", r.ID, err)
		}
		if r.Violations == nil {
			r.Violations = []schemas.Violation{}
		}
	}
	return r, nil
}
