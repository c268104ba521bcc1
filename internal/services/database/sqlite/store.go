// Package sqlite is an embedded evaluation store for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"mihac/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const defaultListLimit = 50

// Store is an EvaluationStore backed by a sqlite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", dsn, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database %s: %w", dsn, err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertEvaluation = `
INSERT INTO evaluations (
	id, applicant_id, batch_id, decision, final_score, dti,
	requested_amount, credit_purpose, activated_rules, profile,
	validation_errors, explanation, summary, duration_ms, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	batch_id = excluded.batch_id,
	explanation = excluded.explanation,
	summary = excluded.summary`

func insert(ctx context.Context, ex execer, rec *models.EvaluationRecord) error {
	var score sql.NullInt64
	if rec.FinalScore != nil {
		score = sql.NullInt64{Int64: int64(*rec.FinalScore), Valid: true}
	}
	var dti sql.NullFloat64
	if rec.DTI != nil {
		dti = sql.NullFloat64{Float64: *rec.DTI, Valid: true}
	}

	_, err := ex.ExecContext(ctx, insertEvaluation,
		rec.ID,
		rec.ApplicantID,
		rec.BatchID,
		string(rec.Decision),
		score,
		dti,
		rec.RequestedAmount,
		rec.CreditPurpose,
		rec.RulesColumn(),
		nullText(rec.ProfileJSON),
		nullText(rec.ValidationErrors),
		rec.Explanation,
		rec.Summary,
		rec.DurationMs,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save evaluation %s: %w", rec.ID, err)
	}
	return nil
}

func nullText(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// Save inserts one evaluation record.
func (s *Store) Save(ctx context.Context, rec *models.EvaluationRecord) error {
	return insert(ctx, s.db, rec)
}

// SaveBatch inserts all records in one transaction.
func (s *Store) SaveBatch(ctx context.Context, recs []*models.EvaluationRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, rec := range recs {
		if err := insert(ctx, tx, rec); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const selectEvaluation = `
SELECT id, applicant_id, batch_id, decision, final_score, dti,
	requested_amount, credit_purpose, activated_rules, profile,
	validation_errors, explanation, summary, duration_ms, created_at
FROM evaluations`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scanner) (*models.EvaluationRecord, error) {
	var rec models.EvaluationRecord
	var decision, rules, created string
	var score sql.NullInt64
	var dti sql.NullFloat64
	var profile, validationErrors sql.NullString

	err := row.Scan(
		&rec.ID, &rec.ApplicantID, &rec.BatchID, &decision, &score, &dti,
		&rec.RequestedAmount, &rec.CreditPurpose, &rules, &profile,
		&validationErrors, &rec.Explanation, &rec.Summary, &rec.DurationMs, &created,
	)
	if err != nil {
		return nil, err
	}

	rec.Decision = models.Decision(decision)
	rec.ActivatedRules = models.ParseRulesColumn(rules)
	if score.Valid {
		n := int(score.Int64)
		rec.FinalScore = &n
	}
	if dti.Valid {
		v := dti.Float64
		rec.DTI = &v
	}
	if profile.Valid {
		rec.ProfileJSON = []byte(profile.String)
	}
	if validationErrors.Valid {
		rec.ValidationErrors = []byte(validationErrors.String)
	}
	rec.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", created, err)
	}
	return &rec, nil
}

// Get retrieves an evaluation by id.
func (s *Store) Get(ctx context.Context, id string) (*models.EvaluationRecord, error) {
	rec, err := scanEvaluation(s.db.QueryRowContext(ctx, selectEvaluation+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrEvaluationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return rec, nil
}

// ListRecent returns the newest evaluations first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*models.EvaluationRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, selectEvaluation+" ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	var out []*models.EvaluationRecord
	for rows.Next() {
		rec, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Dashboard aggregates all stored evaluations.
func (s *Store) Dashboard(ctx context.Context) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{ByDecision: make(map[models.Decision]int)}

	rows, err := s.db.QueryContext(ctx, "SELECT decision, COUNT(*) FROM evaluations GROUP BY decision")
	if err != nil {
		return nil, fmt.Errorf("failed to count decisions: %w", err)
	}
	for rows.Next() {
		var decision string
		var n int
		if err := rows.Scan(&decision, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan decision count: %w", err)
		}
		summary.ByDecision[models.Decision(decision)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(final_score), 0.0), COALESCE(AVG(dti), 0.0)
		FROM evaluations
		WHERE final_score IS NOT NULL`).Scan(&summary.AverageScore, &summary.AverageDTI)
	if err != nil {
		return nil, fmt.Errorf("failed to compute averages: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT MIN(final_score / 10, 9) AS bucket, COUNT(*)
		FROM evaluations
		WHERE final_score IS NOT NULL
		GROUP BY bucket`)
	if err != nil {
		return nil, fmt.Errorf("failed to build histogram: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var bucket, n int
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, fmt.Errorf("failed to scan histogram: %w", err)
		}
		counts[bucket] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summary.ScoreHistogram = models.NewScoreHistogram(counts)
	summary.Finalize()
	return summary, nil
}
