package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mihac/internal/models"
)

// EvaluationRepository handles evaluation database operations.
type EvaluationRepository struct {
	db *DB
}

// NewEvaluationRepository creates a new evaluation repository.
func NewEvaluationRepository(db *DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

const insertEvaluation = `
	INSERT INTO evaluations (
		id, applicant_id, batch_id, decision, final_score, dti,
		requested_amount, credit_purpose, activated_rules, profile,
		validation_errors, explanation, summary, duration_ms, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7::text, '')::numeric, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (id) DO UPDATE SET
		batch_id = EXCLUDED.batch_id,
		explanation = EXCLUDED.explanation,
		summary = EXCLUDED.summary`

const selectEvaluation = `
	SELECT id::text, applicant_id, batch_id, decision, final_score, dti,
		COALESCE(requested_amount::text, ''), credit_purpose, activated_rules, profile,
		validation_errors, explanation, summary, duration_ms, created_at
	FROM evaluations`

func insertArgs(rec *models.EvaluationRecord) []any {
	return []any{
		rec.ID,
		rec.ApplicantID,
		rec.BatchID,
		string(rec.Decision),
		rec.FinalScore,
		rec.DTI,
		rec.RequestedAmount,
		rec.CreditPurpose,
		rec.ActivatedRules,
		nullJSON(rec.ProfileJSON),
		nullJSON(rec.ValidationErrors),
		rec.Explanation,
		rec.Summary,
		rec.DurationMs,
		rec.CreatedAt,
	}
}

// nullJSON maps an empty document to SQL NULL.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Save inserts one evaluation record.
func (r *EvaluationRepository) Save(ctx context.Context, rec *models.EvaluationRecord) error {
	if _, err := r.db.ExecContext(ctx, insertEvaluation, insertArgs(rec)...); err != nil {
		return fmt.Errorf("failed to save evaluation %s: %w", rec.ID, err)
	}
	return nil
}

// SaveBatch inserts all records in one transaction.
func (r *EvaluationRepository) SaveBatch(ctx context.Context, recs []*models.EvaluationRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range recs {
			batch.Queue(insertEvaluation, insertArgs(rec)...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save evaluation batch: %w", err)
		}
		return nil
	})
}

// Get retrieves an evaluation by id.
func (r *EvaluationRepository) Get(ctx context.Context, id string) (*models.EvaluationRecord, error) {
	row := r.db.QueryRowContext(ctx, selectEvaluation+" WHERE id::text = $1", id)
	rec, err := scanEvaluation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrEvaluationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return rec, nil
}

// ListRecent returns the newest evaluations first.
func (r *EvaluationRepository) ListRecent(ctx context.Context, limit int) ([]*models.EvaluationRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, selectEvaluation+" ORDER BY created_at DESC, id LIMIT $1", limit)
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
func (r *EvaluationRepository) Dashboard(ctx context.Context) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{ByDecision: make(map[models.Decision]int)}

	rows, err := r.db.QueryContext(ctx, "SELECT decision, COUNT(*) FROM evaluations GROUP BY decision")
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

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(final_score), 0)::float8, COALESCE(AVG(dti), 0)::float8
		FROM evaluations
		WHERE final_score IS NOT NULL`).Scan(&summary.AverageScore, &summary.AverageDTI)
	if err != nil {
		return nil, fmt.Errorf("failed to compute averages: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT LEAST(final_score / 10, 9) AS bucket, COUNT(*)
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

// HealthCheck verifies database connectivity.
func (r *EvaluationRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// Close closes the underlying pool.
func (r *EvaluationRepository) Close() error {
	r.db.Close()
	return nil
}

func scanEvaluation(row pgx.Row) (*models.EvaluationRecord, error) {
	var rec models.EvaluationRecord
	var decision string
	var profile, validationErrors []byte

	err := row.Scan(
		&rec.ID, &rec.ApplicantID, &rec.BatchID, &decision, &rec.FinalScore, &rec.DTI,
		&rec.RequestedAmount, &rec.CreditPurpose, &rec.ActivatedRules, &profile,
		&validationErrors, &rec.Explanation, &rec.Summary, &rec.DurationMs, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Decision = models.Decision(decision)
	rec.ProfileJSON = profile
	rec.ValidationErrors = validationErrors
	if rec.ActivatedRules == nil {
		rec.ActivatedRules = []string{}
	}
	return &rec, nil
}
