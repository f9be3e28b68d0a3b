package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/IT-Nick/assessbot/internal/domain/model"
)

// Querier часть *pgxpool.Pool, которой пользуется репозиторий
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ResultRepository кэш итогов проверки. Позволяет повторному завершению
// (в том числе после перезапуска бота) вернуть уже полученный итог.
type ResultRepository struct {
	db Querier
}

func NewResultRepository(db Querier) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = "assessment_id, result_id, score, total_points, status, submitted_at"

func scanResult(row pgx.Row) (*model.ResultSummary, error) {
	var r model.ResultSummary
	if err := row.Scan(&r.AssessmentID, &r.ResultID, &r.Score, &r.TotalPoints, &r.Status, &r.SubmittedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Save сохраняет итог. Если итог для сессии уже есть, он не перезаписывается и возвращается.
func (r *ResultRepository) Save(ctx context.Context, result model.ResultSummary) (model.ResultSummary, error) {
	query := `
        INSERT INTO assessment_results (assessment_id, result_id, score, total_points, status, submitted_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (assessment_id) DO UPDATE
            SET assessment_id = assessment_results.assessment_id
        RETURNING ` + resultColumns

	stored, err := scanResult(r.db.QueryRow(ctx, query,
		result.AssessmentID, result.ResultID, result.Score, result.TotalPoints, string(result.Status), result.SubmittedAt))
	if err != nil {
		return model.ResultSummary{}, fmt.Errorf("failed to save result: %w", err)
	}
	return *stored, nil
}

// GetByAssessmentID возвращает сохраненный итог или nil, если его нет
func (r *ResultRepository) GetByAssessmentID(ctx context.Context, assessmentID string) (*model.ResultSummary, error) {
	result, err := scanResult(r.db.QueryRow(ctx,
		"SELECT "+resultColumns+" FROM assessment_results WHERE assessment_id = $1", assessmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return result, nil
}
