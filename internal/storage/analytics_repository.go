package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/stylelab/internal/model"
)

// AnalyticsRepository is the append-only log of style_analytics rows.
// Errors are wrapped with %w so callers can still reach the driver error.
type AnalyticsRepository interface {
	Insert(ctx context.Context, rec *model.AnalyticsRecord) error
	ListByStyle(ctx context.Context, styleID string) ([]model.AnalyticsRecord, error)
	// TopCombined returns the limit highest-scoring records that were
	// generated with a second style.
	TopCombined(ctx context.Context, limit int) ([]model.AnalyticsRecord, error)
	Count(ctx context.Context) (int64, error)
}

type sqliteAnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository creates a new SQLite-backed AnalyticsRepository.
func NewAnalyticsRepository(db *sqlx.DB) AnalyticsRepository {
	return &sqliteAnalyticsRepository{db: db}
}

func (r *sqliteAnalyticsRepository) Insert(ctx context.Context, rec *model.AnalyticsRecord) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO style_analytics (style_id, combined_with, quality_score, generation_time, success, guidance)
		VALUES (:style_id, :combined_with, :quality_score, :generation_time, :success, :guidance)
	`, rec)
	if err != nil {
		return fmt.Errorf("inserting style analytics: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

func (r *sqliteAnalyticsRepository) ListByStyle(ctx context.Context, styleID string) ([]model.AnalyticsRecord, error) {
	var recs []model.AnalyticsRecord
	err := r.db.SelectContext(ctx, &recs,
		"SELECT * FROM style_analytics WHERE style_id = ? ORDER BY id ASC", styleID)
	if err != nil {
		return nil, fmt.Errorf("listing analytics for %s: %w", styleID, err)
	}
	return recs, nil
}

func (r *sqliteAnalyticsRepository) TopCombined(ctx context.Context, limit int) ([]model.AnalyticsRecord, error) {
	var recs []model.AnalyticsRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT * FROM style_analytics
		WHERE combined_with IS NOT NULL AND combined_with != ''
		ORDER BY quality_score DESC, id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing top combined analytics: %w", err)
	}
	return recs, nil
}

func (r *sqliteAnalyticsRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM style_analytics")
	return count, err
}

// ScoringCallRepository handles persistence of quality-scorer call tracking.
type ScoringCallRepository interface {
	Create(ctx context.Context, call *model.ScoringCall) error
	CountByProvider(ctx context.Context, provider string) (int64, error)
}

type sqliteScoringCallRepository struct {
	db *sqlx.DB
}

// NewScoringCallRepository creates a new SQLite-backed ScoringCallRepository.
func NewScoringCallRepository(db *sqlx.DB) ScoringCallRepository {
	return &sqliteScoringCallRepository{db: db}
}

func (r *sqliteScoringCallRepository) Create(ctx context.Context, call *model.ScoringCall) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO scoring_calls (generation_id, provider, model, score, success, duration_ms)
		VALUES (:generation_id, :provider, :model, :score, :success, :duration_ms)
	`, call)
	if err != nil {
		return fmt.Errorf("creating scoring call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteScoringCallRepository) CountByProvider(ctx context.Context, provider string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM scoring_calls WHERE provider = ?", provider)
	return count, err
}
