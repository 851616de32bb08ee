package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/stylelab/internal/model"
)

// ErrNotFound is returned when a row doesn't exist.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("not found")

// GenerationRepository persists art_generations rows.
type GenerationRepository interface {
	Create(ctx context.Context, gen *model.ArtGeneration) error
	GetByID(ctx context.Context, id string) (*model.ArtGeneration, error)
	ListRecent(ctx context.Context, limit int) ([]model.ArtGeneration, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status model.GenerationStatus) (int64, error)
}

type sqliteGenerationRepository struct {
	db *sqlx.DB
}

// NewGenerationRepository creates a new SQLite-backed GenerationRepository.
func NewGenerationRepository(db *sqlx.DB) GenerationRepository {
	return &sqliteGenerationRepository{db: db}
}

func (r *sqliteGenerationRepository) Create(ctx context.Context, gen *model.ArtGeneration) error {
	if gen.Status == "" {
		gen.Status = model.GenerationCompleted
	}
	// Metadata implements driver.Valuer, so NamedExec stores it as JSON text.
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO art_generations (id, prompt, result_url, model, seed, style_preset, status, metadata)
		VALUES (:id, :prompt, :result_url, :model, :seed, :style_preset, :status, :metadata)
	`, gen)
	if err != nil {
		return fmt.Errorf("creating art generation: %w", err)
	}
	return nil
}

func (r *sqliteGenerationRepository) GetByID(ctx context.Context, id string) (*model.ArtGeneration, error) {
	var gen model.ArtGeneration
	err := r.db.GetContext(ctx, &gen, "SELECT * FROM art_generations WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting art generation %s: %w", id, err)
	}
	return &gen, nil
}

func (r *sqliteGenerationRepository) ListRecent(ctx context.Context, limit int) ([]model.ArtGeneration, error) {
	var gens []model.ArtGeneration
	err := r.db.SelectContext(ctx, &gens,
		"SELECT * FROM art_generations ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing art generations: %w", err)
	}
	return gens, nil
}

func (r *sqliteGenerationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM art_generations")
	return count, err
}

func (r *sqliteGenerationRepository) CountByStatus(ctx context.Context, status model.GenerationStatus) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM art_generations WHERE status = ?", status)
	return count, err
}
