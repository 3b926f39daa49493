package postgres

import (
	"context"
	"errors"

	"github.com/qiranapp/qiran/internal/models"
	"github.com/qiranapp/qiran/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmbeddingRepository is the persistent store behind the embedding cache.
type EmbeddingRepository interface {
	Upsert(ctx context.Context, e *models.ProfileEmbeddings) error
	Fetch(ctx context.Context, userID string) (*models.ProfileEmbeddings, error)
}

type embeddingRepo struct {
	db *gorm.DB
}

func NewEmbeddingRepo(db *gorm.DB) EmbeddingRepository {
	return &embeddingRepo{db: db}
}

func (r *embeddingRepo) Upsert(ctx context.Context, e *models.ProfileEmbeddings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"general_embedding", "values_embedding", "interests_embedding",
				"lifestyle_embedding", "personality_embedding",
				"model", "dimension", "token_estimate", "generated_at",
			}),
		}).
		Create(e).Error
}

func (r *embeddingRepo) Fetch(ctx context.Context, userID string) (*models.ProfileEmbeddings, error) {
	var e models.ProfileEmbeddings
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &e, err
}
