package mongo

import (
	"context"
	"time"

	"github.com/qiranapp/qiran/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MatchRunRepository interface {
	Insert(ctx context.Context, run *models.MatchRun) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.MatchRun, error)
}

type matchRunRepo struct {
	col *mongo.Collection
}

func NewMatchRunRepo(db *mongo.Database) MatchRunRepository {
	return &matchRunRepo{col: db.Collection("match_runs")}
}

func (r *matchRunRepo) Insert(ctx context.Context, run *models.MatchRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, run)
	return err
}

func (r *matchRunRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.MatchRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.MatchRun
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
