package mongo

import (
	"context"
	"time"

	"github.com/qiranapp/qiran/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type InteractionRepository interface {
	Record(ctx context.Context, i *models.Interaction) error
	InteractedIDs(ctx context.Context, userID string) (map[string]bool, error)
}

type interactionRepo struct {
	col *mongo.Collection
}

func NewInteractionRepo(db *mongo.Database) InteractionRepository {
	return &interactionRepo{col: db.Collection("interactions")}
}

// Record upserts on the (user_id, target_id) pair so repeated views do not
// pile up documents; the latest kind wins.
func (r *interactionRepo) Record(ctx context.Context, i *models.Interaction) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"user_id": i.UserID, "target_id": i.TargetID},
		bson.M{"$set": bson.M{
			"kind":       i.Kind,
			"created_at": i.CreatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// InteractedIDs returns the set of target ids this user has already
// liked/passed/viewed, used to exclude pairs from ranking.
func (r *interactionRepo) InteractedIDs(ctx context.Context, userID string) (map[string]bool, error) {
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetProjection(bson.M{"target_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[string]bool)
	for cur.Next(ctx) {
		var doc struct {
			TargetID string `bson:"target_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out[doc.TargetID] = true
	}
	return out, cur.Err()
}
