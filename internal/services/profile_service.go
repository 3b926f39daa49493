package services

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/qiranapp/qiran/internal/models"
	pgrepo "github.com/qiranapp/qiran/internal/repositories/postgres"
	"github.com/qiranapp/qiran/internal/utils"
)

// ProfileUpdateStream receives an entry on every profile upsert; the
// embedding worker pool consumes it to regenerate embeddings.
const ProfileUpdateStream = "profiles:updated"

type ProfileService interface {
	GetMe(ctx context.Context, userID string) (*models.Profile, error)
	Upsert(ctx context.Context, p *models.Profile) error
}

type profileService struct {
	profiles pgrepo.ProfileRepository
	rdb      *redis.Client
	log      *logrus.Logger
}

func NewProfileService(profiles pgrepo.ProfileRepository, rdb *redis.Client, log *logrus.Logger) ProfileService {
	return &profileService{profiles: profiles, rdb: rdb, log: log}
}

func (s *profileService) GetMe(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "ProfileService.GetMe"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "profile not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get profile", err)
	}
	return p, nil
}

func (s *profileService) Upsert(ctx context.Context, p *models.Profile) error {
	const op = "ProfileService.Upsert"

	if p == nil || p.UserID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "profile.user_id is required", nil)
	}
	if p.Gender != "male" && p.Gender != "female" {
		return utils.E(utils.CodeInvalidArgument, op, "gender must be male or female", nil)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to upsert profile", err)
	}

	// Embeddings are stale now; signal regeneration. Best effort: the
	// worker also regenerates lazily on the next match request.
	if s.rdb != nil {
		err := s.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: ProfileUpdateStream,
			Values: map[string]any{
				"user_id":    p.UserID,
				"updated_at": p.UpdatedAt.Format(time.RFC3339),
			},
		}).Err()
		if err != nil && s.log != nil {
			s.log.WithError(err).WithField("user_id", p.UserID).Warn("profile update stream publish failed")
		}
	}
	return nil
}
