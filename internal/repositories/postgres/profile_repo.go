package postgres

import (
	"context"
	"errors"

	"github.com/qiranapp/qiran/internal/models"
	"github.com/qiranapp/qiran/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CandidateFilter narrows the candidate pool before scoring.
type CandidateFilter struct {
	AgeMin          int
	AgeMax          int
	EducationLevels []string
	ReligiousLevels []string
	Limit           int // pool cap, not the result limit
}

type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Upsert(ctx context.Context, p *models.Profile) error
	ListCandidates(ctx context.Context, requester *models.Profile, f CandidateFilter) ([]models.Profile, error)
}

type profileRepo struct {
	db *gorm.DB
}

func NewProfileRepo(db *gorm.DB) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &p, err
}

func (r *profileRepo) Upsert(ctx context.Context, p *models.Profile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"full_name", "gender", "age", "city", "country",
				"religious_level", "education_level", "occupation",
				"marriage_timeline", "bio", "interests", "languages",
				"family_values", "preferences", "updated_at",
			}),
		}).
		Create(p).Error
}

// ListCandidates returns opposite-gender profiles matching the filter,
// excluding the requester. Ordering is by user_id so the pool is stable
// across identical runs.
func (r *profileRepo) ListCandidates(ctx context.Context, requester *models.Profile, f CandidateFilter) ([]models.Profile, error) {
	q := r.db.WithContext(ctx).
		Where("user_id <> ?", requester.UserID).
		Where("gender <> ?", requester.Gender)

	if f.AgeMin > 0 {
		q = q.Where("age >= ?", f.AgeMin)
	}
	if f.AgeMax > 0 {
		q = q.Where("age <= ?", f.AgeMax)
	}
	if len(f.EducationLevels) > 0 {
		q = q.Where("education_level IN ?", f.EducationLevels)
	}
	if len(f.ReligiousLevels) > 0 {
		q = q.Where("religious_level IN ?", f.ReligiousLevels)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []models.Profile
	err := q.Order("user_id").Find(&out).Error
	return out, err
}
