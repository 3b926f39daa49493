package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qiranapp/qiran/internal/models"
	mongorepo "github.com/qiranapp/qiran/internal/repositories/mongo"
	pgrepo "github.com/qiranapp/qiran/internal/repositories/postgres"
	"github.com/qiranapp/qiran/internal/utils"
)

const (
	// Candidates scoring below this are not returned at all.
	minScoreThreshold = 50.0

	defaultRankLimit = 10
	maxRankLimit     = 20

	// Upper bound on the candidate pool loaded per run.
	candidatePoolCap = 200
)

type RankRequest struct {
	Limit  int
	Filter pgrepo.CandidateFilter
}

type RankResult struct {
	Matches                  []models.MatchCandidate `json:"matches"`
	TotalCandidatesEvaluated int                     `json:"total_candidates_evaluated"`
	GeneratedAt              time.Time               `json:"generated_at"`
}

type MatchService interface {
	Score(ctx context.Context, requester, candidate *models.Profile) (*models.SimilarityScore, []string, error)
	Rank(ctx context.Context, userID string, req RankRequest) (*RankResult, error)
	RecordInteraction(ctx context.Context, userID, targetID, kind string) error
}

type matchService struct {
	profiles     pgrepo.ProfileRepository
	embeddings   EmbeddingService
	interactions mongorepo.InteractionRepository
	runs         mongorepo.MatchRunRepository
	log          *logrus.Logger
}

func NewMatchService(
	profiles pgrepo.ProfileRepository,
	embeddings EmbeddingService,
	interactions mongorepo.InteractionRepository,
	runs mongorepo.MatchRunRepository,
	log *logrus.Logger,
) MatchService {
	return &matchService{
		profiles:     profiles,
		embeddings:   embeddings,
		interactions: interactions,
		runs:         runs,
		log:          log,
	}
}

// Score blends rule-based subscores with per-facet embedding similarity for
// one pairing. Missing embeddings degrade the embedding subscores to zero
// instead of failing; missing profile fields degrade to neutral subscores.
func (s *matchService) Score(ctx context.Context, requester, candidate *models.Profile) (*models.SimilarityScore, []string, error) {
	const op = "MatchService.Score"

	if requester == nil || candidate == nil {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "both profiles are required", nil)
	}

	reqEmb := s.embeddingsFor(ctx, requester)
	candEmb := s.embeddingsFor(ctx, candidate)

	score, rs := scorePair(requester, candidate, reqEmb, candEmb)
	return score, rs.shared, nil
}

// scorePair is the deterministic core: same inputs always produce the same
// score.
func scorePair(requester, candidate *models.Profile, reqEmb, candEmb *models.ProfileEmbeddings) (*models.SimilarityScore, ruleScores) {
	rs := computeRuleScores(requester, candidate)

	var bio, values, interests, lifestyle, personality float64
	if reqEmb != nil && candEmb != nil {
		bio = cosineScore(reqEmb.Facet(models.FacetGeneral), candEmb.Facet(models.FacetGeneral))
		values = cosineScore(reqEmb.Facet(models.FacetValues), candEmb.Facet(models.FacetValues))
		interests = cosineScore(reqEmb.Facet(models.FacetInterests), candEmb.Facet(models.FacetInterests))
		lifestyle = cosineScore(reqEmb.Facet(models.FacetLifestyle), candEmb.Facet(models.FacetLifestyle))
		personality = cosineScore(reqEmb.Facet(models.FacetPersonality), candEmb.Facet(models.FacetPersonality))
	}

	overall := blendScore(rs, bio)
	demographics := (rs.age + rs.location + rs.education) / 3

	return &models.SimilarityScore{
		Overall:          round1(overall),
		Values:           round1(values),
		Interests:        round1(interests),
		Lifestyle:        round1(lifestyle),
		Personality:      round1(personality),
		Demographics:     round1(demographics),
		IslamicAlignment: round1(rs.religious),
		Explanation:      buildExplanation(overall),
	}, rs
}

// Rank loads the candidate pool, scores every pairing and returns the top
// matches. Same-gender pairings, previously-interacted pairs and candidates
// below the minimum score are excluded; ordering is deterministic.
func (s *matchService) Rank(ctx context.Context, userID string, req RankRequest) (*RankResult, error) {
	const op = "MatchService.Rank"
	started := time.Now()

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	requester, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "requester profile not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load requester profile", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultRankLimit
	}
	if limit > maxRankLimit {
		limit = maxRankLimit
	}

	filter := req.Filter
	if filter.Limit <= 0 || filter.Limit > candidatePoolCap {
		filter.Limit = candidatePoolCap
	}
	candidates, err := s.profiles.ListCandidates(ctx, requester, filter)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load candidates", err)
	}

	interacted, err := s.interactions.InteractedIDs(ctx, userID)
	if err != nil {
		// Exclusion data is advisory; a degraded run beats no run.
		if s.log != nil {
			s.log.WithError(err).Warn("interaction lookup failed, ranking without exclusions")
		}
		interacted = map[string]bool{}
	}

	reqEmb := s.embeddingsFor(ctx, requester)

	var matches []models.MatchCandidate
	evaluated := 0
	for i := range candidates {
		cand := &candidates[i]
		if cand.Gender == requester.Gender || interacted[cand.UserID] {
			continue
		}
		evaluated++

		candEmb := s.embeddingsFor(ctx, cand)
		score, rs := scorePair(requester, cand, reqEmb, candEmb)
		if score.Overall < minScoreThreshold {
			continue
		}

		matches = append(matches, models.MatchCandidate{
			Candidate:       models.SummaryOf(cand),
			Score:           *score,
			SharedInterests: rs.shared,
			Reasons:         buildReasons(rs),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score.Overall != matches[j].Score.Overall {
			return matches[i].Score.Overall > matches[j].Score.Overall
		}
		return matches[i].Candidate.UserID < matches[j].Candidate.UserID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	result := &RankResult{
		Matches:                  matches,
		TotalCandidatesEvaluated: evaluated,
		GeneratedAt:              time.Now().UTC(),
	}

	run := &models.MatchRun{
		RunID:               uuid.NewString(),
		UserID:              userID,
		CandidatesEvaluated: evaluated,
		Returned:            len(matches),
		DurationMS:          time.Since(started).Milliseconds(),
		CreatedAt:           result.GeneratedAt,
	}
	if err := s.runs.Insert(ctx, run); err != nil && s.log != nil {
		s.log.WithError(err).Warn("match run audit insert failed")
	}

	return result, nil
}

func (s *matchService) RecordInteraction(ctx context.Context, userID, targetID, kind string) error {
	const op = "MatchService.RecordInteraction"

	if userID == "" || targetID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "user_id and target_id are required", nil)
	}
	switch kind {
	case "like", "pass", "view":
	default:
		return utils.E(utils.CodeInvalidArgument, op, "kind must be like, pass or view", nil)
	}
	if err := s.interactions.Record(ctx, &models.Interaction{
		UserID:   userID,
		TargetID: targetID,
		Kind:     kind,
	}); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to record interaction", err)
	}
	return nil
}

// embeddingsFor fetches or generates embeddings, degrading to nil (rule-only
// scoring) when the budget is exhausted, the breaker is open, or generation
// fails for any other reason. Ranking never hard-fails on embeddings.
func (s *matchService) embeddingsFor(ctx context.Context, p *models.Profile) *models.ProfileEmbeddings {
	prefs := decodePreferences(p)
	emb, err := s.embeddings.GetOrCreate(ctx, p, prefs)
	if err != nil {
		if s.log != nil {
			s.log.WithFields(logrus.Fields{
				"user_id": p.UserID,
				"code":    string(utils.CodeOf(err)),
			}).WithError(err).Warn("embedding unavailable, scoring on rules only")
		}
		return nil
	}
	return emb
}

func decodePreferences(p *models.Profile) *models.Preferences {
	if len(p.Preferences) == 0 {
		return nil
	}
	var prefs models.Preferences
	if err := json.Unmarshal(p.Preferences, &prefs); err != nil {
		return nil
	}
	return &prefs
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
