package services

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiranapp/qiran/internal/models"
	pgrepo "github.com/qiranapp/qiran/internal/repositories/postgres"
	"github.com/qiranapp/qiran/internal/utils"
)

type stubProfiles struct {
	byID    map[string]*models.Profile
	pool    []models.Profile
	listErr error
}

func (s *stubProfiles) GetByUserID(_ context.Context, userID string) (*models.Profile, error) {
	p, ok := s.byID[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return p, nil
}

func (s *stubProfiles) Upsert(_ context.Context, p *models.Profile) error {
	s.byID[p.UserID] = p
	return nil
}

func (s *stubProfiles) ListCandidates(_ context.Context, requester *models.Profile, f pgrepo.CandidateFilter) ([]models.Profile, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Profile
	for _, p := range s.pool {
		if p.UserID == requester.UserID {
			continue
		}
		if f.AgeMin > 0 && p.Age < f.AgeMin {
			continue
		}
		if f.AgeMax > 0 && p.Age > f.AgeMax {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type stubEmbeddings struct {
	recs map[string]*models.ProfileEmbeddings
	err  error
}

func (s *stubEmbeddings) EmbedProfile(_ context.Context, p *models.Profile, _ *models.Preferences) (*models.ProfileEmbeddings, error) {
	return s.GetEmbeddings(context.Background(), p.UserID)
}

func (s *stubEmbeddings) GetEmbeddings(_ context.Context, userID string) (*models.ProfileEmbeddings, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.recs[userID]
	if !ok {
		return nil, utils.E(utils.CodeNotFound, "stubEmbeddings", "no embeddings", nil)
	}
	return rec, nil
}

func (s *stubEmbeddings) GetOrCreate(ctx context.Context, p *models.Profile, _ *models.Preferences) (*models.ProfileEmbeddings, error) {
	return s.GetEmbeddings(ctx, p.UserID)
}

type stubInteractions struct {
	recorded []*models.Interaction
	ids      map[string]bool
	idsErr   error
}

func (s *stubInteractions) Record(_ context.Context, i *models.Interaction) error {
	s.recorded = append(s.recorded, i)
	return nil
}

func (s *stubInteractions) InteractedIDs(_ context.Context, _ string) (map[string]bool, error) {
	if s.idsErr != nil {
		return nil, s.idsErr
	}
	return s.ids, nil
}

type stubRuns struct {
	runs []*models.MatchRun
}

func (s *stubRuns) Insert(_ context.Context, run *models.MatchRun) error {
	s.runs = append(s.runs, run)
	return nil
}

func (s *stubRuns) ListByUser(_ context.Context, _ string, _ int) ([]models.MatchRun, error) {
	out := make([]models.MatchRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, *r)
	}
	return out, nil
}

const (
	requesterID = "00000000-0000-0000-0000-000000000001"
	candidateA  = "11111111-0000-0000-0000-000000000001"
	candidateB  = "22222222-0000-0000-0000-000000000001"
	candidateC  = "33333333-0000-0000-0000-000000000001"
	candidateD  = "44444444-0000-0000-0000-000000000001"
)

func matchFixtures() (*stubProfiles, *stubEmbeddings, *stubInteractions, *stubRuns) {
	requester := &models.Profile{
		UserID: requesterID, Gender: "male", Age: 30,
		City: "Singapore", Country: "Singapore",
		ReligiousLevel: "practicing", EducationLevel: "bachelors",
		MarriageTimeline: "within_1_year",
		Interests:        []string{"reading", "travel"},
	}
	strong := models.Profile{
		UserID: candidateA, FullName: "A", Gender: "female", Age: 29,
		City: "Singapore", Country: "Singapore",
		ReligiousLevel: "practicing", EducationLevel: "bachelors",
		MarriageTimeline: "within_1_year",
		Interests:        []string{"reading", "travel", "cooking"},
	}
	weak := models.Profile{
		UserID: candidateB, FullName: "B", Gender: "female", Age: 38,
		City: "Jakarta", Country: "Indonesia",
		ReligiousLevel: "learning", EducationLevel: "high_school",
		MarriageTimeline: "when_ready",
		Interests:        []string{"gaming"},
	}
	middling := models.Profile{
		UserID: candidateC, FullName: "C", Gender: "female", Age: 40,
		City: "Singapore", Country: "Singapore",
		ReligiousLevel: "practicing", EducationLevel: "bachelors",
		MarriageTimeline: "within_1_year",
		Interests:        []string{"reading"},
	}
	sameGender := models.Profile{
		UserID: candidateD, FullName: "D", Gender: "male", Age: 30,
		City: "Singapore", Country: "Singapore",
	}

	profiles := &stubProfiles{
		byID: map[string]*models.Profile{requesterID: requester},
		pool: []models.Profile{strong, weak, middling, sameGender},
	}
	return profiles,
		&stubEmbeddings{recs: map[string]*models.ProfileEmbeddings{}},
		&stubInteractions{ids: map[string]bool{}},
		&stubRuns{}
}

func TestRankOrdersAndFiltersCandidates(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()
	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)

	res, err := svc.Rank(context.Background(), requesterID, RankRequest{})
	require.NoError(t, err)

	// Same-gender D is skipped before evaluation; A, B and C are scored.
	assert.Equal(t, 3, res.TotalCandidatesEvaluated)
	require.Len(t, res.Matches, 2, "the weak candidate falls below the score floor")

	top := res.Matches[0]
	assert.Equal(t, candidateA, top.Candidate.UserID)
	assert.GreaterOrEqual(t, top.Score.Overall, 85.0)
	assert.ElementsMatch(t, []string{"reading", "travel"}, top.SharedInterests)
	assert.Contains(t, top.Reasons, "Similar level of religious practice")
	assert.Contains(t, top.Reasons, "Lives in the same city")
	assert.Contains(t, top.Score.Explanation, "Strong")

	second := res.Matches[1]
	assert.Equal(t, candidateC, second.Candidate.UserID)
	assert.Less(t, second.Score.Overall, top.Score.Overall)
	assert.GreaterOrEqual(t, second.Score.Overall, 60.0)
	// The ten-year age gap drags demographics down: (50+100+100)/3.
	assert.InDelta(t, 83.3, second.Score.Demographics, 0.1)

	for _, m := range res.Matches {
		assert.NotEqual(t, candidateB, m.Candidate.UserID)
		assert.NotEqual(t, candidateD, m.Candidate.UserID)
	}

	require.Len(t, runs.runs, 1)
	assert.Equal(t, 3, runs.runs[0].CandidatesEvaluated)
	assert.Equal(t, 2, runs.runs[0].Returned)
	assert.NotEmpty(t, runs.runs[0].RunID)
	assert.False(t, res.GeneratedAt.IsZero())
}

func TestRankIsDeterministic(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()
	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)
	ctx := context.Background()

	first, err := svc.Rank(ctx, requesterID, RankRequest{})
	require.NoError(t, err)
	second, err := svc.Rank(ctx, requesterID, RankRequest{})
	require.NoError(t, err)

	assert.Equal(t, first.Matches, second.Matches)
	assert.Equal(t, first.TotalCandidatesEvaluated, second.TotalCandidatesEvaluated)
}

func TestRankBreaksScoreTiesByUserID(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()

	// A twin of candidate A with a higher user id must sort after it.
	twin := models.Profile{
		UserID: "55555555-0000-0000-0000-000000000001", FullName: "A2",
		Gender: "female", Age: 29,
		City: "Singapore", Country: "Singapore",
		ReligiousLevel: "practicing", EducationLevel: "bachelors",
		MarriageTimeline: "within_1_year",
		Interests:        []string{"reading", "travel", "cooking"},
	}
	profiles.pool = append(profiles.pool, twin)

	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)
	res, err := svc.Rank(context.Background(), requesterID, RankRequest{})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(res.Matches), 2)
	assert.Equal(t, res.Matches[0].Score.Overall, res.Matches[1].Score.Overall)
	assert.Equal(t, candidateA, res.Matches[0].Candidate.UserID)
	assert.Equal(t, twin.UserID, res.Matches[1].Candidate.UserID)
}

func TestRankExcludesInteractedPairs(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()
	interactions.ids = map[string]bool{candidateA: true}
	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)

	res, err := svc.Rank(context.Background(), requesterID, RankRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalCandidatesEvaluated, "interacted pairs are skipped before scoring")
	require.Len(t, res.Matches, 1)
	assert.Equal(t, candidateC, res.Matches[0].Candidate.UserID)
}

func TestRankDegradesWhenInteractionLookupFails(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()
	interactions.idsErr = errors.New("mongo down")
	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)

	res, err := svc.Rank(context.Background(), requesterID, RankRequest{})
	require.NoError(t, err, "exclusion data is advisory")
	assert.Len(t, res.Matches, 2)
}

func TestRankDegradesWhenEmbeddingsUnavailable(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()
	embeddings.err = utils.E(utils.CodeBudgetExceeded, "stubEmbeddings", "budget exhausted", nil)
	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)

	res, err := svc.Rank(context.Background(), requesterID, RankRequest{})
	require.NoError(t, err, "ranking falls back to rule-only scoring")
	require.Len(t, res.Matches, 2)
	assert.Zero(t, res.Matches[0].Score.Values, "embedding subscores degrade to zero")
}

func TestRankBlendsEmbeddingSimilarity(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()

	unit := []float32{1, 0, 0, 0}
	for _, id := range []string{requesterID, candidateA} {
		rec := &models.ProfileEmbeddings{UserID: id}
		for _, facet := range models.Facets {
			rec.SetFacet(facet, unit)
		}
		embeddings.recs[id] = rec
	}

	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)
	res, err := svc.Rank(context.Background(), requesterID, RankRequest{})
	require.NoError(t, err)

	require.NotEmpty(t, res.Matches)
	top := res.Matches[0]
	require.Equal(t, candidateA, top.Candidate.UserID)
	assert.InDelta(t, 100.0, top.Score.Values, 0.1)
	assert.InDelta(t, 100.0, top.Score.Personality, 0.1)
	assert.Greater(t, top.Score.Overall, 95.0, "identical embeddings add the full embedding weight")

	// C has no embeddings: the pairing degrades, it never errors.
	second := res.Matches[1]
	assert.Equal(t, candidateC, second.Candidate.UserID)
	assert.Zero(t, second.Score.Values)
}

func TestRankLimitApplied(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()
	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)

	res, err := svc.Rank(context.Background(), requesterID, RankRequest{Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, candidateA, res.Matches[0].Candidate.UserID)
}

func TestRankInputValidation(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()
	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)
	ctx := context.Background()

	_, err := svc.Rank(ctx, "", RankRequest{})
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))

	_, err = svc.Rank(ctx, "99999999-0000-0000-0000-000000000001", RankRequest{})
	assert.Equal(t, utils.CodeNotFound, utils.CodeOf(err))
}

func TestScorePairValidation(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()
	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)

	_, _, err := svc.Score(context.Background(), nil, nil)
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))
}

func TestScoreReturnsSharedInterests(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()
	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)

	requester := profiles.byID[requesterID]
	strong := &profiles.pool[0]

	score, shared, err := svc.Score(context.Background(), requester, strong)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"reading", "travel"}, shared)
	assert.GreaterOrEqual(t, score.Overall, 85.0)
	assert.InDelta(t, 100.0, score.IslamicAlignment, 0.1)
}

func TestRecordInteraction(t *testing.T) {
	profiles, embeddings, interactions, runs := matchFixtures()
	svc := NewMatchService(profiles, embeddings, interactions, runs, nil)
	ctx := context.Background()

	require.NoError(t, svc.RecordInteraction(ctx, requesterID, candidateA, "like"))
	require.Len(t, interactions.recorded, 1)
	assert.Equal(t, "like", interactions.recorded[0].Kind)
	assert.Equal(t, candidateA, interactions.recorded[0].TargetID)

	err := svc.RecordInteraction(ctx, requesterID, candidateA, "superlike")
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))

	err = svc.RecordInteraction(ctx, "", candidateA, "like")
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))
}
