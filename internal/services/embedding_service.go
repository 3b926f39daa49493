package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/qiranapp/qiran/internal/budget"
	"github.com/qiranapp/qiran/internal/cache"
	"github.com/qiranapp/qiran/internal/models"
	"github.com/qiranapp/qiran/internal/providers/embedding"
	pgrepo "github.com/qiranapp/qiran/internal/repositories/postgres"
	"github.com/qiranapp/qiran/internal/resilience"
	"github.com/qiranapp/qiran/internal/utils"
)

// DefaultEmbedConcurrency bounds simultaneous upstream embedding calls for
// the whole process. This is the main backpressure control against upstream
// rate-limit storms.
const DefaultEmbedConcurrency = 10

type EmbeddingService interface {
	EmbedProfile(ctx context.Context, p *models.Profile, prefs *models.Preferences) (*models.ProfileEmbeddings, error)
	GetEmbeddings(ctx context.Context, userID string) (*models.ProfileEmbeddings, error)
	GetOrCreate(ctx context.Context, p *models.Profile, prefs *models.Preferences) (*models.ProfileEmbeddings, error)
}

type embeddingService struct {
	provider    embedding.Provider
	caller      *resilience.Caller
	guard       *budget.Guard
	local       *cache.VectorCache
	distributed cache.Distributed // optional cross-process layer
	store       pgrepo.EmbeddingRepository
	limiter     *semaphore.Weighted
	log         *logrus.Logger

	modelTier string // budget tier the service requests by default
}

type EmbeddingServiceDeps struct {
	Provider    embedding.Provider
	Caller      *resilience.Caller
	Guard       *budget.Guard
	Local       *cache.VectorCache
	Distributed cache.Distributed
	Store       pgrepo.EmbeddingRepository
	Limiter     *semaphore.Weighted // shared across all callers in process
	Logger      *logrus.Logger
}

func NewEmbeddingService(d EmbeddingServiceDeps) EmbeddingService {
	if d.Limiter == nil {
		d.Limiter = semaphore.NewWeighted(DefaultEmbedConcurrency)
	}
	return &embeddingService{
		provider:    d.Provider,
		caller:      d.Caller,
		guard:       d.Guard,
		local:       d.Local,
		distributed: d.Distributed,
		store:       d.Store,
		limiter:     d.Limiter,
		log:         d.Logger,
		modelTier:   budget.ModelEmbeddingLarge,
	}
}

// EmbedProfile builds the five facet texts, embeds them in parallel (bounded
// by the process-wide limiter) and persists the assembled record. If any
// facet fails the whole call fails; partial records are never persisted.
func (s *embeddingService) EmbedProfile(ctx context.Context, p *models.Profile, prefs *models.Preferences) (*models.ProfileEmbeddings, error) {
	const op = "EmbeddingService.EmbedProfile"

	if p == nil || p.UserID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "profile with user_id is required", nil)
	}

	rec := &models.ProfileEmbeddings{
		UserID:      p.UserID,
		Model:       s.provider.Model(),
		Dimension:   s.provider.Dimension(),
		GeneratedAt: time.Now().UTC(),
	}

	type facetResult struct {
		facet  string
		vector []float32
		tokens int
	}
	results := make([]facetResult, len(models.Facets))

	g, gctx := errgroup.WithContext(ctx)
	for i, facet := range models.Facets {
		text := buildFacetText(facet, p, prefs)
		g.Go(func() error {
			vec, tokens, err := s.embedFacet(gctx, facet, text)
			if err != nil {
				return err
			}
			results[i] = facetResult{facet: facet, vector: vec, tokens: tokens}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		rec.SetFacet(r.facet, r.vector)
		rec.TokenEstimate += r.tokens
	}

	if err := s.store.Upsert(ctx, rec); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist embeddings", err)
	}
	s.local.Set(compositeCacheKey(p.UserID), rec, cache.DefaultTTL)

	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": p.UserID,
			"model":   rec.Model,
			"tokens":  rec.TokenEstimate,
		}).Info("profile embeddings generated")
	}
	return rec, nil
}

// embedFacet resolves one facet vector: local cache, then the distributed
// layer, then the upstream provider through budget optimization and the
// resilient caller.
func (s *embeddingService) embedFacet(ctx context.Context, facet, text string) ([]float32, int, error) {
	const op = "EmbeddingService.embedFacet"

	key := facetCacheKey(facet, contentHash(text))
	tokens := budget.EstimateTokens(text)

	if v, ok := s.local.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			s.chargeSavings(ctx, tokens)
			return vec, tokens, nil
		}
	}
	if s.distributed != nil {
		var vec []float32
		if hit, err := s.distributed.GetJSON(ctx, key, &vec); err == nil && hit && len(vec) == s.provider.Dimension() {
			s.local.Set(key, vec, cache.FacetTTL)
			s.chargeSavings(ctx, tokens)
			return vec, tokens, nil
		}
	}

	opt := s.guard.Optimize(budget.Request{
		Category: budget.CategoryEmbedding,
		Text:     text,
		Model:    s.modelTier,
	})
	if opt.Skip {
		return nil, 0, utils.ED(utils.CodeBudgetExceeded, op,
			"embedding budget exhausted, use cached or degraded results", nil,
			map[string]any{"facet": facet, "estimated_cost": opt.EstimatedCost})
	}

	// The limiter slot is held across retries so backoff waits still count
	// against the in-flight bound.
	if err := s.limiter.Acquire(ctx, 1); err != nil {
		return nil, 0, utils.E(utils.CodeTimeout, op, "embedding limiter wait cancelled", err)
	}
	vec, err := resilience.Execute(ctx, s.caller, resilience.KindEmbedding, op,
		func(ctx context.Context) ([]float32, error) {
			return s.provider.Embed(ctx, opt.Request.Text)
		})
	s.limiter.Release(1)
	if err != nil {
		return nil, 0, err
	}

	s.guard.Charge(ctx, budget.CategoryEmbedding, opt.EstimatedCost, budget.ChargeMeta{
		Model:  opt.Request.Model,
		Tokens: budget.EstimateTokens(opt.Request.Text),
	})

	s.local.Set(key, vec, cache.FacetTTL)
	if s.distributed != nil {
		if err := s.distributed.SetJSON(ctx, key, vec, cache.FacetTTL); err != nil && s.log != nil {
			s.log.WithError(err).WithField("facet", facet).Debug("distributed cache set failed")
		}
	}
	return vec, tokens, nil
}

func (s *embeddingService) chargeSavings(ctx context.Context, tokens int) {
	est := s.guard.EstimateCost(budget.CategoryEmbedding, tokens, s.modelTier)
	s.guard.Charge(ctx, budget.CategoryEmbedding, est, budget.ChargeMeta{
		Model:  s.modelTier,
		Tokens: tokens,
		Cached: true,
	})
}

// GetEmbeddings checks the cache, then the store; a store hit repopulates
// the cache.
func (s *embeddingService) GetEmbeddings(ctx context.Context, userID string) (*models.ProfileEmbeddings, error) {
	const op = "EmbeddingService.GetEmbeddings"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	if v, ok := s.local.Get(compositeCacheKey(userID)); ok {
		if rec, ok := v.(*models.ProfileEmbeddings); ok {
			return rec, nil
		}
	}

	rec, err := s.store.Fetch(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "embeddings not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to fetch embeddings", err)
	}

	s.local.Set(compositeCacheKey(userID), rec, cache.DefaultTTL)
	return rec, nil
}

// GetOrCreate returns stored embeddings or generates them on first use.
func (s *embeddingService) GetOrCreate(ctx context.Context, p *models.Profile, prefs *models.Preferences) (*models.ProfileEmbeddings, error) {
	rec, err := s.GetEmbeddings(ctx, p.UserID)
	if err == nil {
		return rec, nil
	}
	if !utils.IsCode(err, utils.CodeNotFound) {
		return nil, err
	}
	return s.EmbedProfile(ctx, p, prefs)
}
