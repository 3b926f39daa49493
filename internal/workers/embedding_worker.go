package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/qiranapp/qiran/internal/models"
	pgrepo "github.com/qiranapp/qiran/internal/repositories/postgres"
	"github.com/qiranapp/qiran/internal/services"
)

// EmbeddingWorkerPool consumes profile-update events and regenerates the
// profile's embeddings in the background, so match requests rarely pay the
// generation cost inline.
type EmbeddingWorkerPool struct {
	Redis      *redis.Client
	Profiles   pgrepo.ProfileRepository
	Embeddings services.EmbeddingService
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *EmbeddingWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Profiles == nil || p.Embeddings == nil {
		return errors.New("EmbeddingWorkerPool missing dependency: Redis/Profiles/Embeddings must be set")
	}
	if p.Stream == "" {
		p.Stream = services.ProfileUpdateStream
	}
	if p.Group == "" {
		p.Group = "embedding-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *EmbeddingWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *EmbeddingWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	userID, _ := msg.Values["user_id"].(string)
	if userID == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id": msg.ID,
		"user_id":  userID,
	})

	profile, err := p.Profiles.GetByUserID(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("profile load failed, skipping regeneration")
		return
	}

	start := time.Now()
	if _, err := p.Embeddings.EmbedProfile(ctx, profile, decodePrefs(profile)); err != nil {
		log.WithError(err).Error("embedding regeneration failed")
		return
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("embeddings regenerated")
}

func decodePrefs(p *models.Profile) *models.Preferences {
	if len(p.Preferences) == 0 {
		return nil
	}
	var prefs models.Preferences
	if err := json.Unmarshal(p.Preferences, &prefs); err != nil {
		return nil
	}
	return &prefs
}
