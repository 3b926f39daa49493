package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Alert kinds published to the sink.
const (
	KindCostThreshold = "cost_threshold"
	KindBudgetReset   = "budget_reset"
	KindBreakerOpen   = "breaker_open"
	KindBreakerClosed = "breaker_closed"
)

type Alert struct {
	Kind      string         `json:"kind"`
	Severity  string         `json:"severity"` // info|warning|critical
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink receives cost-threshold alerts and circuit-breaker events. The
// receiving side (ops tooling) is an external collaborator.
type Sink interface {
	Publish(ctx context.Context, a Alert)
}

// RedisSink publishes alerts as JSON on a pub/sub channel.
type RedisSink struct {
	rdb     *redis.Client
	channel string
	log     *logrus.Logger
}

func NewRedisSink(rdb *redis.Client, channel string, log *logrus.Logger) *RedisSink {
	if channel == "" {
		channel = "qiran:alerts"
	}
	return &RedisSink{rdb: rdb, channel: channel, log: log}
}

func (s *RedisSink) Publish(ctx context.Context, a Alert) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	b, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, s.channel, string(b)).Err(); err != nil && s.log != nil {
		s.log.WithError(err).WithField("kind", a.Kind).Warn("alert publish failed")
	}
}

// LogSink writes alerts to the structured log only. Used in tests and as a
// fallback when Redis is not configured.
type LogSink struct {
	Log *logrus.Logger
}

func (s *LogSink) Publish(_ context.Context, a Alert) {
	if s.Log == nil {
		return
	}
	entry := s.Log.WithFields(logrus.Fields{
		"kind":     a.Kind,
		"severity": a.Severity,
	})
	for k, v := range a.Fields {
		entry = entry.WithField(k, v)
	}
	switch a.Severity {
	case "critical":
		entry.Error(a.Message)
	case "warning":
		entry.Warn(a.Message)
	default:
		entry.Info(a.Message)
	}
}
