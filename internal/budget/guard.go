package budget

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qiranapp/qiran/internal/telemetry"
)

type Category string

const (
	CategoryEmbedding  Category = "embedding"
	CategoryCompletion Category = "completion"
	CategoryModeration Category = "moderation"
)

var Categories = []Category{CategoryEmbedding, CategoryCompletion, CategoryModeration}

// Model tiers known to the rate table.
const (
	ModelEmbeddingLarge = "text-embedding-large"
	ModelEmbeddingSmall = "text-embedding-small"
	ModelChatLarge      = "chat-large"
	ModelChatSmall      = "chat-small"
	ModelModeration     = "moderation-latest"
)

// rateTable is cost per token in USD. Static policy, not fetched at runtime.
var rateTable = map[Category]map[string]float64{
	CategoryEmbedding: {
		ModelEmbeddingLarge: 0.00000013,
		ModelEmbeddingSmall: 0.00000002,
	},
	CategoryCompletion: {
		ModelChatLarge: 0.0000025,
		ModelChatSmall: 0.0000006,
	},
	CategoryModeration: {
		ModelModeration: 0.0000001,
	},
}

// Alert thresholds as fractions of the daily total budget. Each fires at
// most once per day, in ascending order.
var alertThresholds = []float64{0.50, 0.75, 0.90}

const (
	// Inputs above this many estimated tokens are truncated before an
	// upstream call.
	maxInputTokens = 8000

	// charsPerToken is the usual rough estimate for English text.
	charsPerToken = 4
)

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	n := len(text) / charsPerToken
	if n < 1 && len(text) > 0 {
		n = 1
	}
	return n
}

type Limits struct {
	Daily map[Category]float64 // per-category daily budget, USD

	// LowBudgetFraction of a category's daily budget: below this remaining
	// amount, Optimize downgrades to the cheaper model tier.
	LowBudgetFraction float64
}

func DefaultLimits() Limits {
	return Limits{
		Daily: map[Category]float64{
			CategoryEmbedding:  5.0,
			CategoryCompletion: 20.0,
			CategoryModeration: 1.0,
		},
		LowBudgetFraction: 0.20,
	}
}

// Guard tracks per-category spend against rolling daily budgets. All state
// is guarded by one mutex; charge-with-threshold-check is atomic.
type Guard struct {
	mu sync.Mutex

	limits  Limits
	spend   map[Category]float64
	savings map[Category]float64
	total   float64

	alerted map[float64]bool // threshold -> fired today

	sink telemetry.Sink
	log  *logrus.Logger

	now func() time.Time
}

type GuardOption func(*Guard)

func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

func NewGuard(limits Limits, sink telemetry.Sink, log *logrus.Logger, opts ...GuardOption) *Guard {
	if limits.Daily == nil {
		limits = DefaultLimits()
	}
	if limits.LowBudgetFraction <= 0 {
		limits.LowBudgetFraction = 0.20
	}
	g := &Guard{
		limits:  limits,
		spend:   make(map[Category]float64),
		savings: make(map[Category]float64),
		alerted: make(map[float64]bool),
		sink:    sink,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EstimateCost returns units × rate for the model tier. Unknown models cost
// at the most expensive tier of the category, so estimates err high.
func (g *Guard) EstimateCost(category Category, units int, model string) float64 {
	rates, ok := rateTable[category]
	if !ok || units <= 0 {
		return 0
	}
	rate, ok := rates[model]
	if !ok {
		for _, r := range rates {
			if r > rate {
				rate = r
			}
		}
	}
	return float64(units) * rate
}

type ChargeMeta struct {
	Model  string
	Tokens int

	// Cached marks an operation served from cache or deduplicated; it is
	// accounted as savings, never as spend.
	Cached bool
}

// Charge records spend (or savings) for a category and emits threshold
// alerts when the day's total crosses 50/75/90% of the combined budget.
func (g *Guard) Charge(ctx context.Context, category Category, amount float64, meta ChargeMeta) {
	if amount <= 0 {
		return
	}

	g.mu.Lock()
	if meta.Cached {
		g.savings[category] += amount
		g.mu.Unlock()
		return
	}
	g.spend[category] += amount
	g.total += amount

	dailyTotal := g.dailyTotalLocked()
	var fired []telemetry.Alert
	for _, th := range alertThresholds {
		if g.alerted[th] || dailyTotal <= 0 {
			continue
		}
		if g.total >= dailyTotal*th {
			g.alerted[th] = true
			fired = append(fired, telemetry.Alert{
				Kind:     telemetry.KindCostThreshold,
				Severity: severityFor(th),
				Message:  "daily AI spend threshold crossed",
				Fields: map[string]any{
					"threshold_pct": int(th * 100),
					"spend_total":   g.total,
					"daily_budget":  dailyTotal,
					"category":      string(category),
					"model":         meta.Model,
				},
			})
		}
	}
	g.mu.Unlock()

	for _, a := range fired {
		if g.log != nil {
			g.log.WithFields(logrus.Fields{
				"threshold_pct": a.Fields["threshold_pct"],
				"spend_total":   a.Fields["spend_total"],
			}).Warn("cost threshold crossed")
		}
		if g.sink != nil {
			g.sink.Publish(ctx, a)
		}
	}
}

func (g *Guard) Remaining(category Category) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	rem := g.limits.Daily[category] - g.spend[category]
	if rem < 0 {
		return 0
	}
	return rem
}

func (g *Guard) IsExceeded(category Category) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.spend[category] >= g.limits.Daily[category]
}

// Snapshot reports current ledgers for the telemetry endpoint.
type Snapshot struct {
	Spend   map[Category]float64 `json:"spend"`
	Savings map[Category]float64 `json:"savings"`
	Budgets map[Category]float64 `json:"budgets"`
	Total   float64              `json:"total"`
}

func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Spend:   make(map[Category]float64, len(g.spend)),
		Savings: make(map[Category]float64, len(g.savings)),
		Budgets: make(map[Category]float64, len(g.limits.Daily)),
		Total:   g.total,
	}
	for k, v := range g.spend {
		s.Spend[k] = v
	}
	for k, v := range g.savings {
		s.Savings[k] = v
	}
	for k, v := range g.limits.Daily {
		s.Budgets[k] = v
	}
	return s
}

// Reset zeroes all ledgers and rearms the per-day alerts.
func (g *Guard) Reset(ctx context.Context) {
	g.mu.Lock()
	g.spend = make(map[Category]float64)
	g.savings = make(map[Category]float64)
	g.total = 0
	g.alerted = make(map[float64]bool)
	g.mu.Unlock()

	if g.log != nil {
		g.log.Info("daily budget reset")
	}
	if g.sink != nil {
		g.sink.Publish(ctx, telemetry.Alert{
			Kind:     telemetry.KindBudgetReset,
			Severity: "info",
			Message:  "daily budgets reset",
		})
	}
}

// Start runs the midnight reset loop until ctx is cancelled. The timer
// rearms itself for the next local-midnight boundary after each reset.
func (g *Guard) Start(ctx context.Context) {
	go func() {
		for {
			next := nextMidnight(g.now())
			timer := time.NewTimer(next.Sub(g.now()))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				g.Reset(ctx)
			}
		}
	}()
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
}

func (g *Guard) dailyTotalLocked() float64 {
	var sum float64
	for _, v := range g.limits.Daily {
		sum += v
	}
	return sum
}

func severityFor(threshold float64) string {
	switch {
	case threshold >= 0.90:
		return "critical"
	case threshold >= 0.75:
		return "warning"
	default:
		return "info"
	}
}
