package budget

// Request is an upstream AI call about to be made, as seen by the guard.
type Request struct {
	Category        Category
	Text            string
	Model           string
	MaxOutputTokens int // 0 = provider default; completion calls only
}

// Optimization names appended to AppliedOptimizations.
const (
	OptTruncateInput   = "truncate_input"
	OptModelDowngrade  = "model_downgrade"
	OptReduceOutputCap = "reduce_output_cap"
)

type Optimized struct {
	Request              Request
	AppliedOptimizations []string
	EstimatedCost        float64
	Skip                 bool // caller should serve a cached/degraded result
}

// downgrades maps each model tier to its cheaper sibling.
var downgrades = map[string]string{
	ModelEmbeddingLarge: ModelEmbeddingSmall,
	ModelChatLarge:      ModelChatSmall,
}

// Optimize rewrites a request to fit the remaining budget. Applied in order:
// truncate oversized input, downgrade the model tier when the category is
// low on budget, shrink the output cap when budget is tight, and finally
// flag skip when even the optimized call would overrun the remainder.
func (g *Guard) Optimize(req Request) Optimized {
	out := Optimized{Request: req}

	if tokens := EstimateTokens(req.Text); tokens > maxInputTokens {
		out.Request.Text = req.Text[:maxInputTokens*charsPerToken]
		out.AppliedOptimizations = append(out.AppliedOptimizations, OptTruncateInput)
	}

	g.mu.Lock()
	remaining := g.limits.Daily[req.Category] - g.spend[req.Category]
	lowWater := g.limits.Daily[req.Category] * g.limits.LowBudgetFraction
	g.mu.Unlock()

	if remaining < lowWater {
		if cheaper, ok := downgrades[out.Request.Model]; ok {
			out.Request.Model = cheaper
			out.AppliedOptimizations = append(out.AppliedOptimizations, OptModelDowngrade)
		}
		if out.Request.MaxOutputTokens > 256 {
			out.Request.MaxOutputTokens = 256
			out.AppliedOptimizations = append(out.AppliedOptimizations, OptReduceOutputCap)
		}
	}

	units := EstimateTokens(out.Request.Text) + out.Request.MaxOutputTokens
	out.EstimatedCost = g.EstimateCost(req.Category, units, out.Request.Model)

	if out.EstimatedCost > remaining {
		out.Skip = true
	}
	return out
}
