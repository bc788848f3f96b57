package persona

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/soulmint/soulmint/pkg/evolution"
	"github.com/soulmint/soulmint/pkg/providers"
)

// RewriteEngine implements evolution.Rewriter on top of an LLMProvider.
type RewriteEngine struct {
	provider providers.LLMProvider
	model    string
	limiter  *rate.Limiter
}

// NewRewriteEngine mirrors NewReplyEngine. Pass the same limiter budget
// used for replies so both paths share one provider quota.
func NewRewriteEngine(provider providers.LLMProvider, model string, requestsPerMinute int) *RewriteEngine {
	if model == "" {
		model = provider.GetDefaultModel()
	}
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
	}
	return &RewriteEngine{provider: provider, model: model, limiter: limiter}
}

// Rewrite asks the model to evolve the personality for a tier change and
// returns the raw output. Parsing stays with the evolution coordinator.
func (e *RewriteEngine) Rewrite(ctx context.Context, req evolution.Request) (string, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", providers.Classify(err)
		}
	}

	messages := []providers.Message{
		{Role: "system", Content: rewriteSystemPrompt},
		{Role: "user", Content: buildRewritePrompt(req)},
	}

	resp, err := e.provider.Chat(ctx, messages, e.model, map[string]any{
		"temperature": 0.9,
	})
	if err != nil {
		return "", providers.Classify(err)
	}
	return resp.Content, nil
}

const rewriteSystemPrompt = `You evolve the personalities of digital companions when they ascend to a higher rarity tier.
Respond with a single JSON object and nothing else:
{"updated_personality": "...", "updated_tagline": "...", "updated_skills": ["..."], "evolution_summary": "..."}`

func buildRewritePrompt(req evolution.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A companion is ascending from %s to %s.\n\n",
		req.FromTier.DisplayName(), req.ToTier.DisplayName())
	fmt.Fprintf(&b, "Current personality: %s\n", req.Personality)
	fmt.Fprintf(&b, "Current tagline: %s\n", req.Tagline)
	fmt.Fprintf(&b, "Unlocked skills: %s\n\n", strings.Join(req.Skills, ", "))
	b.WriteString("Deepen the personality to reflect the new tier. Keep its core traits recognizable. The tagline should be one short line.")
	return b.String()
}
