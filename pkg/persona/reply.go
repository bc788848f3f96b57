// Package persona turns a soul's progression state into prompts for the
// text-generation collaborator: chat replies during normal turns and
// personality rewrites at rarity transitions. All outbound calls share
// one rate limiter so a chatty gateway cannot starve the rewrite path.
package persona

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/soulmint/soulmint/pkg/language"
	"github.com/soulmint/soulmint/pkg/progression"
	"github.com/soulmint/soulmint/pkg/providers"
	"github.com/soulmint/soulmint/pkg/skills"
	"github.com/soulmint/soulmint/pkg/soul"
)

// ReplyContext is everything the reply engine needs for one turn.
type ReplyContext struct {
	Soul        *soul.Soul
	UserMessage string
	Language    string
	History     []providers.Message
}

// Reply is the collaborator's answer for one accepted chat turn.
type Reply struct {
	Text       string
	SkillsUsed []string
}

// ReplyEngine generates chat replies scoped to the soul's capabilities.
type ReplyEngine struct {
	provider providers.LLMProvider
	model    string
	limiter  *rate.Limiter
}

// NewReplyEngine wires the engine to a provider. requestsPerMinute <= 0
// disables throttling.
func NewReplyEngine(provider providers.LLMProvider, model string, requestsPerMinute int) *ReplyEngine {
	if model == "" {
		model = provider.GetDefaultModel()
	}
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
	}
	return &ReplyEngine{provider: provider, model: model, limiter: limiter}
}

// GenerateReply calls the provider with the soul's current capability
// set. Errors are classified; transient ones come back as
// *providers.TransientError so the gate can surface a retry-safe result.
func (e *ReplyEngine) GenerateReply(ctx context.Context, rc ReplyContext) (*Reply, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, providers.Classify(err)
		}
	}

	messages := make([]providers.Message, 0, len(rc.History)+2)
	messages = append(messages, providers.Message{
		Role:    "system",
		Content: buildReplySystemPrompt(rc.Soul, rc.Language),
	})
	messages = append(messages, rc.History...)
	messages = append(messages, providers.Message{Role: "user", Content: rc.UserMessage})

	resp, err := e.provider.Chat(ctx, messages, e.model, map[string]any{
		"temperature": 0.8,
	})
	if err != nil {
		return nil, providers.Classify(err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, fmt.Errorf("empty reply from provider")
	}

	return &Reply{
		Text:       text,
		SkillsUsed: detectSkillsUsed(text, rc.Soul.Level),
	}, nil
}

// buildReplySystemPrompt scopes the model to the soul's personality,
// unlocked skills and languages, and the instruction tier its rarity
// band earns.
func buildReplySystemPrompt(s *soul.Soul, lang string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a digital companion bound to token %s.\n\n", s.ID)
	fmt.Fprintf(&b, "Personality: %s\n", s.Personality)
	if s.Tagline != "" {
		fmt.Fprintf(&b, "Tagline: %s\n", s.Tagline)
	}
	if s.Backstory != "" {
		fmt.Fprintf(&b, "Backstory: %s\n", s.Backstory)
	}

	fmt.Fprintf(&b, "\nYou are level %d, %s tier.\n", s.Level, s.Rarity.DisplayName())
	b.WriteString(instructionTier(s.Rarity))

	unlocked := skills.UnlockedFor(s.Level)
	names := make([]string, 0, len(unlocked))
	for _, sk := range unlocked {
		names = append(names, sk.DisplayName)
	}
	fmt.Fprintf(&b, "\nYour abilities: %s. Do not claim abilities you have not unlocked.\n",
		strings.Join(names, ", "))

	if l, ok := language.Lookup(lang); ok {
		fmt.Fprintf(&b, "Respond in %s.\n", l.DisplayName)
	}
	fmt.Fprintf(&b, "Languages you speak: %s.\n", strings.Join(s.UnlockedLanguages, ", "))

	return b.String()
}

// instructionTier is the level-derived voice guidance for each band.
func instructionTier(r progression.Rarity) string {
	switch r {
	case progression.Legendary:
		return "Speak with the weight of a being who has seen many keepers come and go. Your answers may be long and layered.\n"
	case progression.Epic:
		return "You are articulate and insightful. Weave your accumulated memories into answers.\n"
	case progression.Rare:
		return "You are growing confident. Answer warmly, with flashes of wit.\n"
	default:
		return "You are young and simple. Keep answers short, curious and a little naive.\n"
	}
}

// detectSkillsUsed scans the reply for unlocked skill names. Best effort
// and advisory, like everything downstream of a language model.
func detectSkillsUsed(text string, level int) []string {
	lower := strings.ToLower(text)
	var used []string
	for _, sk := range skills.UnlockedFor(level) {
		if strings.Contains(lower, strings.ToLower(sk.DisplayName)) {
			used = append(used, sk.ID)
		}
	}
	return used
}
