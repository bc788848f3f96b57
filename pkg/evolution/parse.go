package evolution

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RewriteResult is the structured payload expected back from the
// personality-rewrite collaborator.
type RewriteResult struct {
	UpdatedPersonality string   `json:"updated_personality"`
	UpdatedTagline     string   `json:"updated_tagline"`
	UpdatedSkills      []string `json:"updated_skills"`
	EvolutionSummary   string   `json:"evolution_summary"`
}

// ParseRewrite parses the collaborator's raw output. Accepted encodings
// are a bare JSON object or a JSON object inside a fenced code block;
// anything else is a parse failure. A result without an updated
// personality is rejected too, since applying it would wipe the soul.
func ParseRewrite(raw string) (*RewriteResult, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return nil, fmt.Errorf("rewrite response is empty")
	}

	if strings.HasPrefix(body, "```") {
		var err error
		body, err = unfence(body)
		if err != nil {
			return nil, err
		}
	}

	if !strings.HasPrefix(body, "{") {
		return nil, fmt.Errorf("rewrite response is not a JSON object")
	}

	var result RewriteResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, fmt.Errorf("decode rewrite response: %w", err)
	}
	if strings.TrimSpace(result.UpdatedPersonality) == "" {
		return nil, fmt.Errorf("rewrite response missing updated_personality")
	}
	return &result, nil
}

// unfence extracts the body of a ``` or ```json fenced block.
func unfence(body string) (string, error) {
	first := strings.Index(body, "\n")
	if first < 0 {
		return "", fmt.Errorf("malformed code fence in rewrite response")
	}
	rest := body[first+1:]
	end := strings.LastIndex(rest, "```")
	if end < 0 {
		return "", fmt.Errorf("unterminated code fence in rewrite response")
	}
	return strings.TrimSpace(rest[:end]), nil
}
