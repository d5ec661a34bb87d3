package generate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// payload is the structured content expected from the provider.
type payload struct {
	Topic       string   `json:"topic"`
	Suggestions []string `json:"suggestions"`
}

// parsePayload extracts topic and suggestions from raw model output. Models
// routinely wrap JSON in markdown code fences, so those are stripped before
// parsing. Anything else malformed is an error the caller treats as
// terminal.
func parsePayload(raw string, want int) (*payload, error) {
	var p payload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if p.Topic == "" {
		return nil, fmt.Errorf("payload missing topic")
	}

	suggestions := make([]string, 0, want)
	for _, s := range p.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			suggestions = append(suggestions, s)
		}
	}
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("payload contains no suggestions")
	}
	if len(suggestions) > want {
		suggestions = suggestions[:want]
	}
	p.Suggestions = suggestions
	return &p, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
