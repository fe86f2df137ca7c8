package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/siderealhq/genesis/internal/domain"
)

// parseGeneratedQuestion strips markdown fences and unmarshals the backend's
// JSON. Structural validation against the issuing strategy happens in the
// probe generator; this only guarantees well-formed JSON.
func parseGeneratedQuestion(raw string) (*domain.GeneratedQuestion, error) {
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var q domain.GeneratedQuestion
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return nil, fmt.Errorf("parse question result: %w (raw: %s)", err, raw)
	}
	return &q, nil
}
