package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrParse means no JSON object could be extracted from the model text.
// Callers treat it as "could not parse" and apply their own defaults.
var ErrParse = errors.New("llm: response is not parseable JSON")

// ExtractJSONObject pulls a single JSON object out of raw model text that may
// be wrapped in prose or Markdown code fences. It strips fence markers and
// decodes the span from the first '{' to the last '}'.
func ExtractJSONObject(text string) (map[string]any, error) {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no object span found", ErrParse)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(clean[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return result, nil
}
