// Package agents implements the task-specific evaluators that turn one call
// transcript (and optionally upstream evaluator output) into a structured
// result. Every evaluator backfills missing required fields with
// deterministic defaults, so its contract is always satisfiable regardless
// of what the model returned.
package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
)

// Evaluator is one named evaluation unit.
type Evaluator interface {
	// Name is the evaluator's human-readable name.
	Name() string
	// Key is the field under which the orchestrator merges this
	// evaluator's result.
	Key() string
	// Evaluate runs the evaluator against a transcript. The upstream map
	// carries prior-stage output for chained evaluators; independent
	// evaluators ignore it. Parse failures are recovered locally through
	// backfill; only backend failures surface as errors.
	Evaluate(ctx context.Context, transcript string, upstream map[string]any) (map[string]any, error)
}

const jsonOnlyInstruction = "IMPORTANT: Always respond with valid JSON only. No markdown, no explanations outside JSON."

// base carries the shared invoke-then-parse plumbing.
type base struct {
	name    string
	key     string
	task    llm.Task
	role    string
	invoker llm.Invoker
	log     zerolog.Logger
}

func newBase(name, key string, task llm.Task, role string, invoker llm.Invoker, log zerolog.Logger) base {
	return base{
		name:    name,
		key:     key,
		task:    task,
		role:    role,
		invoker: invoker,
		log:     log.With().Str("agent", name).Logger(),
	}
}

func (b *base) Name() string { return b.name }
func (b *base) Key() string  { return b.key }

// complete invokes the model and parses its response. A parse failure yields
// an empty map for the caller's backfill to fill; backend errors (including
// timeouts) are returned for the orchestrator to capture. fallbackText is
// what the keyword fallback scans when the backend is unavailable: the bare
// transcript (or upstream payload), never the prompt boilerplate, so schema
// examples in the prompt cannot trip the keyword heuristics.
func (b *base) complete(ctx context.Context, prompt, fallbackText string) (map[string]any, error) {
	// The offline invoker has no model behind it; feed the keyword generator
	// the clean fallback text directly so schema examples in the prompt
	// cannot trip its heuristics.
	if _, offline := b.invoker.(*llm.FallbackInvoker); offline {
		return llm.GenerateFallback(b.task, fallbackText), nil
	}

	system := b.role + "\n" + jsonOnlyInstruction + "\n\nYou are running as: " + b.name

	text, err := b.invoker.Invoke(ctx, prompt, system)
	if err != nil {
		if errors.Is(err, llm.ErrBackendUnavailable) {
			b.log.Warn().Msg("backend unavailable, using task fallback")
			return llm.GenerateFallback(b.task, fallbackText), nil
		}
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}

	parsed, err := llm.ExtractJSONObject(text)
	if err != nil {
		b.log.Warn().Err(err).Msg("unparseable model response, backfilling defaults")
		return map[string]any{}, nil
	}
	b.log.Debug().Int("fields", len(parsed)).Msg("model response parsed")
	return parsed, nil
}

// --- shared coercion helpers -------------------------------------------------

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case jsonNumber:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// jsonNumber mirrors encoding/json.Number without forcing decoder options
// on callers.
type jsonNumber interface{ Float64() (float64, error) }

func floatField(m map[string]any, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		if f, ok := asFloat(v); ok {
			return f
		}
	}
	return def
}

func intField(m map[string]any, key string, def int) int {
	if v, ok := m[key]; ok {
		if f, ok := asFloat(v); ok {
			return int(f)
		}
	}
	return def
}

func boolField(m map[string]any, key string, def bool) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func stringField(m map[string]any, key, def string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func listField(m map[string]any, key string) ([]any, bool) {
	if v, ok := m[key]; ok {
		if l, ok := v.([]any); ok {
			return l, true
		}
	}
	return nil, false
}

func mapField(m map[string]any, key string) (map[string]any, bool) {
	if v, ok := m[key]; ok {
		if sub, ok := v.(map[string]any); ok {
			return sub, true
		}
	}
	return nil, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
