package orchestrator

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/alphacouncil/core/internal/bus"
	"github.com/alphacouncil/core/internal/obslog"
)

const maxToolLoopIterations = 3

// sensitiveTools are intercepted rather than executed:
// order placement/cancellation and pie mutation always become a
// human-approval sentinel instead of running.
var sensitiveTools = map[string]bool{
	"place_market_order":    true,
	"place_limit_order":     true,
	"place_stop_order":      true,
	"place_stop_limit_order": true,
	"cancel_order":          true,
	"create_investment_pie": true,
	"update_investment_pie": true,
	"delete_investment_pie": true,
}

var toolCallPattern = regexp.MustCompile(`\[TOOL:([a-zA-Z_][a-zA-Z0-9_]*)\((.*?)\)\]`)

// ToolExecutor runs one non-sensitive tool call and returns its result as
// injectable content.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, args map[string]any) (string, error)
}

// RunToolLoop scans draft for [TOOL:name(json-args)] markers, intercepts
// sensitive tools into [ACTION_REQUIRED:name] sentinels, executes the rest
// concurrently via executor, and loops at most maxToolLoopIterations times.
// The bus argument b is not used.
func RunToolLoop(ctx context.Context, b *bus.Bus, executor ToolExecutor, draft string, correlationID string) string {
	log := obslog.New("orchestrator.toolloop")
	current := draft

	for iter := 0; iter < maxToolLoopIterations; iter++ {
		matches := toolCallPattern.FindAllStringSubmatch(current, -1)
		if len(matches) == 0 {
			break
		}

		type call struct{ full, name, argsJSON string }
		unique := make([]call, 0, len(matches))
		seen := make(map[string]bool, len(matches))
		for _, m := range matches {
			full, name, argsJSON := m[0], m[1], m[2]
			if seen[full] {
				continue
			}
			seen[full] = true
			unique = append(unique, call{full, name, argsJSON})
		}

		// Tool calls within one round run concurrently;
		// results are applied in the deterministic order they appeared in
		// the model's output, not completion order.
		replacements := make([]string, len(unique))
		var wg sync.WaitGroup
		for i, c := range unique {
			if sensitiveTools[c.name] {
				replacements[i] = "[ACTION_REQUIRED:" + c.name + "] Parameters: " + c.argsJSON
				continue
			}
			wg.Add(1)
			go func(i int, c call) {
				defer wg.Done()
				var args map[string]any
				if c.argsJSON != "" {
					if err := json.Unmarshal([]byte(c.argsJSON), &args); err != nil {
						log.Warn().Err(err).Str("tool", c.name).Msg("failed to parse tool call args")
						replacements[i] = "[TOOL_ERROR:" + c.name + "]"
						return
					}
				}
				result, err := executor.Execute(ctx, c.name, args)
				if err != nil {
					log.Warn().Err(err).Str("tool", c.name).Msg("tool execution failed")
					replacements[i] = "[TOOL_ERROR:" + c.name + "]"
					return
				}
				replacements[i] = result
			}(i, c)
		}
		wg.Wait()

		next := current
		changed := false
		for i, c := range unique {
			if strings.Contains(next, c.full) {
				next = strings.ReplaceAll(next, c.full, replacements[i])
				changed = true
			}
		}
		if !changed {
			break
		}
		current = next
	}

	return current
}

// chainOfThoughtPattern delimits optional chain-of-thought in a reasoning
// model's reply.
var chainOfThoughtPattern = regexp.MustCompile(`(?s)<thinking>(.*?)</thinking>`)

// ExtractChainOfThought pulls any <thinking>...</thinking> block out of raw,
// returning the stripped user-visible text and the extracted reasoning (""
// if none present).
func ExtractChainOfThought(raw string) (visible string, reasoning string) {
	m := chainOfThoughtPattern.FindStringSubmatch(raw)
	if m == nil {
		return strings.TrimSpace(raw), ""
	}
	reasoning = strings.TrimSpace(m[1])
	visible = strings.TrimSpace(chainOfThoughtPattern.ReplaceAllString(raw, ""))
	return visible, reasoning
}
