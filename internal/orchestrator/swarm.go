package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/alphacouncil/core/internal/envelope"
	"github.com/alphacouncil/core/internal/errkind"
	"github.com/alphacouncil/core/internal/normalize"
	"github.com/alphacouncil/core/internal/sandbox"
)

const (
	perCallDeadline = 15 * time.Second

	// maxInFlightSpecialists bounds the swarm fan-out; every specialist still
	// runs concurrently with the others up to this in-flight ceiling.
	maxInFlightSpecialists = 8
)

// InstrumentCandidate is one instrument-search hit (Tier 2 recovery).
type InstrumentCandidate struct {
	Ticker string
	Name   string
}

// InstrumentSearch is the external instrument-lookup tool used by Tier 2
// recovery.
type InstrumentSearch interface {
	Search(ctx context.Context, query string) ([]InstrumentCandidate, error)
}

// CodeRepair is the reasoning-LLM call used by Tier 3 recovery: given the
// specialist name, its original input, and the error, returns a JSON reply
// {reasoning, code} where code is a restricted expression.
type CodeRepair interface {
	Repair(ctx context.Context, specialistName string, input map[string]any, errKind string) (reasoning, code string, err error)
}

// Recovery bundles the tools needed by the Tier2/Tier3 recovery ladder. Any
// field may be nil, in which case that tier is skipped.
type Recovery struct {
	InstrumentSearch InstrumentSearch
	CodeRepair       CodeRepair
}

const tier2MinScore = 0.6

// SwarmResult is one specialist's outcome plus which tag it satisfied.
type SwarmResult struct {
	Tag      string
	Response envelope.Response
}

// RunSwarm fans out every envelope in envelopes (keyed by specialist tag)
// concurrently, applying the Tier2/Tier3 recovery ladder on failure before
// giving up. Each call gets its own perCallDeadline.
func RunSwarm(ctx context.Context, envelopes map[string]*envelope.Envelope, inputs map[string]map[string]any, recovery Recovery, correlationID string) []SwarmResult {
	var wg sync.WaitGroup
	results := make([]SwarmResult, len(envelopes))
	i := 0
	indexOf := make(map[string]int, len(envelopes))
	for tag := range envelopes {
		indexOf[tag] = i
		i++
	}

	sem := semaphore.NewWeighted(maxInFlightSpecialists)

	for tag, env := range envelopes {
		tag, env := tag, env
		input := inputs[tag]
		idx := indexOf[tag]

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[idx] = SwarmResult{Tag: tag, Response: envelope.Response{
					AgentName: env.Name(),
					Success:   false,
					Error:     string(errkind.Timeout),
				}}
				return
			}
			defer sem.Release(1)

			callCtx, cancel := context.WithTimeout(ctx, perCallDeadline)
			defer cancel()

			resp := env.Execute(callCtx, input, correlationID)
			if !resp.Success {
				resp = applyRecoveryLadder(callCtx, env, input, resp, recovery, correlationID)
			}
			results[idx] = SwarmResult{Tag: tag, Response: resp}
		}()
	}

	wg.Wait()
	return results
}

var recoverableNotFoundKinds = map[string]bool{
	string(errkind.NotFound): true,
	string(errkind.Delisted): true,
}

func applyRecoveryLadder(ctx context.Context, env *envelope.Envelope, input map[string]any, failed envelope.Response, recovery Recovery, correlationID string) envelope.Response {
	// Tier 1 (pre-call ticker normalization) is already applied by the
	// caller before input ever reaches this function.

	if recoverableNotFoundKinds[failed.Error] && recovery.InstrumentSearch != nil {
		if resp, ok := tryTier2(ctx, env, input, recovery.InstrumentSearch, correlationID); ok {
			return resp
		}
	}

	if recovery.CodeRepair != nil {
		if resp, ok := tryTier3(ctx, env, input, failed, recovery.CodeRepair, correlationID); ok {
			return resp
		}
	}

	return failed
}

func tryTier2(ctx context.Context, env *envelope.Envelope, input map[string]any, search InstrumentSearch, correlationID string) (envelope.Response, bool) {
	ticker, _ := input["ticker"].(string)
	if ticker == "" {
		return envelope.Response{}, false
	}

	candidates, err := search.Search(ctx, ticker)
	if err != nil || len(candidates) == 0 {
		return envelope.Response{}, false
	}

	best := bestCandidate(ticker, candidates)
	if best == nil {
		return envelope.Response{}, false
	}

	retryInput := cloneInput(input)
	retryInput["ticker"] = normalize.Ticker(best.Ticker)
	resp := env.Execute(ctx, retryInput, correlationID)
	return resp, resp.Success
}

func bestCandidate(query string, candidates []InstrumentCandidate) *InstrumentCandidate {
	var best *InstrumentCandidate
	bestScore := 0.0
	for i := range candidates {
		c := &candidates[i]
		score := lcsRatio(strings.ToUpper(query), strings.ToUpper(c.Ticker))
		if nameScore := lcsRatio(strings.ToUpper(query), strings.ToUpper(c.Name)); nameScore > score {
			score = nameScore
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if best == nil || bestScore < tier2MinScore {
		return nil
	}
	return best
}

// lcsRatio is the longest-common-subsequence ratio between a and b, used to
// score instrument-search candidates.
func lcsRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	la, lb := len(a), len(b)
	dp := make([][]int, la+1)
	for i := range dp {
		dp[i] = make([]int, lb+1)
	}
	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] > dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}
	lcs := dp[la][lb]
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return float64(lcs) / float64(maxLen)
}

func tryTier3(ctx context.Context, env *envelope.Envelope, input map[string]any, failed envelope.Response, repair CodeRepair, correlationID string) (envelope.Response, bool) {
	_, code, err := repair.Repair(ctx, env.Name(), input, failed.Error)
	if err != nil || strings.TrimSpace(code) == "" {
		return envelope.Response{}, false
	}

	vars := map[string]any{"input": input}
	result, err := sandbox.Eval(code, vars)
	if err != nil {
		return envelope.Response{}, false
	}

	newInput, ok := result.Value.(map[string]any)
	if !ok || len(newInput) == 0 {
		return envelope.Response{}, false
	}

	resp := env.Execute(ctx, newInput, correlationID)
	return resp, resp.Success
}

func cloneInput(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out
}
