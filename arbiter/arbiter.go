// Package arbiter implements multi-backend answer arbitration: a query fans
// out to several text-completion backends, each responding backend rates the
// other candidates' answers, and the answer with the most "correct" verdicts
// wins. Ties are broken deterministically in favor of the backend that
// appears earliest in the configured backend order.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nlip-soln/nlipmesh/gateway"
	"github.com/nlip-soln/nlipmesh/gateway/ollama"
	"github.com/nlip-soln/nlipmesh/logging"
)

// ErrNoBackendsAvailable indicates every configured backend failed to answer
// the query. Per-backend failures are tolerated and logged; only total
// failure is fatal.
var ErrNoBackendsAvailable = errors.New("no backends available")

// Backend identifies one arbitration target: host, port and model. The list
// order given to New is significant for tie-breaking. Descriptors are static
// configuration, immutable during a run.
type Backend struct {
	Name  string
	Host  string
	Port  int
	Model string
}

// BaseURL returns the backend's HTTP base URL.
func (b Backend) BaseURL() string { return fmt.Sprintf("http://%s:%d", b.Host, b.Port) }

// GatewayFactory builds a gateway for a backend descriptor. The default
// factory targets Ollama servers; tests and alternative deployments inject
// their own.
type GatewayFactory func(b Backend) gateway.Gateway

// Options configure an Arbitrator.
type Options struct {
	// Timeout bounds each per-backend call (both the answer and the rating
	// round). Slow backends are excluded, not waited for indefinitely.
	Timeout time.Duration
	Factory GatewayFactory
	Logger  logging.Logger
}

// Arbitrator fans a query out to its backends and selects a winner by peer
// vote. It holds no state across queries beyond the static backend set.
type Arbitrator struct {
	backends []Backend
	gateways []gateway.Gateway
	timeout  time.Duration
	logger   logging.Logger
}

// Result carries the arbitration outcome: the winning backend, its answer
// and the full vote tally (one entry per responding backend).
type Result struct {
	Winner string
	Answer string
	Tally  map[string]int
}

// New creates an Arbitrator over the given ordered backend list.
func New(backends []Backend, optFns ...func(o *Options)) *Arbitrator {
	opts := Options{
		Timeout: 30 * time.Second,
		Factory: func(b Backend) gateway.Gateway {
			return ollama.New(func(o *ollama.Options) {
				o.BaseURL = b.BaseURL()
				o.Model = b.Model
			})
		},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	gateways := make([]gateway.Gateway, len(backends))
	for i, b := range backends {
		gateways[i] = opts.Factory(b)
	}
	return &Arbitrator{
		backends: backends,
		gateways: gateways,
		timeout:  opts.Timeout,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// candidate is one backend that answered the query, in configured order.
type candidate struct {
	index  int // position in the configured backend list
	answer string
}

// Arbitrate runs the full vote cycle for one query. Backends that fail to
// answer are excluded and logged; if all fail the returned error wraps
// ErrNoBackendsAvailable. No results are cached across queries.
func (a *Arbitrator) Arbitrate(ctx context.Context, query string) (*Result, error) {
	if len(a.backends) == 0 {
		return nil, fmt.Errorf("%w: none configured", ErrNoBackendsAvailable)
	}

	candidates := a.collectAnswers(ctx, query)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: all %d backends failed", ErrNoBackendsAvailable, len(a.backends))
	}

	tally := a.collectVotes(ctx, query, candidates)

	// Highest tally wins; ties go to the candidate whose backend appears
	// earliest in the configured order. Candidates are already ordered, so
	// a strict comparison implements the tie-break.
	winner := candidates[0]
	for _, c := range candidates[1:] {
		if tally[a.backends[c.index].Name] > tally[a.backends[winner.index].Name] {
			winner = c
		}
	}

	name := a.backends[winner.index].Name
	a.logger.Info("arbitration completed", "winner", name, "responders", len(candidates), "tally", tally)
	return &Result{Winner: name, Answer: winner.answer, Tally: tally}, nil
}

// collectAnswers fans the query out to every backend concurrently with a
// per-backend timeout and returns the responders in configured order.
func (a *Arbitrator) collectAnswers(ctx context.Context, query string) []candidate {
	answers := make([]string, len(a.backends))
	failed := make([]bool, len(a.backends))

	var wg sync.WaitGroup
	for i := range a.backends {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			answer, err := a.gateways[i].Complete(callCtx, query)
			if err != nil {
				failed[i] = true
				a.logger.Warn("backend excluded from arbitration", "backend", a.backends[i].Name, "error", err)
				return
			}
			answers[i] = answer
		}(i)
	}
	wg.Wait()

	var candidates []candidate
	for i := range a.backends {
		if !failed[i] {
			candidates = append(candidates, candidate{index: i, answer: answers[i]})
		}
	}
	return candidates
}

// collectVotes asks every responding backend to rate all OTHER responders'
// answers and tallies the correct verdicts. A backend never rates its own
// answer. Raters whose rating call fails or returns unparsable output simply
// contribute no votes.
func (a *Arbitrator) collectVotes(ctx context.Context, query string, candidates []candidate) map[string]int {
	tally := make(map[string]int, len(candidates))
	for _, c := range candidates {
		tally[a.backends[c.index].Name] = 0
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, rater := range candidates {
		peers := make([]candidate, 0, len(candidates)-1)
		for _, c := range candidates {
			if c.index != rater.index {
				peers = append(peers, c)
			}
		}
		if len(peers) == 0 {
			continue
		}

		wg.Add(1)
		go func(rater candidate, peers []candidate) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			raw, err := a.gateways[rater.index].Complete(callCtx, ratingPrompt(query, peers))
			if err != nil {
				a.logger.Warn("rating call failed, rater contributes no votes", "backend", a.backends[rater.index].Name, "error", err)
				return
			}
			verdicts, ok := parseVerdicts(raw, len(peers))
			if !ok {
				a.logger.Warn("unparsable rating output, rater contributes no votes", "backend", a.backends[rater.index].Name)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			for peerPos, correct := range verdicts {
				if correct {
					tally[a.backends[peers[peerPos].index].Name]++
				}
			}
		}(rater, peers)
	}
	wg.Wait()
	return tally
}

func ratingPrompt(query string, peers []candidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are judging answers produced by other assistants for a user query.\n\nQuery: %q\n\nCandidate answers:\n", query)
	for i, p := range peers {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p.answer)
	}
	fmt.Fprintf(&sb, "\nFor each candidate, judge whether it correctly answers the query.\n")
	fmt.Fprintf(&sb, "Respond with a JSON object in this format:\n")
	fmt.Fprintf(&sb, "{\"verdicts\": [{\"answer\": 1, \"correct\": true}, {\"answer\": 2, \"correct\": false}]}\n")
	fmt.Fprintf(&sb, "Include exactly one verdict per candidate (1 through %d). Only respond with the JSON object, no additional text.", len(peers))
	return sb.String()
}
