package browse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/wander/pkg/browse/urlpolicy"
	"github.com/entrhq/wander/pkg/llm"
	"github.com/entrhq/wander/pkg/logging"
	"github.com/entrhq/wander/pkg/search"
)

const (
	intentTimeout = 15 * time.Second
	searchTimeout = 20 * time.Second
)

// planner turns a browsing goal into an intent line and an entry URL by
// searching the web and filtering candidates through the URL policy.
type planner struct {
	provider llm.Provider
	search   search.Client
	policy   *urlpolicy.Policy
	logger   *logging.Logger
}

func newPlanner(provider llm.Provider, searchClient search.Client, policy *urlpolicy.Policy, logger *logging.Logger) *planner {
	return &planner{
		provider: provider,
		search:   searchClient,
		policy:   policy,
		logger:   logger,
	}
}

// FindEntry searches the web for the goal and returns the first candidate
// the URL policy accepts. A failed search or an empty candidate list is
// fatal and returns a *PlanningError.
func (p *planner) FindEntry(ctx context.Context, goal string) (string, error) {
	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	citations, err := p.search.FindEntryCandidates(searchCtx, goal)
	if err != nil {
		return "", &PlanningError{Goal: goal, Err: fmt.Errorf("search failed: %w", err)}
	}

	for _, c := range citations {
		clean, err := p.policy.Sanitize(c.URL)
		if err != nil {
			p.logger.Debugf("skipping search result %s: %v", c.URL, err)
			continue
		}
		return clean, nil
	}

	return "", &PlanningError{Goal: goal, Err: errors.New("no policy-valid entry URL among search results")}
}

// Intent asks the model for a first-person statement of what it is about
// to look for. Any failure falls back to a canned phrase so planning never
// dies on a cosmetic call.
func (p *planner) Intent(ctx context.Context, goal string) string {
	intentCtx, cancel := context.WithTimeout(ctx, intentTimeout)
	defer cancel()

	answer, err := p.provider.ShortAnswer(intentCtx, intentPrompt(goal))
	if err != nil {
		p.logger.Warnf("intent generation failed, using fallback: %v", err)
		return fallbackIntent(goal)
	}
	answer = strings.TrimSpace(strings.Trim(strings.TrimSpace(answer), `"`))
	if answer == "" {
		return fallbackIntent(goal)
	}
	return answer
}

func fallbackIntent(goal string) string {
	return fmt.Sprintf("I'm going to look into: %s", goal)
}
