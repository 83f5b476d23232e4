package browse

import (
	"context"
	"regexp"
	"time"

	"github.com/entrhq/wander/pkg/browse/urlpolicy"
	"github.com/entrhq/wander/pkg/browser"
	"github.com/entrhq/wander/pkg/llm"
	"github.com/entrhq/wander/pkg/llm/decoder"
	"github.com/entrhq/wander/pkg/logging"
)

const (
	decideTimeout = 20 * time.Second

	// Link list caps for the decision prompt. The previous page's links are
	// offered too so the model can back out of a dead end.
	maxCurrentLinks  = 15
	maxPreviousLinks = 10
)

var urlInProseRe = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

// decision is the outcome of one deciding_next step.
type decision struct {
	Continue       bool
	NextURL        string
	IsBacktracking bool
	Reason         string
}

// decider picks the next link to follow, or decides to stop and
// summarize. It never returns an error: anything unparseable or invalid
// resolves to a stop decision.
type decider struct {
	provider llm.Provider
	policy   *urlpolicy.Policy
	logger   *logging.Logger
}

func newDecider(provider llm.Provider, policy *urlpolicy.Policy, logger *logging.Logger) *decider {
	return &decider{provider: provider, policy: policy, logger: logger}
}

// Decide chooses the next step given the current page's links and, for
// backtracking, the previous page's links.
func (d *decider) Decide(ctx context.Context, session *Session, current *PageVisit, previous *PageVisit) *decision {
	currentLinks := capLinks(current.Links, maxCurrentLinks)
	var previousLinks []browser.Link
	if previous != nil {
		previousLinks = capLinks(previous.Links, maxPreviousLinks)
	}

	if len(currentLinks) == 0 && len(previousLinks) == 0 {
		return &decision{Continue: false, Reason: "no links to follow"}
	}

	prompt := decidePrompt(
		session.Options().Goal,
		session.PageCount(),
		session.Options().MaxPages,
		formatVisited(session.Pages()),
		formatLinks(currentLinks, maxCurrentLinks),
		previousLinksBlock(previousLinks),
	)

	callCtx, cancel := context.WithTimeout(ctx, decideTimeout)
	defer cancel()

	raw, err := d.provider.ShortAnswer(callCtx, prompt)
	if err != nil {
		d.logger.Warnf("next-step decision failed, stopping: %v", err)
		return &decision{Continue: false, Reason: "decision call failed"}
	}

	return d.parse(raw, session, currentLinks, previousLinks)
}

func (d *decider) parse(raw string, session *Session, currentLinks, previousLinks []browser.Link) *decision {
	obj, ok := decoder.Extract(raw)
	if !ok {
		d.logger.Warnf("next-step decision was unparseable, stopping")
		return &decision{Continue: false, Reason: "decision was unparseable"}
	}

	cont, _ := decoder.GetBool(obj, "continue")
	reason := decoder.GetString(obj, "reason")
	if !cont {
		return &decision{Continue: false, Reason: reason}
	}

	choice := decoder.GetString(obj, "nextUrl")
	// Models sometimes answer in prose around the URL.
	if m := urlInProseRe.FindString(choice); m != "" {
		choice = m
	}

	resolved, fromPrevious := d.resolveChoice(choice, currentLinks, previousLinks)
	if resolved == "" {
		d.logger.Warnf("decision chose %q which matches no offered link, stopping", choice)
		return &decision{Continue: false, Reason: "chosen link was not among those offered"}
	}
	if session.HasVisited(resolved) || session.IsFailed(resolved) {
		d.logger.Infof("decision chose already-seen URL %s, stopping", resolved)
		return &decision{Continue: false, Reason: "chosen link was already visited"}
	}

	return &decision{
		Continue:       true,
		NextURL:        resolved,
		IsBacktracking: fromPrevious,
		Reason:         reason,
	}
}

// resolveChoice maps the model's answer onto one of the offered links,
// preferring the current page's links over the previous page's. The
// second return reports whether the resolved URL only appears among the
// previous page's links, which makes the step a backtrack.
func (d *decider) resolveChoice(choice string, currentLinks, previousLinks []browser.Link) (string, bool) {
	resolved, ok := d.policy.Resolve(choice, hrefs(currentLinks))
	if !ok {
		resolved, ok = d.policy.Resolve(choice, hrefs(previousLinks))
	}
	if !ok {
		return "", false
	}

	key := urlpolicy.Normalize(resolved)
	for _, l := range currentLinks {
		if urlpolicy.Normalize(l.Href) == key {
			return resolved, false
		}
	}
	for _, l := range previousLinks {
		if urlpolicy.Normalize(l.Href) == key {
			return resolved, true
		}
	}
	// A clean direct URL that is not in either list is a fresh hop, not a
	// backtrack.
	return resolved, false
}

func capLinks(links []browser.Link, max int) []browser.Link {
	if len(links) > max {
		return links[:max]
	}
	return links
}

func hrefs(links []browser.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.Href
	}
	return out
}

func previousLinksBlock(links []browser.Link) string {
	if len(links) == 0 {
		return ""
	}
	return "Links from the previous page (you may step back to one of these):\n" + formatLinks(links, maxPreviousLinks)
}
