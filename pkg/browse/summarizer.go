package browse

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/wander/pkg/llm"
	"github.com/entrhq/wander/pkg/logging"
)

// summarizer turns a session's visit history into a first-person report.
// A failed call degrades to a stitched-together fallback built from the
// collected key points. The call carries no timeout of its own: the
// browse loop has already exited, so only the parent context (shutdown
// or cancel) bounds it.
type summarizer struct {
	provider llm.Provider
	logger   *logging.Logger
}

func newSummarizer(provider llm.Provider, logger *logging.Logger) *summarizer {
	return &summarizer{provider: provider, logger: logger}
}

func (s *summarizer) Summarize(ctx context.Context, session *Session) string {
	pages := session.Pages()
	if len(pages) == 0 {
		return ""
	}

	answer, err := s.provider.ShortAnswer(ctx, summaryPrompt(session.Options().Goal, pages))
	if err != nil {
		s.logger.Warnf("summary generation failed, using fallback: %v", err)
		return fallbackSummary(pages)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fallbackSummary(pages)
	}
	return answer
}

func fallbackSummary(pages []PageVisit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I looked through %d page(s).", len(pages))
	for _, p := range pages {
		if len(p.KeyPoints) > 0 {
			fmt.Fprintf(&b, " From %s: %s.", p.Title, strings.Join(p.KeyPoints, "; "))
		}
	}
	return b.String()
}
