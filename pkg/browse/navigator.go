package browse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/wander/pkg/browse/urlpolicy"
	"github.com/entrhq/wander/pkg/browser"
	"github.com/entrhq/wander/pkg/logging"
)

const (
	// maxNavRetries is the retry budget per URL beyond the first attempt.
	maxNavRetries = 2

	// navOuterTimeout caps one attempt end to end, including extraction.
	navOuterTimeout = 35 * time.Second

	// navInnerTimeout is handed to the browser for the page load itself.
	navInnerTimeout = 30 * time.Second

	backoffBase = time.Second
	backoffCap  = 5 * time.Second

	// minContentLength is the threshold below which a page is considered
	// empty and rejected.
	minContentLength = 100

	// A long or link-rich page is let through even when a block signature
	// matches, since real articles quote those phrases.
	blockPageMinLength = 500
	blockPageMinLinks  = 3
)

// blockSignatures are lowercase phrases that usually mean the page is a
// wall rather than content.
var blockSignatures = []string{
	"access denied",
	"captcha",
	"sign in to continue",
	"404",
	"403",
}

// navigator drives page visits through a session's browser context,
// with retries, backoff, and a content-quality check.
type navigator struct {
	policy *urlpolicy.Policy
	logger *logging.Logger
	clock  func() time.Time
	sleep  func(context.Context, time.Duration) error
}

func newNavigator(policy *urlpolicy.Policy, logger *logging.Logger) *navigator {
	return &navigator{
		policy: policy,
		logger: logger,
		clock:  time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffFor returns the delay before the given retry attempt (1-based).
func backoffFor(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	if d > backoffCap {
		d = backoffCap
	}
	return d
}

// Visit navigates to url and returns the extracted page. It retries
// transient failures up to the retry budget; a content-quality rejection
// consumes the whole budget at once. On exhaustion the URL is marked
// failed on the session and a *NavigationError is returned.
func (n *navigator) Visit(ctx context.Context, session *Session, page PageContext, url string) (*browser.PageResult, error) {
	opts := browser.Options{
		Timeout:       navInnerTimeout,
		CaptureVisual: session.Options().CaptureVisual,
	}

	var lastErr error
	for attempt := 0; attempt <= maxNavRetries; attempt++ {
		session.setRetryCount(attempt)
		if attempt > 0 {
			delay := backoffFor(attempt)
			n.logger.Infof("retrying %s in %s (attempt %d/%d)", url, delay, attempt+1, maxNavRetries+1)
			if err := n.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		result, err := n.attempt(ctx, page, url, opts)
		if err == nil {
			result.Links = n.sanitizeLinks(result.FinalURL, result.Links)
			return result, nil
		}

		lastErr = err
		if isLowQuality(err) || ctx.Err() != nil {
			break
		}
		n.logger.Warnf("navigation attempt %d for %s failed: %v", attempt+1, url, err)
	}

	session.MarkFailed(url)
	return nil, &NavigationError{URL: url, Err: lastErr}
}

func (n *navigator) attempt(ctx context.Context, page PageContext, url string, opts browser.Options) (*browser.PageResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, navOuterTimeout)
	defer cancel()

	result, err := page.Navigate(attemptCtx, url, opts)
	if err != nil {
		return nil, err
	}

	if err := n.checkQuality(result); err != nil {
		return nil, err
	}
	return result, nil
}

// checkQuality rejects empty pages and obvious access walls.
func (n *navigator) checkQuality(result *browser.PageResult) error {
	text := strings.TrimSpace(result.TextContent)
	if len(text) < minContentLength {
		return fmt.Errorf("%w: only %d characters of text", errLowQuality, len(text))
	}

	lower := strings.ToLower(text)
	for _, sig := range blockSignatures {
		if !strings.Contains(lower, sig) {
			continue
		}
		if len(text) > blockPageMinLength || len(result.Links) > blockPageMinLinks {
			n.logger.Warnf("page %s matches block signature %q but looks substantial, accepting", result.FinalURL, sig)
			return nil
		}
		return fmt.Errorf("%w: block signature %q", errLowQuality, sig)
	}
	return nil
}

// sanitizeLinks filters extracted links through the URL policy and dedupes
// them by normalized form, preserving document order.
func (n *navigator) sanitizeLinks(baseURL string, links []browser.Link) []browser.Link {
	seen := map[string]bool{urlpolicy.Normalize(baseURL): true}
	out := make([]browser.Link, 0, len(links))
	for _, link := range links {
		clean, err := n.policy.Sanitize(link.Href)
		if err != nil {
			continue
		}
		key := urlpolicy.Normalize(clean)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, browser.Link{Text: link.Text, Href: clean})
	}
	return out
}

func isLowQuality(err error) bool {
	return errors.Is(err, errLowQuality)
}
