package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// PageContext is the isolated browser context owned by one browsing session.
// All navigation within a session reuses the same page, so cookies and
// history behave like a single continuous visit.
type PageContext struct {
	sessionID string
	context   playwright.BrowserContext
	page      playwright.Page
	release   func()
	closeOnce sync.Once
}

// SessionID returns the owning session's id.
func (c *PageContext) SessionID() string {
	return c.sessionID
}

// Navigate loads the URL and extracts the rendered page. The playwright
// timeout in opts bounds the load itself; Navigate also aborts early if ctx
// is cancelled before the navigation goroutine finishes.
func (c *PageContext) Navigate(ctx context.Context, url string, opts Options) (*PageResult, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = DefaultMaxTextLength
	}
	if opts.MaxLinks <= 0 {
		opts.MaxLinks = DefaultMaxLinks
	}

	type navOutcome struct {
		result *PageResult
		err    error
	}

	// Playwright calls block with their own timeout; racing against ctx
	// gives the caller its outer wrapper timeout.
	outcome := make(chan navOutcome, 1)
	go func() {
		result, err := c.navigate(url, opts)
		outcome <- navOutcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("navigation aborted: %w", ctx.Err())
	case o := <-outcome:
		return o.result, o.err
	}
}

func (c *PageContext) navigate(url string, opts Options) (*PageResult, error) {
	resp, err := c.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(opts.Timeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.Status()
		if statusCode >= 400 {
			return nil, fmt.Errorf("navigation returned status %d", statusCode)
		}
	}

	finalURL := c.page.URL()

	title, err := c.page.Title()
	if err != nil {
		title = ""
	}

	html, err := c.page.Content()
	if err != nil {
		return nil, fmt.Errorf("content extraction failed: %w", err)
	}

	extracted, err := ExtractPage(html, finalURL, opts.MaxTextLength, opts.MaxLinks)
	if err != nil {
		return nil, fmt.Errorf("page parsing failed: %w", err)
	}
	if extracted.Title != "" && title == "" {
		title = extracted.Title
	}

	result := &PageResult{
		FinalURL:    finalURL,
		Title:       title,
		TextContent: extracted.Text,
		Links:       extracted.Links,
		Favicon:     extracted.Favicon,
		StatusCode:  statusCode,
	}

	if opts.CaptureVisual {
		shot, err := c.page.Screenshot(playwright.PageScreenshotOptions{
			Type:    playwright.ScreenshotTypeJpeg,
			Quality: playwright.Int(screenshotQuality),
		})
		// A failed screenshot degrades the visit, it does not fail it.
		if err == nil {
			result.Screenshot = shot
		}
	}

	return result, nil
}

// CurrentURL returns the page's current URL.
func (c *PageContext) CurrentURL() string {
	return c.page.URL()
}

// Close releases the underlying browser context and removes it from the
// runtime registry. Safe to call multiple times.
func (c *PageContext) Close() {
	c.closeOnce.Do(func() {
		_ = c.page.Close()
		_ = c.context.Close()
		if c.release != nil {
			c.release()
		}
	})
}
