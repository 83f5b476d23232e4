package browse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/wander/pkg/browse/urlpolicy"
	"github.com/entrhq/wander/pkg/browser"
)

func newTestNavigator() *navigator {
	n := newNavigator(urlpolicy.New(), testLogger())
	n.sleep = func(context.Context, time.Duration) error { return nil }
	return n
}

func TestBackoffSequence(t *testing.T) {
	assert.Equal(t, time.Second, backoffFor(1))
	assert.Equal(t, 2*time.Second, backoffFor(2))
	assert.Equal(t, 4*time.Second, backoffFor(3))
	assert.Equal(t, 5*time.Second, backoffFor(4))
	assert.Equal(t, 5*time.Second, backoffFor(10))
}

func TestVisitRetriesThenSucceeds(t *testing.T) {
	n := newTestNavigator()
	var delays []time.Duration
	n.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	calls := 0
	page := &fakePage{navFn: func(url string) (*browser.PageResult, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("net::ERR_CONNECTION_RESET")
		}
		return simplePage(url, "Finally", pageText(), nil), nil
	}}

	session := newSession("s1", Options{Goal: "g"})
	result, err := n.Visit(context.Background(), session, page, "https://example.com/page")

	require.NoError(t, err)
	assert.Equal(t, "Finally", result.Title)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	assert.False(t, session.IsFailed("https://example.com/page"))
}

func TestVisitTracksRetryCountOnSession(t *testing.T) {
	n := newTestNavigator()

	session := newSession("s1", Options{Goal: "g"})
	var observed []int
	calls := 0
	page := &fakePage{navFn: func(url string) (*browser.PageResult, error) {
		observed = append(observed, session.RetryCount())
		calls++
		if calls < 3 {
			return nil, errors.New("net::ERR_NAME_NOT_RESOLVED")
		}
		return simplePage(url, "Landed", pageText(), nil), nil
	}}

	result, err := n.Visit(context.Background(), session, page, "https://example.com/flaky")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, observed, "each attempt should be visible on the session")

	require.True(t, session.AddPage(PageVisit{URL: result.FinalURL, Title: result.Title}))
	assert.Equal(t, 0, session.RetryCount(), "landing the page resets the counter")

	failPage := &fakePage{navFn: func(string) (*browser.PageResult, error) {
		return nil, errors.New("timeout exceeded")
	}}
	_, err = n.Visit(context.Background(), session, failPage, "https://example.com/down")
	require.Error(t, err)
	assert.Equal(t, 0, session.RetryCount(), "giving up on a URL resets the counter")
}

func TestVisitExhaustsRetries(t *testing.T) {
	n := newTestNavigator()

	calls := 0
	page := &fakePage{navFn: func(url string) (*browser.PageResult, error) {
		calls++
		return nil, errors.New("timeout exceeded")
	}}

	session := newSession("s1", Options{Goal: "g"})
	_, err := n.Visit(context.Background(), session, page, "https://example.com/down")

	require.Error(t, err)
	var navErr *NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, "https://example.com/down", navErr.URL)
	assert.Equal(t, 3, calls)
	assert.True(t, session.IsFailed("https://example.com/down"))
}

func TestVisitLowQualitySkipsRetries(t *testing.T) {
	n := newTestNavigator()

	calls := 0
	page := &fakePage{navFn: func(url string) (*browser.PageResult, error) {
		calls++
		return simplePage(url, "Empty", "thin", nil), nil
	}}

	session := newSession("s1", Options{Goal: "g"})
	_, err := n.Visit(context.Background(), session, page, "https://example.com/empty")

	require.Error(t, err)
	assert.True(t, isLowQuality(err))
	assert.Equal(t, 1, calls, "quality rejection should not retry")
	assert.True(t, session.IsFailed("https://example.com/empty"))
}

func TestCheckQualityBlockSignatures(t *testing.T) {
	n := newTestNavigator()

	tests := []struct {
		name   string
		result *browser.PageResult
		wantOK bool
	}{
		{
			name:   "short captcha wall rejected",
			result: simplePage("https://x.example/", "Check", strings.Repeat("x ", 60)+"please solve this CAPTCHA", nil),
			wantOK: false,
		},
		{
			name:   "access denied rejected",
			result: simplePage("https://x.example/", "Denied", strings.Repeat("y ", 60)+"Access Denied", nil),
			wantOK: false,
		},
		{
			name: "long article mentioning 404 accepted",
			result: simplePage("https://x.example/", "History of 404 pages",
				strings.Repeat("The 404 page has a long history on the web. ", 20), nil),
			wantOK: true,
		},
		{
			name: "link-rich page mentioning sign in accepted",
			result: simplePage("https://x.example/", "Portal",
				strings.Repeat("z ", 70)+"sign in to continue reading premium items",
				[]browser.Link{{Href: "https://x.example/a"}, {Href: "https://x.example/b"}, {Href: "https://x.example/c"}, {Href: "https://x.example/d"}}),
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.checkQuality(tt.result)
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.True(t, isLowQuality(err))
			}
		})
	}
}

func TestSanitizeLinks(t *testing.T) {
	n := newTestNavigator()

	links := []browser.Link{
		{Text: "Docs", Href: "https://example.com/docs"},
		{Text: "Docs again", Href: "https://example.com/docs/"},
		{Text: "Self", Href: "https://example.com/page"},
		{Text: "Script", Href: "javascript:void(0)"},
		{Text: "Mail", Href: "mailto:hi@example.com"},
		{Text: "PDF", Href: "https://example.com/paper.pdf"},
		{Text: "Other", Href: "https://other.example/post"},
	}

	out := n.sanitizeLinks("https://example.com/page", links)

	hrefs := make([]string, len(out))
	for i, l := range out {
		hrefs[i] = l.Href
	}
	assert.Equal(t, []string{"https://example.com/docs", "https://other.example/post"}, hrefs)
}

func TestVisitCancelledContext(t *testing.T) {
	n := newTestNavigator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := &fakePage{}
	session := newSession("s1", Options{Goal: "g"})
	_, err := n.Visit(ctx, session, page, "https://example.com/")
	require.Error(t, err)
}
