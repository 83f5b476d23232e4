package browse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/wander/pkg/browse/urlpolicy"
	"github.com/entrhq/wander/pkg/browser"
)

func newTestDecider(p *fakeProvider) *decider {
	return newDecider(p, urlpolicy.New(), testLogger())
}

func visitWithLinks(url string, links ...browser.Link) *PageVisit {
	return &PageVisit{URL: url, Title: "Page", Links: links}
}

func TestDecideNoLinksStops(t *testing.T) {
	called := false
	d := newTestDecider(&fakeProvider{shortFn: func(string) (string, error) {
		called = true
		return "", nil
	}})

	session := newSession("s1", Options{Goal: "g"})
	dec := d.Decide(context.Background(), session, visitWithLinks("https://a.example/"), nil)

	assert.False(t, dec.Continue)
	assert.False(t, called, "no LLM call should be made when there are no links")
}

func TestDecideFollowsCurrentLink(t *testing.T) {
	d := newTestDecider(&fakeProvider{shortFn: func(string) (string, error) {
		return `{"continue": true, "nextUrl": "https://a.example/deeper", "reason": "looks promising"}`, nil
	}})

	session := newSession("s1", Options{Goal: "g"})
	current := visitWithLinks("https://a.example/",
		browser.Link{Text: "Deeper", Href: "https://a.example/deeper"})

	dec := d.Decide(context.Background(), session, current, nil)
	require.True(t, dec.Continue)
	assert.Equal(t, "https://a.example/deeper", dec.NextURL)
	assert.False(t, dec.IsBacktracking)
	assert.Equal(t, "looks promising", dec.Reason)
}

func TestDecideBacktracksToPreviousPageLink(t *testing.T) {
	d := newTestDecider(&fakeProvider{shortFn: func(string) (string, error) {
		return `{"continue": true, "nextUrl": "https://a.example/sibling", "reason": "dead end here"}`, nil
	}})

	session := newSession("s1", Options{Goal: "g"})
	previous := visitWithLinks("https://a.example/",
		browser.Link{Text: "Sibling", Href: "https://a.example/sibling"})
	current := visitWithLinks("https://a.example/current",
		browser.Link{Text: "Elsewhere", Href: "https://a.example/elsewhere"})

	dec := d.Decide(context.Background(), session, current, previous)
	require.True(t, dec.Continue)
	assert.Equal(t, "https://a.example/sibling", dec.NextURL)
	assert.True(t, dec.IsBacktracking)
}

func TestDecideDeadEndPageUsesPreviousLinks(t *testing.T) {
	d := newTestDecider(&fakeProvider{shortFn: func(string) (string, error) {
		return `{"continue": true, "nextUrl": "https://a.example/second", "reason": "stepping back"}`, nil
	}})

	session := newSession("s1", Options{Goal: "g"})
	previous := visitWithLinks("https://a.example/",
		browser.Link{Text: "First", Href: "https://a.example/first"},
		browser.Link{Text: "Second", Href: "https://a.example/second"},
		browser.Link{Text: "Third", Href: "https://a.example/third"})
	current := visitWithLinks("https://a.example/dead-end")

	dec := d.Decide(context.Background(), session, current, previous)
	require.True(t, dec.Continue)
	assert.Equal(t, "https://a.example/second", dec.NextURL)
	assert.True(t, dec.IsBacktracking)
}

func TestDecideStopDecision(t *testing.T) {
	d := newTestDecider(&fakeProvider{shortFn: func(string) (string, error) {
		return `{"continue": false, "nextUrl": "", "reason": "goal satisfied"}`, nil
	}})

	session := newSession("s1", Options{Goal: "g"})
	current := visitWithLinks("https://a.example/",
		browser.Link{Href: "https://a.example/more"})

	dec := d.Decide(context.Background(), session, current, nil)
	assert.False(t, dec.Continue)
	assert.Equal(t, "goal satisfied", dec.Reason)
}

func TestDecideRejectsVisitedURL(t *testing.T) {
	d := newTestDecider(&fakeProvider{shortFn: func(string) (string, error) {
		return `{"continue": true, "nextUrl": "https://a.example/seen", "reason": "back there"}`, nil
	}})

	session := newSession("s1", Options{Goal: "g"})
	require.True(t, session.AddPage(PageVisit{URL: "https://a.example/seen"}))
	current := visitWithLinks("https://a.example/",
		browser.Link{Href: "https://a.example/seen"})

	dec := d.Decide(context.Background(), session, current, nil)
	assert.False(t, dec.Continue)
}

func TestDecideRejectsFailedURL(t *testing.T) {
	d := newTestDecider(&fakeProvider{shortFn: func(string) (string, error) {
		return `{"continue": true, "nextUrl": "https://a.example/broken", "reason": "try again"}`, nil
	}})

	session := newSession("s1", Options{Goal: "g"})
	session.MarkFailed("https://a.example/broken")
	current := visitWithLinks("https://a.example/",
		browser.Link{Href: "https://a.example/broken"})

	dec := d.Decide(context.Background(), session, current, nil)
	assert.False(t, dec.Continue)
}

func TestDecideProseWrappedURL(t *testing.T) {
	d := newTestDecider(&fakeProvider{shortFn: func(string) (string, error) {
		return `{"continue": true, "nextUrl": "I think https://a.example/deeper is the best next step", "reason": "r"}`, nil
	}})

	session := newSession("s1", Options{Goal: "g"})
	current := visitWithLinks("https://a.example/",
		browser.Link{Href: "https://a.example/deeper"})

	dec := d.Decide(context.Background(), session, current, nil)
	require.True(t, dec.Continue)
	assert.Equal(t, "https://a.example/deeper", dec.NextURL)
}

func TestDecideUnparseableStops(t *testing.T) {
	d := newTestDecider(&fakeProvider{shortFn: func(string) (string, error) {
		return "I would probably keep reading around here.", nil
	}})

	session := newSession("s1", Options{Goal: "g"})
	current := visitWithLinks("https://a.example/",
		browser.Link{Href: "https://a.example/more"})

	dec := d.Decide(context.Background(), session, current, nil)
	assert.False(t, dec.Continue)
}

func TestDecideProviderErrorStops(t *testing.T) {
	d := newTestDecider(&fakeProvider{shortFn: func(string) (string, error) {
		return "", errors.New("rate limited")
	}})

	session := newSession("s1", Options{Goal: "g"})
	current := visitWithLinks("https://a.example/",
		browser.Link{Href: "https://a.example/more"})

	dec := d.Decide(context.Background(), session, current, nil)
	assert.False(t, dec.Continue)
}
