package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fdocs&rut=abc">Example Docs</a>
</div>
<div class="result">
  <a class="result__a" href="https://other.example.com/guide">Other Guide</a>
</div>
<div class="result">
  <a class="result__a" href="https://third.example.com/">Third</a>
</div>
</body></html>`

func TestFindEntryCandidates(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		io.WriteString(w, resultsPage)
	}))
	defer server.Close()

	client := NewDuckDuckGoClient(WithEndpoint(server.URL + "/html/"))

	citations, err := client.FindEntryCandidates(context.Background(), "rust async book")
	require.NoError(t, err)
	assert.Equal(t, "rust async book", gotQuery)

	require.Len(t, citations, 3)
	assert.Equal(t, "https://example.com/docs", citations[0].URL)
	assert.Equal(t, "Example Docs", citations[0].Title)
	assert.Equal(t, "https://other.example.com/guide", citations[1].URL)
}

func TestFindEntryCandidates_MaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, resultsPage)
	}))
	defer server.Close()

	client := NewDuckDuckGoClient(WithEndpoint(server.URL+"/html/"), WithMaxResults(1))

	citations, err := client.FindEntryCandidates(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, citations, 1)
}

func TestFindEntryCandidates_EmptyQuery(t *testing.T) {
	client := NewDuckDuckGoClient()

	_, err := client.FindEntryCandidates(context.Background(), "   ")
	require.Error(t, err)
}

func TestFindEntryCandidates_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewDuckDuckGoClient(WithEndpoint(server.URL + "/html/"))

	_, err := client.FindEntryCandidates(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestFindEntryCandidates_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>no results</p></body></html>")
	}))
	defer server.Close()

	client := NewDuckDuckGoClient(WithEndpoint(server.URL + "/html/"))

	citations, err := client.FindEntryCandidates(context.Background(), "gibberish")
	require.NoError(t, err)
	assert.Empty(t, citations)
}

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
	}{
		{
			name: "redirect wrapper",
			href: "//duckduckgo.com/l/?uddg=" + url.QueryEscape("https://example.com/a?b=c"),
			want: "https://example.com/a?b=c",
		},
		{name: "plain link", href: "https://example.com/x", want: "https://example.com/x"},
		{name: "empty", href: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unwrapRedirect(tt.href))
		})
	}
}
