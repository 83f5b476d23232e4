package urlpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Rejections(t *testing.T) {
	policy := New()

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{name: "javascript scheme", url: "javascript:alert(1)", wantErr: ErrBlockedScheme},
		{name: "data scheme", url: "data:text/html,<h1>hi</h1>", wantErr: ErrBlockedScheme},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: ErrBlockedScheme},
		{name: "mailto scheme", url: "mailto:someone@example.com", wantErr: ErrBlockedScheme},
		{name: "ftp scheme", url: "ftp://example.com/file", wantErr: ErrBlockedScheme},
		{name: "fragment only", url: "#section-2", wantErr: ErrFragmentOnly},
		{name: "empty", url: "", wantErr: ErrEmpty},
		{name: "whitespace", url: "   ", wantErr: ErrEmpty},
		{name: "localhost", url: "http://localhost:8080/admin", wantErr: ErrBlockedHost},
		{name: "loopback v4", url: "https://127.0.0.1/", wantErr: ErrBlockedHost},
		{name: "wildcard host", url: "http://0.0.0.0/", wantErr: ErrBlockedHost},
		{name: "loopback v6", url: "http://[::1]:3000/", wantErr: ErrBlockedHost},
		{name: "private network", url: "https://192.168.1.10/router", wantErr: ErrBlockedHost},
		{name: "mdns host", url: "https://printer.local/status", wantErr: ErrBlockedHost},
		{name: "pdf download", url: "https://example.com/paper.pdf", wantErr: ErrBlockedFileType},
		{name: "zip download", url: "https://example.com/release.zip", wantErr: ErrBlockedFileType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate(tt.url)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	policy := New()

	urls := []string{
		"https://example.com",
		"http://example.com/path?q=1",
		"https://sub.example.com/deep/path/",
		"example.com/docs", // scheme-less gets https
	}

	for _, u := range urls {
		assert.NoError(t, policy.Validate(u), u)
	}
}

func TestValidate_ExtraHostPatterns(t *testing.T) {
	policy := New("*.corp.example.com")

	assert.Error(t, policy.Validate("https://wiki.corp.example.com/page"))
	assert.NoError(t, policy.Validate("https://www.example.com/page"))
}

func TestSanitize(t *testing.T) {
	policy := New()

	clean, err := policy.Sanitize("  example.com/docs#install  ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/docs", clean)

	clean, err = policy.Sanitize("https://example.com/a?b=c#frag")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a?b=c", clean)

	_, err = policy.Sanitize("javascript:void(0)")
	assert.ErrorIs(t, err, ErrBlockedScheme)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{name: "trailing slash", a: "https://example.com/docs/", b: "https://example.com/docs"},
		{name: "host case", a: "https://EXAMPLE.com/docs", b: "https://example.com/docs"},
		{name: "path case", a: "https://example.com/Docs", b: "https://example.com/docs"},
		{name: "default https port", a: "https://example.com:443/x", b: "https://example.com/x"},
		{name: "default http port", a: "http://example.com:80/x", b: "http://example.com/x"},
		{name: "fragment dropped", a: "https://example.com/x#top", b: "https://example.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Normalize(tt.b), Normalize(tt.a))
		})
	}
}

func TestNormalize_QueryPreserved(t *testing.T) {
	assert.NotEqual(t, Normalize("https://example.com/s?q=a"), Normalize("https://example.com/s?q=b"))
}

func TestResolve_CleanURLUsedDirectly(t *testing.T) {
	policy := New()

	got, ok := policy.Resolve("https://example.com/docs", nil)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/docs", got)
}

func TestResolve_RelativePathSubstringMatch(t *testing.T) {
	policy := New()
	candidates := []string{
		"https://example.com/getting-started",
		"https://example.com/reference/api",
	}

	got, ok := policy.Resolve("/reference/api", candidates)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/reference/api", got)
}

func TestResolve_ProseWrappedURLMatch(t *testing.T) {
	policy := New()
	candidates := []string{
		"https://example.com/getting-started",
	}

	got, ok := policy.Resolve("I would visit https://example.com/getting-started next", candidates)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/getting-started", got)
}

func TestResolve_HostAndPathPrefixMatch(t *testing.T) {
	policy := New()
	candidates := []string{
		"https://docs.example.com/guide/intro",
	}

	// Blocked file type fails sanitization; same host and directory still
	// resolve to the real candidate.
	got, ok := policy.Resolve("https://docs.example.com/guide/paper.pdf", candidates)
	require.True(t, ok)
	assert.Equal(t, "https://docs.example.com/guide/intro", got)
}

func TestResolve_NoMatch(t *testing.T) {
	policy := New()

	_, ok := policy.Resolve("…pick the best one", []string{"https://example.com/a"})
	assert.False(t, ok)

	_, ok = policy.Resolve("", nil)
	assert.False(t, ok)
}
