// Package urlpolicy validates, sanitizes, and fuzzy-matches candidate URLs
// for the browsing subsystem.
//
// Every URL the subsystem navigates to, records as a page link, or
// blacklists has passed through this policy first. The policy is purely
// syntactic and never performs network lookups.
package urlpolicy

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// Validation failure classes. Callers compare with errors.Is; candidates
// that fail validation are discarded, never retried.
var (
	ErrEmpty           = errors.New("url is empty")
	ErrFragmentOnly    = errors.New("url is a fragment-only reference")
	ErrMalformed       = errors.New("url is malformed")
	ErrBlockedScheme   = errors.New("url scheme is blocked")
	ErrBlockedHost     = errors.New("url host is blocked")
	ErrBlockedFileType = errors.New("url points to a blocked file type")
)

// blockedSchemes are schemes that must never be navigated. Anything that
// is not http or https is rejected anyway; these get a specific error.
var blockedSchemes = map[string]bool{
	"javascript": true,
	"data":       true,
	"file":       true,
	"mailto":     true,
	"about":      true,
	"chrome":     true,
	"blob":       true,
	"vbscript":   true,
}

// blockedHosts are loopback and wildcard hosts that would let a page steer
// the agent at services on the machine running it.
var blockedHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
	"::1":       true,
	"[::1]":     true,
}

// blockedExtensions are file types the browser runtime cannot usefully
// render as a page.
var blockedExtensions = map[string]bool{
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".rar": true,
	".7z": true, ".exe": true, ".dmg": true, ".iso": true, ".msi": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".webp": true, ".ico": true, ".mp3": true, ".mp4": true, ".avi": true,
	".mov": true, ".webm": true, ".doc": true, ".docx": true, ".xls": true,
	".xlsx": true, ".ppt": true, ".pptx": true,
}

// defaultHostPatterns block private-network and link-local hosts beyond the
// exact entries above.
var defaultHostPatterns = []string{
	"*.local",
	"*.internal",
	"10.*",
	"192.168.*",
	"172.16.*",
	"169.254.*",
}

// Policy validates and resolves URLs against a host blocklist.
type Policy struct {
	hostGlobs []glob.Glob
}

// New creates a policy with the default host patterns plus any extra
// patterns from configuration. Patterns that fail to compile are skipped.
func New(extraHostPatterns ...string) *Policy {
	p := &Policy{}
	for _, pattern := range append(append([]string{}, defaultHostPatterns...), extraHostPatterns...) {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			continue
		}
		p.hostGlobs = append(p.hostGlobs, g)
	}
	return p
}

// Validate checks whether raw is a navigable URL under this policy.
// Scheme-less input is treated as https before validation.
func (p *Policy) Validate(raw string) error {
	_, err := p.parse(raw)
	return err
}

// Sanitize trims, upgrades scheme-less input to https, validates, and
// returns the cleaned absolute URL with its fragment removed.
func (p *Policy) Sanitize(raw string) (string, error) {
	u, err := p.parse(raw)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	return u.String(), nil
}

func (p *Policy) parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmpty
	}
	if strings.HasPrefix(raw, "#") {
		return nil, ErrFragmentOnly
	}

	// Catch blocked schemes before the https upgrade: "javascript:..."
	// parses fine and must not be rewritten into a host.
	if i := strings.Index(raw, ":"); i > 0 {
		scheme := strings.ToLower(raw[:i])
		if blockedSchemes[scheme] {
			return nil, fmt.Errorf("%w: %s", ErrBlockedScheme, scheme)
		}
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrBlockedScheme, scheme)
	}
	if u.Host == "" {
		return nil, ErrMalformed
	}

	host := strings.ToLower(u.Hostname())
	if blockedHosts[host] || blockedHosts[strings.ToLower(u.Host)] {
		return nil, fmt.Errorf("%w: %s", ErrBlockedHost, host)
	}
	for _, g := range p.hostGlobs {
		if g.Match(host) {
			return nil, fmt.Errorf("%w: %s", ErrBlockedHost, host)
		}
	}

	// Single-label hosts are almost always fragments of model output
	// ("reference/api"), not routable names. IPv6 literals keep colons.
	if !strings.Contains(host, ".") && !strings.Contains(host, ":") {
		return nil, fmt.Errorf("%w: host %q", ErrMalformed, host)
	}

	if ext := strings.ToLower(path.Ext(u.Path)); blockedExtensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrBlockedFileType, ext)
	}

	return u, nil
}

// Normalize reduces a URL to a comparison key: lowercase scheme, host, and
// path, default port and trailing slash stripped, fragment dropped. It is
// used for deduplication and revisit checks, never for navigation.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSuffix(raw, "/"))
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	} else if scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}

	p := strings.ToLower(strings.TrimSuffix(u.Path, "/"))

	key := scheme + "://" + host + p
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// Resolve maps a model-chosen URL onto a concrete candidate. A URL that
// sanitizes cleanly is used as-is. Otherwise the candidates are fuzzy
// matched in order: exact normalized match, substring containment, then
// same-host-and-path-prefix. Returns false when nothing resolves.
func (p *Policy) Resolve(choice string, candidates []string) (string, bool) {
	if clean, err := p.Sanitize(choice); err == nil {
		return clean, true
	}

	choice = strings.TrimSpace(choice)
	if choice == "" || len(candidates) == 0 {
		return "", false
	}

	choiceKey := Normalize(choice)
	for _, c := range candidates {
		if Normalize(c) == choiceKey {
			return c, true
		}
	}

	// Substring containment in either direction: the model answers with a
	// partial path ("/docs/intro") or wraps the URL in prose.
	lowered := strings.ToLower(choice)
	for _, c := range candidates {
		cLower := strings.ToLower(c)
		if strings.Contains(cLower, lowered) || strings.Contains(lowered, cLower) {
			return c, true
		}
	}

	if u, err := url.Parse(withScheme(choice)); err == nil && u.Host != "" {
		host := strings.ToLower(u.Hostname())
		choicePath := strings.ToLower(strings.TrimSuffix(u.Path, "/"))
		dir := path.Dir(choicePath)
		for _, c := range candidates {
			cu, err := url.Parse(c)
			if err != nil || strings.ToLower(cu.Hostname()) != host {
				continue
			}
			cPath := strings.ToLower(strings.TrimSuffix(cu.Path, "/"))
			if choicePath != "" && strings.HasPrefix(cPath, choicePath) {
				return c, true
			}
			// Same directory counts as a prefix match; the root directory
			// would match every candidate on the host, so it is excluded.
			if dir != "/" && dir != "." && dir != "" && strings.HasPrefix(cPath, dir) {
				return c, true
			}
		}
	}

	return "", false
}

func withScheme(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}
