package browser

import "time"

// Options configures a single navigation.
type Options struct {
	// Timeout bounds the page load itself (playwright-level timeout).
	Timeout time.Duration

	// CaptureVisual captures a viewport screenshot after the page loads.
	CaptureVisual bool

	// MaxTextLength bounds the extracted text content in characters.
	MaxTextLength int

	// MaxLinks bounds the number of extracted outbound links.
	MaxLinks int
}

// Link is one outbound anchor found on a page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// PageResult is everything extracted from one successful navigation.
type PageResult struct {
	// FinalURL is the URL after redirects.
	FinalURL string

	// Title is the document title.
	Title string

	// TextContent is the visible page text, bounded by MaxTextLength.
	TextContent string

	// Links are outbound anchors with absolute hrefs, in document order.
	Links []Link

	// Favicon is the absolute favicon URL, if the page declares one.
	Favicon string

	// Screenshot is a JPEG of the viewport when CaptureVisual was set.
	Screenshot []byte

	// StatusCode is the HTTP status of the main document, 0 if unknown.
	StatusCode int
}

// ContextOptions configures a per-session browser context.
type ContextOptions struct {
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
}

// Default values for browser operations.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxTextLength  = 8000
	DefaultMaxLinks       = 50
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	screenshotQuality     = 60
)
