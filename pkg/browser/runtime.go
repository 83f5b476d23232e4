// Package browser provides the browser-automation collaborator for browsing
// sessions, backed by Playwright.
//
// Each browsing session owns exactly one PageContext (an isolated browser
// context with a single page). The Runtime owns the Playwright process and
// the context registry; contexts are created at approval time and must be
// released exactly once on any terminal path.
package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Runtime manages the Playwright instance and all per-session contexts.
type Runtime struct {
	mu          sync.Mutex
	contexts    map[string]*PageContext
	playwright  *playwright.Playwright
	browser     playwright.Browser
	headless    bool
	initialized bool
}

// NewRuntime creates an uninitialized runtime. Start must be called before
// any context can be created.
func NewRuntime(headless bool) *Runtime {
	return &Runtime{
		contexts: make(map[string]*PageContext),
		headless: headless,
	}
}

// Start installs and launches Playwright and a shared Chromium instance.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	// Discard driver output so it cannot interleave with our own logs.
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &r.headless,
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	r.playwright = pw
	r.browser = browser
	r.initialized = true
	return nil
}

// CreateContext creates the browser context for a session. Re-entrant
// creation for the same session id is an error: a session owns exactly one
// context for its whole lifetime.
func (r *Runtime) CreateContext(sessionID string, opts ContextOptions) (*PageContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil, fmt.Errorf("browser runtime not started")
	}
	if _, exists := r.contexts[sessionID]; exists {
		return nil, fmt.Errorf("context for session %q already exists", sessionID)
	}

	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	context, err := r.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		UserAgent: &opts.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	pc := &PageContext{
		sessionID: sessionID,
		context:   context,
		page:      page,
		release: func() {
			r.removeContext(sessionID)
		},
	}

	r.contexts[sessionID] = pc
	return pc, nil
}

// GetContext returns the context owned by the session, if any.
func (r *Runtime) GetContext(sessionID string) (*PageContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, ok := r.contexts[sessionID]
	return pc, ok
}

// CloseContext releases the session's browser context. Closing an unknown
// or already-closed context is a no-op.
func (r *Runtime) CloseContext(sessionID string) {
	r.mu.Lock()
	pc, ok := r.contexts[sessionID]
	r.mu.Unlock()

	if ok {
		pc.Close()
	}
}

func (r *Runtime) removeContext(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, sessionID)
}

// ActiveContexts returns the number of live page contexts.
func (r *Runtime) ActiveContexts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

// Shutdown closes all contexts, the shared browser, and Playwright itself.
func (r *Runtime) Shutdown() error {
	r.mu.Lock()
	contexts := make([]*PageContext, 0, len(r.contexts))
	for _, pc := range r.contexts {
		contexts = append(contexts, pc)
	}
	r.mu.Unlock()

	for _, pc := range contexts {
		pc.Close()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		r.browser.Close()
		r.browser = nil
	}
	if r.initialized && r.playwright != nil {
		if err := r.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		r.playwright = nil
		r.initialized = false
	}
	return nil
}
