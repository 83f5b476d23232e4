package browse

import (
	"context"

	"github.com/entrhq/wander/pkg/browser"
	"github.com/entrhq/wander/pkg/store"
)

// PageContext is the per-session browser surface the navigator drives.
type PageContext interface {
	Navigate(ctx context.Context, url string, opts browser.Options) (*browser.PageResult, error)
	Close()
}

// BrowserRuntime creates and tears down per-session page contexts.
type BrowserRuntime interface {
	CreateContext(sessionID string, opts browser.ContextOptions) (PageContext, error)
	CloseContext(sessionID string)
}

// Persistence is the slice of the store the orchestrator writes results
// through.
type Persistence interface {
	CreateMessage(ctx context.Context, role, content string, metadata map[string]interface{}) (string, error)
	CreateMemory(ctx context.Context, m store.Memory) (string, error)
	LogActivity(ctx context.Context, kind, title string) (string, error)
	CompleteActivity(ctx context.Context, id, detail string) error
	FailActivity(ctx context.Context, id, detail string) error
}

// runtimeAdapter lets the concrete *browser.Runtime satisfy BrowserRuntime
// despite returning its concrete context type.
type runtimeAdapter struct {
	runtime *browser.Runtime
}

// WrapRuntime adapts a *browser.Runtime for the orchestrator.
func WrapRuntime(r *browser.Runtime) BrowserRuntime {
	return &runtimeAdapter{runtime: r}
}

func (a *runtimeAdapter) CreateContext(sessionID string, opts browser.ContextOptions) (PageContext, error) {
	return a.runtime.CreateContext(sessionID, opts)
}

func (a *runtimeAdapter) CloseContext(sessionID string) {
	a.runtime.CloseContext(sessionID)
}
