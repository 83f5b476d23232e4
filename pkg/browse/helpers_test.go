package browse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/wander/pkg/browser"
	"github.com/entrhq/wander/pkg/logging"
	"github.com/entrhq/wander/pkg/search"
	"github.com/entrhq/wander/pkg/store"
	"github.com/entrhq/wander/pkg/types"
)

// fakeProvider scripts LLM answers through plain funcs.
type fakeProvider struct {
	shortFn  func(prompt string) (string, error)
	visionFn func(messages []*types.Message) (string, error)
}

func (f *fakeProvider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	if f.shortFn == nil {
		return types.NewAssistantMessage("ok"), nil
	}
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	answer, err := f.shortFn(last)
	if err != nil {
		return nil, err
	}
	return types.NewAssistantMessage(answer), nil
}

func (f *fakeProvider) ShortAnswer(ctx context.Context, prompt string) (string, error) {
	if f.shortFn == nil {
		return "ok", nil
	}
	return f.shortFn(prompt)
}

func (f *fakeProvider) VisionAnswer(ctx context.Context, messages []*types.Message) (string, error) {
	if f.visionFn == nil {
		return `{"thought":"t","reaction":"r","keyPoints":["k"]}`, nil
	}
	return f.visionFn(messages)
}

func (f *fakeProvider) GetModel() string { return "gpt-4o" }

// fakeSearch scripts search results.
type fakeSearch struct {
	citations []search.Citation
	err       error
}

func (f *fakeSearch) FindEntryCandidates(ctx context.Context, query string) ([]search.Citation, error) {
	return f.citations, f.err
}

// fakePage scripts navigations for one session context.
type fakePage struct {
	mu        sync.Mutex
	navFn     func(url string) (*browser.PageResult, error)
	visits    []string
	closed    bool
	closeOnce sync.Once
}

func (f *fakePage) Navigate(ctx context.Context, url string, opts browser.Options) (*browser.PageResult, error) {
	f.mu.Lock()
	f.visits = append(f.visits, url)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.navFn == nil {
		return simplePage(url, "Page", pageText(), nil), nil
	}
	return f.navFn(url)
}

func (f *fakePage) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
	})
}

func (f *fakePage) visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.visits))
	copy(out, f.visits)
	return out
}

// fakeRuntime hands out fakePages.
type fakeRuntime struct {
	mu        sync.Mutex
	page      *fakePage
	createErr error
	closed    []string
}

func (f *fakeRuntime) CreateContext(sessionID string, opts browser.ContextOptions) (PageContext, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.page == nil {
		f.page = &fakePage{}
	}
	return f.page, nil
}

func (f *fakeRuntime) CloseContext(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, sessionID)
}

// fakeStore records persistence calls in memory.
type fakeStore struct {
	mu         sync.Mutex
	messages   []string
	memories   []store.Memory
	activities map[string]string
	nextID     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{activities: make(map[string]string)}
}

func (f *fakeStore) CreateMessage(ctx context.Context, role, content string, metadata map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, content)
	f.nextID++
	return fmt.Sprintf("msg-%d", f.nextID), nil
}

func (f *fakeStore) CreateMemory(ctx context.Context, m store.Memory) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memories = append(f.memories, m)
	return "mem-1", nil
}

func (f *fakeStore) LogActivity(ctx context.Context, kind, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities["act-1"] = "active"
	return "act-1", nil
}

func (f *fakeStore) CompleteActivity(ctx context.Context, id, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.activities[id]; !ok {
		return errors.New("not found")
	}
	f.activities[id] = "completed"
	return nil
}

func (f *fakeStore) FailActivity(ctx context.Context, id, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.activities[id]; !ok {
		return errors.New("not found")
	}
	f.activities[id] = "failed"
	return nil
}

func (f *fakeStore) activityStatus(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activities[id]
}

// eventRecorder captures emitted events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []*types.BrowseEvent
}

func (r *eventRecorder) emit(event *types.BrowseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) ofType(t types.BrowseEventType) []*types.BrowseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.BrowseEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) has(t types.BrowseEventType) bool {
	return len(r.ofType(t)) > 0
}

func pageText() string {
	text := "This page holds a reasonable amount of real content about the topic. "
	for len(text) < 200 {
		text += "More detail follows in the body of the article. "
	}
	return text
}

func simplePage(url, title, text string, links []browser.Link) *browser.PageResult {
	return &browser.PageResult{
		FinalURL:    url,
		Title:       title,
		TextContent: text,
		Links:       links,
		StatusCode:  200,
	}
}

func testLogger() *logging.Logger {
	return logging.NewNopLogger()
}
