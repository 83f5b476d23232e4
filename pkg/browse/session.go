package browse

import (
	"sync"
	"time"

	"github.com/entrhq/wander/pkg/browse/urlpolicy"
	"github.com/entrhq/wander/pkg/browser"
	"github.com/entrhq/wander/pkg/types"
)

// State is the browsing session state machine value.
type State string

const (
	StateIdle             State = "idle"
	StatePlanning         State = "planning"
	StateSearching        State = "searching"
	StateAwaitingApproval State = "awaiting_approval"
	StateNavigating       State = "navigating"
	StateExtracting       State = "extracting"
	StateInterpreting     State = "interpreting"
	StateDecidingNext     State = "deciding_next"
	StateSummarizing      State = "summarizing"
	StateComplete         State = "complete"
	StateError            State = "error"
	StateCancelled        State = "cancelled"
)

// Terminal reports whether no further transition may leave this state.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError || s == StateCancelled
}

// Options configures one browsing session. Zero values are replaced with
// defaults by normalize.
type Options struct {
	// MaxPages bounds the number of page visits (≥1).
	MaxPages int

	// MaxDuration bounds the whole browse loop wall-clock time.
	MaxDuration time.Duration

	// CaptureVisual captures a screenshot on each visit for the vision
	// interpreter and the UI.
	CaptureVisual bool

	// Goal is the natural-language browsing goal.
	Goal string

	// OriginMessageID optionally references the chat message that prompted
	// this session.
	OriginMessageID string
}

// Session option defaults.
const (
	DefaultMaxPages    = 5
	DefaultMaxDuration = 120 * time.Second
)

func (o Options) normalize() Options {
	if o.MaxPages < 1 {
		o.MaxPages = DefaultMaxPages
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = DefaultMaxDuration
	}
	return o
}

// PageVisit is one completed navigation within a session.
type PageVisit struct {
	URL            string
	Title          string
	TextExcerpt    string
	KeyPoints      []string
	Reaction       string
	Thought        string
	Links          []browser.Link
	CapturedVisual []byte
	Favicon        string
	Timestamp      time.Time
}

// Session is the stateful record of one browsing run. It is mutated only
// by the owning orchestrator and the janitor; the mutex makes the cancel
// path and status snapshots safe from other goroutines.
type Session struct {
	mu sync.Mutex

	id         string
	state      State
	options    Options
	approved   bool
	intent     string
	entryURL   string
	currentURL string
	pages      []PageVisit
	failedURLs map[string]struct{}
	retryCount int
	errMsg     string
	summary    string
	startedAt  time.Time
	activityID string

	// cancelRequested is observed cooperatively at the top of each loop
	// iteration; an in-flight step is allowed to finish naturally.
	cancelRequested bool
}

func newSession(id string, opts Options) *Session {
	return &Session{
		id:         id,
		state:      StateIdle,
		options:    opts.normalize(),
		failedURLs: make(map[string]struct{}),
		startedAt:  time.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Options returns the session options.
func (s *Session) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setState transitions the session. Transitions out of a terminal state
// are ignored, which keeps late step results from resurrecting a session
// that was cancelled mid-flight.
func (s *Session) setState(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = next
	return true
}

// RequestCancel flags the session for cooperative cancellation. Returns
// false if the session is already terminal.
func (s *Session) RequestCancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.cancelRequested = true
	return true
}

// CancelRequested reports whether a cancel has been asked for.
func (s *Session) CancelRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelRequested
}

func (s *Session) markApproved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approved = true
}

// Approved reports whether the approval gate was passed.
func (s *Session) Approved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approved
}

// AddPage appends a completed visit and resets the retry counter. Appends
// beyond MaxPages are refused.
func (s *Session) AddPage(visit PageVisit) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pages) >= s.options.MaxPages {
		return false
	}
	s.pages = append(s.pages, visit)
	s.currentURL = visit.URL
	s.retryCount = 0
	return true
}

// Pages returns a copy of the visit history.
func (s *Session) Pages() []PageVisit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PageVisit, len(s.pages))
	copy(out, s.pages)
	return out
}

// PageCount returns the number of completed visits.
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// setRetryCount records how many retries the in-flight page visit has
// used so far.
func (s *Session) setRetryCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryCount = n
}

// RetryCount returns the retries used by the page currently in flight.
// It drops back to 0 when the visit lands or the URL is given up on.
func (s *Session) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// MarkFailed adds a URL to the session's failure set and clears the
// in-flight retry counter. The set only grows.
func (s *Session) MarkFailed(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedURLs[urlpolicy.Normalize(url)] = struct{}{}
	s.retryCount = 0
}

// IsFailed reports whether the URL exhausted its retries earlier in the
// session.
func (s *Session) IsFailed(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.failedURLs[urlpolicy.Normalize(url)]
	return ok
}

// HasVisited reports whether the URL already appears in the page history.
func (s *Session) HasVisited(url string) bool {
	key := urlpolicy.Normalize(url)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		if urlpolicy.Normalize(p.URL) == key {
			return true
		}
	}
	return false
}

// FailedCount returns the size of the failure set.
func (s *Session) FailedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failedURLs)
}

// Age returns how long the session has existed.
func (s *Session) Age() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.startedAt)
}

// Elapsed returns time since creation; the loop compares it against the
// MaxDuration budget.
func (s *Session) Elapsed() time.Duration { return s.Age() }

func (s *Session) setPlan(intent, entryURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intent = intent
	s.entryURL = entryURL
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
}

func (s *Session) setSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
}

func (s *Session) setActivity(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activityID = id
}

func (s *Session) activity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activityID
}

// Snapshot is a read-only view of the session for status queries.
type Snapshot struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	Goal       string    `json:"goal"`
	Intent     string    `json:"intent,omitempty"`
	EntryURL   string    `json:"entryUrl,omitempty"`
	CurrentURL string    `json:"currentUrl,omitempty"`
	Approved   bool      `json:"approved"`
	PageCount  int       `json:"pageCount"`
	MaxPages   int       `json:"maxPages"`
	Error      string    `json:"error,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
}

// Snapshot returns a point-in-time view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.id,
		State:      s.state,
		Goal:       s.options.Goal,
		Intent:     s.intent,
		EntryURL:   s.entryURL,
		CurrentURL: s.currentURL,
		Approved:   s.approved,
		PageCount:  len(s.pages),
		MaxPages:   s.options.MaxPages,
		Error:      s.errMsg,
		Summary:    s.summary,
		StartedAt:  s.startedAt,
	}
}

// pageSummaries projects the visit history into event payloads.
func (s *Session) pageSummaries() []types.PageSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PageSummary, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, types.PageSummary{
			URL:       p.URL,
			Title:     p.Title,
			KeyPoints: p.KeyPoints,
			Reaction:  p.Reaction,
			Favicon:   p.Favicon,
			Timestamp: p.Timestamp,
		})
	}
	return out
}
