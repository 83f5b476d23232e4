package browse

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/wander/pkg/browse/urlpolicy"
	"github.com/entrhq/wander/pkg/browser"
	"github.com/entrhq/wander/pkg/llm"
	"github.com/entrhq/wander/pkg/logging"
	"github.com/entrhq/wander/pkg/search"
	"github.com/entrhq/wander/pkg/store"
	"github.com/entrhq/wander/pkg/types"
)

// EventEmitter receives every event an orchestrator produces. Emitters
// must not block; slow consumers should buffer on their side.
type EventEmitter func(event *types.BrowseEvent)

// DiscoveryHook is called once per completed session with the narrative
// summary, letting the host surface it in conversation.
type DiscoveryHook func(sessionID, goal, summary string)

// maxConsecutiveFailures bounds back-to-back navigation failures before
// the loop gives up and summarizes what it has.
const maxConsecutiveFailures = 2

// Config wires an Orchestrator's collaborators.
type Config struct {
	Provider llm.Provider
	Search   search.Client
	Runtime  BrowserRuntime
	Store    Persistence // optional
	Policy   *urlpolicy.Policy
	Logger   *logging.Logger
	Emit     EventEmitter
	// OnDiscovery is optional.
	OnDiscovery DiscoveryHook
	// ApprovalTimeout defaults to DefaultApprovalTimeout.
	ApprovalTimeout time.Duration
}

// Orchestrator owns browsing sessions end to end: planning, the approval
// gate, the navigate/interpret/decide loop, summarization, and
// persistence. One orchestrator serves many concurrent sessions.
type Orchestrator struct {
	provider    llm.Provider
	runtime     BrowserRuntime
	store       Persistence
	policy      *urlpolicy.Policy
	logger      *logging.Logger
	emit        EventEmitter
	onDiscovery DiscoveryHook

	registry    *registry
	gate        *approvalGate
	planner     *planner
	navigator   *navigator
	interpreter *interpreter
	decider     *decider
	summarizer  *summarizer

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator builds an orchestrator from its collaborators.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Policy == nil {
		cfg.Policy = urlpolicy.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Emit == nil {
		cfg.Emit = func(*types.BrowseEvent) {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		provider:    cfg.Provider,
		runtime:     cfg.Runtime,
		store:       cfg.Store,
		policy:      cfg.Policy,
		logger:      cfg.Logger,
		emit:        cfg.Emit,
		onDiscovery: cfg.OnDiscovery,
		registry:    newRegistry(),
		gate:        newApprovalGate(cfg.ApprovalTimeout),
		planner:     newPlanner(cfg.Provider, cfg.Search, cfg.Policy, cfg.Logger),
		navigator:   newNavigator(cfg.Policy, cfg.Logger),
		interpreter: newInterpreter(cfg.Provider, cfg.Logger),
		decider:     newDecider(cfg.Provider, cfg.Policy, cfg.Logger),
		summarizer:  newSummarizer(cfg.Provider, cfg.Logger),
		rootCtx:     ctx,
		cancel:      cancel,
	}
}

// Start creates a session for the goal and launches its run loop. The
// returned id can be used with Approve, Cancel, and Snapshot.
func (o *Orchestrator) Start(opts Options) (string, error) {
	if opts.Goal == "" {
		return "", fmt.Errorf("browsing goal is required")
	}

	session := newSession(uuid.New().String(), opts)
	o.registry.add(session)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(session)
	}()

	return session.ID(), nil
}

// Approve delivers the user's approval decision for a gated session.
func (o *Orchestrator) Approve(sessionID string, approved bool) error {
	session, ok := o.registry.get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if session.State() != StateAwaitingApproval || !o.gate.resolve(sessionID, approved) {
		return ErrNotAwaitingApproval
	}
	return nil
}

// Cancel requests cooperative cancellation of a session. A session parked
// at the approval gate is released immediately as declined; one mid-step
// finishes its current step before observing the flag.
func (o *Orchestrator) Cancel(sessionID string) error {
	session, ok := o.registry.get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if !session.RequestCancel() {
		return ErrSessionTerminal
	}
	o.gate.resolve(sessionID, false)
	return nil
}

// Snapshot returns a point-in-time view of a session.
func (o *Orchestrator) Snapshot(sessionID string) (Snapshot, error) {
	session, ok := o.registry.get(sessionID)
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Sessions returns snapshots of every known session.
func (o *Orchestrator) Sessions() []Snapshot {
	sessions := o.registry.all()
	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Shutdown cancels every live session and waits for run loops to drain.
func (o *Orchestrator) Shutdown() {
	for _, s := range o.registry.all() {
		if s.RequestCancel() {
			o.gate.resolve(s.ID(), false)
		}
	}
	o.cancel()
	o.wg.Wait()
}

// run drives one session from planning to a terminal state.
func (o *Orchestrator) run(session *Session) {
	ctx := o.rootCtx
	goal := session.Options().Goal

	o.logActivity(ctx, session, goal)

	if !o.plan(ctx, session, goal) {
		return
	}
	if !o.awaitApproval(ctx, session) {
		return
	}

	page, err := o.runtime.CreateContext(session.ID(), browser.ContextOptions{})
	if err != nil {
		o.fail(ctx, session, fmt.Sprintf("could not start a browser context: %v", err))
		return
	}
	defer o.runtime.CloseContext(session.ID())

	o.browseLoop(ctx, session, page)
}

// plan runs the planning and searching states. Returns false when the
// session ended.
func (o *Orchestrator) plan(ctx context.Context, session *Session, goal string) bool {
	o.transition(session, StatePlanning, "working out what to look for")
	intent := o.planner.Intent(ctx, goal)

	if o.checkCancelled(ctx, session) {
		return false
	}

	o.transition(session, StateSearching, "searching for a starting point")
	entryURL, err := o.planner.FindEntry(ctx, goal)
	if err != nil {
		o.fail(ctx, session, err.Error())
		return false
	}

	session.setPlan(intent, entryURL)
	return true
}

// awaitApproval parks the session at the gate. Returns false when the
// session ended (declined, timed out, or cancelled).
func (o *Orchestrator) awaitApproval(ctx context.Context, session *Session) bool {
	snap := session.Snapshot()
	// Register at the gate before announcing the state so an approval that
	// lands immediately after the event cannot be lost.
	responseChannel := o.gate.register(session.ID())
	if session.CancelRequested() {
		o.gate.cleanup(session.ID())
		o.cancelled(ctx, session, "browsing was cancelled")
		return false
	}
	o.transition(session, StateAwaitingApproval, "waiting for approval to browse")
	o.emit(types.NewApprovalRequestEvent(
		session.ID(),
		snap.Intent,
		snap.Goal,
		snap.EntryURL,
		session.Options().MaxPages,
		int(session.Options().MaxDuration/time.Second),
	))

	if !o.gate.await(ctx, session.ID(), responseChannel) {
		o.cancelled(ctx, session, "browsing was not approved")
		return false
	}

	session.markApproved()
	return true
}

// browseLoop is the navigate/extract/interpret/decide cycle.
func (o *Orchestrator) browseLoop(ctx context.Context, session *Session, page PageContext) {
	deadline := time.Now().Add(session.Options().MaxDuration)
	currentURL := session.Snapshot().EntryURL
	failures := 0

	for {
		if o.checkCancelled(ctx, session) {
			return
		}
		if time.Now().After(deadline) {
			o.logger.Infof("session %s hit its time budget, summarizing", session.ID())
			o.emit(types.NewWarningEvent(session.ID(), "ran out of time, wrapping up with what I have"))
			break
		}
		if session.PageCount() >= session.Options().MaxPages {
			break
		}

		if _, ok := o.visitPage(ctx, session, page, currentURL); !ok {
			failures++
			if session.PageCount() == 0 {
				o.fail(ctx, session, fmt.Sprintf("could not load the starting page %s", currentURL))
				return
			}
			if failures > maxConsecutiveFailures {
				o.emit(types.NewWarningEvent(session.ID(), "too many failed page loads, wrapping up"))
				break
			}
		} else {
			failures = 0
		}

		if o.checkCancelled(ctx, session) {
			return
		}
		if session.PageCount() >= session.Options().MaxPages {
			break
		}

		next, ok := o.decideNext(ctx, session)
		if !ok {
			break
		}
		currentURL = next
	}

	o.summarize(ctx, session)
}

// visitPage navigates, extracts, and interprets one URL, appending the
// visit on success. Returns false when the visit failed.
func (o *Orchestrator) visitPage(ctx context.Context, session *Session, page PageContext, url string) (*PageVisit, bool) {
	o.transition(session, StateNavigating, fmt.Sprintf("heading to %s", url))

	result, err := o.navigator.Visit(ctx, session, page, url)
	if err != nil {
		o.logger.Warnf("session %s: %v", session.ID(), err)
		o.emit(types.NewWarningEvent(session.ID(), fmt.Sprintf("couldn't read %s, moving on", url)))
		return nil, false
	}

	o.transition(session, StateExtracting, "reading the page")

	o.transition(session, StateInterpreting, "thinking about what this page says")
	interp := o.interpreter.Interpret(ctx, session.Options().Goal, result)

	visit := PageVisit{
		URL:            result.FinalURL,
		Title:          result.Title,
		TextExcerpt:    result.TextContent,
		KeyPoints:      interp.KeyPoints,
		Reaction:       interp.Reaction,
		Thought:        interp.Thought,
		Links:          result.Links,
		CapturedVisual: result.Screenshot,
		Favicon:        result.Favicon,
		Timestamp:      time.Now(),
	}
	if !session.AddPage(visit) {
		return nil, false
	}

	o.emit(types.NewPageEvent(session.ID(), pageSummaryFor(&visit)))
	return &visit, true
}

// decideNext runs the deciding_next state. Returns the next URL, or false
// when the loop should stop and summarize.
func (o *Orchestrator) decideNext(ctx context.Context, session *Session) (string, bool) {
	o.transition(session, StateDecidingNext, "deciding where to go next")

	pages := session.Pages()
	if len(pages) == 0 {
		return "", false
	}
	current := &pages[len(pages)-1]
	var previous *PageVisit
	if len(pages) > 1 {
		previous = &pages[len(pages)-2]
	}

	dec := o.decider.Decide(ctx, session, current, previous)
	if !dec.Continue {
		o.logger.Infof("session %s stopping: %s", session.ID(), dec.Reason)
		return "", false
	}
	if dec.IsBacktracking {
		o.emit(types.NewStatusEvent(session.ID(), string(StateDecidingNext),
			"stepping back to an earlier page", session.PageCount(), session.Options().MaxPages))
	}
	return dec.NextURL, true
}

// summarize runs the summarizing state and finishes the session.
func (o *Orchestrator) summarize(ctx context.Context, session *Session) {
	if o.checkCancelled(ctx, session) {
		return
	}

	o.transition(session, StateSummarizing, "putting together what I found")
	summary := o.summarizer.Summarize(ctx, session)
	session.setSummary(summary)

	messageID := o.persist(ctx, session, summary)

	pages := session.pageSummaries()
	o.emit(types.NewBrowsingResultsEvent(session.ID(), session.Options().Goal, summary, pages, messageID))

	session.setState(StateComplete)
	o.emit(types.NewCompleteEvent(session.ID(), summary, pages, messageID))

	if o.onDiscovery != nil && summary != "" {
		o.onDiscovery(session.ID(), session.Options().Goal, summary)
	}
}

// persist writes the summary through the store as a conversational message
// plus a browsing memory, and closes out the activity record. Persistence
// problems are logged, never fatal.
func (o *Orchestrator) persist(ctx context.Context, session *Session, summary string) string {
	if o.store == nil || summary == "" {
		return ""
	}

	metadata := map[string]interface{}{
		"kind":      "browsing_summary",
		"sessionId": session.ID(),
		"goal":      session.Options().Goal,
		"pageCount": session.PageCount(),
	}
	if origin := session.Options().OriginMessageID; origin != "" {
		metadata["originMessageId"] = origin
	}

	messageID, err := o.store.CreateMessage(ctx, "assistant", summary, metadata)
	if err != nil {
		o.logger.Errorf("persisting browse summary failed: %v", err)
	}

	if _, err := o.store.CreateMemory(ctx, store.Memory{
		Kind:       "browsing",
		Content:    fmt.Sprintf("Browsed the web about %q: %s", session.Options().Goal, summary),
		Importance: 0.7,
		SourceID:   session.ID(),
	}); err != nil {
		o.logger.Errorf("persisting browse memory failed: %v", err)
	}

	if id := session.activity(); id != "" {
		if err := o.store.CompleteActivity(ctx, id, summary); err != nil {
			o.logger.Errorf("completing browse activity failed: %v", err)
		}
	}

	return messageID
}

func (o *Orchestrator) logActivity(ctx context.Context, session *Session, goal string) {
	if o.store == nil {
		return
	}
	id, err := o.store.LogActivity(ctx, "browse", goal)
	if err != nil {
		o.logger.Errorf("logging browse activity failed: %v", err)
		return
	}
	session.setActivity(id)
}

// transition moves the session and emits a status event. Transitions out
// of terminal states are dropped silently.
func (o *Orchestrator) transition(session *Session, next State, detail string) {
	if !session.setState(next) {
		return
	}
	o.emit(types.NewStatusEvent(session.ID(), string(next), detail,
		session.PageCount(), session.Options().MaxPages))
}

// checkCancelled finishes the session when a cancel was requested or the
// orchestrator is shutting down. Returns true when the session ended.
func (o *Orchestrator) checkCancelled(ctx context.Context, session *Session) bool {
	if !session.CancelRequested() && ctx.Err() == nil {
		return false
	}
	o.cancelled(ctx, session, "browsing was cancelled")
	return true
}

// cancelled moves the session to its cancelled terminal state. No summary
// is produced for a cancelled session.
func (o *Orchestrator) cancelled(ctx context.Context, session *Session, detail string) {
	if !session.setState(StateCancelled) {
		return
	}
	o.emit(types.NewStatusEvent(session.ID(), string(StateCancelled), detail,
		session.PageCount(), session.Options().MaxPages))
	o.failActivity(ctx, session, detail)
}

// fail moves the session to its error terminal state.
func (o *Orchestrator) fail(ctx context.Context, session *Session, message string) {
	if !session.setState(StateError) {
		return
	}
	session.setError(message)
	o.logger.Errorf("session %s failed: %s", session.ID(), message)
	o.emit(types.NewErrorEvent(session.ID(), message))
	o.failActivity(ctx, session, message)
}

func (o *Orchestrator) failActivity(ctx context.Context, session *Session, detail string) {
	if o.store == nil {
		return
	}
	if id := session.activity(); id != "" {
		if err := o.store.FailActivity(ctx, id, detail); err != nil {
			o.logger.Errorf("failing browse activity failed: %v", err)
		}
	}
}

func pageSummaryFor(visit *PageVisit) *types.PageSummary {
	summary := &types.PageSummary{
		URL:       visit.URL,
		Title:     visit.Title,
		KeyPoints: visit.KeyPoints,
		Reaction:  visit.Reaction,
		Favicon:   visit.Favicon,
		Timestamp: visit.Timestamp,
	}
	if len(visit.CapturedVisual) > 0 {
		summary.CapturedVisual = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(visit.CapturedVisual)
	}
	return summary
}
