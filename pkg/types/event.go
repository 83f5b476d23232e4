package types

import "time"

// BrowseEventType defines the type of event emitted toward the caller/UI
// during an autonomous browsing session.
type BrowseEventType string

const (
	EventTypeApprovalRequest BrowseEventType = "approval_request" // EventTypeApprovalRequest indicates a session is gated waiting for user approval.
	EventTypeStatus          BrowseEventType = "status"           // EventTypeStatus indicates a session state change.
	EventTypePage            BrowseEventType = "page"             // EventTypePage indicates a page visit completed.
	EventTypeWarning         BrowseEventType = "warning"          // EventTypeWarning indicates a non-fatal problem (retry exhausted, low-quality page).
	EventTypeError           BrowseEventType = "error"            // EventTypeError indicates the session ended with an error.
	EventTypeBrowsingResults BrowseEventType = "browsing_results" // EventTypeBrowsingResults carries the full page list and narrative summary.
	EventTypeComplete        BrowseEventType = "complete"         // EventTypeComplete indicates the session reached its terminal complete state.
)

// PageSummary is the caller-facing projection of one page visit.
type PageSummary struct {
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	KeyPoints      []string  `json:"keyPoints,omitempty"`
	Reaction       string    `json:"reaction,omitempty"`
	CapturedVisual string    `json:"capturedVisual,omitempty"`
	Favicon        string    `json:"favicon,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// BrowseEvent represents an event emitted by the browsing orchestrator.
// Only the fields relevant to the event's Type are populated.
type BrowseEvent struct {
	// Type indicates the kind of event.
	Type BrowseEventType `json:"type"`

	// SessionID identifies the browsing session the event belongs to.
	SessionID string `json:"sessionId"`

	// Intent is the first-person rationale shown with approval requests.
	Intent string `json:"intent,omitempty"`

	// Goal is the natural-language goal of the session.
	Goal string `json:"goal,omitempty"`

	// EntryURL is the planned first page (approval requests only).
	EntryURL string `json:"entryUrl,omitempty"`

	// State is the session state (status events only).
	State string `json:"state,omitempty"`

	// Detail is a human-readable elaboration of the current state.
	Detail string `json:"detail,omitempty"`

	// Message carries warning/error text.
	Message string `json:"message,omitempty"`

	// Summary is the narrative produced by the summarizer.
	Summary string `json:"summary,omitempty"`

	// Page holds the visited page for page events.
	Page *PageSummary `json:"page,omitempty"`

	// Pages holds the full visit history for results/complete events.
	Pages []PageSummary `json:"pages,omitempty"`

	// PageCount and MaxPages describe loop progress (status events).
	PageCount int `json:"pageCount,omitempty"`
	MaxPages  int `json:"maxPages,omitempty"`

	// EstimatedSeconds is the rough time budget shown with approval requests.
	EstimatedSeconds int `json:"estimatedSeconds,omitempty"`

	// PersistedMessageID references the conversational turn the summary
	// was persisted as.
	PersistedMessageID string `json:"persistedMessageId,omitempty"`

	// Timestamp is when the event was created.
	Timestamp time.Time `json:"timestamp"`
}

// NewApprovalRequestEvent creates the event that gates a session on user approval.
func NewApprovalRequestEvent(sessionID, intent, goal, entryURL string, maxPages, estimatedSeconds int) *BrowseEvent {
	return &BrowseEvent{
		Type:             EventTypeApprovalRequest,
		SessionID:        sessionID,
		Intent:           intent,
		Goal:             goal,
		EntryURL:         entryURL,
		MaxPages:         maxPages,
		EstimatedSeconds: estimatedSeconds,
		Timestamp:        time.Now(),
	}
}

// NewStatusEvent creates a session state-change event.
func NewStatusEvent(sessionID, state, detail string, pageCount, maxPages int) *BrowseEvent {
	return &BrowseEvent{
		Type:      EventTypeStatus,
		SessionID: sessionID,
		State:     state,
		Detail:    detail,
		PageCount: pageCount,
		MaxPages:  maxPages,
		Timestamp: time.Now(),
	}
}

// NewPageEvent creates an event announcing a completed page visit.
func NewPageEvent(sessionID string, page *PageSummary) *BrowseEvent {
	return &BrowseEvent{
		Type:      EventTypePage,
		SessionID: sessionID,
		Page:      page,
		Timestamp: time.Now(),
	}
}

// NewWarningEvent creates a non-blocking warning event.
func NewWarningEvent(sessionID, message string) *BrowseEvent {
	return &BrowseEvent{
		Type:      EventTypeWarning,
		SessionID: sessionID,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewErrorEvent creates a session-fatal error event.
func NewErrorEvent(sessionID, message string) *BrowseEvent {
	return &BrowseEvent{
		Type:      EventTypeError,
		SessionID: sessionID,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewBrowsingResultsEvent carries the final page list and narrative summary.
func NewBrowsingResultsEvent(sessionID, goal, summary string, pages []PageSummary, persistedMessageID string) *BrowseEvent {
	return &BrowseEvent{
		Type:               EventTypeBrowsingResults,
		SessionID:          sessionID,
		Goal:               goal,
		Summary:            summary,
		Pages:              pages,
		PersistedMessageID: persistedMessageID,
		Timestamp:          time.Now(),
	}
}

// NewCompleteEvent announces the terminal complete state.
func NewCompleteEvent(sessionID, summary string, pages []PageSummary, persistedMessageID string) *BrowseEvent {
	return &BrowseEvent{
		Type:               EventTypeComplete,
		SessionID:          sessionID,
		Summary:            summary,
		Pages:              pages,
		PersistedMessageID: persistedMessageID,
		Timestamp:          time.Now(),
	}
}
