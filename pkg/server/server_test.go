package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/wander/pkg/browse"
	"github.com/entrhq/wander/pkg/browser"
	"github.com/entrhq/wander/pkg/logging"
	"github.com/entrhq/wander/pkg/search"
	"github.com/entrhq/wander/pkg/types"
)

type stubProvider struct{}

func (stubProvider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	return types.NewAssistantMessage("ok"), nil
}

func (stubProvider) ShortAnswer(ctx context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "choose the next step") {
		return `{"continue": false, "reason": "done"}`, nil
	}
	return "All wrapped up.", nil
}

func (stubProvider) VisionAnswer(ctx context.Context, messages []*types.Message) (string, error) {
	return `{"thought": "t", "reaction": "Neat page.", "keyPoints": ["a fact"]}`, nil
}

func (stubProvider) GetModel() string { return "gpt-4o" }

type stubSearch struct{}

func (stubSearch) FindEntryCandidates(ctx context.Context, query string) ([]search.Citation, error) {
	return []search.Citation{{Title: "Entry", URL: "https://example.com/start"}}, nil
}

type stubPage struct{}

func (stubPage) Navigate(ctx context.Context, url string, opts browser.Options) (*browser.PageResult, error) {
	return &browser.PageResult{
		FinalURL:    url,
		Title:       "Start",
		TextContent: strings.Repeat("Plenty of readable article text here. ", 10),
		StatusCode:  200,
	}, nil
}

func (stubPage) Close() {}

type stubRuntime struct{}

func (stubRuntime) CreateContext(sessionID string, opts browser.ContextOptions) (browse.PageContext, error) {
	return stubPage{}, nil
}

func (stubRuntime) CloseContext(sessionID string) {}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	logger := logging.NewNopLogger()
	srv := New(":0", logger)
	orchestrator := browse.NewOrchestrator(browse.Config{
		Provider: stubProvider{},
		Search:   stubSearch{},
		Runtime:  stubRuntime{},
		Logger:   logger,
		Emit:     srv.Broadcast(),
	})
	srv.SetOrchestrator(orchestrator)
	t.Cleanup(orchestrator.Shutdown)

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

func startSession(t *testing.T, ts *httptest.Server, goal string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]any{"goal": goal})
	resp, err := http.Post(ts.URL+"/api/browse", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	require.NotEmpty(t, started.SessionID)
	return started.SessionID
}

func sessionState(t *testing.T, ts *httptest.Server, id string) string {
	t.Helper()

	resp, err := http.Get(ts.URL + "/api/browse/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap struct {
		State string `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap.State
}

func waitForRESTState(t *testing.T, ts *httptest.Server, id, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sessionState(t, ts, id) == want
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBrowseLifecycleOverREST(t *testing.T) {
	_, ts := newTestServer(t)

	id := startSession(t, ts, "learn about lighthouses")
	waitForRESTState(t, ts, id, "awaiting_approval")

	resp, err := http.Post(ts.URL+"/api/browse/"+id+"/approve", "application/json",
		bytes.NewReader([]byte(`{"approved": true}`)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	waitForRESTState(t, ts, id, "complete")
}

func TestStartRequiresGoal(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/browse", "application/json",
		bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusUnknownSession(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/browse/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApproveOutsideGateConflicts(t *testing.T) {
	_, ts := newTestServer(t)

	id := startSession(t, ts, "g")
	waitForRESTState(t, ts, id, "awaiting_approval")

	resp, err := http.Post(ts.URL+"/api/browse/"+id+"/approve", "application/json",
		bytes.NewReader([]byte(`{"approved": true}`)))
	require.NoError(t, err)
	resp.Body.Close()
	waitForRESTState(t, ts, id, "complete")

	resp, err = http.Post(ts.URL+"/api/browse/"+id+"/approve", "application/json",
		bytes.NewReader([]byte(`{"approved": true}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelViaREST(t *testing.T) {
	_, ts := newTestServer(t)

	id := startSession(t, ts, "g")
	waitForRESTState(t, ts, id, "awaiting_approval")

	resp, err := http.Post(ts.URL+"/api/browse/"+id+"/cancel", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	waitForRESTState(t, ts, id, "cancelled")
}

func TestListSessions(t *testing.T) {
	_, ts := newTestServer(t)

	id := startSession(t, ts, "g")
	waitForRESTState(t, ts, id, "awaiting_approval")

	resp, err := http.Get(ts.URL + "/api/browse")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sessions []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].ID)
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketReceivesEvents(t *testing.T) {
	srv, ts := newTestServer(t)

	conn := dialWS(t, ts)
	require.Eventually(t, func() bool {
		return srv.hub.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	id := startSession(t, ts, "learn about owls")

	// Events stream in until the approval request shows up.
	sawApproval := false
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for !sawApproval {
		var event types.BrowseEvent
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, id, event.SessionID)
		if event.Type == types.EventTypeApprovalRequest {
			sawApproval = true
			assert.Equal(t, "https://example.com/start", event.EntryURL)
		}
	}
}

func TestWebSocketStartCommand(t *testing.T) {
	srv, ts := newTestServer(t)

	conn := dialWS(t, ts)
	require.Eventually(t, func() bool {
		return srv.hub.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action":   "start",
		"goal":     "learn about tide pools",
		"maxPages": 2,
	}))

	// The session id arrives with the event stream.
	var id string
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for id == "" {
		var event types.BrowseEvent
		require.NoError(t, conn.ReadJSON(&event))
		if event.Type == types.EventTypeApprovalRequest {
			id = event.SessionID
			assert.Equal(t, 2, event.MaxPages)
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action":    "approve",
		"sessionId": id,
	}))
	waitForRESTState(t, ts, id, "complete")
}

func TestWebSocketStartRequiresGoal(t *testing.T) {
	srv, ts := newTestServer(t)

	conn := dialWS(t, ts)
	require.Eventually(t, func() bool {
		return srv.hub.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "start"}))

	// The frame is rejected without creating a session.
	assert.Never(t, func() bool {
		resp, err := http.Get(ts.URL + "/api/browse")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var sessions []json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
			return false
		}
		return len(sessions) > 0
	}, 300*time.Millisecond, 50*time.Millisecond)
}

func TestConfiguredDefaultsSeedSessions(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.SetDefaultOptions(browse.Options{
		MaxPages:      2,
		MaxDuration:   time.Minute,
		CaptureVisual: false,
	})

	id := startSession(t, ts, "g")
	waitForRESTState(t, ts, id, "awaiting_approval")

	resp, err := http.Get(ts.URL + "/api/browse/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	var snap struct {
		MaxPages int `json:"maxPages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, 2, snap.MaxPages)
}

func TestStartRequestOverridesDefaults(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.SetDefaultOptions(browse.Options{MaxPages: 2, CaptureVisual: true})

	body, _ := json.Marshal(map[string]any{"goal": "g", "maxPages": 4})
	resp, err := http.Post(ts.URL+"/api/browse", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	waitForRESTState(t, ts, started.SessionID, "awaiting_approval")

	statusResp, err := http.Get(ts.URL + "/api/browse/" + started.SessionID)
	require.NoError(t, err)
	defer statusResp.Body.Close()
	var snap struct {
		MaxPages int `json:"maxPages"`
	}
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&snap))
	assert.Equal(t, 4, snap.MaxPages)
}

func TestWebSocketApproveCommand(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialWS(t, ts)
	id := startSession(t, ts, "g")
	waitForRESTState(t, ts, id, "awaiting_approval")

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action":    "approve",
		"sessionId": id,
	}))

	waitForRESTState(t, ts, id, "complete")
}

func TestWebSocketCancelCommand(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialWS(t, ts)
	id := startSession(t, ts, "g")
	waitForRESTState(t, ts, id, "awaiting_approval")

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action":    "cancel",
		"sessionId": id,
	}))

	waitForRESTState(t, ts, id, "cancelled")
}
