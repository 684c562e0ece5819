package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoachForgeHQ/coachforge-go/backend"
	"github.com/CoachForgeHQ/coachforge-go/services"
	"github.com/CoachForgeHQ/coachforge-go/session"
)

func newTestRouter(t *testing.T, backendURL string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	SessionManager = session.NewManager()
	Hub = services.NewEditorHub()
	go Hub.Run()
	SessionManager.SetResetListener(Hub.ResetVersionChanged)

	committer := backend.NewClient(backendURL, 5*time.Second)
	Orchestrator = services.NewSaveOrchestrator(committer)
	Orchestrator.SetNotifier(Hub)

	r := gin.New()
	r.POST("/api/v1/edit-sessions", CreateSessionHandler)
	r.GET("/api/v1/edits/events", EditorEventsHandler)
	v1 := r.Group("/api/v1", RequireSessionToken(), SessionMiddleware(SessionManager))
	{
		v1.PUT("/edit-sessions/program", SetProgramHandler)
		v1.POST("/edits", RegisterChangeHandler)
		v1.PATCH("/edits", UpdateChangeHandler)
		v1.GET("/edits/one", GetChangeHandler)
		v1.DELETE("/edits", DiscardChangeHandler)
		v1.DELETE("/edits/all", DiscardAllHandler)
		v1.GET("/edits/status", StatusHandler)
		v1.POST("/edits/save", SaveAllHandler)
	}
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, sessionID string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(session.SessionIDHeader, sessionID)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func createTestSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/edit-sessions", "", map[string]any{"programId": "prog-1"})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID, _ := resp["sessionId"].(string)
	require.NotEmpty(t, sessionID)
	return sessionID
}

func dayChangeBody(id string) map[string]any {
	return map[string]any{
		"entityType":   "day",
		"entityId":     id,
		"dayIndex":     2,
		"viewContext":  "template",
		"originalData": map[string]any{"title": "Rest day"},
		"pendingData":  map[string]any{"title": "Leg day"},
		"apiEndpoint":  "/programs/prog-1/days/" + id,
		"httpMethod":   "PATCH",
	}
}

func TestMissingSessionHeaderRejected(t *testing.T) {
	r := newTestRouter(t, "http://127.0.0.1:1")

	w, _ := doJSON(t, r, http.MethodGet, "/api/v1/edits/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEditLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t, "http://127.0.0.1:1")
	sid := createTestSession(t, r)

	// Register an edit and see it in status.
	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/edits", sid, dayChangeBody("d1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "day:d1", resp["key"])

	w, resp = doJSON(t, r, http.MethodGet, "/api/v1/edits/status", sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["hasUnsavedChanges"])
	assert.Equal(t, float64(1), resp["unsavedCount"])
	assert.Equal(t, true, resp["warnBeforeLeave"])

	// Update merges into pending data.
	w, resp = doJSON(t, r, http.MethodPatch, "/api/v1/edits", sid, map[string]any{
		"entityType":  "day",
		"entityId":    "d1",
		"partialData": map[string]any{"notes": "tempo"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["applied"])

	w, resp = doJSON(t, r, http.MethodGet, "/api/v1/edits/one?entityType=day&entityId=d1", sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := resp["pendingData"].(map[string]any)
	assert.Equal(t, "Leg day", pending["title"])
	assert.Equal(t, "tempo", pending["notes"])

	// Update for an unknown key reports applied=false but succeeds.
	w, resp = doJSON(t, r, http.MethodPatch, "/api/v1/edits", sid, map[string]any{
		"entityType":  "day",
		"entityId":    "d99",
		"partialData": map[string]any{"notes": "x"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["applied"])

	// Discard everything bumps the reset version.
	w, resp = doJSON(t, r, http.MethodDelete, "/api/v1/edits/all", sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), resp["unsavedCount"])
	assert.Equal(t, float64(1), resp["resetVersion"])
}

func TestProgramSwitchClearsEdits(t *testing.T) {
	r := newTestRouter(t, "http://127.0.0.1:1")
	sid := createTestSession(t, r)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/edits", sid, dayChangeBody("d1"))
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := doJSON(t, r, http.MethodPut, "/api/v1/edit-sessions/program", sid, map[string]any{"programId": "prog-2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "prog-2", resp["programId"])
	assert.Equal(t, float64(0), resp["unsavedCount"])

	_, resp = doJSON(t, r, http.MethodGet, "/api/v1/edits/status", sid, nil)
	assert.Equal(t, float64(0), resp["resetVersion"], "scope switch does not bump the reset version")
}

func TestSaveAllOverHTTP(t *testing.T) {
	var commits atomic.Int64
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer backendSrv.Close()

	r := newTestRouter(t, backendSrv.URL)
	sid := createTestSession(t, r)

	for i := 0; i < 3; i++ {
		w, _ := doJSON(t, r, http.MethodPost, "/api/v1/edits", sid, dayChangeBody(fmt.Sprintf("d%d", i)))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/edits/save", sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(3), resp["savedCount"])
	assert.Equal(t, int64(3), commits.Load())

	_, resp = doJSON(t, r, http.MethodGet, "/api/v1/edits/status", sid, nil)
	assert.Equal(t, float64(0), resp["unsavedCount"])
	assert.Equal(t, float64(1), resp["resetVersion"])
}

func TestEditorEventsRejectsUnknownSession(t *testing.T) {
	r := newTestRouter(t, "http://127.0.0.1:1")

	w, _ := doJSON(t, r, http.MethodGet, "/api/v1/edits/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing sessionId parameter")

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/edits/events?sessionId=nope", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "unknown session")
}

// Browser websocket clients cannot set request headers, so the events route
// authenticates from query parameters alone; a plain dial with the session id
// in the URL must complete the upgrade and receive reset events.
func TestEditorEventsStreamsResetEvents(t *testing.T) {
	r := newTestRouter(t, "http://127.0.0.1:1")
	srv := httptest.NewServer(r)
	defer srv.Close()

	sid := createTestSession(t, r)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/edits/events?sessionId=" + sid
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Registration travels through the hub's register channel.
	time.Sleep(100 * time.Millisecond)

	w, _ := doJSON(t, r, http.MethodDelete, "/api/v1/edits/all", sid, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event services.ResetEvent
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, "reset", event.Event)
	assert.Equal(t, uint64(1), event.ResetVersion)
}

func TestSaveAllEmptyStoreOverHTTP(t *testing.T) {
	var commits atomic.Int64
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		commits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer backendSrv.Close()

	r := newTestRouter(t, backendSrv.URL)
	sid := createTestSession(t, r)

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/edits/save", sid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(0), resp["savedCount"])
	assert.Equal(t, int64(0), commits.Load())
}
