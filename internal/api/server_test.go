package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jdai-labs/marketbot/internal/log"
	"github.com/jdai-labs/marketbot/internal/rag"
)

// fakeEngine implements Engine with injectable behavior and call capture.
type fakeEngine struct {
	answer        string
	err           error
	ready         bool
	indexSize     int
	lastSessionID string
	lastMessage   string
	resets        []string
}

func (f *fakeEngine) Answer(_ context.Context, sessionID, message string) (string, error) {
	f.lastSessionID = sessionID
	f.lastMessage = message
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeEngine) Reset(sessionID string) {
	f.resets = append(f.resets, sessionID)
}

func (f *fakeEngine) Health() rag.Health {
	return rag.Health{Ready: f.ready, IndexSize: f.indexSize}
}

func newTestServer(t *testing.T, engine *fakeEngine) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Engine:      engine,
		CORSOrigins: []string{"https://widget.example.com"},
		RateBurst:   1000, // keep rate limiting out of functional tests
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	return srv
}

func postJSON(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServerRequiresEngine(t *testing.T) {
	if _, err := NewServer(ServerConfig{Logger: log.NewNop()}); err == nil {
		t.Error("NewServer() without engine succeeded")
	}
}

func TestChatOK(t *testing.T) {
	engine := &fakeEngine{answer: "we offer chatbots", ready: true}
	srv := newTestServer(t, engine)

	w := postJSON(t, srv, "/api/v1/chat", `{"message":"what do you offer","session_id":"s1"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body)
	}
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Response != "we offer chatbots" || resp.SessionID != "s1" {
		t.Errorf("response = %+v", resp)
	}
	if engine.lastSessionID != "s1" || engine.lastMessage != "what do you offer" {
		t.Errorf("engine saw %q/%q", engine.lastSessionID, engine.lastMessage)
	}
}

func TestChatGeneratesSessionID(t *testing.T) {
	engine := &fakeEngine{answer: "hi", ready: true}
	srv := newTestServer(t, engine)

	w := postJSON(t, srv, "/api/v1/chat", `{"message":"hello"}`)

	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Errorf("generated session_id %q is not a UUID", resp.SessionID)
	}
	if engine.lastSessionID != resp.SessionID {
		t.Error("engine and response disagree on the generated session id")
	}
}

func TestChatErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", rag.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"index not ready", rag.ErrIndexNotReady, http.StatusServiceUnavailable, "index_not_ready"},
		{"embedding failure", rag.ErrEmbedding, http.StatusBadGateway, "retrieval_failed"},
		{"generation failure", rag.ErrGeneration, http.StatusBadGateway, "generation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeEngine{err: tt.err})
			w := postJSON(t, srv, "/api/v1/chat", `{"message":"q","session_id":"s1"}`)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestChatMalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{ready: true})
	w := postJSON(t, srv, "/api/v1/chat", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestResetNoContent(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(t, engine)

	w := postJSON(t, srv, "/api/v1/reset", `{"session_id":"s1"}`)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if len(engine.resets) != 1 || engine.resets[0] != "s1" {
		t.Errorf("resets = %v, want [s1]", engine.resets)
	}
}

func TestResetMissingSessionID(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	w := postJSON(t, srv, "/api/v1/reset", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestReadyEndpoint(t *testing.T) {
	engine := &fakeEngine{ready: false, indexSize: 0}
	srv := newTestServer(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("not-ready status = %d, want 503", w.Code)
	}

	engine.ready = true
	engine.indexSize = 42
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", w.Code)
	}
	var h rag.Health
	if err := json.Unmarshal(w.Body.Bytes(), &h); err != nil {
		t.Fatal(err)
	}
	if !h.Ready || h.IndexSize != 42 {
		t.Errorf("health = %+v", h)
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{answer: "hi", ready: true})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "https://widget.example.com")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://widget.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{answer: "hi", ready: true})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin leaked to unknown origin: %q", got)
	}
}

func TestRequestIDAssigned(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{answer: "hi", ready: true})
	w := postJSON(t, srv, "/api/v1/chat", `{"message":"hello"}`)

	id := w.Header().Get("X-Request-ID")
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("X-Request-ID = %q, not a UUID", id)
	}
}

func TestRateLimitExhaustion(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Engine:    &fakeEngine{answer: "hi", ready: true},
		RateBurst: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	var last int
	for i := 0; i < 3; i++ {
		w := postJSON(t, srv, "/api/v1/chat", `{"message":"hello"}`)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}

func TestRateLimiterIsPerIP(t *testing.T) {
	rl := newRateLimiter(0, 1) // one token, no refill

	if !rl.allow("10.0.0.1") {
		t.Fatal("first request from 10.0.0.1 denied")
	}
	if rl.allow("10.0.0.1") {
		t.Error("second request from 10.0.0.1 allowed past the burst")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("10.0.0.2 starved by 10.0.0.1's exhausted bucket")
	}
}

func TestRateLimiterSweepsIdleBuckets(t *testing.T) {
	rl := newRateLimiter(1, 1)
	rl.allow("10.0.0.1")
	rl.allow("10.0.0.2")

	rl.mu.Lock()
	rl.perIP["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.sweep(time.Now())
	remaining := len(rl.perIP)
	_, fresh := rl.perIP["10.0.0.2"]
	rl.mu.Unlock()

	if remaining != 1 {
		t.Errorf("%d buckets after sweep, want 1", remaining)
	}
	if !fresh {
		t.Error("fresh bucket swept alongside the idle one")
	}
}

func TestRecoveryFromPanic(t *testing.T) {
	handler := recoveryMiddleware(log.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
