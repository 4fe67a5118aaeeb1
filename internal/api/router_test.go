// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/metrics"
	"github.com/tomtom215/mapasync/internal/models"
	"github.com/tomtom215/mapasync/internal/places"
	ws "github.com/tomtom215/mapasync/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

type failingPlaces struct{}

func (failingPlaces) Places(context.Context) ([]models.Place, error) {
	return nil, errors.New("store offline")
}

func (failingPlaces) Count(context.Context) (int, error) {
	return 0, errors.New("store offline")
}

type staticBus struct {
	state string
}

func (b staticBus) Backend() string      { return "memory" }
func (b staticBus) BreakerState() string { return b.state }

// setupRouter builds a router over a seeded memory registry and a running hub.
func setupRouter(t *testing.T, mwCfg *ChiMiddlewareConfig, seed ...models.Place) (http.Handler, *ws.Hub) {
	t.Helper()

	registry := places.NewRegistry(places.NewMemoryStore())
	if _, err := registry.Seed(context.Background(), seed); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	hub := ws.NewHub(ws.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	handler := NewHandler(registry, hub, HandlerOptions{
		Version:      "test",
		StoreBackend: "memory",
		Bus:          staticBus{state: "closed"},
	})
	return NewRouter(handler, NewChiMiddleware(mwCfg)).SetupChi(), hub
}

func openConfig() *ChiMiddlewareConfig {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = []string{"*"}
	return cfg
}

func decodeResponse(t *testing.T, body io.Reader) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestPlaces_FlatArrayInInsertionOrder(t *testing.T) {
	router, _ := setupRouter(t, openConfig(),
		models.Place{ID: "b", Nombre: "B", Lat: 2, Lng: 2},
		models.Place{ID: "a", Nombre: "A", Lat: 1, Lng: 1},
	)

	req := httptest.NewRequest(http.MethodGet, "/mapa", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	var list []models.Place
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("body is not a flat array: %v (%s)", err, rec.Body.String())
	}
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Errorf("list = %+v", list)
	}
}

func TestPlaces_EmptyIsArray(t *testing.T) {
	router, _ := setupRouter(t, openConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mapa", nil))

	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestPlaces_ETag(t *testing.T) {
	router, _ := setupRouter(t, openConfig(), models.Place{ID: "a", Lat: 1, Lng: 1})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mapa", nil))
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/mapa", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", rec.Code)
	}
}

func TestPlaces_StoreError(t *testing.T) {
	handler := NewHandler(failingPlaces{}, nil, HandlerOptions{})
	router := NewRouter(handler, NewChiMiddleware(openConfig())).SetupChi()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mapa", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec.Body)
	if resp.Status != "error" || resp.Error == nil || resp.Error.Code != "STORE_ERROR" {
		t.Errorf("response = %+v", resp)
	}
}

func TestPlaces_RateLimited(t *testing.T) {
	cfg := openConfig()
	cfg.RateLimitRequests = 1
	cfg.RateLimitWindow = time.Minute
	router, _ := setupRouter(t, cfg)

	before := testutil.ToFloat64(metrics.APIRateLimitHits.WithLabelValues("/mapa"))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/mapa", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
	if got := testutil.ToFloat64(metrics.APIRateLimitHits.WithLabelValues("/mapa")) - before; got != 1 {
		t.Errorf("rate limit hits delta = %v, want 1", got)
	}
}

func TestPlaces_RateLimitDisabled(t *testing.T) {
	cfg := openConfig()
	cfg.RateLimitRequests = 1
	cfg.RateLimitDisabled = true
	router, _ := setupRouter(t, cfg)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mapa", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = []string{"http://localhost:4200"}
	router, _ := setupRouter(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/mapa", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := setupRouter(t, openConfig(), models.Place{ID: "a", Lat: 1, Lng: 1})

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/health", http.StatusOK, `"places":1`},
		{"/health/live", http.StatusOK, `"alive":true`},
		{"/health/ready", http.StatusOK, `"ready_to_serve":true`},
		{"/nope", http.StatusNotFound, `"NOT_FOUND"`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %s missing %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHealthReady_StoreDown(t *testing.T) {
	handler := NewHandler(failingPlaces{}, nil, HandlerOptions{})
	router := NewRouter(handler, nil).SetupChi()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if resp := decodeResponse(t, rec.Body); resp.Status != "not_ready" {
		t.Errorf("status field = %q", resp.Status)
	}
}

func TestHealth_DegradedWhenBreakerOpen(t *testing.T) {
	registry := places.NewRegistry(places.NewMemoryStore())
	handler := NewHandler(registry, nil, HandlerOptions{Bus: staticBus{state: "open"}})

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if !strings.Contains(rec.Body.String(), `"status":"degraded"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupRouter(t, openConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "websocket_connections") {
		t.Error("metrics output missing websocket_connections series")
	}
}

func TestWebSocket_ReceivesBroadcast(t *testing.T) {
	router, hub := setupRouter(t, openConfig())
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.GetClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ev, err := models.DeleteMarkerEvent("a")
	if err != nil {
		t.Fatal(err)
	}
	hub.Broadcast(ev, "")

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	got, err := models.UnmarshalEvent(data)
	if err != nil {
		t.Fatalf("UnmarshalEvent: %v", err)
	}
	if id, _ := got.DecodeID(); got.Type != models.EventMarkerDelete || id != "a" {
		t.Errorf("event = %+v", got)
	}
}

func TestWebSocket_OriginRejected(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = []string{"http://localhost:4200"}
	router, _ := setupRouter(t, cfg)
	server := httptest.NewServer(router)
	defer server.Close()

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("resp = %v, want 403", resp)
	}
}

func TestWebSocket_NoHub(t *testing.T) {
	handler := NewHandler(places.NewRegistry(places.NewMemoryStore()), nil, HandlerOptions{})

	rec := httptest.NewRecorder()
	handler.WebSocket(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestAllowedOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"empty origin", []string{"http://a"}, "", true},
		{"wildcard", []string{"*"}, "http://x", true},
		{"listed", []string{"http://a", "http://b"}, "http://b", true},
		{"unlisted", []string{"http://a"}, "http://x", false},
		{"nothing configured", nil, "http://x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultChiMiddlewareConfig()
			cfg.CORSAllowedOrigins = tt.allowed
			if got := NewChiMiddleware(cfg).AllowedOrigin(tt.origin); got != tt.want {
				t.Errorf("AllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\x7f"); got != `a\x0ab\x7f` {
		t.Errorf("sanitizeLogValue() = %q", got)
	}
}

func TestGenerateETag(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{"", `"811c9dc5"`},
		{"a", `"e40c292c"`},
	}
	for _, tt := range tests {
		if got := generateETag([]byte(tt.data)); got != tt.want {
			t.Errorf("generateETag(%q) = %s, want %s", tt.data, got, tt.want)
		}
	}
}
