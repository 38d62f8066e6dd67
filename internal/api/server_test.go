package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mirobo/dreame-bridge/internal/bridge"
	"github.com/mirobo/dreame-bridge/internal/dreame"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/config"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/logging"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/mqtt"
	"github.com/mirobo/dreame-bridge/internal/vacuum"
)

// fakeDevice is a scripted DeviceClient for API tests.
type fakeDevice struct {
	mu     sync.Mutex
	status dreame.Status
}

func (f *fakeDevice) Status(_ context.Context) (dreame.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeDevice) Start(_ context.Context) error              { return nil }
func (f *fakeDevice) Stop(_ context.Context) error               { return nil }
func (f *fakeDevice) ReturnHome(_ context.Context) error         { return nil }
func (f *fakeDevice) Find(_ context.Context) error               { return nil }
func (f *fakeDevice) SetFanSpeed(_ context.Context, _ int) error { return nil }
func (f *fakeDevice) ResetMainBrushLife(_ context.Context) error { return nil }
func (f *fakeDevice) ResetSideBrushLife(_ context.Context) error { return nil }
func (f *fakeDevice) ResetFilterLife(_ context.Context) error    { return nil }

// fakeMQTT records publishes and subscriptions for API tests.
type fakeMQTT struct {
	mu        sync.Mutex
	connected bool
	published []fakePublish
	handlers  map[string]mqtt.MessageHandler
}

type fakePublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{connected: true, handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, fakePublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMQTT) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeMQTT) setConnected(connected bool) {
	f.mu.Lock()
	f.connected = connected
	f.mu.Unlock()
}

func (f *fakeMQTT) lastPublish(t *testing.T) fakePublish {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		t.Fatal("expected at least one publish")
	}
	return f.published[len(f.published)-1]
}

// deliver simulates an inbound message on a subscribed topic pattern.
func (f *fakeMQTT) deliver(t *testing.T, pattern, topic string, payload []byte) {
	t.Helper()
	f.mu.Lock()
	handler, ok := f.handlers[pattern]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for pattern %q", pattern)
	}
	if err := handler(topic, payload); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

// fakeHistory is an in-memory StateHistoryRepository.
type fakeHistory struct {
	mu      sync.Mutex
	entries []vacuum.StateHistoryEntry
	err     error
}

func (f *fakeHistory) RecordSnapshot(_ context.Context, deviceID string, snapshot vacuum.Snapshot, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, vacuum.StateHistoryEntry{
		ID:        int64(len(f.entries) + 1),
		DeviceID:  deviceID,
		Snapshot:  snapshot,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (f *fakeHistory) GetHistory(_ context.Context, deviceID string, limit int) ([]vacuum.StateHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var result []vacuum.StateHistoryEntry
	for i := len(f.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if f.entries[i].DeviceID == deviceID {
			result = append(result, f.entries[i])
		}
	}
	return result, nil
}

const testAPISecret = "test-bootstrap-secret"

// testServer creates a Server with one registered vacuum and a fake broker.
func testServer(t *testing.T) (*Server, *fakeMQTT, *fakeDevice) {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	device := &fakeDevice{status: dreame.Status{StatusCode: 2, Battery: 80, FanSpeed: 1}}
	registry := vacuum.NewRegistry()
	registry.Register(vacuum.NewEntity("vac-1", "Hallway", device, log))

	broker := newFakeMQTT()

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         "test-secret-key-at-least-32-characters-long",
				AccessTokenTTL: 15,
			},
			APISecret: testAPISecret,
		},
		Logger:   log,
		Registry: registry,
		MQTT:     broker,
		Topics:   mqtt.Topics{Prefix: "dreame"},
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv, broker, device
}

// authToken exchanges the bootstrap secret for a bearer token.
func authToken(t *testing.T, router http.Handler) string {
	t.Helper()

	body := `{"secret": "` + testAPISecret + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal token response: %v", err)
	}
	return resp.AccessToken
}

// authedRequest builds a request with a valid bearer token.
func authedRequest(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+authToken(t, router))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if int(resp["vacuums"].(float64)) != 1 {
		t.Errorf("vacuums = %v, want 1", resp["vacuums"])
	}
	if resp["mqtt_connected"] != true {
		t.Errorf("mqtt_connected = %v, want true", resp["mqtt_connected"])
	}
}

func TestHealth_ContentType(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Auth Tests ────────────────────────────────────────────────────

func TestToken_Success(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"secret": "` + testAPISecret + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.AccessToken == "" {
		t.Error("expected access_token to be non-empty")
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", resp.TokenType)
	}
	if resp.ExpiresIn != 15*60 {
		t.Errorf("expires_in = %d, want %d", resp.ExpiresIn, 15*60)
	}
}

func TestToken_WrongSecret(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"secret": "wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestToken_InvalidJSON(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vacuums", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuth_GarbageToken(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vacuums", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestWSTicket_SingleUse(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	w := authedRequest(t, router, http.MethodPost, "/api/v1/auth/ws-ticket", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	ticket, ok := resp["ticket"].(string)
	if !ok || ticket == "" {
		t.Fatal("expected ticket to be a non-empty string")
	}

	// Ticket should be valid once
	if !srv.tickets.validate(ticket) {
		t.Error("ticket should be valid on first use")
	}

	// Ticket should be consumed (single-use)
	if srv.tickets.validate(ticket) {
		t.Error("ticket should not be valid on second use")
	}
}

func TestWSTicket_Expiry(t *testing.T) {
	store := newTicketStore()
	ticket := generateTicket()

	store.mu.Lock()
	store.tickets[ticket] = time.Now().Add(-1 * time.Second)
	store.mu.Unlock()

	if store.validate(ticket) {
		t.Error("expired ticket should not be valid")
	}
}

func TestWSTicket_CleanExpired(t *testing.T) {
	store := newTicketStore()

	store.mu.Lock()
	store.tickets["stale"] = time.Now().Add(-1 * time.Second)
	store.tickets["fresh"] = time.Now().Add(time.Minute)
	store.mu.Unlock()

	store.cleanExpired()

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.tickets["stale"]; ok {
		t.Error("expired ticket should have been removed")
	}
	if _, ok := store.tickets["fresh"]; !ok {
		t.Error("valid ticket should have been kept")
	}
}

// ─── Vacuum Endpoint Tests ─────────────────────────────────────────

func TestListVacuums_BeforeFirstPoll(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	w := authedRequest(t, router, http.MethodGet, "/api/v1/vacuums", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Vacuums []vacuumSummary `json:"vacuums"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}

	got := resp.Vacuums[0]
	if got.ID != "vac-1" || got.Name != "Hallway" {
		t.Errorf("vacuum = %s/%s, want vac-1/Hallway", got.ID, got.Name)
	}
	// Observable state is null before the first successful poll
	if got.State != nil || got.Battery != nil || got.FanSpeed != nil || got.PolledAt != nil {
		t.Error("expected state fields to be null before first poll")
	}
}

func TestGetVacuum_AfterPoll(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	entity, _ := srv.registry.Get("vac-1")
	if err := entity.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	w := authedRequest(t, router, http.MethodGet, "/api/v1/vacuums/vac-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var detail vacuumDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if detail.State == nil || *detail.State != "idle" {
		t.Errorf("state = %v, want idle", detail.State)
	}
	if detail.Battery == nil || *detail.Battery != 80 {
		t.Errorf("battery = %v, want 80", detail.Battery)
	}
	if detail.FanSpeed == nil || *detail.FanSpeed != "Standard" {
		t.Errorf("fan_speed = %v, want Standard", detail.FanSpeed)
	}
	if len(detail.FanSpeedList) == 0 {
		t.Error("expected fan_speed_list to be populated after poll")
	}
	if detail.Attributes == nil {
		t.Error("expected attributes to be populated after poll")
	}
}

func TestGetVacuum_NotFound(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	w := authedRequest(t, router, http.MethodGet, "/api/v1/vacuums/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Command Endpoint Tests ────────────────────────────────────────

func TestCommand_Accepted(t *testing.T) {
	srv, broker, _ := testServer(t)
	router := srv.buildRouter()

	w := authedRequest(t, router, http.MethodPost, "/api/v1/vacuums/vac-1/commands/start", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var resp commandResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.CommandID == "" {
		t.Error("expected command_id to be non-empty")
	}
	if resp.AckTopic != "dreame/ack/vacuum/vac-1" {
		t.Errorf("ack_topic = %q, want dreame/ack/vacuum/vac-1", resp.AckTopic)
	}

	pub := broker.lastPublish(t)
	if pub.Topic != "dreame/command/vacuum/vac-1" {
		t.Errorf("publish topic = %q, want dreame/command/vacuum/vac-1", pub.Topic)
	}
	if pub.QoS != 1 || pub.Retained {
		t.Errorf("publish qos/retained = %d/%v, want 1/false", pub.QoS, pub.Retained)
	}

	var cmd bridge.CommandMessage
	if err := json.Unmarshal(pub.Payload, &cmd); err != nil {
		t.Fatalf("unmarshal command payload: %v", err)
	}
	if cmd.ID != resp.CommandID {
		t.Errorf("payload id = %q, want %q", cmd.ID, resp.CommandID)
	}
	if cmd.Command != bridge.CommandStart {
		t.Errorf("payload command = %q, want %q", cmd.Command, bridge.CommandStart)
	}
	if cmd.DeviceID != "vac-1" {
		t.Errorf("payload device_id = %q, want vac-1", cmd.DeviceID)
	}
	if cmd.Source != "api" {
		t.Errorf("payload source = %q, want api", cmd.Source)
	}
}

func TestCommand_WithParameters(t *testing.T) {
	srv, broker, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"parameters": {"fan_speed": "Turbo"}}`
	w := authedRequest(t, router, http.MethodPost, "/api/v1/vacuums/vac-1/commands/set_fan_speed", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var cmd bridge.CommandMessage
	if err := json.Unmarshal(broker.lastPublish(t).Payload, &cmd); err != nil {
		t.Fatalf("unmarshal command payload: %v", err)
	}
	if cmd.Parameters["fan_speed"] != "Turbo" {
		t.Errorf("parameters.fan_speed = %v, want Turbo", cmd.Parameters["fan_speed"])
	}
}

func TestCommand_UnknownCommand(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	w := authedRequest(t, router, http.MethodPost, "/api/v1/vacuums/vac-1/commands/fly", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCommand_UnknownVacuum(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	w := authedRequest(t, router, http.MethodPost, "/api/v1/vacuums/nonexistent/commands/start", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCommand_MQTTDisconnected(t *testing.T) {
	srv, broker, _ := testServer(t)
	router := srv.buildRouter()

	broker.setConnected(false)

	w := authedRequest(t, router, http.MethodPost, "/api/v1/vacuums/vac-1/commands/start", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestCommand_InvalidBody(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	w := authedRequest(t, router, http.MethodPost, "/api/v1/vacuums/vac-1/commands/start", "not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── History Endpoint Tests ────────────────────────────────────────

func TestHistory_NotConfigured(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	w := authedRequest(t, router, http.MethodGet, "/api/v1/vacuums/vac-1/history", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHistory_ReturnsEntries(t *testing.T) {
	srv, _, _ := testServer(t)
	history := &fakeHistory{}
	srv.history = history
	router := srv.buildRouter()

	snap := vacuum.Snapshot{
		Status:   dreame.Status{StatusCode: 1, Battery: 75, FanSpeed: 2},
		PolledAt: time.Now().UTC(),
	}
	if err := history.RecordSnapshot(context.Background(), "vac-1", snap, vacuum.StateHistorySourcePoll); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	w := authedRequest(t, router, http.MethodGet, "/api/v1/vacuums/vac-1/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		DeviceID string                     `json:"device_id"`
		Entries  []vacuum.StateHistoryEntry `json:"entries"`
		Count    int                        `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Entries[0].Source != vacuum.StateHistorySourcePoll {
		t.Errorf("source = %q, want %q", resp.Entries[0].Source, vacuum.StateHistorySourcePoll)
	}
}

func TestHistory_InvalidLimit(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.history = &fakeHistory{}
	router := srv.buildRouter()

	w := authedRequest(t, router, http.MethodGet, "/api/v1/vacuums/vac-1/history?limit=zero", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = authedRequest(t, router, http.MethodGet, "/api/v1/vacuums/vac-1/history?limit=-5", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHistory_QueryError(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.history = &fakeHistory{err: errors.New("database error")}
	router := srv.buildRouter()

	w := authedRequest(t, router, http.MethodGet, "/api/v1/vacuums/vac-1/history", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// ─── Metrics Endpoint Tests ────────────────────────────────────────

func TestMetrics_Exposed(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	entity, _ := srv.registry.Get("vac-1")
	if err := entity.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "dreame_bridge_battery_percent") {
		t.Error("expected dreame_bridge_battery_percent in metrics output")
	}
}
