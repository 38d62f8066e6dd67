package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mirobo/dreame-bridge/internal/infrastructure/config"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/logging"
)

func testHub(t *testing.T) *Hub {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return hub
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := testHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelStateChanged: {}},
	}
	hub.Register(client)

	hub.Broadcast(ChannelStateChanged, map[string]any{"device_id": "vac-1", "state": "cleaning"})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent {
			t.Errorf("type = %q, want %q", wsMsg.Type, WSTypeEvent)
		}
		if wsMsg.EventType != ChannelStateChanged {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, ChannelStateChanged)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := testHub(t)

	// Client not subscribed to the state channel
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"some.other_channel": {}},
	}
	hub.Register(client)

	hub.Broadcast(ChannelStateChanged, map[string]any{"device_id": "vac-1"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
		// OK — no message received
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_UnregisterTwiceSafe(t *testing.T) {
	hub := testHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)

	hub.Unregister(client)
	hub.Unregister(client) // must not panic on a second close
}

func TestClient_SubscribeUnsubscribe(t *testing.T) {
	hub := testHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)

	subscribe, _ := json.Marshal(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelStateChanged}},
	})
	client.handleMessage(subscribe)

	if !client.isSubscribed(ChannelStateChanged) {
		t.Fatal("expected client to be subscribed after subscribe message")
	}

	// Response confirms the subscription
	select {
	case msg := <-client.send:
		var resp WSMessage
		if err := json.Unmarshal(msg, &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
			t.Errorf("response = %s/%s, want response/sub-1", resp.Type, resp.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribe response")
	}

	unsubscribe, _ := json.Marshal(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "unsub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelStateChanged}},
	})
	client.handleMessage(unsubscribe)

	if client.isSubscribed(ChannelStateChanged) {
		t.Error("expected client to be unsubscribed after unsubscribe message")
	}
}

func TestClient_PingPong(t *testing.T) {
	hub := testHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)

	ping, _ := json.Marshal(WSMessage{Type: WSTypePing, ID: "ping-1"})
	client.handleMessage(ping)

	select {
	case msg := <-client.send:
		var resp WSMessage
		if err := json.Unmarshal(msg, &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Type != WSTypePong {
			t.Errorf("type = %q, want %q", resp.Type, WSTypePong)
		}
		if resp.ID != "ping-1" {
			t.Errorf("id = %q, want ping-1", resp.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pong")
	}
}

func TestClient_InvalidMessage(t *testing.T) {
	hub := testHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)

	client.handleMessage([]byte("not json"))

	select {
	case msg := <-client.send:
		var resp WSMessage
		if err := json.Unmarshal(msg, &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Type != WSTypeError {
			t.Errorf("type = %q, want %q", resp.Type, WSTypeError)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error response")
	}
}

func TestClient_UnknownMessageType(t *testing.T) {
	hub := testHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)

	unknown, _ := json.Marshal(WSMessage{Type: "teleport", ID: "t-1"})
	client.handleMessage(unknown)

	select {
	case msg := <-client.send:
		var resp WSMessage
		if err := json.Unmarshal(msg, &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Type != WSTypeError {
			t.Errorf("type = %q, want %q", resp.Type, WSTypeError)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error response")
	}
}

// TestStateRelay verifies that retained state messages arriving over MQTT
// reach WebSocket clients subscribed to the state channel.
func TestStateRelay(t *testing.T) {
	srv, broker, _ := testServer(t)

	if err := srv.subscribeStateUpdates(); err != nil {
		t.Fatalf("subscribeStateUpdates: %v", err)
	}

	client := &WSClient{
		hub:           srv.hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelStateChanged: {}},
	}
	srv.hub.Register(client)

	state := []byte(`{"device_id":"vac-1","state":{"state":"cleaning","battery":79},"protocol":"vacuum"}`)
	broker.deliver(t, "dreame/state/vacuum/+", "dreame/state/vacuum/vac-1", state)

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != ChannelStateChanged {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, ChannelStateChanged)
		}
		payload, ok := wsMsg.Payload.(map[string]any)
		if !ok {
			t.Fatalf("payload is not a map: %T", wsMsg.Payload)
		}
		if payload["device_id"] != "vac-1" {
			t.Errorf("payload device_id = %v, want vac-1", payload["device_id"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relayed state message")
	}
}

// TestStateRelay_MalformedPayload verifies bad state payloads are dropped
// without tearing down the subscription.
func TestStateRelay_MalformedPayload(t *testing.T) {
	srv, broker, _ := testServer(t)

	if err := srv.subscribeStateUpdates(); err != nil {
		t.Fatalf("subscribeStateUpdates: %v", err)
	}

	client := &WSClient{
		hub:           srv.hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelStateChanged: {}},
	}
	srv.hub.Register(client)

	broker.deliver(t, "dreame/state/vacuum/+", "dreame/state/vacuum/vac-1", []byte("not json"))

	select {
	case <-client.send:
		t.Error("malformed payload should not be broadcast")
	case <-time.After(100 * time.Millisecond):
		// OK — dropped
	}
}
