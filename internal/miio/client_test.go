package miio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mirobo/dreame-bridge/internal/infrastructure/config"
)

// fakeAgent is an in-process stand-in for the miio agent daemon. It accepts
// connections and answers each request line with the scripted handler.
type fakeAgent struct {
	listener net.Listener
	handler  func(req request) response
}

func newFakeAgent(t *testing.T, handler func(req request) response) *fakeAgent {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	agent := &fakeAgent{listener: listener, handler: handler}
	go agent.serve()
	t.Cleanup(func() { listener.Close() })

	return agent
}

func (f *fakeAgent) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeAgent) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return
		}
		resp := f.handler(req)
		payload, err := json.Marshal(resp)
		if err != nil {
			return
		}
		payload = append(payload, '\n')
		if _, err := conn.Write(payload); err != nil {
			return
		}
	}
}

func (f *fakeAgent) config() config.AgentConfig {
	addr := f.listener.Addr().(*net.TCPAddr)
	return config.AgentConfig{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		RequestTimeout: 2,
	}
}

// echoHandler answers every request with its own id and a fixed result.
func echoHandler(result string) func(req request) response {
	return func(req request) response {
		return response{ID: req.ID, Result: json.RawMessage(result)}
	}
}

func TestTransport_SendRoundTrip(t *testing.T) {
	captured := make(chan request, 1)
	agent := newFakeAgent(t, func(req request) response {
		captured <- req
		return response{ID: req.ID, Result: json.RawMessage(`{"code":0}`)}
	})

	client := NewClient(agent.config())
	defer client.Close()

	transport := client.Transport("192.168.1.50", "ffffffffffffffffffffffffffffffff")
	result, err := transport.Send(context.Background(), "get_properties", []string{"battery"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if string(result) != `{"code":0}` {
		t.Errorf("result = %s, want {\"code\":0}", result)
	}
	got := <-captured
	if got.Host != "192.168.1.50" {
		t.Errorf("host = %q, want 192.168.1.50", got.Host)
	}
	if got.Token != "ffffffffffffffffffffffffffffffff" {
		t.Errorf("token not forwarded to agent")
	}
	if got.Method != "get_properties" {
		t.Errorf("method = %q, want get_properties", got.Method)
	}
}

func TestTransport_SharedClientSeparateDevices(t *testing.T) {
	agent := newFakeAgent(t, func(req request) response {
		// Reply with the host so the caller can verify routing.
		return response{ID: req.ID, Result: json.RawMessage(strconv.Quote(req.Host))}
	})

	client := NewClient(agent.config())
	defer client.Close()

	hall := client.Transport("10.0.0.1", "11111111111111111111111111111111")
	landing := client.Transport("10.0.0.2", "22222222222222222222222222222222")

	got, err := hall.Send(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if string(got) != `"10.0.0.1"` {
		t.Errorf("hall routed to %s, want 10.0.0.1", got)
	}

	got, err = landing.Send(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if string(got) != `"10.0.0.2"` {
		t.Errorf("landing routed to %s, want 10.0.0.2", got)
	}
}

func TestCall_AgentError(t *testing.T) {
	agent := newFakeAgent(t, func(req request) response {
		return response{ID: req.ID, Error: "device unreachable"}
	})

	client := NewClient(agent.config())
	defer client.Close()

	_, err := client.Transport("10.0.0.1", "11111111111111111111111111111111").
		Send(context.Background(), "get_properties", nil)
	if !errors.Is(err, ErrAgentRequest) {
		t.Errorf("error = %v, want ErrAgentRequest", err)
	}
}

func TestCall_AgentUnreachable(t *testing.T) {
	// Point the client at a port nothing listens on.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().(*net.TCPAddr)
	listener.Close()

	client := NewClient(config.AgentConfig{Host: "127.0.0.1", Port: addr.Port, RequestTimeout: 1})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Ping(ctx); !errors.Is(err, ErrAgentUnavailable) {
		t.Errorf("error = %v, want ErrAgentUnavailable", err)
	}
}

func TestCall_MismatchedResponseID(t *testing.T) {
	agent := newFakeAgent(t, func(req request) response {
		return response{ID: req.ID + 100, Result: json.RawMessage(`{}`)}
	})

	client := NewClient(agent.config())
	defer client.Close()

	if err := client.Ping(context.Background()); !errors.Is(err, ErrAgentUnavailable) {
		t.Errorf("error = %v, want ErrAgentUnavailable", err)
	}
}

func TestCall_RedialsAfterConnectionDrop(t *testing.T) {
	// The first request gets a mismatched id, which forces the client to
	// drop the connection; the fake agent keeps accepting new ones.
	var firstRequest atomic.Bool
	firstRequest.Store(true)
	agent := newFakeAgent(t, func(req request) response {
		if firstRequest.CompareAndSwap(true, false) {
			return response{ID: -1}
		}
		return response{ID: req.ID, Result: json.RawMessage(`"ok"`)}
	})

	client := NewClient(agent.config())
	defer client.Close()

	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected first ping to fail")
	}

	// Second call must succeed over a fresh connection.
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping after redial error = %v", err)
	}
}

func TestPing(t *testing.T) {
	agent := newFakeAgent(t, echoHandler(`"pong"`))

	client := NewClient(agent.config())
	defer client.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
