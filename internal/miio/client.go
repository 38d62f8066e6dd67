package miio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mirobo/dreame-bridge/internal/dreame"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/config"
)

// maxResponseLine bounds a single agent response. Device results are small
// JSON documents; anything larger indicates a broken stream.
const maxResponseLine = 256 * 1024

// request is one method call sent to the agent. The agent resolves the
// device by host, encrypts the payload with the token, and relays the
// miio call.
type request struct {
	ID     int64  `json:"id"`
	Host   string `json:"host,omitempty"`
	Token  string `json:"token,omitempty"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// response is the agent's reply. Exactly one of Result or Error is set.
type response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Client is a connection to the miio agent.
//
// It holds a single persistent TCP connection and serialises requests over
// it: the agent protocol is strictly request/response, so one in-flight
// call at a time keeps the framing trivial. The connection is established
// lazily and redialled after any I/O error.
//
// Client is safe for concurrent use.
type Client struct {
	cfg    config.AgentConfig
	logger Logger

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader

	nextID atomic.Int64
}

// NewClient creates a client for the agent at the configured address.
// No connection is made until the first call.
func NewClient(cfg config.AgentConfig) *Client {
	return &Client{
		cfg:    cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// call sends one request and waits for the matching response.
func (c *Client) call(ctx context.Context, req request) (json.RawMessage, error) {
	req.ID = c.nextID.Add(1)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("serialising agent request: %w", err)
	}
	payload = append(payload, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.cfg.GetRequestTimeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.dropConnection()
		return nil, fmt.Errorf("%w: setting deadline: %v", ErrAgentUnavailable, err)
	}

	if _, err := c.conn.Write(payload); err != nil {
		c.dropConnection()
		return nil, fmt.Errorf("%w: writing request: %v", ErrAgentUnavailable, err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		c.dropConnection()
		return nil, fmt.Errorf("%w: reading response: %v", ErrAgentUnavailable, err)
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		c.dropConnection()
		return nil, fmt.Errorf("%w: unrecognised response: %v", ErrAgentUnavailable, err)
	}

	if resp.ID != req.ID {
		// The stream is out of sync; the only safe recovery is a redial.
		c.dropConnection()
		return nil, fmt.Errorf("%w: response id %d does not match request id %d",
			ErrAgentUnavailable, resp.ID, req.ID)
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s (method %s)", ErrAgentRequest, resp.Error, req.Method)
	}

	return resp.Result, nil
}

// ensureConnected dials the agent if no connection is held.
// Must be called with c.mu held.
func (c *Client) ensureConnected(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.cfg.Address())
	if err != nil {
		return fmt.Errorf("%w: dialling %s: %v", ErrAgentUnavailable, c.cfg.Address(), err)
	}

	c.conn = conn
	c.reader = bufio.NewReaderSize(conn, maxResponseLine)
	c.logger.Debug("connected to miio agent", "address", c.cfg.Address())

	return nil
}

// dropConnection closes the current connection so the next call redials.
// Must be called with c.mu held.
func (c *Client) dropConnection() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
}

// Ping verifies the agent answers requests end to end.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, request{Method: "ping"})
	return err
}

// Close releases the connection to the agent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropConnection()
	return nil
}

// Transport returns a dreame.Transport that routes method calls for one
// device through the agent.
func (c *Client) Transport(host, token string) dreame.Transport {
	return &deviceTransport{client: c, host: host, token: token}
}

// deviceTransport binds a device's host and token to the shared client.
type deviceTransport struct {
	client *Client
	host   string
	token  string
}

// Send relays a single miio method call to the device via the agent.
func (t *deviceTransport) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return t.client.call(ctx, request{
		Host:   t.host,
		Token:  t.token,
		Method: method,
		Params: params,
	})
}
