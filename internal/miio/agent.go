package miio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/mirobo/dreame-bridge/internal/infrastructure/config"
)

// Status represents the current state of the managed agent process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// Timeouts and intervals for agent management.
const (
	// readyTimeout is how long to wait for the agent to accept TCP
	// connections after starting.
	readyTimeout = 30 * time.Second

	// readyPollInterval is how often to try connecting during readiness check.
	readyPollInterval = 100 * time.Millisecond

	// dialTimeout is the timeout for individual TCP connection attempts.
	dialTimeout = 500 * time.Millisecond

	// outputBufferSize is the buffer size for capturing agent stdout/stderr.
	outputBufferSize = 4096

	// healthCheckTimeout bounds a single watchdog probe.
	healthCheckTimeout = 5 * time.Second

	// maxConsecutiveHealthFailures is how many probes may fail before the
	// agent is killed and restarted.
	maxConsecutiveHealthFailures = 3
)

// Logger defines the logging interface for the agent manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Agent manages the lifecycle of the miio agent daemon.
//
// When the agent is managed, Start launches the binary, waits for it to
// accept TCP connections, and supervises it: output is captured into the
// bridge log, a watchdog probes the TCP port, and the process is restarted
// on unexpected exit. When unmanaged, Start is a no-op and the agent is
// expected to be running externally.
type Agent struct {
	config config.AgentConfig
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restartCount  int
	lastError     error
	startTime     time.Time
	stopRequested bool

	done chan struct{}
}

// NewAgent creates a new agent manager with the given configuration.
func NewAgent(cfg config.AgentConfig) *Agent {
	return &Agent{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (a *Agent) SetLogger(logger Logger) {
	a.logger = logger
}

// buildArgs constructs the command-line arguments for the agent binary.
func (a *Agent) buildArgs() []string {
	return []string{"--listen", a.config.Address()}
}

// Start launches the agent daemon and begins monitoring it.
//
// It blocks until the agent is ready to accept connections. If the agent
// is not managed, Start returns immediately.
func (a *Agent) Start(ctx context.Context) error {
	if !a.config.Managed {
		a.logger.Info("agent management disabled, expecting external miio agent",
			"address", a.config.Address(),
		)
		return nil
	}

	a.mu.Lock()
	if a.status == StatusRunning || a.status == StatusStarting {
		a.mu.Unlock()
		return fmt.Errorf("miio agent is already running")
	}
	a.status = StatusStarting
	a.stopRequested = false
	a.done = make(chan struct{})
	a.mu.Unlock()

	if err := a.startProcess(ctx); err != nil {
		a.mu.Lock()
		a.status = StatusFailed
		a.lastError = err
		a.mu.Unlock()
		return err
	}

	go a.monitor(ctx)

	if err := a.waitForReady(ctx); err != nil {
		if stopErr := a.Stop(); stopErr != nil {
			a.logger.Warn("error stopping agent after failed readiness check", "error", stopErr)
		}
		return fmt.Errorf("miio agent failed to become ready: %w", err)
	}

	a.logger.Info("miio agent ready", "address", a.config.Address())

	return nil
}

// startProcess actually starts the agent subprocess.
func (a *Agent) startProcess(ctx context.Context) error {
	args := a.buildArgs()

	a.logger.Info("starting miio agent",
		"binary", a.config.Binary,
		"args", args,
	)

	cmd := exec.CommandContext(ctx, a.config.Binary, args...) //nolint:gosec // Binary path is validated in config.Validate()

	// Create a new process group so we can signal all children on shutdown
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Capture stdout/stderr for logging
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting miio agent: %w", err)
	}

	a.mu.Lock()
	a.cmd = cmd
	a.status = StatusRunning
	a.startTime = time.Now()
	a.mu.Unlock()

	go a.captureOutput("stdout", stdout)
	go a.captureOutput("stderr", stderr)

	a.logger.Info("miio agent process started", "pid", cmd.Process.Pid)

	return nil
}

// captureOutput reads from the given reader and logs each chunk.
func (a *Agent) captureOutput(stream string, r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			a.logger.Debug("agent output",
				"stream", stream,
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			if err != io.EOF {
				a.logger.Debug("agent output stream closed", "stream", stream)
			}
			return
		}
	}
}

// waitForReady waits for the agent to accept TCP connections.
func (a *Agent) waitForReady(ctx context.Context) error {
	addr := a.config.Address()
	deadline := time.Now().Add(readyTimeout)

	a.logger.Debug("waiting for miio agent to be ready", "address", addr)

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for agent: %w", ctx.Err())
		default:
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for agent on %s after %v", addr, readyTimeout)
		}

		if !a.IsRunning() {
			if lastErr := a.LastError(); lastErr != nil {
				return fmt.Errorf("agent process exited: %w", lastErr)
			}
			return errors.New("agent process exited unexpectedly")
		}

		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err == nil {
			conn.Close()
			return nil
		}

		time.Sleep(readyPollInterval)
	}
}

// HealthCheck verifies the agent is reachable over TCP.
//
// This is used both by the internal watchdog and by the bridge's health
// publisher. For unmanaged agents it probes the configured address the
// same way.
func (a *Agent) HealthCheck(ctx context.Context) error {
	var d net.Dialer
	checkCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := d.DialContext(checkCtx, "tcp", a.config.Address())
	if err != nil {
		return fmt.Errorf("agent not reachable on %s: %w", a.config.Address(), err)
	}
	conn.Close()
	return nil
}

// waitForExitOrHealthFailure waits for the process to exit or for the
// watchdog to declare it hung. A hung agent is killed so the monitor
// loop can restart it.
func (a *Agent) waitForExitOrHealthFailure(ctx context.Context, cmd *exec.Cmd) error {
	exitCh := make(chan error, 1)
	go func() {
		exitCh <- cmd.Wait()
	}()

	ticker := time.NewTicker(a.config.GetHealthCheckInterval())
	defer ticker.Stop()

	consecutiveFailures := 0

	for {
		select {
		case err := <-exitCh:
			return err

		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			err := a.HealthCheck(checkCtx)
			cancel()

			if err != nil {
				consecutiveFailures++
				a.logger.Warn("agent health check failed",
					"error", err,
					"consecutive_failures", consecutiveFailures,
				)

				if consecutiveFailures >= maxConsecutiveHealthFailures {
					a.logger.Error("agent health check failed repeatedly, killing process",
						"failures", consecutiveFailures,
					)

					if cmd.Process != nil {
						cmd.Process.Kill()
					}

					select {
					case exitErr := <-exitCh:
						if exitErr != nil {
							return fmt.Errorf("killed due to health check failure: %w", exitErr)
						}
						return fmt.Errorf("killed due to health check failure after %d consecutive failures", consecutiveFailures)
					case <-time.After(healthCheckTimeout):
						return fmt.Errorf("agent did not exit after kill (health check failure)")
					}
				}
			} else {
				if consecutiveFailures > 0 {
					a.logger.Info("agent health check recovered",
						"previous_failures", consecutiveFailures,
					)
				}
				consecutiveFailures = 0
			}
		}
	}
}

// monitor watches the agent process and handles restarts.
func (a *Agent) monitor(ctx context.Context) {
	defer close(a.done)

	for {
		a.mu.RLock()
		cmd := a.cmd
		a.mu.RUnlock()

		if cmd == nil {
			return
		}

		err := a.waitForExitOrHealthFailure(ctx, cmd)

		a.mu.Lock()
		stopRequested := a.stopRequested
		a.mu.Unlock()

		if stopRequested {
			a.logger.Info("miio agent stopped as requested")
			a.mu.Lock()
			a.status = StatusStopped
			a.mu.Unlock()
			return
		}

		a.logger.Warn("miio agent exited unexpectedly", "error", err)

		a.mu.Lock()
		a.lastError = err
		a.status = StatusFailed
		a.mu.Unlock()

		if !a.config.RestartOnFailure {
			a.logger.Info("agent restart disabled, not restarting")
			return
		}

		a.mu.Lock()
		a.restartCount++
		attempt := a.restartCount
		a.mu.Unlock()

		if a.config.MaxRestartAttempts > 0 && attempt > a.config.MaxRestartAttempts {
			a.logger.Error("agent max restart attempts reached", "attempts", attempt)
			return
		}

		a.logger.Info("restarting miio agent",
			"attempt", attempt,
			"delay", a.config.GetRestartDelay(),
		)

		select {
		case <-ctx.Done():
			a.logger.Info("context cancelled, not restarting agent")
			return
		case <-time.After(a.config.GetRestartDelay()):
		}

		a.mu.RLock()
		stopRequested = a.stopRequested
		a.mu.RUnlock()
		if stopRequested {
			return
		}

		if err := a.startProcess(ctx); err != nil {
			a.logger.Error("failed to restart miio agent", "error", err)
			// Continue loop to try again
		}
	}
}

// Stop gracefully stops the agent daemon.
// It sends SIGTERM and waits for graceful shutdown, then SIGKILL if needed.
func (a *Agent) Stop() error {
	if !a.config.Managed {
		return nil
	}

	a.mu.Lock()
	if a.status != StatusRunning && a.status != StatusStarting {
		a.mu.Unlock()
		return nil
	}
	a.stopRequested = true
	cmd := a.cmd
	done := a.done // Capture done channel under lock to avoid race
	a.mu.Unlock()

	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	pid := cmd.Process.Pid
	a.logger.Info("stopping miio agent", "pid", pid)

	// Send SIGTERM to the entire process group for graceful shutdown
	// Use negative PID to signal the process group (created via Setpgid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			a.logger.Warn("failed to send SIGTERM to agent process group", "error", err)
		}
	}

	select {
	case <-done:
		a.logger.Info("miio agent stopped gracefully")
		return nil
	case <-time.After(a.config.GetGracefulTimeout()):
		a.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"timeout", a.config.GetGracefulTimeout(),
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing agent process group: %w", err)
		}
	}

	<-done
	a.logger.Info("miio agent killed")

	return nil
}

// IsManaged returns true if this manager is controlling the agent.
func (a *Agent) IsManaged() bool {
	return a.config.Managed
}

// IsRunning returns true if the agent is currently running.
func (a *Agent) IsRunning() bool {
	if !a.config.Managed {
		// If not managed, assume the external agent is running
		return true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status == StatusRunning
}

// LastError returns the last error that caused the agent to exit.
func (a *Agent) LastError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastError
}

// PID returns the agent process ID, or 0 if not running.
func (a *Agent) PID() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.cmd != nil && a.cmd.Process != nil {
		return a.cmd.Process.Pid
	}
	return 0
}

// Stats holds statistics about the agent daemon.
type Stats struct {
	Managed      bool          `json:"managed"`
	Status       string        `json:"status"`
	Address      string        `json:"address"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the agent.
func (a *Agent) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		Managed: a.config.Managed,
		Address: a.config.Address(),
	}

	switch {
	case !a.config.Managed:
		stats.Status = "external"
	default:
		stats.Status = string(a.status)
	}

	if a.cmd != nil && a.cmd.Process != nil {
		stats.PID = a.cmd.Process.Pid
	}

	if a.status == StatusRunning {
		stats.Uptime = time.Since(a.startTime)
	}

	if a.lastError != nil {
		stats.LastError = a.lastError.Error()
	}

	stats.RestartCount = a.restartCount

	return stats
}
