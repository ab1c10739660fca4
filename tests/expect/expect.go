// Package expect provides pseudo-terminal testing utilities using go-expect.
//
// It wraps the Netflix go-expect library to drive the bocado binary on a
// real PTY. The interactive picker renders on /dev/tty, so these sessions
// are the only place its accept and dismiss flows run end to end.
package expect

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"golang.org/x/sys/unix"
)

// ContainerTestSem limits concurrent tests in containers to reduce resource contention.
// In container environments (Docker), running all tests in parallel causes CPU contention
// that leads to timing-related test failures. This semaphore limits concurrency to 2.
var ContainerTestSem = make(chan struct{}, 2)

// AcquireTestSlot limits parallelism in container environments.
// Call this after t.Parallel() in tests that are timing-sensitive.
// In containers, this blocks until a slot is available (max 2 concurrent tests).
// On local machines, this is a no-op.
func AcquireTestSlot(t *testing.T) {
	if IsRunningInContainer() {
		ContainerTestSem <- struct{}{}
		t.Cleanup(func() { <-ContainerTestSem })
	}
}

// IsRunningInContainer detects if we're running inside a Docker container.
func IsRunningInContainer() bool {
	// Check for /.dockerenv file (Docker-specific)
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	// Check cgroup for docker/lxc indicators
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "lxc") {
			return true
		}
	}
	return false
}

// IsRunningOnAlpine detects if we're running on Alpine Linux (musl libc).
// Alpine has different performance characteristics due to musl vs glibc.
func IsRunningOnAlpine() bool {
	if _, err := os.Stat("/etc/alpine-release"); err == nil {
		return true
	}
	return false
}

// Key constants for special keys (ANSI escape sequences)
const (
	KeyRight  = "\x1b[C"
	KeyLeft   = "\x1b[D"
	KeyUp     = "\x1b[A"
	KeyDown   = "\x1b[B"
	KeyEscape = "\x1b"
	KeyEnter  = "\r"
	KeyTab    = "\t"
	KeyCtrlC  = "\x03"
	KeyCtrlD  = "\x04"
)

// Session wraps go-expect for driving one bocado invocation on a PTY.
type Session struct {
	Console *expect.Console
	Timeout time.Duration
	cmd     *exec.Cmd
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	timeout    time.Duration
	env        []string
	showOutput bool
}

// WithTimeout sets the default timeout for expect operations.
func WithTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithEnv adds environment variables to the session.
func WithEnv(env ...string) SessionOption {
	return func(c *sessionConfig) {
		c.env = append(c.env, env...)
	}
}

// WithOutput enables output to stdout for debugging.
func WithOutput(show bool) SessionOption {
	return func(c *sessionConfig) {
		c.showOutput = show
	}
}

// NewSession starts bin with args on a fresh pseudo-terminal.
//
// The child gets the PTY as its controlling terminal so /dev/tty opens
// inside it; without that the picker refuses to start and the command
// falls back to its non-interactive output.
func NewSession(bin string, args []string, opts ...SessionOption) (*Session, error) {
	cfg := &sessionConfig{
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var consoleOpts []expect.ConsoleOpt
	consoleOpts = append(consoleOpts, expect.WithDefaultTimeout(cfg.timeout))
	if cfg.showOutput {
		consoleOpts = append(consoleOpts, expect.WithStdout(os.Stdout))
	}

	console, err := expect.NewConsole(consoleOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create console: %w", err)
	}

	// go-expect leaves the PTY at size zero. The picker refuses terminals
	// narrower than 20 columns, and Bubble Tea needs a real size to lay out.
	ws := &unix.Winsize{Row: 24, Col: 80}
	if err := unix.IoctlSetWinsize(int(console.Tty().Fd()), unix.TIOCSWINSZ, ws); err != nil {
		console.Close()
		return nil, fmt.Errorf("failed to size pty: %w", err)
	}

	cmd := exec.Command(bin, args...) //nolint:gosec // G204: bin is built by the test harness
	cmd.Stdin = console.Tty()
	cmd.Stdout = console.Tty()
	cmd.Stderr = console.Tty()
	// Setsid+Setctty make fd 0 (the PTY slave) the controlling terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	// Set environment
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, cfg.env...)
	// Ensure TERM is set for proper terminal handling
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")

	if err := cmd.Start(); err != nil {
		console.Close()
		return nil, fmt.Errorf("failed to start %s: %w", bin, err)
	}

	return &Session{
		Console: console,
		Timeout: cfg.timeout,
		cmd:     cmd,
	}, nil
}

// Send sends text to the session without a newline.
func (s *Session) Send(text string) error {
	_, err := s.Console.Send(text)
	return err
}

// SendLine sends text followed by a newline.
func (s *Session) SendLine(text string) error {
	_, err := s.Console.SendLine(text)
	return err
}

// SendKey sends a special key (use Key* constants).
func (s *Session) SendKey(key string) error {
	_, err := s.Console.Send(key)
	return err
}

// Expect waits for an exact string match in the output.
func (s *Session) Expect(str string) (string, error) {
	return s.Console.ExpectString(str)
}

// ExpectTimeout waits for an exact string match with a specific timeout.
func (s *Session) ExpectTimeout(str string, timeout time.Duration) (string, error) {
	return s.Console.Expect(expect.String(str), expect.WithTimeout(timeout))
}

// ExpectRegex waits for a regex pattern match in the output.
func (s *Session) ExpectRegex(pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex: %w", err)
	}
	return s.Console.Expect(expect.Regexp(re))
}

// ExpectRegexTimeout waits for a regex pattern match with a specific timeout.
func (s *Session) ExpectRegexTimeout(pattern string, timeout time.Duration) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex: %w", err)
	}
	return s.Console.Expect(expect.Regexp(re), expect.WithTimeout(timeout))
}

// ExpectEOF waits for the process to close its end of the PTY.
func (s *Session) ExpectEOF() (string, error) {
	return s.Console.ExpectEOF()
}

// Wait blocks until the process exits and returns its exit code.
func (s *Session) Wait(timeout time.Duration) (int, error) {
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		if err != nil {
			return -1, err
		}
		return 0, nil
	case <-time.After(timeout):
		return -1, fmt.Errorf("process still running after %v", timeout)
	}
}

// Close terminates the session.
func (s *Session) Close() error {
	// Close the console (this closes the pty)
	if err := s.Console.Close(); err != nil {
		return err
	}

	// Reap the process if Wait has not already
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}

	return nil
}

// SkipIfShort skips the test if running in short mode.
func SkipIfShort(t interface {
	Skip(args ...interface{})
	Short() bool
}, reason string) {
	if t.Short() {
		t.Skip("skipping in short mode: " + reason)
	}
}
