// Package integration provides end-to-end integration tests for bocado.
// These tests verify the complete system including the assistant endpoint,
// storage, and the suggestion engine.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/runger/bocado/internal/estimate"
	"github.com/runger/bocado/internal/journal"
	"github.com/runger/bocado/internal/server"
	"github.com/runger/bocado/internal/storage"
)

// testUser is the profile every test environment logs under.
const testUser = "local"

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	T       *testing.T
	TempDir string
	DBPath  string
	Store   *storage.SQLiteStore
	Server  *server.Server
	BaseURL string

	httpClient *http.Client
}

// EnvOption tweaks the server options before the environment starts.
type EnvOption func(*server.Options)

// WithEstimator wires a macro estimator into the endpoint.
func WithEstimator(est *estimate.Estimator) EnvOption {
	return func(o *server.Options) {
		o.Estimator = est
	}
}

// SetupTestEnv creates a complete test environment with store and a
// running assistant endpoint on a loopback port.
func SetupTestEnv(t *testing.T, opts ...EnvOption) *TestEnv {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "bocado-integration-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tempDir, "bocado.db")
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create store: %v", err)
	}

	serverOpts := server.Options{
		Addr:   "127.0.0.1:0",
		Store:  store,
		UserID: testUser,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&serverOpts)
	}

	srv, err := server.New(serverOpts)
	if err != nil {
		store.Close()
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create server: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		store.Close()
		os.RemoveAll(tempDir)
		t.Fatalf("failed to listen: %v", err)
	}
	baseURL := "http://" + listener.Addr().String()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	env := &TestEnv{
		T:          t,
		TempDir:    tempDir,
		DBPath:     dbPath,
		Store:      store,
		Server:     srv,
		BaseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}

	if err := env.waitForServer(5 * time.Second); err != nil {
		select {
		case startErr := <-errChan:
			env.Teardown()
			t.Fatalf("server start error: %v", startErr)
		default:
			env.Teardown()
			t.Fatalf("failed to wait for server: %v", err)
		}
	}

	return env
}

// SetupTestEnvWithJournal creates a test environment with two weeks of
// eating history logged through the wire, the way an assistant would.
func SetupTestEnvWithJournal(t *testing.T) *TestEnv {
	t.Helper()

	env := SetupTestEnv(t)

	meals := []struct {
		food  string
		grams float64
		slot  journal.MealSlot
		hour  int
	}{
		{"Oatmeal with milk", 250, journal.SlotBreakfast, 8},
		{"Lentil soup", 300, journal.SlotLunch, 13},
		{"Grilled chicken", 200, journal.SlotDinner, 20},
	}

	now := time.Now()
	for day := 0; day < 14; day++ {
		for _, m := range meals {
			base := now.AddDate(0, 0, -day)
			at := time.Date(base.Year(), base.Month(), base.Day(), m.hour, 0, 0, 0, time.Local)
			if at.After(now) {
				continue
			}
			status, body := env.CallTool("log_meal", map[string]any{
				"description": m.food,
				"grams":       m.grams,
				"slot":        string(m.slot),
				"timestamp":   at.Format(time.RFC3339),
			})
			if status != http.StatusOK {
				env.Teardown()
				t.Fatalf("failed to seed journal: status %d: %s", status, body)
			}
		}
	}

	return env
}

// Teardown cleans up all test resources.
func (e *TestEnv) Teardown() {
	if e.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		e.Server.Shutdown(ctx)
		cancel()
	}
	if e.Store != nil {
		e.Store.Close()
	}
	if e.TempDir != "" {
		os.RemoveAll(e.TempDir)
	}
}

// CallTool posts one tool call to the endpoint and returns the HTTP status
// plus the text payload. Error statuses return the raw body instead.
func (e *TestEnv) CallTool(name string, args map[string]any) (int, string) {
	e.T.Helper()

	reqBody, err := json.Marshal(map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		e.T.Fatalf("failed to marshal tool call: %v", err)
	}

	resp, err := e.httpClient.Post(e.BaseURL, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		e.T.Fatalf("tool call %s failed: %v", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, string(body)
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		e.T.Fatalf("failed to decode tool result: %v\n%s", err, body)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		e.T.Fatalf("expected one text content, got %+v", result.Content)
	}

	return resp.StatusCode, result.Content[0].Text
}

// MustCallTool is CallTool but fails the test on any non-200 status.
func (e *TestEnv) MustCallTool(name string, args map[string]any) string {
	e.T.Helper()

	status, text := e.CallTool(name, args)
	if status != http.StatusOK {
		e.T.Fatalf("tool call %s: status %d: %s", name, status, text)
	}
	return text
}

// waitForServer polls the endpoint until it answers or the timeout passes.
func (e *TestEnv) waitForServer(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequest(http.MethodOptions, e.BaseURL, nil)
		if err != nil {
			return err
		}
		resp, err := e.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("server at %s did not come up within %v", e.BaseURL, timeout)
}
