package client

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roosta/i3wsr/internal/config"
	"github.com/roosta/i3wsr/internal/control"
	"github.com/roosta/i3wsr/internal/engine"
	"github.com/roosta/i3wsr/internal/metrics"
	"github.com/roosta/i3wsr/internal/rules"
	"github.com/roosta/i3wsr/internal/state"
	"github.com/roosta/i3wsr/internal/util"
)

type staticConn struct {
	mu   sync.Mutex
	tree *state.Node
}

func (s *staticConn) GetTree(context.Context) (*state.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree, nil
}

func (s *staticConn) GetWorkspaces(context.Context) ([]state.WorkspaceInfo, error) {
	return nil, nil
}

func (s *staticConn) FocusedWorkspace(context.Context) (state.WorkspaceInfo, error) {
	return state.WorkspaceInfo{}, nil
}

func (s *staticConn) RunCommand(context.Context, string) error { return nil }

func TestClientRoundTrip(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "control.sock")
	t.Setenv("I3WSR_CONTROL_SOCKET", socketPath)

	conn := &staticConn{
		tree: &state.Node{
			Type: "root",
			Nodes: []state.Node{{
				Type: "output",
				Nodes: []state.Node{{
					Type: "workspace", Num: 1, Name: "1 stale",
					Nodes: []state.Node{{
						ID: 1, Type: "con", Name: "init.el",
						WindowProperties: &state.WindowProperties{Class: "Emacs", Title: "init.el"},
					}},
				}},
			}},
		},
	}
	cfg := config.Default()
	resolver, err := rules.Compile(cfg)
	if err != nil {
		t.Fatalf("compile resolver: %v", err)
	}
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	collector := metrics.NewCollector()
	eng := engine.New(conn, logger, resolver, collector)

	var reloaded atomic.Bool
	srv, err := control.NewServer(eng, logger, collector, func(string) error {
		reloaded.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	waitForSocket(t, socketPath)

	c, err := New("")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	preview, err := c.Preview(ctx)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(preview.Workspaces) != 1 || preview.Workspaces[0].NewName != "1 Emacs" {
		t.Fatalf("preview = %#v", preview)
	}

	if err := c.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !reloaded.Load() {
		t.Fatalf("reload callback not invoked")
	}

	snap, err := c.Metrics(ctx)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if snap.Started.IsZero() {
		t.Fatalf("metrics snapshot missing start time: %#v", snap)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Serve did not stop on cancellation")
	}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("control socket %s never appeared", path)
}
