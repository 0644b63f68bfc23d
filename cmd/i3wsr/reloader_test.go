package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/roosta/i3wsr/internal/config"
	"github.com/roosta/i3wsr/internal/engine"
	"github.com/roosta/i3wsr/internal/rules"
	"github.com/roosta/i3wsr/internal/state"
	"github.com/roosta/i3wsr/internal/util"
)

type testConn struct {
	mu       sync.Mutex
	tree     *state.Node
	commands []string
}

func (c *testConn) GetTree(context.Context) (*state.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree, nil
}

func (c *testConn) GetWorkspaces(context.Context) ([]state.WorkspaceInfo, error) {
	return nil, nil
}

func (c *testConn) FocusedWorkspace(context.Context) (state.WorkspaceInfo, error) {
	return state.WorkspaceInfo{}, nil
}

func (c *testConn) RunCommand(_ context.Context, command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, command)
	return nil
}

func (c *testConn) lastCommand() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.commands) == 0 {
		return ""
	}
	return c.commands[len(c.commands)-1]
}

func firefoxTree() *state.Node {
	return &state.Node{
		Type: "root",
		Nodes: []state.Node{{
			Type: "output",
			Nodes: []state.Node{{
				Type: "workspace", Num: 1, Name: "1 stale",
				Nodes: []state.Node{{
					ID: 1, Type: "con", Name: "Mozilla Firefox",
					WindowProperties: &state.WindowProperties{Class: "firefox", Title: "Mozilla Firefox"},
				}},
			}},
		}},
	}
}

func TestReloadLogsDiffOnFailureAndKeepsPreviousConfig(t *testing.T) {
	initial := strings.TrimPrefix(`
aliases:
  class:
    firefox: Firefox
`, "\n")
	bad := strings.TrimPrefix(`
aliases:
  class:
    "[": Broken
`, "\n")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(initial), 0o600); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	cfg, err := config.Parse([]byte(initial))
	if err != nil {
		t.Fatalf("parse initial config: %v", err)
	}
	resolver, err := rules.Compile(cfg)
	if err != nil {
		t.Fatalf("compile resolver: %v", err)
	}

	var logs bytes.Buffer
	logger := util.NewLoggerWithWriter(util.LevelInfo, &logs)
	conn := &testConn{tree: firefoxTree()}
	eng := engine.New(conn, logger, resolver, nil)

	overrides := &flagOverrides{set: map[string]bool{}}
	reloader := newConfigReloader(path, logger, eng, overrides, []byte(initial))

	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatalf("write bad config: %v", err)
	}

	if err := reloader.Reload(context.Background(), "test reason"); err == nil {
		t.Fatalf("expected reload error, got nil")
	}
	if !strings.Contains(logs.String(), "config change rejected; diff vs last valid config") {
		t.Fatalf("expected diff log, got %s", logs.String())
	}

	// The previous alias set still drives renames.
	if err := eng.Recompute(context.Background()); err != nil {
		t.Fatalf("recompute after failed reload: %v", err)
	}
	if got := conn.lastCommand(); !strings.Contains(got, "1 Firefox") {
		t.Fatalf("expected old alias in rename, got %q", got)
	}
}

func TestReloadSwapsResolverAndRecomputes(t *testing.T) {
	initial := strings.TrimPrefix(`
aliases:
  class:
    firefox: Firefox
`, "\n")
	updated := strings.TrimPrefix(`
aliases:
  class:
    firefox: FF
`, "\n")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(initial), 0o600); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	cfg, err := config.Parse([]byte(initial))
	if err != nil {
		t.Fatalf("parse initial config: %v", err)
	}
	resolver, err := rules.Compile(cfg)
	if err != nil {
		t.Fatalf("compile resolver: %v", err)
	}

	var logs bytes.Buffer
	logger := util.NewLoggerWithWriter(util.LevelInfo, &logs)
	conn := &testConn{tree: firefoxTree()}
	eng := engine.New(conn, logger, resolver, nil)

	overrides := &flagOverrides{set: map[string]bool{}}
	reloader := newConfigReloader(path, logger, eng, overrides, []byte(initial))

	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("write updated config: %v", err)
	}
	if err := reloader.Reload(context.Background(), "config file updated"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := conn.lastCommand(); !strings.Contains(got, "1 FF") {
		t.Fatalf("expected new alias in rename, got %q", got)
	}
}

func TestReloadKeepsFlagOverrides(t *testing.T) {
	initial := "options:\n  no_names: false\n"

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(initial), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	overrides := &flagOverrides{
		set:     map[string]bool{"no-names": true},
		noNames: true,
	}
	cfg, err := config.Parse([]byte(initial))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	overrides.apply(cfg)
	resolver, err := rules.Compile(cfg)
	if err != nil {
		t.Fatalf("compile resolver: %v", err)
	}

	logger := util.NewLoggerWithWriter(util.LevelError, &bytes.Buffer{})
	conn := &testConn{tree: firefoxTree()}
	eng := engine.New(conn, logger, resolver, nil)
	reloader := newConfigReloader(path, logger, eng, overrides, []byte(initial))

	if err := reloader.Reload(context.Background(), "test"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	// no_names stays forced on: the unaliased firefox window renders as an
	// empty token, so the composed part is empty.
	if got := conn.lastCommand(); !strings.HasSuffix(got, `to "1 "`) {
		t.Fatalf("expected icon-only rename, got %q", got)
	}
}

func TestFlagOverridesApplyOnlySetFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Options.FocusFix = true
	cfg.General.SplitAt = ":"

	overrides := &flagOverrides{
		set:             map[string]bool{"display-property": true},
		displayProperty: "instance",
		splitAt:         "should be ignored",
		focusFix:        false,
	}
	overrides.apply(cfg)

	if cfg.General.DisplayProperty != "instance" {
		t.Fatalf("display property override not applied: %q", cfg.General.DisplayProperty)
	}
	if cfg.General.SplitAt != ":" || !cfg.Options.FocusFix {
		t.Fatalf("unset flags clobbered config: %+v", cfg)
	}
}
