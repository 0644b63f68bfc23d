// Package engine ties the tree walk, token resolution, and title composition
// into an event-driven rename loop against the window manager.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/roosta/i3wsr/internal/ipc"
	"github.com/roosta/i3wsr/internal/metrics"
	"github.com/roosta/i3wsr/internal/rules"
	"github.com/roosta/i3wsr/internal/state"
	"github.com/roosta/i3wsr/internal/title"
	"github.com/roosta/i3wsr/internal/util"
)

// Commander issues commands to the window manager.
type Commander interface {
	RunCommand(ctx context.Context, command string) error
}

// Connection is the IPC surface the engine needs. ipc.Client implements it.
type Connection interface {
	state.DataSource
	Commander
	FocusedWorkspace(ctx context.Context) (state.WorkspaceInfo, error)
}

type subscribeFunc func(ctx context.Context, logger *util.Logger) (<-chan ipc.Event, error)

// Result is the computed outcome for one workspace in a recompute pass.
type Result struct {
	Num     int    `json:"num"`
	Current string `json:"current"`
	NewName string `json:"newName"`
	Changed bool   `json:"changed"`
}

// Engine drives the rename loop.
type Engine struct {
	conn    Connection
	logger  *util.Logger
	metrics *metrics.Collector

	mu          sync.Mutex
	resolver    *rules.Resolver
	lastResults []Result

	subscribe subscribeFunc
}

// New creates an engine. The metrics collector may be nil.
func New(conn Connection, logger *util.Logger, resolver *rules.Resolver, collector *metrics.Collector) *Engine {
	return &Engine{
		conn:      conn,
		logger:    logger,
		metrics:   collector,
		resolver:  resolver,
		subscribe: ipc.Subscribe,
	}
}

// SetResolver swaps in a freshly compiled resolver after a config reload.
func (e *Engine) SetResolver(resolver *rules.Resolver) {
	e.mu.Lock()
	e.resolver = resolver
	e.mu.Unlock()
}

func (e *Engine) currentResolver() *rules.Resolver {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolver
}

// LastResults returns the outcome of the most recent recompute pass.
func (e *Engine) LastResults() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.lastResults...)
}

// RecomputeOnce derives every workspace's new name from a tree snapshot. It
// is pure: no IPC, no internal state, usable offline against a canned tree.
func RecomputeOnce(resolver *rules.Resolver, root *state.Node) []Result {
	cfg := resolver.Config()
	workspaces := state.Workspaces(root)
	results := make([]Result, 0, len(workspaces))
	for _, ws := range workspaces {
		tokens := make([]rules.Token, 0, len(ws.Windows))
		for _, win := range ws.Windows {
			tokens = append(tokens, resolver.Resolve(win))
		}
		composed := title.Compose(tokens, cfg)
		newName := title.BuildName(ws.Name, composed, cfg.General.SplitAt)
		results = append(results, Result{
			Num:     ws.Num,
			Current: ws.Name,
			NewName: newName,
			Changed: newName != ws.Name,
		})
	}
	return results
}

// Run performs an initial recompute, subscribes to window and workspace
// events, and processes them one at a time until context cancellation. Any
// transport failure is fatal and returned to the caller.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Recompute(ctx); err != nil {
		return err
	}
	events, err := e.subscribeEvents(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("window manager connection lost")
			}
			e.metrics.RecordEvent(ev.Kind, ev.Change)
			if !interesting(ev) {
				e.logger.Tracef("ignoring %s event %q", ev.Kind, ev.Change)
				continue
			}
			e.logger.Debugf("%s event %q, recomputing", ev.Kind, ev.Change)
			if err := e.Recompute(ctx); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) subscribeEvents(ctx context.Context) (<-chan ipc.Event, error) {
	if e.subscribe != nil {
		return e.subscribe(ctx, e.logger)
	}
	return ipc.Subscribe(ctx, e.logger)
}

// interesting filters the subscription stream down to transitions that can
// change a workspace title.
func interesting(ev ipc.Event) bool {
	switch ev.Kind {
	case ipc.EventKindWindow:
		switch ev.Change {
		case "new", "close", "focus", "title", "move":
			return true
		}
	case ipc.EventKindWorkspace:
		switch ev.Change {
		case "focus", "init", "move", "empty":
			return true
		}
	}
	return false
}

// Recompute runs one full cycle: fresh tree, new names, diffed dispatch.
func (e *Engine) Recompute(ctx context.Context) error {
	resolver := e.currentResolver()
	root, err := e.conn.GetTree(ctx)
	if err != nil {
		return fmt.Errorf("get tree: %w", err)
	}
	results := RecomputeOnce(resolver, root)
	e.metrics.RecordRecompute()

	e.mu.Lock()
	e.lastResults = append([]Result(nil), results...)
	e.mu.Unlock()

	return e.dispatch(ctx, resolver, results)
}

// Preview computes the pending renames without dispatching anything.
func (e *Engine) Preview(ctx context.Context) ([]Result, error) {
	root, err := e.conn.GetTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}
	return RecomputeOnce(e.currentResolver(), root), nil
}

// dispatch issues a rename for every changed workspace, bracketed by the
// focus-fix snapshot/restore when enabled. Renaming a workspace can steal
// focus on some backends; the bracket records the focused workspace before
// the batch and restores it afterwards if it moved.
func (e *Engine) dispatch(ctx context.Context, resolver *rules.Resolver, results []Result) error {
	var pending []Result
	for _, res := range results {
		if res.Changed {
			pending = append(pending, res)
		} else {
			e.metrics.RecordRenameSkipped()
		}
	}
	if len(pending) == 0 {
		return nil
	}

	focusFix := resolver.Config().Options.FocusFix
	var focused state.WorkspaceInfo
	if focusFix {
		var err error
		focused, err = e.conn.FocusedWorkspace(ctx)
		if err != nil {
			return fmt.Errorf("focus snapshot: %w", err)
		}
	}

	for _, res := range pending {
		command := renameCommand(res.Current, res.NewName)
		e.logger.Debugf("dispatching: %s", command)
		if err := e.conn.RunCommand(ctx, command); err != nil {
			e.metrics.RecordRenameError()
			return fmt.Errorf("rename workspace %d: %w", res.Num, err)
		}
		e.metrics.RecordRename()
	}

	if focusFix {
		e.restoreFocus(ctx, focused)
	}
	return nil
}

// restoreFocus is best-effort: a failure is logged and counted, never fatal,
// and the renames already applied stand.
func (e *Engine) restoreFocus(ctx context.Context, before state.WorkspaceInfo) {
	after, err := e.conn.FocusedWorkspace(ctx)
	if err != nil {
		e.logger.Warnf("focus fix: query focused workspace: %v", err)
		e.metrics.RecordFocusRestoreError()
		return
	}
	// Compare by number where possible: the batch may have renamed the
	// focused workspace itself, which changes its name but not its identity.
	if before.Num >= 0 && after.Num == before.Num {
		return
	}
	if before.Num < 0 && after.Name == before.Name {
		return
	}
	command := focusCommand(before)
	e.logger.Debugf("focus fix: %s", command)
	if err := e.conn.RunCommand(ctx, command); err != nil {
		e.logger.Warnf("focus fix: restore failed: %v", err)
		e.metrics.RecordFocusRestoreError()
		return
	}
	e.metrics.RecordFocusRestore()
}

// renameCommand builds the rename with both names quoted and escaped.
func renameCommand(from, to string) string {
	return fmt.Sprintf("rename workspace \"%s\" to \"%s\"", escapeName(from), escapeName(to))
}

// focusCommand targets numbered workspaces by number so the restore survives
// the batch having renamed the focused workspace itself.
func focusCommand(ws state.WorkspaceInfo) string {
	if ws.Num >= 0 {
		return fmt.Sprintf("workspace number %d", ws.Num)
	}
	return fmt.Sprintf("workspace \"%s\"", escapeName(ws.Name))
}

func escapeName(name string) string {
	return strings.ReplaceAll(name, `"`, `\"`)
}
