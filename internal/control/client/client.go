// Package client talks to the running daemon over its control socket.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/roosta/i3wsr/internal/control"
	"github.com/roosta/i3wsr/internal/metrics"
)

// defaultTimeout is used when the caller does not provide a context deadline.
const defaultTimeout = 3 * time.Second

// Client talks to the running daemon over its control socket.
type Client struct {
	socketPath string
}

type (
	// WorkspaceRename describes one workspace's computed title.
	WorkspaceRename = control.WorkspaceRename
	// StatusResult reports the outcome of the daemon's most recent recompute.
	StatusResult = control.StatusResult
	// PreviewResult reports what a recompute would do against the live tree.
	PreviewResult = control.PreviewResult
	// MetricsSnapshot mirrors the counter payload returned by the daemon.
	MetricsSnapshot = metrics.Snapshot
)

// New creates a client that connects to the provided socket path. When path is
// empty, the default runtime path is used.
func New(path string) (*Client, error) {
	if path == "" {
		var err error
		path, err = control.DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}
	return &Client{socketPath: path}, nil
}

// Status retrieves the daemon's most recent per-workspace results.
func (c *Client) Status(ctx context.Context) (StatusResult, error) {
	var status StatusResult
	if err := c.do(ctx, control.Request{Action: control.ActionStatus}, &status); err != nil {
		return StatusResult{}, err
	}
	return status, nil
}

// Preview asks the daemon what a recompute would rename right now.
func (c *Client) Preview(ctx context.Context) (PreviewResult, error) {
	var result PreviewResult
	if err := c.do(ctx, control.Request{Action: control.ActionPreview}, &result); err != nil {
		return PreviewResult{}, err
	}
	return result, nil
}

// Reload asks the daemon to reload its configuration.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, control.Request{Action: control.ActionReload}, nil)
}

// Metrics retrieves the daemon's counters.
func (c *Client) Metrics(ctx context.Context) (MetricsSnapshot, error) {
	var snap MetricsSnapshot
	if err := c.do(ctx, control.Request{Action: control.ActionMetrics}, &snap); err != nil {
		return MetricsSnapshot{}, err
	}
	return snap, nil
}

func (c *Client) do(ctx context.Context, req control.Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var resp control.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != control.StatusOK {
		if resp.Error == "" {
			resp.Error = "unknown control error"
		}
		return errors.New(resp.Error)
	}
	if out == nil || resp.Data == nil {
		return nil
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
