package control

import (
	"errors"
	"os"
	"path/filepath"
)

const (
	// SocketFileName is the filename of the control socket within the runtime dir.
	SocketFileName = "control.sock"

	// Action names supported by the control protocol.
	ActionStatus  = "status"
	ActionPreview = "preview"
	ActionReload  = "reload"
	ActionMetrics = "metrics"

	// Response statuses.
	StatusOK    = "ok"
	StatusError = "error"
)

// Request represents a control API request.
type Request struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Response represents a control API response.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// WorkspaceRename describes one workspace's computed title.
type WorkspaceRename struct {
	Num     int    `json:"num"`
	Current string `json:"current"`
	NewName string `json:"newName"`
	Changed bool   `json:"changed"`
}

// StatusResult reports the outcome of the daemon's most recent recompute.
type StatusResult struct {
	Workspaces []WorkspaceRename `json:"workspaces"`
}

// PreviewResult reports what a recompute would do against the live tree.
type PreviewResult struct {
	Workspaces []WorkspaceRename `json:"workspaces"`
}

// DefaultSocketPath returns the expected location of the control socket.
func DefaultSocketPath() (string, error) {
	if env := os.Getenv("I3WSR_CONTROL_SOCKET"); env != "" {
		return env, nil
	}
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
		if base == "" {
			return "", errors.New("no runtime directory available")
		}
	}
	return filepath.Join(base, "i3wsr", SocketFileName), nil
}
