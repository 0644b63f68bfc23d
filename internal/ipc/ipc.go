// Package ipc implements the i3/sway IPC protocol: a unix socket carrying
// "i3-ipc"-framed JSON payloads. One connection serves request/reply traffic;
// event subscriptions get their own connection (see events.go) because a
// subscribed connection only ever delivers events.
package ipc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/roosta/i3wsr/internal/state"
)

var magic = [6]byte{'i', '3', '-', 'i', 'p', 'c'}

const headerSize = len(magic) + 8

// Request message types.
const (
	msgRunCommand    uint32 = 0
	msgGetWorkspaces uint32 = 1
	msgSubscribe     uint32 = 2
	msgGetTree       uint32 = 4
)

// Event replies have the high bit set on the message type.
const eventBit uint32 = 0x80000000

const (
	eventWorkspace = eventBit | 0
	eventWindow    = eventBit | 3
)

// SocketPath locates the window manager socket, preferring sway.
func SocketPath() (string, error) {
	if path := os.Getenv("SWAYSOCK"); path != "" {
		return path, nil
	}
	if path := os.Getenv("I3SOCK"); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("neither SWAYSOCK nor I3SOCK is set")
}

// Client is a request/reply connection to the window manager.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Connect dials the window manager socket.
func Connect() (*Client, error) {
	path, err := SocketPath()
	if err != nil {
		return nil, err
	}
	return Dial(path)
}

// Dial connects to an explicit socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect ipc socket: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close terminates the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// roundtrip sends one request and reads its reply. The socket protocol has no
// request IDs; replies arrive in order, so requests are serialized here.
func (c *Client) roundtrip(ctx context.Context, msgType uint32, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := applyDeadline(ctx, c.conn); err != nil {
		return nil, err
	}
	if err := writeMessage(c.conn, msgType, payload); err != nil {
		return nil, err
	}
	for {
		replyType, reply, err := readMessage(c.conn)
		if err != nil {
			return nil, err
		}
		// An older subscription on this connection could interleave events;
		// request/reply clients never subscribe, but skipping event frames
		// here keeps the reader honest.
		if replyType&eventBit != 0 {
			continue
		}
		if replyType != msgType {
			return nil, fmt.Errorf("ipc reply type %d for request type %d", replyType, msgType)
		}
		return reply, nil
	}
}

func applyDeadline(ctx context.Context, conn net.Conn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		return conn.SetDeadline(deadline)
	}
	return conn.SetDeadline(time.Time{})
}

// GetTree fetches the full container tree.
func (c *Client) GetTree(ctx context.Context) (*state.Node, error) {
	data, err := c.roundtrip(ctx, msgGetTree, nil)
	if err != nil {
		return nil, fmt.Errorf("get_tree: %w", err)
	}
	var root state.Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return &root, nil
}

// GetWorkspaces fetches the workspace list.
func (c *Client) GetWorkspaces(ctx context.Context) ([]state.WorkspaceInfo, error) {
	data, err := c.roundtrip(ctx, msgGetWorkspaces, nil)
	if err != nil {
		return nil, fmt.Errorf("get_workspaces: %w", err)
	}
	var workspaces []state.WorkspaceInfo
	if err := json.Unmarshal(data, &workspaces); err != nil {
		return nil, fmt.Errorf("decode workspaces: %w", err)
	}
	return workspaces, nil
}

// FocusedWorkspace returns the currently focused workspace.
func (c *Client) FocusedWorkspace(ctx context.Context) (state.WorkspaceInfo, error) {
	workspaces, err := c.GetWorkspaces(ctx)
	if err != nil {
		return state.WorkspaceInfo{}, err
	}
	for _, ws := range workspaces {
		if ws.Focused {
			return ws, nil
		}
	}
	return state.WorkspaceInfo{}, fmt.Errorf("no focused workspace reported")
}

// RunCommand executes a command and fails if the window manager rejects it.
func (c *Client) RunCommand(ctx context.Context, command string) error {
	data, err := c.roundtrip(ctx, msgRunCommand, []byte(command))
	if err != nil {
		return fmt.Errorf("run_command: %w", err)
	}
	var results []struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("decode command reply: %w", err)
	}
	var failures []string
	for _, res := range results {
		if !res.Success {
			msg := res.Error
			if msg == "" {
				msg = "command failed"
			}
			failures = append(failures, msg)
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("command %q: %s", command, strings.Join(failures, "; "))
	}
	return nil
}

func writeMessage(w io.Writer, msgType uint32, payload []byte) error {
	buf := make([]byte, headerSize+len(payload))
	copy(buf, magic[:])
	binary.LittleEndian.PutUint32(buf[6:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[10:], msgType)
	copy(buf[headerSize:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write ipc message: %w", err)
	}
	return nil
}

func readMessage(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("read ipc header: %w", err)
	}
	if string(header[:6]) != string(magic[:]) {
		return 0, nil, fmt.Errorf("bad ipc magic %q", header[:6])
	}
	length := binary.LittleEndian.Uint32(header[6:])
	msgType := binary.LittleEndian.Uint32(header[10:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read ipc payload: %w", err)
	}
	return msgType, payload, nil
}

var _ state.DataSource = (*Client)(nil)
