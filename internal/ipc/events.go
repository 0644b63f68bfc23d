package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/roosta/i3wsr/internal/util"
)

// Event is a decoded entry from the subscription stream. Kind is the event
// class (window or workspace), Change the specific transition within it.
type Event struct {
	Kind   string
	Change string
}

const (
	EventKindWindow    = "window"
	EventKindWorkspace = "workspace"
)

// Subscribe opens a dedicated connection, subscribes to window and workspace
// events, and streams them until context cancellation. The channel closes
// when the connection drops; callers treat that as a lost window manager.
func Subscribe(ctx context.Context, logger *util.Logger) (<-chan Event, error) {
	path, err := SocketPath()
	if err != nil {
		return nil, err
	}
	return SubscribeAt(ctx, logger, path)
}

// SubscribeAt subscribes on an explicit socket path.
func SubscribeAt(ctx context.Context, logger *util.Logger, path string) (<-chan Event, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect event socket: %w", err)
	}
	payload, err := json.Marshal([]string{EventKindWindow, EventKindWorkspace})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := writeMessage(conn, msgSubscribe, payload); err != nil {
		conn.Close()
		return nil, err
	}
	replyType, reply, err := readMessage(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read subscribe reply: %w", err)
	}
	if replyType != msgSubscribe {
		conn.Close()
		return nil, fmt.Errorf("unexpected subscribe reply type %d", replyType)
	}
	var ack struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(reply, &ack); err != nil || !ack.Success {
		conn.Close()
		return nil, fmt.Errorf("subscription rejected: %s", reply)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer conn.Close()
		go func() {
			<-ctx.Done()
			conn.Close()
		}()
		for {
			msgType, payload, err := readMessage(conn)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warnf("event stream error: %v", err)
				}
				return
			}
			ev, ok := decodeEvent(msgType, payload)
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func decodeEvent(msgType uint32, payload []byte) (Event, bool) {
	var kind string
	switch msgType {
	case eventWindow:
		kind = EventKindWindow
	case eventWorkspace:
		kind = EventKindWorkspace
	default:
		return Event{}, false
	}
	var body struct {
		Change string `json:"change"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return Event{}, false
	}
	return Event{Kind: kind, Change: body.Change}, true
}
