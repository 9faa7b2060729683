package websocket

import (
	"fmt"

	"github.com/sirupsen/logrus"
	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

// Conn is one live connection to the server.
//
// Emit failures are transport-level; callers observe them only through the
// absence of a response event.
type Conn interface {
	Emit(event string, payload map[string]interface{}) error
	Disconnect()
}

// EventSink receives transport callbacks from a dialed connection.
type EventSink interface {
	HandleConnect()
	HandleDisconnect(reason string)
	HandleConnectError(err error)
	HandleEvent(event string, payload map[string]interface{})
}

// Dialer opens a connection and delivers inbound traffic to the sink.
// Each Dial starts a fresh connection attempt; success or failure arrives
// asynchronously through the sink. Implementations must not invoke sink
// callbacks synchronously from within Dial.
type Dialer interface {
	Dial(sink EventSink) (Conn, error)
}

// SocketIODialer dials the chat server over Socket.IO.
type SocketIODialer struct {
	serverURL       string
	preferWebsocket bool
	events          []string
}

// NewSocketIODialer creates a Dialer for the given server.
//
// events is the catalog of inbound event names to bridge into the sink;
// Socket.IO delivers only events that were explicitly subscribed.
func NewSocketIODialer(serverURL string, preferWebsocket bool, events []string) *SocketIODialer {
	return &SocketIODialer{
		serverURL:       serverURL,
		preferWebsocket: preferWebsocket,
		events:          events,
	}
}

// Dial implements Dialer.
func (d *SocketIODialer) Dial(sink EventSink) (Conn, error) {
	opts := socket.DefaultOptions()
	if d.preferWebsocket {
		opts.SetTransports(types.NewSet(socket.WebSocket, socket.Polling))
	} else {
		opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	}
	// The session owns reconnection; the library must not race it.
	opts.SetReconnection(false)

	sock, err := socket.Connect(d.serverURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	sock.On(types.EventName("connect"), func(args ...any) {
		logrus.WithField("socket_id", sock.Id()).Debug("socket connected")
		sink.HandleConnect()
	})

	sock.On(types.EventName("disconnect"), func(args ...any) {
		reason := ""
		if len(args) > 0 {
			if r, ok := args[0].(string); ok {
				reason = r
			}
		}
		logrus.WithField("reason", reason).Warn("socket disconnected")
		sink.HandleDisconnect(reason)
	})

	sock.On(types.EventName("connect_error"), func(args ...any) {
		var cause error
		if len(args) > 0 {
			cause = fmt.Errorf("%v", args[0])
		} else {
			cause = fmt.Errorf("connect error")
		}
		logrus.WithError(cause).Error("socket connection error")
		sink.HandleConnectError(cause)
	})

	for _, event := range d.events {
		ev := event // capture for closure
		sock.On(types.EventName(ev), func(args ...any) {
			var payload map[string]interface{}
			if len(args) > 0 {
				if m, ok := args[0].(map[string]interface{}); ok {
					payload = m
				}
			}
			sink.HandleEvent(ev, payload)
		})
	}

	return &sioConn{sock: sock}, nil
}

type sioConn struct {
	sock *socket.Socket
}

func (c *sioConn) Emit(event string, payload map[string]interface{}) error {
	if c.sock == nil {
		return fmt.Errorf("not connected")
	}
	c.sock.Emit(event, payload)
	return nil
}

func (c *sioConn) Disconnect() {
	if c.sock != nil {
		c.sock.Disconnect()
	}
}
