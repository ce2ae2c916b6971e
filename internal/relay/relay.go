// Package relay pipes a spawned process's standard streams over a
// websocket connection. Each session owns exactly one process and one
// connection for its lifetime; both are torn down together on every
// exit path, so no process outlives the socket that created it.
package relay

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	frameBacklog   = 64
	maxLineBytes   = 1 << 20
	readChunkBytes = 4096
)

// LogFrame is one tagged line of process output sent as a text frame.
type LogFrame struct {
	Channel string `json:"channel"`
	Content string `json:"content"`
}

// Stats counts the outbound traffic of a finished session.
type Stats struct {
	FramesOut int64
	BytesOut  int64
}

// session serializes writes to the shared websocket connection. The
// stream forwarders and the pong replies all go through send, so a frame
// is never interleaved mid-write. This is the only shared-resource
// synchronization point in the subsystem.
type session struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	frames atomic.Int64
	bytes  atomic.Int64
}

func newSession(conn *websocket.Conn) *session {
	s := &session{conn: conn}
	conn.SetPingHandler(func(appData string) error {
		return s.send(websocket.PongMessage, []byte(appData))
	})
	return s
}

func (s *session) send(messageType int, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(messageType, payload); err != nil {
		return err
	}
	s.frames.Add(1)
	s.bytes.Add(int64(len(payload)))
	return nil
}

func (s *session) sendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.send(websocket.TextMessage, payload)
}

func (s *session) stats() Stats {
	return Stats{FramesOut: s.frames.Load(), BytesOut: s.bytes.Load()}
}

// expectedClose reports whether a receive error is an ordinary end of
// the client side rather than a stream failure.
func expectedClose(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return true
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
