package relay

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"

	"github.com/gorilla/websocket"
)

// ServeShell relays an interactive exec process over conn. Inbound text
// and binary frames are written verbatim, in arrival order, to the
// process stdin; a write failure is fatal to the session. Each output
// stream is forwarded independently as binary frames through the shared
// write guard, so a forwarded frame always carries one stream's
// contiguous chunk. The process is always reaped before return.
func ServeShell(conn *websocket.Conn, cmd *exec.Cmd) (Stats, error) {
	s := newSession(conn)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return s.stats(), fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.stats(), fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.stats(), fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return s.stats(), fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	p := &proc{cmd: cmd}
	defer p.shutdown()

	var forwarders sync.WaitGroup
	forwarders.Add(2)
	go forwardChunks(&forwarders, stdout, s)
	go forwardChunks(&forwarders, stderr, s)

	var sessionErr error
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !expectedClose(err) {
				sessionErr = fmt.Errorf("websocket receive: %w", err)
			}
			break
		}
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}
		if _, err := stdin.Write(data); err != nil {
			sessionErr = fmt.Errorf("write shell input: %w", err)
			break
		}
	}

	_ = stdin.Close()
	p.shutdown()
	forwarders.Wait()
	return s.stats(), sessionErr
}

// forwardChunks sends whatever one output stream has ready, one binary
// frame per read. It exits when the stream ends (the process died or
// was torn down) or the socket stops accepting writes.
func forwardChunks(wg *sync.WaitGroup, r io.Reader, s *session) {
	defer wg.Done()

	buf := make([]byte, readChunkBytes)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			if sendErr := s.send(websocket.BinaryMessage, frame); sendErr != nil {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				log.Printf("relay: read shell output: %v", err)
			}
			return
		}
	}
}
