package relay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/gorilla/websocket"
)

// ServeLogs relays a follow-mode log process over conn. Lines from the
// process's stdout and stderr are forwarded as tagged LogFrame text
// frames; the inbound side only carries pings and the close. ServeLogs
// returns when the client closes, the process exhausts both streams, or
// either side fails, including an unrecoverable read error on one output
// stream while the other is still live. The process is always reaped
// before return.
func ServeLogs(conn *websocket.Conn, cmd *exec.Cmd) (Stats, error) {
	s := newSession(conn)

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

	// done releases the line scanners if the loop exits while they are
	// blocked handing over a frame.
	done := make(chan struct{})
	defer close(done)

	frames := make(chan LogFrame, frameBacklog)
	readErrs := make(chan error, 2)
	var readers sync.WaitGroup
	readers.Add(2)
	go scanLines(&readers, stdout, "stdout", frames, readErrs, done)
	go scanLines(&readers, stderr, "stderr", frames, readErrs, done)
	go func() {
		readers.Wait()
		close(frames)
	}()

	inbound := make(chan error, 1)
	go func() { inbound <- drainInbound(conn) }()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				// The process closed both streams; the log session is over.
				return s.stats(), nil
			}
			if err := s.sendJSON(frame); err != nil {
				return s.stats(), fmt.Errorf("send log frame: %w", err)
			}
		case err := <-readErrs:
			return s.stats(), err
		case err := <-inbound:
			return s.stats(), err
		}
	}
}

// scanLines forwards complete lines from one process stream until the
// stream ends or the session is done. Lines from a single stream keep
// their order; no ordering holds between the two streams. A scan failure
// that is not the teardown closing the pipe is fatal to the session.
func scanLines(wg *sync.WaitGroup, r io.Reader, channel string, frames chan<- LogFrame, readErrs chan<- error, done <-chan struct{}) {
	defer wg.Done()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		select {
		case frames <- LogFrame{Channel: channel, Content: sc.Text()}:
		case <-done:
			return
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		readErrs <- fmt.Errorf("read container %s: %w", channel, err)
	}
}

// drainInbound consumes the client side of a log session. The channel
// is output-only from the caller's perspective: data frames are
// discarded, pings are answered by the session's ping handler, and a
// close or receive failure ends the session.
func drainInbound(conn *websocket.Conn) error {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if expectedClose(err) {
				return nil
			}
			return fmt.Errorf("websocket receive: %w", err)
		}
	}
}
