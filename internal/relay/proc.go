package relay

import (
	"errors"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// terminateGrace is how long a process gets to exit after SIGTERM
// before it is killed outright.
const terminateGrace = 2 * time.Second

// proc owns the spawned process for one session and guarantees it is
// terminated and reaped exactly once, however many exit paths race.
type proc struct {
	cmd  *exec.Cmd
	once sync.Once
}

// shutdown requests termination and reaps the process. Failures are
// logged and swallowed: the session is ending regardless. Safe to call
// from multiple paths; later calls are no-ops.
func (p *proc) shutdown() {
	p.once.Do(func() {
		if p.cmd.Process == nil {
			return
		}
		if err := p.cmd.Process.Signal(unix.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Printf("relay: terminate pid %d: %v", p.cmd.Process.Pid, err)
		}

		done := make(chan error, 1)
		go func() { done <- p.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(terminateGrace):
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				log.Printf("relay: kill pid %d: %v", p.cmd.Process.Pid, err)
			}
			<-done
		}
	})
}
