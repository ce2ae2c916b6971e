package compose

import (
	"context"
	"os/exec"
	"strconv"
)

const (
	// DefaultBin is the container runtime CLI invoked for listing,
	// following and execing.
	DefaultBin = "docker"

	// DefaultLogTail bounds the backlog emitted before live follow.
	DefaultLogTail = 400
)

// LogsCommand builds the follow-mode log invocation for an
// already-sanitized container name: a bounded recent-lines window
// followed by unbounded live follow.
func LogsCommand(ctx context.Context, bin, container string, tail int) *exec.Cmd {
	if bin == "" {
		bin = DefaultBin
	}
	if tail <= 0 {
		tail = DefaultLogTail
	}
	return exec.CommandContext(ctx, bin, "logs", "--follow", "--tail", strconv.Itoa(tail), container)
}

// ShellCommand builds the interactive exec invocation for an
// already-sanitized container name.
func ShellCommand(ctx context.Context, bin, container string) *exec.Cmd {
	if bin == "" {
		bin = DefaultBin
	}
	return exec.CommandContext(ctx, bin, "exec", "-i", container, "sh", "-i")
}
