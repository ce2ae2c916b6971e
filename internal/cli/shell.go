package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newShellCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell <container>",
		Short: "Open an interactive shell in a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			return runShell(cmd, c, args[0])
		},
	}
	return cmd
}

func runShell(cmd *cobra.Command, c *Client, container string) error {
	conn, err := c.DialShell(cmd.Context(), container)
	if err != nil {
		return err
	}
	defer conn.Close()

	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return fmt.Errorf("set raw mode: %w", err)
		}
		defer func() {
			_ = term.Restore(stdinFd, oldState)
		}()
	}

	// Forward keystrokes until stdin closes or the write side fails.
	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				if writeErr := conn.WriteMessage(gws.BinaryMessage, buf[:n]); writeErr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	var outErr error
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if !gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway, gws.CloseNoStatusReceived) {
				outErr = fmt.Errorf("shell stream ended: %w", err)
			}
			break
		}
		if messageType != gws.BinaryMessage && messageType != gws.TextMessage {
			continue
		}
		if _, err := os.Stdout.Write(payload); err != nil {
			outErr = err
			break
		}
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(gws.CloseMessage,
		gws.FormatCloseMessage(gws.CloseNormalClosure, ""), deadline)

	select {
	case <-inputDone:
	case <-time.After(time.Second):
	}

	if outErr != nil && outErr != io.EOF {
		return outErr
	}
	return nil
}
