package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/portsidehq/portside/internal/relay"
)

func newLogsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <container>",
		Short: "Follow a container's log stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			return followLogs(cmd, c, args[0])
		},
	}
	return cmd
}

func followLogs(cmd *cobra.Command, c *Client, container string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	conn, err := c.DialLogs(ctx, container)
	if err != nil {
		return err
	}
	defer conn.Close()

	frames := make(chan relay.LogFrame)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var frame relay.LogFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				continue
			}
			// The handoff must not outlive the consumer, which stops
			// reading once the context is cancelled.
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(gws.CloseMessage,
				gws.FormatCloseMessage(gws.CloseNormalClosure, ""), deadline)
			return nil
		case frame, ok := <-frames:
			if !ok {
				err := <-readErr
				if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
					return nil
				}
				return fmt.Errorf("log stream ended: %w", err)
			}
			if frame.Channel == "stderr" {
				fmt.Fprintln(os.Stderr, stderrStyle.Render(frame.Content))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), frame.Content)
			}
		}
	}
}
