package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/portsidehq/portside/internal/compose"
)

func newServicesCmd(app *App) *cobra.Command {
	var (
		asJSON bool
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "services <attempt-id>",
		Short: "List the compose services behind an attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			attemptID := args[0]

			if watch {
				model := newServicesModel(c, attemptID)
				p := tea.NewProgram(model, tea.WithAltScreen())
				if _, err := p.Run(); err != nil {
					return err
				}
				return nil
			}

			services, err := c.Services(cmd.Context(), attemptID)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(services)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderServicesTable(services))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&watch, "watch", false, "refresh the table until interrupted")

	return cmd
}

func renderServicesTable(services []compose.ServiceRecord) string {
	if len(services) == 0 {
		return "no services\n"
	}

	headers := []string{"SERVICE", "STATE", "STATUS", "IMAGE", "PORTS", "URL"}
	rows := make([][]string, 0, len(services))
	for _, svc := range services {
		rows = append(rows, []string{
			svc.Service,
			svc.State,
			svc.Status,
			svc.Image,
			strings.Join(svc.Ports, ", "),
			svc.BrowserURL,
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style func(...string) string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(style(pad(cell, widths[i])))
		}
		b.WriteString("\n")
	}

	writeRow(headers, headerStyle.Render)
	for _, row := range rows {
		style := cellStyle.Render
		if row[1] != "running" {
			style = stoppedStyle.Render
		}
		writeRow(row, style)
	}
	return b.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
