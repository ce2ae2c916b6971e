package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newInfoCmd(app *App) *cobra.Command {
	var (
		ref    string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Resolve a container reference to its attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ref == "" {
				return fmt.Errorf("--ref is required")
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			info, err := c.Info(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "attempt: %s\n", info.AttemptID)
			fmt.Fprintf(cmd.OutOrStdout(), "task:    %s\n", info.TaskID)
			fmt.Fprintf(cmd.OutOrStdout(), "project: %s\n", info.ProjectID)
			return nil
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "container reference to resolve")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}
