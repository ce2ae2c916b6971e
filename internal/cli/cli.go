// Package cli implements the portside command line client.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/portsidehq/portside/internal/config"
)

// App holds the wired root command and shared flags.
type App struct {
	rootCmd *cobra.Command

	server string

	version string
	commit  string
	date    string
}

// New builds the CLI application.
func New() *App {
	app := &App{}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI.
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// SetVersion records build metadata for the version command.
func (a *App) SetVersion(version, commit, date string) {
	a.version = version
	a.commit = commit
	a.date = date
}

func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "portside",
		Short: "Container diagnostics client",
		Long: `portside talks to a portsided daemon to inspect compose services,
follow container logs, and open interactive shells.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := "http://" + config.DefaultListen
	if env := os.Getenv("PORTSIDE_SERVER"); env != "" {
		defaultServer = env
	}
	a.rootCmd.PersistentFlags().StringVar(&a.server, "server", defaultServer,
		"portsided address (also via PORTSIDE_SERVER)")

	a.rootCmd.AddCommand(
		newInfoCmd(a),
		newServicesCmd(a),
		newLogsCmd(a),
		newShellCmd(a),
		newVersionCmd(a),
	)
}

func (a *App) client() (*Client, error) {
	return NewClient(a.server)
}
