// Command pygate validates and runs untrusted Python snippets, either as
// an HTTP service or one snippet at a time from the shell.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/pygate/internal/config"
)

var configPath string

// exitError ends the process with code after the command has already
// reported why.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pygate",
		Short: "Gatekeeper for untrusted Python snippets",
		Long: `pygate checks Python snippets against an import and identifier
policy and runs the accepted ones in a constrained interpreter or a
locked-down container.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newPolicyCmd())
	root.AddCommand(newClientCmd())
	return root
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
