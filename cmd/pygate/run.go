package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/pygate/internal/gatekeeper"
	"github.com/sakif/pygate/internal/server"
)

func newRunCmd() *cobra.Command {
	var (
		timeout time.Duration
		seed    uint64
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "run [file|-]",
		Short: "Run one snippet and print the tool response",
		Long: `Run reads a snippet from a file, or from stdin when the argument is
"-" or missing, passes it through the gatekeeper and prints the same
text an agent would receive. The exit status is 1 when the snippet was
rejected or failed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if timeout > 0 {
				cfg.Executor.Timeout = timeout
			}
			if seed != 0 {
				cfg.Executor.Seed = seed
			}

			gk, closeExec, err := server.NewGatekeeper(cfg, newLogger(cfg, cmd.ErrOrStderr()), nil)
			if err != nil {
				return err
			}
			defer closeExec()

			res := gk.Run(cmd.Context(), source)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(resultJSON(res)); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, gatekeeper.ToolResponse(source, res))
			}
			if !res.OK() {
				return exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Execution timeout (overrides config)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for random and numpy.random")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the structured result instead of the tool text")
	return cmd
}

func readSource(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", args[0], err)
	}
	return string(b), nil
}

type runOutput struct {
	OK         bool     `json:"ok"`
	Kind       string   `json:"kind,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Output     string   `json:"output"`
	DurationMS int64    `json:"duration_ms"`
	Steps      int64    `json:"steps,omitempty"`
	Artifacts  []string `json:"artifacts,omitempty"`
}

func resultJSON(r gatekeeper.Result) runOutput {
	out := runOutput{
		OK:         r.OK(),
		Output:     r.Output(),
		DurationMS: r.Duration().Milliseconds(),
		Steps:      r.Steps(),
	}
	if !r.OK() {
		out.Kind, out.Reason = string(r.Kind()), r.Reason()
	}
	for _, a := range r.Artifacts() {
		out.Artifacts = append(out.Artifacts, a.Name)
	}
	return out
}
