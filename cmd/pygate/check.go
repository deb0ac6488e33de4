package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/pygate/internal/policy"
	"github.com/sakif/pygate/internal/server"
)

type fileReport struct {
	File string `json:"file"`
	policy.Report
}

func newCheckCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "check files...",
		Short: "Validate snippets against the policy without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q", format)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := server.NewPolicy(cfg.Policy)
			if err != nil {
				return err
			}

			reports := make([]fileReport, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(runtime.GOMAXPROCS(0))
			for i, file := range args {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					src, err := os.ReadFile(file)
					if err != nil {
						return fmt.Errorf("cannot read %s: %w", file, err)
					}
					reports[i] = fileReport{File: file, Report: p.Inspect(string(src))}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rejected := 0
			for _, r := range reports {
				if !r.Accepted {
					rejected++
				}
			}
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					if r.Accepted {
						fmt.Fprintf(out, "%s: ok\n", r.File)
						continue
					}
					for _, v := range r.Violations {
						fmt.Fprintf(out, "%s:%d:%d: %s: %s\n", r.File, v.Line, v.Column, v.Rule, v.Message)
					}
				}
			}
			if rejected > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d files rejected\n", rejected, len(reports))
				return exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text or json)")
	return cmd
}
