package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sakif/pygate/internal/config"
	"github.com/sakif/pygate/internal/handler"
	"github.com/sakif/pygate/internal/server"
)

func newPolicyCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the effective policy and interpreter allowlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// describing the policy never needs a container
			cfg.Executor.Backend = config.BackendInproc
			gk, closeExec, err := server.NewGatekeeper(cfg, newLogger(cfg, cmd.ErrOrStderr()), nil)
			if err != nil {
				return err
			}
			defer closeExec()

			desc := handler.DescribePolicy(gk)
			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(desc); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(desc)
			}
			return fmt.Errorf("unknown format %q", format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml or json)")
	return cmd
}
