package main

import (
	"github.com/MrEthical07/goGuard/internal/envconfig"
	"github.com/spf13/cobra"
)

const redacted = "<redacted>"

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	var showSecrets bool
	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if !showSecrets {
				if cfg.Signer.Secret != "" {
					cfg.Signer.Secret = redacted
				}
				if cfg.Redis.Password != "" {
					cfg.Redis.Password = redacted
				}
			}
			out, err := envconfig.Render(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	printCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secrets in clear text")

	cmd.AddCommand(printCmd)
	return cmd
}
