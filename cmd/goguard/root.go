package main

import (
	"fmt"
	"io"
	"os"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/envconfig"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "goguard",
		Short:         "Session security and request-integrity tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file; GOGUARD_* variables override it")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "json", "log format (json or console)")

	cmd.AddCommand(
		newServeCommand(opts),
		newSignCommand(opts),
		newVerifyCommand(opts),
		newConfigCommand(opts),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (goGuard.Config, error) {
	cfg, err := envconfig.Load(o.configPath)
	if err != nil {
		return goGuard.Config{}, err
	}
	return cfg, nil
}

func (o *rootOptions) logger(w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(o.logLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", o.logLevel, err)
	}
	if w == nil {
		w = os.Stderr
	}
	switch o.logFormat {
	case "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w}
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q must be json or console", o.logFormat)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
