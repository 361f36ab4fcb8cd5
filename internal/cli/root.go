// Package cli implements the lnskit command line.
package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lnskit/internal/config"
	"lnskit/internal/logger"
)

type rootOptions struct {
	cfgPath  string
	logLevel string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "lnskit",
		Short:         "Large neighbourhood search for capacitated vehicle routing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.cfgPath, "config", "c", "", "configuration file (yaml or json)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(newSolveCmd(opts), newServeCmd(opts), newSubmitCmd(), newVersionCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() error { return NewRootCmd().Execute() }

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if err := cfg.Logging.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (zerolog.Logger, error) {
	return logger.New(cfg.Level, cfg.Format, w)
}
