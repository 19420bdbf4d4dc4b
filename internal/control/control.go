// Package control holds the cobra subcommands of the youtube2text CLI.
package control

import (
	"youtube2text/internal/config"
	"youtube2text/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// loadRuntime reads .env, the config file and flag overrides, then configures logging.
func loadRuntime(cmd *cobra.Command, cfgPath string) (*config.Config, *logrus.Logger, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		cfg.Output.Root = f.Value.String()
	}
	logger, err := logging.Configure(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "output root (default from config, ~/youtube2text)")
}
