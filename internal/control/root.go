package control

import (
	"fmt"

	"youtube2text/internal/config"
	"youtube2text/internal/doctor"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies and config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			results := doctor.Run(cfg)
			for _, r := range results {
				status := "ok"
				if !r.Pass {
					status = "fail"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-15s %-4s %s\n", r.Name, status, r.Detail)
			}
			if !doctor.OK(results) {
				return fmt.Errorf("doctor found issues")
			}
			return nil
		},
	}
}

// NewConfigCmd prints the effective configuration.
func NewConfigCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective config (file + env overrides)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			out, err := toml.Marshal(cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "# %s\n", cfg.Paths.ConfigPath)
			_, _ = w.Write(out)
			return nil
		},
	}
}
