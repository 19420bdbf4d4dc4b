package control

import (
	"fmt"
	"net/http"
	"os"

	"youtube2text/internal/config"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewSetupCmd creates the output layout and downloads the default model if missing.
func NewSetupCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create output dirs and download the default whisper model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := config.EnsureDirs(cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "output root %s\n", cfg.Output.Root)

			modelPath := os.ExpandEnv(cfg.ASR.ModelPath)
			if _, err := os.Stat(modelPath); err == nil {
				_, _ = fmt.Fprintln(out, "model already present at", modelPath)
				return nil
			}
			_, _ = fmt.Fprintf(out, "downloading model to %s\n", modelPath)
			n, err := downloadFile(cmd.Context(), http.DefaultClient, modelRegistry[DefaultModel], modelPath)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "model download complete (%s)\n", humanize.Bytes(uint64(n)))
			return nil
		},
	}
}
