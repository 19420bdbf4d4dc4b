package control

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"youtube2text/internal/config"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// DefaultModel is fetched by setup.
const DefaultModel = "ggml-base.en.bin"

// simple registry of known ggml models.
var modelRegistry = map[string]string{
	"ggml-tiny.en.bin":             modelBaseURL + "ggml-tiny.en.bin",
	"ggml-base.en.bin":             modelBaseURL + "ggml-base.en.bin",
	"ggml-base.bin":                modelBaseURL + "ggml-base.bin",
	"ggml-small-q5_1.bin":          modelBaseURL + "ggml-small-q5_1.bin",
	"ggml-medium-q5_1.bin":         modelBaseURL + "ggml-medium-q5_1.bin",
	"ggml-large-v3-turbo-q8_0.bin": modelBaseURL + "ggml-large-v3-turbo-q8_0.bin",
}

func modelDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "models")
}

// NewModelsCmd wires up the models subcommands (list/download/set).
func NewModelsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List/download/set whisper models for the local backend",
	}
	cmd.AddCommand(newModelsListCmd(cfgPath))
	cmd.AddCommand(newModelsDownloadCmd(cfgPath))
	cmd.AddCommand(newModelsSetCmd(cfgPath))
	return cmd
}

func newModelsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known models and those present locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			local := map[string]int64{}
			entries, _ := os.ReadDir(modelDir(cfg))
			for _, e := range entries {
				if info, err := e.Info(); err == nil && !e.IsDir() {
					local[e.Name()] = info.Size()
				}
			}
			names := make([]string, 0, len(modelRegistry))
			for n := range modelRegistry {
				names = append(names, n)
			}
			sort.Strings(names)
			out := cmd.OutOrStdout()
			for _, n := range names {
				avail := ""
				if size, ok := local[n]; ok {
					avail = fmt.Sprintf("(downloaded, %s)", humanize.Bytes(uint64(size)))
				}
				if filepath.Base(cfg.ASR.ModelPath) == n {
					avail += " *"
				}
				_, _ = fmt.Fprintf(out, "- %s %s\n", n, strings.TrimSpace(avail))
			}
			return nil
		},
	}
}

func newModelsDownloadCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "download <model>",
		Short: "Download a model from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			name := args[0]
			url, ok := modelRegistry[name]
			if !ok {
				return fmt.Errorf("unknown model %q; run models list", name)
			}
			dest := filepath.Join(modelDir(cfg), name)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "downloading %s -> %s\n", name, dest)
			n, err := downloadFile(cmd.Context(), http.DefaultClient, url, dest)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "done (%s)\n", humanize.Bytes(uint64(n)))
			return nil
		},
	}
}

func newModelsSetCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <model-name-or-path>",
		Short: "Set asr.model_path in config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			val := args[0]
			// if short name, resolve in the model dir
			if !strings.Contains(val, "/") {
				val = filepath.Join(modelDir(cfg), val)
			}
			cfg.ASR.ModelPath = val
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "model set to %s\n", val)
			return nil
		},
	}
}

// downloadFile streams url into dest via a .part file and returns the byte count.
func downloadFile(ctx context.Context, client *http.Client, url, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed: %s", resp.Status)
	}
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = out.Close()
		_ = os.Remove(tmp)
	}()
	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	return n, os.Rename(tmp, dest)
}
