package control

import (
	"fmt"
	"time"

	"youtube2text/internal/config"
	"youtube2text/internal/paths"
	"youtube2text/internal/pipeline"
	"youtube2text/internal/transcript"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewURLCmd runs the full pipeline for one video.
func NewURLCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "url <video-url>",
		Aliases: []string{"transcribe"},
		Short:   "Download a video's audio and transcribe it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, p, err := newPipeline(cmd, *cfgPath)
			if err != nil {
				return err
			}
			job := pipeline.Job{URL: args[0]}
			job.Name, _ = cmd.Flags().GetString("name")
			job.TextName, _ = cmd.Flags().GetString("text")
			job.Format, _ = cmd.Flags().GetString("format")
			job.Backend, _ = cmd.Flags().GetString("backend")

			res, err := p.Run(cmd.Context(), job)
			if err != nil {
				logger.Errorf("job failed: %v", err)
				return err
			}
			return printResult(cmd, res)
		},
	}
	addOutputFlag(cmd)
	cmd.Flags().StringP("name", "n", "", "audio file name or path (default: timestamp)")
	cmd.Flags().StringP("text", "t", "", "transcript name or path (default: audio name)")
	cmd.Flags().StringP("format", "f", "", "audio format: flac or wav")
	cmd.Flags().StringP("backend", "b", "", "asr backend: default, openai, whisper")
	cmd.Flags().Bool("show", false, "print the transcript as a table")
	return cmd
}

// NewFetchCmd downloads audio only.
func NewFetchCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <video-url>",
		Short: "Download a video's audio without transcribing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := newPipeline(cmd, *cfgPath)
			if err != nil {
				return err
			}
			job := pipeline.Job{URL: args[0]}
			job.Name, _ = cmd.Flags().GetString("name")
			job.Format, _ = cmd.Flags().GetString("format")
			path, err := p.FetchAudio(cmd.Context(), job)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	addOutputFlag(cmd)
	cmd.Flags().StringP("name", "n", "", "audio file name or path (default: timestamp)")
	cmd.Flags().StringP("format", "f", "", "audio format: flac or wav")
	return cmd
}

// NewAudioCmd transcribes an existing audio file.
func NewAudioCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio <file>",
		Short: "Transcribe a local flac or wav file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, p, err := newPipeline(cmd, *cfgPath)
			if err != nil {
				return err
			}
			textName, _ := cmd.Flags().GetString("text")
			backend, _ := cmd.Flags().GetString("backend")
			res, err := p.TranscribeFile(cmd.Context(), args[0], textName, backend)
			if err != nil {
				logger.Errorf("job failed: %v", err)
				return err
			}
			return printResult(cmd, res)
		},
	}
	addOutputFlag(cmd)
	cmd.Flags().StringP("text", "t", "", "transcript name or path (default: audio name)")
	cmd.Flags().StringP("backend", "b", "", "asr backend: default, openai, whisper")
	cmd.Flags().Bool("show", false, "print the transcript as a table")
	return cmd
}

// NewShowCmd renders a transcript as a table.
func NewShowCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <transcript>",
		Short: "Print a transcript as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !paths.Exists(path) {
				cfg, err := config.Load(*cfgPath)
				if err != nil {
					return err
				}
				path = paths.Resolve(path, cfg.TextDir(), paths.TextExt, time.Now(), nil)
			}
			rows, err := transcript.Read(path)
			if err != nil {
				return err
			}
			width, _ := cmd.Flags().GetInt("width")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), transcript.Render(rows, width))
			return nil
		},
	}
	cmd.Flags().Int("width", 80, "wrap text column at this width (0 disables)")
	return cmd
}

func newPipeline(cmd *cobra.Command, cfgPath string) (*logrus.Logger, *pipeline.Pipeline, error) {
	cfg, logger, err := loadRuntime(cmd, cfgPath)
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return logger, p, nil
}

func printResult(cmd *cobra.Command, res *pipeline.Result) error {
	out := cmd.OutOrStdout()
	if res.Skipped {
		_, _ = fmt.Fprintf(out, "%s already exists\n", res.Layout.Text)
	} else {
		_, _ = fmt.Fprintf(out, "%s (%d rows)\n", res.Layout.Text, len(res.Rows))
	}
	if show, _ := cmd.Flags().GetBool("show"); show {
		rows := res.Rows
		if res.Skipped {
			var err error
			if rows, err = transcript.Read(res.Layout.Text); err != nil {
				return err
			}
		}
		_, _ = fmt.Fprintln(out, transcript.Render(rows, 80))
	}
	return nil
}
