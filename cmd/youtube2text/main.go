package main

import (
	"fmt"
	"os"

	"youtube2text/internal/control"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const version = "0.2.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "youtube2text",
		Short: "youtube2text: transcribe YouTube videos into CSV",
		Long: `youtube2text downloads the audio of a YouTube video, splits it on silence,
runs every chunk through a speech recognizer and writes a CSV of (text, chunk) rows.

Layout under the output root (default ~/youtube2text):
  audio/<name>.<flac|wav>
  text/<name>.csv
  audio-chunks/<name>/chunk<N>.<ext>

Key commands:
  url <video-url>           Fetch + transcribe (alias: transcribe)
  fetch <video-url>         Fetch audio only
  audio <file>              Transcribe a local flac/wav file
  show <transcript>         Print a transcript as a table
  doctor|setup              Check deps / download default model
  models list|download|set  Manage whisper.cpp models
  config                    Print effective config

Env overrides: YOUTUBE2TEXT_OUTPUT, YOUTUBE2TEXT_BACKEND, YOUTUBE2TEXT_FORMAT,
               YOUTUBE2TEXT_LOG_LEVEL/FORMAT, LOGLEVEL, OPENAI_API_KEY, GOOGLE_SPEECH_KEY`,
		Example: `  youtube2text url https://www.youtube.com/watch?v=dQw4w9WgXcQ -n rick
  youtube2text url https://youtu.be/dQw4w9WgXcQ -f wav -b whisper --show
  youtube2text fetch https://youtu.be/dQw4w9WgXcQ -n rick
  youtube2text audio ~/youtube2text/audio/rick.flac -t rick-notes
  youtube2text show rick`,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}

	root.Version = version
	root.SetVersionTemplate("youtube2text v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/youtube2text/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(control.NewURLCmd(cfgPath))
	root.AddCommand(control.NewFetchCmd(cfgPath))
	root.AddCommand(control.NewAudioCmd(cfgPath))
	root.AddCommand(control.NewShowCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewSetupCmd(cfgPath))
	root.AddCommand(control.NewModelsCmd(cfgPath))
	root.AddCommand(control.NewConfigCmd(cfgPath))

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		applyColorHelp(root)
	}

	return root.Execute()
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%syoutube2text%s: YouTube audio to CSV transcript %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sFetches audio, splits on silence, recognizes each chunk, writes text,chunk rows.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  youtube2text [command] [flags]\n\n")

		write("%sKey commands%s\n", bold, reset)
		writeln("  url <video-url>             fetch + transcribe (alias: transcribe)")
		writeln("  fetch <video-url>           fetch audio only")
		writeln("  audio <file>                transcribe a local flac/wav file")
		writeln("  show <transcript>           print a transcript as a table")
		writeln("  doctor                      check ffmpeg/yt-dlp/model/output root")
		writeln("  setup                       create dirs, download default whisper model")
		writeln("  models list|download|set    manage whisper.cpp models")
		writeln("  config                      print effective config")
		writeln("")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  -n, --name <name|path>  audio name (default: timestamp)")
		writeln("  -f, --format flac|wav   audio format (unsupported values fall back to flac)")
		writeln("  -b, --backend <name>    default (google), openai, whisper")
		writeln("  -o, --output <dir>      output root (default ~/youtube2text)")
		writeln("  -c, --config <path>     config file (default ~/.config/youtube2text/config.toml)")
		writeln("  Env: YOUTUBE2TEXT_OUTPUT, YOUTUBE2TEXT_BACKEND, YOUTUBE2TEXT_FORMAT,")
		writeln("       YOUTUBE2TEXT_LOG_LEVEL=debug (or LOGLEVEL), YOUTUBE2TEXT_LOG_FORMAT=json")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln("  youtube2text url https://youtu.be/dQw4w9WgXcQ -n rick")
		writeln("  youtube2text url https://youtu.be/dQw4w9WgXcQ -f wav -b whisper --show")
		writeln("  youtube2text audio ~/youtube2text/audio/rick.flac")
		writeln("  youtube2text show rick")
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
