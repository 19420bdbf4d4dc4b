// Package doctor checks that the tools and files a job needs are in place.
package doctor

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"youtube2text/internal/config"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks relevant to cfg.
func Run(cfg *config.Config) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkExecutable("ffmpeg", cfg.Fetch.FFmpeg),
		checkWritable("output root", cfg.Output.Root),
	}
	switch strings.ToLower(cfg.Fetch.Resolver) {
	case "yt-dlp", "ytdlp":
		results = append(results, checkExecutable("yt-dlp", cfg.Fetch.YtDlp))
	}
	switch strings.ToLower(cfg.ASR.Backend) {
	case "whisper", "local":
		results = append(results, checkFile("model file", cfg.ASR.ModelPath))
	case "openai":
		results = append(results, checkSet("openai.api_key", cfg.OpenAI.APIKey))
	default:
		results = append(results, checkSet("google.key", cfg.Google.Key))
	}
	if cfg.Hook.Command != "" {
		results = append(results, checkExecutable("hook.command", cfg.Hook.Command))
	}
	return results
}

// OK reports whether every result passed.
func OK(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkSet(label, value string) Result {
	if strings.TrimSpace(value) == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	return Result{Name: label, Pass: true, Detail: "set"}
}

func checkExecutable(label, cmd string) Result {
	if cmd == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; point it at an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkWritable(label, dir string) Result {
	if dir == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return Result{Name: label, Pass: true, Detail: filepath.Clean(dir)}
}
