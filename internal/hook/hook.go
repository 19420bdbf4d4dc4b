// Package hook runs the optional command configured to follow a finished transcript.
package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"youtube2text/internal/config"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// Job describes a finished transcript.
type Job struct {
	Transcript string
	Audio      string
	URL        string // empty for local audio
	Rows       int
}

// Runner executes the configured hook.
type Runner struct {
	cfg    *config.Config
	logger logrus.FieldLogger
}

// NewRunner returns a Runner for cfg.Hook.
func NewRunner(cfg *config.Config, logger logrus.FieldLogger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// Enabled reports whether a hook command is configured.
func (r *Runner) Enabled() bool {
	return strings.TrimSpace(r.cfg.Hook.Command) != ""
}

// Run executes the hook with the transcript path as the final argument.
func (r *Runner) Run(ctx context.Context, job Job) error {
	cmdStr := r.cfg.Hook.Command
	if cmdStr == "" {
		return fmt.Errorf("no hook.command configured")
	}
	args, err := ParseArgs(r.cfg.Hook.Args)
	if err != nil {
		return fmt.Errorf("parse hook.args: %w", err)
	}
	args = append(args, job.Transcript)

	runCtx := ctx
	var cancel context.CancelFunc
	if r.cfg.Hook.TimeoutSec > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(float64(time.Second)*r.cfg.Hook.TimeoutSec))
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, cmdStr, args...)
	cmd.Env = os.Environ()
	for k, v := range r.cfg.Hook.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env,
		"YOUTUBE2TEXT_TRANSCRIPT="+job.Transcript,
		"YOUTUBE2TEXT_AUDIO="+job.Audio,
		"YOUTUBE2TEXT_URL="+job.URL,
		"YOUTUBE2TEXT_ROWS="+strconv.Itoa(job.Rows),
	)

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		r.logger.Infof("hook output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}
	return nil
}

// ParseArgs splits hook.args with shell quoting rules.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}
