package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnvOverrides(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}

	t.Setenv("YOUTUBE2TEXT_OUTPUT", "/tmp/y2t")
	t.Setenv("YOUTUBE2TEXT_BACKEND", "whisper")
	t.Setenv("YOUTUBE2TEXT_LOG_FORMAT", "json")
	t.Setenv("LOGLEVEL", "warn")
	t.Setenv("YOUTUBE2TEXT_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Output.Root != "/tmp/y2t" {
		t.Fatalf("output root override failed: %q", cfg.Output.Root)
	}
	if cfg.ASR.Backend != "whisper" {
		t.Fatalf("backend override failed: %q", cfg.ASR.Backend)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides failed: %+v", cfg.Logging)
	}
}

func TestLegacyLogLevelEnv(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	t.Setenv("LOGLEVEL", "ERROR")
	applyEnvOverrides(cfg)
	if cfg.Logging.Level != "ERROR" {
		t.Fatalf("LOGLEVEL not applied: %q", cfg.Logging.Level)
	}
}

func TestDefaultsMatchSplitContract(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if cfg.Split.MinSilenceMS != 500 || cfg.Split.KeepSilenceMS != 500 || cfg.Split.SilenceOffsetDB != 14 {
		t.Fatalf("unexpected split defaults: %+v", cfg.Split)
	}
	if cfg.Audio.Format != "flac" {
		t.Fatalf("default format = %q", cfg.Audio.Format)
	}
	if filepath.Base(cfg.Output.Root) != "youtube2text" {
		t.Fatalf("default output root = %q", cfg.Output.Root)
	}
}

func TestLoadWritesTemplateWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Paths.ConfigPath != path {
		t.Fatalf("config path = %q", cfg.Paths.ConfigPath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Fetch.FFmpeg = "/opt/bin/ffmpeg"
	cfg.Split.MinSilenceMS = 700

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Fetch.FFmpeg != "/opt/bin/ffmpeg" || loaded.Split.MinSilenceMS != 700 {
		t.Fatalf("values did not persist: %+v %+v", loaded.Fetch, loaded.Split)
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Output.Root = filepath.Join(root, "out")
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Paths.LogPath = filepath.Join(root, "state", "y2t.log")

	if err := EnsureDirs(cfg); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, dir := range []string{cfg.AudioDir(), cfg.TextDir(), cfg.ChunksDir(), cfg.Paths.StateDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected dir %s: %v", dir, err)
		}
	}
}

func TestLoadDotEnvIgnoresMissing(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}

func TestLoadDotEnvSetsVars(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("Y2T_TEST_DOTENV=hello\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("Y2T_TEST_DOTENV", "")
	os.Unsetenv("Y2T_TEST_DOTENV")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("Y2T_TEST_DOTENV"); got != "hello" {
		t.Fatalf("env = %q", got)
	}
}
