package main

import (
	"fmt"
	"os"

	"youtube2text/internal/config"
)

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}
	fmt.Printf("config=%s\n", cfg.Paths.ConfigPath)
	fmt.Printf("audio=%s text=%s chunks=%s\n", cfg.AudioDir(), cfg.TextDir(), cfg.ChunksDir())
	fmt.Printf("format=%s rate=%d channels=%d backend=%s resolver=%s\n",
		cfg.Audio.Format, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.ASR.Backend, cfg.Fetch.Resolver)
	fmt.Printf("split min_silence=%dms offset=%.1fdB keep=%dms\n",
		cfg.Split.MinSilenceMS, cfg.Split.SilenceOffsetDB, cfg.Split.KeepSilenceMS)
	fmt.Printf("hook.command=%q hook.args=%q\n", cfg.Hook.Command, cfg.Hook.Args)
}
