package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"youtube2text/internal/asr"
	"youtube2text/internal/config"
	"youtube2text/internal/hook"
	"youtube2text/internal/logging"
	"youtube2text/internal/pcm"
	"youtube2text/internal/segment"
	"youtube2text/internal/transcript"

	"github.com/go-audio/audio"
	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

// synthClip is 10 s of tone with silent gaps at 3-4 s and 7-8 s.
func synthClip(silent bool) *audio.IntBuffer {
	const rate = 16000
	data := make([]int, rate*10)
	for i := range data {
		ms := i * 1000 / rate
		gap := (ms >= 3000 && ms < 4000) || (ms >= 7000 && ms < 8000)
		if silent || gap {
			continue
		}
		data[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           data,
	}
}

type fakeFetcher struct {
	calls  int
	silent bool
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, audioPath string) error {
	if _, err := os.Stat(audioPath); err == nil {
		return nil
	}
	f.calls++
	if f.err != nil {
		return f.err
	}
	return pcm.WriteWAV(audioPath, synthClip(f.silent))
}

type fakeBackend struct {
	opens  int
	closes int
	texts  map[string]string // chunk name -> text; missing means no speech
	errOn  string
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Open(ctx context.Context) (asr.Session, error) {
	b.opens++
	return &fakeSession{b}, nil
}

type fakeSession struct{ b *fakeBackend }

func (s *fakeSession) Recognize(ctx context.Context, path string) (string, error) {
	name := filepath.Base(path)
	if name == s.b.errOn {
		return "", errors.New("service unavailable")
	}
	if t, ok := s.b.texts[name]; ok {
		return t, nil
	}
	return "", asr.ErrNoSpeech
}

func (s *fakeSession) Close() error {
	s.b.closes++
	return nil
}

type recordingHook struct {
	jobs []hook.Job
}

func (h *recordingHook) Enabled() bool { return true }

func (h *recordingHook) Run(ctx context.Context, job hook.Job) error {
	h.jobs = append(h.jobs, job)
	return nil
}

type harness struct {
	p       *Pipeline
	cfg     *config.Config
	fetcher *fakeFetcher
	backend *fakeBackend
	hook    *recordingHook
	logs    *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	cfg.Output.Root = filepath.Join(root, "out")
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Paths.LogPath = filepath.Join(root, "state", "y2t.log")
	cfg.Audio.Format = "wav"

	logs := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(logs)
	logger.SetLevel(logrus.DebugLevel)

	p, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	h := &harness{
		p:       p,
		cfg:     cfg,
		fetcher: &fakeFetcher{},
		backend: &fakeBackend{texts: map[string]string{
			"chunk1.wav": "hello world",
			"chunk3.wav": "goodbye",
		}},
		hook: &recordingHook{},
		logs: logs,
	}
	p.NewFetcher = func(format string, log logrus.FieldLogger) (Fetcher, error) { return h.fetcher, nil }
	p.NewBackend = func(name string, log logrus.FieldLogger) (asr.Backend, error) {
		switch name {
		case "", "fake":
			return h.backend, nil
		}
		return nil, fmt.Errorf("%w %q", asr.ErrUnknownBackend, name)
	}
	p.Hook = h.hook
	p.Now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return h
}

func TestRunTenSecondClipYieldsThreeRows(t *testing.T) {
	h := newHarness(t)
	res, err := h.p.Run(context.Background(), Job{URL: "https://youtu.be/x", Name: "talk"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	wantAudio := filepath.Join(h.cfg.AudioDir(), "talk.wav")
	wantText := filepath.Join(h.cfg.TextDir(), "talk.csv")
	if res.Layout.Audio != wantAudio || res.Layout.Text != wantText {
		t.Fatalf("layout = %+v", res.Layout)
	}
	if res.Layout.ChunkDir != filepath.Join(h.cfg.ChunksDir(), "talk") {
		t.Fatalf("chunk dir = %s", res.Layout.ChunkDir)
	}

	rows, err := transcript.Read(wantText)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	want := []transcript.Row{
		{Text: "Hello world. ", Chunk: "chunk1.wav"},
		{Text: "None", Chunk: "chunk2.wav"},
		{Text: "Goodbye. ", Chunk: "chunk3.wav"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %+v", rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row %d = %+v want %+v", i, rows[i], want[i])
		}
		if _, err := os.Stat(filepath.Join(res.Layout.ChunkDir, rows[i].Chunk)); err != nil {
			t.Fatalf("chunk file: %v", err)
		}
	}
	if h.backend.opens != 1 || h.backend.closes != 1 {
		t.Fatalf("backend opened %d closed %d, want once per job", h.backend.opens, h.backend.closes)
	}
	if len(h.hook.jobs) != 1 || h.hook.jobs[0].Rows != 3 || h.hook.jobs[0].Transcript != wantText {
		t.Fatalf("hook jobs = %+v", h.hook.jobs)
	}
	next := flock.New(wantText + ".lock")
	if ok, err := next.TryLock(); err != nil || !ok {
		t.Fatalf("lock should be released: %v %v", ok, err)
	}
	_ = next.Unlock()
	if !strings.Contains(h.logs.String(), "job=") {
		t.Fatalf("log lines should carry job id:\n%s", h.logs.String())
	}
}

func TestRunTwiceDoesNotRewriteTranscript(t *testing.T) {
	h := newHarness(t)
	job := Job{URL: "u", Name: "twice"}
	first, err := h.p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(first.Layout.Text, past, past); err != nil {
		t.Fatal(err)
	}

	second, err := h.p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.Skipped {
		t.Fatalf("second run should short-circuit")
	}
	info, err := os.Stat(first.Layout.Text)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(past) {
		t.Fatalf("transcript rewritten: mtime %v", info.ModTime())
	}
	if h.fetcher.calls != 1 || h.backend.opens != 1 || len(h.hook.jobs) != 1 {
		t.Fatalf("stages re-ran: fetch=%d opens=%d hooks=%d", h.fetcher.calls, h.backend.opens, len(h.hook.jobs))
	}
}

func TestRunReusesExistingAudio(t *testing.T) {
	h := newHarness(t)
	audioPath := filepath.Join(h.cfg.AudioDir(), "local.wav")
	if err := pcm.WriteWAV(audioPath, synthClip(false)); err != nil {
		t.Fatal(err)
	}
	res, err := h.p.Run(context.Background(), Job{URL: "u", Name: "local"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.fetcher.calls != 0 {
		t.Fatalf("existing audio should not be fetched")
	}
	if len(res.Rows) != 3 {
		t.Fatalf("rows = %d", len(res.Rows))
	}
}

func TestRunPureSilenceWritesEmptyTranscript(t *testing.T) {
	h := newHarness(t)
	h.fetcher.silent = true
	res, err := h.p.Run(context.Background(), Job{URL: "u", Name: "quiet"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	rows, err := transcript.Read(res.Layout.Text)
	if err != nil || len(rows) != 0 {
		t.Fatalf("rows = %v err %v", rows, err)
	}
	if h.backend.opens != 0 {
		t.Fatalf("backend should not be opened for zero chunks")
	}
}

func TestRunUnknownBackendAbortsBeforeFetch(t *testing.T) {
	h := newHarness(t)
	_, err := h.p.Run(context.Background(), Job{URL: "u", Name: "x", Backend: "sphinx"})
	if !errors.Is(err, asr.ErrUnknownBackend) {
		t.Fatalf("err = %v", err)
	}
	if h.fetcher.calls != 0 {
		t.Fatalf("fetch should not run")
	}
}

func TestRunStageFailuresLeaveNoTranscript(t *testing.T) {
	cases := []struct {
		name  string
		setup func(h *harness)
		stage Stage
	}{
		{"fetch", func(h *harness) { h.fetcher.err = errors.New("video unavailable") }, StageFetching},
		{"recognize", func(h *harness) { h.backend.errOn = "chunk2.wav" }, StageRecognizing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			tc.setup(h)
			_, err := h.p.Run(context.Background(), Job{URL: "u", Name: "fail"})
			var se *StageError
			if !errors.As(err, &se) || se.Stage != tc.stage {
				t.Fatalf("err = %v want stage %s", err, tc.stage)
			}
			if _, err := os.Stat(filepath.Join(h.cfg.TextDir(), "fail.csv")); !os.IsNotExist(err) {
				t.Fatalf("transcript should not exist")
			}
			if len(h.hook.jobs) != 0 {
				t.Fatalf("hook should not run")
			}
			lockPath := filepath.Join(h.cfg.TextDir(), "fail.csv.lock")
			if _, err := os.Stat(lockPath); err != nil {
				t.Fatalf("lock file should stay in place: %v", err)
			}
			if ok, err := flock.New(lockPath).TryLock(); err != nil || !ok {
				t.Fatalf("lock should be released after failure: %v %v", ok, err)
			}
		})
	}
}

func TestRunLockedTranscript(t *testing.T) {
	h := newHarness(t)
	text := filepath.Join(h.cfg.TextDir(), "busy.csv")
	other := flock.New(text + ".lock")
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-lock: %v %v", ok, err)
	}
	defer other.Unlock()

	if _, err := h.p.Run(context.Background(), Job{URL: "u", Name: "busy"}); !errors.Is(err, ErrJobLocked) {
		t.Fatalf("err = %v", err)
	}
	if h.fetcher.calls != 0 {
		t.Fatalf("locked job should not fetch")
	}
}

func TestResolve(t *testing.T) {
	h := newHarness(t)
	log := h.p.Logger
	cases := []struct {
		name      string
		job       Job
		wantAudio string
		wantText  string
	}{
		{"timestamp", Job{}, "audio/2024-05-06_07-08-09.wav", "text/2024-05-06_07-08-09.csv"},
		{"name", Job{Name: "talk"}, "audio/talk.wav", "text/talk.csv"},
		{"ext from name", Job{Name: "talk.flac"}, "audio/talk.flac", "text/talk.csv"},
		{"fallback format", Job{Name: "talk", Format: "ogg"}, "audio/talk.flac", "text/talk.csv"},
		{"fallback keeps name ext", Job{Name: "talk.wav", Format: "ogg"}, "audio/talk.wav", "text/talk.csv"},
		{"text override", Job{Name: "talk", TextName: "notes.csv"}, "audio/talk.wav", "text/notes.csv"},
		{"missing dir", Job{Name: "/no/such/dir/talk"}, "audio/talk.wav", "text/talk.csv"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := h.p.Resolve(tc.job, log)
			if got := rel(t, h.cfg.Output.Root, l.Audio); got != tc.wantAudio {
				t.Fatalf("audio = %s want %s", got, tc.wantAudio)
			}
			if got := rel(t, h.cfg.Output.Root, l.Text); got != tc.wantText {
				t.Fatalf("text = %s want %s", got, tc.wantText)
			}
		})
	}
	if !strings.Contains(h.logs.String(), `audio format \"ogg\" not supported`) {
		t.Fatalf("fallback warning missing:\n%s", h.logs.String())
	}
}

func TestFetchAudioOnly(t *testing.T) {
	h := newHarness(t)
	path, err := h.p.FetchAudio(context.Background(), Job{URL: "u", Name: "only"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if path != filepath.Join(h.cfg.AudioDir(), "only.wav") || h.fetcher.calls != 1 {
		t.Fatalf("path = %s calls = %d", path, h.fetcher.calls)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.TextDir(), "only.csv")); !os.IsNotExist(err) {
		t.Fatalf("fetch-only should not transcribe")
	}
}

func TestTranscribeFile(t *testing.T) {
	h := newHarness(t)
	src := filepath.Join(t.TempDir(), "lecture.wav")
	if err := pcm.WriteWAV(src, synthClip(false)); err != nil {
		t.Fatal(err)
	}
	res, err := h.p.TranscribeFile(context.Background(), src, "", "")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Layout.Text != filepath.Join(h.cfg.TextDir(), "lecture.csv") {
		t.Fatalf("text = %s", res.Layout.Text)
	}
	if len(res.Rows) != 3 || h.fetcher.calls != 0 {
		t.Fatalf("rows = %d fetch = %d", len(res.Rows), h.fetcher.calls)
	}
	if _, err := h.p.TranscribeFile(context.Background(), filepath.Join(t.TempDir(), "nope.wav"), "", ""); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file err = %v", err)
	}
}

func TestNewWiresRealStages(t *testing.T) {
	cfg, _ := config.Default()
	root := t.TempDir()
	cfg.Output.Root = root
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Paths.LogPath = filepath.Join(root, "state", "log")
	p, err := New(cfg, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, d := range []string{cfg.AudioDir(), cfg.TextDir(), cfg.ChunksDir()} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Fatalf("dir %s not created", d)
		}
	}
	if _, ok := p.Segmenter.(*segment.Segmenter); !ok {
		t.Fatalf("segmenter = %T", p.Segmenter)
	}
	if _, err := p.NewBackend("sphinx", p.Logger); !errors.Is(err, asr.ErrUnknownBackend) {
		t.Fatalf("err = %v", err)
	}
}

func rel(t *testing.T, root, path string) string {
	t.Helper()
	r, err := filepath.Rel(root, path)
	if err != nil {
		t.Fatal(err)
	}
	return filepath.ToSlash(r)
}
