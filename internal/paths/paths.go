// Package paths resolves where a job's audio, transcript and chunk files live.
package paths

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TimestampLayout names unnamed jobs; resolution is one second.
const TimestampLayout = "2006-01-02_15-04-05"

// TextExt is the transcript file extension.
const TextExt = "csv"

// Formats is the audio format allow-list. The first entry is the fallback.
var Formats = []string{"flac", "wav"}

// TimestampName returns a job name derived from t.
func TimestampName(t time.Time) string {
	return t.Format(TimestampLayout)
}

// NormalizeFormat returns format if it is allow-listed, otherwise the first
// allow-listed format with a warning.
func NormalizeFormat(format string, log logrus.FieldLogger) string {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	for _, ok := range Formats {
		if f == ok {
			return f
		}
	}
	if log != nil {
		log.Warnf("audio format %q not supported, falling back to %s (supported: %s)", format, Formats[0], strings.Join(Formats, ", "))
	}
	return Formats[0]
}

// Resolve turns a user-supplied name or path into a full path with extension ext.
//
// An empty name becomes a timestamp. A name without ext gets it appended. A name
// carrying a directory is kept in that directory when it exists; otherwise it
// falls back to root with a warning. A bare name is joined with root.
func Resolve(name, root, ext string, now time.Time, log logrus.FieldLogger) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = TimestampName(now)
	}
	if !HasExt(name, ext) {
		name = name + "." + ext
	}
	dir, base := filepath.Split(name)
	if dir == "" {
		return filepath.Join(root, base)
	}
	if !isDir(dir) {
		if log != nil {
			log.Warnf("directory %s does not exist, saving %s under %s", dir, base, root)
		}
		return filepath.Join(root, base)
	}
	return filepath.Join(dir, base)
}

// HasExt reports whether name ends in "."+ext, case-insensitively.
func HasExt(name, ext string) bool {
	return strings.EqualFold(strings.TrimPrefix(filepath.Ext(name), "."), ext)
}

// Stem returns the file name of path without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ChunkDir is the folder holding chunk files for the given audio artifact.
func ChunkDir(chunksRoot, audioPath string) string {
	return filepath.Join(chunksRoot, Stem(audioPath))
}

// Exists reports whether a file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
