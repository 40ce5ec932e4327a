// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup.
type Options struct {
	Verbose bool
	// File, when set, receives a copy of every record in a size-rotated file.
	File       string
	MaxSizeMB  int // megabytes before rotation; 0 uses 10
	MaxBackups int // rotated files kept; 0 uses 3
	// Writer is the console destination. Defaults to os.Stderr.
	Writer io.Writer
}

// Setup builds a text logger from opts. The returned closer releases the
// log file and must be called on shutdown; it is a no-op without a file.
func Setup(opts Options) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if opts.Writer != nil {
		w = opts.Writer
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   filepath.Clean(opts.File),
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     7, // days
		}
		w = io.MultiWriter(w, rotating)
		closer = rotating
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
