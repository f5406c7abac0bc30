package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type InitOptions struct {
	App     string
	Version string
	Mode    Mode
	// DefaultFile is used by the file sink when the config names no file.
	DefaultFile string
}

// Init layers cfg and the environment over the mode defaults, installs the
// result as slog's default logger and returns it with a close function for
// the sink.
func Init(cfg Config, opts InitOptions) (*slog.Logger, func() error, error) {
	if opts.App == "" {
		opts.App = "sketchboard"
	}
	if opts.Mode == 0 {
		opts.Mode = ModeCLI
	}
	cfg = Merge(DefaultConfig(opts.Mode), cfg).WithEnv()
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, nil, err
	}
	logger, closeFn, err := Build(cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// Build creates a logger from an already normalized config.
func Build(cfg Config, opts InitOptions) (*slog.Logger, func() error, error) {
	sink := SinkStderr
	if cfg.Sink != nil {
		sink = Sink(*cfg.Sink)
	}
	w, closeFn, err := resolveWriter(cfg, sink, opts.DefaultFile)
	if err != nil {
		return nil, nil, err
	}
	hopts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if cfg.Format != nil && Format(*cfg.Format) == FormatJSON {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	logger := slog.New(h).With(slog.String("app", opts.App), slog.String("mode", opts.Mode.String()))
	if opts.Version != "" {
		logger = logger.With(slog.String("version", opts.Version))
	}
	return logger, closeFn, nil
}

func ParseLevel(value *string) slog.Level {
	if value == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(strings.TrimSpace(*value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func resolveWriter(cfg Config, sink Sink, defaultFile string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch sink {
	case SinkNone:
		return io.Discard, noop, nil
	case SinkStderr:
		return os.Stderr, noop, nil
	case SinkFile:
		path := defaultFile
		if cfg.File != nil {
			path = *cfg.File
		}
		if path == "" {
			dir, err := os.UserCacheDir()
			if err != nil {
				return nil, nil, fmt.Errorf("logging: cache dir: %w", err)
			}
			path = filepath.Join(dir, "sketchboard", "sketchboard.log")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("logging: create log dir: %w", err)
		}
		rot := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    derefInt(cfg.MaxSizeMB, 10),
			MaxBackups: derefInt(cfg.MaxBackups, 3),
			Compress:   cfg.Compress == nil || *cfg.Compress,
		}
		return rot, rot.Close, nil
	}
	return nil, nil, fmt.Errorf("logging: unknown sink %q", sink)
}

func derefInt(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
