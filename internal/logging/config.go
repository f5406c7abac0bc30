// Package logging builds the process wide slog logger from configuration.
package logging

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type Sink string

const (
	SinkStderr Sink = "stderr"
	SinkFile   Sink = "file"
	SinkNone   Sink = "none"
)

const (
	EnvLogLevel      = "SKETCHBOARD_LOG_LEVEL"
	EnvLogFormat     = "SKETCHBOARD_LOG_FORMAT"
	EnvLogSink       = "SKETCHBOARD_LOG_SINK"
	EnvLogFile       = "SKETCHBOARD_LOG_FILE"
	EnvLogMaxSizeMB  = "SKETCHBOARD_LOG_MAX_SIZE_MB"
	EnvLogMaxBackups = "SKETCHBOARD_LOG_MAX_BACKUPS"
	EnvLogCompress   = "SKETCHBOARD_LOG_COMPRESS"
)

// Config fields are pointers so an unset value can be told apart from a
// zero one when layering file, env and defaults.
type Config struct {
	Level  *string `yaml:"level,omitempty"`
	Format *string `yaml:"format,omitempty"`
	Sink   *string `yaml:"sink,omitempty"`
	File   *string `yaml:"file,omitempty"`

	MaxSizeMB  *int  `yaml:"max_size_mb,omitempty"`
	MaxBackups *int  `yaml:"max_backups,omitempty"`
	Compress   *bool `yaml:"compress,omitempty"`
}

// Mode picks the defaults: the drawing UI owns the terminal so it logs to
// a file, the server logs to stderr.
type Mode uint8

const (
	ModeCLI Mode = iota + 1
	ModeDraw
	ModeServer
)

func (m Mode) String() string {
	switch m {
	case ModeDraw:
		return "draw"
	case ModeServer:
		return "server"
	default:
		return "cli"
	}
}

func DefaultConfig(mode Mode) Config {
	level := "warn"
	sink := string(SinkStderr)
	format := string(FormatText)
	switch mode {
	case ModeDraw:
		level = "info"
		sink = string(SinkFile)
	case ModeServer:
		level = "info"
		format = string(FormatJSON)
	}
	maxSizeMB := 10
	maxBackups := 3
	compress := true
	return Config{
		Level:      &level,
		Format:     &format,
		Sink:       &sink,
		MaxSizeMB:  &maxSizeMB,
		MaxBackups: &maxBackups,
		Compress:   &compress,
	}
}

// Merge returns base with every field set in override replacing it.
func Merge(base, override Config) Config {
	out := base
	if override.Level != nil {
		out.Level = override.Level
	}
	if override.Format != nil {
		out.Format = override.Format
	}
	if override.Sink != nil {
		out.Sink = override.Sink
	}
	if override.File != nil {
		out.File = override.File
	}
	if override.MaxSizeMB != nil {
		out.MaxSizeMB = override.MaxSizeMB
	}
	if override.MaxBackups != nil {
		out.MaxBackups = override.MaxBackups
	}
	if override.Compress != nil {
		out.Compress = override.Compress
	}
	return out
}

// WithEnv applies the SKETCHBOARD_LOG_* variables over c.
func (c Config) WithEnv() Config {
	for env, dst := range map[string]**string{
		EnvLogLevel:  &c.Level,
		EnvLogFormat: &c.Format,
		EnvLogSink:   &c.Sink,
		EnvLogFile:   &c.File,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = &v
		}
	}
	for env, dst := range map[string]**int{
		EnvLogMaxSizeMB:  &c.MaxSizeMB,
		EnvLogMaxBackups: &c.MaxBackups,
	} {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(env))); err == nil {
			*dst = &n
		}
	}
	if raw := strings.TrimSpace(os.Getenv(EnvLogCompress)); raw != "" {
		v := true
		switch strings.ToLower(raw) {
		case "0", "false", "no", "off":
			v = false
		}
		c.Compress = &v
	}
	return c
}

// Normalize lowercases the enum fields, drops blank ones and validates the
// result. Negative rotation limits mean no limit.
func (c Config) Normalize() (Config, error) {
	for _, s := range []**string{&c.Level, &c.Format, &c.Sink} {
		if *s == nil {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(**s))
		if v == "" {
			*s = nil
		} else {
			*s = &v
		}
	}
	if c.File != nil {
		if v := strings.TrimSpace(*c.File); v == "" {
			c.File = nil
		} else {
			c.File = &v
		}
	}
	for _, n := range []**int{&c.MaxSizeMB, &c.MaxBackups} {
		if *n != nil && **n < 0 {
			zero := 0
			*n = &zero
		}
	}
	return c, c.Validate()
}

var allowed = map[string][]string{
	"level":  {"debug", "info", "warn", "warning", "error"},
	"format": {string(FormatText), string(FormatJSON)},
	"sink":   {string(SinkStderr), string(SinkFile), string(SinkNone)},
}

func (c Config) Validate() error {
	for _, f := range []struct {
		name  string
		value *string
	}{{"level", c.Level}, {"format", c.Format}, {"sink", c.Sink}} {
		if f.value != nil && !slices.Contains(allowed[f.name], *f.value) {
			return fmt.Errorf("log.%s: invalid %q", f.name, *f.value)
		}
	}
	return nil
}
