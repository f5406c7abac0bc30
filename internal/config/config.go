// Package config loads ~/.sketchboard.yaml, layers SKETCHBOARD_*
// environment overrides on top and fills in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sketchboard/internal/logging"
	"sketchboard/internal/sketch"
)

const FileName = ".sketchboard.yaml"

const (
	StorageRemote = "remote"
	StorageLocal  = "local"
)

type Config struct {
	Server ServerConfig   `yaml:"server"`
	Client ClientConfig   `yaml:"client"`
	Canvas CanvasConfig   `yaml:"canvas"`
	Export ExportConfig   `yaml:"export"`
	UI     UIConfig       `yaml:"ui"`
	Log    logging.Config `yaml:"log"`
}

type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	Database    Database      `yaml:"database"`
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
	CORSOrigins []string      `yaml:"cors_origins"`
	BodyLimitMB int           `yaml:"body_limit_mb"`
	MDNS        bool          `yaml:"mdns"`
	Instance    string        `yaml:"instance"`
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ClientConfig struct {
	// Storage is "remote" (talk to a server) or "local" (open the database
	// directly).
	Storage   string        `yaml:"storage"`
	APIURL    string        `yaml:"api_url"`
	TokenFile string        `yaml:"token_file"`
	Timeout   time.Duration `yaml:"timeout"`
	Discover  bool          `yaml:"discover"`
	// ResetToken starts over with a new anonymous user. Command line only.
	ResetToken bool `yaml:"-"`
}

type CanvasConfig struct {
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	Color           string  `yaml:"color"`
	BrushWidth      float64 `yaml:"brush_width"`
	Tool            string  `yaml:"tool"`
	HistoryLimit    int     `yaml:"history_limit"`
	ThumbnailWidth  int     `yaml:"thumbnail_width"`
	ThumbnailHeight int     `yaml:"thumbnail_height"`
}

type ExportConfig struct {
	Directory      string `yaml:"directory"`
	GalleryColumns int    `yaml:"gallery_columns"`
}

type UIConfig struct {
	Confirmations bool `yaml:"confirmations"`
}

func Default() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".sketchboard")
	return Config{
		Server: ServerConfig{
			Addr:        ":3001",
			Database:    Database{Driver: "sqlite", DSN: "file:" + filepath.Join(dataDir, "sketches.db")},
			TokenExpiry: 7 * 24 * time.Hour,
			CORSOrigins: []string{"http://localhost:3000"},
			BodyLimitMB: 10,
		},
		Client: ClientConfig{
			Storage:   StorageRemote,
			APIURL:    "http://localhost:3001",
			TokenFile: filepath.Join(dataDir, "token"),
			Timeout:   10 * time.Second,
		},
		Canvas: CanvasConfig{
			Width:           1200,
			Height:          800,
			Color:           sketch.DefaultColor,
			BrushWidth:      sketch.DefaultWidth,
			Tool:            string(sketch.ToolPen),
			HistoryLimit:    0,
			ThumbnailWidth:  240,
			ThumbnailHeight: 160,
		},
		Export: ExportConfig{GalleryColumns: 4},
		UI:     UIConfig{Confirmations: true},
	}
}

// DefaultPath is ~/.sketchboard.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, FileName)
}

// Load reads path over the defaults. A missing file is not an error.
// Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv applies the SKETCHBOARD_* variables.
func (c *Config) ApplyEnv() {
	str := func(dst *string, env string) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
	boolean := func(dst *bool, env string) {
		if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(env))); err == nil {
			*dst = v
		}
	}
	duration := func(dst *time.Duration, env string) {
		if v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(env))); err == nil {
			*dst = v
		}
	}
	str(&c.Server.Addr, "SKETCHBOARD_ADDR")
	str(&c.Server.Database.Driver, "SKETCHBOARD_DB_DRIVER")
	str(&c.Server.Database.DSN, "SKETCHBOARD_DB_DSN")
	str(&c.Server.JWTSecret, "SKETCHBOARD_JWT_SECRET")
	duration(&c.Server.TokenExpiry, "SKETCHBOARD_TOKEN_EXPIRY")
	if v := strings.TrimSpace(os.Getenv("SKETCHBOARD_CORS_ORIGINS")); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	boolean(&c.Server.MDNS, "SKETCHBOARD_MDNS")
	str(&c.Client.Storage, "SKETCHBOARD_STORAGE")
	str(&c.Client.APIURL, "SKETCHBOARD_API_URL")
	str(&c.Client.TokenFile, "SKETCHBOARD_TOKEN_FILE")
	duration(&c.Client.Timeout, "SKETCHBOARD_TIMEOUT")
	boolean(&c.Client.Discover, "SKETCHBOARD_DISCOVER")
	str(&c.Export.Directory, "SKETCHBOARD_EXPORT_DIR")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) expandPaths() {
	c.Client.TokenFile = ExpandPath(c.Client.TokenFile)
	c.Export.Directory = ExpandPath(c.Export.Directory)
	if c.Log.File != nil {
		p := ExpandPath(*c.Log.File)
		c.Log.File = &p
	}
	if strings.HasPrefix(c.Server.Database.DSN, "file:~") {
		c.Server.Database.DSN = "file:" + ExpandPath(strings.TrimPrefix(c.Server.Database.DSN, "file:"))
	}
}

// ExpandPath resolves a leading ~ and makes the path absolute.
func ExpandPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if !filepath.IsAbs(p) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
	}
	return p
}

func (c Config) Validate() error {
	switch c.Client.Storage {
	case StorageRemote, StorageLocal:
	default:
		return fmt.Errorf("config: client.storage: invalid %q", c.Client.Storage)
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("config: canvas size %dx%d must be positive", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Canvas.BrushWidth <= 0 {
		return fmt.Errorf("config: canvas.brush_width must be positive")
	}
	if _, err := sketch.ParseColor(c.Canvas.Color); err != nil {
		return fmt.Errorf("config: canvas.color: %w", err)
	}
	if t, err := sketch.ParseTool(c.Canvas.Tool); err != nil || t == sketch.ToolClear {
		return fmt.Errorf("config: canvas.tool: invalid %q", c.Canvas.Tool)
	}
	if c.Canvas.HistoryLimit != 0 && c.Canvas.HistoryLimit < 2 {
		return fmt.Errorf("config: canvas.history_limit must be 0 or at least 2")
	}
	if _, err := c.Log.Normalize(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ExportPath places filename in the export directory, creating it.
func (c Config) ExportPath(filename string) string {
	if c.Export.Directory == "" {
		return filename
	}
	_ = os.MkdirAll(c.Export.Directory, 0o755)
	return filepath.Join(c.Export.Directory, filename)
}

// BodyLimit is the server request body limit in bytes.
func (s ServerConfig) BodyLimit() int64 {
	if s.BodyLimitMB <= 0 {
		return 10 << 20
	}
	return int64(s.BodyLimitMB) << 20
}
