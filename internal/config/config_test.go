package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Server.Addr != def.Server.Addr || cfg.Canvas.Width != def.Canvas.Width || !cfg.UI.Confirmations {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Client.Timeout != 10*time.Second || cfg.Server.TokenExpiry != 7*24*time.Hour {
		t.Fatalf("durations = %v %v", cfg.Client.Timeout, cfg.Server.TokenExpiry)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	body := `
server:
  addr: ":9000"
  token_expiry: 48h
  database:
    driver: pgx
    dsn: postgres://localhost/sketches
client:
  storage: local
  timeout: 3s
canvas:
  width: 640
  color: "#ff0000"
export:
  directory: out
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.TokenExpiry != 48*time.Hour || cfg.Server.Database.Driver != "pgx" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Client.Storage != StorageLocal || cfg.Client.Timeout != 3*time.Second {
		t.Fatalf("client = %+v", cfg.Client)
	}
	if cfg.Canvas.Width != 640 || cfg.Canvas.Height != 800 || cfg.Canvas.Color != "#ff0000" {
		t.Fatalf("canvas = %+v", cfg.Canvas)
	}
	if !filepath.IsAbs(cfg.Export.Directory) || filepath.Base(cfg.Export.Directory) != "out" {
		t.Fatalf("export dir = %q", cfg.Export.Directory)
	}
	if cfg.Log.Level == nil || *cfg.Log.Level != "debug" {
		t.Fatalf("log level not read")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []string{
		"client:\n  storage: cloud\n",
		"canvas:\n  width: -1\n",
		"canvas:\n  color: blue\n",
		"canvas:\n  tool: clear\n",
		"canvas:\n  history_limit: 1\n",
		"log:\n  sink: tape\n",
		"server: [",
	}
	for _, body := range cases {
		path := filepath.Join(t.TempDir(), "cfg.yaml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("Load(%q) should fail", body)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SKETCHBOARD_ADDR", ":7777")
	t.Setenv("SKETCHBOARD_CORS_ORIGINS", "http://a, http://b ,")
	t.Setenv("SKETCHBOARD_MDNS", "true")
	t.Setenv("SKETCHBOARD_TIMEOUT", "250ms")
	t.Setenv("SKETCHBOARD_STORAGE", "local")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7777" || !cfg.Server.MDNS || cfg.Client.Timeout != 250*time.Millisecond {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if strings.Join(cfg.Server.CORSOrigins, "|") != "http://a|http://b" {
		t.Fatalf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Client.Storage != StorageLocal {
		t.Fatalf("storage = %q", cfg.Client.Storage)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandPath("~/x/y"); got != filepath.Join(home, "x", "y") {
		t.Fatalf("ExpandPath(~/x/y) = %q", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Fatalf("ExpandPath(\"\") = %q", got)
	}
	if got := ExpandPath("rel"); !filepath.IsAbs(got) {
		t.Fatalf("relative path not made absolute: %q", got)
	}
}

func TestExportPathAndBodyLimit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	cfg := Default()
	cfg.Export.Directory = dir
	if got := cfg.ExportPath("a.png"); got != filepath.Join(dir, "a.png") {
		t.Fatalf("ExportPath = %q", got)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("export dir not created: %v", err)
	}
	cfg.Export.Directory = ""
	if got := cfg.ExportPath("a.png"); got != "a.png" {
		t.Fatalf("ExportPath without dir = %q", got)
	}
	if (ServerConfig{}).BodyLimit() != 10<<20 || (ServerConfig{BodyLimitMB: 2}).BodyLimit() != 2<<20 {
		t.Fatalf("BodyLimit mismatch")
	}
}
