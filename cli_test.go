package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sketchboard/internal/auth"
	"sketchboard/internal/client"
	"sketchboard/internal/render"
	"sketchboard/internal/server"
	"sketchboard/internal/store"
	"sketchboard/internal/version"
)

// remoteEnv is a sketch server plus a config file pointing the CLI at it.
type remoteEnv struct {
	url       string
	configArg string
	tokenFile string
	exportDir string
}

func newRemoteEnv(t *testing.T) remoteEnv {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := store.Open(context.Background(), store.DriverSQLite, "file:"+filepath.Join(dir, "server.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	hub := server.NewHub(log)
	versions := store.NewService(repo, store.WithPublisher(hub), store.WithLogger(log))
	tokens, err := auth.NewTokens("cli-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	srv := server.New(server.Options{Logger: log, BodyLimit: 1 << 22}, versions, auth.NewService(tokens, versions, log), hub)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	env := remoteEnv{
		url:       ts.URL,
		configArg: filepath.Join(dir, "sketchboard.yaml"),
		tokenFile: filepath.Join(dir, "token"),
		exportDir: filepath.Join(dir, "exports"),
	}
	cfg := "client:\n  token_file: " + env.tokenFile + "\nexport:\n  directory: " + env.exportDir + "\n"
	if err := os.WriteFile(env.configArg, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return env
}

// seed saves one version as the user the CLI will resume as.
func (e remoteEnv) seed(t *testing.T) version.Version {
	t.Helper()
	c, err := client.New(client.Options{BaseURL: e.url, TokenFile: e.tokenFile})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	ctx := context.Background()
	id, err := c.Session(ctx)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	data, err := render.DataURL(render.Render(render.Frame{Width: 40, Height: 30}))
	if err != nil {
		t.Fatalf("DataURL: %v", err)
	}
	v, err := c.Create(ctx, id, "Remote sketch", data, data)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return v
}

func (e remoteEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"sketchboard", "--config", e.configArg, "--api", e.url, "--log-level", "error"}, args...)
	err := newApp(&out, &errOut).Run(context.Background(), full)
	return strings.TrimSpace(out.String()), err
}

func TestRemoteExportUsesServerRendering(t *testing.T) {
	env := newRemoteEnv(t)
	v := env.seed(t)

	path, err := env.run(t, "export", "--format", "pdf", v.ID)
	if err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	if filepath.Base(path) != "Remote_sketch.pdf" {
		t.Fatalf("pdf path = %s", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil || !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Fatalf("pdf not written: %v", err)
	}

	out := filepath.Join(env.exportDir, "sheet.png")
	if _, err := env.run(t, "versions", "gallery", "--out", out); err != nil {
		t.Fatalf("versions gallery: %v", err)
	}
	raw, err = os.ReadFile(out)
	if err != nil || !bytes.HasPrefix(raw, []byte("\x89PNG")) {
		t.Fatalf("gallery not written: %v", err)
	}

	listing, err := env.run(t, "versions", "list")
	if err != nil || !strings.Contains(listing, v.ID) || !strings.Contains(listing, "Remote sketch") {
		t.Fatalf("versions list = %q, %v", listing, err)
	}
}

func TestResetTokenStartsNewUser(t *testing.T) {
	env := newRemoteEnv(t)
	v := env.seed(t)

	listing, err := env.run(t, "--reset-token", "versions", "list")
	if err != nil {
		t.Fatalf("versions list: %v", err)
	}
	if strings.Contains(listing, v.ID) {
		t.Fatalf("reset token still sees the old user's versions")
	}
	if _, err := env.run(t, "export", v.ID); err == nil {
		t.Fatalf("export of another user's version should fail")
	}
}

func TestRemoteBackendNeedsServer(t *testing.T) {
	env := newRemoteEnv(t)
	ts := httptest.NewServer(nil)
	dead := ts.URL
	ts.Close()
	env.url = dead
	if _, err := env.run(t, "versions", "list"); err == nil || !strings.Contains(err.Error(), "connect to") {
		t.Fatalf("err = %v", err)
	}
}
