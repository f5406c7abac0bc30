package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"sketchboard/internal/config"
	"sketchboard/internal/store"
)

// loadConfig reads the config file named by --config, or the default one,
// and layers command line flags over it.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if cmd.IsSet("log-level") {
		level := cmd.String("log-level")
		cfg.Log.Level = &level
	}
	if cmd.IsSet("api") {
		cfg.Client.APIURL = cmd.String("api")
		cfg.Client.Storage = config.StorageRemote
	}
	if cmd.Bool("local") {
		cfg.Client.Storage = config.StorageLocal
	}
	if cmd.Bool("reset-token") {
		cfg.Client.ResetToken = true
	}
	if cmd.Bool("discover") {
		cfg.Client.Discover = true
	}
	if cmd.IsSet("timeout") {
		cfg.Client.Timeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("addr") {
		cfg.Server.Addr = cmd.String("addr")
	}
	if cmd.IsSet("db-driver") {
		cfg.Server.Database.Driver = cmd.String("db-driver")
	}
	if cmd.IsSet("db-dsn") {
		cfg.Server.Database.DSN = cmd.String("db-dsn")
	}
	if cmd.Bool("mdns") {
		cfg.Server.MDNS = true
	}
	if cmd.IsSet("export-dir") {
		cfg.Export.Directory = config.ExpandPath(cmd.String("export-dir"))
	}
	if cmd.Bool("no-confirm") {
		cfg.UI.Confirmations = false
	}
	return cfg, cfg.Validate()
}

// ensureDataDir creates the directory of a file backed SQLite database.
func ensureDataDir(driver, dsn string) error {
	if driver != store.DriverSQLite || !strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o700)
}
