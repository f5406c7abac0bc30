package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"sketchboard/internal/client"
	"sketchboard/internal/config"
	"sketchboard/internal/discovery"
	"sketchboard/internal/export"
	"sketchboard/internal/server"
	"sketchboard/internal/store"
	"sketchboard/internal/version"
)

// backend is where versions live for one run, remote or local.
type backend struct {
	store  version.Store
	ident  version.Identity
	events <-chan version.Event
	// client is set for remote backends only.
	client *client.Client
	close  func()
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	if cfg.Client.Storage == config.StorageLocal {
		return openLocal(ctx, cfg, log)
	}
	return openRemote(ctx, cfg, log)
}

func openRemote(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	base := cfg.Client.APIURL
	if cfg.Client.Discover {
		found, err := client.Discover(ctx, discovery.DefaultTimeout)
		if err != nil {
			log.Warn("server discovery failed, using configured api url", slog.String("api", base), slog.Any("err", err))
		} else {
			log.Info("discovered sketch server", slog.String("api", found))
			base = found
		}
	}
	c, err := client.New(client.Options{
		BaseURL:   base,
		Timeout:   cfg.Client.Timeout,
		TokenFile: cfg.Client.TokenFile,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Health(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.BaseURL(), err)
	}
	if cfg.Client.ResetToken {
		if err := c.Forget(); err != nil {
			return nil, err
		}
		log.Info("stored token dropped")
	}
	ident, err := c.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.BaseURL(), err)
	}
	log.Info("connected to sketch server", slog.String("api", c.BaseURL()), slog.String("user", ident.UserID))

	feedCtx, cancel := context.WithCancel(ctx)
	events, err := c.Events(feedCtx, ident)
	if err != nil {
		log.Warn("version feed unavailable", slog.Any("err", err))
		events = nil
	}
	return &backend{store: c, ident: ident, events: events, client: c, close: cancel}, nil
}

// openLocal opens the database directly. The local user id is kept next to
// the token file so versions survive between runs.
func openLocal(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	db := cfg.Server.Database
	if err := ensureDataDir(db.Driver, db.DSN); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	repo, err := store.Open(ctx, db.Driver, db.DSN)
	if err != nil {
		return nil, err
	}
	hub := server.NewHub(log)
	svc := store.NewService(repo, store.WithPublisher(hub), store.WithLogger(log))

	userFile := ""
	if cfg.Client.TokenFile != "" {
		userFile = cfg.Client.TokenFile + ".local"
	}
	if cfg.Client.ResetToken && userFile != "" {
		if err := os.Remove(userFile); err != nil && !os.IsNotExist(err) {
			repo.Close()
			return nil, fmt.Errorf("reset local user: %w", err)
		}
	}
	ident, err := localIdentity(ctx, svc, userFile, log)
	if err != nil {
		repo.Close()
		return nil, err
	}
	events, cancel := hub.Subscribe(ident.UserID)
	return &backend{
		store:  svc,
		ident:  ident,
		events: events,
		close: func() {
			cancel()
			repo.Close()
		},
	}, nil
}

func localIdentity(ctx context.Context, svc *store.Service, path string, log *slog.Logger) (version.Identity, error) {
	if path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			id := strings.TrimSpace(string(raw))
			if _, err := svc.User(ctx, id); err == nil {
				return version.Identity{UserID: id}, nil
			}
			log.Info("stored local user not found, creating a new one", slog.String("user", id))
		}
	}
	u, err := svc.CreateUser(ctx)
	if err != nil {
		return version.Identity{}, err
	}
	if path != "" {
		if err := export.WriteFile(path, []byte(u.ID+"\n"), 0o600); err != nil {
			log.Warn("could not persist local user", slog.Any("err", err))
		}
	}
	return version.Identity{UserID: u.ID}, nil
}
