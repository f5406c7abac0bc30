package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"sketchboard/internal/auth"
	"sketchboard/internal/config"
	"sketchboard/internal/export"
	"sketchboard/internal/logging"
	"sketchboard/internal/render"
	"sketchboard/internal/server"
	"sketchboard/internal/store"
)

var appVersion = "dev"

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "sketchboard",
		Usage:     "freehand sketching with saved versions",
		Version:   appVersion,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file (default ~/" + config.FileName + ")"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "api", Usage: "sketch server url"},
			&cli.BoolFlag{Name: "local", Usage: "open the database directly instead of a server"},
			&cli.BoolFlag{Name: "discover", Usage: "look for a sketch server on the local network"},
			&cli.BoolFlag{Name: "reset-token", Usage: "forget the stored identity and start as a new user"},
			&cli.DurationFlag{Name: "timeout", Usage: "server request timeout"},
			&cli.StringFlag{Name: "export-dir", Usage: "directory exports are written to"},
		},
		Action: runDraw,
		Commands: []*cli.Command{
			{
				Name:   "draw",
				Usage:  "open the drawing surface (default)",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "no-confirm", Usage: "skip confirmation prompts"}},
				Action: runDraw,
			},
			{
				Name:  "serve",
				Usage: "run the sketch server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address"},
					&cli.StringFlag{Name: "db-driver", Usage: "sqlite or pgx"},
					&cli.StringFlag{Name: "db-dsn", Usage: "database connection string"},
					&cli.BoolFlag{Name: "mdns", Usage: "advertise the server on the local network"},
				},
				Action: runServe,
			},
			{
				Name:      "export",
				Usage:     "write a saved version to a PNG or PDF file",
				ArgsUsage: "<version-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "png", Usage: "png or pdf"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file"},
				},
				Action: runExport,
			},
			{
				Name:  "versions",
				Usage: "manage saved versions",
				Commands: []*cli.Command{
					{Name: "list", Usage: "list saved versions", Action: runVersionsList},
					{Name: "delete", Usage: "delete a saved version", ArgsUsage: "<version-id>", Action: runVersionsDelete},
					{
						Name:   "gallery",
						Usage:  "render a contact sheet of every version",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file"}},
						Action: runVersionsGallery,
					},
				},
			},
		},
	}
}

// setup loads the config and starts logging for one command.
func setup(cmd *cli.Command, mode logging.Mode) (config.Config, *slog.Logger, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	log, closeLog, err := logging.Init(cfg.Log, logging.InitOptions{
		App:     "sketchboard",
		Version: appVersion,
		Mode:    mode,
	})
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, log, func() { _ = closeLog() }, nil
}

func runDraw(ctx context.Context, cmd *cli.Command) error {
	cfg, log, closeLog, err := setup(cmd, logging.ModeDraw)
	if err != nil {
		return err
	}
	defer closeLog()

	m, cleanup := initialModel(ctx, cfg, log)
	defer cleanup()
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, log, closeLog, err := setup(cmd, logging.ModeServer)
	if err != nil {
		return err
	}
	defer closeLog()

	db := cfg.Server.Database
	if err := ensureDataDir(db.Driver, db.DSN); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	repo, err := store.Open(ctx, db.Driver, db.DSN)
	if err != nil {
		return err
	}
	defer repo.Close()

	hub := server.NewHub(log)
	versions := store.NewService(repo, store.WithPublisher(hub), store.WithLogger(log))
	secret := cfg.Server.JWTSecret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		log.Warn("no jwt secret configured, issued tokens will not survive a restart")
	}
	tokens, err := auth.NewTokens(secret, cfg.Server.TokenExpiry)
	if err != nil {
		return err
	}
	srv := server.New(server.Options{
		Addr:        cfg.Server.Addr,
		BodyLimit:   cfg.Server.BodyLimit(),
		CORSOrigins: cfg.Server.CORSOrigins,
		Advertise:   cfg.Server.MDNS,
		Instance:    cfg.Server.Instance,
		Logger:      log,
	}, versions, auth.NewService(tokens, versions, log), hub)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info("starting sketch server", slog.String("addr", cfg.Server.Addr), slog.String("driver", repo.Driver()))
	return srv.Run(ctx)
}

// withBackend runs fn against the configured store. Errors out when no
// store can be reached.
func withBackend(ctx context.Context, cmd *cli.Command, fn func(config.Config, *backend) error) error {
	cfg, log, closeLog, err := setup(cmd, logging.ModeCLI)
	if err != nil {
		return err
	}
	defer closeLog()
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()
	return fn(cfg, b)
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	arg := strings.TrimSpace(cmd.Args().First())
	if arg == "" {
		return "", fmt.Errorf("%s: missing %s", cmd.Name, name)
	}
	return arg, nil
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "<version-id>")
	if err != nil {
		return err
	}
	format := strings.ToLower(cmd.String("format"))
	if format != "png" && format != "pdf" {
		return fmt.Errorf("export: unknown format %q", format)
	}
	return withBackend(ctx, cmd, func(cfg config.Config, b *backend) error {
		v, err := b.store.Get(ctx, b.ident, id)
		if err != nil {
			return err
		}
		out := cmd.String("out")
		if out == "" {
			out = cfg.ExportPath(export.FileName(v.Name, "."+format))
		}
		switch {
		case format == "pdf" && b.client != nil:
			// The server renders the PDF.
			var buf bytes.Buffer
			if err = b.client.PDF(ctx, b.ident, id, &buf); err == nil {
				err = export.WriteFile(out, buf.Bytes(), 0o644)
			}
		case format == "pdf":
			err = writePDF(out, v)
		default:
			var data []byte
			if data, err = render.DataURLBytes(v.Data); err == nil {
				err = export.WriteFile(out, data, 0o644)
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.Root().Writer, out)
		return nil
	})
}

func runVersionsList(ctx context.Context, cmd *cli.Command) error {
	return withBackend(ctx, cmd, func(_ config.Config, b *backend) error {
		vs, err := b.store.List(ctx, b.ident)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tUPDATED")
		for _, v := range vs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, truncateText(v.Name, 40), v.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	})
}

func runVersionsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "<version-id>")
	if err != nil {
		return err
	}
	return withBackend(ctx, cmd, func(_ config.Config, b *backend) error {
		if err := b.store.Delete(ctx, b.ident, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.Root().Writer, "deleted %s\n", id)
		return nil
	})
}

func runVersionsGallery(ctx context.Context, cmd *cli.Command) error {
	return withBackend(ctx, cmd, func(cfg config.Config, b *backend) error {
		vs, err := b.store.List(ctx, b.ident)
		if err != nil {
			return err
		}
		out := cmd.String("out")
		if out == "" {
			out = cfg.ExportPath("gallery.png")
		}
		if len(vs) == 0 {
			return fmt.Errorf("no saved sketches to export")
		}
		if b.client != nil {
			var buf bytes.Buffer
			if err := b.client.Gallery(ctx, b.ident, cfg.Export.GalleryColumns, &buf); err != nil {
				return err
			}
			err = export.WriteFile(out, buf.Bytes(), 0o644)
		} else {
			err = writeGallery(out, vs, cfg.Export.GalleryColumns)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.Root().Writer, out)
		return nil
	})
}
