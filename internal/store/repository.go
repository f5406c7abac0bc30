// Package store persists users and sketch versions in a SQL database.
// SQLite (modernc.org/sqlite) and PostgreSQL (pgx) are supported.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"sketchboard/internal/version"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var ErrUnknownDriver = errors.New("store: unknown database driver")

// User is an anonymous account identified only by its id.
type User struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository is the SQL layer. It is safe for concurrent use.
type Repository struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and makes sure the schema exists.
func Open(ctx context.Context, driver, dsn string) (*Repository, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	case "postgres", "postgresql":
		driver = DriverPostgres
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection keeps in-memory databases shared and avoids
		// SQLITE_BUSY on writes.
		db.SetMaxOpenConns(1)
	}
	r := &Repository{db: db, driver: driver}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", driver, err)
	}
	if err := r.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Close() error { return r.db.Close() }

func (r *Repository) Driver() string { return r.driver }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sketch_versions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		thumbnail TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sketch_versions_user_id ON sketch_versions(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sketch_versions_created_at ON sketch_versions(created_at DESC)`,
}

// EnsureSchema creates the tables when they are missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r.driver == DriverSQLite {
		if _, err := r.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			return fmt.Errorf("store: enable foreign keys: %w", err)
		}
	}
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (r *Repository) rebind(q string) string {
	if r.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *Repository) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.rebind(q), args...)
}

func (r *Repository) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.rebind(q), args...)
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// Users.

func (r *Repository) CreateUser(ctx context.Context, u User) error {
	_, err := r.exec(ctx,
		`INSERT INTO users (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET updated_at = excluded.updated_at`,
		u.ID, toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: create user: %w", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	var (
		u                User
		created, updated int64
	)
	err := r.queryRow(ctx, `SELECT id, created_at, updated_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("store: get user: %w", err)
	}
	u.CreatedAt, u.UpdatedAt = fromMillis(created), fromMillis(updated)
	return u, nil
}

// Versions.

const versionColumns = `id, user_id, name, thumbnail, data, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(s scanner) (version.Version, error) {
	var (
		v                version.Version
		created, updated int64
	)
	if err := s.Scan(&v.ID, &v.UserID, &v.Name, &v.Thumbnail, &v.Data, &created, &updated); err != nil {
		return version.Version{}, err
	}
	v.CreatedAt, v.UpdatedAt = fromMillis(created), fromMillis(updated)
	return v, nil
}

func (r *Repository) InsertVersion(ctx context.Context, v version.Version) error {
	_, err := r.exec(ctx,
		`INSERT INTO sketch_versions (`+versionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.Name, v.Thumbnail, v.Data, toMillis(v.CreatedAt), toMillis(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: insert version: %w", err)
	}
	return nil
}

// GetVersion looks a version up by id regardless of owner.
func (r *Repository) GetVersion(ctx context.Context, id string) (version.Version, error) {
	v, err := scanVersion(r.queryRow(ctx,
		`SELECT `+versionColumns+` FROM sketch_versions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return version.Version{}, version.ErrNotFound
	}
	if err != nil {
		return version.Version{}, fmt.Errorf("store: get version: %w", err)
	}
	return v, nil
}

// ListVersions returns a user's versions, newest first.
func (r *Repository) ListVersions(ctx context.Context, userID string) ([]version.Version, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(
		`SELECT `+versionColumns+` FROM sketch_versions WHERE user_id = ? ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("store: list versions: %w", err)
	}
	defer rows.Close()

	out := []version.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan version: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list versions: %w", err)
	}
	return out, nil
}

func (r *Repository) UpdateVersion(ctx context.Context, v version.Version) error {
	res, err := r.exec(ctx,
		`UPDATE sketch_versions SET name = ?, thumbnail = ?, data = ?, updated_at = ? WHERE id = ?`,
		v.Name, v.Thumbnail, v.Data, toMillis(v.UpdatedAt), v.ID)
	if err != nil {
		return fmt.Errorf("store: update version: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return version.ErrNotFound
	}
	return nil
}

// DeleteVersion removes a version owned by userID.
func (r *Repository) DeleteVersion(ctx context.Context, userID, id string) error {
	res, err := r.exec(ctx, `DELETE FROM sketch_versions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete version: %w", err)
	}
	if n == 0 {
		return version.ErrNotFound
	}
	return nil
}
