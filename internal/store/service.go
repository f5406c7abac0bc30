package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sketchboard/internal/version"
)

var ErrUserNotFound = errors.New("user not found")

// Publisher receives a change event after every successful write.
type Publisher interface {
	Publish(userID string, ev version.Event)
}

type ServiceOption func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.pub = p }
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// Service holds the version use cases on top of a Repository. It
// implements version.Store for callers running in the same process.
type Service struct {
	repo *Repository
	now  func() time.Time
	pub  Publisher
	log  *slog.Logger
}

var _ version.Store = (*Service)(nil)

func NewService(repo *Repository, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "store"))
	return s
}

// CreateUser registers a new anonymous user with a random id.
func (s *Service) CreateUser(ctx context.Context) (User, error) {
	now := s.now().UTC()
	u := User{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return User{}, err
	}
	s.log.Info("user created", slog.String("user", u.ID))
	return u, nil
}

func (s *Service) User(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) Create(ctx context.Context, id version.Identity, name, thumbnail, data string) (version.Version, error) {
	v, err := version.New(id.UserID, strings.TrimSpace(name), thumbnail, data, s.now().UTC())
	if err != nil {
		return version.Version{}, err
	}
	if err := s.repo.InsertVersion(ctx, v); err != nil {
		return version.Version{}, err
	}
	s.log.Info("version created", slog.String("user", id.UserID), slog.String("id", v.ID), slog.String("name", v.Name))
	s.publish(id.UserID, version.EventCreated, v)
	return v, nil
}

// Get returns a version only to its owner; other users see ErrNotFound.
func (s *Service) Get(ctx context.Context, id version.Identity, versionID string) (version.Version, error) {
	v, err := s.repo.GetVersion(ctx, versionID)
	if err != nil {
		return version.Version{}, err
	}
	if v.UserID != id.UserID {
		return version.Version{}, version.ErrNotFound
	}
	return v, nil
}

func (s *Service) List(ctx context.Context, id version.Identity) ([]version.Version, error) {
	return s.repo.ListVersions(ctx, id.UserID)
}

// Update applies patch to a version. A missing version is ErrNotFound and
// one owned by somebody else is ErrForbidden.
func (s *Service) Update(ctx context.Context, id version.Identity, versionID string, patch version.Patch) (version.Version, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return version.Version{}, fmt.Errorf("%w: empty name", version.ErrInvalid)
	}
	v, err := s.repo.GetVersion(ctx, versionID)
	if err != nil {
		return version.Version{}, err
	}
	if v.UserID != id.UserID {
		return version.Version{}, version.ErrForbidden
	}
	v = v.Apply(patch, s.now().UTC())
	if err := s.repo.UpdateVersion(ctx, v); err != nil {
		return version.Version{}, err
	}
	s.log.Info("version updated", slog.String("user", id.UserID), slog.String("id", v.ID))
	s.publish(id.UserID, version.EventUpdated, v)
	return v, nil
}

func (s *Service) Delete(ctx context.Context, id version.Identity, versionID string) error {
	if err := s.repo.DeleteVersion(ctx, id.UserID, versionID); err != nil {
		return err
	}
	s.log.Info("version deleted", slog.String("user", id.UserID), slog.String("id", versionID))
	s.publish(id.UserID, version.EventDeleted, version.Version{ID: versionID})
	return nil
}

func (s *Service) publish(userID string, t version.EventType, v version.Version) {
	if s.pub == nil {
		return
	}
	v = v.Summary()
	v.UserID = ""
	s.pub.Publish(userID, version.Event{Type: t, Version: v})
}
