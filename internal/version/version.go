// Package version defines persisted sketch versions and the store contract
// the drawing surface saves to and loads from.
package version

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("sketch version not found")
	ErrForbidden = errors.New("unauthorized to update this sketch")
	ErrInvalid   = errors.New("missing required fields: name, thumbnail, data")
)

// Version is a named raster snapshot. Data and Thumbnail are image data URLs.
type Version struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Name      string    `json:"name"`
	Thumbnail string    `json:"thumbnail"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Patch is a partial update; nil fields are left alone.
type Patch struct {
	Name      *string `json:"name,omitempty"`
	Thumbnail *string `json:"thumbnail,omitempty"`
	Data      *string `json:"data,omitempty"`
}

// Apply returns a copy of v with p applied and UpdatedAt set to now.
func (v Version) Apply(p Patch, now time.Time) Version {
	out := v
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Thumbnail != nil {
		out.Thumbnail = *p.Thumbnail
	}
	if p.Data != nil {
		out.Data = *p.Data
	}
	out.UpdatedAt = now
	return out
}

// Summary drops the image payloads, leaving the metadata.
func (v Version) Summary() Version {
	v.Data = ""
	v.Thumbnail = ""
	return v
}

// New builds a fresh version owned by userID.
func New(userID, name, thumbnail, data string, now time.Time) (Version, error) {
	if strings.TrimSpace(name) == "" || thumbnail == "" || data == "" {
		return Version{}, ErrInvalid
	}
	return Version{
		ID:        NewID(now),
		UserID:    userID,
		Name:      name,
		Thumbnail: thumbnail,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewID returns an id of the form sketch_<unix millis>_<9 random chars>.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("sketch_%d_%s", now.UnixMilli(), suffix)
}

// Identity is the anonymous, token-backed user a session acts as. It is
// obtained once and passed to every store call.
type Identity struct {
	UserID string `json:"id"`
	Token  string `json:"accessToken"`
}

func (i Identity) Valid() bool { return i.UserID != "" }

// Store persists versions for one identity at a time.
type Store interface {
	Create(ctx context.Context, id Identity, name, thumbnail, data string) (Version, error)
	Get(ctx context.Context, id Identity, versionID string) (Version, error)
	List(ctx context.Context, id Identity) ([]Version, error)
	Update(ctx context.Context, id Identity, versionID string, patch Patch) (Version, error)
	Delete(ctx context.Context, id Identity, versionID string) error
}

// EventType names a change on the version list.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is pushed to subscribers whenever a user's versions change. The
// version carries metadata only.
type Event struct {
	Type    EventType `json:"type"`
	Version Version   `json:"version"`
}
