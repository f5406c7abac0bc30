package version

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

func TestNewValidates(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := [][3]string{
		{"", "t", "d"},
		{"  ", "t", "d"},
		{"n", "", "d"},
		{"n", "t", ""},
	}
	for _, c := range cases {
		if _, err := New("u1", c[0], c[1], c[2], now); !errors.Is(err, ErrInvalid) {
			t.Fatalf("New(%q,%q,%q) err = %v", c[0], c[1], c[2], err)
		}
	}
	v, err := New("u1", "first", "thumb", "data", now)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v.CreatedAt != now || v.UpdatedAt != now || v.UserID != "u1" {
		t.Fatalf("unexpected version %+v", v)
	}
}

func TestNewIDFormat(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewID(now)
	if !regexp.MustCompile(`^sketch_1700000000123_[0-9a-f]{9}$`).MatchString(id) {
		t.Fatalf("unexpected id %q", id)
	}
	if NewID(now) == id {
		t.Fatalf("ids must not repeat")
	}
}

func TestApplyIsPartial(t *testing.T) {
	created := time.Unix(100, 0)
	v := Version{ID: "a", Name: "old", Thumbnail: "t0", Data: "d0", CreatedAt: created, UpdatedAt: created}
	name := "new"
	later := time.Unix(200, 0)
	out := v.Apply(Patch{Name: &name}, later)

	if out.Name != "new" || out.Thumbnail != "t0" || out.Data != "d0" {
		t.Fatalf("unexpected patch result %+v", out)
	}
	if !out.UpdatedAt.Equal(later) || !out.CreatedAt.Equal(created) {
		t.Fatalf("timestamps wrong: %+v", out)
	}
	if v.Name != "old" {
		t.Fatalf("Apply mutated the receiver")
	}
}

func TestSummaryDropsPayload(t *testing.T) {
	v := Version{ID: "a", Name: "n", Thumbnail: "t", Data: "d"}
	s := v.Summary()
	if s.Data != "" || s.Thumbnail != "" || s.Name != "n" {
		t.Fatalf("summary = %+v", s)
	}
}
