// Package client talks to a sketch server. Client implements version.Store
// so the drawing surface can save to a remote server the same way it saves
// to a local database.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sketchboard/internal/version"
)

const DefaultTimeout = 10 * time.Second

// APIError is a non 2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("api request failed: %d %s", e.Status, e.Message)
}

// Unwrap maps status codes onto the version errors so callers can use
// errors.Is without knowing about HTTP.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return version.ErrNotFound
	case http.StatusForbidden:
		return version.ErrForbidden
	case http.StatusBadRequest:
		return version.ErrInvalid
	}
	return nil
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	// TokenFile persists the access token between runs. Empty keeps it in
	// memory only.
	TokenFile  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	base   *url.URL
	http   *http.Client
	tokens *TokenFile
	log    *slog.Logger
}

var _ version.Store = (*Client)(nil)

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("client: base url %q must be http or https", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		base:   base,
		http:   hc,
		tokens: NewTokenFile(opts.TokenFile),
		log:    opts.Logger.With(slog.String("component", "client")),
	}, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env struct {
			Error string `json:"error"`
		}
		if raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)); json.Unmarshal(raw, &env) == nil {
			apiErr.Message = env.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

func (c *Client) Create(ctx context.Context, id version.Identity, name, thumbnail, data string) (version.Version, error) {
	var v version.Version
	in := map[string]string{"name": name, "thumbnail": thumbnail, "data": data}
	err := c.do(ctx, http.MethodPost, "/api/sketches", id.Token, in, &v)
	return v, err
}

func (c *Client) Get(ctx context.Context, id version.Identity, versionID string) (version.Version, error) {
	var v version.Version
	err := c.do(ctx, http.MethodGet, "/api/sketches/"+url.PathEscape(versionID), id.Token, nil, &v)
	return v, err
}

func (c *Client) List(ctx context.Context, id version.Identity) ([]version.Version, error) {
	var list []version.Version
	if err := c.do(ctx, http.MethodGet, "/api/sketches", id.Token, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Update(ctx context.Context, id version.Identity, versionID string, patch version.Patch) (version.Version, error) {
	var v version.Version
	err := c.do(ctx, http.MethodPut, "/api/sketches/"+url.PathEscape(versionID), id.Token, patch, &v)
	return v, err
}

func (c *Client) Delete(ctx context.Context, id version.Identity, versionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/sketches/"+url.PathEscape(versionID), id.Token, nil, nil)
}

// PDF downloads the server rendered PDF of a version.
func (c *Client) PDF(ctx context.Context, id version.Identity, versionID string, w io.Writer) error {
	return c.download(ctx, "/api/sketches/"+url.PathEscape(versionID)+"/pdf", id.Token, w)
}

// Gallery downloads the contact sheet of all versions as PNG. cols <= 0
// leaves the layout to the server.
func (c *Client) Gallery(ctx context.Context, id version.Identity, cols int, w io.Writer) error {
	path := "/api/sketches/gallery.png"
	if cols > 0 {
		path += "?cols=" + strconv.Itoa(cols)
	}
	return c.download(ctx, path, id.Token, w)
}

func (c *Client) download(ctx context.Context, path, token string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("client: read %s: %w", path, err)
	}
	return nil
}

// Token endpoints.

type tokenResponse struct {
	User *struct {
		ID          string    `json:"id"`
		AccessToken string    `json:"accessToken"`
		CreatedAt   time.Time `json:"createdAt"`
	} `json:"user"`
	IsValid bool `json:"isValid"`
}

func (r tokenResponse) identity() (version.Identity, bool) {
	if !r.IsValid || r.User == nil || r.User.ID == "" {
		return version.Identity{}, false
	}
	return version.Identity{UserID: r.User.ID, Token: r.User.AccessToken}, true
}

var ErrNoIdentity = errors.New("client: server returned no identity")

// Generate asks the server for a new anonymous user and stores its token.
func (c *Client) Generate(ctx context.Context) (version.Identity, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/generate", "", nil, &resp); err != nil {
		return version.Identity{}, err
	}
	id, ok := resp.identity()
	if !ok {
		return version.Identity{}, ErrNoIdentity
	}
	if err := c.tokens.Save(id.Token); err != nil {
		c.log.Warn("could not persist token", slog.Any("err", err))
	}
	c.log.Info("generated new identity", slog.String("user", id.UserID))
	return id, nil
}

// Validate checks token with the server.
func (c *Client) Validate(ctx context.Context, token string) (version.Identity, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/validate", token, nil, &resp); err != nil {
		return version.Identity{}, err
	}
	id, ok := resp.identity()
	if !ok {
		return version.Identity{}, ErrNoIdentity
	}
	return id, nil
}

// Session returns the identity to use for this run. A stored token is
// validated first; when it is missing or rejected a new one is generated.
func (c *Client) Session(ctx context.Context) (version.Identity, error) {
	token, err := c.tokens.Load()
	if err != nil {
		c.log.Warn("could not read token file", slog.Any("err", err))
	}
	if token == "" {
		return c.Generate(ctx)
	}
	id, err := c.Validate(ctx, token)
	if err != nil {
		c.log.Info("stored token rejected, generating a new one", slog.Any("err", err))
		return c.Generate(ctx)
	}
	return id, nil
}

// Forget drops the stored token.
func (c *Client) Forget() error { return c.tokens.Remove() }
