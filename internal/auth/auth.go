// Package auth issues and verifies the bearer tokens that identify
// anonymous users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sketchboard/internal/store"
	"sketchboard/internal/version"
)

const (
	Issuer        = "sketch-history-board"
	Audience      = "sketch-history-board-users"
	DefaultExpiry = 7 * 24 * time.Hour
)

var (
	ErrNoToken      = errors.New("missing or invalid authorization header")
	ErrInvalidToken = errors.New("invalid or expired access token")
	ErrUnknownUser  = errors.New("user not found")
	ErrNoSecret     = errors.New("auth: signing secret is empty")
)

// Claims is the token payload.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Tokens signs and parses HS256 tokens.
type Tokens struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokens(secret string, expiry time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Tokens{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

func (t *Tokens) Sign(userID string) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer, audience and expiry and returns the
// user id carried by the token.
func (t *Tokens) Parse(token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

// Users is the part of the store the auth service needs.
type Users interface {
	CreateUser(ctx context.Context) (store.User, error)
	User(ctx context.Context, id string) (store.User, error)
}

// Service creates anonymous users and resolves tokens back to them.
type Service struct {
	tokens *Tokens
	users  Users
	log    *slog.Logger
}

func NewService(tokens *Tokens, users Users, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{tokens: tokens, users: users, log: log.With(slog.String("component", "auth"))}
}

// Session is a user together with a token that proves it.
type Session struct {
	User  store.User
	Token string
}

func (s Session) Identity() version.Identity {
	return version.Identity{UserID: s.User.ID, Token: s.Token}
}

// Issue registers a new user and signs a token for it.
func (s *Service) Issue(ctx context.Context) (Session, error) {
	u, err := s.users.CreateUser(ctx)
	if err != nil {
		return Session{}, err
	}
	token, err := s.tokens.Sign(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token}, nil
}

// Validate checks token and that its user still exists.
func (s *Service) Validate(ctx context.Context, token string) (Session, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return Session{}, err
	}
	u, err := s.users.User(ctx, userID)
	if errors.Is(err, store.ErrUserNotFound) {
		return Session{}, ErrUnknownUser
	}
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token}, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id version.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (version.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(version.Identity)
	return id, ok && id.Valid()
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware rejects requests without a valid token and stores the caller's
// identity in the request context. The token may also be passed as the
// "token" query parameter, which browsers need for websockets.
func (s *Service) Middleware(onError func(w http.ResponseWriter, status int, msg string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				onError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
				return
			}
			sess, err := s.Validate(r.Context(), token)
			switch {
			case errors.Is(err, ErrInvalidToken):
				onError(w, http.StatusUnauthorized, "Invalid or expired access token")
				return
			case errors.Is(err, ErrUnknownUser):
				onError(w, http.StatusUnauthorized, "User not found")
				return
			case err != nil:
				s.log.Error("token validation failed", slog.Any("err", err))
				onError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), sess.Identity())))
		})
	}
}
