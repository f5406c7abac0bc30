package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"sketchboard/internal/auth"
	"sketchboard/internal/export"
	"sketchboard/internal/render"
	"sketchboard/internal/version"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeStoreError maps version errors onto status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, version.ErrNotFound):
		writeError(w, http.StatusNotFound, "Sketch version not found")
	case errors.Is(err, version.ErrForbidden):
		writeError(w, http.StatusForbidden, "Unauthorized to update this sketch")
	case errors.Is(err, version.ErrInvalid):
		writeError(w, http.StatusBadRequest, "Missing required fields: name, thumbnail, data")
	default:
		s.log.Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func identity(r *http.Request) version.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

// UserPayload is the user object returned by the token endpoints.
type UserPayload struct {
	ID          string    `json:"id"`
	AccessToken string    `json:"accessToken"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TokenResponse is the body of /api/auth/generate and /api/auth/validate.
type TokenResponse struct {
	User    *UserPayload `json:"user"`
	IsValid bool         `json:"isValid"`
}

func sessionResponse(sess auth.Session) TokenResponse {
	return TokenResponse{
		User:    &UserPayload{ID: sess.User.ID, AccessToken: sess.Token, CreatedAt: sess.User.CreatedAt},
		IsValid: true,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleGenerateToken(w http.ResponseWriter, r *http.Request) {
	sess, err := s.auth.Issue(r.Context())
	if err != nil {
		s.log.Error("generate token", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

func (s *Server) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
		return
	}
	sess, err := s.auth.Validate(r.Context(), token)
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnknownUser):
		writeError(w, http.StatusUnauthorized, "Invalid access token")
		return
	case err != nil:
		s.log.Error("validate token", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

type createRequest struct {
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
	Data      string `json:"data"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := s.versions.Create(r.Context(), identity(r), req.Name, req.Thumbnail, req.Data)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.versions.List(r.Context(), identity(r))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if r.URL.Query().Get("summary") == "true" {
		for i := range list {
			list[i].Data = ""
		}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	v, err := s.versions.Get(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch version.Patch
	if !decodeBody(w, r, &patch) {
		return
	}
	v, err := s.versions.Update(r.Context(), identity(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.versions.Delete(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	v, err := s.versions.Get(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.PDF(&buf, v); err != nil {
		s.log.Warn("pdf export failed", slog.String("id", v.ID), slog.Any("err", err))
		writeError(w, http.StatusUnprocessableEntity, "Sketch data is not a valid image")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(v.Name, ".pdf")+`"`)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	list, err := s.versions.List(r.Context(), identity(r))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	opts := export.GalleryOptions{}
	if c, err := strconv.Atoi(r.URL.Query().Get("cols")); err == nil && c > 0 && c <= 16 {
		opts.Columns = c
	}
	img, err := export.Gallery(list, opts)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := render.EncodePNG(w, img); err != nil {
		s.log.Warn("gallery encode failed", slog.Any("err", err))
	}
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = pingPeriod + writeWait
)

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(s.opts.CORSOrigins, origin) || slices.Contains(s.opts.CORSOrigins, "*")
		},
	}
}

// handleEvents streams the caller's version events as JSON messages until
// the peer goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	events, cancel := s.hub.Subscribe(id.UserID)
	defer cancel()
	s.log.Info("event subscriber connected", slog.String("user", id.UserID), slog.Int("subscribers", s.hub.Subscribers(id.UserID)))

	// Reader: handles pongs and notices the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			s.log.Info("event subscriber left", slog.String("user", id.UserID))
			return
		case <-r.Context().Done():
			return
		}
	}
}
