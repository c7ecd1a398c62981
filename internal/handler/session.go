package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/qrdrop/signal-server-go/internal/errors"
	"github.com/qrdrop/signal-server-go/internal/registry"
)

type SessionHandler struct {
	registry      *registry.Registry
	publicBaseURL string
}

func NewSessionHandler(reg *registry.Registry, publicBaseURL string) *SessionHandler {
	return &SessionHandler{
		registry:      reg,
		publicBaseURL: publicBaseURL,
	}
}

// POST /api/session
// Mints a pairing code bound to a fresh session. The joinUrl embeds the
// code for the QR-rendering client; the server only builds the URL.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action != "create" {
		writeError(w, apperrors.ValidationError("Invalid action"))
		return
	}

	sess, err := h.registry.CreateSession()
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"code":         sess.Code,
		"sessionId":    sess.ID,
		"joinUrl":      h.joinURL(r, sess.Code),
		"expiresInSec": int(sess.ExpiresAt.Sub(sess.CreatedAt).Seconds()),
	})
}

// POST /api/resolve
// Resolves a pairing code to its session identity. Resolution is free of
// side effects; the code stays valid until the session expires.
func (h *SessionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if req.Code == "" {
		writeError(w, apperrors.NotFound("Code"))
		return
	}

	sess, remaining, err := h.registry.Resolve(strings.TrimSpace(req.Code))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"sessionId":    sess.ID,
		"expiresInSec": int(remaining.Seconds()),
	})
}

// joinURL prefers the configured public base URL and otherwise falls back
// to the forwarded or direct request host, so the QR link works behind a
// reverse proxy.
func (h *SessionHandler) joinURL(r *http.Request, code string) string {
	base := strings.TrimRight(h.publicBaseURL, "/")
	if base == "" {
		proto := r.Header.Get("X-Forwarded-Proto")
		host := r.Header.Get("X-Forwarded-Host")
		if proto == "" || host == "" {
			proto = "http"
			if r.TLS != nil {
				proto = "https"
			}
			host = r.Host
		}
		base = proto + "://" + host
	}
	return base + "/?code=" + code
}
