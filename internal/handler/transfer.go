package handler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/qrdrop/signal-server-go/internal/blobstore"
	apperrors "github.com/qrdrop/signal-server-go/internal/errors"
)

type TransferHandler struct {
	store *blobstore.Store
}

func NewTransferHandler(store *blobstore.Store) *TransferHandler {
	return &TransferHandler{store: store}
}

// POST /api/upload
// Stores a base64-encoded fallback payload for a live session, replacing
// any previous upload for that session.
func (h *TransferHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
		Filename  string `json:"filename"`
		MIME      string `json:"mime"`
		Payload   string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	switch {
	case req.SessionID == "":
		writeError(w, apperrors.MissingRequired("sessionId"))
		return
	case req.Filename == "":
		writeError(w, apperrors.MissingRequired("filename"))
		return
	case req.Payload == "":
		writeError(w, apperrors.MissingRequired("payload"))
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		writeError(w, apperrors.InvalidInput("payload", "not valid base64"))
		return
	}

	blob, err := h.store.Put(req.SessionID, req.Filename, req.MIME, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"size": blob.Size,
	})
}

// GET /api/download/{sessionID}
// Streams the stored blob back with its original filename and MIME type.
// The blob is not consumed; the other side may retry the download.
func (h *TransferHandler) Download(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	blob, err := h.store.Get(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", blob.MIME)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(blob.Filename)))
	w.Header().Set("Content-Length", strconv.FormatInt(blob.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(blob.Data); err != nil {
		log.Debug().Err(err).Str("sessionId", sessionID).Msg("download write aborted")
	}
}
