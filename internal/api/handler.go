// Package api serves the intake gateway's HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"duck-intake/internal/domain"
	"duck-intake/internal/intake"
	"duck-intake/internal/middleware"
)

// DefaultMaxBodyBytes caps an intake body when no limit is configured.
const DefaultMaxBodyBytes int64 = 10 << 20

// Submitter accepts an intake message for detached processing.
type Submitter interface {
	Submit(msg domain.IntakeMessage) error
}

// Handler implements the intake endpoints.
type Handler struct {
	intake       Submitter
	maxBodyBytes int64
	logger       *slog.Logger
	now          func() time.Time
}

// NewHandler creates a Handler. maxBodyBytes <= 0 selects DefaultMaxBodyBytes.
func NewHandler(intake Submitter, maxBodyBytes int64, logger *slog.Logger) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		intake:       intake,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
		now:          time.Now,
	}
}

// Hello answers the liveness probe.
func (h *Handler) Hello(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "hello.")
}

// Intake accepts a body for the collection in the path and hands it to the
// supervisor. The 202 only means the body was accepted: parsing and writing
// happen afterwards and never change this response.
func (h *Handler) Intake(w http.ResponseWriter, r *http.Request) {
	collection := CollectionParam(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	msg := domain.IntakeMessage{
		ID:         domain.NewID(),
		ReceivedAt: h.now().UTC(),
		Collection: collection,
		Body:       body,
	}
	if err := h.intake.Submit(msg); err != nil {
		if errors.Is(err, intake.ErrShuttingDown) {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	attrs := []slog.Attr{
		slog.String("message_id", msg.ID),
		slog.String("collection", collection),
		slog.Int("bytes", len(body)),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	}
	if cred, ok := domain.CredentialFromContext(r.Context()); ok {
		attrs = append(attrs, slog.String("key_prefix", cred.KeyPrefix))
	}
	h.logger.LogAttrs(r.Context(), slog.LevelDebug, "intake accepted", attrs...)

	writeJSON(w, http.StatusAccepted, map[string]string{"id": msg.ID})
}

// CollectionParam returns the collection segment of an intake route.
func CollectionParam(r *http.Request) string {
	return chi.URLParam(r, "collection")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]interface{}{
		"code":    code,
		"message": message,
	})
}
