// Package handler exposes corpus upload and lookup over HTTP.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion/extract"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/logger"
)

// maxUploadBytes is one byte over the validator's cap so oversize bodies are
// reported as a validation failure rather than silently truncated.
const maxUploadBytes = 16<<20 + 1

// CorpusStore persists corpora. *publisher.Publisher implements it.
type CorpusStore interface {
	Store(ctx context.Context, name, text string) (*ingestion.CorpusUpdated, error)
	Describe(ctx context.Context, name string) (*ingestion.CorpusUpdated, error)
}

type Handler struct {
	store  CorpusStore
	logger *slog.Logger
}

func New(store CorpusStore) *Handler {
	return &Handler{
		store:  store,
		logger: slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("PUT /api/v1/corpora/{name}", h.Put)
	mux.HandleFunc("GET /api/v1/corpora/{name}", h.Get)
}

// Put stores the request body as the named corpus. HTML bodies are reduced
// to their visible text first.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	name := r.PathValue("name")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	text := string(body)
	if extract.IsHTML(r.Header.Get("Content-Type")) {
		text, err = extract.HTMLText(bytes.NewReader(body))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "could not parse html body")
			return
		}
	}
	if err := validator.ValidateCorpus(name, text); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	update, err := h.store.Store(ctx, name, text)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("corpus store failed", "corpus", name, "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "storing corpus failed")
		return
	}
	log.Info("corpus uploaded", "corpus", name, "lines", update.Lines, "bytes", len(text))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"name":     update.Name,
		"lines":    update.Lines,
		"bytes":    len(text),
		"checksum": update.Checksum,
	})
}

// Get reports metadata for a stored corpus.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	meta, err := h.store.Describe(r.Context(), r.PathValue("name"))
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("corpus lookup failed", "error", err)
		}
		h.writeError(w, status, apperrors.Message(err))
		return
	}
	h.writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
