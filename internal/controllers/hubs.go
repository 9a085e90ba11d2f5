package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ephemeral-project/backend/internal/hubs"
	"github.com/ephemeral-project/backend/internal/router"
	"github.com/ephemeral-project/backend/internal/store"
)

var _ router.Controller = (*HubController)(nil)

// maxUploadBytes bounds a single multipart upload request.
const maxUploadBytes = 64 << 20

type HubController struct {
	Hubs    *hubs.Service
	BaseURL string
}

type createHubResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	TextURL   string `json:"textUrl"`
	ExpiresAt string `json:"expiresAt"`
}

func (c *HubController) Register(router *mux.Router) {
	router.HandleFunc("/api/hubs", c.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/api/hubs/{id}", c.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/api/hubs/{id}/text", c.handleSetText).Methods(http.MethodPut)
	router.HandleFunc("/api/hubs/{id}/files", c.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/api/hubs/{id}/download", c.handleDownload).Methods(http.MethodGet)
}

func (c *HubController) handleCreate(w http.ResponseWriter, r *http.Request) {
	rec, err := c.Hubs.CreateHub(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createHubResponse{
		ID:        rec.ID,
		URL:       fmt.Sprintf("%s/api/hubs/%s", c.BaseURL, rec.ID),
		TextURL:   fmt.Sprintf("%s/api/hubs/%s/text", c.BaseURL, rec.ID),
		ExpiresAt: rec.CreatedAt.Add(hubs.HubTTL).Format(time.RFC3339),
	})
}

func (c *HubController) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := c.Hubs.ReadHub(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (c *HubController) handleSetText(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err = c.Hubs.SetText(r.Context(), mux.Vars(r)["id"], string(body)); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (c *HubController) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "file upload failed", http.StatusBadRequest)
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			http.Error(w, "file upload failed", http.StatusBadRequest)
			return
		}

		filename := part.FileName()
		if filename == "" {
			// Not a file part, skip.
			continue
		}

		data, err := io.ReadAll(part)
		if err != nil {
			http.Error(w, "file upload failed", http.StatusBadRequest)
			return
		}

		if err = c.Hubs.AddFile(r.Context(), id, filename, data); err != nil {
			writeError(w, err)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (c *HubController) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	data, err := c.Hubs.DownloadBundle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ephemeral_space_"+id+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

// writeError maps store errors onto client-visible statuses without leaking
// collaborator details. An expired hub looks exactly like a missing one.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrExpired):
		http.Error(w, "hub not found", http.StatusNotFound)
	default:
		zap.L().Error("request failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
