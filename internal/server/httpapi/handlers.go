// Package httpapi exposes the ingestion services over HTTP: direct multipart
// uploads, the resumable offset protocol, server-side copies, metadata
// registration, media deletion and capsule finalization.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/love-developer/eras/internal/common"
	"github.com/love-developer/eras/internal/logging"
	"github.com/love-developer/eras/internal/server/models"
	"github.com/love-developer/eras/internal/server/services"

	sc "github.com/love-developer/eras/internal/server/config"
)

// UploadOffsetHeader carries the resumable protocol's byte cursor.
const UploadOffsetHeader = "Upload-Offset"

// maxDirectBytes caps the body of a direct multipart ingest. Larger payloads
// must go through the resumable session endpoints.
const maxDirectBytes = 64 << 20

// MediaIngester is the media surface the handlers need.
type MediaIngester interface {
	IngestDirect(ctx context.Context, containerID, name, mimeType string, sizeBytes int64, r io.Reader) (*models.MediaRecord, error)
	RegisterMetadata(ctx context.Context, name, mimeType string, sizeBytes int64, storageKey string) (*models.MediaRecord, error)
	Content(ctx context.Context, id string) (*models.MediaRecord, io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
	Copy(ctx context.Context, sourceID, destContainerID, fileName, fileType string) (services.CopyOutcome, error)
}

// Uploader is the resumable-session surface the handlers need.
type Uploader interface {
	Init(ctx context.Context, in services.InitInput) (*models.UploadSession, error)
	Append(ctx context.Context, uploadID string, offset int64, chunk []byte) (services.AppendResult, error)
	Offset(ctx context.Context, uploadID string) (int64, error)
}

// CapsuleCreator finalizes capsules.
type CapsuleCreator interface {
	Create(ctx context.Context, in services.CapsuleInput) (*models.Capsule, error)
}

type Handler struct {
	media    MediaIngester
	uploads  Uploader
	capsules CapsuleCreator
	config   *sc.Config
	logger   logging.Logger
}

func NewHandler(media MediaIngester, uploads Uploader, capsules CapsuleCreator, config *sc.Config, logger logging.Logger) *Handler {
	return &Handler{
		media:    media,
		uploads:  uploads,
		capsules: capsules,
		config:   config,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/media", h.ingestDirect)
	r.Post("/api/media/metadata", h.registerMetadata)
	r.Post("/api/media/copy", h.copyMedia)
	r.Get("/api/media/{id}/content", h.mediaContent)
	r.Delete("/api/media/{id}", h.deleteMedia)

	r.Post("/api/uploads", h.initUpload)
	r.Patch("/api/uploads/{id}", h.appendChunk)
	r.Head("/api/uploads/{id}", h.uploadOffset)

	r.Post("/api/capsules", h.createCapsule)
}

type ingestResponse struct {
	MediaID   string `json:"media_id"`
	PublicURL string `json:"public_url"`
}

func (h *Handler) ingestDirect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDirectBytes)

	if err := r.ParseMultipartForm(maxDirectBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("payload exceeds %d bytes, use a resumable session", maxDirectBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	containerID := r.FormValue("container_id")

	rec, err := h.media.IngestDirect(r.Context(), containerID, header.Filename, mimeType, header.Size, file)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	ingestCompletedTotal.WithLabelValues("direct").Inc()
	writeJSON(w, http.StatusCreated, ingestResponse{MediaID: rec.ID, PublicURL: rec.PublicURL})
}

type metadataRequest struct {
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	StoragePath string `json:"storage_path"`
}

func (h *Handler) registerMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}
	if req.StoragePath == "" {
		writeError(w, http.StatusBadRequest, "storage_path is required")
		return
	}

	rec, err := h.media.RegisterMetadata(r.Context(), req.Name, req.MimeType, req.SizeBytes, req.StoragePath)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	ingestCompletedTotal.WithLabelValues("metadata").Inc()
	writeJSON(w, http.StatusCreated, ingestResponse{MediaID: rec.ID, PublicURL: rec.PublicURL})
}

type copyRequest struct {
	SourceID        string `json:"source_id"`
	DestContainerID string `json:"dest_container_id"`
	FileName        string `json:"file_name"`
	FileType        string `json:"file_type"`
}

type copyResponse struct {
	MediaID        string `json:"media_id,omitempty"`
	PublicURL      string `json:"public_url,omitempty"`
	CopyDurationMs int64  `json:"copy_duration_ms,omitempty"`
	Fallback       bool   `json:"fallback,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

func (h *Handler) copyMedia(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}

	out, err := h.media.Copy(r.Context(), req.SourceID, req.DestContainerID, req.FileName, req.FileType)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if out.Fallback {
		writeJSON(w, http.StatusOK, copyResponse{Fallback: true, Reason: out.Reason})
		return
	}
	ingestCompletedTotal.WithLabelValues("copy").Inc()
	writeJSON(w, http.StatusOK, copyResponse{
		MediaID:        out.Record.ID,
		PublicURL:      out.Record.PublicURL,
		CopyDurationMs: out.DurationMs,
	})
}

func (h *Handler) mediaContent(w http.ResponseWriter, r *http.Request) {
	rec, rc, err := h.media.Content(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", rec.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(rec.SizeBytes, 10))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Debug(r.Context(), "media content stream interrupted", "media_id", rec.ID, "err", err)
	}
}

func (h *Handler) deleteMedia(w http.ResponseWriter, r *http.Request) {
	if err := h.media.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type initUploadRequest struct {
	FileName    string `json:"file_name"`
	FileType    string `json:"file_type"`
	TotalBytes  int64  `json:"total_bytes"`
	ContainerID string `json:"container_id"`
}

type initUploadResponse struct {
	UploadID  string `json:"upload_id"`
	ChunkSize int64  `json:"chunk_size"`
}

func (h *Handler) initUpload(w http.ResponseWriter, r *http.Request) {
	var req initUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}
	if req.TotalBytes <= 0 {
		writeError(w, http.StatusBadRequest, "total_bytes must be positive")
		return
	}

	sess, err := h.uploads.Init(r.Context(), services.InitInput{
		FileName:    req.FileName,
		FileType:    req.FileType,
		TotalBytes:  req.TotalBytes,
		ContainerID: req.ContainerID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, initUploadResponse{
		UploadID:  sess.ID,
		ChunkSize: h.config.ChunkSizeBytes,
	})
}

type chunkResponse struct {
	Offset    int64  `json:"offset"`
	Complete  bool   `json:"complete"`
	MediaID   string `json:"media_id,omitempty"`
	PublicURL string `json:"public_url,omitempty"`
}

func (h *Handler) appendChunk(w http.ResponseWriter, r *http.Request) {
	offset, err := strconv.ParseInt(r.Header.Get(UploadOffsetHeader), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or malformed "+UploadOffsetHeader+" header")
		return
	}

	chunk, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read chunk: "+err.Error())
		return
	}

	res, err := h.uploads.Append(r.Context(), chi.URLParam(r, "id"), offset, chunk)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrSessionComplete):
		// idempotent retry of the final chunk
		resp := chunkResponse{Offset: res.Offset, Complete: true}
		if res.Media != nil {
			resp.MediaID = res.Media.ID
			resp.PublicURL = res.Media.PublicURL
		}
		writeJSON(w, http.StatusOK, resp)
		return
	case errors.Is(err, common.ErrOffsetMismatch):
		w.Header().Set(UploadOffsetHeader, strconv.FormatInt(res.Offset, 10))
		writeError(w, http.StatusConflict,
			fmt.Sprintf("offset mismatch: server cursor is %d", res.Offset))
		return
	case errors.Is(err, common.ErrSessionExpired):
		writeError(w, http.StatusGone, "upload session expired")
		return
	default:
		h.writeServiceError(w, r, err)
		return
	}

	resp := chunkResponse{Offset: res.Offset, Complete: res.Complete}
	if res.Media != nil {
		resp.MediaID = res.Media.ID
		resp.PublicURL = res.Media.PublicURL
		ingestCompletedTotal.WithLabelValues("resumable").Inc()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) uploadOffset(w http.ResponseWriter, r *http.Request) {
	offset, err := h.uploads.Offset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set(UploadOffsetHeader, strconv.FormatInt(offset, 10))
	w.WriteHeader(http.StatusOK)
}

type capsuleRequest struct {
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Theme      string    `json:"theme"`
	DeliverAt  time.Time `json:"deliver_at"`
	Recipients []string  `json:"recipients"`
	MediaIDs   []string  `json:"media_ids"`
}

type capsuleResponse struct {
	CapsuleID string `json:"capsule_id"`
}

func (h *Handler) createCapsule(w http.ResponseWriter, r *http.Request) {
	var req capsuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}

	capsule, err := h.capsules.Create(r.Context(), services.CapsuleInput{
		Title:      req.Title,
		Message:    req.Message,
		Theme:      req.Theme,
		DeliverAt:  req.DeliverAt,
		Recipients: req.Recipients,
		MediaIDs:   req.MediaIDs,
	})
	if err != nil {
		// a pending or unknown media reference makes the capsule
		// unprocessable, not conflicting
		if errors.Is(err, common.ErrMediaPending) || errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, capsuleResponse{CapsuleID: capsule.ID})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, common.ErrorNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
