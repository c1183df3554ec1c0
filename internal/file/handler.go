package file

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ktg/storage-service/internal/middleware"
	"github.com/ktg/storage-service/internal/response"
)

// Handler holds HTTP handlers for the file-upload endpoints.
type Handler struct {
	svc  *Service
	urls *URLService
	log  zerolog.Logger
}

// NewHandler creates a new file Handler.
func NewHandler(svc *Service, urls *URLService, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, urls: urls, log: log}
}

// recordView is a record plus its generated read URLs. URL generation fails
// soft: a store-side signing error leaves the field empty rather than failing
// the request.
type recordView struct {
	*Record
	URL          string `json:"url,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

func (h *Handler) view(r *http.Request, rec *Record) recordView {
	v := recordView{Record: rec}

	u, err := h.urls.ReadURL(r.Context(), rec.StorageKey, true)
	if err != nil {
		h.log.Warn().Err(err).Str("storage_key", rec.StorageKey).Msg("read url generation failed")
	} else {
		v.URL = u
	}

	if rec.ThumbnailKey != nil {
		tu, err := h.urls.ThumbnailURL(r.Context(), *rec.ThumbnailKey, true)
		if err != nil {
			h.log.Warn().Err(err).Str("thumbnail_key", *rec.ThumbnailKey).Msg("thumbnail url generation failed")
		} else {
			v.ThumbnailURL = tu
		}
	}

	return v
}

func (h *Handler) views(r *http.Request, recs []Record) []recordView {
	out := make([]recordView, 0, len(recs))
	for i := range recs {
		out = append(out, h.view(r, &recs[i]))
	}
	return out
}

func ownerID(r *http.Request) *string {
	if id := middleware.UserID(r.Context()); id != "" {
		return &id
	}
	return nil
}

// writeServiceError maps orchestrator errors onto HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "file not found")
	case IsValidation(err):
		response.BadRequest(w, err.Error())
	default:
		h.log.Error().Err(err).Msg("file request failed")
		response.InternalError(w)
	}
}

type startRequest struct {
	FileName   string     `json:"file_name"`
	FileType   string     `json:"file_type"`
	ExpireAt   *time.Time `json:"expire_at,omitempty"`
	ReminderAt *time.Time `json:"reminder,omitempty"`
}

// StartUpload godoc
//
//	@Summary		Start a direct upload
//	@Description	Creates a pending file record and returns presigned data the client uses to upload the bytes directly to storage.
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		startRequest	true	"File metadata"
//	@Success		201		{object}	response.Envelope{data=StartResult}
//	@Failure		400		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/upload/direct/start [post]
func (h *Handler) StartUpload(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	result, err := h.svc.Start(r.Context(), StartInput{
		FileName:    req.FileName,
		ContentType: req.FileType,
		OwnerID:     ownerID(r),
		ExpireAt:    req.ExpireAt,
		ReminderAt:  req.ReminderAt,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.Created(w, result)
}

type finishRequest struct {
	FileID string `json:"file_id"`
}

// FinishUpload godoc
//
//	@Summary		Finish a direct upload
//	@Description	Marks the record complete and triggers thumbnail generation. Safe to call more than once.
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		finishRequest	true	"File ID"
//	@Success		200		{object}	response.Envelope{data=recordView}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/upload/direct/finish [post]
func (h *Handler) FinishUpload(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.FileID == "" {
		response.BadRequest(w, "file_id is required")
		return
	}

	rec, err := h.svc.Finish(r.Context(), req.FileID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.OK(w, h.view(r, rec))
}

// UploadLocal godoc
//
//	@Summary		Upload file bytes directly to the application
//	@Description	Local-mode fallback for deployments without a remote object store. Expects multipart form field "file".
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			fileID	path		string	true	"File record ID"
//	@Param			file	formData	file	true	"File content"
//	@Success		200		{object}	response.Envelope{data=recordView}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/upload/direct/local/{fileID} [post]
func (h *Handler) UploadLocal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileID")

	f, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "multipart field \"file\" is required")
		return
	}
	defer f.Close()

	rec, err := h.svc.UploadLocal(r.Context(), id, f, header.Size)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.OK(w, h.view(r, rec))
}

// ListMyFiles godoc
//
//	@Summary		List the caller's files
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]recordView}
//	@Router			/files [get]
func (h *Handler) ListMyFiles(w http.ResponseWriter, r *http.Request) {
	owner := middleware.UserID(r.Context())
	if owner == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	recs, err := h.svc.ListMine(r.Context(), owner)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.OK(w, h.views(r, recs))
}

// ListExpiredFiles godoc
//
//	@Summary		List the caller's expired files
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]recordView}
//	@Router			/files/expired [get]
func (h *Handler) ListExpiredFiles(w http.ResponseWriter, r *http.Request) {
	owner := middleware.UserID(r.Context())
	if owner == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	recs, err := h.svc.ListExpired(r.Context(), owner)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.OK(w, h.views(r, recs))
}

// GetFile godoc
//
//	@Summary		Get one file record
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			fileID	path		string	true	"File record ID"
//	@Success		200		{object}	response.Envelope{data=recordView}
//	@Failure		404		{object}	response.Envelope
//	@Router			/files/{fileID} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.OK(w, h.view(r, rec))
}

type updateRequest struct {
	FileName   *string    `json:"file_name,omitempty"`
	ExpireAt   *time.Time `json:"expire_at,omitempty"`
	ReminderAt *time.Time `json:"reminder,omitempty"`
}

// UpdateFile godoc
//
//	@Summary		Update file metadata
//	@Description	Renames or re-schedules a file. The storage key and content type are immutable.
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			fileID	path		string			true	"File record ID"
//	@Param			request	body		updateRequest	true	"Fields to update"
//	@Success		200		{object}	response.Envelope{data=recordView}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/files/{fileID} [patch]
func (h *Handler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	rec, err := h.svc.Update(r.Context(), chi.URLParam(r, "fileID"), UpdateInput{
		FileName:   req.FileName,
		ExpireAt:   req.ExpireAt,
		ReminderAt: req.ReminderAt,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.OK(w, h.view(r, rec))
}

// DeleteFile godoc
//
//	@Summary		Delete a file
//	@Description	Soft-deletes the record. Pass ?purge=true to also remove the stored object.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			fileID	path	string	true	"File record ID"
//	@Param			purge	query	bool	false	"Also delete the stored object"
//	@Success		204
//	@Failure		404	{object}	response.Envelope
//	@Router			/files/{fileID} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	purge := r.URL.Query().Get("purge") == "true"

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "fileID"), purge); err != nil {
		h.writeServiceError(w, err)
		return
	}

	response.NoContent(w)
}

type presignedURLRequest struct {
	StorageKey string `json:"storage_key"`
	Expires    *bool  `json:"expires,omitempty"`
}

// CreatePresignedURL godoc
//
//	@Summary		Generate a read URL for a stored object
//	@Description	Returns a time-limited presigned URL, or a permanent one when expires=false.
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		presignedURLRequest	true	"Storage key"
//	@Success		201		{object}	response.Envelope
//	@Failure		400		{object}	response.Envelope
//	@Router			/files/presigned-url [post]
func (h *Handler) CreatePresignedURL(w http.ResponseWriter, r *http.Request) {
	var req presignedURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.StorageKey == "" {
		response.BadRequest(w, "storage_key is required")
		return
	}

	expiring := true
	if req.Expires != nil {
		expiring = *req.Expires
	}

	u, err := h.urls.ReadURL(r.Context(), req.StorageKey, expiring)
	if err != nil {
		// Soft failure by contract: the caller gets a null URL, the cause
		// lands in the logs.
		h.log.Warn().Err(err).Str("storage_key", req.StorageKey).Msg("presigned url generation failed")
		response.Created(w, map[string]interface{}{"url": nil})
		return
	}

	response.Created(w, map[string]interface{}{"url": u})
}

// Routes mounts all file endpoints on a chi router. The auth middleware is
// applied by the caller so deployments can turn authentication off.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/upload/direct/start", h.StartUpload)
	r.Post("/upload/direct/finish", h.FinishUpload)
	r.Post("/upload/direct/local/{fileID}", h.UploadLocal)
	r.Post("/upload/direct/local/{fileID}/", h.UploadLocal)

	r.Get("/files", h.ListMyFiles)
	r.Get("/files/expired", h.ListExpiredFiles)
	r.Post("/files/presigned-url", h.CreatePresignedURL)
	r.Get("/files/{fileID}", h.GetFile)
	r.Patch("/files/{fileID}", h.UpdateFile)
	r.Delete("/files/{fileID}", h.DeleteFile)
}
