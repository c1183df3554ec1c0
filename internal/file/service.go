package file

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ktg/storage-service/internal/config"
	"github.com/ktg/storage-service/internal/objectstore"
)

// Store is the persistence surface the orchestrator needs. *Repository
// implements it; tests substitute an in-memory fake.
type Store interface {
	Create(ctx context.Context, rec *Record) (*Record, error)
	GetByID(ctx context.Context, id string) (*Record, error)
	GetByIDAny(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, rec *Record) (*Record, error)
	MarkFinished(ctx context.Context, id string, at time.Time) (*Record, error)
	SetThumbnailKey(ctx context.Context, id, key string) error
	SoftDelete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]Record, error)
	ListExpiredByOwner(ctx context.Context, ownerID string, now time.Time) ([]Record, error)
	ListExpiringOn(ctx context.Context, now time.Time) ([]Record, error)
	ListReminderOn(ctx context.Context, now time.Time) ([]Record, error)
}

// Thumbnailer derives a thumbnail from a stored object. A ("", nil) result
// means the pipeline soft-failed and no thumbnail exists; that never blocks
// the caller.
type Thumbnailer interface {
	Generate(ctx context.Context, sourcePath string) (string, error)
}

// Service orchestrates the direct-upload state machine: Start creates a
// pending record plus an upload capability, the client pushes bytes
// out-of-band, and Finish marks the record complete and derives artifacts.
type Service struct {
	store   Store
	objects objectstore.Client
	thumbs  Thumbnailer
	cfg     *config.Config
	log     zerolog.Logger

	// now is a hook for tests with a frozen clock.
	now func() time.Time
}

// NewService creates the upload orchestrator.
func NewService(store Store, objects objectstore.Client, thumbs Thumbnailer, cfg *config.Config, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		objects: objects,
		thumbs:  thumbs,
		cfg:     cfg,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// StartInput is the request to begin a direct upload.
type StartInput struct {
	FileName    string
	ContentType string
	OwnerID     *string
	ExpireAt    *time.Time
	ReminderAt  *time.Time
}

// StartResult pairs the pending record with the capability the end client
// uses to push bytes directly to the destination.
type StartResult struct {
	Record    *Record                   `json:"file"`
	Presigned *objectstore.PresignedPost `json:"presignedData"`
}

// Start creates a pending record and an upload capability. In remote mode
// that is a presigned POST against the object store; in local mode it is a
// same-origin URL the client posts the bytes to. The presign happens before
// the insert so a store failure leaves no partial record behind.
func (s *Service) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	if strings.TrimSpace(in.FileName) == "" {
		return nil, &ValidationError{Message: "file_name is required"}
	}
	if strings.TrimSpace(in.ContentType) == "" {
		return nil, &ValidationError{Message: "file_type is required"}
	}

	rec := &Record{
		ID:               uuid.NewString(),
		OriginalFileName: in.FileName,
		StorageKey:       GenerateStorageKey(in.FileName),
		ContentType:      in.ContentType,
		OwnerID:          in.OwnerID,
		ExpireAt:         in.ExpireAt,
		ReminderAt:       in.ReminderAt,
	}

	var presigned *objectstore.PresignedPost
	if s.cfg.IsRemote() {
		var err error
		presigned, err = s.objects.PresignUploadPost(ctx, UploadPath(rec.StorageKey), rec.ContentType, s.cfg.MaxUploadSizeBytes)
		if err != nil {
			return nil, fmt.Errorf("presign upload: %w", err)
		}
	} else {
		presigned = &objectstore.PresignedPost{
			URL: fmt.Sprintf("%s/upload/direct/local/%s/", strings.TrimRight(s.cfg.AppDomain, "/"), rec.ID),
		}
	}

	created, err := s.store.Create(ctx, rec)
	if err != nil {
		return nil, err
	}

	return &StartResult{Record: created, Presigned: presigned}, nil
}

// Finish transitions a pending record to complete and triggers thumbnail
// generation. It is idempotent: finishing an already complete record
// re-stamps the time and re-runs the pipeline. A thumbnail failure never
// blocks completion — "no thumbnail" is an acceptable end state.
func (s *Service) Finish(ctx context.Context, id string) (*Record, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rec, err = s.store.MarkFinished(ctx, rec.ID, s.now())
	if err != nil {
		return nil, err
	}

	if key, err := s.thumbs.Generate(ctx, UploadPath(rec.StorageKey)); err != nil {
		s.log.Warn().Err(err).Str("storage_key", rec.StorageKey).Msg("thumbnail generation failed")
	} else if key != "" {
		if err := s.store.SetThumbnailKey(ctx, rec.ID, key); err != nil {
			s.log.Warn().Err(err).Str("file_id", rec.ID).Msg("could not store thumbnail key")
		} else {
			rec.ThumbnailKey = &key
		}
	}

	return rec, nil
}

// UploadLocal receives the bytes directly, for local-mode deployments where
// no presigned store upload exists. It stores the payload under the record's
// storage path but does not complete the record; the client still calls
// Finish afterwards, keeping a single pending-to-complete transition point.
func (s *Service) UploadLocal(ctx context.Context, id string, data io.Reader, size int64) (*Record, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if size < 1 {
		return nil, &ValidationError{Message: "file is empty"}
	}
	if size > s.cfg.MaxUploadSizeBytes {
		return nil, &ValidationError{Message: "file too large"}
	}

	if err := s.objects.Upload(ctx, UploadPath(rec.StorageKey), data, size, rec.ContentType, s.cfg.DefaultACL); err != nil {
		return nil, fmt.Errorf("store local upload: %w", err)
	}

	return rec, nil
}

// UpdateInput carries the mutable metadata of a record. Nil fields are left
// unchanged. The storage key and content type cannot be updated.
type UpdateInput struct {
	FileName   *string
	ExpireAt   *time.Time
	ReminderAt *time.Time
}

// Update renames or re-schedules a record.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Record, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.FileName != nil {
		if strings.TrimSpace(*in.FileName) == "" {
			return nil, &ValidationError{Message: "file_name cannot be empty"}
		}
		rec.OriginalFileName = *in.FileName
	}
	if in.ExpireAt != nil {
		rec.ExpireAt = in.ExpireAt
	}
	if in.ReminderAt != nil {
		rec.ReminderAt = in.ReminderAt
	}

	return s.store.Update(ctx, rec)
}

// Get returns a record by ID, excluding soft-deleted ones.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.store.GetByID(ctx, id)
}

// Delete soft-deletes the record. When removeBlob is set the underlying
// object (and its thumbnail, if any) are also removed from the store; a store
// failure there is logged and swallowed since the metadata delete already
// committed.
func (s *Service) Delete(ctx context.Context, id string, removeBlob bool) error {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.SoftDelete(ctx, rec.ID); err != nil {
		return err
	}

	if removeBlob {
		if err := s.objects.Delete(ctx, UploadPath(rec.StorageKey)); err != nil {
			s.log.Warn().Err(err).Str("storage_key", rec.StorageKey).Msg("could not delete blob")
		}
		if rec.ThumbnailKey != nil {
			if err := s.objects.Delete(ctx, *rec.ThumbnailKey); err != nil {
				s.log.Warn().Err(err).Str("thumbnail_key", *rec.ThumbnailKey).Msg("could not delete thumbnail")
			}
		}
	}

	return nil
}

// ListMine returns the owner's complete files, newest first.
func (s *Service) ListMine(ctx context.Context, ownerID string) ([]Record, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// ListExpired returns the owner's files whose expiry has passed.
func (s *Service) ListExpired(ctx context.Context, ownerID string) ([]Record, error) {
	return s.store.ListExpiredByOwner(ctx, ownerID, s.now())
}

// ListExpiringToday returns all records expiring within the current day.
func (s *Service) ListExpiringToday(ctx context.Context) ([]Record, error) {
	return s.store.ListExpiringOn(ctx, s.now())
}

// ListReminderToday returns all records with a reminder due today.
func (s *Service) ListReminderToday(ctx context.Context) ([]Record, error) {
	return s.store.ListReminderOn(ctx, s.now())
}
