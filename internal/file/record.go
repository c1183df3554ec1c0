// Package file implements file-upload metadata and the direct-upload
// orchestration flow: a client asks to start an upload, pushes bytes straight
// to the object store with a presigned capability, then finishes the upload so
// the record becomes complete and derived artifacts are generated.
package file

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// uploadPrefix namespaces uploaded objects inside the bucket.
const uploadPrefix = "files"

// Record is the metadata for one uploaded file. A record is created in
// pending state (UploadFinishedAt nil) before any bytes exist in the store,
// and becomes complete when the upload is finished. StorageKey and
// ContentType are set once at creation and never change afterwards.
type Record struct {
	ID               string     `json:"id"`
	OriginalFileName string     `json:"originalFileName"`
	StorageKey       string     `json:"storageKey"`
	ContentType      string     `json:"contentType"`
	OwnerID          *string    `json:"ownerId,omitempty"`
	UploadFinishedAt *time.Time `json:"uploadFinishedAt,omitempty"`
	ExpireAt         *time.Time `json:"expireAt,omitempty"`
	ReminderAt       *time.Time `json:"reminderAt,omitempty"`
	ThumbnailKey     *string    `json:"thumbnailKey,omitempty"`
	IsDeleted        bool       `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// IsValid reports whether the upload has finished and the record therefore
// references real bytes in the store.
func (r *Record) IsValid() bool {
	return r.UploadFinishedAt != nil
}

// GenerateStorageKey derives a globally unique object name from the original
// file name: a fresh random token plus the original extension. The literal
// user-supplied name never reaches the store, which rules out collisions and
// path traversal. Token entropy is relied upon for uniqueness; there is no
// retry-on-collision.
func GenerateStorageKey(originalFileName string) string {
	ext := path.Ext(originalFileName)
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return token + ext
}

// UploadPath is the object-store path for a storage key.
func UploadPath(storageKey string) string {
	return uploadPrefix + "/" + storageKey
}
