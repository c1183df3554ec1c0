package file

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateStorageKey(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		wantExt  string
	}{
		{"jpeg", "vacation photo.jpeg", ".jpeg"},
		{"pdf", "report.pdf", ".pdf"},
		{"no extension", "README", ""},
		{"dotfile", ".env", ".env"},
		{"double extension keeps last", "archive.tar.gz", ".gz"},
		{"traversal attempt", "../../etc/passwd", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := GenerateStorageKey(tt.fileName)
			assert.NotEmpty(t, key)
			if tt.wantExt != "" {
				assert.True(t, strings.HasSuffix(key, tt.wantExt), "key %q", key)
			}
			assert.NotContains(t, key, "/", "key must be a flat name")
			assert.NotContains(t, key, "..", "key must not carry traversal segments")
		})
	}
}

func TestGenerateStorageKey_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		key := GenerateStorageKey("same.txt")
		assert.False(t, seen[key], "duplicate key %q", key)
		seen[key] = true
	}
}

func TestUploadPath(t *testing.T) {
	assert.Equal(t, "files/abc123.png", UploadPath("abc123.png"))
}

func TestRecordIsValid(t *testing.T) {
	rec := &Record{}
	assert.False(t, rec.IsValid(), "pending record is not valid")

	now := time.Now().UTC()
	rec.UploadFinishedAt = &now
	assert.True(t, rec.IsValid())
}
