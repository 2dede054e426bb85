// Package photostore persists work-entry photos in S3-compatible object
// storage and hands out short-lived signed URLs for retrieval.
package photostore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the attachment storage contract. Put returns the storage key a
// pointer row should record; SignedURL resolves a key to a time-limited
// retrieval link.
type Store interface {
	Put(ctx context.Context, entryID int64, filename string, data []byte) (string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// DecodeDataURL decodes a base64 payload as submitted by the frontend,
// with or without a "data:image/...;base64," prefix.
func DecodeDataURL(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty photo payload")
	}
	if strings.HasPrefix(s, "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return nil, errors.New("malformed data URL")
		}
		s = s[idx+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

// objectKey namespaces an attachment under its entry with a random prefix
// so repeated filenames never collide.
func objectKey(entryID int64, filename string) string {
	return fmt.Sprintf("work-photos/%d/%s-%s", entryID, uuid.NewString(), sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	if name == "" {
		return "photo.jpg"
	}
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
