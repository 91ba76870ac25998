// Package archive provides an optional blob store for large opaque
// payloads (unit content, codebooks) that a researcher would rather
// keep off the primary SQLite file than inline in the units/jobsets
// tables, toggling between a file-backed archive and an S3 bucket by
// configuration the same way the engine switches SQL drivers.
package archive

import (
	"context"
	"fmt"

	"github.com/ccs-amsterdam/annotinder-server/internal/config"
)

// Store puts and gets opaque blobs by key. Keys are caller-chosen
// (e.g. "unit/<job>/<external_id>") and opaque to the store.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// New constructs the configured archive backend. An empty Kind disables
// archiving — callers should check for a nil Store and fall back to
// storing payloads inline via the repository's JSON columns.
func New(cfg config.ArchiveConfig) (Store, error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "file":
		return NewFileStore(cfg.Path), nil
	case "s3":
		return NewS3Store(cfg.Bucket, cfg.Region, cfg.AccessKey, cfg.SecretKey)
	default:
		return nil, fmt.Errorf("archive: unknown kind %q", cfg.Kind)
	}
}
