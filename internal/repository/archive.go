package repository

import (
	"context"
	"encoding/json"

	"github.com/ccs-amsterdam/annotinder-server/internal/archive"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// archiveThreshold is the payload size past which content/codebook JSON
// is offloaded to the configured archive.Store instead of stored inline,
// keeping the primary SQLite file sized for indexes and metadata rather
// than bulk text.
const archiveThreshold = 8192

// archiveRef is the inline marker left behind for an offloaded payload.
type archiveRef struct {
	ArchiveKey string `json:"$archiveKey"`
}

// SetArchive wires an optional blob store into the repository. Units
// and codebooks past archiveThreshold are offloaded to it; a nil store
// (the default) keeps everything inline, which is how Repository behaves
// if SetArchive is never called.
func (r *Repository) SetArchive(store archive.Store) {
	r.archive = store
}

// maybeArchive offloads data to the archive under key if it is large
// enough and a store is configured, returning the inline marker to
// persist in its place; otherwise it returns data unchanged.
func (r *Repository) maybeArchive(ctx context.Context, key string, data schema.JSON) (schema.JSON, error) {
	if r.archive == nil || len(data) <= archiveThreshold {
		return data, nil
	}
	if err := r.archive.Put(ctx, key, []byte(data)); err != nil {
		return nil, err
	}
	ref, err := json.Marshal(archiveRef{ArchiveKey: key})
	if err != nil {
		return nil, err
	}
	return schema.JSON(ref), nil
}

// resolveArchived reverses maybeArchive: if data is an archive marker
// it fetches and returns the real payload, otherwise it returns data
// unchanged (the common case when no store is configured or the
// payload was always small).
func (r *Repository) resolveArchived(ctx context.Context, data schema.JSON) (schema.JSON, error) {
	if r.archive == nil || data.IsNull() {
		return data, nil
	}
	var ref archiveRef
	if err := json.Unmarshal([]byte(data), &ref); err != nil || ref.ArchiveKey == "" {
		return data, nil
	}
	raw, err := r.archive.Get(ctx, ref.ArchiveKey)
	if err != nil {
		return nil, err
	}
	return schema.JSON(raw), nil
}
