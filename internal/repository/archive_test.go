package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

type memStore struct {
	blobs map[string][]byte
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, key string, data []byte) error {
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := m.blobs[key]
	if !ok {
		return nil, assert.AnError
	}
	return b, nil
}

func TestMaybeArchiveLeavesSmallPayloadsInline(t *testing.T) {
	r := &Repository{}
	r.SetArchive(newMemStore())

	small := schema.JSON(`{"text":"short"}`)
	out, err := r.maybeArchive(context.Background(), "unit/1/a/content", small)
	require.NoError(t, err)
	assert.Equal(t, small, out)
}

func TestMaybeArchiveOffloadsLargePayloads(t *testing.T) {
	store := newMemStore()
	r := &Repository{}
	r.SetArchive(store)

	large := schema.JSON(`{"text":"` + strings.Repeat("x", archiveThreshold+1) + `"}`)
	out, err := r.maybeArchive(context.Background(), "unit/1/a/content", large)
	require.NoError(t, err)

	assert.Contains(t, string(out), `"$archiveKey":"unit/1/a/content"`)
	stored, ok := store.blobs["unit/1/a/content"]
	require.True(t, ok)
	assert.Equal(t, string(large), string(stored))
}

func TestMaybeArchiveNoopWithoutStore(t *testing.T) {
	r := &Repository{}
	large := schema.JSON(strings.Repeat("x", archiveThreshold+1))
	out, err := r.maybeArchive(context.Background(), "k", large)
	require.NoError(t, err)
	assert.Equal(t, large, out)
}

func TestResolveArchivedRoundtrip(t *testing.T) {
	store := newMemStore()
	r := &Repository{}
	r.SetArchive(store)

	large := schema.JSON(`{"text":"` + strings.Repeat("y", archiveThreshold+1) + `"}`)
	marker, err := r.maybeArchive(context.Background(), "unit/2/b/content", large)
	require.NoError(t, err)

	resolved, err := r.resolveArchived(context.Background(), marker)
	require.NoError(t, err)
	assert.Equal(t, string(large), string(resolved))
}

func TestResolveArchivedPassesThroughPlainData(t *testing.T) {
	r := &Repository{}
	r.SetArchive(newMemStore())

	plain := schema.JSON(`{"text":"short"}`)
	resolved, err := r.resolveArchived(context.Background(), plain)
	require.NoError(t, err)
	assert.Equal(t, plain, resolved)
}

func TestResolveArchivedNilAndNullAreNoops(t *testing.T) {
	r := &Repository{}
	r.SetArchive(newMemStore())

	resolved, err := r.resolveArchived(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, []byte(resolved))

	resolved, err = r.resolveArchived(context.Background(), schema.JSON("null"))
	require.NoError(t, err)
	assert.Equal(t, schema.JSON("null"), resolved)
}
