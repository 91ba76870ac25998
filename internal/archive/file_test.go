package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccs-amsterdam/annotinder-server/internal/config"
)

func TestFileStorePutGetRoundtrip(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "unit/1/abc/content", []byte(`{"text":"hello"}`)))

	got, err := store.Get(ctx, "unit/1/abc/content")
	require.NoError(t, err)
	assert.Equal(t, `{"text":"hello"}`, string(got))
}

func TestFileStoreCreatesNestedDirectories(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "jobset/9/default/codebook", []byte("data")))

	_, err := os.Stat(filepath.Join(root, "jobset", "9", "default", "codebook"))
	require.NoError(t, err)
}

func TestFileStoreGetMissingKey(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.Get(context.Background(), "does/not/exist")
	assert.Error(t, err)
}

func TestNewDisabledWhenKindEmpty(t *testing.T) {
	store, err := New(config.ArchiveConfig{})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = New(config.ArchiveConfig{Kind: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestNewFileBackend(t *testing.T) {
	store, err := New(config.ArchiveConfig{Kind: "file", Path: t.TempDir()})
	require.NoError(t, err)
	require.NotNil(t, store)
	_, ok := store.(*FileStore)
	assert.True(t, ok)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(config.ArchiveConfig{Kind: "carrier-pigeon"})
	assert.Error(t, err)
}
