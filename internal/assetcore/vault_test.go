package assetcore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *LocalVault {
	t.Helper()
	v, err := NewLocalVault(t.TempDir())
	require.NoError(t, err)
	return v
}

func TestWriteAndReadAsset_RoundTrip(t *testing.T) {
	v := newTestVault(t)
	data := []byte("hello world")

	info, err := WriteAsset(v, "@proj", data, ".png")
	require.NoError(t, err)
	assert.False(t, info.AlreadyExist)
	assert.Equal(t, ComputeHash(data), info.Hash)

	got, err := ReadAsset(v, "@proj", info.Hash, info.Ext)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriteAsset_Deduplicates(t *testing.T) {
	v := newTestVault(t)
	data := []byte("duplicate me")

	first, err := WriteAsset(v, "@proj", data, ".txt")
	require.NoError(t, err)
	assert.False(t, first.AlreadyExist)

	second, err := WriteAsset(v, "@proj", data, ".txt")
	require.NoError(t, err)
	assert.True(t, second.AlreadyExist)
	assert.Equal(t, first.Hash, second.Hash)
}

func TestWriteAsset_EmptyData(t *testing.T) {
	v := newTestVault(t)
	_, err := WriteAsset(v, "@proj", nil, ".png")
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestWriteAsset_InvalidExtension(t *testing.T) {
	v := newTestVault(t)
	_, err := WriteAsset(v, "@proj", []byte("x"), "png")
	assert.ErrorIs(t, err, ErrInvalidExtension)
}

func TestReadAsset_HashMismatchOnTamper(t *testing.T) {
	v := newTestVault(t)
	data := []byte("integrity check")

	info, err := WriteAsset(v, "@proj", data, ".txt")
	require.NoError(t, err)

	path := filepath.Join(v.AssetsPath("@proj"), info.Hash+info.Ext)
	require.NoError(t, os.WriteFile(path, []byte("tampered content"), 0o644))

	_, err = ReadAsset(v, "@proj", info.Hash, info.Ext)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestDeleteAsset_NotFound(t *testing.T) {
	v := newTestVault(t)
	err := DeleteAsset(v, "@proj", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", ".png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssetExists(t *testing.T) {
	v := newTestVault(t)
	data := []byte("exists check")
	info, err := WriteAsset(v, "@proj", data, ".bin")
	require.NoError(t, err)

	ok, err := AssetExists(v, "@proj", info.Hash, info.Ext)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, DeleteAsset(v, "@proj", info.Hash, info.Ext))

	ok, err = AssetExists(v, "@proj", info.Hash, info.Ext)
	require.NoError(t, err)
	assert.False(t, ok)
}
