package assetcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeHash(t *testing.T) {
	hash := ComputeHash([]byte("hello world"))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", hash)
}

func TestComputeHash_Deterministic(t *testing.T) {
	data := []byte("same bytes, twice")
	assert.Equal(t, ComputeHash(data), ComputeHash(data))
}

func TestValidateHash(t *testing.T) {
	assert.NoError(t, ValidateHash("b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"))
	assert.ErrorIs(t, ValidateHash("too-short"), ErrInvalidHash)
	assert.ErrorIs(t, ValidateHash("B94D27B9934D3E08A52E52D7DA7DABFAC484EFE37A5380EE9088F7ACE2EFCDE"), ErrInvalidHash)
}

func TestValidateExtension(t *testing.T) {
	assert.NoError(t, ValidateExtension(""))
	assert.NoError(t, ValidateExtension(".png"))
	assert.ErrorIs(t, ValidateExtension("png"), ErrInvalidExtension)
	assert.ErrorIs(t, ValidateExtension("."), ErrInvalidExtension)
	assert.ErrorIs(t, ValidateExtension(".toolongextension"), ErrInvalidExtension)
	assert.ErrorIs(t, ValidateExtension(".p-g"), ErrInvalidExtension)
}

func TestNormalizeExtension(t *testing.T) {
	assert.Equal(t, "", NormalizeExtension(""))
	assert.Equal(t, ".png", NormalizeExtension("PNG"))
	assert.Equal(t, ".png", NormalizeExtension(".PNG"))
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, "image/png", DetectMIME(".png"))
	assert.Equal(t, "image/jpeg", DetectMIME(".jpg"))
	assert.Equal(t, "image/jpeg", DetectMIME(".jpeg"))
	assert.Equal(t, "application/octet-stream", DetectMIME(".unknown"))
}

func TestSniffImageExtension(t *testing.T) {
	ext, ok := sniffImageExtension([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A})
	assert.True(t, ok)
	assert.Equal(t, ".png", ext)

	ext, ok = sniffImageExtension([]byte("hello world"))
	assert.False(t, ok)
	assert.Equal(t, "", ext)
}
