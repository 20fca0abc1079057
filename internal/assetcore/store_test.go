package assetcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newUnconnectedStore builds a store with a nil pool. Every test here only
// exercises validation paths that return before the pool is touched; a
// real connection is exercised only in integration environments with
// Postgres available.
func newUnconnectedStore() *IndexStore {
	return &IndexStore{pool: nil, now: time.Now}
}

func TestIndexStore_Upsert_ValidatesBeforeTouchingPool(t *testing.T) {
	s := newUnconnectedStore()
	_, err := s.Upsert(context.Background(), Asset{Hash: "not-a-hash"})
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestIndexStore_GetByHash_ValidatesBeforeTouchingPool(t *testing.T) {
	s := newUnconnectedStore()
	_, err := s.GetByHash(context.Background(), "short")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestIndexStore_Delete_ValidatesBeforeTouchingPool(t *testing.T) {
	s := newUnconnectedStore()
	err := s.Delete(context.Background(), "short")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestIndexStore_LinkToDocument_RequiresDocPath(t *testing.T) {
	s := newUnconnectedStore()
	err := s.LinkToDocument(context.Background(), "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", "")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestIndexStore_UnlinkAllFromDocument_RequiresDocPath(t *testing.T) {
	s := newUnconnectedStore()
	err := s.UnlinkAllFromDocument(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestIndexStore_GetDocumentAssets_RequiresDocPath(t *testing.T) {
	s := newUnconnectedStore()
	_, err := s.GetDocumentAssets(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestIndexStore_WithClock_OverridesNow(t *testing.T) {
	s := newUnconnectedStore()
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	clocked := s.WithClock(func() time.Time { return fixed })
	assert.Equal(t, fixed, clocked.now())
	assert.NotEqual(t, fixed, s.now())
}

func TestOrphanGraceWindow_IsFiveMinutes(t *testing.T) {
	assert.Equal(t, 5*time.Minute, OrphanGraceWindow)
}
