package assetcore

import (
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func newTestSessionManager(t *testing.T, timeout time.Duration) *UploadSessionManager {
	t.Helper()
	m := NewUploadSessionManager(timeout)
	t.Cleanup(m.Shutdown)
	return m
}

func TestCreateSession_Validates(t *testing.T) {
	m := newTestSessionManager(t, time.Minute)

	_, err := m.CreateSession(StartChunkedUploadRequest{ProjectAlias: "", TotalSize: 10, TotalChunks: 2})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = m.CreateSession(StartChunkedUploadRequest{ProjectAlias: "@proj", TotalSize: 0, TotalChunks: 2})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = m.CreateSession(StartChunkedUploadRequest{ProjectAlias: "@proj", TotalSize: MaxUploadSize + 1, TotalChunks: 2})
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestChunkAssemblyOrder(t *testing.T) {
	m := newTestSessionManager(t, time.Minute)

	id, err := m.CreateSession(StartChunkedUploadRequest{
		ProjectAlias: "@proj", Filename: "big.png", TotalSize: 15, TotalChunks: 3, MimeType: "image/png",
	})
	require.NoError(t, err)

	_, complete, err := m.AddChunk(id, 2, b64("lo"))
	require.NoError(t, err)
	assert.False(t, complete)

	_, complete, err = m.AddChunk(id, 0, b64("hel"))
	require.NoError(t, err)
	assert.False(t, complete)

	received, complete, err := m.AddChunk(id, 1, b64("lo wor"))
	require.NoError(t, err)
	assert.Equal(t, 3, received)
	assert.True(t, complete)

	assembled, info, err := m.AssembleAndRemove(id)
	require.NoError(t, err)
	assert.Equal(t, "hello worlo", string(assembled))
	assert.Equal(t, "@proj", info.ProjectAlias)
}

func TestAddChunk_ErrorCases(t *testing.T) {
	m := newTestSessionManager(t, time.Minute)

	_, _, err := m.AddChunk("missing", 0, b64("x"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	id, err := m.CreateSession(StartChunkedUploadRequest{ProjectAlias: "@proj", TotalSize: 10, TotalChunks: 2})
	require.NoError(t, err)

	_, _, err = m.AddChunk(id, 5, b64("x"))
	assert.ErrorIs(t, err, ErrChunkIndexOutOfRange)

	_, _, err = m.AddChunk(id, -1, b64("x"))
	assert.ErrorIs(t, err, ErrChunkIndexOutOfRange)

	_, _, err = m.AddChunk(id, 0, "not-base64!!")
	assert.ErrorIs(t, err, ErrInvalidBase64)

	_, _, err = m.AddChunk(id, 0, b64("first"))
	require.NoError(t, err)
	_, _, err = m.AddChunk(id, 0, b64("second"))
	assert.ErrorIs(t, err, ErrDuplicateChunk)
}

func TestAssembleAndRemove_MissingChunks(t *testing.T) {
	m := newTestSessionManager(t, time.Minute)

	id, err := m.CreateSession(StartChunkedUploadRequest{ProjectAlias: "@proj", TotalSize: 10, TotalChunks: 3})
	require.NoError(t, err)

	_, _, err = m.AddChunk(id, 1, b64("x"))
	require.NoError(t, err)

	_, _, err = m.AssembleAndRemove(id)
	var missingErr *MissingChunksError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []int{0, 2}, missingErr.Missing)
}

func TestAbortChunkedUpload_ThenUploadChunkFails(t *testing.T) {
	m := newTestSessionManager(t, time.Minute)

	id, err := m.CreateSession(StartChunkedUploadRequest{ProjectAlias: "@proj", TotalSize: 10, TotalChunks: 1})
	require.NoError(t, err)

	require.NoError(t, m.RemoveSession(id))

	_, _, err = m.AddChunk(id, 0, b64("x"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionExclusion_ConcurrentAddChunkSameIndex(t *testing.T) {
	m := newTestSessionManager(t, time.Minute)

	id, err := m.CreateSession(StartChunkedUploadRequest{ProjectAlias: "@proj", TotalSize: 10, TotalChunks: 1})
	require.NoError(t, err)

	const attempts = 20
	var wg sync.WaitGroup
	successes := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := m.AddChunk(id, 0, b64("x"))
			successes[i] = err == nil
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, ok := range successes {
		if ok {
			successCount++
		}
	}
	assert.Equal(t, 1, successCount)
}

func TestReaper_RemovesExpiredSession(t *testing.T) {
	m := NewUploadSessionManager(100 * time.Millisecond)
	defer m.Shutdown()

	id, err := m.CreateSession(StartChunkedUploadRequest{ProjectAlias: "@proj", TotalSize: 10, TotalChunks: 1})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := m.lookup(id)
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestExtensionForSession(t *testing.T) {
	assert.Equal(t, ".png", extensionForSession("foo.PNG", ""))
	assert.Equal(t, ".jpg", extensionForSession("foo", "image/jpeg"))
	assert.Equal(t, ".png", extensionForSession("foo", "unknown/type"))
}
