package blob_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/text2tracks/backend/internal/blob"
	"github.com/text2tracks/backend/internal/blob/blobtest"
)

func writeTempClip(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := blob.New(context.Background(), blob.Config{Endpoint: "http://localhost:9000"})
	require.ErrorIs(t, err, blob.ErrNoCredentials)

	_, err = blob.New(context.Background(), blob.Config{})
	require.ErrorIs(t, err, blob.ErrNoCredentials)
}

func TestUploadAndPresign(t *testing.T) {
	ctx := context.Background()

	mock, err := blobtest.StartMockS3(ctx, "audio-clips")
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	src := writeTempClip(t, "1376265.mp3", "fake-mp3-bytes")

	ref, err := mock.Store.Upload(ctx, src, "tracks/1376265.mp3")
	require.NoError(t, err)
	assert.Equal(t, mock.Server.URL+"/audio-clips/tracks/1376265.mp3", ref)

	// The stored reference resolves back to the object key
	res := mock.Store.Resolve(ref)
	require.True(t, res.Parsed())
	assert.Equal(t, "tracks/1376265.mp3", res.Key)

	// A presigned URL serves the object without extra credentials
	url, err := mock.Store.PresignGet(ctx, res.Key, 5*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Signature")

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test cleanup
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "fake-mp3-bytes", string(body))
}

func TestUpload_MissingFile(t *testing.T) {
	ctx := context.Background()

	mock, err := blobtest.StartMockS3(ctx, "audio-clips")
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	_, err = mock.Store.Upload(ctx, filepath.Join(t.TempDir(), "missing.mp3"), "tracks/missing.mp3")
	require.Error(t, err)
}

func TestEnsureBucket_Idempotent(t *testing.T) {
	ctx := context.Background()

	mock, err := blobtest.StartMockS3(ctx, "audio-clips")
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	// StartMockS3 already created the bucket once
	require.NoError(t, mock.Store.EnsureBucket(ctx))
}

func TestList(t *testing.T) {
	ctx := context.Background()

	mock, err := blobtest.StartMockS3(ctx, "audio-clips")
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	for _, name := range []string{"b.mp3", "a.mp3"} {
		src := writeTempClip(t, name, "clip "+name)
		_, err := mock.Store.Upload(ctx, src, "tracks/"+name)
		require.NoError(t, err)
	}
	src := writeTempClip(t, "other.bin", "not a track")
	_, err = mock.Store.Upload(ctx, src, "misc/other.bin")
	require.NoError(t, err)

	items, err := mock.Store.List(ctx, "tracks/")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "tracks/a.mp3", items[0].Key)
	assert.Equal(t, "tracks/b.mp3", items[1].Key)
	assert.Equal(t, int64(len("clip a.mp3")), items[0].Size)
}
