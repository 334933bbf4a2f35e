package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/text2tracks/backend/internal/blob"
	"github.com/text2tracks/backend/internal/constants"
	"github.com/text2tracks/backend/internal/domain"
	"github.com/text2tracks/backend/internal/embed/embedtest"
	"github.com/text2tracks/backend/internal/logger"
	"github.com/text2tracks/backend/internal/store"
)

// fakeCatalog is an in-memory backlog with write-once embeddings, matching
// the real store contract.
type fakeCatalog struct {
	pending    []*domain.Track
	nextErr    error
	setErr     error
	embeddings map[string][]float32
}

func (f *fakeCatalog) NextPendingTrack(ctx context.Context) (*domain.Track, error) {
	if f.nextErr != nil {
		return nil, f.nextErr
	}
	for _, track := range f.pending {
		if _, done := f.embeddings[track.ID]; !done {
			claimed := *track
			return &claimed, nil
		}
	}
	return nil, store.ErrNoPendingTracks
}

func (f *fakeCatalog) SetTrackEmbedding(ctx context.Context, id string, embedding []float32) error {
	if f.setErr != nil {
		return f.setErr
	}
	if _, done := f.embeddings[id]; done {
		return fmt.Errorf("track %s: %w", id, store.ErrNotPending)
	}
	if f.embeddings == nil {
		f.embeddings = make(map[string][]float32)
	}
	f.embeddings[id] = embedding
	return nil
}

type fakeResolver struct {
	presignErr   error
	presignCalls int
}

func (f *fakeResolver) Resolve(ref string) blob.Resolution {
	marker := "/audio-clips/"
	if i := strings.Index(ref, marker); i >= 0 {
		return blob.Resolution{Key: ref[i+len(marker):], Raw: ref}
	}
	return blob.Resolution{Raw: ref}
}

func (f *fakeResolver) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	f.presignCalls++
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "http://localhost:9000/audio-clips/" + key + "?X-Amz-Signature=test", nil
}

type fakeDownloader struct {
	content []byte
	err     error
	calls   int
	urls    []string
}

func (f *fakeDownloader) Download(ctx context.Context, url, dest string) error {
	f.calls++
	f.urls = append(f.urls, url)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, f.content, 0o644)
}

func newTestWorker(t *testing.T) (*Worker, *fakeCatalog, *fakeResolver, *fakeDownloader, *embedtest.Mock) {
	t.Helper()

	catalog := &fakeCatalog{}
	resolver := &fakeResolver{}
	dl := &fakeDownloader{content: []byte("audio-bytes")}
	mock := embedtest.NewMock()

	w := &Worker{
		Catalog:      catalog,
		Blob:         resolver,
		Downloader:   dl,
		Embedder:     mock,
		ScratchDir:   t.TempDir(),
		PollInterval: time.Millisecond,
		Cooldown:     time.Millisecond,
		Log:          logger.New(logger.Config{Level: "error", Format: "text"}),
	}
	return w, catalog, resolver, dl, mock
}

func pendingTrack(id string) *domain.Track {
	return &domain.Track{
		ID:       id,
		Title:    "Track " + id,
		Artist:   "Unknown",
		AudioURL: "http://localhost:9000/audio-clips/tracks/" + id + ".mp3",
	}
}

func scratchEntries(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWorker_RunOnce_Processed(t *testing.T) {
	w, catalog, resolver, dl, _ := newTestWorker(t)
	catalog.pending = []*domain.Track{pendingTrack("track_1")}

	if got := w.runOnce(context.Background()); got != outcomeProcessed {
		t.Fatalf("Expected outcomeProcessed, got %d", got)
	}

	vec, ok := catalog.embeddings["track_1"]
	if !ok {
		t.Fatal("Expected embedding to be persisted")
	}
	if len(vec) != constants.EmbeddingDim {
		t.Errorf("Expected %d dimensions, got %d", constants.EmbeddingDim, len(vec))
	}
	if resolver.presignCalls != 1 {
		t.Errorf("Expected 1 presign call, got %d", resolver.presignCalls)
	}
	if dl.calls != 1 {
		t.Fatalf("Expected 1 download, got %d", dl.calls)
	}
	if !strings.Contains(dl.urls[0], "X-Amz-Signature") {
		t.Errorf("Expected a presigned fetch URL, got %s", dl.urls[0])
	}
	if names := scratchEntries(t, w.ScratchDir); len(names) != 0 {
		t.Errorf("Expected clean scratch dir, got %v", names)
	}
}

func TestWorker_RunOnce_IdleWhenNoPending(t *testing.T) {
	w, _, _, dl, _ := newTestWorker(t)

	if got := w.runOnce(context.Background()); got != outcomeIdle {
		t.Fatalf("Expected outcomeIdle, got %d", got)
	}
	if dl.calls != 0 {
		t.Errorf("Expected no downloads, got %d", dl.calls)
	}
}

func TestWorker_RunOnce_ClaimError(t *testing.T) {
	w, catalog, _, _, _ := newTestWorker(t)
	catalog.nextErr = errors.New("connection refused")

	if got := w.runOnce(context.Background()); got != outcomeFailed {
		t.Errorf("Expected outcomeFailed, got %d", got)
	}
}

func TestWorker_RunOnce_RawFallback(t *testing.T) {
	w, catalog, resolver, dl, _ := newTestWorker(t)
	track := pendingTrack("track_2")
	track.AudioURL = "https://cdn.example.com/external/track_2.mp3"
	catalog.pending = []*domain.Track{track}

	if got := w.runOnce(context.Background()); got != outcomeProcessed {
		t.Fatalf("Expected outcomeProcessed, got %d", got)
	}
	if resolver.presignCalls != 0 {
		t.Errorf("Expected no presign calls for an unparsed ref, got %d", resolver.presignCalls)
	}
	if dl.calls != 1 || dl.urls[0] != track.AudioURL {
		t.Errorf("Expected raw ref fetch, got %v", dl.urls)
	}
}

func TestWorker_RunOnce_NoBlobStore(t *testing.T) {
	w, catalog, _, dl, _ := newTestWorker(t)
	w.Blob = nil
	catalog.pending = []*domain.Track{pendingTrack("track_3")}

	if got := w.runOnce(context.Background()); got != outcomeProcessed {
		t.Fatalf("Expected outcomeProcessed, got %d", got)
	}
	if dl.calls != 1 || dl.urls[0] != catalog.pending[0].AudioURL {
		t.Errorf("Expected stored ref fetch, got %v", dl.urls)
	}
}

func TestWorker_RunOnce_EmptyAudioRef(t *testing.T) {
	w, catalog, _, dl, _ := newTestWorker(t)
	track := pendingTrack("track_4")
	track.AudioURL = ""
	catalog.pending = []*domain.Track{track}

	if got := w.runOnce(context.Background()); got != outcomeFailed {
		t.Errorf("Expected outcomeFailed, got %d", got)
	}
	if dl.calls != 0 {
		t.Errorf("Expected no downloads, got %d", dl.calls)
	}
}

func TestWorker_RunOnce_PresignFailure(t *testing.T) {
	w, catalog, resolver, dl, _ := newTestWorker(t)
	resolver.presignErr = errors.New("credentials expired")
	catalog.pending = []*domain.Track{pendingTrack("track_5")}

	if got := w.runOnce(context.Background()); got != outcomeFailed {
		t.Errorf("Expected outcomeFailed, got %d", got)
	}
	if dl.calls != 0 {
		t.Errorf("Expected no downloads after presign failure, got %d", dl.calls)
	}
	if len(catalog.embeddings) != 0 {
		t.Errorf("Expected track to stay pending, got %v", catalog.embeddings)
	}
}

func TestWorker_RunOnce_DownloadFailure(t *testing.T) {
	w, catalog, _, dl, _ := newTestWorker(t)
	dl.err = errors.New("status 503")
	catalog.pending = []*domain.Track{pendingTrack("track_6")}

	if got := w.runOnce(context.Background()); got != outcomeFailed {
		t.Errorf("Expected outcomeFailed, got %d", got)
	}
	if len(catalog.embeddings) != 0 {
		t.Errorf("Expected track to stay pending, got %v", catalog.embeddings)
	}
	if names := scratchEntries(t, w.ScratchDir); len(names) != 0 {
		t.Errorf("Expected clean scratch dir, got %v", names)
	}
}

func TestWorker_RunOnce_EmbedFailure(t *testing.T) {
	w, catalog, _, _, mock := newTestWorker(t)
	mock.EmbedFileFunc = func(ctx context.Context, path string) ([]float32, error) {
		return nil, errors.New("no audio samples decoded")
	}
	catalog.pending = []*domain.Track{pendingTrack("track_7")}

	if got := w.runOnce(context.Background()); got != outcomeFailed {
		t.Errorf("Expected outcomeFailed, got %d", got)
	}
	if len(catalog.embeddings) != 0 {
		t.Errorf("Expected track to stay pending, got %v", catalog.embeddings)
	}
	if names := scratchEntries(t, w.ScratchDir); len(names) != 0 {
		t.Errorf("Expected scratch file removed after embed failure, got %v", names)
	}
}

func TestWorker_RunOnce_DimensionMismatch(t *testing.T) {
	w, catalog, _, _, mock := newTestWorker(t)
	mock.EmbedFileFunc = func(ctx context.Context, path string) ([]float32, error) {
		return make([]float32, 16), nil
	}
	catalog.pending = []*domain.Track{pendingTrack("track_8")}

	if got := w.runOnce(context.Background()); got != outcomeFailed {
		t.Errorf("Expected outcomeFailed, got %d", got)
	}
	if len(catalog.embeddings) != 0 {
		t.Errorf("Expected short vector to be rejected, got %v", catalog.embeddings)
	}
}

func TestWorker_RunOnce_PanicRecovered(t *testing.T) {
	w, catalog, _, _, mock := newTestWorker(t)
	mock.EmbedFileFunc = func(ctx context.Context, path string) ([]float32, error) {
		panic("tensor allocation failed")
	}
	catalog.pending = []*domain.Track{pendingTrack("track_9")}

	if got := w.runOnce(context.Background()); got != outcomeFailed {
		t.Errorf("Expected outcomeFailed after panic, got %d", got)
	}
	// Deferred cleanup still runs during unwinding.
	if names := scratchEntries(t, w.ScratchDir); len(names) != 0 {
		t.Errorf("Expected clean scratch dir after panic, got %v", names)
	}
}

func TestWorker_RunOnce_PersistFailure(t *testing.T) {
	w, catalog, _, _, _ := newTestWorker(t)
	catalog.setErr = errors.New("connection reset")
	catalog.pending = []*domain.Track{pendingTrack("track_10")}

	if got := w.runOnce(context.Background()); got != outcomeFailed {
		t.Errorf("Expected outcomeFailed, got %d", got)
	}
}

func TestWorker_RunOnce_AlreadyVectorized(t *testing.T) {
	w, catalog, _, _, _ := newTestWorker(t)
	catalog.setErr = fmt.Errorf("track track_11: %w", store.ErrNotPending)
	catalog.pending = []*domain.Track{pendingTrack("track_11")}

	if got := w.runOnce(context.Background()); got != outcomeProcessed {
		t.Errorf("Expected a lost write-once race to count as processed, got %d", got)
	}
}

func TestWorker_RunOnce_ScratchExtensionFromRef(t *testing.T) {
	w, catalog, _, _, mock := newTestWorker(t)
	var embeddedPath string
	mock.EmbedFileFunc = func(ctx context.Context, path string) ([]float32, error) {
		embeddedPath = path
		return embedtest.DeterministicVector(path, constants.EmbeddingDim), nil
	}
	track := pendingTrack("track_12")
	track.AudioURL = "http://localhost:9000/audio-clips/tracks/track_12.flac"
	catalog.pending = []*domain.Track{track}

	if got := w.runOnce(context.Background()); got != outcomeProcessed {
		t.Fatalf("Expected outcomeProcessed, got %d", got)
	}
	if !strings.HasSuffix(embeddedPath, ".flac") {
		t.Errorf("Expected scratch file to keep the .flac extension, got %s", embeddedPath)
	}
}

func TestWorker_Run_DrainsBacklogThenIdles(t *testing.T) {
	w, catalog, _, _, _ := newTestWorker(t)
	catalog.pending = []*domain.Track{pendingTrack("track_13"), pendingTrack("track_14")}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if len(catalog.embeddings) != 2 {
		t.Errorf("Expected both tracks vectorized, got %d", len(catalog.embeddings))
	}
}

func TestWorker_Run_StopsOnCancel(t *testing.T) {
	w, _, _, _, _ := newTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestWorker_Run_RequiresDependencies(t *testing.T) {
	w := &Worker{Downloader: &fakeDownloader{}, Embedder: embedtest.NewMock()}
	if err := w.Run(context.Background()); err == nil {
		t.Error("Expected error without a catalog")
	}

	w = &Worker{Catalog: &fakeCatalog{}, Embedder: embedtest.NewMock()}
	if err := w.Run(context.Background()); err == nil {
		t.Error("Expected error without a downloader")
	}

	w = &Worker{Catalog: &fakeCatalog{}, Downloader: &fakeDownloader{}}
	if err := w.Run(context.Background()); err == nil {
		t.Error("Expected error without an embedder")
	}
}
