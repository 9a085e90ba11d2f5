package hubs

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephemeral-project/backend/internal/blob"
	"github.com/ephemeral-project/backend/internal/store"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[key]
	if !ok {
		return nil, blob.ErrReadFailure
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjects) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis, *fakeObjects) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	objects := newFakeObjects()
	svc := NewService(
		store.NewRecordStore(client, store.DefaultKeyPrefix),
		blob.NewRelay(objects),
	)
	return svc, mr, objects
}

func TestCreateHubStartsEmpty(t *testing.T) {
	svc, mr, _ := newTestService(t)

	rec, err := svc.CreateHub(context.Background())
	require.NoError(t, err)

	assert.Len(t, rec.ID, 10)
	assert.Empty(t, rec.Content)
	assert.Empty(t, rec.Files)
	assert.Empty(t, rec.Whiteboard)
	assert.WithinDuration(t, time.Now().UTC(), rec.CreatedAt, time.Minute)
	assert.Equal(t, HubTTL, mr.TTL(store.DefaultKeyPrefix+rec.ID))
}

func TestCreateHubIDsAreUnique(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		rec, err := svc.CreateHub(ctx)
		require.NoError(t, err)
		assert.False(t, seen[rec.ID], "duplicate id %q", rec.ID)
		seen[rec.ID] = true
	}
}

func TestSetTextDoesNotExtendLifetime(t *testing.T) {
	svc, mr, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.CreateHub(ctx)
	require.NoError(t, err)

	mr.FastForward(time.Hour)

	require.NoError(t, svc.SetText(ctx, rec.ID, "hello"))
	assert.Equal(t, HubTTL-time.Hour, mr.TTL(store.DefaultKeyPrefix+rec.ID))

	got, err := svc.ReadHub(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
}

func TestHubLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.CreateHub(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.SetText(ctx, rec.ID, "hello"))
	require.NoError(t, svc.AddFile(ctx, rec.ID, "a.txt", []byte("data")))

	got, err := svc.ReadHub(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "a.txt", got.Files[0].Filename)
	assert.Equal(t, uint64(4), got.Files[0].Size)

	data, err := svc.DownloadBundle(ctx, rec.ID)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = content
	}
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("hello"), entries[blob.TextEntryName])
	assert.Equal(t, []byte("data"), entries["a.txt"])
}

func TestOperationsOnUnknownHub(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ReadHub(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = svc.SetText(ctx, "missing", "hello")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.DownloadBundle(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddFileToVanishedHubOrphansBlob(t *testing.T) {
	svc, mr, objects := newTestService(t)
	ctx := context.Background()

	rec, err := svc.CreateHub(ctx)
	require.NoError(t, err)

	// The hub disappears between the upload and the metadata write. The
	// record stays untouched; the uploaded bytes are left behind for the
	// bucket lifecycle policy.
	mr.Del(store.DefaultKeyPrefix + rec.ID)

	err = svc.AddFile(ctx, rec.ID, "a.txt", []byte("data"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, objects.has(rec.ID+"/a.txt"))
}
