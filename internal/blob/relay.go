package blob

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ephemeral-project/backend/internal/models"
)

var (
	ErrReadFailure  = errors.New("blob: read failure")
	ErrWriteFailure = errors.New("blob: write failure")
)

// TextEntryName is the zip entry carrying the hub's text bin content.
const TextEntryName = "ephemeral_text_bin.txt"

// Relay moves file bytes between callers and the object store, keyed by
// "<hubId>/<filename>".
type Relay struct {
	objects ObjectStore
}

func NewRelay(objects ObjectStore) *Relay {
	return &Relay{objects: objects}
}

func objectKey(hubID, filename string) string {
	return hubID + "/" + filename
}

// Put uploads data under the hub's key. Re-uploading an existing filename
// overwrites the bytes; last write wins.
func (r *Relay) Put(ctx context.Context, hubID, filename string, data []byte) error {
	key := objectKey(hubID, filename)
	if err := r.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	return nil
}

func (r *Relay) Get(ctx context.Context, hubID, filename string) ([]byte, error) {
	key := objectKey(hubID, filename)

	obj, err := r.objects.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrReadFailure, key, err)
	}

	return data, nil
}

// Bundle builds a zip archive with one entry for the hub's text content and
// one entry per listed file. Any single fetch failure aborts the whole
// bundle; no partial archive is ever returned.
func (r *Relay) Bundle(ctx context.Context, rec *models.HubRecord) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create(TextEntryName)
	if err != nil {
		return nil, fmt.Errorf("bundle %q: %w", rec.ID, err)
	}
	if _, err = w.Write([]byte(rec.Content)); err != nil {
		return nil, fmt.Errorf("bundle %q: %w", rec.ID, err)
	}

	for _, file := range rec.Files {
		var data []byte
		if data, err = r.Get(ctx, rec.ID, file.Filename); err != nil {
			return nil, err
		}

		if w, err = zw.Create(file.Filename); err != nil {
			return nil, fmt.Errorf("bundle %q: %w", rec.ID, err)
		}
		if _, err = w.Write(data); err != nil {
			return nil, fmt.Errorf("bundle %q: %w", rec.ID, err)
		}
	}

	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("bundle %q: %w", rec.ID, err)
	}

	return buf.Bytes(), nil
}
