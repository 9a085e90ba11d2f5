// Package hubs is the lifecycle API for hub records: thin orchestration
// over the record store and the blob relay.
package hubs

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/ephemeral-project/backend/internal/blob"
	"github.com/ephemeral-project/backend/internal/models"
	"github.com/ephemeral-project/backend/internal/store"
)

// HubTTL is the lifetime of a hub from creation. Mutations carry the
// remaining TTL forward; nothing ever extends it.
const HubTTL = 24 * time.Hour

const hubIDLength = 10

type Service struct {
	store *store.RecordStore
	relay *blob.Relay
}

func NewService(records *store.RecordStore, relay *blob.Relay) *Service {
	return &Service{
		store: records,
		relay: relay,
	}
}

// CreateHub generates a fresh id and writes an empty record with the full
// TTL.
func (s *Service) CreateHub(ctx context.Context) (rec *models.HubRecord, err error) {
	var id string
	if id, err = gonanoid.New(hubIDLength); err != nil {
		err = fmt.Errorf("generate hub id: %w", err)
		return
	}

	rec = models.NewHubRecord(id, time.Now().UTC())
	if err = s.store.Create(ctx, rec, HubTTL); err != nil {
		rec = nil
		return
	}

	return
}

func (s *Service) ReadHub(ctx context.Context, id string) (*models.HubRecord, error) {
	return s.store.Get(ctx, id)
}

// SetText replaces the hub's text bin content.
func (s *Service) SetText(ctx context.Context, id, text string) error {
	return s.store.Mutate(ctx, id, func(rec *models.HubRecord) error {
		rec.Content = text
		return nil
	})
}

// AddFile uploads the bytes first and appends the metadata second. A mutate
// failure after a successful upload leaves the object orphaned until the
// bucket's lifecycle policy reclaims it; the record itself stays consistent.
func (s *Service) AddFile(ctx context.Context, id, filename string, data []byte) error {
	if err := s.relay.Put(ctx, id, filename, data); err != nil {
		return err
	}

	return s.store.Mutate(ctx, id, func(rec *models.HubRecord) error {
		rec.Files = append(rec.Files, models.FileInfo{
			Filename: filename,
			Size:     uint64(len(data)),
		})
		return nil
	})
}

// DownloadBundle returns a zip of the hub's text content and every file.
func (s *Service) DownloadBundle(ctx context.Context, id string) ([]byte, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.relay.Bundle(ctx, rec)
}
