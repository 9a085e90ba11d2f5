package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ephemeral-project/backend/internal/models"
)

var (
	ErrNotFound = errors.New("store: hub not found")
	ErrExpired  = errors.New("store: hub expired")
	ErrConflict = errors.New("store: hub already exists")
)

// DefaultKeyPrefix matches the key scheme used by earlier deployments.
const DefaultKeyPrefix = "space:"

// RecordStore keeps hub records as JSON strings under expiring keys.
type RecordStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRecordStore(client *redis.Client, keyPrefix string) *RecordStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	return &RecordStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *RecordStore) key(id string) string {
	return s.keyPrefix + id
}

// Create writes the record only if no key exists for its id yet.
func (s *RecordStore) Create(ctx context.Context, rec *models.HubRecord, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %q: %w", rec.ID, err)
	}

	ok, err := s.client.SetNX(ctx, s.key(rec.ID), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("create record %q: %w", rec.ID, err)
	} else if !ok {
		return ErrConflict
	}

	return nil
}

func (s *RecordStore) Get(ctx context.Context, id string) (*models.HubRecord, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get record %q: %w", id, err)
	}

	var rec models.HubRecord
	if err = json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record %q: %w", id, err)
	}

	return &rec, nil
}

// Mutate applies fn to the stored record and writes it back with the
// remaining TTL observed before the write, never the full duration.
//
// The read-modify-write is not linearizable: two concurrent callers can
// interleave, and the later write wins while the earlier payload is silently
// dropped. TTL stays correct either way. Callers accept last-write-wins
// semantics. If the key expires between read and write, the write is a no-op
// and the caller sees ErrNotFound.
func (s *RecordStore) Mutate(ctx context.Context, id string, fn func(*models.HubRecord) error) error {
	key := s.key(id)

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read record %q: %w", id, err)
	}

	if errors.Is(getCmd.Err(), redis.Nil) {
		return ErrNotFound
	}

	ttl, err := ttlCmd.Result()
	if err != nil {
		return fmt.Errorf("read ttl of record %q: %w", id, err)
	} else if ttl <= 0 {
		// Never write a record whose clock has already run out; that
		// would resurrect the key with a fresh lifetime.
		return ErrExpired
	}

	var rec models.HubRecord
	if err = json.Unmarshal([]byte(getCmd.Val()), &rec); err != nil {
		return fmt.Errorf("unmarshal record %q: %w", id, err)
	}

	if err = fn(&rec); err != nil {
		return err
	}

	payload, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal record %q: %w", id, err)
	}

	// XX: only write if the key still exists, so a racing expiry turns
	// this into a no-op instead of a resurrection.
	ok, err := s.client.SetXX(ctx, key, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("write record %q: %w", id, err)
	} else if !ok {
		return ErrNotFound
	}

	return nil
}
