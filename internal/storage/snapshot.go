package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	defaultSnapshotPrefix = "countries"
	snapshotTimeLayout    = "20060102T150405Z"
	contentTypeJSON       = "application/json"
)

// Snapshot describes a stored copy of the country list.
type Snapshot struct {
	Key       string    `json:"key"`
	LatestKey string    `json:"latest_key"`
	Bucket    string    `json:"bucket"`
	Size      int       `json:"size"`
	TakenAt   time.Time `json:"taken_at"`
}

// SnapshotStore archives country payloads in object storage. Each save
// writes a timestamped object and overwrites the latest pointer.
type SnapshotStore struct {
	backend ObjectStorage
	prefix  string
	now     func() time.Time
}

func NewSnapshotStore(backend ObjectStorage, prefix string) *SnapshotStore {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = defaultSnapshotPrefix
	}
	return &SnapshotStore{backend: backend, prefix: prefix, now: time.Now}
}

// Save stores payload, which must be a JSON array of country records.
func (s *SnapshotStore) Save(ctx context.Context, payload json.RawMessage) (Snapshot, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(payload, &records); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot payload must be a country list: %w", err)
	}

	if err := s.backend.EnsureBucket(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("ensure bucket %s: %w", s.backend.Bucket(), err)
	}

	takenAt := s.now().UTC()
	snapshot := Snapshot{
		Key:       path.Join(s.prefix, "snapshots", takenAt.Format(snapshotTimeLayout)+".json"),
		LatestKey: s.latestKey(),
		Bucket:    s.backend.Bucket(),
		Size:      len(payload),
		TakenAt:   takenAt,
	}

	if err := s.put(ctx, snapshot.Key, payload); err != nil {
		return Snapshot{}, err
	}
	// Without the latest pointer the timestamped copy is unreachable, so drop it.
	if err := s.put(ctx, snapshot.LatestKey, payload); err != nil {
		if delErr := s.backend.Delete(ctx, snapshot.Key); delErr != nil {
			return Snapshot{}, errors.Join(err, fmt.Errorf("remove %s: %w", snapshot.Key, delErr))
		}
		return Snapshot{}, err
	}
	return snapshot, nil
}

// Latest returns the most recently saved payload.
func (s *SnapshotStore) Latest(ctx context.Context) (json.RawMessage, error) {
	reader, err := s.backend.Get(ctx, s.latestKey())
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.latestKey(), err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("snapshot %s is not valid JSON", s.latestKey())
	}
	return json.RawMessage(data), nil
}

func (s *SnapshotStore) put(ctx context.Context, key string, payload []byte) error {
	if err := s.backend.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), contentTypeJSON); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *SnapshotStore) latestKey() string {
	return path.Join(s.prefix, "latest.json")
}
