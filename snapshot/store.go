package snapshot

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
)

const (
	keyPrefix = "snapshot/"
	latestKey = "latest"
)

// Store persists snapshots in a pebble keyspace.
type Store struct {
	db *pebble.DB
}

func OpenStore(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the snapshot and moves the latest pointer to it. A missing ID
// is assigned here.
func (s *Store) Save(snap *Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.Created.IsZero() {
		snap.Created = time.Now()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.db.Set([]byte(keyPrefix+snap.ID), buf.Bytes(), pebble.Sync); err != nil {
		return err
	}
	return s.db.Set([]byte(latestKey), []byte(snap.ID), pebble.Sync)
}

// Load returns the snapshot stored under id.
func (s *Store) Load(id string) (*Snapshot, error) {
	val, closer, err := s.db.Get([]byte(keyPrefix + id))
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// Latest returns the most recently saved snapshot, or (nil, nil) when the
// store is empty.
func (s *Store) Latest() (*Snapshot, error) {
	val, closer, err := s.db.Get([]byte(latestKey))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	id := string(val)
	closer.Close()
	return s.Load(id)
}

// IDs lists every stored snapshot id.
func (s *Store) IDs() ([]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var ids []string
	for iter.First(); iter.Valid(); iter.Next() {
		ids = append(ids, string(iter.Key()[len(keyPrefix):]))
	}
	return ids, iter.Error()
}
