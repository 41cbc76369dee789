package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketSnippets = []byte("snippets")

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "snippets.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSnippets); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketSnippets, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) CreateSnippet(ctx context.Context, snippet *Snippet) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnippets)
		data, err := json.Marshal(snippet)
		if err != nil {
			return err
		}
		return b.Put([]byte(snippet.ID), data)
	})
}

func (s *BoltStore) GetSnippet(ctx context.Context, id string) (*Snippet, error) {
	var snippet Snippet
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnippets)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &snippet)
	})
	if err != nil {
		return nil, err
	}
	return &snippet, nil
}

func (s *BoltStore) ListSnippets(ctx context.Context) ([]*Snippet, error) {
	var snippets []*Snippet
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnippets)
		return b.ForEach(func(k, v []byte) error {
			var snippet Snippet
			if err := json.Unmarshal(v, &snippet); err != nil {
				return err
			}
			snippets = append(snippets, &snippet)
			return nil
		})
	})
	return snippets, err
}

func (s *BoltStore) DeleteSnippet(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnippets)
		if b.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}
