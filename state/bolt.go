package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	bbolt "go.etcd.io/bbolt"
)

var bucketProcessed = []byte("processed")

// BoltTracker keeps processed hashes in a bbolt database. Every mark is
// committed in its own transaction, so nothing needs flushing on exit.
type BoltTracker struct {
	*MemoryTracker
	db      *bbolt.DB
	persist bool
}

func NewBoltTracker(stateDir string, persist bool) (*BoltTracker, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, fmt.Errorf("state directory is empty")
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	path := filepath.Join(stateDir, "processed.db")
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketProcessed)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create state bucket: %w", err)
	}

	tracker := &BoltTracker{
		MemoryTracker: NewMemoryTracker(),
		db:            db,
		persist:       persist,
	}

	if err := tracker.load(); err != nil {
		db.Close()
		return nil, err
	}

	return tracker, nil
}

func (b *BoltTracker) load() error {
	return b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketProcessed)
		if bucket == nil {
			return nil
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		return bucket.ForEach(func(k, v []byte) error {
			b.processed[string(k)] = string(v)
			return nil
		})
	})
}

func (b *BoltTracker) MarkProcessed(hash, file string) error {
	if hash == "" {
		return nil
	}

	b.mu.Lock()
	if _, exists := b.processed[hash]; exists {
		b.mu.Unlock()
		return nil
	}
	b.processed[hash] = file
	b.mu.Unlock()

	if !b.persist {
		return nil
	}

	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketProcessed).Put([]byte(hash), []byte(file))
	})
	if err != nil {
		return fmt.Errorf("write state record: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (b *BoltTracker) Close() error {
	if b.db == nil {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close state db: %w", err)
	}
	return nil
}
