package archive

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/geoblock/internal/geoblock/domain"
	"github.com/haukened/geoblock/internal/geoblock/services/blocking"
)

var bucketAttempts = []byte("attempts")

// ErrClosed is returned by Append and Count after Close.
var ErrClosed = errors.New("archive is closed")

// Archive is an append-only bbolt log of blocked-attempt entries. It is
// never read back into the registry.
type Archive struct {
	db *bbolt.DB
}

// Open opens (or creates) a bbolt database at path and ensures the attempts
// bucket exists.
func Open(path string) (*Archive, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open archive %q: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAttempts)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create attempts bucket: %w", err)
	}
	return &Archive{db: db}, nil
}

// entryKey orders entries by timestamp; the ID suffix keeps keys unique.
func entryKey(entry domain.BlockedAttemptLog) []byte {
	k := make([]byte, 8, 8+len(entry.ID))
	binary.BigEndian.PutUint64(k, uint64(entry.Timestamp.UnixNano()))
	return append(k, entry.ID...)
}

// Append stores entry.
func (a *Archive) Append(entry domain.BlockedAttemptLog) error {
	if a == nil || a.db == nil {
		return ErrClosed
	}
	v, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	return a.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAttempts).Put(entryKey(entry), v)
	})
}

// Count returns the number of archived entries.
func (a *Archive) Count() (int, error) {
	if a == nil || a.db == nil {
		return 0, ErrClosed
	}
	var n int
	err := a.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketAttempts).Stats().KeyN
		return nil
	})
	return n, err
}

// Close releases the database. It is safe to call more than once.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

var _ blocking.AttemptArchive = (*Archive)(nil)
