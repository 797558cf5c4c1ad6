// internal/storage/store.go
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/avpratap/riqueza-cart-sync/internal/models"
)

// Store is the durable local key-value store backing the cart core. It holds
// three values: the cart snapshot, the guest session id and the transfer
// attempted flag. It is the process analog of the browser's localStorage.
type Store struct {
	db *bolt.DB
}

const bucketName = "cart_sync"

const (
	keySnapshot          = "cart_snapshot"
	keyGuestSessionID    = "guest_session_id"
	keyTransferAttempted = "cart_transfer_attempted"
)

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage at %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create storage bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot writes the snapshot synchronously. Callers rely on the write
// completing before the triggering mutation returns.
func (s *Store) SaveSnapshot(snapshot *models.CartSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode cart snapshot: %w", err)
	}
	return s.put(keySnapshot, data)
}

// LoadSnapshot returns the persisted snapshot, or nil when none exists.
func (s *Store) LoadSnapshot() (*models.CartSnapshot, error) {
	data, err := s.get(keySnapshot)
	if err != nil || data == nil {
		return nil, err
	}
	var snapshot models.CartSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode cart snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *Store) DeleteSnapshot() error {
	return s.delete(keySnapshot)
}

func (s *Store) GuestSessionID() (string, error) {
	data, err := s.get(keyGuestSessionID)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) SetGuestSessionID(id string) error {
	return s.put(keyGuestSessionID, []byte(id))
}

func (s *Store) DeleteGuestSessionID() error {
	return s.delete(keyGuestSessionID)
}

func (s *Store) TransferAttempted() (bool, error) {
	data, err := s.get(keyTransferAttempted)
	if err != nil {
		return false, err
	}
	return string(data) == "true", nil
}

func (s *Store) MarkTransferAttempted() error {
	return s.put(keyTransferAttempted, []byte("true"))
}

func (s *Store) ResetTransferAttempted() error {
	return s.delete(keyTransferAttempted)
}

func (s *Store) put(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), value)
	})
}

func (s *Store) get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket([]byte(bucketName)).Get([]byte(key)); data != nil {
			out = make([]byte, len(data))
			copy(out, data)
		}
		return nil
	})
	return out, err
}

func (s *Store) delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}
