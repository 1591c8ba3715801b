package security

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	caBucketName = []byte("ca")
	caKey        = []byte("root")
)

// BoltCAStore is the CAStore used by a cluster manager: a single-value
// BoltDB bucket holding the encrypted root cert+key blob, kept separate
// from pkg/store's per-alias chain buckets since the CA is cluster-wide
// state, not cache data.
type BoltCAStore struct {
	db *bolt.DB
}

// NewBoltCAStore opens (or creates) the BoltDB file at path.
func NewBoltCAStore(path string) (*BoltCAStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("security: open ca store %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(caBucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("security: create ca bucket: %w", err)
	}
	return &BoltCAStore{db: db}, nil
}

// SaveCA implements CAStore.
func (s *BoltCAStore) SaveCA(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(caBucketName).Put(caKey, data)
	})
}

// GetCA implements CAStore.
func (s *BoltCAStore) GetCA() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(caBucketName).Get(caKey)
		if v == nil {
			return fmt.Errorf("security: no CA saved")
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// Close closes the underlying database.
func (s *BoltCAStore) Close() error {
	return s.db.Close()
}
