package cache

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketValues = []byte("values")

// diskTier is the local, durable-across-restarts leg of the tiered
// local store: a bbolt database holding resolved values, keyed by the
// cache's serialized keys directly (not by KeyHash — this is a local
// mirror, never the bucket-chain structure the clustered tier uses).
type diskTier struct {
	db *bolt.DB
}

func newDiskTier(path string) (*diskTier, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: open disk tier: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketValues)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init disk tier: %w", err)
	}
	return &diskTier{db: db}, nil
}

func (d *diskTier) get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketValues).Get(key)
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, value != nil, err
}

func (d *diskTier) put(key, value []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketValues).Put(key, value)
	})
}

func (d *diskTier) remove(key []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketValues).Delete(key)
	})
}

func (d *diskTier) purge() error {
	return d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketValues); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketValues)
		return err
	})
}

func (d *diskTier) close() error {
	return d.db.Close()
}
