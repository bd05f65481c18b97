package storage

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

var (
	instancesBucket = []byte("instances")
	tokensBucket    = []byte("tokens")
)

// BoltStorage implements Storage interface using BoltDB
type BoltStorage struct {
	db      *bolt.DB
	dataDir string
}

// NewBoltStorage creates a new BoltDB-backed storage
func NewBoltStorage(path string, dataDir string) (*BoltStorage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{instancesBucket, tokensBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltStorage{db: db, dataDir: dataDir}, nil
}

// Close closes the database
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

// DataDir returns the data directory
func (s *BoltStorage) DataDir() string {
	return s.dataDir
}

// Instance operations

// CreateInstance stores a new instance
func (s *BoltStorage) CreateInstance(inst *Instance) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(instancesBucket)
		data, err := msgpack.Marshal(inst)
		if err != nil {
			return err
		}
		return b.Put([]byte(inst.ID), data)
	})
}

// GetInstance retrieves an instance by ID
func (s *BoltStorage) GetInstance(id string) (*Instance, error) {
	var inst Instance
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(instancesBucket)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("instance not found: %s", id)
		}
		return msgpack.Unmarshal(data, &inst)
	})
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// ListInstances returns all instances, including soft-deleted ones
func (s *BoltStorage) ListInstances() []*Instance {
	var instances []*Instance
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(instancesBucket)
		return b.ForEach(func(k, v []byte) error {
			var inst Instance
			if err := msgpack.Unmarshal(v, &inst); err != nil {
				return err
			}
			instances = append(instances, &inst)
			return nil
		})
	})
	return instances
}

// UpdateInstance updates an existing instance
func (s *BoltStorage) UpdateInstance(inst *Instance) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(instancesBucket)
		if b.Get([]byte(inst.ID)) == nil {
			return fmt.Errorf("instance not found: %s", inst.ID)
		}
		data, err := msgpack.Marshal(inst)
		if err != nil {
			return err
		}
		return b.Put([]byte(inst.ID), data)
	})
}

// API token operations

// CreateToken stores a new API token
func (s *BoltStorage) CreateToken(token *ApiToken) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tokensBucket)
		data, err := msgpack.Marshal(token)
		if err != nil {
			return err
		}
		return b.Put([]byte(token.ID), data)
	})
}

// GetToken retrieves an API token by ID
func (s *BoltStorage) GetToken(id string) (*ApiToken, error) {
	var token ApiToken
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(tokensBucket)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("token not found: %s", id)
		}
		return msgpack.Unmarshal(data, &token)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ListTokens returns all API tokens for an owner
func (s *BoltStorage) ListTokens(ownerID int64) []*ApiToken {
	var tokens []*ApiToken
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(tokensBucket)
		return b.ForEach(func(k, v []byte) error {
			var token ApiToken
			if err := msgpack.Unmarshal(v, &token); err != nil {
				return err
			}
			if token.OwnerID == ownerID {
				tokens = append(tokens, &token)
			}
			return nil
		})
	})
	return tokens
}

// UpdateToken updates an existing API token
func (s *BoltStorage) UpdateToken(token *ApiToken) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tokensBucket)
		if b.Get([]byte(token.ID)) == nil {
			return fmt.Errorf("token not found: %s", token.ID)
		}
		data, err := msgpack.Marshal(token)
		if err != nil {
			return err
		}
		return b.Put([]byte(token.ID), data)
	})
}
