package kvstore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// ColumnFamily names a logical keyspace, backed by a bbolt bucket.
type ColumnFamily string

// The four column families of the data store.
const (
	CFVertex      ColumnFamily = "vertex"
	CFVertexDesc  ColumnFamily = "vertex_desc"
	CFVertexIndex ColumnFamily = "vertex_index"
	CFEdge        ColumnFamily = "edge"
)

// FileName is the database file inside the data directory; checkpoints
// reproduce it under the snapshot directory.
const FileName = "graph.db"

var columnFamilies = []ColumnFamily{CFVertex, CFVertexDesc, CFVertexIndex, CFEdge}

// Options tunes the underlying store.
type Options struct {
	// InitialMmapSizeMB presizes the mmap so early growth does not
	// block readers.
	InitialMmapSizeMB int

	// NoSync trades durability for write throughput. Only tests and
	// bulk loads should enable it.
	NoSync bool
}

// Store is an ordered transactional KV with column families.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the store inside dir and ensures every column
// family exists.
func Open(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(dir, FileName)

	boltOpts := &bolt.Options{
		InitialMmapSize: opts.InitialMmapSizeMB * 1024 * 1024,
	}
	db, err := bolt.Open(path, 0o600, boltOpts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.NoSync = opts.NoSync

	err = db.Update(func(tx *bolt.Tx) error {
		for _, cf := range columnFamilies {
			if _, err := tx.CreateBucketIfNotExists([]byte(cf)); err != nil {
				return fmt.Errorf("create column family %s: %w", cf, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Get reads a single key; the result is nil when the key has no row.
func (s *Store) Get(cf ColumnFamily, key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(cf)).Get(key); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// MultiGet reads many keys in one read transaction. Results are returned
// in input order with nil entries for missing keys.
func (s *Store) MultiGet(cf ColumnFamily, keys [][]byte) ([][]byte, error) {
	out := make([][]byte, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(cf))
		for i, key := range keys {
			if v := b.Get(key); v != nil {
				out[i] = append([]byte(nil), v...)
			}
		}
		return nil
	})
	return out, err
}

// ScanPrefix iterates keys sharing prefix in lexicographic order and
// stops at the first key outside it. Returning a non-nil error from fn
// aborts the scan.
func (s *Store) ScanPrefix(cf ColumnFamily, prefix []byte, fn func(k, v []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(cf)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// ScanAll iterates every key of a column family in order.
func (s *Store) ScanAll(cf ColumnFamily, fn func(k, v []byte) error) error {
	return s.ScanPrefix(cf, nil, fn)
}

// Write applies a batch atomically: either every put and delete lands or
// none do.
func (s *Store) Write(b *Batch) error {
	if b == nil || len(b.ops) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, op := range b.ops {
			bucket := tx.Bucket([]byte(op.cf))
			if op.delete {
				if err := bucket.Delete(op.key); err != nil {
					return err
				}
				continue
			}
			if err := bucket.Put(op.key, op.value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Checkpoint writes a consistent copy of every column family into dir.
// The copy is taken under a read transaction, so writers are not blocked
// beyond the transaction handoff.
func (s *Store) Checkpoint(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, FileName))
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}
	defer f.Close()

	err = s.db.View(func(tx *bolt.Tx) error {
		_, err := tx.WriteTo(f)
		return err
	})
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return f.Sync()
}
