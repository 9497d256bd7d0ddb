package graph

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/penghs520/pgraph/pkg/codec"
	"github.com/penghs520/pgraph/pkg/kvstore"
	"github.com/penghs520/pgraph/pkg/log"
	"github.com/penghs520/pgraph/pkg/model"
)

// KV is the slice of the key-value store the engine consumes. kvstore
// satisfies it; tests substitute failing implementations.
type KV interface {
	Get(cf kvstore.ColumnFamily, key []byte) ([]byte, error)
	MultiGet(cf kvstore.ColumnFamily, keys [][]byte) ([][]byte, error)
	ScanPrefix(cf kvstore.ColumnFamily, prefix []byte, fn func(k, v []byte) error) error
	ScanAll(cf kvstore.ColumnFamily, fn func(k, v []byte) error) error
	Write(b *kvstore.Batch) error
	Checkpoint(dir string) error
	Close() error
	Path() string
}

// Config tunes the engine.
type Config struct {
	// VertexLRUSize caps the vertex cache entry count.
	VertexLRUSize int

	// StrictEdgeCreate makes edge creation fail on an existing forward
	// entry instead of upserting.
	StrictEdgeCreate bool

	// MmapSizeMB and NoSync are passed through to the KV.
	MmapSizeMB int
	NoSync     bool
}

// DefaultConfig matches the production defaults.
func DefaultConfig() Config {
	return Config{VertexLRUSize: 1_000_000}
}

// DB is the graph storage engine: the KV, the in-memory index, and the
// write lane serializing committers.
type DB struct {
	kv  KV
	mem *InMemory
	cfg Config

	// dataDir is set when the engine owns its KV (opened via Open);
	// snapshot installation requires it.
	dataDir string

	writeMu sync.Mutex
	log     zerolog.Logger
}

// Open opens the engine over a data directory and performs the cold
// start load.
func Open(dir string, cfg Config) (*DB, error) {
	kv, err := kvstore.Open(dir, kvstore.Options{InitialMmapSizeMB: cfg.MmapSizeMB, NoSync: cfg.NoSync})
	if err != nil {
		return nil, err
	}
	db, err := NewWithKV(kv, cfg)
	if err != nil {
		kv.Close()
		return nil, err
	}
	db.dataDir = dir
	return db, nil
}

// NewWithKV builds the engine over an existing KV. Engines built this
// way cannot install snapshots; they do not own the data directory.
func NewWithKV(kv KV, cfg Config) (*DB, error) {
	if cfg.VertexLRUSize <= 0 {
		cfg.VertexLRUSize = DefaultConfig().VertexLRUSize
	}
	mem, err := NewInMemory(cfg.VertexLRUSize)
	if err != nil {
		return nil, err
	}
	db := &DB{
		kv:  kv,
		mem: mem,
		cfg: cfg,
		log: log.WithComponent("graph"),
	}
	if err := db.LoadMemory(); err != nil {
		return nil, err
	}
	return db, nil
}

// Txn starts a transaction.
func (db *DB) Txn() *Txn {
	return &Txn{
		db:      db,
		vs:      vertexStore{kv: db.kv},
		es:      edgeStore{kv: db.kv},
		batch:   kvstore.NewBatch(),
		vdeltas: NewVertexDeltas(),
		edeltas: &EdgeDeltas{},
		staged:  make(map[model.VertexID]*model.Vertex),
	}
}

// LoadMemory rebuilds the in-memory index from the KV: the vertex scan
// fills the type index and warms the LRU, the edge scan fills the
// adjacency index and the edge-property map. Rows are grouped by
// type/descriptor before insertion to minimize map resizes.
func (db *DB) LoadMemory() error {
	start := time.Now()
	db.mem.Clear()

	vs := vertexStore{kv: db.kv}
	byType := make(map[model.Identifier][]Fragment, 64)
	vertexCount := 0
	err := vs.loadAll(func(v *model.Vertex) error {
		byType[v.CardTypeID] = append(byType[v.CardTypeID], NewFragment(v))
		db.mem.WarmVertex(v)
		vertexCount++
		return nil
	})
	if err != nil {
		return err
	}
	db.mem.BatchAddVertices(byType)

	es := edgeStore{kv: db.kv}
	byDesc := make(map[model.EdgeDescriptor][][2]model.VertexID, 16)
	var propEntries []EdgePropEntry
	edgeEntryCount := 0
	err = es.loadAll(func(parts codec.EdgeKeyParts, payload []byte) error {
		desc := model.EdgeDescriptor{Type: parts.Type, Direction: parts.Direction}
		byDesc[desc] = append(byDesc[desc], [2]model.VertexID{parts.AnchorID, parts.OtherID})
		edgeEntryCount++

		if parts.Direction == model.DirectionSrc && len(payload) > 0 {
			props, err := codec.DecodeEdgeProps(payload)
			if err != nil {
				return &SerializationError{Err: err}
			}
			if len(props) > 0 {
				propEntries = append(propEntries, EdgePropEntry{
					SrcID:  parts.AnchorID,
					Type:   parts.Type,
					DestID: parts.OtherID,
					Props:  props,
				})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.mem.BatchAddEdges(byDesc)
	db.mem.BatchSetEdgeProps(propEntries)

	db.log.Info().
		Int("vertices", vertexCount).
		Int("edge_entries", edgeEntryCount).
		Dur("elapsed", time.Since(start)).
		Msg("in-memory index loaded")
	return nil
}

// Stats snapshots the cache statistics.
func (db *DB) Stats() CacheStats {
	return db.mem.Stats()
}

// Checkpoint produces a consistent copy of the KV under dir.
func (db *DB) Checkpoint(dir string) error {
	if err := db.kv.Checkpoint(dir); err != nil {
		return &StorageError{Err: err}
	}
	return nil
}

// InstallSnapshot replaces the live data directory with the contents of
// a checkpoint directory and rebuilds the in-memory index. Writers are
// held off for the duration. Once the directory swap happens the install
// is committed; before it, failure leaves the live store untouched.
func (db *DB) InstallSnapshot(snapshotDir string) error {
	if db.dataDir == "" {
		return fmt.Errorf("engine does not own its data directory: %w", ErrUnsupported)
	}
	src := filepath.Join(snapshotDir, kvstore.FileName)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("snapshot is missing %s: %w", kvstore.FileName, err)
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if err := db.kv.Close(); err != nil {
		return &StorageError{Err: err}
	}

	if err := copyFile(src, filepath.Join(db.dataDir, kvstore.FileName)); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}

	kv, err := kvstore.Open(db.dataDir, kvstore.Options{InitialMmapSizeMB: db.cfg.MmapSizeMB, NoSync: db.cfg.NoSync})
	if err != nil {
		return fmt.Errorf("reopen after install: %w", err)
	}
	db.kv = kv

	if err := db.LoadMemory(); err != nil {
		return err
	}
	db.log.Info().Str("snapshot", snapshotDir).Msg("snapshot installed")
	return nil
}

// Close closes the underlying KV.
func (db *DB) Close() error {
	return db.kv.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".installing"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
