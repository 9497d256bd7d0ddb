package fsm

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"

	"github.com/penghs520/pgraph/pkg/graph"
	"github.com/penghs520/pgraph/pkg/log"
	"github.com/penghs520/pgraph/pkg/model"
	"github.com/penghs520/pgraph/pkg/snapshot"
)

// GraphFSM applies replicated write operations to the graph engine.
// Raft serializes Apply calls, which gives the engine its single write
// lane; standalone deployments call ApplyCommand directly under the
// engine's own write lock.
type GraphFSM struct {
	db        *graph.DB
	snapshots *snapshot.Manager
	log       zerolog.Logger
}

// NewGraphFSM builds the FSM over an engine and a snapshot manager.
func NewGraphFSM(db *graph.DB, snapshots *snapshot.Manager) *GraphFSM {
	return &GraphFSM{
		db:        db,
		snapshots: snapshots,
		log:       log.WithComponent("fsm"),
	}
}

// Apply applies a committed Raft log entry. The returned value is the
// dispatch error, nil on success.
func (f *GraphFSM) Apply(entry *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(entry.Data, &cmd); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}
	return f.ApplyCommand(cmd)
}

// ApplyCommand dispatches one write operation as one engine
// transaction. Batch operations are all-or-nothing: any failure aborts
// the transaction and nothing is committed.
func (f *GraphFSM) ApplyCommand(cmd Command) error {
	switch cmd.Op {
	case OpCreateVertex:
		var p VertexPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.inTxn(func(txn *graph.Txn) error {
			v := p.Vertex
			v.Desc = p.Desc
			return txn.CreateVertex(&v)
		})

	case OpUpdateVertex:
		var p VertexPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.inTxn(func(txn *graph.Txn) error {
			v := p.Vertex
			v.Desc = p.Desc
			return txn.UpdateVertex(&v)
		})

	case OpDeleteVertex:
		var p DeleteVertexPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.inTxn(func(txn *graph.Txn) error {
			return txn.DeleteVertex(p.CardID)
		})

	case OpCreateEdges:
		var p EdgesPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.inTxn(func(txn *graph.Txn) error {
			for _, e := range p.Edges {
				if err := txn.CreateEdge(e); err != nil {
					return err
				}
			}
			return nil
		})

	case OpUpdateEdges:
		var p EdgesPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.inTxn(func(txn *graph.Txn) error {
			for _, e := range p.Edges {
				if err := txn.UpdateEdgeProps(e); err != nil {
					return err
				}
			}
			return nil
		})

	case OpDeleteEdges:
		var p EdgesPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.inTxn(func(txn *graph.Txn) error {
			for _, e := range p.Edges {
				if err := txn.DeleteEdge(e); err != nil {
					return err
				}
			}
			return nil
		})

	case OpUpdateCardFields:
		var p FieldUpdatesPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.inTxn(func(txn *graph.Txn) error {
			for _, u := range p.Updates {
				if err := applyFieldUpdate(txn, u); err != nil {
					return err
				}
			}
			return nil
		})

	case OpUpdateTitles:
		var p TitleUpdatesPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.inTxn(func(txn *graph.Txn) error {
			for _, u := range p.Updates {
				v, err := txn.GetVertex(u.CardID)
				if err != nil {
					return err
				}
				if v == nil {
					return &graph.VertexNotExistsError{ID: u.CardID}
				}
				clone := cloneVertex(v)
				clone.Title = u.Title
				if err := txn.UpdateVertex(clone); err != nil {
					return err
				}
			}
			return nil
		})

	case OpBulkInsert:
		var p BulkInsertPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.inTxn(func(txn *graph.Txn) error {
			for _, vp := range p.Vertices {
				v := vp.Vertex
				v.Desc = vp.Desc
				if err := txn.CreateVertex(&v); err != nil {
					return err
				}
			}
			for _, e := range p.Edges {
				if err := txn.CreateEdge(e); err != nil {
					return err
				}
			}
			return nil
		})

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

func (f *GraphFSM) inTxn(fn func(txn *graph.Txn) error) error {
	txn := f.db.Txn()
	if err := fn(txn); err != nil {
		txn.Abort()
		return err
	}
	return txn.Commit()
}

func applyFieldUpdate(txn *graph.Txn, u FieldUpdate) error {
	v, err := txn.GetVertex(u.CardID)
	if err != nil {
		return err
	}
	if v == nil {
		return &graph.VertexNotExistsError{ID: u.CardID}
	}

	clone := cloneVertex(v)
	if u.Value == nil {
		delete(clone.FieldValues, u.FieldID)
	} else {
		if clone.FieldValues == nil {
			clone.FieldValues = make(map[model.Identifier]model.FieldValue, 1)
		}
		clone.FieldValues[u.FieldID] = *u.Value
	}
	return txn.UpdateVertex(clone)
}

// cloneVertex copies a vertex deeply enough that mutating the clone's
// field map cannot disturb a cached instance.
func cloneVertex(v *model.Vertex) *model.Vertex {
	clone := *v
	if v.FieldValues != nil {
		clone.FieldValues = make(map[model.Identifier]model.FieldValue, len(v.FieldValues))
		for k, fv := range v.FieldValues {
			clone.FieldValues[k] = fv
		}
	}
	// Replaying a stored vertex must not touch the description table.
	clone.Desc = model.Description{}
	return &clone
}

// Manifest references a shared checkpoint directory. Followers install
// the directory contents rather than streaming the whole store through
// the raft snapshot channel.
type Manifest struct {
	Dir       string `json:"dir"`
	CreatedAt int64  `json:"created_at"`
}

// Snapshot checkpoints the engine and returns a snapshot persisting the
// manifest.
func (f *GraphFSM) Snapshot() (raft.FSMSnapshot, error) {
	dir, err := f.snapshots.Create(f.db)
	if err != nil {
		return nil, err
	}
	return &fsmSnapshot{manifest: Manifest{Dir: dir, CreatedAt: time.Now().Unix()}}, nil
}

// Restore installs the snapshot referenced by the manifest and rebuilds
// the in-memory index.
func (f *GraphFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var manifest Manifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return fmt.Errorf("decode snapshot manifest: %w", err)
	}

	f.log.Info().Str("dir", manifest.Dir).Msg("restoring from snapshot")
	return f.db.InstallSnapshot(manifest.Dir)
}

type fsmSnapshot struct {
	manifest Manifest
}

// Persist writes the manifest to the raft snapshot sink.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s.manifest); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release releases the snapshot resources.
func (s *fsmSnapshot) Release() {}
