package graph

import (
	"github.com/penghs520/pgraph/pkg/codec"
	"github.com/penghs520/pgraph/pkg/kvstore"
	"github.com/penghs520/pgraph/pkg/model"
)

// VertexDeltas accumulates a transaction's vertex changes for the
// in-memory index, keyed by id so repeated writes to one vertex collapse.
type VertexDeltas struct {
	Create map[model.VertexID]Fragment
	Update map[model.VertexID]Fragment
	Delete map[model.VertexID]Fragment
}

// NewVertexDeltas returns empty delta buffers.
func NewVertexDeltas() *VertexDeltas {
	return &VertexDeltas{
		Create: make(map[model.VertexID]Fragment),
		Update: make(map[model.VertexID]Fragment),
		Delete: make(map[model.VertexID]Fragment),
	}
}

// vertexStore stages vertex writes into a transaction's batch and serves
// cold reads from the KV. Nothing reaches disk until the batch commits.
type vertexStore struct {
	kv KV
}

func (s *vertexStore) create(batch *kvstore.Batch, delta *VertexDeltas, v *model.Vertex) error {
	key := codec.VertexKey(v.CardID)
	row, err := codec.EncodeVertex(v)
	if err != nil {
		return &SerializationError{Err: err}
	}
	batch.Put(kvstore.CFVertex, key, row)

	if v.Desc.Changed && v.Desc.Content != nil && *v.Desc.Content != "" {
		desc, err := codec.EncodeDescription(*v.Desc.Content)
		if err != nil {
			return &SerializationError{Err: err}
		}
		batch.Put(kvstore.CFVertexDesc, key, desc)
	}

	frag := NewFragment(v)
	delta.Create[v.CardID] = frag
	return nil
}

func (s *vertexStore) update(batch *kvstore.Batch, delta *VertexDeltas, v *model.Vertex) error {
	key := codec.VertexKey(v.CardID)
	row, err := codec.EncodeVertex(v)
	if err != nil {
		return &SerializationError{Err: err}
	}
	batch.Put(kvstore.CFVertex, key, row)

	if v.Desc.Changed {
		if v.Desc.Content == nil || *v.Desc.Content == "" {
			batch.Delete(kvstore.CFVertexDesc, key)
		} else {
			desc, err := codec.EncodeDescription(*v.Desc.Content)
			if err != nil {
				return &SerializationError{Err: err}
			}
			batch.Put(kvstore.CFVertexDesc, key, desc)
		}
	}

	delta.Update[v.CardID] = NewFragment(v)
	return nil
}

// delete removes the vertex from all three vertex column families. The
// caller must already have enqueued the edge cascade.
func (s *vertexStore) delete(batch *kvstore.Batch, delta *VertexDeltas, frag Fragment) {
	key := codec.VertexKey(frag.CardID)
	batch.Delete(kvstore.CFVertex, key)
	batch.Delete(kvstore.CFVertexDesc, key)
	batch.Delete(kvstore.CFVertexIndex, key)
	delta.Delete[frag.CardID] = frag
}

// batchedGet loads vertices in input order, skipping ids with no row.
func (s *vertexStore) batchedGet(ids []model.VertexID) ([]*model.Vertex, error) {
	keys := make([][]byte, len(ids))
	for i, id := range ids {
		keys[i] = codec.VertexKey(id)
	}
	rows, err := s.kv.MultiGet(kvstore.CFVertex, keys)
	if err != nil {
		return nil, &StorageError{Err: err}
	}

	out := make([]*model.Vertex, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		v, err := codec.DecodeVertex(row)
		if err != nil {
			return nil, &SerializationError{Err: err}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *vertexStore) get(id model.VertexID) (*model.Vertex, error) {
	row, err := s.kv.Get(kvstore.CFVertex, codec.VertexKey(id))
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	if row == nil {
		return nil, nil
	}
	v, err := codec.DecodeVertex(row)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}
	return v, nil
}

// descriptions reads the side table for each id; absent rows map to nil.
func (s *vertexStore) descriptions(ids []model.VertexID) (map[model.VertexID]*string, error) {
	keys := make([][]byte, len(ids))
	for i, id := range ids {
		keys[i] = codec.VertexKey(id)
	}
	rows, err := s.kv.MultiGet(kvstore.CFVertexDesc, keys)
	if err != nil {
		return nil, &StorageError{Err: err}
	}

	out := make(map[model.VertexID]*string, len(ids))
	for i, row := range rows {
		if row == nil {
			out[ids[i]] = nil
			continue
		}
		content, err := codec.DecodeDescription(row)
		if err != nil {
			return nil, &SerializationError{Err: err}
		}
		out[ids[i]] = &content
	}
	return out, nil
}

// loadAll streams every vertex row, in id order, for cold start.
func (s *vertexStore) loadAll(fn func(v *model.Vertex) error) error {
	return s.kv.ScanAll(kvstore.CFVertex, func(k, row []byte) error {
		v, err := codec.DecodeVertex(row)
		if err != nil {
			return &SerializationError{Err: err}
		}
		return fn(v)
	})
}
