package graph

import (
	"github.com/penghs520/pgraph/pkg/codec"
	"github.com/penghs520/pgraph/pkg/kvstore"
	"github.com/penghs520/pgraph/pkg/model"
)

// EdgeDelta is one adjacency change staged by a transaction. Anchor is
// the vertex owning the entry's side; Props are meaningful only on the
// forward (src) direction.
type EdgeDelta struct {
	Anchor     model.VertexID
	Descriptor model.EdgeDescriptor
	Other      model.VertexID
	Props      []model.EdgeProp
}

// EdgeDeltas accumulates a transaction's edge changes.
type EdgeDeltas struct {
	Create []EdgeDelta
	Update []EdgeDelta
	Delete []EdgeDelta
}

// edgeStore stages edge writes. Every created edge produces two
// persistent entries: the forward one carries the property payload, the
// reverse one an empty payload, so each neighbor query is one contiguous
// prefix scan.
type edgeStore struct {
	kv KV
}

// create stages both entries of an edge. With strict set, an existing
// forward key is an error; otherwise the write is an upsert, overwriting
// the forward payload.
func (s *edgeStore) create(batch *kvstore.Batch, delta *EdgeDeltas, e model.Edge, strict bool) error {
	fwdKey, err := codec.EdgeKey(e.Type, model.DirectionSrc, e.SrcID, e.DestID)
	if err != nil {
		return &SerializationError{Err: err}
	}
	if strict {
		existing, err := s.kv.Get(kvstore.CFEdge, fwdKey)
		if err != nil {
			return &StorageError{Err: err}
		}
		if existing != nil {
			return &EdgeAlreadyExistsError{SrcID: e.SrcID, Type: e.Type, DestID: e.DestID}
		}
	}

	// The forward payload is always a (possibly empty) encoded prop
	// list, so existence checks can distinguish "present, no props"
	// from "absent".
	payload, err := codec.EncodeEdgeProps(e.Props)
	if err != nil {
		return &SerializationError{Err: err}
	}
	batch.Put(kvstore.CFEdge, fwdKey, payload)

	revKey, err := codec.EdgeKey(e.Type, model.DirectionDest, e.DestID, e.SrcID)
	if err != nil {
		return &SerializationError{Err: err}
	}
	batch.Put(kvstore.CFEdge, revKey, []byte{})

	delta.Create = append(delta.Create,
		EdgeDelta{
			Anchor:     e.SrcID,
			Descriptor: model.EdgeDescriptor{Type: e.Type, Direction: model.DirectionSrc},
			Other:      e.DestID,
			Props:      e.Props,
		},
		EdgeDelta{
			Anchor:     e.DestID,
			Descriptor: model.EdgeDescriptor{Type: e.Type, Direction: model.DirectionDest},
			Other:      e.SrcID,
		},
	)
	return nil
}

// delete stages removal of both entries.
func (s *edgeStore) delete(batch *kvstore.Batch, delta *EdgeDeltas, e model.Edge) error {
	fwdKey, err := codec.EdgeKey(e.Type, model.DirectionSrc, e.SrcID, e.DestID)
	if err != nil {
		return &SerializationError{Err: err}
	}
	batch.Delete(kvstore.CFEdge, fwdKey)

	revKey, err := codec.EdgeKey(e.Type, model.DirectionDest, e.DestID, e.SrcID)
	if err != nil {
		return &SerializationError{Err: err}
	}
	batch.Delete(kvstore.CFEdge, revKey)

	delta.Delete = append(delta.Delete,
		EdgeDelta{
			Anchor:     e.SrcID,
			Descriptor: model.EdgeDescriptor{Type: e.Type, Direction: model.DirectionSrc},
			Other:      e.DestID,
		},
		EdgeDelta{
			Anchor:     e.DestID,
			Descriptor: model.EdgeDescriptor{Type: e.Type, Direction: model.DirectionDest},
			Other:      e.SrcID,
		},
	)
	return nil
}

// updateProps overwrites the forward payload only.
func (s *edgeStore) updateProps(batch *kvstore.Batch, delta *EdgeDeltas, e model.Edge) error {
	fwdKey, err := codec.EdgeKey(e.Type, model.DirectionSrc, e.SrcID, e.DestID)
	if err != nil {
		return &SerializationError{Err: err}
	}

	payload, err := codec.EncodeEdgeProps(e.Props)
	if err != nil {
		return &SerializationError{Err: err}
	}
	batch.Put(kvstore.CFEdge, fwdKey, payload)

	delta.Update = append(delta.Update, EdgeDelta{
		Anchor:     e.SrcID,
		Descriptor: model.EdgeDescriptor{Type: e.Type, Direction: model.DirectionSrc},
		Other:      e.DestID,
		Props:      e.Props,
	})
	return nil
}

// scan yields the far endpoint of every persisted entry matching
// (type, direction, anchor). Cold path; hot lookups go through memory.
func (s *edgeStore) scan(t model.Identifier, dir model.Direction, anchor model.VertexID, fn func(other model.VertexID) error) error {
	prefix, err := codec.EdgeScanPrefix(t, dir, anchor)
	if err != nil {
		return &SerializationError{Err: err}
	}
	return s.kv.ScanPrefix(kvstore.CFEdge, prefix, func(k, _ []byte) error {
		parts, err := codec.ParseEdgeKey(k)
		if err != nil {
			return &SerializationError{Err: err}
		}
		return fn(parts.OtherID)
	})
}

// loadAll streams every persisted adjacency entry for cold start.
func (s *edgeStore) loadAll(fn func(parts codec.EdgeKeyParts, payload []byte) error) error {
	return s.kv.ScanAll(kvstore.CFEdge, func(k, v []byte) error {
		parts, err := codec.ParseEdgeKey(k)
		if err != nil {
			return &SerializationError{Err: err}
		}
		return fn(parts, v)
	})
}
