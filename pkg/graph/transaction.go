package graph

import (
	"sort"

	"github.com/penghs520/pgraph/pkg/kvstore"
	"github.com/penghs520/pgraph/pkg/model"
)

// Txn is a transaction over the engine. Writes are staged into a pending
// KV batch plus delta buffers and become visible only after Commit;
// reads inside the transaction see its own staged writes first, then the
// in-memory index, then the KV.
//
// A Txn is single-goroutine. Read-only transactions may run concurrently;
// writers are serialized by the engine's write lock at commit time.
type Txn struct {
	db    *DB
	vs    vertexStore
	es    edgeStore
	batch *kvstore.Batch

	vdeltas *VertexDeltas
	edeltas *EdgeDeltas

	// staged holds the full body of vertices created or updated in this
	// transaction for read-your-writes.
	staged map[model.VertexID]*model.Vertex

	done bool
}

// CreateVertex stages a new vertex. Creating an id that already exists
// fails with VertexAlreadyExistsError and changes nothing.
func (t *Txn) CreateVertex(v *model.Vertex) error {
	if t.done {
		return ErrTxnDone
	}
	if v.CardTypeID.IsEmpty() {
		return model.ValidationErrorf("card_type_id is required")
	}
	if t.vertexExists(v.CardID) {
		return &VertexAlreadyExistsError{ID: v.CardID}
	}

	if err := t.vs.create(t.batch, t.vdeltas, v); err != nil {
		return err
	}
	// A delete staged earlier in this transaction is superseded.
	delete(t.vdeltas.Delete, v.CardID)
	t.staged[v.CardID] = v
	return nil
}

// UpdateVertex stages an overwrite of an existing vertex.
func (t *Txn) UpdateVertex(v *model.Vertex) error {
	if t.done {
		return ErrTxnDone
	}
	if v.CardTypeID.IsEmpty() {
		return model.ValidationErrorf("card_type_id is required")
	}
	if !t.vertexExists(v.CardID) {
		return &VertexNotExistsError{ID: v.CardID}
	}

	if err := t.vs.update(t.batch, t.vdeltas, v); err != nil {
		return err
	}
	// An update of a vertex created in this same transaction collapses
	// into the create delta so the index applies the newest fragment.
	if _, created := t.vdeltas.Create[v.CardID]; created {
		t.vdeltas.Create[v.CardID] = t.vdeltas.Update[v.CardID]
		delete(t.vdeltas.Update, v.CardID)
	}
	t.staged[v.CardID] = v
	return nil
}

// DeleteVertex stages a hard delete of a vertex together with the
// cascade of every incident edge in both directions.
func (t *Txn) DeleteVertex(id model.VertexID) error {
	if t.done {
		return ErrTxnDone
	}
	frag, ok := t.fragment(id)
	if !ok {
		return &VertexNotExistsError{ID: id}
	}

	for _, e := range t.incidentEdges(id) {
		if err := t.es.delete(t.batch, t.edeltas, e); err != nil {
			return err
		}
	}

	t.vs.delete(t.batch, t.vdeltas, frag)
	delete(t.vdeltas.Create, id)
	delete(t.vdeltas.Update, id)
	delete(t.staged, id)
	return nil
}

// CreateEdge stages both entries of an edge. Whether an existing forward
// entry is an error or an upsert is controlled by the engine's
// strict-create setting.
func (t *Txn) CreateEdge(e model.Edge) error {
	if t.done {
		return ErrTxnDone
	}
	if e.Type.IsEmpty() {
		return model.ValidationErrorf("edge type is required")
	}
	if t.db.cfg.StrictEdgeCreate && t.stagedForwardEdge(e) {
		return &EdgeAlreadyExistsError{SrcID: e.SrcID, Type: e.Type, DestID: e.DestID}
	}
	return t.es.create(t.batch, t.edeltas, e, t.db.cfg.StrictEdgeCreate)
}

// DeleteEdge stages removal of both entries of an edge.
func (t *Txn) DeleteEdge(e model.Edge) error {
	if t.done {
		return ErrTxnDone
	}
	if e.Type.IsEmpty() {
		return model.ValidationErrorf("edge type is required")
	}
	return t.es.delete(t.batch, t.edeltas, e)
}

// UpdateEdgeProps stages an overwrite of the forward property payload.
func (t *Txn) UpdateEdgeProps(e model.Edge) error {
	if t.done {
		return ErrTxnDone
	}
	if e.Type.IsEmpty() {
		return model.ValidationErrorf("edge type is required")
	}
	return t.es.updateProps(t.batch, t.edeltas, e)
}

// GetVertex reads one vertex: staged writes first, then the LRU, then
// the KV (filling the LRU on miss). Missing vertices yield (nil, nil).
func (t *Txn) GetVertex(id model.VertexID) (*model.Vertex, error) {
	if v, ok := t.staged[id]; ok {
		return v, nil
	}
	if _, deleted := t.vdeltas.Delete[id]; deleted {
		return nil, nil
	}
	if v, ok := t.db.mem.CachedVertex(id); ok {
		return v, nil
	}
	v, err := t.vs.get(id)
	if err != nil || v == nil {
		return nil, err
	}
	t.db.mem.CacheVertex(v)
	return v, nil
}

// GetVertices batch-loads vertices in input order, skipping missing ids.
func (t *Txn) GetVertices(ids []model.VertexID) ([]*model.Vertex, error) {
	out := make([]*model.Vertex, 0, len(ids))
	var coldIDs []model.VertexID
	byID := make(map[model.VertexID]*model.Vertex)

	for _, id := range ids {
		if v, ok := t.staged[id]; ok {
			byID[id] = v
			continue
		}
		if _, deleted := t.vdeltas.Delete[id]; deleted {
			continue
		}
		if v, ok := t.db.mem.CachedVertex(id); ok {
			byID[id] = v
			continue
		}
		coldIDs = append(coldIDs, id)
	}

	if len(coldIDs) > 0 {
		loaded, err := t.vs.batchedGet(coldIDs)
		if err != nil {
			return nil, err
		}
		for _, v := range loaded {
			t.db.mem.CacheVertex(v)
			byID[v.CardID] = v
		}
	}

	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Descriptions reads the description side table for each id. Nil marks
// "no description". Staged description changes are visible.
func (t *Txn) Descriptions(ids []model.VertexID) (map[model.VertexID]*string, error) {
	var coldIDs []model.VertexID
	out := make(map[model.VertexID]*string, len(ids))

	for _, id := range ids {
		if v, ok := t.staged[id]; ok && v.Desc.Changed {
			if v.Desc.Content != nil && *v.Desc.Content != "" {
				content := *v.Desc.Content
				out[id] = &content
			} else {
				out[id] = nil
			}
			continue
		}
		if _, deleted := t.vdeltas.Delete[id]; deleted {
			out[id] = nil
			continue
		}
		coldIDs = append(coldIDs, id)
	}

	if len(coldIDs) > 0 {
		loaded, err := t.vs.descriptions(coldIDs)
		if err != nil {
			return nil, err
		}
		for id, content := range loaded {
			out[id] = content
		}
	}
	return out, nil
}

// NeighborIDs resolves a neighbor query against the adjacency index plus
// this transaction's staged edge deltas, filtered by endpoint state.
func (t *Txn) NeighborIDs(q model.NeighborQuery) ([]model.VertexID, error) {
	states := q.DestStates
	if states == nil {
		states = model.DefaultNeighborStates()
	}
	allowed := make(map[model.CardState]struct{}, len(states))
	for _, s := range states {
		allowed[s] = struct{}{}
	}

	set := make(map[model.VertexID]struct{})
	for _, src := range q.SrcVertexIDs {
		for _, other := range t.neighborsOverlay(q.Descriptor, src) {
			frag, ok := t.fragment(other)
			if !ok {
				continue
			}
			if _, ok := allowed[frag.State]; !ok {
				continue
			}
			set[other] = struct{}{}
		}
	}

	out := make([]model.VertexID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// NeighborEdges resolves the edges themselves, with forward properties
// attached from the in-memory edge-property map.
func (t *Txn) NeighborEdges(q model.EdgeQuery) ([]model.Edge, error) {
	ids, err := t.NeighborIDs(model.NeighborQuery{
		SrcVertexIDs: q.SrcVertexIDs,
		Descriptor:   q.Descriptor,
		DestStates:   q.DestStates,
	})
	if err != nil {
		return nil, err
	}
	allowed := make(map[model.VertexID]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}

	var out []model.Edge
	for _, anchor := range q.SrcVertexIDs {
		for _, other := range t.neighborsOverlay(q.Descriptor, anchor) {
			if _, ok := allowed[other]; !ok {
				continue
			}
			var src, dest model.VertexID
			if q.Descriptor.Direction == model.DirectionSrc {
				src, dest = anchor, other
			} else {
				src, dest = other, anchor
			}
			props := t.edgeProps(src, q.Descriptor.Type, dest)
			out = append(out, model.Edge{SrcID: src, Type: q.Descriptor.Type, DestID: dest, Props: props})
		}
	}
	return out, nil
}

// QueryVertices evaluates the candidate-selection part of a vertex
// query: pick the candidate source, narrow by container and state
// against the resident fragments, and batch-load the survivors.
func (t *Txn) QueryVertices(q model.VertexQuery) ([]*model.Vertex, error) {
	var candidates []model.VertexID
	switch {
	case q.VertexIDs != nil:
		candidates = make([]model.VertexID, 0, len(q.VertexIDs))
		for id := range q.VertexIDs {
			candidates = append(candidates, id)
		}
	case q.CardIDs != nil:
		candidates = q.CardIDs
	case len(q.CardTypeIDs) > 0:
		candidates = t.db.mem.VerticesOfTypes(q.CardTypeIDs)
		candidates = append(candidates, t.stagedOfTypes(q.CardTypeIDs)...)
	default:
		t.db.log.Warn().Msg("vertex query fell back to full iteration")
		candidates = t.db.mem.AllVertexIDs()
		for id := range t.staged {
			candidates = append(candidates, id)
		}
	}

	var containers map[model.Identifier]struct{}
	if q.ContainerIDs != nil {
		containers = make(map[model.Identifier]struct{}, len(q.ContainerIDs))
		for _, c := range q.ContainerIDs {
			containers[c] = struct{}{}
		}
	}
	var states map[model.CardState]struct{}
	if q.States != nil {
		states = make(map[model.CardState]struct{}, len(q.States))
		for _, s := range q.States {
			states[s] = struct{}{}
		}
	}
	typeFilter := make(map[model.Identifier]struct{}, len(q.CardTypeIDs))
	for _, ct := range q.CardTypeIDs {
		typeFilter[ct] = struct{}{}
	}

	seen := make(map[model.VertexID]struct{}, len(candidates))
	kept := make([]model.VertexID, 0, len(candidates))
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		frag, ok := t.fragment(id)
		if !ok {
			continue
		}
		if len(typeFilter) > 0 {
			if _, ok := typeFilter[frag.CardTypeID]; !ok {
				continue
			}
		}
		if containers != nil {
			if _, ok := containers[frag.ContainerID]; !ok {
				continue
			}
		}
		if states != nil {
			if _, ok := states[frag.State]; !ok {
				continue
			}
		}
		kept = append(kept, id)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })
	return t.GetVertices(kept)
}

// Commit flushes the KV batch atomically and, on success, folds the
// deltas into the in-memory index. On flush failure the deltas are
// dropped and no in-memory mutation occurs.
func (t *Txn) Commit() error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true

	if t.batch.Len() == 0 {
		return nil
	}

	t.db.writeMu.Lock()
	defer t.db.writeMu.Unlock()

	if err := t.db.kv.Write(t.batch); err != nil {
		return &StorageError{Err: err}
	}
	t.db.mem.Apply(t.vdeltas, t.edeltas)
	return nil
}

// Abort drops the transaction with no KV or in-memory side effects.
func (t *Txn) Abort() {
	t.done = true
}

// --- staged-state helpers ---

func (t *Txn) vertexExists(id model.VertexID) bool {
	_, ok := t.fragment(id)
	return ok
}

// fragment resolves a vertex fragment through the transaction overlay.
func (t *Txn) fragment(id model.VertexID) (Fragment, bool) {
	if v, ok := t.staged[id]; ok {
		return NewFragment(v), true
	}
	if _, deleted := t.vdeltas.Delete[id]; deleted {
		return Fragment{}, false
	}
	return t.db.mem.Fragment(id)
}

func (t *Txn) stagedOfTypes(ts []model.Identifier) []model.VertexID {
	var out []model.VertexID
	for _, v := range t.staged {
		for _, ct := range ts {
			if v.CardTypeID == ct {
				out = append(out, v.CardID)
				break
			}
		}
	}
	return out
}

// neighborsOverlay merges committed adjacency with this transaction's
// staged edge creates and deletes.
func (t *Txn) neighborsOverlay(desc model.EdgeDescriptor, anchor model.VertexID) []model.VertexID {
	base := t.db.mem.Neighbors(desc.Type, desc.Direction, anchor)
	if len(t.edeltas.Create) == 0 && len(t.edeltas.Delete) == 0 {
		return base
	}

	set := make(map[model.VertexID]struct{}, len(base))
	for _, id := range base {
		set[id] = struct{}{}
	}
	for _, d := range t.edeltas.Create {
		if d.Descriptor == desc && d.Anchor == anchor {
			set[d.Other] = struct{}{}
		}
	}
	for _, d := range t.edeltas.Delete {
		if d.Descriptor == desc && d.Anchor == anchor {
			delete(set, d.Other)
		}
	}

	out := make([]model.VertexID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// edgeProps resolves forward properties through the transaction overlay.
func (t *Txn) edgeProps(src model.VertexID, et model.Identifier, dest model.VertexID) []model.EdgeProp {
	fwd := model.EdgeDescriptor{Type: et, Direction: model.DirectionSrc}
	for i := len(t.edeltas.Update) - 1; i >= 0; i-- {
		d := t.edeltas.Update[i]
		if d.Descriptor == fwd && d.Anchor == src && d.Other == dest {
			return d.Props
		}
	}
	for i := len(t.edeltas.Create) - 1; i >= 0; i-- {
		d := t.edeltas.Create[i]
		if d.Descriptor == fwd && d.Anchor == src && d.Other == dest {
			return d.Props
		}
	}
	props, _ := t.db.mem.EdgeProps(src, et, dest)
	return props
}

// stagedForwardEdge reports whether this transaction already created the
// forward entry of e.
func (t *Txn) stagedForwardEdge(e model.Edge) bool {
	fwd := model.EdgeDescriptor{Type: e.Type, Direction: model.DirectionSrc}
	for _, d := range t.edeltas.Create {
		if d.Descriptor == fwd && d.Anchor == e.SrcID && d.Other == e.DestID {
			return true
		}
	}
	return false
}

// incidentEdges gathers every edge touching id, committed and staged.
func (t *Txn) incidentEdges(id model.VertexID) []model.Edge {
	edges := t.db.mem.IncidentEdges(id)

	type triple struct {
		src  model.VertexID
		t    model.Identifier
		dest model.VertexID
	}
	seen := make(map[triple]struct{}, len(edges))
	for _, e := range edges {
		seen[triple{e.SrcID, e.Type, e.DestID}] = struct{}{}
	}

	for _, d := range t.edeltas.Create {
		if d.Descriptor.Direction != model.DirectionSrc {
			continue
		}
		if d.Anchor != id && d.Other != id {
			continue
		}
		k := triple{d.Anchor, d.Descriptor.Type, d.Other}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		edges = append(edges, model.Edge{SrcID: d.Anchor, Type: d.Descriptor.Type, DestID: d.Other, Props: d.Props})
	}
	return edges
}
