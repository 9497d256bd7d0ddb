package graph

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/penghs520/pgraph/pkg/model"
)

const shardCount = 16

// Fragment is the subset of vertex fields kept resident for every vertex
// so that type/container/state filters never touch the KV.
type Fragment struct {
	CardID      model.CardID
	CardTypeID  model.Identifier
	ContainerID model.Identifier
	State       model.CardState
	StreamID    model.Identifier
	StatusID    model.Identifier
}

// NewFragment extracts the fragment of a vertex.
func NewFragment(v *model.Vertex) Fragment {
	return Fragment{
		CardID:      v.CardID,
		CardTypeID:  v.CardTypeID,
		ContainerID: v.ContainerID,
		State:       v.State,
		StreamID:    v.StreamInfo.StreamID,
		StatusID:    v.StreamInfo.StatusID,
	}
}

type adjKey struct {
	t      model.Identifier
	dir    model.Direction
	anchor model.VertexID
}

type edgePropKey struct {
	src  model.VertexID
	t    model.Identifier
	dest model.VertexID
}

type fragmentShard struct {
	mu sync.RWMutex
	m  map[model.VertexID]Fragment
}

type typeShard struct {
	mu sync.RWMutex
	m  map[model.Identifier]map[model.VertexID]struct{}
}

type adjShard struct {
	mu sync.RWMutex
	m  map[adjKey]map[model.VertexID]struct{}
}

type propShard struct {
	mu sync.RWMutex
	m  map[edgePropKey][]model.EdgeProp
}

// InMemory is the in-process index over the persisted graph: the
// type→vertex sets, the per-vertex fragments, the adjacency index, the
// edge-property map, and the bounded vertex LRU. All sub-maps are sharded
// and safe for concurrent readers with a single writer applying committed
// deltas.
type InMemory struct {
	fragments [shardCount]fragmentShard
	types     [shardCount]typeShard
	adjacency [shardCount]adjShard
	props     [shardCount]propShard

	vertexLRU *lru.Cache[model.VertexID, *model.Vertex]
	lruCap    int
	lruHits   atomic.Uint64
	lruMisses atomic.Uint64

	// edgeCount tracks forward entries only; the reverse duplicates are
	// bookkeeping, not edges.
	edgeCount atomic.Int64
}

// NewInMemory builds an empty index with the given LRU capacity.
func NewInMemory(lruSize int) (*InMemory, error) {
	if lruSize <= 0 {
		lruSize = 1
	}
	cache, err := lru.New[model.VertexID, *model.Vertex](lruSize)
	if err != nil {
		return nil, err
	}
	m := &InMemory{vertexLRU: cache, lruCap: lruSize}
	m.reset()
	return m, nil
}

func (im *InMemory) reset() {
	for i := 0; i < shardCount; i++ {
		im.fragments[i].m = make(map[model.VertexID]Fragment)
		im.types[i].m = make(map[model.Identifier]map[model.VertexID]struct{})
		im.adjacency[i].m = make(map[adjKey]map[model.VertexID]struct{})
		im.props[i].m = make(map[edgePropKey][]model.EdgeProp)
	}
}

// Clear drops every sub-index; used before a cold-start reload.
func (im *InMemory) Clear() {
	im.reset()
	im.vertexLRU.Purge()
	im.edgeCount.Store(0)
	im.lruHits.Store(0)
	im.lruMisses.Store(0)
}

func idShard(id model.VertexID) int {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return int(xxhash.Sum64(b[:]) % shardCount)
}

func strShard(id model.Identifier) int {
	return int(xxhash.Sum64String(id.String()) % shardCount)
}

// --- fragments and type index ---

// Fragment returns the resident fragment of a vertex.
func (im *InMemory) Fragment(id model.VertexID) (Fragment, bool) {
	s := &im.fragments[idShard(id)]
	s.mu.RLock()
	f, ok := s.m[id]
	s.mu.RUnlock()
	return f, ok
}

// HasVertex reports whether the vertex exists.
func (im *InMemory) HasVertex(id model.VertexID) bool {
	_, ok := im.Fragment(id)
	return ok
}

func (im *InMemory) putFragment(f Fragment) {
	s := &im.fragments[idShard(f.CardID)]
	s.mu.Lock()
	s.m[f.CardID] = f
	s.mu.Unlock()
}

func (im *InMemory) deleteFragment(id model.VertexID) {
	s := &im.fragments[idShard(id)]
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
}

func (im *InMemory) addToType(t model.Identifier, id model.VertexID) {
	s := &im.types[strShard(t)]
	s.mu.Lock()
	set, ok := s.m[t]
	if !ok {
		set = make(map[model.VertexID]struct{})
		s.m[t] = set
	}
	set[id] = struct{}{}
	s.mu.Unlock()
}

func (im *InMemory) removeFromType(t model.Identifier, id model.VertexID) {
	s := &im.types[strShard(t)]
	s.mu.Lock()
	if set, ok := s.m[t]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.m, t)
		}
	}
	s.mu.Unlock()
}

// VerticesOfType copies the id set of one card type.
func (im *InMemory) VerticesOfType(t model.Identifier) []model.VertexID {
	s := &im.types[strShard(t)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.m[t]
	out := make([]model.VertexID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// VerticesOfTypes unions the id sets of several card types.
func (im *InMemory) VerticesOfTypes(ts []model.Identifier) []model.VertexID {
	var out []model.VertexID
	for _, t := range ts {
		out = append(out, im.VerticesOfType(t)...)
	}
	return out
}

// AllVertexIDs returns every vertex id. This backs the full-iteration
// slow path of the query planner.
func (im *InMemory) AllVertexIDs() []model.VertexID {
	var out []model.VertexID
	for i := 0; i < shardCount; i++ {
		s := &im.fragments[i]
		s.mu.RLock()
		for id := range s.m {
			out = append(out, id)
		}
		s.mu.RUnlock()
	}
	return out
}

// --- adjacency and edge props ---

// Neighbors returns the far endpoints reachable from anchor along one
// edge descriptor, straight from memory.
func (im *InMemory) Neighbors(t model.Identifier, dir model.Direction, anchor model.VertexID) []model.VertexID {
	k := adjKey{t: t, dir: dir, anchor: anchor}
	s := &im.adjacency[idShard(anchor)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.m[k]
	out := make([]model.VertexID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (im *InMemory) addAdjacency(t model.Identifier, dir model.Direction, anchor, other model.VertexID) bool {
	k := adjKey{t: t, dir: dir, anchor: anchor}
	s := &im.adjacency[idShard(anchor)]
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.m[k]
	if !ok {
		set = make(map[model.VertexID]struct{})
		s.m[k] = set
	}
	if _, dup := set[other]; dup {
		return false
	}
	set[other] = struct{}{}
	return true
}

func (im *InMemory) removeAdjacency(t model.Identifier, dir model.Direction, anchor, other model.VertexID) bool {
	k := adjKey{t: t, dir: dir, anchor: anchor}
	s := &im.adjacency[idShard(anchor)]
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.m[k]
	if !ok {
		return false
	}
	if _, present := set[other]; !present {
		return false
	}
	delete(set, other)
	if len(set) == 0 {
		delete(s.m, k)
	}
	return true
}

// EdgeProps returns the forward-entry property list of one edge.
func (im *InMemory) EdgeProps(src model.VertexID, t model.Identifier, dest model.VertexID) ([]model.EdgeProp, bool) {
	k := edgePropKey{src: src, t: t, dest: dest}
	s := &im.props[idShard(src)]
	s.mu.RLock()
	props, ok := s.m[k]
	s.mu.RUnlock()
	return props, ok
}

func (im *InMemory) setEdgeProps(src model.VertexID, t model.Identifier, dest model.VertexID, props []model.EdgeProp) {
	k := edgePropKey{src: src, t: t, dest: dest}
	s := &im.props[idShard(src)]
	s.mu.Lock()
	if len(props) == 0 {
		delete(s.m, k)
	} else {
		s.m[k] = props
	}
	s.mu.Unlock()
}

// IncidentEdges collects every edge touching the vertex, in both
// directions, deduplicated to forward triples. Vertex deletion uses it
// to enqueue the cascade.
func (im *InMemory) IncidentEdges(id model.VertexID) []model.Edge {
	seen := make(map[edgePropKey]struct{})
	var out []model.Edge
	for i := 0; i < shardCount; i++ {
		s := &im.adjacency[i]
		s.mu.RLock()
		for k, set := range s.m {
			if k.anchor != id {
				continue
			}
			for other := range set {
				var src, dest model.VertexID
				if k.dir == model.DirectionSrc {
					src, dest = id, other
				} else {
					src, dest = other, id
				}
				fk := edgePropKey{src: src, t: k.t, dest: dest}
				if _, dup := seen[fk]; dup {
					continue
				}
				seen[fk] = struct{}{}
				props, _ := im.EdgeProps(src, k.t, dest)
				out = append(out, model.Edge{SrcID: src, Type: k.t, DestID: dest, Props: props})
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// --- vertex LRU ---

// CachedVertex looks the vertex up in the LRU, counting hit rate.
func (im *InMemory) CachedVertex(id model.VertexID) (*model.Vertex, bool) {
	v, ok := im.vertexLRU.Get(id)
	if ok {
		im.lruHits.Add(1)
	} else {
		im.lruMisses.Add(1)
	}
	return v, ok
}

// CacheVertex fills the LRU, evicting the least recently used entry when
// over capacity.
func (im *InMemory) CacheVertex(v *model.Vertex) {
	im.vertexLRU.Add(v.CardID, v)
}

// InvalidateVertex drops the LRU entry. Committed updates and deletes
// call it before the batch is acknowledged so the cache never serves a
// row that no longer matches the store.
func (im *InMemory) InvalidateVertex(id model.VertexID) {
	im.vertexLRU.Remove(id)
}

// WarmVertex fills the LRU during cold start without disturbing an
// already-present entry.
func (im *InMemory) WarmVertex(v *model.Vertex) bool {
	if im.vertexLRU.Len() >= im.lruCap {
		return false
	}
	im.vertexLRU.ContainsOrAdd(v.CardID, v)
	return true
}

// --- committed delta application ---

// Apply folds a committed transaction's deltas into the index. The order
// (vertex deletes, updates, creates, then edge deletes, creates,
// updates) guarantees an edge created together with its endpoints
// observes both of them.
func (im *InMemory) Apply(vd *VertexDeltas, ed *EdgeDeltas) {
	for id, frag := range vd.Delete {
		// The resident fragment is authoritative for which type set
		// holds the id; the delta fragment may carry a type staged
		// later in the same transaction.
		if old, ok := im.Fragment(id); ok {
			frag = old
		}
		im.deleteFragment(id)
		im.removeFromType(frag.CardTypeID, id)
		im.InvalidateVertex(id)
	}
	for id, frag := range vd.Update {
		if old, ok := im.Fragment(id); ok && old.CardTypeID != frag.CardTypeID {
			im.removeFromType(old.CardTypeID, id)
		}
		im.putFragment(frag)
		im.addToType(frag.CardTypeID, id)
		im.InvalidateVertex(id)
	}
	for id, frag := range vd.Create {
		im.putFragment(frag)
		im.addToType(frag.CardTypeID, id)
	}

	for _, d := range ed.Delete {
		removed := im.removeAdjacency(d.Descriptor.Type, d.Descriptor.Direction, d.Anchor, d.Other)
		if d.Descriptor.Direction == model.DirectionSrc {
			im.setEdgeProps(d.Anchor, d.Descriptor.Type, d.Other, nil)
			if removed {
				im.edgeCount.Add(-1)
			}
		}
	}
	for _, d := range ed.Create {
		added := im.addAdjacency(d.Descriptor.Type, d.Descriptor.Direction, d.Anchor, d.Other)
		if d.Descriptor.Direction == model.DirectionSrc {
			im.setEdgeProps(d.Anchor, d.Descriptor.Type, d.Other, d.Props)
			if added {
				im.edgeCount.Add(1)
			}
		}
	}
	for _, d := range ed.Update {
		if d.Descriptor.Direction == model.DirectionSrc {
			im.setEdgeProps(d.Anchor, d.Descriptor.Type, d.Other, d.Props)
		}
	}
}

// --- cold start batch loading ---

// BatchAddVertices loads fragments grouped by card type, minimizing set
// resizes during cold start.
func (im *InMemory) BatchAddVertices(byType map[model.Identifier][]Fragment) {
	for t, frags := range byType {
		for _, f := range frags {
			im.putFragment(f)
		}
		s := &im.types[strShard(t)]
		s.mu.Lock()
		set, ok := s.m[t]
		if !ok {
			set = make(map[model.VertexID]struct{}, len(frags))
			s.m[t] = set
		}
		for _, f := range frags {
			set[f.CardID] = struct{}{}
		}
		s.mu.Unlock()
	}
}

// BatchAddEdges loads adjacency entries grouped by descriptor.
func (im *InMemory) BatchAddEdges(byDescriptor map[model.EdgeDescriptor][][2]model.VertexID) {
	for desc, pairs := range byDescriptor {
		for _, p := range pairs {
			added := im.addAdjacency(desc.Type, desc.Direction, p[0], p[1])
			if added && desc.Direction == model.DirectionSrc {
				im.edgeCount.Add(1)
			}
		}
	}
}

// BatchSetEdgeProps loads forward-entry property lists.
func (im *InMemory) BatchSetEdgeProps(items []EdgePropEntry) {
	for _, it := range items {
		im.setEdgeProps(it.SrcID, it.Type, it.DestID, it.Props)
	}
}

// EdgePropEntry pairs an edge triple with its property list for batch
// loading.
type EdgePropEntry struct {
	SrcID  model.VertexID
	Type   model.Identifier
	DestID model.VertexID
	Props  []model.EdgeProp
}

// --- statistics ---

// CacheStats summarizes the index contents and LRU effectiveness.
type CacheStats struct {
	Vertices    uint64
	Edges       uint64
	VertexTypes uint32
	EdgeTypes   uint32
	LRUEntries  int
	LRUCapacity int
	LRUHits     uint64
	LRUMisses   uint64
}

// HitRate is the LRU hit fraction in [0,1]; zero lookups yield 0.
func (s CacheStats) HitRate() float64 {
	total := s.LRUHits + s.LRUMisses
	if total == 0 {
		return 0
	}
	return float64(s.LRUHits) / float64(total)
}

// Stats snapshots the cache statistics.
func (im *InMemory) Stats() CacheStats {
	var st CacheStats
	for i := 0; i < shardCount; i++ {
		fs := &im.fragments[i]
		fs.mu.RLock()
		st.Vertices += uint64(len(fs.m))
		fs.mu.RUnlock()

		ts := &im.types[i]
		ts.mu.RLock()
		st.VertexTypes += uint32(len(ts.m))
		ts.mu.RUnlock()
	}

	edgeTypes := make(map[model.Identifier]struct{})
	for i := 0; i < shardCount; i++ {
		as := &im.adjacency[i]
		as.mu.RLock()
		for k := range as.m {
			if k.dir == model.DirectionSrc {
				edgeTypes[k.t] = struct{}{}
			}
		}
		as.mu.RUnlock()
	}
	st.EdgeTypes = uint32(len(edgeTypes))
	st.Edges = uint64(im.edgeCount.Load())
	st.LRUEntries = im.vertexLRU.Len()
	st.LRUCapacity = im.lruCap
	st.LRUHits = im.lruHits.Load()
	st.LRUMisses = im.lruMisses.Load()
	return st
}
