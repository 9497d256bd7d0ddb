package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penghs520/pgraph/pkg/model"
)

func newTestMemory(t *testing.T, lruSize int) *InMemory {
	t.Helper()
	m, err := NewInMemory(lruSize)
	require.NoError(t, err)
	return m
}

func fragmentOf(id model.CardID, cardType model.Identifier) Fragment {
	return NewFragment(testVertex(id, cardType))
}

func TestApplyEdgeWithEndpointsInOneCommit(t *testing.T) {
	m := newTestMemory(t, 8)

	vd := NewVertexDeltas()
	vd.Create[1] = fragmentOf(1, typeTask)
	vd.Create[2] = fragmentOf(2, typeTask)

	ed := &EdgeDeltas{Create: []EdgeDelta{
		{Anchor: 1, Descriptor: model.EdgeDescriptor{Type: blocks, Direction: model.DirectionSrc}, Other: 2},
		{Anchor: 2, Descriptor: model.EdgeDescriptor{Type: blocks, Direction: model.DirectionDest}, Other: 1},
	}}

	m.Apply(vd, ed)

	// Both endpoints and the adjacency landed atomically.
	assert.True(t, m.HasVertex(1))
	assert.True(t, m.HasVertex(2))
	assert.Equal(t, []model.VertexID{2}, m.Neighbors(blocks, model.DirectionSrc, 1))
	assert.Equal(t, []model.VertexID{1}, m.Neighbors(blocks, model.DirectionDest, 2))
	assert.Equal(t, uint64(1), m.Stats().Edges)
}

func TestApplyDeleteBeforeCreateOrder(t *testing.T) {
	m := newTestMemory(t, 8)

	setup := NewVertexDeltas()
	setup.Create[1] = fragmentOf(1, typeTask)
	m.Apply(setup, &EdgeDeltas{})

	// One commit that deletes vertex 1 and recreates it under a new
	// type: deletes apply first, so the recreate survives.
	vd := NewVertexDeltas()
	vd.Delete[1] = fragmentOf(1, typeTask)
	vd.Create[1] = fragmentOf(1, typeStory)
	m.Apply(vd, &EdgeDeltas{})

	assert.True(t, m.HasVertex(1))
	assert.Empty(t, m.VerticesOfType(typeTask))
	assert.Equal(t, []model.VertexID{1}, m.VerticesOfType(typeStory))
}

func TestEdgeCountIgnoresDuplicatesAndReverse(t *testing.T) {
	m := newTestMemory(t, 8)

	ed := &EdgeDeltas{Create: []EdgeDelta{
		{Anchor: 1, Descriptor: model.EdgeDescriptor{Type: blocks, Direction: model.DirectionSrc}, Other: 2},
		{Anchor: 2, Descriptor: model.EdgeDescriptor{Type: blocks, Direction: model.DirectionDest}, Other: 1},
	}}
	m.Apply(NewVertexDeltas(), ed)
	m.Apply(NewVertexDeltas(), ed) // idempotent re-apply

	assert.Equal(t, uint64(1), m.Stats().Edges)

	del := &EdgeDeltas{Delete: []EdgeDelta{
		{Anchor: 1, Descriptor: model.EdgeDescriptor{Type: blocks, Direction: model.DirectionSrc}, Other: 2},
		{Anchor: 2, Descriptor: model.EdgeDescriptor{Type: blocks, Direction: model.DirectionDest}, Other: 1},
	}}
	m.Apply(NewVertexDeltas(), del)
	assert.Zero(t, m.Stats().Edges)
	assert.Empty(t, m.Neighbors(blocks, model.DirectionSrc, 1))
}

func TestIncidentEdgesBothDirections(t *testing.T) {
	m := newTestMemory(t, 8)

	relates := model.MustIdentifier("relates")
	ed := &EdgeDeltas{Create: []EdgeDelta{
		{Anchor: 1, Descriptor: model.EdgeDescriptor{Type: blocks, Direction: model.DirectionSrc}, Other: 2},
		{Anchor: 2, Descriptor: model.EdgeDescriptor{Type: blocks, Direction: model.DirectionDest}, Other: 1},
		{Anchor: 3, Descriptor: model.EdgeDescriptor{Type: relates, Direction: model.DirectionSrc}, Other: 1},
		{Anchor: 1, Descriptor: model.EdgeDescriptor{Type: relates, Direction: model.DirectionDest}, Other: 3},
	}}
	m.Apply(NewVertexDeltas(), ed)

	incident := m.IncidentEdges(1)
	require.Len(t, incident, 2)

	triples := make(map[[2]model.VertexID]model.Identifier)
	for _, e := range incident {
		triples[[2]model.VertexID{e.SrcID, e.DestID}] = e.Type
	}
	assert.Equal(t, blocks, triples[[2]model.VertexID{1, 2}])
	assert.Equal(t, relates, triples[[2]model.VertexID{3, 1}])
}

func TestLRUEvictionBound(t *testing.T) {
	m := newTestMemory(t, 2)

	for i := model.CardID(1); i <= 3; i++ {
		m.CacheVertex(testVertex(i, typeTask))
	}

	stats := m.Stats()
	assert.Equal(t, 2, stats.LRUEntries)

	// Oldest entry evicted.
	_, ok := m.CachedVertex(1)
	assert.False(t, ok)
	_, ok = m.CachedVertex(3)
	assert.True(t, ok)
}

func TestCacheStatsHitRate(t *testing.T) {
	m := newTestMemory(t, 4)
	m.CacheVertex(testVertex(1, typeTask))

	_, _ = m.CachedVertex(1) // hit
	_, _ = m.CachedVertex(2) // miss
	_, _ = m.CachedVertex(1) // hit

	stats := m.Stats()
	assert.Equal(t, uint64(2), stats.LRUHits)
	assert.Equal(t, uint64(1), stats.LRUMisses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 1e-9)
}

func TestEdgePropsLifecycle(t *testing.T) {
	m := newTestMemory(t, 4)

	ed := &EdgeDeltas{Create: []EdgeDelta{{
		Anchor:     1,
		Descriptor: model.EdgeDescriptor{Type: blocks, Direction: model.DirectionSrc},
		Other:      2,
		Props:      []model.EdgeProp{model.NumberProp(weight, 3)},
	}}}
	m.Apply(NewVertexDeltas(), ed)

	props, ok := m.EdgeProps(1, blocks, 2)
	require.True(t, ok)
	assert.Equal(t, 3.0, props[0].Number)

	upd := &EdgeDeltas{Update: []EdgeDelta{{
		Anchor:     1,
		Descriptor: model.EdgeDescriptor{Type: blocks, Direction: model.DirectionSrc},
		Other:      2,
		Props:      []model.EdgeProp{model.NumberProp(weight, 8)},
	}}}
	m.Apply(NewVertexDeltas(), upd)
	props, _ = m.EdgeProps(1, blocks, 2)
	assert.Equal(t, 8.0, props[0].Number)

	del := &EdgeDeltas{Delete: []EdgeDelta{{
		Anchor:     1,
		Descriptor: model.EdgeDescriptor{Type: blocks, Direction: model.DirectionSrc},
		Other:      2,
	}}}
	m.Apply(NewVertexDeltas(), del)
	_, ok = m.EdgeProps(1, blocks, 2)
	assert.False(t, ok)
}
