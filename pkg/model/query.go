package model

// VertexQuery selects candidate vertices by id, type, container and
// lifecycle state. The candidate source is chosen in order: VertexIDs,
// then CardIDs, then the union of the CardTypeIDs index sets, then a full
// vertex iteration. Container and state filters narrow the candidates.
type VertexQuery struct {
	// CardIDs and VertexIDs are identical at the id level; both are kept
	// for API compatibility. When both are set, VertexIDs takes precedence.
	CardIDs   []CardID
	VertexIDs map[VertexID]struct{}

	// CardTypeIDs empty means all types.
	CardTypeIDs []Identifier

	ContainerIDs []Identifier
	States       []CardState
}

// NeighborQuery finds the far endpoints reachable from the given vertices
// along one edge descriptor.
type NeighborQuery struct {
	SrcVertexIDs []VertexID
	Descriptor   EdgeDescriptor

	// DestStates filters the endpoints by lifecycle state. Nil applies
	// the default of active plus archived, excluding discarded.
	DestStates []CardState
}

// EdgeQuery finds the edges themselves rather than the endpoints.
type EdgeQuery struct {
	SrcVertexIDs []VertexID
	Descriptor   EdgeDescriptor
	DestStates   []CardState
}

// DefaultNeighborStates is the endpoint state filter applied when a
// neighbor or edge query leaves DestStates nil.
func DefaultNeighborStates() []CardState {
	return []CardState{StateActive, StateArchived}
}
