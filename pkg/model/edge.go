package model

import "encoding/json"

// Direction distinguishes the two persisted entries of an edge: the
// forward entry anchored at the source, and the reverse entry anchored at
// the destination.
type Direction uint8

const (
	DirectionSrc Direction = iota
	DirectionDest
)

func (d Direction) String() string {
	if d == DirectionDest {
		return "dest"
	}
	return "src"
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionSrc {
		return DirectionDest
	}
	return DirectionSrc
}

// ParseDirection converts "src" or "dest" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "src":
		return DirectionSrc, nil
	case "dest":
		return DirectionDest, nil
	default:
		return DirectionSrc, ValidationErrorf("%q is not an edge direction", s)
	}
}

// MarshalJSON encodes the direction by name.
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a direction name.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	dir, err := ParseDirection(name)
	if err != nil {
		return err
	}
	*d = dir
	return nil
}

// EdgePropKind tags the concrete type of an edge property. Edge
// properties support a narrower set of types than vertex fields.
type EdgePropKind uint8

const (
	EdgePropNumber EdgePropKind = iota
	EdgePropDate
	EdgePropEnum
)

// EdgeProp is a typed property attached to the forward entry of an edge,
// keyed by the derive-field define id.
type EdgeProp struct {
	Kind    EdgePropKind `json:"kind"`
	FieldID Identifier   `json:"field_id"`
	Number  float64      `json:"number,omitempty"`
	Date    uint64       `json:"date,omitempty"`
	Enum    []Identifier `json:"enum,omitempty"`
}

// NumberProp builds a number edge property.
func NumberProp(fieldID Identifier, n float64) EdgeProp {
	return EdgeProp{Kind: EdgePropNumber, FieldID: fieldID, Number: n}
}

// DateProp builds a date edge property.
func DateProp(fieldID Identifier, ts uint64) EdgeProp {
	return EdgeProp{Kind: EdgePropDate, FieldID: fieldID, Date: ts}
}

// EnumProp builds an enum edge property.
func EnumProp(fieldID Identifier, items ...Identifier) EdgeProp {
	return EdgeProp{Kind: EdgePropEnum, FieldID: fieldID, Enum: items}
}

// Edge is a directional typed link between two vertices. Edges are unique
// in the forward direction by (SrcID, Type, DestID).
type Edge struct {
	SrcID  VertexID   `json:"src_id"`
	Type   Identifier `json:"type"`
	DestID VertexID   `json:"dest_id"`
	Props  []EdgeProp `json:"props,omitempty"`
}

// NewEdge builds an edge.
func NewEdge(src VertexID, t Identifier, dest VertexID, props []EdgeProp) Edge {
	return Edge{SrcID: src, Type: t, DestID: dest, Props: props}
}

// Reversed returns the edge with endpoints swapped and properties
// dropped. Properties live only on the forward entry; setting properties
// on the opposite orientation requires updating that edge itself.
func (e Edge) Reversed() Edge {
	return Edge{SrcID: e.DestID, Type: e.Type, DestID: e.SrcID}
}

// EdgeDescriptor identifies a class of adjacency entries: an edge type
// together with the side being scanned. It carries no vertex ids.
type EdgeDescriptor struct {
	Type      Identifier
	Direction Direction
}
