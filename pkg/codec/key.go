package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/penghs520/pgraph/pkg/model"
)

// VertexKey encodes a vertex id as 8 big-endian bytes. Big-endian keeps
// lexicographic iteration in numeric order.
func VertexKey(id model.VertexID) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], id)
	return k[:]
}

// ParseVertexKey decodes an 8-byte vertex key.
func ParseVertexKey(k []byte) (model.VertexID, error) {
	if len(k) != 8 {
		return 0, fmt.Errorf("vertex key must be 8 bytes, got %d", len(k))
	}
	return binary.BigEndian.Uint64(k), nil
}

// EdgeKey encodes one adjacency entry:
//
//	len(type) || type || len(dir) || dir || be8(anchor) || be8(other)
//
// The anchor is the vertex that owns this side of the edge: the source
// for "src" entries, the destination for "dest" entries.
func EdgeKey(t model.Identifier, dir model.Direction, anchor, other model.VertexID) ([]byte, error) {
	k, err := edgeKeyPrefix(t, dir, len(t.String())+2+16)
	if err != nil {
		return nil, err
	}
	k = binary.BigEndian.AppendUint64(k, anchor)
	k = binary.BigEndian.AppendUint64(k, other)
	return k, nil
}

// EdgeScanPrefix builds the prefix covering every edge of the given type
// and direction anchored at one vertex: a single contiguous scan of "all
// outgoing edges of type T from v" or "all incoming edges of type T into v".
func EdgeScanPrefix(t model.Identifier, dir model.Direction, anchor model.VertexID) ([]byte, error) {
	k, err := edgeKeyPrefix(t, dir, len(t.String())+2+8)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint64(k, anchor), nil
}

// DescriptorPrefix builds the prefix covering every edge of the given
// type and direction, across all anchors.
func DescriptorPrefix(t model.Identifier, dir model.Direction) ([]byte, error) {
	return edgeKeyPrefix(t, dir, len(t.String())+2)
}

func edgeKeyPrefix(t model.Identifier, dir model.Direction, capacity int) ([]byte, error) {
	ts := t.String()
	if len(ts) > model.MaxIdentifierLen {
		return nil, fmt.Errorf("edge type exceeds %d bytes: %d", model.MaxIdentifierLen, len(ts))
	}
	ds := dir.String()

	k := make([]byte, 0, capacity)
	k = append(k, byte(len(ts)))
	k = append(k, ts...)
	k = append(k, byte(len(ds)))
	k = append(k, ds...)
	return k, nil
}

// EdgeKeyParts is a decoded edge key.
type EdgeKeyParts struct {
	Type      model.Identifier
	Direction model.Direction
	AnchorID  model.VertexID
	OtherID   model.VertexID
}

// SrcID returns the source endpoint regardless of which side the entry
// was anchored at.
func (p EdgeKeyParts) SrcID() model.VertexID {
	if p.Direction == model.DirectionSrc {
		return p.AnchorID
	}
	return p.OtherID
}

// DestID returns the destination endpoint regardless of anchoring side.
func (p EdgeKeyParts) DestID() model.VertexID {
	if p.Direction == model.DirectionSrc {
		return p.OtherID
	}
	return p.AnchorID
}

// ParseEdgeKey decodes an edge key produced by EdgeKey.
func ParseEdgeKey(k []byte) (EdgeKeyParts, error) {
	var parts EdgeKeyParts

	ts, rest, err := readSegment(k)
	if err != nil {
		return parts, fmt.Errorf("edge type: %w", err)
	}
	ds, rest, err := readSegment(rest)
	if err != nil {
		return parts, fmt.Errorf("edge direction: %w", err)
	}
	if len(rest) != 16 {
		return parts, fmt.Errorf("edge key endpoints must be 16 bytes, got %d", len(rest))
	}

	t, err := model.NewIdentifier(ts)
	if err != nil {
		return parts, err
	}
	dir, err := model.ParseDirection(ds)
	if err != nil {
		return parts, err
	}

	parts.Type = t
	parts.Direction = dir
	parts.AnchorID = binary.BigEndian.Uint64(rest[:8])
	parts.OtherID = binary.BigEndian.Uint64(rest[8:])
	return parts, nil
}

func readSegment(b []byte) (string, []byte, error) {
	if len(b) == 0 {
		return "", nil, fmt.Errorf("truncated length byte")
	}
	n := int(b[0])
	if len(b) < 1+n {
		return "", nil, fmt.Errorf("segment of %d bytes truncated at %d", n, len(b)-1)
	}
	return string(b[1 : 1+n]), b[1+n:], nil
}
