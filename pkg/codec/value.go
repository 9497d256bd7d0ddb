package codec

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/penghs520/pgraph/pkg/model"
)

// versionTag leads every value payload. Decoders reject unknown tags so
// the meaning of the byte is never reused across format revisions.
const versionTag byte = 0

const vertexFieldCount = 19

// EncodeVertex serializes a vertex row. The description is excluded; it
// lives in its own column family. Field values are written sorted by
// field id so identical vertices always produce identical bytes.
func EncodeVertex(v *model.Vertex) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(versionTag)
	enc := msgpack.NewEncoder(&buf)

	if err := enc.EncodeArrayLen(vertexFieldCount); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint64(v.CardID); err != nil {
		return nil, err
	}
	for _, id := range []model.Identifier{v.OrgID, v.CardTypeID, v.ContainerID, v.StreamInfo.StreamID, v.StreamInfo.StatusID} {
		if err := enc.EncodeString(id.String()); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeUint8(uint8(v.State)); err != nil {
		return nil, err
	}
	if err := encodeTitle(enc, v.Title); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(v.CodeInOrg); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint32(v.CodeInOrgInt); err != nil {
		return nil, err
	}
	if err := encodeOptString(enc, v.CustomCode); err != nil {
		return nil, err
	}
	for _, u := range []uint64{v.Position, v.CreatedAt, v.UpdatedAt} {
		if err := enc.EncodeUint64(u); err != nil {
			return nil, err
		}
	}
	if err := encodeOptUint64(enc, v.ArchivedAt); err != nil {
		return nil, err
	}
	if err := encodeOptUint64(enc, v.DiscardedAt); err != nil {
		return nil, err
	}
	if err := encodeOptString(enc, v.DiscardReason); err != nil {
		return nil, err
	}
	if err := encodeOptString(enc, v.RestoreReason); err != nil {
		return nil, err
	}
	if err := encodeFieldValues(enc, v.FieldValues); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeVertex deserializes a vertex row.
func DecodeVertex(data []byte) (*model.Vertex, error) {
	dec, err := newDecoder(data)
	if err != nil {
		return nil, err
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n != vertexFieldCount {
		return nil, fmt.Errorf("vertex row has %d fields, want %d", n, vertexFieldCount)
	}

	var v model.Vertex
	if v.CardID, err = dec.DecodeUint64(); err != nil {
		return nil, err
	}
	ids := []*model.Identifier{&v.OrgID, &v.CardTypeID, &v.ContainerID, &v.StreamInfo.StreamID, &v.StreamInfo.StatusID}
	for _, dst := range ids {
		if *dst, err = decodeIdentifier(dec); err != nil {
			return nil, err
		}
	}
	state, err := dec.DecodeUint8()
	if err != nil {
		return nil, err
	}
	v.State = model.CardState(state)
	if v.Title, err = decodeTitle(dec); err != nil {
		return nil, err
	}
	if v.CodeInOrg, err = dec.DecodeString(); err != nil {
		return nil, err
	}
	if v.CodeInOrgInt, err = dec.DecodeUint32(); err != nil {
		return nil, err
	}
	if v.CustomCode, err = decodeOptString(dec); err != nil {
		return nil, err
	}
	if v.Position, err = dec.DecodeUint64(); err != nil {
		return nil, err
	}
	if v.CreatedAt, err = dec.DecodeUint64(); err != nil {
		return nil, err
	}
	if v.UpdatedAt, err = dec.DecodeUint64(); err != nil {
		return nil, err
	}
	if v.ArchivedAt, err = decodeOptUint64(dec); err != nil {
		return nil, err
	}
	if v.DiscardedAt, err = decodeOptUint64(dec); err != nil {
		return nil, err
	}
	if v.DiscardReason, err = decodeOptString(dec); err != nil {
		return nil, err
	}
	if v.RestoreReason, err = decodeOptString(dec); err != nil {
		return nil, err
	}
	if v.FieldValues, err = decodeFieldValues(dec); err != nil {
		return nil, err
	}
	return &v, nil
}

// EncodeEdgeProps serializes an edge property list for the forward entry.
func EncodeEdgeProps(props []model.EdgeProp) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(versionTag)
	enc := msgpack.NewEncoder(&buf)

	if err := enc.EncodeArrayLen(len(props)); err != nil {
		return nil, err
	}
	for _, p := range props {
		if err := enc.EncodeArrayLen(3); err != nil {
			return nil, err
		}
		if err := enc.EncodeUint8(uint8(p.Kind)); err != nil {
			return nil, err
		}
		if err := enc.EncodeString(p.FieldID.String()); err != nil {
			return nil, err
		}
		switch p.Kind {
		case model.EdgePropNumber:
			if err := enc.EncodeFloat64(p.Number); err != nil {
				return nil, err
			}
		case model.EdgePropDate:
			if err := enc.EncodeUint64(p.Date); err != nil {
				return nil, err
			}
		case model.EdgePropEnum:
			if err := encodeIdentifierList(enc, p.Enum); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown edge prop kind %d", p.Kind)
		}
	}
	return buf.Bytes(), nil
}

// DecodeEdgeProps deserializes an edge property list.
func DecodeEdgeProps(data []byte) ([]model.EdgeProp, error) {
	dec, err := newDecoder(data)
	if err != nil {
		return nil, err
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	props := make([]model.EdgeProp, 0, n)
	for i := 0; i < n; i++ {
		if _, err := dec.DecodeArrayLen(); err != nil {
			return nil, err
		}
		kind, err := dec.DecodeUint8()
		if err != nil {
			return nil, err
		}
		p := model.EdgeProp{Kind: model.EdgePropKind(kind)}
		if p.FieldID, err = decodeIdentifier(dec); err != nil {
			return nil, err
		}
		switch p.Kind {
		case model.EdgePropNumber:
			if p.Number, err = dec.DecodeFloat64(); err != nil {
				return nil, err
			}
		case model.EdgePropDate:
			if p.Date, err = dec.DecodeUint64(); err != nil {
				return nil, err
			}
		case model.EdgePropEnum:
			if p.Enum, err = decodeIdentifierList(dec); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown edge prop kind %d", kind)
		}
		props = append(props, p)
	}
	return props, nil
}

// EncodeDescription serializes a description row.
func EncodeDescription(content string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(versionTag)
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeString(content); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeDescription deserializes a description row.
func DecodeDescription(data []byte) (string, error) {
	dec, err := newDecoder(data)
	if err != nil {
		return "", err
	}
	return dec.DecodeString()
}

func newDecoder(data []byte) (*msgpack.Decoder, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty value payload")
	}
	if data[0] != versionTag {
		return nil, fmt.Errorf("unknown value version tag %d", data[0])
	}
	return msgpack.NewDecoder(bytes.NewReader(data[1:])), nil
}

func encodeTitle(enc *msgpack.Encoder, t model.Title) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString(t.Name); err != nil {
		return err
	}
	if t.Joint == nil {
		return enc.EncodeNil()
	}
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint8(uint8(t.Joint.Area)); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(t.Joint.Groups)); err != nil {
		return err
	}
	for _, g := range t.Joint.Groups {
		if err := enc.EncodeArrayLen(len(g.Parts)); err != nil {
			return err
		}
		for _, p := range g.Parts {
			if err := enc.EncodeString(p.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeTitle(dec *msgpack.Decoder) (model.Title, error) {
	var t model.Title
	if _, err := dec.DecodeArrayLen(); err != nil {
		return t, err
	}
	name, err := dec.DecodeString()
	if err != nil {
		return t, err
	}
	t.Name = name

	isNil, err := peekNil(dec)
	if err != nil {
		return t, err
	}
	if isNil {
		return t, dec.DecodeNil()
	}

	if _, err := dec.DecodeArrayLen(); err != nil {
		return t, err
	}
	area, err := dec.DecodeUint8()
	if err != nil {
		return t, err
	}
	groupCount, err := dec.DecodeArrayLen()
	if err != nil {
		return t, err
	}
	joint := &model.JointTitle{Area: model.JointArea(area), Groups: make([]model.JointPartGroup, 0, groupCount)}
	for i := 0; i < groupCount; i++ {
		partCount, err := dec.DecodeArrayLen()
		if err != nil {
			return t, err
		}
		group := model.JointPartGroup{Parts: make([]model.JointPart, 0, partCount)}
		for j := 0; j < partCount; j++ {
			pn, err := dec.DecodeString()
			if err != nil {
				return t, err
			}
			group.Parts = append(group.Parts, model.JointPart{Name: pn})
		}
		joint.Groups = append(joint.Groups, group)
	}
	t.Joint = joint
	return t, nil
}

func encodeFieldValues(enc *msgpack.Encoder, fields map[model.Identifier]model.FieldValue) error {
	ids := make([]model.Identifier, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	if err := enc.EncodeArrayLen(len(ids)); err != nil {
		return err
	}
	for _, id := range ids {
		if err := enc.EncodeString(id.String()); err != nil {
			return err
		}
		if err := encodeFieldValue(enc, fields[id]); err != nil {
			return err
		}
	}
	return nil
}

func decodeFieldValues(dec *msgpack.Decoder) (map[model.Identifier]model.FieldValue, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	fields := make(map[model.Identifier]model.FieldValue, n)
	for i := 0; i < n; i++ {
		id, err := decodeIdentifier(dec)
		if err != nil {
			return nil, err
		}
		fv, err := decodeFieldValue(dec)
		if err != nil {
			return nil, err
		}
		fields[id] = fv
	}
	return fields, nil
}

func encodeFieldValue(enc *msgpack.Encoder, fv model.FieldValue) error {
	if err := enc.EncodeUint8(uint8(fv.Kind)); err != nil {
		return err
	}
	switch fv.Kind {
	case model.FieldText:
		return enc.EncodeString(fv.Text)
	case model.FieldNumber:
		return enc.EncodeFloat64(fv.Number)
	case model.FieldDate:
		return enc.EncodeUint64(fv.Date)
	case model.FieldEnum:
		return encodeIdentifierList(enc, fv.Enum)
	case model.FieldWebLink:
		if err := enc.EncodeString(fv.Link.Href); err != nil {
			return err
		}
		return enc.EncodeString(fv.Link.Name)
	case model.FieldAttachment:
		if err := enc.EncodeArrayLen(len(fv.Attachments)); err != nil {
			return err
		}
		for _, a := range fv.Attachments {
			if err := enc.EncodeString(a.ID); err != nil {
				return err
			}
			if err := enc.EncodeString(a.Name); err != nil {
				return err
			}
			if err := enc.EncodeString(a.Uploader); err != nil {
				return err
			}
			if err := enc.EncodeUint64(a.CreatedAt); err != nil {
				return err
			}
			if err := enc.EncodeUint64(a.Size); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown field kind %d", fv.Kind)
	}
}

func decodeFieldValue(dec *msgpack.Decoder) (model.FieldValue, error) {
	kind, err := dec.DecodeUint8()
	if err != nil {
		return model.FieldValue{}, err
	}
	fv := model.FieldValue{Kind: model.FieldKind(kind)}
	switch fv.Kind {
	case model.FieldText:
		fv.Text, err = dec.DecodeString()
	case model.FieldNumber:
		fv.Number, err = dec.DecodeFloat64()
	case model.FieldDate:
		fv.Date, err = dec.DecodeUint64()
	case model.FieldEnum:
		fv.Enum, err = decodeIdentifierList(dec)
	case model.FieldWebLink:
		if fv.Link.Href, err = dec.DecodeString(); err != nil {
			return fv, err
		}
		fv.Link.Name, err = dec.DecodeString()
	case model.FieldAttachment:
		var n int
		if n, err = dec.DecodeArrayLen(); err != nil {
			return fv, err
		}
		fv.Attachments = make([]model.Attachment, 0, n)
		for i := 0; i < n; i++ {
			var a model.Attachment
			if a.ID, err = dec.DecodeString(); err != nil {
				return fv, err
			}
			if a.Name, err = dec.DecodeString(); err != nil {
				return fv, err
			}
			if a.Uploader, err = dec.DecodeString(); err != nil {
				return fv, err
			}
			if a.CreatedAt, err = dec.DecodeUint64(); err != nil {
				return fv, err
			}
			if a.Size, err = dec.DecodeUint64(); err != nil {
				return fv, err
			}
			fv.Attachments = append(fv.Attachments, a)
		}
	default:
		return fv, fmt.Errorf("unknown field kind %d", kind)
	}
	return fv, err
}

func encodeIdentifierList(enc *msgpack.Encoder, ids []model.Identifier) error {
	if err := enc.EncodeArrayLen(len(ids)); err != nil {
		return err
	}
	for _, id := range ids {
		if err := enc.EncodeString(id.String()); err != nil {
			return err
		}
	}
	return nil
}

func decodeIdentifierList(dec *msgpack.Decoder) ([]model.Identifier, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	ids := make([]model.Identifier, 0, n)
	for i := 0; i < n; i++ {
		id, err := decodeIdentifier(dec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func decodeIdentifier(dec *msgpack.Decoder) (model.Identifier, error) {
	s, err := dec.DecodeString()
	if err != nil {
		return model.Identifier{}, err
	}
	return model.NewIdentifier(s)
}

func encodeOptString(enc *msgpack.Encoder, s *string) error {
	if s == nil {
		return enc.EncodeNil()
	}
	return enc.EncodeString(*s)
}

func decodeOptString(dec *msgpack.Decoder) (*string, error) {
	isNil, err := peekNil(dec)
	if err != nil {
		return nil, err
	}
	if isNil {
		return nil, dec.DecodeNil()
	}
	s, err := dec.DecodeString()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func encodeOptUint64(enc *msgpack.Encoder, u *uint64) error {
	if u == nil {
		return enc.EncodeNil()
	}
	return enc.EncodeUint64(*u)
}

func decodeOptUint64(dec *msgpack.Decoder) (*uint64, error) {
	isNil, err := peekNil(dec)
	if err != nil {
		return nil, err
	}
	if isNil {
		return nil, dec.DecodeNil()
	}
	u, err := dec.DecodeUint64()
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func peekNil(dec *msgpack.Decoder) (bool, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return false, err
	}
	return code == msgpcode.Nil, nil
}
