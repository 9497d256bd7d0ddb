package model

import (
	"encoding/json"
	"fmt"
)

// CardID uniquely identifies a card within the database.
type CardID = uint64

// VertexID is identical to CardID; the two names coexist for API
// compatibility with callers that think in graph terms.
type VertexID = CardID

// CardState is the lifecycle state of a card.
type CardState uint8

const (
	StateActive CardState = iota
	StateArchived
	StateDiscarded
)

var stateNames = map[CardState]string{
	StateActive:    "active",
	StateArchived:  "archived",
	StateDiscarded: "discarded",
}

func (s CardState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ParseCardState converts a state name back to its CardState.
func ParseCardState(s string) (CardState, error) {
	switch s {
	case "active":
		return StateActive, nil
	case "archived":
		return StateArchived, nil
	case "discarded":
		return StateDiscarded, nil
	default:
		return StateActive, ValidationErrorf("%q is not a card state", s)
	}
}

// MarshalJSON encodes the state by name.
func (s CardState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state name.
func (s *CardState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	state, err := ParseCardState(name)
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// StreamInfo carries the workflow position of a card: the value stream it
// belongs to and its status within that stream.
type StreamInfo struct {
	StreamID Identifier `json:"stream_id"`
	StatusID Identifier `json:"status_id"`
}

// Description is the free-text body of a card, stored in a side table.
// Changed discriminates "untouched" from "cleared": an update with
// Changed=true and Content=nil deletes the stored description, while
// Changed=false leaves it alone.
type Description struct {
	Content *string `json:"content,omitempty"`
	Changed bool    `json:"changed"`
}

// Vertex is a card: a node in the graph carrying typed attributes.
type Vertex struct {
	CardID      CardID     `json:"card_id"`
	OrgID       Identifier `json:"org_id"`
	CardTypeID  Identifier `json:"card_type_id"`
	ContainerID Identifier `json:"container_id"`
	StreamInfo  StreamInfo `json:"stream_info"`
	State       CardState  `json:"state"`
	Title       Title      `json:"title"`

	// CodeInOrg is stored twice: the string form serves substring
	// filtering, the integer form serves ordering.
	CodeInOrg    string  `json:"code_in_org"`
	CodeInOrgInt uint32  `json:"code_in_org_int"`
	CustomCode   *string `json:"custom_code,omitempty"`

	// Position orders cards within their container.
	Position uint64 `json:"position"`

	CreatedAt     uint64  `json:"created_at"`
	UpdatedAt     uint64  `json:"updated_at"`
	ArchivedAt    *uint64 `json:"archived_at,omitempty"`
	DiscardedAt   *uint64 `json:"discarded_at,omitempty"`
	DiscardReason *string `json:"discard_reason,omitempty"`
	RestoreReason *string `json:"restore_reason,omitempty"`

	FieldValues map[Identifier]FieldValue `json:"field_values,omitempty"`

	// Desc lives in its own column family and is not part of the
	// persisted vertex row.
	Desc Description `json:"-"`
}

// Field reads a field value by id; ok is false when the field is unset.
func (v *Vertex) Field(id Identifier) (FieldValue, bool) {
	if v.FieldValues == nil {
		return FieldValue{}, false
	}
	fv, ok := v.FieldValues[id]
	return fv, ok
}

// FieldKind tags the concrete type held by a FieldValue.
type FieldKind uint8

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldDate
	FieldEnum
	FieldWebLink
	FieldAttachment
)

// WebLink is a named URL field value.
type WebLink struct {
	Href string `json:"href"`
	Name string `json:"name"`
}

// Attachment is a single uploaded file reference.
type Attachment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Uploader  string `json:"uploader"`
	CreatedAt uint64 `json:"created_at"`
	Size      uint64 `json:"size"`
}

// FieldValue is a tagged union over the concrete field types. Only the
// member selected by Kind is meaningful; predicate leaves dispatch on the
// tag and treat mismatched comparisons as non-matches.
type FieldValue struct {
	Kind        FieldKind    `json:"kind"`
	Text        string       `json:"text,omitempty"`
	Number      float64      `json:"number,omitempty"`
	Date        uint64       `json:"date,omitempty"`
	Enum        []Identifier `json:"enum,omitempty"`
	Link        WebLink      `json:"link,omitzero"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// TextField builds a text field value.
func TextField(s string) FieldValue { return FieldValue{Kind: FieldText, Text: s} }

// NumberField builds a number field value.
func NumberField(n float64) FieldValue { return FieldValue{Kind: FieldNumber, Number: n} }

// DateField builds a date field value from a millisecond timestamp.
func DateField(ts uint64) FieldValue { return FieldValue{Kind: FieldDate, Date: ts} }

// EnumField builds an enum field value from the selected item ids.
func EnumField(items ...Identifier) FieldValue { return FieldValue{Kind: FieldEnum, Enum: items} }

// WebLinkField builds a web link field value.
func WebLinkField(href, name string) FieldValue {
	return FieldValue{Kind: FieldWebLink, Link: WebLink{Href: href, Name: name}}
}

// AttachmentField builds an attachment field value.
func AttachmentField(items ...Attachment) FieldValue {
	return FieldValue{Kind: FieldAttachment, Attachments: items}
}
