package query

import (
	"strings"
	"sync/atomic"

	"github.com/penghs520/pgraph/pkg/graph"
	"github.com/penghs520/pgraph/pkg/model"
)

// maxLinkDepth bounds nested link-predicate recursion so pathological
// queries cannot walk the graph without limit.
const maxLinkDepth = 8

// Condition is one node of a predicate tree evaluated against a vertex.
// Interior nodes are And/Or groups; leaves test a single attribute.
// Evaluation errors and type mismatches degrade to a non-match rather
// than failing the whole query, and are counted for observability.
type Condition interface {
	match(c *evalContext, v *model.Vertex) bool
}

type evalContext struct {
	txn        *graph.Txn
	depth      int
	mismatches *atomic.Uint64
}

func (c *evalContext) mismatch() {
	c.mismatches.Add(1)
}

type groupCondition struct {
	and      bool
	children []Condition
}

// And matches when every child matches; short-circuits on the first
// non-match.
func And(children ...Condition) Condition {
	return &groupCondition{and: true, children: children}
}

// Or matches when any child matches; short-circuits on the first match.
func Or(children ...Condition) Condition {
	return &groupCondition{children: children}
}

func (g *groupCondition) match(c *evalContext, v *model.Vertex) bool {
	if g.and {
		for _, child := range g.children {
			if !child.match(c, v) {
				return false
			}
		}
		return true
	}
	for _, child := range g.children {
		if child.match(c, v) {
			return true
		}
	}
	return false
}

// TitleContains matches the displayed title by substring or pinyin.
type TitleContains struct {
	Keyword string
}

func (t TitleContains) match(_ *evalContext, v *model.Vertex) bool {
	return pinyinMatch(v.Title.Display(), t.Keyword)
}

// CodeContains matches the org code or the custom code by substring.
type CodeContains struct {
	Keyword string
}

func (t CodeContains) match(_ *evalContext, v *model.Vertex) bool {
	if strings.Contains(v.CodeInOrg, t.Keyword) {
		return true
	}
	return v.CustomCode != nil && strings.Contains(*v.CustomCode, t.Keyword)
}

// TextContains matches a text field by substring or pinyin.
type TextContains struct {
	FieldID model.Identifier
	Keyword string
}

func (t TextContains) match(c *evalContext, v *model.Vertex) bool {
	fv, ok := v.Field(t.FieldID)
	if !ok {
		return false
	}
	if fv.Kind != model.FieldText {
		c.mismatch()
		return false
	}
	return pinyinMatch(fv.Text, t.Keyword)
}

// CompareOp is a numeric comparison operator.
type CompareOp uint8

const (
	CompareEq CompareOp = iota
	CompareNe
	CompareGt
	CompareGe
	CompareLt
	CompareLe
)

// NumberCompare matches a number field against a constant.
type NumberCompare struct {
	FieldID model.Identifier
	Op      CompareOp
	Value   float64
}

func (t NumberCompare) match(c *evalContext, v *model.Vertex) bool {
	fv, ok := v.Field(t.FieldID)
	if !ok {
		return false
	}
	if fv.Kind != model.FieldNumber {
		c.mismatch()
		return false
	}
	n := fv.Number
	switch t.Op {
	case CompareEq:
		return n == t.Value
	case CompareNe:
		return n != t.Value
	case CompareGt:
		return n > t.Value
	case CompareGe:
		return n >= t.Value
	case CompareLt:
		return n < t.Value
	case CompareLe:
		return n <= t.Value
	default:
		c.mismatch()
		return false
	}
}

// NumberRange matches a number field inside an inclusive range; nil
// bounds are open.
type NumberRange struct {
	FieldID  model.Identifier
	Min, Max *float64
}

func (t NumberRange) match(c *evalContext, v *model.Vertex) bool {
	fv, ok := v.Field(t.FieldID)
	if !ok {
		return false
	}
	if fv.Kind != model.FieldNumber {
		c.mismatch()
		return false
	}
	if t.Min != nil && fv.Number < *t.Min {
		return false
	}
	if t.Max != nil && fv.Number > *t.Max {
		return false
	}
	return true
}

// DateRange matches a date field inside an inclusive millisecond range;
// nil bounds are open.
type DateRange struct {
	FieldID  model.Identifier
	From, To *uint64
}

func (t DateRange) match(c *evalContext, v *model.Vertex) bool {
	fv, ok := v.Field(t.FieldID)
	if !ok {
		return false
	}
	if fv.Kind != model.FieldDate {
		c.mismatch()
		return false
	}
	if t.From != nil && fv.Date < *t.From {
		return false
	}
	if t.To != nil && fv.Date > *t.To {
		return false
	}
	return true
}

// EnumAnyOf matches an enum field selecting any of the given items.
type EnumAnyOf struct {
	FieldID model.Identifier
	Items   []model.Identifier
}

func (t EnumAnyOf) match(c *evalContext, v *model.Vertex) bool {
	fv, ok := v.Field(t.FieldID)
	if !ok {
		return false
	}
	if fv.Kind != model.FieldEnum {
		c.mismatch()
		return false
	}
	for _, selected := range fv.Enum {
		for _, want := range t.Items {
			if selected == want {
				return true
			}
		}
	}
	return false
}

// StatusIn matches the workflow status of the card.
type StatusIn struct {
	Statuses []model.Identifier
}

func (t StatusIn) match(_ *evalContext, v *model.Vertex) bool {
	for _, s := range t.Statuses {
		if v.StreamInfo.StatusID == s {
			return true
		}
	}
	return false
}

// StateIn matches the lifecycle state of the card.
type StateIn struct {
	States []model.CardState
}

func (t StateIn) match(_ *evalContext, v *model.Vertex) bool {
	for _, s := range t.States {
		if v.State == s {
			return true
		}
	}
	return false
}

// CardTypeIn matches the card type.
type CardTypeIn struct {
	Types []model.Identifier
}

func (t CardTypeIn) match(_ *evalContext, v *model.Vertex) bool {
	for _, ct := range t.Types {
		if v.CardTypeID == ct {
			return true
		}
	}
	return false
}

// WebLinkContains matches a web-link field by substring over href and
// display name. An empty FieldID searches every web-link field.
type WebLinkContains struct {
	FieldID model.Identifier
	Keyword string
}

func (t WebLinkContains) match(c *evalContext, v *model.Vertex) bool {
	if !t.FieldID.IsEmpty() {
		fv, ok := v.Field(t.FieldID)
		if !ok {
			return false
		}
		if fv.Kind != model.FieldWebLink {
			c.mismatch()
			return false
		}
		return strings.Contains(fv.Link.Href, t.Keyword) || strings.Contains(fv.Link.Name, t.Keyword)
	}

	for _, fv := range v.FieldValues {
		if fv.Kind != model.FieldWebLink {
			continue
		}
		if strings.Contains(fv.Link.Href, t.Keyword) || strings.Contains(fv.Link.Name, t.Keyword) {
			return true
		}
	}
	return false
}

// KeywordMatch is the full-text leaf: the keyword matches the title, the
// codes, or any text field, with pinyin rules applied.
type KeywordMatch struct {
	Keyword string
}

func (t KeywordMatch) match(c *evalContext, v *model.Vertex) bool {
	if pinyinMatch(v.Title.Display(), t.Keyword) {
		return true
	}
	if (CodeContains{Keyword: t.Keyword}).match(c, v) {
		return true
	}
	for _, fv := range v.FieldValues {
		if fv.Kind == model.FieldText && pinyinMatch(fv.Text, t.Keyword) {
			return true
		}
	}
	return false
}

// HasLink matches when the vertex has at least one neighbor along the
// given edge type and direction; a non-nil Nested condition must match
// one of the neighbors. Recursion is capped at maxLinkDepth.
type HasLink struct {
	Type      model.Identifier
	Direction model.Direction
	Nested    Condition
}

func (t HasLink) match(c *evalContext, v *model.Vertex) bool {
	if c.depth >= maxLinkDepth {
		c.mismatch()
		return false
	}

	neighbors, err := c.txn.NeighborIDs(model.NeighborQuery{
		SrcVertexIDs: []model.VertexID{v.CardID},
		Descriptor:   model.EdgeDescriptor{Type: t.Type, Direction: t.Direction},
	})
	if err != nil {
		c.mismatch()
		return false
	}
	if t.Nested == nil {
		return len(neighbors) > 0
	}

	vertices, err := c.txn.GetVertices(neighbors)
	if err != nil {
		c.mismatch()
		return false
	}
	nested := &evalContext{txn: c.txn, depth: c.depth + 1, mismatches: c.mismatches}
	for _, n := range vertices {
		if t.Nested.match(nested, n) {
			return true
		}
	}
	return false
}
