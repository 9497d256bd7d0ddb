package query

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/penghs520/pgraph/pkg/graph"
	"github.com/penghs520/pgraph/pkg/log"
	"github.com/penghs520/pgraph/pkg/model"
)

// Engine evaluates card queries against a graph engine.
type Engine struct {
	db         *graph.DB
	mismatches atomic.Uint64
	log        zerolog.Logger
}

// NewEngine builds a query engine over db.
func NewEngine(db *graph.DB) *Engine {
	return &Engine{db: db, log: log.WithComponent("query")}
}

// PredicateErrors returns how many predicate evaluations degraded to a
// non-match because of a type mismatch or evaluation failure.
func (e *Engine) PredicateErrors() uint64 {
	return e.mismatches.Load()
}

// Query is a full card query: candidate scope, predicate tree, ordering
// and projection.
type Query struct {
	Scope       model.VertexQuery
	Condition   Condition
	SortAndPage *SortAndPage

	// Yield names the attributes populated on the returned cards;
	// "*" selects everything including the description.
	Yield []string
}

// CardPage is one page of query results. Total counts the matches
// before pagination.
type CardPage struct {
	Cards []*model.Vertex
	Count int
	Total int
}

// QueryCards runs the full pipeline: plan, filter, sort, paginate,
// project.
func (e *Engine) QueryCards(q Query) (*CardPage, error) {
	txn := e.db.Txn()
	defer txn.Abort()

	filtered, err := e.filter(txn, q)
	if err != nil {
		return nil, err
	}
	total := len(filtered)

	page := sortAndPage(filtered, q.SortAndPage)
	cards, err := e.project(txn, page, q.Yield)
	if err != nil {
		return nil, err
	}

	return &CardPage{Cards: cards, Count: len(cards), Total: total}, nil
}

// CountCards runs plan and filter only.
func (e *Engine) CountCards(q Query) (int, error) {
	txn := e.db.Txn()
	defer txn.Abort()

	filtered, err := e.filter(txn, q)
	if err != nil {
		return 0, err
	}
	return len(filtered), nil
}

// QueryCardIDs returns the matching ids, ordered and paged like
// QueryCards.
func (e *Engine) QueryCardIDs(q Query) ([]model.CardID, error) {
	txn := e.db.Txn()
	defer txn.Abort()

	filtered, err := e.filter(txn, q)
	if err != nil {
		return nil, err
	}
	page := sortAndPage(filtered, q.SortAndPage)

	ids := make([]model.CardID, 0, len(page))
	for _, v := range page {
		ids = append(ids, v.CardID)
	}
	return ids, nil
}

// QueryCardTitles is the lightweight id→display-title lookup backing
// audit logs and pickers.
func (e *Engine) QueryCardTitles(ids []model.CardID) (map[model.CardID]string, error) {
	if len(ids) == 0 {
		return map[model.CardID]string{}, nil
	}
	txn := e.db.Txn()
	defer txn.Abort()

	vertices, err := txn.GetVertices(ids)
	if err != nil {
		return nil, err
	}
	titles := make(map[model.CardID]string, len(vertices))
	for _, v := range vertices {
		titles[v.CardID] = v.Title.Display()
	}
	return titles, nil
}

// CountCardsByGroup counts, for each group card, how many of the
// matching cards link to it along the given edge type and direction.
func (e *Engine) CountCardsByGroup(q Query, groupIDs []model.CardID, linkType model.Identifier, dir model.Direction) (map[model.CardID]int, error) {
	if len(groupIDs) == 0 {
		return map[model.CardID]int{}, nil
	}
	txn := e.db.Txn()
	defer txn.Abort()

	filtered, err := e.filter(txn, q)
	if err != nil {
		return nil, err
	}

	groups := make(map[model.CardID]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		groups[id] = struct{}{}
	}

	counts := make(map[model.CardID]int)
	for _, v := range filtered {
		neighbors, err := txn.NeighborIDs(model.NeighborQuery{
			SrcVertexIDs: []model.VertexID{v.CardID},
			Descriptor:   model.EdgeDescriptor{Type: linkType, Direction: dir},
		})
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if _, ok := groups[n]; ok {
				counts[n]++
			}
		}
	}
	return counts, nil
}

func (e *Engine) filter(txn *graph.Txn, q Query) ([]*model.Vertex, error) {
	vertices, err := txn.QueryVertices(q.Scope)
	if err != nil {
		return nil, err
	}
	if q.Condition == nil {
		return vertices, nil
	}

	ctx := &evalContext{txn: txn, mismatches: &e.mismatches}
	filtered := vertices[:0:0]
	for _, v := range vertices {
		if q.Condition.match(ctx, v) {
			filtered = append(filtered, v)
		}
	}
	return filtered, nil
}

// yieldAll is the projection wildcard.
const yieldAll = "*"

func (e *Engine) project(txn *graph.Txn, vertices []*model.Vertex, yield []string) ([]*model.Vertex, error) {
	if len(vertices) == 0 {
		return nil, nil
	}
	if len(yield) == 0 {
		// No projection list: cards carry every stored attribute but
		// the description is not fetched.
		return vertices, nil
	}

	all := false
	wanted := make(map[string]struct{}, len(yield))
	for _, name := range yield {
		if name == yieldAll {
			all = true
		}
		wanted[name] = struct{}{}
	}
	has := func(name string) bool {
		if all {
			return true
		}
		_, ok := wanted[name]
		return ok
	}

	var descriptions map[model.VertexID]*string
	if has("description") {
		ids := make([]model.VertexID, 0, len(vertices))
		for _, v := range vertices {
			ids = append(ids, v.CardID)
		}
		var err error
		if descriptions, err = txn.Descriptions(ids); err != nil {
			return nil, err
		}
	}

	out := make([]*model.Vertex, 0, len(vertices))
	for _, v := range vertices {
		card := &model.Vertex{CardID: v.CardID}
		if has("org_id") {
			card.OrgID = v.OrgID
		}
		if has("card_type_id") {
			card.CardTypeID = v.CardTypeID
		}
		if has("container_id") {
			card.ContainerID = v.ContainerID
		}
		if has("stream_info") {
			card.StreamInfo = v.StreamInfo
		}
		if has("state") {
			card.State = v.State
		}
		if has("title") {
			card.Title = v.Title
		}
		if has("code") {
			card.CodeInOrg = v.CodeInOrg
			card.CodeInOrgInt = v.CodeInOrgInt
			card.CustomCode = v.CustomCode
		}
		if has("position") {
			card.Position = v.Position
		}
		if has("timestamps") {
			card.CreatedAt = v.CreatedAt
			card.UpdatedAt = v.UpdatedAt
			card.ArchivedAt = v.ArchivedAt
			card.DiscardedAt = v.DiscardedAt
		}
		if has("discard_reason") {
			card.DiscardReason = v.DiscardReason
		}
		if has("restore_reason") {
			card.RestoreReason = v.RestoreReason
		}
		if has("field_values") {
			card.FieldValues = v.FieldValues
		}
		if descriptions != nil {
			card.Desc = model.Description{Content: descriptions[v.CardID]}
		}
		out = append(out, card)
	}
	return out, nil
}
