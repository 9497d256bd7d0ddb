package query

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penghs520/pgraph/pkg/graph"
	"github.com/penghs520/pgraph/pkg/model"
)

var (
	typeTask = model.MustIdentifier("task")
	boardA   = model.MustIdentifier("board-a")
	blocks   = model.MustIdentifier("blocks")
	weight   = model.MustIdentifier("weight")
	notes    = model.MustIdentifier("notes")
	due      = model.MustIdentifier("due")
	severity = model.MustIdentifier("severity")
)

func newTestEngine(t *testing.T) (*graph.DB, *Engine) {
	t.Helper()
	db, err := graph.Open(t.TempDir(), graph.Config{VertexLRUSize: 4096, NoSync: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, NewEngine(db)
}

func card(id model.CardID, title string) *model.Vertex {
	return &model.Vertex{
		CardID:      id,
		OrgID:       model.MustIdentifier("org"),
		CardTypeID:  typeTask,
		ContainerID: boardA,
		StreamInfo: model.StreamInfo{
			StreamID: model.MustIdentifier("stream"),
			StatusID: model.MustIdentifier("todo"),
		},
		State: model.StateActive,
		Title: model.PlainTitle(title),
	}
}

func commitCards(t *testing.T, db *graph.DB, cards ...*model.Vertex) {
	t.Helper()
	txn := db.Txn()
	for _, c := range cards {
		require.NoError(t, txn.CreateVertex(c))
	}
	require.NoError(t, txn.Commit())
}

func taskScope() model.VertexQuery {
	return model.VertexQuery{CardTypeIDs: []model.Identifier{typeTask}}
}

func TestSortAndPaginate(t *testing.T) {
	db, engine := newTestEngine(t)

	txn := db.Txn()
	for i := 1; i <= 1000; i++ {
		c := card(model.CardID(i), fmt.Sprintf("card %d", i))
		c.CodeInOrg = fmt.Sprintf("T-%d", i)
		c.CodeInOrgInt = uint32(i)
		require.NoError(t, txn.CreateVertex(c))
	}
	require.NoError(t, txn.Commit())

	page, err := engine.QueryCards(Query{
		Scope:       taskScope(),
		SortAndPage: &SortAndPage{Key: SortByCodeInOrg, Offset: 200, Limit: 50},
	})
	require.NoError(t, err)

	assert.Equal(t, 1000, page.Total)
	require.Equal(t, 50, page.Count)
	for i, c := range page.Cards {
		assert.Equal(t, uint32(201+i), c.CodeInOrgInt)
	}
}

func TestSortDescendingWithTieBreak(t *testing.T) {
	db, engine := newTestEngine(t)

	a := card(1, "a")
	b := card(2, "b")
	c := card(3, "c")
	for _, v := range []*model.Vertex{a, b, c} {
		v.Position = 10 // full tie on the sort key
	}
	commitCards(t, db, c, a, b)

	ids, err := engine.QueryCardIDs(Query{
		Scope:       taskScope(),
		SortAndPage: &SortAndPage{Key: SortByPosition, Descending: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.CardID{1, 2, 3}, ids, "ties always break by id ascending")
}

func TestPinyinKeywordCondition(t *testing.T) {
	db, engine := newTestEngine(t)
	commitCards(t, db, card(1, "你好世界"))

	for _, tt := range []struct {
		keyword string
		want    int
	}{
		{"nihao", 1},
		{"nhsj", 1},
		{"hello", 0},
	} {
		count, err := engine.CountCards(Query{
			Scope:     taskScope(),
			Condition: TitleContains{Keyword: tt.keyword},
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, count, "keyword %q", tt.keyword)
	}
}

func TestConditionTreeShortCircuit(t *testing.T) {
	db, engine := newTestEngine(t)

	hot := card(1, "hot item")
	hot.FieldValues = map[model.Identifier]model.FieldValue{severity: model.NumberField(9)}
	cold := card(2, "cold item")
	cold.FieldValues = map[model.Identifier]model.FieldValue{severity: model.NumberField(2)}
	archived := card(3, "hot but archived")
	archived.State = model.StateArchived
	archived.FieldValues = map[model.Identifier]model.FieldValue{severity: model.NumberField(9)}
	commitCards(t, db, hot, cold, archived)

	page, err := engine.QueryCards(Query{
		Scope: taskScope(),
		Condition: And(
			StateIn{States: []model.CardState{model.StateActive}},
			Or(
				NumberCompare{FieldID: severity, Op: CompareGe, Value: 8},
				TitleContains{Keyword: "cold"},
			),
		),
	})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)

	ids := []model.CardID{page.Cards[0].CardID, page.Cards[1].CardID}
	assert.ElementsMatch(t, []model.CardID{1, 2}, ids)
}

func TestTypeMismatchDegradesToFalse(t *testing.T) {
	db, engine := newTestEngine(t)

	c := card(1, "x")
	c.FieldValues = map[model.Identifier]model.FieldValue{notes: model.TextField("not a number")}
	commitCards(t, db, c)

	before := engine.PredicateErrors()
	count, err := engine.CountCards(Query{
		Scope:     taskScope(),
		Condition: NumberCompare{FieldID: notes, Op: CompareGt, Value: 1},
	})
	require.NoError(t, err)
	assert.Zero(t, count, "a bad leaf must not poison the query")
	assert.Equal(t, before+1, engine.PredicateErrors())
}

func TestDateAndEnumConditions(t *testing.T) {
	db, engine := newTestEngine(t)

	red := model.MustIdentifier("red")
	blue := model.MustIdentifier("blue")
	tags := model.MustIdentifier("tags")

	early := card(1, "early")
	early.FieldValues = map[model.Identifier]model.FieldValue{
		due:  model.DateField(1000),
		tags: model.EnumField(red),
	}
	late := card(2, "late")
	late.FieldValues = map[model.Identifier]model.FieldValue{
		due:  model.DateField(9000),
		tags: model.EnumField(blue),
	}
	commitCards(t, db, early, late)

	from, to := uint64(500), uint64(5000)
	ids, err := engine.QueryCardIDs(Query{
		Scope:     taskScope(),
		Condition: DateRange{FieldID: due, From: &from, To: &to},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.CardID{1}, ids)

	ids, err = engine.QueryCardIDs(Query{
		Scope:     taskScope(),
		Condition: EnumAnyOf{FieldID: tags, Items: []model.Identifier{blue}},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.CardID{2}, ids)
}

func TestHasLinkCondition(t *testing.T) {
	db, engine := newTestEngine(t)

	blocker := card(1, "blocker")
	blocked := card(2, "blocked")
	urgent := card(3, "urgent target")
	urgent.FieldValues = map[model.Identifier]model.FieldValue{severity: model.NumberField(9)}
	commitCards(t, db, blocker, blocked, urgent)

	txn := db.Txn()
	require.NoError(t, txn.CreateEdge(model.NewEdge(1, blocks, 2, nil)))
	require.NoError(t, txn.CreateEdge(model.NewEdge(2, blocks, 3, nil)))
	require.NoError(t, txn.Commit())

	// Plain existence.
	ids, err := engine.QueryCardIDs(Query{
		Scope:     taskScope(),
		Condition: HasLink{Type: blocks, Direction: model.DirectionSrc},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.CardID{1, 2}, ids)

	// Nested: cards blocking something urgent.
	ids, err = engine.QueryCardIDs(Query{
		Scope: taskScope(),
		Condition: HasLink{
			Type:      blocks,
			Direction: model.DirectionSrc,
			Nested:    NumberCompare{FieldID: severity, Op: CompareGe, Value: 8},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.CardID{2}, ids)
}

func TestProjection(t *testing.T) {
	db, engine := newTestEngine(t)

	content := "body text"
	c := card(1, "projected")
	c.CodeInOrg = "T-1"
	c.CodeInOrgInt = 1
	c.Desc = model.Description{Content: &content, Changed: true}
	commitCards(t, db, c)

	page, err := engine.QueryCards(Query{
		Scope: taskScope(),
		Yield: []string{"title", "description"},
	})
	require.NoError(t, err)
	require.Len(t, page.Cards, 1)

	got := page.Cards[0]
	assert.Equal(t, model.CardID(1), got.CardID)
	assert.Equal(t, "projected", got.Title.Display())
	require.NotNil(t, got.Desc.Content)
	assert.Equal(t, content, *got.Desc.Content)
	// Unprojected attributes stay zero.
	assert.Empty(t, got.CodeInOrg)
	assert.True(t, got.CardTypeID.IsEmpty())

	// Wildcard selects everything.
	page, err = engine.QueryCards(Query{Scope: taskScope(), Yield: []string{"*"}})
	require.NoError(t, err)
	assert.Equal(t, "T-1", page.Cards[0].CodeInOrg)
}

func TestQueryCardTitles(t *testing.T) {
	db, engine := newTestEngine(t)
	commitCards(t, db, card(1, "first"), card(2, "second"))

	titles, err := engine.QueryCardTitles([]model.CardID{1, 2, 404})
	require.NoError(t, err)
	assert.Equal(t, map[model.CardID]string{1: "first", 2: "second"}, titles)

	empty, err := engine.QueryCardTitles(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCountCardsByGroup(t *testing.T) {
	db, engine := newTestEngine(t)

	groupA := card(100, "group a")
	groupB := card(200, "group b")
	commitCards(t, db, card(1, "x"), card(2, "y"), card(3, "z"), groupA, groupB)

	txn := db.Txn()
	require.NoError(t, txn.CreateEdge(model.NewEdge(1, blocks, 100, nil)))
	require.NoError(t, txn.CreateEdge(model.NewEdge(2, blocks, 100, nil)))
	require.NoError(t, txn.CreateEdge(model.NewEdge(3, blocks, 200, nil)))
	require.NoError(t, txn.Commit())

	counts, err := engine.CountCardsByGroup(
		Query{Scope: taskScope()},
		[]model.CardID{100, 200},
		blocks, model.DirectionSrc,
	)
	require.NoError(t, err)
	assert.Equal(t, map[model.CardID]int{100: 2, 200: 1}, counts)
}

func TestQueryLinks(t *testing.T) {
	db, engine := newTestEngine(t)
	commitCards(t, db, card(1, "a"), card(2, "b"))

	txn := db.Txn()
	require.NoError(t, txn.CreateEdge(model.NewEdge(1, blocks, 2, []model.EdgeProp{model.NumberProp(weight, 5)})))
	require.NoError(t, txn.Commit())

	links, err := engine.QueryLinks([]model.CardID{1}, []LinkTypeWithPosition{{TypeID: blocks, Direction: model.DirectionSrc}})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, model.CardID(1), links[0].SrcID)
	assert.Equal(t, model.CardID(2), links[0].DestID)
	require.Len(t, links[0].Props, 1)
	assert.Equal(t, 5.0, links[0].Props[0].Number)

	// From the destination side the link is reported in the same
	// source-to-destination orientation.
	links, err = engine.QueryLinks([]model.CardID{2}, []LinkTypeWithPosition{{TypeID: blocks, Direction: model.DirectionDest}})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, model.CardID(1), links[0].SrcID)
	assert.Equal(t, model.CardID(2), links[0].DestID)
}

func TestSortByFieldValue(t *testing.T) {
	db, engine := newTestEngine(t)

	low := card(1, "low")
	low.FieldValues = map[model.Identifier]model.FieldValue{severity: model.NumberField(1)}
	high := card(2, "high")
	high.FieldValues = map[model.Identifier]model.FieldValue{severity: model.NumberField(10)}
	missing := card(3, "missing field")
	commitCards(t, db, high, missing, low)

	ids, err := engine.QueryCardIDs(Query{
		Scope:       taskScope(),
		SortAndPage: &SortAndPage{Key: SortByField, FieldID: severity},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.CardID{1, 2, 3}, ids, "missing field sorts last")
}
