package fsm

import (
	"encoding/json"

	"github.com/penghs520/pgraph/pkg/model"
)

// Command is a state change operation in the replicated log.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// Supported operations.
const (
	OpCreateVertex     = "create_vertex"
	OpUpdateVertex     = "update_vertex"
	OpDeleteVertex     = "delete_vertex"
	OpCreateEdges      = "create_edges"
	OpUpdateEdges      = "update_edges"
	OpDeleteEdges      = "delete_edges"
	OpUpdateCardFields = "update_card_fields"
	OpUpdateTitles     = "update_titles"
	OpBulkInsert       = "bulk_insert"
)

// VertexPayload carries a full vertex plus its description, which is
// excluded from the vertex's own serialization.
type VertexPayload struct {
	Vertex model.Vertex      `json:"vertex"`
	Desc   model.Description `json:"desc"`
}

// DeleteVertexPayload addresses a vertex to hard-delete.
type DeleteVertexPayload struct {
	CardID model.CardID `json:"card_id"`
}

// EdgesPayload carries an ordered list of edges for the batch edge ops.
type EdgesPayload struct {
	Edges []model.Edge `json:"edges"`
}

// FieldUpdate sets or clears one field on one card; a nil Value clears.
type FieldUpdate struct {
	CardID  model.CardID      `json:"card_id"`
	FieldID model.Identifier  `json:"field_id"`
	Value   *model.FieldValue `json:"value,omitempty"`
}

// FieldUpdatesPayload is the batch card-field update.
type FieldUpdatesPayload struct {
	Updates []FieldUpdate `json:"updates"`
}

// TitleUpdate replaces the title of one card.
type TitleUpdate struct {
	CardID model.CardID `json:"card_id"`
	Title  model.Title  `json:"title"`
}

// TitleUpdatesPayload is the batch title update.
type TitleUpdatesPayload struct {
	Updates []TitleUpdate `json:"updates"`
}

// BulkInsertPayload creates vertices and edges in one transaction.
type BulkInsertPayload struct {
	Vertices []VertexPayload `json:"vertices"`
	Edges    []model.Edge    `json:"edges"`
}

// NewCommand marshals a payload into a command envelope.
func NewCommand(op string, payload any) (Command, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, err
	}
	return Command{Op: op, Data: data}, nil
}
