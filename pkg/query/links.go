package query

import (
	"github.com/penghs520/pgraph/pkg/model"
)

// Link is the client-facing view of an edge: always oriented source to
// destination regardless of which side was queried.
type Link struct {
	ID     model.CardID
	TypeID model.Identifier
	SrcID  model.CardID
	DestID model.CardID
	Props  []model.EdgeProp
}

// LinkTypeWithPosition names one relationship to follow and which side
// the queried cards sit on.
type LinkTypeWithPosition struct {
	TypeID    model.Identifier
	Direction model.Direction
}

// LinkKey addresses edges by source id and link type.
type LinkKey struct {
	SrcID  model.CardID
	TypeID model.Identifier
}

// QueryLinks walks each requested relationship from the given cards and
// returns the links found. Endpoints default to active and archived
// cards; links into discarded cards are not reported.
func (e *Engine) QueryLinks(cardIDs []model.CardID, relations []LinkTypeWithPosition) ([]Link, error) {
	txn := e.db.Txn()
	defer txn.Abort()

	var all []Link
	for _, rel := range relations {
		edges, err := txn.NeighborEdges(model.EdgeQuery{
			SrcVertexIDs: cardIDs,
			Descriptor:   model.EdgeDescriptor{Type: rel.TypeID, Direction: rel.Direction},
		})
		if err != nil {
			return nil, err
		}
		all = append(all, edgesToLinks(edges)...)
	}

	e.log.Debug().Int("links", len(all)).Msg("link query completed")
	return all, nil
}

// FetchLinks resolves links by (source id, link type) keys.
func (e *Engine) FetchLinks(keys []LinkKey) ([]Link, error) {
	txn := e.db.Txn()
	defer txn.Abort()

	var all []Link
	for _, key := range keys {
		edges, err := txn.NeighborEdges(model.EdgeQuery{
			SrcVertexIDs: []model.VertexID{key.SrcID},
			Descriptor:   model.EdgeDescriptor{Type: key.TypeID, Direction: model.DirectionSrc},
		})
		if err != nil {
			return nil, err
		}
		all = append(all, edgesToLinks(edges)...)
	}
	return all, nil
}

func edgesToLinks(edges []model.Edge) []Link {
	links := make([]Link, 0, len(edges))
	for _, e := range edges {
		links = append(links, Link{
			ID:     e.SrcID,
			TypeID: e.Type,
			SrcID:  e.SrcID,
			DestID: e.DestID,
			Props:  e.Props,
		})
	}
	return links
}
