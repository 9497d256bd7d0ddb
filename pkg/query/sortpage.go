package query

import (
	"sort"
	"strings"

	"github.com/penghs520/pgraph/pkg/model"
)

// SortKey selects the attribute ordering a result set.
type SortKey uint8

const (
	SortByCodeInOrg SortKey = iota
	SortByPosition
	SortByCreatedAt
	SortByUpdatedAt
	SortByTitle
	SortByField
)

// SortAndPage orders the filtered vertices and slices out one page.
// Limit <= 0 means no limit. The tie-breaker is always vertex id
// ascending, so identical inputs produce identical pages.
type SortAndPage struct {
	Key        SortKey
	FieldID    model.Identifier // consulted when Key is SortByField
	Descending bool
	Offset     int
	Limit      int
}

func sortAndPage(vertices []*model.Vertex, sp *SortAndPage) []*model.Vertex {
	if sp == nil {
		return vertices
	}

	sorted := make([]*model.Vertex, len(vertices))
	copy(sorted, vertices)
	sort.Slice(sorted, func(i, j int) bool {
		cmp := sp.compare(sorted[i], sorted[j])
		if sp.Descending {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp < 0
		}
		return sorted[i].CardID < sorted[j].CardID
	})

	offset := sp.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(sorted) {
		return nil
	}
	end := len(sorted)
	if sp.Limit > 0 && offset+sp.Limit < end {
		end = offset + sp.Limit
	}
	return sorted[offset:end]
}

func (sp *SortAndPage) compare(a, b *model.Vertex) int {
	switch sp.Key {
	case SortByCodeInOrg:
		return compareUint64(uint64(a.CodeInOrgInt), uint64(b.CodeInOrgInt))
	case SortByPosition:
		return compareUint64(a.Position, b.Position)
	case SortByCreatedAt:
		return compareUint64(a.CreatedAt, b.CreatedAt)
	case SortByUpdatedAt:
		return compareUint64(a.UpdatedAt, b.UpdatedAt)
	case SortByTitle:
		return compareTitle(a.Title.Display(), b.Title.Display())
	case SortByField:
		return compareField(a, b, sp.FieldID)
	default:
		return 0
	}
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareTitle folds case before comparing so titles collate naturally;
// byte order breaks the tie for case-only differences.
func compareTitle(a, b string) int {
	if cmp := strings.Compare(strings.ToLower(a), strings.ToLower(b)); cmp != 0 {
		return cmp
	}
	return strings.Compare(a, b)
}

// compareField orders by a typed field value. Vertices missing the
// field sort after those that have it; two values of different kinds
// are ordered by their kind tag.
func compareField(a, b *model.Vertex, fieldID model.Identifier) int {
	fa, okA := a.Field(fieldID)
	fb, okB := b.Field(fieldID)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	if fa.Kind != fb.Kind {
		return int(fa.Kind) - int(fb.Kind)
	}

	switch fa.Kind {
	case model.FieldNumber:
		return compareFloat64(fa.Number, fb.Number)
	case model.FieldDate:
		return compareUint64(fa.Date, fb.Date)
	case model.FieldText:
		return strings.Compare(fa.Text, fb.Text)
	case model.FieldWebLink:
		return strings.Compare(fa.Link.Name, fb.Link.Name)
	default:
		return 0
	}
}
