package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penghs520/pgraph/pkg/model"
)

func sampleVertex() *model.Vertex {
	custom := "X-42"
	archived := uint64(1700000000000)
	reason := "stale"
	weight := model.MustIdentifier("weight")
	due := model.MustIdentifier("due")
	tags := model.MustIdentifier("tags")

	return &model.Vertex{
		CardID:      42,
		OrgID:       model.MustIdentifier("org-1"),
		CardTypeID:  model.MustIdentifier("task"),
		ContainerID: model.MustIdentifier("board-9"),
		StreamInfo: model.StreamInfo{
			StreamID: model.MustIdentifier("stream-a"),
			StatusID: model.MustIdentifier("doing"),
		},
		State: model.StateArchived,
		Title: model.Title{
			Name: "Release",
			Joint: &model.JointTitle{
				Area:   model.JointSuffix,
				Groups: []model.JointPartGroup{{Parts: []model.JointPart{{Name: "v2"}}}},
			},
		},
		CodeInOrg:     "TASK-42",
		CodeInOrgInt:  42,
		CustomCode:    &custom,
		Position:      1 << 40,
		CreatedAt:     1690000000000,
		UpdatedAt:     1690000001000,
		ArchivedAt:    &archived,
		DiscardReason: &reason,
		FieldValues: map[model.Identifier]model.FieldValue{
			weight: model.NumberField(0.1 + 0.2),
			due:    model.DateField(1699999999999),
			tags:   model.EnumField(model.MustIdentifier("red"), model.MustIdentifier("urgent")),
		},
	}
}

func TestVertexRoundTrip(t *testing.T) {
	v := sampleVertex()

	data, err := EncodeVertex(v)
	require.NoError(t, err)

	decoded, err := DecodeVertex(data)
	require.NoError(t, err)
	assert.Equal(t, v, decoded)
}

func TestVertexEncodingDeterministic(t *testing.T) {
	v := sampleVertex()

	first, err := EncodeVertex(v)
	require.NoError(t, err)
	second, err := EncodeVertex(v)
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical vertices must produce identical bytes")
}

func TestVertexFloatsBitExact(t *testing.T) {
	f := model.MustIdentifier("f")
	for _, n := range []float64{0, -0.0, 1.5, math.MaxFloat64, math.SmallestNonzeroFloat64, 0.1 + 0.2} {
		v := &model.Vertex{
			CardID:      1,
			CardTypeID:  model.MustIdentifier("task"),
			Title:       model.PlainTitle("t"),
			FieldValues: map[model.Identifier]model.FieldValue{f: model.NumberField(n)},
		}
		data, err := EncodeVertex(v)
		require.NoError(t, err)
		decoded, err := DecodeVertex(data)
		require.NoError(t, err)
		got := decoded.FieldValues[f].Number
		assert.Equal(t, math.Float64bits(n), math.Float64bits(got))
	}
}

func TestVertexBoundaryIDs(t *testing.T) {
	for _, id := range []model.VertexID{0, math.MaxUint64} {
		v := &model.Vertex{CardID: id, CardTypeID: model.MustIdentifier("task"), Title: model.PlainTitle("t")}
		data, err := EncodeVertex(v)
		require.NoError(t, err)
		decoded, err := DecodeVertex(data)
		require.NoError(t, err)
		assert.Equal(t, id, decoded.CardID)
	}
}

func TestVertexDescriptionExcluded(t *testing.T) {
	content := "long body"
	v := sampleVertex()
	v.Desc = model.Description{Content: &content, Changed: true}

	data, err := EncodeVertex(v)
	require.NoError(t, err)
	decoded, err := DecodeVertex(data)
	require.NoError(t, err)
	assert.Equal(t, model.Description{}, decoded.Desc)
}

func TestEdgePropsRoundTrip(t *testing.T) {
	weight := model.MustIdentifier("weight")
	due := model.MustIdentifier("due")
	kind := model.MustIdentifier("kind")

	props := []model.EdgeProp{
		model.NumberProp(weight, 42.0),
		model.DateProp(due, 1699999999999),
		model.EnumProp(kind, model.MustIdentifier("hard"), model.MustIdentifier("soft")),
	}

	data, err := EncodeEdgeProps(props)
	require.NoError(t, err)
	decoded, err := DecodeEdgeProps(data)
	require.NoError(t, err)
	assert.Equal(t, props, decoded)
}

func TestEmptyEdgePropsRoundTrip(t *testing.T) {
	data, err := EncodeEdgeProps(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, data, "even empty prop lists carry the version tag")

	decoded, err := DecodeEdgeProps(data)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDescriptionRoundTrip(t *testing.T) {
	data, err := EncodeDescription("需求描述 with mixed text")
	require.NoError(t, err)
	decoded, err := DecodeDescription(data)
	require.NoError(t, err)
	assert.Equal(t, "需求描述 with mixed text", decoded)
}

func TestUnknownVersionTagRejected(t *testing.T) {
	data, err := EncodeDescription("x")
	require.NoError(t, err)
	data[0] = 9

	_, err = DecodeDescription(data)
	require.Error(t, err)

	_, err = DecodeVertex(nil)
	require.Error(t, err)
}
