package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCardState(t *testing.T) {
	tests := []struct {
		in      string
		want    CardState
		wantErr bool
	}{
		{in: "active", want: StateActive},
		{in: "archived", want: StateArchived},
		{in: "discarded", want: StateDiscarded},
		{in: "done", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCardState(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParseDirection(t *testing.T) {
	src, err := ParseDirection("src")
	require.NoError(t, err)
	assert.Equal(t, DirectionSrc, src)
	assert.Equal(t, DirectionDest, src.Opposite())

	dest, err := ParseDirection("dest")
	require.NoError(t, err)
	assert.Equal(t, DirectionDest, dest)

	_, err = ParseDirection("sideways")
	require.Error(t, err)
}

func TestEdgeReversedDropsProps(t *testing.T) {
	blocks := MustIdentifier("blocks")
	weight := MustIdentifier("weight")
	e := NewEdge(1, blocks, 2, []EdgeProp{NumberProp(weight, 42)})

	r := e.Reversed()
	assert.Equal(t, VertexID(2), r.SrcID)
	assert.Equal(t, VertexID(1), r.DestID)
	assert.Equal(t, blocks, r.Type)
	assert.Nil(t, r.Props)
}

func TestTitleDisplay(t *testing.T) {
	tests := []struct {
		name  string
		title Title
		want  string
	}{
		{
			name:  "plain",
			title: PlainTitle("Fix login"),
			want:  "Fix login",
		},
		{
			name: "suffix joint",
			title: Title{
				Name: "Release",
				Joint: &JointTitle{
					Area: JointSuffix,
					Groups: []JointPartGroup{
						{Parts: []JointPart{{Name: "v1"}, {Name: "v2"}}},
						{Parts: []JointPart{{Name: "backend"}}},
					},
				},
			},
			want: "Release v2-backend",
		},
		{
			name: "prefix joint",
			title: Title{
				Name: "Release",
				Joint: &JointTitle{
					Area:   JointPrefix,
					Groups: []JointPartGroup{{Parts: []JointPart{{Name: "Q3"}}}},
				},
			},
			want: "Q3 Release",
		},
		{
			name: "empty parts fall back to name",
			title: Title{
				Name: "Release",
				Joint: &JointTitle{
					Area:   JointPrefix,
					Groups: []JointPartGroup{{Parts: []JointPart{{Name: ""}}}, {}},
				},
			},
			want: "Release",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.title.Display())
		})
	}
}
