package codec

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penghs520/pgraph/pkg/model"
)

func TestVertexKeyTotalAndOrdered(t *testing.T) {
	ids := []model.VertexID{0, 1, 255, 256, 1 << 32, math.MaxUint64}
	var prev []byte
	for _, id := range ids {
		k := VertexKey(id)
		require.Len(t, k, 8)

		decoded, err := ParseVertexKey(k)
		require.NoError(t, err)
		assert.Equal(t, id, decoded)

		if prev != nil {
			assert.Equal(t, -1, bytes.Compare(prev, k), "keys must sort in id order")
		}
		prev = k
	}
}

func TestParseVertexKeyRejectsWrongLength(t *testing.T) {
	_, err := ParseVertexKey([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestEdgeKeyRoundTrip(t *testing.T) {
	blocks := model.MustIdentifier("blocks")

	for _, dir := range []model.Direction{model.DirectionSrc, model.DirectionDest} {
		k, err := EdgeKey(blocks, dir, 7, 9)
		require.NoError(t, err)

		parts, err := ParseEdgeKey(k)
		require.NoError(t, err)
		assert.Equal(t, blocks, parts.Type)
		assert.Equal(t, dir, parts.Direction)
		assert.Equal(t, model.VertexID(7), parts.AnchorID)
		assert.Equal(t, model.VertexID(9), parts.OtherID)
	}
}

func TestEdgeKeyEndpointOrientation(t *testing.T) {
	blocks := model.MustIdentifier("blocks")

	fwd, err := EdgeKey(blocks, model.DirectionSrc, 1, 2)
	require.NoError(t, err)
	parts, err := ParseEdgeKey(fwd)
	require.NoError(t, err)
	assert.Equal(t, model.VertexID(1), parts.SrcID())
	assert.Equal(t, model.VertexID(2), parts.DestID())

	rev, err := EdgeKey(blocks, model.DirectionDest, 2, 1)
	require.NoError(t, err)
	parts, err = ParseEdgeKey(rev)
	require.NoError(t, err)
	assert.Equal(t, model.VertexID(1), parts.SrcID())
	assert.Equal(t, model.VertexID(2), parts.DestID())
}

func TestEdgeScanPrefixCoversExactlyAnchor(t *testing.T) {
	blocks := model.MustIdentifier("blocks")

	prefix, err := EdgeScanPrefix(blocks, model.DirectionSrc, 1)
	require.NoError(t, err)

	matching, err := EdgeKey(blocks, model.DirectionSrc, 1, 2)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(matching, prefix))

	otherAnchor, err := EdgeKey(blocks, model.DirectionSrc, 2, 1)
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(otherAnchor, prefix))

	otherDir, err := EdgeKey(blocks, model.DirectionDest, 1, 2)
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(otherDir, prefix))

	otherType, err := EdgeKey(model.MustIdentifier("blocked"), model.DirectionSrc, 1, 2)
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(otherType, prefix))
}

func TestDescriptorPrefixSpansAnchors(t *testing.T) {
	blocks := model.MustIdentifier("blocks")

	prefix, err := DescriptorPrefix(blocks, model.DirectionDest)
	require.NoError(t, err)

	for _, anchor := range []model.VertexID{0, 5, math.MaxUint64} {
		k, err := EdgeKey(blocks, model.DirectionDest, anchor, 1)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(k, prefix))
	}
}

func TestParseEdgeKeyTruncated(t *testing.T) {
	blocks := model.MustIdentifier("blocks")
	k, err := EdgeKey(blocks, model.DirectionSrc, 1, 2)
	require.NoError(t, err)

	_, err = ParseEdgeKey(k[:len(k)-4])
	require.Error(t, err)

	_, err = ParseEdgeKey(nil)
	require.Error(t, err)
}
