package kvstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), Options{NoSync: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBatchWriteAndGet(t *testing.T) {
	s := openTestStore(t)

	b := NewBatch()
	b.Put(CFVertex, []byte("k1"), []byte("v1"))
	b.Put(CFEdge, []byte("k1"), []byte("e1"))
	b.Delete(CFVertex, []byte("absent"))
	require.NoError(t, s.Write(b))

	v, err := s.Get(CFVertex, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	// Column families are separate keyspaces.
	e, err := s.Get(CFEdge, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("e1"), e)

	missing, err := s.Get(CFVertexDesc, []byte("k1"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWriteEmptyBatch(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Write(nil))
	require.NoError(t, s.Write(NewBatch()))
}

func TestMultiGetPreservesOrder(t *testing.T) {
	s := openTestStore(t)

	b := NewBatch()
	b.Put(CFVertex, []byte("a"), []byte("1"))
	b.Put(CFVertex, []byte("c"), []byte("3"))
	require.NoError(t, s.Write(b))

	got, err := s.MultiGet(CFVertex, [][]byte{[]byte("c"), []byte("b"), []byte("a")})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []byte("3"), got[0])
	assert.Nil(t, got[1])
	assert.Equal(t, []byte("1"), got[2])
}

func TestScanPrefixTerminates(t *testing.T) {
	s := openTestStore(t)

	b := NewBatch()
	for _, k := range []string{"aa1", "aa2", "ab1", "b"} {
		b.Put(CFEdge, []byte(k), []byte("x"))
	}
	require.NoError(t, s.Write(b))

	var keys []string
	err := s.ScanPrefix(CFEdge, []byte("aa"), func(k, v []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"aa1", "aa2"}, keys)
}

func TestScanAllOrdered(t *testing.T) {
	s := openTestStore(t)

	b := NewBatch()
	b.Put(CFVertex, []byte{0x02}, []byte("b"))
	b.Put(CFVertex, []byte{0x01}, []byte("a"))
	b.Put(CFVertex, []byte{0x03}, []byte("c"))
	require.NoError(t, s.Write(b))

	var order []byte
	err := s.ScanAll(CFVertex, func(k, v []byte) error {
		order = append(order, k[0])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, order)
}

func TestCheckpointProducesWorkingCopy(t *testing.T) {
	s := openTestStore(t)

	b := NewBatch()
	b.Put(CFVertex, []byte("k"), []byte("v"))
	require.NoError(t, s.Write(b))

	dir := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, s.Checkpoint(dir))

	_, err := os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)

	clone, err := Open(dir, Options{})
	require.NoError(t, err)
	defer clone.Close()

	v, err := clone.Get(CFVertex, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
