package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	id, err := s.Put(data)
	require.NoError(t, err)
	assert.Equal(t, Sum(data), id)

	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPutIsContentAddressedAndDeduplicates(t *testing.T) {
	s := newTestStore(t)
	id1, err := s.Put([]byte("hello"))
	require.NoError(t, err)
	id2, err := s.Put([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestGetRangeClampsToBounds(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Put([]byte("0123456789"))
	require.NoError(t, err)

	got, err := s.GetRange(id, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("234"), got)

	got, err = s.GetRange(id, 8, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("89"), got)
}

func TestExistsAndDelete(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Put([]byte("x"))
	require.NoError(t, err)

	ok, err := s.Exists(id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(id))

	ok, err = s.Exists(id)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(id)
	assert.Error(t, err)
}
