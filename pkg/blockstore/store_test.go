package blockstore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticechat/roomengine/pkg/rerr"
)

func newTestStore(t *testing.T, dir string) (*Store, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	s, err := Open(dir, pub, priv)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, pub, priv
}

func TestAppendGetRoundTrip(t *testing.T) {
	s, _, _ := newTestStore(t, t.TempDir())

	idx0, err := s.Append([]byte("hello"))
	require.NoError(t, err)
	require.EqualValues(t, 0, idx0)

	idx1, err := s.Append([]byte("world"))
	require.NoError(t, err)
	require.EqualValues(t, 1, idx1)

	require.EqualValues(t, 2, s.Length())

	got0, err := s.Get(0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got0))

	got1, err := s.Get(1)
	require.NoError(t, err)
	require.Equal(t, "world", string(got1))
}

func TestGetMissingIsTransient(t *testing.T) {
	s, _, _ := newTestStore(t, t.TempDir())
	_, err := s.Get(0)
	require.Error(t, err)
	require.True(t, rerr.IsKind(err, rerr.KindTransient))
}

func TestAppendOnReplicaIsUnauthorised(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	replica, err := Open(t.TempDir(), pub, nil)
	require.NoError(t, err)
	defer replica.Close()

	_, err = replica.Append([]byte("nope"))
	require.Error(t, err)
	require.True(t, rerr.IsKind(err, rerr.KindUnauthorised))
	require.False(t, replica.Writable())
}

func TestReplicateConverges(t *testing.T) {
	owner, pub, priv := newTestStore(t, t.TempDir())
	for _, msg := range []string{"a", "b", "c"} {
		_, err := owner.Append([]byte(msg))
		require.NoError(t, err)
	}

	replica, err := Open(t.TempDir(), pub, nil)
	require.NoError(t, err)
	defer replica.Close()
	_ = priv

	connA, connB := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go owner.Replicate(ctx, connA)
	go replica.Replicate(ctx, connB)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if replica.Length() == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.EqualValues(t, 3, replica.Length())

	for i, want := range []string{"a", "b", "c"} {
		got, err := replica.Get(uint64(i))
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
}
