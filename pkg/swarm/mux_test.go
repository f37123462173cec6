package swarm

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamPair(t *testing.T) (client, server *Stream) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})

	clientKey, err := NewKeypair()
	require.NoError(t, err)
	serverKey, err := NewKeypair()
	require.NoError(t, err)

	done := make(chan struct{}, 2)
	go func() {
		var err error
		client, err = Dial(clientConn, clientKey)
		require.NoError(t, err)
		done <- struct{}{}
	}()
	go func() {
		var err error
		server, err = Accept(serverConn, serverKey)
		require.NoError(t, err)
		done <- struct{}{}
	}()
	<-done
	<-done
	return client, server
}

func TestMuxRoutesFramesToTheirChannel(t *testing.T) {
	client, server := newStreamPair(t)

	clientMux := NewMux(client)
	serverMux := NewMux(server)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go clientMux.Run(ctx)
	go serverMux.Run(ctx)

	view0 := clientMux.Channel(0)
	writer1 := clientMux.Channel(1)

	sView0 := serverMux.Channel(0)
	sWriter1 := serverMux.Channel(1)

	_, err := view0.Write([]byte("view payload"))
	require.NoError(t, err)
	_, err = writer1.Write([]byte("writer payload"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := sView0.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "view payload", string(buf[:n]))

	n, err = sWriter1.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "writer payload", string(buf[:n]))
}

func TestMuxDropsFramesForUnopenedChannels(t *testing.T) {
	client, server := newStreamPair(t)

	clientMux := NewMux(client)
	serverMux := NewMux(server)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go clientMux.Run(ctx)
	go serverMux.Run(ctx)

	// Server never opens channel 9; writing it from the client must not
	// block or panic, and channel 0 traffic afterwards must still arrive.
	unopened := clientMux.Channel(9)
	_, err := unopened.Write([]byte("nobody listening"))
	require.NoError(t, err)

	ch0 := clientMux.Channel(0)
	sCh0 := serverMux.Channel(0)
	_, err = ch0.Write([]byte("still works"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := sCh0.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "still works", string(buf[:n]))
}

func TestMuxRunReturnsOnContextCancellation(t *testing.T) {
	client, _ := newStreamPair(t)
	mux := NewMux(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := mux.Run(ctx)
	assert.Error(t, err)
}
