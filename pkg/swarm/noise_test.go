package swarm

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeProducesAuthenticatedEncryptedStream(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientKey, err := NewKeypair()
	require.NoError(t, err)
	serverKey, err := NewKeypair()
	require.NoError(t, err)

	var client, server *Stream
	var clientErr, serverErr error
	done := make(chan struct{})

	go func() {
		client, clientErr = Dial(clientConn, clientKey)
		done <- struct{}{}
	}()
	go func() {
		server, serverErr = Accept(serverConn, serverKey)
		done <- struct{}{}
	}()
	<-done
	<-done

	require.NoError(t, clientErr)
	require.NoError(t, serverErr)
	assert.Equal(t, serverKey.Public, client.PeerStatic)
	assert.Equal(t, clientKey.Public, server.PeerStatic)

	go func() { _ = client.Send([]byte("hello from client")) }()
	msg, err := server.Recv()
	require.NoError(t, err)
	assert.Equal(t, "hello from client", string(msg))

	go func() { _ = server.Send([]byte("hello from server")) }()
	msg, err = client.Recv()
	require.NoError(t, err)
	assert.Equal(t, "hello from server", string(msg))
}

func TestHandshakeTimesOutWithoutPeer(t *testing.T) {
	clientConn, _ := net.Pipe()
	defer clientConn.Close()
	clientKey, err := NewKeypair()
	require.NoError(t, err)

	_ = clientConn.SetDeadline(time.Now().Add(50 * time.Millisecond))
	_, err = Dial(clientConn, clientKey)
	assert.Error(t, err)
}
