package swarm

import (
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/latticechat/roomengine/pkg/rerr"
	"github.com/latticechat/roomengine/pkg/rlog"
)

// ConnectionHandler is invoked once per mutually-authenticated stream,
// whether this node dialed out or accepted it (spec.md §4.6: "On
// connection(stream, info), the room multiplexes block-store
// replication... over the stream").
type ConnectionHandler func(stream *Stream, peerAddr net.Addr)

// Swarm owns one DHT node and announces membership on behalf of however
// many topics (rooms/drives) this process has joined.
type Swarm struct {
	mu        sync.Mutex
	discovery *Discovery
	identity  StaticKeypair
	onConn    ConnectionHandler
	logger    zerolog.Logger

	joins map[Topic]*joinState
}

type joinState struct {
	stop    chan struct{}
	flushed chan struct{}
}

// New starts a Swarm bootstrapped from addrs, using identity as the
// Noise static keypair for every connection this swarm makes or
// accepts.
func New(addrs []string, identity StaticKeypair, onConn ConnectionHandler) (*Swarm, error) {
	d, err := NewDiscovery(addrs)
	if err != nil {
		return nil, err
	}
	return &Swarm{
		discovery: d,
		identity:  identity,
		onConn:    onConn,
		logger:    rlog.WithComponent("swarm"),
		joins:     make(map[Topic]*joinState),
	}, nil
}

// Join announces membership on topic and begins dialing any peers the
// DHT resolves, handing each successfully-handshaked stream to onConn.
func (s *Swarm) Join(topic Topic) error {
	s.mu.Lock()
	if _, ok := s.joins[topic]; ok {
		s.mu.Unlock()
		return nil
	}
	js := &joinState{stop: make(chan struct{}), flushed: make(chan struct{})}
	s.joins[topic] = js
	s.mu.Unlock()

	peers, err := s.discovery.Announce(topic, 0, js.stop)
	if err != nil {
		return err
	}

	go func() {
		first := true
		for addr := range peers {
			if first {
				close(js.flushed)
				first = false
			}
			go s.dial(addr)
		}
		if first {
			close(js.flushed)
		}
	}()
	return nil
}

func (s *Swarm) dial(addr net.Addr) {
	conn, err := net.Dial(addr.Network(), addr.String())
	if err != nil {
		s.logger.Debug().Err(err).Str("peer", addr.String()).Msg("dial failed")
		return
	}
	stream, err := Dial(conn, s.identity)
	if err != nil {
		s.logger.Debug().Err(err).Str("peer", addr.String()).Msg("handshake failed")
		conn.Close()
		return
	}
	if s.onConn != nil {
		s.onConn(stream, addr)
	}
}

// Accept performs the responder side of a handshake on an already
// accepted net.Conn (e.g. from a local listener used in tests, or a
// NAT-traversal-assisted direct connection) and hands it to onConn.
func (s *Swarm) Accept(conn net.Conn) error {
	stream, err := Accept(conn, s.identity)
	if err != nil {
		return err
	}
	if s.onConn != nil {
		s.onConn(stream, conn.RemoteAddr())
	}
	return nil
}

// Flush resolves once topic has completed at least one discovery round
// (spec.md §6 suspension points: "swarm join/flush").
func (s *Swarm) Flush(topic Topic) error {
	s.mu.Lock()
	js, ok := s.joins[topic]
	s.mu.Unlock()
	if !ok {
		return rerr.Invalid("swarm.Flush", errNotJoined{topic})
	}
	<-js.flushed
	return nil
}

// Leave stops announcing topic.
func (s *Swarm) Leave(topic Topic) {
	s.mu.Lock()
	js, ok := s.joins[topic]
	if ok {
		delete(s.joins, topic)
	}
	s.mu.Unlock()
	if ok {
		close(js.stop)
	}
}

// Close leaves every topic and shuts down the DHT node.
func (s *Swarm) Close() error {
	s.mu.Lock()
	topics := make([]Topic, 0, len(s.joins))
	for t := range s.joins {
		topics = append(topics, t)
	}
	s.mu.Unlock()
	for _, t := range topics {
		s.Leave(t)
	}
	return s.discovery.Close()
}

type errNotJoined struct{ topic Topic }

func (e errNotJoined) Error() string { return "swarm: not joined to this topic" }
