package room

import (
	"context"
	"encoding/hex"
	"io"
	"net"
	"sync"

	"github.com/latticechat/roomengine/pkg/blockstore"
	"github.com/latticechat/roomengine/pkg/swarm"
)

// startNetworking opens the room-replication swarm, joins the room topic,
// and starts the pending-writer reconciliation loop.
func (r *Room) startNetworking() error {
	r.state.MarkConnecting()

	s, err := swarm.New(r.cfg.Bootstrap, r.noiseKey, r.onPeerConnection)
	if err != nil {
		return err
	}
	r.roomSwarm = s

	topic := swarm.RoomTopic(r.roomKey)
	if err := s.Join(topic); err != nil {
		return err
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), r.cfg.JoinTimeout)
	defer cancel()
	flushed := make(chan error, 1)
	go func() { flushed <- s.Flush(topic) }()
	select {
	case <-flushCtx.Done():
		r.logger.Debug().Msg("join flush timed out, continuing discovery in the background")
	case <-flushed:
	}

	ctx, cancel2 := context.WithCancel(context.Background())
	r.reconcileCancel = cancel2
	go r.reconcileLoop(ctx)

	return nil
}

// onPeerConnection is the room swarm's ConnectionHandler (spec.md §4.6:
// "On connection(stream, info), the room multiplexes block-store
// replication for its autobase writer-cores... over the stream"). It
// demuxes the stream into one channel per writer-core known at connect
// time, sorted-index order, and runs that core's replication duplex on
// each until the peer drops or the room closes.
//
// Writer-cores admitted after this connection opens are not added to its
// channel set; the pending-writer reconciliation loop picks up a newly
// admitted writer's blocks the next time this peer reconnects, since a
// reconnect recomputes the channel mapping from the then-current writer
// set.
func (r *Room) onPeerConnection(stream *swarm.Stream, peerAddr net.Addr) {
	peerKey := hex.EncodeToString(stream.PeerStatic)
	r.peers.connected(peerKey)
	r.state.MarkConnected()
	defer func() {
		stream.Close()
		r.peers.disconnected(peerKey)
		if r.peers.count() == 0 {
			r.state.MarkReconnecting()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := swarm.NewMux(stream)
	go func() {
		if err := mux.Run(ctx); err != nil {
			r.logger.Debug().Err(err).Str("peer", peerAddr.String()).Msg("mux closed")
		}
		cancel()
	}()

	writers := r.base.Writers()
	var wg sync.WaitGroup
	for i, hexKey := range writers {
		if i > 255 {
			r.logger.Warn().Msg("more writer-cores than mux channel ids, dropping the rest for this peer")
			break
		}
		store, ok := r.base.Store(hexKey)
		if !ok {
			continue
		}
		channel := mux.Channel(byte(i))
		wg.Add(1)
		go func(store *blockstore.Store, ch io.ReadWriteCloser) {
			defer wg.Done()
			if err := store.Replicate(ctx, ch); err != nil {
				r.peers.markResult(peerKey, false)
				return
			}
			r.peers.markResult(peerKey, true)
		}(store, channel)
	}
	wg.Wait()
}
