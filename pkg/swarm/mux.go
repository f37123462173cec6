package swarm

import (
	"context"
	"io"
	"sync"

	"github.com/latticechat/roomengine/pkg/rerr"
)

// Mux splits one Stream into several independently-replicatable channels,
// each identified by a one-byte id prefixed to every frame (spec.md §4.6:
// "the room multiplexes block-store replication for its autobase
// writer-cores... over the stream"). Room assigns channel ids to
// writer-cores in the sorted order autobase.Base.Writers() returns them,
// which both peers compute identically at connect time without an extra
// negotiation round; blob content is not multiplexed over this stream at
// all (see the pkg/room simplifications list in DESIGN.md).
type Mux struct {
	s *Stream

	mu       sync.Mutex
	channels map[byte]*muxChannel
}

// NewMux wraps s. Run must be started before any Channel's Replicate call
// can make progress, since Channel only registers a destination for
// incoming frames; it does not read from s itself.
func NewMux(s *Stream) *Mux {
	return &Mux{s: s, channels: make(map[byte]*muxChannel)}
}

// Channel returns the io.ReadWriteCloser for logical channel id, creating
// it on first use. Writes on the returned value are sent as whole frames
// on the underlying stream; reads are served from frames Run demultiplexes
// to this id.
func (m *Mux) Channel(id byte) io.ReadWriteCloser {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[id]; ok {
		return ch
	}
	r, w := io.Pipe()
	ch := &muxChannel{id: id, mux: m, r: r, w: w}
	m.channels[id] = ch
	return ch
}

// Run demultiplexes frames off the underlying stream until it errors or
// ctx is cancelled, delivering each to the channel its leading byte
// names. A frame for a channel nobody has opened locally is dropped; that
// is expected for e.g. a writer-core the local side hasn't learned about
// yet.
func (m *Mux) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return rerr.UserAbort("swarm.Mux.Run", ctx.Err())
		}
		frame, err := m.s.Recv()
		if err != nil {
			m.closeAll(err)
			return err
		}
		if len(frame) == 0 {
			continue
		}
		id, payload := frame[0], frame[1:]

		m.mu.Lock()
		ch, ok := m.channels[id]
		m.mu.Unlock()
		if !ok {
			continue
		}
		if _, err := ch.w.Write(payload); err != nil {
			return err
		}
	}
}

func (m *Mux) closeAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.channels {
		ch.w.CloseWithError(err)
	}
}

type muxChannel struct {
	id  byte
	mux *Mux
	r   *io.PipeReader
	w   *io.PipeWriter
}

func (ch *muxChannel) Read(p []byte) (int, error) { return ch.r.Read(p) }

func (ch *muxChannel) Write(p []byte) (int, error) {
	frame := make([]byte, 1+len(p))
	frame[0] = ch.id
	copy(frame[1:], p)
	if err := ch.mux.s.Send(frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (ch *muxChannel) Close() error {
	return ch.r.Close()
}
