package blockstore

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/latticechat/roomengine/pkg/rerr"
)

// maxWantBatch bounds how many indices one WANT round asks for, so a large
// replication gap doesn't monopolise the stream (spec.md §5 backpressure).
const maxWantBatch = 64

// haveAnnounceInterval controls how often we re-broadcast our bitfield so a
// peer that falls behind (e.g. missed an earlier HAVE while still joining)
// eventually catches up without a fresh connection.
const haveAnnounceInterval = 5 * time.Second

// safeWriter serialises Write calls from multiple goroutines onto one
// underlying stream so that whole frames, not just individual writes,
// never interleave.
type safeWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *safeWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Replicate runs the block-pull replication duplex over stream until ctx is
// cancelled or the stream errs out (spec.md §4.1). It is safe to call
// concurrently for the same Store against different peer streams; each
// call advances the local `have` bitfield independently as blocks arrive.
func (s *Store) Replicate(ctx context.Context, stream io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		stream.Close()
	}()

	sw := &safeWriter{w: stream}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		errCh <- s.announceLoop(ctx, sw)
	}()
	go func() {
		defer wg.Done()
		errCh <- s.replicateRecv(ctx, stream, sw)
	}()

	go func() {
		wg.Wait()
		close(errCh)
	}()

	var first error
	for err := range errCh {
		if err != nil && first == nil {
			first = err
		}
	}
	if ctx.Err() != nil && first == nil {
		return rerr.UserAbort("blockstore.Replicate", ctx.Err())
	}
	return first
}

// announceLoop periodically (re)broadcasts our local bitfield.
func (s *Store) announceLoop(ctx context.Context, w io.Writer) error {
	ticker := time.NewTicker(haveAnnounceInterval)
	defer ticker.Stop()

	announce := func() error {
		s.mu.RLock()
		have := haveMsg{Start: 0, Bitfield: append([]byte(nil), s.have.Bytes()...)}
		s.mu.RUnlock()
		if err := writeFrame(w, tagHave, encodeHave(have)); err != nil {
			return rerr.Transient("blockstore.announceLoop", err)
		}
		return nil
	}

	if err := announce(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := announce(); err != nil {
				return err
			}
		}
	}
}

func (s *Store) replicateRecv(ctx context.Context, r io.Reader, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tag, payload, err := readFrame(r)
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return rerr.Transient("blockstore.replicateRecv", err)
		}

		switch tag {
		case tagHave:
			if err := s.handleHave(w, payload); err != nil {
				return err
			}
		case tagWant:
			if err := s.handleWant(w, payload); err != nil {
				return err
			}
		case tagData:
			if err := s.handleData(payload); err != nil {
				return err
			}
		default:
			// Unknown frame tag: ignore for forward compatibility, same
			// policy as unknown dispatch command tags (spec.md §4.4).
		}
	}
}

func (s *Store) handleHave(w io.Writer, payload []byte) error {
	remote, err := decodeHave(payload)
	if err != nil {
		return rerr.Invalid("blockstore.handleHave", err)
	}
	remoteHave := BitfieldFromBytes(remote.Bitfield)

	upper := uint64(len(remoteHave.Bytes())) * 8

	var requested int
	for i := uint64(0); i < upper && requested < maxWantBatch; i++ {
		if !remoteHave.Has(i) {
			continue
		}
		if s.Have(i) {
			continue
		}
		if err := writeFrame(w, tagWant, encodeWant(wantMsg{Index: i, Length: 1})); err != nil {
			return rerr.Transient("blockstore.handleHave", err)
		}
		requested++
	}
	return nil
}

func (s *Store) handleWant(w io.Writer, payload []byte) error {
	want, err := decodeWant(payload)
	if err != nil {
		return rerr.Invalid("blockstore.handleWant", err)
	}
	for i := want.Index; i < want.Index+want.Length; i++ {
		if !s.Have(i) {
			continue
		}
		raw, gerr := s.rawBlock(i)
		if gerr != nil {
			continue
		}
		blk, derr := decodeStoredBlock(raw)
		if derr != nil {
			continue
		}
		if werr := writeFrame(w, tagData, encodeData(dataMsg{
			Index: i, Block: blk.Data, Root: blk.Root, Sig: blk.Sig,
		})); werr != nil {
			return rerr.Transient("blockstore.handleWant", werr)
		}
	}
	return nil
}

func (s *Store) handleData(payload []byte) error {
	d, err := decodeData(payload)
	if err != nil {
		return rerr.Invalid("blockstore.handleData", err)
	}
	if s.Have(d.Index) {
		return nil // already have it, DATA arrived from more than one peer
	}
	return s.acceptRemote(d.Index, d.Block, d.Root, d.Sig)
}
