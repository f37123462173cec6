package autobase

import (
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/latticechat/roomengine/pkg/blockstore"
	"github.com/latticechat/roomengine/pkg/dispatch"
	"github.com/latticechat/roomengine/pkg/metrics"
	"github.com/latticechat/roomengine/pkg/rerr"
	"github.com/latticechat/roomengine/pkg/rlog"
	"github.com/latticechat/roomengine/pkg/view"
)

// UpdateFunc is invoked after a batch of newly-linearised records has
// been committed to the view (spec.md §5: "update events fire after the
// corresponding batch commits"). processed is the count of records
// linearised in this batch (including unauthorised/invalid ones that
// left no effect).
type UpdateFunc func(processed int)

// Base discovers authorised writer-cores, linearises their records into
// one deterministic total order, and applies each newly-ready batch to
// the view (spec.md §4.2).
type Base struct {
	mu sync.Mutex

	cores  map[string]*blockstore.Store // writer hex key -> its block store
	local  string                       // hex key of the local writable core, "" if none yet
	root   string                       // hex key of the room's bootstrap writer, implicitly authorised
	cursor map[string]uint64            // writer hex key -> count of records already linearised

	router   *dispatch.Router
	v        *view.View
	onUpdate UpdateFunc

	logger zerolog.Logger
}

// New returns an empty Base over v, dispatching linearised records
// through router.
func New(v *view.View, router *dispatch.Router, onUpdate UpdateFunc) *Base {
	return &Base{
		cores:    make(map[string]*blockstore.Store),
		cursor:   make(map[string]uint64),
		router:   router,
		v:        v,
		onUpdate: onUpdate,
		logger:   rlog.WithComponent("autobase"),
	}
}

// AddCore registers a writer-core (spec.md: "autobase holds weak
// references into every known writer-core"). local marks the one
// writer-core this process itself may append to. AddCore also
// subscribes to the store's OnBlock notifications so new arrivals — from
// a local Append or from replication — automatically re-run
// linearisation (the "pending writer" reconciliation described in
// doc.go).
func (b *Base) AddCore(store *blockstore.Store, local bool) {
	key := writerKeyHex(store.PublicKey())

	b.mu.Lock()
	b.cores[key] = store
	if _, ok := b.cursor[key]; !ok {
		b.cursor[key] = 0
	}
	if local {
		b.local = key
	}
	b.mu.Unlock()

	store.OnBlock(func(uint64) {
		if err := b.Linearise(); err != nil {
			b.logger.Warn().Err(err).Msg("linearisation pass failed")
		}
	})
}

// SetRoot designates key as the room's bootstrap writer (spec.md §4.2:
// "the bootstrap writer is implicit"). Its records are authorised even
// before an add-writer record admits it, which is what breaks the
// chicken-and-egg a freshly created room would otherwise hit: the
// bootstrap writer's own add-writer(self) record is itself unauthorised
// until processed. Must be called before the first Append/Linearise.
func (b *Base) SetRoot(key []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.root = writerKeyHex(key)
}

// Append encodes payload with dispatch.Encode and appends it to the
// local writer-core, stamped with a clock snapshot of everything this
// node has linearised so far. It then immediately triggers a
// linearisation pass so a single-node room observes its own writes
// without waiting on a remote block-store notification.
func (b *Base) Append(name dispatch.Name, payload interface{}) (uint64, error) {
	record, err := dispatch.Encode(name, payload)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	if b.local == "" {
		b.mu.Unlock()
		return 0, rerr.Invalid("autobase.Append", errNoLocalCore{})
	}
	store := b.cores[b.local]
	clock := make(map[string]uint64, len(b.cursor))
	for writer, n := range b.cursor {
		if writer == b.local {
			continue
		}
		clock[writer] = n
	}
	b.mu.Unlock()

	raw, err := encodeEnvelope(envelope{Clock: clock, Record: record, AppendedAt: time.Now().UnixNano()})
	if err != nil {
		return 0, err
	}

	index, err := store.Append(raw)
	if err != nil {
		metrics.AppendsTotal.WithLabelValues("rejected").Inc()
		return 0, err
	}
	metrics.AppendsTotal.WithLabelValues("accepted").Inc()

	if err := b.Linearise(); err != nil {
		return index, err
	}
	return index, nil
}

// Linearise runs the linearisation loop until no further record is
// causally ready, committing each contiguous run of ready records as one
// view batch (spec.md §4.2: "invokes apply(batch, view, base) for each
// newly linearised batch").
func (b *Base) Linearise() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linearizeLocked()
}

func (b *Base) linearizeLocked() error {
	batch, err := b.v.BeginBatch()
	if err != nil {
		return err
	}

	processed := 0
	for {
		key, env, index, found := b.nextReadyLocked()
		if !found {
			break
		}

		writerKey, decodeErr := hex.DecodeString(key)
		if decodeErr != nil {
			b.logger.Warn().Str("writer", key).Msg("unparseable writer key, skipping record")
			b.cursor[key] = index + 1
			continue
		}

		authorised, err := batch.IsWriter(writerKey)
		if err != nil {
			_ = batch.Rollback()
			return err
		}
		if key == b.root {
			authorised = true
		}
		if authorised {
			ctx := dispatch.Context{WriterKey: writerKey, Batch: batch}
			if err := b.router.Dispatch(ctx, env.Record); err != nil {
				b.logger.Warn().Err(err).Str("writer", key).Msg("dispatch failed for linearised record")
			}
		} else {
			b.logger.Debug().Str("writer", key).Msg("ignoring record from non-writer key")
		}

		if env.AppendedAt > 0 {
			metrics.LineariseLagSeconds.Observe(time.Since(time.Unix(0, env.AppendedAt)).Seconds())
		}

		b.cursor[key] = index + 1
		processed++
	}

	if processed == 0 {
		return batch.Rollback()
	}
	if err := batch.Commit(); err != nil {
		return err
	}
	if b.onUpdate != nil {
		b.onUpdate(processed)
	}
	return nil
}

// nextReadyLocked scans every known writer-core for the lowest-index
// unlinearised record that is causally ready, and among ties picks the
// lexicographically smallest writer key (spec.md §4.2's deterministic
// tiebreak). Must be called with b.mu held.
func (b *Base) nextReadyLocked() (key string, env envelope, index uint64, found bool) {
	keys := make([]string, 0, len(b.cores))
	for k := range b.cores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		store := b.cores[k]
		idx := b.cursor[k]
		if idx >= store.Length() {
			continue
		}
		raw, err := store.Get(idx)
		if err != nil {
			continue // not yet locally replicated; will retry on the next OnBlock
		}
		e, err := decodeEnvelope(raw)
		if err != nil {
			b.logger.Warn().Err(err).Str("writer", k).Msg("dropping malformed envelope")
			return k, envelope{}, idx, true
		}
		if e.ready(b.cursor) {
			return k, e, idx, true
		}
	}
	return "", envelope{}, 0, false
}

// Writers returns the hex-encoded public keys of every known writer-core.
func (b *Base) Writers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.cores))
	for k := range b.cores {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Store returns the registered block store for a writer-core's hex key,
// if known, so a caller such as the room façade can hand it to a
// replication stream without reaching into Base's internals.
func (b *Base) Store(hexKey string) (*blockstore.Store, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.cores[hexKey]
	return s, ok
}

// Backlog reports, for each known writer-core, how many of its stored
// records have not yet been linearised into the view. This is autobase's
// own apply backlog rather than a peer's network replication gap (which
// this process has no direct visibility into once a core is fully
// fetched), but it is the metric pkg/room's metrics.Source
// implementation actually has grounds to report.
func (b *Base) Backlog() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.cores))
	for k, store := range b.cores {
		out[k] = int(store.Length() - b.cursor[k])
	}
	return out
}

type errNoLocalCore struct{}

func (errNoLocalCore) Error() string { return "autobase: no local writer-core registered" }
