package room

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"time"

	"github.com/latticechat/roomengine/pkg/blockstore"
)

// reconcileInterval mirrors the teacher's reconciler tick: frequent
// enough that a newly admitted writer's core is being fetched within
// seconds of the add-writer record linearising, cheap enough to run
// forever in the background.
const reconcileInterval = 10 * time.Second

// reconcileLoop periodically diffs the view's writer collection against
// autobase's known cores, grounded on the teacher's reconciler.go
// (Start/run/reconcile loop): linearisation can admit a writer key this
// process has never seen a block from, and the only way to start
// fetching its records is to open a local read-only block store for it
// and register it with Base so replication and linearisation both pick
// it up.
func (r *Room) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	r.reconcile()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile()
		}
	}
}

func (r *Room) reconcile() {
	writers, err := r.v.GetWriters()
	if err != nil {
		r.logger.Warn().Err(err).Msg("reconcile: failed to list writers")
		return
	}

	known := r.base.Writers()
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}

	for _, w := range writers {
		key := hex.EncodeToString(w.Key)
		if knownSet[key] {
			continue
		}
		if err := r.adoptPendingWriter(w.Key); err != nil {
			r.logger.Warn().Err(err).Str("writer", key).Msg("reconcile: failed to open pending writer-core")
		}
	}
}

// adoptPendingWriter opens a read-only replica for a writer key
// discovered through linearisation but not yet locally known, and
// registers it with autobase so both replication and future
// linearisation passes include it.
func (r *Room) adoptPendingWriter(key ed25519.PublicKey) error {
	store, err := blockstore.Open(writerDir(r.cfg, hex.EncodeToString(key)), key, nil)
	if err != nil {
		return err
	}
	r.base.AddCore(store, false)
	return nil
}
