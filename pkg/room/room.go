package room

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/latticechat/roomengine/pkg/autobase"
	"github.com/latticechat/roomengine/pkg/blob"
	"github.com/latticechat/roomengine/pkg/blockstore"
	"github.com/latticechat/roomengine/pkg/config"
	"github.com/latticechat/roomengine/pkg/dispatch"
	"github.com/latticechat/roomengine/pkg/events"
	"github.com/latticechat/roomengine/pkg/identity"
	"github.com/latticechat/roomengine/pkg/pairing"
	"github.com/latticechat/roomengine/pkg/rerr"
	"github.com/latticechat/roomengine/pkg/rlog"
	"github.com/latticechat/roomengine/pkg/swarm"
	"github.com/latticechat/roomengine/pkg/view"
)

// Room owns one room's whole replicated stack and is the only surface a
// UI drives (spec.md §6): the view, autobase, the local writer-core, the
// drive, the swarm, and the pairing member that issues or redeems
// invites. One identity is one writer-core: the local block store is
// always opened with the process's own identity key pair, so there is no
// separate writer key to generate, persist or hand out.
type Room struct {
	mu     sync.Mutex
	closed bool

	cfg      config.Config
	identity *identity.Identity
	noiseKey swarm.StaticKeypair

	v     *view.View
	base  *autobase.Base
	drive *blob.Drive

	driveStore  *blob.Store
	localWriter *blockstore.Store
	roomKey     []byte // discovery key: the bootstrap writer-core's public key
	encKey      []byte

	broker *events.Broker
	state  *stateMachine
	peers  *peerTable

	roomSwarm *swarm.Swarm
	pairer    *pairing.Pairing

	pairingMu    sync.Mutex
	pairingSwarm *swarm.Swarm

	reconcileCancel context.CancelFunc

	logger zerolog.Logger
}

func writerDir(cfg config.Config, pubHex string) string {
	return filepath.Join(cfg.CorestoreDir, "writers", pubHex)
}

func viewDir(cfg config.Config) string {
	return filepath.Join(cfg.CorestoreDir, "view")
}

func driveDir(cfg config.Config) string {
	return filepath.Join(cfg.CorestoreDir, "drive")
}

// newBareRoom assembles the view, autobase, local writer-core and drive
// for cfg, without touching the network. roomID seeds the drive's event
// payloads and the state machine; it may be "" if the descriptor has not
// linearised yet (Open discovers it lazily from the view instead).
func newBareRoom(cfg config.Config, id *identity.Identity, roomKey, encKey []byte, roomID string, broker *events.Broker) (*Room, error) {
	cfg = cfg.WithDefaults()

	v, err := view.Open(viewDir(cfg))
	if err != nil {
		return nil, err
	}

	router := dispatch.NewRouter()
	autobase.RegisterHandlers(router)

	noiseKey, err := swarm.NewKeypair()
	if err != nil {
		v.Close()
		return nil, rerr.Fatal("room.newBareRoom", err)
	}

	r := &Room{
		cfg:      cfg,
		identity: id,
		noiseKey: noiseKey,
		v:        v,
		roomKey:  roomKey,
		encKey:   encKey,
		broker:   broker,
		peers:    newPeerTable(),
		logger:   rlog.WithComponent("room"),
	}

	base := autobase.New(v, router, r.onUpdate)
	base.SetRoot(roomKey)
	r.base = base

	pub := id.PublicKey()
	localStore, err := blockstore.Open(writerDir(cfg, hex.EncodeToString(pub)), pub, id.PrivateKey())
	if err != nil {
		v.Close()
		return nil, err
	}
	r.localWriter = localStore
	base.AddCore(localStore, true)

	driveStore, err := blob.OpenStore(driveDir(cfg))
	if err != nil {
		localStore.Close()
		v.Close()
		return nil, err
	}
	r.driveStore = driveStore
	r.drive = blob.New(roomID, driveStore, v, base, broker, func() string { return uuid.New().String() })

	r.state = newStateMachine(roomID, broker)
	r.pairer = pairing.New(id, v, base, roomKey, encKey)

	return r, nil
}

// Create opens a brand new room: the local identity key pair becomes the
// room's bootstrap writer-core (its public key is also the room's
// discovery key), admits itself as a writer, and records the room
// descriptor.
func Create(cfg config.Config, id *identity.Identity, name string) (*Room, error) {
	encKey := make([]byte, 32)
	if _, err := rand.Read(encKey); err != nil {
		return nil, rerr.Fatal("room.Create", err)
	}
	roomID := uuid.New().String()
	roomKey := id.PublicKey()

	broker := events.NewBroker()
	r, err := newBareRoom(cfg, id, roomKey, encKey, roomID, broker)
	if err != nil {
		return nil, err
	}

	if _, err := r.base.Append(dispatch.NameAddWriter, dispatch.AddWriterPayload{Key: roomKey}); err != nil {
		r.Close()
		return nil, err
	}

	if _, err := r.base.Append(dispatch.NameSetMetadata, dispatch.SetMetadataPayload{
		ID:        roomID,
		Name:      name,
		CreatedAt: time.Now().UnixMilli(),
	}); err != nil {
		r.Close()
		return nil, err
	}

	driveKey := make([]byte, 32)
	if _, err := rand.Read(driveKey); err != nil {
		r.Close()
		return nil, rerr.Fatal("room.Create", err)
	}
	if _, err := r.base.Append(dispatch.NameSetDriveKey, dispatch.SetDriveKeyPayload{Key: driveKey}); err != nil {
		r.Close()
		return nil, err
	}

	if err := r.startNetworking(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Open reopens an existing room on restart: the discovery key and
// encryption key are both already known from the previous session (or
// from a pairing grant); no self-add-writer record is appended.
func Open(cfg config.Config, id *identity.Identity, roomKey, encKey []byte) (*Room, error) {
	cfg = cfg.WithDefaults()

	v, err := view.Open(viewDir(cfg))
	if err != nil {
		return nil, err
	}
	roomID, _, err := v.GetMetadata(autobase.MetadataKeyRoomID)
	if err != nil {
		v.Close()
		return nil, err
	}
	v.Close()

	broker := events.NewBroker()
	r, err := newBareRoom(cfg, id, roomKey, encKey, roomID, broker)
	if err != nil {
		return nil, err
	}

	if err := r.startNetworking(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Pair redeems inviteString against its inviter over a dedicated,
// short-lived pairing swarm, then opens the resulting room with the
// granted key material (spec.md §4.6 step 3).
func Pair(ctx context.Context, cfg config.Config, id *identity.Identity, inviteString string) (*Room, error) {
	cfg = cfg.WithDefaults()

	inviteID, roomKey, err := pairing.DecodeInviteID(inviteString)
	if err != nil {
		return nil, err
	}
	topic := swarm.PairingTopic(inviteID)

	noiseKey, err := swarm.NewKeypair()
	if err != nil {
		return nil, rerr.Fatal("room.Pair", err)
	}

	p := pairing.New(id, nil, nil, roomKey, nil)

	type outcome struct {
		grant pairing.Grant
		err   error
	}
	results := make(chan outcome, 1)
	var once sync.Once

	onConn := func(stream *swarm.Stream, _ net.Addr) {
		defer stream.Close()
		grant, err := p.Redeem(ctx, stream, inviteString)
		once.Do(func() { results <- outcome{grant, err} })
	}

	pairSwarm, err := swarm.New(cfg.Bootstrap, noiseKey, onConn)
	if err != nil {
		return nil, err
	}
	defer pairSwarm.Close()

	if err := pairSwarm.Join(topic); err != nil {
		return nil, err
	}

	joinCtx, cancel := context.WithTimeout(ctx, cfg.PairingTimeout)
	defer cancel()

	flushed := make(chan error, 1)
	go func() { flushed <- pairSwarm.Flush(topic) }()
	select {
	case <-joinCtx.Done():
		return nil, rerr.Transient("room.Pair", fmt.Errorf("timed out discovering inviter: %w", joinCtx.Err()))
	case <-flushed:
	}

	select {
	case <-joinCtx.Done():
		return nil, rerr.Transient("room.Pair", fmt.Errorf("timed out waiting for inviter to grant: %w", joinCtx.Err()))
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		return Open(cfg, id, res.grant.RoomKey, res.grant.EncryptionKey)
	}
}

// ID returns the room's descriptor id, once known.
func (r *Room) ID() (string, error) {
	id, ok, err := r.v.GetMetadata(autobase.MetadataKeyRoomID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", rerr.Invalid("room.ID", fmt.Errorf("room descriptor not yet linearised"))
	}
	return id, nil
}

// RoomKey returns the room's discovery key, the value a second process
// needs alongside the encryption key to Open this room again.
func (r *Room) RoomKey() []byte {
	return r.roomKey
}

// EncryptionKey returns the room's symmetric encryption key, the other
// half of what Open needs (spec.md §4.6: a pairing grant carries both).
func (r *Room) EncryptionKey() []byte {
	return r.encKey
}

// GetRoomInfo returns the room's descriptor record.
func (r *Room) GetRoomInfo() (view.Room, error) {
	id, err := r.ID()
	if err != nil {
		return view.Room{}, err
	}
	room, ok, err := r.v.GetRoom(id)
	if err != nil {
		return view.Room{}, err
	}
	if !ok {
		return view.Room{}, rerr.Invalid("room.GetRoomInfo", fmt.Errorf("room descriptor %q missing from view", id))
	}
	return room, nil
}

// onUpdate is autobase's UpdateFunc: forward a processed-count as an
// update event (spec.md §5: "update events fire after the corresponding
// batch commits").
func (r *Room) onUpdate(processed int) {
	if r.broker == nil {
		return
	}
	room, _ := r.ID()
	r.broker.Publish(events.Event{Type: events.TypeUpdate, Room: room, Payload: processed})
}

// Close tears the room down in the order spec.md §5 prescribes: watchers,
// drive, pairing member, swarm, autobase, underlying block stores.
// Idempotent.
func (r *Room) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if r.broker != nil {
		r.broker.Close()
	}
	if r.reconcileCancel != nil {
		r.reconcileCancel()
	}

	if r.driveStore != nil {
		r.driveStore.Close()
	}

	r.pairingMu.Lock()
	if r.pairingSwarm != nil {
		r.pairingSwarm.Close()
		r.pairingSwarm = nil
	}
	r.pairingMu.Unlock()

	if r.roomSwarm != nil {
		r.roomSwarm.Close()
	}

	var firstErr error
	for _, hexKey := range r.base.Writers() {
		store, ok := r.base.Store(hexKey)
		if !ok {
			continue
		}
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := r.v.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	if r.state != nil {
		r.state.MarkClosed()
	}
	return firstErr
}

// Events returns a subscription to this room's event stream (spec.md §6:
// update/new-message/error/mistake).
func (r *Room) Events() events.Subscriber {
	return r.broker.Subscribe()
}

// Status returns the room's current state-machine value.
func (r *Room) Status() State {
	return r.state.Current()
}

// --- metrics.Source ---

func (r *Room) ActiveWriters() int {
	writers, err := r.v.GetWriters()
	if err != nil {
		return 0
	}
	n := 0
	for _, w := range writers {
		if !w.Removed {
			n++
		}
	}
	return n
}

func (r *Room) RemovedWriters() int {
	writers, err := r.v.GetWriters()
	if err != nil {
		return 0
	}
	n := 0
	for _, w := range writers {
		if w.Removed {
			n++
		}
	}
	return n
}

func (r *Room) ReplicationBacklog() map[string]int {
	return r.base.Backlog()
}
