package pairing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	msgpackcodec "github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/rs/zerolog"

	"github.com/latticechat/roomengine/pkg/dispatch"
	"github.com/latticechat/roomengine/pkg/identity"
	"github.com/latticechat/roomengine/pkg/metrics"
	"github.com/latticechat/roomengine/pkg/rerr"
	"github.com/latticechat/roomengine/pkg/rlog"
	"github.com/latticechat/roomengine/pkg/view"
)

// DefaultTTL is used when a caller asks for an invite with no explicit
// expiry.
const DefaultTTL = 10 * time.Minute

// Appender is the subset of *autobase.Base pairing needs to admit a
// writer or record an invite, declared locally so tests can substitute a
// fake instead of a full autobase/view/blockstore stack (mirrors
// blob.Appender and metrics.Source).
type Appender interface {
	Append(name dispatch.Name, payload interface{}) (uint64, error)
}

// Stream is the minimal duplex pairing needs from a swarm.Stream,
// declared locally so tests can exercise the handshake without a real
// Noise-encrypted net.Pipe.
type Stream interface {
	Send([]byte) error
	Recv() ([]byte, error)
}

// Grant is what a candidate receives once an inviter has verified its
// capability and admitted it as a writer (spec.md §4.6 step 3).
type Grant struct {
	RoomKey       []byte
	EncryptionKey []byte
}

type requestMsg struct {
	Invite    []byte `msgpack:"invite"`
	WriterKey []byte `msgpack:"writer_key"`
}

type grantMsg struct {
	RoomKey       []byte `msgpack:"room_key"`
	EncryptionKey []byte `msgpack:"encryption_key"`
}

// Pairing runs one room's blind-pairing protocol: issuing invites as the
// inviter, and redeeming them as a candidate.
type Pairing struct {
	mu       sync.Mutex
	identity *identity.Identity
	v        *view.View
	appender Appender

	roomKey       []byte
	encryptionKey []byte

	cached *issuedInvite
	logger zerolog.Logger
}

type issuedInvite struct {
	ic  capability
	str string
}

// New returns a Pairing bound to one room. roomKey and encryptionKey are
// the key material granted to a successfully paired candidate (spec.md
// §4.6 step 3: "transmits {roomKey, encryptionKey}").
func New(id *identity.Identity, v *view.View, appender Appender, roomKey, encryptionKey []byte) *Pairing {
	return &Pairing{
		identity:      id,
		v:             v,
		appender:      appender,
		roomKey:       roomKey,
		encryptionKey: encryptionKey,
		logger:        rlog.WithComponent("pairing"),
	}
}

// CreateInvite issues a single-use capability and returns its z-base32
// invite string, appending an add-invite record the first time it is
// called. Calling it again before the invite is consumed or deleted
// returns the identical string (spec.md §8 property 9).
func (p *Pairing) CreateInvite(ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		inv, ok, err := p.v.GetInvite(p.cached.ic.ID)
		if err != nil {
			return "", err
		}
		if ok && !inv.Consumed && !expired(inv.Expires) {
			return p.cached.str, nil
		}
		p.cached = nil
	}

	id := uuid.New()
	expires := time.Now().Add(ttl).UnixMilli()
	ic := signCapability(p.identity, capability{
		ID:      id[:],
		RoomKey: p.roomKey,
		Expires: expires,
	})

	str, raw, err := encodeInvite(ic)
	if err != nil {
		return "", err
	}

	if _, err := p.appender.Append(dispatch.NameAddInvite, dispatch.AddInvitePayload{
		ID:        ic.ID,
		Invite:    raw,
		PublicKey: p.identity.PublicKey(),
		Expires:   ic.Expires,
	}); err != nil {
		return "", err
	}

	p.cached = &issuedInvite{ic: ic, str: str}
	metrics.InvitesIssuedTotal.Inc()
	return str, nil
}

// DeleteInvite retracts the currently cached invite, if any, so the next
// CreateInvite call issues a fresh one (spec.md §8 scenario S6).
func (p *Pairing) DeleteInvite() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached == nil {
		return nil
	}
	id := p.cached.ic.ID
	p.cached = nil
	return p.v.DeleteInvite(id)
}

func expired(expiresMS int64) bool {
	return expiresMS != 0 && time.Now().UnixMilli() >= expiresMS
}

// HandleCandidate runs the inviter side of one pairing connection:
// receive the candidate's presented capability and writer key, verify
// and consume the invite, admit the writer, and transmit the grant.
// Tolerates ctx cancellation without leaking the call (spec.md §5:
// "every long-lived resource... exposes an idempotent close").
func (p *Pairing) HandleCandidate(ctx context.Context, stream Stream) error {
	raw, err := recvCtx(ctx, stream)
	if err != nil {
		return err
	}

	var req requestMsg
	if err := msgpackDecode(raw, &req); err != nil {
		return rerr.Invalid("pairing.HandleCandidate", fmt.Errorf("decode request: %w", err))
	}

	ic, err := decodeCapability(req.Invite)
	if err != nil {
		return err
	}

	inv, ok, err := p.v.GetInvite(ic.ID)
	if err != nil {
		return err
	}
	if !ok {
		p.logger.Debug().Msg("candidate presented an unknown invite")
		return rerr.Unauthorised("pairing.HandleCandidate", fmt.Errorf("unknown invite"))
	}
	if expired(inv.Expires) {
		p.logger.Debug().Msg("candidate presented an expired invite")
		return rerr.Unauthorised("pairing.HandleCandidate", fmt.Errorf("invite expired"))
	}
	if !verifyCapability(inv.PublicKey, ic) {
		p.logger.Warn().Msg("candidate presented an invite with a bad signature")
		return rerr.Invalid("pairing.HandleCandidate", fmt.Errorf("bad invite signature"))
	}

	if err := p.v.ConsumeInvite(ic.ID); err != nil {
		return err
	}

	if _, err := p.appender.Append(dispatch.NameAddWriter, dispatch.AddWriterPayload{
		Key: req.WriterKey,
	}); err != nil {
		return err
	}

	resp, err := msgpackEncode(grantMsg{RoomKey: p.roomKey, EncryptionKey: p.encryptionKey})
	if err != nil {
		return err
	}
	return stream.Send(resp)
}

// Redeem runs the candidate side: present inviteString and the
// candidate's own writer key over stream, then wait for the grant.
func (p *Pairing) Redeem(ctx context.Context, stream Stream, inviteString string) (Grant, error) {
	_, raw, err := decodeInviteRaw(inviteString)
	if err != nil {
		return Grant{}, err
	}

	body, err := msgpackEncode(requestMsg{Invite: raw, WriterKey: p.identity.PublicKey()})
	if err != nil {
		return Grant{}, err
	}
	if err := stream.Send(body); err != nil {
		return Grant{}, err
	}

	respRaw, err := recvCtx(ctx, stream)
	if err != nil {
		return Grant{}, err
	}
	var resp grantMsg
	if err := msgpackDecode(respRaw, &resp); err != nil {
		return Grant{}, rerr.Invalid("pairing.Redeem", fmt.Errorf("decode grant: %w", err))
	}
	return Grant{RoomKey: resp.RoomKey, EncryptionKey: resp.EncryptionKey}, nil
}

// recvCtx runs stream.Recv() on a goroutine so a cancelled ctx returns
// promptly instead of blocking on a peer that never sends or drops
// silently (spec.md §5 cancellation: "tolerate peer drops without
// leaking goroutines/tasks/streams" — the goroutine itself still exits
// once Recv eventually returns or errors, it just stops being awaited).
func recvCtx(ctx context.Context, stream Stream) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := stream.Recv()
		ch <- result{data, err}
	}()
	select {
	case <-ctx.Done():
		return nil, rerr.UserAbort("pairing.recvCtx", ctx.Err())
	case r := <-ch:
		return r.data, r.err
	}
}

func msgpackEncode(v interface{}) ([]byte, error) {
	var out []byte
	enc := msgpackcodec.NewEncoderBytes(&out, mh)
	if err := enc.Encode(v); err != nil {
		return nil, rerr.Invalid("pairing.msgpackEncode", err)
	}
	return out, nil
}

func msgpackDecode(raw []byte, dst interface{}) error {
	dec := msgpackcodec.NewDecoderBytes(raw, mh)
	return dec.Decode(dst)
}
