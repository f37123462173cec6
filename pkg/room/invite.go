package room

import (
	"context"
	"net"
	"time"

	"github.com/latticechat/roomengine/pkg/pairing"
	"github.com/latticechat/roomengine/pkg/swarm"
)

// CreateInvite issues a single-use invite string and starts listening on
// its pairing topic so a candidate can redeem it (spec.md §4.6 step 2).
// Calling it again before the invite is consumed or deleted returns the
// identical string and leaves the existing listener running.
func (r *Room) CreateInvite(ttl time.Duration) (string, error) {
	str, err := r.pairer.CreateInvite(ttl)
	if err != nil {
		return "", err
	}

	inviteID, _, err := pairing.DecodeInviteID(str)
	if err != nil {
		return "", err
	}
	if err := r.ensurePairingSwarm(inviteID); err != nil {
		return "", err
	}
	return str, nil
}

// DeleteInvite retracts the currently cached invite and stops listening
// for candidates on its topic.
func (r *Room) DeleteInvite() error {
	if err := r.pairer.DeleteInvite(); err != nil {
		return err
	}
	r.closePairingSwarm()
	return nil
}

// ensurePairingSwarm starts (once) a dedicated swarm that only handles
// this room's pairing rendezvous, separate from the room-replication
// swarm since a single Swarm's ConnectionHandler cannot distinguish
// which topic produced a given stream, and joins inviteID's pairing
// topic on it.
func (r *Room) ensurePairingSwarm(inviteID []byte) error {
	r.pairingMu.Lock()
	defer r.pairingMu.Unlock()
	if r.pairingSwarm != nil {
		return r.pairingSwarm.Join(swarm.PairingTopic(inviteID))
	}

	noiseKey, err := swarm.NewKeypair()
	if err != nil {
		return err
	}

	onConn := func(stream *swarm.Stream, _ net.Addr) {
		defer stream.Close()
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PairingTimeout)
		defer cancel()
		if err := r.pairer.HandleCandidate(ctx, stream); err != nil {
			r.logger.Debug().Err(err).Msg("pairing candidate rejected")
		}
	}

	s, err := swarm.New(r.cfg.Bootstrap, noiseKey, onConn)
	if err != nil {
		return err
	}
	if err := s.Join(swarm.PairingTopic(inviteID)); err != nil {
		s.Close()
		return err
	}
	r.pairingSwarm = s
	return nil
}

func (r *Room) closePairingSwarm() {
	r.pairingMu.Lock()
	defer r.pairingMu.Unlock()
	if r.pairingSwarm == nil {
		return
	}
	r.pairingSwarm.Close()
	r.pairingSwarm = nil
}
