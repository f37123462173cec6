package swarm

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/flynn/noise"

	"github.com/latticechat/roomengine/pkg/rerr"
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256)

// frameLenMax bounds a single encrypted frame; block-store replication
// frames are small (HAVE/WANT/DATA for one block), so this is generous
// headroom rather than a tuned limit.
const frameLenMax = 16 << 20

// StaticKeypair wraps the Noise DH keypair derived from the process's
// ed25519 identity key's X25519 conversion is deliberately not done here
// (spec.md keeps identity and transport keys conceptually distinct);
// callers generate or persist a dedicated Noise keypair via NewKeypair.
type StaticKeypair = noise.DHKey

// NewKeypair generates a fresh X25519 static keypair for one process's
// Noise identity (spec.md §4.6: "each process keeps one long-lived Noise
// key pair").
func NewKeypair() (StaticKeypair, error) {
	kp, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return StaticKeypair{}, rerr.Fatal("swarm.NewKeypair", err)
	}
	return kp, nil
}

// Stream is a mutually-authenticated, encrypted, length-framed duplex
// built by completing a Noise XX handshake over a net.Conn.
type Stream struct {
	conn      net.Conn
	send, recv *noise.CipherState
	// PeerStatic is the remote's verified Noise static public key,
	// usable as its peer identity for authorization decisions.
	PeerStatic []byte
}

// Dial performs the initiator side of a Noise XX handshake over conn.
func Dial(conn net.Conn, local StaticKeypair) (*Stream, error) {
	return handshake(conn, local, true)
}

// Accept performs the responder side of a Noise XX handshake over conn.
func Accept(conn net.Conn, local StaticKeypair) (*Stream, error) {
	return handshake(conn, local, false)
}

func handshake(conn net.Conn, local StaticKeypair, initiator bool) (*Stream, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: local,
	})
	if err != nil {
		return nil, rerr.Fatal("swarm.handshake", err)
	}

	// XX is three messages: e / e,ee,s,es / s,se. Whichever side sends
	// the third message completes with a non-nil cipher-state pair.
	var send, recv *noise.CipherState
	turn := initiator
	for send == nil {
		if turn {
			out, cs0, cs1, err := hs.WriteMessage(nil, nil)
			if err != nil {
				return nil, rerr.Fatal("swarm.handshake", fmt.Errorf("write: %w", err))
			}
			if err := writeFrame(conn, out); err != nil {
				return nil, err
			}
			if cs0 != nil {
				send, recv = cs0, cs1
			}
		} else {
			in, err := readFrame(conn)
			if err != nil {
				return nil, err
			}
			_, cs0, cs1, err := hs.ReadMessage(nil, in)
			if err != nil {
				return nil, rerr.Fatal("swarm.handshake", fmt.Errorf("read: %w", err))
			}
			if cs0 != nil {
				send, recv = cs1, cs0 // responder's send uses the initiator's recv state
			}
		}
		turn = !turn
	}

	return &Stream{conn: conn, send: send, recv: recv, PeerStatic: hs.PeerStatic()}, nil
}

// Send encrypts and writes one frame.
func (s *Stream) Send(plaintext []byte) error {
	ct := s.send.Encrypt(nil, nil, plaintext)
	return writeFrame(s.conn, ct)
}

// Recv reads and decrypts one frame.
func (s *Stream) Recv() ([]byte, error) {
	ct, err := readFrame(s.conn)
	if err != nil {
		return nil, err
	}
	pt, err := s.recv.Decrypt(nil, nil, ct)
	if err != nil {
		return nil, rerr.Fatal("swarm.Stream.Recv", err)
	}
	return pt, nil
}

// Close closes the underlying connection.
func (s *Stream) Close() error {
	return s.conn.Close()
}

func writeFrame(w io.Writer, data []byte) error {
	if len(data) > frameLenMax {
		return rerr.Invalid("swarm.writeFrame", fmt.Errorf("frame too large: %d bytes", len(data)))
	}
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, uint32(len(data)))
	if _, err := w.Write(hdr); err != nil {
		return rerr.Transient("swarm.writeFrame", err)
	}
	if _, err := w.Write(data); err != nil {
		return rerr.Transient("swarm.writeFrame", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	hdr := make([]byte, 4)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, rerr.Transient("swarm.readFrame", err)
	}
	n := binary.BigEndian.Uint32(hdr)
	if n > frameLenMax {
		return nil, rerr.Invalid("swarm.readFrame", fmt.Errorf("frame too large: %d bytes", n))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, rerr.Transient("swarm.readFrame", err)
	}
	return buf, nil
}
