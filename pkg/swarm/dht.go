package swarm

import (
	"net"

	"github.com/anacrolix/dht/v2"

	"github.com/latticechat/roomengine/pkg/rerr"
)

// infoHash reduces a 32-byte Topic to dht/v2's 20-byte key space by
// truncation (doc.go: a collision only costs a spurious discovery
// attempt, since the actual connection is authenticated separately by
// the Noise handshake).
func infoHash(t Topic) (h [20]byte) {
	copy(h[:], t[:])
	return h
}

// Discovery wraps a dht/v2 Server for announce/find-peers by Topic.
type Discovery struct {
	server *dht.Server
}

// NewDiscovery starts a DHT node bootstrapped from addrs, listening on a
// UDP port picked by the OS (port 0).
func NewDiscovery(addrs []string) (*Discovery, error) {
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, rerr.Fatal("swarm.NewDiscovery", err)
	}
	cfg := dht.NewDefaultServerConfig()
	cfg.Conn = conn
	if len(addrs) > 0 {
		cfg.StartingNodes = func() ([]dht.Addr, error) {
			var out []dht.Addr
			for _, a := range addrs {
				udpAddr, err := net.ResolveUDPAddr("udp", a)
				if err != nil {
					continue
				}
				out = append(out, dht.NewAddr(udpAddr))
			}
			return out, nil
		}
	}
	server, err := dht.NewServer(cfg)
	if err != nil {
		conn.Close()
		return nil, rerr.Fatal("swarm.NewDiscovery", err)
	}
	return &Discovery{server: server}, nil
}

// Announce announces the local node under topic and returns a channel of
// discovered peer addresses. Closing stop ends the announce traversal.
func (d *Discovery) Announce(topic Topic, port int, stop <-chan struct{}) (<-chan net.Addr, error) {
	a, err := d.server.Announce(infoHash(topic), port, true)
	if err != nil {
		return nil, rerr.Transient("swarm.Discovery.Announce", err)
	}

	out := make(chan net.Addr)
	go func() {
		defer close(out)
		defer a.Close()
		for {
			select {
			case v, ok := <-a.Peers:
				if !ok {
					return
				}
				for _, p := range v.Peers {
					udpAddr := &net.UDPAddr{IP: p.IP, Port: p.Port}
					select {
					case out <- udpAddr:
					case <-stop:
						return
					}
				}
			case <-stop:
				return
			}
		}
	}()
	return out, nil
}

// Close shuts down the DHT node.
func (d *Discovery) Close() error {
	d.server.Close()
	return nil
}
