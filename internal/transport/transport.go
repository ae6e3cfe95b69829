// Package transport implements the engine's UDP transport: one socket per
// endpoint, a fixed packet header carrying a sliding ack-bitfield, and a
// per-connection ordered channel list supporting reliable-ordered,
// unreliable-sequenced, and unreliable delivery.
package transport

import (
	"net"
	"sync"
	"time"

	log "github.com/pallet-engine/pallet/pkg/palletlog"
)

// DefaultProtocolID is the fixed wire constant stamped on every packet.
const DefaultProtocolID uint32 = 0x5155_414B

// DefaultMTU bounds a single outgoing packet's byte size: Flush builds at
// most one packet per peer no larger than this.
const DefaultMTU = 1200

const maxDatagramSize = 65507

// Received is one message delivered to the caller by Poll.
type Received struct {
	Peer    *Peer
	Channel int
	Payload []byte
}

// Endpoint owns one UDP socket and the set of peers reachable through it.
type Endpoint struct {
	conn       *net.UDPConn
	protocolID uint32
	mtu        int
	channels   []ChannelConfig

	// recvDrop, when set, is consulted once per arriving datagram; a true
	// return discards it before any processing. Fault injection for
	// loss-tolerance tests.
	recvDrop func() bool

	mu    sync.Mutex
	peers map[string]*Peer
}

// NewEndpoint binds a UDP socket at localAddr (":0" for an ephemeral client
// port) using the given ordered channel configuration.
func NewEndpoint(localAddr string, channels []ChannelConfig) (*Endpoint, error) {
	addr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Endpoint{
		conn:       conn,
		protocolID: DefaultProtocolID,
		mtu:        DefaultMTU,
		channels:   channels,
		peers:      map[string]*Peer{},
	}, nil
}

// SetProtocolID overrides DefaultProtocolID, for tests running multiple
// independent protocols on the same process.
func (e *Endpoint) SetProtocolID(id uint32) { e.protocolID = id }

// SetRecvDrop installs a per-datagram drop predicate, simulating a lossy
// link for tests. Nil disables it.
func (e *Endpoint) SetRecvDrop(f func() bool) { e.recvDrop = f }

// LocalAddr returns the bound socket address.
func (e *Endpoint) LocalAddr() *net.UDPAddr { return e.conn.LocalAddr().(*net.UDPAddr) }

// Close releases the underlying socket.
func (e *Endpoint) Close() error { return e.conn.Close() }

// Connect registers (or returns the existing) peer state for addr. Peers
// are addressed by remote UDP address; registration does not itself send
// a packet.
func (e *Endpoint) Connect(addr *net.UDPAddr) *Peer {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := addr.String()
	if p, ok := e.peers[key]; ok {
		return p
	}
	p := newPeer(addr, e.channels)
	e.peers[key] = p
	return p
}

// Send enqueues payload on the given channel index for delivery to peer.
// Reliable/unreliable queues return ErrQueueFull at capacity; sequenced
// channels never do (they replace their single pending entry).
func (e *Endpoint) Send(peer *Peer, channel int, payload []byte) error {
	if channel < 0 || channel >= len(peer.outgoing) {
		return ErrQueueFull{Channel: channel}
	}
	_, err := peer.outgoing[channel].enqueue(payload)
	if err != nil {
		if qf, ok := err.(ErrQueueFull); ok {
			qf.Channel = channel
			return qf
		}
	}
	return err
}

// Flush builds and sends at most one packet per peer with pending data,
// each bounded by the endpoint's MTU.
func (e *Endpoint) Flush() error {
	e.mu.Lock()
	peers := make([]*Peer, 0, len(e.peers))
	for _, p := range e.peers {
		peers = append(peers, p)
	}
	e.mu.Unlock()

	for _, p := range peers {
		if !p.hasPending() {
			continue
		}
		if err := e.flushPeer(p); err != nil {
			return err
		}
	}
	return nil
}

func (e *Endpoint) flushPeer(p *Peer) error {
	var msgs []wireMessage
	for idx, ch := range p.outgoing {
		msgs = append(msgs, ch.drainForFlush(idx)...)
	}

	seq := p.nextSeq
	p.nextSeq++
	ack, ackBits := p.ackFor()

	buf, included := encodePacket(e.protocolID, seq, ack, ackBits, msgs, e.mtu)
	if included < len(msgs) {
		log.Warn("transport: dropped %d of %d messages to %s over MTU budget", len(msgs)-included, len(msgs), p.Addr)
	}

	// Only reliable messages that made it into this packet are tied to seq;
	// the rest stay queued and ride a later flush.
	var refs []reliableRef
	for _, m := range msgs[:included] {
		if p.outgoing[m.Channel].cfg.Kind == ReliableOrdered {
			refs = append(refs, reliableRef{channel: int(m.Channel), id: m.ID})
		}
	}
	p.recordSent(seq, refs)

	_, err := e.conn.WriteToUDP(buf, p.Addr)
	return err
}

// Poll drains the socket, waiting at most a millisecond per read for a
// datagram, dispatching each well-formed in-window packet to its peer's
// per-channel receive logic, and returns every message now ready for
// delivery.
func (e *Endpoint) Poll() ([]Received, error) {
	var out []Received
	buf := make([]byte, maxDatagramSize)

	for {
		if err := e.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
			return out, err
		}
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			return out, err
		}

		if e.recvDrop != nil && e.recvDrop() {
			continue
		}

		pkt, ok, derr := decodePacket(e.protocolID, buf[:n])
		if derr != nil {
			log.Debug("transport: dropping malformed packet from %s: %v", addr, derr)
			continue
		}
		if !ok {
			continue // protocol id mismatch: silently dropped
		}

		peer := e.Connect(addr)
		if peer.haveRecv && !inWindow(pkt.Seq, peer.lastRecv) {
			log.Debug("transport: dropping out-of-window packet seq=%d from %s", pkt.Seq, addr)
			continue
		}
		peer.recordIncomingSeq(pkt.Seq)
		peer.processAck(pkt.Ack, pkt.AckBits)

		for _, m := range pkt.Messages {
			if int(m.Channel) >= len(peer.incoming) {
				continue
			}
			delivered := peer.incoming[m.Channel].accept(m.ID, m.Payload)
			for _, d := range delivered {
				out = append(out, Received{Peer: peer, Channel: int(m.Channel), Payload: d})
			}
		}
	}
	return out, nil
}
