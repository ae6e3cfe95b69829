package transport

import "net"

type reliableRef struct {
	channel int
	id      uint16
}

type sentPacketRecord struct {
	valid bool
	seq   uint16
	refs  []reliableRef
}

const sentWindowSize = 1024

// Peer holds one remote endpoint's full per-connection state: outgoing
// queues, receive reassembly, and acknowledgement bookkeeping.
type Peer struct {
	Addr *net.UDPAddr
	key  string

	nextSeq uint16

	haveRecv    bool
	lastRecv    uint16
	recvAckBits uint32

	outgoing []*outgoingChannel
	incoming []*incomingChannel

	sentWindow [sentWindowSize]sentPacketRecord
}

func newPeer(addr *net.UDPAddr, configs []ChannelConfig) *Peer {
	p := &Peer{Addr: addr, key: addr.String()}
	for _, cfg := range configs {
		p.outgoing = append(p.outgoing, newOutgoingChannel(cfg))
		p.incoming = append(p.incoming, newIncomingChannel(cfg))
	}
	return p
}

func (p *Peer) hasPending() bool {
	for _, c := range p.outgoing {
		if len(c.queue) > 0 {
			return true
		}
	}
	return false
}

// recordIncomingSeq updates lastRecv/recvAckBits with a newly observed
// sequence number using a sliding ack-bitfield scheme (ack-bit k means
// sequence ack-k was also received).
func (p *Peer) recordIncomingSeq(seq uint16) {
	if !p.haveRecv {
		p.haveRecv = true
		p.lastRecv = seq
		p.recvAckBits = 0
		return
	}
	if seq == p.lastRecv {
		return
	}
	if moreRecent(seq, p.lastRecv) {
		shift := seq - p.lastRecv
		if shift > 32 {
			p.recvAckBits = 0
		} else {
			p.recvAckBits = (p.recvAckBits << shift) | (1 << (shift - 1))
		}
		p.lastRecv = seq
		return
	}
	// Older than lastRecv: mark it received in the bitfield if in range.
	shift := p.lastRecv - seq
	if shift >= 1 && shift <= 32 {
		p.recvAckBits |= 1 << (shift - 1)
	}
}

// ackFor returns the (ack, ack_bits) header fields to stamp on our next
// outgoing packet to this peer.
func (p *Peer) ackFor() (uint16, uint32) {
	return p.lastRecv, p.recvAckBits
}

// recordSent remembers a packet we sent, for later ack processing.
func (p *Peer) recordSent(seq uint16, refs []reliableRef) {
	p.sentWindow[seq%sentWindowSize] = sentPacketRecord{valid: true, seq: seq, refs: refs}
}

// processAck consumes a received (ack, ack_bits) pair, removing newly
// acked reliable messages from our outgoing queues.
func (p *Peer) processAck(ack uint16, ackBits uint32) {
	p.ackOne(ack)
	for k := 1; k <= 32; k++ {
		if ackBits&(1<<(uint(k)-1)) != 0 {
			p.ackOne(ack - uint16(k))
		}
	}
}

func (p *Peer) ackOne(seq uint16) {
	rec := &p.sentWindow[seq%sentWindowSize]
	if !rec.valid || rec.seq != seq {
		return
	}
	for _, ref := range rec.refs {
		if ref.channel < len(p.outgoing) {
			p.outgoing[ref.channel].ackRemove(ref.id)
		}
	}
	rec.valid = false
}
