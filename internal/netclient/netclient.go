// Package netclient implements the client role: a thin wrapper around
// internal/transport and pkg/netproto that tracks a monotonically
// incrementing (sequence, tick) pair for outgoing input and keeps only
// the most recently received snapshot.
package netclient

import (
	"net"

	"github.com/pallet-engine/pallet/internal/transport"
	"github.com/pallet-engine/pallet/pkg/netproto"
)

// Channel indices for the client<->server connection. Input rides a
// sequenced channel (only the newest input matters if an old one is still
// queued); snapshots ride their own sequenced channel so a late-arriving
// stale snapshot never overwrites a newer one; channel 2 is reserved for
// reliable traffic (e.g. control-plane commands) future callers may add.
const (
	ChannelInput     = 0
	ChannelSnapshot  = 1
	ChannelReliable  = 2
)

// DefaultChannels is the channel list a Client's Endpoint must be
// constructed with.
func DefaultChannels() []transport.ChannelConfig {
	return []transport.ChannelConfig{
		{Kind: transport.UnreliableSequenced, MaxPending: 1},
		{Kind: transport.UnreliableSequenced, MaxPending: 1},
		{Kind: transport.ReliableOrdered, MaxPending: 256},
	}
}

// Client wraps an Endpoint connected to exactly one server peer.
type Client struct {
	endpoint *transport.Endpoint
	server   *transport.Peer

	nextSeq uint32

	hasSnapshot   bool
	latestSnapshot netproto.Snapshot
	latestTick    uint32
}

// NewClient binds a local UDP socket and registers the server as its sole
// peer.
func NewClient(localAddr string, serverAddr *net.UDPAddr) (*Client, error) {
	ep, err := transport.NewEndpoint(localAddr, DefaultChannels())
	if err != nil {
		return nil, err
	}
	return &Client{endpoint: ep, server: ep.Connect(serverAddr)}, nil
}

// Close releases the underlying socket.
func (c *Client) Close() error { return c.endpoint.Close() }

// SendInput encodes in with the next (seq, tick) pair, enqueues it on the
// input channel, and flushes immediately.
func (c *Client) SendInput(tick uint32, moveX, moveY, yaw, pitch float32, buttons uint32) error {
	seq := c.nextSeq
	c.nextSeq++

	wire := netproto.EncodeInput(netproto.Input{
		ClientSeq:  seq,
		ClientTick: tick,
		MoveX:      moveX,
		MoveY:      moveY,
		Yaw:        yaw,
		Pitch:      pitch,
		Buttons:    buttons,
	})
	if err := c.endpoint.Send(c.server, ChannelInput, wire); err != nil {
		return err
	}
	return c.endpoint.Flush()
}

// Poll drains the socket and keeps the most recent snapshot seen. It
// returns true when a newer snapshot replaced the previous one.
func (c *Client) Poll() (bool, error) {
	recv, err := c.endpoint.Poll()
	if err != nil {
		return false, err
	}

	updated := false
	for _, r := range recv {
		if r.Channel != ChannelSnapshot {
			continue
		}
		dec, err := netproto.Decode(r.Payload)
		if err != nil {
			continue
		}

		// Delta snapshots carry full entity state on the wire; the
		// baseline tick is advisory, so both kinds collapse to the same
		// newest-wins snapshot here.
		var snap netproto.Snapshot
		switch dec.Type {
		case netproto.TypeSnapshot:
			snap = dec.Snapshot
		case netproto.TypeDeltaSnapshot:
			d := dec.DeltaSnapshot
			snap = netproto.Snapshot{
				ServerTick:   d.ServerTick,
				AckClientSeq: d.AckClientSeq,
				Entities:     d.Entities,
			}
		default:
			continue
		}

		if c.hasSnapshot && snap.ServerTick <= c.latestTick {
			continue
		}
		c.latestSnapshot = snap
		c.latestTick = snap.ServerTick
		c.hasSnapshot = true
		updated = true
	}
	return updated, nil
}

// LatestSnapshot returns the most recently received snapshot and whether
// one has ever arrived.
func (c *Client) LatestSnapshot() (netproto.Snapshot, bool) {
	return c.latestSnapshot, c.hasSnapshot
}
