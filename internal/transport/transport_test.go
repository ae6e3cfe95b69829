package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultChannels() []ChannelConfig {
	return []ChannelConfig{
		{Kind: ReliableOrdered, MaxPending: 64},
		{Kind: UnreliableSequenced, MaxPending: 8},
		{Kind: Unreliable, MaxPending: 64},
	}
}

func newLoopbackPair(t *testing.T) (*Endpoint, *Endpoint, *Peer, *Peer) {
	t.Helper()
	a, err := NewEndpoint("127.0.0.1:0", defaultChannels())
	require.NoError(t, err)
	b, err := NewEndpoint("127.0.0.1:0", defaultChannels())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(); b.Close() })

	peerB := a.Connect(b.LocalAddr())
	peerA := b.Connect(a.LocalAddr())
	return a, b, peerB, peerA
}

func TestSequenceMoreRecent(t *testing.T) {
	assert.True(t, moreRecent(1, 0))
	assert.False(t, moreRecent(0, 1))
	assert.True(t, moreRecent(0, 65535))
	assert.False(t, moreRecent(65535, 0))
}

func TestReliableOrderedDeliversInSubmissionOrder(t *testing.T) {
	a, b, peerB, _ := newLoopbackPair(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, a.Send(peerB, 0, []byte{byte(i)}))
	}
	require.NoError(t, a.Flush())

	recv, err := b.Poll()
	require.NoError(t, err)
	require.Len(t, recv, 5)
	for i, r := range recv {
		assert.Equal(t, []byte{byte(i)}, r.Payload)
		assert.Equal(t, 0, r.Channel)
	}
}

func TestReliableMessagesRetransmitUntilAcked(t *testing.T) {
	a, b, peerB, peerA := newLoopbackPair(t)

	require.NoError(t, a.Send(peerB, 0, []byte("hello")))
	require.NoError(t, a.Flush())
	recv, err := b.Poll()
	require.NoError(t, err)
	require.Len(t, recv, 1)

	// Acks only ride on an outgoing packet, so b needs something to send
	// back (its own unreliable traffic, here) to carry the ack to a.
	require.NoError(t, b.Send(peerA, 2, []byte("pong")))
	require.NoError(t, b.Flush())
	_, err = a.Poll()
	require.NoError(t, err)

	// With no new sends, the channel queue should be drained now that the
	// original message was acked; a subsequent flush sends nothing new.
	assert.False(t, peerB.hasPending())
}

func TestReliableDeliveryOverLossyLink(t *testing.T) {
	// With a lossy link dropping packets at a fixed rate, every
	// reliable-ordered message submitted must eventually surface exactly
	// once, in submission order.
	a, b, peerB, peerA := newLoopbackPair(t)

	drop := 0
	b.SetRecvDrop(func() bool {
		drop++
		return drop%3 == 0 // deterministic 1-in-3 loss
	})

	const total = 10
	for i := 0; i < total; i++ {
		require.NoError(t, a.Send(peerB, 0, []byte{byte(i)}))
	}

	var delivered [][]byte
	for round := 0; round < 200 && len(delivered) < total; round++ {
		require.NoError(t, a.Flush())
		recv, err := b.Poll()
		require.NoError(t, err)
		for _, r := range recv {
			delivered = append(delivered, r.Payload)
		}

		// Carry acks back on b's own traffic.
		require.NoError(t, b.Send(peerA, 2, []byte("ack-carrier")))
		require.NoError(t, b.Flush())
		_, err = a.Poll()
		require.NoError(t, err)
	}

	require.Len(t, delivered, total, "every reliable message surfaces")
	for i, p := range delivered {
		assert.Equal(t, []byte{byte(i)}, p, "delivery preserves submission order")
	}
	assert.False(t, peerB.hasPending(), "acked messages leave the send queue")
}

func TestSequencedNewestWins(t *testing.T) {
	// A receiver observing ids [7, 4, 5, 8, 6] on a sequenced channel
	// delivers [7, 8] only.
	ch := newIncomingChannel(ChannelConfig{Kind: UnreliableSequenced, MaxPending: 8})

	var delivered []uint16
	for _, id := range []uint16{7, 4, 5, 8, 6} {
		for range ch.accept(id, nil) {
			delivered = append(delivered, id)
		}
	}
	assert.Equal(t, []uint16{7, 8}, delivered)
}

func TestUnreliableDeliversImmediately(t *testing.T) {
	a, b, peerB, _ := newLoopbackPair(t)
	require.NoError(t, a.Send(peerB, 2, []byte("ping")))
	require.NoError(t, a.Flush())
	recv, err := b.Poll()
	require.NoError(t, err)
	require.Len(t, recv, 1)
	assert.Equal(t, []byte("ping"), recv[0].Payload)
}

func TestReliableQueueFullReturnsError(t *testing.T) {
	ch := newOutgoingChannel(ChannelConfig{Kind: ReliableOrdered, MaxPending: 1})
	_, err := ch.enqueue([]byte("a"))
	require.NoError(t, err)
	_, err = ch.enqueue([]byte("b"))
	require.Error(t, err)
}

func TestProtocolIDMismatchSilentlyDropped(t *testing.T) {
	a, b, peerB, _ := newLoopbackPair(t)
	b.SetProtocolID(0xDEADBEEF)

	require.NoError(t, a.Send(peerB, 2, []byte("x")))
	require.NoError(t, a.Flush())
	recv, err := b.Poll()
	require.NoError(t, err)
	assert.Empty(t, recv)
}
