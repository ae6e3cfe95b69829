package netclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pallet-engine/pallet/internal/transport"
	"github.com/pallet-engine/pallet/pkg/netproto"
)

func TestClientSendInputIncrementsSeq(t *testing.T) {
	server, err := transport.NewEndpoint("127.0.0.1:0", DefaultChannels())
	require.NoError(t, err)
	defer server.Close()

	client, err := NewClient("127.0.0.1:0", server.LocalAddr())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.SendInput(1, 1, 0, 0, 0, 0))
	require.NoError(t, client.SendInput(2, 1, 0, 0, 0, 0))

	recv, err := server.Poll()
	require.NoError(t, err)
	require.Len(t, recv, 2) // each SendInput flushes its own packet immediately

	dec, err := netproto.Decode(recv[len(recv)-1].Payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), dec.Input.ClientSeq)
	assert.Equal(t, uint32(2), dec.Input.ClientTick)
}

func TestClientKeepsOnlyMostRecentSnapshot(t *testing.T) {
	server, err := transport.NewEndpoint("127.0.0.1:0", DefaultChannels())
	require.NoError(t, err)
	defer server.Close()

	client, err := NewClient("127.0.0.1:0", server.LocalAddr())
	require.NoError(t, err)
	defer client.Close()

	// Register the client as a peer on the server by having it send once.
	require.NoError(t, client.SendInput(1, 0, 0, 0, 0, 0))
	_, err = server.Poll()
	require.NoError(t, err)

	serverPeer := server.Connect(client.endpoint.LocalAddr())

	older, err := netproto.EncodeSnapshot(netproto.Snapshot{ServerTick: 5})
	require.NoError(t, err)
	newer, err := netproto.EncodeSnapshot(netproto.Snapshot{ServerTick: 10})
	require.NoError(t, err)

	require.NoError(t, server.Send(serverPeer, ChannelSnapshot, newer))
	require.NoError(t, server.Flush())
	updated, err := client.Poll()
	require.NoError(t, err)
	assert.True(t, updated)

	require.NoError(t, server.Send(serverPeer, ChannelSnapshot, older))
	require.NoError(t, server.Flush())
	updated, err = client.Poll()
	require.NoError(t, err)
	assert.False(t, updated)

	snap, ok := client.LatestSnapshot()
	require.True(t, ok)
	assert.Equal(t, uint32(10), snap.ServerTick)
}
