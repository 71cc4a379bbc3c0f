package hmr

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalChannelSendDeliversToListeners(t *testing.T) {
	ch := NewLocalChannel()
	var received Payload
	ch.On("message", func(p Payload) { received = p })

	ch.Send(Payload{Kind: PayloadFullReload, Path: "/a.js"})
	require.Equal(t, PayloadFullReload, received.Kind)
	require.Equal(t, "/a.js", received.Path)
}

func TestLocalChannelOffRemovesListener(t *testing.T) {
	ch := NewLocalChannel()
	var calls atomic.Int64
	id := ch.On("message", func(Payload) { calls.Add(1) })
	ch.Off("message", id)

	ch.Send(Payload{Kind: PayloadPrune})
	require.Equal(t, int64(0), calls.Load())
}

func TestLocalChannelSendAfterCloseIsNoop(t *testing.T) {
	ch := NewLocalChannel()
	var calls atomic.Int64
	ch.On("message", func(Payload) { calls.Add(1) })
	require.NoError(t, ch.Close())

	ch.Send(Payload{Kind: PayloadUpdate})
	require.Equal(t, int64(0), calls.Load())
}

func TestBroadcasterSendFansOutToAllChannels(t *testing.T) {
	a, b := NewLocalChannel(), NewLocalChannel()
	var aGot, bGot atomic.Int64
	a.On("message", func(Payload) { aGot.Add(1) })
	b.On("message", func(Payload) { bGot.Add(1) })

	br := NewBroadcaster(a, b)
	br.Send(Payload{Kind: PayloadFullReload})

	require.Equal(t, int64(1), aGot.Load())
	require.Equal(t, int64(1), bGot.Load())
}

func TestBroadcasterListenFiresOnReadyOnceAllChannelsReady(t *testing.T) {
	a, b := NewLocalChannel(), NewLocalChannel()
	br := NewBroadcaster(a, b)

	var ready atomic.Bool
	err := br.Listen(func(Payload) { ready.Store(true) })
	require.NoError(t, err)
	require.True(t, ready.Load())
}

func TestBroadcasterAddIncludesNewChannelInSend(t *testing.T) {
	a := NewLocalChannel()
	br := NewBroadcaster(a)

	b := NewLocalChannel()
	var bGot atomic.Int64
	b.On("message", func(Payload) { bGot.Add(1) })
	br.Add(b)

	br.Send(Payload{Kind: PayloadCustom, Event: "ping"})
	require.Equal(t, int64(1), bGot.Load())
}
