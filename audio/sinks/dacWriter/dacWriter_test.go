package dacWriter

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/dh1tw/edgeAudio/dac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaySendsPackets(t *testing.T) {
	l, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	w, err := NewDacWriter(Address(l.LocalAddr().String()), Pace(false), SSRC(7))
	require.NoError(t, err)
	defer w.Close()

	ulaw := bytes.Repeat([]byte{0x11}, dac.PayloadSize+1)
	require.NoError(t, w.Play(context.Background(), ulaw))

	buf := make([]byte, 2048)
	for i := 0; i < 2; i++ {
		l.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := l.ReadFrom(buf)
		require.NoError(t, err)
		require.Equal(t, dac.PacketSize, n)

		pkt, err := dac.Parse(buf[:n])
		require.NoError(t, err)
		assert.Equal(t, uint32(i), pkt.Counter)
	}
}

func TestHeartbeat(t *testing.T) {
	l, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	w, err := NewDacWriter(Address(l.LocalAddr().String()), Pace(false), RequireSync(true))
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, dac.Unsynced, w.SyncState())

	_, err = l.WriteTo([]byte{0x01}, w.LocalAddr())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return w.SyncState() == dac.Synced
	}, 2*time.Second, 5*time.Millisecond)

	// unsynced (but not lost) still plays
	assert.NoError(t, w.Play(context.Background(), []byte{0xFF}))
}

func TestPacketDuration(t *testing.T) {
	assert.Equal(t, 40*time.Millisecond, packetDuration)
}

func TestCloseTwice(t *testing.T) {
	w, err := NewDacWriter(Address("127.0.0.1:9"), Pace(false))
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
