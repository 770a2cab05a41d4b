package mqtt

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConn serves a fixed sequence of read chunks, then a final error.
// Writes are collected. A chunk larger than the read request is split, the
// remainder served on the next call, as a real socket would.
type scriptedConn struct {
	chunks  [][]byte
	readErr error
	writes  bytes.Buffer
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.readErr != nil {
			return 0, c.readErr
		}
		return 0, io.EOF
	}

	n := copy(p, c.chunks[0])
	if n == len(c.chunks[0]) {
		c.chunks = c.chunks[1:]
	} else {
		c.chunks[0] = c.chunks[0][n:]
	}
	return n, nil
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	return c.writes.Write(p)
}

func TestNetworkReadPacketWholeFrame(t *testing.T) {
	frame := encodePacket(t, &PublishPacket{Topic: "/db/table", Payload: []byte("r1")})
	conn := &scriptedConn{chunks: [][]byte{frame}}

	network := NewNetwork(conn, 0)
	packet, err := network.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, "/db/table", packet.(*PublishPacket).Topic)
	assert.Equal(t, int64(len(frame)), network.BytesRead())
}

func TestNetworkReadPacketSplitFrame(t *testing.T) {
	frame := encodePacket(t, &PublishPacket{
		Topic:   "/benchmark/puppet",
		Payload: bytes.Repeat([]byte("z"), 300),
	})

	// A frame split at every possible point decodes identically to one
	// delivered whole.
	for cut := 1; cut < len(frame); cut++ {
		conn := &scriptedConn{chunks: [][]byte{frame[:cut], frame[cut:]}}
		network := NewNetwork(conn, 0)

		packet, err := network.ReadPacket()
		require.NoError(t, err, "split at %d", cut)
		publish := packet.(*PublishPacket)
		assert.Equal(t, "/benchmark/puppet", publish.Topic)
		assert.Len(t, publish.Payload, 300)
	}
}

func TestNetworkReadPacketByteAtATime(t *testing.T) {
	frame := encodePacket(t, &ConnackPacket{ReturnCode: CodeAccepted})

	var chunks [][]byte
	for _, b := range frame {
		chunks = append(chunks, []byte{b})
	}

	network := NewNetwork(&scriptedConn{chunks: chunks}, 0)
	packet, err := network.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, PacketCONNACK, packet.Type())
}

func TestNetworkReadPacketCoalescedFrames(t *testing.T) {
	first := encodePacket(t, &PublishPacket{Topic: "a", Payload: []byte("1")})
	second := encodePacket(t, &PublishPacket{Topic: "b", Payload: []byte("2")})

	// Both frames may arrive in one read; the second must survive in the
	// buffer after the first is consumed.
	conn := &scriptedConn{chunks: [][]byte{append(append([]byte{}, first...), second...)}}
	network := NewNetwork(conn, 0)

	packet, err := network.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, "a", packet.(*PublishPacket).Topic)

	packet, err = network.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, "b", packet.(*PublishPacket).Topic)
}

func TestNetworkConnectionAborted(t *testing.T) {
	// Peer closed cleanly between frames: nothing buffered.
	network := NewNetwork(&scriptedConn{}, 0)
	_, err := network.ReadPacket()
	assert.ErrorIs(t, err, ErrConnectionAborted)
}

func TestNetworkConnectionReset(t *testing.T) {
	frame := encodePacket(t, &PublishPacket{Topic: "/db/table", Payload: []byte("r1")})

	// Peer vanished mid-frame: a partial frame is pending.
	conn := &scriptedConn{chunks: [][]byte{frame[:3]}}
	network := NewNetwork(conn, 0)
	_, err := network.ReadPacket()
	assert.ErrorIs(t, err, ErrConnectionReset)
}

func TestNetworkMalformedFrame(t *testing.T) {
	conn := &scriptedConn{chunks: [][]byte{{0x00, 0x00}}}
	network := NewNetwork(conn, 0)

	_, err := network.ReadPacket()
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestNetworkPacketTooLarge(t *testing.T) {
	frame := encodePacket(t, &PublishPacket{
		Topic:   "/db/table",
		Payload: bytes.Repeat([]byte("x"), 512),
	})

	network := NewNetwork(&scriptedConn{chunks: [][]byte{frame}}, 64)
	_, err := network.ReadPacket()
	require.ErrorIs(t, err, ErrMalformedFrame)
	assert.Contains(t, err.Error(), "maximum size")
}

func TestNetworkWritePacket(t *testing.T) {
	conn := &scriptedConn{}
	network := NewNetwork(conn, 0)

	publish := &PublishPacket{Topic: "/db/table", Payload: []byte("r1\nr2")}
	require.NoError(t, network.WritePacket(publish))

	want := encodePacket(t, publish)
	assert.Equal(t, want, conn.writes.Bytes())
	assert.Equal(t, int64(len(want)), network.BytesWritten())
}

func TestNetworkWriteEmptyPayload(t *testing.T) {
	conn := &scriptedConn{}
	network := NewNetwork(conn, 0)

	// An empty payload still produces a valid frame carrying the topic.
	require.NoError(t, network.WritePacket(&PublishPacket{Topic: "/db/table"}))
	assert.NotZero(t, conn.writes.Len())

	packet, _, err := Decode(conn.writes.Bytes(), 0)
	require.NoError(t, err)
	publish := packet.(*PublishPacket)
	assert.Equal(t, "/db/table", publish.Topic)
	assert.Empty(t, publish.Payload)
}
