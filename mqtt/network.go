package mqtt

import (
	"errors"
	"fmt"
	"io"
)

// readBufferCapacity is the initial capacity of the frame read buffer.
// The buffer grows without bound as partial frames accumulate.
const readBufferCapacity = 4 * 1024

// Network frames a raw duplex byte stream into MQTT packets.
//
// It owns a growable read buffer holding exactly the bytes received from the
// stream that have not yet been consumed by a successful decode. A Network
// is owned by a single goroutine; it is not safe for concurrent use.
type Network struct {
	conn          io.ReadWriter
	buf           []byte
	maxPacketSize uint32

	bytesRead    int64
	bytesWritten int64
}

// NewNetwork wraps an already-connected duplex stream.
// If maxPacketSize is greater than 0 it bounds the remaining length of
// incoming packets.
func NewNetwork(conn io.ReadWriter, maxPacketSize uint32) *Network {
	return &Network{
		conn:          conn,
		buf:           make([]byte, 0, readBufferCapacity),
		maxPacketSize: maxPacketSize,
	}
}

// ReadPacket reads exactly one packet from the stream.
//
// It retries decoding against the buffered bytes, issuing one blocking read
// per attempt for the number of bytes the codec reports missing. A packet
// split across any number of partial reads decodes identically to one
// delivered whole; ReadPacket never returns a partially decoded result.
//
// Stream closure maps to two distinct errors: ErrConnectionAborted when the
// buffer held nothing (the peer closed between frames), ErrConnectionReset
// when a partial frame was pending (the peer vanished mid-frame). Malformed
// bytes fail immediately with ErrMalformedFrame; the stream cannot be
// resynced after that.
func (n *Network) ReadPacket() (Packet, error) {
	for {
		packet, consumed, err := Decode(n.buf, n.maxPacketSize)
		if err == nil {
			// Drop exactly the consumed prefix, keeping buffer capacity.
			remaining := copy(n.buf, n.buf[consumed:])
			n.buf = n.buf[:remaining]
			return packet, nil
		}

		var insufficient *InsufficientBytesError
		if !errors.As(err, &insufficient) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}

		if err := n.readMore(insufficient.Needed); err != nil {
			return nil, err
		}
	}
}

// readMore performs exactly one blocking read requesting up to required
// bytes and appends whatever arrived to the buffer.
func (n *Network) readMore(required int) error {
	scratch := make([]byte, required)
	read, err := n.conn.Read(scratch)
	if read > 0 {
		n.buf = append(n.buf, scratch[:read]...)
		n.bytesRead += int64(read)
		return nil
	}

	if err == nil {
		// A zero-byte read without an error; treat the next read as progress.
		return nil
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if len(n.buf) == 0 {
			return ErrConnectionAborted
		}
		return ErrConnectionReset
	}

	return err
}

// WritePacket encodes the packet into a scratch buffer and writes all bytes
// to the stream. A packet that encodes to zero bytes is a no-op.
func (n *Network) WritePacket(packet Packet) error {
	scratch := getBytesBuffer()
	defer putBytesBuffer(scratch)

	if _, err := packet.Encode(scratch); err != nil {
		return err
	}

	if scratch.Len() == 0 {
		return nil
	}

	written, err := n.conn.Write(scratch.Bytes())
	n.bytesWritten += int64(written)
	return err
}

// BytesRead returns the total bytes consumed from the stream.
func (n *Network) BytesRead() int64 {
	return n.bytesRead
}

// BytesWritten returns the total bytes written to the stream.
func (n *Network) BytesWritten() int64 {
	return n.bytesWritten
}
