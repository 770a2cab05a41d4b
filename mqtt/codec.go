package mqtt

import (
	"errors"
	"fmt"
	"io"
)

// Codec errors.
var (
	ErrPacketTooLarge           = errors.New("mqtt: packet exceeds maximum size")
	ErrUnknownPacketType        = errors.New("mqtt: unknown packet type")
	ErrMalformedRemainingLength = errors.New("mqtt: remaining length inconsistent with packet body")
)

// InsufficientBytesError reports that a buffer holds only part of a frame.
// Needed is the number of additional bytes required before another decode
// attempt can make progress.
type InsufficientBytesError struct {
	Needed int
}

func (e *InsufficientBytesError) Error() string {
	return fmt.Sprintf("mqtt: insufficient bytes, need %d more", e.Needed)
}

// needMore constructs an InsufficientBytesError, asking for at least one byte.
func needMore(n int) error {
	if n < 1 {
		n = 1
	}
	return &InsufficientBytesError{Needed: n}
}

// Decode decodes exactly one packet from the front of buf.
//
// On success it returns the packet and the number of bytes consumed. When buf
// holds only part of a frame it returns an *InsufficientBytesError telling
// the caller how many more bytes to fetch; buf is left untouched. Any other
// error means the bytes are malformed and the stream cannot be resynced.
//
// If maxSize is greater than 0, frames whose remaining length exceeds it
// return ErrPacketTooLarge.
func Decode(buf []byte, maxSize uint32) (Packet, int, error) {
	// Fixed header needs at least the type byte and one length byte.
	if len(buf) < 2 {
		return nil, 0, needMore(2 - len(buf))
	}

	header := FixedHeader{
		PacketType: PacketType(buf[0] >> 4),
		Flags:      buf[0] & 0x0F,
	}

	if !header.PacketType.Valid() {
		return nil, 0, ErrUnknownPacketType
	}

	remaining, varintLen, err := decodeVarintBuf(buf[1:])
	if err != nil {
		if errors.Is(err, errIncompleteVarint) {
			return nil, 0, needMore(1)
		}
		return nil, 0, err
	}
	header.RemainingLength = remaining

	if maxSize > 0 && remaining > maxSize {
		return nil, 0, ErrPacketTooLarge
	}

	headerLen := 1 + varintLen
	frameLen := headerLen + int(remaining)
	if len(buf) < frameLen {
		return nil, 0, needMore(frameLen - len(buf))
	}

	if err := header.ValidateFlags(); err != nil {
		return nil, 0, err
	}

	packet, err := newPacket(header.PacketType)
	if err != nil {
		return nil, 0, err
	}

	body := newBytesReader(buf[headerLen:frameLen])
	if _, err := packet.Decode(body, header); err != nil {
		return nil, 0, err
	}

	return packet, frameLen, nil
}

// errIncompleteVarint marks a variable byte integer cut off by the end of
// the buffer, as opposed to one that is malformed.
var errIncompleteVarint = errors.New("mqtt: incomplete variable byte integer")

// decodeVarintBuf decodes a variable byte integer from the front of buf.
func decodeVarintBuf(buf []byte) (uint32, int, error) {
	var value uint32
	var multiplier uint32 = 1

	for i := 0; ; i++ {
		if i >= 4 {
			return 0, i, ErrVarintMalformed
		}
		if i >= len(buf) {
			return 0, i, errIncompleteVarint
		}

		encodedByte := buf[i]
		value += uint32(encodedByte&varintValueMask) * multiplier

		if value > maxVarint {
			return 0, i + 1, ErrVarintTooLarge
		}

		if encodedByte&varintContinueBit == 0 {
			return value, i + 1, nil
		}

		multiplier *= 128
	}
}

// newPacket returns a zero packet value for the given type.
func newPacket(t PacketType) (Packet, error) {
	switch t {
	case PacketCONNECT:
		return &ConnectPacket{}, nil
	case PacketCONNACK:
		return &ConnackPacket{}, nil
	case PacketPUBLISH:
		return &PublishPacket{}, nil
	case PacketPINGREQ:
		return &PingreqPacket{}, nil
	case PacketPINGRESP:
		return &PingrespPacket{}, nil
	default:
		return nil, ErrUnknownPacketType
	}
}

// ReadPacket reads a complete MQTT packet from the reader.
// If maxSize is greater than 0, packets larger than maxSize return
// ErrPacketTooLarge. Intended for callers that own a blocking stream and
// want one packet per call; the incremental buffer path lives in Network.
func ReadPacket(r io.Reader, maxSize uint32) (Packet, int, error) {
	var header FixedHeader
	n, err := header.Decode(r)
	if err != nil {
		return nil, n, err
	}

	if maxSize > 0 && header.RemainingLength > maxSize {
		return nil, n, ErrPacketTooLarge
	}

	remaining := make([]byte, header.RemainingLength)
	if header.RemainingLength > 0 {
		rn, err := io.ReadFull(r, remaining)
		n += rn
		if err != nil {
			return nil, n, err
		}
	}

	if err := header.ValidateFlags(); err != nil {
		return nil, n, err
	}

	packet, err := newPacket(header.PacketType)
	if err != nil {
		return nil, n, err
	}

	if _, err := packet.Decode(newBytesReader(remaining), header); err != nil {
		return nil, n, err
	}

	return packet, n, nil
}

// WritePacket writes a complete MQTT packet to the writer.
func WritePacket(w io.Writer, packet Packet, maxSize uint32) (int, error) {
	if err := packet.Validate(); err != nil {
		return 0, err
	}

	if maxSize > 0 {
		buf := getBytesBuffer()
		defer putBytesBuffer(buf)

		n, err := packet.Encode(buf)
		if err != nil {
			return 0, err
		}
		if uint32(n) > maxSize {
			return 0, ErrPacketTooLarge
		}
		return w.Write(buf.Bytes())
	}

	return packet.Encode(w)
}

// bytesReader wraps a byte slice for the io.Reader interface.
type bytesReader struct {
	data []byte
	pos  int
}

func newBytesReader(data []byte) *bytesReader {
	return &bytesReader{data: data}
}

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// bytesBuffer is a simple buffer for encoding.
type bytesBuffer struct {
	data []byte
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *bytesBuffer) WriteByte(c byte) error {
	b.data = append(b.data, c)
	return nil
}

func (b *bytesBuffer) Bytes() []byte {
	return b.data
}

func (b *bytesBuffer) Len() int {
	return len(b.data)
}

func (b *bytesBuffer) Reset() {
	b.data = b.data[:0]
}
