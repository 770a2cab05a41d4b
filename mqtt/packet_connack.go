package mqtt

import (
	"errors"
	"io"
)

// CONNACK packet errors.
var (
	ErrInvalidConnackFlags = errors.New("invalid CONNACK flags")
	ErrInvalidReturnCode   = errors.New("invalid CONNACK return code")
)

// ConnectReturnCode is the broker's verdict on a CONNECT request.
type ConnectReturnCode byte

// CONNACK return codes defined by MQTT 3.1.1.
const (
	CodeAccepted           ConnectReturnCode = 0
	CodeBadProtocolVersion ConnectReturnCode = 1
	CodeBadClientID        ConnectReturnCode = 2
	CodeServerUnavailable  ConnectReturnCode = 3
	CodeBadCredentials     ConnectReturnCode = 4
	CodeNotAuthorized      ConnectReturnCode = 5
)

// String returns the string representation of the return code.
func (c ConnectReturnCode) String() string {
	switch c {
	case CodeAccepted:
		return "connection accepted"
	case CodeBadProtocolVersion:
		return "unacceptable protocol version"
	case CodeBadClientID:
		return "identifier rejected"
	case CodeServerUnavailable:
		return "server unavailable"
	case CodeBadCredentials:
		return "bad user name or password"
	case CodeNotAuthorized:
		return "not authorized"
	default:
		return "unknown return code"
	}
}

// Valid returns true if the return code is one defined by the protocol.
func (c ConnectReturnCode) Valid() bool {
	return c <= CodeNotAuthorized
}

// ConnackPacket represents an MQTT CONNACK packet.
// MQTT 3.1.1 spec: Section 3.2
type ConnackPacket struct {
	// SessionPresent indicates if a session exists from a previous connection.
	SessionPresent bool

	// ReturnCode is the connection result.
	ReturnCode ConnectReturnCode
}

// Type returns the packet type.
func (p *ConnackPacket) Type() PacketType {
	return PacketCONNACK
}

// Encode writes the packet to the writer.
func (p *ConnackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	header := FixedHeader{
		PacketType:      PacketCONNACK,
		Flags:           0x00,
		RemainingLength: 2,
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	var flags byte
	if p.SessionPresent {
		flags = 0x01
	}

	n, err := w.Write([]byte{flags, byte(p.ReturnCode)})
	return total + n, err
}

// Decode reads the packet from the reader.
func (p *ConnackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketCONNACK {
		return 0, ErrInvalidPacketType
	}

	var buf [2]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return n, err
	}

	// Reserved bits of the acknowledge flags must be 0
	if buf[0]&0xFE != 0 {
		return n, ErrInvalidConnackFlags
	}

	p.SessionPresent = buf[0]&0x01 != 0
	p.ReturnCode = ConnectReturnCode(buf[1])

	if !p.ReturnCode.Valid() {
		return n, ErrInvalidReturnCode
	}

	return n, nil
}

// Validate validates the packet contents.
func (p *ConnackPacket) Validate() error {
	if !p.ReturnCode.Valid() {
		return ErrInvalidReturnCode
	}

	// Session present must be false on a rejected connection
	if p.ReturnCode != CodeAccepted && p.SessionPresent {
		return ErrInvalidConnackFlags
	}

	return nil
}
