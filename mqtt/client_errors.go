package mqtt

import (
	"errors"
)

// Sentinel errors for connection establishment - check with errors.Is().
var (
	// ErrConnectTimeout is returned when dialing the broker exceeds the
	// configured connect timeout.
	ErrConnectTimeout = errors.New("connect timed out")

	// ErrConnectRefused is returned when the broker refuses the connection.
	ErrConnectRefused = errors.New("connect refused")
)

// Sentinel errors for the frame transport - check with errors.Is().
var (
	// ErrConnectionAborted is returned when the peer closes the stream
	// before any bytes of a frame arrived.
	ErrConnectionAborted = errors.New("connection closed by peer")

	// ErrConnectionReset is returned when the peer closes the stream in the
	// middle of a frame.
	ErrConnectionReset = errors.New("connection reset by peer")

	// ErrMalformedFrame is returned when the peer sends bytes the codec
	// cannot decode. The stream cannot be resynced after this.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Sentinel errors for the session - check with errors.Is().
var (
	// ErrHandshakeRejected is returned when the broker answers CONNECT with
	// a non-accepted return code. Extract the code with errors.As() and
	// *RejectedError.
	ErrHandshakeRejected = errors.New("handshake rejected by broker")

	// ErrUnexpectedFrame is returned when a frame other than CONNACK
	// arrives during the handshake.
	ErrUnexpectedFrame = errors.New("unexpected frame")

	// ErrNotConnected is returned when an operation requires a completed
	// handshake.
	ErrNotConnected = errors.New("not connected")

	// ErrPublishFailed is returned when writing a PUBLISH frame fails.
	ErrPublishFailed = errors.New("publish failed")
)

// Client construction errors.
var (
	// ErrInvalidClientID is returned for an empty client identifier or one
	// starting with whitespace.
	ErrInvalidClientID = errors.New("invalid client id")

	// ErrKeepAliveTooShort is returned for keep-alive intervals under 5s.
	ErrKeepAliveTooShort = errors.New("keep alive must be at least 5 seconds")
)

// RejectedError carries the broker's CONNACK return code.
// Extract with errors.As().
type RejectedError struct {
	Code ConnectReturnCode
}

func (e *RejectedError) Error() string {
	return "handshake rejected by broker: " + e.Code.String()
}

func (e *RejectedError) Unwrap() error { return ErrHandshakeRejected }

// PublishError carries the topic of a failed publish.
// Extract with errors.As().
type PublishError struct {
	Topic string
	Cause error
}

func (e *PublishError) Error() string {
	return "publish to " + e.Topic + " failed: " + e.Cause.Error()
}

func (e *PublishError) Unwrap() error { return ErrPublishFailed }
