package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// SessionState tracks where a client is in its lifecycle. A client moves
// strictly forward: Disconnected, Connecting, Handshaking, Connected, then
// Closed or Errored. Closed and Errored are terminal; clients are not
// reused or pooled.
type SessionState int

const (
	// StateDisconnected is the initial state, before any socket activity.
	StateDisconnected SessionState = iota
	// StateConnecting means the stream is open but CONNECT was not sent yet.
	StateConnecting
	// StateHandshaking means CONNECT was written and CONNACK is pending.
	StateHandshaking
	// StateConnected means the broker accepted the session.
	StateConnected
	// StateClosed means the client was closed by its owner.
	StateClosed
	// StateErrored means the handshake or stream failed. Terminal.
	StateErrored
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ErrNoBrokerAddress is returned when no broker host was configured.
var ErrNoBrokerAddress = errors.New("no broker address configured")

// Client is a publish-only MQTT 3.1.1 session. It performs the
// CONNECT/CONNACK handshake once, then writes PUBLISH frames at the
// fire-and-forget quality level. There is no acknowledgment tracking,
// reconnection, keep-alive scheduling, or subscription handling; delivery
// is at most once and any retry policy belongs to the caller.
//
// A Client is owned by a single goroutine and must not be shared.
type Client struct {
	options *clientOptions
	logger  Logger

	conn    net.Conn
	network *Network
	state   SessionState

	packetsSent    Counter
	bytesSent      Counter
	publishErrors  Counter
	publishLatency Histogram
}

// NewClient validates the options and constructs a client. It performs no
// socket activity: an empty client identifier or one starting with
// whitespace fails here, before any connection is attempted.
func NewClient(opts ...Option) (*Client, error) {
	options := applyOptions(opts...)

	if options.clientID == "" || strings.HasPrefix(options.clientID, " ") {
		return nil, ErrInvalidClientID
	}
	if options.keepAlive < minKeepAlive {
		return nil, ErrKeepAliveTooShort
	}
	if options.host == "" {
		return nil, ErrNoBrokerAddress
	}

	labels := MetricLabels{LabelClientID: options.clientID}

	return &Client{
		options:        options,
		logger:         options.logger.WithFields(Fields{LogFieldClientID: options.clientID}),
		state:          StateDisconnected,
		packetsSent:    options.metrics.Counter(MetricPacketsSent, labels),
		bytesSent:      options.metrics.Counter(MetricBytesSent, labels),
		publishErrors:  options.metrics.Counter(MetricPublishErrors, labels),
		publishLatency: options.metrics.Histogram(MetricPublishLatency, labels),
	}, nil
}

// Dial constructs a client, opens the stream, and completes the handshake.
func Dial(ctx context.Context, opts ...Option) (*Client, error) {
	client, err := NewClient(opts...)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	if _, err := client.Handshake(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// State returns the current session state.
func (c *Client) State() SessionState {
	return c.state
}

// Connect resolves the broker address and opens the stream under the
// configured connect timeout. On failure the state remains Disconnected
// and the error wraps ErrConnectTimeout or ErrConnectRefused where the
// cause can be classified.
func (c *Client) Connect(ctx context.Context) error {
	if c.state != StateDisconnected {
		return fmt.Errorf("connect in state %s", c.state)
	}

	address := net.JoinHostPort(c.options.host, strconv.Itoa(int(c.options.port)))

	dialer := c.options.dialer
	if dialer == nil {
		dialer = &TCPDialer{Timeout: c.options.connectTimeout}
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.options.connectTimeout)
	defer cancel()

	conn, err := dialer.Dial(dialCtx, address)
	if err != nil {
		return classifyDialError(err)
	}

	c.conn = conn
	c.network = NewNetwork(conn, c.options.maxPacketSize)
	c.state = StateConnecting

	c.logger.Debug("stream opened", Fields{LogFieldBroker: address})
	return nil
}

// classifyDialError maps dial failures onto the connect error taxonomy.
func classifyDialError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", ErrConnectRefused, err)
	}
	return err
}

// Handshake writes a CONNECT frame built from the options and reads exactly
// one frame back, expecting a CONNACK.
//
// An accepted CONNACK transitions the session to Connected and is returned.
// Any other return code fails with a *RejectedError carrying that code; a
// frame of a different type fails with ErrUnexpectedFrame. Both leave the
// session in the terminal Errored state; there is no retry.
func (c *Client) Handshake() (*ConnackPacket, error) {
	if c.state != StateConnecting {
		return nil, ErrNotConnected
	}
	c.state = StateHandshaking

	connect := &ConnectPacket{
		ClientID:     c.options.clientID,
		CleanSession: c.options.cleanSession,
		KeepAlive:    uint16(c.options.keepAlive / time.Second),
		Username:     c.options.username,
		Password:     c.options.password,
	}

	if c.options.willTopic != "" {
		connect.WillFlag = true
		connect.WillTopic = c.options.willTopic
		connect.WillPayload = c.options.willPayload
		connect.WillQoS = c.options.willQoS
		connect.WillRetain = c.options.willRetain
	}

	if err := c.network.WritePacket(connect); err != nil {
		c.state = StateErrored
		return nil, err
	}
	c.packetsSent.Inc()

	packet, err := c.network.ReadPacket()
	if err != nil {
		c.state = StateErrored
		return nil, err
	}

	connack, ok := packet.(*ConnackPacket)
	if !ok {
		c.state = StateErrored
		return nil, fmt.Errorf("%w: expected CONNACK, got %s", ErrUnexpectedFrame, packet.Type())
	}

	if connack.ReturnCode != CodeAccepted {
		c.state = StateErrored
		c.logger.Warn("broker rejected session", Fields{
			LogFieldReturnCode: connack.ReturnCode.String(),
		})
		return nil, &RejectedError{Code: connack.ReturnCode}
	}

	c.state = StateConnected
	c.logger.Debug("session established", Fields{
		"session_present": connack.SessionPresent,
	})
	return connack, nil
}

// Publish writes one PUBLISH frame and returns when the write completes.
// Only the fire-and-forget quality level is supported: no packet identifier
// is allocated and no acknowledgment is awaited. An empty payload still
// emits a valid frame carrying just the topic.
//
// A failed publish wraps ErrPublishFailed and does not change the session
// state; the caller decides whether to continue.
func (c *Client) Publish(topic string, qos byte, payload []byte) error {
	if c.state != StateConnected {
		return ErrNotConnected
	}

	publish := &PublishPacket{
		Topic:   topic,
		QoS:     qos,
		Payload: payload,
	}

	start := time.Now()
	before := c.network.BytesWritten()

	if err := c.network.WritePacket(publish); err != nil {
		c.publishErrors.Inc()
		return &PublishError{Topic: topic, Cause: err}
	}

	c.packetsSent.Inc()
	c.bytesSent.Add(float64(c.network.BytesWritten() - before))
	c.publishLatency.ObserveDuration(time.Since(start))
	return nil
}

// Close closes the underlying stream. The client cannot be reused.
func (c *Client) Close() error {
	if c.state == StateClosed {
		return nil
	}

	c.state = StateClosed
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
