package mqtt

import (
	"time"
)

// Defaults for client options.
const (
	// DefaultKeepAlive is the default keep-alive interval.
	DefaultKeepAlive = 60 * time.Second

	// DefaultMaxPacketSize is the default bound on incoming packets.
	DefaultMaxPacketSize = 10 * 1024

	// DefaultConnectTimeout is the default bound on the initial dial.
	DefaultConnectTimeout = 5 * time.Second

	// minKeepAlive is the lowest accepted keep-alive interval.
	minKeepAlive = 5 * time.Second
)

// clientOptions holds configuration for a Client. Immutable once the
// client is constructed.
type clientOptions struct {
	// Connection settings
	clientID     string
	host         string
	port         uint16
	keepAlive    time.Duration
	cleanSession bool

	// Credentials
	username string
	password []byte

	// Will message
	willTopic   string
	willPayload []byte
	willQoS     byte
	willRetain  bool

	// Limits
	maxPacketSize  uint32
	connectTimeout time.Duration

	// Collaborators
	dialer  Dialer
	logger  Logger
	metrics Metrics
}

// defaultOptions returns options with the documented defaults.
func defaultOptions() *clientOptions {
	return &clientOptions{
		keepAlive:      DefaultKeepAlive,
		cleanSession:   true,
		maxPacketSize:  DefaultMaxPacketSize,
		connectTimeout: DefaultConnectTimeout,
		logger:         NewNoOpLogger(),
		metrics:        &NoOpMetrics{},
	}
}

// Option configures a Client.
type Option func(*clientOptions)

// WithClientID sets the client identifier. Required: it must be non-empty
// and must not start with whitespace.
func WithClientID(id string) Option {
	return func(o *clientOptions) {
		o.clientID = id
	}
}

// WithServer sets the broker host and port.
func WithServer(host string, port uint16) Option {
	return func(o *clientOptions) {
		o.host = host
		o.port = port
	}
}

// WithCredentials sets the username and password for authentication.
func WithCredentials(username, password string) Option {
	return func(o *clientOptions) {
		o.username = username
		o.password = []byte(password)
	}
}

// WithKeepAlive sets the keep-alive interval advertised in CONNECT.
// Must be at least 5 seconds. The client never schedules PINGREQ itself;
// the interval only tells the broker when to consider the session dead.
func WithKeepAlive(d time.Duration) Option {
	return func(o *clientOptions) {
		o.keepAlive = d
	}
}

// WithCleanSession sets whether the broker should discard prior session
// state. Default true.
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) {
		o.cleanSession = clean
	}
}

// WithWill sets the message the broker publishes if the client disconnects
// uncleanly.
func WithWill(topic string, payload []byte, qos byte, retain bool) Option {
	return func(o *clientOptions) {
		o.willTopic = topic
		o.willPayload = payload
		o.willQoS = qos
		o.willRetain = retain
	}
}

// WithMaxPacketSize bounds the remaining length of incoming packets.
// Default 10 KiB.
func WithMaxPacketSize(size uint32) Option {
	return func(o *clientOptions) {
		o.maxPacketSize = size
	}
}

// WithConnectTimeout bounds the initial dial. Default 5s. No read or write
// deadline exists after the connection is established.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.connectTimeout = d
	}
}

// WithDialer sets the transport used to reach the broker. Default is plain
// TCP; TLS, WebSocket, QUIC and SOCKS5 dialers are available.
func WithDialer(d Dialer) Option {
	return func(o *clientOptions) {
		o.dialer = d
	}
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector. Default is a no-op collector.
func WithMetrics(m Metrics) Option {
	return func(o *clientOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// applyOptions applies all options to the default options.
func applyOptions(opts ...Option) *clientOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}
