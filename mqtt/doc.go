// Package mqtt implements a minimal, publish-only MQTT 3.1.1 client for
// pushing batches of benchmark records into a broker-backed ingestion
// endpoint.
//
// The package has three layers, leaves first:
//
//   - A frame codec: packet structs (CONNECT, CONNACK, PUBLISH, PINGREQ,
//     PINGRESP) with Encode/Decode, plus the buffer codec Decode, which
//     either consumes one complete frame, reports how many more bytes it
//     needs via *InsufficientBytesError, or fails on malformed input.
//   - Network, the frame transport: it owns the duplex stream and a
//     growable read buffer, and drives the incremental read/decode loop,
//     so a frame split across any number of partial reads decodes
//     identically to one delivered whole.
//   - Client, the session: one CONNECT/CONNACK handshake, then repeated
//     fire-and-forget publishes.
//
// Typical use:
//
//	client, err := mqtt.Dial(ctx,
//	    mqtt.WithClientID("importer-01"),
//	    mqtt.WithServer("127.0.0.1", 1883),
//	    mqtt.WithCredentials("user", "pass"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish("/benchmark/puppet", mqtt.QoSAtMostOnce, payload)
//
// Deliberate non-features: no acknowledgment tracking (QoS 1/2 are declared
// but unexercised), no reconnection, no keep-alive ping scheduling, no
// inflight windows, no subscriptions. Delivery is at most once; publish
// failures are reported to the caller, never retried here. After the
// connect timeout, no read or write deadline is armed: a silent peer can
// block the owning goroutine indefinitely.
//
// Transports other than TCP are available through WithDialer: TLS,
// WebSocket (gorilla/websocket), QUIC (quic-go), and SOCKS5 proxying.
package mqtt
