package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/proxy"
)

// ProxyDialer connects to brokers through a SOCKS5 proxy, for benchmark
// runs against endpoints that are only reachable through a bastion.
type ProxyDialer struct {
	proxyAddr string
	auth      *proxy.Auth
	forward   net.Dialer
}

// NewProxyDialer creates a dialer for the given socks5:// proxy URL.
// Credentials may be carried in the URL userinfo.
func NewProxyDialer(proxyURL string) (*ProxyDialer, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}

	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "1080")
	}

	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{
			User:     u.User.Username(),
			Password: password,
		}
	}

	return &ProxyDialer{
		proxyAddr: addr,
		auth:      auth,
	}, nil
}

// Dial connects to the target address through the proxy.
func (d *ProxyDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	dialer, err := proxy.SOCKS5("tcp", d.proxyAddr, d.auth, &d.forward)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	ctxDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return dialer.Dial("tcp", address)
	}
	return ctxDialer.DialContext(ctx, "tcp", address)
}
