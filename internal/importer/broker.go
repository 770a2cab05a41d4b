package importer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidEndpoint is returned for endpoint parts that do not parse.
var ErrInvalidEndpoint = errors.New("invalid endpoint part")

// Endpoint is a parsed "user:password@host:port" part. Passwords may
// contain ':' and '@'; the username ends at the first ':' and the address
// starts after the last '@'.
type Endpoint struct {
	Username string
	Password string
	Host     string
	Port     uint16
}

// ParseEndpoint parses an endpoint part.
func ParseEndpoint(part string) (Endpoint, error) {
	colon := strings.Index(part, ":")
	at := strings.LastIndex(part, "@")
	if colon < 0 || at < 0 || colon > at {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidEndpoint, part)
	}

	host, portText, found := strings.Cut(part[at+1:], ":")
	if !found || host == "" {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidEndpoint, part)
	}

	port, err := strconv.ParseUint(portText, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: bad port in %q", ErrInvalidEndpoint, part)
	}

	return Endpoint{
		Username: part[:colon],
		Password: part[colon+1 : at],
		Host:     host,
		Port:     uint16(port),
	}, nil
}

// PostgresURI renders the endpoint as a postgres connection URI for the
// given database.
func (e Endpoint) PostgresURI(database string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", e.Username, e.Password, e.Host, e.Port, database)
}
