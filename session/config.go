package session

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jpitassi/silverpop/transport"
)

// DefaultTokenParam is the matrix parameter carrying the session token.
// The hosted API reads ";jsessionid=<token>"; set Config.TokenParam to
// "token" for servers expecting ";token=<token>".
const DefaultTokenParam = "jsessionid"

// Config defines one session's endpoint, credentials and logging switches.
type Config struct {
	Endpoint string
	Username string
	Password string
	// TokenParam names the matrix parameter; DefaultTokenParam when empty.
	TokenParam string
	// Transport defaults to transport.NewHTTP(transport.DefaultConfig()).
	Transport       transport.Poster
	LogTransactions bool
	LogFaults       bool
}

func (c Config) Validate() error {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		return ErrEndpointRequired
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	if strings.TrimSpace(c.Username) == "" {
		return ErrUsernameRequired
	}
	return nil
}
