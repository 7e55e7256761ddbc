// Package transport owns the HTTP POST boundary used by sessions.
//
// Ownership boundary:
// - connection and TLS policy
// - bounded response reads
//
// A transport never inspects response content. Any HTTP status yields the
// body; only failures to exchange bytes are errors.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// MaxResponseSize is the default bound on response body reads.
const MaxResponseSize int64 = 64 << 20

const ContentType = "text/xml;charset=UTF-8"

var (
	ErrUnreachable    = errors.New("transport: endpoint unreachable")
	ErrInvalidTimeout = errors.New("transport: invalid timeout")
	ErrCAFileRead     = errors.New("transport: ca file unreadable")
	ErrInvalidLimit   = errors.New("transport: invalid response size limit")
	ErrTooLarge       = errors.New("transport: response too large")
)

// Poster sends one request body and returns the raw response body.
type Poster interface {
	Post(ctx context.Context, url string, body string, header http.Header) ([]byte, error)
}

// PosterFunc adapts a function into a Poster.
type PosterFunc func(ctx context.Context, url string, body string, header http.Header) ([]byte, error)

func (f PosterFunc) Post(ctx context.Context, url string, body string, header http.Header) ([]byte, error) {
	return f(ctx, url, body, header)
}

// Config defines HTTP transport behavior.
type Config struct {
	Timeout time.Duration
	// InsecureSkipVerify disables server certificate checks. The hosted API
	// endpoints have historically been called this way, so it is the default.
	InsecureSkipVerify bool
	CAFile             string
	UserAgent          string
	// MaxResponseSize caps the body read per response; zero means
	// MaxResponseSize. Larger bodies fail with ErrTooLarge.
	MaxResponseSize int64
}

func DefaultConfig() Config {
	return Config{
		Timeout:            60 * time.Second,
		InsecureSkipVerify: true,
		UserAgent:          "silverpop-go",
		MaxResponseSize:    MaxResponseSize,
	}
}

func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Timeout)
	}
	if c.MaxResponseSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, c.MaxResponseSize)
	}
	if path := strings.TrimSpace(c.CAFile); path != "" {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %v", ErrCAFileRead, err)
		}
	}
	return nil
}

// HTTP posts over net/http.
type HTTP struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// NewHTTP builds a transport from cfg.
func NewHTTP(cfg Config) (*HTTP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tlsConfig, err := clientTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = tlsConfig
	maxBody := cfg.MaxResponseSize
	if maxBody == 0 {
		maxBody = MaxResponseSize
	}
	return &HTTP{
		client:    &http.Client{Timeout: cfg.Timeout, Transport: base},
		userAgent: cfg.UserAgent,
		maxBody:   maxBody,
	}, nil
}

func clientTLSConfig(cfg Config) (*tls.Config, error) {
	out := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}
	path := strings.TrimSpace(cfg.CAFile)
	if path == "" {
		return out, nil
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCAFileRead, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: no certificates in %s", ErrCAFileRead, path)
	}
	out.RootCAs = pool
	return out, nil
}

func (h *HTTP) Post(ctx context.Context, url string, body string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", ContentType)
	}
	if h.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}
	if int64(len(data)) > h.maxBody {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, h.maxBody)
	}
	return data, nil
}
