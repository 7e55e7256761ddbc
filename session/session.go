package session

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/jpitassi/silverpop/internal/logging"
	"github.com/jpitassi/silverpop/internal/observability"
	"github.com/jpitassi/silverpop/markup"
	"github.com/jpitassi/silverpop/transport"
)

const (
	opLogin  = "login"
	opCall   = "call"
	opLogout = "logout"
)

// LogEntry records one request/response exchange.
type LogEntry struct {
	Time     time.Time
	Duration time.Duration
	Request  string
	Response string
}

func (e LogEntry) DurationSeconds() float64 {
	return e.Duration.Seconds()
}

// Session is one authenticated channel. The token is set by Login and read
// by every later request.
//
// A Session is not safe for concurrent use. Exchanges must not overlap;
// callers wanting parallel calls open independent sessions.
type Session struct {
	endpoint   string
	username   string
	password   string
	tokenParam string
	transport  transport.Poster

	token string

	logTransactions bool
	logFaults       bool
	transactions    []LogEntry
	faults          []string

	now func() time.Time
}

// New validates cfg and logs in. A failed login returns a *ConnectionError.
func New(ctx context.Context, cfg Config) (*Session, error) {
	s, err := newSession(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Login(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	poster := cfg.Transport
	if poster == nil {
		h, err := transport.NewHTTP(transport.DefaultConfig())
		if err != nil {
			return nil, err
		}
		poster = h
	}
	param := strings.TrimSpace(cfg.TokenParam)
	if param == "" {
		param = DefaultTokenParam
	}
	return &Session{
		endpoint:        strings.TrimSpace(cfg.Endpoint),
		username:        cfg.Username,
		password:        cfg.Password,
		tokenParam:      param,
		transport:       poster,
		logTransactions: cfg.LogTransactions,
		logFaults:       cfg.LogFaults,
		now:             time.Now,
	}, nil
}

// Login sends the credential envelope without a token and stores the
// SESSIONID from the reply.
func (s *Session) Login(ctx context.Context) error {
	req, err := markup.LoginRequest(s.username, s.password)
	if err != nil {
		return err
	}

	start := s.now()
	resp, err := s.transport.Post(ctx, s.endpoint, req, requestHeader())
	elapsed := s.now().Sub(start)
	if err != nil {
		observability.RecordRequest(opLogin, observability.OutcomeUnreachable, elapsed)
		logging.Warnf("session.Login unreachable endpoint=%q err=%v", s.endpoint, err)
		return &ConnectionError{Op: opLogin, Reason: ErrUnreachable, Err: err}
	}
	doc := string(resp)

	if faults := markup.FindFaults(doc); len(faults) > 0 {
		observability.RecordRequest(opLogin, observability.OutcomeFault, elapsed)
		observability.RecordFaults(opLogin, len(faults))
		logging.Warnf("session.Login rejected user=%q code=%q message=%q", s.username, faults[0].Code, faults[0].Message)
		fault := faults[0]
		return &ConnectionError{Op: opLogin, Reason: ErrRejected, Fault: &fault}
	}

	token, ok := markup.FirstElementText(doc, markup.SessionIDTag)
	if !ok || token == "" {
		observability.RecordRequest(opLogin, observability.OutcomeUnexpected, elapsed)
		logging.Warnf("session.Login no %s in response endpoint=%q bytes=%d", markup.SessionIDTag, s.endpoint, len(resp))
		return &ConnectionError{Op: opLogin, Reason: ErrUnexpectedResponse}
	}

	observability.RecordRequest(opLogin, observability.OutcomeOK, elapsed)
	s.token = token
	logging.Infof("session.Login ok user=%q endpoint=%q", s.username, s.endpoint)
	return nil
}

// SendRaw posts doc with the current token and returns the response body.
// Faults in the response are logged when fault logging is on; they are not
// errors.
func (s *Session) SendRaw(ctx context.Context, doc string) (string, error) {
	start := s.now()
	resp, err := s.transport.Post(ctx, s.target(), doc, requestHeader())
	elapsed := s.now().Sub(start)
	if err != nil {
		observability.RecordRequest(opCall, observability.OutcomeUnreachable, elapsed)
		logging.Warnf("session.SendRaw unreachable endpoint=%q err=%v", s.endpoint, err)
		return "", &ConnectionError{Op: opCall, Reason: ErrUnreachable, Err: err}
	}
	out := string(resp)

	faults := markup.FindFaults(out)
	outcome := observability.OutcomeOK
	if len(faults) > 0 {
		outcome = observability.OutcomeFault
		observability.RecordFaults(opCall, len(faults))
	}
	observability.RecordRequest(opCall, outcome, elapsed)
	logging.Debugf("session.SendRaw request_bytes=%d response_bytes=%d faults=%d took=%s", len(doc), len(resp), len(faults), elapsed)
	logging.Tracef("session.SendRaw request=%s response=%s", doc, out)

	if s.logTransactions {
		s.transactions = append(s.transactions, LogEntry{
			Time:     start,
			Duration: elapsed,
			Request:  doc,
			Response: out,
		})
	}
	if s.logFaults {
		for _, f := range faults {
			s.faults = append(s.faults, f.Message)
		}
	}
	return out, nil
}

// Logout tells the remote service the session is over and forgets the
// token. The response is ignored; only transport failures are returned.
func (s *Session) Logout(ctx context.Context) error {
	if s.token == "" {
		return nil
	}
	start := s.now()
	_, err := s.transport.Post(ctx, s.target(), markup.LogoutRequest(), requestHeader())
	elapsed := s.now().Sub(start)
	s.token = ""
	if err != nil {
		observability.RecordRequest(opLogout, observability.OutcomeUnreachable, elapsed)
		logging.Warnf("session.Logout unreachable endpoint=%q err=%v", s.endpoint, err)
		return &ConnectionError{Op: opLogout, Reason: ErrUnreachable, Err: err}
	}
	observability.RecordRequest(opLogout, observability.OutcomeOK, elapsed)
	logging.Infof("session.Logout user=%q", s.username)
	return nil
}

// target is the endpoint with the token matrix parameter, placed before any
// query string.
func (s *Session) target() string {
	if s.token == "" {
		return s.endpoint
	}
	base, query, hasQuery := strings.Cut(s.endpoint, "?")
	out := base + ";" + s.tokenParam + "=" + url.PathEscape(s.token)
	if hasQuery {
		out += "?" + query
	}
	return out
}

func requestHeader() http.Header {
	return http.Header{"Content-Type": []string{transport.ContentType}}
}

func (s *Session) Token() string { return s.token }

// EnableLogging turns on both the transaction and the fault log.
func (s *Session) EnableLogging() {
	s.logTransactions = true
	s.logFaults = true
}

func (s *Session) SetTransactionLogging(on bool) { s.logTransactions = on }
func (s *Session) SetFaultLogging(on bool)       { s.logFaults = on }

// TransactionLog returns a copy of the recorded exchanges, oldest first.
func (s *Session) TransactionLog() []LogEntry {
	return slices.Clone(s.transactions)
}

// FaultLog returns a copy of the recorded fault messages, oldest first.
func (s *Session) FaultLog() []string {
	return slices.Clone(s.faults)
}
