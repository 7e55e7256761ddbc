package session

import (
	"errors"
	"strings"

	"github.com/jpitassi/silverpop/markup"
)

var (
	ErrEndpointRequired = errors.New("session: endpoint required")
	ErrInvalidEndpoint  = errors.New("session: invalid endpoint")
	ErrUsernameRequired = errors.New("session: username required")

	ErrUnreachable        = errors.New("session: endpoint unreachable")
	ErrRejected           = errors.New("session: remote rejected credentials")
	ErrUnexpectedResponse = errors.New("session: unexpected response shape")
)

// ConnectionError reports a failed exchange with the endpoint. Reason is one
// of ErrUnreachable, ErrRejected or ErrUnexpectedResponse.
type ConnectionError struct {
	Op     string
	Reason error
	// Fault is set when the remote service rejected the request.
	Fault *markup.Fault
	// Err is the underlying transport error, if any.
	Err error
}

func (e *ConnectionError) Error() string {
	var b strings.Builder
	if e.Reason != nil {
		b.WriteString(e.Reason.Error())
	} else {
		b.WriteString("session: connection failed")
	}
	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}
	if e.Fault != nil {
		b.WriteString(": ")
		b.WriteString(e.Fault.String())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConnectionError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Reason != nil {
		out = append(out, e.Reason)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}
