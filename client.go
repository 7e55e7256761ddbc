// Package silverpop is a client for the Engage (Silverpop) XML API.
//
// A Client accumulates calls, renders them into one batched Envelope, sends
// it over an authenticated session, and returns the raw response:
//
//	c, err := silverpop.New(ctx, session.Config{
//		Endpoint: "https://api-campaign-us-1.goacoustic.com/XMLAPI",
//		Username: user,
//		Password: pass,
//	})
//	...
//	resp, err := c.Build("GetLists", markup.Fields("VISIBILITY", "1", "LIST_TYPE", "2"), false).
//		Execute(ctx)
//
// Faults inside a response are not errors. Inspect the response with
// markup.FindFaults or enable logging and read FaultLog.
package silverpop

import (
	"context"
	"slices"

	"github.com/jpitassi/silverpop/internal/logging"
	"github.com/jpitassi/silverpop/markup"
	"github.com/jpitassi/silverpop/session"
)

// Client batches calls over one Session. It is not safe for concurrent use.
type Client struct {
	session *session.Session
	pending []markup.Call
}

// New logs in and returns a Client with an empty batch.
func New(ctx context.Context, cfg session.Config) (*Client, error) {
	s, err := session.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithSession(s), nil
}

// NewWithSession wraps an already authenticated session.
func NewWithSession(s *session.Session) *Client {
	return &Client{session: s}
}

// Build appends one call to the batch, clearing it first when reset is set.
func (c *Client) Build(function string, payload markup.Payload, reset bool) *Client {
	if reset {
		c.Rebuild()
	}
	c.pending = append(c.pending, markup.Call{Function: function, Payload: payload})
	return c
}

// Rebuild discards the batch without sending it.
func (c *Client) Rebuild() {
	c.pending = nil
}

// Pending returns a copy of the batch in send order.
func (c *Client) Pending() []markup.Call {
	return slices.Clone(c.pending)
}

// Execute sends the batch and returns the raw response. A *markup.DataError
// means nothing was sent and the batch is left as it was. Once the envelope
// is handed to the session the batch is cleared, whether or not the
// exchange succeeds.
func (c *Client) Execute(ctx context.Context) (string, error) {
	doc, err := markup.BuildEnvelope(c.pending)
	if err != nil {
		logging.Warnf("silverpop.Execute render failed calls=%d err=%v", len(c.pending), err)
		return "", err
	}
	n := len(c.pending)
	c.pending = nil

	resp, err := c.session.SendRaw(ctx, doc)
	if err != nil {
		return "", err
	}
	logging.Debugf("silverpop.Execute sent calls=%d", n)
	return resp, nil
}

// EnableLogging turns on the session's transaction and fault logs.
func (c *Client) EnableLogging() {
	c.session.EnableLogging()
}

func (c *Client) SessionLog() []session.LogEntry {
	return c.session.TransactionLog()
}

func (c *Client) FaultLog() []string {
	return c.session.FaultLog()
}

func (c *Client) Session() *session.Session {
	return c.session
}

// Close logs out. The pending batch is discarded.
func (c *Client) Close(ctx context.Context) error {
	c.Rebuild()
	return c.session.Logout(ctx)
}
