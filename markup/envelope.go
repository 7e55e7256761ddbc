package markup

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const (
	EnvelopeTag = "Envelope"
	BodyTag     = "Body"
)

// Call is one API function invocation inside a batch.
type Call struct {
	Function string
	Payload  Payload
}

// BuildEnvelope renders calls, in order, as children of Envelope/Body.
// Node payloads render with Function as their root tag; Raw payloads are
// wrapped verbatim in a Function element. The batch is rendered as a whole:
// any DataError yields no envelope at all.
func BuildEnvelope(calls []Call) (string, error) {
	r := newRenderer()
	envelope := xml.StartElement{Name: xml.Name{Local: EnvelopeTag}}
	body := xml.StartElement{Name: xml.Name{Local: BodyTag}}
	if err := r.tokens(envelope, body); err != nil {
		return "", err
	}
	for _, call := range calls {
		path := EnvelopeTag + "/" + BodyTag + "/" + call.Function
		var err error
		switch p := call.Payload.(type) {
		case Raw:
			err = r.raw(call.Function, p, path)
		case Node:
			err = r.element(call.Function, p, path)
		default:
			err = dataError(path, ErrUnsupportedValue, "%T", call.Payload)
		}
		if err != nil {
			return "", err
		}
	}
	if err := r.tokens(body.End(), envelope.End()); err != nil {
		return "", err
	}
	return r.finish()
}

// LoginRequest builds the fixed credential envelope.
func LoginRequest(username, password string) (string, error) {
	return BuildEnvelope([]Call{{
		Function: "Login",
		Payload:  Fields("USERNAME", username, "PASSWORD", password),
	}})
}

// LogoutRequest builds the session teardown envelope.
func LogoutRequest() string {
	return "<" + EnvelopeTag + "><" + BodyTag + "><Logout></Logout></" + BodyTag + "></" + EnvelopeTag + ">"
}

// checkRaw parses fragment as element content and reports the first
// well-formedness error. Every element the fragment opens must be closed
// inside it.
func checkRaw(fragment string) error {
	dec := xml.NewDecoder(strings.NewReader(fragment))
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if depth != 0 {
				return fmt.Errorf("%d unclosed element(s)", depth)
			}
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return fmt.Errorf("unexpected end element </%s>", t.Name.Local)
			}
			depth--
		case xml.ProcInst:
			if strings.EqualFold(t.Target, "xml") {
				return fmt.Errorf("xml declaration not allowed in element content")
			}
		case xml.Directive:
			return fmt.Errorf("directive not allowed in element content")
		}
	}
}
