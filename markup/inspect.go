package markup

import (
	"encoding/xml"
	"strings"
)

// Element names inspected in responses.
const (
	FaultStringTag = "FaultString"
	FaultCodeTag   = "FaultCode"
	ErrorIDTag     = "errorid"
	SessionIDTag   = "SESSIONID"
)

// Fault is a remote-reported error embedded in a response document.
type Fault struct {
	Code    string
	Message string
}

func (f Fault) String() string {
	if f.Code == "" {
		return f.Message
	}
	return f.Code + ": " + f.Message
}

// ElementTexts returns the trimmed text of every element whose local name is
// name, in document order. Parsing stops quietly at the first syntax error;
// matches found before it are still returned.
func ElementTexts(doc, name string) []string {
	return collect(doc, name)[name]
}

// FirstElementText returns the text of the first element named name.
func FirstElementText(doc, name string) (string, bool) {
	texts := ElementTexts(doc, name)
	if len(texts) == 0 {
		return "", false
	}
	return texts[0], true
}

// FindFaults returns one Fault per FaultString element. Codes are paired by
// position with errorid elements, falling back to FaultCode.
func FindFaults(doc string) []Fault {
	found := collect(doc, FaultStringTag, ErrorIDTag, FaultCodeTag)
	messages := found[FaultStringTag]
	if len(messages) == 0 {
		return nil
	}
	codes := found[ErrorIDTag]
	fallback := found[FaultCodeTag]
	faults := make([]Fault, 0, len(messages))
	for i, msg := range messages {
		f := Fault{Message: msg}
		switch {
		case i < len(codes) && codes[i] != "":
			f.Code = codes[i]
		case i < len(fallback):
			f.Code = fallback[i]
		}
		faults = append(faults, f)
	}
	return faults
}

// collect walks doc once and gathers the text of the outermost element for
// each requested name.
func collect(doc string, names ...string) map[string][]string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make(map[string][]string, len(names))

	dec := xml.NewDecoder(strings.NewReader(doc))
	dec.Strict = false
	var (
		capturing string
		depth     int
		text      strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if capturing != "" {
				depth++
				continue
			}
			if want[t.Name.Local] {
				capturing = t.Name.Local
				depth = 0
				text.Reset()
			}
		case xml.CharData:
			if capturing != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if capturing == "" {
				continue
			}
			if depth > 0 {
				depth--
				continue
			}
			out[capturing] = append(out[capturing], strings.TrimSpace(text.String()))
			capturing = ""
		}
	}
}
