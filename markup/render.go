package markup

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type renderer struct {
	buf bytes.Buffer
	enc *xml.Encoder
}

func newRenderer() *renderer {
	r := &renderer{}
	r.enc = xml.NewEncoder(&r.buf)
	return r
}

// RenderNode renders n as a single element named tag.
func RenderNode(tag string, n Node) (string, error) {
	r := newRenderer()
	if err := r.element(tag, n, tag); err != nil {
		return "", err
	}
	return r.finish()
}

func (r *renderer) finish() (string, error) {
	if err := r.enc.Flush(); err != nil {
		return "", err
	}
	return r.buf.String(), nil
}

func (r *renderer) element(tag string, n Node, path string) error {
	if !validName(tag) {
		return dataError(path, ErrInvalidName, "%q", tag)
	}
	start := xml.StartElement{Name: xml.Name{Local: tag}}

	switch v := n.(type) {
	case Text:
		if err := checkText(string(v)); err != nil {
			return dataError(path, ErrInvalidText, "%v", err)
		}
		return r.tokens(start, xml.CharData(v), start.End())

	case Sequence:
		if err := r.enc.EncodeToken(start); err != nil {
			return err
		}
		if err := r.entries(v, path); err != nil {
			return err
		}
		return r.enc.EncodeToken(start.End())

	case *Element:
		if v == nil {
			return dataError(path, ErrUnsupportedValue, "nil *Element")
		}
		seen := make(map[string]struct{}, len(v.Attrs))
		for _, attr := range v.Attrs {
			if !validName(attr.Name) {
				return dataError(path+"@"+attr.Name, ErrInvalidName, "attribute %q", attr.Name)
			}
			if _, dup := seen[attr.Name]; dup {
				return dataError(path+"@"+attr.Name, ErrInvalidName, "duplicate attribute %q", attr.Name)
			}
			seen[attr.Name] = struct{}{}
			if err := checkText(attr.Value); err != nil {
				return dataError(path+"@"+attr.Name, ErrInvalidText, "%v", err)
			}
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: attr.Name}, Value: attr.Value})
		}
		if err := r.enc.EncodeToken(start); err != nil {
			return err
		}
		if v.Text != nil {
			if err := checkText(*v.Text); err != nil {
				return dataError(path, ErrInvalidText, "%v", err)
			}
			if err := r.enc.EncodeToken(xml.CharData(*v.Text)); err != nil {
				return err
			}
		}
		if err := r.entries(v.Children, path); err != nil {
			return err
		}
		return r.enc.EncodeToken(start.End())

	default:
		return dataError(path, ErrUnsupportedValue, "%T", n)
	}
}

// entries renders list under the element currently open in the encoder.
// Positional entries add no element of their own.
func (r *renderer) entries(list []Entry, path string) error {
	for _, e := range list {
		if e.Positional() {
			at := fmt.Sprintf("%s[%d]", path, e.Index)
			seq, ok := e.Node.(Sequence)
			if !ok {
				return dataError(at, ErrUnsupportedValue, "positional entry must hold tagged entries, got %T", e.Node)
			}
			if err := r.entries(seq, at); err != nil {
				return err
			}
			continue
		}
		if err := r.element(e.Tag, e.Node, path+"/"+e.Tag); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) tokens(toks ...xml.Token) error {
	for _, tok := range toks {
		if err := r.enc.EncodeToken(tok); err != nil {
			return err
		}
	}
	return nil
}

// raw wraps fragment verbatim in an element named tag.
func (r *renderer) raw(tag string, fragment Raw, path string) error {
	if !validName(tag) {
		return dataError(path, ErrInvalidName, "%q", tag)
	}
	if err := checkRaw(string(fragment)); err != nil {
		return dataError(path, ErrMalformedRaw, "%v", err)
	}
	start := xml.StartElement{Name: xml.Name{Local: tag}}
	if err := r.enc.EncodeToken(start); err != nil {
		return err
	}
	if err := r.enc.Flush(); err != nil {
		return err
	}
	r.buf.WriteString(string(fragment))
	return r.enc.EncodeToken(start.End())
}

// validName accepts XML element names: a letter or underscore first, then
// letters, digits, '-', '_', '.' or ':'.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case unicode.IsLetter(c) || c == '_':
		case i > 0 && (unicode.IsDigit(c) || c == '-' || c == '.' || c == ':'):
		default:
			return false
		}
	}
	return true
}

// checkText rejects strings that XML 1.0 character data cannot carry.
func checkText(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("not valid UTF-8")
	}
	if i := strings.IndexFunc(s, func(c rune) bool { return !isXMLChar(c) }); i >= 0 {
		return fmt.Errorf("character %U at byte %d not allowed", []rune(s[i:])[0], i)
	}
	return nil
}

func isXMLChar(c rune) bool {
	return c == 0x09 || c == 0x0A || c == 0x0D ||
		c >= 0x20 && c <= 0xD7FF ||
		c >= 0xE000 && c <= 0xFFFD ||
		c >= 0x10000 && c <= 0x10FFFF
}
