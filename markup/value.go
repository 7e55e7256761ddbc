package markup

// Payload is the body attached to one Call: either a Node tree or Raw markup.
type Payload interface {
	payload()
}

// Node is a value tree. The variants are Text, Sequence and *Element.
type Node interface {
	Payload
	node()
}

// Raw is caller-supplied markup wrapped verbatim in the function element.
type Raw string

// Text is a leaf rendered as the element's escaped text content.
type Text string

// Sequence is an ordered multimap of entries. Positional entries are
// transparent: their Sequence value is rendered directly under the
// enclosing element, which is how same-name siblings are produced.
type Sequence []Entry

// Entry is one key/value pair of a Sequence or of Element children.
type Entry struct {
	// Tag is the child element name. Empty marks a positional entry.
	Tag   string
	Index int
	Node  Node
}

// Attr is one attribute. Attributes render in slice order.
type Attr struct {
	Name  string
	Value string
}

// Element is an explicit node with attributes, optional text, and children,
// rendered in that order.
type Element struct {
	Attrs    []Attr
	Text     *string
	Children []Entry
}

func (Raw) payload() {}
func (Text) payload() {}
func (Sequence) payload() {}
func (*Element) payload() {}
func (Text) node() {}
func (Sequence) node() {}
func (*Element) node() {}

// Positional reports whether the entry is index-keyed.
func (e Entry) Positional() bool { return e.Tag == "" }

// Field returns a tagged entry.
func Field(tag string, n Node) Entry {
	return Entry{Tag: tag, Node: n}
}

// At returns a positional entry. n should be a Sequence of tagged entries.
func At(index int, n Node) Entry {
	return Entry{Index: index, Node: n}
}

// Fields builds a Sequence from alternating tag/text pairs.
func Fields(pairs ...string) Sequence {
	seq := make(Sequence, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		seq = append(seq, Field(pairs[i], Text(pairs[i+1])))
	}
	return seq
}

// Repeat builds a Sequence of positional entries that each hold one tag/node
// pair, yielding len(nodes) sibling elements named tag.
func Repeat(tag string, nodes ...Node) Sequence {
	seq := make(Sequence, 0, len(nodes))
	for i, n := range nodes {
		seq = append(seq, At(i, Sequence{Field(tag, n)}))
	}
	return seq
}

// NewElement returns an empty Element for chained construction.
func NewElement() *Element {
	return &Element{}
}

func (e *Element) Attr(name, value string) *Element {
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

func (e *Element) SetText(text string) *Element {
	e.Text = &text
	return e
}

func (e *Element) Child(tag string, n Node) *Element {
	e.Children = append(e.Children, Field(tag, n))
	return e
}
