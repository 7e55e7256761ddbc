package markup

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Reserved keys that turn a map into an Element. '@' cannot start an XML
// name, so they never collide with real tags.
const (
	AttributesKey = "@attributes"
	TextKey       = "@text"
	ChildrenKey   = "@children"
)

// FromValue converts dynamic data into a Node.
//
//   - nil, strings, booleans, numbers and fmt.Stringers become Text.
//   - maps become Sequences of tagged entries (map[string]any in sorted key
//     order, yaml.MapSlice in source order). Integer keys are positional.
//   - maps carrying @attributes, @text or @children become Elements.
//   - slices become Sequences of positional entries; every item must itself
//     convert to a Sequence.
//
// Any other shape (functions, channels, structs, ...) is a DataError.
func FromValue(v any) (Node, error) {
	return fromValue(v, "$")
}

type pair struct {
	key   any
	value any
}

func fromValue(v any, path string) (Node, error) {
	switch x := v.(type) {
	case nil:
		return Text(""), nil
	case *Element:
		if x == nil {
			return nil, dataError(path, ErrUnsupportedValue, "nil *Element")
		}
		return x, nil
	case Node:
		return x, nil
	case string:
		return Text(x), nil
	case bool:
		return Text(strconv.FormatBool(x)), nil
	case float64:
		return Text(strconv.FormatFloat(x, 'f', -1, 64)), nil
	case float32:
		return Text(strconv.FormatFloat(float64(x), 'f', -1, 32)), nil
	case yaml.MapSlice:
		pairs := make([]pair, 0, len(x))
		for _, item := range x {
			pairs = append(pairs, pair{key: item.Key, value: item.Value})
		}
		return fromPairs(pairs, path)
	case []any:
		return fromList(x, path)
	case fmt.Stringer:
		return Text(x.String()), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Text(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Text(strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return fromList(items, path)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, dataError(path, ErrUnsupportedValue, "map key type %s", rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		pairs := make([]pair, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, pair{key: k, value: rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()})
		}
		return fromPairs(pairs, path)
	}
	return nil, dataError(path, ErrUnsupportedValue, "%T", v)
}

func fromList(items []any, path string) (Node, error) {
	seq := make(Sequence, 0, len(items))
	for i, item := range items {
		at := fmt.Sprintf("%s[%d]", path, i)
		n, err := fromValue(item, at)
		if err != nil {
			return nil, err
		}
		if _, ok := n.(Sequence); !ok {
			return nil, dataError(at, ErrUnsupportedValue, "list items must be maps of tagged entries, got %T", item)
		}
		seq = append(seq, At(i, n))
	}
	return seq, nil
}

func fromPairs(pairs []pair, path string) (Node, error) {
	for _, p := range pairs {
		if k, ok := p.key.(string); ok && strings.HasPrefix(k, "@") {
			return elementFromPairs(pairs, path)
		}
	}
	seq := make(Sequence, 0, len(pairs))
	for _, p := range pairs {
		if idx, ok := positionalKey(p.key); ok {
			at := fmt.Sprintf("%s[%d]", path, idx)
			n, err := fromValue(p.value, at)
			if err != nil {
				return nil, err
			}
			seq = append(seq, At(idx, n))
			continue
		}
		tag, ok := p.key.(string)
		if !ok {
			return nil, dataError(path, ErrUnsupportedValue, "map key %T", p.key)
		}
		n, err := fromValue(p.value, path+"/"+tag)
		if err != nil {
			return nil, err
		}
		seq = append(seq, Field(tag, n))
	}
	return seq, nil
}

func elementFromPairs(pairs []pair, path string) (Node, error) {
	el := NewElement()
	for _, p := range pairs {
		key, _ := p.key.(string)
		switch key {
		case AttributesKey:
			attrs, err := fromValue(p.value, path+"/"+AttributesKey)
			if err != nil {
				return nil, err
			}
			seq, ok := attrs.(Sequence)
			if !ok {
				return nil, dataError(path+"/"+AttributesKey, ErrUnsupportedValue, "attributes must be a map, got %T", p.value)
			}
			for _, e := range seq {
				text, ok := e.Node.(Text)
				if e.Positional() || !ok {
					return nil, dataError(path+"/"+AttributesKey, ErrUnsupportedValue, "attribute %q must be a scalar", e.Tag)
				}
				el.Attr(e.Tag, string(text))
			}
		case TextKey:
			n, err := fromValue(p.value, path+"/"+TextKey)
			if err != nil {
				return nil, err
			}
			text, ok := n.(Text)
			if !ok {
				return nil, dataError(path+"/"+TextKey, ErrUnsupportedValue, "text must be a scalar, got %T", p.value)
			}
			el.SetText(string(text))
		case ChildrenKey:
			n, err := fromValue(p.value, path+"/"+ChildrenKey)
			if err != nil {
				return nil, err
			}
			seq, ok := n.(Sequence)
			if !ok {
				return nil, dataError(path+"/"+ChildrenKey, ErrUnsupportedValue, "children must be a map or list, got %T", p.value)
			}
			el.Children = append(el.Children, seq...)
		default:
			return nil, dataError(path, ErrUnsupportedValue, "key %v cannot be mixed with element keys", p.key)
		}
	}
	return el, nil
}

func positionalKey(k any) (int, bool) {
	rv := reflect.ValueOf(k)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	}
	return 0, false
}

// ParseYAML decodes a YAML document into a Node, keeping mapping order.
func ParseYAML(data []byte) (Node, error) {
	var v any
	if err := yaml.UnmarshalWithOptions(data, &v, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("markup: decode yaml: %w", err)
	}
	return FromValue(v)
}
