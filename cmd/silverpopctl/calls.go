package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/jpitassi/silverpop/markup"
)

// callSpec is one entry of a calls file. Exactly one of payload or raw may
// be set; neither yields an empty function element.
type callSpec struct {
	Function string  `yaml:"function"`
	Payload  any     `yaml:"payload"`
	Raw      *string `yaml:"raw"`
}

func loadCalls(path string) ([]markup.Call, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calls: %w", err)
	}
	var specs []callSpec
	if err := yaml.UnmarshalWithOptions(data, &specs, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("decode calls %s: %w", path, err)
	}
	calls := make([]markup.Call, 0, len(specs))
	for i, spec := range specs {
		call, err := spec.toCall()
		if err != nil {
			return nil, fmt.Errorf("calls[%d]: %w", i, err)
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func (s callSpec) toCall() (markup.Call, error) {
	function := strings.TrimSpace(s.Function)
	if function == "" {
		return markup.Call{}, fmt.Errorf("function required")
	}
	if s.Raw != nil && s.Payload != nil {
		return markup.Call{}, fmt.Errorf("%s: payload and raw are mutually exclusive", function)
	}
	if s.Raw != nil {
		return markup.Call{Function: function, Payload: markup.Raw(*s.Raw)}, nil
	}
	if s.Payload == nil {
		return markup.Call{Function: function, Payload: markup.Sequence{}}, nil
	}
	node, err := markup.FromValue(s.Payload)
	if err != nil {
		return markup.Call{}, fmt.Errorf("%s: %w", function, err)
	}
	return markup.Call{Function: function, Payload: node}, nil
}

// loadPayload reads a single YAML payload file.
func loadPayload(path string) (markup.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return markup.ParseYAML(data)
}
