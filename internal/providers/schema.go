package providers

import (
	"encoding/json"
	"sort"
	"strings"
)

// Schema is a provider-neutral description of a JSON reply. It covers the
// subset of JSON Schema the review documents need.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
}

// PropertyNames returns the property names in sorted order.
func (s *Schema) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders the schema as indented JSON for inclusion in prompts.
func (s *Schema) String() string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// withSchemaInstruction appends the schema to a system prompt for providers
// that have no structured output mode.
func withSchemaInstruction(system string, s *Schema) string {
	if s == nil {
		return system
	}
	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\nRespond with ONLY a JSON object matching this schema. No markdown, no prose.\n")
	b.WriteString(s.String())
	return b.String()
}
