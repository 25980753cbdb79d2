package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// NullValue is the literal value carried by fields that could not be resolved
const NullValue = "null"

// Default retrieval depths
const (
	DefaultTopK = 5
	GroupedTopK = 10
)

// FieldKind distinguishes fields that resolve to one result from grouped fields
type FieldKind string

const (
	FieldKindSingle  FieldKind = "single"  // One field, one result
	FieldKindGrouped FieldKind = "grouped" // One model call, many named subfield results
)

// FieldSpec describes one contract attribute to extract
type FieldSpec struct {
	Name      string   `yaml:"name" json:"name"`                               // Output field name
	Queries   []string `yaml:"queries,omitempty" json:"queries,omitempty"`     // Ordered retrieval queries, first success wins
	QueryHint string   `yaml:"query_hint,omitempty" json:"query_hint,omitempty"` // Question shown to the model
	Guidance  string   `yaml:"guidance,omitempty" json:"guidance,omitempty"`   // Free-form extraction notes
	Subfields []string `yaml:"subfields,omitempty" json:"subfields,omitempty"` // Non-empty makes the field grouped
	K         int      `yaml:"k,omitempty" json:"k,omitempty"`                 // Retrieval depth override
}

// Kind reports whether the field is single or grouped
func (f FieldSpec) Kind() FieldKind {
	if len(f.Subfields) > 0 {
		return FieldKindGrouped
	}
	return FieldKindSingle
}

// CandidateQueries returns the retrieval queries, falling back to the query hint
func (f FieldSpec) CandidateQueries() []string {
	queries := make([]string, 0, len(f.Queries))
	for _, q := range f.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 && strings.TrimSpace(f.QueryHint) != "" {
		queries = append(queries, strings.TrimSpace(f.QueryHint))
	}
	return queries
}

// Hint returns the question shown to the model for this field
func (f FieldSpec) Hint() string {
	if hint := strings.TrimSpace(f.QueryHint); hint != "" {
		return hint
	}
	if queries := f.CandidateQueries(); len(queries) > 0 {
		return queries[0]
	}
	return ""
}

// TopK returns the retrieval depth for the field
func (f FieldSpec) TopK(defaultK, groupedK int) int {
	if f.K > 0 {
		return f.K
	}
	if defaultK <= 0 {
		defaultK = DefaultTopK
	}
	if groupedK <= 0 {
		groupedK = GroupedTopK
	}
	if f.Kind() == FieldKindGrouped {
		return groupedK
	}
	return defaultK
}

// Validate checks a single field spec
func (f FieldSpec) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return &ConfigurationError{Reason: "field name is empty"}
	}
	if len(f.CandidateQueries()) == 0 {
		return &ConfigurationError{Field: f.Name, Reason: "no candidate queries or query hint"}
	}
	if f.K < 0 {
		return &ConfigurationError{Field: f.Name, Reason: fmt.Sprintf("negative k %d", f.K)}
	}
	seen := make(map[string]bool, len(f.Subfields))
	for _, sub := range f.Subfields {
		if strings.TrimSpace(sub) == "" {
			return &ConfigurationError{Field: f.Name, Reason: "empty subfield name"}
		}
		if seen[sub] {
			return &ConfigurationError{Field: f.Name, Reason: fmt.Sprintf("duplicate subfield %q", sub)}
		}
		seen[sub] = true
	}
	return nil
}

// ValidateFieldSpecs checks an ordered field set: every spec valid, names unique
func ValidateFieldSpecs(specs []FieldSpec) error {
	if len(specs) == 0 {
		return &ConfigurationError{Reason: "no fields configured"}
	}
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return err
		}
		if seen[spec.Name] {
			return &ConfigurationError{Field: spec.Name, Reason: "duplicate field name"}
		}
		seen[spec.Name] = true
	}
	return nil
}

// FieldValue is either a single string or a list of strings
type FieldValue struct {
	text   string
	list   []string
	isList bool
}

// TextValue wraps a string value
func TextValue(s string) FieldValue {
	return FieldValue{text: s}
}

// ListValue wraps a list value
func ListValue(items []string) FieldValue {
	return FieldValue{list: append([]string(nil), items...), isList: true}
}

// NullFieldValue returns the literal "null" value
func NullFieldValue() FieldValue {
	return FieldValue{text: NullValue}
}

// IsList reports whether the value holds a list
func (v FieldValue) IsList() bool {
	return v.isList
}

// IsNull reports whether the value is empty or the literal "null"
func (v FieldValue) IsNull() bool {
	if v.isList {
		return false
	}
	t := strings.TrimSpace(v.text)
	return t == "" || strings.EqualFold(t, NullValue)
}

// List returns the list items, or the single value as a one-element list
func (v FieldValue) List() []string {
	if v.isList {
		return append([]string(nil), v.list...)
	}
	return []string{v.String()}
}

// String renders the value; lists are joined with ", "
func (v FieldValue) String() string {
	if v.isList {
		return strings.Join(v.list, ", ")
	}
	if v.text == "" {
		return NullValue
	}
	return v.text
}

// Equal compares two values structurally
func (v FieldValue) Equal(other FieldValue) bool {
	if v.isList != other.isList {
		return false
	}
	if !v.isList {
		return v.String() == other.String()
	}
	if len(v.list) != len(other.list) {
		return false
	}
	for i := range v.list {
		if v.list[i] != other.list[i] {
			return false
		}
	}
	return true
}

// MarshalJSON emits a JSON string or array of strings
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.isList {
		list := v.list
		if list == nil {
			list = []string{}
		}
		return json.Marshal(list)
	}
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts strings, arrays, numbers, booleans and null
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch val := raw.(type) {
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, scalarString(item))
		}
		*v = ListValue(items)
	default:
		*v = TextValue(scalarString(val))
	}
	return nil
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return NullValue
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// ExtractionResult is the outcome of resolving one field or subfield
type ExtractionResult struct {
	Value      FieldValue `json:"value"`
	Found      bool       `json:"field_value_found"`
	PageNumber int        `json:"page_number"`
}

// NullResult is the canonical failure value
func NullResult() ExtractionResult {
	return ExtractionResult{
		Value:      NullFieldValue(),
		Found:      false,
		PageNumber: 0,
	}
}

// FieldOutput is one entry of the final per-document field list
type FieldOutput struct {
	Field   string     `json:"field"`
	Value   FieldValue `json:"value"`
	PageNum int        `json:"page_num"`
}

// NullOutput builds the output entry for an unresolved field
func NullOutput(field string) FieldOutput {
	return FieldOutput{Field: field, Value: NullFieldValue(), PageNum: 0}
}
