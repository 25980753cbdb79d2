// Package catalog holds the field sets extracted per document type
package catalog

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/contractrag/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed *.yaml
var builtinFS embed.FS

// Catalog is an ordered field set for one document type
type Catalog struct {
	DocumentType string            `yaml:"document_type" json:"document_type"`
	Description  string            `yaml:"description,omitempty" json:"description,omitempty"`
	Fields       []model.FieldSpec `yaml:"fields" json:"fields"`
}

// Field returns the spec with the given name
func (c *Catalog) Field(name string) (model.FieldSpec, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return model.FieldSpec{}, false
}

// Names returns field names in declared order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// Select narrows the catalog to the named fields, keeping declared order
func (c *Catalog) Select(names []string) (*Catalog, error) {
	if len(names) == 0 {
		return c, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, ok := c.Field(n); !ok {
			return nil, &model.ConfigurationError{Field: n, Reason: fmt.Sprintf("not in %s catalog", c.DocumentType)}
		}
		want[n] = true
	}
	out := &Catalog{DocumentType: c.DocumentType, Description: c.Description}
	for _, f := range c.Fields {
		if want[f.Name] {
			out.Fields = append(out.Fields, f)
		}
	}
	return out, nil
}

// Validate checks every field
func (c *Catalog) Validate() error {
	return model.ValidateFieldSpecs(c.Fields)
}

// Builtin returns the embedded catalog for a document type (case-insensitive)
func Builtin(docType string) (*Catalog, error) {
	name := strings.ToLower(strings.TrimSpace(docType))
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return nil, unknownType(docType)
	}
	data, err := builtinFS.ReadFile(name + ".yaml")
	if err != nil {
		return nil, unknownType(docType)
	}
	return Parse(data)
}

// BuiltinTypes lists the embedded document types
func BuiltinTypes() []string {
	entries, _ := builtinFS.ReadDir(".")
	types := make([]string, 0, len(entries))
	for _, e := range entries {
		types = append(types, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(types)
	return types
}

// LoadFile reads and validates a catalog from a YAML file
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &model.ConfigurationError{Reason: fmt.Sprintf("parse catalog: %v", err)}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func unknownType(docType string) error {
	return &model.ConfigurationError{
		Reason: fmt.Sprintf("unknown document type %q (available: %s)", docType, strings.Join(BuiltinTypes(), ", ")),
	}
}
