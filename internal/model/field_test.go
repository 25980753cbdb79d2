package model

import (
	"encoding/json"
	"testing"
)

func TestFieldSpec_CandidateQueries(t *testing.T) {
	f := FieldSpec{Name: "sow_value", Queries: []string{" total value ", "", "fees"}, QueryHint: "What is the SOW value?"}
	got := f.CandidateQueries()
	if len(got) != 2 || got[0] != "total value" || got[1] != "fees" {
		t.Errorf("unexpected queries %q", got)
	}
	if f.Hint() != "What is the SOW value?" {
		t.Errorf("unexpected hint %q", f.Hint())
	}

	hintOnly := FieldSpec{Name: "currency", QueryHint: "Which currency?"}
	if q := hintOnly.CandidateQueries(); len(q) != 1 || q[0] != "Which currency?" {
		t.Errorf("expected hint as only query, got %q", q)
	}

	queriesOnly := FieldSpec{Name: "po_number", Queries: []string{"purchase order number"}}
	if queriesOnly.Hint() != "purchase order number" {
		t.Errorf("expected first query as hint, got %q", queriesOnly.Hint())
	}
}

func TestFieldSpec_TopK(t *testing.T) {
	single := FieldSpec{Name: "a", QueryHint: "q"}
	grouped := FieldSpec{Name: "b", QueryHint: "q", Subfields: []string{"x", "y"}}
	override := FieldSpec{Name: "c", QueryHint: "q", K: 7}

	if single.Kind() != FieldKindSingle || grouped.Kind() != FieldKindGrouped {
		t.Error("unexpected kinds")
	}
	if single.TopK(0, 0) != DefaultTopK || grouped.TopK(0, 0) != GroupedTopK {
		t.Errorf("unexpected default depths %d %d", single.TopK(0, 0), grouped.TopK(0, 0))
	}
	if single.TopK(3, 8) != 3 || grouped.TopK(3, 8) != 8 || override.TopK(3, 8) != 7 {
		t.Error("configured depths not honoured")
	}
}

func TestValidateFieldSpecs(t *testing.T) {
	valid := FieldSpec{Name: "a", QueryHint: "q"}
	tests := []struct {
		name  string
		specs []FieldSpec
		ok    bool
	}{
		{"valid", []FieldSpec{valid, {Name: "b", Queries: []string{"q"}}}, true},
		{"empty set", nil, false},
		{"empty name", []FieldSpec{{QueryHint: "q"}}, false},
		{"no queries", []FieldSpec{{Name: "a"}}, false},
		{"duplicate name", []FieldSpec{valid, valid}, false},
		{"negative k", []FieldSpec{{Name: "a", QueryHint: "q", K: -1}}, false},
		{"duplicate subfield", []FieldSpec{{Name: "a", QueryHint: "q", Subfields: []string{"x", "x"}}}, false},
		{"blank subfield", []FieldSpec{{Name: "a", QueryHint: "q", Subfields: []string{" "}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldSpecs(tt.specs)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !IsConfigurationError(err) {
				t.Errorf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestFieldValue(t *testing.T) {
	if !NullFieldValue().IsNull() || !TextValue("").IsNull() || !TextValue(" NULL ").IsNull() {
		t.Error("expected null values")
	}
	if TextValue("Acme").IsNull() || ListValue(nil).IsNull() {
		t.Error("expected non-null values")
	}
	if ListValue([]string{"a", "b"}).String() != "a, b" {
		t.Error("lists should join with comma")
	}
	if TextValue("").String() != NullValue {
		t.Error("empty text renders as null")
	}
	if TextValue("x").Equal(ListValue([]string{"x"})) {
		t.Error("text and list must differ")
	}
}

func TestFieldValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		isList bool
	}{
		{`"Acme Corp"`, "Acme Corp", false},
		{`null`, "null", false},
		{`42`, "42", false},
		{`true`, "true", false},
		{`["Design", "Build"]`, "Design, Build", true},
	}
	for _, tt := range tests {
		var v FieldValue
		if err := json.Unmarshal([]byte(tt.in), &v); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", tt.in, err)
		}
		if v.String() != tt.want || v.IsList() != tt.isList {
			t.Errorf("Unmarshal(%s) = %q list=%v, want %q list=%v", tt.in, v.String(), v.IsList(), tt.want, tt.isList)
		}
	}
}

func TestFieldOutput_JSON(t *testing.T) {
	data, err := json.Marshal([]FieldOutput{
		{Field: "client_company_name", Value: TextValue("Acme Corp"), PageNum: 2},
		NullOutput("effective_date"),
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `[{"field":"client_company_name","value":"Acme Corp","page_num":2},{"field":"effective_date","value":"null","page_num":0}]`
	if string(data) != want {
		t.Errorf("unexpected JSON:\n got %s\nwant %s", data, want)
	}
}
