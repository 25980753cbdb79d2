package extract

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/contractrag/internal/llm"
	"github.com/ppiankov/contractrag/internal/model"
)

// scriptedProvider replays replies in order, repeating the last one.
// A reply with err set simulates a transport failure.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []reply
	calls   int
	prompts []string
}

type reply struct {
	text string
	err  error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.prompts = append(p.prompts, req.Prompt)
	r := p.replies[len(p.replies)-1]
	if p.calls <= len(p.replies) {
		r = p.replies[p.calls-1]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &llm.CompletionResponse{Text: r.text}, nil
}

func (p *scriptedProvider) IsAvailable(ctx context.Context) bool { return true }

func singleField() model.FieldSpec {
	return model.FieldSpec{
		Name:      "client_company_name",
		QueryHint: "What is the name of the client company?",
		Guidance:  "Return the legal entity name.",
	}
}

func insuranceField() model.FieldSpec {
	return model.FieldSpec{
		Name:      "insurance_required",
		QueryHint: "What insurance is required?",
		Subfields: []string{
			"insurance_required",
			"type_of_insurance_required",
			"is_cyber_insurance_required",
			"cyber_insurance_amount",
		},
	}
}

const validClient = `<steps>Step 1: the preamble names the client.</steps>
<extracted>
{ "value": "Acme Corp", "field_value_found": true, "page_number": "3" }
</extracted>`

func TestExtract_RetriesUntilValid(t *testing.T) {
	var logs bytes.Buffer
	p := &scriptedProvider{replies: []reply{
		{text: "I could not find a block"},
		{text: "<extracted>{not json}</extracted>"},
		{text: validClient},
	}}
	e := New(p, WithLogger(log.New(&logs, "", 0)))

	out, err := e.Extract(context.Background(), Request{
		Field:    singleField(),
		Query:    "What is the name of the client company?",
		Passages: []model.Passage{{Text: "Client: Acme Corp", PageNumber: 3}},
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.calls != 3 {
		t.Errorf("expected 3 calls, got %d", p.calls)
	}
	if out.Attempts != 3 || out.Exhausted {
		t.Errorf("unexpected outcome bookkeeping: %+v", out)
	}
	if !out.Found() || out.Result.Value.String() != "Acme Corp" || out.Result.PageNumber != 3 {
		t.Errorf("unexpected result: %+v", out.Result)
	}
	if got := strings.Count(logs.String(), "malformed extraction"); got != 2 {
		t.Errorf("expected 2 logged failures, got %d:\n%s", got, logs.String())
	}
}

func TestExtract_ExhaustionYieldsNull(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{text: "nothing useful"}}}
	e := New(p, WithMaxAttempts(4))

	out, err := e.Extract(context.Background(), Request{Field: singleField(), Query: "q"})
	if err != nil {
		t.Fatalf("exhaustion must not be an error: %v", err)
	}
	if p.calls != 4 {
		t.Errorf("expected 4 calls, got %d", p.calls)
	}
	if !out.Exhausted || out.Found() {
		t.Errorf("expected exhausted not-found outcome, got %+v", out)
	}
	if null := model.NullResult(); !out.Result.Value.Equal(null.Value) || out.Result.Found || out.Result.PageNumber != 0 {
		t.Errorf("expected NullResult, got %+v", out.Result)
	}
}

func TestExtract_TransportErrorCountsAsAttempt(t *testing.T) {
	p := &scriptedProvider{replies: []reply{
		{err: errors.New("connection reset")},
		{text: validClient},
	}}
	e := New(p, WithMaxAttempts(2))

	out, err := e.Extract(context.Background(), Request{Field: singleField(), Query: "q"})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.calls != 2 || out.Attempts != 2 || !out.Found() {
		t.Errorf("expected success on second attempt, calls=%d outcome=%+v", p.calls, out)
	}
}

func TestExtract_NotFoundIsWellFormed(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{
		text: `<extracted>{ "value": "null", "field_value_found": false, "page_number": "0" }</extracted>`,
	}}}
	e := New(p)

	out, err := e.Extract(context.Background(), Request{Field: singleField(), Query: "q"})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("a well-formed not-found answer must not be retried, got %d calls", p.calls)
	}
	if out.Found() || out.Exhausted {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestExtract_CanceledContext(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{text: validClient}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(p).Extract(ctx, Request{Field: singleField(), Query: "q"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if p.calls != 0 {
		t.Errorf("expected no calls, got %d", p.calls)
	}
}

func TestExtract_Grouped(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{text: `<extracted>
{
  "insurance_required": { "value": "Yes", "page_number": "4" },
  "cyber_insurance_amount": { "value": "$1,000,000", "page_number": 4 },
  "unrelated": { "value": "x", "page_number": "1" },
  "is_cyber_insurance_required": { "value": "Yes" }
}
</extracted>`}}}

	out, err := New(p).Extract(context.Background(), Request{Field: insuranceField(), Query: "q"})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(out.Subfields) != 2 || !out.Found() {
		t.Fatalf("expected exactly 2 found subfields, got %+v", out.Subfields)
	}
	if got := out.Subfields["insurance_required"]; got.Value.String() != "Yes" || got.PageNumber != 4 || !got.Found {
		t.Errorf("unexpected insurance_required: %+v", got)
	}
	if got := out.Subfields["cyber_insurance_amount"]; got.Value.String() != "$1,000,000" || got.PageNumber != 4 {
		t.Errorf("unexpected cyber_insurance_amount: %+v", got)
	}
}

func TestExtract_GroupedWithoutKnownSubfieldsRetries(t *testing.T) {
	p := &scriptedProvider{replies: []reply{
		{text: `<extracted>{ "value": "null", "field_value_found": false, "page_number": "0" }</extracted>`},
	}}

	out, err := New(p, WithMaxAttempts(2)).Extract(context.Background(), Request{Field: insuranceField(), Query: "q"})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.calls != 2 || !out.Exhausted || len(out.Subfields) != 0 {
		t.Errorf("expected exhaustion with empty subfields, calls=%d outcome=%+v", p.calls, out)
	}
}

func TestParseSingle(t *testing.T) {
	tests := []struct {
		name     string
		block    string
		wantPage int
		wantVal  string
		found    bool
		wantErr  bool
	}{
		{"string page", `{"value":"INR","field_value_found":true,"page_number":"2"}`, 2, "INR", true, false},
		{"int page", `{"value":"INR","field_value_found":true,"page_number":7}`, 7, "INR", true, false},
		{"page label", `{"value":"INR","field_value_found":"true","page_number":"Page 12"}`, 12, "INR", true, false},
		{"found string false", `{"value":"null","field_value_found":"false","page_number":"0"}`, 0, "null", false, false},
		{"null value overrides flag", `{"value":"null","field_value_found":true,"page_number":"5"}`, 0, "null", false, false},
		{"page without digits", `{"value":"INR","field_value_found":true,"page_number":"unknown"}`, 0, "", false, true},
		{"missing key", `{"value":"INR","page_number":"2"}`, 0, "", false, true},
		{"bad flag", `{"value":"INR","field_value_found":"maybe","page_number":"2"}`, 0, "", false, true},
		{"not an object", `["INR"]`, 0, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSingle(tt.block)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Found != tt.found || got.PageNumber != tt.wantPage || got.Value.String() != tt.wantVal {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestParseGrouped_ListValue(t *testing.T) {
	subs, err := parseGrouped(`{"type_of_insurance_required":{"value":["Cyber","Workmen Compensation"],"page_number":"6"}}`,
		insuranceField().Subfields)
	if err != nil {
		t.Fatalf("parseGrouped failed: %v", err)
	}
	got := subs["type_of_insurance_required"]
	if !got.Value.IsList() || len(got.Value.List()) != 2 || got.PageNumber != 6 {
		t.Errorf("unexpected list subfield: %+v", got)
	}
}

func TestExtractBlock(t *testing.T) {
	block, err := extractBlock("<steps>x</steps>\n<extracted>\n```json\n{\"a\":1}\n```\n</extracted> trailing")
	if err != nil {
		t.Fatalf("extractBlock failed: %v", err)
	}
	if block != `{"a":1}` {
		t.Errorf("unexpected block %q", block)
	}

	if _, err := extractBlock(`{"value":"x"}`); !errors.Is(err, errNoBlock) {
		t.Errorf("expected errNoBlock, got %v", err)
	}
	if _, err := extractBlock("<extracted>   </extracted>"); err == nil {
		t.Error("expected error for empty block")
	}
}

func TestSerializeContext(t *testing.T) {
	got := SerializeContext([]model.Passage{
		{Text: "Client: Acme Corp", PageNumber: 3},
		{Text: "Currency: INR", PageNumber: 1},
	})
	want := "<Context>\n" +
		"  <Chunk1>\n    <Text>\n      Client: Acme Corp\n    </Text>\n    <PageNumber>3</PageNumber>\n  </Chunk1>\n" +
		"  <Chunk2>\n    <Text>\n      Currency: INR\n    </Text>\n    <PageNumber>1</PageNumber>\n  </Chunk2>\n" +
		"</Context>"
	if got != want {
		t.Errorf("unexpected context:\n%s\nwant:\n%s", got, want)
	}

	if SerializeContext(nil) != "<Context>\n</Context>" {
		t.Error("unexpected empty context")
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(singleField(), "Who is the client?", []model.Passage{{Text: "Client: Acme Corp", PageNumber: 3}})
	for _, want := range []string{
		"Required Field: client_company_name",
		"Query: Who is the client?",
		"Return the legal entity name.",
		"<PageNumber>3</PageNumber>",
		`"field_value_found": false`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	grouped := BuildPrompt(insuranceField(), "q", nil)
	if !strings.Contains(grouped, `"cyber_insurance_amount": { "value"`) {
		t.Error("grouped prompt should describe every subfield")
	}
}
