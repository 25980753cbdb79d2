package pipeline

import (
	"github.com/ppiankov/contractrag/internal/extract"
	"github.com/ppiankov/contractrag/internal/model"
)

// State is where a field ended up
type State string

const (
	StateFound     State = "found"
	StateExhausted State = "exhausted"
)

// Resolution records how one field spec was resolved
type Resolution struct {
	Field      model.FieldSpec
	State      State
	QueryIndex int // Candidate query that produced the answer, -1 if none
	Attempts   int // Model calls across all candidate queries
	Outcome    extract.Outcome
	Err        error // Retrieval or extraction error that ended the field
}

// GetError returns the error that degraded the field
func (r *Resolution) GetError() error {
	return r.Err
}

// Outputs expands the resolution into output entries. Single fields always
// yield one entry; a found grouped field yields one entry per populated
// subfield in declared subfield order.
func (r *Resolution) Outputs() []model.FieldOutput {
	if r.State != StateFound {
		return []model.FieldOutput{model.NullOutput(r.Field.Name)}
	}

	if r.Field.Kind() == model.FieldKindGrouped {
		var out []model.FieldOutput
		for _, sub := range r.Field.Subfields {
			res, ok := r.Outcome.Subfields[sub]
			if !ok || !res.Found {
				continue
			}
			out = append(out, model.FieldOutput{Field: sub, Value: res.Value, PageNum: res.PageNumber})
		}
		return out
	}

	res := r.Outcome.Result
	return []model.FieldOutput{{Field: r.Field.Name, Value: res.Value, PageNum: res.PageNumber}}
}

func exhausted(field model.FieldSpec, err error) *Resolution {
	return &Resolution{Field: field, State: StateExhausted, QueryIndex: -1, Err: err}
}
