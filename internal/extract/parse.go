package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/contractrag/internal/model"
)

var (
	extractedPattern = regexp.MustCompile(`(?s)<extracted>(.*?)</extracted>`)
	integerPattern   = regexp.MustCompile(`\d+`)
	fencePattern     = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

var errNoBlock = errors.New("no <extracted> block in response")

// extractBlock returns the trimmed content of the first <extracted> block
func extractBlock(text string) (string, error) {
	m := extractedPattern.FindStringSubmatch(text)
	if m == nil {
		return "", errNoBlock
	}
	block := strings.TrimSpace(m[1])
	if f := fencePattern.FindStringSubmatch(block); f != nil {
		block = strings.TrimSpace(f[1])
	}
	if block == "" {
		return "", errors.New("empty <extracted> block")
	}
	return block, nil
}

// parseSingle decodes {"value", "field_value_found", "page_number"}
func parseSingle(block string) (model.ExtractionResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return model.ExtractionResult{}, fmt.Errorf("decode object: %w", err)
	}
	for _, key := range []string{"value", "field_value_found", "page_number"} {
		if _, ok := raw[key]; !ok {
			return model.ExtractionResult{}, fmt.Errorf("missing key %q", key)
		}
	}

	var value model.FieldValue
	if err := json.Unmarshal(raw["value"], &value); err != nil {
		return model.ExtractionResult{}, fmt.Errorf("decode value: %w", err)
	}
	found, err := parseFound(raw["field_value_found"])
	if err != nil {
		return model.ExtractionResult{}, err
	}
	if value.IsNull() {
		found = false
	}
	if !found {
		return model.NullResult(), nil
	}

	page, ok := parsePage(raw["page_number"])
	if !ok {
		return model.ExtractionResult{}, fmt.Errorf("page_number %s has no integer", raw["page_number"])
	}
	return model.ExtractionResult{Value: value, Found: true, PageNumber: page}, nil
}

// parseGrouped decodes an object keyed by subfield name. Unknown keys are
// ignored, entries without value or page_number are dropped. At least one
// known subfield must survive.
func parseGrouped(block string, subfields []string) (map[string]model.ExtractionResult, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}

	out := make(map[string]model.ExtractionResult, len(subfields))
	for _, sub := range subfields {
		entry, ok := raw[sub]
		if !ok {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil {
			continue
		}
		rawValue, hasValue := fields["value"]
		rawPage, hasPage := fields["page_number"]
		if !hasValue || !hasPage {
			continue
		}
		var value model.FieldValue
		if err := json.Unmarshal(rawValue, &value); err != nil {
			continue
		}
		page, _ := parsePage(rawPage)
		out[sub] = model.ExtractionResult{
			Value:      value,
			Found:      !value.IsNull(),
			PageNumber: page,
		}
	}

	if len(out) == 0 {
		return nil, errors.New("no recognized subfields")
	}
	return out, nil
}

func parseFound(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes":
			return true, nil
		case "false", "no", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("field_value_found %s is not a boolean", raw)
}

// parsePage accepts 4, "4" or "Page 4" and returns the first integer
func parsePage(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	m := integerPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	i, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return i, true
}
