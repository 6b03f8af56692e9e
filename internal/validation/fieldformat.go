package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
	"pkt.systems/apivar/internal/model"
)

type fieldFormatValidator struct {
	def  model.FieldFormatValidation
	eval gval.Evaluable
	// multi is set when the expression can select several values, in which
	// case jsonpath returns a slice of matches.
	multi bool
}

func newFieldFormat(def model.FieldFormatValidation) (*fieldFormatValidator, error) {
	if !strings.EqualFold(def.Format, model.FormatJSON) {
		return nil, fmt.Errorf("field-format: unsupported format %q", def.Format)
	}
	eval, err := jsonpath.New(def.Path)
	if err != nil {
		return nil, fmt.Errorf("field-format: path %q: %w", def.Path, err)
	}
	return &fieldFormatValidator{def: def, eval: eval, multi: isMultiPath(def.Path)}, nil
}

func isMultiPath(p string) bool {
	return strings.Contains(p, "*") || strings.Contains(p, "..") || strings.Contains(p, "?(") ||
		strings.Contains(p, ",") || strings.Contains(p, ":")
}

func (v *fieldFormatValidator) Validate(ctx context.Context, groups []ResponseGroup) error {
	selected, err := Select(v.def.TargetOf(), groups)
	if err != nil {
		return err
	}
	for _, g := range selected {
		for _, e := range g.Entries {
			if err := v.check(ctx, e, g.Index); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *fieldFormatValidator) check(ctx context.Context, e Entry, index int) error {
	if e.Response.Content == nil {
		return fmt.Errorf("%w: variant %s request with index %d has no content", ErrDeserialization, e.Variant, index)
	}
	res, err := v.eval(ctx, e.Response.Content)
	if err != nil {
		// an expression that matches nothing is not a failure
		return nil
	}
	matches := []any{res}
	if v.multi {
		if list, ok := res.([]any); ok {
			matches = list
		}
	}
	for _, m := range matches {
		s, ok := m.(string)
		if !ok {
			return fmt.Errorf("%w: variant %s request with index %d: value at %s is %T, expected a JSON string",
				ErrDeserialization, e.Variant, index, v.def.Path, m)
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return fmt.Errorf("%w: variant %s request with index %d: value at %s is not valid JSON: %v",
				ErrDeserialization, e.Variant, index, v.def.Path, err)
		}
		if decoded == nil {
			return fmt.Errorf("%w: variant %s request with index %d: value at %s deserialized to null",
				ErrDeserialization, e.Variant, index, v.def.Path)
		}
	}
	return nil
}
