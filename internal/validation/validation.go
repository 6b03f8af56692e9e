// Package validation groups variant responses by request index and checks
// them against the validation kinds a suite can declare.
package validation

import (
	"context"
	"errors"
	"fmt"
	"os"

	"pkt.systems/apivar/internal/model"
	"pkt.systems/pslog"
)

// Errors returned by validators, matched with errors.Is.
var (
	ErrContentTypeMismatch = errors.New("content type mismatch")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrNoBaselineFound     = errors.New("no baseline variant found")
	ErrSchemaLoad          = errors.New("schema load failed")
	ErrSchemaValidation    = errors.New("schema validation failed")
	ErrDeserialization     = errors.New("deserialization failed")
	ErrUnknownValidation   = errors.New("unknown validation")
	ErrScript              = errors.New("script validation failed")
	ErrStatus              = errors.New("status mismatch")
	ErrPathMismatch        = errors.New("path comparison failed")
)

// VariantResult holds the responses one configuration produced for a test.
type VariantResult struct {
	Variant   string
	Responses []model.Response
}

// Entry is one variant's response at a given request index.
type Entry struct {
	Variant  string
	Response model.Response
}

// ResponseGroup holds every variant's response for one request index.
type ResponseGroup struct {
	Index   int
	Entries []Entry
}

// Validator checks grouped responses. A nil error means the check passed.
type Validator interface {
	Validate(ctx context.Context, groups []ResponseGroup) error
}

type config struct {
	logger pslog.Base
}

// Option configures validators built by New.
type Option func(*config)

// WithLogger sets the logger used by validators that emit diagnostics.
func WithLogger(logger pslog.Base) Option {
	return func(c *config) { c.logger = logger }
}

// New builds the validator for def.
func New(def model.Validation, opts ...Option) (Validator, error) {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = pslog.New(os.Stdout)
	}
	switch v := def.(type) {
	case model.StatusValidation:
		return &statusValidator{def: v}, nil
	case model.PathComparisonValidation:
		return newPathComparison(v)
	case model.FieldFormatValidation:
		return newFieldFormat(v)
	case model.JSONSchemaValidation:
		return newJSONSchema(v)
	case model.ScriptValidation:
		return newScript(v, cfg.logger)
	case nil:
		return nil, fmt.Errorf("%w: empty definition", ErrUnknownValidation)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownValidation, def.Kind())
	}
}

// GroupByRequestIndex zips variant responses by position. The number of
// groups is the length of the shortest response list.
func GroupByRequestIndex(results []VariantResult) []ResponseGroup {
	if len(results) == 0 {
		return nil
	}
	n := len(results[0].Responses)
	for _, r := range results[1:] {
		n = min(n, len(r.Responses))
	}
	groups := make([]ResponseGroup, n)
	for i := range n {
		entries := make([]Entry, len(results))
		for j, r := range results {
			entries[j] = Entry{Variant: r.Variant, Response: r.Responses[i]}
		}
		groups[i] = ResponseGroup{Index: i, Entries: entries}
	}
	return groups
}

// Select returns the groups a target addresses.
func Select(target model.Target, groups []ResponseGroup) ([]ResponseGroup, error) {
	switch t := target.(type) {
	case nil, model.AllTarget:
		return groups, nil
	case model.SingleTarget:
		if err := checkIndex(t.Index, len(groups)); err != nil {
			return nil, err
		}
		return []ResponseGroup{groups[t.Index]}, nil
	case model.MultipleTarget:
		out := make([]ResponseGroup, 0, len(t.Indices))
		for _, idx := range t.Indices {
			if err := checkIndex(idx, len(groups)); err != nil {
				return nil, err
			}
			out = append(out, groups[idx])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported target %T", target)
	}
}

func checkIndex(idx, n int) error {
	if idx < 0 || idx >= n {
		return fmt.Errorf("%w: index %d (%d request groups)", ErrIndexOutOfRange, idx, n)
	}
	return nil
}

func requireJSON(e Entry, index int) error {
	if e.Response.ContentType != model.MediaTypeJSON {
		return fmt.Errorf("%w: variant %s request with index %d has content type %q, expected %s",
			ErrContentTypeMismatch, e.Variant, index, e.Response.ContentType, model.MediaTypeJSON)
	}
	return nil
}
