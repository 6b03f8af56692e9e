package validation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"pkt.systems/apivar/internal/model"
)

type pathComparisonValidator struct {
	def    model.PathComparisonValidation
	ignore map[string]struct{}
}

func newPathComparison(def model.PathComparisonValidation) (*pathComparisonValidator, error) {
	if def.Baseline == "" {
		return nil, fmt.Errorf("path-comparison: baseline is required")
	}
	ignore := make(map[string]struct{}, len(def.IgnorePaths))
	for _, p := range def.IgnorePaths {
		ignore[p] = struct{}{}
	}
	return &pathComparisonValidator{def: def, ignore: ignore}, nil
}

func (v *pathComparisonValidator) Validate(ctx context.Context, groups []ResponseGroup) error {
	selected, err := Select(v.def.TargetOf(), groups)
	if err != nil {
		return err
	}
	var failures []string
	for _, g := range selected {
		msg, err := v.compare(g)
		if err != nil {
			return err
		}
		if msg != "" {
			failures = append(failures, msg)
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%w: %s", ErrPathMismatch, strings.Join(failures, "\n"))
	}
	return nil
}

// compare returns a failure message for the group, or "" when every variant
// carries the baseline's paths.
func (v *pathComparisonValidator) compare(g ResponseGroup) (string, error) {
	for _, e := range g.Entries {
		if err := requireJSON(e, g.Index); err != nil {
			return "", err
		}
	}
	idx := slices.IndexFunc(g.Entries, func(e Entry) bool { return e.Variant == v.def.Baseline })
	if idx < 0 {
		return "", fmt.Errorf("%w: %q for request with index %d", ErrNoBaselineFound, v.def.Baseline, g.Index)
	}
	baseline := extractPaths(g.Entries[idx].Response.Content, v.def.PreserveArrayIndices)

	var lines []string
	for i, e := range g.Entries {
		if i == idx {
			continue
		}
		paths := extractPaths(e.Response.Content, v.def.PreserveArrayIndices)
		var missing []string
		for p := range baseline {
			if _, ok := paths[p]; ok {
				continue
			}
			if _, ok := v.ignore[p]; ok {
				continue
			}
			missing = append(missing, p)
		}
		if len(missing) == 0 {
			continue
		}
		slices.Sort(missing)
		lines = append(lines, fmt.Sprintf("Variant %s is missing paths: %s", e.Variant, strings.Join(missing, ", ")))
	}
	if len(lines) == 0 {
		return "", nil
	}
	return fmt.Sprintf("Validation failed for requests with index %d:\n%s", g.Index, strings.Join(lines, "\n")), nil
}
