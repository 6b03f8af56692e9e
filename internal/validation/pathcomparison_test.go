package validation

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pkt.systems/apivar/internal/model"
)

func decoded(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func sortedPaths(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func TestExtractPaths(t *testing.T) {
	doc := decoded(t, `{"a":{"b":1},"list":[{"x":1},{"y":2}],"grid":[[1,2],[3]],"s":"v"}`)
	got := sortedPaths(extractPaths(doc, false))
	want := []string{"a", "a.b", "grid", "grid[]", "grid[][]", "list", "list[]", "list[].x", "list[].y", "s"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("paths (-want +got):\n%s", diff)
	}
	got = sortedPaths(extractPaths(doc, true))
	want = []string{"a", "a.b", "grid", "grid[0]", "grid[0][0]", "grid[0][1]", "grid[1]", "grid[1][0]", "list", "list[0]", "list[0].x", "list[1]", "list[1].y", "s"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("indexed paths (-want +got):\n%s", diff)
	}
}

func TestPathComparison(t *testing.T) {
	baseline := jsonResp(200, decoded(t, `{"id":1,"name":"a","meta":{"etag":"x","ts":1}}`))
	same := jsonResp(200, decoded(t, `{"id":2,"name":"b","meta":{"etag":"y","ts":2},"extra":true}`))
	missing := jsonResp(200, decoded(t, `{"id":3,"meta":{}}`))
	groups := GroupByRequestIndex([]VariantResult{
		{Variant: "v1", Responses: []model.Response{baseline}},
		{Variant: "v2", Responses: []model.Response{same}},
		{Variant: "v3", Responses: []model.Response{missing}},
	})

	v, err := New(model.PathComparisonValidation{Baseline: "v1"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = v.Validate(context.Background(), groups)
	if !errors.Is(err, ErrPathMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	want := "Validation failed for requests with index 0:\nVariant v3 is missing paths: meta.etag, meta.ts, name"
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("unexpected message:\n%s", err)
	}
	if strings.Contains(err.Error(), "v2") {
		t.Fatalf("v2 carries every baseline path: %s", err)
	}

	ignoring, _ := New(model.PathComparisonValidation{Baseline: "v1", IgnorePaths: []string{"name", "meta.etag", "meta.ts"}})
	if err := ignoring.Validate(context.Background(), groups); err != nil {
		t.Fatalf("expected pass with ignore-paths, got %v", err)
	}
}

func TestPathComparisonNoBaseline(t *testing.T) {
	groups := GroupByRequestIndex([]VariantResult{
		{Variant: "v1", Responses: []model.Response{jsonResp(200, map[string]any{})}},
	})
	v, _ := New(model.PathComparisonValidation{Baseline: "ghost"})
	if err := v.Validate(context.Background(), groups); !errors.Is(err, ErrNoBaselineFound) {
		t.Fatalf("expected ErrNoBaselineFound, got %v", err)
	}
}

func TestPathComparisonRequiresJSON(t *testing.T) {
	groups := GroupByRequestIndex([]VariantResult{
		{Variant: "v1", Responses: []model.Response{jsonResp(200, map[string]any{})}},
		{Variant: "v2", Responses: []model.Response{{Code: 200, ContentType: "text/html"}}},
	})
	v, _ := New(model.PathComparisonValidation{Baseline: "v1"})
	if err := v.Validate(context.Background(), groups); !errors.Is(err, ErrContentTypeMismatch) {
		t.Fatalf("expected ErrContentTypeMismatch, got %v", err)
	}
}
