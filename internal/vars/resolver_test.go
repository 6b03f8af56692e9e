package vars

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestExpandLayeredPrecedence(t *testing.T) {
	r := New(
		WithScopes(
			map[string]string{"who": "config"},
			map[string]string{"who": "test", "t": "1"},
			map[string]string{"who": "suite", "s": "2", "t": "suite"},
		),
		WithCLI(map[string]string{"who": "cli", "c": "3", "s": "cli"}),
	)
	got := r.Expand("${who}-${t}-${s}-${c}")
	if got != "config-1-2-3" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestExpandLeavesUnknownTokens(t *testing.T) {
	r := New(WithLookupEnv(func(string) (string, bool) { return "", false }))
	in := "a ${missing} b ${env:NOPE} c {{also}} ${file:nope.bin:base64}"
	if got := r.Expand(in); got != in {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("APIVAR_TEST_TOKEN", "tok")
	r := New()
	if got := r.Expand("Bearer ${env:APIVAR_TEST_TOKEN}"); got != "Bearer tok" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestExpandBraceUsesCLIOnly(t *testing.T) {
	r := New(
		WithScopes(map[string]string{"name": "scope"}),
		WithCLI(map[string]string{"id": "42"}),
	)
	if got := r.Expand("{{id}}/{{name}}"); got != "42/{{name}}" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestExpandFileBase64(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blob.bin"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := New(WithBaseDir(dir))
	want := base64.StdEncoding.EncodeToString([]byte("hello"))
	if got := r.Expand("${file:blob.bin:base64}"); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if got := r.Expand("${file:blob.bin:hex}"); got != "${file:blob.bin:hex}" {
		t.Fatalf("unsupported format should pass through, got %q", got)
	}
}

func TestWithDoesNotMutateParent(t *testing.T) {
	base := New(WithCLI(map[string]string{"a": "1"}))
	child := base.With(WithScopes(map[string]string{"a": "2"}))
	if base.Expand("${a}") != "1" || child.Expand("${a}") != "2" {
		t.Fatalf("parent %q child %q", base.Expand("${a}"), child.Expand("${a}"))
	}
}

func TestLayer(t *testing.T) {
	got := Layer(map[string]string{"a": "low", "b": "low"}, map[string]string{"a": "high"})
	if got["a"] != "high" || got["b"] != "low" {
		t.Fatalf("unexpected layer %v", got)
	}
}
