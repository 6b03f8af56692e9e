package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pkt.systems/apivar/internal/model"
	"pkt.systems/apivar/internal/vars"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseDocumentDefaultsPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shared/base.yaml", `
base-url: https://imported.example
content-type: text/plain
headers:
  X-Imported: "1"
  X-Shared: imported
query:
  a: imported
`)
	req := writeFile(t, dir, "req.yaml", `
defaults:
  import: shared/base.yaml
  content-type: application/json
  headers:
    X-Shared: inline
    X-Inline: "1"
requests:
  - method: GET
    path: /people
`)
	explicit := writeFile(t, dir, "explicit.yaml", `
headers:
  X-Shared: explicit
authentication:
  type: api-key
  key: k
`)

	doc, err := ParseDocument(context.Background(), req, explicit, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := model.Defaults{
		Import:         "shared/base.yaml",
		BaseURL:        "https://imported.example",
		Authentication: &model.Authentication{Auth: model.APIKeyAuth{Key: "k"}},
		Headers:        map[string]string{"X-Imported": "1", "X-Shared": "explicit", "X-Inline": "1"},
		Query:          map[string]string{"a": "imported"},
		ContentType:    "application/json",
	}
	if diff := cmp.Diff(want, doc.Defaults); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDocumentBareRequestMatchesDocument(t *testing.T) {
	dir := t.TempDir()
	bare := writeFile(t, dir, "bare.yaml", "method: POST\npath: /x\nbody: '{\"a\":1}'\n")
	full := writeFile(t, dir, "full.yaml", "requests:\n  - method: POST\n    path: /x\n    body: '{\"a\":1}'\n")

	a, err := ParseDocument(context.Background(), bare, "", nil)
	if err != nil {
		t.Fatalf("bare: %v", err)
	}
	b, err := ParseDocument(context.Background(), full, "", nil)
	if err != nil {
		t.Fatalf("full: %v", err)
	}
	if diff := cmp.Diff(b, a); diff != "" {
		t.Fatalf("bare request differs (-full +bare):\n%s", diff)
	}
}

func TestParseDocumentMissingFiles(t *testing.T) {
	dir := t.TempDir()
	req := writeFile(t, dir, "req.yaml", "method: GET\nurl: http://x\n")
	if _, err := ParseDocument(context.Background(), filepath.Join(dir, "nope.yaml"), "", nil); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound for request, got %v", err)
	}
	if _, err := ParseDocument(context.Background(), req, filepath.Join(dir, "nope.yaml"), nil); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound for defaults, got %v", err)
	}
	imp := writeFile(t, dir, "imp.yaml", "defaults:\n  import: gone.yaml\nrequests:\n  - method: GET\n")
	if _, err := ParseDocument(context.Background(), imp, "", nil); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound for import, got %v", err)
	}
}

func TestParseDocumentRejectsUnknownShape(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "hello: world\n")
	if _, err := ParseDocument(context.Background(), path, "", nil); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	path = writeFile(t, dir, "broken.yaml", "requests: [\n")
	if _, err := ParseDocument(context.Background(), path, "", nil); !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse for invalid yaml, got %v", err)
	}
}

func TestLoadInterpolatesScalars(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "suite.yaml", `
variables:
  region: ${region}
configurations:
  - name: ${cfg}
    path: c.yaml
tests:
  - name: t
    request-file: r.yaml
    configurations: [v1]
    validations:
      - type: status
        status: ${code}
`)
	r := vars.New(vars.WithCLI(map[string]string{"region": "eu", "cfg": "v1", "code": "201"}))
	suite, err := ParseSuite(context.Background(), path, r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if suite.Variables["region"] != "eu" || suite.Configurations[0].Name != "v1" {
		t.Fatalf("not interpolated: %+v", suite)
	}
	for i, v := range suite.Tests[0].Validations {
		if st := v.Validation.(model.StatusValidation); st.Status != 201 {
			t.Fatalf("validation %d status %d", i, st.Status)
		}
	}
}

func TestLoadUnknownTokenPassesThrough(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "req.yaml", "method: GET\nurl: http://x/${nope}\n")
	doc, err := ParseDocument(context.Background(), path, "", vars.New())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Requests[0].URL != "http://x/${nope}" {
		t.Fatalf("unexpected url %q", doc.Requests[0].URL)
	}
}

func TestLoadKeepsStringsForNullLikeValues(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "suite.yaml", `
variables:
  plain: ${empty}
  tilde: ${tilde}
  word: ${null}
  mixed: id-${num}
  num: ${num}
`)
	r := vars.New(vars.WithCLI(map[string]string{"empty": "", "tilde": "~", "null": "null", "num": "7"}))
	suite, err := Load[model.Suite](context.Background(), path, r)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string]string{"plain": "", "tilde": "~", "word": "null", "mixed": "id-7", "num": "7"}
	if diff := cmp.Diff(want, suite.Variables); diff != "" {
		t.Fatalf("variables mismatch (-want +got):\n%s", diff)
	}
}
