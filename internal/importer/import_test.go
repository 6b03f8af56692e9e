package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
	"pkt.systems/apivar/internal/model"
	"pkt.systems/apivar/internal/parser"
	"pkt.systems/apivar/internal/runner"
	"pkt.systems/apivar/internal/vars"
	"pkt.systems/pslog"
)

const peopleSpec = `openapi: 3.0.3
info:
  title: People
  version: "1"
servers:
  - url: SERVER_URL
security:
  - apiKey: []
components:
  securitySchemes:
    apiKey:
      type: apiKey
      in: header
      name: X-Api-Key
  schemas:
    Address:
      type: object
      required: [city]
      properties:
        city:
          type: string
    Person:
      type: object
      required: [firstName, address]
      properties:
        firstName:
          type: string
        address:
          $ref: '#/components/schemas/Address'
paths:
  /health:
    get:
      operationId: health
      responses:
        "200":
          description: ok
  /people:
    post:
      operationId: createPerson
      requestBody:
        content:
          application/json:
            example:
              firstName: Ada
              address:
                city: London
      responses:
        "201":
          description: created
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Person'
  /people/{id}:
    get:
      operationId: getPerson
      parameters:
        - name: id
          in: path
          required: true
          example: "42"
          schema:
            type: string
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Person'
        "404":
          description: missing
`

func quietLogger() pslog.Logger {
	return pslog.NewStructured(&bytes.Buffer{})
}

func writeSpec(t *testing.T, serverURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	if err := os.WriteFile(path, []byte(strings.ReplaceAll(peopleSpec, "SERVER_URL", serverURL)), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func TestImportOpenAPIWritesSuite(t *testing.T) {
	out := t.TempDir()
	src := writeSpec(t, "https://api.sample.test")

	if err := ImportOpenAPI(context.Background(), Options{Source: src, OutputDir: out, Logger: quietLogger()}); err != nil {
		t.Fatalf("import openapi: %v", err)
	}

	var defaults model.Defaults
	if err := yaml.Unmarshal(mustRead(t, filepath.Join(out, "defaults.yaml")), &defaults); err != nil {
		t.Fatalf("decode defaults: %v", err)
	}
	if defaults.BaseURL != "https://api.sample.test" {
		t.Fatalf("unexpected base url %q", defaults.BaseURL)
	}
	key, ok := defaults.Authentication.Auth.(model.APIKeyAuth)
	if !ok || key.Header != "X-Api-Key" || key.Key != "${apiKey}" {
		t.Fatalf("unexpected authentication %#v", defaults.Authentication)
	}

	suite, err := parser.ParseSuite(context.Background(), filepath.Join(out, "suite.yaml"), vars.New())
	if err != nil {
		t.Fatalf("parse suite: %v", err)
	}
	if len(suite.Tests) != 3 {
		t.Fatalf("expected 3 tests, got %d", len(suite.Tests))
	}
	if suite.Variables["id"] != "42" {
		t.Fatalf("expected path parameter example as variable, got %v", suite.Variables)
	}

	byName := map[string]model.Test{}
	for _, tc := range suite.Tests {
		byName[tc.Name] = tc
	}
	create := byName["createPerson"]
	if got := create.Validations[0].Validation.(model.StatusValidation).Status; got != 201 {
		t.Fatalf("expected status 201, got %d", got)
	}
	if len(create.Validations) != 2 {
		t.Fatalf("expected status and schema validations, got %d", len(create.Validations))
	}
	schema := create.Validations[1].Validation.(model.JSONSchemaValidation).Schema.Schema.(model.BundleSchema)
	if schema.RootSelector != "#/components/schemas/Person" {
		t.Fatalf("unexpected root selector %q", schema.RootSelector)
	}
	if len(byName["health"].Validations) != 1 {
		t.Fatalf("expected status-only validation for health")
	}

	doc, err := parser.ParseDocument(context.Background(), filepath.Join(out, "requests", "getPerson.yaml"), "", vars.New())
	if err != nil {
		t.Fatalf("parse request: %v", err)
	}
	if doc.Requests[0].Path != "/people/${id}" || doc.Requests[0].Method != http.MethodGet {
		t.Fatalf("unexpected request %+v", doc.Requests[0])
	}

	body := mustRead(t, filepath.Join(out, "requests", "createPerson.yaml"))
	if !strings.Contains(string(body), `"firstName": "Ada"`) {
		t.Fatalf("expected example body, got:\n%s", body)
	}

	var bundle map[string]any
	if err := json.Unmarshal(mustRead(t, filepath.Join(out, "schemas", "bundle.json")), &bundle); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if _, ok := bundle["components"].(map[string]any)["schemas"].(map[string]any)["Person"]; !ok {
		t.Fatalf("bundle missing Person: %v", bundle)
	}
}

func TestImportedSuiteRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/health":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/people" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			io.Copy(w, r.Body)
		case r.URL.Path == "/people/42":
			io.WriteString(w, `{"firstName":"Ada","address":{"city":"London"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	out := t.TempDir()
	if err := ImportOpenAPI(context.Background(), Options{Source: writeSpec(t, srv.URL), OutputDir: out, Logger: quietLogger()}); err != nil {
		t.Fatalf("import openapi: %v", err)
	}

	ctx := context.Background()
	r, err := runner.New(ctx, runner.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	sum, err := r.RunSuite(ctx, filepath.Join(out, "suite.yaml"), runner.SuiteOptions{Vars: map[string]string{"apiKey": "secret"}})
	if err != nil {
		t.Fatalf("run suite: %v", err)
	}
	if sum.Total != 3 || sum.Passed != 3 {
		for _, tr := range sum.Tests {
			t.Logf("%s: %s %s", tr.Name, tr.Outcome, tr.Message)
		}
		t.Fatalf("expected all imported tests to pass, got %+v", sum)
	}
}

func TestImportOpenAPIIncludePathAndSummary(t *testing.T) {
	out := t.TempDir()
	summaryPath := filepath.Join(out, "summary.json")
	opts := Options{
		Source:         writeSpec(t, "https://api.sample.test"),
		OutputDir:      out,
		OutputFile:     summaryPath,
		IncludePaths:   []string{"/people/"},
		DisableSchemas: true,
		Logger:         quietLogger(),
	}
	if err := ImportOpenAPI(context.Background(), opts); err != nil {
		t.Fatalf("import openapi: %v", err)
	}

	var summary struct {
		Format   string   `json:"format"`
		Tests    int      `json:"tests"`
		Requests []string `json:"requests"`
		Vars     []string `json:"vars"`
	}
	if err := json.Unmarshal(mustRead(t, summaryPath), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Format != "apivar" || summary.Tests != 1 || len(summary.Requests) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.Vars) != 1 || summary.Vars[0] != "apiKey" {
		t.Fatalf("expected apiKey variable, got %v", summary.Vars)
	}
	if _, err := os.Stat(filepath.Join(out, "schemas", "bundle.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no bundle when schemas are disabled, got %v", err)
	}
}

func TestAzureOAuthBecomesAzureCredentials(t *testing.T) {
	spec := `openapi: 3.0.3
info: {title: Azure, version: "1"}
servers: [{url: "https://api.sample.test"}]
security:
  - aad: ["api://people/.default"]
components:
  securitySchemes:
    aad:
      type: oauth2
      flows:
        clientCredentials:
          tokenUrl: https://login.microsoftonline.com/tenant/oauth2/v2.0/token
          scopes:
            api://people/.default: access
paths:
  /ping:
    get:
      responses:
        "204": {description: ok}
`
	src := filepath.Join(t.TempDir(), "azure.yaml")
	if err := os.WriteFile(src, []byte(spec), 0o644); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()
	if err := ImportOpenAPI(context.Background(), Options{Source: src, OutputDir: out, Logger: quietLogger()}); err != nil {
		t.Fatalf("import openapi: %v", err)
	}

	var defaults model.Defaults
	if err := yaml.Unmarshal(mustRead(t, filepath.Join(out, "defaults.yaml")), &defaults); err != nil {
		t.Fatalf("decode defaults: %v", err)
	}
	az, ok := defaults.Authentication.Auth.(model.AzureCredentialsAuth)
	if !ok || len(az.Scopes) != 1 || az.Scopes[0] != "api://people/.default" {
		t.Fatalf("unexpected authentication %#v", defaults.Authentication)
	}
	if _, err := os.Stat(filepath.Join(out, "requests", "GET__ping.yaml")); err != nil {
		t.Fatalf("expected request named after verb and route: %v", err)
	}
}

func TestToVarName(t *testing.T) {
	cases := map[string]string{
		"api_key":    "apiKey",
		"X-Api-Key":  "xApiKey",
		"petId":      "petId",
		"ID":         "id",
		"  ":         "auth",
		"bearerAuth": "bearerAuth",
	}
	for in, want := range cases {
		if got := toVarName(in); got != want {
			t.Errorf("toVarName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAllowLocalRef(t *testing.T) {
	base := t.TempDir()
	opts := Options{Source: filepath.Join(base, "openapi.yaml")}
	if !allowLocalRef(filepath.Join(base, "schemas", "a.yaml"), opts) {
		t.Fatalf("expected ref inside source tree to be allowed")
	}
	if allowLocalRef(filepath.Join(filepath.Dir(base), "other.yaml"), opts) {
		t.Fatalf("expected ref outside source tree to be blocked")
	}
	opts.AllowFileRefs = true
	if !allowLocalRef("/etc/hosts", opts) {
		t.Fatalf("expected AllowFileRefs to admit any path")
	}
}
