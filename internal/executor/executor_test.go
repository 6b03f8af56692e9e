package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"pkt.systems/apivar/internal/model"
	"pkt.systems/apivar/internal/vars"
	"pkt.systems/pslog"
)

func testLogger() pslog.Base {
	return pslog.NewStructured(&bytes.Buffer{})
}

type captured struct {
	method  string
	path    string
	query   string
	headers http.Header
	body    string
}

func echoServer(t *testing.T, seen *[]captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*seen = append(*seen, captured{
			method:  r.Method,
			path:    r.URL.Path,
			query:   r.URL.RawQuery,
			headers: r.Header.Clone(),
			body:    string(b),
		})
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		fmt.Fprintf(w, `{"id":%d,"user":{"name":"ada"}}`, len(*seen))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteBuildsRequestFromDefaults(t *testing.T) {
	var seen []captured
	srv := echoServer(t, &seen)
	defaults := model.Defaults{
		BaseURL:     srv.URL + "/api",
		Headers:     map[string]string{"X-Default": "d", "X-Override": "default"},
		Query:       map[string]string{"api-version": "1.0", "shared": "default"},
		ContentType: "application/json",
		Authentication: &model.Authentication{Auth: model.APIKeyAuth{
			Key: "${key}", Prefix: "Key",
		}},
	}
	r := vars.New(vars.WithCLI(map[string]string{"key": "s3cret"}))
	ex := New(srv.Client(), defaults, WithResolver(r), WithLogger(testLogger()))

	res, err := ex.Execute(context.Background(), model.Request{
		Method:  "post",
		Path:    "/people?existing=1",
		Headers: map[string]string{"X-Override": "request"},
		Query:   map[string]string{"shared": "request"},
		Body:    `{"name":"{{key}}"}`,
	}, 0)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := seen[0]
	if got.method != http.MethodPost || got.path != "/api/people" {
		t.Fatalf("unexpected target %s %s", got.method, got.path)
	}
	if got.query != "api-version=1.0&existing=1&shared=request" {
		t.Fatalf("unexpected query %q", got.query)
	}
	if got.headers.Get("X-Default") != "d" || got.headers.Get("X-Override") != "request" {
		t.Fatalf("unexpected headers %v", got.headers)
	}
	if got.headers.Get("X-Api-Key") != "Key s3cret" {
		t.Fatalf("api key header %q", got.headers.Get("X-Api-Key"))
	}
	if got.headers.Get("Content-Type") != "application/json" || got.body != `{"name":"s3cret"}` {
		t.Fatalf("unexpected body %q (%s)", got.body, got.headers.Get("Content-Type"))
	}
	if res.Code != 200 || res.ContentType != model.MediaTypeJSON {
		t.Fatalf("unexpected response %+v", res)
	}
	if diff := cmp.Diff([]string{"a", "b"}, res.Headers["X-Multi"]); diff != "" {
		t.Fatalf("multi-valued header (-want +got):\n%s", diff)
	}
}

func TestExecuteSkipsBodyForGet(t *testing.T) {
	var seen []captured
	srv := echoServer(t, &seen)
	ex := New(srv.Client(), model.Defaults{}, WithLogger(testLogger()))
	if _, err := ex.Execute(context.Background(), model.Request{Method: "GET", URL: srv.URL, Body: "ignored"}, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if seen[0].body != "" || seen[0].headers.Get("Content-Type") != "" {
		t.Fatalf("GET carried a body: %+v", seen[0])
	}
}

func TestExecuteDefaultContentType(t *testing.T) {
	var seen []captured
	srv := echoServer(t, &seen)
	ex := New(srv.Client(), model.Defaults{}, WithLogger(testLogger()))
	if _, err := ex.Execute(context.Background(), model.Request{Method: "PUT", URL: srv.URL, Body: "x"}, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if ct := seen[0].headers.Get("Content-Type"); ct != DefaultContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestExecuteDocumentChainsResponses(t *testing.T) {
	var seen []captured
	srv := echoServer(t, &seen)
	ex := New(srv.Client(), model.Defaults{BaseURL: srv.URL}, WithLogger(testLogger()))
	doc := model.Document{Requests: []model.Request{
		{Method: "GET", Path: "/first"},
		{Method: "POST", Path: "/users/#{r0.id}", Body: `{"who":"#{r0.user.name}","missing":"#{r0.nope}"}`},
	}}
	res, err := ex.ExecuteDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(res))
	}
	if seen[1].path != "/users/1" {
		t.Fatalf("chained path %q", seen[1].path)
	}
	if seen[1].body != `{"who":"ada","missing":"#{r0.nope}"}` {
		t.Fatalf("chained body %q", seen[1].body)
	}
	content := res[1].Content.(map[string]any)
	if content["id"] != float64(2) {
		t.Fatalf("unexpected content %v", content)
	}
}

func TestExecuteMissingURL(t *testing.T) {
	ex := New(nil, model.Defaults{}, WithLogger(testLogger()))
	_, err := ex.Execute(context.Background(), model.Request{Method: "GET", Path: "/x"}, 0)
	if !errors.Is(err, ErrMissingURL) {
		t.Fatalf("expected ErrMissingURL, got %v", err)
	}
}

func TestExecuteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	ex := New(&http.Client{Timeout: time.Second}, model.Defaults{}, WithLogger(testLogger()))
	_, err := ex.Execute(context.Background(), model.Request{Method: "GET", URL: url}, 0)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestExecuteCapturesErrorStatusAndNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "nope")
	}))
	defer srv.Close()
	ex := New(srv.Client(), model.Defaults{}, WithLogger(testLogger()))
	res, err := ex.Execute(context.Background(), model.Request{Method: "GET", URL: srv.URL}, 0)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Code != 404 || res.Content != nil || res.ContentType != "text/plain" {
		t.Fatalf("unexpected response %+v", res)
	}
	if _, ok := ex.Responses().Get(0); ok {
		t.Fatalf("non-json response must not be stored")
	}
}

func TestExecuteEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: one\n\nevent: update\ndata: {\"a\":1}\n\n")
	}))
	defer srv.Close()
	ex := New(srv.Client(), model.Defaults{}, WithLogger(testLogger()))
	res, err := ex.Execute(context.Background(), model.Request{Method: "GET", URL: srv.URL}, 0)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []model.Event{{Event: "message", Data: "one"}, {Event: "update", Data: `{"a":1}`}}
	if diff := cmp.Diff(want, res.Content); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestExecuteAzureCredentials(t *testing.T) {
	var seen []captured
	srv := echoServer(t, &seen)
	var gotScopes []string
	provider := TokenProviderFunc(func(ctx context.Context, scopes []string) (string, error) {
		gotScopes = scopes
		return "abc", nil
	})
	defaults := model.Defaults{Authentication: &model.Authentication{Auth: model.AzureCredentialsAuth{Scopes: []string{"api://x/.default"}}}}
	ex := New(srv.Client(), defaults, WithTokenProvider(provider), WithLogger(testLogger()))
	if _, err := ex.Execute(context.Background(), model.Request{Method: "GET", URL: srv.URL}, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if seen[0].headers.Get("Authorization") != "Bearer abc" || len(gotScopes) != 1 {
		t.Fatalf("unexpected auth %q scopes %v", seen[0].headers.Get("Authorization"), gotScopes)
	}

	failing := New(srv.Client(), defaults, WithLogger(testLogger()), WithTokenProvider(TokenProviderFunc(func(context.Context, []string) (string, error) {
		return "", errors.New("no login")
	})))
	if _, err := failing.Execute(context.Background(), model.Request{Method: "GET", URL: srv.URL}, 0); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestMediaType(t *testing.T) {
	cases := map[string]string{
		"":                                "",
		"application/json; charset=utf-8": "application/json",
		"Text/Event-Stream":               "text/event-stream",
	}
	for in, want := range cases {
		if got := mediaType(in); got != want {
			t.Fatalf("mediaType(%q) = %q want %q", in, got, want)
		}
	}
}
