// Package executor turns model requests into HTTP calls and captures the
// responses.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"pkt.systems/apivar/internal/model"
	"pkt.systems/apivar/internal/vars"
	"pkt.systems/pslog"
)

const defaultTimeout = 15 * time.Second

// DefaultContentType is used for bodies when neither the request nor the
// defaults name a content type.
const DefaultContentType = "text/plain; charset=utf-8"

var (
	// ErrMissingURL is returned when a request has no url and no base url is configured.
	ErrMissingURL = errors.New("URL is required")
	// ErrTransport wraps failures to send a request or read its response.
	ErrTransport = errors.New("transport error")
	// ErrAuthentication wraps failures to obtain credentials.
	ErrAuthentication = errors.New("authentication failed")
)

// TokenProvider issues bearer tokens for the azure-credentials scheme.
type TokenProvider interface {
	Token(ctx context.Context, scopes []string) (string, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context, scopes []string) (string, error)

// Token implements TokenProvider.
func (f TokenProviderFunc) Token(ctx context.Context, scopes []string) (string, error) {
	return f(ctx, scopes)
}

// Executor runs the requests of one document. It owns the #{...} response
// store, so an Executor must not be shared between documents.
type Executor struct {
	client    *http.Client
	defaults  model.Defaults
	responses *vars.Responses
	resolver  *vars.Resolver
	tokens    TokenProvider
	timeout   time.Duration
	logger    pslog.Base
}

// Option configures an Executor.
type Option func(*Executor)

// WithResolver sets the resolver applied to URLs, headers, query values and bodies.
func WithResolver(r *vars.Resolver) Option {
	return func(e *Executor) { e.resolver = r }
}

// WithTokenProvider sets the provider used for azure-credentials.
func WithTokenProvider(p TokenProvider) Option {
	return func(e *Executor) { e.tokens = p }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger pslog.Base) Option {
	return func(e *Executor) { e.logger = logger }
}

// New returns an Executor for a document with the given defaults.
func New(client *http.Client, defaults model.Defaults, opts ...Option) *Executor {
	e := &Executor{
		client:    client,
		defaults:  defaults,
		responses: vars.NewResponses(),
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.client == nil {
		e.client = &http.Client{Timeout: defaultTimeout}
	}
	if e.logger == nil {
		e.logger = pslog.New(os.Stdout)
	}
	return e
}

// Responses exposes the response store.
func (e *Executor) Responses() *vars.Responses {
	return e.responses
}

// ExecuteDocument runs every request of doc in order and stops at the first error.
func (e *Executor) ExecuteDocument(ctx context.Context, doc model.Document) ([]model.Response, error) {
	out := make([]model.Response, 0, len(doc.Requests))
	for i, req := range doc.Requests {
		res, err := e.Execute(ctx, req, i)
		if err != nil {
			return out, fmt.Errorf("request %d: %w", i, err)
		}
		out = append(out, res)
	}
	return out, nil
}

// Execute sends req, the index-th request of the document.
func (e *Executor) Execute(ctx context.Context, req model.Request, index int) (model.Response, error) {
	if err := ctx.Err(); err != nil {
		return model.Response{}, err
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	httpReq, err := e.build(ctx, req)
	if err != nil {
		return model.Response{}, err
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		e.logger.Debug("executor.request.failed", "method", httpReq.Method, "url", httpReq.URL.String(), "index", index, "err", err)
		return model.Response{}, fmt.Errorf("%w: %s %s: %v", ErrTransport, httpReq.Method, httpReq.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Response{}, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	e.logger.Debug("executor.request.done", "method", httpReq.Method, "url", httpReq.URL.String(), "index", index, "status", resp.StatusCode, "dur", time.Since(start).String())

	out := model.Response{
		Code:        resp.StatusCode,
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		Headers:     resp.Header.Clone(),
	}
	out.Content = e.decode(out.ContentType, body, index)
	if out.ContentType == model.MediaTypeJSON {
		e.responses.Set(index, out.Content)
	}
	return out, nil
}

func (e *Executor) build(ctx context.Context, req model.Request) (*http.Request, error) {
	raw := req.URL
	if raw == "" {
		if e.defaults.BaseURL == "" {
			return nil, ErrMissingURL
		}
		raw = e.defaults.BaseURL + req.Path
	}
	raw = e.expand(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if len(e.defaults.Query) > 0 || len(req.Query) > 0 {
		q := u.Query()
		for k, v := range e.defaults.Query {
			q.Set(k, e.expand(v))
		}
		for k, v := range req.Query {
			q.Set(k, e.expand(v))
		}
		u.RawQuery = q.Encode()
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader = http.NoBody
	hasBody := req.Body != "" && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch)
	if hasBody {
		body = strings.NewReader(e.expand(req.Body))
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, v := range e.defaults.Headers {
		httpReq.Header.Set(k, e.expand(v))
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, e.expand(v))
	}
	if hasBody {
		ct := req.ContentType
		if ct == "" {
			ct = e.defaults.ContentType
		}
		if ct == "" {
			ct = DefaultContentType
		}
		httpReq.Header.Set("Content-Type", ct)
	}

	auth := req.Authentication
	if auth == nil {
		auth = e.defaults.Authentication
	}
	if err := e.authenticate(ctx, httpReq, auth); err != nil {
		return nil, err
	}
	return httpReq, nil
}

func (e *Executor) authenticate(ctx context.Context, httpReq *http.Request, auth *model.Authentication) error {
	if auth == nil || auth.Auth == nil {
		return nil
	}
	switch a := auth.Auth.(type) {
	case model.APIKeyAuth:
		a.Key = e.expand(a.Key)
		httpReq.Header.Set(a.HeaderName(), a.HeaderValue())
	case model.AzureCredentialsAuth:
		if e.tokens == nil {
			return fmt.Errorf("%w: no token provider configured", ErrAuthentication)
		}
		token, err := e.tokens.Token(ctx, a.Scopes)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	default:
		return fmt.Errorf("%w: unsupported scheme %T", ErrAuthentication, a)
	}
	return nil
}

// expand applies ${...}, {{...}} and #{...} resolution.
func (e *Executor) expand(s string) string {
	return e.responses.Expand(e.resolver.Expand(s))
}
