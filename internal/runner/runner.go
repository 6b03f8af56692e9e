package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"pkt.systems/apivar/internal/credentials"
	"pkt.systems/apivar/internal/executor"
	"pkt.systems/apivar/internal/parser"
	"pkt.systems/apivar/internal/vars"
	"pkt.systems/pslog"
)

const defaultTimeout = 15 * time.Second

// runner implements Runner.
type runner struct {
	cfg runnerConfig
}

type runnerConfig struct {
	logger     pslog.Base
	httpClient *http.Client
	timeout    time.Duration
	tokens     executor.TokenProvider
}

func newConfig(opts []Option) runnerConfig {
	cfg := runnerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = pslog.New(os.Stdout)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.timeout == 0 {
		cfg.timeout = defaultTimeout
	}
	if cfg.tokens == nil {
		cfg.tokens = credentials.NewAzure(nil)
	}
	return cfg
}

// New constructs a Runner with optional configuration.
func New(ctx context.Context, opts ...Option) (Runner, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	return &runner{cfg: newConfig(opts)}, nil
}

// RunDocument executes every request of a document in order. A failing
// request is recorded and the remaining requests still run; only parse
// errors are returned as err.
func (r *runner) RunDocument(ctx context.Context, path string, opts DocumentOptions) (DocumentResult, error) {
	start := time.Now()
	resolver := vars.New(vars.WithCLI(opts.Vars), vars.WithLogger(r.cfg.logger))
	doc, err := parser.ParseDocument(ctx, path, opts.DefaultsPath, resolver)
	if err != nil {
		return DocumentResult{}, err
	}

	timeout := r.cfg.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ex := executor.New(r.cfg.httpClient, doc.Defaults,
		executor.WithResolver(resolver),
		executor.WithTokenProvider(r.cfg.tokens),
		executor.WithTimeout(timeout),
		executor.WithLogger(r.cfg.logger),
	)

	res := DocumentResult{Path: path}
	for i, req := range doc.Requests {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		resp, err := ex.Execute(ctx, req, i)
		if err != nil {
			r.cfg.logger.Error("runner.request.failed", "file", path, "index", i, "method", req.Method, "err", err)
			res.Failures = append(res.Failures, RequestFailure{Index: i, Method: req.Method, Message: err.Error()})
			continue
		}
		res.Responses = append(res.Responses, resp)
	}
	res.Duration = time.Since(start)
	return res, nil
}

// RunSuite initializes, discovers and runs a suite.
func (r *runner) RunSuite(ctx context.Context, path string, opts SuiteOptions) (SuiteSummary, error) {
	s := newSession(path, opts, r.cfg)
	if err := s.Init(ctx); err != nil {
		return SuiteSummary{}, fmt.Errorf("init suite: %w", err)
	}
	if _, err := s.Discover(ctx); err != nil {
		return SuiteSummary{}, err
	}
	return s.Run(ctx)
}
