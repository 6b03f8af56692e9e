package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pkt.systems/apivar/internal/executor"
	"pkt.systems/apivar/internal/model"
	"pkt.systems/apivar/internal/parser"
	"pkt.systems/apivar/internal/validation"
	"pkt.systems/apivar/internal/vars"
)

var (
	// ErrUnknownConfiguration is returned when a test names a configuration the suite does not define.
	ErrUnknownConfiguration = errors.New("configuration reference error")
	// ErrConfigurationNotFound is returned when a configuration file is missing.
	ErrConfigurationNotFound = errors.New("configuration file not found")
	// ErrRequestFileNotFound is returned when a test's request file is missing.
	ErrRequestFileNotFound = errors.New("request file not found")
	// ErrAlreadyInitialized is returned when Init is called on a session that is already initialized.
	ErrAlreadyInitialized = errors.New("session already initialized")
	// ErrAlreadyFailed is returned by a session whose Init has failed.
	ErrAlreadyFailed = errors.New("session failed to initialize")
	// ErrNotInitialized is returned by Discover or Run before Init has succeeded.
	ErrNotInitialized = errors.New("session not initialized")
)

type sessionState int

const (
	stateUninitialized sessionState = iota
	stateInitializing
	stateReady
	stateFailed
)

// TestCase is a discovered suite test.
type TestCase struct {
	Name     string
	UID      string
	Skip     bool
	Variants []string
}

type variant struct {
	name     string
	doc      model.Document
	resolver *vars.Resolver
}

type frameworkTest struct {
	def      model.Test
	uid      string
	variants []variant
}

// Session runs one suite file. Init must succeed before Discover or Run.
type Session struct {
	mu    sync.Mutex
	state sessionState

	path string
	dir  string
	opts SuiteOptions
	cfg  runnerConfig

	suite model.Suite
	tests []frameworkTest
}

// NewSession prepares a session for the suite at path.
func NewSession(path string, opts SuiteOptions, ropts ...Option) *Session {
	return newSession(path, opts, newConfig(ropts))
}

func newSession(path string, opts SuiteOptions, cfg runnerConfig) *Session {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if opts.Timeout > 0 {
		cfg.timeout = opts.Timeout
	}
	return &Session{path: path, dir: filepath.Dir(path), opts: opts, cfg: cfg}
}

// Init parses the suite, checks every referenced file and configuration and
// builds one document per test and configuration. It may be called once.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateInitializing, stateReady:
		s.mu.Unlock()
		return ErrAlreadyInitialized
	case stateFailed:
		s.mu.Unlock()
		return ErrAlreadyFailed
	}
	s.state = stateInitializing
	s.mu.Unlock()

	err := s.init(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = stateFailed
		s.cfg.logger.Error("runner.session.init.failed", "suite", s.path, "err", err)
		return err
	}
	s.state = stateReady
	return nil
}

func (s *Session) init(ctx context.Context) error {
	base := vars.New(vars.WithCLI(s.opts.Vars), vars.WithLogger(s.cfg.logger))
	suite, err := parser.ParseSuite(ctx, s.path, base)
	if err != nil {
		return err
	}
	suite.ResolvePaths(s.dir)

	for _, c := range suite.Configurations {
		if _, err := os.Stat(c.Path); err != nil {
			return fmt.Errorf("%w: file for configuration %s not found: %s", ErrConfigurationNotFound, c.Name, c.Path)
		}
	}

	tests := make([]frameworkTest, 0, len(suite.Tests))
	for _, t := range suite.Tests {
		if _, err := os.Stat(t.RequestFile); err != nil {
			return fmt.Errorf("%w: file for test %s not found: %s", ErrRequestFileNotFound, t.Name, t.RequestFile)
		}
		ft := frameworkTest{def: t, uid: s.path + "." + t.Name}
		for _, name := range t.Configurations {
			cfg, ok := suite.Configuration(name)
			if !ok {
				return fmt.Errorf("%w: configuration %s required by test %s not found", ErrUnknownConfiguration, name, t.Name)
			}
			resolver := base.With(vars.WithScopes(cfg.Variables, t.Variables, suite.Variables))
			doc, err := parser.ParseDocument(ctx, t.RequestFile, cfg.Path, resolver)
			if err != nil {
				return fmt.Errorf("test %s configuration %s: %w", t.Name, name, err)
			}
			ft.variants = append(ft.variants, variant{name: name, doc: doc, resolver: resolver})
		}
		tests = append(tests, ft)
	}
	s.suite = suite
	s.tests = tests
	return nil
}

func (s *Session) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateReady:
		return nil
	case stateFailed:
		return ErrAlreadyFailed
	default:
		return ErrNotInitialized
	}
}

// Discover reports every test of the suite.
func (s *Session) Discover(ctx context.Context) ([]TestCase, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out := make([]TestCase, 0, len(s.tests))
	for _, t := range s.tests {
		tc := TestCase{Name: t.def.Name, UID: t.uid, Skip: t.def.Skip}
		for _, v := range t.variants {
			tc.Variants = append(tc.Variants, v.name)
		}
		out = append(out, tc)
		s.report(Event{Kind: EventDiscovered, Test: t.def.Name, UID: t.uid})
	}
	return out, nil
}

// Run executes every test. A failing test never stops its siblings; only
// context cancellation ends the run early.
func (s *Session) Run(ctx context.Context) (SuiteSummary, error) {
	if err := s.ready(); err != nil {
		return SuiteSummary{}, err
	}
	defer s.cfg.httpClient.CloseIdleConnections()

	start := time.Now()
	summary := SuiteSummary{SuitePath: s.path}
	for _, t := range s.tests {
		if err := ctx.Err(); err != nil {
			summary.TotalElapsed = time.Since(start)
			return summary, err
		}
		res := s.runTest(ctx, t)
		summary.add(res)
	}
	summary.TotalElapsed = time.Since(start)
	s.cfg.logger.Info("runner.suite.done", "suite", s.path, "total", summary.Total, "passed", summary.Passed, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, ctx.Err()
}

func (s *Session) runTest(ctx context.Context, t frameworkTest) TestResult {
	res := TestResult{Name: t.def.Name, UID: t.uid}
	for _, v := range t.variants {
		res.Variants = append(res.Variants, v.name)
	}
	if t.def.Skip {
		res.Outcome = OutcomeSkipped
		s.report(Event{Kind: EventSkipped, Test: res.Name, UID: res.UID})
		return res
	}

	start := time.Now()
	s.report(Event{Kind: EventInProgress, Test: res.Name, UID: res.UID})

	finish := func(outcome Outcome, msg string) TestResult {
		res.Outcome = outcome
		res.Message = msg
		res.Duration = time.Since(start)
		kind := EventPassed
		if outcome == OutcomeFailed {
			kind = EventFailed
			s.cfg.logger.Debug("runner.test.failed", "test", res.Name, "err", msg)
		}
		s.report(Event{Kind: kind, Test: res.Name, UID: res.UID, Message: msg, Duration: res.Duration})
		return res
	}

	results, errs := s.executeVariants(ctx, t)
	var ok []validation.VariantResult
	for i, r := range results {
		if errs[i] != nil {
			continue
		}
		if s.opts.ResponsesDir != "" {
			paths, err := writeResponses(s.opts.ResponsesDir, t.def.Name, r.Variant, r.Responses)
			for _, p := range paths {
				res.Artifacts = append(res.Artifacts, p)
				s.report(Event{Kind: EventArtifact, Test: res.Name, UID: res.UID, Artifact: p})
			}
			if err != nil {
				errs[i] = fmt.Errorf("save responses: %w", err)
				continue
			}
		}
		ok = append(ok, r)
	}
	if err := errors.Join(errs...); err != nil {
		return finish(OutcomeFailed, err.Error())
	}

	groups := validation.GroupByRequestIndex(ok)
	for i, def := range t.def.Validations {
		v, err := validation.New(def.Validation, validation.WithLogger(s.cfg.logger))
		if err != nil {
			return finish(OutcomeFailed, fmt.Sprintf("validation %d: %v", i, err))
		}
		if err := v.Validate(ctx, groups); err != nil {
			return finish(OutcomeFailed, err.Error())
		}
	}
	return finish(OutcomePassed, "")
}

// executeVariants runs each variant with its own executor. Results and
// errors are indexed by variant position.
func (s *Session) executeVariants(ctx context.Context, t frameworkTest) ([]validation.VariantResult, []error) {
	results := make([]validation.VariantResult, len(t.variants))
	errs := make([]error, len(t.variants))
	run := func(i int) {
		v := t.variants[i]
		ex := executor.New(s.cfg.httpClient, v.doc.Defaults,
			executor.WithResolver(v.resolver),
			executor.WithTokenProvider(s.cfg.tokens),
			executor.WithTimeout(s.cfg.timeout),
			executor.WithLogger(s.cfg.logger),
		)
		responses, err := ex.ExecuteDocument(ctx, v.doc)
		results[i] = validation.VariantResult{Variant: v.name, Responses: responses}
		if err != nil {
			s.cfg.logger.Warn("runner.variant.failed", "test", t.def.Name, "variant", v.name, "err", err)
			errs[i] = fmt.Errorf("variant %s: %w", v.name, err)
		}
	}

	if !s.opts.Parallel {
		for i := range t.variants {
			run(i)
		}
		return results, errs
	}
	var wg sync.WaitGroup
	for i := range t.variants {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run(i)
		}(i)
	}
	wg.Wait()
	return results, errs
}

func (s *Session) report(ev Event) {
	if s.opts.Reporter != nil {
		s.opts.Reporter.Report(ev)
	}
}
