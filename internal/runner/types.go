package runner

import (
	"context"
	"net/http"
	"time"

	"pkt.systems/apivar/internal/executor"
	"pkt.systems/apivar/internal/model"
	"pkt.systems/pslog"
)

// Runner is the public interface exposed by this module. It is safe to hold
// and use concurrently from multiple goroutines.
type Runner interface {
	RunDocument(ctx context.Context, path string, opts DocumentOptions) (DocumentResult, error)
	RunSuite(ctx context.Context, path string, opts SuiteOptions) (SuiteSummary, error)
}

// DocumentOptions controls execution of a single request document.
type DocumentOptions struct {
	// DefaultsPath names a defaults file that takes precedence over the
	// document's own defaults.
	DefaultsPath string
	Vars         map[string]string
	Timeout      time.Duration // per request timeout; 0 means the runner default
}

// DocumentResult holds the responses of a document run. Requests that fail
// are listed in Failures and have no entry in Responses.
type DocumentResult struct {
	Path      string
	Responses []model.Response
	Failures  []RequestFailure
	Duration  time.Duration
}

// RequestFailure describes one request that could not be executed.
type RequestFailure struct {
	Index   int
	Method  string
	Message string
}

// SuiteOptions controls execution of a test suite.
type SuiteOptions struct {
	Vars map[string]string
	// ResponsesDir, when set, receives {test}/{variant}/response_{i}.json files.
	ResponsesDir string
	// Parallel executes the variants of each test concurrently.
	Parallel bool
	Timeout  time.Duration // per request timeout; 0 means the runner default
	Reporter Reporter

	// Reporter/output hints (used by CLI layer).
	OutputPath    string
	OutputFormat  string // json|junit|html|trx
	ReporterJSON  string
	ReporterJUnit string
	ReporterHTML  string
	ReporterTRX   string
}

// Outcome is the final state of a test.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// TestResult captures the outcome of one suite test.
type TestResult struct {
	Name      string
	UID       string
	Variants  []string
	Outcome   Outcome
	Message   string // failure message when Outcome is failed
	Duration  time.Duration
	Artifacts []string
}

// Passed reports whether the test passed.
func (r TestResult) Passed() bool { return r.Outcome == OutcomePassed }

// SuiteSummary aggregates test results of a suite run.
type SuiteSummary struct {
	SuitePath    string
	Tests        []TestResult
	Total        int
	Passed       int
	Failed       int
	Skipped      int
	TotalElapsed time.Duration
}

func (s *SuiteSummary) add(res TestResult) {
	s.Tests = append(s.Tests, res)
	s.Total++
	switch res.Outcome {
	case OutcomePassed:
		s.Passed++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// EventKind identifies a reporting event.
type EventKind string

const (
	EventDiscovered EventKind = "discovered"
	EventInProgress EventKind = "in-progress"
	EventArtifact   EventKind = "artifact"
	EventPassed     EventKind = "passed"
	EventFailed     EventKind = "failed"
	EventSkipped    EventKind = "skipped"
)

// Event is pushed to a Reporter as a session progresses. Events of one test
// arrive in order: discovered, in-progress, zero or more artifacts, then one
// of passed, failed or skipped.
type Event struct {
	Kind     EventKind
	Test     string
	UID      string
	Message  string
	Artifact string
	Duration time.Duration
}

// Reporter receives session events. Implementations must be safe for
// concurrent use when variants run in parallel.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report implements Reporter.
func (f ReporterFunc) Report(ev Event) { f(ev) }

// Option modifies a Runner or Session at construction time.
type Option func(*runnerConfig)

// WithLogger overrides the default logger (pslog console).
func WithLogger(logger pslog.Base) Option {
	return func(rc *runnerConfig) { rc.logger = logger }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(rc *runnerConfig) { rc.httpClient = client }
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(rc *runnerConfig) { rc.timeout = timeout }
}

// WithTokenProvider sets the source of bearer tokens for azure-credentials.
func WithTokenProvider(p executor.TokenProvider) Option {
	return func(rc *runnerConfig) { rc.tokens = p }
}
