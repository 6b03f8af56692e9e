package apivar

import (
	"context"

	"pkt.systems/apivar/internal/runner"
	"pkt.systems/version"
)

// Public type aliases to runner package

// Runner executes request documents and test suites.
type (
	Runner = runner.Runner
	// DocumentOptions configure a single document run.
	DocumentOptions = runner.DocumentOptions
	// DocumentResult holds the responses and failures of a document run.
	DocumentResult = runner.DocumentResult
	// RequestFailure describes a request of a document that could not be executed.
	RequestFailure = runner.RequestFailure
	// SuiteOptions configure a suite run.
	SuiteOptions = runner.SuiteOptions
	// SuiteSummary aggregates test results from a suite run.
	SuiteSummary = runner.SuiteSummary
	// TestResult captures the outcome of a single suite test.
	TestResult = runner.TestResult
	// Outcome is the final state of a test.
	Outcome = runner.Outcome
	// Event is pushed to a Reporter while a suite runs.
	Event = runner.Event
	// EventKind identifies an Event.
	EventKind = runner.EventKind
	// Reporter receives suite events.
	Reporter = runner.Reporter
	// ReporterFunc adapts a function to Reporter.
	ReporterFunc = runner.ReporterFunc
	// Session gives step-wise control over a suite: Init, Discover, Run.
	Session = runner.Session
	// TestCase is a discovered suite test.
	TestCase = runner.TestCase
)

const (
	OutcomePassed  = runner.OutcomePassed
	OutcomeFailed  = runner.OutcomeFailed
	OutcomeSkipped = runner.OutcomeSkipped

	EventDiscovered = runner.EventDiscovered
	EventInProgress = runner.EventInProgress
	EventArtifact   = runner.EventArtifact
	EventPassed     = runner.EventPassed
	EventFailed     = runner.EventFailed
	EventSkipped    = runner.EventSkipped
)

// Option tweaks runner construction.
type Option = runner.Option

var (
	// WithLogger supplies a custom pslog logger.
	WithLogger = runner.WithLogger
	// WithHTTPClient injects a custom HTTP client.
	WithHTTPClient = runner.WithHTTPClient
	// WithTimeout sets a default per-request timeout.
	WithTimeout = runner.WithTimeout
	// WithTokenProvider replaces the Azure default credential used for azure-credentials.
	WithTokenProvider = runner.WithTokenProvider
)

// New constructs a Runner.
func New(ctx context.Context, opts ...Option) (Runner, error) {
	return runner.New(ctx, opts...)
}

// NewSession prepares a suite session for step-wise execution.
func NewSession(path string, opts SuiteOptions, ropts ...Option) *Session {
	return runner.NewSession(path, opts, ropts...)
}

// Version returns the current module version (best effort).
func Version() string {
	return moduleVersion(modulePath)
}

const modulePath = "pkt.systems/apivar"

var moduleVersion = version.ModuleVersion
