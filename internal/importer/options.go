package importer

import (
	"net/url"

	"pkt.systems/pslog"
)

// Options describes OpenAPI import settings.
type Options struct {
	Source          string
	OutputDir       string
	OutputFile      string // optional JSON summary of generated files
	SuiteName       string
	Insecure        bool
	AllowRemoteRefs bool
	AllowFileRefs   bool
	IncludePaths    []string
	// DisableSchemas skips schemas/bundle.json and json-schema validations.
	DisableSchemas bool
	Logger         pslog.Logger
	// BaseLocation tracks the original spec location (file or URL) for ref resolution.
	BaseLocation *url.URL
}
