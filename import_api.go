package apivar

import (
	"context"

	"pkt.systems/apivar/internal/importer"
	"pkt.systems/pslog"
)

// ImportOptions control generation of a suite from an OpenAPI or Swagger spec.
type ImportOptions struct {
	Source          string
	OutputDir       string
	OutputFile      string
	SuiteName       string
	Insecure        bool
	AllowRemoteRefs bool
	AllowFileRefs   bool
	DisableSchemas  bool
	IncludePaths    []string
	Logger          pslog.Logger
}

// ImportOpenAPI writes defaults.yaml, requests/*.yaml, schemas/bundle.json and
// suite.yaml generated from an OpenAPI/Swagger spec into OutputDir.
func ImportOpenAPI(ctx context.Context, opts ImportOptions) error {
	return importer.ImportOpenAPI(ctx, importer.Options{
		Source:          opts.Source,
		OutputDir:       opts.OutputDir,
		OutputFile:      opts.OutputFile,
		SuiteName:       opts.SuiteName,
		Insecure:        opts.Insecure,
		AllowRemoteRefs: opts.AllowRemoteRefs,
		AllowFileRefs:   opts.AllowFileRefs,
		DisableSchemas:  opts.DisableSchemas,
		IncludePaths:    opts.IncludePaths,
		Logger:          opts.Logger,
	})
}
