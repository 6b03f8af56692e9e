package main

import (
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/apivar"
	"pkt.systems/pslog"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test SUITE",
		Short: "Run a contract-test suite",
		Args:  cobra.ExactArgs(1),
		RunE:  testE,
	}

	addLoggingFlags(cmd.Flags())
	cmd.Flags().String("responses-dir", "", "Persist responses as {test}/{variant}/response_{i}.json under this directory")
	cmd.Flags().StringArray("var", nil, "Variable name=value; value @path embeds the file base64 encoded")
	cmd.Flags().Bool("parallel", false, "Execute the variants of each test concurrently")
	cmd.Flags().Int("timeout", 30, "Per-request timeout seconds")
	cmd.Flags().StringP("output", "o", "", "Write summary to file (see --format)")
	cmd.Flags().StringP("format", "f", "json", "Output format: json|junit|html|trx")
	cmd.Flags().String("reporter-json", "", "Write JSON report to path")
	cmd.Flags().String("reporter-junit", "", "Write JUnit XML report to path")
	cmd.Flags().String("reporter-html", "", "Write HTML report to path")
	cmd.Flags().String("reporter-trx", "", "Write Visual Studio TRX report to path")
	addClientFlags(cmd)
	return cmd
}

func testE(cmd *cobra.Command, args []string) error {
	responsesDir, _ := cmd.Flags().GetString("responses-dir")
	varsList, _ := cmd.Flags().GetStringArray("var")
	parallel, _ := cmd.Flags().GetBool("parallel")
	timeoutSec, _ := cmd.Flags().GetInt("timeout")
	output, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	reportJSON, _ := cmd.Flags().GetString("reporter-json")
	reportJUnit, _ := cmd.Flags().GetString("reporter-junit")
	reportHTML, _ := cmd.Flags().GetString("reporter-html")
	reportTRX, _ := cmd.Flags().GetString("reporter-trx")

	logger := loggerFromCmd(cmd)

	vars, err := parseVars(varsList)
	if err != nil {
		logger.Fatal("vars", "err", err)
		return nil
	}
	httpClient, err := clientFlagsFromCmd(cmd).build()
	if err != nil {
		logger.Fatal("http client", "err", err)
		return nil
	}
	r, err := apivar.New(cmd.Context(), apivar.WithLogger(logger), apivar.WithHTTPClient(httpClient))
	if err != nil {
		logger.Fatal("init", "err", err)
		return nil
	}

	opts := apivar.SuiteOptions{
		Vars:          vars,
		ResponsesDir:  responsesDir,
		Parallel:      parallel,
		Reporter:      logReporter(logger),
		OutputPath:    output,
		OutputFormat:  format,
		ReporterJSON:  reportJSON,
		ReporterJUnit: reportJUnit,
		ReporterHTML:  reportHTML,
		ReporterTRX:   reportTRX,
	}
	if timeoutSec > 0 {
		opts.Timeout = time.Duration(timeoutSec) * time.Second
	}

	summary, err := r.RunSuite(cmd.Context(), args[0], opts)
	if err != nil {
		logger.Fatal("run", "suite", args[0], "err", err)
		return nil
	}
	if err := writeOutputs(opts, summary); err != nil {
		logger.Fatal("report", "err", err)
		return nil
	}
	printSummary(summary, logger)
	if summary.Failed > 0 {
		logger.Fatal("tests failed", "count", summary.Failed)
	}
	return nil
}

// logReporter streams session events to the logger.
func logReporter(logger pslog.Base) apivar.Reporter {
	return apivar.ReporterFunc(func(ev apivar.Event) {
		switch ev.Kind {
		case apivar.EventDiscovered:
			logger.Debug("test.discovered", "name", ev.Test, "uid", ev.UID)
		case apivar.EventInProgress:
			logger.Info("test.start", "name", ev.Test)
		case apivar.EventArtifact:
			logger.Debug("test.artifact", "name", ev.Test, "path", ev.Artifact)
		case apivar.EventPassed:
			logger.Info("pass", "name", ev.Test, "dur", ev.Duration.String())
		case apivar.EventSkipped:
			logger.Info("skip", "name", ev.Test)
		case apivar.EventFailed:
			logger.Error("fail", "name", ev.Test, "dur", ev.Duration.String(), "err", ev.Message)
		}
	})
}

func printSummary(sum apivar.SuiteSummary, logger pslog.Base) {
	logger.Info("summary", "suite", sum.SuitePath, "total", sum.Total, "passed", sum.Passed, "failed", sum.Failed, "skipped", sum.Skipped, "elapsed", sum.TotalElapsed.String())
}

func writeOutputs(opts apivar.SuiteOptions, sum apivar.SuiteSummary) error {
	if opts.OutputPath != "" {
		if err := apivar.WriteReport(opts.OutputFormat, opts.OutputPath, sum); err != nil {
			return err
		}
	}
	reports := []struct {
		path  string
		write func(string, apivar.SuiteSummary) error
	}{
		{opts.ReporterJSON, apivar.WriteReportJSON},
		{opts.ReporterJUnit, apivar.WriteReportJUnit},
		{opts.ReporterHTML, apivar.WriteReportHTML},
		{opts.ReporterTRX, apivar.WriteReportTRX},
	}
	for _, r := range reports {
		if r.path == "" {
			continue
		}
		if err := r.write(r.path, sum); err != nil {
			return err
		}
	}
	return nil
}
