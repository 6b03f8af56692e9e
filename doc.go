// Package apivar exposes a Go API for running declarative YAML request
// documents and contract-test suites in-process.
//
// Run a request document with command-line style variables:
//
//	ctx := context.Background()
//	r, _ := apivar.New(ctx)
//	res, _ := r.RunDocument(ctx, "requests/people.yaml", apivar.DocumentOptions{
//		DefaultsPath: "configs/local.yaml",
//		Vars:         map[string]string{"tenant": "acme"},
//	})
//	for _, resp := range res.Responses {
//		fmt.Println(resp.Code)
//	}
//
// Run a suite, streaming events as tests progress:
//
//	sum, _ := r.RunSuite(ctx, "suite.yaml", apivar.SuiteOptions{
//		ResponsesDir: "out",
//		Parallel:     true,
//		Reporter: apivar.ReporterFunc(func(ev apivar.Event) {
//			log.Println(ev.Kind, ev.Test, ev.Message)
//		}),
//	})
//	_ = apivar.WriteReportJUnit("report.xml", sum)
//
// Step-wise control over a suite mirrors what test adapters need:
//
//	s := apivar.NewSession("suite.yaml", apivar.SuiteOptions{})
//	if err := s.Init(ctx); err != nil {
//		return err
//	}
//	cases, _ := s.Discover(ctx)
//	sum, err := s.Run(ctx)
//
// Transport knobs mirror the CLI:
//
//	custom := &http.Client{Timeout: 5 * time.Second}
//	r, _ := apivar.New(ctx, apivar.WithHTTPClient(custom), apivar.WithTimeout(10*time.Second))
//
// The SDK keeps concrete types internal; interaction happens through the
// Runner interface, Session, the option structs and the result structs
// aliased in this package.
package apivar
