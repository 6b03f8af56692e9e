package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"
	"pkt.systems/apivar/internal/model"
	"pkt.systems/pslog"
)

const (
	defaultsFile    = "defaults.yaml"
	suiteFile       = "suite.yaml"
	requestsDir     = "requests"
	bundleFile      = "schemas/bundle.json"
	configName      = "default"
	placeholder     = "CHANGEME"
	componentPrefix = "#/components/schemas/"
)

var verbs = []string{"get", "post", "put", "patch", "delete", "options", "head", "trace"}

// ImportOpenAPI generates a runnable suite from an OpenAPI/Swagger spec:
// defaults.yaml, one request file per operation, schemas/bundle.json and a
// suite.yaml validating status and, where possible, the response schema.
func ImportOpenAPI(ctx context.Context, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = pslog.NewWithOptions(os.Stdout, pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.InfoLevel})
	}
	log = log.With("fn", pslog.CurrentFn())

	doc, err := loadSource(ctx, &opts)
	if err != nil {
		return err
	}
	if verr := doc.Validate(ctx); verr != nil {
		log.Warn("import.openapi.validate.warn", "err", verr)
	}
	pathCount := len(doc.Paths.Map())
	log.Debug("import.openapi.loaded", "servers", len(doc.Servers), "paths", pathCount)
	log.Info("import.openapi.start", "source", opts.Source, "output", opts.OutputDir)

	g := &generator{
		doc:       doc,
		opts:      opts,
		log:       log,
		names:     map[string]int{},
		suiteVars: map[string]string{},
		cliVars:   map[string]struct{}{},
	}
	if err := g.run(); err != nil {
		return err
	}
	log.Info("import.openapi.done", "output", opts.OutputDir, "tests", len(g.suite.Tests))
	return nil
}

type generator struct {
	doc       *openapi3.T
	opts      Options
	log       pslog.Logger
	names     map[string]int
	suiteVars map[string]string
	cliVars   map[string]struct{}
	suite     model.Suite
	requests  map[string]model.Request
	bundle    bool
}

func (g *generator) run() error {
	baseURL := "https://api.example.com"
	if len(g.doc.Servers) > 0 && g.doc.Servers[0].URL != "" {
		baseURL = g.doc.Servers[0].URL
	}
	defaults := model.Defaults{BaseURL: baseURL}
	if sec := g.doc.Security; len(sec) > 0 {
		auth, headers, query := g.authFor(sec[0])
		defaults.Authentication = auth
		defaults.Headers = headers
		defaults.Query = query
	}

	g.bundle = !g.opts.DisableSchemas && g.doc.Components != nil && len(g.doc.Components.Schemas) > 0
	g.requests = map[string]model.Request{}

	routes := make([]string, 0, len(g.doc.Paths.Map()))
	for route := range g.doc.Paths.Map() {
		routes = append(routes, route)
	}
	sort.Strings(routes)

	for _, route := range routes {
		if !shouldIncludePath(route, g.opts.IncludePaths) {
			continue
		}
		item := g.doc.Paths.Value(route)
		for _, verb := range verbs {
			op := item.GetOperation(strings.ToUpper(verb))
			if op == nil {
				continue
			}
			g.addOperation(route, verb, item, op)
		}
	}

	g.suite.Variables = g.suiteVars
	g.suite.Configurations = []model.ConfigurationReference{{Name: configName, Path: defaultsFile}}
	if len(g.cliVars) > 0 {
		g.log.Info("import.openapi.auth.vars", "vars", strings.Join(sortedKeys(g.cliVars), ","))
	}

	if g.opts.OutputDir != "" {
		if err := g.write(defaults); err != nil {
			return err
		}
	}
	if g.opts.OutputFile != "" {
		files := make([]string, 0, len(g.requests))
		for f := range g.requests {
			files = append(files, f)
		}
		sort.Strings(files)
		summary := map[string]any{
			"name":     g.suiteName(),
			"source":   g.opts.Source,
			"output":   g.opts.OutputDir,
			"format":   "apivar",
			"baseUrl":  baseURL,
			"tests":    len(g.suite.Tests),
			"requests": files,
			"vars":     sortedKeys(g.cliVars),
		}
		if err := writeJSONFile(g.opts.OutputFile, summary); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) addOperation(route, verb string, item *openapi3.PathItem, op *openapi3.Operation) {
	name := op.OperationID
	if name == "" {
		name = strings.TrimSpace(op.Summary)
	}
	if name == "" {
		name = strings.ToUpper(verb) + " " + route
	}
	file := filepath.ToSlash(filepath.Join(requestsDir, g.uniqueFileName(name)))

	req := model.Request{
		Method: strings.ToUpper(verb),
		Path:   toVariableRoute(route),
	}
	g.addParameters(&req, item.Parameters)
	g.addParameters(&req, op.Parameters)

	if op.Security != nil && len(*op.Security) > 0 {
		auth, headers, query := g.authFor((*op.Security)[0])
		req.Authentication = auth
		req.Headers = mergeStrings(req.Headers, headers)
		req.Query = mergeStrings(req.Query, query)
	}
	if op.RequestBody != nil && op.RequestBody.Value != nil {
		if mt, media := pickMedia(op.RequestBody.Value.Content); media != nil {
			req.ContentType = mt
			req.Body = exampleBody(media, mt, g.opts)
			if req.Body == "" {
				g.log.Debug("import.openapi.request.example.missing", "op", name, "path", route, "ct", mt)
			} else {
				g.log.Debug("import.openapi.request.example.injected", "op", name, "path", route, "ct", mt)
			}
		}
	}
	g.requests[file] = req

	status, schemaRef := expectedResponse(op)
	test := model.Test{
		Name:           name,
		RequestFile:    file,
		Configurations: []string{configName},
		Validations: []model.ValidationDefinition{
			{Validation: model.StatusValidation{Status: status}},
		},
	}
	if g.bundle && strings.HasPrefix(schemaRef, componentPrefix) {
		test.Validations = append(test.Validations, model.ValidationDefinition{
			Validation: model.JSONSchemaValidation{Schema: model.SchemaConfig{
				Schema: model.BundleSchema{Path: bundleFile, RootSelector: schemaRef},
			}},
		})
		g.log.Debug("import.openapi.tests.schema", "op", name, "path", route, "schema", schemaRef)
	}
	g.suite.Tests = append(g.suite.Tests, test)
	g.log.Info("import.openapi.op.write", "op", name, "path", route, "verb", req.Method, "file", file)
}

// addParameters turns path and required query/header parameters into
// variables with an example or placeholder value.
func (g *generator) addParameters(req *model.Request, params openapi3.Parameters) {
	for _, pref := range params {
		if pref == nil || pref.Value == nil {
			continue
		}
		p := pref.Value
		varName := toVarName(p.Name)
		switch p.In {
		case openapi3.ParameterInPath:
			if varName != p.Name {
				req.Path = strings.ReplaceAll(req.Path, "${"+p.Name+"}", "${"+varName+"}")
			}
		case openapi3.ParameterInQuery:
			if !p.Required {
				continue
			}
			req.Query = mergeStrings(req.Query, map[string]string{p.Name: "${" + varName + "}"})
		case openapi3.ParameterInHeader:
			if !p.Required {
				continue
			}
			req.Headers = mergeStrings(req.Headers, map[string]string{p.Name: "${" + varName + "}"})
		default:
			continue
		}
		if _, ok := g.suiteVars[varName]; !ok {
			g.suiteVars[varName] = parameterExample(p)
		}
	}
}

func parameterExample(p *openapi3.Parameter) string {
	ex := p.Example
	if ex == nil && p.Schema != nil && p.Schema.Value != nil {
		ex = p.Schema.Value.Example
	}
	if ex == nil {
		return placeholder
	}
	return fmt.Sprint(ex)
}

// authFor maps a security requirement onto defaults. An api-key header scheme
// becomes api-key authentication and an Azure AD oauth2 flow becomes
// azure-credentials. Other schemes turn into headers or query parameters.
// Secrets are left as ${name} tokens for the command line to fill in.
func (g *generator) authFor(sec openapi3.SecurityRequirement) (*model.Authentication, map[string]string, map[string]string) {
	var (
		auth    *model.Authentication
		headers map[string]string
		query   map[string]string
	)
	if g.doc.Components == nil {
		return nil, nil, nil
	}
	names := make([]string, 0, len(sec))
	for name := range sec {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sref := g.doc.Components.SecuritySchemes[name]
		if sref == nil || sref.Value == nil {
			continue
		}
		s := sref.Value
		varName := toVarName(name)
		switch strings.ToLower(s.Type) {
		case "apikey":
			switch strings.ToLower(s.In) {
			case "header":
				if auth == nil {
					auth = &model.Authentication{Auth: model.APIKeyAuth{Key: "${" + varName + "}", Header: s.Name}}
				} else {
					headers = mergeStrings(headers, map[string]string{s.Name: "${" + varName + "}"})
				}
			case "query":
				query = mergeStrings(query, map[string]string{s.Name: "${" + varName + "}"})
			case "cookie":
				headers = mergeStrings(headers, map[string]string{"Cookie": s.Name + "=${" + varName + "}"})
			}
			g.cliVars[varName] = struct{}{}
		case "http":
			switch strings.ToLower(s.Scheme) {
			case "bearer":
				headers = mergeStrings(headers, map[string]string{"Authorization": "Bearer ${bearerToken}"})
				g.cliVars["bearerToken"] = struct{}{}
			case "basic":
				headers = mergeStrings(headers, map[string]string{"Authorization": "Basic ${basicAuth}"})
				g.cliVars["basicAuth"] = struct{}{}
			}
		case "oauth2":
			if scopes, ok := azureScopes(s, sec[name]); ok && auth == nil {
				auth = &model.Authentication{Auth: model.AzureCredentialsAuth{Scopes: scopes}}
				continue
			}
			headers = mergeStrings(headers, map[string]string{"Authorization": "Bearer ${accessToken}"})
			g.cliVars["accessToken"] = struct{}{}
		}
	}
	return auth, headers, query
}

func azureScopes(s *openapi3.SecurityScheme, required []string) ([]string, bool) {
	if s.Flows == nil {
		return nil, false
	}
	for _, flow := range []*openapi3.OAuthFlow{s.Flows.ClientCredentials, s.Flows.AuthorizationCode, s.Flows.Implicit} {
		if flow == nil || !strings.Contains(flow.TokenURL+flow.AuthorizationURL, "login.microsoftonline.com") {
			continue
		}
		scopes := append([]string(nil), required...)
		if len(scopes) == 0 {
			for scope := range flow.Scopes {
				scopes = append(scopes, scope)
			}
			sort.Strings(scopes)
		}
		return scopes, len(scopes) > 0
	}
	return nil, false
}

// expectedResponse returns the first documented 2xx status (200 when none is
// documented) and the $ref of its JSON schema.
func expectedResponse(op *openapi3.Operation) (int, string) {
	if op.Responses == nil {
		return 200, ""
	}
	codes := make([]string, 0, op.Responses.Len())
	for code := range op.Responses.Map() {
		if strings.HasPrefix(code, "2") {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	for _, code := range codes {
		status, err := strconv.Atoi(code)
		if err != nil {
			continue
		}
		rr := op.Responses.Value(code)
		if rr == nil || rr.Value == nil {
			return status, ""
		}
		for _, mt := range sortedKeys(rr.Value.Content) {
			media := rr.Value.Content[mt]
			if isJSONMedia(mt) && media != nil && media.Schema != nil {
				return status, media.Schema.Ref
			}
		}
		return status, ""
	}
	return 200, ""
}

func pickMedia(content openapi3.Content) (string, *openapi3.MediaType) {
	for _, mt := range []string{"application/json", "application/xml", "text/xml", "text/plain"} {
		if media := content.Get(mt); media != nil {
			return mt, media
		}
	}
	for _, mt := range sortedKeys(content) {
		return mt, content[mt]
	}
	return "", nil
}

func (g *generator) write(defaults model.Defaults) error {
	dir := g.opts.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeYAMLFile(filepath.Join(dir, defaultsFile), defaults); err != nil {
		return err
	}
	for file, req := range g.requests {
		if err := writeYAMLFile(filepath.Join(dir, filepath.FromSlash(file)), req); err != nil {
			return err
		}
	}
	if g.bundle {
		bundle := map[string]any{
			"$schema":    "https://json-schema.org/draft/2020-12/schema",
			"title":      g.suiteName(),
			"components": map[string]any{"schemas": g.doc.Components.Schemas},
		}
		if err := writeJSONFile(filepath.Join(dir, filepath.FromSlash(bundleFile)), bundle); err != nil {
			return err
		}
		g.log.Debug("import.openapi.bundle.write", "schemas", len(g.doc.Components.Schemas))
	}
	return writeYAMLFile(filepath.Join(dir, suiteFile), g.suite)
}

func (g *generator) suiteName() string {
	if g.opts.SuiteName != "" {
		return g.opts.SuiteName
	}
	if g.doc.Info != nil && g.doc.Info.Title != "" {
		return g.doc.Info.Title
	}
	return "imported-openapi"
}

func (g *generator) uniqueFileName(base string) string {
	count := g.names[base]
	g.names[base] = count + 1
	if count > 0 {
		return sanitizeFileName(fmt.Sprintf("%s_%d.yaml", base, count+1))
	}
	return sanitizeFileName(base + ".yaml")
}

func sanitizeFileName(s string) string {
	s = strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_", "?", "_", "*", "_", "{", "", "}", "").Replace(s)
	const maxLen = 120
	if len(s) > maxLen {
		ext := filepath.Ext(s)
		s = s[:maxLen-len(ext)] + ext
	}
	return s
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func toVarName(name string) string {
	name = strings.Trim(nonAlnum.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
	if name == "" {
		return "auth"
	}
	parts := strings.Split(name, "_")
	for i := range parts {
		if i == 0 {
			if strings.ToUpper(parts[i]) == parts[i] {
				parts[i] = strings.ToLower(parts[i])
			} else {
				parts[i] = lowerFirst(parts[i])
			}
			continue
		}
		parts[i] = titleCase(parts[i])
	}
	return strings.Join(parts, "")
}

func lowerFirst(s string) string {
	rs := []rune(s)
	rs[0] = unicode.ToLower(rs[0])
	return string(rs)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	rs := []rune(strings.ToLower(s))
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}

func shouldIncludePath(route string, includes []string) bool {
	if len(includes) == 0 {
		return true
	}
	for _, p := range includes {
		if p == route || strings.HasPrefix(route, p) {
			return true
		}
	}
	return false
}

var pathParamRe = regexp.MustCompile(`\{([^}]+)\}`)

func toVariableRoute(route string) string {
	return pathParamRe.ReplaceAllString(route, "$${$1}")
}

func mergeStrings(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = map[string]string{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
