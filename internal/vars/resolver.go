// Package vars resolves ${name}, {{name}} and #{rN.path} tokens.
package vars

import (
	"encoding/base64"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"pkt.systems/pslog"
)

var (
	// DollarPattern matches ${name} tokens.
	DollarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
	// BracePattern matches {{name}} tokens bound to command-line variables.
	BracePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	// ResponsePattern matches #{rN.path} tokens.
	ResponsePattern = regexp.MustCompile(`#\{([^}]+)\}`)
)

const (
	envPrefix  = "env:"
	filePrefix = "file:"
)

// Resolver looks up variables in layered scopes. Scopes are consulted in the
// order given, then CLI variables, then the env: and file: namespaces.
// Unresolvable tokens are left untouched.
type Resolver struct {
	scopes  []map[string]string
	cli     map[string]string
	baseDir string
	lookup  func(string) (string, bool)
	logger  pslog.Base
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithScopes sets the variable scopes, highest precedence first.
func WithScopes(scopes ...map[string]string) Option {
	return func(r *Resolver) {
		r.scopes = nil
		for _, s := range scopes {
			if len(s) > 0 {
				r.scopes = append(r.scopes, maps.Clone(s))
			}
		}
	}
}

// WithCLI sets the command-line variables.
func WithCLI(cli map[string]string) Option {
	return func(r *Resolver) { r.cli = maps.Clone(cli) }
}

// WithBaseDir sets the directory file: tokens are read relative to.
func WithBaseDir(dir string) Option {
	return func(r *Resolver) { r.baseDir = dir }
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Resolver) { r.lookup = fn }
}

// WithLogger sets the logger used for file token warnings.
func WithLogger(logger pslog.Base) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New builds a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{lookup: os.LookupEnv}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = pslog.NewWithOptions(os.Stderr, pslog.Options{MinLevel: pslog.InfoLevel})
	}
	return r
}

// With returns a copy of r with additional options applied.
func (r *Resolver) With(opts ...Option) *Resolver {
	if r == nil {
		return New(opts...)
	}
	cp := *r
	cp.scopes = append([]map[string]string(nil), r.scopes...)
	for _, opt := range opts {
		if opt != nil {
			opt(&cp)
		}
	}
	return &cp
}

// CLI returns the command-line variables.
func (r *Resolver) CLI() map[string]string {
	if r == nil {
		return nil
	}
	return maps.Clone(r.cli)
}

// Lookup resolves a ${...} token body.
func (r *Resolver) Lookup(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, scope := range r.scopes {
		if v, ok := scope[name]; ok {
			return v, true
		}
	}
	if v, ok := r.cli[name]; ok {
		return v, true
	}
	if key, ok := strings.CutPrefix(name, envPrefix); ok {
		return r.lookup(key)
	}
	if spec, ok := strings.CutPrefix(name, filePrefix); ok {
		return r.readFile(spec)
	}
	return "", false
}

// Expand replaces ${...} and {{...}} tokens in s.
func (r *Resolver) Expand(s string) string {
	if r == nil || !strings.ContainsAny(s, "${") {
		return s
	}
	s = DollarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if v, ok := r.Lookup(strings.TrimSpace(match[2 : len(match)-1])); ok {
			return v
		}
		return match
	})
	return BracePattern.ReplaceAllStringFunc(s, func(match string) string {
		if v, ok := r.cli[strings.TrimSpace(match[2:len(match)-2])]; ok {
			return v
		}
		return match
	})
}

// readFile resolves "name:format". Only base64 is supported.
func (r *Resolver) readFile(spec string) (string, bool) {
	idx := strings.LastIndex(spec, ":")
	if idx <= 0 {
		r.logger.Warn("vars.file.format.missing", "token", spec)
		return "", false
	}
	name, format := spec[:idx], spec[idx+1:]
	if !strings.EqualFold(format, "base64") {
		r.logger.Warn("vars.file.format.unsupported", "file", name, "format", format)
		return "", false
	}
	path := name
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("vars.file.read", "path", path, "err", err)
		return "", false
	}
	if len(data) == 0 {
		r.logger.Warn("vars.file.empty", "path", path)
		return "", false
	}
	return base64.StdEncoding.EncodeToString(data), true
}

// Layer merges maps lowest precedence first; later maps win.
func Layer(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}
