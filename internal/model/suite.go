package model

import (
	"path/filepath"
)

// Suite is the top-level test definition file.
type Suite struct {
	Variables      map[string]string        `yaml:"variables,omitempty"`
	Configurations []ConfigurationReference `yaml:"configurations"`
	Tests          []Test                   `yaml:"tests"`
}

// ConfigurationReference names a defaults file used as a test variant.
type ConfigurationReference struct {
	Name      string            `yaml:"name"`
	Path      string            `yaml:"path"`
	Variables map[string]string `yaml:"variables,omitempty"`
}

// Test runs one request file against a set of configurations.
type Test struct {
	Name           string                 `yaml:"name"`
	Variables      map[string]string      `yaml:"variables,omitempty"`
	RequestFile    string                 `yaml:"request-file"`
	Configurations []string               `yaml:"configurations"`
	Validations    []ValidationDefinition `yaml:"validations,omitempty"`
	Skip           bool                   `yaml:"skip,omitempty"`
}

// Configuration returns the named configuration reference.
func (s Suite) Configuration(name string) (ConfigurationReference, bool) {
	for _, c := range s.Configurations {
		if c.Name == name {
			return c, true
		}
	}
	return ConfigurationReference{}, false
}

// ResolvePaths rewrites relative file paths against baseDir.
func (s *Suite) ResolvePaths(baseDir string) {
	for i := range s.Configurations {
		s.Configurations[i].Path = resolve(baseDir, s.Configurations[i].Path)
	}
	for i := range s.Tests {
		t := &s.Tests[i]
		t.RequestFile = resolve(baseDir, t.RequestFile)
		for j := range t.Validations {
			if js, ok := t.Validations[j].Validation.(JSONSchemaValidation); ok {
				js.Schema.resolvePaths(baseDir)
				t.Validations[j].Validation = js
			}
		}
	}
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
