package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Target selects which request indices a validation inspects.
type Target interface {
	targetType() string
}

// AllTarget selects every request index.
type AllTarget struct{}

// SingleTarget selects one request index.
type SingleTarget struct {
	Index int `yaml:"index"`
}

// MultipleTarget selects a list of request indices.
type MultipleTarget struct {
	Indices []int `yaml:"indices"`
}

func (AllTarget) targetType() string      { return "all" }
func (SingleTarget) targetType() string   { return "single" }
func (MultipleTarget) targetType() string { return "multiple" }

// TargetRef is the YAML form of a Target. The zero value means all.
type TargetRef struct {
	Target
}

// Get returns the target, defaulting to AllTarget.
func (t TargetRef) Get() Target {
	if t.Target == nil {
		return AllTarget{}
	}
	return t.Target
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TargetRef) UnmarshalYAML(node *yaml.Node) error {
	kind, err := discriminator(node)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	switch kind {
	case "all":
		t.Target = AllTarget{}
	case "single":
		var v SingleTarget
		if err := node.Decode(&v); err != nil {
			return err
		}
		t.Target = v
	case "multiple":
		var v MultipleTarget
		if err := node.Decode(&v); err != nil {
			return err
		}
		t.Target = v
	default:
		return fmt.Errorf("target: unknown type %q (line %d)", kind, node.Line)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t TargetRef) MarshalYAML() (any, error) {
	if t.Target == nil {
		return nil, nil
	}
	return tagged(t.Target.targetType(), t.Target)
}

// Validation is implemented by every validation kind.
type Validation interface {
	Kind() string
	TargetOf() Target
}

// StatusValidation checks the HTTP status code.
type StatusValidation struct {
	Target TargetRef `yaml:"target,omitempty"`
	Status int       `yaml:"status"`
}

// PathComparisonValidation compares JSON path sets against a baseline variant.
type PathComparisonValidation struct {
	Target               TargetRef `yaml:"target,omitempty"`
	Baseline             string    `yaml:"baseline"`
	IgnorePaths          []string  `yaml:"ignore-paths,omitempty"`
	PreserveArrayIndices bool      `yaml:"preserve-array-indices,omitempty"`
}

// FieldFormatValidation checks that selected string fields hold a format.
type FieldFormatValidation struct {
	Target TargetRef `yaml:"target,omitempty"`
	Path   string    `yaml:"path"`
	Format string    `yaml:"format"`
}

// JSONSchemaValidation validates response content against a JSON schema.
type JSONSchemaValidation struct {
	Target TargetRef    `yaml:"target,omitempty"`
	Schema SchemaConfig `yaml:"schema"`
}

// ScriptValidation evaluates a JavaScript predicate against each response.
type ScriptValidation struct {
	Target TargetRef `yaml:"target,omitempty"`
	Script string    `yaml:"script"`
}

// FormatJSON is the only supported field format.
const FormatJSON = "json"

func (v StatusValidation) Kind() string         { return "status" }
func (v PathComparisonValidation) Kind() string { return "path-comparison" }
func (v FieldFormatValidation) Kind() string    { return "field-format" }
func (v JSONSchemaValidation) Kind() string     { return "json-schema" }
func (v ScriptValidation) Kind() string         { return "script" }

func (v StatusValidation) TargetOf() Target         { return v.Target.Get() }
func (v PathComparisonValidation) TargetOf() Target { return v.Target.Get() }
func (v FieldFormatValidation) TargetOf() Target    { return v.Target.Get() }
func (v JSONSchemaValidation) TargetOf() Target     { return v.Target.Get() }
func (v ScriptValidation) TargetOf() Target         { return v.Target.Get() }

// ValidationDefinition wraps a Validation selected by the YAML "type" key.
type ValidationDefinition struct {
	Validation
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *ValidationDefinition) UnmarshalYAML(node *yaml.Node) error {
	kind, err := discriminator(node)
	if err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	var v Validation
	switch kind {
	case "status":
		var s StatusValidation
		err = node.Decode(&s)
		v = s
	case "path-comparison":
		var s PathComparisonValidation
		err = node.Decode(&s)
		v = s
	case "field-format":
		var s FieldFormatValidation
		err = node.Decode(&s)
		v = s
	case "json-schema":
		var s JSONSchemaValidation
		err = node.Decode(&s)
		v = s
	case "script":
		var s ScriptValidation
		err = node.Decode(&s)
		v = s
	default:
		return fmt.Errorf("validation: unknown type %q (line %d)", kind, node.Line)
	}
	if err != nil {
		return fmt.Errorf("validation %s: %w", kind, err)
	}
	d.Validation = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d ValidationDefinition) MarshalYAML() (any, error) {
	if d.Validation == nil {
		return nil, nil
	}
	return tagged(d.Validation.Kind(), d.Validation)
}

// Schema is implemented by every JSON schema source.
type Schema interface {
	schemaType() string
}

// SelfContainedSchema is a single schema file.
type SelfContainedSchema struct {
	Path string `yaml:"path"`
}

// BundleSchema is a file holding several schemas; RootSelector is a JSON
// pointer (optionally prefixed with '#') to the schema used for validation.
type BundleSchema struct {
	Path         string `yaml:"path"`
	RootSelector string `yaml:"root-selector"`
}

// MultiFileSchema is a root schema whose $refs point at dependency files.
type MultiFileSchema struct {
	Path         string   `yaml:"path"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

func (SelfContainedSchema) schemaType() string { return "self-contained" }
func (BundleSchema) schemaType() string        { return "bundle" }
func (MultiFileSchema) schemaType() string     { return "multi-file" }

// SchemaConfig wraps a Schema selected by the YAML "type" key.
type SchemaConfig struct {
	Schema
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *SchemaConfig) UnmarshalYAML(node *yaml.Node) error {
	kind, err := discriminator(node)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	switch kind {
	case "self-contained":
		var v SelfContainedSchema
		err = node.Decode(&v)
		c.Schema = v
	case "bundle":
		var v BundleSchema
		err = node.Decode(&v)
		c.Schema = v
	case "multi-file":
		var v MultiFileSchema
		err = node.Decode(&v)
		c.Schema = v
	default:
		return fmt.Errorf("schema: unknown type %q (line %d)", kind, node.Line)
	}
	return err
}

// MarshalYAML implements yaml.Marshaler.
func (c SchemaConfig) MarshalYAML() (any, error) {
	if c.Schema == nil {
		return nil, nil
	}
	return tagged(c.Schema.schemaType(), c.Schema)
}

func (c *SchemaConfig) resolvePaths(baseDir string) {
	switch s := c.Schema.(type) {
	case SelfContainedSchema:
		s.Path = resolve(baseDir, s.Path)
		c.Schema = s
	case BundleSchema:
		s.Path = resolve(baseDir, s.Path)
		c.Schema = s
	case MultiFileSchema:
		s.Path = resolve(baseDir, s.Path)
		deps := make([]string, len(s.Dependencies))
		for i, d := range s.Dependencies {
			deps[i] = resolve(baseDir, d)
		}
		s.Dependencies = deps
		c.Schema = s
	}
}
