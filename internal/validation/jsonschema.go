package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"github.com/oasdiff/yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"pkt.systems/apivar/internal/model"
)

type jsonSchemaValidator struct {
	def model.JSONSchemaValidation
}

func newJSONSchema(def model.JSONSchemaValidation) (*jsonSchemaValidator, error) {
	if def.Schema.Schema == nil {
		return nil, fmt.Errorf("json-schema: schema is required")
	}
	return &jsonSchemaValidator{def: def}, nil
}

func (v *jsonSchemaValidator) Validate(ctx context.Context, groups []ResponseGroup) error {
	selected, err := Select(v.def.TargetOf(), groups)
	if err != nil {
		return err
	}
	sch, err := compileSchema(v.def.Schema.Schema)
	if err != nil {
		return err
	}
	for _, g := range selected {
		for _, e := range g.Entries {
			if err := validateEntry(sch, e, g.Index); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateEntry(sch *jsonschema.Schema, e Entry, index int) error {
	if e.Response.Content == nil {
		return fmt.Errorf("%w: variant %s request with index %d has no content", ErrDeserialization, e.Variant, index)
	}
	if err := requireJSON(e, index); err != nil {
		return err
	}
	raw, err := json.Marshal(e.Response.Content)
	if err != nil {
		return fmt.Errorf("%w: variant %s request with index %d: %v", ErrDeserialization, e.Variant, index, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: variant %s request with index %d: %v", ErrDeserialization, e.Variant, index, err)
	}
	if err := sch.Validate(inst); err != nil {
		report := err.Error()
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			report = formatReport(verr.BasicOutput())
		}
		return fmt.Errorf("%w: Validation failed for variant %s request with index %d: %s",
			ErrSchemaValidation, e.Variant, index, report)
	}
	return nil
}

// formatReport renders the failing units of a basic output tree.
func formatReport(out *jsonschema.OutputUnit) string {
	var sb strings.Builder
	sb.WriteString("Validation failed for response, details:")
	var walk func(u jsonschema.OutputUnit)
	walk = func(u jsonschema.OutputUnit) {
		if !u.Valid && u.Error != nil {
			fmt.Fprintf(&sb, "\nSchema: %s\nPath: %s\nLocation: %s\nErrors: %s",
				u.AbsoluteKeywordLocation, u.KeywordLocation, u.InstanceLocation, u.Error)
		}
		for _, child := range u.Errors {
			walk(child)
		}
	}
	if out != nil {
		walk(*out)
	}
	return sb.String()
}

func compileSchema(s model.Schema) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	var loc string
	switch t := s.(type) {
	case model.SelfContainedSchema:
		path, _, err := addSchemaFile(c, t.Path)
		if err != nil {
			return nil, err
		}
		loc = path
	case model.BundleSchema:
		path, doc, err := addSchemaFile(c, t.Path)
		if err != nil {
			return nil, err
		}
		ptr := strings.TrimPrefix(t.RootSelector, "#")
		if ptr != "" {
			p, err := jsonpointer.New(ptr)
			if err != nil {
				return nil, fmt.Errorf("%w: root selector %q: %v", ErrSchemaLoad, t.RootSelector, err)
			}
			if _, _, err := p.Get(doc); err != nil {
				return nil, fmt.Errorf("%w: root selector %q not found in %s: %v", ErrSchemaLoad, t.RootSelector, t.Path, err)
			}
		}
		loc = path + "#" + ptr
	case model.MultiFileSchema:
		path, _, err := addSchemaFile(c, t.Path)
		if err != nil {
			return nil, err
		}
		for _, dep := range t.Dependencies {
			if _, _, err := addSchemaFile(c, dep); err != nil {
				return nil, err
			}
		}
		loc = path
	default:
		return nil, fmt.Errorf("%w: unsupported schema source %T", ErrSchemaLoad, s)
	}
	sch, err := c.Compile(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaLoad, err)
	}
	return sch, nil
}

// addSchemaFile reads a JSON or YAML schema and registers it under its
// absolute path.
func addSchemaFile(c *jsonschema.Compiler, path string) (string, any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrSchemaLoad, path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrSchemaLoad, err)
	}
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".yaml", ".yml":
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrSchemaLoad, path, err)
		}
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrSchemaLoad, path, err)
	}
	if err := c.AddResource(abs, doc); err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrSchemaLoad, path, err)
	}
	return abs, doc, nil
}
