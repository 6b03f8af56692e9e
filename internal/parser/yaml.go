package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
	"pkt.systems/apivar/internal/vars"
)

var (
	// ErrFileNotFound is returned when a referenced file does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrParse is returned when a file cannot be decoded.
	ErrParse = errors.New("parse failed")
)

// Load reads path, interpolates ${...} and {{...}} tokens in every scalar
// value and decodes the result into T. file: tokens resolve relative to the
// directory of path.
func Load[T any](ctx context.Context, path string, resolver *vars.Resolver) (T, error) {
	var out T
	node, err := loadNode(ctx, path, resolver)
	if err != nil {
		return out, err
	}
	if err := node.Decode(&out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return out, nil
}

func loadNode(ctx context.Context, path string, resolver *vars.Resolver) (*yaml.Node, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	root := &doc
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		root = doc.Content[0]
	}
	interpolate(root, resolver.With(vars.WithBaseDir(filepath.Dir(path))))
	return root, nil
}

// interpolate rewrites scalar values in place. Mapping keys are left alone.
func interpolate(node *yaml.Node, resolver *vars.Resolver) {
	switch node.Kind {
	case yaml.ScalarNode:
		expanded := resolver.Expand(node.Value)
		if expanded == node.Value {
			return
		}
		if node.Style == 0 && node.Tag == "!!str" && wholeToken.MatchString(node.Value) && !nullLike(expanded) {
			// let yaml re-resolve plain scalars such as "${code}" -> 200
			node.Tag = ""
		}
		node.Value = expanded
	case yaml.MappingNode:
		for i := 1; i < len(node.Content); i += 2 {
			interpolate(node.Content[i], resolver)
		}
	case yaml.SequenceNode, yaml.DocumentNode:
		for _, child := range node.Content {
			interpolate(child, resolver)
		}
	}
}

var wholeToken = regexp.MustCompile(`^(\$\{[^{}]+\}|\{\{[^{}]+\}\})$`)

func nullLike(s string) bool {
	switch s {
	case "", "~", "null", "Null", "NULL":
		return true
	}
	return false
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
