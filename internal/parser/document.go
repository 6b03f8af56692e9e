package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pkt.systems/apivar/internal/model"
	"pkt.systems/apivar/internal/vars"
)

// ParseDocument loads a request document (or a bare request) from
// requestFile and merges its defaults. Precedence, highest first: the
// defaultsFile, the document's own defaults, the defaults file the document
// imports. defaultsFile may be empty.
func ParseDocument(ctx context.Context, requestFile, defaultsFile string, resolver *vars.Resolver) (model.Document, error) {
	if err := mustExist(requestFile); err != nil {
		return model.Document{}, err
	}
	if defaultsFile != "" {
		if err := mustExist(defaultsFile); err != nil {
			return model.Document{}, err
		}
	}

	doc, err := parseRequestFile(ctx, requestFile, resolver)
	if err != nil {
		return model.Document{}, err
	}

	explicit := model.Defaults{}
	if defaultsFile != "" {
		explicit, err = Load[model.Defaults](ctx, defaultsFile, resolver)
		if err != nil {
			return model.Document{}, err
		}
	}

	imported := model.Defaults{}
	if doc.Defaults.Import != "" {
		path := doc.Defaults.Import
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(requestFile), path)
		}
		imported, err = Load[model.Defaults](ctx, path, resolver)
		if err != nil {
			return model.Document{}, fmt.Errorf("import defaults: %w", err)
		}
	}

	merged := explicit.Merge(doc.Defaults).Merge(imported)
	merged.Import = doc.Defaults.Import
	return doc.WithDefaults(merged), nil
}

func parseRequestFile(ctx context.Context, path string, resolver *vars.Resolver) (model.Document, error) {
	node, err := loadNode(ctx, path, resolver)
	if err != nil {
		return model.Document{}, err
	}
	switch {
	case hasKey(node, "requests"):
		var doc model.Document
		if err := node.Decode(&doc); err != nil {
			return model.Document{}, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
		}
		return doc, nil
	case hasKey(node, "method"):
		var req model.Request
		if err := node.Decode(&req); err != nil {
			return model.Document{}, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
		}
		return model.Document{Requests: []model.Request{req}}, nil
	default:
		return model.Document{}, fmt.Errorf("%w: %s: neither a request document nor a request", ErrParse, path)
	}
}

// ParseSuite loads a suite file.
func ParseSuite(ctx context.Context, path string, resolver *vars.Resolver) (model.Suite, error) {
	if err := mustExist(path); err != nil {
		return model.Suite{}, err
	}
	return Load[model.Suite](ctx, path, resolver)
}

func mustExist(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return err
	}
	return nil
}
