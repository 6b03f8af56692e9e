// Package model holds the declarative request, suite and validation types
// decoded from YAML documents.
package model

import (
	"maps"
)

// Defaults carries request settings shared by every request of a document.
type Defaults struct {
	Import         string            `yaml:"import,omitempty"`
	BaseURL        string            `yaml:"base-url,omitempty"`
	Authentication *Authentication   `yaml:"authentication,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty"`
	Query          map[string]string `yaml:"query,omitempty"`
	ContentType    string            `yaml:"content-type,omitempty"`
}

// Merge returns a copy of d where empty fields are filled from lower. Map
// fields are merged key-wise and d wins on collisions. Import is kept from d.
func (d Defaults) Merge(lower Defaults) Defaults {
	out := Defaults{
		Import:         d.Import,
		BaseURL:        firstNonEmpty(d.BaseURL, lower.BaseURL),
		Authentication: d.Authentication,
		Headers:        mergeMaps(d.Headers, lower.Headers),
		Query:          mergeMaps(d.Query, lower.Query),
		ContentType:    firstNonEmpty(d.ContentType, lower.ContentType),
	}
	if out.Authentication == nil {
		out.Authentication = lower.Authentication
	}
	return out
}

// Request is a single HTTP request definition.
type Request struct {
	Method         string            `yaml:"method"`
	URL            string            `yaml:"url,omitempty"`
	Path           string            `yaml:"path,omitempty"`
	Authentication *Authentication   `yaml:"authentication,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty"`
	Query          map[string]string `yaml:"query,omitempty"`
	ContentType    string            `yaml:"content-type,omitempty"`
	Body           string            `yaml:"body,omitempty"`
}

// Document is a defaults block plus an ordered list of requests.
type Document struct {
	Defaults Defaults  `yaml:"defaults,omitempty"`
	Requests []Request `yaml:"requests"`
}

// WithDefaults returns a copy of doc using defaults in place of its own.
func (doc Document) WithDefaults(defaults Defaults) Document {
	reqs := make([]Request, len(doc.Requests))
	copy(reqs, doc.Requests)
	return Document{Defaults: defaults, Requests: reqs}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func mergeMaps(high, low map[string]string) map[string]string {
	if len(high) == 0 && len(low) == 0 {
		return nil
	}
	out := make(map[string]string, len(high)+len(low))
	maps.Copy(out, low)
	maps.Copy(out, high)
	return out
}
