package importer

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// exampleBody picks a request body for media: named examples first, then the
// media example, the schema example and finally a payload synthesized from
// required schema fields.
func exampleBody(media *openapi3.MediaType, mediaType string, opts Options) string {
	if media == nil {
		return ""
	}
	for _, name := range sortedKeys(media.Examples) {
		ex := media.Examples[name]
		if ex == nil || ex.Value == nil {
			continue
		}
		if ex.Value.Value != nil {
			if body := examplePayload(ex.Value.Value, mediaType, opts); body != "" {
				return body
			}
		}
		if ex.Value.ExternalValue != "" {
			if body := loadExternalExample(ex.Value.ExternalValue, opts); body != "" {
				return body
			}
		}
	}
	if media.Example != nil {
		if body := examplePayload(media.Example, mediaType, opts); body != "" {
			return body
		}
	}
	if media.Schema != nil && media.Schema.Value != nil && media.Schema.Value.Example != nil {
		if body := examplePayload(media.Schema.Value.Example, mediaType, opts); body != "" {
			return body
		}
	}
	if isJSONMedia(mediaType) {
		if ex, ok := synthesizeExample(media.Schema); ok {
			return marshalExample(ex)
		}
	}
	return ""
}

func examplePayload(v any, mediaType string, opts Options) string {
	isXML := strings.Contains(strings.ToLower(mediaType), "xml")
	if s, ok := v.(string); ok {
		if looksLikeRef(s, opts) {
			if body := loadExternalExample(s, opts); body != "" {
				if !isXML && json.Valid([]byte(body)) {
					var buf bytes.Buffer
					if err := json.Indent(&buf, []byte(body), "", "  "); err == nil {
						return buf.String()
					}
				}
				return body
			}
		}
		if isXML || !isJSONMedia(mediaType) {
			return strings.TrimSpace(s)
		}
	}
	if isXML {
		return ""
	}
	return marshalExample(v)
}

func looksLikeRef(s string, opts Options) bool {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "file://") {
		return true
	}
	if strings.ContainsAny(s, "\n{[") {
		return false
	}
	return filepath.IsAbs(s) || fileExists(filepath.Join(filepath.Dir(opts.Source), s))
}

func marshalExample(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func loadExternalExample(ref string, opts Options) string {
	if after, ok := strings.CutPrefix(ref, "file://"); ok {
		ref = after
	}
	base := opts.BaseLocation
	if base != nil && base.Scheme != "" && base.Host != "" {
		if u, err := base.Parse(ref); err == nil {
			ref = u.String()
		}
	}

	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
		if !opts.AllowRemoteRefs && !sameOrigin(u, opts.Source) {
			return ""
		}
		client := http.DefaultClient
		if opts.Insecure {
			client = insecureHTTPClient()
		}
		resp, err := client.Get(ref)
		if err != nil {
			return ""
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return ""
		}
		return string(b)
	}

	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(opts.Source), ref)
	}
	if !allowLocalRef(path, opts) {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

func synthesizeExample(sref *openapi3.SchemaRef) (any, bool) {
	if sref == nil || sref.Value == nil {
		return nil, false
	}
	s := sref.Value
	switch firstType(s) {
	case "object":
		obj := map[string]any{}
		for name, prop := range s.Properties {
			if prop == nil || prop.Value == nil {
				continue
			}
			if len(s.Required) > 0 && !slices.Contains(s.Required, name) {
				continue
			}
			if ex, ok := synthesizeExample(prop); ok {
				obj[name] = ex
			}
		}
		return obj, true
	case "array":
		if s.Items != nil {
			if ex, ok := synthesizeExample(s.Items); ok {
				return []any{ex}, true
			}
		}
		return []any{}, true
	case "integer", "number":
		return 0, true
	case "boolean":
		return true, true
	default:
		return "string", true
	}
}

func firstType(s *openapi3.Schema) string {
	if s.Type != nil && len(*s.Type) > 0 {
		return (*s.Type)[0]
	}
	if len(s.Properties) > 0 {
		return "object"
	}
	return ""
}

func isJSONMedia(mt string) bool {
	return strings.Contains(strings.ToLower(mt), "json")
}
