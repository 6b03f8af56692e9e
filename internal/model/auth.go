package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Auth is implemented by every authentication scheme.
type Auth interface {
	authType() string
}

// APIKeyAuth sends a static key in a header.
type APIKeyAuth struct {
	Key    string `yaml:"key"`
	Header string `yaml:"header,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// AzureCredentialsAuth fetches a bearer token for the given scopes.
type AzureCredentialsAuth struct {
	Scopes []string `yaml:"scopes"`
}

func (APIKeyAuth) authType() string           { return "api-key" }
func (AzureCredentialsAuth) authType() string { return "azure-credentials" }

// DefaultAPIKeyHeader is used when an api-key scheme names no header.
const DefaultAPIKeyHeader = "X-Api-Key"

// HeaderName returns the header carrying the key.
func (a APIKeyAuth) HeaderName() string {
	if a.Header == "" {
		return DefaultAPIKeyHeader
	}
	return a.Header
}

// HeaderValue returns the key, prefixed when a prefix is configured.
func (a APIKeyAuth) HeaderValue() string {
	if a.Prefix == "" {
		return a.Key
	}
	return a.Prefix + " " + a.Key
}

// Authentication wraps an Auth scheme selected by the YAML "type" key.
type Authentication struct {
	Auth
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Authentication) UnmarshalYAML(node *yaml.Node) error {
	kind, err := discriminator(node)
	if err != nil {
		return fmt.Errorf("authentication: %w", err)
	}
	switch kind {
	case "api-key":
		var v APIKeyAuth
		if err := node.Decode(&v); err != nil {
			return err
		}
		a.Auth = v
	case "azure-credentials":
		var v AzureCredentialsAuth
		if err := node.Decode(&v); err != nil {
			return err
		}
		a.Auth = v
	default:
		return fmt.Errorf("authentication: unknown type %q (line %d)", kind, node.Line)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (a Authentication) MarshalYAML() (any, error) {
	if a.Auth == nil {
		return nil, nil
	}
	return tagged(a.Auth.authType(), a.Auth)
}

// discriminator returns the "type" scalar of a mapping node.
func discriminator(node *yaml.Node) (string, error) {
	if node.Kind != yaml.MappingNode {
		return "", fmt.Errorf("expected mapping (line %d)", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "type" {
			return node.Content[i+1].Value, nil
		}
	}
	return "", fmt.Errorf("missing type (line %d)", node.Line)
}

// tagged encodes v as a mapping with a leading "type" key.
func tagged(kind string, v any) (*yaml.Node, error) {
	var body yaml.Node
	if err := body.Encode(v); err != nil {
		return nil, err
	}
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	out.Content = append(out.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "type"},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kind},
	)
	if body.Kind == yaml.MappingNode {
		out.Content = append(out.Content, body.Content...)
	}
	return out, nil
}
