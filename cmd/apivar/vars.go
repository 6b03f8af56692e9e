package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// parseVars turns name=value pairs into CLI variables. A value of @path is
// replaced by the base64 encoded content of that file.
func parseVars(list []string) (map[string]string, error) {
	vars := map[string]string{}
	for _, kv := range list {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --var %q (want name=value)", kv)
		}
		if path, isFile := strings.CutPrefix(value, "@"); isFile {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("--var %s: %w", name, err)
			}
			value = base64.StdEncoding.EncodeToString(data)
		}
		vars[strings.TrimSpace(name)] = value
	}
	return vars, nil
}
