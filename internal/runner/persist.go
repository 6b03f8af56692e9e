package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/apivar/internal/model"
)

var unsafePathChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_")

// writeResponses stores each response as {dir}/{test}/{variant}/response_{i}.json
// and returns the written paths.
func writeResponses(dir, test, variant string, responses []model.Response) ([]string, error) {
	target := filepath.Join(dir, unsafePathChars.Replace(test), unsafePathChars.Replace(variant))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(responses))
	for i, resp := range responses {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return paths, fmt.Errorf("encode response %d: %w", i, err)
		}
		path := filepath.Join(target, fmt.Sprintf("response_%d.json", i))
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
