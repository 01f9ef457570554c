// Package output writes redlens analysis results to files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFlushJSON writes one thread's flush results to
// <dir>/flush_thread<id>.json, creating dir as needed.
func WriteFlushJSON(dir string, cpuThread uint32, v any) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", dir, err)
	}
	return writeJSON(filepath.Join(dir, fmt.Sprintf("flush_thread%d.json", cpuThread)), v)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
