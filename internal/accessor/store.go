package accessor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// readList loads a JSON array artifact. A missing file is an empty list; the
// store treats absence as "no data yet", never as an error.
func readList[T any](path string) ([]*T, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: resolver-produced path
	if os.IsNotExist(err) {
		return []*T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("accessor: read %s: %w", path, err)
	}
	var list []*T
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("accessor: decode %s: %w", path, err)
	}
	return list, nil
}

// readOne loads a single-object artifact. Missing files yield a nil pointer.
func readOne[T any](path string) (*T, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: resolver-produced path
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("accessor: read %s: %w", path, err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("accessor: decode %s: %w", path, err)
	}
	return out, nil
}

func marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("accessor: encode: %w", err)
	}
	return data, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("accessor: create parent dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("accessor: write %s: %w", path, err)
	}
	return nil
}
