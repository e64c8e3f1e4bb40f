package generator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vanshika/ledgerwatch/internal/service"
)

// WorkloadFile is the file name WriteWorkload produces inside its directory.
const WorkloadFile = "workload.json"

// WriteWorkload serializes the workload into workload.json under dir and
// returns the file path.
func WriteWorkload(w service.Workload, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, WorkloadFile)
	if err := writeJSON(path, w); err != nil {
		return "", err
	}
	return path, nil
}

// ReadWorkload decodes a workload written by WriteWorkload.
func ReadWorkload(path string) (service.Workload, error) {
	file, err := os.Open(path)
	if err != nil {
		return service.Workload{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return DecodeWorkload(file)
}

// DecodeWorkload reads a JSON workload from r.
func DecodeWorkload(r io.Reader) (service.Workload, error) {
	var w service.Workload
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return service.Workload{}, fmt.Errorf("decode workload: %w", err)
	}
	return w, nil
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}
