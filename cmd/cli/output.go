package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const defaultOutputDir = "var"

// outputPath resolves --output for command, defaulting to
// <OUTPUT_DIR>/<command>.json.
func (a *app) outputPath(command, flag string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	dir := defaultOutputDir
	switch {
	case a.cfg != nil && a.cfg.OutputDir != "":
		dir = a.cfg.OutputDir
	case os.Getenv("OUTPUT_DIR") != "":
		dir = os.Getenv("OUTPUT_DIR")
	}
	return filepath.Join(dir, command+".json")
}

// emit writes result to path and then to w as indented JSON.
func emit(w io.Writer, path string, result interface{}) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// readJSON decodes the JSON document at path into v.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
