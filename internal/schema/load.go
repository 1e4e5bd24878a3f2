// Package schema compiles model definitions into ir.Model.
//
// A model lives next to the store configuration as <name>.cue or
// <name>.yaml. CUE is preferred when both exist.
package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/datastack/internal/ir"
)

// ErrModelNotFound is returned by Load when no model file exists.
var ErrModelNotFound = errors.New("model not found")

// extensions lists model file extensions in lookup order.
var extensions = []string{".cue", ".yaml", ".yml"}

// Load finds and compiles the model called name in dir.
func Load(dir, name string) (*ir.Model, error) {
	path, err := Find(dir, name)
	if err != nil {
		return nil, err
	}
	return LoadFile(name, path)
}

// Find returns the path of the model file for name in dir.
func Find(dir, name string) (string, error) {
	if !ir.ValidName(name) {
		return "", fmt.Errorf("invalid model name %q", name)
	}
	for _, ext := range extensions {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no %s.cue or %s.yaml in %s", ErrModelNotFound, name, name, dir)
}

// LoadFile compiles a single model file. The format follows the extension.
func LoadFile(name, path string) (*ir.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	switch filepath.Ext(path) {
	case ".cue":
		return CompileCUE(name, path, data)
	case ".yaml", ".yml":
		return CompileYAML(name, path, data)
	default:
		return nil, fmt.Errorf("unsupported model file %s", path)
	}
}
