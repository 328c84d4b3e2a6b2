package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File pairs a parsed schema with its on-disk source.
type File struct {
	Schema Schema
	Path   string
}

// ParseYAML decodes and validates a single schema payload.
func ParseYAML(data []byte) (Schema, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Schema{}, fmt.Errorf("schema: payload is empty")
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("schema: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s.Normalized(), nil
}

// LoadFile reads a YAML schema from disk.
func LoadFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("schema: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("schema: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("schema: read %s: %w", path, err)
	}
	s, err := ParseYAML(data)
	if err != nil {
		return File{}, fmt.Errorf("schema: %s: %w", path, err)
	}
	return File{Schema: s, Path: filepath.Clean(path)}, nil
}

// LoadDir scans dir for *.yaml schemas. A missing directory yields no schemas.
func LoadDir(dir string) ([]File, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("schema: read %s: %w", trimmed, err)
	}
	var files []File
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		f, err := LoadFile(filepath.Join(trimmed, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// RegisterDir loads every schema under dir into reg.
func RegisterDir(reg *Registry, dir string) error {
	files, err := LoadDir(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := reg.Register(f.Schema); err != nil {
			return fmt.Errorf("schema: %s: %w", f.Path, err)
		}
	}
	return nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
