package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is the application name used for XDG directory paths.
	AppName = "leafmask"

	// DefaultConfigFile is the document looked up in the current directory.
	DefaultConfigFile = ".leafmask.yaml"

	// UserConfigFile is the document looked up in the XDG config directory.
	UserConfigFile = "pipeline.yaml"
)

// Parse decodes and validates a document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads and validates the document at path.
// A missing file yields ErrConfigNotFound.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// FindConfigFile searches for a pipeline document in the following order:
//  1. configPath, when given (returned even if it does not exist, so the
//     caller reports it)
//  2. .leafmask.yaml in the current directory
//  3. leafmask/pipeline.yaml in the XDG config directories
//
// An empty result means no document was found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if p, err := xdg.SearchConfigFile(filepath.Join(AppName, UserConfigFile)); err == nil {
		return p
	}
	return ""
}

// Load returns the document found by FindConfigFile, or Default when none
// exists. The returned path is empty for the default document.
func Load(configPath string) (*Document, string, error) {
	path := FindConfigFile(configPath)
	if path == "" {
		return Default(), "", nil
	}
	doc, err := LoadFile(path)
	return doc, path, err
}

// Marshal encodes doc as YAML.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode pipeline document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveFile writes doc to path, creating parent directories as needed.
func SaveFile(path string, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
