//go:build !tinygo

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a machine description from disk. Files ending in .yaml or
// .yml are parsed as YAML, anything else as JSON.
func LoadFile(path string) (*Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read machine file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(data)
	default:
		m, err := Load(data)
		return m, errors.Wrapf(err, "invalid machine file %s", path)
	}
}

// LoadYAML parses a YAML machine description, fills defaults and validates it
func LoadYAML(data []byte) (*Machine, error) {
	var m Machine
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse machine YAML")
	}
	return finish(&m)
}
