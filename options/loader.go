package options

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var errMaxDepth = errors.New("max_depth must be positive")

// Parse reads an option set from YAML. Keys that are absent keep their
// default values, so a partial document is a valid overlay.
func Parse(data []byte) (*Options, error) {
	opts := Default()

	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parsing options: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}

// Load reads an option set from a YAML file.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading options file: %w", err)
	}

	return Parse(data)
}
