package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"katabatic/internal/types"
)

// LoadCriteriaFile reads a YAML document of criteria overrides, e.g.:
//
//	max_precipitation_probability: 15
//	clear_sky_window:
//	  start: "01:00"
//	  end: "05:00"
//
// Unknown keys are rejected. The merged result is validated so that a bad
// file fails at startup instead of on the first analysis.
func LoadCriteriaFile(path string) (*types.CriteriaOverrides, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read criteria file: %w", err)
	}
	return ParseCriteria(raw)
}

// ParseCriteria decodes YAML criteria overrides.
func ParseCriteria(raw []byte) (*types.CriteriaOverrides, error) {
	var overrides types.CriteriaOverrides
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&overrides); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode criteria yaml: %w", err)
	}

	merged := types.DefaultCriteria().Merge(&overrides)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &overrides, nil
}
