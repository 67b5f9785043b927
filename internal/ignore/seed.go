package ignore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// SeedFile is the YAML layout of a pattern seed file:
//
//	patterns:
//	  - field: title
//	    type: contains
//	    value: healthcheck
//	    reason: synthetic probes
//	    expires_in: 720h
type SeedFile struct {
	Patterns []CreateRequest `yaml:"patterns"`
}

// LoadSeed reads a seed file from path.
func LoadSeed(path string) ([]CreateRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ignore seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML. Entries are not validated here; Seed does that.
func ParseSeed(data []byte) ([]CreateRequest, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ignore seed: %w", err)
	}
	return f.Patterns, nil
}

// Seed creates each requested pattern unless one with the same field, type
// and value already exists. It returns how many were created.
func (m *Manager) Seed(ctx context.Context, reqs []CreateRequest) (int, error) {
	existing, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	type key struct {
		field string
		typ   feedback.PatternType
		value string
	}
	seen := make(map[key]bool, len(existing))
	for _, p := range existing {
		seen[key{p.Field, p.Type, p.Value}] = true
	}

	created := 0
	for i, req := range reqs {
		if req.CreatedBy == "" {
			req.CreatedBy = "seed"
		}
		k := key{
			field: strings.TrimSpace(req.Field),
			typ:   feedback.PatternType(strings.ToLower(strings.TrimSpace(string(req.Type)))),
			value: req.Value,
		}
		if seen[k] {
			continue
		}
		if _, err := m.Create(ctx, req); err != nil {
			return created, fmt.Errorf("seed pattern %d: %w", i, err)
		}
		seen[k] = true
		created++
	}
	return created, nil
}
