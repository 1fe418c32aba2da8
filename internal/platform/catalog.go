package platform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Catalog is the YAML form of a platform table
type Catalog struct {
	Platforms []CatalogEntry `yaml:"platforms"`
}

// CatalogEntry is one platform in a catalog file. Weekdays may be written
// as numbers (0 = Sunday) or as English names ("mon", "Monday").
type CatalogEntry struct {
	ID           ID        `yaml:"id"`
	Name         string    `yaml:"name"`
	Kind         Kind      `yaml:"kind"`
	GoodWeekdays []weekday `yaml:"good_weekdays"`
	GoodHours    []int     `yaml:"good_hours"`
	MaxLength    int       `yaml:"max_length"`
	Rules        Rules     `yaml:"rules"`
}

type weekday time.Weekday

func (w *weekday) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: weekday must be a scalar", node.Line)
	}
	if n, err := strconv.Atoi(node.Value); err == nil {
		*w = weekday(n)
		return nil
	}
	name := strings.ToLower(strings.TrimSpace(node.Value))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			*w = weekday(d)
			return nil
		}
	}
	return fmt.Errorf("line %d: unknown weekday %q", node.Line, node.Value)
}

// Parse builds a registry from catalog YAML
func Parse(data []byte) (*Registry, error) {
	var catalog Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse platform catalog: %w", err)
	}
	if len(catalog.Platforms) == 0 {
		return nil, fmt.Errorf("platform catalog lists no platforms")
	}

	profiles := make([]Profile, 0, len(catalog.Platforms))
	for _, e := range catalog.Platforms {
		days := make([]time.Weekday, 0, len(e.GoodWeekdays))
		for _, d := range e.GoodWeekdays {
			days = append(days, time.Weekday(d))
		}
		profiles = append(profiles, Profile{
			ID:           e.ID,
			Name:         e.Name,
			Kind:         e.Kind,
			GoodWeekdays: days,
			GoodHours:    e.GoodHours,
			MaxLength:    e.MaxLength,
			Rules:        e.Rules,
		})
	}

	registry, err := NewRegistry(profiles...)
	if err != nil {
		return nil, fmt.Errorf("invalid platform catalog: %w", err)
	}
	return registry, nil
}

// LoadFile reads a catalog file and builds a registry from it
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read platform catalog: %w", err)
	}
	return Parse(data)
}
