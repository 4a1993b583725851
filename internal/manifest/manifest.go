// Package manifest holds the static list of raids and dungeons to scrape and
// the names the refiner throws away.
package manifest

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sjsage522/immunescraper/internal/model"
	scrapeerrors "sjsage522/immunescraper/pkg/errors"
)

//go:embed instances.yaml
var defaultManifest []byte

// Entry is one instance to scrape
type Entry struct {
	Name string `yaml:"name"`
	ID   int    `yaml:"id"`
}

// Ignore lists exact names removed during refinement
type Ignore struct {
	Spells []string `yaml:"spells"`
	Npcs   []string `yaml:"npcs"`
}

// Manifest is the full scrape plan
type Manifest struct {
	Raids    []Entry `yaml:"raids"`
	Dungeons []Entry `yaml:"dungeons"`
	Ignore   Ignore  `yaml:"ignore"`
}

// Entries returns the entries of a group
func (m *Manifest) Entries(kind model.Kind) []Entry {
	if kind == model.KindRaid {
		return m.Raids
	}
	return m.Dungeons
}

// Default returns the manifest compiled into the binary
func Default() (*Manifest, error) {
	return Parse(defaultManifest)
}

// Load reads a manifest override from path, or the compiled-in one when path is empty
func Load(path string) (*Manifest, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scrapeerrors.NewConfiguration(fmt.Sprintf("failed to read manifest %s", path), err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML manifest
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, scrapeerrors.NewConfiguration("failed to parse manifest", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	seen := make(map[int]string)
	for _, kind := range model.Kinds {
		names := make(map[string]bool)
		for _, e := range m.Entries(kind) {
			if e.Name == "" || e.ID <= 0 {
				return scrapeerrors.NewValidation("manifest", fmt.Sprintf("%s entry %q needs a name and a positive id", kind, e.Name))
			}
			if names[e.Name] {
				return scrapeerrors.NewValidation("manifest", fmt.Sprintf("duplicate %s name %q", kind, e.Name))
			}
			names[e.Name] = true
			if other, ok := seen[e.ID]; ok {
				return scrapeerrors.NewValidation("manifest", fmt.Sprintf("instance id %d used by both %q and %q", e.ID, other, e.Name))
			}
			seen[e.ID] = e.Name
		}
	}
	return nil
}
