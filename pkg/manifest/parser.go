// Package manifest parses the CI manifest into an executable pipeline.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Promptonauts/convey/pkg/models"
)

const (
	PhaseDependencies = "dependencies"
	PhaseTest         = "test"
)

type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Load reads and parses a manifest file.
func Load(path string) (*models.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, path)
}

// Parse parses YAML manifest content into a Pipeline. Unknown top-level
// keys are rejected; a manifest declaring no phases is an error. Phase
// order is fixed: dependencies runs before test.
func Parse(data []byte, path string) (*models.Pipeline, error) {
	var m models.Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Path: path, Message: "empty manifest"}
		}
		return nil, &ParseError{Path: path, Message: err.Error()}
	}

	if m.Dependencies.Override == nil && m.Test.Override == nil {
		return nil, &ParseError{Path: path, Message: "manifest declares no phases"}
	}

	p := &models.Pipeline{CacheDirs: m.CacheDirs}
	if m.Dependencies.Override != nil {
		p.Phases = append(p.Phases, models.Phase{
			Name:     PhaseDependencies,
			Commands: m.Dependencies.Override,
		})
	}
	if m.Test.Override != nil {
		p.Phases = append(p.Phases, models.Phase{
			Name:     PhaseTest,
			Commands: m.Test.Override,
		})
	}
	return p, nil
}

// ParseChannels validates a list of channel names for a matrix run.
func ParseChannels(names []string) ([]models.Channel, error) {
	channels := make([]models.Channel, 0, len(names))
	for _, name := range names {
		c := models.Channel(name)
		if !c.Valid() {
			return nil, fmt.Errorf("unknown channel %q (expected stable, nightly or beta)", name)
		}
		channels = append(channels, c)
	}
	return channels, nil
}
