// Package reference loads the versioned dataset behind sector grading, ESG
// grade bands and the compliance taxonomy. A copy ships embedded in the
// binary; operators can point the configuration at a newer file.
package reference

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/rshade/greenledger/internal/compliance"
	"github.com/rshade/greenledger/internal/esg"
	"github.com/rshade/greenledger/internal/sector"
)

type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors.
const (
	ErrIncompatibleVersion = constError("reference dataset version not accepted")
	ErrInvalidDataset      = constError("invalid reference dataset")
)

//go:embed defaults.yaml
var embedded []byte

// document is the on-disk form of a dataset.
type document struct {
	Version    string                `yaml:"version"`
	Benchmarks []sector.Benchmark    `yaml:"benchmarks"`
	Ladder     *sector.Ladder        `yaml:"ladder"`
	Bands      *esg.Bands            `yaml:"bands"`
	Taxonomy   []compliance.Category `yaml:"taxonomy"`
}

// Dataset is a validated reference dataset.
type Dataset struct {
	Version    *semver.Version
	Source     string
	Benchmarks sector.Benchmarks
	Ladder     sector.Ladder
	Bands      esg.Bands
	Taxonomy   *compliance.Taxonomy
}

// Default returns the embedded dataset.
func Default() *Dataset {
	ds, err := Parse(embedded, "")
	if err != nil {
		panic(fmt.Sprintf("reference: embedded dataset: %v", err))
	}
	ds.Source = "embedded"
	return ds
}

// Load reads the dataset at path, or the embedded one when path is empty,
// and checks its version against constraint (for example ">= 1.0.0, < 2.0.0").
// An empty constraint accepts any version.
func Load(path, constraint string) (*Dataset, error) {
	data := embedded
	source := "embedded"
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("reading reference dataset: %w", err)
		}
		source = path
	}
	ds, err := Parse(data, constraint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	ds.Source = source
	return ds, nil
}

// Parse decodes and validates a dataset. Sections missing from data fall
// back to the built-in tables.
func Parse(data []byte, constraint string) (*Dataset, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	version, err := semver.NewVersion(doc.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: version %q: %w", ErrInvalidDataset, doc.Version, err)
	}
	if constraint != "" {
		c, cErr := semver.NewConstraint(constraint)
		if cErr != nil {
			return nil, fmt.Errorf("invalid version constraint %q: %w", constraint, cErr)
		}
		if ok, reasons := c.Validate(version); !ok {
			return nil, fmt.Errorf("%w: %s does not satisfy %q: %w",
				ErrIncompatibleVersion, version, constraint, errors.Join(reasons...))
		}
	}

	ds := &Dataset{
		Version:    version,
		Benchmarks: sector.DefaultBenchmarks(),
		Ladder:     sector.DefaultLadder(),
		Bands:      esg.DefaultBands(),
		Taxonomy:   compliance.DefaultTaxonomy(),
	}
	if len(doc.Benchmarks) > 0 {
		if ds.Benchmarks, err = sector.NewBenchmarks(doc.Benchmarks); err != nil {
			return nil, fmt.Errorf("%w: benchmarks: %w", ErrInvalidDataset, err)
		}
	}
	if doc.Ladder != nil {
		if err = doc.Ladder.Validate(); err != nil {
			return nil, fmt.Errorf("%w: ladder: %w", ErrInvalidDataset, err)
		}
		ds.Ladder = *doc.Ladder
	}
	if doc.Bands != nil {
		if err = doc.Bands.Validate(); err != nil {
			return nil, fmt.Errorf("%w: bands: %w", ErrInvalidDataset, err)
		}
		ds.Bands = *doc.Bands
	}
	if len(doc.Taxonomy) > 0 {
		if ds.Taxonomy, err = compliance.NewTaxonomy(doc.Taxonomy); err != nil {
			return nil, fmt.Errorf("%w: taxonomy: %w", ErrInvalidDataset, err)
		}
	}
	return ds, nil
}
