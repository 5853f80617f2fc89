package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNoDatasets is returned when a datasets file defines nothing.
	ErrNoDatasets = errors.New("no datasets defined")
	// ErrDuplicateID is returned when two datasets share an id.
	ErrDuplicateID = errors.New("duplicate dataset id")
)

var datasetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("datasetid", func(fl validator.FieldLevel) bool {
		return datasetIDPattern.MatchString(fl.Field().String())
	})
	return v
}

type file struct {
	Datasets []*Definition `yaml:"datasets"`
}

// Load reads dataset definitions from a YAML file.
func Load(path string) ([]*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading datasets file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, validates and normalizes dataset definitions.
func Parse(data []byte) ([]*Definition, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing datasets file: %w", err)
	}

	if len(f.Datasets) == 0 {
		return nil, ErrNoDatasets
	}

	seen := make(map[string]bool, len(f.Datasets))
	for _, d := range f.Datasets {
		if err := validate.Struct(d); err != nil {
			return nil, fmt.Errorf("invalid dataset %q: %w", d.ID, err)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, d.ID)
		}
		seen[d.ID] = true

		if err := d.normalize(); err != nil {
			return nil, err
		}
	}

	return f.Datasets, nil
}
