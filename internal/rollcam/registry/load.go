package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://rollcam.dev/schemas/machines.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// fileMachine is the on-disk shape of one machine entry.
type fileMachine struct {
	Key       string `yaml:"key"`
	Label     string `yaml:"label"`
	ID        string `yaml:"id"`
	URL       string `yaml:"url"`
	ImageURL  string `yaml:"image_url"`
	Templates struct {
		Image  string `yaml:"image"`
		Search string `yaml:"search"`
		Time   string `yaml:"time"`
	} `yaml:"templates"`
}

type file struct {
	Vocabulary Vocabulary    `yaml:"vocabulary"`
	Machines   []fileMachine `yaml:"machines"`
}

// Load reads and validates a machines YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read machines file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse validates data against the embedded JSON schema, decodes it and
// builds a Registry.
func Parse(data []byte) (*Registry, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode machines file: %w", err)
	}

	machines := make([]Machine, 0, len(f.Machines))
	for _, fm := range f.Machines {
		machines = append(machines, Machine{
			Key:          fm.Key,
			Label:        fm.Label,
			ID:           fm.ID,
			URL:          fm.URL,
			ImageURL:     fm.ImageURL,
			ImagePrefix:  fm.Templates.Image,
			SearchPrefix: fm.Templates.Search,
			TimePrefix:   fm.Templates.Time,
		})
	}
	return New(machines, f.Vocabulary)
}

// validate converts the YAML document to its JSON form and checks it against
// the schema.
func validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse machines file: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("machines file is empty")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("machines file is not representable as JSON: %w", err)
	}
	var inst any
	if err := json.Unmarshal(raw, &inst); err != nil {
		return fmt.Errorf("re-read machines document: %w", err)
	}

	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile machines schema: %w", err)
	}
	if err := s.Validate(inst); err != nil {
		return fmt.Errorf("machines file does not match schema: %w", err)
	}
	return nil
}
