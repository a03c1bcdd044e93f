package descriptor

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileEntry struct {
	Module string `yaml:"module"`
	Symbol string `yaml:"symbol"`
}

type fileFormat struct {
	Hooks []fileEntry `yaml:"hooks"`
}

// Load reads a descriptor table override from a YAML file:
//
//	hooks:
//	  - module: udwm
//	    symbol: CTopLevelWindow::ValidateVisual
func Load(path string) (*Table, error) {
	// #nosec G304 -- path comes from the host configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a descriptor table from YAML.
func Parse(data []byte) (*Table, error) {
	var f fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse descriptor file: %w", err)
	}
	if len(f.Hooks) == 0 {
		return nil, fmt.Errorf("descriptor file has no hooks")
	}

	entries := make([]HookDescriptor, 0, len(f.Hooks))
	for i, h := range f.Hooks {
		m, err := ParseModule(h.Module)
		if err != nil {
			return nil, fmt.Errorf("hook %d: %w", i, err)
		}
		entries = append(entries, HookDescriptor{Module: m, Symbol: h.Symbol})
	}
	return New(entries)
}

// Marshal encodes t in the format accepted by Parse.
func Marshal(t *Table) ([]byte, error) {
	f := fileFormat{Hooks: make([]fileEntry, 0, t.Len())}
	for _, d := range t.entries {
		f.Hooks = append(f.Hooks, fileEntry{Module: d.Module.String(), Symbol: d.Symbol})
	}
	return yaml.Marshal(&f)
}
