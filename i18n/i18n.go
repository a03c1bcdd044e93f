// Package i18n holds the localized user-facing error strings.
package i18n

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Message keys.
const (
	SymLoadFail     = "symloadfail"
	SymDownloadFail = "symdownloadfail"
	NoTarget        = "notarget"
	ModuleActive    = "moduleactive"
)

// Fallback is the language used when a key is missing from the requested one.
const Fallback = "en"

//go:embed messages.yaml
var builtin []byte

// Catalog maps language to key to message.
type Catalog struct {
	mu    sync.RWMutex
	langs map[string]map[string]string
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("i18n: built-in catalog: %v", err))
	}
	return c
}

// Parse reads a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	langs := map[string]map[string]string{}
	if err := yaml.Unmarshal(data, &langs); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{langs: map[string]map[string]string{}}
	c.merge(langs)
	return c, nil
}

// LoadFile merges the catalog at path over c. Later entries win.
func (c *Catalog) LoadFile(path string) error {
	// #nosec G304 -- catalog path comes from the host configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	other, err := Parse(data)
	if err != nil {
		return err
	}
	c.merge(other.langs)
	return nil
}

func (c *Catalog) merge(langs map[string]map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for lang, msgs := range langs {
		lang = strings.ToLower(lang)
		if c.langs[lang] == nil {
			c.langs[lang] = map[string]string{}
		}
		for k, v := range msgs {
			c.langs[lang][k] = v
		}
	}
}

// T returns the message for key in lang, falling back to English and then to
// the key itself.
func (c *Catalog) T(lang, key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if msg, ok := c.langs[strings.ToLower(lang)][key]; ok {
		return msg
	}
	if msg, ok := c.langs[Fallback][key]; ok {
		return msg
	}
	return key
}

// Languages lists the languages in the catalog, sorted.
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.langs))
	for lang := range c.langs {
		out = append(out, lang)
	}
	slices.Sort(out)
	return out
}
