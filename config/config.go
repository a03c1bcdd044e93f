// Package config provides the host's configuration: where it is installed,
// where symbols are cached, and which process and module it extends.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"dwmhost/symbols"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the install directory.
const FileName = "dwmhost.yaml"

// EnvInstallDir overrides InstallDir from the environment.
const EnvInstallDir = "DWMHOST_INSTALL_DIR"

// Config is the host configuration. Relative paths are resolved against InstallDir.
type Config struct {
	InstallDir   string        `yaml:"install_dir"`
	Symbols      SymbolsConfig `yaml:"symbols"`
	Target       TargetConfig  `yaml:"target"`
	Region       string        `yaml:"region"`
	Language     string        `yaml:"language"`
	LanguageFile string        `yaml:"language_file,omitempty"` // merged over the built-in messages
}

// SymbolsConfig controls symbol lookup and resolution.
type SymbolsConfig struct {
	Server       string `yaml:"server"`
	CacheDir     string `yaml:"cache_dir"`
	DbgHelp      string `yaml:"dbghelp"`
	Descriptors  string `yaml:"descriptors,omitempty"`
	Strict       bool   `yaml:"strict"`
	AutoDownload bool   `yaml:"auto_download"`
}

// TargetConfig names the process being extended and the module injected into it.
type TargetConfig struct {
	Process     string `yaml:"process"`
	Extension   string `yaml:"extension"`
	NotifyClass string `yaml:"notify_class"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		InstallDir: executableDir(),
		Symbols: SymbolsConfig{
			Server:   symbols.DefaultServer,
			CacheDir: filepath.Join("data", "symbols"),
			DbgHelp:  symbols.DefaultDbgHelp,
			Strict:   true,
		},
		Target: TargetConfig{
			Process:     "dwm.exe",
			Extension:   "DWMBlurGlassExt.dll",
			NotifyClass: "DWMBlurGlassNotify",
		},
		Region:   filepath.Join("data", "offsets.bin"),
		Language: "en",
	}
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 -- path is chosen by the operator
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if dir := os.Getenv(EnvInstallDir); dir != "" {
		cfg.InstallDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks that every required field is set.
func (c *Config) Validate() error {
	var problems []string
	if c.InstallDir == "" {
		problems = append(problems, "install_dir is empty")
	}
	if u, err := url.Parse(c.Symbols.Server); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("symbols.server %q is not an http(s) URL", c.Symbols.Server))
	}
	if c.Symbols.CacheDir == "" {
		problems = append(problems, "symbols.cache_dir is empty")
	}
	if c.Target.Process == "" {
		problems = append(problems, "target.process is empty")
	}
	if c.Target.Extension == "" {
		problems = append(problems, "target.extension is empty")
	}
	if c.Target.NotifyClass == "" {
		problems = append(problems, "target.notify_class is empty")
	}
	if c.Region == "" {
		problems = append(problems, "region is empty")
	}
	if c.Language == "" {
		problems = append(problems, "language is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.InstallDir, p)
}

// SymbolCacheDir is the local symbol store.
func (c *Config) SymbolCacheDir() string {
	return c.resolve(c.Symbols.CacheDir)
}

// SearchPath returns the symbol search paths rooted at the cache.
func (c *Config) SearchPath() symbols.SearchPath {
	return symbols.SearchPath{CacheDir: c.SymbolCacheDir(), Server: c.Symbols.Server}
}

// RegionPath is the backing file of the shared offset table.
func (c *Config) RegionPath() string {
	return c.resolve(c.Region)
}

// ExtensionPath is the module injected into the target process.
func (c *Config) ExtensionPath() string {
	return c.resolve(c.Target.Extension)
}

// DescriptorPath is the descriptor override file, or "" for the compiled-in table.
func (c *Config) DescriptorPath() string {
	return c.resolve(c.Symbols.Descriptors)
}

// LanguageFilePath is the message catalog merged over the built-in one, or "".
func (c *Config) LanguageFilePath() string {
	return c.resolve(c.LanguageFile)
}

// DbgHelpPath is the symbol engine library. A bare file name is kept as is
// when it does not exist under InstallDir so the system copy is used.
func (c *Config) DbgHelpPath() string {
	p := c.Symbols.DbgHelp
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	local := c.resolve(p)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	return p
}
