package nextver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFileNames are the supported config file names in priority order.
var configFileNames = []string{"nextver.yml", "nextver.yaml", ".nextver.yml", ".nextver.yaml"}

// FindConfigurationFile returns the first config file found in dir, or an
// empty string when there is none.
func FindConfigurationFile(dir string) string {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// LoadConfiguration reads the configuration at path merged over the
// defaults. An empty path yields the defaults.
func LoadConfiguration(path string) (*Configuration, error) {
	if path == "" {
		return DefaultConfiguration(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file %q not found", path)
		}
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	cfg, err := ParseConfiguration(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfiguration decodes YAML over DefaultConfiguration. Branches with
// a default key are merged field by field; new keys are added as-is.
func ParseConfiguration(data []byte) (*Configuration, error) {
	cfg := DefaultConfiguration()
	defaults := cfg.Branches
	cfg.Branches = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	merged := make(map[string]*BranchConfiguration, len(defaults)+len(cfg.Branches))
	for name, bc := range defaults {
		merged[name] = bc
	}
	for name, bc := range cfg.Branches {
		if bc == nil {
			continue
		}
		merged[name] = bc.overlay(defaults[name])
	}
	cfg.Branches = merged

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every regex compiles and every source branch exists.
func (c *Configuration) Validate() error {
	if _, err := compilePrefix(c.TagPrefix); err != nil {
		return fmt.Errorf("tag-prefix: %w", err)
	}

	for _, pattern := range []string{
		c.MajorVersionBumpMessage,
		c.MinorVersionBumpMessage,
		c.PatchVersionBumpMessage,
		c.NoBumpMessage,
	} {
		if _, err := compileOptional(pattern); err != nil {
			return fmt.Errorf("bump message %q: %w", pattern, err)
		}
	}

	for _, kind := range c.Strategies {
		if _, ok := strategyFactories[kind]; !ok {
			return fmt.Errorf("unknown strategy %q", kind)
		}
	}

	for name, bc := range c.Branches {
		if bc.Regex == "" {
			return fmt.Errorf("branch %q: regex is required", name)
		}
		if _, err := compileOptional(bc.Regex); err != nil {
			return fmt.Errorf("branch %q: %w", name, err)
		}
		for _, source := range bc.SourceBranches {
			if _, ok := c.Branches[source]; !ok {
				return fmt.Errorf("branch %q: unknown source branch %q", name, source)
			}
		}
	}
	return nil
}
