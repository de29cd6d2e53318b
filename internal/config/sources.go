package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"wayback-news/internal/sources"
)

type sourcesFile struct {
	Sources []sources.Definition `yaml:"sources"`
}

// LoadSources reads the source registry from a YAML file
func LoadSources(filePath string) ([]sources.Definition, error) {
	if filePath == "" {
		return nil, fmt.Errorf("sources file path is empty")
	}

	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("sources file not found: %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sources file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close sources file: %v\n", closeErr)
		}
	}()

	var parsed sourcesFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse sources YAML: %w", err)
	}

	if err := validateSources(parsed.Sources); err != nil {
		return nil, err
	}

	return parsed.Sources, nil
}

// ResolveSources returns the configured registry definitions, falling back
// to the built-in list when no sources_file is set.
func (c *Config) ResolveSources() ([]sources.Definition, error) {
	if c.SourcesFile == "" {
		return sources.Defaults(), nil
	}
	return LoadSources(c.SourcesFile)
}

func validateSources(defs []sources.Definition) error {
	if len(defs) == 0 {
		return fmt.Errorf("sources list is empty")
	}
	for i, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if d.Link == "" {
			return fmt.Errorf("sources[%d].link is required", i)
		}
		if d.Pattern == "" {
			return fmt.Errorf("sources[%d].pattern is required", i)
		}
	}
	return nil
}
