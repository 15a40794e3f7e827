package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebovdev/radiobox/internal/station"
	"gopkg.in/yaml.v3"
)

// StationsPath returns the station list location: the configured file, or stations.yml
// next to config.yml.
func (c *Config) StationsPath() (string, error) {
	if c.Stations.File != "" {
		return c.Stations.File, nil
	}
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(configPath), StationsFileName), nil
}

// LoadStations reads the persisted station list. A missing file is an empty list.
func LoadStations(path string) ([]station.Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []station.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stations file: %w", err)
	}

	var records []station.Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse stations file: %w", err)
	}

	valid := records[:0]
	for _, r := range records {
		if r.Name == "" || r.URL == "" {
			continue
		}
		valid = append(valid, r)
	}
	return valid, nil
}

// SaveStations writes the station list atomically.
func SaveStations(path string, records []station.Record) error {
	if records == nil {
		records = []station.Record{}
	}
	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal stations: %w", err)
	}
	return writeFileAtomic(path, data)
}
