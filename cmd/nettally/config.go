package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// config is the optional YAML config file. Flags and environment variables
// override it.
type config struct {
	DeviceFile   string `yaml:"device_file,omitempty"`
	DataDir      string `yaml:"data_dir,omitempty"`
	TemplateDir  string `yaml:"template_dir,omitempty"`
	InventoryURL string `yaml:"inventory_url,omitempty"`
	Workers      int    `yaml:"workers,omitempty"`
	Tenant       string `yaml:"tenant,omitempty"`
	Site         string `yaml:"site,omitempty"`
	Role         string `yaml:"role,omitempty"`
}

func loadConfig(path string) (*config, error) {
	c := &config{}
	if path == "" {
		path = os.Getenv("NETTALLY_CONFIG")
	}
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".nettally", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

func (c *config) dataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nettally"
	}
	return filepath.Join(home, ".nettally")
}

func (c *config) devicesPath() string {
	if deviceFile != "" {
		return deviceFile
	}
	if c.DeviceFile != "" {
		return c.DeviceFile
	}
	return filepath.Join(c.dataDir(), "devices.json")
}

func (c *config) pipelinesDir() string {
	return filepath.Join(c.dataDir(), "pipelines")
}

func (c *config) historyPath() string {
	return filepath.Join(c.dataDir(), "history.json")
}

func (c *config) workerCount() int {
	if workers > 0 {
		return workers
	}
	if c.Workers > 0 {
		return c.Workers
	}
	return 0 // collector default
}
