package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	cacheFileName  = "asset-cache.json"
	configDirName  = ".artbridge"
	configFileName = "config.yaml"
	lockFileName   = "sync.lock"
)

// localConfig represents the local configuration file structure.
type localConfig struct {
	Collections localCollections `yaml:"collections"`
	Locales     localLocales     `yaml:"locales"`
	Sanity      localSanity      `yaml:"sanity"`
	Webflow     localWebflow     `yaml:"webflow"`
}

// localCollections represents the collections section of the config file.
type localCollections struct {
	Artworks   string `yaml:"artworks"`
	Categories string `yaml:"categories"`
	Creators   string `yaml:"creators"`
	Finishes   string `yaml:"finishes"`
	Locations  string `yaml:"locations"`
	Materials  string `yaml:"materials"`
	Mediums    string `yaml:"mediums"`
}

// localLocales represents the locales section of the config file.
type localLocales struct {
	Primary   string `yaml:"primary"`
	Secondary string `yaml:"secondary"`
}

// localSanity represents the sanity section of the config file.
type localSanity struct {
	Dataset   string `yaml:"dataset"`
	ProjectID string `yaml:"project_id"`
	Token     string `yaml:"token"`
}

// localWebflow represents the webflow section of the config file.
type localWebflow struct {
	SiteID string `yaml:"site_id"`
	Token  string `yaml:"token"`
}

// ConfigDir returns the artbridge configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigFilePath returns the path to the local config file.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LocalConfigExists checks if a local config file exists.
func LocalConfigExists() bool {
	configPath, err := ConfigFilePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(configPath)
	return err == nil
}

// LoadLocal loads Settings from the local config file, filling cache and
// lock paths with defaults under the config directory. Sync tunables keep
// their defaults and are overridden by command-line flags.
func LoadLocal() (*Settings, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}
	return loadLocalFile(configPath)
}

// loadLocalFile loads Settings from the given config file path.
func loadLocalFile(configPath string) (*Settings, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s (run 'artbridge init' to create)", configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var local localConfig
	if err := yaml.Unmarshal(data, &local); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	dir := filepath.Dir(configPath)

	cfg := &Settings{
		AssetCachePath: filepath.Join(dir, cacheFileName),
		Collections: Collections{
			Artworks:   local.Collections.Artworks,
			Categories: local.Collections.Categories,
			Creators:   local.Collections.Creators,
			Finishes:   local.Collections.Finishes,
			Locations:  local.Collections.Locations,
			Materials:  local.Collections.Materials,
			Mediums:    local.Collections.Mediums,
		},
		Locales: Locales{
			Primary:   local.Locales.Primary,
			Secondary: local.Locales.Secondary,
		},
		RunLockPath: filepath.Join(dir, lockFileName),
		Sanity: Sanity{
			Dataset:   local.Sanity.Dataset,
			ProjectID: local.Sanity.ProjectID,
			Token:     local.Sanity.Token,
		},
		Sync: Sync{
			BatchSize: defaultBatchSize,
			RateLimit: defaultRateLimit,
			Workers:   defaultWorkers,
		},
		Webflow: Webflow{
			SiteID: local.Webflow.SiteID,
			Token:  local.Webflow.Token,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
