package main

import (
	"fmt"
	"os"

	"github.com/galeriehaus/artbridge/internal/config"
)

const configTemplate = `# artbridge configuration

sanity:
  # From sanity.io -> project settings.
  project_id: ""
  dataset: "production"
  # Read token with access to documents and assets.
  token: ""

webflow:
  # From Webflow -> Site settings -> Apps & integrations.
  site_id: ""
  token: ""

locales:
  # cmsLocaleIds from the Webflow Localization settings.
  primary: ""   # English
  secondary: "" # German

collections:
  # Webflow CMS collection IDs.
  artworks: ""
  categories: ""
  creators: ""
  finishes: ""
  locations: ""
  materials: ""
  mediums: ""
`

// runInit creates a sample configuration file.
func runInit() error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	configPath, err := config.ConfigFilePath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println("Created config file:", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit the config file with your credentials and collection IDs")
	fmt.Println("  2. Run 'artbridge sync --dry-run' to preview the first sync")
	fmt.Println("  3. Run 'artbridge sync' to migrate the catalog")

	return nil
}
