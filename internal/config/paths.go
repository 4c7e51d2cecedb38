package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// EnvConfigPath names the environment variable that overrides the default config location.
const EnvConfigPath = "CRYOFLOW_CONFIG"

var defaultFiles = []string{
	filepath.Join("cryoflow", "config.yaml"),
	filepath.Join("cryoflow", "config.yml"),
	filepath.Join("cryoflow", "config.toml"),
}

// DefaultPath returns the configuration file to use when none is given on the command line:
// $CRYOFLOW_CONFIG if set, otherwise the first existing cryoflow/config.{yaml,yml,toml}
// in the XDG config directories, otherwise $XDG_CONFIG_HOME/cryoflow/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}

	for _, rel := range defaultFiles {
		if p, err := xdg.SearchConfigFile(rel); err == nil {
			return p
		}
	}

	return filepath.Join(xdg.ConfigHome, defaultFiles[0])
}

// ResolvePath returns flagValue when set and DefaultPath otherwise.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return DefaultPath()
}
