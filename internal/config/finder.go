package config

import (
	"os"
	"path/filepath"
)

// configExts lists the accepted config file extensions, in lookup order.
var configExts = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig walks from dir up to the filesystem root and returns the
// first .rustlink config file found, or "" when there is none.
func FindLocalConfig(dir string) string {
	for {
		if path := localConfigIn(dir); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}

		dir = parent
	}
}

// localConfigIn checks a single directory for a .rustlink config file.
func localConfigIn(dir string) string {
	for _, ext := range configExts {
		path := filepath.Join(dir, ".rustlink."+ext)

		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
