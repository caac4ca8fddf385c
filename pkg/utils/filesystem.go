package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDataDir ensures the .sciborg state directory exists under the
// given base path and returns its full path. An empty or "." base path
// creates ./.sciborg in the current directory. Microservice descriptors
// and benchmark reports are written here.
func EnsureDataDir(basePath string) (string, error) {
	var dir string
	if basePath == "" || basePath == "." {
		dir = ".sciborg"
	} else {
		dir = filepath.Join(basePath, ".sciborg")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory at '%s': %w", dir, err)
	}

	return dir, nil
}
