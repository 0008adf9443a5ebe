package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath rejects empty paths, NUL bytes and directory traversal.
// Absolute paths are allowed so databases and config files can live anywhere
// the operator points them.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("file path contains NUL byte")
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("path contains directory traversal: %s", path)
		}
	}
	return nil
}

// ValidateFileExtension checks the path and requires one of the given extensions.
func ValidateFileExtension(path string, allowed ...string) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported file extension %q, expected one of %v", ext, allowed)
}
