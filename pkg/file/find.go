package file

import (
	"os"
	"path/filepath"
	"strings"
)

// FindByExt walks dir and returns all regular files whose extension matches
// one of exts (case-insensitive, including the dot).
func FindByExt(dir string, exts ...string) ([]string, error) {
	var found []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range exts {
			if ext == strings.ToLower(want) {
				found = append(found, path)
				break
			}
		}
		return nil
	})

	return found, err
}

// Sibling returns the path of a file next to ref sharing its base name but
// with a different extension, or "" when it does not exist.
func Sibling(ref, ext string) string {
	candidate := ReplaceExt(ref, ext)
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}
