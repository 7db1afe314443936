package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	log "github.com/sirupsen/logrus"
)

// Scanner scans an app package for python test modules
type Scanner struct {
	skipDirs map[string]bool
	excludes []string
}

// NewScanner creates a new Scanner with the directories to skip and the
// doublestar globs, relative to the scanned root, to exclude
func NewScanner(skipDirs, excludes []string) *Scanner {
	skipMap := make(map[string]bool)
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	return &Scanner{skipDirs: skipMap, excludes: excludes}
}

// Scan finds all test_*.py files under root
func (s *Scanner) Scan(root string) ([]string, error) {
	var testfiles []string

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("test path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test path is not a directory: %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || s.skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if !strings.HasPrefix(name, "test_") || !strings.HasSuffix(name, ".py") || name == "test_runner.py" {
			return nil
		}
		if isBoilerplate(rel) || s.excluded(rel) {
			return nil
		}
		testfiles = append(testfiles, path)
		return nil
	})

	return testfiles, err
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.excludes {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			log.WithError(err).Warnf("invalid exclude pattern %q", pattern)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// isBoilerplate reports whether rel is a template of the doctype generator
func isBoilerplate(rel string) bool {
	parts := strings.Split(rel, "/")
	n := len(parts)
	return n >= 4 && parts[n-4] == "doctype" && parts[n-3] == "doctype" && parts[n-2] == "boilerplate"
}

// ModuleName returns the dotted module name of a file inside the app package
// at root
func ModuleName(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".py")
	return filepath.Base(root) + "." + strings.ReplaceAll(rel, "/", "."), nil
}

// docTypeFile returns the doctype JSON beside a doctype test module. ok is
// false for test modules outside a doctype directory.
func docTypeFile(path string) (string, bool) {
	dir := filepath.Dir(path)
	if filepath.Base(filepath.Dir(dir)) != "doctype" {
		return "", false
	}
	stem := strings.TrimSuffix(filepath.Base(path), ".py")
	return filepath.Join(dir, strings.TrimPrefix(stem, "test_")+".json"), true
}
