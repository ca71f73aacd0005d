package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario file %q does not exist", e.Path)
}

// Discover returns the scenario files under path in lexical order. A file
// path is returned as is; a directory is searched recursively for .yaml
// and .yml files.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml":
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// SuiteResult is the outcome of one scenario file.
type SuiteResult struct {
	Path   string  `json:"path"`
	Name   string  `json:"name,omitempty"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// Passed reports whether the scenario loaded, ran and passed.
func (r SuiteResult) Passed() bool {
	return r.Err == nil && r.Result != nil && r.Result.Pass
}

// RunSuite loads and runs every scenario in order. A scenario that fails
// to load or run is recorded and the suite continues.
func RunSuite(ctx context.Context, paths []string) []SuiteResult {
	results := make([]SuiteResult, 0, len(paths))
	for _, path := range paths {
		sr := SuiteResult{Path: path}
		scenario, err := LoadScenario(path)
		if err != nil {
			sr.Err = err
			results = append(results, sr)
			continue
		}
		sr.Name = scenario.Name
		sr.Result, sr.Err = Run(ctx, scenario)
		results = append(results, sr)
	}
	return results
}
