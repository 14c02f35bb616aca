package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteResult summarizes a set of scenario files.
type SuiteResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// Failures returns the scenarios that did not pass, in run order.
func (r *SuiteResult) Failures() []ScenarioResult {
	var out []ScenarioResult
	for _, s := range r.Scenarios {
		if !s.Pass {
			out = append(out, s)
		}
	}
	return out
}

// Check inspects a completed run. A non-nil error fails the scenario even when
// every assertion held. The CLI uses it for golden comparison.
type Check func(scenario *Scenario, path string, result *Result) error

// FindScenarios returns the scenario files under dir whose base name matches
// filter (a filepath.Match pattern, empty for all), in lexical order.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
		}
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario in paths, then applies check (which
// may be nil) to each completed run. A scenario that cannot be loaded or
// executed counts as failed; the suite keeps going.
func RunSuite(ctx context.Context, paths []string, check Check, opts ...Option) *SuiteResult {
	result := &SuiteResult{Scenarios: make([]ScenarioResult, 0, len(paths))}

	for _, path := range paths {
		sr := runOne(ctx, path, check, opts)
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	return result
}

func runOne(ctx context.Context, path string, check Check, opts []Option) ScenarioResult {
	scenario, err := LoadScenario(path)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(path),
			Path:   path,
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	sr := ScenarioResult{Name: scenario.Name, Path: path}

	runResult, err := Run(ctx, scenario, opts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return sr
	}

	sr.Errors = append(sr.Errors, runResult.Errors...)
	if check != nil {
		if err := check(scenario, path, runResult); err != nil {
			sr.Errors = append(sr.Errors, err.Error())
		}
	}
	sr.Pass = len(sr.Errors) == 0
	return sr
}
