// Package report aggregates suite outcomes into a run summary.
package report

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// SuiteResult carries the scenario counts parsed from one JUnit file.
type SuiteResult struct {
	Suite      string `json:"suite"`
	Scenarios  int    `json:"scenarios"`
	Failures   int    `json:"failures"`
	Errors     int    `json:"errors"`
	Passed     bool   `json:"passed"`
	ResultFile string `json:"result_file"`
}

// Summary is the aggregate outcome of a run, written next to the JUnit
// files as summary.json.
type Summary struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Suites     []SuiteResult `json:"suites"`
}

// junitSuites mirrors the root element of the JUnit files the scenario
// runner emits.
type junitSuites struct {
	XMLName  xml.Name `xml:"testsuites"`
	Name     string   `xml:"name,attr"`
	Tests    int      `xml:"tests,attr"`
	Failures int      `xml:"failures,attr"`
	Errors   int      `xml:"errors,attr"`
}

// ParseJUnit reads scenario counts from a JUnit XML file.
func ParseJUnit(suite, path string) (SuiteResult, error) {
	res := SuiteResult{Suite: suite, ResultFile: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read junit file: %w", err)
	}
	var parsed junitSuites
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return res, fmt.Errorf("parse junit file %s: %w", path, err)
	}
	res.Scenarios = parsed.Tests
	res.Failures = parsed.Failures
	res.Errors = parsed.Errors
	res.Passed = parsed.Failures == 0 && parsed.Errors == 0
	return res, nil
}

// Add appends one suite result.
func (s *Summary) Add(r SuiteResult) {
	s.Suites = append(s.Suites, r)
}

// ExitCode is 0 iff every scenario of every suite passed.
func (s *Summary) ExitCode() int {
	if len(s.Suites) == 0 {
		return 1
	}
	for _, r := range s.Suites {
		if !r.Passed {
			return 1
		}
	}
	return 0
}

// Write stores the summary as summary.json in the results dir and logs
// the per-suite outcome.
func (s *Summary) Write(resultsDir string) error {
	for _, r := range s.Suites {
		log.Info().
			Str("suite", r.Suite).
			Int("scenarios", r.Scenarios).
			Int("failures", r.Failures).
			Int("errors", r.Errors).
			Bool("passed", r.Passed).
			Msg("suite finished")
	}

	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	path := filepath.Join(resultsDir, "summary.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
