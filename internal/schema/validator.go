// Package schema validates JSON response bodies against the Draft-7
// schema documents shipped with the harness.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/newplayman/kraken-conformance/internal/metrics"
)

// Validator holds compiled schemas keyed by file name.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles every *.json document under dir. Unreadable or
// invalid schema files are configuration errors, not scenario failures.
func NewValidator(dir string) (*Validator, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schemas dir: %w", err)
	}

	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		sl := gojsonschema.NewSchemaLoader()
		sl.Draft = gojsonschema.Draft7
		sl.AutoDetect = false
		compiled, err := sl.Compile(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		v.schemas[e.Name()] = compiled
	}
	if len(v.schemas) == 0 {
		return nil, fmt.Errorf("no schema documents found in %s", dir)
	}
	return v, nil
}

// Validate checks document against the named schema. On mismatch the error
// joins every violation message.
func (v *Validator) Validate(name string, document []byte) error {
	compiled, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	result, err := compiled.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("validate against %s: %w", name, err)
	}
	if result.Valid() {
		return nil
	}
	metrics.RecordSchemaViolation(name)
	msgs := make([]string, 0, len(result.Errors()))
	for _, resErr := range result.Errors() {
		msgs = append(msgs, resErr.String())
	}
	return fmt.Errorf("document violates %s: %s", name, strings.Join(msgs, "; "))
}
