// Package harness matches Given/When/Then steps from the feature files to
// exchange requests and schema checks, and reports each suite's outcome.
package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog/log"

	"github.com/newplayman/kraken-conformance/internal/config"
	gateway "github.com/newplayman/kraken-conformance/internal/exchange"
	"github.com/newplayman/kraken-conformance/internal/metrics"
	"github.com/newplayman/kraken-conformance/internal/schema"
)

// Suite names, matching the feature file basenames.
const (
	SuitePublic  = "public"
	SuitePrivate = "private"
)

// Deps bundles what every step needs. One Deps serves a whole run; all
// per-scenario state lives in the world structs.
type Deps struct {
	Cfg       *config.Config
	Client    *gateway.KrakenRESTClient
	Validator *schema.Validator

	// Ctx bounds every HTTP call issued by steps.
	Ctx context.Context
}

// Result is the outcome of one suite run.
type Result struct {
	Suite      string `json:"suite"`
	Passed     bool   `json:"passed"`
	ResultFile string `json:"result_file"`
}

// RunSuite executes one feature file and writes its JUnit report under the
// results dir. A failed scenario fails the suite but never aborts it.
func RunSuite(name string, deps *Deps) (Result, error) {
	res := Result{Suite: name}

	var initializer func(*godog.ScenarioContext)
	switch name {
	case SuitePublic:
		if err := deps.Cfg.ValidatePublic(); err != nil {
			return res, err
		}
		initializer = deps.initializePublicScenario
	case SuitePrivate:
		if err := deps.Cfg.ValidatePrivate(); err != nil {
			return res, err
		}
		initializer = deps.initializePrivateScenario
	default:
		return res, fmt.Errorf("unknown suite %q", name)
	}

	featurePath := filepath.Join(deps.Cfg.Run.FeaturesDir, name+".feature")
	if _, err := os.Stat(featurePath); err != nil {
		return res, fmt.Errorf("feature file: %w", err)
	}

	if err := os.MkdirAll(deps.Cfg.Run.ResultsDir, 0o755); err != nil {
		return res, fmt.Errorf("create results dir: %w", err)
	}
	res.ResultFile = filepath.Join(deps.Cfg.Run.ResultsDir, name+".xml")
	out, err := os.Create(res.ResultFile)
	if err != nil {
		return res, fmt.Errorf("create result file: %w", err)
	}
	defer out.Close()

	ctx := deps.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	status := godog.TestSuite{
		Name: name,
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			initializer(sc)
			sc.After(func(c context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
				metrics.RecordScenario(name, err == nil)
				if err != nil {
					log.Error().Str("suite", name).Str("scenario", scenario.Name).Err(err).Msg("scenario failed")
				} else {
					log.Info().Str("suite", name).Str("scenario", scenario.Name).Msg("scenario passed")
				}
				return c, nil
			})
		},
		Options: &godog.Options{
			Format:         "junit",
			Paths:          []string{featurePath},
			Output:         out,
			Strict:         true,
			NoColors:       true,
			DefaultContext: ctx,
		},
	}.Run()

	res.Passed = status == 0
	return res, nil
}
