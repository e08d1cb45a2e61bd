package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/newplayman/kraken-conformance/internal/config"
	gateway "github.com/newplayman/kraken-conformance/internal/exchange"
	"github.com/newplayman/kraken-conformance/internal/harness"
	"github.com/newplayman/kraken-conformance/internal/metrics"
	"github.com/newplayman/kraken-conformance/internal/report"
	"github.com/newplayman/kraken-conformance/internal/schema"
)

var (
	configFile  = flag.String("config", "", "optional YAML file with run settings")
	featuresDir = flag.String("features", "", "override features directory")
	schemasDir  = flag.String("schemas", "", "override schemas directory")
	resultsDir  = flag.String("results", "", "override results directory")
	suiteFlag   = flag.String("suite", "all", "suite to run (public, private, all)")
	logLevel    = flag.String("log", "", "log level (debug, info, warn, error)")
	metricsPort = flag.Int("metrics-port", -1, "serve /metrics on this port during the run, 0 disables")
)

func main() {
	flag.Parse()
	setupLogger("info")

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	applyOverrides(cfg)
	setupLogger(cfg.Run.LogLevel)

	suites, err := selectSuites(*suiteFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid suite selection")
	}

	if cfg.Run.MetricsPort > 0 {
		if _, err := metrics.StartMetricsServer(cfg.Run.MetricsPort); err != nil {
			log.Error().Err(err).Msg("failed to start metrics server")
		}
	}

	validator, err := schema.NewValidator(cfg.Run.SchemasDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load schemas")
	}

	client := &gateway.KrakenRESTClient{
		BaseURL:    cfg.API.Link,
		APIKey:     cfg.API.Key,
		APISecret:  cfg.API.Secret,
		OTPSecret:  cfg.API.OTPSecret,
		HTTPClient: gateway.NewDefaultHTTPClient(cfg.Run.HTTPTimeout),
		Limiter:    gateway.NewTokenBucketLimiter(cfg.Run.RateLimit, cfg.Run.RateBurst),
		MaxRetries: cfg.Run.MaxRetries,
		RetryDelay: cfg.Run.RetryDelay,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps := &harness.Deps{
		Cfg:       cfg,
		Client:    client,
		Validator: validator,
		Ctx:       ctx,
	}

	summary := report.Summary{StartedAt: time.Now()}
	for _, suite := range suites {
		log.Info().Str("suite", suite).Msg("running suite")
		res, err := harness.RunSuite(suite, deps)
		if err != nil {
			log.Fatal().Err(err).Str("suite", suite).Msg("suite could not run")
		}
		parsed, err := report.ParseJUnit(suite, res.ResultFile)
		if err != nil {
			log.Fatal().Err(err).Str("suite", suite).Msg("result file unreadable")
		}
		// The runner's pass/fail verdict wins over the parsed counts.
		parsed.Passed = parsed.Passed && res.Passed
		summary.Add(parsed)
	}
	summary.FinishedAt = time.Now()

	if err := summary.Write(cfg.Run.ResultsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to write summary")
	}

	os.Exit(summary.ExitCode())
}

func applyOverrides(cfg *config.Config) {
	if *featuresDir != "" {
		cfg.Run.FeaturesDir = *featuresDir
	}
	if *schemasDir != "" {
		cfg.Run.SchemasDir = *schemasDir
	}
	if *resultsDir != "" {
		cfg.Run.ResultsDir = *resultsDir
	}
	if *logLevel != "" {
		cfg.Run.LogLevel = *logLevel
	}
	if *metricsPort >= 0 {
		cfg.Run.MetricsPort = *metricsPort
	}
}

func selectSuites(name string) ([]string, error) {
	switch name {
	case "all":
		return []string{harness.SuitePublic, harness.SuitePrivate}, nil
	case harness.SuitePublic:
		return []string{harness.SuitePublic}, nil
	case harness.SuitePrivate:
		return []string{harness.SuitePrivate}, nil
	}
	return nil, fmt.Errorf("unknown suite %q, want public, private or all", name)
}

// setupLogger mirrors the runner binaries: human readable console output,
// level from config.
func setupLogger(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
