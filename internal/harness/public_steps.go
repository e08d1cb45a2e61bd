package harness

import (
	"fmt"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog/log"

	gateway "github.com/newplayman/kraken-conformance/internal/exchange"
	"github.com/newplayman/kraken-conformance/internal/metrics"
)

const (
	kindServerTime = "server time"
	kindAssetPair  = "asset pair info"
)

// schema document per endpoint kind.
var schemaFiles = map[string]string{
	kindServerTime: "server_time_schema.json",
	kindAssetPair:  "asset_pair_schema.json",
}

// publicWorld is the per-scenario state of the public suite.
type publicWorld struct {
	deps *Deps

	kind     string
	endpoint string
	raw      []byte
}

// initializePublicScenario is invoked once per scenario, so each scenario
// starts with a fresh world.
func (d *Deps) initializePublicScenario(sc *godog.ScenarioContext) {
	w := &publicWorld{deps: d}
	sc.Step(`^I have link to a public api endpoint returning (server time|asset pair info)$`, w.haveEndpointLink)
	sc.Step(`^I request (server time|asset pair info)$`, w.requestEndpoint)
	sc.Step(`^the (server time|asset pair info) format is correct$`, w.verifyFormat)
}

func (w *publicWorld) haveEndpointLink(kind string) error {
	var endpoint string
	switch kind {
	case kindServerTime:
		endpoint = w.deps.Cfg.API.ServerTimeEndpoint
	case kindAssetPair:
		endpoint = w.deps.Cfg.API.AssetPairEndpoint
	}
	if endpoint == "" {
		return fmt.Errorf("no endpoint configured for %q", kind)
	}
	w.kind = kind
	w.endpoint = endpoint
	return nil
}

func (w *publicWorld) requestEndpoint(kind string) error {
	if w.endpoint == "" {
		return fmt.Errorf("no endpoint prepared, missing Given step")
	}
	raw, err := w.deps.Client.GetPublic(w.deps.Ctx, w.endpoint)
	if err != nil {
		metrics.RecordStepFailure(SuitePublic, "network")
		return fmt.Errorf("request %s: %w", kind, err)
	}
	w.raw = raw
	return nil
}

func (w *publicWorld) verifyFormat(kind string) error {
	if w.raw == nil {
		return fmt.Errorf("no response captured, missing When step")
	}
	if kind != w.kind {
		return fmt.Errorf("scenario requested %q but verifies %q", w.kind, kind)
	}
	if err := w.deps.Validator.Validate(schemaFiles[kind], w.raw); err != nil {
		metrics.RecordStepFailure(SuitePublic, "schema")
		return err
	}
	switch kind {
	case kindServerTime:
		st, err := gateway.ParseServerTime(w.raw)
		if err != nil {
			return err
		}
		log.Info().Int64("unixtime", st.UnixTime).Str("rfc1123", st.RFC1123).Msg("server time")
	case kindAssetPair:
		pairs, err := gateway.ParseAssetPairs(w.raw)
		if err != nil {
			return err
		}
		log.Info().Int("count", len(pairs)).Msg("asset pairs")
		for name, p := range pairs {
			log.Debug().
				Str("pair", name).
				Str("altname", p.Altname).
				Str("base", p.Base).
				Str("quote", p.Quote).
				Msg("asset pair")
		}
	}
	return nil
}
