package harness

import (
	"fmt"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog/log"

	gateway "github.com/newplayman/kraken-conformance/internal/exchange"
	"github.com/newplayman/kraken-conformance/internal/metrics"
)

// privateWorld is the per-scenario state of the private suite.
type privateWorld struct {
	deps *Deps

	ready  bool
	orders map[string]gateway.OpenOrder
	raw    []byte
}

func (d *Deps) initializePrivateScenario(sc *godog.ScenarioContext) {
	w := &privateWorld{deps: d}
	sc.Step(`^I have some properties concerning a private API$`, w.havePrivateProperties)
	sc.Step(`^I request all open orders$`, w.requestOpenOrders)
	sc.Step(`^the open orders list is presented to me$`, w.presentOpenOrders)
}

func (w *privateWorld) havePrivateProperties() error {
	if err := w.deps.Cfg.ValidatePrivate(); err != nil {
		return err
	}
	w.ready = true
	return nil
}

func (w *privateWorld) requestOpenOrders() error {
	if !w.ready {
		return fmt.Errorf("private properties not prepared, missing Given step")
	}
	orders, raw, err := w.deps.Client.OpenOrders(w.deps.Ctx, w.deps.Cfg.API.OpenOrdersEndpoint)
	if err != nil {
		if raw != nil {
			metrics.RecordStepFailure(SuitePrivate, "auth")
		} else {
			metrics.RecordStepFailure(SuitePrivate, "network")
		}
		return fmt.Errorf("request open orders: %w", err)
	}
	w.orders = orders
	w.raw = raw
	return nil
}

func (w *privateWorld) presentOpenOrders() error {
	if w.raw == nil {
		return fmt.Errorf("no response captured, missing When step")
	}
	log.Info().Int("count", len(w.orders)).Msg("list of open orders")
	for id, o := range w.orders {
		log.Info().
			Str("order", id).
			Str("status", o.Status).
			Str("pair", o.Descr.Pair).
			Str("type", o.Descr.Type).
			Str("price", o.Descr.Price).
			Str("vol", o.Vol).
			Msg("open order")
	}
	return nil
}
