package strategies

import (
	"github.com/rustyeddy/ledger/indicators"
	"github.com/rustyeddy/ledger/ledger"
)

const NoopName = "noop"

// Noop never signals.
type Noop struct{}

func (Noop) Name() string                  { return NoopName }
func (Noop) Version() string               { return "1" }
func (Noop) Params() map[string]any        { return map[string]any{} }
func (Noop) Indicators() indicators.Params { return indicators.DefaultParams() }
func (Noop) Warmup() int                   { return 0 }

func (Noop) Evaluate(Window) (ledger.Signal, bool, error) {
	return ledger.Signal{}, false, nil
}
