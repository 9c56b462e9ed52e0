package facilitator

import (
	"time"

	"github.com/openfacilitator/go-facilitator/logger"
	"github.com/openfacilitator/go-facilitator/metrics"
	"github.com/openfacilitator/go-facilitator/settlement"
)

type options struct {
	log      logger.Logger
	metrics  metrics.Recorder
	timeout  time.Duration
	clock    func() time.Time
	outcomes settlement.OutcomeStore
}

type Option func(*options)

func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(o *options) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

// WithTimeout bounds each settlement attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithClock overrides the time source used for validity-window checks.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithOutcomeStore enables at-most-once settlement per payload fingerprint.
func WithOutcomeStore(store settlement.OutcomeStore) Option {
	return func(o *options) {
		o.outcomes = store
	}
}
