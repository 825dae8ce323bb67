package stats

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exports system-scope counters. Per-user counters are dropped
// to keep label cardinality bounded.
type PrometheusSink struct {
	counters *prometheus.CounterVec
}

// NewPrometheusSink registers the board counter vector with reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filelinks_board_stat_total",
		Help: "Board-wide statistics counters.",
	}, []string{"name"})

	if err := reg.Register(counters); err != nil {
		return nil, err
	}
	return &PrometheusSink{counters: counters}, nil
}

// Increment adds amount to the system counter. Negative amounts are ignored
// since Prometheus counters cannot decrease.
func (s *PrometheusSink) Increment(_ context.Context, scope Scope, counter string, amount int64) error {
	if !scope.System || amount <= 0 {
		return nil
	}
	s.counters.WithLabelValues(counter).Add(float64(amount))
	return nil
}
