package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// cacheReqs counts cache operations by driver and outcome
// (hit, miss, set, error).
var cacheReqs = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Total number of cache operations by driver and result.",
	},
	[]string{"driver", "result"},
)

func init() {
	prometheus.MustRegister(cacheReqs)
}

type instrumented struct {
	next   Cache
	driver string
}

// Instrument wraps c so every call is counted under the driver label.
func Instrument(c Cache, driver string) Cache {
	return &instrumented{next: c, driver: driver}
}

func (i *instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := i.next.Get(ctx, key)
	switch {
	case err != nil:
		cacheReqs.WithLabelValues(i.driver, "error").Inc()
	case ok:
		cacheReqs.WithLabelValues(i.driver, "hit").Inc()
	default:
		cacheReqs.WithLabelValues(i.driver, "miss").Inc()
	}
	return v, ok, err
}

func (i *instrumented) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	err := i.next.Set(ctx, key, value, ttl)
	result := "set"
	if err != nil {
		result = "error"
	}
	cacheReqs.WithLabelValues(i.driver, result).Inc()
	return err
}
