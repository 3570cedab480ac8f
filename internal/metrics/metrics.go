// Package metrics holds the Prometheus collectors shared by the web2
// packages. Collectors are package-level so the framework code can record
// without plumbing a registry through every constructor; Register exposes
// them on a registry of the caller's choice.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "web2"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var Renders = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "view",
	Name:      "renders_total",
	Help:      "View render passes by view name and result.",
}, []string{"view", "result"})

var RenderDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "view",
	Name:      "render_duration_seconds",
	Help:      "Time spent in a single render pass, children included.",
	Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
}, []string{"view"})

var ModelOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "model",
	Name:      "operations_total",
	Help:      "Model save/fetch and collection fetch outcomes.",
}, []string{"op", "result"})

var SyncRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "remote",
	Name:      "requests_total",
	Help:      "Outgoing resource requests by method and status code (0 on transport failure).",
}, []string{"method", "status"})

var SyncDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "remote",
	Name:      "request_duration_seconds",
	Help:      "Outgoing resource request latency.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method"})

var ServerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "server",
	Name:      "requests_total",
	Help:      "Requests served by the resource server.",
}, []string{"method", "resource", "code"})

// All returns every collector owned by this package.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		Renders,
		RenderDuration,
		ModelOperations,
		SyncRequests,
		SyncDuration,
		ServerRequests,
	}
}

// Register registers all collectors on reg. Collectors that are already
// registered on reg are skipped, so Register is safe to call more than once.
func Register(reg prometheus.Registerer) error {
	for _, c := range All() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
