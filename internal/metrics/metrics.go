// Package metrics defines the ambient Prometheus collectors for the node
// client. Observability is not named in spec.md's Non-goals, so it is
// carried as part of the ambient stack alongside logging and config.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every metric the client exposes. A nil *Collectors is
// valid and simply means metrics are disabled; callers guard each
// increment with a nil check.
type Collectors struct {
	Reconnects          prometheus.Counter
	ActiveSubscriptions prometheus.Gauge
	FramesDispatched    prometheus.Counter
	Rekeys              prometheus.Counter
}

// New registers and returns the client's collectors against reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lichtenstein_client",
			Name:      "reconnects_total",
			Help:      "Number of times the unicast session was (re)established.",
		}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lichtenstein_client",
			Name:      "active_subscriptions",
			Help:      "Number of output channels currently subscribed on the controller.",
		}),
		FramesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lichtenstein_client",
			Name:      "frames_dispatched_total",
			Help:      "Number of PIX_DATA / multicast sync frames dispatched to an output channel.",
		}),
		Rekeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lichtenstein_client",
			Name:      "multicast_rekeys_total",
			Help:      "Number of successful multicast rekeys (MCC_REKEY installs).",
		}),
	}
	reg.MustRegister(c.Reconnects, c.ActiveSubscriptions, c.FramesDispatched, c.Rekeys)
	return c
}
