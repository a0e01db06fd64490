// Package metrics records host session activity with Prometheus.
package metrics

import (
	"time"

	"github.com/aretw0/lattice/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lattice"

// Recorder implements host.Observer.
type Recorder struct {
	batches      prometheus.Counter
	commands     *prometheus.CounterVec
	unknown      *prometheus.CounterVec
	frameErrors  prometheus.Counter
	pluginLogs   prometheus.Counter
	capabilities *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_applied_total",
			Help:      "Batches applied to the host tree.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_applied_total",
			Help:      "Commands applied to the host tree, by type.",
		}, []string{"type"}),
		unknown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_commands_total",
			Help:      "Commands skipped because their type is unknown.",
		}, []string{"type"}),
		frameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Frames or commands that failed to decode.",
		}),
		pluginLogs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_logs_total",
			Help:      "Log messages received from the plugin.",
		}),
		capabilities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_requests_total",
			Help:      "Capability requests served, by type and outcome.",
		}, []string{"type", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capability_duration_seconds",
			Help:      "Time spent serving capability requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	reg.MustRegister(r.batches, r.commands, r.unknown, r.frameErrors, r.pluginLogs, r.capabilities, r.latency)
	return r
}

func (r *Recorder) FrameError() {
	r.frameErrors.Inc()
}

func (r *Recorder) BatchApplied(cmds []protocol.Command) {
	r.batches.Inc()
	for _, c := range cmds {
		r.commands.WithLabelValues(string(c.Type())).Inc()
	}
}

func (r *Recorder) UnknownCommand(typ string) {
	r.unknown.WithLabelValues(typ).Inc()
}

func (r *Recorder) PluginLog() {
	r.pluginLogs.Inc()
}

func (r *Recorder) CapabilityServed(typ, outcome string, elapsed time.Duration) {
	r.capabilities.WithLabelValues(typ, outcome).Inc()
	r.latency.WithLabelValues(typ).Observe(elapsed.Seconds())
}
