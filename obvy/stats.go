package respiro

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsInternal is the attached prometheus registry for respiro.
// Everything the loop does lands here: ticks, skips, pushes, timing.
type StatsInternal struct {
	Reg        *prometheus.Registry
	Ticks      prometheus.Counter
	Skips      *prometheus.CounterVec
	PushErrors prometheus.Counter
	ReadTimer  prometheus.Histogram
	Intensity  prometheus.Gauge
	Staleness  prometheus.Gauge
	WindowCap  prometheus.Gauge
	WWW        *prometheus.CounterVec
}

// Skip reasons, the only labels Skips takes
const (
	SkipTimeout  = "timeout"
	SkipDevice   = "device"
	SkipActuator = "actuator"
)

// NewStatsInternal builds and registers all collectors.
func NewStatsInternal() *StatsInternal {
	reg := prometheus.NewRegistry()

	s := &StatsInternal{
		Reg: reg,
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "respiro_ticks_total",
			Help: "Completed controller ticks.",
		}),
		Skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "respiro_skipped_ticks_total",
			Help: "Ticks skipped, by reason.",
		}, []string{"reason"}),
		PushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "respiro_actuator_push_errors_total",
			Help: "Failed lamp pushes.",
		}),
		ReadTimer: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "respiro_read_duration_seconds",
			Help:    "Round-trip time of one sensor read.",
			Buckets: prometheus.DefBuckets,
		}),
		Intensity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "respiro_breath_intensity",
			Help: "Current normalized breath intensity.",
		}),
		Staleness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "respiro_peak_staleness",
			Help: "Normalized time since the last breath peak.",
		}),
		WindowCap: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "respiro_window_size",
			Help: "Current sample window cap.",
		}),
		WWW: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "respiro_http_responses_total",
			Help: "HTTP responses served, by status and method.",
		}, []string{"status", "method"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		s.Ticks, s.Skips, s.PushErrors, s.ReadTimer,
		s.Intensity, s.Staleness, s.WindowCap, s.WWW,
	)
	return s
}

func (s *StatsInternal) RecTick()            { s.Ticks.Inc() }
func (s *StatsInternal) RecSkip(r string)    { s.Skips.WithLabelValues(r).Inc() }
func (s *StatsInternal) RecPushError()       { s.PushErrors.Inc() }
func (s *StatsInternal) RecReadTimer(d float64) { s.ReadTimer.Observe(d) }

// RecBreath records the per-tick gauges in one call.
func (s *StatsInternal) RecBreath(intensity, staleness float64, windowCap int) {
	s.Intensity.Set(intensity)
	s.Staleness.Set(staleness)
	s.WindowCap.Set(float64(windowCap))
}

// RecWWW counts one served HTTP response.
func (s *StatsInternal) RecWWW(status, method string) {
	s.WWW.WithLabelValues(status, method).Inc()
}

// Handler serves this registry for /metrics.
func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.Reg, promhttp.HandlerOpts{})
}
