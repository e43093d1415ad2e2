// Package metrics exposes Prometheus counters for task polling, terminal
// outcomes, rendered markers and the HTTP API.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	gatherer prometheus.Gatherer

	Polls         *prometheus.CounterVec
	Terminal      *prometheus.CounterVec
	Submitted     *prometheus.CounterVec
	Markers       *prometheus.GaugeVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewCollector registers the metrics on reg, or on the default registry when
// reg is nil. Registering twice returns the already registered collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	polls, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ee_polls_total",
		Help: "Task status polls, labeled by outcome (ok or error).",
	}, []string{"outcome"}), "ee_polls_total")
	if err != nil {
		return nil, err
	}
	terminal, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ee_tasks_terminal_total",
		Help: "Tasks that reached a terminal status.",
	}, []string{"status"}), "ee_tasks_terminal_total")
	if err != nil {
		return nil, err
	}
	submitted, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ee_tasks_submitted_total",
		Help: "Tasks submitted to Earth Engine, labeled by kind (region or cells).",
	}, []string{"kind"}), "ee_tasks_submitted_total")
	if err != nil {
		return nil, err
	}
	markers, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ee_layer_markers",
		Help: "Markers currently drawn on each layer.",
	}, []string{"layer"}), "ee_layer_markers")
	if err != nil {
		return nil, err
	}
	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ee_http_requests_total",
		Help: "Handled API requests, labeled by path and status code.",
	}, []string{"path", "code"}), "ee_http_requests_total")
	if err != nil {
		return nil, err
	}
	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ee_http_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"path"}), "ee_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		Polls:         polls,
		Terminal:      terminal,
		Submitted:     submitted,
		Markers:       markers,
		HTTPRequests:  requests,
		HTTPDurations: durations,
	}, nil
}

func (c *Collector) TaskSubmitted(kind string) {
	if c == nil {
		return
	}
	c.Submitted.WithLabelValues(kind).Inc()
}

func (c *Collector) PollDone(outcome string) {
	if c == nil {
		return
	}
	c.Polls.WithLabelValues(outcome).Inc()
}

func (c *Collector) TaskFinished(status string) {
	if c == nil {
		return
	}
	c.Terminal.WithLabelValues(status).Inc()
}

func (c *Collector) SetMarkers(layer string, n int) {
	if c == nil {
		return
	}
	c.Markers.WithLabelValues(layer).Set(float64(n))
}

// Handler exposes the registry for /metrics.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument counts requests to next under the given path label.
func (c *Collector) Instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	if c == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		c.HTTPRequests.WithLabelValues(path, strconv.Itoa(rec.code)).Inc()
		c.HTTPDurations.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
