package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns every metric the server exposes. A single instance is
// created at startup and shared by the registry and the HTTP layer.
type Collector struct {
	registry *prometheus.Registry

	JobsCreated   prometheus.Counter
	JobsFinished  prometheus.Counter
	JobsFailed    prometheus.Counter
	JobsCancelled prometheus.Counter

	RateLimited      prometheus.Counter
	OversizeRejected prometheus.Counter

	SSEClients prometheus.Gauge
	JobsLive   prometheus.Gauge

	EmitWait  prometheus.Histogram
	Iteration prometheus.Histogram
	JobTotal  prometheus.Histogram
}

// NewCollector creates and registers all metrics on a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		JobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "innerloop_jobs_created_total",
			Help: "Total number of jobs created",
		}),
		JobsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "innerloop_jobs_finished_total",
			Help: "Total number of jobs that finished successfully",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "innerloop_jobs_failed_total",
			Help: "Total number of jobs that failed",
		}),
		JobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "innerloop_jobs_cancelled_total",
			Help: "Total number of jobs cancelled",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "innerloop_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		OversizeRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "innerloop_oversize_rejected_total",
			Help: "Total number of requests rejected for exceeding the size limit",
		}),
		SSEClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "innerloop_sse_clients",
			Help: "Number of currently connected event stream subscribers",
		}),
		JobsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "innerloop_jobs_live",
			Help: "Number of jobs currently held in the registry",
		}),
		EmitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "innerloop_sse_put_seconds",
			Help:    "Time spent enqueueing an event into the per-job channel",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 2},
		}),
		Iteration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "innerloop_iteration_seconds",
			Help:    "Duration of one optimization iteration",
			Buckets: prometheus.DefBuckets,
		}),
		JobTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "innerloop_job_total_seconds",
			Help:    "Wall time of a job from start to terminal event",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	c.registry.MustRegister(
		c.JobsCreated, c.JobsFinished, c.JobsFailed, c.JobsCancelled,
		c.RateLimited, c.OversizeRejected,
		c.SSEClients, c.JobsLive,
		c.EmitWait, c.Iteration, c.JobTotal,
	)
	return c
}

// Handler returns the Prometheus text exposition handler for this collector.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// TerminalCounter returns the counter matching a terminal job status, or
// nil for statuses that have no counter (e.g. shutdown).
func (c *Collector) TerminalCounter(status string) prometheus.Counter {
	switch status {
	case "finished":
		return c.JobsFinished
	case "failed":
		return c.JobsFailed
	case "cancelled":
		return c.JobsCancelled
	}
	return nil
}
