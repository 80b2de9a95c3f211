// Package metrics exposes Prometheus collectors for pipeline runs.
//
// Label values are bounded: pipeline and stage names come from code, never from
// chat input.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/KafClaw/tweetbot/internal/pipeline"
)

// Names of the pipeline and stage whose outcome is a publish attempt.
const (
	confirmationPipeline = "tweetConfirmation"
	publishStage         = "publish"
)

// Recorder implements pipeline.Observer.
type Recorder struct {
	runs      *prometheus.CounterVec
	halts     *prometheus.CounterVec
	publishes *prometheus.CounterVec
	stagesRan *prometheus.HistogramVec
	httpReqs  *prometheus.CounterVec
	httpLat   *prometheus.HistogramVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tweetbot_pipeline_runs_total",
				Help: "Pipeline runs by final status.",
			},
			[]string{"pipeline", "status"},
		),
		halts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tweetbot_pipeline_stops_total",
				Help: "Runs that halted or failed, by stage.",
			},
			[]string{"pipeline", "stage", "status"},
		),
		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tweetbot_publishes_total",
				Help: "Publish attempts by result.",
			},
			[]string{"result"},
		),
		stagesRan: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tweetbot_pipeline_stages_ran",
				Help:    "Number of stages executed per run.",
				Buckets: []float64{1, 2, 3, 4, 5, 6},
			},
			[]string{"pipeline"},
		),
		httpReqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tweetbot_http_requests_total",
				Help: "HTTP requests by method, route and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpLat: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tweetbot_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
	reg.MustRegister(r.runs, r.halts, r.publishes, r.stagesRan, r.httpReqs, r.httpLat)
	return r
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(o pipeline.Outcome) {
	r.runs.WithLabelValues(o.Pipeline, string(o.Status)).Inc()
	r.stagesRan.WithLabelValues(o.Pipeline).Observe(float64(o.Ran))
	if o.Status != pipeline.StatusCompleted {
		r.halts.WithLabelValues(o.Pipeline, o.Stage, string(o.Status)).Inc()
	}
	switch {
	case o.Stage == publishStage && o.Status == pipeline.StatusFailed:
		r.publishes.WithLabelValues("error").Inc()
	case o.Pipeline == confirmationPipeline && o.Status == pipeline.StatusCompleted:
		r.publishes.WithLabelValues("ok").Inc()
	}
}

// Middleware instruments gin requests. Unmatched routes are labelled
// "unmatched" so probing cannot blow up cardinality.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		r.httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
