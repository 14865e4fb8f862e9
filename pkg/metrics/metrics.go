// Package metrics exposes batch cycle metrics for the Prometheus Pushgateway
// and request metrics for the approval server.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

// JobName groups pushed series in the Pushgateway.
const JobName = "inbox_triage"

// CycleStats summarizes one poll and process cycle.
type CycleStats struct {
	Fetched        int
	Dropped        int
	Processed      int
	Labels         map[string]int
	DraftsCreated  int
	Warnings       int
	PartialFailure bool
	Duration       time.Duration
	FinishedAt     time.Time
}

// Cycle holds the gauges of one batch run on a private registry, so pushes
// never include process-wide collectors.
type Cycle struct {
	registry *prometheus.Registry

	Fetched        prometheus.Gauge
	Dropped        prometheus.Gauge
	Processed      prometheus.Gauge
	Labels         *prometheus.GaugeVec
	DraftsCreated  prometheus.Gauge
	Warnings       prometheus.Gauge
	PartialFailure prometheus.Gauge
	Duration       prometheus.Gauge
	LastCompletion prometheus.Gauge
}

func NewCycle() *Cycle {
	reg := prometheus.NewRegistry()
	factory := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "inbox_triage_" + name, Help: help})
		reg.MustRegister(g)
		return g
	}

	c := &Cycle{
		registry:       reg,
		Fetched:        factory("messages_fetched", "Messages kept by the last poll"),
		Dropped:        factory("messages_dropped", "Messages dropped by the freshness floor in the last poll"),
		Processed:      factory("messages_processed", "Messages classified in the last cycle"),
		DraftsCreated:  factory("drafts_created", "Drafts created in the last cycle"),
		Warnings:       factory("warnings", "Warnings raised in the last cycle"),
		PartialFailure: factory("partial_failure", "1 if the last cycle ended in partial_failure"),
		Duration:       factory("cycle_duration_seconds", "Wall time of the last cycle"),
		LastCompletion: factory("last_completion_timestamp_seconds", "Unix time the last cycle finished"),
		Labels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inbox_triage_classifications",
			Help: "Messages per label in the last cycle",
		}, []string{"label"}),
	}
	reg.MustRegister(c.Labels)
	return c
}

// Observe records stats on the gauges.
func (c *Cycle) Observe(s CycleStats) {
	c.Fetched.Set(float64(s.Fetched))
	c.Dropped.Set(float64(s.Dropped))
	c.Processed.Set(float64(s.Processed))
	c.DraftsCreated.Set(float64(s.DraftsCreated))
	c.Warnings.Set(float64(s.Warnings))
	c.Duration.Set(s.Duration.Seconds())
	for label, n := range s.Labels {
		c.Labels.WithLabelValues(label).Set(float64(n))
	}
	if s.PartialFailure {
		c.PartialFailure.Set(1)
	} else {
		c.PartialFailure.Set(0)
	}
	if !s.FinishedAt.IsZero() {
		c.LastCompletion.Set(float64(s.FinishedAt.Unix()))
	}
}

// Push replaces the job's series on the gateway at url.
func (c *Cycle) Push(ctx context.Context, url string) error {
	if err := push.New(url, JobName).Gatherer(c.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Registry returns the registry behind the gauges.
func (c *Cycle) Registry() *prometheus.Registry {
	return c.registry
}

// Server counts approval server traffic.
type Server struct {
	registry        *prometheus.Registry
	ApprovalActions *prometheus.CounterVec
	Requests        *prometheus.CounterVec
}

func NewServer() *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		registry: reg,
		ApprovalActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_triage_approval_actions_total",
			Help: "Approval actions by action and outcome",
		}, []string{"action", "outcome"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_triage_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(s.ApprovalActions, s.Requests, collectors.NewGoCollector())
	return s
}

func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}
