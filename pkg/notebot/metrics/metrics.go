// Package metrics exposes Prometheus counters for note capture, exports and
// feed fetches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Export kinds and results used as label values.
const (
	ExportManual = "manual"
	ExportAuto   = "auto"

	ResultOK        = "ok"
	ResultNotFound  = "not_found"
	ResultTooLarge  = "too_large"
	ResultError     = "error"
	ResultDuplicate = "duplicate"
)

// Recorder is what the bot and news components report to.
type Recorder interface {
	MessageRecorded(date string)
	MessageDropped(reason string)
	ExportFinished(kind, result string)
	FeedFetched(feed, result string, latency time.Duration)
	BroadcastSent(slot string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	recorded   prometheus.Counter
	dropped    *prometheus.CounterVec
	exports    *prometheus.CounterVec
	fetches    *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	broadcasts *prometheus.CounterVec
	lastDate   *prometheus.GaugeVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notebot_messages_recorded_total",
			Help: "Messages appended to a daily note.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notebot_messages_dropped_total",
			Help: "Messages that could not be appended, by reason.",
		}, []string{"reason"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notebot_exports_total",
			Help: "Note exports by kind and result.",
		}, []string{"kind", "result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notebot_feed_fetches_total",
			Help: "News feed fetches by feed and result.",
		}, []string{"feed", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notebot_feed_fetch_seconds",
			Help:    "News feed fetch latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"feed"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notebot_broadcasts_total",
			Help: "Scheduled news broadcasts posted, by slot.",
		}, []string{"slot"}),
		lastDate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "notebot_last_recorded_timestamp_seconds",
			Help: "Unix time of the last recorded message, by note date.",
		}, []string{"date"}),
	}

	reg.MustRegister(
		c.recorded,
		c.dropped,
		c.exports,
		c.fetches,
		c.latency,
		c.broadcasts,
		c.lastDate,
	)

	return c
}

// MessageRecorded counts an appended message.
func (c *Collector) MessageRecorded(date string) {
	c.recorded.Inc()
	c.lastDate.WithLabelValues(date).SetToCurrentTime()
}

// MessageDropped counts a message lost to a storage or validation error.
func (c *Collector) MessageDropped(reason string) {
	c.dropped.WithLabelValues(reason).Inc()
}

// ExportFinished counts an export attempt.
func (c *Collector) ExportFinished(kind, result string) {
	c.exports.WithLabelValues(kind, result).Inc()
}

// FeedFetched counts a feed fetch and observes its latency.
func (c *Collector) FeedFetched(feed, result string, latency time.Duration) {
	c.fetches.WithLabelValues(feed, result).Inc()
	c.latency.WithLabelValues(feed).Observe(latency.Seconds())
}

// BroadcastSent counts a posted broadcast.
func (c *Collector) BroadcastSent(slot string) {
	c.broadcasts.WithLabelValues(slot).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) MessageRecorded(string)                    {}
func (Nop) MessageDropped(string)                     {}
func (Nop) ExportFinished(string, string)             {}
func (Nop) FeedFetched(string, string, time.Duration) {}
func (Nop) BroadcastSent(string)                      {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
