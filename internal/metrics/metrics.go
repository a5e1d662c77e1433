package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery kinds.
const (
	DeliveryDaily  = "daily"
	DeliveryReask  = "reask"
	DeliveryNotice = "admin_notice"
)

type Recorder interface {
	IncResponse(choice string)
	IncDelivery(kind string, ok bool)
	SetRosterSize(role string, n int)
	IncStorageError(op string)
	ObserveStorage(op string, d time.Duration)
}

type Provider struct {
	registry        *prometheus.Registry
	responses       *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	rosterSize      *prometheus.GaugeVec
	storageErrors   *prometheus.CounterVec
	storageDuration *prometheus.HistogramVec
}

func New() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Provider{
		registry: reg,
		responses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pillbot_responses_total",
			Help: "Recorded yes/no answers",
		}, []string{"choice"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pillbot_deliveries_total",
			Help: "Outbound messages by kind and result",
		}, []string{"kind", "result"}),
		rosterSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pillbot_roster_users",
			Help: "Known users by role",
		}, []string{"role"}),
		storageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pillbot_storage_errors_total",
			Help: "Failed storage operations",
		}, []string{"op"}),
		storageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pillbot_storage_duration_seconds",
			Help:    "Storage operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (p *Provider) IncResponse(choice string) {
	p.responses.WithLabelValues(choice).Inc()
}

func (p *Provider) IncDelivery(kind string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	p.deliveries.WithLabelValues(kind, result).Inc()
}

func (p *Provider) SetRosterSize(role string, n int) {
	p.rosterSize.WithLabelValues(role).Set(float64(n))
}

func (p *Provider) IncStorageError(op string) {
	p.storageErrors.WithLabelValues(op).Inc()
}

func (p *Provider) ObserveStorage(op string, d time.Duration) {
	p.storageDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

type noop struct{}

// Noop discards everything; used when metrics are disabled and in tests.
func Noop() Recorder { return noop{} }

func (noop) IncResponse(string)                   {}
func (noop) IncDelivery(string, bool)             {}
func (noop) SetRosterSize(string, int)            {}
func (noop) IncStorageError(string)               {}
func (noop) ObserveStorage(string, time.Duration) {}
