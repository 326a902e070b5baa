package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reporter is the telemetry capability used by the auth flow.
// Implementations must be safe for concurrent use.
type Reporter interface {
	// CaptureError records an unexpected failure. attrs are slog-style key/value pairs.
	CaptureError(ctx context.Context, err error, attrs ...any)
	// Count records one occurrence of event with the given outcome.
	Count(event, outcome string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) CaptureError(context.Context, error, ...any) {}
func (Nop) Count(string, string)                        {}

// Prometheus exports counters on its own registry.
type Prometheus struct {
	reg    *prometheus.Registry
	events *prometheus.CounterVec
	errors prometheus.Counter
	log    *slog.Logger
}

func NewPrometheus(log *slog.Logger) *Prometheus {
	if log == nil {
		log = slog.Default()
	}
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		reg: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessionguard",
			Name:      "events_total",
			Help:      "Auth flow events by outcome.",
		}, []string{"event", "outcome"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sessionguard",
			Name:      "errors_total",
			Help:      "Unexpected errors captured by the auth flow.",
		}),
		log: log,
	}
	reg.MustRegister(p.events, p.errors, collectors.NewGoCollector())
	return p
}

func (p *Prometheus) CaptureError(ctx context.Context, err error, attrs ...any) {
	if err == nil {
		return
	}
	p.errors.Inc()
	p.log.ErrorContext(ctx, "captured error", append([]any{"err", err}, attrs...)...)
}

func (p *Prometheus) Count(event, outcome string) {
	p.events.WithLabelValues(event, outcome).Inc()
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}

func (p *Prometheus) Registry() *prometheus.Registry { return p.reg }

// New selects a reporter by provider name. The returned handler is nil when
// the provider exposes nothing to scrape.
func New(provider string, log *slog.Logger) (Reporter, http.Handler, error) {
	switch provider {
	case "", "none":
		return Nop{}, nil, nil
	case "prometheus":
		p := NewPrometheus(log)
		return p, p.Handler(), nil
	default:
		return nil, nil, fmt.Errorf("telemetry: unknown provider %q", provider)
	}
}
