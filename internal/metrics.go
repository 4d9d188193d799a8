package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ftmsg/internal/protocol"
	"ftmsg/internal/transport"
)

type telemetry struct {
	registry *prometheus.Registry

	framesReceived *prometheus.CounterVec
	framesSent     *prometheus.CounterVec
	frameErrors    *prometheus.CounterVec
	dialFailures   *prometheus.CounterVec
	connections    prometheus.Gauge
	reconnects     prometheus.Counter
	dialDuration   prometheus.Histogram
}

var (
	metricsMu sync.RWMutex
	metrics   *telemetry
)

func newTelemetry() *telemetry {
	t := &telemetry{
		registry: prometheus.NewRegistry(),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ftmsg",
			Name:      "frames_received_total",
			Help:      "Inbound frames decoded, by message type.",
		}, []string{"type"}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ftmsg",
			Name:      "frames_sent_total",
			Help:      "Outbound frames written, by message type.",
		}, []string{"type"}),
		frameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ftmsg",
			Name:      "frame_errors_total",
			Help:      "Inbound frames rejected, by reason.",
		}, []string{"reason"}),
		dialFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ftmsg",
			Subsystem: "socket",
			Name:      "dial_failures_total",
			Help:      "Failed broker dials, by reason.",
		}, []string{"reason"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ftmsg",
			Name:      "connections",
			Help:      "Logical client connections currently tracked.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ftmsg",
			Subsystem: "socket",
			Name:      "reconnects_total",
			Help:      "Reconnects scheduled after an unexpected socket close.",
		}),
		dialDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ftmsg",
			Subsystem: "socket",
			Name:      "dial_duration_seconds",
			Help:      "Time spent dialing the broker.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	t.registry.MustRegister(
		t.framesReceived, t.framesSent, t.frameErrors, t.dialFailures,
		t.connections, t.reconnects, t.dialDuration,
	)
	return t
}

// EnablePrometheusMetrics turns on metric collection. Until it is called every
// observe helper is a no-op.
func EnablePrometheusMetrics() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metrics == nil {
		metrics = newTelemetry()
	}
}

func currentTelemetry() *telemetry {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return metrics
}

// MetricsHandler serves the collected metrics, or 503 while collection is off.
func MetricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := currentTelemetry()
		if t == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("# metrics disabled\n"))
			return
		}
		promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// StartMetricsServer serves /metrics on addr until ctx is done.
func StartMetricsServer(ctx context.Context, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty metrics address")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func observeFrameReceived(typ protocol.Type) {
	if t := currentTelemetry(); t != nil {
		t.framesReceived.WithLabelValues(string(typ)).Inc()
	}
}

func observeFrameSent(typ protocol.Type) {
	if t := currentTelemetry(); t != nil {
		t.framesSent.WithLabelValues(string(typ)).Inc()
	}
}

func observeFrameError(err error) {
	if t := currentTelemetry(); t != nil {
		t.frameErrors.WithLabelValues(frameErrorReason(err)).Inc()
	}
}

func observeDial(d time.Duration, err error) {
	t := currentTelemetry()
	if t == nil {
		return
	}
	t.dialDuration.Observe(d.Seconds())
	if err != nil {
		t.dialFailures.WithLabelValues(failureReason(err)).Inc()
	}
}

func observeReconnect() {
	if t := currentTelemetry(); t != nil {
		t.reconnects.Inc()
	}
}

func setConnections(n int) {
	if t := currentTelemetry(); t != nil {
		t.connections.Set(float64(n))
	}
}

func frameErrorReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrParse):
		return "parse"
	case errors.Is(err, ErrMissingClient):
		return "missing_client"
	case errors.Is(err, ErrUnauthorizedClient):
		return "unauthorized"
	case errors.Is(err, ErrUnhandledType):
		return "unhandled"
	case errors.Is(err, transport.ErrBinaryFrame):
		return "binary"
	default:
		return "other"
	}
}

func failureReason(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "timeout") || strings.Contains(e, "deadline"):
		return "timeout"
	case strings.Contains(e, "tls") || strings.Contains(e, "x509") || strings.Contains(e, "certificate"):
		return "tls"
	case strings.Contains(e, "dns") || strings.Contains(e, "no such host"):
		return "dns"
	case strings.Contains(e, "refused"):
		return "refused"
	default:
		return "other"
	}
}
