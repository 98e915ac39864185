package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// MetricsPath is where the metrics handler is mounted.
const MetricsPath = "/metrics"

// Metrics exports controller notifications as Prometheus metrics.
type Metrics struct {
	// AlarmStatus is 1 for the current status label and 0 for the others.
	AlarmStatus *prometheus.GaugeVec
	// AlarmTransitions counts alarm status notifications by status.
	AlarmTransitions *prometheus.CounterVec
	// Detections counts classified frames by result.
	Detections *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the metrics and registers them on registry.
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		AlarmStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "catpoint_alarm_status",
			Help: "Current alarm status (1 for the active status label)",
		}, []string{"status"}),
		AlarmTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catpoint_alarm_status_changes_total",
			Help: "Total number of alarm status notifications by new status",
		}, []string{"status"}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catpoint_camera_frames_total",
			Help: "Total number of classified camera frames by detection result",
		}, []string{"detected"}),
		registry: registry,
	}

	for _, collector := range []prometheus.Collector{m.AlarmStatus, m.AlarmTransitions, m.Detections} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	for _, status := range []domain.AlarmStatus{
		domain.AlarmStatusNoAlarm,
		domain.AlarmStatusPending,
		domain.AlarmStatusAlarm,
	} {
		m.AlarmStatus.WithLabelValues(status.String()).Set(0)
	}

	return m, nil
}

// OnAlarmStatusChanged moves the status gauge and counts the transition.
func (m *Metrics) OnAlarmStatusChanged(_ context.Context, status domain.AlarmStatus) {
	for _, candidate := range []domain.AlarmStatus{
		domain.AlarmStatusNoAlarm,
		domain.AlarmStatusPending,
		domain.AlarmStatusAlarm,
	} {
		value := 0.0
		if candidate == status {
			value = 1
		}

		m.AlarmStatus.WithLabelValues(candidate.String()).Set(value)
	}

	m.AlarmTransitions.WithLabelValues(status.String()).Inc()
}

// OnDetectionResult counts the classified frame.
func (m *Metrics) OnDetectionResult(_ context.Context, detected bool) {
	m.Detections.WithLabelValues(strconv.FormatBool(detected)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
