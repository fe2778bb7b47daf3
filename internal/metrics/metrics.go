// internal/metrics/metrics.go
// Package metrics exports decoder activity to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ColonelBlimp/pskrtty/internal/decode"
	"github.com/ColonelBlimp/pskrtty/internal/dsp"
	"github.com/ColonelBlimp/pskrtty/internal/fault"
)

const namespace = "pskrtty"

// Metrics is a decode.Presenter that records decoder output as Prometheus
// metrics on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	characters   *prometheus.CounterVec // characters decoded (by mode)
	faults       *prometheus.CounterVec // faults raised (by code)
	signalLevel  *prometheus.GaugeVec   // smoothed zero-lag correlation (by mode)
	digitalLevel *prometheus.GaugeVec   // distance from threshold, ±10 (by mode)
	peakLevel    *prometheus.GaugeVec   // smoothed peak sample magnitude (by mode)
	threshold    *prometheus.GaugeVec   // decision threshold (by mode)
	faultActive  prometheus.Gauge       // displayed fault code, 0 when clear
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		characters: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "characters_decoded_total",
				Help:      "Total characters decoded while locked",
			},
			[]string{"mode"},
		),
		faults: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "faults_total",
				Help:      "Total faults displayed, by tag",
			},
			[]string{"code"},
		),
		signalLevel: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "signal_level",
				Help:      "Smoothed zero-lag correlation level",
			},
			[]string{"mode"},
		),
		digitalLevel: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "digital_level",
				Help:      "Smoothed distance from the decision threshold on a ±10 scale",
			},
			[]string{"mode"},
		),
		peakLevel: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "peak_sample_level",
				Help:      "Smoothed peak sample magnitude",
			},
			[]string{"mode"},
		),
		threshold: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "threshold",
				Help:      "Decision threshold in effect at the last level report",
			},
			[]string{"mode"},
		),
		faultActive: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fault_active",
				Help:      "Code of the displayed fault, 0 when none",
			},
		),
	}
}

// Registry returns the registry holding every decoder collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnCharacterDecoded implements decode.Presenter.
func (m *Metrics) OnCharacterDecoded(_ rune, mode decode.Mode) {
	m.characters.WithLabelValues(mode.String()).Inc()
}

// OnSignalLevel implements decode.Presenter.
func (m *Metrics) OnSignalLevel(level dsp.SignalLevel, mode decode.Mode) {
	label := mode.String()
	m.signalLevel.WithLabelValues(label).Set(float64(level.Correlation))
	m.digitalLevel.WithLabelValues(label).Set(float64(level.Digital))
	m.peakLevel.WithLabelValues(label).Set(float64(level.Peak))
	m.threshold.WithLabelValues(label).Set(float64(level.Threshold))
}

// OnError implements decode.Presenter.
func (m *Metrics) OnError(code fault.Code) {
	m.faultActive.Set(float64(code))
	if code != fault.None {
		m.faults.WithLabelValues(code.Tag()).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	if logger != nil {
		logger.Info("metrics listening", "addr", addr)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		return nil
	}
}
