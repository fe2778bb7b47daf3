// internal/cli/decode/decoder.go
// Package decode wires configuration, an audio source and the decode
// scheduler into a runnable receiver for the command line.
package decode

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/ColonelBlimp/pskrtty/internal/acquire"
	"github.com/ColonelBlimp/pskrtty/internal/audio"
	"github.com/ColonelBlimp/pskrtty/internal/config"
	rx "github.com/ColonelBlimp/pskrtty/internal/decode"
	"github.com/ColonelBlimp/pskrtty/internal/metrics"
	"github.com/ColonelBlimp/pskrtty/internal/output"
	"github.com/ColonelBlimp/pskrtty/internal/recovery"
)

// Decoder is a configured receiver waiting for a source.
type Decoder struct {
	settings config.Settings
	logger   *log.Logger

	buf      *acquire.Buffer
	sched    *rx.Scheduler
	terminal *output.Terminal
	metrics  *metrics.Metrics
}

// NewDecoder builds the receive chain for settings. Decoded text goes to
// out. Metrics are collected only when a metrics address is configured.
func NewDecoder(settings config.Settings, out io.Writer, logger *log.Logger) (*Decoder, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if out == nil {
		out = io.Discard
	}

	mode, err := rx.ParseMode(settings.Mode)
	if err != nil {
		return nil, err
	}

	buf, err := acquire.New(settings.AcquireConfig())
	if err != nil {
		return nil, fmt.Errorf("acquisition: %w", err)
	}

	d := &Decoder{
		settings: settings,
		logger:   logger,
		buf:      buf,
		terminal: output.NewTerminal(out, logger),
	}

	presenters := rx.MultiPresenter{d.terminal}
	if settings.MetricsAddr != "" {
		d.metrics = metrics.New()
		presenters = append(presenters, d.metrics)
	}

	d.sched, err = rx.New(settings.DecodeConfig(), buf, presenters, logger)
	if err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	if err := d.sched.SetMode(mode); err != nil {
		return nil, err
	}
	return d, nil
}

// Scheduler returns the decode scheduler.
func (d *Decoder) Scheduler() *rx.Scheduler {
	return d.sched
}

// Metrics returns the metrics collector, or nil when metrics are disabled.
func (d *Decoder) Metrics() *metrics.Metrics {
	return d.metrics
}

// Run feeds src through the decoder until the source ends, ctx is done or
// a component fails. Windows still pending when the source ends are
// decoded before Run returns.
func (d *Decoder) Run(ctx context.Context, src audio.Source) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(recovery.Guard(func() error {
		return d.sched.Run(gctx)
	}))

	if d.metrics != nil {
		g.Go(recovery.Guard(func() error {
			return d.metrics.Serve(gctx, d.settings.MetricsAddr, d.logger)
		}))
	}

	g.Go(recovery.Guard(func() error {
		defer cancel()
		return audio.Feed(gctx, src, acquire.NewFeeder(d.buf, 0))
	}))

	err := g.Wait()
	for d.sched.Cycle() {
	}

	st := d.sched.Stats()
	d.logger.Info("decoder stopped",
		"mode", st.Mode,
		"cycles", st.Cycles,
		"characters", st.Characters,
		"samples", d.buf.Samples(),
		"dropped", d.buf.Dropped(),
	)

	if err != nil {
		return err
	}
	if werr := d.terminal.Err(); werr != nil {
		return fmt.Errorf("output: %w", werr)
	}
	return nil
}

// OpenSource returns the configured audio source: the WAV file when one is
// set, otherwise the capture device. The returned close function releases
// the source.
func OpenSource(settings config.Settings) (audio.Source, func() error, error) {
	if settings.WAVFile != "" {
		p, err := audio.OpenWAV(settings.WAVFile, settings.PlayerConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("audio: %w", err)
		}
		return p, func() error { return nil }, nil
	}

	c := audio.New(settings.CaptureConfig())
	if err := c.Init(); err != nil {
		return nil, nil, fmt.Errorf("audio: %w", err)
	}
	return c, c.Close, nil
}

// Device describes a capture device.
type Device struct {
	Index   int
	Name    string
	Default bool
}

// ListAudioDevices enumerates the capture devices in device_index order.
func ListAudioDevices() ([]Device, error) {
	c := audio.New(audio.DefaultConfig())
	if err := c.Init(); err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}
	defer func() { _ = c.Close() }()

	infos, err := c.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, Device{
			Index:   i,
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return devices, nil
}
