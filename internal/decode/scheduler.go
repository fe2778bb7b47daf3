// internal/decode/scheduler.go
// Package decode runs the receive chain once per acquisition cycle:
// correlation, bit decision, framing and character emission.
package decode

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/ColonelBlimp/pskrtty/internal/acquire"
	"github.com/ColonelBlimp/pskrtty/internal/dsp"
	"github.com/ColonelBlimp/pskrtty/internal/fault"
	"github.com/ColonelBlimp/pskrtty/internal/psk"
	"github.com/ColonelBlimp/pskrtty/internal/rtty"
)

var (
	// ErrNilBuffer indicates the scheduler needs an acquisition buffer
	ErrNilBuffer = errors.New("acquisition buffer is required")
	// ErrSampleRateMismatch indicates the buffer and decoder sample rates differ
	ErrSampleRateMismatch = errors.New("buffer sample rate does not match the decoder")
)

// Stats is a snapshot of the scheduler state.
type Stats struct {
	Mode       Mode
	Cycles     uint64
	Characters uint64
	Locked     bool
	// Threshold is the decision threshold of the current mode
	Threshold int64
	// Divider is the next RTTY threshold divider
	Divider int
	// BinThreshold is the PSK peak-delay threshold
	BinThreshold dsp.Decilag
	// Fault is the displayed fault
	Fault fault.Code
}

// Scheduler owns the decode chain for both modes and drives it from one
// acquisition buffer. Cycle and SetMode serialise on one lock, so a mode
// change never interleaves with a cycle.
type Scheduler struct {
	config    Config
	buf       *acquire.Buffer
	presenter Presenter
	logger    *log.Logger

	mu   sync.Mutex
	mode Mode

	classifier    rtty.Classifier
	rttySearch    dsp.PeakSearch
	rttyThreshold *dsp.ThresholdTracker
	rttyFramer    *rtty.Framer
	rttyLevel     *dsp.LevelMeter

	phase        *psk.PhaseDetector
	pskThreshold *dsp.ThresholdTracker
	pskFramer    *psk.Framer
	pskLevel     *dsp.LevelMeter

	reporter *fault.Reporter
	locked   bool
	stats    Stats
}

// New creates a scheduler in Idle mode. A nil presenter discards output
// and a nil logger discards log records.
func New(cfg Config, buf *acquire.Buffer, p Presenter, logger *log.Logger) (*Scheduler, error) {
	if buf == nil {
		return nil, ErrNilBuffer
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if buf.Config().SampleRate != cfg.SampleRate {
		return nil, ErrSampleRateMismatch
	}
	if err := cfg.CheckGeometry(buf.Config()); err != nil {
		return nil, err
	}
	if p == nil {
		p = MultiPresenter(nil)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Scheduler{
		config:    cfg,
		buf:       buf,
		presenter: p,
		logger:    logger,
	}

	var err error
	if s.classifier, err = rtty.NewClassifier(cfg.SampleRate, cfg.RTTY.MarkHz, cfg.RTTY.SpaceHz); err != nil {
		return nil, err
	}
	s.rttySearch = s.classifier.Search()
	if s.rttyThreshold, err = dsp.NewThresholdTracker(cfg.RTTY.Threshold); err != nil {
		return nil, err
	}
	if s.rttyFramer, err = rtty.NewFramer(cfg.RTTY.Framer); err != nil {
		return nil, err
	}
	if s.phase, err = psk.NewPhaseDetector(cfg.PSK.Framer); err != nil {
		return nil, err
	}
	if s.pskThreshold, err = dsp.NewThresholdTracker(cfg.PSK.Threshold); err != nil {
		return nil, err
	}
	if s.pskFramer, err = psk.NewFramer(cfg.PSK.Framer); err != nil {
		return nil, err
	}

	level := cfg.Level
	level.Negative = false
	if s.rttyLevel, err = dsp.NewLevelMeter(level); err != nil {
		return nil, err
	}
	level.Negative = true
	if s.pskLevel, err = dsp.NewLevelMeter(level); err != nil {
		return nil, err
	}

	if s.reporter, err = fault.NewReporter(cfg.ErrorClearCycles, s.presenter.OnError); err != nil {
		return nil, err
	}
	return s, nil
}

// SetMode stops acquisition, clears the buffer, every framer, tracker, meter
// and the fault reporter, then re-arms acquisition for m.
func (s *Scheduler) SetMode(m Mode) error {
	var setup acquire.Setup
	switch m {
	case Idle:
		setup = acquire.Setup{Mode: acquire.Idle}
	case RTTY:
		setup = acquire.Setup{
			Mode:       acquire.Single,
			SymbolRate: s.config.RTTY.MilliBaud,
			Clock:      acquire.ClockGate,
		}
	case PSK:
		setup = acquire.Setup{
			Mode:       acquire.Double,
			SymbolRate: s.config.PSK.MilliBaud,
			Clock:      acquire.ClockTick,
			TickDelay:  s.config.PSK.TickDelay,
		}
	default:
		return ErrUnknownMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Configure(setup)

	s.rttyThreshold.Reset()
	s.rttyFramer.Reset()
	s.rttyLevel.Reset()
	s.phase.Reset()
	s.pskThreshold.Reset()
	s.pskFramer.Reset()
	s.pskLevel.Reset()
	s.reporter.Reset()
	s.locked = false

	prev := s.mode
	s.mode = m
	s.stats = Stats{Mode: m}

	s.logger.Info("decode mode", "from", prev, "to", m)
	return nil
}

// Mode returns the current decode mode.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// RequestMeasurement asks the current mode's tracker to derive a new
// threshold at the end of its running average.
func (s *Scheduler) RequestMeasurement() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.mode {
	case RTTY:
		s.rttyThreshold.RequestMeasurement()
	case PSK:
		s.pskThreshold.RequestMeasurement()
	}
}

// Cycle runs the decode chain on the completed window, if there is one, and
// releases it. It reports whether a window was processed.
func (s *Scheduler) Cycle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reportBuffer(s.buf.TakeFaults())

	w, ok := s.buf.Acquire()
	if !ok {
		return false
	}
	defer s.buf.Release()

	switch s.mode {
	case RTTY:
		s.cycleRTTY(w)
	case PSK:
		s.cyclePSK(w)
	}

	s.reporter.Tick()
	s.stats.Cycles++
	return true
}

// Run processes windows as the buffer completes them until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.buf.Notify():
			for s.Cycle() {
			}
		}
	}
}

func (s *Scheduler) cycleRTTY(w acquire.Window) {
	res := dsp.FindPeak(dsp.WindowAutocorrelation(w.Single, s.config.RTTY.DCLimit), s.rttySearch)
	s.observe(s.rttyThreshold, res)
	threshold := s.rttyThreshold.Threshold()

	out := s.rttyFramer.Step(s.classifier.Classify(res, threshold))
	switch out.Clock {
	case rtty.ClockGate:
		s.buf.SetSampling(acquire.Gated)
	case rtty.ClockRealtime:
		s.buf.SetSampling(acquire.Realtime)
	}
	if out.LostLock {
		s.raise(fault.ErrDecodeNoLock)
	}
	s.trackLock(s.rttyFramer.Locked())
	if out.Ok {
		s.emit(out.Char)
	}
	s.level(s.rttyLevel, res.Zero, threshold)
}

func (s *Scheduler) cyclePSK(w acquire.Window) {
	corr := dsp.WindowCrosscorrelation(w.First, w.Second, len(w.First))
	res := dsp.FindPeak(corr, s.config.PSK.Search)
	s.observe(s.pskThreshold, res)
	threshold := s.pskThreshold.Threshold()

	phase := s.phase.Detect(res, threshold)
	out := s.pskFramer.Step(phase, s.buf.TakeTick())
	if out.RestartClock {
		s.buf.RestartClock()
	}
	switch {
	case out.Invalid:
		s.raise(fault.ErrInvalidVaricode)
	case out.LostLock:
		s.raise(fault.ErrDecodeNoLock)
	}
	s.trackLock(s.pskFramer.Locked())
	if out.Ok {
		s.emit(out.Char)
	}
	s.level(s.pskLevel, res.Zero, threshold)
}

func (s *Scheduler) observe(t *dsp.ThresholdTracker, res dsp.PeakResult) {
	up := t.Observe(res)
	if up.Clamped {
		s.raise(fault.ErrBadThreshold)
	}
	if up.Derived {
		s.logger.Debug("threshold", "mode", s.mode, "average", t.Average(),
			"threshold", up.Threshold, "clamped", up.Clamped, "bin", t.BinThreshold())
	}
}

func (s *Scheduler) reportBuffer(f acquire.Fault) {
	if f.Has(acquire.FaultOverflow) {
		s.raise(fault.ErrBufferOverflow)
	}
	if f.Has(acquire.FaultOverrun) {
		if s.mode == PSK {
			s.raise(fault.ErrPSKOverrun)
		} else {
			s.raise(fault.ErrAcquisitionOverrun)
		}
	}
}

func (s *Scheduler) raise(code fault.Code) {
	if s.reporter.Raise(code) {
		s.logger.Warn("decode fault", "code", code, "tag", code.Tag())
	}
}

func (s *Scheduler) trackLock(locked bool) {
	if locked == s.locked {
		return
	}
	s.locked = locked
	s.logger.Debug("lock", "mode", s.mode, "locked", locked)
}

// emit forwards c only while the framer holds lock.
func (s *Scheduler) emit(c rune) {
	if !s.locked {
		return
	}
	s.stats.Characters++
	s.presenter.OnCharacterDecoded(c, s.mode)
}

func (s *Scheduler) level(m *dsp.LevelMeter, zero, threshold int64) {
	lvl, report := m.Update(zero, threshold, int64(s.buf.PeakLevel()))
	if report {
		s.presenter.OnSignalLevel(lvl, s.mode)
	}
}

// Stats returns a snapshot of the scheduler state.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	st.Locked = s.locked
	st.Fault = s.reporter.Current()
	switch s.mode {
	case RTTY:
		st.Threshold = s.rttyThreshold.Threshold()
		st.Divider = s.rttyThreshold.Divider()
	case PSK:
		st.Threshold = s.pskThreshold.Threshold()
		st.BinThreshold = s.pskThreshold.BinThreshold()
	}
	return st
}
