// internal/audio/capture.go
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/ColonelBlimp/pskrtty/internal/recovery"
)

var (
	ErrNotInitialized = errors.New("audio capture not initialized")
	ErrAlreadyRunning = errors.New("audio capture already running")
	ErrNotRunning     = errors.New("audio capture not running")
	ErrInvalidScale   = errors.New("input scale must be in (0, 32767]")
)

// Config holds audio capture configuration
type Config struct {
	DeviceIndex int     // -1 for default device
	SampleRate  uint32  // e.g., 9615
	BufferSize  uint32  // frames per callback
	InputScale  float32 // full-scale float maps to ±InputScale
}

// DefaultConfig returns the capture settings matching the decoder's
// 9615 Hz sampling and a 10-bit converter range.
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  9615,
		BufferSize:  256,
		InputScale:  512,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.InputScale <= 0 || c.InputScale > math.MaxInt16 {
		return ErrInvalidScale
	}
	return nil
}

// SampleCallback is called directly from the audio thread with new samples.
// Must be non-blocking and fast; the slice is reused after it returns.
type SampleCallback func(samples []int16)

// Capture samples a mono input device and delivers signed samples.
type Capture struct {
	config      Config
	ctx         *malgo.AllocatedContext
	device      *malgo.Device
	running     atomic.Bool
	mu          sync.Mutex
	callbackPtr atomic.Pointer[SampleCallback]
}

// New creates a new audio capture instance
func New(cfg Config) *Capture {
	return &Capture{config: cfg}
}

// SetCallback sets a callback for real-time sample processing.
// Set before calling Start().
func (c *Capture) SetCallback(cb SampleCallback) {
	if cb == nil {
		c.callbackPtr.Store(nil)
		return
	}
	c.callbackPtr.Store(&cb)
}

// Init initializes the audio backend
func (c *Capture) Init() error {
	if err := c.config.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx
	return nil
}

// ListDevices returns available capture devices
func (c *Capture) ListDevices() ([]malgo.DeviceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listDevices()
}

func (c *Capture) listDevices() ([]malgo.DeviceInfo, error) {
	if c.ctx == nil {
		return nil, ErrNotInitialized
	}
	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Start begins audio capture. Capture stops when ctx is done.
func (c *Capture) Start(ctx context.Context) error {
	if c.running.Load() {
		return ErrAlreadyRunning
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx == nil {
		return ErrNotInitialized
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.SampleRate = c.config.SampleRate
	deviceConfig.PeriodSizeInFrames = c.config.BufferSize
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1

	if c.config.DeviceIndex >= 0 {
		devices, err := c.listDevices()
		if err != nil {
			return err
		}
		if c.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("device index %d out of range (have %d devices)",
				c.config.DeviceIndex, len(devices))
		}
		deviceConfig.Capture.DeviceID = devices[c.config.DeviceIndex].ID.Pointer()
	}

	scratch := make([]float32, c.config.BufferSize)
	block := make([]int16, c.config.BufferSize)
	onRecvFrames := func(_, inputSamples []byte, _ uint32) {
		if len(inputSamples) == 0 {
			return
		}
		scratch = bytesToFloat32(scratch[:0], inputSamples)
		if cap(block) < len(scratch) {
			block = make([]int16, len(scratch))
		}
		c.deliver(ScaleSamples(block, scratch, c.config.InputScale))
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	c.device = device
	c.running.Store(true)

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()
	return nil
}

func (c *Capture) deliver(block []int16) {
	if cb := c.callbackPtr.Load(); cb != nil {
		(*cb)(block)
	}
}

// Stream starts capture and hands each block to fn on the audio thread
// until ctx is done or fn fails. fn must not block and must not keep the
// slice. A panic in fn is fatal; the device must not be stopped from its
// own callback, so only the stream is cancelled before the exit.
func (c *Capture) Stream(ctx context.Context, fn func([]int16) error) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	c.SetCallback(streamCallback(ctx, fn, cancel, func() { cancel(recovery.ErrPanic) }))
	defer c.SetCallback(nil)

	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	err := context.Cause(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// streamCallback adapts fn to a SampleCallback. The first error from fn is
// passed to fail and later blocks are ignored.
func streamCallback(ctx context.Context, fn func([]int16) error, fail func(error), cleanup func()) SampleCallback {
	return func(block []int16) {
		defer recovery.HandlePanicFunc(cleanup)
		if ctx.Err() != nil {
			return
		}
		if err := fn(block); err != nil {
			fail(err)
		}
	}
}

// Stop stops audio capture
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.Load() {
		return ErrNotRunning
	}
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	c.running.Store(false)
	return nil
}

// Close releases all audio resources.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() && c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
		c.running.Store(false)
	}

	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}
	return nil
}

// IsRunning returns true if capture is active
func (c *Capture) IsRunning() bool {
	return c.running.Load()
}

// ScaleSamples converts normalised samples to signed integers of magnitude
// up to scale, saturating out-of-range input. dst must be at least as long
// as src; the filled prefix is returned.
func ScaleSamples(dst []int16, src []float32, scale float32) []int16 {
	dst = dst[:len(src)]
	for i, v := range src {
		x := math.Round(float64(v * scale))
		switch {
		case x > float64(scale):
			x = float64(scale)
		case x < -float64(scale):
			x = -float64(scale)
		}
		dst[i] = int16(x)
	}
	return dst
}

// bytesToFloat32 appends the little-endian float32 samples in data to dst.
// Trailing bytes that do not form a whole sample are ignored.
func bytesToFloat32(dst []float32, data []byte) []float32 {
	for i := 0; i+4 <= len(data); i += 4 {
		bits := uint32(data[i]) |
			uint32(data[i+1])<<8 |
			uint32(data[i+2])<<16 |
			uint32(data[i+3])<<24
		dst = append(dst, math.Float32frombits(bits))
	}
	return dst
}
