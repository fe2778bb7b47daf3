package audio

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DeviceIndex != -1 {
		t.Errorf("DefaultConfig().DeviceIndex = %d, want -1", cfg.DeviceIndex)
	}
	if cfg.SampleRate != 9615 {
		t.Errorf("DefaultConfig().SampleRate = %d, want 9615", cfg.SampleRate)
	}
	if cfg.BufferSize != 256 {
		t.Errorf("DefaultConfig().BufferSize = %d, want 256", cfg.BufferSize)
	}
	if cfg.InputScale != 512 {
		t.Errorf("DefaultConfig().InputScale = %v, want 512", cfg.InputScale)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		scale float32
		ok    bool
	}{
		{1, true},
		{512, true},
		{32767, true},
		{0, false},
		{-1, false},
		{40000, false},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.InputScale = tt.scale
		err := cfg.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("Validate() with scale %v = %v, want ok=%v", tt.scale, err, tt.ok)
		}
	}
}

func TestNew_NotRunning(t *testing.T) {
	capture := New(DefaultConfig())

	if capture.IsRunning() {
		t.Error("IsRunning() = true for new capture, want false")
	}
}

func TestCapture_SetCallback(t *testing.T) {
	capture := New(DefaultConfig())

	capture.SetCallback(func(samples []int16) {})
	if capture.callbackPtr.Load() == nil {
		t.Error("SetCallback() did not set callback")
	}

	capture.SetCallback(nil)
	if capture.callbackPtr.Load() != nil {
		t.Error("SetCallback(nil) should clear callback")
	}
}

func TestCapture_DeliverUsesCallback(t *testing.T) {
	capture := New(DefaultConfig())
	capture.deliver([]int16{1, 2, 3})

	var got []int16
	capture.SetCallback(func(samples []int16) {
		got = append(got, samples...)
	})
	capture.deliver([]int16{4, 5})

	if len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Errorf("callback received %v, want [4 5]", got)
	}
}

func TestStreamCallback_FirstErrorStops(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	want := errors.New("decoder full")
	calls := 0
	cb := streamCallback(ctx, func([]int16) error {
		calls++
		return want
	}, cancel, nil)

	cb([]int16{1})
	cb([]int16{2})

	if calls != 1 {
		t.Errorf("fn called %d times, want 1 after the first error", calls)
	}
	if !errors.Is(context.Cause(ctx), want) {
		t.Errorf("context.Cause() = %v, want %v", context.Cause(ctx), want)
	}
}

func TestStreamCallback_IgnoresBlocksAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(nil)

	cb := streamCallback(ctx, func([]int16) error {
		t.Error("fn called after cancel")
		return nil
	}, cancel, nil)
	cb([]int16{1})
}

func TestCapture_NotInitialized(t *testing.T) {
	capture := New(DefaultConfig())

	if _, err := capture.ListDevices(); err != ErrNotInitialized {
		t.Errorf("ListDevices() error = %v, want ErrNotInitialized", err)
	}
	if err := capture.Start(context.Background()); err != ErrNotInitialized {
		t.Errorf("Start() error = %v, want ErrNotInitialized", err)
	}
	if err := capture.Stop(); err != ErrNotRunning {
		t.Errorf("Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestCapture_Start_AlreadyRunning(t *testing.T) {
	capture := New(DefaultConfig())
	capture.running.Store(true)

	if err := capture.Start(context.Background()); err != ErrAlreadyRunning {
		t.Errorf("Start() when running error = %v, want ErrAlreadyRunning", err)
	}
}

func TestCapture_Init_InvalidScale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputScale = 0
	capture := New(cfg)

	if err := capture.Init(); err != ErrInvalidScale {
		t.Errorf("Init() error = %v, want ErrInvalidScale", err)
	}
}

func TestScaleSamples(t *testing.T) {
	src := []float32{0, 1, -1, 0.5, -0.25, 1.5, -2, 0.001}
	want := []int16{0, 512, -512, 256, -128, 512, -512, 1}

	got := ScaleSamples(make([]int16, len(src)), src, 512)
	if len(got) != len(want) {
		t.Fatalf("ScaleSamples() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ScaleSamples()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBytesToFloat32(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []float32
	}{
		{"empty", []byte{}, nil},
		{"single", []byte{0x00, 0x00, 0x80, 0x3F}, []float32{1.0}},
		{"multiple", []byte{
			0x00, 0x00, 0x00, 0x00, // 0.0
			0x00, 0x00, 0x80, 0x3F, // 1.0
			0x00, 0x00, 0x80, 0xBF, // -1.0
		}, []float32{0, 1, -1}},
		{"partial", []byte{0x00, 0x00, 0x80}, nil},
		{"extra", []byte{0x00, 0x00, 0x80, 0x3F, 0xFF}, []float32{1.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bytesToFloat32(nil, tt.data)
			if len(got) != len(tt.want) {
				t.Fatalf("bytesToFloat32() length = %d, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("bytesToFloat32()[%d] = %f, want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBytesToFloat32_RoundTrip(t *testing.T) {
	values := []float32{0.1, -0.5, 0.999, math.SmallestNonzeroFloat32}
	data := make([]byte, 0, 4*len(values))
	for _, v := range values {
		b := math.Float32bits(v)
		data = append(data, byte(b), byte(b>>8), byte(b>>16), byte(b>>24))
	}

	got := bytesToFloat32(make([]float32, 0, len(values)), data)
	for i, v := range values {
		if got[i] != v {
			t.Errorf("bytesToFloat32()[%d] = %g, want %g", i, got[i], v)
		}
	}
}

func TestCapture_Stream_NotInitialized(t *testing.T) {
	capture := New(DefaultConfig())
	err := capture.Stream(context.Background(), func([]int16) error { return nil })
	if err != ErrNotInitialized {
		t.Errorf("Stream() error = %v, want %v", err, ErrNotInitialized)
	}
}
