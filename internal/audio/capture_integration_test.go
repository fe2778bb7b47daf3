//go:build integration

package audio

import (
	"context"
	"errors"
	"testing"
	"time"
)

// These tests require actual audio hardware and are skipped by default.
// Run with: go test -tags=integration ./internal/audio

func TestCapture_ListDevices_Integration(t *testing.T) {
	capture := New(DefaultConfig())
	defer capture.Close()

	if err := capture.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	devices, err := capture.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	t.Logf("Found %d capture devices:", len(devices))
	for i, d := range devices {
		t.Logf("  [%d] %s", i, d.Name())
	}
}

func TestCapture_ReceivesScaledSamples_Integration(t *testing.T) {
	capture := New(DefaultConfig())
	defer capture.Close()

	if err := capture.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	received := make(chan []int16, 1)
	capture.SetCallback(func(samples []int16) {
		select {
		case received <- append([]int16(nil), samples...):
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := capture.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case samples := <-received:
		if len(samples) == 0 {
			t.Error("Received empty sample block")
		}
		scale := int16(DefaultConfig().InputScale)
		for i, s := range samples {
			if s > scale || s < -scale {
				t.Fatalf("sample %d = %d outside ±%d", i, s, scale)
			}
		}
	case <-ctx.Done():
		t.Fatal("Timeout waiting for samples")
	}
}

func TestCapture_Stream_Integration(t *testing.T) {
	capture := New(DefaultConfig())
	defer capture.Close()

	if err := capture.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	enough := errors.New("enough blocks")
	blocks := 0
	err := capture.Stream(ctx, func(samples []int16) error {
		blocks++
		if blocks == 3 {
			return enough
		}
		return nil
	})
	if !errors.Is(err, enough) {
		t.Fatalf("Stream() error = %v, want %v", err, enough)
	}

	cancel()
	time.Sleep(100 * time.Millisecond)
	if capture.IsRunning() {
		t.Error("IsRunning() = true after context cancellation")
	}
}
