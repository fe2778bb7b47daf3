// internal/audio/wav.go
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// readChunkSamples bounds each read of the data chunk so a corrupt size
// field cannot force one huge allocation.
const readChunkSamples = 4096

var (
	ErrNotWAV         = errors.New("not a RIFF/WAVE file")
	ErrUnsupportedWAV = errors.New("only mono 16-bit PCM WAV is supported")
	ErrNoData         = errors.New("WAV file has no data chunk")
)

// wavHeader is the RIFF header followed by the chunk list.
type wavHeader struct {
	ChunkID   [4]byte // "RIFF"
	ChunkSize uint32
	Format    [4]byte // "WAVE"
}

type chunkHeader struct {
	ID   [4]byte
	Size uint32
}

type fmtChunk struct {
	AudioFormat   uint16 // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// WAV is a decoded mono PCM16 recording.
type WAV struct {
	SampleRate int
	Samples    []int16
}

// ReadWAV parses a mono 16-bit PCM WAV stream. Chunks other than fmt and
// data are skipped. A data chunk cut short by the end of the stream, as left
// by a recorder that never patched its size fields, yields the samples that
// are present.
func ReadWAV(r io.Reader) (*WAV, error) {
	var hdr wavHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(hdr.ChunkID[:]) != "RIFF" || string(hdr.Format[:]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var format *fmtChunk
	for {
		var ch chunkHeader
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrNoData
			}
			return nil, fmt.Errorf("read chunk header: %w", err)
		}

		switch string(ch.ID[:]) {
		case "fmt ":
			format = &fmtChunk{}
			if err := binary.Read(r, binary.LittleEndian, format); err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			if rest := int64(ch.Size) - 16; rest > 0 {
				if _, err := io.CopyN(io.Discard, r, rest); err != nil {
					return nil, fmt.Errorf("skip fmt extension: %w", err)
				}
			}
			if format.AudioFormat != 1 || format.NumChannels != 1 || format.BitsPerSample != 16 {
				return nil, ErrUnsupportedWAV
			}
		case "data":
			if format == nil {
				return nil, ErrUnsupportedWAV
			}
			samples, err := readSamples(io.LimitReader(r, int64(ch.Size)))
			if err != nil {
				return nil, fmt.Errorf("read samples: %w", err)
			}
			return &WAV{SampleRate: int(format.SampleRate), Samples: samples}, nil
		default:
			// Chunks are word aligned.
			if _, err := io.CopyN(io.Discard, r, int64(ch.Size)+int64(ch.Size%2)); err != nil {
				return nil, fmt.Errorf("skip %q chunk: %w", ch.ID[:], err)
			}
		}
	}
}

// readSamples reads little-endian int16 samples until r is exhausted. A
// trailing odd byte is ignored.
func readSamples(r io.Reader) ([]int16, error) {
	var samples []int16
	raw := make([]byte, 2*readChunkSamples)
	for {
		n, err := io.ReadFull(r, raw)
		for i := 0; i+1 < n; i += 2 {
			samples = append(samples, int16(binary.LittleEndian.Uint16(raw[i:])))
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return samples, nil
		default:
			return nil, err
		}
	}
}

// WriteWAV writes samples as a mono 16-bit PCM WAV stream.
func WriteWAV(w io.Writer, sampleRate int, samples []int16) error {
	dataSize := uint32(len(samples) * 2)
	hdr := struct {
		RIFF       wavHeader
		FmtHeader  chunkHeader
		Fmt        fmtChunk
		DataHeader chunkHeader
	}{
		RIFF: wavHeader{
			ChunkID:   [4]byte{'R', 'I', 'F', 'F'},
			ChunkSize: 36 + dataSize,
			Format:    [4]byte{'W', 'A', 'V', 'E'},
		},
		FmtHeader: chunkHeader{ID: [4]byte{'f', 'm', 't', ' '}, Size: 16},
		Fmt: fmtChunk{
			AudioFormat:   1,
			NumChannels:   1,
			SampleRate:    uint32(sampleRate),
			ByteRate:      uint32(sampleRate * 2),
			BlockAlign:    2,
			BitsPerSample: 16,
		},
		DataHeader: chunkHeader{ID: [4]byte{'d', 'a', 't', 'a'}, Size: dataSize},
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write WAV header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	return nil
}

// PlayerConfig holds WAV playback settings.
type PlayerConfig struct {
	// SampleRate is the rate the decoder expects; the file must match
	SampleRate int
	// BlockSize is the number of samples delivered per block
	BlockSize int
	// InputScale is the peak magnitude the recording is rescaled to
	// (0 keeps the recorded levels)
	InputScale float32
	// Realtime paces blocks at the sample rate; false delivers them as
	// fast as the consumer accepts them
	Realtime bool
}

// WAVPlayer replays a recording as a sample source.
type WAVPlayer struct {
	config PlayerConfig
	wav    *WAV
}

// OpenWAV loads a recording from path for playback.
func OpenWAV(path string, cfg PlayerConfig) (*WAVPlayer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open WAV: %w", err)
	}
	defer f.Close()

	wav, err := ReadWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewWAVPlayer(wav, cfg)
}

// NewWAVPlayer creates a player for wav, rescaled per cfg.
func NewWAVPlayer(wav *WAV, cfg PlayerConfig) (*WAVPlayer, error) {
	if cfg.SampleRate > 0 && wav.SampleRate != cfg.SampleRate {
		return nil, fmt.Errorf("WAV sample rate %d Hz, decoder expects %d Hz", wav.SampleRate, cfg.SampleRate)
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 256
	}
	if cfg.InputScale > 0 {
		wav = &WAV{SampleRate: wav.SampleRate, Samples: Rescale(wav.Samples, cfg.InputScale)}
	}
	return &WAVPlayer{config: cfg, wav: wav}, nil
}

// Len returns the number of samples in the recording.
func (p *WAVPlayer) Len() int {
	return len(p.wav.Samples)
}

// Stream delivers the recording block by block to fn. It returns when the
// recording ends, fn fails or ctx is done.
func (p *WAVPlayer) Stream(ctx context.Context, fn func([]int16) error) error {
	var ticker *time.Ticker
	if p.config.Realtime && p.wav.SampleRate > 0 {
		period := time.Duration(p.config.BlockSize) * time.Second / time.Duration(p.wav.SampleRate)
		ticker = time.NewTicker(period)
		defer ticker.Stop()
	}

	samples := p.wav.Samples
	for start := 0; start < len(samples); start += p.config.BlockSize {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+p.config.BlockSize, len(samples))
		if err := fn(samples[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// Rescale returns a copy of samples scaled so the largest magnitude is scale.
func Rescale(samples []int16, scale float32) []int16 {
	var peak float64
	for _, s := range samples {
		peak = max(peak, math.Abs(float64(s)))
	}
	out := make([]int16, len(samples))
	if peak == 0 {
		return out
	}
	k := float64(scale) / peak
	for i, s := range samples {
		out[i] = int16(math.Round(float64(s) * k))
	}
	return out
}
