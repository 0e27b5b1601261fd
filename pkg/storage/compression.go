package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// levels maps the configured compression level onto zstd presets
var levels = map[int]zstd.EncoderLevel{
	1: zstd.SpeedFastest,
	2: zstd.SpeedDefault,
	3: zstd.SpeedBetterCompression,
	4: zstd.SpeedBestCompression,
}

// Compressor packs float64 sample payloads: XOR against the previous sample,
// then zstd. Neighbouring samples of a smooth trace share most of their bits.
type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressor creates a compressor; level runs from 1 (fastest) to 4
// (smallest), anything else uses the zstd default
func NewCompressor(level int) (*Compressor, error) {
	encLevel, ok := levels[level]
	if !ok {
		encLevel = zstd.SpeedDefault
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	return &Compressor{encoder: encoder, decoder: decoder}, nil
}

// CompressValues XOR-encodes samples and compresses the result
func (c *Compressor) CompressValues(samples []float64) ([]byte, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	raw := make([]byte, 8*len(samples))
	var prev uint64
	for i, v := range samples {
		bits := math.Float64bits(v)
		binary.LittleEndian.PutUint64(raw[8*i:], bits^prev)
		prev = bits
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// DecompressValues restores count samples written by CompressValues
func (c *Compressor) DecompressValues(data []byte, count int) ([]float64, error) {
	if len(data) == 0 || count == 0 {
		return nil, nil
	}

	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	if len(raw) != 8*count {
		return nil, fmt.Errorf("payload holds %d bytes, want %d samples", len(raw), count)
	}

	samples := make([]float64, count)
	var prev uint64
	for i := range samples {
		prev ^= binary.LittleEndian.Uint64(raw[8*i:])
		samples[i] = math.Float64frombits(prev)
	}
	return samples, nil
}

// Close releases the zstd encoder and decoder
func (c *Compressor) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}
