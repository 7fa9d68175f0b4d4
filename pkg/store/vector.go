package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pierrec/lz4/v4"
)

// EncodeVector packs a float32 vector into a little-endian byte blob and
// lz4-compresses it, so embeddings (the bulk of a store's on-disk size)
// compress well without a dedicated columnar format.
func EncodeVector(v []float32) ([]byte, error) {
	raw := make([]byte, 4*len(v))

	for i, f := range v {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(f))
	}

	var compressed bytes.Buffer

	w := lz4.NewWriter(&compressed)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("compress vector: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flush vector compressor: %w", err)
	}

	return compressed.Bytes(), nil
}

// DecodeVector reverses EncodeVector.
func DecodeVector(blob []byte) ([]float32, error) {
	r := lz4.NewReader(bytes.NewReader(blob))

	var raw bytes.Buffer
	if _, err := raw.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("decompress vector: %w", err)
	}

	data := raw.Bytes()
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("decode vector: byte length %d not a multiple of 4", len(data))
	}

	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}

	return out, nil
}

// CosineSimilarity computes the cosine similarity between two equal-length
// vectors; a length mismatch or a zero vector yields 0, never NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
