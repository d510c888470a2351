// ABOUTME: Shared helpers for webmsg tests
// ABOUTME: Random sample generation and field-by-field comparison
package webmsg

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VILLASframework/villas-live-go/pkg/endian"
)

func randomSample(rng *rand.Rand, layout Layout, count int) Sample {
	values := make([]float32, count)
	for i := range values {
		values[i] = math.Float32frombits(rng.Uint32())
	}
	s := Sample{
		Layout:    layout,
		Kind:      KindData,
		Version:   Version1,
		ByteOrder: endian.Little,
		Sequence:  rng.Uint32(),
		Timestamp: time.Unix(int64(rng.Uint32()), int64(rng.Intn(1e9))).UTC(),
		Values:    values,
	}
	switch layout {
	case LayoutA:
		s.Kind = Kind(rng.Intn(4))
		s.ByteOrder = endian.ByteOrder(rng.Intn(2))
	case LayoutB:
		s.SourceID = uint8(rng.Intn(256))
	}
	return s
}

// requireSameSample compares values bit for bit so NaN payloads count
func requireSameSample(t *testing.T, want, got Sample) {
	t.Helper()
	require.Equal(t, want.Layout, got.Layout, "layout")
	require.Equal(t, want.Kind, got.Kind, "kind")
	require.Equal(t, want.Version, got.Version, "version")
	require.Equal(t, want.ByteOrder, got.ByteOrder, "byte order")
	require.Equal(t, want.SourceID, got.SourceID, "source id")
	require.Equal(t, want.Sequence, got.Sequence, "sequence")
	require.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp: want %v got %v", want.Timestamp, got.Timestamp)
	require.Len(t, got.Values, len(want.Values))
	for i := range want.Values {
		if math.Float32bits(want.Values[i]) != math.Float32bits(got.Values[i]) {
			assert.Failf(t, "value mismatch", "index %d: want %#08x got %#08x",
				i, math.Float32bits(want.Values[i]), math.Float32bits(got.Values[i]))
			return
		}
	}
}
