// ABOUTME: Tests for single-frame encode and decode
// ABOUTME: Covers byte-exact output, round trips, byte order and truncation
package webmsg

import (
	"encoding/hex"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VILLASframework/villas-live-go/pkg/endian"
)

func TestEncodeByteExact(t *testing.T) {
	s := NewSample(7, time.Unix(0, 0), 1.0, -2.5)

	buf, err := Encode(s)
	require.NoError(t, err)

	want, _ := hex.DecodeString("10000200" + "07000000" + "00000000" + "00000000" + "0000803f" + "000020c0")
	assert.Equal(t, want, buf)
	assert.Len(t, buf, 24)
	assert.Equal(t, 24, cap(buf), "encode must allocate exactly the frame length")
}

func TestEncodeHeaderFields(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	s := NewSample(0xdeadbeef, ts, 0.5)
	s.Kind = KindStart

	buf, err := Encode(s)
	require.NoError(t, err)

	want, _ := hex.DecodeString("14000100" + "efbeadde" + "00f15365" + "15cd5b07" + "0000003f")
	assert.Equal(t, want, buf)
}

func TestEncodeLayoutB(t *testing.T) {
	s := NewSample(1, time.Unix(2, 3), 1.0)
	s.Layout = LayoutB
	s.SourceID = 0x2a

	buf, err := Encode(s)
	require.NoError(t, err)

	want, _ := hex.DecodeString("102a0100" + "01000000" + "02000000" + "03000000" + "0000803f")
	assert.Equal(t, want, buf)
}

func TestEncodeBigEndianPayload(t *testing.T) {
	s := NewSample(7, time.Unix(0, 0), 1.0, -2.5)
	s.ByteOrder = endian.Big

	buf, err := Encode(s)
	require.NoError(t, err)

	// header fields stay little-endian, flag bit set, payload words big-endian
	want, _ := hex.DecodeString("12000200" + "07000000" + "00000000" + "00000000" + "3f800000" + "c0200000")
	assert.Equal(t, want, buf)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, endian.Big, got.ByteOrder)
	assert.Equal(t, []float32{1.0, -2.5}, got.Values)
}

func TestDecodeSwapsNonHostPayload(t *testing.T) {
	le, err := Encode(NewSample(1, time.Unix(10, 0), 3.25, -1e9, float32(math.Inf(1))))
	require.NoError(t, err)

	be := NewSample(1, time.Unix(10, 0), 3.25, -1e9, float32(math.Inf(1)))
	be.ByteOrder = endian.Big
	beBuf, err := Encode(be)
	require.NoError(t, err)

	a, err := Decode(le)
	require.NoError(t, err)
	b, err := Decode(beBuf)
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values)
}

func TestEmptyKindFrame(t *testing.T) {
	s := NewSample(3, time.Unix(5, 6))
	s.Kind = KindEmpty

	buf, err := Encode(s)
	require.NoError(t, err)
	assert.Len(t, buf, HeaderLen)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, KindEmpty, got.Kind)
	assert.Empty(t, got.Values)
	assert.NotNil(t, got.Values)
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	counts := []int{0, 1, 2, 3, 64, 1000, MaxSampleCount}

	for _, layout := range []Layout{LayoutA, LayoutB} {
		for _, n := range counts {
			s := randomSample(rng, layout, n)
			buf, err := Encode(s)
			require.NoError(t, err, "layout %s count %d", layout, n)
			require.Len(t, buf, FrameLen(n))

			got, err := DecodeLayout(buf, layout)
			require.NoError(t, err)
			requireSameSample(t, s, got)
		}
	}
}

func TestRoundTripRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		layout := LayoutA
		if i%2 == 1 {
			layout = LayoutB
		}
		s := randomSample(rng, layout, rng.Intn(32))
		buf, err := Encode(s)
		require.NoError(t, err)
		got, err := DecodeLayout(buf, layout)
		require.NoError(t, err)
		requireSameSample(t, s, got)
	}
}

func TestDecodeDoesNotAliasInput(t *testing.T) {
	buf, err := Encode(NewSample(1, time.Unix(1, 0), 1, 2, 3))
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	for i := HeaderLen; i < len(buf); i++ {
		buf[i] = 0xff
	}
	assert.Equal(t, []float32{1, 2, 3}, got.Values)
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	buf, err := Encode(NewSample(9, time.Unix(1, 0), 4))
	require.NoError(t, err)
	buf = append(buf, 0xaa, 0xbb)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, got.Values)
}

func TestDecodeTruncatedEveryPrefix(t *testing.T) {
	buf, err := Encode(NewSample(1, time.Unix(1, 0), 1, 2, 3, 4))
	require.NoError(t, err)

	for n := 0; n < len(buf); n++ {
		// copy into an exact-capacity slice so a read past len would panic
		prefix := make([]byte, n)
		copy(prefix, buf[:n])

		_, err := Decode(prefix)
		require.Error(t, err, "prefix %d", n)
		assert.ErrorIs(t, err, ErrTruncatedFrame, "prefix %d", n)
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	buf, err := Encode(NewSample(1, time.Unix(1, 0), 1))
	require.NoError(t, err)

	for _, v := range []byte{0, 2, 15} {
		bad := append([]byte(nil), buf...)
		bad[0] = bad[0]&0x0f | v<<4
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrUnsupportedVersion, "version %d", v)
	}
}

func TestLayoutBRejectsBigEndian(t *testing.T) {
	buf, err := Encode(NewSample(1, time.Unix(1, 0), 1))
	require.NoError(t, err)
	buf[0] |= 1 << offsetEndian

	_, err = DecodeLayout(buf, LayoutB)
	assert.ErrorIs(t, err, ErrUnsupportedByteOrder)

	s := NewSample(1, time.Unix(1, 0), 1)
	s.Layout = LayoutB
	s.ByteOrder = endian.Big
	_, err = Encode(s)
	assert.ErrorIs(t, err, ErrUnsupportedByteOrder)
}

func TestLayoutBRejectsNonDataKinds(t *testing.T) {
	s := NewSample(1, time.Unix(1, 0))
	s.Layout = LayoutB
	s.Kind = KindStop
	_, err := Encode(s)
	assert.ErrorIs(t, err, ErrInvalidKind)

	a := NewSample(1, time.Unix(1, 0))
	a.Kind = KindStop
	buf, err := Encode(a)
	require.NoError(t, err)
	_, err = DecodeLayout(buf, LayoutB)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Sample)
		want   error
	}{
		{"too many values", func(s *Sample) { s.Values = make([]float32, MaxSampleCount+1) }, ErrInvalidSampleCount},
		{"version zero", func(s *Sample) { s.Version = 0 }, ErrUnsupportedVersion},
		{"version two", func(s *Sample) { s.Version = 2 }, ErrUnsupportedVersion},
		{"unknown kind", func(s *Sample) { s.Kind = 4 }, ErrInvalidKind},
		{"unknown byte order", func(s *Sample) { s.ByteOrder = 2 }, ErrUnsupportedByteOrder},
		{"negative timestamp", func(s *Sample) { s.Timestamp = time.Unix(-1, 0) }, ErrInvalidTimestamp},
		{"timestamp overflow", func(s *Sample) { s.Timestamp = time.Unix(math.MaxUint32+1, 0) }, ErrInvalidTimestamp},
		{"unknown layout", func(s *Sample) { s.Layout = 9 }, ErrUnsupportedLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSample(1, time.Unix(1, 0), 1)
			tt.mutate(&s)
			buf, err := Encode(s)
			assert.Nil(t, buf)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAppendFrameLeavesDstOnError(t *testing.T) {
	dst := []byte{1, 2, 3}
	s := NewSample(1, time.Unix(1, 0), 1)
	s.Version = 3

	out, err := AppendFrame(dst, s)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestZeroTimestampRoundTrip(t *testing.T) {
	for _, layout := range []Layout{LayoutA, LayoutB} {
		s := NewSample(1, time.Time{}, 42)
		s.Layout = layout
		buf, err := Encode(s)
		require.NoError(t, err)

		h, err := DecodeHeader(buf, layout)
		require.NoError(t, err)
		assert.Zero(t, h.Common().Seconds)
		assert.Zero(t, h.Common().Nanoseconds)

		got, err := DecodeLayout(buf, layout)
		require.NoError(t, err)
		assert.True(t, got.Timestamp.IsZero(), "layout %s: got %v", layout, got.Timestamp)
		requireSameSample(t, s, got)
		assert.Equal(t, 0.0, got.Millis())
	}
}

func TestEpochTimestampDecodesAsZero(t *testing.T) {
	buf, err := Encode(NewSample(1, time.Unix(0, 0), 1))
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.True(t, got.Timestamp.IsZero())
	assert.Equal(t, "0.000000000(1) 1", got.String())
}

func TestMillis(t *testing.T) {
	s := NewSample(0, time.Unix(12, 500_000_000))
	assert.InDelta(t, 12500.0, s.Millis(), 1e-9)
}

func TestSampleString(t *testing.T) {
	s := NewSample(4, time.Unix(1, 5), 1.5, -2)
	assert.Equal(t, "1.000000005(4) 1.5 -2", s.String())

	s.Kind = KindStart
	assert.Equal(t, "1.000000005(4) [start] 1.5 -2", s.String())
}

func TestParseLayout(t *testing.T) {
	for in, want := range map[string]Layout{"": LayoutAuto, "auto": LayoutAuto, "A": LayoutA, " b ": LayoutB} {
		got, err := ParseLayout(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLayout("c")
	assert.ErrorIs(t, err, ErrUnsupportedLayout)
}
