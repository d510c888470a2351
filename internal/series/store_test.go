// ABOUTME: Tests for the series store
// ABOUTME: Covers channel growth, pruning, snapshots and resampling
package series

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

func TestStoreGrowsChannels(t *testing.T) {
	s := NewStore(NewWindow(time.Second))
	base := time.Unix(1000, 0)

	s.Add(webmsg.NewSample(0, base, 1))
	s.Add(webmsg.NewSample(1, base.Add(10*time.Millisecond), 2, 20, 200))

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Len(t, snap[0].Points, 2)
	assert.Len(t, snap[1].Points, 1)
	assert.Len(t, snap[2].Points, 1)
	assert.Equal(t, float32(2), snap[0].Last)
	assert.Equal(t, float32(1), snap[0].Min)
	assert.Equal(t, float32(2), snap[0].Max)
}

func TestStoreIgnoresNonData(t *testing.T) {
	s := NewStore(NewWindow(time.Second))
	sample := webmsg.NewSample(0, time.Unix(1, 0), 1)
	sample.Kind = webmsg.KindStart
	s.Add(sample)
	s.Add(webmsg.NewSample(1, time.Unix(1, 0)))
	assert.Empty(t, s.Snapshot())
}

func TestStoreZeroTimestampUsesClock(t *testing.T) {
	s := NewStore(NewWindow(time.Second))
	now := time.Unix(42, 0)
	s.now = func() time.Time { return now }

	s.Add(webmsg.NewSample(7, time.Time{}, 1.0, -2.5))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, now, snap[0].Points[0].Time)
}

func TestStoreUntimedWireSampleSurvivesPrune(t *testing.T) {
	s := NewStore(NewWindow(time.Second))
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	buf, err := webmsg.Encode(webmsg.NewSample(1, time.Time{}, 42))
	require.NoError(t, err)
	decoded, err := webmsg.Decode(buf)
	require.NoError(t, err)

	s.Add(decoded)
	s.Prune(now)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Len(t, snap[0].Points, 1)
	assert.Equal(t, now, snap[0].Points[0].Time)
}

func TestStorePrune(t *testing.T) {
	s := NewStore(NewWindow(time.Second))
	base := time.Unix(1000, 0)
	for i := range 10 {
		s.Add(webmsg.NewSample(uint32(i), base.Add(time.Duration(i)*200*time.Millisecond), float32(i)))
	}

	// past is 900ms, so points at 1.2s..1.8s survive
	s.Prune(base.Add(2 * time.Second))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Len(t, snap[0].Points, 4)
	assert.Equal(t, float32(6), snap[0].Min)
	assert.Equal(t, float32(9), snap[0].Max)
}

func TestStoreMaxPoints(t *testing.T) {
	s := NewStore(NewWindow(time.Second))
	s.maxPoints = 3
	for i := range 5 {
		s.Add(webmsg.NewSample(uint32(i), time.Unix(int64(i+1), 0), float32(i)))
	}
	snap := s.Snapshot()
	require.Len(t, snap[0].Points, 3)
	assert.Equal(t, float32(2), snap[0].Points[0].Value)
}

func TestStoreNamesAndReset(t *testing.T) {
	s := NewStore(NewWindow(time.Second))
	s.SetNames([]string{"voltage"})
	s.Add(webmsg.NewSample(0, time.Unix(1, 0), 1, 2))

	snap := s.Snapshot()
	assert.Equal(t, "voltage", snap[0].Label())
	assert.Equal(t, "Index 1", snap[1].Label())

	s.Reset()
	assert.Empty(t, s.Snapshot())
	assert.Equal(t, time.Second, s.Window().Delta)
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s := NewStore(NewWindow(time.Second))
	s.Add(webmsg.NewSample(0, time.Unix(1, 0), 1))
	snap := s.Snapshot()
	snap[0].Points[0].Value = 99
	assert.Equal(t, float32(1), s.Snapshot()[0].Points[0].Value)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore(NewWindow(time.Second))
	base := time.Unix(1000, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 1000 {
			s.Add(webmsg.NewSample(uint32(i), base.Add(time.Duration(i)*time.Millisecond), float32(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 100 {
			s.Prune(base.Add(time.Duration(i) * 10 * time.Millisecond))
			_ = s.Snapshot()
		}
	}()
	wg.Wait()
}

func TestResample(t *testing.T) {
	from := time.Unix(0, 0)
	to := from.Add(4 * time.Second)
	points := []Point{
		{Time: from.Add(100 * time.Millisecond), Value: 1},
		{Time: from.Add(900 * time.Millisecond), Value: 3},
		{Time: from.Add(2500 * time.Millisecond), Value: 5},
		{Time: to, Value: 100},
	}

	got := Resample(points, from, to, 4)
	require.Len(t, got, 4)
	assert.Equal(t, 2.0, got[0])
	assert.True(t, math.IsNaN(got[1]))
	assert.Equal(t, 5.0, got[2])
	assert.True(t, math.IsNaN(got[3]))
}
