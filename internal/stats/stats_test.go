// ABOUTME: Tests for stream statistics
// ABOUTME: Covers delay smoothing, sequence anomalies and quality
package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

func sampleAt(seq uint32, ts time.Time) webmsg.Sample {
	return webmsg.NewSample(seq, ts, 1)
}

func TestTrackerInitialState(t *testing.T) {
	tr := NewTracker()
	snap := tr.Snapshot()
	assert.Equal(t, QualityLost, snap.Quality)
	assert.Zero(t, snap.Samples)
}

func TestTrackerInOrder(t *testing.T) {
	tr := NewTracker()
	base := time.Unix(1000, 0)
	for i := range 10 {
		ts := base.Add(time.Duration(i) * 100 * time.Millisecond)
		tr.Observe(sampleAt(uint32(i), ts), ts.Add(5*time.Millisecond))
	}

	snap := tr.Snapshot()
	assert.Equal(t, uint64(10), snap.Samples)
	assert.Zero(t, snap.Gaps)
	assert.Zero(t, snap.Reorders)
	assert.Equal(t, uint32(9), snap.LastSequence)
	assert.Equal(t, 5*time.Millisecond, snap.Delay)
	assert.Equal(t, QualityGood, snap.Quality)
}

func TestTrackerGap(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1000, 0)
	tr.Observe(sampleAt(1, time.Time{}), now)
	tr.Observe(sampleAt(5, time.Time{}), now)

	snap := tr.Snapshot()
	assert.Equal(t, uint64(3), snap.Gaps)
	assert.Equal(t, QualityDegraded, snap.Quality)

	assert.Equal(t, QualityGood, tr.CheckQuality(now.Add(DegradedHold)))
	assert.Equal(t, QualityLost, tr.CheckQuality(now.Add(StaleAfter+time.Second)))
}

func TestTrackerReorderAndWrap(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1000, 0)
	tr.Observe(sampleAt(10, time.Time{}), now)
	tr.Observe(sampleAt(9, time.Time{}), now)
	assert.Equal(t, uint64(1), tr.Snapshot().Reorders)
	assert.Equal(t, uint32(10), tr.Snapshot().LastSequence)

	tr.Reset()
	tr.Observe(sampleAt(0xffffffff, time.Time{}), now)
	tr.Observe(sampleAt(0, time.Time{}), now)
	snap := tr.Snapshot()
	assert.Zero(t, snap.Gaps)
	assert.Zero(t, snap.Reorders)
}

func TestTrackerRestart(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1000, 0)
	tr.Observe(sampleAt(50000, time.Time{}), now)
	tr.Observe(sampleAt(0, time.Time{}), now)

	snap := tr.Snapshot()
	assert.Equal(t, uint64(1), snap.Restarts)
	assert.Equal(t, uint32(0), snap.LastSequence)
}

func TestTrackerDelaySmoothing(t *testing.T) {
	tr := NewTracker()
	ts := time.Unix(1000, 0)
	tr.Observe(sampleAt(0, ts), ts.Add(10*time.Millisecond))
	tr.Observe(sampleAt(1, ts), ts.Add(20*time.Millisecond))

	snap := tr.Snapshot()
	assert.Equal(t, 20*time.Millisecond, snap.RawDelay)
	assert.Equal(t, 11*time.Millisecond, snap.Delay)
}

func TestTrackerIgnoresUntimedWireSample(t *testing.T) {
	tr := NewTracker()
	buf, err := webmsg.Encode(sampleAt(0, time.Time{}))
	require.NoError(t, err)
	decoded, err := webmsg.Decode(buf)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	tr.Observe(decoded, now)

	snap := tr.Snapshot()
	assert.Equal(t, uint64(1), snap.Samples)
	assert.Zero(t, snap.Delay)
	assert.Zero(t, snap.RawDelay)

	ts := now.Add(-10 * time.Millisecond)
	tr.Observe(sampleAt(1, ts), now)
	assert.Equal(t, 10*time.Millisecond, tr.Snapshot().Delay, "first timed sample seeds the delay")
}

func TestTrackerDelayOutlier(t *testing.T) {
	tr := NewTracker()
	ts := time.Unix(1000, 0)
	tr.Observe(sampleAt(0, ts), ts.Add(10*time.Millisecond))
	tr.Observe(sampleAt(1, ts), ts.Add(time.Minute))
	assert.Equal(t, 10*time.Millisecond, tr.Snapshot().Delay)
}

func TestQualityString(t *testing.T) {
	assert.Equal(t, "good", QualityGood.String())
	assert.Equal(t, "degraded", QualityDegraded.String())
	assert.Equal(t, "lost", QualityLost.String())
}
