// ABOUTME: Receive-side stream statistics
// ABOUTME: Smooths one-way delay and counts sequence gaps and reorders
package stats

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

// Quality represents stream health
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "lost"
	}
}

const (
	// StaleAfter without samples marks the stream lost
	StaleAfter = 5 * time.Second
	// DegradedHold keeps the stream degraded after a gap or reorder
	DegradedHold = 5 * time.Second
	// restartWindow is the backwards sequence jump treated as a producer restart
	restartWindow = 1024
	// maxDelayStep rejects delay outliers once the estimate is seeded
	maxDelayStep = 10 * time.Second
)

// Snapshot is a copy of the tracker state
type Snapshot struct {
	Samples      uint64
	Gaps         uint64 // missing sequence numbers
	Reorders     uint64
	Restarts     uint64
	Delay        time.Duration // smoothed one-way delay
	RawDelay     time.Duration
	LastSequence uint32
	LastReceived time.Time
	Quality      Quality
}

// Tracker accumulates statistics for one stream
type Tracker struct {
	mu            sync.RWMutex
	snap          Snapshot
	haveSeq       bool
	haveDelay     bool
	lastAnomaly   time.Time
	smoothingRate float64
}

// NewTracker creates a tracker with no samples
func NewTracker() *Tracker {
	return &Tracker{
		smoothingRate: 0.1, // 10% weight to new samples
		snap:          Snapshot{Quality: QualityLost},
	}
}

// Observe records a sample received at the given time
func (t *Tracker) Observe(s webmsg.Sample, received time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Samples++
	t.snap.LastReceived = received
	t.observeSequence(s.Sequence, received)

	if !s.Timestamp.IsZero() {
		t.observeDelay(received.Sub(s.Timestamp))
	}

	t.snap.Quality = t.qualityAt(received)
}

func (t *Tracker) observeSequence(seq uint32, received time.Time) {
	if !t.haveSeq {
		t.haveSeq = true
		t.snap.LastSequence = seq
		return
	}

	diff := int32(seq - t.snap.LastSequence)
	switch {
	case diff == 1:
		t.snap.LastSequence = seq
	case diff > 1:
		t.snap.Gaps += uint64(diff - 1)
		t.snap.LastSequence = seq
		t.lastAnomaly = received
	case diff < -restartWindow:
		log.Debug().Uint32("from", t.snap.LastSequence).Uint32("to", seq).Msg("Sequence restarted")
		t.snap.Restarts++
		t.snap.LastSequence = seq
		t.lastAnomaly = received
	default:
		t.snap.Reorders++
		t.lastAnomaly = received
	}
}

func (t *Tracker) observeDelay(raw time.Duration) {
	t.snap.RawDelay = raw

	if !t.haveDelay {
		t.snap.Delay = raw
		t.haveDelay = true
		return
	}

	residual := raw - t.snap.Delay
	if residual > maxDelayStep || residual < -maxDelayStep {
		log.Debug().Dur("residual", residual).Msg("Discarding delay sample")
		return
	}
	t.snap.Delay += time.Duration(t.smoothingRate * float64(residual))
}

func (t *Tracker) qualityAt(now time.Time) Quality {
	switch {
	case t.snap.Samples == 0 || now.Sub(t.snap.LastReceived) > StaleAfter:
		return QualityLost
	case !t.lastAnomaly.IsZero() && now.Sub(t.lastAnomaly) < DegradedHold:
		return QualityDegraded
	default:
		return QualityGood
	}
}

// CheckQuality re-evaluates quality at now, which ages out staleness
func (t *Tracker) CheckQuality(now time.Time) Quality {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Quality = t.qualityAt(now)
	return t.snap.Quality
}

// Snapshot returns a copy of the current statistics
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Reset forgets the stream, used after reconnecting
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{Quality: QualityLost}
	t.haveSeq = false
	t.haveDelay = false
	t.lastAnomaly = time.Time{}
}
