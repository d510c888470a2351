// ABOUTME: Per-channel time series of received samples
// ABOUTME: Shared between the client goroutine and the UI ticker
package series

import (
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/VILLASframework/villas-live-go/pkg/webmsg"
)

// DefaultMaxPoints bounds each channel independently of the window
const DefaultMaxPoints = 20000

// Point is one value of one channel
type Point struct {
	Time  time.Time
	Value float32
}

// Channel is a snapshot of one series
type Channel struct {
	Index  int
	Name   string
	Points []Point
	Last   float32
	Min    float32
	Max    float32
}

// Label returns the signal name or a positional fallback
func (c Channel) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return "Index " + strconv.Itoa(c.Index)
}

// Store keeps the points of every channel seen so far
type Store struct {
	mu        sync.Mutex
	window    Window
	names     []string
	channels  [][]Point
	maxPoints int
	now       func() time.Time
}

// NewStore creates an empty store
func NewStore(w Window) *Store {
	return &Store{
		window:    w,
		maxPoints: DefaultMaxPoints,
		now:       time.Now,
	}
}

func (s *Store) Window() Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

func (s *Store) SetWindow(w Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = w
}

// SetNames labels channels by index
func (s *Store) SetNames(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = slices.Clone(names)
}

// Add appends the values of a data sample. Samples without a timestamp
// are recorded at the time they are added.
func (s *Store) Add(sample webmsg.Sample) {
	if sample.Kind != webmsg.KindData || len(sample.Values) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := sample.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	for len(s.channels) < len(sample.Values) {
		s.channels = append(s.channels, nil)
	}
	for i, v := range sample.Values {
		pts := append(s.channels[i], Point{Time: ts, Value: v})
		if len(pts) > s.maxPoints {
			pts = slices.Delete(pts, 0, len(pts)-s.maxPoints)
		}
		s.channels[i] = pts
	}
}

// Prune drops points that left the window
func (s *Store) Prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.window.Past())
	for i, pts := range s.channels {
		s.channels[i] = slices.DeleteFunc(pts, func(p Point) bool {
			return p.Time.Before(cutoff)
		})
	}
}

// Snapshot copies every channel
func (s *Store) Snapshot() []Channel {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Channel, len(s.channels))
	for i, pts := range s.channels {
		ch := Channel{Index: i, Points: slices.Clone(pts)}
		if i < len(s.names) {
			ch.Name = s.names[i]
		}
		if len(pts) > 0 {
			ch.Last = pts[len(pts)-1].Value
			ch.Min, ch.Max = pts[0].Value, pts[0].Value
			for _, p := range pts[1:] {
				ch.Min = min(ch.Min, p.Value)
				ch.Max = max(ch.Max, p.Value)
			}
		}
		out[i] = ch
	}
	return out
}

// Reset forgets all points and channels, keeping names and window
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = nil
}

// Resample averages points into n equal buckets over [from, to).
// Empty buckets are NaN.
func Resample(points []Point, from, to time.Time, n int) []float64 {
	out := make([]float64, n)
	counts := make([]int, n)
	span := to.Sub(from)
	if n <= 0 || span <= 0 {
		return out
	}

	for _, p := range points {
		if p.Time.Before(from) || !p.Time.Before(to) {
			continue
		}
		i := int(int64(p.Time.Sub(from)) * int64(n) / int64(span))
		out[i] += float64(p.Value)
		counts[i]++
	}
	for i := range out {
		if counts[i] == 0 {
			out[i] = math.NaN()
		} else {
			out[i] /= float64(counts[i])
		}
	}
	return out
}
