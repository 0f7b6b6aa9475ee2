package media

import "math"

// epsilon absorbs float error in durations that come from ffprobe.
const epsilon = 1e-3

// Span is a [Start, Start+Duration) window in seconds. A zero Duration means
// "until the end of the input".
type Span struct {
	Start    float64
	Duration float64
}

// PlanChunks slices duration into ceil(duration/threshold) spans of at most
// threshold seconds. A duration within the threshold, or unknown, yields one span.
func PlanChunks(duration, threshold float64) []Span {
	if duration <= 0 || threshold <= 0 || duration <= threshold+epsilon {
		return []Span{{Start: 0, Duration: max(duration, 0)}}
	}

	n := int(math.Ceil(duration/threshold - epsilon))
	spans := make([]Span, 0, n)
	for i := range n {
		start := float64(i) * threshold
		spans = append(spans, Span{Start: start, Duration: math.Min(threshold, duration-start)})
	}
	return spans
}

// PlanFragments cuts a chunk of duration d into fragments of length f.
//
// A chunk shorter than minFragment becomes a single fragment of its own
// length. Otherwise floor(d/f) fragments of exactly f seconds are produced;
// a remainder of at least minFragment becomes one extra fragment and a
// shorter remainder is dropped.
func PlanFragments(d, f, minFragment float64) []Span {
	if d < minFragment || f <= 0 {
		return []Span{{Start: 0, Duration: max(d, 0)}}
	}

	n := int(math.Floor(d/f + epsilon))
	spans := make([]Span, 0, n+1)
	for i := range n {
		spans = append(spans, Span{Start: float64(i) * f, Duration: f})
	}
	if rem := d - float64(n)*f; rem+epsilon >= minFragment {
		spans = append(spans, Span{Start: float64(n) * f, Duration: rem})
	}
	return spans
}
