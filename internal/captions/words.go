package captions

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// placeholders are shown when no speech could be recognized.
var placeholders = []string{
	"Welcome",
	"Watch this video",
	"Interesting content",
	"Don't forget to subscribe",
	"Like this video",
	"Share with friends",
	"Leave a comment",
	"Thanks for watching",
	"See you soon",
	"Stay tuned",
}

// maxPlaceholderSeconds bounds how long one placeholder stays on screen.
const maxPlaceholderSeconds = 3.0

// Fallback spreads the placeholder phrases evenly over exactly [0, total],
// cycling through them when the chunk is long.
func Fallback(total float64) []Word {
	if total <= 0 {
		return nil
	}
	n := max(len(placeholders), int(math.Ceil(total/maxPlaceholderSeconds)))
	step := total / float64(n)

	words := make([]Word, n)
	for i := range n {
		words[i] = Word{
			Text:  placeholders[i%len(placeholders)],
			Start: float64(i) * step,
			End:   float64(i+1) * step,
		}
	}
	words[n-1].End = total
	return words
}

// Normalize orders words by start, clamps them into [0, total] and trims
// overlaps so at most one word is active at any time. Empty words and words
// left with no duration are dropped.
func Normalize(words []Word, total float64) []Word {
	sorted := make([]Word, 0, len(words))
	for _, w := range words {
		w.Text = norm.NFC.String(strings.TrimSpace(w.Text))
		if w.Text == "" {
			continue
		}
		sorted = append(sorted, w)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := sorted[:0]
	for _, w := range sorted {
		w.Start = math.Max(w.Start, 0)
		if total > 0 {
			w.End = math.Min(w.End, total)
		}
		if n := len(out); n > 0 && w.Start < out[n-1].End {
			w.Start = out[n-1].End
		}
		if w.End <= w.Start {
			continue
		}
		out = append(out, w)
	}
	return out
}
