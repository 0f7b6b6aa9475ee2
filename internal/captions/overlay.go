package captions

import (
	"fmt"
	"math"
	"strconv"

	"thirdcoast.systems/shorts/internal/compose"
	"thirdcoast.systems/shorts/pkg/ffmpeg"
)

const (
	// PopSeconds is the nominal pop-in window, shortened for shorter words.
	PopSeconds = 0.25
	// PopScale is the peak font growth during pop-in.
	PopScale = 0.25

	// minPop keeps the pop window at or above expression precision (1ms).
	minPop = 0.001
)

// Overlay renders one drawtext layer per word. Each word is visible only
// within [Start, End]; during its pop-in window the font size rises and
// settles back to nominal while opacity ramps from 0 to 1.
func Overlay(words []Word, style compose.TextStyle) []ffmpeg.Filter {
	filters := make([]ffmpeg.Filter, 0, len(words))
	for _, w := range words {
		s, e := num(w.Start), num(w.End)
		p := num(math.Max(minPop, math.Min(PopSeconds, w.End-w.Start)))
		n := strconv.Itoa(style.FontSize)

		size := fmt.Sprintf("if(lt(t,%s+%s),%s*(1+%s*sin(PI*(t-%s)/%s)),%s)", s, p, n, num(PopScale), s, p, n)
		alpha := fmt.Sprintf("if(lt(t,%s+%s),(t-%s)/%s,1)", s, p, s, p)

		filters = append(filters, style.DrawText(w.Text, ffmpeg.Expr(size),
			ffmpeg.P("alpha", ffmpeg.Expr(alpha)),
			ffmpeg.P("enable", ffmpeg.Expr(fmt.Sprintf("between(t,%s,%s)", s, e))),
		))
	}
	return filters
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}
