package compose

import (
	"strconv"

	"golang.org/x/text/unicode/norm"

	"thirdcoast.systems/shorts/pkg/ffmpeg"
)

// OutputLabel is the graph output carrying the finished video.
const OutputLabel = "vout"

// BandSize is the main video's box: full canvas width, BandRatio of its
// height, rounded down to even dimensions for yuv420p.
func (s Style) BandSize() (int, int) {
	h := int(float64(s.Canvas.H)*s.BandRatio + 0.5)
	return s.Canvas.W &^ 1, h &^ 1
}

// Compose builds the layout graph for input 0. Overlays are appended after
// the title and subheader layers, in order.
func Compose(s Style, overlays ...ffmpeg.Filter) *ffmpeg.Graph {
	w, h := s.Canvas.W, s.Canvas.H
	bw, bh := s.BandSize()

	final := []ffmpeg.Filter{
		ffmpeg.Overlay("(W-w)/2", "(H-h)/2"),
		ffmpeg.SquarePixels(),
	}
	if s.Title.Text != "" {
		final = append(final, s.Title.Filter())
	}
	if s.Subheader.Text != "" {
		final = append(final, s.Subheader.Filter())
	}
	final = append(final, overlays...)
	final = append(final, ffmpeg.Format("yuv420p"))

	return ffmpeg.NewGraph().
		Add([]string{"0:v"}, []string{"bg", "main"}, ffmpeg.Split(2)).
		Add([]string{"bg"}, []string{"bgb"},
			ffmpeg.ScaleCover(w, h),
			ffmpeg.CropCenter(w, h),
			ffmpeg.GaussianBlur(s.BlurSigma),
		).
		Add([]string{"main"}, []string{"fg"},
			ffmpeg.ScaleCover(bw, bh),
			ffmpeg.CropCenter(bw, bh),
		).
		Add([]string{"bgb", "fg"}, []string{OutputLabel}, final...)
}

// Filter renders the text layer horizontally centered at its Y anchor.
func (t TextStyle) Filter() ffmpeg.Filter {
	return t.DrawText(t.Text, ffmpeg.Int(t.FontSize))
}

// DrawText renders text in this style with the given font size and extra params.
func (t TextStyle) DrawText(text string, fontSize ffmpeg.Value, extra ...ffmpeg.Param) ffmpeg.Filter {
	params := append(t.Params(), ffmpeg.P("fontsize", fontSize))
	return ffmpeg.DrawText(norm.NFC.String(text), append(params, extra...)...)
}

// Params are the drawtext parameters shared by every layer with this style,
// excluding text and font size.
func (t TextStyle) Params() []ffmpeg.Param {
	return []ffmpeg.Param{
		ffmpeg.P("fontfile", ffmpeg.Str(t.Font)),
		ffmpeg.P("fontcolor", ffmpeg.Str(t.Color)),
		ffmpeg.P("borderw", ffmpeg.Int(t.BorderWidth)),
		ffmpeg.P("bordercolor", ffmpeg.Str(t.BorderColor)),
		ffmpeg.P("x", ffmpeg.Expr("(w-text_w)/2")),
		ffmpeg.P("y", ffmpeg.Expr("h*"+strconv.FormatFloat(t.Y, 'f', -1, 64))),
	}
}
