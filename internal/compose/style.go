// Package compose builds the vertical layout filter graph: a blurred cover
// background, the source centered in a band, and burned-in text.
package compose

import (
	"os"
	"strings"

	"thirdcoast.systems/shorts/internal/jobs"
)

// DefaultFallbackFont is used when neither configured font exists.
const DefaultFallbackFont = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

// Canvas is the output frame size.
type Canvas struct {
	W int
	H int
}

var canvases = map[string]Canvas{
	jobs.Quality720p:  {W: 720, H: 1280},
	jobs.Quality1080p: {W: 1080, H: 1920},
	jobs.Quality4K:    {W: 2160, H: 3840},
}

// CanvasFor maps a quality preset to a canvas, 1080x1920 when unknown.
func CanvasFor(quality string) Canvas {
	if c, ok := canvases[strings.ToLower(quality)]; ok {
		return c
	}
	return canvases[jobs.Quality1080p]
}

type colorPreset struct {
	Fill   string
	Border string
}

var colors = map[string]colorPreset{
	"white":  {"white", "black"},
	"red":    {"red", "white"},
	"blue":   {"#0066FF", "white"},
	"yellow": {"yellow", "black"},
	"green":  {"#00FF66", "black"},
	"orange": {"orange", "black"},
	"purple": {"#9966FF", "white"},
	"pink":   {"#FF66CC", "black"},
}

func colorFor(name string) colorPreset {
	if c, ok := colors[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return colors["white"]
}

// Font size ratios of canvas height.
type sizePreset struct {
	Title   float64
	Caption float64
}

var sizes = map[string]sizePreset{
	"small":       {0.03, 0.04},
	"medium":      {0.04, 0.05},
	"large":       {0.05, 0.06},
	"extra_large": {0.06, 0.07},
}

func sizeFor(name string) sizePreset {
	if s, ok := sizes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s
	}
	return sizes["medium"]
}

// Vertical anchors as ratios of canvas height.
const (
	TitleY     = 0.05
	SubheaderY = 0.12
	CaptionY   = 0.80

	BlurSigma = 20.0
	BandRatio = 0.70
)

// TextStyle describes one drawtext layer.
type TextStyle struct {
	Text        string
	Font        string
	Color       string
	BorderColor string
	FontSize    int
	BorderWidth int
	// Y is the top of the text as a ratio of canvas height.
	Y float64
}

// Style is the complete, immutable look of a job's output.
type Style struct {
	Canvas    Canvas
	BlurSigma float64
	BandRatio float64
	Title     TextStyle
	Subheader TextStyle
	Caption   TextStyle
}

// Fonts names the configured font files.
type Fonts struct {
	Title    string
	Fallback string
}

// Resolve returns the first font file that exists, ending with DefaultFallbackFont.
func (f Fonts) Resolve() string {
	for _, p := range []string{f.Title, f.Fallback} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return DefaultFallbackFont
}

// NewStyle derives the style for a job from its settings.
func NewStyle(settings jobs.Settings, fonts Fonts, subheader string) Style {
	canvas := CanvasFor(settings.Quality)
	font := fonts.Resolve()
	border := borderWidth(canvas.H)

	titleColor := colorFor(settings.TitleColor)
	titleSize := sizeFor(settings.TitleSize)
	capColor := colorFor(settings.SubtitleColor)
	capSize := sizeFor(settings.SubtitleSize)

	return Style{
		Canvas:    canvas,
		BlurSigma: BlurSigma,
		BandRatio: BandRatio,
		Title: TextStyle{
			Text:        settings.Title,
			Font:        font,
			Color:       titleColor.Fill,
			BorderColor: titleColor.Border,
			FontSize:    ratio(canvas.H, titleSize.Title),
			BorderWidth: border,
			Y:           TitleY,
		},
		Subheader: TextStyle{
			Text:        subheader,
			Font:        font,
			Color:       "white",
			BorderColor: "black",
			FontSize:    ratio(canvas.H, sizes["small"].Title),
			BorderWidth: border,
			Y:           SubheaderY,
		},
		Caption: TextStyle{
			Font:        font,
			Color:       capColor.Fill,
			BorderColor: capColor.Border,
			FontSize:    ratio(canvas.H, capSize.Caption),
			BorderWidth: border,
			Y:           CaptionY,
		},
	}
}

func ratio(h int, r float64) int {
	return int(float64(h)*r + 0.5)
}

func borderWidth(h int) int {
	return max(2, 3*h/1920)
}
