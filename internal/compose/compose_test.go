package compose

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/pkg/ffmpeg"
)

func TestCanvasFor(t *testing.T) {
	assert.Equal(t, Canvas{720, 1280}, CanvasFor("720p"))
	assert.Equal(t, Canvas{1080, 1920}, CanvasFor("1080p"))
	assert.Equal(t, Canvas{2160, 3840}, CanvasFor("4K"))
	assert.Equal(t, Canvas{1080, 1920}, CanvasFor("8k"))
	assert.Equal(t, Canvas{1080, 1920}, CanvasFor(""))
}

func TestFontsResolve(t *testing.T) {
	dir := t.TempDir()
	title := filepath.Join(dir, "Title.ttf")
	fallback := filepath.Join(dir, "Fallback.ttf")
	require.NoError(t, os.WriteFile(fallback, nil, 0o644))

	assert.Equal(t, fallback, Fonts{Title: title, Fallback: fallback}.Resolve())

	require.NoError(t, os.WriteFile(title, nil, 0o644))
	assert.Equal(t, title, Fonts{Title: title, Fallback: fallback}.Resolve())

	assert.Equal(t, DefaultFallbackFont, Fonts{Title: filepath.Join(dir, "nope.ttf")}.Resolve())
}

func TestNewStyle(t *testing.T) {
	s := NewStyle(jobs.Settings{
		Quality:       "720p",
		Title:         "Hello",
		TitleColor:    "Blue",
		TitleSize:     "large",
		SubtitleColor: "unknown",
		SubtitleSize:  "extra_large",
	}, Fonts{}, "@channel")

	assert.Equal(t, Canvas{720, 1280}, s.Canvas)
	assert.Equal(t, "#0066FF", s.Title.Color)
	assert.Equal(t, "white", s.Title.BorderColor)
	assert.Equal(t, 64, s.Title.FontSize) // 1280 * 0.05
	assert.Equal(t, 2, s.Title.BorderWidth)
	assert.Equal(t, "white", s.Caption.Color)
	assert.Equal(t, 90, s.Caption.FontSize) // 1280 * 0.07
	assert.Equal(t, CaptionY, s.Caption.Y)
	assert.Equal(t, "@channel", s.Subheader.Text)

	big := NewStyle(jobs.Settings{Quality: "4k"}, Fonts{}, "")
	assert.Equal(t, 6, big.Title.BorderWidth)
	assert.Equal(t, 154, big.Title.FontSize) // 3840 * 0.04 medium
}

func TestCompose(t *testing.T) {
	s := NewStyle(jobs.Settings{Quality: "1080p"}, Fonts{}, "")

	bw, bh := s.BandSize()
	assert.Equal(t, 1080, bw)
	assert.Equal(t, 1344, bh)

	g := Compose(s)
	want := "[0:v]split=2[bg][main];" +
		"[bg]scale=w=1080:h=1920:force_original_aspect_ratio=increase,crop=w=1080:h=1920,gblur=sigma=20[bgb];" +
		"[main]scale=w=1080:h=1344:force_original_aspect_ratio=increase,crop=w=1080:h=1344[fg];" +
		"[bgb][fg]overlay=x=(W-w)/2:y=(H-h)/2,setsar=1,format=yuv420p[vout]"
	assert.Equal(t, want, g.String())
}

func TestCompose_TitleAndOverlays(t *testing.T) {
	s := NewStyle(jobs.Settings{Quality: "1080p", Title: "It's 5:00 [live]"}, Fonts{}, "Follow")
	s.Title.Font = "/f/a.ttf"

	marker := ffmpeg.NewFilter("null")
	g := Compose(s, marker)
	chains := g.Chains()
	require.Len(t, chains, 4)

	last := chains[3]
	require.Len(t, last.Filters, 6)
	assert.Equal(t, "drawtext", last.Filters[2].Name)
	assert.Equal(t, "drawtext", last.Filters[3].Name)
	assert.Equal(t, "null", last.Filters[4].Name)
	assert.Equal(t, "format", last.Filters[5].Name)

	title := last.Filters[2].String()
	assert.True(t, strings.HasPrefix(title, `drawtext=text=It`), title)
	assert.Contains(t, title, "fontfile=/f/a.ttf")
	assert.Contains(t, title, `text=It\\\'s 5\\:00 \[live\]`)
	assert.Contains(t, title, "fontsize=77")
	assert.Contains(t, title, "borderw=3")
	assert.Contains(t, title, "y=h*0.05")
}
