// Package whisper runs the whisper CLI and reads word-level timings from its JSON output.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
)

// Word is one recognized word with timing in seconds.
type Word struct {
	Text  string
	Start float64
	End   float64
}

type jsonWord struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type jsonSegment struct {
	Text  string     `json:"text"`
	Start float64    `json:"start"`
	End   float64    `json:"end"`
	Words []jsonWord `json:"words"`
}

type jsonPayload struct {
	Language string        `json:"language"`
	Segments []jsonSegment `json:"segments"`
}

// Client runs whisper with word timestamps enabled.
type Client struct {
	// Path to the whisper executable. Defaults to "whisper".
	Path     string
	Model    string
	Device   string
	Language string
	// ExtraArgs are appended after the built-in flags.
	ExtraArgs []string

	execFn func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New returns a client for the given executable and model.
func New(path, model string) *Client {
	return &Client{Path: path, Model: model}
}

func (c *Client) pathOrDefault() string {
	if strings.TrimSpace(c.Path) == "" {
		return "whisper"
	}
	return c.Path
}

func (c *Client) exec(ctx context.Context, args ...string) ([]byte, error) {
	name := c.pathOrDefault()
	if c.execFn != nil {
		return c.execFn(ctx, name, args...)
	}
	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

// Args returns the whisper arguments for an audio file.
func (c *Client) Args(audioPath, outputDir string) []string {
	model := c.Model
	if model == "" {
		model = "base"
	}
	args := []string{
		audioPath,
		"--model", model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--word_timestamps", "True",
		"--verbose", "False",
	}
	if c.Device != "" {
		args = append(args, "--device", c.Device)
	}
	if lang, ok := NormalizeLanguage(c.Language); ok {
		args = append(args, "--language", lang)
	}
	return append(args, c.ExtraArgs...)
}

// Transcribe recognizes speech in audioPath and returns words in temporal order.
func (c *Client) Transcribe(ctx context.Context, audioPath, outputDir string) ([]Word, error) {
	if strings.TrimSpace(audioPath) == "" || strings.TrimSpace(outputDir) == "" {
		return nil, errors.New("whisper: missing inputs")
	}

	out, err := c.exec(ctx, c.Args(audioPath, outputDir)...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("whisper: %w", ctx.Err())
		}
		return nil, fmt.Errorf("whisper failed: %w (output=%s)", err, tail(string(out), 400))
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return nil, fmt.Errorf("whisper output: %w", err)
	}
	words, err := ParseJSON(data)
	if err != nil {
		return nil, err
	}
	slog.Debug("whisper transcription", "audio", audioPath, "words", len(words))
	return words, nil
}

// ParseJSON extracts words from whisper JSON. Segments without word timings
// contribute one entry spanning the segment.
func ParseJSON(data []byte) ([]Word, error) {
	var payload jsonPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("whisper: parse json: %w", err)
	}

	var words []Word
	for _, seg := range payload.Segments {
		if len(seg.Words) == 0 {
			if text := strings.TrimSpace(seg.Text); text != "" && seg.End > seg.Start {
				words = append(words, Word{Text: text, Start: seg.Start, End: seg.End})
			}
			continue
		}
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" || w.Start == nil || w.End == nil {
				continue
			}
			words = append(words, Word{Text: text, Start: *w.Start, End: *w.End})
		}
	}
	return words, nil
}

// NormalizeLanguage converts a BCP 47 tag or name-like code to the base
// language code whisper expects. Empty and "auto" report false.
func NormalizeLanguage(lang string) (string, bool) {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return "", false
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", false
	}
	return base.String(), true
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
