package ffmpeg

import "context"

// ExtractSpeechAudio writes the first audio stream as 16kHz mono WAV.
func ExtractSpeechAudio(ctx context.Context, input, output string) error {
	opts := append([]Option{MapStream("0:a:0")}, PresetSpeechWAV()...)
	return Run(ctx, input, output, opts...)
}
