package ffmpeg

// Preset bundles combine common option combinations.

// PresetShorts returns h264 options for vertical fragment output at a fixed
// frame rate with a capped bitrate.
func PresetShorts(fps int, maxRate string) []Option {
	opts := []Option{
		VideoCodec("libx264"),
		CRF(21),
		Preset("veryfast"),
		PixelFormat("yuv420p"),
		FrameRate(fps),
	}
	if maxRate != "" {
		opts = append(opts, MaxBitrate(maxRate, maxRate))
	}
	return opts
}

// PresetAAC returns options for AAC audio encoding.
func PresetAAC() []Option {
	return []Option{
		AudioCodec("aac"),
		AudioBitrate("192k"),
		AudioChannels(2),
	}
}

// PresetSpeechWAV returns options for 16kHz mono PCM, the input speech recognizers expect.
func PresetSpeechWAV() []Option {
	return []Option{
		NoVideo,
		AudioCodec("pcm_s16le"),
		AudioSampleRate(16000),
		AudioChannels(1),
	}
}

// PresetSlice returns options for a zero-based stream-copy slice of all streams.
func PresetSlice() []Option {
	return []Option{
		MapStream("0"),
		CopyAll,
		ZeroTimestamps,
	}
}
