package media

import (
	"context"

	"thirdcoast.systems/shorts/pkg/ffmpeg"
)

// Runner executes a built ffmpeg command.
type Runner func(ctx context.Context, cmd *ffmpeg.Command) error

func runCommand(ctx context.Context, cmd *ffmpeg.Command) error {
	return cmd.Run(ctx)
}

func seekOpts(s float64) []ffmpeg.Option {
	var opts []ffmpeg.Option
	if s > 0 {
		opts = append(opts, ffmpeg.Seek(ffmpeg.Seconds(s)))
	}
	return opts
}
