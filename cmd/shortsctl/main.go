package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	idFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "id", Usage: "job id", Required: true}
	}

	app := &cli.Command{
		Name:  "shortsctl",
		Usage: "operate the shorts job queue",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env", Usage: "path to an env file", Value: ".env"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: "warn"},
		},
		Commands: []*cli.Command{
			{
				Name:  "enqueue",
				Usage: "create a pending job",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Usage: "URL or local path of the source video", Required: true},
					&cli.StringFlag{Name: "user", Usage: "requester reference"},
					&cli.IntFlag{Name: "fragment-duration", Usage: "fragment length in seconds"},
					&cli.StringFlag{Name: "quality", Usage: "720p, 1080p or 4k", Value: "1080p"},
					&cli.BoolFlag{Name: "subtitles", Usage: "burn in captions", Value: true},
					&cli.StringFlag{Name: "title", Usage: "title banner text"},
					&cli.StringFlag{Name: "title-color", Usage: "title color preset"},
					&cli.StringFlag{Name: "title-size", Usage: "title size preset"},
					&cli.StringFlag{Name: "subtitle-color", Usage: "caption color preset"},
					&cli.StringFlag{Name: "subtitle-size", Usage: "caption size preset"},
				},
				Action: enqueueAction,
			},
			{
				Name:   "status",
				Usage:  "show a job and its fragments",
				Flags:  []cli.Flag{idFlag()},
				Action: statusAction,
			},
			{
				Name:  "list",
				Usage: "list recent jobs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "number of jobs", Value: 20},
				},
				Action: listAction,
			},
			{
				Name:   "cancel",
				Usage:  "mark a job failed as cancelled",
				Flags:  []cli.Flag{idFlag()},
				Action: cancelAction,
			},
			{
				Name:   "run",
				Usage:  "process one pending job in this process",
				Flags:  []cli.Flag{idFlag()},
				Action: runAction,
			},
			{
				Name:   "sweep",
				Usage:  "fail jobs that exceeded the maximum age",
				Action: sweepAction,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations",
				Action: migrateAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
