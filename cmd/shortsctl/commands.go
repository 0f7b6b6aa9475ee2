package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"thirdcoast.systems/shorts/internal/application"
	"thirdcoast.systems/shorts/internal/config"
	"thirdcoast.systems/shorts/internal/db"
	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/internal/pipeline"
)

type appContext struct {
	conf  *config.Config
	dbc   *db.DatabaseConnection
	store *db.Store
}

func newAppContext(ctx context.Context, cmd *cli.Command) (*appContext, error) {
	conf, err := config.LoadConfig(ctx, cmd.String("env"))
	if err != nil {
		return nil, err
	}
	application.NewLogger(cmd.String("log-level"), "text")

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		return nil, err
	}
	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &appContext{conf: conf, dbc: dbc, store: db.NewStore(dbc)}, nil
}

func (a *appContext) Close() { a.dbc.Close() }

func jobID(cmd *cli.Command) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(cmd.String("id")))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid job id %q", cmd.String("id"))
	}
	return id, nil
}

func enqueueAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	settings := jobs.Settings{
		FragmentDuration: int(cmd.Int("fragment-duration")),
		Quality:          cmd.String("quality"),
		SubtitlesEnabled: cmd.Bool("subtitles"),
		Title:            cmd.String("title"),
		TitleColor:       cmd.String("title-color"),
		TitleSize:        cmd.String("title-size"),
		SubtitleColor:    cmd.String("subtitle-color"),
		SubtitleSize:     cmd.String("subtitle-size"),
	}.Normalize(app.conf.FragmentLimits())

	job, err := app.store.CreateJob(ctx, cmd.String("user"), strings.TrimSpace(cmd.String("source")), settings)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	fmt.Println(job.ID)
	return nil
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	id, err := jobID(cmd)
	if err != nil {
		return err
	}
	app, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	job, err := app.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	frags, err := app.store.ListFragments(ctx, id)
	if err != nil {
		return err
	}
	return printJob(os.Stdout, job, frags)
}

func printJob(w io.Writer, job *jobs.Job, frags []*jobs.Fragment) error {
	fmt.Fprintf(w, "Job:      %s\n", job.ID)
	fmt.Fprintf(w, "Source:   %s\n", job.SourceRef)
	if job.SourceTitle != "" {
		fmt.Fprintf(w, "Title:    %s\n", job.SourceTitle)
	}
	fmt.Fprintf(w, "Status:   %s (%d%%)\n", job.Status, job.Progress)
	fmt.Fprintf(w, "Created:  %s\n", humanize.Time(job.CreatedAt))
	if job.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:    %s\n", job.ErrorMessage)
	}
	if len(frags) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.Header("#", "Chunk", "Start", "Duration", "Size", "Link")
	for _, f := range frags {
		if err := table.Append(
			fmt.Sprint(f.Number),
			fmt.Sprint(f.ChunkIndex),
			fmt.Sprintf("%.2f", f.StartTime),
			fmt.Sprintf("%.2f", f.Duration),
			humanize.Bytes(uint64(max(f.SizeBytes, 0))),
			f.ExternalLink,
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func listAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	list, err := app.store.ListRecentJobs(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Status", "Progress", "Source", "Created")
	for _, j := range list {
		if err := table.Append(
			j.ID.String(),
			string(j.Status),
			fmt.Sprintf("%d%%", j.Progress),
			j.SourceRef,
			humanize.Time(j.CreatedAt),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func cancelAction(ctx context.Context, cmd *cli.Command) error {
	id, err := jobID(cmd)
	if err != nil {
		return err
	}
	app, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.store.GetJob(ctx, id); err != nil {
		return err
	}
	if err := pipeline.Cancel(ctx, app.store, id); err != nil {
		return err
	}
	job, err := app.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", job.ID, job.Status)
	return nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	id, err := jobID(cmd)
	if err != nil {
		return err
	}
	app, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	host, _ := os.Hostname()
	orch := application.NewOrchestrator(app.conf, app.store, "shortsctl-"+host)
	out, err := orch.Run(ctx, id)
	fmt.Printf("%s %s fragments=%d\n", id, out.Status, out.Fragments)
	return err
}

func sweepAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	s := &pipeline.Sweeper{Store: app.store, MaxAge: app.conf.StaleJobMaxAge()}
	ids, err := s.SweepOnce(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	fmt.Printf("failed %d stale jobs\n", len(ids))
	return nil
}

func migrateAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.dbc.Migrate(ctx)
}
