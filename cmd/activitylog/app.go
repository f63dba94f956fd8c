package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"example.com/activitylog/internal/auth"
	"example.com/activitylog/internal/config"
	"example.com/activitylog/internal/domain"
	"example.com/activitylog/internal/kv"
	"example.com/activitylog/internal/logging"
	"example.com/activitylog/internal/persistence"
	"example.com/activitylog/internal/prompt"
)

func newApp(in io.Reader, out io.Writer) *cli.App {
	terminal := prompt.NewTerminal(in, out)

	return &cli.App{
		Name:      "activitylog",
		Usage:     "Record physical activities with their type, duration and date.",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "show every activity in insertion order",
				Action: func(c *cli.Context) error {
					return withController(c, func(ctx context.Context, controller *domain.Controller) error {
						items, err := controller.List(ctx)
						if err != nil {
							return err
						}
						return printActivities(c.App.Writer, items)
					})
				},
			},
			{
				Name:  "add",
				Usage: "record a new activity",
				Flags: activityFlags(),
				Action: func(c *cli.Context) error {
					return withController(c, func(ctx context.Context, controller *domain.Controller) error {
						var (
							created domain.Activity
							err     error
						)
						if input, ok := inputFromFlags(c); ok {
							created, err = controller.Add(ctx, input)
						} else {
							created, err = prompt.NewFlows(terminal, controller).Add(ctx)
						}
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "added %s\n", created.ID)
						return nil
					})
				},
			},
			{
				Name:      "edit",
				Usage:     "change the activity with the given id",
				ArgsUsage: "<id>",
				Flags:     activityFlags(),
				Action: func(c *cli.Context) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					return withController(c, func(ctx context.Context, controller *domain.Controller) error {
						var edited domain.Activity
						if input, ok := inputFromFlags(c); ok {
							edited, err = controller.Edit(ctx, id, input)
						} else {
							edited, err = prompt.NewFlows(terminal, controller).Edit(ctx, id)
						}
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "updated %s\n", edited.ID)
						return nil
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "remove the activity with the given id",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "skip the confirmation dialog"},
				},
				Action: func(c *cli.Context) error {
					id, err := idArg(c)
					if err != nil {
						return err
					}
					return withController(c, func(ctx context.Context, controller *domain.Controller) error {
						var removed int
						if c.Bool("yes") {
							removed, err = controller.Delete(ctx, id)
						} else {
							removed, err = prompt.NewFlows(terminal, controller).Delete(ctx, id)
						}
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "deleted %d\n", removed)
						return nil
					})
				},
			},
			{
				Name:  "token",
				Usage: "issue a bearer token for the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Value: "cli"},
					&cli.StringSliceFlag{Name: "scope", Value: cli.NewStringSlice(auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					if cfg.Auth.Secret == "" {
						return errors.New("auth secret not configured")
					}
					token, err := auth.Issue(auth.Config{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer}, c.String("subject"), c.StringSlice("scope"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, token)
					return nil
				},
			},
		},
	}
}

func activityFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "type", Usage: "activity type, e.g. Running"},
		&cli.StringFlag{Name: "duration", Usage: "duration in minutes"},
		&cli.StringFlag{Name: "date", Usage: "activity date as YYYY-MM-DD"},
	}
}

// inputFromFlags reports ok only when every field was given on the command line.
func inputFromFlags(c *cli.Context) (domain.ActivityInput, bool) {
	if !c.IsSet("type") || !c.IsSet("duration") || !c.IsSet("date") {
		return domain.ActivityInput{}, false
	}
	return domain.ActivityInput{
		Type:     c.String("type"),
		Duration: c.String("duration"),
		Date:     c.String("date"),
	}, true
}

func idArg(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", errors.New("activity id required")
	}
	return id, nil
}

// withController loads the configured store and hands a ready controller to fn.
// A cancelled dialog is reported but is not an error.
func withController(c *cli.Context, fn func(context.Context, *domain.Controller) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logging.Configure(cfg.Logging.Logger()); err != nil {
		return err
	}

	ctx := c.Context
	store, err := kv.Open(ctx, cfg.Store.KV())
	if err != nil {
		return err
	}
	defer store.Close()

	controller := domain.NewController(persistence.NewActivityStore(store))
	if err := controller.Init(ctx); err != nil {
		return err
	}

	err = fn(ctx, controller)
	if errors.Is(err, prompt.ErrCancelled) {
		fmt.Fprintln(c.App.Writer, "cancelled")
		return nil
	}
	return err
}

func printActivities(w io.Writer, items []domain.Activity) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no activities recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tMINUTES")
	for _, a := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\n", a.ID, domain.FormatDateForInput(a.Date), a.Type, a.DurationMin)
	}
	return tw.Flush()
}
