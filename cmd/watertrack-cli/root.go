package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"watertrack/internal/cli"
	"watertrack/internal/client"
	"watertrack/internal/config"
	"watertrack/internal/loader"
	"watertrack/internal/log"
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	serverURL string
	token     string
	timeout   time.Duration

	httpClient *http.Client
	now        func() time.Time

	client  *client.Client
	session *loader.Session
}

// newRootCmd builds the command tree. httpClient may be nil.
func newRootCmd(httpClient *http.Client) *cobra.Command {
	cli.LoadEnvFile()
	cfg := config.Load()

	a := &app{
		serverURL:  cfg.ServerURL,
		token:      cfg.Token,
		timeout:    cfg.HTTPTimeout,
		httpClient: httpClient,
		now:        time.Now,
	}

	root := &cobra.Command{
		Use:   "watertrack",
		Short: "watertrack – track your daily water intake from the terminal",
		Long: `watertrack talks to a watertrack server. The server address and the
bearer token come from WATERTRACK_URL and WATERTRACK_TOKEN or the flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(log.Config{
				Level:     cfg.SlogLevel(),
				Component: log.ComponentClient,
				Output:    os.Stderr,
			})
			log.SetDefault(logger)
			return a.connect()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.session != nil {
				a.session.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.serverURL, "server", a.serverURL, "watertrack server URL")
	root.PersistentFlags().StringVar(&a.token, "token", a.token, "bearer token")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", a.timeout, "request timeout")

	root.AddCommand(
		newDayCmd(a),
		newWeekCmd(a),
		newMonthCmd(a),
		newDrinkCmd(a),
		newGoalCmd(a),
		newUndoCmd(a),
	)
	return root
}

func (a *app) connect() error {
	if a.token == "" {
		return errors.New("no token: set WATERTRACK_TOKEN or pass --token")
	}
	hc := a.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: a.timeout}
	}
	c, err := client.New(hc, a.serverURL, a.token)
	if err != nil {
		return err
	}
	a.client = c
	a.session = loader.NewSession(c)
	return nil
}

// load makes the month around date available in the session.
func (a *app) load(ctx context.Context, date time.Time) error {
	_, err := a.session.Load(ctx, date).Wait(ctx)
	return a.explain(err)
}

// refresh reloads the month of date after a mutation.
func (a *app) refresh(ctx context.Context, date time.Time) error {
	_, err := a.session.Refresh(ctx, date).Wait(ctx)
	return a.explain(err)
}

func (a *app) explain(err error) error {
	if err != nil && client.IsUnauthorized(err) {
		return fmt.Errorf("server rejected the token: %w", err)
	}
	return err
}
