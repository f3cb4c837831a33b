package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Promptonauts/convey/pkg/api"
	"github.com/Promptonauts/convey/pkg/manifest"
	"github.com/Promptonauts/convey/pkg/models"
	"github.com/Promptonauts/convey/pkg/observability"
	"github.com/Promptonauts/convey/pkg/runner"
	"github.com/Promptonauts/convey/pkg/store"
)

var (
	dbPath       string
	workdir      string
	manifestPath string
)

func main() {
	root := &cobra.Command{
		Use:           "convey",
		Short:         "convey runs CI manifest phases and keeps their history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "convey.db", "path to the run history database")

	root.AddCommand(newRunCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newLogsCmd())
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		log.SetFlags(0)
		log.Fatalf("convey: %v", err)
	}
}

func openStore() (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func newRunCmd() *cobra.Command {
	var channelNames []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the manifest's phases, once per channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			channels, err := manifest.ParseChannels(channelNames)
			if err != nil {
				return err
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metrics := observability.NewMetricsRegistry()
			r := runner.New(st, runner.NewExecutor(workdir), metrics)

			records, err := r.RunMatrix(ctx, pipeline, channels, manifestPath)
			for _, run := range records {
				fmt.Printf("%s  channel=%-7s  state=%-9s  commands=%d/%d\n",
					run.ID, run.Channel, run.State, run.CommandsRun, run.CommandTotal)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "ci.yaml", "manifest file to run")
	cmd.Flags().StringVarP(&workdir, "workdir", "w", "", "working directory for commands")
	cmd.Flags().StringSliceVar(&channelNames, "channels", []string{"stable"}, "release channels to run (stable, nightly, beta)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var channelName string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			channel := models.Channel(channelName)
			if channelName != "" && !channel.Valid() {
				return fmt.Errorf("unknown channel %q", channelName)
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(channel, limit)
			if err != nil {
				return err
			}
			for _, run := range runs {
				dur := "-"
				if run.StartedAt != nil && run.CompletedAt != nil {
					dur = run.CompletedAt.Sub(*run.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Printf("%s  %s  channel=%-7s  state=%-9s  duration=%s\n",
					run.ID, run.CreatedAt.Format(time.RFC3339), run.Channel, run.State, dur)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&channelName, "channel", "", "filter by channel")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func newLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Print the command logs of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			logs, err := st.GetCommandLogs(args[0])
			if err != nil {
				return err
			}
			for _, l := range logs {
				fmt.Printf("[%s #%d] %s (exit=%d, %dms)\n", l.Phase, l.Sequence, l.Command, l.ExitCode, l.LatencyMs)
				if out := strings.TrimRight(l.Output, "\n"); out != "" {
					fmt.Println(out)
				}
			}
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run history and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			srv := api.NewServer(st, observability.NewMetricsRegistry())
			log.Printf("convey: serving on %s", addr)
			return srv.Serve(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8420", "listen address")
	return cmd
}
