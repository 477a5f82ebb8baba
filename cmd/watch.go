package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"threadmirror/internal/scheduler"
)

var watchEvery int

var watchCmd = &cobra.Command{
	Use:   "watch <url>...",
	Short: "Periodically re-scrape thread URLs until interrupted",
	Long: `Runs the scrape pipeline for each URL on a fixed interval. Threads
already saved are skipped cheaply, so watching is useful for catching a
thread once it appears or recovering from mirror downtime.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sched := scheduler.New(a.log)
		job := func(ctx context.Context) error {
			for _, url := range args {
				if _, err := a.pipeline.Run(ctx, url); err != nil {
					a.log.WithError(err).WithField("url", url).Error("Watch run failed")
				}
			}
			return nil
		}
		if err := sched.AddIntervalJob("watch", watchEvery, job); err != nil {
			return err
		}

		// One pass immediately, then on the interval.
		if err := job(cmd.Context()); err != nil {
			return err
		}
		sched.Start()
		fmt.Printf("watching %d URL(s) every %d minute(s), Ctrl-C to stop\n", len(args), watchEvery)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		<-sched.Stop().Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchEvery, "every", 30, "minutes between passes")
	rootCmd.AddCommand(watchCmd)
}
