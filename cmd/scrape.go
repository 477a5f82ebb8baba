package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"threadmirror/internal/pipeline"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>...",
	Short: "Scrape one or more thread URLs and persist them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var failures int
		for _, url := range args {
			res, err := a.pipeline.Run(cmd.Context(), url)
			if err != nil {
				failures++
				fmt.Printf("FAILED    %s\n  %v\n", url, err)
				continue
			}
			switch res.State {
			case pipeline.StateSkipped:
				fmt.Printf("SKIPPED   %s (post %s already saved)\n", url, res.PostID)
			case pipeline.StatePersisted:
				fmt.Printf("PERSISTED %s (post %s, %d replies)\n", url, res.PostID, len(res.Thread.Replies))
				if res.Report != "" {
					fmt.Printf("\n%s\n\n", res.Report)
				}
			}
		}

		if failures > 0 {
			return fmt.Errorf("%d of %d URLs failed", failures, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}
