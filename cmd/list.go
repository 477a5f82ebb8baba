package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved posts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		posts, err := a.store.List(listLimit)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			fmt.Println("No saved posts.")
			return nil
		}

		for _, p := range posts {
			text := strings.ReplaceAll(p.Text, "\n", " ")
			if len(text) > 70 {
				text = text[:67] + "..."
			}
			fmt.Printf("%-22s @%-16s %3d replies  %s\n", p.PostID, p.AuthorHandle, p.ReplyCount, text)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum rows to show (0 = all)")
	rootCmd.AddCommand(listCmd)
}
