package cmd

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <post-id>...",
	Short: "Delete saved posts and their snapshots",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for _, id := range args {
			if err := a.store.Delete(id); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					fmt.Printf("not found: %s\n", id)
					continue
				}
				return err
			}
			fmt.Printf("deleted: %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
