package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:   "note <handle> [text...]",
	Short: "Show or set the context note for an author",
	Long: `Notes are free-form context about an author (for example "parody
account" or "official company account"). When a thread by a noted author is
scraped, the note is fed to the report prompt as known context.

With only a handle, the stored note is printed. With additional arguments,
they become the new note.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		handle := strings.TrimPrefix(args[0], "@")
		if len(args) == 1 {
			note, err := a.store.GetAuthorNote(handle)
			if err != nil {
				return err
			}
			if note == "" {
				fmt.Printf("no note for @%s\n", handle)
				return nil
			}
			fmt.Printf("@%s: %s\n", handle, note)
			return nil
		}

		note := strings.Join(args[1:], " ")
		if err := a.store.SetAuthorNote(handle, note); err != nil {
			return err
		}
		fmt.Printf("noted @%s\n", handle)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(noteCmd)
}
