package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// listCmd prints remote paths and library series completing a prefix
var listCmd = &cobra.Command{
	Use:     "list <partial-path>",
	Aliases: []string{"ls", "lst", "l"},
	Short:   "list remote entries matching a prefix",
	Long: `list the remote entries that complete a partial path, along with the names of
matching series in the media library. Directories end in a slash.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		doc, err := loadState(cfg.State.File)
		if err != nil {
			return err
		}

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}

		entries, err := newManager(cfg, nil).List(cmd.Context(), doc, prefix)
		if err != nil {
			return err
		}

		for _, e := range entries {
			fmt.Fprintln(cmd.OutOrStdout(), e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
