package source

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wenzapen/bookrule/cmd/app"
)

var SourceCmd = &cobra.Command{
	Use:   "source",
	Short: "manage stored book sources",
	Long:  "import, list, show and delete the book sources kept in the local database",
}

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "import book sources from exported json files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Boot()
		if err != nil {
			return err
		}
		defer a.Close()
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			n, err := a.Store.Import(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: imported %d sources\n", path, n)
		}
		return nil
	},
}

var all bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list stored book sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Boot()
		if err != nil {
			return err
		}
		defer a.Close()
		sources, err := a.Store.List(cmd.Context(), !all)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, s := range sources {
			state := "on"
			if !s.Enabled {
				state = "off"
			}
			fmt.Fprintf(w, "%-3s %-24s %s\n", state, s.BookSourceName, s.BookSourceURL)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <url>",
	Short: "print a stored book source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Boot()
		if err != nil {
			return err
		}
		defer a.Close()
		src, err := a.Engine.LoadSource(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return app.Print(cmd.OutOrStdout(), src)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <url>",
	Short: "delete a stored book source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Boot()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Store.Delete(cmd.Context(), args[0])
	},
}

func init() {
	listCmd.Flags().BoolVarP(&all, "all", "a", false, "include disabled sources")
	SourceCmd.AddCommand(importCmd, listCmd, showCmd, deleteCmd)
}
