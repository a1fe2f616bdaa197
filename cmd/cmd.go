package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/wenzapen/bookrule/cmd/app"
	"github.com/wenzapen/bookrule/cmd/reader"
	"github.com/wenzapen/bookrule/cmd/source"
	"github.com/wenzapen/bookrule/config"
	"github.com/wenzapen/bookrule/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version",
	Long:  "print version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version.Printer()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "write a configuration file with the defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteFile(app.ConfigPath, config.Default()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", app.ConfigPath)
		return nil
	},
}

func Execute() {
	var rootCmd = &cobra.Command{
		Use:          "bookrule",
		Short:        "read books through book source rules",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", config.DefaultPath, "configuration file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(
		versionCmd,
		configCmd,
		source.SourceCmd,
		reader.SearchCmd,
		reader.ExploreCmd,
		reader.InfoCmd,
		reader.TocCmd,
		reader.ContentCmd,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
