// Package reader holds the commands that read books through stored sources.
package reader

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wenzapen/bookrule/cmd/app"
	"github.com/wenzapen/bookrule/model"
	"go.uber.org/zap"
)

var (
	sourceURLs []string
	kindTitle  string
	bookURL    string
)

var SearchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "search books",
	Long:  "search books with the given sources, or with every enabled source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Boot()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		var sources []*model.BookSource
		if len(sourceURLs) == 0 {
			if sources, err = a.Store.List(ctx, true); err != nil {
				return err
			}
		} else {
			for _, u := range sourceURLs {
				src, err := a.Engine.LoadSource(ctx, u)
				if err != nil {
					return err
				}
				sources = append(sources, src)
			}
		}
		books, err := a.Engine.SearchAll(ctx, args[0], sources)
		if err != nil {
			a.Logger.Warn("some sources failed", zap.Error(err))
		}
		return app.Print(cmd.OutOrStdout(), books)
	},
}

var ExploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "list the discovery menu of a source or browse one entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSource(cmd, func(ctx context.Context, a *app.App, src *model.BookSource) error {
			kinds, err := a.Engine.ExploreKinds(ctx, src)
			if err != nil {
				return err
			}
			if kindTitle == "" {
				return app.Print(cmd.OutOrStdout(), kinds)
			}
			for _, k := range kinds {
				if k.Title == kindTitle && k.URL != "" {
					books, err := a.Engine.Explore(ctx, k.URL, src)
					if err != nil {
						return err
					}
					return app.Print(cmd.OutOrStdout(), books)
				}
			}
			return fmt.Errorf("no explore entry %q", kindTitle)
		})
	},
}

var InfoCmd = &cobra.Command{
	Use:   "info <bookUrl>",
	Short: "show the details of a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSource(cmd, func(ctx context.Context, a *app.App, src *model.BookSource) error {
			book, err := a.Engine.GetBookInfo(ctx, args[0], src)
			if err != nil {
				return err
			}
			return app.Print(cmd.OutOrStdout(), book)
		})
	},
}

var TocCmd = &cobra.Command{
	Use:   "toc <bookUrl>",
	Short: "list the chapters of a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSource(cmd, func(ctx context.Context, a *app.App, src *model.BookSource) error {
			book, err := a.Engine.GetBookInfo(ctx, args[0], src)
			if err != nil {
				return err
			}
			chapters, err := a.Engine.GetChapterList(ctx, book, src)
			if err != nil {
				return err
			}
			return app.Print(cmd.OutOrStdout(), chapters)
		})
	},
}

var ContentCmd = &cobra.Command{
	Use:   "content <chapterUrl>",
	Short: "print the text of a chapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSource(cmd, func(ctx context.Context, a *app.App, src *model.BookSource) error {
			chapter := &model.BookChapter{URL: args[0], BookURL: bookURL}
			text, err := a.Engine.GetChapterContent(ctx, chapter, src)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		})
	},
}

func withSource(cmd *cobra.Command, run func(context.Context, *app.App, *model.BookSource) error) error {
	if len(sourceURLs) != 1 {
		return fmt.Errorf("exactly one --source is required")
	}
	a, err := app.Boot()
	if err != nil {
		return err
	}
	defer a.Close()
	src, err := a.Engine.LoadSource(cmd.Context(), sourceURLs[0])
	if err != nil {
		return err
	}
	return run(cmd.Context(), a, src)
}

func init() {
	for _, c := range []*cobra.Command{SearchCmd, ExploreCmd, InfoCmd, TocCmd, ContentCmd} {
		c.Flags().StringSliceVarP(&sourceURLs, "source", "s", nil, "book source url")
	}
	ExploreCmd.Flags().StringVarP(&kindTitle, "kind", "k", "", "explore entry title")
	ContentCmd.Flags().StringVarP(&bookURL, "book", "b", "", "url of the chapter's book")
}
