package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/service"
	"github.com/mmcdole/covergen/internal/titles"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		libraries []string
		force     bool
		style     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate and upload covers for every library",
		Long: `Generates a cover for every library of every configured server and uploads
it. Libraries whose newest item already produced the current cover are
skipped unless --force is given.

Stopping the run (Ctrl+C) finishes the library in progress first.`,
		Example: `  # Update every library
  covergen run

  # Only libraries whose name resembles "movies" or "anime", ignoring history
  covergen run --library movies --library anime --force

  # Try another style without editing the config
  covergen run --style multi_2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireServers(); err != nil {
				return err
			}

			if style != "" {
				a.cfg.Cover.Style = style
			}
			opts, err := a.cfg.Options()
			if err != nil {
				return err
			}
			opts.Libraries = libraries
			opts.Force = force

			res, runErr := a.covers.Run(cmd.Context(), a.servers, opts)

			out := cmd.OutOrStdout()
			renderSummary(out, res, isTerminal(os.Stdout))
			if runErr == nil {
				warnUnmatchedTitles(cmd.ErrOrStderr(), a.titles, res)
			}

			if runErr != nil {
				return fmt.Errorf("run stopped: %w", runErr)
			}
			if res.AllFailed() {
				return fmt.Errorf("every library failed; see the log at %s", a.cfg.Logging.File)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&libraries, "library", "l", nil, "Only update libraries matching this name or id (repeatable)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Regenerate covers even when they are up to date")
	cmd.Flags().StringVarP(&style, "style", "s", "", fmt.Sprintf("Override the configured style %v", domain.Styles()))

	return cmd
}

// warnUnmatchedTitles reports title mapping keys that match no library listed
// during the run, including libraries left out by --library
func warnUnmatchedTitles(w io.Writer, r *titles.Resolver, res service.Result) {
	if err := r.Err(); err != nil {
		fmt.Fprintf(w, "Warning: title configuration ignored: %v\n", err)
		return
	}
	if len(res.Catalog) == 0 {
		return
	}
	printSuggestions(w, r.Unmatched(res.Catalog))
}

func printSuggestions(w io.Writer, suggestions []titles.Suggestion) {
	for _, s := range suggestions {
		if s.Closest != "" {
			fmt.Fprintf(w, "Warning: title entry %q matches no library (did you mean %q?)\n", s.Key, s.Closest)
		} else {
			fmt.Fprintf(w, "Warning: title entry %q matches no library\n", s.Key)
		}
	}
}
