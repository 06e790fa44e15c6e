package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mmcdole/covergen/internal/domain"
	"github.com/mmcdole/covergen/internal/service"
)

func newLibrariesCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "libraries [query]",
		Short: "List libraries with their exclusion keys and titles",
		Long: `Lists the libraries of every configured server together with the key used
by libraries.exclude and the titles their covers will carry. An optional
query ranks libraries by how closely their names match it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireServers(); err != nil {
				return err
			}

			headers := []string{"SERVER", "LIBRARY", "TYPE", "KEY", "TITLE", ""}
			var (
				rows  [][]string
				names []string
			)
			for _, srv := range a.servers {
				cols, err := srv.ListCollections(cmd.Context())
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s: %v\n", srv.Name(), err)
					continue
				}
				for _, c := range cols {
					names = append(names, c.Name)
				}
				if len(args) == 1 {
					cols = service.RankCollections(cols, args[0])
				}
				for _, c := range cols {
					rows = append(rows, libraryRow(srv.Name(), c, a.titles.Title(c.Name), a.cfg.Libraries.Exclude))
				}
			}

			out := cmd.OutOrStdout()
			if isTerminal(os.Stdout) {
				t := table.New().
					Border(lipgloss.RoundedBorder()).
					BorderStyle(BorderStyle).
					Headers(headers...).
					Rows(rows...).
					StyleFunc(func(row, col int) lipgloss.Style {
						if row == table.HeaderRow {
							return HeaderStyle
						}
						return CellStyle
					})
				fmt.Fprintln(out, t.Render())
			} else {
				for _, r := range rows {
					fmt.Fprintln(out, strings.Join(r, "\t"))
				}
			}

			printSuggestions(cmd.ErrOrStderr(), a.titles.Unmatched(names))
			return nil
		},
	}
	return cmd
}

// libraryRow formats one collection for the libraries table
func libraryRow(server string, c domain.Collection, title domain.Title, exclude []string) []string {
	key := c.ExclusionKey(server)
	mark := ""
	if slices.Contains(exclude, key) {
		mark = "excluded"
	}
	titleText := title.Zh
	if title.En != "" {
		titleText += " / " + title.En
	}
	kind := string(c.Type)
	if kind == "" {
		kind = "mixed"
	}
	return []string{server, c.Name, kind, key, titleText, mark}
}
