package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/covergen/internal/domain"
)

func newFontsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fonts",
		Short: "Download and validate every configured font",
		Long: `Resolves the Chinese and English fonts of both style families, downloading
any that are missing or whose configured URL changed, and reports where
each one was found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			families := []domain.StyleFamily{domain.FamilySingle, domain.FamilyMulti}
			pairs := make([]domain.FontPair, len(families))
			errs := make([]error, len(families))

			var g errgroup.Group
			for i, family := range families {
				g.Go(func() error {
					pairs[i], errs[i] = a.fonts.ResolveAll(cmd.Context(), family)
					return nil
				})
			}
			_ = g.Wait()

			out := cmd.OutOrStdout()
			failed := false
			for i, family := range families {
				if errs[i] != nil {
					failed = true
					fmt.Fprintf(out, "%-6s %s\n", family, errs[i])
					continue
				}
				for _, res := range []domain.FontResource{pairs[i].Zh, pairs[i].En} {
					fmt.Fprintf(out, "%-12s %-8s %s\n", res.Role, res.Source, res.Path)
				}
			}
			if failed {
				return fmt.Errorf("some fonts could not be resolved")
			}
			return nil
		},
	}
	return cmd
}
