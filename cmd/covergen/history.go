package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmcdole/covergen/internal/history"
	"github.com/mmcdole/covergen/internal/store"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or reset the cover history",
		Long: `The history remembers which items produced each library's cover so that
unchanged libraries are skipped. Clearing it makes the next run regenerate
the affected covers.`,
	}
	cmd.AddCommand(newHistoryShowCmd(root), newHistoryClearCmd(root))
	return cmd
}

// noneOrPair accepts either no arguments or <server> <library-id>
func noneOrPair(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 2 {
		return fmt.Errorf("expected no arguments or <server> <library-id>, got %d", len(args))
	}
	return nil
}

func newHistoryShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [<server> <library-id>]",
		Short: "List libraries with history, or show one library's items newest first",
		Args:  noneOrPair,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()
			return showHistory(cmd.OutOrStdout(), a.history, args)
		},
	}
}

func newHistoryClearCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [<server> <library-id>]",
		Short: "Forget the history of one library, or of every library",
		Args:  noneOrPair,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()
			return clearHistory(cmd.OutOrStdout(), a.history, a.store, args)
		},
	}
}

func showHistory(w io.Writer, h *history.Cache, args []string) error {
	if len(args) == 2 {
		entries, err := h.Entries(args[0], args[1])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(w, "No history for %s-%s\n", args[0], args[1])
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(w, "%s  %s\n", e.Timestamp.Local().Format(time.DateTime), e.ItemID)
		}
		return nil
	}

	refs, err := h.Collections()
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		fmt.Fprintln(w, "No history recorded")
		return nil
	}
	for _, ref := range refs {
		latest, ok, err := h.Latest(ref.Server, ref.CollectionID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ref.Server, ref.CollectionID, latest.ItemID,
			latest.Timestamp.Local().Format(time.DateTime))
	}
	return nil
}

func clearHistory(w io.Writer, h *history.Cache, st *store.Store, args []string) error {
	if len(args) == 2 {
		if err := h.Clear(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(w, "Cleared history for %s-%s\n", args[0], args[1])
		return nil
	}
	if err := st.DeletePrefix(history.KeyPrefix); err != nil {
		return err
	}
	fmt.Fprintln(w, "Cleared all cover history")
	return nil
}
