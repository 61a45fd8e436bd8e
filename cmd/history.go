package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediagrab/internal/history"
	"mediagrab/internal/log"
	"mediagrab/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Re-run an extraction from history",
	Args:  cobra.NoArgs,
	RunE:  historyRun,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all history entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			ok, err := ui.Confirm(cmd.Context(), "Clear all history?")
			if err != nil || !ok {
				return err
			}
		}
		if err := history.Clear(); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		fmt.Fprintln(os.Stderr, "History cleared.")
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyClearCmd)
}

func historyRun(cmd *cobra.Command, args []string) error {
	entries, err := history.Load()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No history entries found.")
		return nil
	}

	if jsonOutput() {
		return writeJSON(os.Stdout, entries)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// Show history in fzf
	items := history.FormatForDisplay(entries)
	idx, err := ui.Select(ctx, "History", items)
	if err != nil {
		return err
	}

	selected := entries[idx]
	log.Debugf("re-extracting: %s (%s)", selected.Title, selected.URL)

	// Prefer the format picked last time, falling back to the selector
	if selected.FormatID != "" && flagFormat == "" {
		cfg.Format = selected.FormatID + "/" + cfg.Format
	}

	return process(ctx, selected.URL)
}
