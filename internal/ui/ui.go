// Package ui runs fzf for interactive choices. Items reach fzf as plain text
// on stdin; no preview commands or shell-evaluated strings are passed.
package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

var (
	// ErrCancelled reports that the user dismissed fzf.
	ErrCancelled = errors.New("selection cancelled")
	// ErrNoItems reports a selection over an empty list.
	ErrNoItems = errors.New("no items to select from")
)

// fzfCancelled is fzf's exit code for ctrl-c and esc.
const fzfCancelled = 130

// Select presents items via fzf and returns the index of the chosen one.
func Select(ctx context.Context, prompt string, items []string) (int, error) {
	if len(items) == 0 {
		return -1, ErrNoItems
	}

	out, err := runFzf(ctx, numbered(items),
		"--prompt", prompt+" > ",
		"--height", "40%",
		"--reverse",
		"--with-nth", "2..", // hide the index column
		"--delimiter", "\t",
		"--no-multi",
		"--cycle",
	)
	if err != nil {
		return -1, err
	}
	return parseSelection(out, len(items))
}

// Pick is Select over arbitrary values, labelled by label.
func Pick[T any](ctx context.Context, prompt string, items []T, label func(T) string) (T, error) {
	idx, err := Select(ctx, prompt, lo.Map(items, func(item T, _ int) string { return label(item) }))
	if err != nil {
		var zero T
		return zero, err
	}
	return items[idx], nil
}

// Confirm asks a yes/no question.
func Confirm(ctx context.Context, prompt string) (bool, error) {
	idx, err := Select(ctx, prompt, []string{"Yes", "No"})
	if err != nil {
		return false, err
	}
	return idx == 0, nil
}

// Input prompts for free text using fzf's --print-query.
func Input(ctx context.Context, prompt string) (string, error) {
	out, err := runFzf(ctx, "",
		"--prompt", prompt+" > ",
		"--height", "10%",
		"--reverse",
		"--print-query",
		"--no-info",
	)
	// fzf exits 1 with --print-query when nothing matched the query
	var exitErr *exec.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.ExitCode() == 1) {
		return "", err
	}

	query, _, _ := strings.Cut(out, "\n")
	if query = strings.TrimSpace(query); query == "" {
		return "", fmt.Errorf("no input provided")
	}
	return query, nil
}

func runFzf(ctx context.Context, input string, args ...string) (string, error) {
	fzfPath, err := exec.LookPath("fzf")
	if err != nil {
		return "", fmt.Errorf("fzf not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, fzfPath, args...)
	cmd.Stdin = strings.NewReader(input)
	cmd.Stderr = os.Stderr

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == fzfCancelled {
			return "", ErrCancelled
		}
		return stdout.String(), fmt.Errorf("fzf failed: %w", err)
	}
	return stdout.String(), nil
}

// numbered prefixes each item with its index and a tab so the choice can be
// mapped back regardless of duplicate labels.
func numbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		// Tabs and newlines in labels would shift the columns
		item = strings.NewReplacer("\t", " ", "\n", " ").Replace(item)
		fmt.Fprintf(&b, "%d\t%s\n", i, item)
	}
	return b.String()
}

// parseSelection maps fzf's output line back to an index below n.
func parseSelection(out string, n int) (int, error) {
	selected := strings.TrimSpace(out)
	if selected == "" {
		return -1, fmt.Errorf("no selection made")
	}

	field, _, _ := strings.Cut(selected, "\t")
	idx, err := strconv.Atoi(field)
	if err != nil {
		return -1, fmt.Errorf("parsing selection index: %w", err)
	}
	if idx < 0 || idx >= n {
		return -1, fmt.Errorf("selection index %d out of range", idx)
	}
	return idx, nil
}
