// Package history records completed extractions in a TSV file.
// Uses atomic writes (temp+rename) to prevent data corruption.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"mediagrab/internal/config"
	"mediagrab/internal/filesystem"
	"mediagrab/internal/media"
)

// TSV columns: url, id, title, extractor, format_id, unix time
const numColumns = 6

// Load reads the history file and returns all entries.
func Load() ([]media.HistoryEntry, error) {
	path, err := config.HistoryPath()
	if err != nil {
		return nil, err
	}

	f, err := filesystem.API().Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	var entries []media.HistoryEntry
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseLine(line)
		if err != nil {
			continue // Skip malformed lines
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	return entries, nil
}

// Save writes or updates the entry for the same page URL.
func Save(entry media.HistoryEntry) error {
	entries, err := Load()
	if err != nil {
		return err
	}

	if _, i, found := lo.FindIndexOf(entries, func(e media.HistoryEntry) bool { return e.URL == entry.URL }); found {
		entries[i] = entry
	} else {
		entries = append(entries, entry)
	}
	return write(entries)
}

// Remove deletes the entry for a page URL.
func Remove(url string) error {
	entries, err := Load()
	if err != nil {
		return err
	}
	return write(lo.Reject(entries, func(e media.HistoryEntry, _ int) bool { return e.URL == url }))
}

// Clear deletes every entry.
func Clear() error {
	return write(nil)
}

// write replaces the history file atomically: temp file, then rename.
func write(entries []media.HistoryEntry) error {
	path, err := config.HistoryPath()
	if err != nil {
		return err
	}

	fsys := filesystem.API()
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}

	tmpFile, err := afero.TempFile(fsys.Fs, dir, "history-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	writer := bufio.NewWriter(tmpFile)
	for _, e := range entries {
		if _, err := writer.WriteString(formatLine(e) + "\n"); err != nil {
			tmpFile.Close()
			fsys.Remove(tmpPath)
			return fmt.Errorf("writing history: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		tmpFile.Close()
		fsys.Remove(tmpPath)
		return fmt.Errorf("flushing history: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		fsys.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := fsys.Rename(tmpPath, path); err != nil {
		fsys.Remove(tmpPath)
		return fmt.Errorf("renaming history file: %w", err)
	}

	return nil
}

// FormatForDisplay creates display strings for history entries.
func FormatForDisplay(entries []media.HistoryEntry) []string {
	return lo.Map(entries, func(e media.HistoryEntry, _ int) string {
		display := fmt.Sprintf("%s  [%s]", e.Title, e.Extractor)
		if e.FormatID != "" {
			display += " " + e.FormatID
		}
		if !e.Time.IsZero() {
			display += "  " + e.Time.Local().Format("2006-01-02 15:04")
		}
		return display
	})
}

// parseLine parses a TSV line into a HistoryEntry.
func parseLine(line string) (media.HistoryEntry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < numColumns {
		return media.HistoryEntry{}, fmt.Errorf("expected %d columns, got %d", numColumns, len(fields))
	}

	var when time.Time
	if sec, err := strconv.ParseInt(fields[5], 10, 64); err == nil && sec > 0 {
		when = time.Unix(sec, 0).UTC()
	}

	return media.HistoryEntry{
		URL:       fields[0],
		ID:        fields[1],
		Title:     fields[2],
		Extractor: fields[3],
		FormatID:  fields[4],
		Time:      when,
	}, nil
}

// formatLine converts a HistoryEntry to a TSV line. Tabs and newlines in
// free-text fields are flattened to spaces.
func formatLine(e media.HistoryEntry) string {
	var sec int64
	if !e.Time.IsZero() {
		sec = e.Time.Unix()
	}
	return strings.Join([]string{
		clean(e.URL),
		clean(e.ID),
		clean(e.Title),
		clean(e.Extractor),
		clean(e.FormatID),
		strconv.FormatInt(sec, 10),
	}, "\t")
}

func clean(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}
