package history

import (
	"strings"
	"testing"
	"time"

	"mediagrab/internal/filesystem"
	"mediagrab/internal/media"
)

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	entry := media.HistoryEntry{
		URL:       "https://www.bbc.co.uk/programmes/b039g8p7",
		ID:        "b039g8p7",
		Title:     "Leonard Cohen, Kaleidoscope",
		Extractor: "bbc",
		FormatID:  "hls-1080p",
		Time:      time.Unix(1700000000, 0).UTC(),
	}

	if err := Save(entry); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	entries, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0] != entry {
		t.Errorf("got %+v, want %+v", entries[0], entry)
	}
}

func TestSaveUpdatesExisting(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	entry := media.HistoryEntry{URL: "https://tv2.no/v/1234", ID: "1234", Title: "Nyheter", Extractor: "tv2", FormatID: "hls-720"}
	if err := Save(entry); err != nil {
		t.Fatal(err)
	}

	entry.FormatID = "dash-1080"
	if err := Save(entry); err != nil {
		t.Fatal(err)
	}

	entries, _ := Load()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after update, got %d", len(entries))
	}
	if entries[0].FormatID != "dash-1080" {
		t.Errorf("FormatID = %q, want dash-1080", entries[0].FormatID)
	}
}

func TestRemoveAndClear(t *testing.T) {
	filesystem.SetMemMapFs()
	t.Cleanup(filesystem.SetOsFs)
	t.Setenv("XDG_DATA_HOME", "/data")

	for _, u := range []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"} {
		if err := Save(media.HistoryEntry{URL: u, Title: u}); err != nil {
			t.Fatal(err)
		}
	}

	if err := Remove("https://a.example/2"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	entries, _ := Load()
	if len(entries) != 2 || entries[0].URL != "https://a.example/1" || entries[1].URL != "https://a.example/3" {
		t.Errorf("entries after Remove = %+v", entries)
	}

	if err := Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	entries, _ = Load()
	if len(entries) != 0 {
		t.Errorf("entries after Clear = %+v", entries)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	entries, err := Load()
	if err != nil {
		t.Fatalf("Load() on missing file should not error: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil entries, got %v", entries)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{"valid", "https://a.example/v\tv\tTitle\tyappy\thls-720\t1700000000", false},
		{"no time", "https://a.example/v\tv\tTitle\tyappy\t\t0", false},
		{"too few columns", "https://a.example/v\tv\tTitle", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLine() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFormatLineFlattensTabs(t *testing.T) {
	line := formatLine(media.HistoryEntry{URL: "u", Title: "a\tb\nc"})
	if got := len(strings.Split(line, "\t")); got != numColumns {
		t.Errorf("formatLine produced %d columns, want %d", got, numColumns)
	}

	e, err := parseLine(line)
	if err != nil {
		t.Fatal(err)
	}
	if e.Title != "a b c" || !e.Time.IsZero() {
		t.Errorf("round trip = %+v", e)
	}
}

func TestFormatForDisplay(t *testing.T) {
	items := FormatForDisplay([]media.HistoryEntry{
		{Title: "Clip", Extractor: "dropbox", FormatID: "original"},
		{Title: "Other", Extractor: "direct"},
	})
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
	if items[0] != "Clip  [dropbox] original" {
		t.Errorf("items[0] = %q", items[0])
	}
	if items[1] != "Other  [direct]" {
		t.Errorf("items[1] = %q", items[1])
	}
}
