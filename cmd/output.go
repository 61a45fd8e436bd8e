package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"
	"golang.org/x/term"

	"mediagrab/internal/media"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	bestStyle   = cellStyle.Foreground(lipgloss.Color("42")).Bold(true)
)

var formatColumns = []string{"ID", "EXT", "RESOLUTION", "BITRATE", "PROTO", "CODECS", "NOTE"}

// printInfo writes the title line and the format table, worst first so the
// best format ends up next to the prompt.
func printInfo(w io.Writer, info *media.Info) {
	fmt.Fprintln(w, titleStyle.Render(lo.CoalesceOrEmpty(info.Title, info.ID)))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("[%s] %s", info.Extractor, info.ID)))
	fmt.Fprintln(w, formatTable(info.Formats, terminalWidth()))

	if langs := info.Subtitles.Languages(); len(langs) > 0 {
		slices.Sort(langs)
		fmt.Fprintln(w, mutedStyle.Render("subtitles: "+strings.Join(langs, ", ")))
	}
}

// formatTable renders formats as a bordered table. width <= 0 leaves the
// table at its natural width.
func formatTable(formats []media.Format, width int) string {
	rows := lo.Map(formats, func(f media.Format, _ int) []string { return formatRow(f) })
	last := len(rows) - 1

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(formatColumns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == last:
				return bestStyle
			}
			return cellStyle
		})
	if width > 0 {
		t = t.Width(width)
	}
	return t.String()
}

func formatRow(f media.Format) []string {
	return []string{
		f.FormatID,
		f.Ext,
		f.Resolution(),
		bitrateLabel(f),
		f.Protocol.String(),
		codecsLabel(f),
		f.Note,
	}
}

// formatLabel is the one-line description shown in the format picker.
func formatLabel(f media.Format) string {
	label := fmt.Sprintf("%-20s %-5s %-11s %-8s %s", f.FormatID, f.Ext, f.Resolution(), bitrateLabel(f), f.Protocol)
	if f.Note != "" {
		label += "  " + f.Note
	}
	return label
}

func bitrateLabel(f media.Format) string {
	if kbps, ok := f.Bitrate().Get(); ok {
		return strconv.FormatFloat(kbps, 'f', 0, 64) + "k"
	}
	return ""
}

func codecsLabel(f media.Format) string {
	return strings.Join(lo.Compact([]string{f.VideoCodec, f.AudioCodec}), ", ")
}

func printSelected(w io.Writer, f media.Format) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(f.FormatID), f.URL)
}

func printPlaylist(w io.Writer, pl *media.Playlist) {
	fmt.Fprintln(w, titleStyle.Render(lo.CoalesceOrEmpty(pl.Title, pl.ID)))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("[%s] %d entries", pl.Extractor, len(pl.Entries))))
	for i, e := range pl.Entries {
		fmt.Fprintf(w, "%3d  %s\n", i+1, entryLabel(e))
	}
}

func entryLabel(e media.Entry) string {
	if e.Info != nil {
		return lo.CoalesceOrEmpty(e.Info.Title, e.Info.ID)
	}
	return lo.CoalesceOrEmpty(e.URL, e.ID)
}

// terminalWidth returns the stdout width, or 0 when stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}
