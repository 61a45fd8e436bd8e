package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediagrab/internal/download"
	"mediagrab/internal/extractor"
	"mediagrab/internal/format"
	"mediagrab/internal/history"
	"mediagrab/internal/httputil"
	"mediagrab/internal/log"
	"mediagrab/internal/media"
	"mediagrab/internal/player"
	"mediagrab/internal/subtitle"
	"mediagrab/internal/ui"
)

// extractRun is the default command: mediagrab <url>
func extractRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var pageURL string
	if len(args) > 0 {
		pageURL = args[0]
	} else {
		// Prompt for the URL via fzf
		var err error
		pageURL, err = ui.Input(ctx, "URL")
		if err != nil {
			return fmt.Errorf("no URL provided: %w", err)
		}
	}

	return process(ctx, pageURL)
}

func newEnv() extractor.Env {
	return extractor.Env{
		Fetcher:       httputil.New(time.Duration(cfg.TimeoutSeconds)*time.Second, cfg.UserAgent),
		VideoPassword: cfg.VideoPassword,
	}
}

// process runs the whole extract -> select -> output flow for one page.
func process(ctx context.Context, pageURL string) error {
	if err := httputil.ValidateHTTPURL(pageURL); err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	env := newEnv()
	e, _, err := extractor.Match(pageURL)
	if err != nil {
		return err
	}
	log.WithField("extractor", e.Name()).Debugf("extracting %s", pageURL)

	res, err := e.Extract(ctx, env, pageURL)
	if err != nil {
		return explain(err)
	}

	if res.IsPlaylist() {
		return handlePlaylist(ctx, env, res.Playlist)
	}
	return handleInfo(ctx, env, pageURL, res.Info)
}

// explain adds a hint to errors the user can act on.
func explain(err error) error {
	switch {
	case errors.Is(err, extractor.ErrGeoRestricted):
		return fmt.Errorf("%w (a proxy or VPN in the listed countries may help)", err)
	case errors.Is(err, extractor.ErrAuthRequired) && cfg.VideoPassword == "":
		return fmt.Errorf("%w (try --video-password)", err)
	}
	return err
}

// jsonOutput reports whether results go to stdout as JSON: when asked for,
// or when stdout is not a terminal.
func jsonOutput() bool {
	return flagJSON || !term.IsTerminal(int(os.Stdout.Fd()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// handleInfo selects a format of a single media item and prints, plays or
// downloads it.
func handleInfo(ctx context.Context, env extractor.Env, pageURL string, info *media.Info) error {
	acting := flagDownload || flagPlay

	if flagList || (!acting && !flagPick) {
		if jsonOutput() {
			return writeJSON(os.Stdout, info)
		}
		printInfo(os.Stdout, info)
		if flagList {
			return nil
		}
	}

	f, err := chooseFormat(ctx, info)
	if err != nil {
		return err
	}
	log.Debugf("selected format %s (%s)", f.FormatID, f.Protocol)

	if !acting {
		if jsonOutput() {
			return writeJSON(os.Stdout, f)
		}
		printSelected(os.Stdout, f)
		return nil
	}

	subFile, cleanup := fetchSubtitle(ctx, env, info)
	defer cleanup()

	title := lo.CoalesceOrEmpty(info.Title, info.ID)
	if flagDownload {
		dir := flagOutput
		if dir == "" {
			dir, err = cfg.ExpandDownloadDir()
			if err != nil {
				return fmt.Errorf("resolving download dir: %w", err)
			}
		}
		outputPath, err := download.Download(ctx, f, title, dir, subFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Downloaded: %s\n", outputPath)
	} else {
		p := player.New(cfg.Player)
		if !p.Available() {
			return fmt.Errorf("player %q not found in PATH", cfg.Player)
		}
		if err := p.Play(ctx, f, title, subFile); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
	}

	// Save to history
	if cfg.History {
		entry := media.HistoryEntry{
			ID:        info.ID,
			Title:     title,
			Extractor: info.Extractor,
			FormatID:  f.FormatID,
			URL:       pageURL,
			Time:      time.Now(),
		}
		if err := history.Save(entry); err != nil {
			log.Warnf("saving history failed: %v", err)
		}
	}
	return nil
}

// chooseFormat applies --pick or the configured selector.
func chooseFormat(ctx context.Context, info *media.Info) (media.Format, error) {
	if !flagPick {
		return format.Select(info.Formats, cfg.Format, cfg.MaxHeight)
	}

	// Best first in the picker
	choices := slices.Clone(info.Formats)
	slices.Reverse(choices)
	return ui.Pick(ctx, "Format", choices, formatLabel)
}

// fetchSubtitle downloads the best subtitle for the configured language.
// Failures only cost the subtitles.
func fetchSubtitle(ctx context.Context, env extractor.Env, info *media.Info) (string, func()) {
	noop := func() {}
	if flagNoSubs || len(info.Subtitles) == 0 {
		return "", noop
	}

	lang, best := subtitle.BestMatch(info.Subtitles, cfg.SubsLanguage)
	if best == nil {
		log.Infof("no %s subtitles among %v", cfg.SubsLanguage, info.Subtitles.Languages())
		return "", noop
	}

	tmpDir, err := subtitle.NewTempDir()
	if err != nil {
		log.Warnf("subtitles disabled: %v", err)
		return "", noop
	}
	subFile, err := tmpDir.Download(ctx, env.Fetcher, *best)
	if err != nil {
		log.Warnf("subtitle download failed: %v", err)
		tmpDir.Cleanup()
		return "", noop
	}
	log.Debugf("subtitle file (%s): %s", lang, subFile)
	return subFile, tmpDir.Cleanup
}

// handlePlaylist lists the entries, or resolves and processes the picked or
// every entry when acting on them.
func handlePlaylist(ctx context.Context, env extractor.Env, pl *media.Playlist) error {
	acting := flagDownload || flagPlay

	if !acting && !flagPick {
		if jsonOutput() {
			return writeJSON(os.Stdout, pl)
		}
		printPlaylist(os.Stdout, pl)
		return nil
	}
	if len(pl.Entries) == 0 {
		return fmt.Errorf("playlist %s has no entries", pl.ID)
	}

	entries := pl.Entries
	if flagPick {
		picked, err := ui.Pick(ctx, "Entry", entries, entryLabel)
		if err != nil {
			return err
		}
		entries = []media.Entry{picked}
	}

	var failed int
	for _, e := range entries {
		info, err := resolveEntry(ctx, env, e)
		if err == nil {
			err = handleInfo(ctx, env, lo.CoalesceOrEmpty(e.URL, info.WebpageURL), info)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warnf("%s: %v", lo.CoalesceOrEmpty(e.ID, e.URL), err)
			failed++
		}
	}
	if failed == len(entries) {
		return fmt.Errorf("all %d playlist entries failed", failed)
	}
	return nil
}

// resolveEntry returns the media of a playlist entry, extracting deferred
// entries with the extractor they name.
func resolveEntry(ctx context.Context, env extractor.Env, e media.Entry) (*media.Info, error) {
	if !e.Deferred() {
		return e.Info, nil
	}

	ex, ok := extractor.Lookup(e.Extractor)
	if !ok {
		var err error
		if ex, _, err = extractor.Match(e.URL); err != nil {
			return nil, err
		}
	}

	res, err := ex.Extract(ctx, env, e.URL)
	if err != nil {
		return nil, explain(err)
	}
	if res.IsPlaylist() {
		return nil, fmt.Errorf("%s: nested playlists are not supported", e.URL)
	}
	return res.Info, nil
}
