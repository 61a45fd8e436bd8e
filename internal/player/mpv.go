package player

import (
	"context"

	"mediagrab/internal/media"
)

// MPV implements the Player interface for mpv.
type MPV struct{}

func (m *MPV) Name() string { return "mpv" }

func (m *MPV) Available() bool { return available("mpv") }

func (m *MPV) Args(f media.Format, title, subFile string) []string {
	return append(mpvArgs(f, title, subFile), "--really-quiet")
}

// Play launches mpv with the given format.
func (m *MPV) Play(ctx context.Context, f media.Format, title, subFile string) error {
	return run(ctx, "mpv", m.Args(f, title, subFile))
}
