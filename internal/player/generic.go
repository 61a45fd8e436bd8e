package player

import (
	"context"

	"mediagrab/internal/media"
)

// Generic implements the Player interface for players like iina and celluloid
// that accept mpv-compatible arguments.
type Generic struct {
	name string
}

func (g *Generic) Name() string { return g.name }

func (g *Generic) Available() bool { return available(g.name) }

func (g *Generic) Args(f media.Format, title, subFile string) []string {
	return mpvArgs(f, title, subFile)
}

// Play launches the generic player.
func (g *Generic) Play(ctx context.Context, f media.Format, title, subFile string) error {
	return run(ctx, g.name, g.Args(f, title, subFile))
}
