package player

import (
	"context"

	"mediagrab/internal/download"
	"mediagrab/internal/media"
)

// VLC implements the Player interface for VLC media player.
type VLC struct{}

func (v *VLC) Name() string { return "vlc" }

func (v *VLC) Available() bool { return available("vlc") }

// Args builds the VLC command line. VLC has no generic header option, so
// only the user agent and referrer are forwarded.
func (v *VLC) Args(f media.Format, title, subFile string) []string {
	args := []string{
		download.InputURL(f),
		"--meta-title", title,
		"--play-and-exit",
	}

	if ua := f.Headers["User-Agent"]; ua != "" {
		args = append(args, "--http-user-agent", ua)
	}
	if ref := f.Headers["Referer"]; ref != "" {
		args = append(args, "--http-referrer", ref)
	}

	if subFile != "" {
		args = append(args, "--sub-file", subFile)
	}
	return args
}

// Play launches VLC.
func (v *VLC) Play(ctx context.Context, f media.Format, title, subFile string) error {
	return run(ctx, "vlc", v.Args(f, title, subFile))
}
