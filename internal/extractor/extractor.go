// Package extractor defines the site extractor contract, the host registry
// and the error taxonomy shared by all extractors.
package extractor

import (
	"context"
	"net/url"

	"mediagrab/internal/httputil"
	"mediagrab/internal/media"
)

// Extractor turns a page URL of one site into media information.
type Extractor interface {
	// Name returns the extractor name (e.g., "bbc", "direct").
	Name() string

	// Match reports whether this extractor handles u. The host has already
	// been matched by the registry, so most extractors check the path.
	Match(u *url.URL) bool

	// Extract retrieves the media described by rawURL.
	Extract(ctx context.Context, env Env, rawURL string) (*Result, error)
}

// Env carries the collaborators an extraction may use.
type Env struct {
	Fetcher httputil.Fetcher
	// VideoPassword unlocks password-protected links.
	VideoPassword string
}

// Result is either a single media item or a playlist.
type Result struct {
	Info     *media.Info
	Playlist *media.Playlist
}

// IsPlaylist reports whether the result lists several entries.
func (r *Result) IsPlaylist() bool { return r != nil && r.Playlist != nil }
