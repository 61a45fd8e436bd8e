package site

import (
	"context"
	"net/url"
	"slices"

	"mediagrab/internal/adapter"
	"mediagrab/internal/extractor"
	"mediagrab/internal/format"
	"mediagrab/internal/media"
)

// directExts are the extensions the direct extractor claims.
var directExts = []string{
	"m3u8", "mpd",
	"mp4", "m4v", "webm", "mkv", "mov", "flv", "ts", "3gp",
	"m4a", "mp3", "aac", "ogg", "opus", "wav", "flac",
}

// Direct handles URLs that point straight at a media file or manifest.
type Direct struct{}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Match(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return slices.Contains(directExts, media.DetermineExt(u.String()))
}

func (d *Direct) Extract(ctx context.Context, env extractor.Env, rawURL string) (*extractor.Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, extractor.Failf(d.Name(), "", err, "invalid URL")
	}

	id := baseName(u.Path)
	title := id
	if unescaped, err := url.PathUnescape(id); err == nil {
		title = unescaped
	}

	var descriptor adapter.Descriptor
	switch ext := media.DetermineExt(rawURL); ext {
	case "m3u8":
		descriptor = adapter.HLS{ManifestURL: rawURL, Mode: adapter.Fatal}
	case "mpd":
		descriptor = adapter.DASH{ManifestURL: rawURL, Mode: adapter.Fatal}
	default:
		descriptor = adapter.Direct{URL: rawURL, ID: ext, Ext: ext}
	}

	c := format.NewCollector()
	actx := adapter.Context{ID: id, BaseURL: rawURL, Fetcher: env.Fetcher}
	if err := adapter.Expand(ctx, c, actx, descriptor); err != nil {
		return nil, extractor.Failf(d.Name(), id, err, "expanding media")
	}

	return extractor.Finish(d.Name(), &media.Info{ID: id, Title: title, WebpageURL: rawURL}, c, nil)
}

func init() {
	extractor.RegisterFallback(&Direct{})
}
