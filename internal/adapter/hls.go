package adapter

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
	"github.com/samber/lo"
	"github.com/samber/mo"

	"mediagrab/internal/log"
	"mediagrab/internal/media"
)

// HLS is an m3u8 playlist to expand into its variants.
type HLS struct {
	ManifestURL string
	// ID prefixes every variant's format ID. Defaults to "hls".
	ID string
	// Ext defaults to "mp4".
	Ext                string
	Mode               Mode
	LanguagePreference int
	Note               string
}

func (h HLS) mode() Mode { return h.Mode }

// Expand fetches and parses the playlist. A master playlist yields one record
// per variant plus audio renditions and subtitle tracks; a media playlist
// yields a single record.
func (h HLS) Expand(ctx context.Context, actx Context) ([]media.Format, media.Subtitles, error) {
	manifest := actx.resolve(h.ManifestURL)
	resp, err := actx.fetch(ctx, manifest, "Downloading m3u8 information")
	if err != nil {
		return nil, nil, fmt.Errorf("fetching m3u8 %s: %w", manifest, err)
	}

	body, dropped := dropOrphanVariants(resp.Body)
	if dropped > 0 {
		log.Debugf("%s: skipping %d variant tags without a URI in %s", actx.ID, dropped, manifest)
	}
	playlist, kind, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing m3u8 %s: %w", manifest, err)
	}

	prefix := h.ID
	if prefix == "" {
		prefix = "hls"
	}

	if kind == m3u8.MEDIA {
		return []media.Format{h.record(actx, manifest, manifest, prefix)}, nil, nil
	}

	master, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, nil, fmt.Errorf("parsing m3u8 %s: unexpected playlist type %T", manifest, playlist)
	}

	var (
		formats []media.Format
		subs    media.Subtitles
		seen    = make(map[string]struct{})
	)
	for i, v := range master.Variants {
		if v == nil || v.URI == "" || v.Iframe {
			continue
		}
		f := h.record(actx, resolveRef(manifest, v.URI), manifest, variantID(prefix, i, v))
		applyVariant(&f, v.VariantParams)
		formats = append(formats, f)

		for _, alt := range v.Alternatives {
			if alt == nil || alt.URI == "" {
				continue
			}
			altURL := resolveRef(manifest, alt.URI)
			if _, dup := seen[altURL]; dup {
				continue
			}
			seen[altURL] = struct{}{}

			switch strings.ToUpper(alt.Type) {
			case "AUDIO":
				a := h.record(actx, altURL, manifest, prefix+"-audio-"+slug(lo.CoalesceOrEmpty(alt.Name, alt.GroupId)))
				a.VideoCodec = media.CodecNone
				a.Language = alt.Language
				formats = append(formats, a)
			case "SUBTITLES":
				lang := lo.CoalesceOrEmpty(alt.Language, "und")
				subs = subs.Merge(media.Subtitles{lang: {{URL: altURL, Ext: "vtt", Name: alt.Name}}})
			}
		}
	}

	if len(formats) == 0 {
		return nil, subs, fmt.Errorf("m3u8 %s: %w", manifest, ErrEmptyManifest)
	}
	log.Debugf("%s: %d HLS formats from %s", actx.ID, len(formats), manifest)
	return formats, subs, nil
}

func (h HLS) record(actx Context, rawURL, manifest, id string) media.Format {
	ext := h.Ext
	if ext == "" {
		ext = "mp4"
	}
	return media.Format{
		URL:                rawURL,
		FormatID:           id,
		Protocol:           media.HLS,
		Ext:                ext,
		ManifestURL:        manifest,
		LanguagePreference: h.LanguagePreference,
		Note:               h.Note,
		Headers:            maps.Clone(actx.Headers),
	}
}

// dropOrphanVariants removes #EXT-X-STREAM-INF tags that no URI line
// follows. The decoder would otherwise apply their attributes to the next
// variant.
func dropOrphanVariants(body []byte) ([]byte, int) {
	lines := bytes.Split(body, []byte("\n"))
	out := make([][]byte, 0, len(lines))
	dropped := 0
	for i, line := range lines {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("#EXT-X-STREAM-INF")) && !uriFollows(lines[i+1:]) {
			dropped++
			continue
		}
		out = append(out, line)
	}
	if dropped == 0 {
		return body, 0
	}
	return bytes.Join(out, []byte("\n")), dropped
}

// uriFollows reports whether the next line that is neither blank nor a
// comment is a URI.
func uriFollows(lines [][]byte) bool {
	for _, l := range lines {
		l = bytes.TrimSpace(l)
		if len(l) == 0 || (l[0] == '#' && !bytes.HasPrefix(l, []byte("#EXT"))) {
			continue
		}
		return l[0] != '#'
	}
	return false
}

// variantID names a variant by bitrate, then height, then position.
func variantID(prefix string, index int, v *m3u8.Variant) string {
	if v.Bandwidth > 0 {
		return prefix + "-" + strconv.Itoa(int(v.Bandwidth/1000))
	}
	if _, h, ok := parseResolution(v.Resolution); ok {
		return prefix + "-" + strconv.Itoa(h) + "p"
	}
	return prefix + "-" + strconv.Itoa(index)
}

func applyVariant(f *media.Format, p m3u8.VariantParams) {
	if p.Bandwidth > 0 {
		f.TotalBitrate = mo.Some(float64(p.Bandwidth) / 1000)
	}
	if w, h, ok := parseResolution(p.Resolution); ok {
		f.Width = mo.Some(w)
		f.Height = mo.Some(h)
	}
	vcodec, acodec := splitCodecs(p.Codecs)
	f.VideoCodec = vcodec
	f.AudioCodec = acodec
	if acodec != "" && vcodec == "" && p.Resolution == "" {
		f.VideoCodec = media.CodecNone
	}
	if p.Name != "" {
		f.Note = p.Name
	}
}

// parseResolution reads "WxH". Malformed values are ignored.
func parseResolution(s string) (w, h int, ok bool) {
	ws, hs, found := strings.Cut(strings.ToLower(s), "x")
	if !found {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

var (
	videoCodecs = []string{"avc", "hvc", "hev", "vp8", "vp9", "vp09", "av01", "mp4v", "dvh"}
	audioCodecs = []string{"mp4a", "ac-3", "ec-3", "opus", "vorbis", "flac", "mp3"}
)

// splitCodecs separates an RFC 6381 CODECS list into video and audio.
func splitCodecs(codecs string) (vcodec, acodec string) {
	for _, c := range strings.Split(codecs, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		lc := strings.ToLower(c)
		switch {
		case vcodec == "" && hasAnyPrefix(lc, videoCodecs):
			vcodec = c
		case acodec == "" && hasAnyPrefix(lc, audioCodecs):
			acodec = c
		}
	}
	return vcodec, acodec
}

func hasAnyPrefix(s string, prefixes []string) bool {
	return lo.ContainsBy(prefixes, func(p string) bool { return strings.HasPrefix(s, p) })
}

func resolveRef(base, ref string) string {
	return Context{BaseURL: base}.resolve(ref)
}

func slug(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "default"
	}
	return strings.Join(strings.Fields(s), "_")
}
