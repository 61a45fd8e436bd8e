package adapter

import (
	"context"
	"fmt"
	"maps"
	"mime"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/zencoder/go-dash/v3/mpd"

	"mediagrab/internal/log"
	"mediagrab/internal/media"
)

// DASH is an MPD manifest to expand into its representations.
type DASH struct {
	ManifestURL string
	// ID prefixes every representation's format ID. Defaults to "dash".
	ID                 string
	Mode               Mode
	LanguagePreference int
	Note               string
}

func (d DASH) mode() Mode { return d.Mode }

// Expand fetches and parses the MPD. Every representation becomes a record
// named "<id>-<representation id>"; text adaptation sets become subtitles.
// Representations addressed by segment template have no URL of their own
// and are keyed by the manifest URL plus a "#<representation id>" fragment.
func (d DASH) Expand(ctx context.Context, actx Context) ([]media.Format, media.Subtitles, error) {
	manifest := actx.resolve(d.ManifestURL)
	resp, err := actx.fetch(ctx, manifest, "Downloading MPD manifest")
	if err != nil {
		return nil, nil, fmt.Errorf("fetching mpd %s: %w", manifest, err)
	}

	doc, err := mpd.ReadFromString(string(resp.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing mpd %s: %w", manifest, err)
	}

	prefix := d.ID
	if prefix == "" {
		prefix = "dash"
	}

	var (
		formats []media.Format
		subs    media.Subtitles
	)
	base := joinBase(manifest, attr(doc.BaseURL))
	for _, period := range doc.Periods {
		if period == nil {
			continue
		}
		periodBase := joinBase(base, attr(period.BaseURL))
		for _, set := range period.AdaptationSets {
			if set == nil {
				continue
			}
			for i, rep := range set.Representations {
				if rep == nil {
					continue
				}
				mimeType := lo.CoalesceOrEmpty(attr(rep.MimeType), attr(set.MimeType))
				codecs := lo.CoalesceOrEmpty(attr(rep.Codecs), attr(set.Codecs))
				kind := contentKind(attr(set.ContentType), mimeType, codecs)
				repID := lo.CoalesceOrEmpty(attr(rep.ID), strconv.Itoa(i))

				repURL := manifest + "#" + repID
				if ref := attr(rep.BaseURL); ref != "" {
					repURL = joinBase(periodBase, ref)
				}

				if kind == "text" {
					lang := lo.CoalesceOrEmpty(attr(set.Lang), "und")
					subs = subs.Merge(media.Subtitles{lang: {{URL: repURL, Ext: subtitleExt(mimeType, codecs)}}})
					continue
				}

				formats = append(formats, d.record(actx, manifest, representation{
					id:       prefix + "-" + repID,
					url:      repURL,
					kind:     kind,
					mimeType: mimeType,
					codecs:   codecs,
					lang:     attr(set.Lang),
					width:    attrInt(rep.Width),
					height:   attrInt(rep.Height),
					bps:      attrInt(rep.Bandwidth),
				}))
			}
		}
	}

	if len(formats) == 0 && len(subs) == 0 {
		return nil, nil, fmt.Errorf("mpd %s: %w", manifest, ErrEmptyManifest)
	}
	log.Debugf("%s: %d DASH formats from %s", actx.ID, len(formats), manifest)
	return formats, subs, nil
}

// representation is what a record needs from one MPD Representation, with
// adaptation set values already inherited.
type representation struct {
	id, url, kind, mimeType, codecs, lang string
	width, height, bps                   int64
}

func (d DASH) record(actx Context, manifest string, rep representation) media.Format {
	f := media.Format{
		URL:                rep.url,
		FormatID:           rep.id,
		Protocol:           media.DASH,
		Ext:                dashExt(rep.kind, rep.mimeType),
		ManifestURL:        manifest,
		Language:           rep.lang,
		LanguagePreference: d.LanguagePreference,
		Note:               d.Note,
		Headers:            maps.Clone(actx.Headers),
	}
	if rep.width > 0 {
		f.Width = mo.Some(int(rep.width))
	}
	if rep.height > 0 {
		f.Height = mo.Some(int(rep.height))
	}

	kbps := mo.None[float64]()
	if rep.bps > 0 {
		kbps = mo.Some(float64(rep.bps) / 1000)
	}
	f.TotalBitrate = kbps
	switch rep.kind {
	case "video":
		f.VideoCodec = rep.codecs
		f.AudioCodec = media.CodecNone
		f.VideoBitrate = kbps
	case "audio":
		f.AudioCodec = rep.codecs
		f.VideoCodec = media.CodecNone
		f.AudioBitrate = kbps
	default:
		f.VideoCodec, f.AudioCodec = splitCodecs(rep.codecs)
	}
	return f
}

// attr reads an optional MPD attribute or element. The mpd model keeps
// them as pointers, and repeatable elements such as BaseURL as slices.
func attr(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case *string:
		if s != nil {
			return strings.TrimSpace(*s)
		}
	case []string:
		if len(s) > 0 {
			return strings.TrimSpace(s[0])
		}
	}
	return ""
}

// attrInt reads an optional numeric MPD attribute. Missing or malformed
// values are zero.
func attrInt(v any) int64 {
	switch n := v.(type) {
	case *int64:
		if n != nil {
			return *n
		}
	case int64:
		return n
	case *uint64:
		if n != nil {
			return int64(*n)
		}
	case *uint32:
		if n != nil {
			return int64(*n)
		}
	case *int:
		if n != nil {
			return int64(*n)
		}
	default:
		if i, err := strconv.ParseInt(attr(v), 10, 64); err == nil {
			return i
		}
	}
	return 0
}

// contentKind returns "video", "audio", "text" or "" from the adaptation
// set's contentType, the codecs or the MIME type.
func contentKind(contentType, mimeType, codecs string) string {
	if contentType != "" {
		return strings.ToLower(contentType)
	}
	if strings.HasPrefix(codecs, "stpp") || codecs == "wvtt" {
		return "text"
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ""
	}
	major, sub, _ := strings.Cut(mt, "/")
	switch {
	case major == "video" || major == "audio" || major == "text":
		return major
	case sub == "ttml+xml":
		return "text"
	}
	return ""
}

func dashExt(kind, mimeType string) string {
	_, sub, _ := strings.Cut(mimeType, "/")
	switch {
	case sub == "webm":
		return "webm"
	case kind == "audio":
		return "m4a"
	}
	return "mp4"
}

func subtitleExt(mimeType, codecs string) string {
	if strings.Contains(mimeType, "ttml") || strings.HasPrefix(codecs, "stpp") {
		return "ttml"
	}
	return "vtt"
}

func joinBase(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return base
	}
	return resolveRef(base, ref)
}
