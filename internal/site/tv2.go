package site

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"mediagrab/internal/adapter"
	"mediagrab/internal/extractor"
	"mediagrab/internal/format"
	"mediagrab/internal/httputil"
	"mediagrab/internal/media"
)

var tv2PathRe = regexp.MustCompile(`^/(?:v\d*/|video/(?:[^/]+/){0,3})(\d+)`)

// tv2Protocols are requested from the playback API in order.
var tv2Protocols = []string{"HLS", "DASH"}

// tv2Device identifies the client to the playback API.
const tv2Device = `{"device":{"id":"1-1-1","name":"Nettleser (HTML)"}}`

// TV2 extracts videos from tv2.no.
type TV2 struct {
	// MetadataBase defaults to https://sumo.tv2.no.
	MetadataBase string
	// PlaybackBase defaults to https://api.sumo.tv2.no.
	PlaybackBase string
}

type tv2Asset struct {
	Title             string            `json:"title"`
	Subtitle          string            `json:"subtitle"`
	Description       string            `json:"description"`
	Live              bool              `json:"live"`
	Images            map[string]string `json:"images"`
	LiveBroadcastTime string            `json:"live_broadcast_time"`
	UpdateTime        string            `json:"update_time"`
	AccurateDuration  float64           `json:"accurateDuration"`
	Duration          float64           `json:"duration"`
	Views             int64             `json:"views"`
	Tags              string            `json:"tags"`
	Keywords          string            `json:"keywords"`
}

type tv2Playback struct {
	Playback struct {
		DRMProtected bool        `json:"drmProtected"`
		Streams      []tv2Stream `json:"streams"`
	} `json:"playback"`
}

type tv2Stream struct {
	URL         string `json:"url"`
	Type        string `json:"type"`
	MediaFormat string `json:"mediaFormat"`
	Bitrate     int    `json:"bitrate"`
	FileSize    int64  `json:"fileSize"`
}

type tv2Error struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (t *TV2) Name() string { return "tv2" }

func (t *TV2) Match(u *url.URL) bool {
	return tv2PathRe.MatchString(u.Path)
}

func (t *TV2) Extract(ctx context.Context, env extractor.Env, rawURL string) (*extractor.Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, extractor.Failf(t.Name(), "", err, "invalid URL")
	}
	m := tv2PathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, extractor.Failf(t.Name(), "", extractor.ErrUnsupported, "no video id in %s", u.Path)
	}
	id := m[1]
	if err := httputil.ValidateNumericID(id); err != nil {
		return nil, extractor.Failf(t.Name(), "", err, "invalid video id")
	}

	asset, err := t.metadata(ctx, env, id)
	if err != nil {
		return nil, err
	}

	c := format.NewCollector()
	sources := &extractor.Sources{}
	actx := adapter.Context{ID: id, Fetcher: env.Fetcher, Failures: sources}
	seen := map[string]bool{}
	drm := false

	for _, protocol := range tv2Protocols {
		playback, err := t.playback(ctx, env, id, protocol)
		if err != nil {
			return nil, err
		}
		drm = playback.Playback.DRMProtected

		for _, s := range playback.Playback.Streams {
			if s.URL == "" || seen[s.URL] {
				continue
			}
			seen[s.URL] = true

			formatID := strings.ToLower(protocol) + "-" + lo.CoalesceOrEmpty(s.Type, s.MediaFormat)
			var d adapter.Descriptor
			switch ext := media.DetermineExt(s.URL); ext {
			case "m3u8":
				if drm {
					continue
				}
				d = adapter.HLS{ManifestURL: s.URL, ID: formatID, Mode: adapter.BestEffort}
			case "mpd":
				d = adapter.DASH{ManifestURL: s.URL, ID: formatID, Mode: adapter.BestEffort}
			case "ism", "f4m":
				continue
			default:
				direct := adapter.Direct{URL: s.URL, ID: formatID}
				if s.Bitrate > 0 {
					direct.TotalBitrate = mo.Some(float64(s.Bitrate))
				}
				if s.FileSize > 0 {
					direct.Filesize = mo.Some(s.FileSize)
				}
				d = direct
			}
			if err := adapter.Expand(ctx, c, actx, d); err != nil {
				return nil, extractor.Failf(t.Name(), id, err, "expanding %s", formatID)
			}
		}
	}

	if c.Len() == 0 && drm {
		return nil, extractor.Expectedf(t.Name(), id, "this video is DRM protected")
	}

	info := &media.Info{
		ID:          id,
		Title:       lo.CoalesceOrEmpty(asset.Subtitle, asset.Title),
		Description: strings.TrimSpace(asset.Description),
		Duration:    lo.CoalesceOrEmpty(asset.AccurateDuration, asset.Duration),
		ViewCount:   asset.Views,
		IsLive:      asset.Live,
		WebpageURL:  rawURL,
		Categories: lo.Compact(lo.Map(strings.Split(lo.CoalesceOrEmpty(asset.Tags, asset.Keywords), ","), func(s string, _ int) string {
			return strings.TrimSpace(s)
		})),
	}
	if ts, err := time.Parse(time.RFC3339, lo.CoalesceOrEmpty(asset.LiveBroadcastTime, asset.UpdateTime)); err == nil {
		info.Timestamp = ts.Unix()
	}
	keys := lo.Keys(asset.Images)
	slices.Sort(keys)
	for _, k := range keys {
		if v := asset.Images[k]; v != "" {
			info.Thumbnails = append(info.Thumbnails, media.Thumbnail{ID: k, URL: v})
		}
	}

	return extractor.Finish(t.Name(), info, c, sources)
}

func (t *TV2) metadata(ctx context.Context, env extractor.Env, id string) (*tv2Asset, error) {
	base := lo.CoalesceOrEmpty(t.MetadataBase, "https://sumo.tv2.no")
	resp, err := env.Fetcher.Fetch(ctx, httputil.BuildURL(base, "rest", "assets", id+".json"), httputil.Options{
		Headers:  map[string]string{"Accept": "application/json"},
		Expected: []int{http.StatusNotFound},
		Note:     "Downloading metadata JSON",
	})
	if err != nil {
		return nil, extractor.Failf(t.Name(), id, err, "downloading metadata")
	}
	if resp.StatusCode == http.StatusNotFound {
		cause := &httputil.HTTPError{URL: resp.URL, StatusCode: resp.StatusCode, Body: resp.Body}
		return nil, extractor.Failf(t.Name(), id, cause, "unable to download JSON metadata - content expired?")
	}

	var asset tv2Asset
	if err := json.Unmarshal(resp.Body, &asset); err != nil {
		return nil, extractor.Failf(t.Name(), id, err, "parsing metadata")
	}
	if asset.Title == "" && asset.Subtitle == "" {
		return nil, extractor.Failf(t.Name(), id, nil, "metadata has no title")
	}
	return &asset, nil
}

// playback asks for the streams of one protocol. A 401 explains why
// playback is refused.
func (t *TV2) playback(ctx context.Context, env extractor.Env, id, protocol string) (*tv2Playback, error) {
	base := lo.CoalesceOrEmpty(t.PlaybackBase, "https://api.sumo.tv2.no")
	var pb tv2Playback
	err := httputil.GetJSON(ctx, env.Fetcher, httputil.BuildURL(base, "play", id), &pb, httputil.Options{
		Method:  http.MethodPost,
		Body:    []byte(tv2Device),
		Headers: map[string]string{"Content-Type": "application/json"},
		Query:   url.Values{"stream": {protocol}},
		Note:    "Downloading playback JSON",
	})
	if err == nil {
		return &pb, nil
	}

	var he *httputil.HTTPError
	if errors.As(err, &he) && he.StatusCode == http.StatusUnauthorized {
		var body tv2Error
		if json.Unmarshal(he.Body, &body) == nil {
			switch body.Error.Code {
			case "ASSET_PLAYBACK_INVALID_GEO_LOCATION":
				return nil, &extractor.GeoRestrictedError{Extractor: t.Name(), Countries: []string{"NO"}}
			case "SESSION_NOT_AUTHENTICATED":
				return nil, &extractor.AuthRequiredError{Extractor: t.Name(), Reason: "log in to watch this video"}
			}
			if body.Error.Description != "" {
				return nil, extractor.Failf(t.Name(), id, err, "%s", body.Error.Description)
			}
		}
	}
	return nil, extractor.Failf(t.Name(), id, err, "downloading %s playback", protocol)
}

func init() {
	extractor.Register(&TV2{}, "tv2.no")
}
