package site

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"mediagrab/internal/adapter"
	"mediagrab/internal/extractor"
	"mediagrab/internal/format"
	"mediagrab/internal/httputil"
	"mediagrab/internal/log"
	"mediagrab/internal/media"
)

var (
	yappyVideoRe   = regexp.MustCompile(`^/video/([\da-fA-F]{32})`)
	yappyProfileRe = regexp.MustCompile(`^/profile/([\da-fA-F]{32})`)
)

// yappyMaxPages bounds profile pagination.
const yappyMaxPages = 200

// Yappy extracts yappy.media videos and profile listings.
type Yappy struct {
	// BaseURL defaults to https://yappy.media.
	BaseURL string
}

type yappyNextData struct {
	Props struct {
		PageProps    *yappyState `json:"pageProps"`
		InitialState *yappyState `json:"initialState"`
	} `json:"props"`
}

type yappyState struct {
	Data                *yappyVideo `json:"data"`
	OpenGraphParameters struct {
		Params *yappyVideo `json:"params"`
	} `json:"openGraphParameters"`
	IsError          bool   `json:"isError"`
	ErrorMessage     string `json:"errorMessage"`
	ErrorDescription string `json:"errorDescription"`
}

type yappyVideo struct {
	Link        string          `json:"link"`
	Description string          `json:"description"`
	Thumbnail   string          `json:"thumbnail"`
	PublishedAt string          `json:"publishedAt"`
	ViewsCount  int64           `json:"viewsCount"`
	Categories  []yappyCategory `json:"categories"`
	Creator     *struct {
		UUID     string `json:"uuid"`
		Nickname string `json:"nickname"`
	} `json:"creator"`
	Audio *struct {
		Link     string  `json:"link"`
		Duration float64 `json:"duration"` // milliseconds
	} `json:"audio"`
}

type yappyCategory struct {
	Name string `json:"name"`
}

type yappyPage struct {
	Results []struct {
		UUID string `json:"uuid"`
	} `json:"results"`
	Next string `json:"next"`
}

func (y *Yappy) Name() string { return "yappy" }

func (y *Yappy) Match(u *url.URL) bool {
	return yappyVideoRe.MatchString(u.Path) || yappyProfileRe.MatchString(u.Path)
}

func (y *Yappy) base() string {
	return strings.TrimRight(lo.CoalesceOrEmpty(y.BaseURL, "https://yappy.media"), "/")
}

func (y *Yappy) Extract(ctx context.Context, env extractor.Env, rawURL string) (*extractor.Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, extractor.Failf(y.Name(), "", err, "invalid URL")
	}
	if m := yappyProfileRe.FindStringSubmatch(u.Path); m != nil {
		return y.profile(ctx, env, m[1])
	}
	m := yappyVideoRe.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, extractor.Failf(y.Name(), "", extractor.ErrUnsupported, "no video id in %s", u.Path)
	}
	return y.video(ctx, env, rawURL, m[1])
}

func (y *Yappy) video(ctx context.Context, env extractor.Env, rawURL, id string) (*extractor.Result, error) {
	resp, err := env.Fetcher.Fetch(ctx, rawURL, httputil.Options{Note: "Downloading webpage"})
	if err != nil {
		return nil, extractor.Failf(y.Name(), id, err, "downloading webpage")
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return nil, extractor.Failf(y.Name(), id, err, "parsing webpage")
	}

	video, err := yappyVideoData(doc)
	if err != nil {
		return nil, extractor.Failf(y.Name(), id, err, "unable to extract link")
	}

	info := &media.Info{
		ID:          id,
		Title:       lo.CoalesceOrEmpty(yappyTitle(doc), id),
		Description: lo.CoalesceOrEmpty(jsonLDName(doc), strings.TrimSpace(video.Description)),
		Thumbnail:   video.Thumbnail,
		ViewCount:   video.ViewsCount,
		WebpageURL:  rawURL,
		Categories: lo.FilterMap(video.Categories, func(c yappyCategory, _ int) (string, bool) {
			return c.Name, c.Name != ""
		}),
	}
	if ts, err := time.Parse(time.RFC3339, video.PublishedAt); err == nil {
		info.Timestamp = ts.Unix()
	}
	if video.Creator != nil {
		info.UploaderID = video.Creator.UUID
		info.Uploader = video.Creator.Nickname
	}

	descriptors := []adapter.Descriptor{yappyDescriptor(video.Link)}
	if video.Audio != nil {
		if video.Audio.Link != "" {
			descriptors = append(descriptors, adapter.Direct{
				URL:        video.Audio.Link,
				ID:         "audio",
				VideoCodec: media.CodecNone,
			})
		}
		info.Duration = video.Audio.Duration / 1000
	}

	c := format.NewCollector()
	sources := &extractor.Sources{}
	actx := adapter.Context{ID: id, BaseURL: rawURL, Fetcher: env.Fetcher, Failures: sources}
	if err := adapter.Expand(ctx, c, actx, descriptors...); err != nil {
		return nil, extractor.Failf(y.Name(), id, err, "expanding media")
	}
	return extractor.Finish(y.Name(), info, c, sources)
}

func yappyDescriptor(link string) adapter.Descriptor {
	switch ext := media.DetermineExt(link); ext {
	case "m3u8":
		return adapter.HLS{ManifestURL: link, Mode: adapter.BestEffort}
	case "mpd":
		return adapter.DASH{ManifestURL: link, Mode: adapter.BestEffort}
	default:
		return adapter.Direct{URL: link, Ext: ext}
	}
}

// yappyVideoData reads the video record from the __NEXT_DATA__ script.
func yappyVideoData(doc *goquery.Document) (*yappyVideo, error) {
	var next yappyNextData
	raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text())
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &next); err != nil {
			return nil, err
		}
	}

	state := next.Props.PageProps
	if state == nil {
		state = next.Props.InitialState
	}
	if state == nil {
		return nil, extractor.ErrNoFormats
	}
	if state.Data != nil && httputil.ValidateHTTPURL(state.Data.Link) == nil {
		return state.Data, nil
	}
	if p := state.OpenGraphParameters.Params; p != nil && httputil.ValidateHTTPURL(p.Link) == nil {
		return p, nil
	}

	var parts []string
	if state.IsError {
		parts = append(parts, "error")
	}
	parts = append(parts, lo.Compact([]string{state.ErrorMessage, state.ErrorDescription})...)
	if len(parts) == 0 {
		return nil, extractor.ErrNoFormats
	}
	return nil, &extractor.ExtractionError{Extractor: "yappy", Reason: strings.Join(parts, ": ")}
}

// yappyTitle takes the <title> text after the site prefix.
func yappyTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = metaContent(doc, "og:title")
	}
	if _, rest, ok := strings.Cut(title, "|"); ok {
		title = rest
	}
	return strings.TrimSpace(title)
}

// jsonLDName returns the "name" of the first JSON-LD object on the page.
func jsonLDName(doc *goquery.Document) string {
	var name string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var ld struct {
			Name string `json:"name"`
		}
		if json.Unmarshal([]byte(s.Text()), &ld) == nil && ld.Name != "" {
			name = strings.TrimSpace(ld.Name)
			return false
		}
		return true
	})
	return name
}

// profile walks the paginated video list of a profile. Every video becomes a
// deferred entry resolved later by this extractor.
func (y *Yappy) profile(ctx context.Context, env extractor.Env, id string) (*extractor.Result, error) {
	playlist := &media.Playlist{ID: id, Extractor: y.Name()}
	listURL := httputil.BuildURL(y.base(), "api", "video-list", id)
	page := "1"

	for range yappyMaxPages {
		var resp yappyPage
		err := httputil.GetJSON(ctx, env.Fetcher, listURL, &resp, httputil.Options{
			Query: url.Values{"page": {page}},
			Note:  "Downloading playlist JSON - " + page,
		})
		if err != nil {
			if len(playlist.Entries) == 0 {
				return nil, extractor.Failf(y.Name(), id, err, "downloading playlist")
			}
			log.Warnf("%s: %s: stopping at page %s: %v", y.Name(), id, page, err)
			break
		}

		for _, r := range resp.Results {
			if err := httputil.ValidateID(r.UUID); err != nil {
				log.Debugf("%s: %s: skipping entry: %v", y.Name(), id, err)
				continue
			}
			playlist.Entries = append(playlist.Entries, media.Entry{
				URL:       httputil.BuildURL(y.base(), "video", r.UUID),
				ID:        r.UUID,
				Extractor: y.Name(),
			})
		}

		next := pageParam(resp.Next)
		if next == "" || next == page {
			break
		}
		page = next
	}

	return &extractor.Result{Playlist: playlist}, nil
}

func pageParam(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("page")
}

func init() {
	extractor.Register(&Yappy{}, "yappy.media")
}
