package site

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"github.com/samber/mo"

	"mediagrab/internal/adapter"
	"mediagrab/internal/extractor"
	"mediagrab/internal/format"
	"mediagrab/internal/httputil"
	"mediagrab/internal/log"
	"mediagrab/internal/media"
)

const (
	bbcIDPattern = `(?:[pbml][\da-z]{7}|w[\da-z]{7,14})`

	// bbcSelectorURL takes the media set, the vpid and its hash.
	bbcSelectorURL = "https://open.live.bbc.co.uk/mediaselector/6/select/version/2.0/mediaset/%s/vpid/%s/format/json/atk/%s/asn/1/"
	bbcSelectorKey = "7dff7671d0c697fedb1d905d9a121719938b92bf"

	bbcPageURL   = "http://www.bbc.co.uk"
	bbcPlayerURL = "http://www.bbc.co.uk/emp/releases/iplayer/revisions/617463_618125_4/617463_618125_4_emp.swf"

	bbcPlaylistNS = "http://bbc.co.uk/2008/emp/playlist"
)

var (
	bbcPathRe = regexp.MustCompile(`^/(?:programmes/|iplayer/(?:[a-z]+/)?episode/|music/(?:clips|audiovideo/popular)[/#]|radio/player/|sounds/play/|events/[^/]+/play/[^/]+/)(` + bbcIDPattern + `)`)
	bbcVPIDRe = regexp.MustCompile(`"vpid"\s*:\s*"(` + bbcIDPattern + `)"`)
	bbcIDRe   = regexp.MustCompile(`^` + bbcIDPattern + `$`)
)

// bbcMediaSets are queried in order; each may hold a different subset of
// the renditions.
var bbcMediaSets = []string{"iptv-all", "pc"}

// bbcRecoverable are media selector errors that only rule out one set.
var bbcRecoverable = []string{"notukerror", "geolocation", "selectionunavailable"}

// BBC extracts programmes from bbc.co.uk through the media selector.
type BBC struct {
	// SiteBase defaults to https://www.bbc.co.uk.
	SiteBase string
	// SelectorURL is a format string taking media set, vpid and hash.
	// Defaults to the public media selector.
	SelectorURL string
	// MediaSets defaults to iptv-all then pc.
	MediaSets []string
}

type bbcSelection struct {
	Result string     `json:"result"`
	Media  []bbcMedia `json:"media"`
}

type bbcMedia struct {
	Kind          string          `json:"kind"`
	Type          string          `json:"type"`
	Bitrate       flexInt         `json:"bitrate"`
	Encoding      string          `json:"encoding"`
	Width         flexInt         `json:"width"`
	Height        flexInt         `json:"height"`
	MediaFileSize flexInt         `json:"media_file_size"`
	Connections   []bbcConnection `json:"connection"`
}

type bbcConnection struct {
	Href           string `json:"href"`
	Kind           string `json:"kind"`
	Protocol       string `json:"protocol"`
	Supplier       string `json:"supplier"`
	TransferFormat string `json:"transferFormat"`
	Application    string `json:"application"`
	AuthString     string `json:"authString"`
	Identifier     string `json:"identifier"`
	Server         string `json:"server"`
}

type bbcPlaylist struct {
	AllAvailableVersions []struct {
		Types     []string `json:"types"`
		SMPConfig *struct {
			Title           string `json:"title"`
			Summary         string `json:"summary"`
			HoldingImageURL string `json:"holdingImageURL"`
			Items           []struct {
				Kind     string  `json:"kind"`
				VPID     string  `json:"vpid"`
				Duration flexInt `json:"duration"`
			} `json:"items"`
		} `json:"smpConfig"`
	} `json:"allAvailableVersions"`
}

type bbcLegacyPlaylist struct {
	XMLName xml.Name `xml:"playlist"`
	Title   string   `xml:"title"`
	Summary string   `xml:"summary"`
	NoItems *struct {
		Reason string `xml:"reason,attr"`
	} `xml:"noItems"`
	Items []bbcLegacyItem `xml:"item"`
}

type bbcLegacyItem struct {
	Kind       string `xml:"kind,attr"`
	Identifier string `xml:"identifier,attr"`
	Group      string `xml:"group,attr"`
	Duration   int    `xml:"duration,attr"`
	Mediator   *struct {
		Identifier string `xml:"identifier,attr"`
		Group      string `xml:"group,attr"`
	} `xml:"mediator"`
}

// selectionError is a media selector "result" code.
type selectionError struct {
	code string
}

func (e *selectionError) Error() string { return "bbc returned error: " + e.code }

func (b *BBC) Name() string { return "bbc" }

func (b *BBC) Match(u *url.URL) bool {
	return bbcPathRe.MatchString(u.Path)
}

func (b *BBC) siteBase() string {
	return strings.TrimRight(lo.CoalesceOrEmpty(b.SiteBase, "https://www.bbc.co.uk"), "/")
}

func (b *BBC) Extract(ctx context.Context, env extractor.Env, rawURL string) (*extractor.Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, extractor.Failf(b.Name(), "", err, "invalid URL")
	}
	m := bbcPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, extractor.Failf(b.Name(), "", extractor.ErrUnsupported, "no programme id in %s", u.Path)
	}
	groupID := m[1]

	resp, err := env.Fetcher.Fetch(ctx, rawURL, httputil.Options{
		Expected: []int{http.StatusNotFound},
		Note:     "Downloading video page",
	})
	if err != nil {
		return nil, extractor.Failf(b.Name(), groupID, err, "downloading video page")
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return nil, extractor.Failf(b.Name(), groupID, err, "parsing video page")
	}
	if msg := bbcPageError(doc); msg != "" {
		return nil, extractor.Expectedf(b.Name(), groupID, "%s", msg)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, extractor.Expectedf(b.Name(), groupID, "page not found")
	}

	info := &media.Info{ID: groupID, WebpageURL: rawURL}
	c := format.NewCollector()

	if vm := bbcVPIDRe.FindSubmatch(resp.Body); vm != nil {
		info.ID = string(vm[1])
		info.Title = lo.CoalesceOrEmpty(
			pageTitle(doc),
			strings.TrimSpace(doc.Find("h2#parent-title").First().Text()),
			strings.TrimSpace(doc.Find("div.info h1").First().Text()),
		)
		info.Description = metaContent(doc, "og:description", "description")
		info.Thumbnail = metaContent(doc, "og:image")

		formats, subs, err := b.mediaSelector(ctx, env, info.ID)
		if err != nil {
			return nil, err
		}
		c.Add(formats...)
		c.AddSubtitles(subs)
	} else {
		if err := b.playlist(ctx, env, groupID, info, c); err != nil {
			return nil, err
		}
	}

	if info.Title == "" {
		info.Title = info.ID
	}
	return extractor.Finish(b.Name(), info, c, nil)
}

// bbcPageError returns the player error message shown on the page, if any.
func bbcPageError(doc *goquery.Document) string {
	sel := doc.Find(".smp__message.delta, .playout__message.delta, .play-c-error__title").First()
	return strings.TrimSpace(sel.Text())
}

func hashVPID(vpid string) string {
	sum := sha1.Sum([]byte(bbcSelectorKey + vpid))
	return hex.EncodeToString(sum[:])
}

// mediaSelector queries every media set for vpid. A recoverable selector
// error only rules out its set; it is reported when the other sets yield
// nothing at all.
func (b *BBC) mediaSelector(ctx context.Context, env extractor.Env, vpid string) ([]media.Format, media.Subtitles, error) {
	if err := httputil.ValidateID(vpid); err != nil {
		return nil, nil, extractor.Failf(b.Name(), vpid, err, "invalid vpid")
	}
	c := format.NewCollector()
	sources := extractor.Sources{Extractor: b.Name(), ID: vpid}
	tmpl := lo.CoalesceOrEmpty(b.SelectorURL, bbcSelectorURL)
	sets := lo.Ternary(len(b.MediaSets) > 0, b.MediaSets, bbcMediaSets)

	var last *selectionError
	for _, set := range sets {
		var sel bbcSelection
		selectorURL := fmt.Sprintf(tmpl, set, vpid, hashVPID(vpid))
		resp, err := env.Fetcher.Fetch(ctx, selectorURL, httputil.Options{
			Expected: []int{http.StatusForbidden, http.StatusNotFound},
			Note:     "Downloading media selection JSON",
		})
		if err != nil {
			return nil, nil, extractor.Failf(b.Name(), vpid, err, "downloading media selection")
		}
		if err := json.Unmarshal(resp.Body, &sel); err != nil {
			return nil, nil, extractor.Failf(b.Name(), vpid, err, "parsing media selection")
		}

		if sel.Result != "" {
			serr := &selectionError{code: sel.Result}
			if slices.Contains(bbcRecoverable, sel.Result) {
				last = serr
				if sel.Result != "selectionunavailable" {
					sources.Fail(set, serr)
				}
				continue
			}
			return nil, nil, &extractor.ExtractionError{Extractor: b.Name(), ID: vpid, Cause: serr, Expected: true}
		}

		if err := b.processSelection(ctx, env, vpid, sel, c); err != nil {
			return nil, nil, err
		}
	}

	if c.Empty() && last != nil {
		if last.code == "geolocation" || last.code == "notukerror" {
			return nil, nil, &extractor.GeoRestrictedError{Extractor: b.Name(), Countries: []string{"GB"}}
		}
		return nil, nil, &extractor.ExtractionError{Extractor: b.Name(), ID: vpid, Cause: last, Expected: true}
	}
	if c.Len() > 0 {
		if err := sources.Resolve(c); err != nil {
			return nil, nil, err
		}
	}

	formats, subs := c.Finalize()
	return formats, subs, nil
}

// processSelection dispatches every connection of one media selection to
// the matching adapter.
func (b *BBC) processSelection(ctx context.Context, env extractor.Env, vpid string, sel bbcSelection, c *format.Collector) error {
	actx := adapter.Context{ID: vpid, Fetcher: env.Fetcher}
	seen := map[string]bool{}

	for _, m := range sel.Media {
		switch m.Kind {
		case "video", "audio":
		case "captions":
			c.AddSubtitles(bbcCaptions(m))
			continue
		default:
			continue
		}

		for _, conn := range m.Connections {
			if conn.Href != "" {
				if seen[conn.Href] {
					continue
				}
				seen[conn.Href] = true
			}

			formatID := adapter.FormatID(conn.Supplier, conn.Kind, conn.Protocol)
			var err error
			switch {
			case conn.Supplier == "asx":
				err = adapter.Expand(ctx, c, actx, adapter.LegacyPlaylist{URL: conn.Href, Supplier: formatID, Mode: adapter.Fatal})
			case conn.TransferFormat == "dash":
				err = adapter.ExpandTolerant(ctx, c, actx, adapter.DASH{ManifestURL: conn.Href, ID: formatID, Mode: adapter.Fatal})
			case conn.TransferFormat == "hls":
				err = adapter.ExpandTolerant(ctx, c, actx, adapter.HLS{ManifestURL: conn.Href, ID: formatID, Ext: "mp4", Mode: adapter.Fatal})
			case conn.TransferFormat == "hds":
				log.Debugf("%s: skipping hds connection %s", vpid, conn.Href)
				continue
			default:
				d, ok := bbcConnectionDescriptor(m, conn, adapter.WithBitrate(formatID, conn.Supplier, int(m.Bitrate)))
				if !ok {
					continue
				}
				err = adapter.Expand(ctx, c, actx, d)
			}
			if err != nil {
				return extractor.Failf(b.Name(), vpid, err, "expanding %s", formatID)
			}
		}
	}
	return nil
}

// bbcConnectionDescriptor describes a progressive http or rtmp connection.
func bbcConnectionDescriptor(m bbcMedia, conn bbcConnection, id string) (adapter.Descriptor, bool) {
	bitrate := mo.None[float64]()
	if m.Bitrate > 0 {
		bitrate = mo.Some(float64(m.Bitrate))
	}
	filesize := mo.None[int64]()
	if m.MediaFileSize > 0 {
		filesize = mo.Some(int64(m.MediaFileSize))
	}

	switch conn.Protocol {
	case "http", "https":
		d := adapter.Direct{URL: conn.Href, ID: id, Filesize: filesize}
		if m.Kind == "video" {
			d.Width, d.Height = m.Width.option(), m.Height.option()
			d.TotalBitrate = bitrate
			d.VideoCodec = m.Encoding
		} else {
			d.AudioBitrate = bitrate
			d.AudioCodec = m.Encoding
			d.VideoCodec = media.CodecNone
		}
		return d, true
	case "rtmp":
		d := adapter.RTMP{
			Server:       conn.Server,
			Application:  conn.Application,
			AuthString:   conn.AuthString,
			Identifier:   conn.Identifier,
			PageURL:      bbcPageURL,
			PlayerURL:    bbcPlayerURL,
			ID:           id,
			TotalBitrate: bitrate,
			Filesize:     filesize,
		}
		if m.Kind == "video" {
			d.Width, d.Height = m.Width.option(), m.Height.option()
			d.VideoCodec = m.Encoding
		} else {
			d.AudioCodec = m.Encoding
			d.VideoCodec = media.CodecNone
		}
		return d, true
	}
	return nil, false
}

// bbcCaptions turns a captions media into TTML subtitle tracks.
func bbcCaptions(m bbcMedia) media.Subtitles {
	files := lo.FilterMap(m.Connections, func(conn bbcConnection, _ int) (media.SubtitleFile, bool) {
		return media.SubtitleFile{URL: conn.Href, Ext: "ttml"}, conn.Href != ""
	})
	if len(files) == 0 {
		return nil
	}
	// Every file in a captions media carries the same document; keep the
	// first href.
	return media.Subtitles{"en": files[:1]}
}

// playlist reads the programme's playlist.json, one media selector run per
// available version, and falls back to the legacy XML playlist on 404.
func (b *BBC) playlist(ctx context.Context, env extractor.Env, id string, info *media.Info, c *format.Collector) error {
	var pl bbcPlaylist
	err := httputil.GetJSON(ctx, env.Fetcher, b.siteBase()+"/programmes/"+id+"/playlist.json", &pl, httputil.Options{
		Note: "Downloading playlist JSON",
	})
	if err != nil {
		if httputil.IsStatus(err, http.StatusNotFound) {
			return b.legacyPlaylist(ctx, env, id, info, c)
		}
		return extractor.Failf(b.Name(), id, err, "downloading playlist")
	}

	for _, version := range pl.AllAvailableVersions {
		cfg := version.SMPConfig
		if cfg == nil || cfg.Title == "" {
			continue
		}
		info.Title = lo.CoalesceOrEmpty(info.Title, cfg.Title)
		info.Description = lo.CoalesceOrEmpty(info.Description, cfg.Summary)
		info.Thumbnail = lo.CoalesceOrEmpty(info.Thumbnail, strings.ReplaceAll(cfg.HoldingImageURL, "{recipe}", "raw"))

		for _, item := range cfg.Items {
			if item.Kind != "programme" && item.Kind != "radioProgramme" {
				continue
			}
			if c.Len() == 0 {
				info.ID = item.VPID
				info.Duration = float64(item.Duration)
			}

			formats, subs, err := b.mediaSelector(ctx, env, item.VPID)
			if err != nil {
				return err
			}
			types := lo.Ternary(len(version.Types) > 0, version.Types, []string{"unknown"})
			described := lo.ContainsBy(types, func(t string) bool { return strings.Contains(t, "AudioDescribed") })
			for i := range formats {
				formats[i].Note = strings.Join(types, ", ")
				if described {
					formats[i].LanguagePreference = format.AlternateLanguagePenalty
				}
			}
			c.Add(formats...)
			c.AddSubtitles(subs)
			break
		}
	}

	if c.Len() == 0 {
		return b.legacyPlaylist(ctx, env, id, info, c)
	}
	return nil
}

// legacyPlaylist handles the EMP XML playlist of older programmes.
func (b *BBC) legacyPlaylist(ctx context.Context, env extractor.Env, id string, info *media.Info, c *format.Collector) error {
	resp, err := env.Fetcher.Fetch(ctx, b.siteBase()+"/iplayer/playlist/"+id, httputil.Options{
		Note: "Downloading legacy playlist XML",
	})
	if err != nil {
		return extractor.Failf(b.Name(), id, err, "downloading legacy playlist")
	}

	var pl bbcLegacyPlaylist
	if err := xml.Unmarshal(resp.Body, &pl); err != nil {
		return extractor.Failf(b.Name(), id, err, "parsing legacy playlist")
	}
	if pl.XMLName.Space != "" && pl.XMLName.Space != bbcPlaylistNS {
		return extractor.Failf(b.Name(), id, nil, "unexpected playlist namespace %q", pl.XMLName.Space)
	}

	if pl.NoItems != nil {
		switch pl.NoItems.Reason {
		case "preAvailability":
			return extractor.Expectedf(b.Name(), id, "episode %s is not yet available", id)
		case "postAvailability":
			return extractor.Expectedf(b.Name(), id, "episode %s is no longer available", id)
		case "noMedia":
			return extractor.Expectedf(b.Name(), id, "episode %s is not currently available", id)
		default:
			return extractor.Expectedf(b.Name(), id, "episode %s is not available: %s", id, pl.NoItems.Reason)
		}
	}

	item, ok := lo.Find(pl.Items, func(it bbcLegacyItem) bool {
		return it.Kind == "programme" || it.Kind == "radioProgramme"
	})
	if !ok {
		return extractor.Failf(b.Name(), id, extractor.ErrNoFormats, "legacy playlist has no programme")
	}

	vpid := item.programmeID()
	if vpid == "" {
		return extractor.Failf(b.Name(), id, extractor.ErrNoFormats, "legacy playlist item has no programme id")
	}

	info.ID = vpid
	info.Title = strings.TrimSpace(pl.Title)
	info.Description = strings.TrimSpace(pl.Summary)
	info.Duration = float64(item.Duration)

	formats, subs, err := b.mediaSelector(ctx, env, vpid)
	if err != nil {
		return err
	}
	c.Add(formats...)
	c.AddSubtitles(subs)
	return nil
}

func (it bbcLegacyItem) programmeID() string {
	for _, v := range []string{it.Identifier, it.Group} {
		if bbcIDRe.MatchString(v) {
			return v
		}
	}
	if it.Mediator != nil {
		for _, v := range []string{it.Mediator.Identifier, it.Mediator.Group} {
			if bbcIDRe.MatchString(v) {
				return v
			}
		}
	}
	return ""
}

func init() {
	extractor.Register(&BBC{}, "bbc.co.uk")
}
