package adapter

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mediagrab/internal/media"
)

// LegacyPlaylist is an ASX-style XML playlist whose <ref href="..."> entries
// point at media files.
type LegacyPlaylist struct {
	URL      string
	Supplier string
	Mode     Mode
}

func (l LegacyPlaylist) mode() Mode { return l.Mode }

// Expand fetches the playlist and returns one record per <ref> entry, named
// "ref<index>_<supplier>". Entries without href are skipped but keep their
// index.
func (l LegacyPlaylist) Expand(ctx context.Context, actx Context) ([]media.Format, media.Subtitles, error) {
	playlistURL := actx.resolve(l.URL)
	resp, err := actx.fetch(ctx, playlistURL, "Downloading ASX playlist")
	if err != nil {
		return nil, nil, fmt.Errorf("fetching playlist %s: %w", playlistURL, err)
	}

	// The HTML parser lower-cases element and attribute names, so <REF HREF>
	// and <ref href> match alike.
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing playlist %s: %w", playlistURL, err)
	}

	var formats []media.Format
	doc.Find("ref").Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		formats = append(formats, media.Format{
			URL:      resolveRef(playlistURL, href),
			FormatID: "ref" + strconv.Itoa(i) + "_" + l.Supplier,
			Protocol: media.DirectHTTP,
			Headers:  maps.Clone(actx.Headers),
		})
	})
	return formats, nil, nil
}
