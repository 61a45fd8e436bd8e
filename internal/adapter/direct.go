package adapter

import (
	"context"
	"maps"

	"github.com/samber/mo"

	"mediagrab/internal/media"
)

// Direct is a single media URL with whatever attributes the site already
// reported. It never touches the network.
type Direct struct {
	URL string
	// ID defaults to "http".
	ID           string
	Ext          string
	Protocol     media.Protocol // DirectHTTP unless set
	VideoCodec   string
	AudioCodec   string
	Width        mo.Option[int]
	Height       mo.Option[int]
	TotalBitrate mo.Option[float64]
	VideoBitrate mo.Option[float64]
	AudioBitrate mo.Option[float64]
	Filesize     mo.Option[int64]
	Quality      mo.Option[float64]

	Language           string
	LanguagePreference int
	Note               string
}

func (Direct) mode() Mode { return Fatal }

// Expand returns exactly one record, or none when URL is empty.
func (d Direct) Expand(_ context.Context, actx Context) ([]media.Format, media.Subtitles, error) {
	if d.URL == "" {
		return nil, nil, nil
	}
	id := d.ID
	if id == "" {
		id = "http"
	}
	return []media.Format{{
		URL:                actx.resolve(d.URL),
		FormatID:           id,
		Protocol:           d.Protocol,
		Ext:                d.Ext,
		VideoCodec:         d.VideoCodec,
		AudioCodec:         d.AudioCodec,
		Width:              d.Width,
		Height:             d.Height,
		TotalBitrate:       d.TotalBitrate,
		VideoBitrate:       d.VideoBitrate,
		AudioBitrate:       d.AudioBitrate,
		Filesize:           d.Filesize,
		Quality:            d.Quality,
		Language:           d.Language,
		LanguagePreference: d.LanguagePreference,
		Note:               d.Note,
		Headers:            maps.Clone(actx.Headers),
	}}, nil, nil
}
