package adapter

import (
	"context"
	"strconv"
	"strings"

	"github.com/samber/mo"

	"mediagrab/internal/media"
)

// DefaultApplication is the RTMP application used when the site names none.
const DefaultApplication = "ondemand"

// Keys of the RTMP ProtocolParams bag.
const (
	ParamServer      = "server"
	ParamApplication = "application"
	ParamAuth        = "auth"
	ParamPlayPath    = "play_path"
	ParamApp         = "app" // application plus "?auth", as rtmpdump expects
	ParamPageURL     = "page_url"
	ParamPlayerURL   = "player_url"
	ParamLive        = "live"
)

// RTMP is a streaming server connection. The address cannot be expressed as
// one URL, so the record carries its parts in ProtocolParams.
type RTMP struct {
	// Server is "rtmp://host" or a bare host, which gets the rtmp scheme.
	Server      string
	Application string
	AuthString  string
	Identifier  string
	PageURL     string
	PlayerURL   string
	Live        bool

	ID           string // defaults to "rtmp"
	Width        mo.Option[int]
	Height       mo.Option[int]
	TotalBitrate mo.Option[float64]
	Filesize     mo.Option[int64]
	VideoCodec   string
	AudioCodec   string
}

func (RTMP) mode() Mode { return Fatal }

// Expand returns a single flv record addressed as
// "<server>/<application>?<auth>".
func (r RTMP) Expand(_ context.Context, _ Context) ([]media.Format, media.Subtitles, error) {
	if r.Server == "" {
		return nil, nil, nil
	}
	server := strings.TrimRight(r.Server, "/")
	if !strings.Contains(server, "://") {
		server = "rtmp://" + server
	}
	application := r.Application
	if application == "" {
		application = DefaultApplication
	}

	app := application
	if r.AuthString != "" {
		app += "?" + r.AuthString
	}

	id := r.ID
	if id == "" {
		id = "rtmp"
	}

	return []media.Format{{
		URL:          server + "/" + app,
		FormatID:     id,
		Protocol:     media.RTMP,
		Ext:          "flv",
		Width:        r.Width,
		Height:       r.Height,
		TotalBitrate: r.TotalBitrate,
		Filesize:     r.Filesize,
		VideoCodec:   r.VideoCodec,
		AudioCodec:   r.AudioCodec,
		ProtocolParams: map[string]string{
			ParamServer:      server,
			ParamApplication: application,
			ParamAuth:        r.AuthString,
			ParamPlayPath:    r.Identifier,
			ParamApp:         app,
			ParamPageURL:     r.PageURL,
			ParamPlayerURL:   r.PlayerURL,
			ParamLive:        strconv.FormatBool(r.Live),
		},
	}}, nil, nil
}
