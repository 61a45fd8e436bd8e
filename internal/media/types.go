// Package media defines shared types for the mediagrab application.
package media

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/samber/mo"
)

// Protocol identifies how a format is retrieved.
type Protocol int

const (
	DirectHTTP Protocol = iota
	HLS
	DASH
	RTMP
	HTTPProgressive
)

func (p Protocol) String() string {
	switch p {
	case DirectHTTP:
		return "direct-http"
	case HLS:
		return "hls"
	case DASH:
		return "dash"
	case RTMP:
		return "rtmp"
	case HTTPProgressive:
		return "http-progressive"
	default:
		return "unknown"
	}
}

// MarshalText encodes the protocol by name.
func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// CodecNone marks a stream that carries no track of that kind.
const CodecNone = "none"

// Format is one concretely downloadable rendition of a media item.
type Format struct {
	URL      string   `json:"url"`
	FormatID string   `json:"format_id"`
	Protocol Protocol `json:"protocol"`
	Ext      string   `json:"ext,omitempty"`

	VideoCodec string `json:"vcodec,omitempty"` // CodecNone for audio-only
	AudioCodec string `json:"acodec,omitempty"` // CodecNone for video-only

	Width        mo.Option[int]     `json:"width"`
	Height       mo.Option[int]     `json:"height"`
	TotalBitrate mo.Option[float64] `json:"tbr"` // kbps
	VideoBitrate mo.Option[float64] `json:"vbr"` // kbps
	AudioBitrate mo.Option[float64] `json:"abr"` // kbps
	Filesize     mo.Option[int64]   `json:"filesize"`

	// Quality overrides ranking when present; higher is better.
	Quality mo.Option[float64] `json:"quality"`
	// LanguagePreference is negative for alternate-language renditions.
	LanguagePreference int    `json:"language_preference,omitempty"`
	Language           string `json:"language,omitempty"`
	Note               string `json:"format_note,omitempty"`

	ManifestURL string            `json:"manifest_url,omitempty"`
	Headers     map[string]string `json:"http_headers,omitempty"`

	// ProtocolParams holds connection state that cannot be expressed in URL,
	// e.g. RTMP app/play_path. Never set for HLS or DASH.
	ProtocolParams map[string]string `json:"protocol_params,omitempty"`
}

// IsAudioOnly reports whether the format explicitly carries no video.
func (f Format) IsAudioOnly() bool { return f.VideoCodec == CodecNone }

// IsVideoOnly reports whether the format explicitly carries no audio.
func (f Format) IsVideoOnly() bool { return f.AudioCodec == CodecNone }

// Bitrate returns the total bitrate, summing video and audio bitrates when
// the total is unknown.
func (f Format) Bitrate() mo.Option[float64] {
	if f.TotalBitrate.IsPresent() {
		return f.TotalBitrate
	}
	v, vok := f.VideoBitrate.Get()
	a, aok := f.AudioBitrate.Get()
	if !vok && !aok {
		return mo.None[float64]()
	}
	return mo.Some(v + a)
}

// Resolution returns a display string such as "1280x720", "720p" or "audio only".
func (f Format) Resolution() string {
	if f.IsAudioOnly() {
		return "audio only"
	}
	w, wok := f.Width.Get()
	h, hok := f.Height.Get()
	switch {
	case wok && hok:
		return strconv.Itoa(w) + "x" + strconv.Itoa(h)
	case hok:
		return strconv.Itoa(h) + "p"
	default:
		return "unknown"
	}
}

// DetermineExt guesses a file extension from a URL path.
func DetermineExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	p := u.Path
	if strings.HasSuffix(p, ".ism/Manifest") {
		return "ism"
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if ext == "" || len(ext) > 5 {
		return ""
	}
	return ext
}
