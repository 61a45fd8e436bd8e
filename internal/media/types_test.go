package media

import (
	"encoding/json"
	"testing"

	"github.com/samber/mo"
)

func TestProtocolString(t *testing.T) {
	tests := []struct {
		p    Protocol
		want string
	}{
		{DirectHTTP, "direct-http"},
		{HLS, "hls"},
		{DASH, "dash"},
		{RTMP, "rtmp"},
		{HTTPProgressive, "http-progressive"},
		{Protocol(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Protocol(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestDetermineExt(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/video.mp4", "mp4"},
		{"https://example.com/master.M3U8?token=abc", "m3u8"},
		{"https://example.com/manifest.mpd", "mpd"},
		{"https://example.com/video.ism/Manifest", "ism"},
		{"https://example.com/path/", ""},
		{"https://example.com/file.toolongext", ""},
		{"://bad", ""},
	}

	for _, tt := range tests {
		if got := DetermineExt(tt.url); got != tt.want {
			t.Errorf("DetermineExt(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestFormatTrackFlags(t *testing.T) {
	audio := Format{VideoCodec: CodecNone, AudioCodec: "mp4a.40.2"}
	if !audio.IsAudioOnly() || audio.IsVideoOnly() {
		t.Errorf("audio-only flags wrong: %+v", audio)
	}

	video := Format{AudioCodec: CodecNone}
	if video.IsAudioOnly() || !video.IsVideoOnly() {
		t.Errorf("video-only flags wrong: %+v", video)
	}

	unknown := Format{}
	if unknown.IsAudioOnly() || unknown.IsVideoOnly() {
		t.Error("unset codecs should be undetermined, not none")
	}
}

func TestFormatBitrate(t *testing.T) {
	f := Format{VideoBitrate: mo.Some(1000.0), AudioBitrate: mo.Some(128.0)}
	if got := f.Bitrate().OrElse(0); got != 1128 {
		t.Errorf("summed bitrate = %v, want 1128", got)
	}

	f.TotalBitrate = mo.Some(1500.0)
	if got := f.Bitrate().OrElse(0); got != 1500 {
		t.Errorf("total bitrate = %v, want 1500", got)
	}

	if (Format{}).Bitrate().IsPresent() {
		t.Error("bitrate of empty format should be absent")
	}
}

func TestFormatResolution(t *testing.T) {
	tests := []struct {
		f    Format
		want string
	}{
		{Format{Width: mo.Some(1280), Height: mo.Some(720)}, "1280x720"},
		{Format{Height: mo.Some(1080)}, "1080p"},
		{Format{VideoCodec: CodecNone}, "audio only"},
		{Format{}, "unknown"},
	}

	for _, tt := range tests {
		if got := tt.f.Resolution(); got != tt.want {
			t.Errorf("Resolution() = %q, want %q", got, tt.want)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	f := Format{URL: "https://example.com/a.mp4", FormatID: "hls-720p", Protocol: HLS, Height: mo.Some(720)}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if decoded["protocol"] != "hls" {
		t.Errorf("protocol = %v, want hls", decoded["protocol"])
	}
	if decoded["height"] != float64(720) {
		t.Errorf("height = %v, want 720", decoded["height"])
	}
	if decoded["width"] != nil {
		t.Errorf("width = %v, want null", decoded["width"])
	}
}

func TestSubtitlesMerge(t *testing.T) {
	a := SubtitleFile{URL: "https://example.com/a.vtt"}
	b := SubtitleFile{URL: "https://example.com/b.vtt"}
	c := SubtitleFile{URL: "https://example.com/c.vtt"}

	var subs Subtitles
	subs = subs.Merge(Subtitles{"en": {a}})
	subs = subs.Merge(Subtitles{"en": {b}, "fr": {c}})

	if len(subs["en"]) != 2 || subs["en"][0] != a || subs["en"][1] != b {
		t.Errorf("en = %+v, want [a b]", subs["en"])
	}
	if len(subs["fr"]) != 1 || subs["fr"][0] != c {
		t.Errorf("fr = %+v, want [c]", subs["fr"])
	}
}

func TestEntryDeferred(t *testing.T) {
	if !(Entry{URL: "yappy:abc", Extractor: "yappy"}).Deferred() {
		t.Error("reference entry should be deferred")
	}
	if (Entry{Info: &Info{ID: "x"}}).Deferred() {
		t.Error("resolved entry should not be deferred")
	}
}
