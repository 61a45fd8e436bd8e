package player

import (
	"slices"
	"testing"

	"mediagrab/internal/media"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"mpv", "mpv"},
		{"vlc", "vlc"},
		{"iina", "iina"},
		{"celluloid", "celluloid"},
		{"unknown", "mpv"},
	}

	for _, tt := range tests {
		if got := New(tt.name).Name(); got != tt.want {
			t.Errorf("New(%q).Name() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMPVArgs(t *testing.T) {
	f := media.Format{
		URL:      "https://cdn.example.com/manifest.mpd#v720",
		Protocol: media.DASH,
		Headers: map[string]string{
			"User-Agent": "agent",
			"Referer":    "https://example.com/",
			"Origin":     "https://example.com",
		},
	}

	got := New("mpv").Args(f, "Clip", "/tmp/en.srt")
	want := []string{
		"https://cdn.example.com/manifest.mpd",
		"--force-media-title=Clip",
		"--user-agent=agent",
		"--http-header-fields=Origin: https://example.com,Referer: https://example.com/",
		"--sub-file=/tmp/en.srt",
		"--really-quiet",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Args() =\n%q\nwant\n%q", got, want)
	}
}

func TestMPVArgsRTMP(t *testing.T) {
	f := media.Format{
		URL:      "rtmp://host/ondemand?tok",
		Protocol: media.RTMP,
		ProtocolParams: map[string]string{
			"app":       "ondemand?tok",
			"play_path": "mp4:clip",
			"live":      "false",
		},
	}

	got := New("iina").Args(f, "Clip", "")
	if !slices.Contains(got, "--demuxer-lavf-o=rtmp_app=ondemand?tok,rtmp_playpath=mp4:clip") {
		t.Errorf("rtmp options missing: %q", got)
	}
	if slices.Contains(got, "--really-quiet") {
		t.Errorf("generic players should not get mpv-only flags: %q", got)
	}
}

func TestVLCArgs(t *testing.T) {
	f := media.Format{
		URL:     "https://cdn.example.com/v.mp4",
		Headers: map[string]string{"Referer": "https://example.com/"},
	}

	got := New("vlc").Args(f, "Clip", "")
	want := []string{
		"https://cdn.example.com/v.mp4",
		"--meta-title", "Clip",
		"--play-and-exit",
		"--http-referrer", "https://example.com/",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Args() = %q, want %q", got, want)
	}
}
