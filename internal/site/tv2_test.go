package site

import (
	"bytes"
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"

	"mediagrab/internal/extractor"
	"mediagrab/internal/httputil"
	"mediagrab/internal/log"
)

const tv2PageURL = "https://www.tv2.no/v/1787176/"

func tv2Routes() map[string]route {
	return map[string]route{
		"/rest/assets/1787176.json": {file: "tv2_asset.json"},
		"POST /play/1787176?stream=HLS": {body: `{"playback":{"streams":[
			{"url":"{{SRV}}/hls/two.m3u8","type":"hls"},
			{"url":"{{SRV}}/media/clip.mp4","type":"mp4","bitrate":1200,"fileSize":1048576}
		]}}`},
		"POST /play/1787176?stream=DASH": {body: `{"playback":{"streams":[
			{"url":"{{SRV}}/hls/two.m3u8","type":"hls"},
			{"url":"{{SRV}}/smooth/clip.ism/manifest","mediaFormat":"ism"}
		]}}`},
		"/hls/two.m3u8": {file: "two.m3u8"},
	}
}

func TestTV2(t *testing.T) {
	srv := fixtureServer(t, tv2Routes())
	tv := &TV2{MetadataBase: srv.URL, PlaybackBase: srv.URL}

	res, err := tv.Extract(context.Background(), testEnv(), tv2PageURL)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	info := res.Info

	if got, want := formatIDs(info.Formats), []string{"hls-mp4", "hls-hls-800", "hls-hls-2400"}; !slices.Equal(got, want) {
		t.Errorf("formats = %v, want %v", got, want)
	}
	mp4 := findFormat(t, info.Formats, "hls-mp4")
	if mp4.TotalBitrate.OrEmpty() != 1200 || mp4.Filesize.OrEmpty() != 1048576 {
		t.Errorf("mp4 tbr/filesize = %v/%v", mp4.TotalBitrate, mp4.Filesize)
	}

	if info.ID != "1787176" || info.Extractor != "tv2" {
		t.Errorf("id/extractor = %s/%s", info.ID, info.Extractor)
	}
	if info.Title != "Så mye kan du spare på klesvasken" {
		t.Errorf("title = %q", info.Title)
	}
	if info.Description != "TV 2 hjelper deg." {
		t.Errorf("description = %q", info.Description)
	}
	if info.Duration != 117 || info.ViewCount != 42 {
		t.Errorf("duration/views = %v/%d", info.Duration, info.ViewCount)
	}
	if info.Timestamp != 1663328629 {
		t.Errorf("timestamp = %d", info.Timestamp)
	}
	if !slices.Equal(info.Categories, []string{"forbruker", "hjelper"}) {
		t.Errorf("categories = %q", info.Categories)
	}
	if len(info.Thumbnails) != 1 || info.Thumbnails[0].ID != "main16x9" {
		t.Errorf("thumbnails = %+v", info.Thumbnails)
	}
}

func TestTV2Errors(t *testing.T) {
	tests := []struct {
		name   string
		routes map[string]route
		check  func(t *testing.T, err error)
	}{
		{
			name:   "expired",
			routes: map[string]route{},
			check: func(t *testing.T, err error) {
				if !strings.Contains(err.Error(), "content expired?") || !httputil.IsStatus(err, 404) {
					t.Errorf("error = %v", err)
				}
			},
		},
		{
			name: "geo",
			routes: map[string]route{
				"POST /play/1787176?stream=HLS": {status: 401, body: `{"error":{"code":"ASSET_PLAYBACK_INVALID_GEO_LOCATION"}}`},
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, extractor.ErrGeoRestricted) {
					t.Errorf("error = %v, want geo restriction", err)
				}
			},
		},
		{
			name: "login",
			routes: map[string]route{
				"POST /play/1787176?stream=HLS": {status: 401, body: `{"error":{"code":"SESSION_NOT_AUTHENTICATED"}}`},
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, extractor.ErrAuthRequired) {
					t.Errorf("error = %v, want auth required", err)
				}
			},
		},
		{
			name: "other refusal",
			routes: map[string]route{
				"POST /play/1787176?stream=HLS": {status: 401, body: `{"error":{"code":"X","description":"Not for you"}}`},
			},
			check: func(t *testing.T, err error) {
				if !strings.Contains(err.Error(), "Not for you") {
					t.Errorf("error = %v", err)
				}
			},
		},
		{
			name: "drm",
			routes: map[string]route{
				"POST /play/1787176?stream=HLS":  {body: `{"playback":{"drmProtected":true,"streams":[{"url":"{{SRV}}/hls/two.m3u8"}]}}`},
				"POST /play/1787176?stream=DASH": {body: `{"playback":{"drmProtected":true,"streams":[]}}`},
			},
			check: func(t *testing.T, err error) {
				if !strings.Contains(err.Error(), "DRM protected") || !extractor.IsExpected(err) {
					t.Errorf("error = %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routes := tv2Routes()
			if tt.name == "expired" {
				delete(routes, "/rest/assets/1787176.json")
			}
			for k, v := range tt.routes {
				routes[k] = v
			}
			srv := fixtureServer(t, routes)
			tv := &TV2{MetadataBase: srv.URL, PlaybackBase: srv.URL}

			_, err := tv.Extract(context.Background(), testEnv(), tv2PageURL)
			if err == nil {
				t.Fatal("Extract() should fail")
			}
			tt.check(t, err)
		})
	}
}

func TestTV2SourceFailures(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	t.Run("every source failed", func(t *testing.T) {
		logs.Reset()
		routes := tv2Routes()
		routes["POST /play/1787176?stream=HLS"] = route{body: `{"playback":{"streams":[{"url":"{{SRV}}/hls/two.m3u8","type":"hls"}]}}`}
		routes["POST /play/1787176?stream=DASH"] = route{body: `{"playback":{"streams":[{"url":"{{SRV}}/dash/clip.mpd","type":"dash"}]}}`}
		routes["/hls/two.m3u8"] = route{status: 500, body: "oops"}
		routes["/dash/clip.mpd"] = route{status: 410, body: "gone"}
		srv := fixtureServer(t, routes)
		tv := &TV2{MetadataBase: srv.URL, PlaybackBase: srv.URL}

		_, err := tv.Extract(context.Background(), testEnv(), tv2PageURL)
		if err == nil {
			t.Fatal("Extract() should fail")
		}
		if !httputil.IsStatus(err, 500) || !httputil.IsStatus(err, 410) {
			t.Errorf("error should carry both statuses: %v", err)
		}
		if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "410") {
			t.Errorf("message = %q", err.Error())
		}
		if extractor.IsExpected(err) {
			t.Errorf("error should not be expected: %v", err)
		}
		if logs.Len() != 0 {
			t.Errorf("failed extraction logged warnings: %s", logs.String())
		}
	})

	t.Run("some sources failed", func(t *testing.T) {
		logs.Reset()
		routes := tv2Routes()
		routes["/hls/two.m3u8"] = route{status: 500, body: "oops"}
		srv := fixtureServer(t, routes)
		tv := &TV2{MetadataBase: srv.URL, PlaybackBase: srv.URL}

		res, err := tv.Extract(context.Background(), testEnv(), tv2PageURL)
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		if got := formatIDs(res.Info.Formats); !slices.Equal(got, []string{"hls-mp4"}) {
			t.Errorf("formats = %v", got)
		}
		if !strings.Contains(logs.String(), "some formats may be missing") {
			t.Errorf("partial result should warn, logs = %q", logs.String())
		}
	})
}

func TestTV2RequestPaths(t *testing.T) {
	srv := fixtureServer(t, tv2Routes())
	tv := &TV2{MetadataBase: srv.URL + "/", PlaybackBase: srv.URL + "/"}

	// Trailing slashes on the bases must not double up in request paths.
	if _, err := tv.Extract(context.Background(), testEnv(), tv2PageURL); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
}
