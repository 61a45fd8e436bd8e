package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/mo"
	. "github.com/smartystreets/goconvey/convey"

	"mediagrab/internal/format"
	"mediagrab/internal/httputil"
	"mediagrab/internal/media"
)

func newManifestServer(t *testing.T) *httptest.Server {
	t.Helper()
	serve := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			data, err := os.ReadFile(filepath.Join("testdata", name))
			if err != nil {
				t.Errorf("reading fixture %s: %v", name, err)
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Write(data)
		}
	}
	status := func(code int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(code), code)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/hls/master.m3u8", serve("master.m3u8"))
	mux.HandleFunc("/hls/media.m3u8", serve("media.m3u8"))
	mux.HandleFunc("/hls/orphan.m3u8", serve("orphan.m3u8"))
	mux.HandleFunc("/set2/two.m3u8", serve("two.m3u8"))
	mux.HandleFunc("/dash/manifest.mpd", serve("manifest.mpd"))
	mux.HandleFunc("/playlist.asx", serve("playlist.asx"))
	mux.HandleFunc("/garbage.mpd", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a manifest"))
	})
	mux.HandleFunc("/missing.m3u8", status(http.StatusNotFound))
	mux.HandleFunc("/forbidden.m3u8", status(http.StatusForbidden))
	mux.HandleFunc("/broken.m3u8", status(http.StatusInternalServerError))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testContext(srv *httptest.Server) Context {
	return Context{
		ID:      "test",
		BaseURL: srv.URL + "/",
		Fetcher: httputil.New(5*time.Second, ""),
	}
}

func byID(formats []media.Format) map[string]media.Format {
	out := make(map[string]media.Format, len(formats))
	for _, f := range formats {
		out[f.FormatID] = f
	}
	return out
}

func TestHLSMasterPlaylist(t *testing.T) {
	srv := newManifestServer(t)
	actx := testContext(srv)

	formats, subs, err := HLS{ManifestURL: "hls/master.m3u8", ID: "hls", Mode: Fatal}.Expand(context.Background(), actx)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if len(formats) != 3 {
		t.Fatalf("got %d formats, want 3: %+v", len(formats), formats)
	}

	got := byID(formats)
	low, ok := got["hls-1280"]
	if !ok {
		t.Fatalf("missing hls-1280 in %v", got)
	}
	if low.URL != srv.URL+"/hls/360/index.m3u8" {
		t.Errorf("relative variant URL = %q", low.URL)
	}
	if low.Height.OrElse(0) != 360 || low.Width.OrElse(0) != 640 {
		t.Errorf("resolution = %s", low.Resolution())
	}
	if low.TotalBitrate.OrElse(0) != 1280 {
		t.Errorf("tbr = %v, want 1280", low.TotalBitrate.OrElse(0))
	}
	if low.VideoCodec != "avc1.4d401e" || low.AudioCodec != "mp4a.40.2" {
		t.Errorf("codecs = %q/%q", low.VideoCodec, low.AudioCodec)
	}
	if low.Protocol != media.HLS || low.ProtocolParams != nil || low.ManifestURL != srv.URL+"/hls/master.m3u8" {
		t.Errorf("unexpected HLS record: %+v", low)
	}

	if high := got["hls-5128"]; high.URL != "https://cdn.example.com/hls/1080/index.m3u8" {
		t.Errorf("absolute variant URL = %q", high.URL)
	}

	audio, ok := got["hls-audio-English"]
	if !ok || !audio.IsAudioOnly() || audio.Language != "en" {
		t.Errorf("audio rendition = %+v", audio)
	}

	en := subs["en"]
	if len(en) != 1 || en[0].URL != srv.URL+"/hls/subs/en.m3u8" || en[0].Ext != "vtt" {
		t.Errorf("subtitles = %+v", subs)
	}
}

func TestHLSMediaPlaylist(t *testing.T) {
	srv := newManifestServer(t)
	formats, _, err := HLS{ManifestURL: srv.URL + "/hls/media.m3u8", ID: "akamai", Mode: Fatal}.Expand(context.Background(), testContext(srv))
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if len(formats) != 1 {
		t.Fatalf("got %d formats, want 1", len(formats))
	}
	if formats[0].FormatID != "akamai" || formats[0].URL != srv.URL+"/hls/media.m3u8" || formats[0].Ext != "mp4" {
		t.Errorf("record = %+v", formats[0])
	}
}

func TestBestEffortFailureContainment(t *testing.T) {
	Convey("Given two redundant sources where the first returns 404", t, func() {
		srv := newManifestServer(t)
		actx := testContext(srv)
		c := format.NewCollector()

		Convey("best-effort expansion keeps the second source's variants", func() {
			err := Expand(context.Background(), c, actx,
				HLS{ManifestURL: "missing.m3u8", ID: "hls-set1", Mode: BestEffort},
				HLS{ManifestURL: "set2/two.m3u8", ID: "hls-set2", Mode: BestEffort},
			)
			So(err, ShouldBeNil)

			formats, _ := c.Finalize()
			So(formats, ShouldHaveLength, 2)
			So(formats[0].FormatID, ShouldEqual, "hls-set2-800")
			So(formats[1].FormatID, ShouldEqual, "hls-set2-2400")
		})

		Convey("tolerant expansion swallows 403 and 404 from fatal sources", func() {
			err := ExpandTolerant(context.Background(), c, actx,
				HLS{ManifestURL: "missing.m3u8", Mode: Fatal},
				HLS{ManifestURL: "forbidden.m3u8", Mode: Fatal},
				HLS{ManifestURL: "set2/two.m3u8", Mode: Fatal},
			)
			So(err, ShouldBeNil)
			So(c.Len(), ShouldEqual, 2)
		})

		Convey("tolerant expansion still propagates other errors", func() {
			err := ExpandTolerant(context.Background(), c, actx,
				HLS{ManifestURL: "broken.m3u8", Mode: Fatal},
				HLS{ManifestURL: "set2/two.m3u8", Mode: Fatal},
			)
			So(err, ShouldNotBeNil)
			So(httputil.IsStatus(err, http.StatusInternalServerError), ShouldBeTrue)
			So(c.Empty(), ShouldBeTrue)
		})
	})
}

func TestFatalFailurePropagation(t *testing.T) {
	srv := newManifestServer(t)
	actx := testContext(srv)
	c := format.NewCollector()

	err := Expand(context.Background(), c, actx, HLS{ManifestURL: "broken.m3u8", Mode: Fatal})
	if err == nil {
		t.Fatal("fatal source error should propagate")
	}
	if !httputil.IsStatus(err, http.StatusInternalServerError) {
		t.Errorf("error = %v, want wrapped 500", err)
	}
	if !c.Empty() {
		t.Error("collector should stay empty")
	}

	if err := Expand(context.Background(), c, actx, HLS{ManifestURL: "broken.m3u8", Mode: BestEffort}); err != nil {
		t.Errorf("best-effort error should be swallowed, got %v", err)
	}
}

func TestHLSVariantWithoutURI(t *testing.T) {
	srv := newManifestServer(t)

	formats, _, err := HLS{ManifestURL: srv.URL + "/hls/orphan.m3u8", ID: "hls", Mode: Fatal}.Expand(context.Background(), testContext(srv))
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if len(formats) != 2 {
		t.Fatalf("got %d formats, want 2: %v", len(formats), byID(formats))
	}

	hd := formats[0]
	if hd.FormatID != "hls-2000" || hd.URL != srv.URL+"/hls/720/index.m3u8" {
		t.Errorf("first variant = %s %s", hd.FormatID, hd.URL)
	}
	if hd.Height.OrElse(0) != 720 || hd.Width.OrElse(0) != 1280 || hd.VideoCodec != "avc1.64001f" {
		t.Errorf("first variant took another tag's attributes: %s %s", hd.Resolution(), hd.VideoCodec)
	}

	full := formats[1]
	if full.FormatID != "hls-3000" || full.Height.OrElse(0) != 1080 || full.URL != srv.URL+"/hls/1080/index.m3u8" {
		t.Errorf("second variant = %s %s %s", full.FormatID, full.Resolution(), full.URL)
	}
}

func TestDropOrphanVariants(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		dropped int
	}{
		{"clean", "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\na.m3u8\n", 0},
		{"followed by tag", "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\n#EXT-X-STREAM-INF:BANDWIDTH=2\nb.m3u8\n", 1},
		{"at end", "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\n", 1},
		{"blank line before URI", "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\n\r\na.m3u8\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, dropped := dropOrphanVariants([]byte(tt.in))
			if dropped != tt.dropped {
				t.Errorf("dropped = %d, want %d", dropped, tt.dropped)
			}
			if dropped == 0 && string(out) != tt.in {
				t.Errorf("clean playlist changed: %q", out)
			}
		})
	}
}

func TestMalformedManifest(t *testing.T) {
	srv := newManifestServer(t)
	actx := testContext(srv)

	if _, _, err := (DASH{ManifestURL: "garbage.mpd"}).Expand(context.Background(), actx); err == nil {
		t.Error("expected parse error for malformed MPD")
	}

	c := format.NewCollector()
	if err := Expand(context.Background(), c, actx, DASH{ManifestURL: "garbage.mpd", Mode: BestEffort}); err != nil {
		t.Errorf("best-effort parse error should be swallowed, got %v", err)
	}
	if err := Expand(context.Background(), c, actx, DASH{ManifestURL: "garbage.mpd", Mode: Fatal}); err == nil {
		t.Error("fatal parse error should propagate")
	}
}

func TestDASHManifest(t *testing.T) {
	srv := newManifestServer(t)
	actx := testContext(srv)
	manifest := srv.URL + "/dash/manifest.mpd"

	formats, subs, err := DASH{ManifestURL: manifest, ID: "dash", Mode: Fatal}.Expand(context.Background(), actx)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	got := byID(formats)
	if len(got) != 4 {
		t.Fatalf("got %d formats, want 4: %v", len(got), formats)
	}

	v720 := got["dash-v720"]
	if v720.URL != srv.URL+"/dash/media/video_720.mp4" {
		t.Errorf("v720 URL = %q", v720.URL)
	}
	if v720.Height.OrElse(0) != 720 || !v720.IsVideoOnly() || v720.VideoCodec != "avc1.64001f" {
		t.Errorf("v720 = %+v", v720)
	}
	if v720.TotalBitrate.OrElse(0) != 2400 {
		t.Errorf("v720 tbr = %v", v720.TotalBitrate.OrElse(0))
	}

	a128 := got["dash-a128"]
	if !a128.IsAudioOnly() || a128.Ext != "m4a" || a128.Language != "en" || a128.AudioCodec != "mp4a.40.2" {
		t.Errorf("a128 = %+v", a128)
	}

	if tpl := got["dash-t1080"]; tpl.URL != manifest+"#t1080" {
		t.Errorf("template representation URL = %q", tpl.URL)
	}

	fr := subs["fr"]
	if len(fr) != 1 || fr[0].URL != srv.URL+"/dash/media/subs_fr.vtt" || fr[0].Ext != "vtt" {
		t.Errorf("subtitles = %+v", subs)
	}
}

func TestLegacyPlaylist(t *testing.T) {
	srv := newManifestServer(t)
	formats, _, err := LegacyPlaylist{URL: "playlist.asx", Supplier: "asx", Mode: Fatal}.Expand(context.Background(), testContext(srv))
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	want := []struct{ id, url string }{
		{"ref0_asx", "http://media.example.com/a.wmv"},
		{"ref1_asx", "mms://media.example.com/b.wmv"},
	}
	if len(formats) != len(want) {
		t.Fatalf("got %d formats, want %d", len(formats), len(want))
	}
	for i, w := range want {
		if formats[i].FormatID != w.id || formats[i].URL != w.url {
			t.Errorf("formats[%d] = %s %s, want %s %s", i, formats[i].FormatID, formats[i].URL, w.id, w.url)
		}
	}
}

func TestRTMPParameterAssembly(t *testing.T) {
	formats, _, err := RTMP{
		Server:      "rtmp://host",
		Application: "ondemand",
		AuthString:  "token123",
		Identifier:  "path/to/stream",
		PageURL:     "https://www.example.com/programme",
	}.Expand(context.Background(), Context{})
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if len(formats) != 1 {
		t.Fatalf("got %d formats, want 1", len(formats))
	}

	f := formats[0]
	if f.Protocol != media.RTMP || f.Ext != "flv" {
		t.Errorf("protocol/ext = %s/%s", f.Protocol, f.Ext)
	}
	if f.URL != "rtmp://host/ondemand?token123" {
		t.Errorf("URL = %q", f.URL)
	}

	p := f.ProtocolParams
	checks := map[string]string{
		ParamServer:      "rtmp://host",
		ParamApplication: "ondemand",
		ParamAuth:        "token123",
		ParamPlayPath:    "path/to/stream",
		ParamApp:         "ondemand?token123",
		ParamPageURL:     "https://www.example.com/programme",
		ParamLive:        "false",
	}
	for k, want := range checks {
		if p[k] != want {
			t.Errorf("ProtocolParams[%q] = %q, want %q", k, p[k], want)
		}
	}
}

func TestRTMPDefaults(t *testing.T) {
	formats, _, _ := RTMP{Server: "cp1.example.net", Identifier: "mp4:clip"}.Expand(context.Background(), Context{})
	f := formats[0]
	if f.URL != "rtmp://cp1.example.net/ondemand" {
		t.Errorf("URL = %q", f.URL)
	}
	if f.FormatID != "rtmp" || f.ProtocolParams[ParamApplication] != DefaultApplication {
		t.Errorf("record = %+v", f)
	}
}

func TestDirect(t *testing.T) {
	actx := Context{BaseURL: "https://cdn.example.com/media/"}
	formats, _, err := Direct{URL: "clip.mp4", Height: mo.Some(720), Filesize: mo.Some(int64(1024))}.Expand(context.Background(), actx)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if len(formats) != 1 {
		t.Fatalf("got %d formats, want 1", len(formats))
	}
	f := formats[0]
	if f.URL != "https://cdn.example.com/media/clip.mp4" || f.FormatID != "http" || f.Protocol != media.DirectHTTP {
		t.Errorf("record = %+v", f)
	}
	if f.Height.OrElse(0) != 720 || f.Filesize.OrElse(0) != 1024 {
		t.Errorf("attributes not carried: %+v", f)
	}

	if formats, _, _ := (Direct{}).Expand(context.Background(), actx); len(formats) != 0 {
		t.Error("empty URL should yield no record")
	}
}

func TestExpandDeduplicatesAcrossDescriptors(t *testing.T) {
	srv := newManifestServer(t)
	actx := testContext(srv)
	c := format.NewCollector()

	err := Expand(context.Background(), c, actx,
		HLS{ManifestURL: "hls/media.m3u8", ID: "first", Mode: Fatal},
		Direct{URL: srv.URL + "/hls/media.m3u8", ID: "second"},
	)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	formats, _ := c.Finalize()
	if len(formats) != 1 || formats[0].FormatID != "first" {
		t.Errorf("formats = %+v", formats)
	}
}

func TestFormatIDPolicies(t *testing.T) {
	tests := []struct {
		supplier, kind, protocol string
		kbps                     int
		want                     string
	}{
		{"akamai", "http", "https", 1500, "akamai"},
		{"", "http", "https", 1500, "http-1500"},
		{"", "", "rtmp", 320, "rtmp-320"},
		{"", "", "rtmp", 0, "rtmp"},
		{"limelight", "", "rtmp", 320, "limelight"},
	}
	for _, tt := range tests {
		id := WithBitrate(FormatID(tt.supplier, tt.kind, tt.protocol), tt.supplier, tt.kbps)
		if id != tt.want {
			t.Errorf("FormatID(%q, %q, %q) + %d = %q, want %q", tt.supplier, tt.kind, tt.protocol, tt.kbps, id, tt.want)
		}
	}
}

func TestIgnoreStatus(t *testing.T) {
	notFound := &httputil.HTTPError{URL: "https://example.com", StatusCode: http.StatusNotFound}
	if err := IgnoreStatus(notFound, http.StatusNotFound); err != nil {
		t.Errorf("404 should be ignored, got %v", err)
	}
	other := errors.New("boom")
	if err := IgnoreStatus(other, http.StatusNotFound); err != other {
		t.Errorf("IgnoreStatus changed unrelated error: %v", err)
	}
	if IgnoreStatus(nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestMPDAttributes(t *testing.T) {
	id, width, bw := " v720 ", int64(1280), "2400000"
	if got := attr(&id); got != "v720" {
		t.Errorf("attr(*string) = %q", got)
	}
	if got := attr([]string{"media/", "backup/"}); got != "media/" {
		t.Errorf("attr([]string) = %q", got)
	}
	if got := attr((*string)(nil)); got != "" {
		t.Errorf("attr(nil) = %q", got)
	}
	if got := attrInt(&width); got != 1280 {
		t.Errorf("attrInt(*int64) = %d", got)
	}
	if got := attrInt(&bw); got != 2400000 {
		t.Errorf("attrInt(*string) = %d", got)
	}
	if got := attrInt((*int64)(nil)); got != 0 {
		t.Errorf("attrInt(nil) = %d", got)
	}
}
