package site

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"mediagrab/internal/adapter"
	"mediagrab/internal/extractor"
	"mediagrab/internal/format"
	"mediagrab/internal/httputil"
	"mediagrab/internal/media"
)

var (
	dropboxPathRe    = regexp.MustCompile(`^/sh?/([a-zA-Z0-9]{15})/`)
	dropboxContentRe = regexp.MustCompile(`content_id=(.*?)["']`)
	dropboxReactRe   = regexp.MustCompile(`(?s)InitReact\s*\.\s*mountComponent\s*\(.*?,\s*(\s*\{.+?\})\s*?\)`)
)

// Dropbox extracts shared-link videos.
type Dropbox struct {
	// BaseURL hosts the password endpoint. Defaults to https://www.dropbox.com.
	BaseURL string
}

type dropboxProps struct {
	File    *dropboxFile `json:"file"`
	Preview *struct {
		File *dropboxFile `json:"file"`
	} `json:"preview"`
	SharePermission struct {
		CanDownloadRoles []string `json:"canDownloadRoles"`
	} `json:"sharePermission"`
}

type dropboxFile struct {
	Preview struct {
		Content struct {
			TranscodeURL string `json:"transcode_url"`
		} `json:"content"`
	} `json:"preview"`
}

func (d *Dropbox) Name() string { return "dropbox" }

func (d *Dropbox) Match(u *url.URL) bool {
	return dropboxPathRe.MatchString(u.Path)
}

func (d *Dropbox) Extract(ctx context.Context, env extractor.Env, rawURL string) (*extractor.Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, extractor.Failf(d.Name(), "", err, "invalid URL")
	}
	m := dropboxPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, extractor.Failf(d.Name(), "", extractor.ErrUnsupported, "no shared link id in %s", u.Path)
	}
	id := m[1]

	fileName := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(fileName); err == nil {
		fileName = unescaped
	}
	title := strings.TrimSuffix(fileName, path.Ext(fileName))

	resp, err := env.Fetcher.Fetch(ctx, rawURL, httputil.Options{Note: "Downloading webpage"})
	if err != nil {
		return nil, extractor.Failf(d.Name(), id, err, "downloading webpage")
	}
	webpage := string(resp.Body)

	if passwordRequired(resp.Body) {
		if env.VideoPassword == "" {
			return nil, &extractor.AuthRequiredError{
				Extractor: d.Name(),
				Reason:    "password protected video, use --video-password <password>",
			}
		}
		webpage, err = d.unlock(ctx, env, rawURL, id, resp)
		if err != nil {
			return nil, err
		}
	}

	props := parseDropboxProps(webpage)

	c := format.NewCollector()
	sources := &extractor.Sources{}
	actx := adapter.Context{ID: id, BaseURL: rawURL, Fetcher: env.Fetcher, Failures: sources}

	if transcode := props.transcodeURL(); transcode != "" {
		hls := adapter.HLS{
			ManifestURL: transcode,
			Ext:         lo.CoalesceOrEmpty(media.DetermineExt(rawURL), "mp4"),
			Mode:        adapter.BestEffort,
		}
		if err := adapter.Expand(ctx, c, actx, hls); err != nil {
			return nil, extractor.Failf(d.Name(), id, err, "expanding transcode")
		}
	}

	if slices.Contains(props.SharePermission.CanDownloadRoles, "anonymous") {
		q := u.Query()
		q.Set("dl", "1")
		original := *u
		original.RawQuery = q.Encode()
		if err := adapter.Expand(ctx, c, actx, adapter.Direct{
			URL:     original.String(),
			ID:      "original",
			Note:    "Original",
			Quality: mo.Some(1.0),
		}); err != nil {
			return nil, extractor.Failf(d.Name(), id, err, "adding original")
		}
	}

	return extractor.Finish(d.Name(), &media.Info{ID: id, Title: title, WebpageURL: rawURL}, c, sources)
}

func passwordRequired(body []byte) bool {
	if strings.Contains(string(body), "Enter the password for this link") {
		return true
	}
	doc, err := parseHTML(body)
	return err == nil && metaContent(doc, "og:title") == "Dropbox - Password Required"
}

// unlock posts the video password and returns the page as seen by the
// authenticated session.
func (d *Dropbox) unlock(ctx context.Context, env extractor.Env, rawURL, id string, page *httputil.Response) (string, error) {
	m := dropboxContentRe.FindStringSubmatch(string(page.Body))
	if m == nil {
		return "", extractor.Failf(d.Name(), id, nil, "unable to find content_id")
	}

	cookies := (&http.Response{Header: page.Header}).Cookies()
	form := url.Values{
		"is_xhr":     {"true"},
		"content_id": {m[1]},
		"password":   {env.VideoPassword},
		"url":        {rawURL},
	}
	if t, ok := lo.Find(cookies, func(c *http.Cookie) bool { return c.Name == "t" }); ok {
		form.Set("t", t.Value)
	}

	base := lo.CoalesceOrEmpty(d.BaseURL, "https://www.dropbox.com")
	resp, err := env.Fetcher.Fetch(ctx, strings.TrimRight(base, "/")+"/sm/auth", httputil.Options{
		Method:  http.MethodPost,
		Body:    []byte(form.Encode()),
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded; charset=UTF-8"},
		Note:    "POSTing video password",
	})
	if err != nil {
		return "", extractor.Failf(d.Name(), id, err, "posting video password")
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body, &status); err != nil || status.Status != "authed" {
		return "", extractor.Expectedf(d.Name(), id, "authentication failed")
	}

	// The fetcher's cookie jar carries the session into this request.
	page, err = env.Fetcher.Fetch(ctx, rawURL, httputil.Options{Note: "Downloading webpage"})
	if err != nil {
		return "", extractor.Failf(d.Name(), id, err, "downloading webpage")
	}
	return string(page.Body), nil
}

// parseDropboxProps finds the file viewer component's props in the page.
func parseDropboxProps(webpage string) dropboxProps {
	var props dropboxProps
	for _, m := range dropboxReactRe.FindAllStringSubmatch(webpage, -1) {
		if !strings.Contains(m[1], "/react/file_viewer/") {
			continue
		}
		var component struct {
			Props dropboxProps `json:"props"`
		}
		if err := json.Unmarshal([]byte(m[1]), &component); err == nil {
			props = component.Props
		}
		break
	}
	return props
}

func (p dropboxProps) transcodeURL() string {
	files := []*dropboxFile{p.File}
	if p.Preview != nil {
		files = append(files, p.Preview.File)
	}
	for _, f := range files {
		if f == nil {
			continue
		}
		if u := f.Preview.Content.TranscodeURL; httputil.ValidateHTTPURL(u) == nil {
			return u
		}
	}
	return ""
}

func init() {
	extractor.Register(&Dropbox{}, "dropbox.com")
}
