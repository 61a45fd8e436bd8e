// Package adapter expands protocol-specific media descriptors into format
// records and feeds them to a format.Collector.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"mediagrab/internal/format"
	"mediagrab/internal/httputil"
	"mediagrab/internal/log"
	"mediagrab/internal/media"
)

// Mode decides what an expansion failure means for the caller.
type Mode int

const (
	// BestEffort turns any failure into zero records and a warning. Used for
	// redundant sources.
	BestEffort Mode = iota
	// Fatal returns the failure to the caller. Used for the only source.
	Fatal
)

func (m Mode) String() string {
	if m == Fatal {
		return "fatal"
	}
	return "best-effort"
}

// Context carries what every adapter call needs besides its descriptor.
type Context struct {
	// ID names the media item in logs and errors.
	ID string
	// BaseURL resolves relative descriptor URLs.
	BaseURL string
	Fetcher httputil.Fetcher
	// Headers are sent with manifest requests and attached to records.
	Headers map[string]string
	// Failures receives best-effort failures. Without one they are logged.
	Failures Reporter
}

// Reporter collects the failures of best-effort sources so the caller can
// decide, once every source was tried, whether they matter.
type Reporter interface {
	Fail(source string, err error)
}

// Descriptor is a raw media descriptor discovered by an extractor. The set of
// implementations is closed: Direct, HLS, DASH, LegacyPlaylist and RTMP.
type Descriptor interface {
	// Expand turns the descriptor into concrete records without applying
	// its mode.
	Expand(ctx context.Context, actx Context) ([]media.Format, media.Subtitles, error)
	mode() Mode
}

// Expand expands each descriptor in order and adds the results to c. A
// best-effort failure is handed to actx.Failures (or logged) and skipped; a
// fatal failure stops the run and is returned.
func Expand(ctx context.Context, c *format.Collector, actx Context, descriptors ...Descriptor) error {
	for _, d := range descriptors {
		var (
			records []media.Format
			subs    media.Subtitles
			err     error
			kind    string
		)
		switch d := d.(type) {
		case Direct:
			kind = "direct"
			records, subs, err = d.Expand(ctx, actx)
		case HLS:
			kind = "hls"
			records, subs, err = d.Expand(ctx, actx)
		case DASH:
			kind = "dash"
			records, subs, err = d.Expand(ctx, actx)
		case LegacyPlaylist:
			kind = "legacy playlist"
			records, subs, err = d.Expand(ctx, actx)
		case RTMP:
			kind = "rtmp"
			records, subs, err = d.Expand(ctx, actx)
		default:
			return fmt.Errorf("unsupported descriptor %T", d)
		}

		if err != nil {
			if d.mode() == Fatal {
				return fmt.Errorf("%s: %w", actx.ID, err)
			}
			if actx.Failures != nil {
				actx.Failures.Fail(kind, err)
			} else {
				log.Warnf("%s: skipping %s source: %v", actx.ID, kind, err)
			}
			continue
		}

		c.Add(records...)
		c.AddSubtitles(subs)
	}
	return nil
}

// ExpandTolerant expands descriptors like Expand but treats HTTP 403 and 404
// as an empty source. Other errors from fatal descriptors propagate. This is
// the policy for iterating redundant media sets.
func ExpandTolerant(ctx context.Context, c *format.Collector, actx Context, descriptors ...Descriptor) error {
	for _, d := range descriptors {
		err := Expand(ctx, c, actx, d)
		if err = IgnoreStatus(err, http.StatusForbidden, http.StatusNotFound); err != nil {
			return err
		}
	}
	return nil
}

// IgnoreStatus returns nil when err wraps an HTTP error with one of codes,
// and err otherwise.
func IgnoreStatus(err error, codes ...int) error {
	if err == nil {
		return nil
	}
	if httputil.IsStatus(err, codes...) {
		log.Debugf("ignoring %v", err)
		return nil
	}
	return err
}

// FormatID picks the first non-empty of supplier, connection kind and
// protocol.
func FormatID(supplier, kind, protocol string) string {
	for _, s := range []string{supplier, kind, protocol} {
		if s != "" {
			return s
		}
	}
	return ""
}

// WithBitrate appends the bitrate in kbps to id when there is no supplier
// to tell formats apart.
func WithBitrate(id, supplier string, kbps int) string {
	if supplier != "" || kbps <= 0 {
		return id
	}
	return id + "-" + strconv.Itoa(kbps)
}

// ErrEmptyManifest reports a manifest that parsed but listed nothing.
var ErrEmptyManifest = errors.New("manifest lists no renditions")

func (actx Context) resolve(ref string) string {
	return httputil.ResolveURL(actx.BaseURL, ref)
}

func (actx Context) fetch(ctx context.Context, rawURL, note string) (*httputil.Response, error) {
	if actx.Fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	return actx.Fetcher.Fetch(ctx, rawURL, httputil.Options{
		Headers: actx.Headers,
		Note:    note,
	})
}
