package media

import (
	"time"

	"github.com/samber/lo"
)

// SubtitleFile is one downloadable subtitle document.
type SubtitleFile struct {
	URL  string `json:"url"`
	Ext  string `json:"ext,omitempty"` // e.g. "ttml", "vtt", "srt"
	Name string `json:"name,omitempty"`
}

// Subtitles maps a language tag to its subtitle files, in discovery order.
type Subtitles map[string][]SubtitleFile

// Merge appends other's files onto s, concatenating for shared languages.
// A nil receiver is replaced by a fresh map, so callers use the result.
func (s Subtitles) Merge(other Subtitles) Subtitles {
	if s == nil {
		s = make(Subtitles, len(other))
	}
	for _, lang := range lo.Keys(other) {
		s[lang] = append(s[lang], other[lang]...)
	}
	return s
}

// Languages returns the language tags in s.
func (s Subtitles) Languages() []string {
	return lo.Keys(s)
}

// Thumbnail is an image representing the media item.
type Thumbnail struct {
	ID     string `json:"id,omitempty"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Info is the extraction result for a single media item.
type Info struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Formats     []Format    `json:"formats"`
	Subtitles   Subtitles   `json:"subtitles,omitempty"`
	Description string      `json:"description,omitempty"`
	Duration    float64     `json:"duration,omitempty"` // seconds
	Timestamp   int64       `json:"timestamp,omitempty"`
	Thumbnail   string      `json:"thumbnail,omitempty"`
	Thumbnails  []Thumbnail `json:"thumbnails,omitempty"`
	Uploader    string      `json:"uploader,omitempty"`
	UploaderID  string      `json:"uploader_id,omitempty"`
	Categories  []string    `json:"categories,omitempty"`
	ViewCount   int64       `json:"view_count,omitempty"`
	IsLive      bool        `json:"is_live,omitempty"`
	Extractor   string      `json:"extractor"`
	WebpageURL  string      `json:"webpage_url,omitempty"`
}

// UploadTime returns the timestamp as a time, or the zero time.
func (i *Info) UploadTime() time.Time {
	if i.Timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(i.Timestamp, 0).UTC()
}

// Entry is one item of a playlist: either a resolved Info or a deferred
// reference that a named extractor can resolve later.
type Entry struct {
	Info *Info `json:"info,omitempty"`

	URL       string `json:"url,omitempty"`
	ID        string `json:"id,omitempty"`
	Extractor string `json:"ie_key,omitempty"`
}

// Deferred reports whether the entry still needs resolving.
func (e Entry) Deferred() bool { return e.Info == nil }

// Playlist is the extraction result for a page listing multiple items.
type Playlist struct {
	ID          string  `json:"id"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Entries     []Entry `json:"entries"`
	Extractor   string  `json:"extractor"`
}

// HistoryEntry records one completed extraction.
type HistoryEntry struct {
	ID        string    // Media ID reported by the extractor
	Title     string    // Display title
	Extractor string    // Extractor name
	FormatID  string    // Selected format
	URL       string    // Page URL that was extracted
	Time      time.Time // When the extraction finished
}
