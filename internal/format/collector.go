// Package format accumulates formats from redundant sources and ranks them.
package format

import (
	"strconv"

	"mediagrab/internal/media"
)

// Collector owns the formats and subtitles gathered for one extraction.
// It is not safe for concurrent use.
type Collector struct {
	formats   []media.Format
	seenURLs  map[string]struct{}
	seenIDs   map[string]int
	subtitles media.Subtitles
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		seenURLs: make(map[string]struct{}),
		seenIDs:  make(map[string]int),
	}
}

// Add appends records whose URL has not been seen yet. Duplicates are
// dropped, keeping the first-seen record. A record whose format ID collides
// with an earlier one gets a numeric suffix.
func (c *Collector) Add(records ...media.Format) {
	for _, f := range records {
		if f.URL == "" {
			continue
		}
		if _, dup := c.seenURLs[f.URL]; dup {
			continue
		}
		c.seenURLs[f.URL] = struct{}{}

		if f.FormatID == "" {
			f.FormatID = strconv.Itoa(len(c.formats))
		}
		f.FormatID = c.uniqueID(f.FormatID)
		if f.Ext == "" {
			f.Ext = inferExt(f)
		}
		c.formats = append(c.formats, f)
	}
}

// AddSubtitles merges tracks into the collected subtitles.
func (c *Collector) AddSubtitles(tracks media.Subtitles) {
	if len(tracks) == 0 {
		return
	}
	c.subtitles = c.subtitles.Merge(tracks)
}

// Len returns the number of collected formats.
func (c *Collector) Len() int { return len(c.formats) }

// Empty reports whether neither formats nor subtitles were collected.
func (c *Collector) Empty() bool {
	return len(c.formats) == 0 && len(c.subtitles) == 0
}

// Finalize returns the ranked formats (worst first, best last) and the
// merged subtitles. The collector keeps its insertion order, so repeated
// calls return the same result.
func (c *Collector) Finalize() ([]media.Format, media.Subtitles) {
	ranked := Sort(c.formats)

	var subs media.Subtitles
	if len(c.subtitles) > 0 {
		subs = make(media.Subtitles, len(c.subtitles))
		for lang, files := range c.subtitles {
			subs[lang] = append([]media.SubtitleFile(nil), files...)
		}
	}
	return ranked, subs
}

func (c *Collector) uniqueID(id string) string {
	n, taken := c.seenIDs[id]
	if !taken {
		c.seenIDs[id] = 0
		return id
	}
	for {
		n++
		candidate := id + "-" + strconv.Itoa(n)
		if _, used := c.seenIDs[candidate]; used {
			continue
		}
		c.seenIDs[id] = n
		c.seenIDs[candidate] = 0
		return candidate
	}
}

func inferExt(f media.Format) string {
	switch f.Protocol {
	case media.HLS, media.DASH:
		return "mp4"
	case media.RTMP:
		return "flv"
	}
	if ext := media.DetermineExt(f.URL); ext != "" {
		return ext
	}
	if f.IsAudioOnly() {
		return "m4a"
	}
	return "mp4"
}
