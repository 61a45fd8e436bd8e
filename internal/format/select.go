package format

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"mediagrab/internal/media"
)

// ErrNoMatch reports a selector that matched no format.
var ErrNoMatch = errors.New("requested format not available")

// Select picks one format from a ranked slice (worst first). The selector is
// a "/"-separated fallback chain of:
//
//	best       highest ranked format
//	worst      lowest ranked format
//	bestvideo  highest ranked format with video
//	bestaudio  highest ranked audio-only format
//	<id>       the format with that ID
//
// maxHeight > 0 restricts best and bestvideo to formats whose height is
// known and not above it.
func Select(ranked []media.Format, selector string, maxHeight int) (media.Format, error) {
	for _, alt := range strings.Split(selector, "/") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		if f, ok := selectOne(ranked, alt, maxHeight); ok {
			return f, nil
		}
	}
	return media.Format{}, fmt.Errorf("%w: %q", ErrNoMatch, selector)
}

func selectOne(ranked []media.Format, selector string, maxHeight int) (media.Format, bool) {
	switch selector {
	case "best":
		return lastWhere(ranked, func(f media.Format) bool { return fitsHeight(f, maxHeight) })
	case "worst":
		return lo.First(ranked)
	case "bestvideo":
		return lastWhere(ranked, func(f media.Format) bool { return !f.IsAudioOnly() && fitsHeight(f, maxHeight) })
	case "bestaudio":
		return lastWhere(ranked, media.Format.IsAudioOnly)
	}
	return lo.Find(ranked, func(f media.Format) bool { return f.FormatID == selector })
}

func lastWhere(ranked []media.Format, pred func(media.Format) bool) (media.Format, bool) {
	for i := len(ranked) - 1; i >= 0; i-- {
		if pred(ranked[i]) {
			return ranked[i], true
		}
	}
	return media.Format{}, false
}

func fitsHeight(f media.Format, maxHeight int) bool {
	if maxHeight <= 0 {
		return true
	}
	h, ok := f.Height.Get()
	return ok && h <= maxHeight
}
