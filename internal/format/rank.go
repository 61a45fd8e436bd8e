package format

import (
	"cmp"
	"math"
	"slices"

	"github.com/samber/mo"

	"mediagrab/internal/media"
)

// AlternateLanguagePenalty is the language preference given to alternate
// renditions such as audio-described versions. Empirical; tune freely.
const AlternateLanguagePenalty = -10

// unknown ranks below every real value, including zero.
const unknown = -1

// legacyPenalty lists transports and containers that sort below everything
// else at equal quality and language preference.
var legacyPenalty = map[string]int{
	"rtmp": -2,
	"flv":  -1,
	"3gp":  -1,
	"f4v":  -1,
}

// Compare orders a before b (negative), after b (positive) or as equal (0)
// on the ranking keys, worst first. Insertion order is not considered here;
// Sort applies it as the final tie-break.
//
// Below the explicit weights, a record with neither resolution nor bitrate
// ranks under every record that has one, whatever its transport.
func Compare(a, b media.Format) int {
	if c := cmp.Compare(floatKey(a.Quality, 0), floatKey(b.Quality, 0)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.LanguagePreference, b.LanguagePreference); c != 0 {
		return c
	}
	if c := cmp.Compare(described(a), described(b)); c != 0 {
		return c
	}
	if c := cmp.Compare(preference(a), preference(b)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Height.OrElse(unknown), b.Height.OrElse(unknown)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Width.OrElse(unknown), b.Width.OrElse(unknown)); c != 0 {
		return c
	}
	if c := cmp.Compare(floatKey(a.Bitrate(), unknown), floatKey(b.Bitrate(), unknown)); c != 0 {
		return c
	}
	return cmp.Compare(a.Filesize.OrElse(unknown), b.Filesize.OrElse(unknown))
}

// Less reports whether a ranks strictly below b.
func Less(a, b media.Format) bool {
	return Compare(a, b) < 0
}

// Sort returns a ranked copy of formats, worst first and best last.
// Formats equal on every key keep their relative input order.
func Sort(formats []media.Format) []media.Format {
	ranked := slices.Clone(formats)
	slices.SortStableFunc(ranked, Compare)
	return ranked
}

// Best returns the highest ranked format of an already sorted slice.
func Best(ranked []media.Format) (media.Format, bool) {
	if len(ranked) == 0 {
		return media.Format{}, false
	}
	return ranked[len(ranked)-1], true
}

// described is 1 when f knows its resolution or bitrate.
func described(f media.Format) int {
	if f.Height.IsPresent() || f.Width.IsPresent() {
		return 1
	}
	if v, ok := f.Bitrate().Get(); ok && !math.IsNaN(v) {
		return 1
	}
	return 0
}

func preference(f media.Format) int {
	p := 0
	if f.Protocol == media.RTMP {
		p += legacyPenalty["rtmp"]
	}
	ext := f.Ext
	if ext == "" {
		ext = media.DetermineExt(f.URL)
	}
	return p + legacyPenalty[ext]
}

// floatKey maps absent and NaN values to fallback so comparisons stay a
// strict weak ordering.
func floatKey(o mo.Option[float64], fallback float64) float64 {
	v, ok := o.Get()
	if !ok || math.IsNaN(v) {
		return fallback
	}
	return v
}
