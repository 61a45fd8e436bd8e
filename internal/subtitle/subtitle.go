// Package subtitle picks subtitle tracks by language and fetches them into
// a private temporary directory.
package subtitle

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"mediagrab/internal/filesystem"
	"mediagrab/internal/httputil"
	"mediagrab/internal/media"
)

// Filter returns the tracks whose language tag matches language
// (case-insensitive), either exactly or as a primary subtag ("en" matches
// "en-GB"). An empty language matches everything.
func Filter(subs media.Subtitles, language string) media.Subtitles {
	if language == "" {
		return subs
	}
	lang := strings.ToLower(language)
	return lo.PickBy(subs, func(tag string, _ []media.SubtitleFile) bool {
		return matches(strings.ToLower(tag), lang)
	})
}

func matches(tag, lang string) bool {
	return tag == lang || strings.HasPrefix(tag, lang+"-") || strings.HasPrefix(tag, lang+"_")
}

// extPreference lists subtitle formats players handle best first.
var extPreference = []string{"srt", "vtt", "ttml", "dfxp", "xml"}

// BestMatch returns the best track for language: an exact tag beats a
// subtag match, a non-SDH name beats an SDH one, and srt/vtt beat TTML.
func BestMatch(subs media.Subtitles, language string) (string, *media.SubtitleFile) {
	filtered := Filter(subs, language)
	if len(filtered) == 0 {
		return "", nil
	}

	tags := lo.Keys(filtered)
	lang := strings.ToLower(language)
	slices.SortFunc(tags, func(a, b string) int {
		ea, eb := strings.EqualFold(a, lang), strings.EqualFold(b, lang)
		switch {
		case ea && !eb:
			return -1
		case eb && !ea:
			return 1
		}
		return strings.Compare(a, b)
	})

	for _, tag := range tags {
		files := slices.Clone(filtered[tag])
		if len(files) == 0 {
			continue
		}
		slices.SortStableFunc(files, func(a, b media.SubtitleFile) int {
			if sa, sb := isSDH(a), isSDH(b); sa != sb {
				if sa {
					return 1
				}
				return -1
			}
			return extRank(a.Ext) - extRank(b.Ext)
		})
		return tag, &files[0]
	}
	return "", nil
}

func isSDH(f media.SubtitleFile) bool {
	return strings.Contains(strings.ToLower(f.Name), "sdh")
}

func extRank(ext string) int {
	if i := slices.Index(extPreference, strings.ToLower(ext)); i >= 0 {
		return i
	}
	return len(extPreference)
}

// TempDir manages a private temporary directory for subtitle files.
type TempDir struct {
	path string
	fs   afero.Afero
}

// NewTempDir creates a randomized temporary directory for subtitle files.
func NewTempDir() (*TempDir, error) {
	fsys := filesystem.API()
	dir, err := fsys.TempDir("", "mediagrab-subs-")
	if err != nil {
		return nil, fmt.Errorf("creating subtitle temp dir: %w", err)
	}
	return &TempDir{path: dir, fs: fsys}, nil
}

// Path returns the directory path.
func (t *TempDir) Path() string { return t.path }

// Cleanup removes the temporary directory and all contents.
func (t *TempDir) Cleanup() {
	if t.path != "" {
		t.fs.RemoveAll(t.path)
	}
}

// Download fetches a subtitle file into the temp directory and returns the
// local path. TTML documents are converted to SRT so players can load them.
func (t *TempDir) Download(ctx context.Context, f httputil.Fetcher, sub media.SubtitleFile) (string, error) {
	if err := httputil.ValidateHTTPURL(sub.URL); err != nil {
		return "", fmt.Errorf("invalid subtitle URL: %w", err)
	}

	resp, err := f.Fetch(ctx, sub.URL, httputil.Options{Note: "Downloading subtitles"})
	if err != nil {
		return "", fmt.Errorf("downloading subtitle: %w", err)
	}

	data := resp.Body
	filename := filenameFor(sub)
	if isTTML(sub.Ext) {
		srt, err := TTMLToSRT(data)
		if err != nil {
			return "", fmt.Errorf("converting subtitle: %w", err)
		}
		data = srt
		filename = strings.TrimSuffix(filename, path.Ext(filename)) + ".srt"
	}

	localPath, err := httputil.SafeDownloadPath(t.path, filename)
	if err != nil {
		return "", fmt.Errorf("invalid subtitle path: %w", err)
	}
	if err := t.fs.WriteFile(localPath, data, 0o600); err != nil {
		return "", fmt.Errorf("writing subtitle file: %w", err)
	}
	return localPath, nil
}

func isTTML(ext string) bool {
	switch strings.ToLower(ext) {
	case "ttml", "dfxp", "xml":
		return true
	}
	return false
}

// filenameFor derives a local name from the URL path, falling back to
// "subtitle.<ext>".
func filenameFor(sub media.SubtitleFile) string {
	ext := lo.CoalesceOrEmpty(sub.Ext, "vtt")
	name := "subtitle." + ext
	if u, err := url.Parse(sub.URL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = httputil.SanitizeFilename(base)
		}
	}
	if path.Ext(name) == "" {
		name += "." + ext
	}
	return name
}
