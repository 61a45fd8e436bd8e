// Package site holds the per-site extractors. Each registers itself with the
// extractor registry from init, so importing the package enables them all.
package site

import (
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// parseHTML parses a downloaded page.
func parseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	return doc, nil
}

// metaContent returns the first non-empty content of a <meta> tag whose
// property or name is one of keys.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, key, key)
		if v := strings.TrimSpace(doc.Find(sel).First().AttrOr("content", "")); v != "" {
			return v
		}
	}
	return ""
}

// pageTitle returns og:title, falling back to <title>.
func pageTitle(doc *goquery.Document) string {
	return lo.CoalesceOrEmpty(
		metaContent(doc, "og:title", "twitter:title"),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
}

// baseName returns the last path element of p without its extension.
func baseName(p string) string {
	name := path.Base(p)
	return strings.TrimSuffix(name, path.Ext(name))
}

// flexInt decodes a JSON number or a numeric string. Anything else is zero.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*n = flexInt(v)
	}
	return nil
}

// option returns the value as a present option when positive.
func (n flexInt) option() mo.Option[int] {
	if n <= 0 {
		return mo.None[int]()
	}
	return mo.Some(int(n))
}
