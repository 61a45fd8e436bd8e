package extractor

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// extractorsByHost maps hostnames to their extractors.
var extractorsByHost = map[string][]Extractor{}

// fallbackExtractor handles direct media URLs on unknown hosts.
var fallbackExtractor Extractor

// byName resolves deferred playlist entries.
var byName = map[string]Extractor{}

// Register adds an extractor for the given hostnames. Several extractors may
// share a host; they are tried in registration order.
func Register(e Extractor, hosts ...string) {
	for _, host := range hosts {
		host = strings.ToLower(host)
		extractorsByHost[host] = append(extractorsByHost[host], e)
	}
	byName[e.Name()] = e
}

// RegisterFallback sets the extractor used when no host matches.
func RegisterFallback(e Extractor) {
	fallbackExtractor = e
	byName[e.Name()] = e
}

// Match finds the extractor for rawURL, trying the exact host, the host
// without "www.", then the fallback.
func Match(rawURL string) (Extractor, *url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing URL: %w", err)
	}

	host := strings.ToLower(u.Hostname())
	candidates := []string{host}
	if trimmed, ok := strings.CutPrefix(host, "www."); ok {
		candidates = append(candidates, trimmed)
	}
	for _, h := range candidates {
		for _, e := range extractorsByHost[h] {
			if e.Match(u) {
				return e, u, nil
			}
		}
	}

	if fallbackExtractor != nil && fallbackExtractor.Match(u) {
		return fallbackExtractor, u, nil
	}
	return nil, u, fmt.Errorf("%w: %s", ErrUnsupported, rawURL)
}

// Lookup returns the extractor registered under name.
func Lookup(name string) (Extractor, bool) {
	e, ok := byName[name]
	return e, ok
}

// List returns all registered extractors sorted by name.
func List() []Extractor {
	all := lo.Values(byName)
	slices.SortFunc(all, func(a, b Extractor) int { return strings.Compare(a.Name(), b.Name()) })
	return all
}

// Hosts returns the hostnames registered for the named extractor.
func Hosts(name string) []string {
	hosts := lo.Filter(lo.Keys(extractorsByHost), func(h string, _ int) bool {
		return lo.ContainsBy(extractorsByHost[h], func(e Extractor) bool { return e.Name() == name })
	})
	slices.Sort(hosts)
	return hosts
}
