package extractor

import (
	"fmt"
	"strings"

	"mediagrab/internal/format"
	"mediagrab/internal/log"
	"mediagrab/internal/media"
)

// Sources records failures of redundant upstream sources for one item and
// decides, once they are exhausted, whether the extraction failed.
type Sources struct {
	Extractor string
	ID        string
	failures  []error
}

// Fail records that source could not be used.
func (s *Sources) Fail(source string, err error) {
	s.failures = append(s.failures, fmt.Errorf("%s: %w", source, err))
}

// Failed returns the number of recorded failures.
func (s *Sources) Failed() int { return len(s.failures) }

// sourceErrors joins source failures into a single line.
type sourceErrors []error

func (e sourceErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e sourceErrors) Unwrap() []error { return e }

// Resolve reports the outcome given what c collected. An empty collector is
// a failure carrying every source error; a partial result only logs a
// warning per failed source.
func (s *Sources) Resolve(c *format.Collector) error {
	if c.Len() == 0 {
		switch len(s.failures) {
		case 0:
			return &ExtractionError{Extractor: s.Extractor, ID: s.ID, Cause: ErrNoFormats, Expected: true}
		case 1:
			return &ExtractionError{Extractor: s.Extractor, ID: s.ID, Reason: "no formats found", Cause: s.failures[0]}
		default:
			return &ExtractionError{Extractor: s.Extractor, ID: s.ID, Reason: "no formats found", Cause: sourceErrors(s.failures)}
		}
	}
	for _, err := range s.failures {
		log.Warnf("%s: %s: some formats may be missing: %v", s.Extractor, s.ID, err)
	}
	return nil
}

// Finish ranks what c collected into info. sources, when given, decides
// whether an empty or partial result is an error; without it an empty
// collector fails with ErrNoFormats.
func Finish(name string, info *media.Info, c *format.Collector, sources *Sources) (*Result, error) {
	if sources == nil {
		sources = &Sources{}
	}
	sources.Extractor = name
	sources.ID = info.ID
	if err := sources.Resolve(c); err != nil {
		return nil, err
	}
	info.Formats, info.Subtitles = c.Finalize()
	info.Extractor = name
	return &Result{Info: info}, nil
}
