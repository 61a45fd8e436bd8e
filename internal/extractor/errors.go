package extractor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthRequired is wrapped by every AuthRequiredError so callers can
	// prompt for credentials instead of retrying.
	ErrAuthRequired = errors.New("authentication required")
	// ErrGeoRestricted is wrapped by every GeoRestrictedError.
	ErrGeoRestricted = errors.New("not available from your location")
	// ErrNoFormats reports an extraction where every source came up empty.
	ErrNoFormats = errors.New("no formats found")
	// ErrUnsupported reports a URL no extractor handles.
	ErrUnsupported = errors.New("unsupported URL")
)

// ExtractionError is a failed extraction with a human-readable reason.
// Expected errors describe the content (expired, DRM) rather than a bug.
type ExtractionError struct {
	Extractor string
	ID        string
	Reason    string
	Cause     error
	Expected  bool
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Extractor)
	if e.ID != "" {
		b.WriteString(": ")
		b.WriteString(e.ID)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// Failf builds an ExtractionError with a formatted reason.
func Failf(extractor, id string, cause error, format string, args ...any) *ExtractionError {
	return &ExtractionError{Extractor: extractor, ID: id, Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// Expectedf builds an expected ExtractionError with a formatted reason.
func Expectedf(extractor, id string, format string, args ...any) *ExtractionError {
	e := Failf(extractor, id, nil, format, args...)
	e.Expected = true
	return e
}

// AuthRequiredError reports that the site wants a password or login.
type AuthRequiredError struct {
	Extractor string
	Reason    string
}

func (e *AuthRequiredError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Extractor, ErrAuthRequired)
	}
	return fmt.Sprintf("%s: %v: %s", e.Extractor, ErrAuthRequired, e.Reason)
}

func (e *AuthRequiredError) Unwrap() error { return ErrAuthRequired }

// GeoRestrictedError reports content blocked for the caller's location.
type GeoRestrictedError struct {
	Extractor string
	Countries []string
}

func (e *GeoRestrictedError) Error() string {
	msg := fmt.Sprintf("%s: this video is %v", e.Extractor, ErrGeoRestricted)
	if len(e.Countries) > 0 {
		msg += " (available in " + strings.Join(e.Countries, ", ") + ")"
	}
	return msg
}

func (e *GeoRestrictedError) Unwrap() error { return ErrGeoRestricted }

// IsExpected reports whether err is an expected extraction failure.
func IsExpected(err error) bool {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Expected
	}
	return errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrGeoRestricted)
}
