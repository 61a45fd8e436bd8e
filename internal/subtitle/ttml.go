package subtitle

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/asticode/go-astisub"
	"github.com/samber/lo"
)

// ErrNoCues reports a TTML document without any timed text.
var ErrNoCues = errors.New("no subtitle cues found")

var utf8BOM = []byte("\uFEFF")

// TTMLToSRT converts a TTML (DFXP) document into SubRip text. Cues without
// visible text are dropped.
func TTMLToSRT(data []byte) ([]byte, error) {
	subs, err := astisub.ReadFromTTML(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing ttml: %w", err)
	}

	subs.Items = lo.Filter(subs.Items, func(it *astisub.Item, _ int) bool {
		return it != nil && hasText(it)
	})
	if len(subs.Items) == 0 {
		return nil, ErrNoCues
	}

	var buf bytes.Buffer
	if err := subs.WriteToSRT(&buf); err != nil {
		return nil, fmt.Errorf("writing srt: %w", err)
	}
	return bytes.TrimPrefix(buf.Bytes(), utf8BOM), nil
}

func hasText(it *astisub.Item) bool {
	for _, l := range it.Lines {
		for _, li := range l.Items {
			if strings.TrimSpace(li.Text) != "" {
				return true
			}
		}
	}
	return false
}
