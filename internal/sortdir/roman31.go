package sortdir

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// romanKey folds name into the comparison key sortdir.c's mr31name
// approximates: the original re-encodes into Mac OS Roman and truncates
// to 31 bytes, since StringCompare's System 7-era collation table only
// ever looked at a name's first 31 Mac Roman characters. Go has no
// built-in Mac Roman encoder, so charmap.Macintosh from the teacher's
// x/text dependency stands in for it directly; a rune with no Mac Roman
// representation is substituted rather than aborting the whole key,
// matching the original's best-effort folding.
func romanKey(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	out, _, err := transform.String(encoding.ReplaceUnsupported(charmap.Macintosh.NewEncoder()), name)
	if err != nil || out == "" {
		return "", false
	}
	if len(out) > 31 {
		out = out[:31]
	}
	return out, true
}
