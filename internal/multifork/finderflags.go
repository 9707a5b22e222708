package multifork

import (
	"bytes"
	"fmt"
	"strings"
)

// finderFlagNames maps the ".idump" sidecar's named flag lines to the
// 16-bit Finder flags value they set, grounded on multifork-3.c's
// FLAGNAMES table. kColorN (N=1..7) packs the 3-bit color field as
// N<<1, matching how flagsToText emits "kColor<N>" with the digit
// substituted in place of the table's literal "kColor!" entry.
var finderFlagNames = map[string]uint16{
	"kColor1":        0x0002,
	"kColor2":        0x0004,
	"kColor3":        0x0006,
	"kColor4":        0x0008,
	"kColor5":        0x000a,
	"kColor6":        0x000c,
	"kColor7":        0x000e,
	"kIsShared":      0x0040,
	"kHasNoINITs":    0x0080,
	"kHasBeenInited": 0x0100,
	"aoce-letter":    0x0200,
	"kHasCustomIcon": 0x0400,
	"kIsStationery":  0x0800,
	"kNameLocked":    0x1000,
	"kHasBundle":     0x2000,
	"kIsInvisible":   0x4000,
	"kIsAlias":       0x8000,
}

var zeroFourBytes = [4]byte{}

// encodeFinderFlagsText renders a 16-byte FInfo blob as the text
// ".idump" format: an 8-byte type+creator header (or "????" for an
// all-zero field) followed by one line per set flag, grounded on
// flagsToText in multifork-3.c.
func encodeFinderFlagsText(finfo [16]byte) string {
	var b strings.Builder

	if bytes.Equal(finfo[0:4], zeroFourBytes[:]) {
		b.WriteString("????")
	} else {
		b.Write(finfo[0:4])
	}
	if bytes.Equal(finfo[4:8], zeroFourBytes[:]) {
		b.WriteString("????")
	} else {
		b.Write(finfo[4:8])
	}
	b.WriteByte('\n')

	lowByte, highByte := finfo[9], finfo[8]

	if lowByte&0x0e != 0 {
		fmt.Fprintf(&b, "kColor%d\n", (lowByte>>1)&7)
	}
	if lowByte&0x40 != 0 {
		b.WriteString("kIsShared\n")
	}
	if lowByte&0x80 != 0 {
		b.WriteString("kHasNoINITs\n")
	}
	if highByte&0x01 != 0 {
		b.WriteString("kHasBeenInited\n")
	}
	if highByte&0x02 != 0 {
		b.WriteString("aoce-letter\n")
	}
	if highByte&0x04 != 0 {
		b.WriteString("kHasCustomIcon\n")
	}
	if highByte&0x08 != 0 {
		b.WriteString("kIsStationery\n")
	}
	if highByte&0x10 != 0 {
		b.WriteString("kNameLocked\n")
	}
	if highByte&0x20 != 0 {
		b.WriteString("kHasBundle\n")
	}
	if highByte&0x40 != 0 {
		b.WriteString("kIsInvisible\n")
	}
	if highByte&0x80 != 0 {
		b.WriteString("kIsAlias\n")
	}

	return b.String()
}

// decodeFinderFlagsText parses the ".idump" text format back into a
// 16-byte FInfo blob, grounded on textToFlags in multifork-3.c. Any
// line that isn't a recognized flag name is silently ignored, the Go
// equivalent of the original's character-by-character mismatch skip.
func decodeFinderFlagsText(text string) (finfo [16]byte) {
	if len(text) < 8 {
		return
	}
	header := text[0:8]
	if header[0:4] != "????" {
		copy(finfo[0:4], header[0:4])
	}
	if header[4:8] != "????" {
		copy(finfo[4:8], header[4:8])
	}

	var flags uint16
	if len(text) > 9 {
		for _, line := range strings.Split(text[9:], "\n") {
			if bit, ok := finderFlagNames[line]; ok {
				flags |= bit
			}
		}
	}
	finfo[8] = byte(flags >> 8)
	finfo[9] = byte(flags)
	return
}
