package rez

import (
	"fmt"
	"strconv"
	"strings"
)

// textState enumerates the body parser's states. classicvirtio's rez.c
// drives the equivalent scan with goto; spec.md §9 Design Notes calls
// for a plain state-enum loop instead.
type textState int

const (
	stateWantData textState = iota
	stateWantType
	stateWantOpenParen
	stateWantID
	stateWantNameOrClose
	stateWantNameString
	stateWantCloseParen
	stateWantBraceOpen
	stateWantHexOrBrace
	stateWantSemicolon
	stateDone
)

// ParseText parses the textual Rez grammar described in spec.md §4.5:
//
//	data 'TYPE' (id, "name", attr1, attr2) { $"hex bytes.." };
//
// one or more such statements in sequence. The name and attribute list
// inside the parens are both optional.
func ParseText(src string) ([]Resource, error) {
	p := &textParser{src: src}
	var out []Resource
	for {
		p.skipSpaceAndComments()
		if p.atEOF() {
			break
		}
		r, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

type textParser struct {
	src string
	pos int
}

func (p *textParser) atEOF() bool { return p.pos >= len(p.src) }

func (p *textParser) skipSpaceAndComments() {
	for !p.atEOF() {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			for !p.atEOF() && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *textParser) parseStatement() (Resource, error) {
	state := stateWantData
	var r Resource
	var attrs []string

	for state != stateDone {
		p.skipSpaceAndComments()
		if p.atEOF() {
			return Resource{}, fmt.Errorf("rez: unexpected end of input in state %d", state)
		}
		switch state {
		case stateWantData:
			if !p.consumeKeyword("data") {
				return Resource{}, fmt.Errorf("rez: expected 'data' keyword at byte %d", p.pos)
			}
			state = stateWantType
		case stateWantType:
			t, err := p.parseQuotedType()
			if err != nil {
				return Resource{}, err
			}
			r.Type = t
			state = stateWantOpenParen
		case stateWantOpenParen:
			if !p.consumeByte('(') {
				return Resource{}, fmt.Errorf("rez: expected '(' at byte %d", p.pos)
			}
			state = stateWantID
		case stateWantID:
			id, err := p.parseSignedInt()
			if err != nil {
				return Resource{}, err
			}
			r.ID = int16(id)
			state = stateWantNameOrClose
		case stateWantNameOrClose:
			p.skipSpaceAndComments()
			switch {
			case p.consumeByte(')'):
				state = stateWantBraceOpen
			case p.consumeByte(','):
				state = stateWantNameString
			default:
				return Resource{}, fmt.Errorf("rez: expected ',' or ')' at byte %d", p.pos)
			}
		case stateWantNameString:
			p.skipSpaceAndComments()
			if p.peekByte() == '"' {
				name, err := p.parseQuotedString()
				if err != nil {
					return Resource{}, err
				}
				r.Name = name
				r.HasName = true
				state = stateWantCloseParen
			} else {
				attr, err := p.parseIdentifier()
				if err != nil {
					return Resource{}, err
				}
				attrs = append(attrs, attr)
				state = stateWantCloseParen
			}
		case stateWantCloseParen:
			p.skipSpaceAndComments()
			switch {
			case p.consumeByte(')'):
				state = stateWantBraceOpen
			case p.consumeByte(','):
				attr, err := p.parseIdentifier()
				if err != nil {
					return Resource{}, err
				}
				attrs = append(attrs, attr)
			default:
				return Resource{}, fmt.Errorf("rez: expected ',' or ')' at byte %d", p.pos)
			}
		case stateWantBraceOpen:
			if !p.consumeByte('{') {
				return Resource{}, fmt.Errorf("rez: expected '{' at byte %d", p.pos)
			}
			state = stateWantHexOrBrace
		case stateWantHexOrBrace:
			p.skipSpaceAndComments()
			if p.consumeByte('}') {
				state = stateWantSemicolon
				break
			}
			data, err := p.parseHexString()
			if err != nil {
				return Resource{}, err
			}
			r.Data = append(r.Data, data...)
		case stateWantSemicolon:
			if !p.consumeByte(';') {
				return Resource{}, fmt.Errorf("rez: expected ';' at byte %d", p.pos)
			}
			state = stateDone
		}
	}

	r.Attr = parseAttrNames(attrs)
	return r, nil
}

func (p *textParser) peekByte() byte {
	if p.atEOF() {
		return 0
	}
	return p.src[p.pos]
}

func (p *textParser) consumeByte(b byte) bool {
	if p.atEOF() || p.src[p.pos] != b {
		return false
	}
	p.pos++
	return true
}

func (p *textParser) consumeKeyword(kw string) bool {
	if strings.HasPrefix(p.src[p.pos:], kw) {
		p.pos += len(kw)
		return true
	}
	return false
}

func (p *textParser) parseQuotedType() ([4]byte, error) {
	var t [4]byte
	if !p.consumeByte('\'') {
		return t, fmt.Errorf("rez: expected opening quote of type at byte %d", p.pos)
	}
	start := p.pos
	for i := 0; i < 4; i++ {
		if p.atEOF() {
			return t, fmt.Errorf("rez: truncated type code at byte %d", start)
		}
		t[i] = p.src[p.pos]
		p.pos++
	}
	if !p.consumeByte('\'') {
		return t, fmt.Errorf("rez: expected closing quote of type at byte %d", p.pos)
	}
	return t, nil
}

func (p *textParser) parseSignedInt() (int, error) {
	start := p.pos
	if p.peekByte() == '-' {
		p.pos++
	}
	for !p.atEOF() && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start {
		return 0, fmt.Errorf("rez: expected integer at byte %d", start)
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return 0, fmt.Errorf("rez: bad integer at byte %d: %w", start, err)
	}
	return n, nil
}

func (p *textParser) parseIdentifier() (string, error) {
	p.skipSpaceAndComments()
	start := p.pos
	for !p.atEOF() && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", fmt.Errorf("rez: expected identifier at byte %d", start)
	}
	return p.src[start:p.pos], nil
}

func isIdentByte(b byte) bool {
	return b == '$' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// parseQuotedString parses a "..." literal, interpreting the same
// backslash escapes DeRezBody emits: \b \t \r \v \f \n \? \\ \" and
// \0xHH.
func (p *textParser) parseQuotedString() (string, error) {
	if !p.consumeByte('"') {
		return "", fmt.Errorf("rez: expected opening quote at byte %d", p.pos)
	}
	var sb strings.Builder
	for {
		if p.atEOF() {
			return "", fmt.Errorf("rez: unterminated string")
		}
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			return sb.String(), nil
		}
		if c == '\\' {
			p.pos++
			if p.atEOF() {
				return "", fmt.Errorf("rez: unterminated escape")
			}
			esc := p.src[p.pos]
			switch esc {
			case 'b':
				sb.WriteByte('\b')
				p.pos++
			case 't':
				sb.WriteByte('\t')
				p.pos++
			case 'r':
				sb.WriteByte('\r')
				p.pos++
			case 'v':
				sb.WriteByte('\v')
				p.pos++
			case 'f':
				sb.WriteByte('\f')
				p.pos++
			case 'n':
				sb.WriteByte('\n')
				p.pos++
			case '?':
				sb.WriteByte('?')
				p.pos++
			case '\\', '"':
				sb.WriteByte(esc)
				p.pos++
			case '0':
				if p.pos+3 < len(p.src) && (p.src[p.pos+1] == 'x' || p.src[p.pos+1] == 'X') {
					hex := p.src[p.pos+2 : p.pos+4]
					v, err := strconv.ParseUint(hex, 16, 8)
					if err != nil {
						return "", fmt.Errorf("rez: bad \\0x escape at byte %d", p.pos)
					}
					sb.WriteByte(byte(v))
					p.pos += 4
				} else {
					sb.WriteByte(0)
					p.pos++
				}
			default:
				sb.WriteByte(esc)
				p.pos++
			}
			continue
		}
		sb.WriteByte(c)
		p.pos++
	}
}

// parseHexString parses a $"hex pairs, spaces ignored" literal.
func (p *textParser) parseHexString() ([]byte, error) {
	if !p.consumeByte('$') {
		return nil, fmt.Errorf("rez: expected '$' at byte %d", p.pos)
	}
	if !p.consumeByte('"') {
		return nil, fmt.Errorf("rez: expected opening quote of hex string at byte %d", p.pos)
	}
	var hexDigits []byte
	for {
		if p.atEOF() {
			return nil, fmt.Errorf("rez: unterminated hex string")
		}
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			break
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			p.pos++
			continue
		}
		hexDigits = append(hexDigits, c)
		p.pos++
	}
	if len(hexDigits)%2 != 0 {
		return nil, fmt.Errorf("rez: odd number of hex digits")
	}
	out := make([]byte, len(hexDigits)/2)
	for i := range out {
		v, err := strconv.ParseUint(string(hexDigits[i*2:i*2+2]), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("rez: bad hex digit pair %q", hexDigits[i*2:i*2+2])
		}
		out[i] = byte(v)
	}
	return out, nil
}

var attrNameBits = map[string]uint8{
	"sysheap":   AttrSysHeap,
	"purgeable": AttrPurgeable,
	"locked":    AttrLocked,
	"protected": AttrProtected,
	"preload":   AttrPreload,
}

func parseAttrNames(names []string) uint8 {
	var attr uint8
	for _, n := range names {
		if bit, ok := attrNameBits[strings.ToLower(n)]; ok {
			attr |= bit
			continue
		}
		if strings.HasPrefix(n, "$") {
			if v, err := strconv.ParseUint(n[1:], 16, 8); err == nil {
				attr |= uint8(v)
			}
		}
	}
	return attr
}

// EmitText renders resources as the textual Rez grammar, the DeRez
// direction of spec.md §4.5, grounded on classicvirtio's
// DerezHeader/DerezBody.
func EmitText(resources []Resource) string {
	rs := append([]Resource(nil), resources...)
	sortResources(rs)

	var sb strings.Builder
	for _, r := range rs {
		sb.WriteString("data '")
		sb.WriteString(r.TypeString())
		sb.WriteString("' (")
		sb.WriteString(strconv.Itoa(int(r.ID)))
		if r.HasName {
			sb.WriteString(`, "`)
			sb.WriteString(escapeName(r.Name))
			sb.WriteString(`"`)
		}
		for _, name := range attrNamesForBits(r.Attr) {
			sb.WriteString(", ")
			sb.WriteString(name)
		}
		sb.WriteString(") {\n")
		sb.WriteString(hexDump(r.Data))
		sb.WriteString("};\n")
	}
	return sb.String()
}

func escapeName(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\b':
			sb.WriteString(`\b`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case '\v':
			sb.WriteString(`\v`)
		case '\f':
			sb.WriteString(`\f`)
		case '\n':
			sb.WriteString(`\n`)
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&sb, `\0x%02X`, c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

// attrNamesForBits renders attribute flags as named tokens, except for
// the bits in attrForcesHexMask which only round-trip correctly as a
// raw hex literal ($80 etc.), per rez.c's attribute table.
func attrNamesForBits(attr uint8) []string {
	var names []string
	named := uint8(0)
	if attr&AttrSysHeap != 0 {
		names = append(names, "sysheap")
		named |= AttrSysHeap
	}
	if attr&AttrPurgeable != 0 {
		names = append(names, "purgeable")
		named |= AttrPurgeable
	}
	if attr&AttrLocked != 0 {
		names = append(names, "locked")
		named |= AttrLocked
	}
	if attr&AttrProtected != 0 {
		names = append(names, "protected")
		named |= AttrProtected
	}
	if attr&AttrPreload != 0 {
		names = append(names, "preload")
		named |= AttrPreload
	}
	if rest := attr &^ named; rest != 0 {
		names = append(names, fmt.Sprintf("$%02X", rest))
	}
	return names
}

// hexDump renders data as a $"..." literal, 16 bytes per line, matching
// DerezBody's wrapping width.
func hexDump(data []byte) string {
	if len(data) == 0 {
		return `	$""` + "\n"
	}
	var sb strings.Builder
	const perLine = 16
	for i := 0; i < len(data); i += perLine {
		end := i + perLine
		if end > len(data) {
			end = len(data)
		}
		sb.WriteString(`	$"`)
		for j := i; j < end; j++ {
			if j > i {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%02X", data[j])
		}
		sb.WriteString("\"\n")
	}
	return sb.String()
}
