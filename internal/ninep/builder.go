package ninep

import (
	"encoding/binary"
	"fmt"
)

// Builder assembles a 9P message body with a typed, chainable API,
// replacing the original's format-string-driven variadic marshalling
// (spec.md §9 Design Notes: "rewrite as a typed builder pattern"). Each
// call appends one field; Bytes returns the accumulated body, to be
// prefixed with the frame header by the caller.
type Builder struct {
	buf []byte
}

// NewBuilder returns a Builder with a capacity hint.
func NewBuilder(capHint int) *Builder {
	return &Builder{buf: make([]byte, 0, capHint)}
}

// U8 appends a one-byte integer.
func (b *Builder) U8(v uint8) *Builder {
	b.buf = append(b.buf, v)
	return b
}

// U16 appends a two-byte little-endian integer.
func (b *Builder) U16(v uint16) *Builder {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

// U32 appends a four-byte little-endian integer.
func (b *Builder) U32(v uint32) *Builder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

// U64 appends an eight-byte little-endian integer.
func (b *Builder) U64(v uint64) *Builder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

// Str appends a 2-byte-prefixed string.
func (b *Builder) Str(s string) *Builder {
	if len(s) > 0xffff {
		panic("ninep: string too long for 2-byte prefix")
	}
	b.U16(uint16(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

// Qid appends a 13-byte qid.
func (b *Builder) Qid(q Qid) *Builder {
	q.marshal(b)
	return b
}

// Raw appends a trailing buffer verbatim with no length prefix (the
// caller is expected to have already sent its length as a separate
// field, matching the 'B' trailer convention of spec.md §4.3: "on TX the
// caller supplies (ptr, len)").
func (b *Builder) Raw(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Bytes returns the accumulated body.
func (b *Builder) Bytes() []byte { return b.buf }

// Len reports the accumulated body length.
func (b *Builder) Len() int { return len(b.buf) }

// Parser reads fields out of a response body in order, mirroring
// Builder. Reading past the end of the buffer panics: a short buffer
// here is a protocol-level impossibility (spec.md §7 class 2) since
// Transact already sized the receive buffer from the rx shape.
type Parser struct {
	buf []byte
	pos int
}

// NewParser wraps a response body for sequential field extraction.
func NewParser(buf []byte) *Parser {
	return &Parser{buf: buf}
}

func (p *Parser) need(n int) {
	if p.pos+n > len(p.buf) {
		panic(fmt.Sprintf("ninep: short response body: need %d bytes at offset %d, have %d", n, p.pos, len(p.buf)))
	}
}

// U8 reads a one-byte integer.
func (p *Parser) U8() uint8 {
	p.need(1)
	v := p.buf[p.pos]
	p.pos++
	return v
}

// U16 reads a two-byte little-endian integer.
func (p *Parser) U16() uint16 {
	p.need(2)
	v := binary.LittleEndian.Uint16(p.buf[p.pos:])
	p.pos += 2
	return v
}

// U32 reads a four-byte little-endian integer.
func (p *Parser) U32() uint32 {
	p.need(4)
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

// U64 reads an eight-byte little-endian integer.
func (p *Parser) U64() uint64 {
	p.need(8)
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

// Str reads a 2-byte-prefixed string, truncating to 127 bytes per
// spec.md §4.3's 's' code on the receive side.
func (p *Parser) Str() string {
	n := int(p.U16())
	p.need(n)
	s := string(p.buf[p.pos : p.pos+n])
	p.pos += n
	if len(s) > 127 {
		s = s[:127]
	}
	return s
}

// Qid reads a 13-byte qid.
func (p *Parser) Qid() Qid {
	return unmarshalQid(p)
}

// Raw reads n raw bytes.
func (p *Parser) Raw(n int) []byte {
	p.need(n)
	v := p.buf[p.pos : p.pos+n]
	p.pos += n
	return v
}

// Remaining returns every byte not yet consumed.
func (p *Parser) Remaining() []byte {
	return p.buf[p.pos:]
}

// Len reports how many bytes remain unconsumed.
func (p *Parser) Len() int { return len(p.buf) - p.pos }
