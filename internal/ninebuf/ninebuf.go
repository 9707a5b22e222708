// Package ninebuf provides buffered read and write streams over a
// single 9P FID, with a borrow/return API that lets callers peek
// directly into the buffer instead of copying (spec.md §4.4).
package ninebuf

import "fmt"

// Reader is grounded on spec.md §4.4's read stream (contiguous borrow
// guaranteeing min bytes, zero-extension past EOF with a forced NUL
// terminator) and on the fid-reader setup in classicvirtio's rez.c
// (SetRead before rezHeader/rezBody scan the sidecar text).
type Reader struct {
	fid    uint32
	read9  func(fid uint32, offset uint64, count uint32) ([]byte, error)
	eof    bool // true once a short read has been observed

	buf    []byte
	base   uint64 // file offset of buf[0]
	mark   uint64 // current logical read position
	borrowed bool
	lastBase int // index into buf where the current borrow started
}

// NewReader wraps a read9 primitive (normally ninep.Client.Read) bound
// to a single fid, with an internal buffer capacity.
func NewReader(fid uint32, capacity int, read9 func(uint32, uint64, uint32) ([]byte, error)) *Reader {
	if capacity < 1 {
		capacity = 4096
	}
	return &Reader{fid: fid, read9: read9, buf: make([]byte, 0, capacity)}
}

// Seek moves the logical mark. It is a fatal error to Seek while a
// borrow is outstanding.
func (r *Reader) Seek(offset uint64) {
	if r.borrowed {
		panic("ninebuf: Seek while a borrow is outstanding")
	}
	r.mark = offset
	r.buf = r.buf[:0]
	r.base = offset
	r.eof = false
}

// BorrowRead returns a slice into the internal buffer guaranteed
// contiguous for at least min bytes (fewer only at true end of file,
// zero-extended with a forced trailing NUL so textual scanning stays
// safe). Holding two outstanding borrows is a fatal error.
func (r *Reader) BorrowRead(min int) ([]byte, error) {
	if r.borrowed {
		panic("ninebuf: BorrowRead while a borrow is already outstanding")
	}

	haveFromMark := len(r.buf) - int(r.mark-r.base)
	if haveFromMark < min && !r.eof {
		r.compactAndRefill(min)
		haveFromMark = len(r.buf) - int(r.mark-r.base)
	}

	start := int(r.mark - r.base)
	if start > len(r.buf) {
		start = len(r.buf)
	}

	r.borrowed = true
	r.lastBase = start

	if haveFromMark >= min {
		return r.buf[start : start+min], nil
	}

	// Past true EOF: zero-extend (every byte beyond the true end of file
	// reads as NUL, per spec.md, which a freshly zeroed slice gives for
	// free).
	window := make([]byte, min)
	copy(window, r.buf[start:])
	return window, nil
}

// ReturnRead advances the logical mark by len(ptr)-priorBorrowLen,
// matching the spec's "advances the logical mark by ptr -
// last-borrow-base" contract: the caller passes back how many bytes of
// the borrowed window it actually consumed.
func (r *Reader) ReturnRead(consumed int) {
	if !r.borrowed {
		panic("ninebuf: ReturnRead without an outstanding borrow")
	}
	r.mark += uint64(consumed)
	r.borrowed = false
}

func (r *Reader) compactAndRefill(min int) {
	start := int(r.mark - r.base)
	if start < 0 {
		start = 0
	}
	tail := r.buf[start:]
	kept := append([]byte(nil), tail...)
	r.buf = r.buf[:0]
	r.buf = append(r.buf, kept...)
	r.base = r.mark

	want := min - len(r.buf)
	if want <= 0 {
		return
	}
	refillAt := r.base + uint64(len(r.buf))
	chunk, err := r.read9(r.fid, refillAt, uint32(want+4096))
	if err != nil {
		return
	}
	if len(chunk) < want+4096 {
		r.eof = true
	}
	r.buf = append(r.buf, chunk...)
}

// Writer mirrors Reader for the write direction, adding Flush and
// Overwrite. Wrapped in a struct per spec.md §9 Design Notes
// ("global write-buffer state... wrap into a struct owned by the
// multifork instance, passed explicitly") rather than file-scope
// globals as classicvirtio's rez.c uses.
type Writer struct {
	fid    uint32
	write9 func(fid uint32, offset uint64, buf []byte) (uint32, error)

	buf        []byte
	flushedLen uint64 // bytes already committed to the remote file
	borrowed   bool
}

// NewWriter wraps a write9 primitive bound to a single fid.
func NewWriter(fid uint32, capacity int, write9 func(uint32, uint64, []byte) (uint32, error)) *Writer {
	if capacity < 1 {
		capacity = 4096
	}
	return &Writer{fid: fid, write9: write9, buf: make([]byte, 0, capacity)}
}

// BorrowWrite returns a contiguous window of at least min bytes to fill
// in place; the window is appended to the logical stream on ReturnWrite.
func (w *Writer) BorrowWrite(min int) []byte {
	if w.borrowed {
		panic("ninebuf: BorrowWrite while a borrow is already outstanding")
	}
	if cap(w.buf)-len(w.buf) < min {
		w.Flush()
	}
	if cap(w.buf) < min {
		w.buf = append(make([]byte, 0, min), w.buf...)
	}
	w.borrowed = true
	return w.buf[len(w.buf):cap(w.buf)]
}

// ReturnWrite commits n bytes of the previously borrowed window,
// flushing implicitly if the buffer is now full.
func (w *Writer) ReturnWrite(n int) {
	if !w.borrowed {
		panic("ninebuf: ReturnWrite without an outstanding borrow")
	}
	w.buf = w.buf[:len(w.buf)+n]
	w.borrowed = false
	if len(w.buf) == cap(w.buf) {
		w.Flush()
	}
}

// Flush writes every buffered byte to the remote file and advances the
// flushed-bytes counter. A short write here is fatal per spec.md §7
// class 5 ("Write returning a short count is fatal").
func (w *Writer) Flush() {
	if len(w.buf) == 0 {
		return
	}
	n, err := w.write9(w.fid, w.flushedLen, w.buf)
	if err != nil {
		panic(fmt.Sprintf("ninebuf: flush write failed: %v", err))
	}
	if int(n) != len(w.buf) {
		panic("ninebuf: short write on flush")
	}
	w.flushedLen += uint64(len(w.buf))
	w.buf = w.buf[:0]
}

// Overwrite is the only operation allowed to modify previously written
// bytes: bytes still sitting in the write buffer are patched in place,
// bytes already flushed are rewritten via an out-of-band Write call.
func (w *Writer) Overwrite(off uint64, data []byte) {
	end := off + uint64(len(data))

	if off >= w.flushedLen {
		// Entirely inside the still-buffered tail.
		local := off - w.flushedLen
		if local+uint64(len(data)) > uint64(len(w.buf)) {
			panic("ninebuf: Overwrite past the written stream")
		}
		copy(w.buf[local:], data)
		return
	}

	if end <= w.flushedLen {
		// Entirely already flushed.
		n, err := w.write9(w.fid, off, data)
		if err != nil || int(n) != len(data) {
			panic("ninebuf: Overwrite out-of-band write failed")
		}
		return
	}

	// Straddles the flush boundary: split at flushedLen.
	flushedPart := w.flushedLen - off
	w.Overwrite(off, data[:flushedPart])
	w.Overwrite(w.flushedLen, data[flushedPart:])
}

// Position reports the logical length of the stream written so far.
func (w *Writer) Position() uint64 {
	return w.flushedLen + uint64(len(w.buf))
}
