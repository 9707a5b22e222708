package multifork

import (
	"fmt"

	"github.com/ninecatalog/classicbridge/internal/fcb"
	"github.com/ninecatalog/classicbridge/internal/ninep"
)

const (
	xattrResourceFork = "com.apple.ResourceFork"
	xattrFinderInfo   = "com.apple.FinderInfo"

	// maxScratch bounds the in-memory resource-fork buffer, matching
	// multifork-1.c's `char buf[17*1024*1024]`.
	maxScratch = 17 * 1024 * 1024

	atRemoveDir = 0x200
)

// OneFile is the primary-Darwin strategy: the resource fork and
// Finder info live as named extended attributes on the data fork
// itself, grounded in full on multifork-1.c.
type OneFile struct {
	client     nineClient
	scratchFid uint32 // FID1 in the original

	// scratch mirrors the single global `enorm` buffer: at most one
	// file's resource fork is held in memory at a time. The first
	// access (slurp) to a second file's resource fork flushes the first.
	scratch struct {
		fid   uint32
		valid bool
		dirty bool
		buf   []byte
	}
}

// NewOneFile builds a OneFile strategy. scratchFid is a fid reserved
// for this strategy's exclusive use as working scratch space.
func NewOneFile(client nineClient, scratchFid uint32) *OneFile {
	return &OneFile{client: client, scratchFid: scratchFid}
}

func (o *OneFile) Init() error { return nil }

// flush writes the scratch buffer back to its xattr if dirty, the Go
// analogue of flushrf(); cannot fail in the original (it panics
// instead), but here we surface the error since panicking across a
// driver's request loop would take down every other open file too.
func (o *OneFile) flush() error {
	if !o.scratch.valid || !o.scratch.dirty {
		return nil
	}
	if _, err := o.client.Walk(o.scratch.fid, o.scratchFid, nil); err != nil {
		return fmt.Errorf("multifork: mf1 flush walk: %w", err)
	}
	if err := o.client.Xattrcreate(o.scratchFid, xattrResourceFork, uint64(len(o.scratch.buf)), 0); err != nil {
		return fmt.Errorf("multifork: mf1 flush xattrcreate: %w", err)
	}
	if _, err := o.client.Write(o.scratchFid, 0, o.scratch.buf); err != nil {
		return fmt.Errorf("multifork: mf1 flush write: %w", err)
	}
	o.scratch.dirty = false
	return o.client.Clunk(o.scratchFid)
}

// slurp ensures fid's resource fork is loaded into the scratch buffer,
// the Go analogue of slurprf().
func (o *OneFile) slurp(fid uint32) error {
	if o.scratch.valid && o.scratch.fid == fid {
		return nil
	}
	if err := o.flush(); err != nil {
		return err
	}

	o.scratch.fid = fid
	o.scratch.valid = true
	o.scratch.dirty = false
	o.scratch.buf = nil

	size, err := o.client.Xattrwalk(fid, o.scratchFid, xattrResourceFork)
	if err != nil {
		if err == ninep.ENODATA {
			return nil // no attribute yet: an empty resource fork
		}
		return err
	}
	if size > maxScratch {
		o.client.Clunk(o.scratchFid)
		return fmt.Errorf("multifork: resource fork of %d bytes exceeds %d-byte scratch", size, maxScratch)
	}

	data, rerr := o.client.Read(o.scratchFid, 0, uint32(size))
	o.client.Clunk(o.scratchFid)
	if rerr != nil {
		return rerr
	}
	o.scratch.buf = append([]byte(nil), data...)
	return nil
}

func (o *OneFile) Open(f *fcb.FCB, cnid int32, srcFid uint32, name string) error {
	if _, err := o.client.Walk(srcFid, f.Fid, nil); err != nil {
		return err
	}

	if !f.IsResource {
		if f.Write {
			if _, _, err := o.client.Lopen(f.Fid, ninep.ORDWR); err == nil {
				return nil
			}
		}
		_, _, err := o.client.Lopen(f.Fid, ninep.ORDONLY)
		return err
	}

	// Resource-fork reads/writes are serviced from the scratch buffer,
	// slurped lazily on first access; nothing more to do here.
	return nil
}

func (o *OneFile) Close(f *fcb.FCB) error {
	return o.client.Clunk(f.Fid)
}

func (o *OneFile) Read(f *fcb.FCB, buf []byte, offset uint64) (int, error) {
	if !f.IsResource {
		data, err := o.client.Read(f.Fid, offset, uint32(len(buf)))
		if err != nil {
			return 0, err
		}
		return copy(buf, data), nil
	}

	if err := o.slurp(f.Fid); err != nil {
		return 0, err
	}
	size := uint64(len(o.scratch.buf))
	if offset >= size {
		return 0, nil
	}
	n := uint64(len(buf))
	if n > size-offset {
		n = size - offset
	}
	return copy(buf, o.scratch.buf[offset:offset+n]), nil
}

func (o *OneFile) Write(f *fcb.FCB, buf []byte, offset uint64) (int, error) {
	if !f.IsResource {
		n, err := o.client.Write(f.Fid, offset, buf)
		return int(n), err
	}

	if err := o.slurp(f.Fid); err != nil {
		return 0, err
	}
	end := offset + uint64(len(buf))
	if end > maxScratch {
		return 0, fmt.Errorf("multifork: resource fork write would exceed %d-byte scratch", maxScratch)
	}
	if end > uint64(len(o.scratch.buf)) {
		grown := make([]byte, end)
		copy(grown, o.scratch.buf)
		o.scratch.buf = grown
	}
	copy(o.scratch.buf[offset:end], buf)
	o.scratch.dirty = true
	return len(buf), nil
}

func (o *OneFile) GetEOF(f *fcb.FCB) (uint64, error) {
	if !f.IsResource {
		stat, err := o.client.Getattr(f.Fid, ninep.StatSize)
		if err != nil {
			return 0, err
		}
		return stat.Size, nil
	}
	if err := o.slurp(f.Fid); err != nil {
		return 0, err
	}
	return uint64(len(o.scratch.buf)), nil
}

func (o *OneFile) SetEOF(f *fcb.FCB, length uint64) error {
	if !f.IsResource {
		return o.client.Setattr(f.Fid, ninep.SetSize, ninep.Stat{Size: length})
	}

	if err := o.slurp(f.Fid); err != nil {
		return err
	}
	if length > maxScratch {
		return fmt.Errorf("multifork: resource fork length %d exceeds %d-byte scratch", length, maxScratch)
	}
	if length > uint64(len(o.scratch.buf)) {
		grown := make([]byte, length)
		copy(grown, o.scratch.buf)
		o.scratch.buf = grown
	} else {
		o.scratch.buf = o.scratch.buf[:length]
	}
	o.scratch.dirty = true
	return nil
}

func (o *OneFile) FGetAttr(cnid int32, fid uint32, name string, fields FieldMask) (Attr, error) {
	var attr Attr

	if fields&(FieldDSize|FieldTime) != 0 {
		var mask uint64
		if fields&FieldDSize != 0 {
			mask |= ninep.StatSize
		}
		if fields&FieldTime != 0 {
			mask |= ninep.StatMtime
		}
		stat, err := o.client.Getattr(fid, mask)
		if err != nil {
			return Attr{}, err
		}
		attr.DSize = stat.Size
		attr.UnixTime = int64(stat.MtimeSec)
	}

	if fields&FieldRSize != 0 {
		size, err := o.client.Xattrwalk(fid, o.scratchFid, xattrResourceFork)
		if err == nil {
			attr.RSize = size
			o.client.Clunk(o.scratchFid)
		}
	}

	if fields&FieldFInfo != 0 {
		if _, err := o.client.Xattrwalk(fid, o.scratchFid, xattrFinderInfo); err == nil {
			data, _ := o.client.Read(o.scratchFid, 0, 32)
			o.client.Clunk(o.scratchFid)
			copy(attr.FInfo[:], data)
			if len(data) > 16 {
				copy(attr.FXInfo[:], data[16:])
			}
		}
	}

	return attr, nil
}

func (o *OneFile) FSetAttr(cnid int32, fid uint32, name string, fields FieldMask, attr Attr) error {
	if fields&FieldFInfo == 0 {
		return nil
	}

	if _, err := o.client.Walk(fid, o.scratchFid, nil); err != nil {
		return err
	}
	if err := o.client.Xattrcreate(o.scratchFid, xattrFinderInfo, 32, 0); err != nil {
		return err
	}
	blob := make([]byte, 32)
	copy(blob[:16], attr.FInfo[:])
	copy(blob[16:], attr.FXInfo[:])
	_, err := o.client.Write(o.scratchFid, 0, blob)
	if cerr := o.client.Clunk(o.scratchFid); err == nil {
		err = cerr
	}
	return err
}

func (o *OneFile) DGetAttr(cnid int32, fid uint32, name string, fields FieldMask) (Attr, error) {
	return Attr{}, nil // benignly unimplemented, per dgetattr1
}

func (o *OneFile) DSetAttr(cnid int32, fid uint32, name string, fields FieldMask, attr Attr) error {
	return nil // benignly unimplemented, per dsetattr1
}

func (o *OneFile) Move(fid1 uint32, name1 string, fid2 uint32, name2 string) error {
	return o.client.Renameat(fid1, name1, fid2, name2)
}

func (o *OneFile) Del(fid uint32, name string, isDir bool) error {
	if _, err := o.client.Walk(fid, o.scratchFid, []string{".."}); err != nil {
		return err
	}
	flags := uint32(0)
	if isDir {
		flags = atRemoveDir
	}
	return o.client.Unlinkat(o.scratchFid, name, flags)
}

func (o *OneFile) IsSidecar(name string) bool { return false }
