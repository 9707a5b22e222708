// Package multifork implements the two-sided metadata format that
// lets a read-write classic Mac OS volume live on top of a plain
// POSIX tree: somewhere a data fork, a resource fork, and Finder info
// must all be stored, and a host filesystem only gives you the first
// of those for free. Grounded on classicvirtio's multifork.h/
// multifork-1.c/multifork-3.c.
package multifork

import (
	"github.com/ninecatalog/classicbridge/internal/fcb"
	"github.com/ninecatalog/classicbridge/internal/ninep"
)

// FieldMask selects which of Attr's fields a Get/SetAttr call cares
// about, since some are expensive to compute (MF_DSIZE/MF_RSIZE/
// MF_TIME/MF_FINFO in the original).
type FieldMask uint

const (
	FieldDSize FieldMask = 1 << iota
	FieldRSize
	FieldTime
	FieldFInfo
)

// Attr is the compromise metadata record between the 9P/Unix and Mac
// OS views of a file, matching struct MFAttr.
type Attr struct {
	DSize, RSize uint64
	UnixTime     int64 // signed; the driver translates to/from Mac time
	FInfo        [16]byte
	FXInfo       [16]byte
}

// Strategy is one way of mapping classic Mac OS's two-fork-plus-Finder-
// info model onto whatever the host 9P server actually offers.
// Exactly one is active for a given mount; spec.md §6 lets the mount
// tag request either by a "_3" suffix hint.
type Strategy interface {
	Init() error

	// Open walks srcFid into position for f (already allocated by the
	// caller, with Cnid/IsResource/Write/Name set, but not yet
	// enlisted) and leaves f.Fid ready for Read/Write/Close. The
	// three-file strategy inspects other already-enlisted FCBs of the
	// same resource fork while opening, so the caller must enlist f
	// only after Open returns successfully.
	Open(f *fcb.FCB, cnid int32, srcFid uint32, name string) error
	Close(f *fcb.FCB) error
	Read(f *fcb.FCB, buf []byte, offset uint64) (int, error)
	Write(f *fcb.FCB, buf []byte, offset uint64) (int, error)
	GetEOF(f *fcb.FCB) (uint64, error)
	SetEOF(f *fcb.FCB, length uint64) error

	FGetAttr(cnid int32, fid uint32, name string, fields FieldMask) (Attr, error)
	FSetAttr(cnid int32, fid uint32, name string, fields FieldMask, attr Attr) error
	DGetAttr(cnid int32, fid uint32, name string, fields FieldMask) (Attr, error)
	DSetAttr(cnid int32, fid uint32, name string, fields FieldMask, attr Attr) error

	Move(fid1 uint32, name1 string, fid2 uint32, name2 string) error
	Del(fid uint32, name string, isDir bool) error

	// IsSidecar reports whether name is ancillary bookkeeping this
	// strategy owns, which directory listings must hide.
	IsSidecar(name string) bool
}

// nineClient is the narrow slice of ninep.Client both strategies need.
type nineClient interface {
	Walk(fid, newfid uint32, names []string) ([]ninep.Qid, error)
	WalkPath(fid, newfid uint32, path string) ([]ninep.Qid, error)
	Lopen(fid uint32, flags uint32) (ninep.Qid, uint32, error)
	Lcreate(fid uint32, name string, flags, mode, gid uint32) (ninep.Qid, uint32, error)
	Read(fid uint32, offset uint64, count uint32) ([]byte, error)
	Write(fid uint32, offset uint64, buf []byte) (uint32, error)
	Clunk(fid uint32) error
	Getattr(fid uint32, requestMask uint64) (ninep.Stat, error)
	Setattr(fid uint32, validMask uint32, s ninep.Stat) error
	Xattrwalk(fid, newfid uint32, name string) (uint64, error)
	Xattrcreate(fid uint32, name string, size uint64, flags uint32) error
	Renameat(olddirfid uint32, oldname string, newdirfid uint32, newname string) error
	Unlinkat(dirfid uint32, name string, flags uint32) error
	Mkdir(dfid uint32, name string, mode, gid uint32) (ninep.Qid, error)
}
