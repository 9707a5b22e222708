// Package ninep implements a 9P2000.L client: wire framing, a typed
// message builder/parser replacing the original format-string varargs
// (spec.md §9 Design Notes), the FID pool, and the operation surface
// spec.md §4.3 lists.
package ninep

import "encoding/binary"

// Message types, mirroring 9P2000.L plus the Linux dot-l extensions.
// Grounded on _examples/other_examples/a3c8231e_droyo-styx__proto-9p2000L.go.go,
// the authoritative wire-integer source in the corpus.
const (
	Tlerror = 6
	Rlerror = 7

	Tstatfs = 8
	Rstatfs = 9

	Tlopen = 12
	Rlopen = 13

	Tlcreate = 14
	Rlcreate = 15

	Tsymlink = 16
	Rsymlink = 17

	Tmknod = 18
	Rmknod = 19

	Trename = 20
	Rrename = 21

	Treadlink = 22
	Rreadlink = 23

	Tgetattr = 24
	Rgetattr = 25

	Tsetattr = 26
	Rsetattr = 27

	Txattrwalk = 30
	Rxattrwalk = 31

	Txattrcreate = 32
	Rxattrcreate = 33

	Tversion = 100
	Rversion = 101
	Tattach  = 104
	Rattach  = 105
	Twalk    = 110
	Rwalk    = 111
	Tclunk   = 120
	Rclunk   = 121
	Tread    = 116
	Rread    = 117
	Twrite   = 118
	Rwrite   = 119
	Tremove  = 122
	Rremove  = 123

	Treaddir = 40
	Rreaddir = 41

	Tfsync = 50
	Rfsync = 51

	Tlock    = 52
	Rlock    = 53
	Tgetlock = 54
	Rgetlock = 55

	Tlink = 70
	Rlink = 71

	Tmkdir = 72
	Rmkdir = 73

	Trenameat = 74
	Rrenameat = 75

	Tunlinkat = 76
	Runlinkat = 77
)

// Open flags, from classicvirtio's 9p.h (Linux open(2) numbering, octal
// in the source; kept numerically identical here).
const (
	ORDONLY   = 0
	OWRONLY   = 1
	ORDWR     = 2
	OCREAT    = 0100
	OEXCL     = 0200
	OTRUNC    = 01000
	OAPPEND   = 02000
	ONONBLOCK = 04000
	ODSYNC    = 010000
	ODIRECTORY = 0200000
	ONOFOLLOW  = 0400000
	ONOATIME   = 01000000
)

// Stat valid-mask bits (STAT_*).
const (
	StatMode   = 0x001
	StatNlink  = 0x002
	StatUID    = 0x004
	StatGID    = 0x008
	StatRdev   = 0x010
	StatAtime  = 0x020
	StatMtime  = 0x040
	StatCtime  = 0x080
	StatIno    = 0x100
	StatSize   = 0x200
	StatBlocks = 0x400
	StatAll    = 0x7ff
)

// Setattr valid-mask bits (SET_*).
const (
	SetMode     = 0x001
	SetUID      = 0x002
	SetGID      = 0x004
	SetSize     = 0x008
	SetAtime    = 0x010
	SetMtime    = 0x020
	SetCtime    = 0x040
	SetAtimeSet = 0x080
	SetMtimeSet = 0x100
)

// MaxName is the maximum byte length of a single path component name,
// from classicvirtio's 9p.h.
const MaxName = 94

// NoFID marks the absence of a fid in operations where one is optional.
const NoFID = ^uint32(0)

// Qid is the remote file system's 13-byte identity.
type Qid struct {
	Type    uint8
	Version uint32
	Path    uint64
}

// IsDir reports whether the qid identifies a directory (type bit 0x80).
func (q Qid) IsDir() bool { return q.Type&0x80 != 0 }

func (q Qid) marshal(b *Builder) {
	b.U8(q.Type).U32(q.Version).U64(q.Path)
}

func unmarshalQid(p *Parser) Qid {
	var q Qid
	q.Type = p.U8()
	q.Version = p.U32()
	q.Path = p.U64()
	return q
}

// Stat is the 9P2000.L getattr/setattr record.
type Stat struct {
	Valid   uint64
	Qid     Qid
	Mode    uint32
	UID     uint32
	GID     uint32
	Nlink   uint64
	Rdev    uint64
	Size    uint64
	Blksize uint64
	Blocks  uint64

	AtimeSec, AtimeNsec uint64
	MtimeSec, MtimeNsec uint64
	CtimeSec, CtimeNsec uint64
}

// Statfs mirrors the host statfs(2) fields the Tstatfs reply carries.
type Statfs struct {
	Type, Bsize                    uint32
	Blocks, Bfree, Bavail          uint64
	Files, Ffree                   uint64
	Fsid                           uint64
	Namelen                        uint32
}

// frameHeader is the fixed prefix of every 9P message: size:4 type:1 tag:2.
// size includes itself.
func writeFrameHeader(buf []byte, size uint32, typ uint8, tag uint16) {
	binary.LittleEndian.PutUint32(buf[0:4], size)
	buf[4] = typ
	binary.LittleEndian.PutUint16(buf[5:7], tag)
}

func readFrameHeader(buf []byte) (size uint32, typ uint8, tag uint16) {
	size = binary.LittleEndian.Uint32(buf[0:4])
	typ = buf[4]
	tag = binary.LittleEndian.Uint16(buf[5:7])
	return
}

const frameHeaderLen = 7

// minReplyLen is the minimum receive buffer size Transact must clamp to:
// enough for an Rlerror (size:4 type:1 tag:2 errno:4) reply.
const minReplyLen = 11
