package ninep

import (
	"fmt"

	"github.com/google/uuid"
)

// Client is a single-threaded, synchronous 9P2000.L client: at most one
// request is ever in flight (spec.md §5), driven by Transact over a Bus.
type Client struct {
	bus   Bus
	Fids  *FIDPool
	Named NamedFIDs

	// MaxMsgSize is the negotiated maximum message size from Version/Init.
	MaxMsgSize uint32

	// correlate, when true, makes TransactLogID hand out a fresh uuid
	// for tagging diagnostic log lines (the 9P tag itself is reused
	// across calls per spec so cannot serve as a log correlation id).
	// transact itself does not log.
	correlate bool
}

// NewClient wraps a Bus with FID bookkeeping.
func NewClient(bus Bus) *Client {
	return &Client{
		bus:   bus,
		Fids:  NewFIDPool(),
		Named: DefaultNamedFIDs(),
	}
}

// EnableCorrelation turns on uuid generation in TransactLogID.
func (c *Client) EnableCorrelation(on bool) { c.correlate = on }

// TransactLogID returns a fresh correlation id when correlation is
// enabled, or the empty string otherwise.
func (c *Client) TransactLogID() string {
	if !c.correlate {
		return ""
	}
	return uuid.NewString()
}

// transact builds the request frame, performs the round trip, and
// returns the parsed response body, translating an Rlerror reply into an
// Errno. tag is reused across every call (spec.md: a single shared
// transaction tag).
func (c *Client) transact(reqType uint8, body []byte, minRxBodyLen int) (*Parser, error) {
	const tag = 0

	txLen := frameHeaderLen + len(body)
	tx := make([]byte, txLen)
	writeFrameHeader(tx, uint32(txLen), reqType, tag)
	copy(tx[frameHeaderLen:], body)

	rxBodyLen := minRxBodyLen
	if rxBodyLen < minReplyLen-frameHeaderLen {
		rxBodyLen = minReplyLen - frameHeaderLen
	}
	rx := make([]byte, frameHeaderLen+rxBodyLen)

	if err := c.bus.RoundTrip(tx, rx); err != nil {
		return nil, err
	}

	size, typ, _ := readFrameHeader(rx)
	if int(size) < frameHeaderLen {
		panic("ninep: reply frame shorter than the header it must contain")
	}
	rxBody := rx[frameHeaderLen:size]

	if typ == Rlerror {
		p := NewParser(rxBody)
		return nil, Errno(int32(p.U32()))
	}

	return NewParser(rxBody), nil
}

// Init negotiates the maximum message size (the 9P2000.L analogue of
// Tversion/Rversion).
func (c *Client) Init(maxMsgSize uint32) error {
	b := NewBuilder(16)
	b.U32(maxMsgSize).Str("9P2000.L")
	p, err := c.transact(Tversion, b.Bytes(), 4+2+8)
	if err != nil {
		return err
	}
	c.MaxMsgSize = p.U32()
	_ = p.Str()
	return nil
}

// Attach attaches fid to the remote tree, returning the root qid.
func (c *Client) Attach(fid, afid uint32, uname, aname string, nUname uint32) (Qid, error) {
	b := NewBuilder(32 + len(uname) + len(aname))
	b.U32(fid).U32(afid).Str(uname).Str(aname).U32(nUname)
	p, err := c.transact(Tattach, b.Bytes(), 13)
	if err != nil {
		return Qid{}, err
	}
	return p.Qid(), nil
}

// Walk walks fid through names, installing the result into newfid.
// len(names)==0 duplicates fid into newfid. More than 16 components
// must be pre-batched by the caller (WalkPath does so); spec.md treats
// over-batching as the caller's bug, not a defensive runtime check here.
func (c *Client) Walk(fid, newfid uint32, names []string) ([]Qid, error) {
	if len(names) > 16 {
		panic("ninep: Walk with more than 16 components in a single call")
	}
	b := NewBuilder(64)
	b.U32(fid).U32(newfid).U16(uint16(len(names)))
	for _, n := range names {
		b.Str(n)
	}
	p, err := c.transact(Twalk, b.Bytes(), 2+13*len(names))
	if err != nil {
		return nil, err
	}
	nwqid := int(p.U16())
	if nwqid < len(names) {
		// Fewer qids than requested: spec.md "fails with 'no such entry'".
		if nwqid == len(names)-1 {
			return nil, ENOENT
		}
		return nil, ENOTDIR
	}
	qids := make([]Qid, nwqid)
	for i := range qids {
		qids[i] = p.Qid()
	}
	return qids, nil
}

// WalkPath packs a slash-separated path into components and walks them
// in batches of at most 16, failing fatally (panic) on pre-validation
// overflow, per spec.md §4.3.
func (c *Client) WalkPath(fid, newfid uint32, path string) ([]Qid, error) {
	comps := splitPath(path)
	if len(comps) > 16*16 {
		panic("ninep: WalkPath: path too long to batch")
	}

	var all []Qid
	cur := fid
	for len(comps) > 0 {
		batch := comps
		if len(batch) > 16 {
			batch = batch[:16]
		}
		comps = comps[len(batch):]

		target := newfid
		qids, err := c.Walk(cur, target, batch)
		if err != nil {
			return nil, err
		}
		all = append(all, qids...)
		cur = target
	}
	if len(comps) == 0 && cur == fid && len(all) == 0 {
		// Zero-component path: duplicate fid into newfid explicitly.
		if _, err := c.Walk(fid, newfid, nil); err != nil {
			return nil, err
		}
	}
	return all, nil
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				out = append(out, path[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// Lopen prepares fid for I/O with Linux open(2) flags.
func (c *Client) Lopen(fid uint32, flags uint32) (Qid, uint32, error) {
	b := NewBuilder(8)
	b.U32(fid).U32(flags)
	p, err := c.transact(Tlopen, b.Bytes(), 13+4)
	if err != nil {
		return Qid{}, 0, err
	}
	q := p.Qid()
	iounit := p.U32()
	return q, iounit, nil
}

// Lcreate creates a regular file name in directory fid and opens it.
func (c *Client) Lcreate(fid uint32, name string, flags, mode, gid uint32) (Qid, uint32, error) {
	b := NewBuilder(16 + len(name))
	b.U32(fid).Str(name).U32(flags).U32(mode).U32(gid)
	p, err := c.transact(Tlcreate, b.Bytes(), 13+4)
	if err != nil {
		return Qid{}, 0, err
	}
	return p.Qid(), p.U32(), nil
}

// Xattrwalk prepares newfid to read/list an extended attribute,
// returning its size.
func (c *Client) Xattrwalk(fid, newfid uint32, name string) (uint64, error) {
	b := NewBuilder(8 + len(name))
	b.U32(fid).U32(newfid).Str(name)
	p, err := c.transact(Txattrwalk, b.Bytes(), 8)
	if err != nil {
		return 0, err
	}
	return p.U64(), nil
}

// Xattrcreate prepares fid to write a new extended attribute value.
func (c *Client) Xattrcreate(fid uint32, name string, size uint64, flags uint32) error {
	b := NewBuilder(16 + len(name))
	b.U32(fid).Str(name).U64(size).U32(flags)
	_, err := c.transact(Txattrcreate, b.Bytes(), 0)
	return err
}

// Remove removes the file referenced by fid (deprecated by Unlinkat, but
// still a required operation per spec.md's operation list).
func (c *Client) Remove(fid uint32) error {
	b := NewBuilder(4)
	b.U32(fid)
	_, err := c.transact(Tremove, b.Bytes(), 0)
	return err
}

// Unlinkat removes name from the directory referenced by dirfid.
func (c *Client) Unlinkat(dirfid uint32, name string, flags uint32) error {
	b := NewBuilder(8 + len(name))
	b.U32(dirfid).Str(name).U32(flags)
	_, err := c.transact(Tunlinkat, b.Bytes(), 0)
	return err
}

// Renameat renames a file from olddirfid/oldname to newdirfid/newname.
func (c *Client) Renameat(olddirfid uint32, oldname string, newdirfid uint32, newname string) error {
	b := NewBuilder(8 + len(oldname) + len(newname))
	b.U32(olddirfid).Str(oldname).U32(newdirfid).Str(newname)
	_, err := c.transact(Trenameat, b.Bytes(), 0)
	return err
}

// Mkdir creates a new directory name under dfid.
func (c *Client) Mkdir(dfid uint32, name string, mode, gid uint32) (Qid, error) {
	b := NewBuilder(12 + len(name))
	b.U32(dfid).Str(name).U32(mode).U32(gid)
	p, err := c.transact(Tmkdir, b.Bytes(), 13)
	if err != nil {
		return Qid{}, err
	}
	return p.Qid(), nil
}

// DirEntry is one record streamed out of Readdir.
type DirEntry struct {
	Qid    Qid
	Offset uint64
	Type   uint8
	Name   string
}

// Readdir streams directory entries from fid (previously Lopen'd)
// starting at offset, into a caller-supplied count-byte window, tracking
// a cursor between calls the way spec.md §4.3 describes. It returns the
// entries decoded from this one call and the offset to resume at.
func (c *Client) Readdir(fid uint32, offset uint64, count uint32) ([]DirEntry, uint64, error) {
	b := NewBuilder(12)
	b.U32(fid).U64(offset).U32(count)
	p, err := c.transact(Treaddir, b.Bytes(), int(count))
	if err != nil {
		return nil, offset, err
	}
	n := p.U32()
	data := p.Raw(int(n))

	var entries []DirEntry
	dp := NewParser(data)
	last := offset
	for dp.Len() > 0 {
		q := dp.Qid()
		off := dp.U64()
		typ := dp.U8()
		name := dp.Str()
		entries = append(entries, DirEntry{Qid: q, Offset: off, Type: typ, Name: name})
		last = off
	}
	return entries, last, nil
}

// Getattr fetches the attributes named by requestMask.
func (c *Client) Getattr(fid uint32, requestMask uint64) (Stat, error) {
	b := NewBuilder(12)
	b.U32(fid).U64(requestMask)
	p, err := c.transact(Tgetattr, b.Bytes(), 8+13+9*4+9*8)
	if err != nil {
		return Stat{}, err
	}
	var s Stat
	s.Valid = p.U64()
	s.Qid = p.Qid()
	s.Mode = p.U32()
	s.UID = p.U32()
	s.GID = p.U32()
	s.Nlink = p.U64()
	s.Rdev = p.U64()
	s.Size = p.U64()
	s.Blksize = p.U64()
	s.Blocks = p.U64()
	s.AtimeSec = p.U64()
	s.AtimeNsec = p.U64()
	s.MtimeSec = p.U64()
	s.MtimeNsec = p.U64()
	s.CtimeSec = p.U64()
	s.CtimeNsec = p.U64()
	return s, nil
}

// Setattr writes the attributes named by validMask.
func (c *Client) Setattr(fid uint32, validMask uint32, s Stat) error {
	b := NewBuilder(8 + 4*4 + 6*8)
	b.U32(fid).U32(validMask)
	b.U32(s.Mode).U32(s.UID).U32(s.GID)
	b.U64(s.Size)
	b.U64(s.AtimeSec).U64(s.AtimeNsec)
	b.U64(s.MtimeSec).U64(s.MtimeNsec)
	_, err := c.transact(Tsetattr, b.Bytes(), 0)
	return err
}

// Clunk destroys fid's association, clearing any auto-pool bookkeeping.
func (c *Client) Clunk(fid uint32) error {
	b := NewBuilder(4)
	b.U32(fid)
	_, err := c.transact(Tclunk, b.Bytes(), 0)
	c.Fids.MarkClunked(fid)
	return err
}

// Read reads count bytes at offset from fid.
func (c *Client) Read(fid uint32, offset uint64, count uint32) ([]byte, error) {
	b := NewBuilder(12)
	b.U32(fid).U64(offset).U32(count)
	p, err := c.transact(Tread, b.Bytes(), int(count)+4)
	if err != nil {
		return nil, err
	}
	n := p.U32()
	return p.Raw(int(n)), nil
}

// Write writes buf at offset to fid, returning the actual count written.
// A short write is fatal at a higher layer (spec.md §7 class 5); this
// call simply reports the count.
func (c *Client) Write(fid uint32, offset uint64, buf []byte) (uint32, error) {
	b := NewBuilder(16 + len(buf))
	b.U32(fid).U64(offset).U32(uint32(len(buf))).Raw(buf)
	p, err := c.transact(Twrite, b.Bytes(), 4)
	if err != nil {
		return 0, err
	}
	return p.U32(), nil
}

// Fsync flushes cached data associated with fid.
func (c *Client) Fsync(fid uint32) error {
	b := NewBuilder(4)
	b.U32(fid)
	_, err := c.transact(Tfsync, b.Bytes(), 0)
	return err
}

// Statfs fetches filesystem information for fid.
func (c *Client) Statfs(fid uint32) (Statfs, error) {
	b := NewBuilder(4)
	b.U32(fid)
	p, err := c.transact(Tstatfs, b.Bytes(), 4*2+8*5+4)
	if err != nil {
		return Statfs{}, err
	}
	var s Statfs
	s.Type = p.U32()
	s.Bsize = p.U32()
	s.Blocks = p.U64()
	s.Bfree = p.U64()
	s.Bavail = p.U64()
	s.Files = p.U64()
	s.Ffree = p.U64()
	s.Fsid = p.U64()
	s.Namelen = p.U32()
	return s, nil
}

// InstallInto performs fid-pool bookkeeping for operations (Walk,
// Attach) that install a new value into an auto-pool fid: any previous
// live value at that index is implicitly clunked first.
func (c *Client) InstallInto(fid uint32) error {
	if c.Fids.WillClunk(fid) {
		if err := c.Clunk(fid); err != nil {
			return fmt.Errorf("ninep: implicit clunk of fid %d before reuse: %w", fid, err)
		}
	}
	c.Fids.MarkInstalled(fid)
	return nil
}
