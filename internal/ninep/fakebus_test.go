package ninep

// fakeBus is a minimal in-memory 9P2000.L server used only by this
// package's tests: enough of the wire contract to exercise Transact's
// framing and errno propagation without a real virtio device.
type fakeBus struct {
	files map[uint32]*fakeFile
	next  uint32
}

type fakeFile struct {
	qid     Qid
	isDir   bool
	data    []byte
	entries map[string]uint32
}

func newFakeBus() *fakeBus {
	root := &fakeFile{qid: Qid{Type: 0x80, Path: 2}, isDir: true, entries: map[string]uint32{}}
	b := &fakeBus{files: map[uint32]*fakeFile{0: root}, next: 1000}
	return b
}

func (b *fakeBus) RoundTrip(tx []byte, rx []byte) error {
	size, typ, tag := readFrameHeader(tx)
	body := tx[frameHeaderLen:size]
	p := NewParser(body)

	reply := func(respType uint8, rb *Builder) {
		out := rb.Bytes()
		writeFrameHeader(rx, uint32(frameHeaderLen+len(out)), respType, tag)
		copy(rx[frameHeaderLen:], out)
	}
	replyErr := func(errno Errno) {
		rb := NewBuilder(4)
		rb.U32(uint32(int32(errno)))
		reply(Rlerror, rb)
	}

	switch typ {
	case Tversion:
		_ = p.U32()
		_ = p.Str()
		rb := NewBuilder(16)
		rb.U32(65536).Str("9P2000.L")
		reply(Rversion, rb)
	case Tattach:
		fid := p.U32()
		_ = p.U32()
		_ = p.Str()
		_ = p.Str()
		_ = p.U32()
		b.files[fid] = b.files[0]
		rb := NewBuilder(13)
		rb.Qid(b.files[0].qid)
		reply(Rattach, rb)
	case Twalk:
		fid := p.U32()
		newfid := p.U32()
		n := int(p.U16())
		names := make([]string, n)
		for i := range names {
			names[i] = p.Str()
		}
		cur := b.files[fid]
		var qids []Qid
		ok := true
		for _, name := range names {
			childFid, found := cur.entries[name]
			if !found {
				ok = false
				break
			}
			child := b.files[childFid]
			qids = append(qids, child.qid)
			cur = child
		}
		if ok || len(names) == 0 {
			if len(names) == 0 {
				b.files[newfid] = b.files[fid]
			} else {
				// find the fid of the final component
				c := b.files[fid]
				var fid2 uint32
				for _, name := range names {
					fid2 = c.entries[name]
					c = b.files[fid2]
				}
				b.files[newfid] = b.files[fid2]
			}
		}
		rb := NewBuilder(2 + 13*len(qids))
		rb.U16(uint16(len(qids)))
		for _, q := range qids {
			rb.Qid(q)
		}
		reply(Rwalk, rb)
	case Tgetattr:
		fid := p.U32()
		_ = p.U64()
		f := b.files[fid]
		rb := NewBuilder(8 + 13 + 9*4 + 9*8)
		rb.U64(StatAll)
		rb.Qid(f.qid)
		mode := uint32(0644)
		if f.isDir {
			mode = 0755 | 0x4000
		}
		rb.U32(mode).U32(0).U32(0)
		rb.U64(1)
		rb.U64(0)
		rb.U64(uint64(len(f.data)))
		rb.U64(4096)
		rb.U64(0)
		for i := 0; i < 6; i++ {
			rb.U64(0)
		}
		reply(Rgetattr, rb)
	case Tlcreate:
		fid := p.U32()
		name := p.Str()
		_ = p.U32()
		_ = p.U32()
		_ = p.U32()
		dir := b.files[fid]
		nf := &fakeFile{qid: Qid{Type: 0, Path: uint64(b.next)}, entries: map[string]uint32{}}
		newfid := b.next
		b.next++
		b.files[newfid] = nf
		dir.entries[name] = newfid
		b.files[fid] = nf
		rb := NewBuilder(17)
		rb.Qid(nf.qid).U32(0)
		reply(Rlcreate, rb)
	case Tread:
		fid := p.U32()
		off := p.U64()
		count := p.U32()
		f := b.files[fid]
		end := off + uint64(count)
		if end > uint64(len(f.data)) {
			end = uint64(len(f.data))
		}
		var chunk []byte
		if off < uint64(len(f.data)) {
			chunk = f.data[off:end]
		}
		rb := NewBuilder(4 + len(chunk))
		rb.U32(uint32(len(chunk))).Raw(chunk)
		reply(Rread, rb)
	case Twrite:
		fid := p.U32()
		off := p.U64()
		count := p.U32()
		buf := p.Raw(int(count))
		f := b.files[fid]
		need := int(off) + len(buf)
		if need > len(f.data) {
			grown := make([]byte, need)
			copy(grown, f.data)
			f.data = grown
		}
		copy(f.data[off:], buf)
		rb := NewBuilder(4)
		rb.U32(uint32(len(buf)))
		reply(Rwrite, rb)
	case Tclunk:
		fid := p.U32()
		delete(b.files, fid)
		reply(Rclunk, NewBuilder(0))
	case Tunlinkat:
		dirfid := p.U32()
		name := p.Str()
		_ = p.U32()
		dir := b.files[dirfid]
		if _, ok := dir.entries[name]; !ok {
			replyErr(ENOENT)
			return nil
		}
		delete(dir.entries, name)
		reply(Runlinkat, NewBuilder(0))
	default:
		replyErr(EIO)
	}
	return nil
}
