package multifork

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ninecatalog/classicbridge/internal/catalog"
	"github.com/ninecatalog/classicbridge/internal/fcb"
	"github.com/ninecatalog/classicbridge/internal/ninep"
	"github.com/ninecatalog/classicbridge/internal/rez"
)

// ThreeFileFids are the fixed scratch fids the three-file strategy
// keeps walked to various private locations, the Go equivalent of
// multifork-3.c's DIRFID/RESFORKFID/CLEANRECFID/REZFID/FINFOFID/
// TMPFID/PARENTFID enum.
type ThreeFileFids struct {
	Root       uint32 // positioned wherever "resforks" should live
	Dir        uint32 // this mount's private "resforks/N" directory
	ResFork    uint32
	CleanRec   uint32
	Rez        uint32
	FinderInfo uint32
	Tmp        uint32
	Parent     uint32
}

// ThreeFile is the "best for development" strategy: the data fork is
// a plain file, the resource fork lives as Rez text in a sibling
// "<name>.rdump", and the first 8 bytes of Finder info (type/creator)
// plus named flags live in "<name>.idump". Grounded in full on
// multifork-3.c.
type ThreeFile struct {
	client  nineClient
	fcbs    *fcb.Table
	catalog *catalog.Cache
	fids    ThreeFileFids
}

// NewThreeFile builds a ThreeFile strategy. fcbs is shared with the
// driver so this strategy can coordinate the resource-fork dirty flag
// across every simultaneously open FCB of the same file, and catalog
// is used exactly as multifork-3.c uses CatalogGet/CatalogWalk: to
// re-locate a file's parent and name at close time.
func NewThreeFile(client nineClient, fcbs *fcb.Table, cat *catalog.Cache, fids ThreeFileFids) *ThreeFile {
	return &ThreeFile{client: client, fcbs: fcbs, catalog: cat, fids: fids}
}

func (t *ThreeFile) Init() error {
	for {
		if _, err := t.client.WalkPath(t.fids.Root, t.fids.Dir, "resforks"); err == nil {
			break
		} else if err != ninep.ENOENT {
			return fmt.Errorf("multifork: unexpected mkdir-walk err: %w", err)
		}
		if _, err := t.client.Mkdir(t.fids.Root, "resforks", 0777, 0); err != nil && err != ninep.EEXIST {
			return fmt.Errorf("multifork: unexpected mkdir err: %w", err)
		}
	}

	for i := 0; ; i++ {
		name := strconv.Itoa(i)
		if _, err := t.client.Mkdir(t.fids.Dir, name, 0777, 0); err == nil {
			if _, err := t.client.WalkPath(t.fids.Dir, t.fids.Dir, name); err != nil {
				return fmt.Errorf("multifork: unexpected mkdir-walk err: %w", err)
			}
			break
		} else if err != ninep.EEXIST {
			return fmt.Errorf("multifork: unexpected mkdir err: %w", err)
		}
	}
	return nil
}

func (t *ThreeFile) Open(f *fcb.FCB, cnid int32, fid uint32, name string) error {
	if f.IsResource {
		if _, err := t.client.WalkPath(fid, t.fids.Parent, ".."); err != nil {
			return err
		}
		if _, err := t.statResourceFork(cnid, t.fids.Parent, name); err != nil {
			return err
		}
		forkName := fmt.Sprintf("%08x", uint32(cnid))
		if _, err := t.client.WalkPath(t.fids.Dir, f.Fid, forkName); err != nil {
			return fmt.Errorf("multifork: could not open even a stattable resource fork: %w", err)
		}
	} else {
		if _, err := t.client.WalkPath(fid, f.Fid, ""); err != nil {
			return err
		}
	}

	if f.Write {
		if _, _, err := t.client.Lopen(f.Fid, ninep.ORDWR); err == nil {
			return nil
		}
	}
	_, _, err := t.client.Lopen(f.Fid, ninep.ORDONLY)
	return err
}

func (t *ThreeFile) Close(f *fcb.FCB) error {
	if f.IsResource && f.Dirty {
		if err := t.flushDirty(f); err != nil {
			return err
		}
	}
	return t.client.Clunk(f.Fid)
}

func (t *ThreeFile) Read(f *fcb.FCB, buf []byte, offset uint64) (int, error) {
	data, err := t.client.Read(f.Fid, offset, uint32(len(buf)))
	if err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

func (t *ThreeFile) Write(f *fcb.FCB, buf []byte, offset uint64) (int, error) {
	if f.IsResource && !f.Dirty {
		t.markDirty(f.Cnid, true)
	}
	n, err := t.client.Write(f.Fid, offset, buf)
	return int(n), err
}

func (t *ThreeFile) GetEOF(f *fcb.FCB) (uint64, error) {
	stat, err := t.client.Getattr(f.Fid, ninep.StatSize)
	if err != nil {
		return 0, err
	}
	return stat.Size, nil
}

func (t *ThreeFile) SetEOF(f *fcb.FCB, length uint64) error {
	if err := t.client.Setattr(f.Fid, ninep.SetSize, ninep.Stat{Size: length}); err != nil {
		return err
	}

	// Take this as a promise that the resource fork is now consistent,
	// and an opportunity to write it out (covers truncate-to-zero too).
	if f.IsResource && (f.Dirty || length == 0) {
		return t.flushDirty(f)
	}
	return nil
}

// markDirty sets every open FCB of (cnid, resource-fork) to dirty
// together, so any of them closing first still pushes the fork.
func (t *ThreeFile) markDirty(cnid int32, dirty bool) {
	for i := t.fcbs.First(cnid, true); i != nil; i = t.fcbs.Next(i) {
		i.Dirty = dirty
	}
}

// flushDirty clears every sibling FCB's dirty flag and pushes the
// resource fork back out to its sidecar.
func (t *ThreeFile) flushDirty(f *fcb.FCB) error {
	t.markDirty(f.Cnid, false)

	parent, name, err := t.catalog.Get(f.Cnid)
	if err != nil {
		return fmt.Errorf("multifork: file was deleted while open: %w", err)
	}
	if _, err := t.catalog.Walk(t.fids.Parent, parent, ""); err != nil {
		return fmt.Errorf("multifork: file went missing while open: %w", err)
	}
	return t.pushResourceFork(f.Cnid, t.fids.Parent, name)
}

func (t *ThreeFile) FGetAttr(cnid int32, fid uint32, name string, fields FieldMask) (Attr, error) {
	var attr Attr

	if fields&(FieldDSize|FieldTime) != 0 {
		var mask uint64
		if fields&FieldDSize != 0 {
			mask |= ninep.StatSize
		}
		if fields&FieldTime != 0 {
			mask |= ninep.StatMtime
		}
		dstat, err := t.client.Getattr(fid, mask)
		if err != nil {
			return Attr{}, err
		}
		attr.DSize = dstat.Size
		attr.UnixTime = int64(dstat.MtimeSec)
	}

	if fields&(FieldRSize|FieldTime|FieldFInfo) != 0 {
		if _, err := t.client.WalkPath(fid, t.fids.Parent, ".."); err != nil {
			return Attr{}, err
		}
	}

	if fields&(FieldRSize|FieldTime) != 0 {
		rstat, err := t.statResourceFork(cnid, t.fids.Parent, name)
		if err != nil {
			return Attr{}, err
		}
		attr.RSize = rstat.Size
		if attr.UnixTime < int64(rstat.MtimeSec) {
			attr.UnixTime = int64(rstat.MtimeSec)
		}
	}

	if fields&FieldFInfo != 0 {
		if _, err := t.client.WalkPath(fid, t.fids.FinderInfo, "../"+name+".idump"); err == nil {
			if _, _, err := t.client.Lopen(t.fids.FinderInfo, ninep.ORDONLY); err == nil {
				data, _ := t.client.Read(t.fids.FinderInfo, 0, 511)
				t.client.Clunk(t.fids.FinderInfo)
				attr.FInfo = decodeFinderFlagsText(string(data))
			}
		}
	}

	return attr, nil
}

func (t *ThreeFile) FSetAttr(cnid int32, fid uint32, name string, fields FieldMask, attr Attr) error {
	if fields&FieldFInfo == 0 {
		return nil
	}

	if _, err := t.client.WalkPath(fid, t.fids.FinderInfo, ".."); err != nil {
		return fmt.Errorf("multifork: dot-dot should never fail: %w", err)
	}

	if _, _, err := t.client.Lcreate(t.fids.FinderInfo, name+".idump", uint32(ninep.OWRONLY|ninep.OTRUNC|ninep.OCREAT), 0666, 0); err != nil {
		return err
	}
	text := encodeFinderFlagsText(attr.FInfo)
	_, err := t.client.Write(t.fids.FinderInfo, 0, []byte(text))
	if cerr := t.client.Clunk(t.fids.FinderInfo); err == nil {
		err = cerr
	}
	return err
}

func (t *ThreeFile) DGetAttr(cnid int32, fid uint32, name string, fields FieldMask) (Attr, error) {
	return Attr{}, nil
}

func (t *ThreeFile) DSetAttr(cnid int32, fid uint32, name string, fields FieldMask, attr Attr) error {
	return nil
}

func (t *ThreeFile) Move(fid1 uint32, name1 string, fid2 uint32, name2 string) error {
	if err := t.client.Renameat(fid1, name1, fid2, name2); err != nil {
		return err
	}

	var worst error
	for _, suffix := range []string{".rdump", ".idump"} {
		if err := t.client.Renameat(fid1, name1+suffix, fid2, name2+suffix); err != nil && err != ninep.ENOENT {
			worst = err
		}
	}
	return worst
}

func (t *ThreeFile) Del(fid uint32, name string, isDir bool) error {
	if _, err := t.client.WalkPath(fid, t.fids.Tmp, ".."); err != nil {
		return err
	}

	if isDir {
		return t.client.Unlinkat(t.fids.Tmp, name, atRemoveDir)
	}

	var firstErr error
	for i, n := range []string{name, name + ".rdump", name + ".idump"} {
		if err := t.client.Unlinkat(t.fids.Tmp, n, 0); err != nil && i == 0 {
			firstErr = err
		}
	}
	return firstErr
}

func (t *ThreeFile) IsSidecar(name string) bool {
	return strings.HasSuffix(name, ".rdump.tmp") ||
		strings.HasSuffix(name, ".rdump") ||
		strings.HasSuffix(name, ".idump")
}

const cleanRecordLen = 24

func encodeCleanRecord(s ninep.Stat) []byte {
	buf := make([]byte, cleanRecordLen)
	binary.LittleEndian.PutUint64(buf[0:8], s.Size)
	binary.LittleEndian.PutUint64(buf[8:16], s.MtimeSec)
	binary.LittleEndian.PutUint64(buf[16:24], s.MtimeNsec)
	return buf
}

func decodeCleanRecord(data []byte) (ninep.Stat, bool) {
	if len(data) < cleanRecordLen {
		return ninep.Stat{}, false
	}
	return ninep.Stat{
		Size:      binary.LittleEndian.Uint64(data[0:8]),
		MtimeSec:  binary.LittleEndian.Uint64(data[8:16]),
		MtimeNsec: binary.LittleEndian.Uint64(data[16:24]),
	}, true
}

func readAllFid(client nineClient, fid uint32) ([]byte, error) {
	var buf []byte
	var offset uint64
	for {
		chunk, err := client.Read(fid, offset, 65536)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return buf, nil
		}
		buf = append(buf, chunk...)
		offset += uint64(len(chunk))
	}
}

// statResourceFork is idempotent: it brings the private binary cache
// of a resource fork up to date with its "<name>.rdump" sidecar and
// returns its (size, mtime), grounded on multifork-3.c's function of
// the same name.
func (t *ThreeFile) statResourceFork(cnid int32, parentfid uint32, name string) (ninep.Stat, error) {
	if already := t.fcbs.First(cnid, true); already != nil {
		return t.client.Getattr(already.Fid, ninep.StatSize|ninep.StatMtime)
	}

	forkName := fmt.Sprintf("%08x", uint32(cnid))
	rsName := fmt.Sprintf("%08x-rezstat", uint32(cnid))
	sidecarName := name + ".rdump"

	if _, err := t.client.WalkPath(t.fids.Dir, t.fids.CleanRec, rsName); err != nil {
		return t.pullResourceFork(cnid, parentfid, name)
	}

	if _, _, err := t.client.Lopen(t.fids.CleanRec, ninep.ORDONLY); err != nil {
		return ninep.Stat{}, fmt.Errorf("multifork: could not open existing rezstat: %w", err)
	}
	data, err := t.client.Read(t.fids.CleanRec, 0, cleanRecordLen)
	t.client.Clunk(t.fids.CleanRec)
	if err != nil {
		return ninep.Stat{}, err
	}

	expect, haveRecord := decodeCleanRecord(data)
	statFileEmpty := !haveRecord

	_, walkErr := t.client.WalkPath(parentfid, t.fids.Rez, sidecarName)
	noSidecar := walkErr != nil

	switch {
	case statFileEmpty && noSidecar:
		return ninep.Stat{}, nil
	case statFileEmpty, noSidecar:
		return t.pullResourceFork(cnid, parentfid, name)
	}

	scstat, err := t.client.Getattr(t.fids.Rez, ninep.StatSize|ninep.StatMtime)
	if err != nil {
		return ninep.Stat{}, err
	}
	if scstat.Size != expect.Size || scstat.MtimeSec != expect.MtimeSec || scstat.MtimeNsec != expect.MtimeNsec {
		return t.pullResourceFork(cnid, parentfid, name)
	}

	if _, err := t.client.WalkPath(t.fids.Dir, t.fids.ResFork, forkName); err != nil {
		return ninep.Stat{}, err
	}
	cacheStat, err := t.client.Getattr(t.fids.ResFork, ninep.StatSize)
	if err != nil {
		return ninep.Stat{}, err
	}
	cacheStat.MtimeSec = expect.MtimeSec
	cacheStat.MtimeNsec = expect.MtimeNsec
	return cacheStat, nil
}

// pullResourceFork re-parses "<name>.rdump" via rez.Rez into the
// private binary cache (or creates an empty cache if there is no
// sidecar) and refreshes the clean record.
func (t *ThreeFile) pullResourceFork(cnid int32, parentfid uint32, name string) (ninep.Stat, error) {
	forkName := fmt.Sprintf("%08x", uint32(cnid))
	rsName := fmt.Sprintf("%08x-rezstat", uint32(cnid))
	sidecarName := name + ".rdump"

	_, walkErr := t.client.WalkPath(parentfid, t.fids.Rez, sidecarName)
	if walkErr != nil {
		if _, err := t.client.WalkPath(t.fids.Dir, t.fids.ResFork, ""); err != nil {
			return ninep.Stat{}, err
		}
		if _, _, err := t.client.Lcreate(t.fids.ResFork, forkName, uint32(ninep.OWRONLY|ninep.OTRUNC), 0666, 0); err != nil {
			return ninep.Stat{}, err
		}
		t.client.Clunk(t.fids.ResFork)

		if _, err := t.client.WalkPath(t.fids.Dir, t.fids.CleanRec, ""); err != nil {
			return ninep.Stat{}, err
		}
		if _, _, err := t.client.Lcreate(t.fids.CleanRec, rsName, uint32(ninep.OWRONLY|ninep.OTRUNC), 0666, 0); err != nil {
			return ninep.Stat{}, fmt.Errorf("multifork: failed create empty rezstat file: %w", err)
		}
		t.client.Clunk(t.fids.CleanRec)

		return ninep.Stat{}, nil
	}

	scstat, err := t.client.Getattr(t.fids.Rez, ninep.StatMtime|ninep.StatSize)
	if err != nil {
		return ninep.Stat{}, err
	}
	if _, _, err := t.client.Lopen(t.fids.Rez, ninep.ORDONLY); err != nil {
		return ninep.Stat{}, fmt.Errorf("multifork: failed open extant sidecar: %w", err)
	}

	if _, err := t.client.WalkPath(t.fids.Dir, t.fids.ResFork, ""); err != nil {
		return ninep.Stat{}, err
	}
	if _, _, err := t.client.Lcreate(t.fids.ResFork, forkName, uint32(ninep.OWRONLY|ninep.OTRUNC), 0666, 0); err != nil {
		return ninep.Stat{}, fmt.Errorf("multifork: failed create rf cache: %w", err)
	}

	rezText, err := readAllFid(t.client, t.fids.Rez)
	if err != nil {
		return ninep.Stat{}, err
	}
	bin, err := rez.Rez(string(rezText))
	if err != nil {
		return ninep.Stat{}, fmt.Errorf("multifork: corrupt sidecar %s: %w", sidecarName, err)
	}
	if _, err := t.client.Write(t.fids.ResFork, 0, bin); err != nil {
		return ninep.Stat{}, err
	}
	t.client.Setattr(t.fids.ResFork, ninep.SetMtime|ninep.SetMtimeSet, ninep.Stat{MtimeSec: scstat.MtimeSec, MtimeNsec: scstat.MtimeNsec})

	t.client.Clunk(t.fids.Rez)
	t.client.Clunk(t.fids.ResFork)

	if _, err := t.client.WalkPath(t.fids.Dir, t.fids.CleanRec, ""); err != nil {
		return ninep.Stat{}, err
	}
	if _, _, err := t.client.Lcreate(t.fids.CleanRec, rsName, uint32(ninep.OWRONLY|ninep.OTRUNC), 0666, 0); err != nil {
		return ninep.Stat{}, fmt.Errorf("multifork: failed create rezstat file: %w", err)
	}
	t.client.Write(t.fids.CleanRec, 0, encodeCleanRecord(scstat))
	t.client.Clunk(t.fids.CleanRec)

	return ninep.Stat{Size: uint64(len(bin)), MtimeSec: scstat.MtimeSec, MtimeNsec: scstat.MtimeNsec}, nil
}

// pushResourceFork decodes the private binary cache back to Rez text
// via DeRez into "<name>.rdump.tmp", then atomically renames it over
// "<name>.rdump"; a zero-byte cache deletes the sidecar instead.
func (t *ThreeFile) pushResourceFork(cnid int32, parentfid uint32, name string) error {
	forkName := fmt.Sprintf("%08x", uint32(cnid))
	rsName := fmt.Sprintf("%08x-rezstat", uint32(cnid))
	sidecarName := name + ".rdump"
	sidecarTmpName := name + ".rdump.tmp"

	if _, err := t.client.WalkPath(t.fids.Dir, t.fids.ResFork, forkName); err != nil {
		return fmt.Errorf("multifork: pushResourceFork no fork to see: %w", err)
	}
	forkStat, err := t.client.Getattr(t.fids.ResFork, ninep.StatSize)
	if err != nil {
		return err
	}

	if forkStat.Size == 0 {
		if _, err := t.client.WalkPath(t.fids.Dir, t.fids.CleanRec, ""); err != nil {
			return err
		}
		if _, _, err := t.client.Lcreate(t.fids.CleanRec, rsName, uint32(ninep.OWRONLY|ninep.OTRUNC), 0666, 0); err != nil {
			return fmt.Errorf("multifork: failed create rezstat file: %w", err)
		}
		t.client.Clunk(t.fids.CleanRec)
		t.client.Unlinkat(parentfid, sidecarName, 0) // best-effort: no rdump to remove
		return nil
	}

	if _, err := t.client.WalkPath(parentfid, t.fids.Rez, ""); err != nil {
		return err
	}
	if _, _, err := t.client.Lcreate(t.fids.Rez, sidecarTmpName, uint32(ninep.OWRONLY|ninep.OTRUNC), 0666, 0); err != nil {
		return fmt.Errorf("multifork: unable to create sidecar file: %w", err)
	}
	if _, _, err := t.client.Lopen(t.fids.ResFork, ninep.ORDONLY); err != nil {
		return err
	}

	bin, err := readAllFid(t.client, t.fids.ResFork)
	if err != nil {
		return err
	}
	text, err := rez.DeRez(bin)
	if err != nil {
		return err
	}
	if _, err := t.client.Write(t.fids.Rez, 0, []byte(text)); err != nil {
		return err
	}

	scstat, err := t.client.Getattr(t.fids.Rez, ninep.StatSize|ninep.StatMtime)
	if err != nil {
		return err
	}
	t.client.Clunk(t.fids.Rez)
	t.client.Clunk(t.fids.ResFork)

	if err := t.client.Renameat(parentfid, sidecarTmpName, parentfid, sidecarName); err != nil {
		return err
	}

	if _, err := t.client.WalkPath(t.fids.Dir, t.fids.CleanRec, ""); err != nil {
		return err
	}
	if _, _, err := t.client.Lcreate(t.fids.CleanRec, rsName, uint32(ninep.OWRONLY|ninep.OTRUNC), 0666, 0); err != nil {
		return fmt.Errorf("multifork: failed create rezstat file: %w", err)
	}
	_, err = t.client.Write(t.fids.CleanRec, 0, encodeCleanRecord(scstat))
	if cerr := t.client.Clunk(t.fids.CleanRec); err == nil {
		err = cerr
	}
	return err
}
