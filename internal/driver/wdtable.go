package driver

import "errors"

// ErrTooManyWDs mirrors device-9p.c's tmwdoErr: every slot is in use.
var ErrTooManyWDs = errors.New("driver: too many working directories open")

// maxWDs bounds the alias table; device-9p.c sizes its table from a
// low-memory global instead, but a fixed Go-side cap serves the same
// purpose without needing to model that global.
const maxWDs = 256

type wdEntry struct {
	dirCNID int32
	procID  int32
	inUse   bool
}

// WDTable is the "working directory" compatibility shim: a table of
// synthetic negative volume reference numbers that actually each name
// a directory, for callers written against the flat (pre-HFS)
// namespace where every file lived directly on a "volume". Grounded
// on classicvirtio's device-9p.c (fsOpenWD, fsCloseWD, findWD,
// pbDirID).
type WDTable struct {
	rootRefNum int32
	slots      [maxWDs]wdEntry
}

// NewWDTable builds an alias table for a volume whose own (real)
// reference number is rootRefNum; OpenWD returns that value directly
// for the root directory instead of minting an alias for it.
func NewWDTable(rootRefNum int32) *WDTable {
	return &WDTable{rootRefNum: rootRefNum}
}

func refnumForSlot(i int) int32 { return int32(-(i + 1)) }

func (t *WDTable) slotIndex(refnum int32) (int, bool) {
	i := int(-refnum) - 1
	if i < 0 || i >= len(t.slots) {
		return 0, false
	}
	return i, true
}

// OpenWD returns the reference number aliasing (dirCNID, procID). An
// already-open alias for the identical pair is reused, matching
// fsOpenWD's first pass ("search for already-open WDCB") before its
// second pass allocates a fresh slot by scanning for the first free
// one. The root directory needs no alias at all: its own volume
// refnum already names it.
func (t *WDTable) OpenWD(dirCNID, procID int32) (int32, error) {
	if dirCNID == 2 {
		return t.rootRefNum, nil
	}

	want := wdEntry{dirCNID: dirCNID, procID: procID, inUse: true}
	for i, e := range t.slots {
		if e == want {
			return refnumForSlot(i), nil
		}
	}
	for i, e := range t.slots {
		if !e.inUse {
			t.slots[i] = want
			return refnumForSlot(i), nil
		}
	}
	return 0, ErrTooManyWDs
}

// CloseWD releases refnum's alias. Closing an unknown refnum, or the
// volume's own root refnum, is a silent no-op, matching fsCloseWD's
// tolerance of findWD returning nil.
func (t *WDTable) CloseWD(refnum int32) {
	if i, ok := t.slotIndex(refnum); ok {
		t.slots[i] = wdEntry{}
	}
}

// Resolve returns the directory cnid refnum aliases: the Go analogue
// of pbDirID's WDCB branch. Refnum zero and the volume's own refnum
// both mean "the root", and so does any refnum this table does not
// recognize — findWD returning nil falls through to pbDirID's final
// "it's just the root" rather than erroring.
func (t *WDTable) Resolve(refnum int32) int32 {
	if refnum == 0 || refnum == t.rootRefNum {
		return 2
	}
	if i, ok := t.slotIndex(refnum); ok && t.slots[i].inUse {
		return t.slots[i].dirCNID
	}
	return 2
}
