package ninep

import "fmt"

// autoPoolSize is the span of FIDs 0-31 the client manages as an
// "automatically reusable" pool, per spec.md §3/§4.3.
const autoPoolSize = 32

// FIDPool tracks which of FIDs 0-31 currently hold a live value. Higher
// FIDs are dispensed to named subsystems (root, catalog, multifork,
// sort, sqlite VFS) and never auto-clunked; the pool does not track them.
type FIDPool struct {
	inUse [autoPoolSize]bool
}

// NewFIDPool returns an empty pool.
func NewFIDPool() *FIDPool {
	return &FIDPool{}
}

// InUse reports whether fid is currently considered live. Only
// meaningful for fids in the auto-clunk range; higher fids always
// report false since the pool does not own them.
func (p *FIDPool) InUse(fid uint32) bool {
	if fid >= autoPoolSize {
		return false
	}
	return p.inUse[fid]
}

// WillClunk reports whether installing a new value into fid would
// implicitly clunk a previous live value there.
func (p *FIDPool) WillClunk(fid uint32) bool {
	return p.InUse(fid)
}

// MarkInstalled records that fid now holds a live value (the result of
// Walk or Attach).
func (p *FIDPool) MarkInstalled(fid uint32) {
	if fid < autoPoolSize {
		p.inUse[fid] = true
	}
}

// MarkClunked records that fid no longer holds a live value.
func (p *FIDPool) MarkClunked(fid uint32) {
	if fid < autoPoolSize {
		p.inUse[fid] = false
	}
}

// NamedFIDs assigns static, never-auto-clunked fid numbers to the
// subsystems spec.md §3 names, starting immediately after the auto pool.
type NamedFIDs struct {
	Root      uint32
	Catalog   uint32
	Multifork uint32
	Sort      uint32
	SQLiteVFS uint32
}

// DefaultNamedFIDs assigns consecutive values starting at 32.
func DefaultNamedFIDs() NamedFIDs {
	return NamedFIDs{
		Root:      32,
		Catalog:   33,
		Multifork: 34,
		Sort:      35,
		SQLiteVFS: 36,
	}
}

func (n NamedFIDs) String() string {
	return fmt.Sprintf("root=%d catalog=%d multifork=%d sort=%d sqlitevfs=%d",
		n.Root, n.Catalog, n.Multifork, n.Sort, n.SQLiteVFS)
}
