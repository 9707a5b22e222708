// Package sortdir lists a directory in RelString order over a 9P
// connection that makes no ordering promise at all. Classic Mac OS
// before 8.1 depends on it for Extensions load order and StandardFile
// presentation order, but Readdir can return entries in any order, and
// a directory too big to hold entirely in memory still has to be
// listed incrementally, one GetFileInfo/GetCatInfo index at a time.
// Grounded in full on classicvirtio's sortdir.c.
package sortdir

import (
	"fmt"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ninecatalog/classicbridge/internal/catalog"
	"github.com/ninecatalog/classicbridge/internal/multifork"
	"github.com/ninecatalog/classicbridge/internal/ninep"
)

// dtDir is the Linux dirent d_type value for a directory, the only one
// Readdir's entries reliably carry (qid.Type on a Treaddir reply cannot
// be trusted), matching sortdir.c's fixQID.
const dtDir = 4

// nineClient is the narrow slice of ninep.Client this package needs.
type nineClient interface {
	WalkPath(fid, newfid uint32, path string) ([]ninep.Qid, error)
	Lopen(fid uint32, flags uint32) (ninep.Qid, uint32, error)
	Readdir(fid uint32, offset uint64, count uint32) ([]ninep.DirEntry, uint64, error)
	Clunk(fid uint32) error
}

// Fids are the fixed scratch fids this package keeps walked to private
// locations, the Go equivalent of sortdir.c's DIRFID/LISTFID enum.
type Fids struct {
	Dir  uint32 // parked at whatever directory is currently being listed
	List uint32 // Lopen'd for the raw, unsorted Readdir sweep
}

// Lister implements ReadDirSorted. One Lister serves exactly one
// navigator fid's directory-enumeration state at a time, same as the
// static locals in sortdir.c's ReadDirSorted: listing a second
// directory (or asking for dirOK to flip) invalidates everything this
// one has cached so far.
type Lister struct {
	client   nineClient
	cat      *catalog.Cache
	mf       multifork.Strategy
	fids     Fids
	collator *collate.Collator

	dirCNID    int32
	lastIndex  int16
	lastDirOK  bool
	isComplete bool
	lastName   string

	packed         []byte
	packedPtr      int
	packedLastName []byte
	packedLastID   int32
}

// New builds a Lister. mf is consulted so sidecar files the active
// multifork strategy owns (".rdump", ".idump", the xattr strategy's
// none at all) never show up as directory entries.
func New(client nineClient, cat *catalog.Cache, mf multifork.Strategy, fids Fids) *Lister {
	return &Lister{
		client:   client,
		cat:      cat,
		mf:       mf,
		fids:     fids,
		collator: collate.New(language.English),
		packed:   make([]byte, 0, packedCap),
	}
}

// ReadDirSorted returns the cnid and name of the index'th child (1-
// based) of the directory reached from pcnid, walking navfid to it on
// success. dirOK selects whether subdirectories are included at all.
// Indices must be requested in non-decreasing order within one
// directory; asking for an index at or below the last one returned
// restarts the listing from the beginning instead of erroring.
func (l *Lister) ReadDirSorted(navfid uint32, pcnid int32, index int16, dirOK bool) (int32, string, error) {
	if index <= 0 {
		return 0, "", fmt.Errorf("sortdir: invalid child index %d", index)
	}

	if pcnid != l.dirCNID || dirOK != l.lastDirOK {
		l.dirCNID = 0
		l.lastIndex = 0x7fff
		l.lastName = ""
		l.startPacking()
		l.startUnpacking()

		wr, err := l.cat.Walk(l.fids.Dir, pcnid, "")
		if err != nil {
			return 0, "", err
		}
		l.dirCNID = wr.Cnid
		l.lastDirOK = dirOK
	}

	if index <= l.lastIndex {
		l.startPacking()
		l.startUnpacking()
		l.lastIndex = 0
		l.lastName = ""
		l.isComplete = false
	}

	var childCNID int32 = -1
	for l.lastIndex != index {
		cnid, name, ok := l.unpack()
		if !ok {
			if l.isComplete {
				return 0, "", catalog.ErrNotFound
			}
			if err := l.populate(dirOK); err != nil {
				return 0, "", err
			}
			cnid, name, ok = l.unpack()
			if !ok {
				return 0, "", catalog.ErrNotFound
			}
		}
		childCNID, l.lastName = cnid, name

		// A name listed in a previous pack/unpack cycle may have been
		// deleted or renamed away since; skip it without advancing if so.
		if _, err := l.client.WalkPath(l.fids.Dir, navfid, l.lastName); err == nil {
			l.lastIndex++
		}
	}

	return childCNID, l.lastName, nil
}

// populate performs one costly, exhaustive Readdir sweep of the
// current directory, keeping only the lexically-lowest entries (by
// roman31 key, ordered via locale-aware collation) that sort after
// ignore (the name most recently handed out), and replays them into the
// packed buffer for unpack() to consume. isComplete is cleared if the
// leaderboard overflowed and some later entries had to be discarded.
func (l *Lister) populate(dirOK bool) error {
	l.isComplete = true

	var ldboard [maxLeaders]leader
	nlead := 0

	leftmost := &leader{name: l.lastName}
	leftmost.key, _ = romanKey(l.lastName)
	rightmost := &leader{}
	for d := 0; d < power; d++ {
		leftmost.link[d].r = rightmost
		rightmost.link[d].l = leftmost
	}

	if _, err := l.client.WalkPath(l.fids.Dir, l.fids.List, ""); err != nil {
		return err
	}
	if _, _, err := l.client.Lopen(l.fids.List, uint32(ninep.ODIRECTORY|ninep.ORDONLY)); err != nil {
		return fmt.Errorf("sortdir: failed to open directory for listing: %w", err)
	}
	defer l.client.Clunk(l.fids.List)

	var offset uint64
	for {
		entries, next, err := l.client.Readdir(l.fids.List, offset, 65536)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			break
		}
		offset = next

		for _, de := range entries {
			if de.Name == "." || de.Name == ".." {
				continue
			}
			if !dirOK && de.Type == dtDir {
				continue
			}
			if l.mf.IsSidecar(de.Name) {
				continue
			}
			key, ok := romanKey(de.Name)
			if !ok {
				continue
			}

			qid := de.Qid
			if de.Type == dtDir {
				qid.Type = 0x80
			} else {
				qid.Type = 0
			}
			cnid := l.cat.QID2CNID(qid)

			right := rightmost
			skip := false
			for d := power - 1; d >= 0; d-- {
				for {
					stepleft := right.link[d].l
					if l.collator.CompareString(key, stepleft.key) > 0 {
						break
					}
					right = stepleft
					if right == leftmost {
						skip = true
						break
					}
				}
				if skip {
					break
				}
			}
			if skip {
				continue
			}

			if nlead < maxLeaders {
				el := &ldboard[nlead]
				nlead++
				el.cnid, el.name, el.key = cnid, de.Name, key
				skiplistInsert(right, el, cnid)
				continue
			}

			if right == rightmost {
				l.isComplete = false
				continue
			}

			el := rightmost.link[0].l // steal the lexically-latest slot
			el.cnid, el.name, el.key = cnid, de.Name, key
			if el == right {
				continue
			}
			skiplistDelete(el)
			skiplistInsert(right, el, cnid)
		}
	}

	l.startPacking()
	for el := leftmost.link[0].r; el != rightmost; el = el.link[0].r {
		if !l.pack(el.cnid, el.name) {
			l.isComplete = false
			break
		}
	}
	l.startUnpacking()
	return nil
}
