package catalog

import (
	"fmt"

	"github.com/ninecatalog/classicbridge/internal/ninep"
)

const maxPathElements = 32

// StalePrefixError marks a Walk failure where the 9P qid returned for a
// component the cache believed it already knew about doesn't match what
// the cache expected — i.e. the object has moved since it was last
// cataloged, rather than never having existed. It wraps ErrNotFound so
// callers that only care "does it exist" need no special-case code; a
// caller that wants to distinguish "cache was stale" from "genuinely
// absent" can errors.As into this type. See DESIGN.md's Open Question
// decision for spec.md §9's explicitly-left-open qid-mismatch case.
type StalePrefixError struct {
	Cnid int32
}

func (e *StalePrefixError) Error() string {
	return fmt.Sprintf("catalog: cached prefix cnid %08x is stale (object moved)", e.Cnid)
}

func (e *StalePrefixError) Unwrap() error { return ErrNotFound }

// isAbsolute reports whether path is an absolute Mac path: it contains
// a colon but does not start with one, or cnid is the sentinel 1
// ("parent of root" -- the Finder relies on this to rename disks).
func isAbsolute(cnid int32, path string) bool {
	if cnid == 1 {
		return true
	}
	idx := -1
	for i := 0; i < len(path); i++ {
		if path[i] == ':' {
			idx = i
			break
		}
	}
	return idx > 0
}

// swapColonSlash implements the classic Mac OS character-set
// convention: a literal '/' typed within one path component represents
// the character ':', and vice versa, because ':' is the component
// separator in these paths.
func swapColonSlash(r byte) byte {
	if r == '/' {
		return ':'
	}
	return r
}

// splitMacPath parses a colon-delimited Mac path into components,
// translating '/' to ':' within a component and treating runs of
// consecutive colons as ".." references, matching catalog.c's
// component scanner.
func splitMacPath(path string) ([]string, error) {
	var el []string
	p := 0
	pend := len(path)

	if p < pend && path[p] == ':' {
		p++
	}

	for p < pend {
		if path[p] != ':' {
			if len(el) == maxPathElements {
				return nil, ErrBadName
			}
			var comp []byte
			for p < pend && path[p] != ':' {
				comp = append(comp, swapColonSlash(path[p]))
				p++
			}
			el = append(el, string(comp))
		}

		if p < pend && path[p] == ':' {
			p++
		}

		for p < pend && path[p] == ':' {
			if len(el) == maxPathElements {
				return nil, ErrBadName
			}
			el = append(el, "..")
			p++
		}
	}

	return el, nil
}

// WalkResult is the outcome of a successful Walk: the resolved cnid,
// its parent cnid, and the definitive spelling of its leaf name.
type WalkResult struct {
	Cnid   int32
	Parent int32
	Name   string
}

// Walk is the core navigation primitive described in spec.md §4.6: it
// resolves a Pascal-style Mac path relative to baseCnid (or as an
// absolute path, ignoring baseCnid except for the cnid==1 special
// case), installing Set entries for every newly-discovered component
// along the way.
func (c *Cache) Walk(fid uint32, baseCnid int32, path string) (WalkResult, error) {
	var el []string
	var nelByID int

	if isAbsolute(baseCnid, path) {
		stripped, err := stripVolumePrefix(path)
		if err != nil {
			return WalkResult{}, err
		}
		comps, err := splitMacPath(stripped)
		if err != nil {
			return WalkResult{}, err
		}
		el = comps
	} else {
		if !IsDir(baseCnid) {
			return WalkResult{}, ErrNotFound
		}
		var chain []string
		trail := baseCnid
		for trail != 2 {
			if len(chain) == maxPathElements {
				return WalkResult{}, ErrBadName
			}
			parent, name, err := c.Get(trail)
			if err != nil {
				return WalkResult{}, ErrNotFound
			}
			chain = append([]string{name}, chain...)
			trail = parent
		}
		el = append(el, chain...)
		nelByID = len(el)

		rest, err := splitMacPath(path)
		if err != nil {
			return WalkResult{}, err
		}
		el = append(el, rest...)
	}

	// c.client.Walk (ninep.Client.Walk) already distinguishes a missing
	// leaf from a missing intermediate component and maps them to
	// ENOENT/ENOTDIR respectively (see internal/ninep/client.go), so
	// that mapping is reused here directly rather than re-deriving it
	// from a raw partial-qid count the client layer no longer exposes.
	qids, walkErr := c.client.Walk(c.rootFidFor(fid), fid, el)
	if walkErr != nil {
		switch walkErr {
		case ninep.ENOENT:
			return WalkResult{}, ErrNotFound
		case ninep.ENOTDIR:
			return WalkResult{}, ErrDirNotFound
		default:
			return WalkResult{}, walkErr
		}
	}
	got := len(qids)

	for i := 0; i < got-1; i++ {
		if !qids[i].IsDir() {
			return WalkResult{}, ErrDirNotFound
		}
	}

	if nelByID > 0 && got >= nelByID {
		if QID2CNID(qids[nelByID-1], c.rootPath) != baseCnid {
			return WalkResult{}, &StalePrefixError{Cnid: baseCnid}
		}
	}

	// Fold dot-dots so the database only ever records real parent/child
	// edges connected to the root.
	var lastSetName string
	nelTotal := len(el)
	nel := nelByID
	for i := nelByID; i < nelTotal; i++ {
		if el[i] == ".." {
			nel--
		} else {
			qids[nel] = qids[i]
			el[nel] = el[i]
			nel++

			parent := int32(2)
			if nel >= 2 {
				parent = QID2CNID(qids[nel-2], c.rootPath)
			}
			lastSetName = c.Set(QID2CNID(qids[nel-1], c.rootPath), parent, el[nel-1], false)
		}
	}
	el = el[:nel]

	result := WalkResult{}
	if lastSetName != "" {
		result.Name = lastSetName
	} else if nel > 0 {
		result.Name = el[nel-1]
	} else {
		_, name, err := c.Get(2)
		if err == nil {
			result.Name = name
		}
	}

	if nel == 0 {
		result.Parent = 1
	} else if nel == 1 {
		result.Parent = 2
	} else {
		result.Parent = QID2CNID(qids[nel-2], c.rootPath)
	}

	if got > 0 {
		result.Cnid = QID2CNID(qids[got-1], c.rootPath)
	} else {
		result.Cnid = 2
	}

	return result, nil
}

// rootFidFor is always the volume root fid; Walk always starts a fresh
// component walk from the root per spec.md §4.6 step 4 ("a single 9P
// Walk of the concatenated component list starting from the volume
// root"). Exposed as a method so tests can override which fid plays
// that role.
func (c *Cache) rootFidFor(uint32) uint32 { return c.RootFid }

// stripVolumePrefix removes the leading disk-name component (and its
// one permitted leading colon) from an absolute path, since the volume
// name is implicit once inside this bridge. A path with no component
// after the (optional) leading colon is malformed: text is mandatory.
func stripVolumePrefix(path string) (string, error) {
	p := 0
	pend := len(path)
	if p < pend && path[p] == ':' {
		p++
	}
	if p == pend || path[p] == ':' {
		return "", ErrNotFound
	}
	for p < pend && path[p] != ':' {
		p++
	}
	return path[p:], nil
}
