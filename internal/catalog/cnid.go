// Package catalog bridges Mac OS 32-bit catalog node IDs to 9P paths,
// grounded on classicvirtio's catalog.c. It caches the cnid->(parent,
// name) relationship in a 32-bucket, linear-probed RAM cache that
// spills to sidecar files under a "catalog" directory when full.
package catalog

import "github.com/ninecatalog/classicbridge/internal/ninep"

// notADirBit marks a cnid as referring to something other than a
// directory (Rreaddir qids cannot be trusted to set Qid.Type, so the
// bit must be computed from the qid actually returned by Getattr/Walk).
const notADirBit = 0x40000000

// QID2CNID folds a 9P qid's 64-bit path into a 31-bit catalog node ID,
// XOR-biasing low values (reserved for fixed system cnids) upward. The
// volume root qid always maps to the fixed cnid 2.
func QID2CNID(qid ninep.Qid, rootPath uint64) int32 {
	if qid.Path == rootPath {
		return 2
	}

	cnid := int32(0)
	cnid ^= int32(0x3fffffff & qid.Path)
	cnid ^= int32((0x0fffffffc0000000 & qid.Path) >> 30)
	cnid ^= int32((0xf000000000000000 & qid.Path) >> 40)
	if cnid < 16 {
		cnid += 0x12342454
	}

	if !qid.IsDir() {
		cnid |= notADirBit
	}
	return cnid
}

// QID2CNID folds qid using this cache's own root path, so callers
// outside the package (internal/sortdir's directory listing) derive
// the same cnid the cache would for the identical qid without needing
// to know rootPath themselves.
func (c *Cache) QID2CNID(qid ninep.Qid) int32 { return QID2CNID(qid, c.rootPath) }

// IsErr reports whether cnid is one of the negative Mac OS error codes
// CatalogWalk/CatalogGet return in place of a real cnid.
func IsErr(cnid int32) bool { return cnid < 0 }

// IsDir reports whether cnid refers to a directory.
func IsDir(cnid int32) bool { return cnid&notADirBit == 0 }
