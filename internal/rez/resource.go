// Package rez translates between a binary Macintosh resource fork and a
// textual "Rez" sidecar format, used only by the three-file multifork
// strategy (spec.md §4.5). Grounded on classicvirtio's rez.c/derez.c.
package rez

import "sort"

// Attribute bits, per spec.md §4.5.
const (
	AttrSysHeap   = 0x40
	AttrPurgeable = 0x20
	AttrLocked    = 0x10
	AttrProtected = 0x08
	AttrPreload   = 0x04

	// attrForcesHexMask is the set of bits that force the raw $HH form
	// in textual output rather than named flags: 0x80, 0x02, 0x01.
	attrForcesHexMask = 0x83
)

// Resource is one decoded resource record: a 4-char type code, a signed
// 16-bit id, an optional name, attribute flags, and its data bytes.
type Resource struct {
	Type [4]byte
	ID   int16
	Name string
	// HasName distinguishes an explicit empty name ("") from no name at
	// all, since the textual grammar treats them differently.
	HasName bool
	Attr    uint8
	Data    []byte
}

// TypeString renders the 4-byte type code as a string for diagnostics.
func (r Resource) TypeString() string { return string(r.Type[:]) }

// sortResources orders resources by (type, id) ascending, the order the
// binary map requires and the textual Rez() direction emits in, per
// rez.c's resorder comparator.
func sortResources(rs []Resource) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Type != rs[j].Type {
			return string(rs[i].Type[:]) < string(rs[j].Type[:])
		}
		return rs[i].ID < rs[j].ID
	})
}

// groupByType returns the distinct types in sorted order along with the
// resources of each, for building the binary map's type list.
func groupByType(rs []Resource) [][4]byte {
	var types [][4]byte
	for i, r := range rs {
		if i == 0 || r.Type != rs[i-1].Type {
			types = append(types, r.Type)
		}
	}
	return types
}
