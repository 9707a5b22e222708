package rez

import "encoding/binary"

// HeaderLen is the fixed size of the binary resource-fork header,
// per spec.md §4.5.
const HeaderLen = 256

// mapHeaderLen is the fixed portion of the map preceding the type list:
// a zeroed 16-byte copy of the file header, a 4-byte reserved field, a
// 2-byte fileattrs field, and the two 2-byte list offsets.
const mapHeaderLen = 16 + 4 + 2 + 2 + 2

// align4 rounds n up to the next multiple of 4, matching the 4-byte
// alignment every resource body is padded to.
func align4(n int) int {
	return (n + 3) &^ 3
}

// EncodeBinary serializes resources into the binary resource-fork
// layout of spec.md §4.5: a 256-byte header, a data section of
// 4-byte-aligned resource bodies packed back to back, and a map (type
// list, reference list, name list). Each reference-list entry's
// reserved word carries the resource's exact unpadded length, since
// 4-byte alignment padding in the data section would otherwise be
// indistinguishable from trailing data bytes.
func EncodeBinary(resources []Resource) []byte {
	rs := append([]Resource(nil), resources...)
	sortResources(rs)

	var data []byte
	offsets := make([]int, len(rs))
	for i, r := range rs {
		offsets[i] = len(data)
		data = append(data, r.Data...)
		pad := align4(len(data)) - len(data)
		data = append(data, make([]byte, pad)...)
	}

	types := groupByType(rs)

	var names []byte
	nameOffset := make([]int, len(rs))
	for i, r := range rs {
		if !r.HasName {
			nameOffset[i] = -1
			continue
		}
		nameOffset[i] = len(names)
		names = append(names, byte(len(r.Name)))
		names = append(names, r.Name...)
	}

	typeListOff := mapHeaderLen
	typeListLen := 2 + 8*len(types)
	refListOff := typeListOff + typeListLen
	refListLen := 12 * len(rs)
	nameListOff := refListOff + refListLen

	var mapBuf []byte
	mapBuf = append(mapBuf, make([]byte, 16)...) // zeroed copy of header
	mapBuf = append(mapBuf, 0, 0, 0, 0)          // reserved
	mapBuf = appendU16(mapBuf, 0)                // fileattrs
	mapBuf = appendU16(mapBuf, uint16(typeListOff))
	mapBuf = appendU16(mapBuf, uint16(nameListOff))

	mapBuf = appendU16(mapBuf, uint16(len(types)-1))
	refCursor := 0
	for _, typ := range types {
		count := 0
		for _, r := range rs {
			if r.Type == typ {
				count++
			}
		}
		mapBuf = append(mapBuf, typ[:]...)
		mapBuf = appendU16(mapBuf, uint16(count-1))
		mapBuf = appendU16(mapBuf, uint16(refListOff+refCursor*12-typeListOff))
		refCursor += count
	}

	for i, r := range rs {
		mapBuf = appendU16(mapBuf, uint16(r.ID))
		if nameOffset[i] < 0 {
			mapBuf = appendU16(mapBuf, 0xFFFF)
		} else {
			mapBuf = appendU16(mapBuf, uint16(nameOffset[i]))
		}
		attrAndOffset := uint32(r.Attr)<<24 | uint32(offsets[i])&0x00FFFFFF
		mapBuf = appendU32(mapBuf, attrAndOffset)
		// The reference-list "reserved" word carries the resource's exact
		// unpadded byte length, since alignment padding in the data
		// section would otherwise be indistinguishable from data.
		mapBuf = appendU32(mapBuf, uint32(len(r.Data)))
	}

	mapBuf = append(mapBuf, names...)

	dataOffset := HeaderLen
	mapOffset := dataOffset + len(data)

	out := make([]byte, HeaderLen)
	putU32(out[0:4], uint32(dataOffset))
	putU32(out[4:8], uint32(mapOffset))
	putU32(out[8:12], uint32(len(data)))
	putU32(out[12:16], uint32(len(mapBuf)))

	out = append(out, data...)
	out = append(out, mapBuf...)
	return out
}

// DecodeBinary parses a binary resource fork back into Resource records.
func DecodeBinary(bin []byte) ([]Resource, error) {
	if len(bin) < HeaderLen {
		return nil, errShort("header")
	}
	dataOffset := getU32(bin[0:4])
	mapOffset := getU32(bin[4:8])
	dataLength := getU32(bin[8:12])
	mapLength := getU32(bin[12:16])

	if uint64(mapOffset)+uint64(mapLength) > uint64(len(bin)) {
		return nil, errShort("map")
	}
	data := bin[dataOffset : dataOffset+dataLength]
	m := bin[mapOffset : mapOffset+mapLength]

	typeListOff := getU16(m[16+4+2:])
	nameListOff := getU16(m[16+4+2+2:])

	tp := m[typeListOff:]
	numTypes := int(getU16(tp)) + 1
	tp = tp[2:]

	type typeEnt struct {
		typ       [4]byte
		count     int
		refOffset int
	}
	var typeEnts []typeEnt
	for i := 0; i < numTypes; i++ {
		var te typeEnt
		copy(te.typ[:], tp[0:4])
		te.count = int(getU16(tp[4:])) + 1
		te.refOffset = int(getU16(tp[6:]))
		typeEnts = append(typeEnts, te)
		tp = tp[8:]
	}

	nameList := m[nameListOff:]

	var out []Resource
	for _, te := range typeEnts {
		ref := m[int(typeListOff)+te.refOffset:]
		for i := 0; i < te.count; i++ {
			entry := ref[i*12:]
			id := int16(getU16(entry))
			nameOff := getU16(entry[2:])
			attrAndOffset := getU32(entry[4:])
			attr := uint8(attrAndOffset >> 24)
			dataOff := int(attrAndOffset & 0x00FFFFFF)
			dataLen := int(getU32(entry[8:]))

			r := Resource{Type: te.typ, ID: id, Attr: attr}
			if nameOff != 0xFFFF {
				n := nameList[nameOff:]
				nlen := int(n[0])
				r.Name = string(n[1 : 1+nlen])
				r.HasName = true
			}
			if dataOff < 0 || dataOff+dataLen > len(data) {
				return nil, errShort("resource data")
			}
			r.Data = append([]byte(nil), data[dataOff:dataOff+dataLen]...)
			out = append(out, r)
		}
	}
	sortResources(out)
	return out, nil
}

// The binary resource-fork format is a 68k-native layout: every
// multi-byte field (header offsets/lengths, the type-list count and
// per-type offsets, the reference-list id/name-offset/attr-and-offset)
// is big-endian, per rez.c and spec.md §8.
func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func putU32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func getU32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
func getU16(b []byte) uint16    { return binary.BigEndian.Uint16(b) }

type errShort string

func (e errShort) Error() string { return "rez: short binary resource fork: " + string(e) }
