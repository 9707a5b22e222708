package sortdir

import "encoding/binary"

// packedCap bounds the persistent replay buffer, matching sortdir.c's
// `char packed[2048]`.
const packedCap = 2048

// startPacking resets the replay buffer for a fresh pack/unpack cycle;
// every populate() call does startPacking, [pack...], startUnpacking.
func (l *Lister) startPacking() {
	l.packed = l.packed[:0]
	l.packedLastName = l.packedLastName[:0]
	l.packedLastID = 0
}

// pack appends one (cnid, name) record to the replay buffer, reusing
// whatever leading bytes of the cnid and name are unchanged from the
// previous record. Each record is one header byte (2 bits of cnid-
// prefix-reuse count, 6 bits of name-prefix-reuse count) followed by
// the changed cnid bytes and the changed, NUL-terminated name bytes.
// Returns false, making no change, if the buffer has no room left —
// the translation of sortdir.c's pack().
func (l *Lister) pack(cnid int32, name string) bool {
	var idBuf, lastIDBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], uint32(cnid))
	binary.LittleEndian.PutUint32(lastIDBuf[:], uint32(l.packedLastID))

	reuseID := 0
	for reuseID < 3 && idBuf[reuseID] == lastIDBuf[reuseID] {
		reuseID++
	}

	nameBytes := append(append([]byte(nil), name...), 0)
	maxReuse := len(l.packedLastName)
	if len(nameBytes) < maxReuse {
		maxReuse = len(nameBytes)
	}
	reuseName := 0
	for reuseName < 0x3f && reuseName < maxReuse && l.packedLastName[reuseName] == nameBytes[reuseName] {
		reuseName++
	}

	changeID := 4 - reuseID
	changeName := len(nameBytes) - reuseName

	if len(l.packed)+1+changeID+changeName > packedCap {
		return false
	}

	l.packedLastID = cnid
	l.packedLastName = append(append(l.packedLastName[:reuseName:reuseName], nameBytes[reuseName:]...))

	l.packed = append(l.packed, byte(reuseID<<6|reuseName))
	l.packed = append(l.packed, idBuf[reuseID:]...)
	l.packed = append(l.packed, nameBytes[reuseName:]...)
	return true
}

// startUnpacking rewinds the replay cursor to the start of the buffer
// pack() just filled, ready for a fresh run of unpack() calls.
func (l *Lister) startUnpacking() {
	l.packedPtr = 0
	l.packedLastName = l.packedLastName[:0]
	l.packedLastID = 0
}

// unpack replays the next record pack() wrote, or returns ok=false once
// the buffer is exhausted.
func (l *Lister) unpack() (cnid int32, name string, ok bool) {
	if l.packedPtr >= len(l.packed) {
		return 0, "", false
	}

	header := l.packed[l.packedPtr]
	reuseID := int(header >> 6)
	reuseName := int(header & 0x3f)
	l.packedPtr++

	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], uint32(l.packedLastID))
	changeID := 4 - reuseID
	copy(idBuf[reuseID:], l.packed[l.packedPtr:l.packedPtr+changeID])
	l.packedPtr += changeID
	l.packedLastID = int32(binary.LittleEndian.Uint32(idBuf[:]))

	start := l.packedPtr
	for l.packed[l.packedPtr] != 0 {
		l.packedPtr++
	}
	changeName := l.packedPtr - start + 1 // include the NUL terminator
	l.packedPtr++

	l.packedLastName = append(l.packedLastName[:reuseName:reuseName], l.packed[start:start+changeName]...)

	return l.packedLastID, string(l.packedLastName[:len(l.packedLastName)-1]), true
}
