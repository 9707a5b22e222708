// Package virtqueue implements the split-ring virtqueue mechanics shared
// by every virtio device queue the bridge drives: descriptor chain
// allocation, avail/used ring bookkeeping, and the interrupt/notification
// suppression discipline.
package virtqueue

import (
	"fmt"
	"sync/atomic"
)

const (
	// DescFNext marks a descriptor as chained to another.
	DescFNext = 1
	// DescFWrite marks a descriptor as device-writable (guest reads the result).
	DescFWrite = 2
	// DescFIndirect marks a descriptor as pointing at an indirect table. Unused here.
	DescFIndirect = 4

	// freeSentinel marks a descriptor table slot as free, matching the
	// classicvirtio convention of reusing 0xFFFF (an otherwise impossible
	// "next" value given the ring sizes this bridge negotiates).
	freeSentinel = 0xFFFF
)

// Desc is the wire layout of a single split-ring descriptor.
type Desc struct {
	Addr  uint64
	Len   uint32
	Flags uint16
	Next  uint16
}

// UsedElem is one entry of the device (used) ring.
type UsedElem struct {
	ID  uint32
	Len uint32
}

// Completion identifies one finished descriptor chain by the tag it was
// submitted with and the number of bytes the device wrote.
type Completion struct {
	Tag interface{}
	Len uint32
}

// OnCompletion is invoked once per reclaimed descriptor chain.
type OnCompletion func(c Completion)

// Ring owns one virtqueue's descriptor table and rings, entirely in host
// memory for the purposes of this bridge (the physical/guest-memory
// distinction of the original firmware collapses to a single address
// space here; Send's addr/len pairs are opaque byte slices, not physical
// addresses, matching how a userspace 9P transport actually moves bytes).
//
// Grounded on the wire structs of classicvirtio's structs-virtqueue.h and
// on the descriptor-chain walk of the tinyrange virtio-fs device emulator
// (reversed here: we drain the used ring as the driver, not the device).
type Ring struct {
	size uint16

	desc []Desc
	bufs [][]byte
	tags []interface{}

	availFlags uint16
	availIdx   uint16
	availRing  []uint16

	usedFlags uint16
	usedIdx   uint16
	usedRing  []UsedElem

	lastUsed uint16
	freeHead uint16
	numFree  uint16

	interest int32

	onCompletion OnCompletion
}

// Init allocates the three ring structures for a queue of the requested
// size rounded down to a power of two. Interrupts start
// disabled: the interest counter is zero and the no-notify flag is set.
func Init(maxRequestedSize uint16, onCompletion OnCompletion) (*Ring, uint16) {
	size := maxRequestedSize
	if size == 0 || size&(size-1) != 0 {
		// Round down to a power of two, matching the virtio requirement
		// that ring sizes are always powers of two.
		p := uint16(1)
		for p*2 <= size && p*2 != 0 {
			p *= 2
		}
		size = p
	}

	r := &Ring{
		size:         size,
		desc:         make([]Desc, size),
		bufs:         make([][]byte, size),
		tags:         make([]interface{}, size),
		availRing:    make([]uint16, size),
		usedRing:     make([]UsedElem, size),
		onCompletion: onCompletion,
		numFree:      size,
	}
	for i := uint16(0); i < size; i++ {
		r.desc[i].Next = freeSentinel
	}
	r.freeHead = 0
	r.availFlags = 1 // no-notify: interest counter starts at zero
	r.usedFlags = 1  // doorbell suppressed until the device clears it
	return r, size
}

// Interest adjusts the reference count of parties wanting notifications
// from this queue. At zero the no-notifications flag is set in the avail
// ring; above zero it is cleared.
func (r *Ring) Interest(delta int) {
	n := atomic.AddInt32(&r.interest, int32(delta))
	if n < 0 {
		panic("virtqueue: negative interest count")
	}
	if n == 0 {
		r.availFlags = 1
	} else {
		r.availFlags = 0
	}
}

// Send builds one descriptor chain from nOut device-readable buffers
// followed by nIn device-writable buffers, publishes it on the avail
// ring, and records tag for completion routing. It panics if the ring
// does not have nOut+nIn free descriptors: callers must size queues for
// the worst case, exactly as the spec requires ("fails fatally if
// insufficient free descriptors exist").
func (r *Ring) Send(out [][]byte, in [][]byte, tag interface{}) {
	n := len(out) + len(in)
	if n == 0 {
		panic("virtqueue: Send with no buffers")
	}
	if int(r.numFree) < n {
		panic(fmt.Sprintf("virtqueue: out of descriptors (want %d, have %d free)", n, r.numFree))
	}

	bufs := make([][]byte, 0, n)
	bufs = append(bufs, out...)
	bufs = append(bufs, in...)

	head := r.freeHead
	idx := head
	for i, b := range bufs {
		d := &r.desc[idx]
		r.bufs[idx] = b
		d.Addr = uint64(idx) // opaque handle, not a physical address: see Buf
		d.Len = uint32(len(b))
		d.Flags = 0
		if i >= len(out) {
			d.Flags |= DescFWrite
		}
		if i < n-1 {
			d.Flags |= DescFNext
			next := r.findFreeAfter(idx)
			d.Next = next
			idx = next
		} else {
			d.Next = 0 // unused without DescFNext; freeSentinel would mark the slot free
		}
	}
	r.freeHead = r.nextFreeSearch(idx)
	r.numFree -= uint16(n)

	r.tags[head] = tag

	r.availRing[r.availIdx%r.size] = head
	r.availIdx++
}

// Buf returns the byte slice staged at a descriptor table index, letting
// a same-process transport dereference a chain without a real IOMMU.
func (r *Ring) Buf(descIndex uint16) []byte {
	return r.bufs[descIndex]
}

// findFreeAfter scans forward from cur for the next free slot. The
// original Send builds chains back to front by scanning the table in
// reverse; in this Go port descriptors are claimed in ring order instead,
// since the free list is walked explicitly rather than inferred from the
// sentinel alone.
func (r *Ring) findFreeAfter(cur uint16) uint16 {
	for i := uint16(1); i <= r.size; i++ {
		cand := (cur + i) % r.size
		if r.desc[cand].Next == freeSentinel && cand != cur {
			return cand
		}
	}
	panic("virtqueue: findFreeAfter found no free descriptor")
}

func (r *Ring) nextFreeSearch(last uint16) uint16 {
	for i := uint16(1); i <= r.size; i++ {
		cand := (last + i) % r.size
		if r.desc[cand].Next == freeSentinel {
			return cand
		}
	}
	return last
}

// Notify pokes the device doorbell only when the device has not
// requested suppression (used.flags == 0).
func (r *Ring) Notify(doorbell func()) {
	if r.usedFlags == 0 {
		doorbell()
	}
}

// PushUsed is the device-emulation-facing half used by tests: it
// appends one entry to the used ring as a real device would.
func (r *Ring) PushUsed(descHead uint16, length uint32) {
	r.usedRing[r.usedIdx%r.size] = UsedElem{ID: uint32(descHead), Len: length}
	r.usedIdx++
}

// Poll drains the used ring: for every new entry it reclaims the chain
// back to the free list and invokes OnCompletion with the tag recorded
// at Send time. Idempotent and safe to call from interrupt, polling, or
// debugger-break context.
func (r *Ring) Poll() int {
	n := 0
	for r.lastUsed != r.usedIdx {
		elem := r.usedRing[r.lastUsed%r.size]
		r.lastUsed++

		head := uint16(elem.ID)
		tag := r.tags[head]
		r.tags[head] = nil

		r.freeChain(head)

		if r.onCompletion != nil {
			r.onCompletion(Completion{Tag: tag, Len: elem.Len})
		}
		n++
	}
	return n
}

// freeChain walks a descriptor chain writing the sentinel into Next as
// it unlinks each link, per spec.
func (r *Ring) freeChain(head uint16) {
	idx := head
	for {
		next := r.desc[idx].Next
		atFlags := r.desc[idx].Flags
		r.desc[idx].Next = freeSentinel
		r.desc[idx].Flags = 0
		r.bufs[idx] = nil
		r.numFree++
		if atFlags&DescFNext == 0 {
			break
		}
		idx = next
	}
}

// Disarm sets the no-notify flag unconditionally, used by the interrupt
// handler before draining every queue.
func (r *Ring) Disarm() {
	r.availFlags = 1
}

// Rearm restores the no-notify flag from the interest counter, used
// after the transport's device-level Rearm step and the required second
// drain that closes the race against a completion landing mid-rearm.
func (r *Ring) Rearm() {
	if atomic.LoadInt32(&r.interest) == 0 {
		r.availFlags = 1
	} else {
		r.availFlags = 0
	}
}

// DescTableSize reports the number of slots in the descriptor table (==
// the negotiated queue size).
func (r *Ring) DescTableSize() uint16 { return r.size }

// LastAvailHead reports the descriptor index most recently published to
// the avail ring; used by callers that want to stage a device-side used
// entry in tests.
func (r *Ring) LastAvailHead() uint16 {
	if r.availIdx == 0 {
		return freeSentinel
	}
	return r.availRing[(r.availIdx-1)%r.size]
}
