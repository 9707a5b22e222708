package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ninecatalog/classicbridge/internal/ninep"
)

const (
	buckets     = 32
	bucketSlots = 32
	bucketBytes = 300
)

// ErrNotFound is returned by Get and wrapped by Walk when a cnid has no
// known mapping, matching catalog.c's fnfErr outcome.
var ErrNotFound = errors.New("catalog: not found")

// ErrBadName is returned when a path is too deep or too long to
// process, matching catalog.c's bdNamErr outcome.
var ErrBadName = errors.New("catalog: bad name")

// ErrDirNotFound marks a missing intermediate path component, or a
// dot-dot attempted through a file, matching catalog.c's dirNFErr.
var ErrDirNotFound = errors.New("catalog: directory not found")

type slot struct {
	cnid   int32
	parent int32
	dirty  bool
	offset uint16
}

type bucket struct {
	slots      []slot
	usedBytes  int
	names      []byte
}

// nineClient is the narrow slice of ninep.Client that the catalog's
// spill/unspill machinery needs, kept as an interface so tests can
// supply an in-memory fake instead of a real 9P round trip.
type nineClient interface {
	Walk(fid, newfid uint32, names []string) ([]ninep.Qid, error)
	Lcreate(fid uint32, name string, flags, mode, gid uint32) (ninep.Qid, uint32, error)
	Lopen(fid uint32, flags uint32) (ninep.Qid, uint32, error)
	Read(fid uint32, offset uint64, count uint32) ([]byte, error)
	Write(fid uint32, offset uint64, buf []byte) (uint32, error)
	Clunk(fid uint32) error
	Renameat(olddirfid uint32, oldname string, newdirfid uint32, newname string) error
}

// Cache is the 32-bucket catalog RAM cache plus its disk spill area.
type Cache struct {
	buckets  [buckets]bucket
	rootPath uint64

	// RootFid is the volume root fid that every Walk call starts a
	// fresh component walk from, per spec.md §4.6 step 4.
	RootFid uint32

	client     nineClient
	catalogFid uint32
	tmpFid     uint32

	// mu guards all bucket state. Set/Get/Walk are called from whatever
	// goroutine is servicing a given 9P request, and the RAM cache is
	// shared across every fid, so every access to c.buckets takes mu.
	mu sync.Mutex

	// unspillGroup collapses concurrent cache misses for the same cnid
	// into a single sidecar-file read, matching catalog.c's assumption
	// of a single in-flight unspill per cnid without actually requiring
	// single-threaded callers.
	unspillGroup singleflight.Group

	// lastSetName mirrors catalog.c's lastSetName hack (the definitive
	// spelling installed by the most recent Set call), modeled here as
	// an explicit return value from setLocked rather than a package
	// global, per DESIGN.md's Design Notes decision.
}

// New creates a catalog cache rooted at rootPath (the volume root qid's
// path field), backed by a "catalog" directory reachable by walking
// catalogDirFid with client, and using tmpFid as scratch for spill I/O.
func New(client nineClient, rootPath uint64, rootFid, catalogFid, tmpFid uint32) *Cache {
	return &Cache{rootPath: rootPath, RootFid: rootFid, client: client, catalogFid: catalogFid, tmpFid: tmpFid}
}

func whichBucket(cnid int32) int { return int(cnid & (buckets - 1)) }

func (b *bucket) whichSlot(cnid int32) int {
	for i := range b.slots {
		if b.slots[i].cnid == cnid {
			return i
		}
	}
	return -1
}

func (b *bucket) slotName(slot int) string {
	start := b.slots[slot].offset
	end := start
	for int(end) < len(b.names) && b.names[end] != 0 {
		end++
	}
	return string(b.names[start:end])
}

// bubbleUp swaps slot with its predecessor (a move-to-front-ish LRU,
// one position at a time, matching catalog.c's bubbleUp exactly).
func (b *bucket) bubbleUp(slotIdx int) int {
	if slotIdx == 0 {
		return 0
	}
	b.slots[slotIdx], b.slots[slotIdx-1] = b.slots[slotIdx-1], b.slots[slotIdx]
	return slotIdx - 1
}

// deleteSlotName removes a slot's name bytes from the packed buffer,
// compacting everything after it to the left and must be immediately
// followed by repopulating that slot's name.
func (b *bucket) deleteSlotName(slotIdx int) {
	deleteAt := int(b.slots[slotIdx].offset)
	deleteLen := 0
	for deleteAt+deleteLen < len(b.names) && b.names[deleteAt+deleteLen] != 0 {
		deleteLen++
	}
	deleteLen++ // include the NUL
	copy(b.names[deleteAt:], b.names[deleteAt+deleteLen:])
	b.names = b.names[:len(b.names)-deleteLen]
	for i := range b.slots {
		if int(b.slots[i].offset) > deleteAt {
			b.slots[i].offset -= uint16(deleteLen)
		}
	}
	b.slots[slotIdx].offset = 0
	b.usedBytes -= deleteLen
}

func (b *bucket) appendName(slotIdx int, name string) {
	b.slots[slotIdx].offset = uint16(len(b.names))
	b.names = append(b.names, name...)
	b.names = append(b.names, 0)
	b.usedBytes = len(b.names)
}

// ciEqual is an ASCII case-insensitive compare, which happens to work
// correctly for the Roman-ish letters found in decomposed UTF-8, per
// catalog.c's ciEqual.
func ciEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Set installs or updates a cnid -> (parent, name) mapping. definitive
// distinguishes a case-authoritative rename from an incidental restate
// of a name the cache may already hold in a different capitalisation.
// It returns the name actually stored, matching catalog.c's
// lastSetName optimisation (an explicit return here instead of a
// package-global side channel).
func (c *Cache) Set(cnid, parent int32, name string, definitive bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(cnid, parent, name, definitive)
}

// setLocked is Set's body, callable by Walk (which already holds mu)
// without recursing into a non-reentrant sync.Mutex.
func (c *Cache) setLocked(cnid, parent int32, name string, definitive bool) string {
	bi := whichBucket(cnid)
	b := &c.buckets[bi]
	namelen := len(name) + 1

	si := b.whichSlot(cnid)
	if si < 0 {
		for len(b.slots) == bucketSlots {
			c.spill(bi)
		}
		for b.usedBytes+namelen > bucketBytes {
			c.spill(bi)
		}
		si = len(b.slots)
		b.slots = append(b.slots, slot{cnid: cnid, parent: parent, dirty: true})
		b.appendName(si, name)
		return b.slotName(si)
	}

	if b.slots[si].parent != parent {
		b.slots[si].parent = parent
		b.slots[si].dirty = true
	}

	old := b.slotName(si)
	if len(old)+1 == namelen {
		if definitive || !ciEqual(old, name) {
			b.overwriteName(si, name)
		}
		return b.slotName(si)
	}

	b.deleteSlotName(si)
	for b.usedBytes+namelen > bucketBytes {
		if si == len(b.slots)-1 {
			si = b.bubbleUp(si)
		}
		c.spill(bi)
	}
	b.appendName(si, name)
	return b.slotName(si)
}

// overwriteName replaces a slot's name in place; only valid when the
// new name is exactly as long as the old one.
func (b *bucket) overwriteName(slotIdx int, name string) {
	start := b.slots[slotIdx].offset
	copy(b.names[start:], name)
}

// Get returns the parent cnid and name for cnid, pulling from the disk
// spill area and evicting cache entries as needed if it is not already
// resident. Returns ErrNotFound if cnid is unknown everywhere.
func (c *Cache) Get(cnid int32) (parent int32, name string, err error) {
	c.mu.Lock()
	return c.getLocked(cnid)
}

// getLocked is Get's body. It is entered holding mu, but releases it
// for the duration of any disk I/O (unspill) and re-acquires before
// touching bucket state again, so a slow sidecar read never blocks
// other fids' cache hits.
func (c *Cache) getLocked(cnid int32) (parent int32, name string, err error) {
	bi := whichBucket(cnid)
	b := &c.buckets[bi]
	si := b.whichSlot(cnid)

	if si >= 0 {
		si = b.bubbleUp(si)
		parent, name = b.slots[si].parent, b.slotName(si)
		c.mu.Unlock()
		return parent, name, nil
	}
	c.mu.Unlock()

	v, err, _ := c.unspillGroup.Do(spillFileName(cnid), func() (interface{}, error) {
		p, n, ok := c.readSpillFile(cnid)
		if !ok {
			return nil, ErrNotFound
		}
		return spillResult{parent: p, name: n}, nil
	})
	if err != nil {
		return 0, "", ErrNotFound
	}
	res := v.(spillResult)

	c.mu.Lock()
	defer c.mu.Unlock()
	bi = whichBucket(cnid)
	b = &c.buckets[bi]
	if si := b.whichSlot(cnid); si >= 0 {
		// Another goroutine installed this cnid between our first miss
		// and reacquiring mu; just serve it.
		si = b.bubbleUp(si)
		return b.slots[si].parent, b.slotName(si), nil
	}

	si = c.installUnspilled(bi, cnid, res.parent, res.name)
	si = b.bubbleUp(si)
	return b.slots[si].parent, b.slotName(si), nil
}

// spillResult is the singleflight payload for a deduped sidecar read.
type spillResult struct {
	parent int32
	name   string
}

// spill evicts the last slot in bucket bi, writing it to a sidecar file
// first if dirty, and returns the freed slot index.
func (c *Cache) spill(bi int) int {
	b := &c.buckets[bi]
	kill := len(b.slots) - 1
	name := b.slotName(kill)

	if b.slots[kill].dirty {
		if err := c.writeSpillFile(b.slots[kill].cnid, b.slots[kill].parent, name); err != nil {
			panic(fmt.Sprintf("catalog: failed to spill cnid %08x: %v", b.slots[kill].cnid, err))
		}
	}

	b.deleteSlotName(kill)
	b.slots = b.slots[:kill]
	return kill
}

// installUnspilled installs an already-read (parent, name) pair for
// cnid into bucket bi (evicting as necessary) and returns the new slot
// index. Caller must hold c.mu.
func (c *Cache) installUnspilled(bi int, cnid, parent int32, name string) int {
	b := &c.buckets[bi]
	namelen := len(name) + 1
	for len(b.slots) == bucketSlots {
		c.spill(bi)
	}
	for b.usedBytes+namelen > bucketBytes {
		c.spill(bi)
	}

	si := len(b.slots)
	b.slots = append(b.slots, slot{cnid: cnid, parent: parent, dirty: false})
	b.appendName(si, name)
	return si
}

func spillFileName(cnid int32) string {
	return fmt.Sprintf("%08x", uint32(cnid))
}

// writeSpillFile atomically writes a cnid's (parent, name) pair as a
// new sidecar file under the catalog directory, the "quick and dirty"
// ephemeral format: 4 LE bytes of parent cnid followed by the NUL-
// terminated name. The write lands in a ".tmp" sibling first and is
// promoted to its real name with a single Trename, so a reader can
// never observe a half-written spill file.
func (c *Cache) writeSpillFile(cnid, parent int32, name string) error {
	if err := c.walkToCatalog(); err != nil {
		return err
	}
	tmpName := spillFileName(cnid) + ".tmp"
	_, _, err := c.client.Lcreate(c.tmpFid, tmpName, uint32(ninep.OWRONLY|ninep.OTRUNC), 0666, 0)
	if err != nil {
		return err
	}

	buf := make([]byte, 4+len(name)+1)
	buf[0] = byte(uint32(parent))
	buf[1] = byte(uint32(parent) >> 8)
	buf[2] = byte(uint32(parent) >> 16)
	buf[3] = byte(uint32(parent) >> 24)
	copy(buf[4:], name)

	n, err := c.client.Write(c.tmpFid, 0, buf)
	if cerr := c.client.Clunk(c.tmpFid); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if int(n) != len(buf) {
		return fmt.Errorf("catalog: short write spilling cnid %08x", cnid)
	}

	return c.client.Renameat(c.catalogFid, tmpName, c.catalogFid, spillFileName(cnid))
}

// readSpillFile walks to and reads a cnid's sidecar file. A missing
// file is a normal cache miss, not an error worth surfacing.
func (c *Cache) readSpillFile(cnid int32) (parent int32, name string, ok bool) {
	if err := c.walkToCatalog(); err != nil {
		return 0, "", false
	}
	if _, err := c.client.Walk(c.catalogFid, c.tmpFid, []string{spillFileName(cnid)}); err != nil {
		return 0, "", false
	}
	if _, _, err := c.client.Lopen(c.tmpFid, uint32(ninep.ORDONLY)); err != nil {
		return 0, "", false
	}
	defer c.client.Clunk(c.tmpFid)

	data, err := c.client.Read(c.tmpFid, 0, 4+128)
	if err != nil || len(data) < 5 {
		return 0, "", false
	}
	p := int32(uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24)
	nameEnd := 4
	for nameEnd < len(data) && data[nameEnd] != 0 {
		nameEnd++
	}
	return p, string(data[4:nameEnd]), true
}

// walkToCatalog re-derives tmpFid's position at the catalog directory
// before a spill-file operation, mirroring catalog.c's repeated
// WalkPath9(CATALOGFID, TMPFID, "") calls.
func (c *Cache) walkToCatalog() error {
	_, err := c.client.Walk(c.catalogFid, c.tmpFid, nil)
	return err
}
