// Package driver is the façade tying every other package into the
// single cooperative-scheduling loop spec.md §5 describes: construct
// the collaborators once (catalog cache, active multifork strategy,
// FCB table, directory enumerator, working-directory alias table),
// then dispatch operations against them one at a time, since the 9P
// client is strictly synchronous and there is no application-level
// thread of control. Shaped after the teacher's cmd/mount.go
// construct-then-serve flow.
package driver

import (
	"errors"

	"golang.org/x/net/context"

	"github.com/ninecatalog/classicbridge/internal/catalog"
	"github.com/ninecatalog/classicbridge/internal/fcb"
	"github.com/ninecatalog/classicbridge/internal/multifork"
	"github.com/ninecatalog/classicbridge/internal/sortdir"
)

// ErrTooManyOpenForks mirrors the original's tmfoErr: the FCB table
// has no free slot left to allocate.
var ErrTooManyOpenForks = errors.New("driver: fcb table full")

// EventKind distinguishes the two device-9p.c-style deferred event
// classes spec.md §5 names: config-change and input events, neither
// of which may be serviced from the reentrant interrupt context that
// observes them.
type EventKind int

const (
	EventConfigChange EventKind = iota
	EventInput
)

// DeferredEvent is one config-change or input notification queued for
// a later task-time callback instead of being handled inline.
type DeferredEvent struct {
	Kind    EventKind
	Payload any
}

// Driver wires together one volume's collaborators. Exactly one
// goroutine is expected to call its methods; nothing here is safe for
// concurrent use from more than one, matching spec.md §5's
// single-threaded cooperative model.
type Driver struct {
	Catalog  *catalog.Cache
	Strategy multifork.Strategy
	FCBs     *fcb.Table
	Dirs     *sortdir.Lister
	WDs      *WDTable

	deferred chan DeferredEvent
}

// New builds a Driver around its already-constructed collaborators.
// deferredCap bounds the config-change/input deferral queue; a queue
// that fills means events are dropped rather than blocking whatever
// reentrant context tried to enqueue one (§5).
func New(cat *catalog.Cache, strategy multifork.Strategy, fcbs *fcb.Table, dirs *sortdir.Lister, wds *WDTable, deferredCap int) *Driver {
	return &Driver{
		Catalog:  cat,
		Strategy: strategy,
		FCBs:     fcbs,
		Dirs:     dirs,
		WDs:      wds,
		deferred: make(chan DeferredEvent, deferredCap),
	}
}

// Defer enqueues ev for processing at the next task boundary. Returns
// false, dropping ev, if the deferral queue is already full — never
// blocks, since the caller may be the virtio interrupt handler itself.
func (d *Driver) Defer(ev DeferredEvent) bool {
	select {
	case d.deferred <- ev:
		return true
	default:
		return false
	}
}

// DrainDeferred calls handle for every event queued so far, stopping
// once the queue is empty or ctx is done. Intended to be called once
// per main-loop iteration from the driver's own goroutine, never from
// interrupt context.
func (d *Driver) DrainDeferred(ctx context.Context, handle func(DeferredEvent)) {
	for {
		select {
		case ev := <-d.deferred:
			handle(ev)
		case <-ctx.Done():
			return
		default:
			return
		}
	}
}

// OpenFork allocates an FCB for cnid's data or resource fork and asks
// the active multifork strategy to open it, enlisting the FCB into
// the shared table only once that succeeds (multifork.Strategy.Open's
// documented contract — see internal/multifork). destFid must already
// be a fid this caller owns and is free to bind to the open fork;
// srcFid must already be walked to the file itself; the strategy
// clones it, and walks ".." from it where it needs the parent.
func (d *Driver) OpenFork(cnid int32, srcFid, destFid uint32, name string, isResource, write bool) (*fcb.FCB, error) {
	f := d.FCBs.AllocateFile()
	if f == nil {
		return nil, ErrTooManyOpenForks
	}
	f.Cnid = cnid
	f.IsResource = isResource
	f.Write = write
	f.Name = name
	f.Fid = destFid

	if err := d.Strategy.Open(f, cnid, srcFid, name); err != nil {
		*f = fcb.FCB{RefNum: f.RefNum}
		return nil, err
	}
	d.FCBs.EnlistFile(f)
	return f, nil
}

// CloseFork asks the active strategy to flush and close f, then
// always frees its slot regardless of that outcome — an FCB is
// releasable once Close has been attempted, matching the original's
// unconditional fcbFlNm clear after mfClose runs.
func (d *Driver) CloseFork(f *fcb.FCB) error {
	err := d.Strategy.Close(f)
	d.FCBs.ReleaseFile(f)
	return err
}

// ResolveDir turns a classic parameter block's (vRefNum, dirID) pair
// into the base cnid a catalog walk should use, the Go analogue of
// device-9p.c's pbDirID: an explicit nonzero dirID always wins, else
// the working-directory table resolves vRefNum (defaulting to the
// root for an unrecognized one).
func (d *Driver) ResolveDir(vRefNum, dirID int32) int32 {
	if dirID != 0 {
		return dirID
	}
	return d.WDs.Resolve(vRefNum)
}
