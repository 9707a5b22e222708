package ninep

import (
	"fmt"
	"runtime"

	"github.com/ninecatalog/classicbridge/internal/virtqueue"
)

// Bus is the transport-facing half of Transact: enqueue a request buffer
// and a response buffer, ring the doorbell, and block until the device's
// reply has landed in the response buffer. Concrete implementations live
// one layer below ninep (virtqueue-backed in production, an in-process
// fake in tests).
type Bus interface {
	RoundTrip(tx []byte, rx []byte) error
}

// QueueBus is the production Bus: a single virtqueue shared by every
// request, one tag in flight at a time (spec.md §5: "the 9P tag space
// (size 1, held by Transact's stack)"). RoundTrip models the spec's
// "Completion future" design note directly: the submitter blocks on a
// channel that the queue's completion callback fulfils, while spinning
// on Poll itself in case nothing else is driving the interrupt path
// concurrently.
type QueueBus struct {
	ring   *virtqueue.Ring
	notify func()
}

// NewQueueBus wires a Bus onto an already set-up virtqueue ring. The
// ring must have been constructed with the OnCompletion callback that
// RegisterCompletionRouting returns.
func NewQueueBus(ring *virtqueue.Ring, notify func()) *QueueBus {
	return &QueueBus{ring: ring, notify: notify}
}

// RegisterCompletionRouting returns an OnCompletion suitable for passing
// to virtqueue.Init/Transport.SetupQueue: it expects the tag to be a
// chan uint32 and forwards the completion length onto it.
func RegisterCompletionRouting() virtqueue.OnCompletion {
	return func(c virtqueue.Completion) {
		ch, ok := c.Tag.(chan uint32)
		if !ok {
			panic(fmt.Sprintf("ninep: unexpected completion tag type %T", c.Tag))
		}
		ch <- c.Len
	}
}

// RoundTrip sends tx as the sole device-readable buffer and rx as the
// sole device-writable buffer, then spins until the matching completion
// arrives. Because rx is the very slice the ring hands to the "device"
// (this process shares memory with whatever serves the other end), the
// reply bytes are already in rx once the completion fires.
func (q *QueueBus) RoundTrip(tx []byte, rx []byte) error {
	done := make(chan uint32, 1)
	q.ring.Send([][]byte{tx}, [][]byte{rx}, done)
	if q.notify != nil {
		q.notify()
	}

	for {
		select {
		case <-done:
			return nil
		default:
			q.ring.Poll()
			runtime.Gosched()
		}
	}
}
