package virtqueue

import "fmt"

// VersionOneFeature is the virtio "version 1" feature bit. The device
// MUST offer it; the driver MUST accept it or fail initialisation,
// per spec.md §4.2/§6.
const VersionOneFeature = 32

// Device is the hardware/hypervisor-specific half of a virtio device:
// feature negotiation, queue setup, and the notification doorbell. The
// bridge's own code implements only the Transport side below; Device is
// satisfied by whatever virtio-mmio or virtio-pci binding the platform
// provides (explicitly out of scope per spec.md §1 — "MMIO register
// layout" — the interface here exists only to document the contract
// Transport depends on).
type Device interface {
	GetDeviceFeature(bit uint) bool
	SetDriverFeature(bit uint, value bool)
	FeaturesOK() bool
	SetFeaturesOK()
	DriverOK()
	Fail(reason string)

	QueueMaxSize(queue int) uint16
	QueueSet(queue int, size uint16)
	Notify(queue int)
}

// QueueOwner receives upper-layer notification callbacks once interrupt
// handling has drained the used rings.
type QueueOwner interface {
	OnQueueNotified(queue int)
	OnConfigChanged()
}

// Transport wraps a Device and the set of Rings it owns, running the
// discovery/initialisation sequence and the Disarm/drain/Rearm/drain
// interrupt discipline of spec.md §4.2 and §5.
type Transport struct {
	dev    Device
	owner  QueueOwner
	queues []*Ring
}

// New runs Init → feature negotiation → FeaturesOK → DriverOK. It fails
// (calling dev.Fail and returning an error) if the device does not offer
// the required version-1 feature bit, per spec.md's mandatory
// negotiation requirement.
func New(dev Device, owner QueueOwner) (*Transport, error) {
	if !dev.GetDeviceFeature(VersionOneFeature) {
		dev.Fail("device does not offer VIRTIO_F_VERSION_1")
		return nil, fmt.Errorf("virtqueue: device failed negotiation: missing feature bit %d", VersionOneFeature)
	}
	dev.SetDriverFeature(VersionOneFeature, true)
	dev.SetFeaturesOK()
	if !dev.FeaturesOK() {
		dev.Fail("device rejected feature subset")
		return nil, fmt.Errorf("virtqueue: device rejected accepted feature subset")
	}

	t := &Transport{dev: dev, owner: owner}
	dev.DriverOK()
	return t, nil
}

// SetupQueue negotiates the size of queue index with the device, builds
// a Ring for it, and registers the completion routing.
func (t *Transport) SetupQueue(queue int, maxRequestedSize uint16, onCompletion OnCompletion) *Ring {
	avail := t.dev.QueueMaxSize(queue)
	if maxRequestedSize != 0 && maxRequestedSize < avail {
		avail = maxRequestedSize
	}
	ring, actual := Init(avail, onCompletion)
	t.dev.QueueSet(queue, actual)

	for len(t.queues) <= queue {
		t.queues = append(t.queues, nil)
	}
	t.queues[queue] = ring
	return ring
}

// Notify asks the underlying device to ring queue's doorbell, subject to
// the ring's own no-notifications suppression.
func (t *Transport) Notify(queue int) {
	t.queues[queue].Notify(func() { t.dev.Notify(queue) })
}

// HandleInterrupt runs the required discipline: Disarm every queue,
// drain them, ask the device to Rearm, re-sync each ring's no-notify
// flag from its interest counter, then drain once more to close the
// race where a completion lands between the first drain and rearm.
func (t *Transport) HandleInterrupt() {
	for _, q := range t.queues {
		if q != nil {
			q.Disarm()
		}
	}
	t.drainAll()

	for i, q := range t.queues {
		if q != nil {
			q.Rearm()
			if t.owner != nil {
				t.owner.OnQueueNotified(i)
			}
		}
	}

	t.drainAll()
}

func (t *Transport) drainAll() {
	for _, q := range t.queues {
		if q != nil {
			q.Poll()
		}
	}
}

// ConfigChanged notifies the owner of a device config-change event. Per
// spec.md §5, config-change and input events are always deferred to a
// later task-time callback and never serviced inline from this method;
// the driver façade is responsible for queuing this call rather than
// acting on it synchronously (see internal/driver's deferral channel).
func (t *Transport) ConfigChanged() {
	if t.owner != nil {
		t.owner.OnConfigChanged()
	}
}

// Queue returns the Ring for a previously set-up queue index.
func (t *Transport) Queue(queue int) *Ring {
	return t.queues[queue]
}
