// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ninecatalog/classicbridge/cfg"
	"github.com/ninecatalog/classicbridge/internal/catalog"
	"github.com/ninecatalog/classicbridge/internal/driver"
	"github.com/ninecatalog/classicbridge/internal/fcb"
	"github.com/ninecatalog/classicbridge/internal/logger"
	"github.com/ninecatalog/classicbridge/internal/multifork"
	"github.com/ninecatalog/classicbridge/internal/ninep"
	"github.com/ninecatalog/classicbridge/internal/sortdir"
	"github.com/ninecatalog/classicbridge/internal/virtqueue"
)

// Reserved fids, per spec.md §3's "the 9P client reserves FIDs 0-31
// for its own bookkeeping": the bridge claims a handful of them for
// the long-lived connections every collaborator needs to the 9P root.
const (
	fidRoot     uint32 = 0
	fidCatalog  uint32 = 1
	fidTmp      uint32 = 2
	fidSortDir  uint32 = 3
	fidSortList uint32 = 4
	fidOneFile  uint32 = 5

	fidThreeRoot       uint32 = 6
	fidThreeDir        uint32 = 7
	fidThreeResFork    uint32 = 8
	fidThreeCleanRec   uint32 = 9
	fidThreeRez        uint32 = 10
	fidThreeFinderInfo uint32 = 11
	fidThreeTmp        uint32 = 12
	fidThreeParent     uint32 = 13
)

// negotiatedMaxMessageSize is offered during Tversion; the server
// replies with whatever it actually supports, which Client.Init
// records on Client.MaxMsgSize.
const negotiatedMaxMessageSize = 64 * 1024

// raiseFileDescriptorLimit raises RLIMIT_NOFILE to its hard ceiling
// before any fids, FCBs, or catalog slots are allocated: a driver
// juggling many concurrently open forks can exhaust a low per-process
// default (SPEC_FULL.md's domain-stack entry for golang.org/x/sys).
func raiseFileDescriptorLimit() error {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return fmt.Errorf("getrlimit: %w", err)
	}
	if rlimit.Cur >= rlimit.Max {
		return nil
	}
	rlimit.Cur = rlimit.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return fmt.Errorf("setrlimit: %w", err)
	}
	return nil
}

// buildStrategy constructs the active multifork.Strategy for hint,
// wiring in whichever scratch fids its representation needs.
func buildStrategy(client *ninep.Client, fcbs *fcb.Table, cat *catalog.Cache, hint cfg.MultiforkHint) multifork.Strategy {
	if hint == cfg.MultiforkThreeFile {
		return multifork.NewThreeFile(client, fcbs, cat, multifork.ThreeFileFids{
			Root:       fidThreeRoot,
			Dir:        fidThreeDir,
			ResFork:    fidThreeResFork,
			CleanRec:   fidThreeCleanRec,
			Rez:        fidThreeRez,
			FinderInfo: fidThreeFinderInfo,
			Tmp:        fidThreeTmp,
			Parent:     fidThreeParent,
		})
	}
	return multifork.NewOneFile(client, fidOneFile)
}

// BuildDriver negotiates the virtio transport over dev, attaches the
// 9P connection, and wires every collaborator package into one
// Driver for the volume mountTag names. The actual guest-syscall
// dispatch loop that drives the returned Driver is the command
// dispatcher spec.md §1 places out of scope; BuildDriver stops once
// construction succeeds.
func BuildDriver(dev virtqueue.Device, owner virtqueue.QueueOwner, c *cfg.Config, mountTag string) (*driver.Driver, *virtqueue.Transport, error) {
	if err := raiseFileDescriptorLimit(); err != nil {
		return nil, nil, fmt.Errorf("mount preflight: %w", err)
	}

	if err := logger.InitLogFile(c.Logging); err != nil {
		return nil, nil, fmt.Errorf("initializing logging: %w", err)
	}

	volumeName, tagHint := cfg.ParseMountTag(mountTag)
	hint := cfg.EffectiveMultiforkHint(c, tagHint)
	logger.Infof("mounting volume %q with multifork hint %q", volumeName, hint)

	transport, err := virtqueue.New(dev, owner)
	if err != nil {
		return nil, nil, fmt.Errorf("device open failure: %w", err)
	}
	ring := transport.SetupQueue(0, uint16(c.Virtqueue.RingSize), ninep.RegisterCompletionRouting())
	bus := ninep.NewQueueBus(ring, func() { transport.Notify(0) })
	client := ninep.NewClient(bus)

	if err := client.Init(negotiatedMaxMessageSize); err != nil {
		return nil, nil, fmt.Errorf("9P init: %w", err)
	}
	if _, err := client.Attach(fidRoot, ninep.NoFID, "fsbridge", "", 0); err != nil {
		return nil, nil, fmt.Errorf("9P attach: %w", err)
	}

	cat := catalog.New(client, 0, fidRoot, fidCatalog, fidTmp)
	fcbs := fcb.NewTable(fcbTableSize(c))
	strategy := buildStrategy(client, fcbs, cat, hint)
	if err := strategy.Init(); err != nil {
		return nil, nil, fmt.Errorf("multifork strategy init: %w", err)
	}
	dirs := sortdir.New(client, cat, strategy, sortdir.Fids{Dir: fidSortDir, List: fidSortList})
	wds := driver.NewWDTable(int32(fidRoot))

	drv := driver.New(cat, strategy, fcbs, dirs, wds, deferredQueueCap)
	return drv, transport, nil
}

const deferredQueueCap = 64

func fcbTableSize(c *cfg.Config) int {
	if c.FileSystem.ResourceForkCacheMaxCount > 0 {
		return c.FileSystem.ResourceForkCacheMaxCount
	}
	return cfg.DefaultResourceForkCacheMaxCount
}

// runServe is the production RunFunc wired to Execute. dev/owner must
// come from a platform-specific virtio binding supplied by whatever
// embeds this package; spec.md §1 places that binding itself out of
// scope.
var runServe RunFunc = func(c *cfg.Config, mountTag string) error {
	return fmt.Errorf("runServe: no virtio device binding configured for this build")
}
