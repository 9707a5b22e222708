package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninecatalog/classicbridge/internal/fcb"
	"github.com/ninecatalog/classicbridge/internal/multifork"
)

// fakeStrategy is a multifork.Strategy stub whose Open/Close are
// scriptable per test, and whose other methods are harmless no-ops.
type fakeStrategy struct {
	openErr  error
	closeErr error
	opened   []int32
	closed   []int32
}

func (f *fakeStrategy) Init() error { return nil }

func (f *fakeStrategy) Open(fc *fcb.FCB, cnid int32, srcFid uint32, name string) error {
	f.opened = append(f.opened, cnid)
	return f.openErr
}

func (f *fakeStrategy) Close(fc *fcb.FCB) error {
	f.closed = append(f.closed, fc.Cnid)
	return f.closeErr
}

func (f *fakeStrategy) Read(*fcb.FCB, []byte, uint64) (int, error)  { return 0, nil }
func (f *fakeStrategy) Write(*fcb.FCB, []byte, uint64) (int, error) { return 0, nil }
func (f *fakeStrategy) GetEOF(*fcb.FCB) (uint64, error)             { return 0, nil }
func (f *fakeStrategy) SetEOF(*fcb.FCB, uint64) error               { return nil }
func (f *fakeStrategy) FGetAttr(int32, uint32, string, multifork.FieldMask) (multifork.Attr, error) {
	return multifork.Attr{}, nil
}
func (f *fakeStrategy) FSetAttr(int32, uint32, string, multifork.FieldMask, multifork.Attr) error {
	return nil
}
func (f *fakeStrategy) DGetAttr(int32, uint32, string, multifork.FieldMask) (multifork.Attr, error) {
	return multifork.Attr{}, nil
}
func (f *fakeStrategy) DSetAttr(int32, uint32, string, multifork.FieldMask, multifork.Attr) error {
	return nil
}
func (f *fakeStrategy) Move(uint32, string, uint32, string) error { return nil }
func (f *fakeStrategy) Del(uint32, string, bool) error             { return nil }
func (f *fakeStrategy) IsSidecar(name string) bool                 { return false }

func newTestDriver(strategy multifork.Strategy) *Driver {
	return New(nil, strategy, fcb.NewTable(8), nil, NewWDTable(7), 4)
}

func TestOpenForkEnlistsOnSuccess(t *testing.T) {
	strat := &fakeStrategy{}
	d := newTestDriver(strat)

	f, err := d.OpenFork(100, 1, 2, "doc", false, true)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, int32(100), f.Cnid)
	assert.Equal(t, uint32(2), f.Fid)
	assert.Same(t, f, d.FCBs.First(100, false))
}

func TestOpenForkDoesNotEnlistOnStrategyError(t *testing.T) {
	strat := &fakeStrategy{openErr: errors.New("boom")}
	d := newTestDriver(strat)

	f, err := d.OpenFork(100, 1, 2, "doc", false, true)
	assert.Error(t, err)
	assert.Nil(t, f)
	assert.Nil(t, d.FCBs.First(100, false))
}

func TestOpenForkErrorsWhenTableFull(t *testing.T) {
	strat := &fakeStrategy{}
	d := New(nil, strat, fcb.NewTable(1), nil, NewWDTable(7), 4)

	_, err := d.OpenFork(1, 1, 2, "a", false, false)
	require.NoError(t, err)

	_, err = d.OpenFork(2, 1, 3, "b", false, false)
	assert.ErrorIs(t, err, ErrTooManyOpenForks)
}

func TestCloseForkReleasesSlotEvenOnStrategyError(t *testing.T) {
	strat := &fakeStrategy{closeErr: errors.New("flush failed")}
	d := newTestDriver(strat)

	f, err := d.OpenFork(100, 1, 2, "doc", false, true)
	require.NoError(t, err)

	err = d.CloseFork(f)
	assert.Error(t, err)
	assert.Nil(t, d.FCBs.First(100, false))
}

func TestResolveDirPrefersExplicitDirID(t *testing.T) {
	d := newTestDriver(&fakeStrategy{})
	assert.Equal(t, int32(55), d.ResolveDir(-1, 55))
}

func TestResolveDirFallsBackToWDTable(t *testing.T) {
	d := newTestDriver(&fakeStrategy{})
	ref, err := d.WDs.OpenWD(42, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(42), d.ResolveDir(ref, 0))
}

func TestDeferAndDrainDeferred(t *testing.T) {
	d := newTestDriver(&fakeStrategy{})

	assert.True(t, d.Defer(DeferredEvent{Kind: EventConfigChange, Payload: "a"}))
	assert.True(t, d.Defer(DeferredEvent{Kind: EventInput, Payload: "b"}))

	var got []DeferredEvent
	d.DrainDeferred(context.Background(), func(ev DeferredEvent) {
		got = append(got, ev)
	})

	require.Len(t, got, 2)
	assert.Equal(t, EventConfigChange, got[0].Kind)
	assert.Equal(t, EventInput, got[1].Kind)
}

func TestDeferDropsWhenQueueFull(t *testing.T) {
	d := New(nil, &fakeStrategy{}, fcb.NewTable(4), nil, NewWDTable(7), 1)

	assert.True(t, d.Defer(DeferredEvent{Kind: EventInput}))
	assert.False(t, d.Defer(DeferredEvent{Kind: EventInput}))
}
