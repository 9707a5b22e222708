package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWDTableOpenWDForRootReturnsVolumeRefNum(t *testing.T) {
	wds := NewWDTable(7)
	ref, err := wds.OpenWD(2, 1234)
	require.NoError(t, err)
	assert.EqualValues(t, 7, ref)
}

func TestWDTableOpenWDAllocatesNegativeRefNum(t *testing.T) {
	wds := NewWDTable(7)
	ref, err := wds.OpenWD(42, 1)
	require.NoError(t, err)
	assert.Less(t, ref, int32(0))
	assert.Equal(t, int32(42), wds.Resolve(ref))
}

func TestWDTableOpenWDReusesIdenticalAlias(t *testing.T) {
	wds := NewWDTable(7)
	first, err := wds.OpenWD(42, 1)
	require.NoError(t, err)
	second, err := wds.OpenWD(42, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWDTableOpenWDDistinguishesDifferentProcIDs(t *testing.T) {
	wds := NewWDTable(7)
	a, err := wds.OpenWD(42, 1)
	require.NoError(t, err)
	b, err := wds.OpenWD(42, 2)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestWDTableCloseWDFreesSlotForReuse(t *testing.T) {
	wds := NewWDTable(7)
	ref, err := wds.OpenWD(42, 1)
	require.NoError(t, err)

	wds.CloseWD(ref)
	assert.Equal(t, int32(2), wds.Resolve(ref))

	reused, err := wds.OpenWD(99, 1)
	require.NoError(t, err)
	assert.Equal(t, ref, reused)
}

func TestWDTableCloseWDOfUnknownRefNumIsNoOp(t *testing.T) {
	wds := NewWDTable(7)
	assert.NotPanics(t, func() { wds.CloseWD(-5) })
}

func TestWDTableResolveUnknownRefNumDefaultsToRoot(t *testing.T) {
	wds := NewWDTable(7)
	assert.Equal(t, int32(2), wds.Resolve(-1))
}

func TestWDTableOpenWDErrorsWhenTableFull(t *testing.T) {
	wds := NewWDTable(7)
	for i := 0; i < maxWDs; i++ {
		_, err := wds.OpenWD(int32(100+i), 1)
		require.NoError(t, err)
	}
	_, err := wds.OpenWD(9999, 1)
	assert.ErrorIs(t, err, ErrTooManyWDs)
}
