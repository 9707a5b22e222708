package fcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateFileReturnsDistinctFreeSlots(t *testing.T) {
	tb := NewTable(4)

	a := tb.AllocateFile()
	require.NotNil(t, a)
	a.Cnid = 10
	tb.EnlistFile(a)

	b := tb.AllocateFile()
	require.NotNil(t, b)
	assert.NotEqual(t, a.RefNum, b.RefNum)
}

func TestAllocateFileReturnsNilWhenFull(t *testing.T) {
	tb := NewTable(2)

	for i := 0; i < 2; i++ {
		f := tb.AllocateFile()
		require.NotNil(t, f)
		f.Cnid = int32(i + 1)
		tb.EnlistFile(f)
	}

	assert.Nil(t, tb.AllocateFile())
}

func TestEnlistFilePanicsOnZeroCnid(t *testing.T) {
	tb := NewTable(2)
	f := tb.AllocateFile()
	assert.Panics(t, func() { tb.EnlistFile(f) })
}

func TestFirstAndNextVisitAllMatchingFCBsOnce(t *testing.T) {
	tb := NewTable(8)

	var made []*FCB
	for i := 0; i < 3; i++ {
		f := tb.AllocateFile()
		f.Cnid = 77
		f.IsResource = true
		tb.EnlistFile(f)
		made = append(made, f)
	}
	// A data-fork FCB for the same cnid lives in a different bucket
	// and must never show up in the resource-fork walk.
	other := tb.AllocateFile()
	other.Cnid = 77
	other.IsResource = false
	tb.EnlistFile(other)

	seen := map[int]bool{}
	for f := tb.First(77, true); f != nil; f = tb.Next(f) {
		assert.False(t, seen[f.RefNum], "visited refnum %d twice", f.RefNum)
		seen[f.RefNum] = true
	}
	assert.Len(t, seen, 3)
	for _, f := range made {
		assert.True(t, seen[f.RefNum])
	}
}

func TestFirstReturnsNilWhenNoneOpen(t *testing.T) {
	tb := NewTable(4)
	assert.Nil(t, tb.First(999, false))
}

func TestDelistFileLeavesSiblingEnlisted(t *testing.T) {
	tb := NewTable(8)

	a := tb.AllocateFile()
	a.Cnid = 5
	tb.EnlistFile(a)
	b := tb.AllocateFile()
	b.Cnid = 5
	tb.EnlistFile(b)

	tb.DelistFile(a)

	seen := map[int]bool{}
	for f := tb.First(5, false); f != nil; f = tb.Next(f) {
		seen[f.RefNum] = true
	}
	assert.Len(t, seen, 1)
	assert.True(t, seen[b.RefNum])
}

func TestDelistFileOfSoleListMemberEmptiesBucket(t *testing.T) {
	tb := NewTable(4)

	a := tb.AllocateFile()
	a.Cnid = 9
	tb.EnlistFile(a)
	tb.DelistFile(a)

	assert.Nil(t, tb.First(9, false))
}

func TestReleaseFileFreesSlotForReuse(t *testing.T) {
	tb := NewTable(1)

	a := tb.AllocateFile()
	require.NotNil(t, a)
	a.Cnid = 3
	tb.EnlistFile(a)

	require.Nil(t, tb.AllocateFile()) // table of size 1 is now full

	tb.ReleaseFile(a)

	b := tb.AllocateFile()
	require.NotNil(t, b)
	assert.Equal(t, a.RefNum, b.RefNum)
	assert.Equal(t, int32(0), b.Cnid)
}

func TestGetReturnsNilForFreeOrOutOfRangeSlot(t *testing.T) {
	tb := NewTable(2)
	assert.Nil(t, tb.Get(0))
	assert.Nil(t, tb.Get(99))
	assert.Nil(t, tb.Get(1)) // allocated to nobody yet

	f := tb.AllocateFile()
	f.Cnid = 1
	tb.EnlistFile(f)
	assert.Equal(t, f, tb.Get(f.RefNum))
}
