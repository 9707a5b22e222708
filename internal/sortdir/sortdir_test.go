package sortdir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninecatalog/classicbridge/internal/catalog"
	"github.com/ninecatalog/classicbridge/internal/fcb"
	"github.com/ninecatalog/classicbridge/internal/multifork"
	"github.com/ninecatalog/classicbridge/internal/ninep"
)

// stubStrategy is a do-nothing multifork.Strategy: the only behavior
// sortdir consults is IsSidecar, to keep a strategy's bookkeeping files
// out of a listing.
type stubStrategy struct{}

func (stubStrategy) Init() error                                  { return nil }
func (stubStrategy) Open(*fcb.FCB, int32, uint32, string) error    { return nil }
func (stubStrategy) Close(*fcb.FCB) error                         { return nil }
func (stubStrategy) Read(*fcb.FCB, []byte, uint64) (int, error)    { return 0, nil }
func (stubStrategy) Write(*fcb.FCB, []byte, uint64) (int, error)   { return 0, nil }
func (stubStrategy) GetEOF(*fcb.FCB) (uint64, error)               { return 0, nil }
func (stubStrategy) SetEOF(*fcb.FCB, uint64) error                 { return nil }
func (stubStrategy) FGetAttr(int32, uint32, string, multifork.FieldMask) (multifork.Attr, error) {
	return multifork.Attr{}, nil
}
func (stubStrategy) FSetAttr(int32, uint32, string, multifork.FieldMask, multifork.Attr) error {
	return nil
}
func (stubStrategy) DGetAttr(int32, uint32, string, multifork.FieldMask) (multifork.Attr, error) {
	return multifork.Attr{}, nil
}
func (stubStrategy) DSetAttr(int32, uint32, string, multifork.FieldMask, multifork.Attr) error {
	return nil
}
func (stubStrategy) Move(uint32, string, uint32, string) error { return nil }
func (stubStrategy) Del(uint32, string, bool) error             { return nil }
func (stubStrategy) IsSidecar(name string) bool {
	return strings.HasSuffix(name, ".rdump") || strings.HasSuffix(name, ".idump")
}

// fakeNode is one in-memory directory entry.
type fakeNode struct {
	isDir   bool
	qidPath uint64
}

// fakeClient is a minimal in-memory 9P stand-in covering everything
// catalog.Cache and sortdir.Lister need: Walk-family navigation plus a
// batch Readdir that hands back every child of the fid's current
// position in one call (map iteration order, deliberately not sorted,
// to prove the package does its own ordering).
type fakeClient struct {
	// children maps a directory path to its entries, keyed by name.
	children map[string]map[string]fakeNode
	fidPaths map[uint32]string
	nextQid  uint64
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		children: map[string]map[string]fakeNode{"": {}},
		fidPaths: map[uint32]string{0: ""},
		nextQid:  1,
	}
}

func (f *fakeClient) addFile(dir, name string, isDir bool) {
	if f.children[dir] == nil {
		f.children[dir] = map[string]fakeNode{}
	}
	f.children[dir][name] = fakeNode{isDir: isDir, qidPath: f.nextQid}
	f.nextQid++
	if isDir {
		path := name
		if dir != "" {
			path = dir + "/" + name
		}
		if f.children[path] == nil {
			f.children[path] = map[string]fakeNode{}
		}
	}
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}

func (f *fakeClient) Walk(fid, newfid uint32, names []string) ([]ninep.Qid, error) {
	cur := f.fidPaths[fid]
	for i, n := range names {
		if n == "" || n == "." {
			continue
		}
		if n == ".." {
			idx := strings.LastIndexByte(cur, '/')
			if idx < 0 {
				cur = ""
			} else {
				cur = cur[:idx]
			}
			continue
		}
		if _, ok := f.children[cur][n]; !ok {
			if i == len(names)-1 {
				return nil, ninep.ENOENT
			}
			return nil, ninep.ENOTDIR
		}
		cur = joinPath(cur, n)
	}
	f.fidPaths[newfid] = cur
	return nil, nil
}

func (f *fakeClient) WalkPath(fid, newfid uint32, path string) ([]ninep.Qid, error) {
	var names []string
	if path != "" {
		names = strings.Split(path, "/")
	}
	return f.Walk(fid, newfid, names)
}

func (f *fakeClient) Lcreate(fid uint32, name string, flags, mode, gid uint32) (ninep.Qid, uint32, error) {
	f.addFile(f.fidPaths[fid], name, false)
	f.fidPaths[fid] = joinPath(f.fidPaths[fid], name)
	return ninep.Qid{}, 0, nil
}

func (f *fakeClient) Lopen(fid uint32, flags uint32) (ninep.Qid, uint32, error) {
	return ninep.Qid{}, 0, nil
}

func (f *fakeClient) Read(fid uint32, offset uint64, count uint32) ([]byte, error) { return nil, nil }
func (f *fakeClient) Write(fid uint32, offset uint64, buf []byte) (uint32, error) {
	return uint32(len(buf)), nil
}
func (f *fakeClient) Clunk(fid uint32) error { delete(f.fidPaths, fid); return nil }
func (f *fakeClient) Renameat(olddirfid uint32, oldname string, newdirfid uint32, newname string) error {
	return ninep.ENOENT
}

// Readdir ignores offset/count and returns the whole directory in one
// call, then an empty batch, mirroring a small in-memory directory.
func (f *fakeClient) Readdir(fid uint32, offset uint64, count uint32) ([]ninep.DirEntry, uint64, error) {
	if offset != 0 {
		return nil, offset, nil
	}
	dir := f.fidPaths[fid]
	var entries []ninep.DirEntry
	i := uint64(1)
	for name, node := range f.children[dir] {
		typ := uint8(0)
		if node.isDir {
			typ = 4
		}
		entries = append(entries, ninep.DirEntry{
			Qid:    ninep.Qid{Path: node.qidPath},
			Offset: i,
			Type:   typ,
			Name:   name,
		})
		i++
	}
	return entries, i, nil
}

func newTestLister(f *fakeClient) *Lister {
	cat := catalog.New(f, 0, 1, 90, 91)
	return New(f, cat, stubStrategy{}, Fids{Dir: 60, List: 61})
}

func TestReadDirSortedOrdersByRelString(t *testing.T) {
	f := newFakeClient()
	f.addFile("", "zebra", false)
	f.addFile("", "Apple", false)
	f.addFile("", "banana", false)
	f.fidPaths[1] = ""

	l := newTestLister(f)

	var got []string
	for i := int16(1); ; i++ {
		_, name, err := l.ReadDirSorted(10, 2, i, true)
		if err != nil {
			require.ErrorIs(t, err, catalog.ErrNotFound)
			break
		}
		got = append(got, name)
	}

	assert.Equal(t, []string{"Apple", "banana", "zebra"}, got)
}

func TestReadDirSortedSkipsSidecarsAndDotNames(t *testing.T) {
	f := newFakeClient()
	f.addFile("", "doc", false)
	f.addFile("", "doc.rdump", false)
	f.addFile("", "doc.idump", false)
	f.fidPaths[1] = ""

	l := newTestLister(f)

	_, name, err := l.ReadDirSorted(10, 2, 1, true)
	require.NoError(t, err)
	assert.Equal(t, "doc", name)

	_, _, err = l.ReadDirSorted(10, 2, 2, true)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestReadDirSortedExcludesDirsWhenNotDirOK(t *testing.T) {
	f := newFakeClient()
	f.addFile("", "afile", false)
	f.addFile("", "adir", true)
	f.fidPaths[1] = ""

	l := newTestLister(f)

	_, name, err := l.ReadDirSorted(10, 2, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "afile", name)

	_, _, err = l.ReadDirSorted(10, 2, 2, false)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestReadDirSortedRestartsOnNonIncreasingIndex(t *testing.T) {
	f := newFakeClient()
	f.addFile("", "alpha", false)
	f.addFile("", "beta", false)
	f.fidPaths[1] = ""

	l := newTestLister(f)

	_, first, err := l.ReadDirSorted(10, 2, 1, true)
	require.NoError(t, err)
	assert.Equal(t, "alpha", first)

	_, second, err := l.ReadDirSorted(10, 2, 2, true)
	require.NoError(t, err)
	assert.Equal(t, "beta", second)

	// Asking for index 1 again (not strictly greater than lastIndex)
	// restarts the listing from the beginning.
	_, restart, err := l.ReadDirSorted(10, 2, 1, true)
	require.NoError(t, err)
	assert.Equal(t, "alpha", restart)
}

func TestReadDirSortedInvalidIndexErrors(t *testing.T) {
	f := newFakeClient()
	f.fidPaths[1] = ""
	l := newTestLister(f)

	_, _, err := l.ReadDirSorted(10, 2, 0, true)
	assert.Error(t, err)
}
