package ninebuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type remoteFile struct {
	data []byte
}

func (f *remoteFile) read(fid uint32, offset uint64, count uint32) ([]byte, error) {
	if offset >= uint64(len(f.data)) {
		return nil, nil
	}
	end := offset + uint64(count)
	if end > uint64(len(f.data)) {
		end = uint64(len(f.data))
	}
	return f.data[offset:end], nil
}

func (f *remoteFile) write(fid uint32, offset uint64, buf []byte) (uint32, error) {
	need := int(offset) + len(buf)
	if need > len(f.data) {
		grown := make([]byte, need)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[offset:], buf)
	return uint32(len(buf)), nil
}

func TestReaderBorrowReturnTracksLogicalMark(t *testing.T) {
	rf := &remoteFile{data: []byte("0123456789")}
	r := NewReader(1, 4, rf.read)

	w, err := r.BorrowRead(4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(w))
	r.ReturnRead(4)

	w, err = r.BorrowRead(4)
	require.NoError(t, err)
	assert.Equal(t, "4567", string(w))
	r.ReturnRead(2)

	w, err = r.BorrowRead(4)
	require.NoError(t, err)
	assert.Equal(t, "6789", string(w))
}

func TestReaderZeroExtendsPastEOF(t *testing.T) {
	rf := &remoteFile{data: []byte("ab")}
	r := NewReader(1, 16, rf.read)

	w, err := r.BorrowRead(4)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 0, 0}, w)
}

func TestBorrowReadWhileOutstandingPanics(t *testing.T) {
	rf := &remoteFile{data: []byte("abcd")}
	r := NewReader(1, 16, rf.read)
	_, err := r.BorrowRead(2)
	require.NoError(t, err)
	assert.Panics(t, func() { r.BorrowRead(2) })
}

func TestWriterFlushAndOverwriteBufferedBytes(t *testing.T) {
	rf := &remoteFile{}
	w := NewWriter(1, 16, rf.write)

	buf := w.BorrowWrite(4)
	copy(buf, "XXXX")
	w.ReturnWrite(4)

	w.Overwrite(1, []byte("YY"))
	w.Flush()

	assert.Equal(t, "XYYX", string(rf.data))
}

func TestWriterOverwriteAfterFlush(t *testing.T) {
	rf := &remoteFile{}
	w := NewWriter(1, 4, rf.write)

	buf := w.BorrowWrite(4)
	copy(buf, "abcd")
	w.ReturnWrite(4) // fills buffer exactly, triggers an implicit flush

	w.Overwrite(0, []byte("Z"))

	assert.Equal(t, "Zbcd", string(rf.data))
}
