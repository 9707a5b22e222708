package ninep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitNegotiatesMaxMessageSize(t *testing.T) {
	c := NewClient(newFakeBus())
	require.NoError(t, c.Init(65536))
	assert.Equal(t, uint32(65536), c.MaxMsgSize)
}

func TestAttachReturnsRootQid(t *testing.T) {
	c := NewClient(newFakeBus())
	q, err := c.Attach(c.Named.Root, NoFID, "nobody", "", 0)
	require.NoError(t, err)
	assert.True(t, q.IsDir())
	assert.Equal(t, uint64(2), q.Path)
}

func TestWalkZeroComponentsDuplicatesFid(t *testing.T) {
	c := NewClient(newFakeBus())
	_, err := c.Attach(c.Named.Root, NoFID, "nobody", "", 0)
	require.NoError(t, err)

	qids, err := c.Walk(c.Named.Root, 40, nil)
	require.NoError(t, err)
	assert.Empty(t, qids)
}

func TestLcreateWriteReadRoundTrip(t *testing.T) {
	c := NewClient(newFakeBus())
	_, err := c.Attach(c.Named.Root, NoFID, "nobody", "", 0)
	require.NoError(t, err)

	_, _, err = c.Lcreate(c.Named.Root, "hello.txt", uint32(ORDWR|OCREAT), 0644, 0)
	require.NoError(t, err)

	n, err := c.Write(c.Named.Root, 0, []byte("hi there"))
	require.NoError(t, err)
	assert.Equal(t, uint32(8), n)

	data, err := c.Read(c.Named.Root, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, "hi there", string(data))
}

func TestUnlinkatMissingNameReturnsErrno(t *testing.T) {
	c := NewClient(newFakeBus())
	_, err := c.Attach(c.Named.Root, NoFID, "nobody", "", 0)
	require.NoError(t, err)

	err = c.Unlinkat(c.Named.Root, "nope", 0)
	require.Error(t, err)
	var errno Errno
	require.ErrorAs(t, err, &errno)
	assert.Equal(t, ENOENT, errno)
}

func TestWalkPathZeroComponentsDuplicatesFid(t *testing.T) {
	c := NewClient(newFakeBus())
	_, err := c.Attach(c.Named.Root, NoFID, "nobody", "", 0)
	require.NoError(t, err)

	_, err = c.WalkPath(c.Named.Root, 41, "")
	require.NoError(t, err)
}

func TestGetattrReportsSizeAfterWrite(t *testing.T) {
	c := NewClient(newFakeBus())
	_, err := c.Attach(c.Named.Root, NoFID, "nobody", "", 0)
	require.NoError(t, err)
	_, _, err = c.Lcreate(c.Named.Root, "f", uint32(ORDWR|OCREAT), 0644, 0)
	require.NoError(t, err)
	_, err = c.Write(c.Named.Root, 0, []byte("abcd"))
	require.NoError(t, err)

	st, err := c.Getattr(c.Named.Root, StatSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), st.Size)
}
