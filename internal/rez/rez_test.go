package rez

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTextSingleResource(t *testing.T) {
	src := `data 'ABCD' (128, "hi") { $"00 01 02 03" };`
	rs, err := ParseText(src)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "ABCD", rs[0].TypeString())
	assert.Equal(t, int16(128), rs[0].ID)
	assert.Equal(t, "hi", rs[0].Name)
	assert.True(t, rs[0].HasName)
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0x03}, rs[0].Data)
}

func TestParseTextNoNameNoAttrs(t *testing.T) {
	src := `data 'TEXT' (1) { $"68 65 6C 6C 6F" };`
	rs, err := ParseText(src)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.False(t, rs[0].HasName)
	assert.Equal(t, "hello", string(rs[0].Data))
}

func TestParseTextAttributesAndMultipleStatements(t *testing.T) {
	src := `
data 'ICON' (1, purgeable, locked) { $"FF FF" };
data 'ICON' (2) { $"" };
`
	rs, err := ParseText(src)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, uint8(AttrPurgeable|AttrLocked), rs[0].Attr)
	assert.Empty(t, rs[1].Data)
}

func TestEncodeDecodeBinaryRoundTrip(t *testing.T) {
	resources := []Resource{
		{Type: [4]byte{'A', 'B', 'C', 'D'}, ID: 128, Name: "hi", HasName: true, Data: []byte{0, 1, 2, 3}},
	}
	bin := EncodeBinary(resources)
	got, err := DecodeBinary(bin)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, resources[0].Type, got[0].Type)
	assert.Equal(t, resources[0].ID, got[0].ID)
	assert.Equal(t, resources[0].Name, got[0].Name)
	assert.Equal(t, resources[0].Data, got[0].Data)
}

// TestEncodeBinaryHeaderMatchesScenario pins spec.md §8 scenario 3's
// literal big-endian byte layout directly, rather than reading the
// header back through the package's own getU32/getU16 — a round trip
// through the same byte-order code under test would pass even if both
// sides silently agreed on the wrong endianness.
func TestEncodeBinaryHeaderMatchesScenario(t *testing.T) {
	resources := []Resource{
		{Type: [4]byte{'A', 'B', 'C', 'D'}, ID: 128, Name: "hi", HasName: true, Data: []byte{0, 1, 2, 3}},
	}
	bin := EncodeBinary(resources)
	require.True(t, len(bin) >= HeaderLen)

	// data-offset 256, map-offset 260, data-length 4, all big-endian.
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x00}, bin[0:4])
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x04}, bin[4:8])
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x04}, bin[8:12])
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0x03}, bin[HeaderLen:HeaderLen+4])

	// The sole reference-list entry's id (128) must read as 00 80 big-
	// endian, not the 80 00 a little-endian encoder would emit.
	const typeListOff = mapHeaderLen
	const refListOff = typeListOff + 2 + 8 // one type entry
	entry := bin[HeaderLen+4+refListOff:]
	assert.Equal(t, []byte{0x00, 0x80}, entry[0:2])
}

func TestEncodeDecodeMultipleResourcesAndTypesRoundTrip(t *testing.T) {
	resources := []Resource{
		{Type: [4]byte{'A', 'B', 'C', 'D'}, ID: 1, Data: []byte{1, 2, 3}},
		{Type: [4]byte{'A', 'B', 'C', 'D'}, ID: 2, Name: "second", HasName: true, Data: []byte{4, 5}},
		{Type: [4]byte{'W', 'X', 'Y', 'Z'}, ID: -1, Data: []byte{9, 9, 9, 9, 9}},
	}
	bin := EncodeBinary(resources)
	got, err := DecodeBinary(bin)
	require.NoError(t, err)
	require.Len(t, got, 3)

	byID := map[int16]Resource{}
	for _, r := range got {
		byID[r.ID] = r
	}
	assert.Equal(t, []byte{1, 2, 3}, byID[1].Data)
	assert.Equal(t, []byte{4, 5}, byID[2].Data)
	assert.True(t, byID[2].HasName)
	assert.Equal(t, "second", byID[2].Name)
	assert.Equal(t, []byte{9, 9, 9, 9, 9}, byID[-1].Data)
}

func TestRezDeRezRoundTrip(t *testing.T) {
	src := `data 'ABCD' (128, "hi") { $"00 01 02 03" };`
	bin, err := Rez(src)
	require.NoError(t, err)

	text, err := DeRez(bin)
	require.NoError(t, err)

	rebin, err := Rez(text)
	require.NoError(t, err)
	assert.Equal(t, bin, rebin)
}

func TestEmitTextEscapesSpecialBytesInNames(t *testing.T) {
	resources := []Resource{
		{Type: [4]byte{'S', 'T', 'R', ' '}, ID: 1, Name: "a\"b\\c", HasName: true, Data: nil},
	}
	text := EmitText(resources)
	assert.Contains(t, text, `\"`)
	assert.Contains(t, text, `\\`)

	reparsed, err := ParseText(text)
	require.NoError(t, err)
	require.Len(t, reparsed, 1)
	assert.Equal(t, "a\"b\\c", reparsed[0].Name)
}

func TestAttrBitsOutsideNamedSetRoundTripAsHex(t *testing.T) {
	resources := []Resource{
		{Type: [4]byte{'Z', 'Z', 'Z', 'Z'}, ID: 5, Attr: 0x80, Data: []byte{1}},
	}
	text := EmitText(resources)
	reparsed, err := ParseText(text)
	require.NoError(t, err)
	require.Len(t, reparsed, 1)
	assert.Equal(t, uint8(0x80), reparsed[0].Attr)
}
