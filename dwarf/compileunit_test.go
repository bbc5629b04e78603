package dwarf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildCUHeader encodes a DWARF v4 compile-unit header: unit_length,
// version, debug_abbrev_offset, address_size, followed by dieBytes.
func buildCUHeader(dieBytes []byte, abbrevOffset uint32) []byte {
	body := make([]byte, 0, 7+len(dieBytes))
	body = append(body, 0, 0) // version, filled below
	binary.LittleEndian.PutUint16(body[0:2], 4)
	off := make([]byte, 4)
	binary.LittleEndian.PutUint32(off, abbrevOffset)
	body = append(body, off...)
	body = append(body, 8) // address_size
	body = append(body, dieBytes...)

	unitLength := uint32(len(body))
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, unitLength)
	return append(out, body...)
}

func TestParseCompileUnitsMultipleUnits(t *testing.T) {
	abbrev := buildAbbrevSection(abbrevEntry{code: 1, tag: DW_TAG_compile_unit, hasChildren: false})
	die := append(encodeULEB128(1))
	cu1 := buildCUHeader(die, 0)
	cu2 := buildCUHeader(die, 0)

	debugInfo := append(append([]byte{}, cu1...), cu2...)
	d := &Data{elf: testElf(), debugInfo: debugInfo, debugAbbrev: abbrev, abbrevTables: make(abbrevCache)}

	units, err := parseCompileUnits(d)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, 0, units[0].offset)
	assert.Equal(t, len(cu1), units[1].offset)
}

func TestParseCompileUnitHeaderRejectsUnsupportedVersion(t *testing.T) {
	body := make([]byte, 0)
	body = append(body, 0, 0)
	binary.LittleEndian.PutUint16(body[0:2], 3) // unsupported version
	body = append(body, 0, 0, 0, 0, 8)
	unitLength := make([]byte, 4)
	binary.LittleEndian.PutUint32(unitLength, uint32(len(body)))
	data := append(unitLength, body...)

	c := NewCursor(data)
	_, _, err := parseCompileUnitHeader(&Data{}, c)
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, UnsupportedDwarf, derr.Kind)
}

func TestCompileUnitRoot(t *testing.T) {
	abbrev := buildAbbrevSection(abbrevEntry{code: 1, tag: DW_TAG_compile_unit, hasChildren: false})
	cu := newTestCU(buildCUHeader(encodeULEB128(1), 0), abbrev)

	root, err := cu.Root()
	require.NoError(t, err)
	assert.Equal(t, uint64(DW_TAG_compile_unit), root.Tag())
}
