package dwarf

import (
	"testing"

	"github.com/lunixbochs/sdb/elf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMem struct {
	strings map[elf.VirtAddr]string
}

func (m fakeMem) ReadMemory(addr elf.VirtAddr, size uint64) ([]byte, error) {
	return make([]byte, size), nil
}

func (m fakeMem) ReadCString(addr elf.VirtAddr, max int) (string, error) {
	return m.strings[addr], nil
}

func TestVisualizeBaseTypeSignedInt(t *testing.T) {
	data := append(encodeULEB128(1), 4, DW_ATE_signed)
	cu := newTestCU(data, buildTypeAbbrev())
	d, err := parseDieAt(cu, 0)
	require.NoError(t, err)

	td := TypedData{Type: Type{Die: d}, Bytes: []byte{0x2A, 0x00, 0x00, 0x00}}
	s, err := td.Visualize(fakeMem{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "42", s)
}

func TestVisualizeBaseTypeBoolean(t *testing.T) {
	data := append(encodeULEB128(1), 1, DW_ATE_boolean)
	cu := newTestCU(data, buildTypeAbbrev())
	d, err := parseDieAt(cu, 0)
	require.NoError(t, err)

	td := TypedData{Type: Type{Die: d}, Bytes: []byte{1}}
	s, err := td.Visualize(fakeMem{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "true", s)
}

func TestVisualizeCharPointerPeeksString(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeULEB128(1)...) // char base type at offset 0
	buf = append(buf, 1, DW_ATE_signed_char)
	ptrOffset := len(buf)
	buf = append(buf, encodeULEB128(2)...) // pointer_type -> char
	buf = append(buf, ref4At(0)...)

	cu := newTestCU(buf, buildTypeAbbrev())
	ptrDie, err := parseDieAt(cu, ptrOffset)
	require.NoError(t, err)

	ptrVal := elf.VirtAddr(0x7fff0000)
	bytes := make([]byte, 8)
	for i := 0; i < 8; i++ {
		bytes[i] = byte(ptrVal >> (8 * uint(i)))
	}
	mem := fakeMem{strings: map[elf.VirtAddr]string{ptrVal: "hello"}}

	td := TypedData{Type: Type{Die: ptrDie}, Bytes: bytes}
	s, err := td.Visualize(mem, 0)
	require.NoError(t, err)
	assert.Contains(t, s, "hello")
}

func TestVisualizePtrToMemberType(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeULEB128(1)...) // int base type at offset 0
	buf = append(buf, 4, DW_ATE_signed)
	ptmOffset := len(buf)
	buf = append(buf, encodeULEB128(5)...) // ptr_to_member_type -> int
	buf = append(buf, ref4At(0)...)

	cu := newTestCU(buf, buildTypeAbbrev())
	ptmDie, err := parseDieAt(cu, ptmOffset)
	require.NoError(t, err)

	td := TypedData{Type: Type{Die: ptmDie}, Bytes: []byte{0x08, 0, 0, 0, 0, 0, 0, 0}}
	s, err := td.Visualize(fakeMem{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "0x8", s)
}

func TestVisualizeBaseTypeUnhandledEncodingFails(t *testing.T) {
	data := append(encodeULEB128(1), 4, DW_ATE_UTF)
	cu := newTestCU(data, buildTypeAbbrev())
	d, err := parseDieAt(cu, 0)
	require.NoError(t, err)

	td := TypedData{Type: Type{Die: d}, Bytes: []byte{0, 0, 0, 0}}
	_, err = td.Visualize(fakeMem{}, 0)
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, UnsupportedType, derr.Kind)
}

func buildClassAbbrev() []byte {
	return buildAbbrevSection(
		abbrevEntry{code: 1, tag: DW_TAG_base_type, hasChildren: false, specs: []AttrSpec{
			{DW_AT_byte_size, DW_FORM_data1}, {DW_AT_encoding, DW_FORM_data1},
		}},
		abbrevEntry{code: 2, tag: DW_TAG_structure_type, hasChildren: true, specs: nil},
		abbrevEntry{code: 3, tag: DW_TAG_member, hasChildren: false, specs: []AttrSpec{
			{DW_AT_name, DW_FORM_string}, {DW_AT_type, DW_FORM_ref4}, {DW_AT_data_member_location, DW_FORM_data1},
		}},
		abbrevEntry{code: 4, tag: DW_TAG_member, hasChildren: false, specs: []AttrSpec{
			{DW_AT_name, DW_FORM_string}, {DW_AT_type, DW_FORM_ref4},
			{DW_AT_bit_size, DW_FORM_data1}, {DW_AT_data_bit_offset, DW_FORM_data1},
		}},
	)
}

func strField(s string) []byte { return append([]byte(s), 0) }

func TestVisualizeClassTypeIsTabIndentedMultiline(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeULEB128(1)...) // int base type at offset 0
	buf = append(buf, 4, DW_ATE_signed)
	structOffset := len(buf)
	buf = append(buf, encodeULEB128(2)...) // structure_type
	buf = append(buf, encodeULEB128(3)...) // member "a"
	buf = append(buf, strField("a")...)
	buf = append(buf, ref4At(0)...)
	buf = append(buf, 0) // data_member_location = 0
	buf = append(buf, encodeULEB128(3)...) // member "b"
	buf = append(buf, strField("b")...)
	buf = append(buf, ref4At(0)...)
	buf = append(buf, 4) // data_member_location = 4
	buf = append(buf, 0) // end struct's children

	cu := newTestCU(buf, buildClassAbbrev())
	structDie, err := parseDieAt(cu, structOffset)
	require.NoError(t, err)

	td := TypedData{Type: Type{Die: structDie}, Bytes: []byte{1, 0, 0, 0, 2, 0, 0, 0}}
	s, err := td.Visualize(fakeMem{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "{\n\ta: 1\n\tb: 2\n}", s)
}

// TestVisualizeClassTypeBitfieldBeyondFirstStorageWord exercises a
// bitfield whose DW_AT_data_bit_offset (69) places it past the first 8
// bytes of the struct with no DW_AT_data_member_location of its own;
// byte offset must come from bit_offset/8, not stay 0.
func TestVisualizeClassTypeBitfieldBeyondFirstStorageWord(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeULEB128(1)...) // int base type at offset 0
	buf = append(buf, 4, DW_ATE_signed)
	structOffset := len(buf)
	buf = append(buf, encodeULEB128(2)...) // structure_type
	buf = append(buf, encodeULEB128(3)...) // member "a"
	buf = append(buf, strField("a")...)
	buf = append(buf, ref4At(0)...)
	buf = append(buf, 0) // data_member_location = 0
	buf = append(buf, encodeULEB128(4)...) // member "flag", bitfield
	buf = append(buf, strField("flag")...)
	buf = append(buf, ref4At(0)...)
	buf = append(buf, 3)  // bit_size = 3
	buf = append(buf, 69) // data_bit_offset = 69 -> byte 8, bit 5
	buf = append(buf, 0)  // end struct's children

	cu := newTestCU(buf, buildClassAbbrev())
	structDie, err := parseDieAt(cu, structOffset)
	require.NoError(t, err)

	bytes := make([]byte, 12)
	bytes[0] = 1
	bytes[8] = 0xE0 // bits 111 00000

	td := TypedData{Type: Type{Die: structDie}, Bytes: bytes}
	s, err := td.Visualize(fakeMem{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "{\n\ta: 1\n\tflag: 7\n}", s)
}

func TestVisualizeArrayType(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeULEB128(1)...) // int base type, size 4
	buf = append(buf, 4, DW_ATE_signed)
	arrOffset := len(buf)
	buf = append(buf, encodeULEB128(3)...) // array_type
	buf = append(buf, ref4At(0)...)
	buf = append(buf, encodeULEB128(4)...) // subrange, upper_bound=1 -> count 2
	buf = append(buf, 1)
	buf = append(buf, 0)

	cu := newTestCU(buf, buildTypeAbbrev())
	arrDie, err := parseDieAt(cu, arrOffset)
	require.NoError(t, err)

	td := TypedData{Type: Type{Die: arrDie}, Bytes: []byte{1, 0, 0, 0, 2, 0, 0, 0}}
	s, err := td.Visualize(fakeMem{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "[1, 2]", s)
}
