package dwarf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTypeAbbrev() []byte {
	return buildAbbrevSection(
		abbrevEntry{code: 1, tag: DW_TAG_base_type, hasChildren: false, specs: []AttrSpec{
			{DW_AT_byte_size, DW_FORM_data1}, {DW_AT_encoding, DW_FORM_data1},
		}},
		abbrevEntry{code: 2, tag: DW_TAG_pointer_type, hasChildren: false, specs: []AttrSpec{{DW_AT_type, DW_FORM_ref4}}},
		abbrevEntry{code: 3, tag: DW_TAG_array_type, hasChildren: true, specs: []AttrSpec{{DW_AT_type, DW_FORM_ref4}}},
		abbrevEntry{code: 4, tag: DW_TAG_subrange_type, hasChildren: false, specs: []AttrSpec{{DW_AT_upper_bound, DW_FORM_data1}}},
		abbrevEntry{code: 5, tag: DW_TAG_ptr_to_member_type, hasChildren: false, specs: []AttrSpec{{DW_AT_type, DW_FORM_ref4}}},
		abbrevEntry{code: 6, tag: DW_TAG_pointer_type, hasChildren: false, specs: []AttrSpec{{DW_AT_encoding, DW_FORM_data1}}},
		abbrevEntry{code: 7, tag: DW_TAG_typedef, hasChildren: false, specs: []AttrSpec{{DW_AT_type, DW_FORM_ref4}}},
	)
}

func ref4At(offset int) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(offset))
	return b
}

func TestTypeByteSizeBaseType(t *testing.T) {
	data := append(encodeULEB128(1), 4, DW_ATE_signed)
	cu := newTestCU(data, buildTypeAbbrev())
	d, err := parseDieAt(cu, 0)
	require.NoError(t, err)
	size, err := (Type{Die: d}).ByteSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), size)
}

func TestTypeIsCharType(t *testing.T) {
	data := append(encodeULEB128(1), 1, DW_ATE_signed_char)
	cu := newTestCU(data, buildTypeAbbrev())
	d, err := parseDieAt(cu, 0)
	require.NoError(t, err)
	isChar, err := (Type{Die: d}).IsCharType()
	require.NoError(t, err)
	assert.True(t, isChar)
}

func TestTypeIsCharTypeFalseForInt(t *testing.T) {
	data := append(encodeULEB128(1), 4, DW_ATE_signed)
	cu := newTestCU(data, buildTypeAbbrev())
	d, err := parseDieAt(cu, 0)
	require.NoError(t, err)
	isChar, err := (Type{Die: d}).IsCharType()
	require.NoError(t, err)
	assert.False(t, isChar)
}

func TestTypePointerByteSize(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeULEB128(1)...) // base_type at offset 0
	buf = append(buf, 4, DW_ATE_signed)
	ptrOffset := len(buf)
	buf = append(buf, encodeULEB128(2)...) // pointer_type
	buf = append(buf, ref4At(0)...)

	cu := newTestCU(buf, buildTypeAbbrev())
	d, err := parseDieAt(cu, ptrOffset)
	require.NoError(t, err)
	size, err := (Type{Die: d}).ByteSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), size)
}

func TestTypePtrToDataMemberByteSize(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeULEB128(1)...) // base_type (int) at offset 0
	buf = append(buf, 4, DW_ATE_signed)
	ptrOffset := len(buf)
	buf = append(buf, encodeULEB128(5)...) // ptr_to_member_type -> base_type
	buf = append(buf, ref4At(0)...)

	cu := newTestCU(buf, buildTypeAbbrev())
	d, err := parseDieAt(cu, ptrOffset)
	require.NoError(t, err)
	size, err := (Type{Die: d}).ByteSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), size)
}

func TestTypePtrToMemberFunctionByteSize(t *testing.T) {
	var buf []byte
	subrangeOffset := len(buf)
	buf = append(buf, encodeULEB128(4)...) // subrange_type at offset 0
	buf = append(buf, 0)
	ptrOffset := len(buf)
	buf = append(buf, encodeULEB128(5)...) // ptr_to_member_type -> subrange_type
	buf = append(buf, ref4At(subrangeOffset)...)

	cu := newTestCU(buf, buildTypeAbbrev())
	d, err := parseDieAt(cu, ptrOffset)
	require.NoError(t, err)
	size, err := (Type{Die: d}).ByteSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(16), size)
}

func TestTypeIsCharTypeUnsignedCharOnNonBaseType(t *testing.T) {
	var buf []byte
	ptrOffset := len(buf)
	buf = append(buf, encodeULEB128(6)...) // pointer_type carrying an encoding, atypically
	buf = append(buf, DW_ATE_unsigned_char)
	typedefOffset := len(buf)
	buf = append(buf, encodeULEB128(7)...) // typedef -> pointer_type
	buf = append(buf, ref4At(ptrOffset)...)

	cu := newTestCU(buf, buildTypeAbbrev())
	d, err := parseDieAt(cu, typedefOffset)
	require.NoError(t, err)
	isChar, err := (Type{Die: d}).IsCharType()
	require.NoError(t, err)
	assert.True(t, isChar, "unsigned_char encoding reads true regardless of the underlying tag")
}

func TestTypeArrayByteSize(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeULEB128(1)...) // base_type (int, size 4) at offset 0
	buf = append(buf, 4, DW_ATE_signed)
	arrOffset := len(buf)
	buf = append(buf, encodeULEB128(3)...) // array_type
	buf = append(buf, ref4At(0)...)
	buf = append(buf, encodeULEB128(4)...) // subrange_type, upper_bound=9 -> count 10
	buf = append(buf, 9)
	buf = append(buf, 0) // end array's children

	cu := newTestCU(buf, buildTypeAbbrev())
	d, err := parseDieAt(cu, arrOffset)
	require.NoError(t, err)
	size, err := (Type{Die: d}).ByteSize()
	require.NoError(t, err)
	assert.Equal(t, uint64(40), size) // 4 bytes * 10 elements
}
