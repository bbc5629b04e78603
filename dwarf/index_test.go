package dwarf

import (
	"testing"

	"github.com/lunixbochs/sdb/elf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndexAbbrev() []byte {
	return buildAbbrevSection(
		abbrevEntry{code: 1, tag: DW_TAG_compile_unit, hasChildren: true, specs: []AttrSpec{
			{DW_AT_low_pc, DW_FORM_addr}, {DW_AT_high_pc, DW_FORM_data8},
		}},
		abbrevEntry{code: 2, tag: DW_TAG_subprogram, hasChildren: true, specs: []AttrSpec{
			{DW_AT_name, DW_FORM_string}, {DW_AT_low_pc, DW_FORM_addr}, {DW_AT_high_pc, DW_FORM_data8},
		}},
		abbrevEntry{code: 3, tag: DW_TAG_inlined_subroutine, hasChildren: false, specs: []AttrSpec{
			{DW_AT_name, DW_FORM_string}, {DW_AT_low_pc, DW_FORM_addr}, {DW_AT_high_pc, DW_FORM_data8},
		}},
		abbrevEntry{code: 4, tag: DW_TAG_variable, hasChildren: false, specs: []AttrSpec{
			{DW_AT_name, DW_FORM_string},
		}},
	)
}

func buildIndexCU1() []byte {
	var buf []byte
	str := func(s string) { buf = append(buf, append([]byte(s), 0)...) }
	buf = append(buf, encodeULEB128(1)...)
	buf = append(buf, u64le(0x2000)...)
	buf = append(buf, u64le(0x200)...)

	buf = append(buf, encodeULEB128(2)...) // main
	str("main")
	buf = append(buf, u64le(0x2000)...)
	buf = append(buf, u64le(0x100)...)

	buf = append(buf, encodeULEB128(3)...) // inlined
	str("helper_inlined")
	buf = append(buf, u64le(0x2010)...)
	buf = append(buf, u64le(0x20)...)

	buf = append(buf, 0) // end main's children

	buf = append(buf, encodeULEB128(4)...) // global variable
	str("counter")

	buf = append(buf, 0) // end compile_unit's children
	return buf
}

func buildIndexCU2() []byte {
	var buf []byte
	str := func(s string) { buf = append(buf, append([]byte(s), 0)...) }
	buf = append(buf, encodeULEB128(1)...)
	buf = append(buf, u64le(0x3000)...)
	buf = append(buf, u64le(0x100)...)

	buf = append(buf, encodeULEB128(2)...) // helper
	str("helper")
	buf = append(buf, u64le(0x3000)...)
	buf = append(buf, u64le(0x10)...)
	buf = append(buf, 0) // end helper's (empty) children

	buf = append(buf, 0) // end compile_unit's children
	return buf
}

func buildIndexData(t *testing.T) *Data {
	t.Helper()
	abbrev := buildIndexAbbrev()
	ef := testElf()
	d := &Data{elf: ef, debugAbbrev: abbrev, abbrevTables: make(abbrevCache)}
	cu1 := &CompileUnit{parent: d, data: buildCUHeader(buildIndexCU1(), 0), offset: 0}
	cu2 := &CompileUnit{parent: d, data: buildCUHeader(buildIndexCU2(), 0), offset: 0}
	d.compileUnits = []*CompileUnit{cu1, cu2}
	return d
}

func TestFindFunctions(t *testing.T) {
	d := buildIndexData(t)
	dies, err := d.FindFunctions("helper")
	require.NoError(t, err)
	require.Len(t, dies, 1)
	name, _, err := dies[0].Name()
	require.NoError(t, err)
	assert.Equal(t, "helper", name)
}

func TestFindFunctionsReturnsInlinedSubroutines(t *testing.T) {
	d := buildIndexData(t)
	dies, err := d.FindFunctions("helper_inlined")
	require.NoError(t, err)
	require.Len(t, dies, 1)
	assert.Equal(t, uint64(DW_TAG_inlined_subroutine), dies[0].Tag())
}

func TestFunctionContainingAddress(t *testing.T) {
	d := buildIndexData(t)
	fn, ok, err := d.FunctionContainingAddress(elf.FileAddr{Elf: d.elf, Addr: 0x2050})
	require.NoError(t, err)
	require.True(t, ok)
	name, _, err := fn.Name()
	require.NoError(t, err)
	assert.Equal(t, "main", name)
}

func TestFindGlobalVariables(t *testing.T) {
	d := buildIndexData(t)
	dies, err := d.FindGlobalVariables("counter")
	require.NoError(t, err)
	require.Len(t, dies, 1)
	name, _, err := dies[0].Name()
	require.NoError(t, err)
	assert.Equal(t, "counter", name)
}

func TestInlineStackAtAddress(t *testing.T) {
	d := buildIndexData(t)
	stack, err := d.InlineStackAtAddress(elf.FileAddr{Elf: d.elf, Addr: 0x2015})
	require.NoError(t, err)
	require.Len(t, stack, 2)

	outerName, _, err := stack[0].Name()
	require.NoError(t, err)
	assert.Equal(t, "main", outerName)

	innerName, _, err := stack[1].Name()
	require.NoError(t, err)
	assert.Equal(t, "helper_inlined", innerName)
}
