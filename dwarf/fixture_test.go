package dwarf

import "github.com/lunixbochs/sdb/elf"

// encodeULEB128 and encodeSLEB128 are test-only encoders; production code
// only ever needs to decode these (Cursor.ULEB128/SLEB128).

func encodeULEB128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func encodeSLEB128(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func testElf() *elf.File { return new(elf.File) }

// elfAddr builds a FileAddr tagged with lt's owning ELF object, so
// address comparisons against decoded LineEntry.Address succeed.
func elfAddr(lt *LineTable, addr uint64) elf.FileAddr {
	return elf.FileAddr{Elf: lt.cu.Dwarf().Elf(), Addr: addr}
}

// newTestCU wraps raw compile-unit bytes (header + DIE tree) into a
// CompileUnit backed by a Data whose .debug_abbrev is abbrevSection.
func newTestCU(cuData, abbrevSection []byte) *CompileUnit {
	d := &Data{elf: testElf(), debugAbbrev: abbrevSection, abbrevTables: make(abbrevCache)}
	cu := &CompileUnit{parent: d, data: cuData, offset: 0, abbrevOffset: 0}
	d.compileUnits = []*CompileUnit{cu}
	return cu
}

// abbrevEntry describes one .debug_abbrev entry for buildAbbrevSection.
type abbrevEntry struct {
	code        uint64
	tag         uint64
	hasChildren bool
	specs       []AttrSpec
}

func buildAbbrevSection(entries ...abbrevEntry) []byte {
	var out []byte
	for _, e := range entries {
		out = append(out, encodeULEB128(e.code)...)
		out = append(out, encodeULEB128(e.tag)...)
		if e.hasChildren {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		for _, s := range e.specs {
			out = append(out, encodeULEB128(s.Attr)...)
			out = append(out, encodeULEB128(s.Form)...)
		}
		out = append(out, 0, 0) // attr spec terminator
	}
	out = append(out, 0) // table terminator
	return out
}
