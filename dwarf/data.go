// Package dwarf is a read-only decoder over an ELF object's DWARF v4
// debug sections. It answers the queries a source-level debugger needs:
// address <-> (file, line) translation, function lookup (including
// inlined frames), and typed-value rendering. It never mutates the
// object it decodes except to fill its own lazy caches (abbrev tables,
// per-CU line tables, the function index); it is otherwise a pure
// decoder and assumes single-threaded, synchronous use (spec.md §5).
package dwarf

import (
	"github.com/lunixbochs/sdb/elf"
	"github.com/pkg/errors"
)

// Data is the top-level DWARF engine for one ELF object.
type Data struct {
	elf *elf.File

	debugInfo   []byte
	debugAbbrev []byte
	debugStr    []byte
	debugRanges []byte
	debugLine   []byte

	abbrevTables abbrevCache
	compileUnits []*CompileUnit

	functionIndex functionIndex
}

// abbrevCache maps a .debug_abbrev offset to its parsed table. See
// getAbbrevTable in abbrev.go.
type abbrevCache = map[uint64]abbrevTable

// New parses every compile unit out of ef's .debug_info section. The
// returned Data borrows ef; ef must outlive it.
func New(ef *elf.File) (*Data, error) {
	debugInfo, _ := ef.GetSectionContents(".debug_info")
	debugAbbrev, _ := ef.GetSectionContents(".debug_abbrev")
	debugStr, _ := ef.GetSectionContents(".debug_str")
	debugRanges, _ := ef.GetSectionContents(".debug_ranges")
	debugLine, _ := ef.GetSectionContents(".debug_line")

	d := &Data{
		elf:          ef,
		debugInfo:    debugInfo,
		debugAbbrev:  debugAbbrev,
		debugStr:     debugStr,
		debugRanges:  debugRanges,
		debugLine:    debugLine,
		abbrevTables: make(abbrevCache),
	}
	cus, err := parseCompileUnits(d)
	if err != nil {
		return nil, errors.Wrap(err, "dwarf: parse compile units")
	}
	d.compileUnits = cus
	return d, nil
}

// Elf returns the ELF object this engine decodes.
func (d *Data) Elf() *elf.File { return d.elf }

// CompileUnits returns every compile unit found in .debug_info, in the
// order they appear there.
func (d *Data) CompileUnits() []*CompileUnit { return d.compileUnits }

// compileUnitContainingOffset finds the compile unit whose [offset,
// offset+len(data)) span contains a global .debug_info offset, as used by
// DW_FORM_ref_addr resolution.
func (d *Data) compileUnitContainingOffset(offset int) (*CompileUnit, error) {
	for _, cu := range d.compileUnits {
		if offset >= cu.offset && offset < cu.offset+len(cu.data) {
			return cu, nil
		}
	}
	return nil, newErr(BadForm, "ref_addr offset %d not in any compile unit", offset)
}

// CompileUnitContainingAddress returns the compile unit whose root DIE's
// address range contains addr, if any.
func (d *Data) CompileUnitContainingAddress(addr elf.FileAddr) (*CompileUnit, bool) {
	for _, cu := range d.compileUnits {
		root, err := cu.Root()
		if err != nil {
			continue
		}
		if root.ContainsAddress(addr) {
			return cu, true
		}
	}
	return nil, false
}
