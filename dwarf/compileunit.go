package dwarf

const cuHeaderSize = 11 // unit_length(4) + version(2) + debug_abbrev_offset(4) + address_size(1)

// CompileUnit owns a span into .debug_info covering exactly one compile
// unit (header + DIE tree) and its lazily-built line table.
type CompileUnit struct {
	parent       *Data
	data         []byte // this CU's span, header included
	offset       int    // absolute byte offset of data[0] within .debug_info
	abbrevOffset uint64

	lineTable     *LineTable
	lineTableDone bool
}

// Dwarf returns the engine this compile unit belongs to.
func (cu *CompileUnit) Dwarf() *Data { return cu.parent }

// Data returns this compile unit's raw span (header + DIE tree).
func (cu *CompileUnit) Data() []byte { return cu.data }

func (cu *CompileUnit) abbrevTable() (abbrevTable, error) {
	return cu.parent.getAbbrevTable(cu.abbrevOffset)
}

// Root parses and returns this compile unit's root DIE (its DW_TAG_compile_unit entry).
func (cu *CompileUnit) Root() (Die, error) {
	c := NewCursor(cu.data)
	c.SeekTo(cuHeaderSize)
	return parseDie(cu, c)
}

// LineTable returns this compile unit's line-number program, parsing it
// on first use. Returns (nil, nil) if the unit has no DW_AT_stmt_list.
func (cu *CompileUnit) LineTable() (*LineTable, error) {
	if cu.lineTableDone {
		return cu.lineTable, nil
	}
	lt, err := parseLineTable(cu)
	if err != nil {
		return nil, err
	}
	cu.lineTable = lt
	cu.lineTableDone = true
	return lt, nil
}

// parseCompileUnitHeader reads one CU header starting at c's current
// position and returns the CU (its span already sliced out of the whole
// section) along with the absolute offset just past it.
func parseCompileUnitHeader(d *Data, c *Cursor) (*CompileUnit, int, error) {
	start := c.Position()
	unitLength := c.U32()
	if unitLength == 0xffffffff {
		return nil, 0, newErr(UnsupportedDwarf, "DWARF64 is not supported")
	}
	version := c.U16()
	if version != 4 {
		return nil, 0, newErr(UnsupportedDwarf, "unsupported DWARF version %d", version)
	}
	abbrevOffset := c.U32()
	addressSize := c.U8()
	if addressSize != 8 {
		return nil, 0, newErr(UnsupportedDwarf, "unsupported address size %d", addressSize)
	}

	total := int(unitLength) + 4 // unit_length field itself is 4 bytes
	end := start + total
	if end > len(c.Data()) {
		return nil, 0, newErr(UnsupportedDwarf, "compile unit runs past end of .debug_info")
	}
	span := c.Data()[start:end]
	cu := &CompileUnit{parent: d, data: span, offset: start, abbrevOffset: uint64(abbrevOffset)}
	return cu, end, nil
}

// parseCompileUnits walks .debug_info from offset 0, yielding one
// CompileUnit per header found, until the section is exhausted.
func parseCompileUnits(d *Data) ([]*CompileUnit, error) {
	var units []*CompileUnit
	c := NewCursor(d.debugInfo)
	for !c.Finished() {
		cu, end, err := parseCompileUnitHeader(d, c)
		if err != nil {
			return nil, err
		}
		units = append(units, cu)
		c.SeekTo(end)
	}
	return units, nil
}
