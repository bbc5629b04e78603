package dwarf

// AttrSpec pairs an attribute name with the form its value is encoded in.
type AttrSpec struct {
	Attr uint64
	Form uint64
}

// Abbrev is one abbreviation-table entry: the DIE shape a given code
// expands to.
type Abbrev struct {
	Code        uint64
	Tag         uint64
	HasChildren bool
	AttrSpecs   []AttrSpec
}

// abbrevTable maps abbreviation code -> Abbrev, for one .debug_abbrev
// offset.
type abbrevTable map[uint64]*Abbrev

// parseAbbrevTable reads .debug_abbrev starting at offset until a
// terminating code of 0.
func parseAbbrevTable(section []byte, offset uint64) (abbrevTable, error) {
	c := NewCursor(section)
	c.SeekTo(int(offset))

	table := make(abbrevTable)
	for {
		code := c.ULEB128()
		if code == 0 {
			break
		}
		tag := c.ULEB128()
		hasChildren := c.U8() != 0

		var specs []AttrSpec
		for {
			attr := c.ULEB128()
			form := c.ULEB128()
			if attr == 0 && form == 0 {
				break
			}
			specs = append(specs, AttrSpec{Attr: attr, Form: form})
		}
		table[code] = &Abbrev{Code: code, Tag: tag, HasChildren: hasChildren, AttrSpecs: specs}
	}
	return table, nil
}

// getAbbrevTable returns the (possibly cached) abbrev table at offset in
// .debug_abbrev, parsing on first use. The cache never evicts during the
// Data object's lifetime.
func (d *Data) getAbbrevTable(offset uint64) (abbrevTable, error) {
	if t, ok := d.abbrevTables[offset]; ok {
		return t, nil
	}
	t, err := parseAbbrevTable(d.debugAbbrev, offset)
	if err != nil {
		return nil, err
	}
	d.abbrevTables[offset] = t
	return t, nil
}
