package dwarf

import "github.com/lunixbochs/sdb/elf"

// Die is one debugging-information entry. A Die whose Abbrev is nil is a
// null entry: the terminator of a sibling chain. Its Next still points
// past it, so an iterator can resume from there.
type Die struct {
	pos      int
	cu       *CompileUnit
	abbrev   *Abbrev
	attrLocs []int
	next     int
}

func (d Die) CU() *CompileUnit  { return d.cu }
func (d Die) Abbrev() *Abbrev   { return d.abbrev }
func (d Die) Position() int     { return d.pos }
func (d Die) NextPos() int      { return d.next }
func (d Die) IsNull() bool      { return d.abbrev == nil }
func (d Die) Tag() uint64 {
	if d.abbrev == nil {
		return 0
	}
	return d.abbrev.Tag
}

// Contains reports whether this DIE's abbreviation declares the given
// attribute.
func (d Die) Contains(attr uint64) bool {
	if d.abbrev == nil {
		return false
	}
	for _, s := range d.abbrev.AttrSpecs {
		if s.Attr == attr {
			return true
		}
	}
	return false
}

// At linear-scans the (small, cache-friendly) attribute spec list for
// attr and returns an Attr view over its encoded bytes. The form, not the
// attribute name, determines how those bytes are decoded.
func (d Die) At(attr uint64) (Attr, error) {
	if d.abbrev != nil {
		for i, s := range d.abbrev.AttrSpecs {
			if s.Attr == attr {
				return Attr{cu: d.cu, name: s.Attr, form: s.Form, loc: d.attrLocs[i]}, nil
			}
		}
	}
	return Attr{}, newErr(MissingAttribute, "0x%x", attr)
}

// parseDieAt parses one DIE at an absolute offset within cu's span.
func parseDieAt(cu *CompileUnit, pos int) (Die, error) {
	c := NewCursor(cu.data)
	c.SeekTo(pos)
	return parseDie(cu, c)
}

// parseDie reads one DIE starting at c's current position: a ULEB128
// abbrev code (0 = null entry), then one value per the abbrev's attr
// specs, skipped rather than decoded (decoding happens lazily via At).
func parseDie(cu *CompileUnit, c *Cursor) (Die, error) {
	pos := c.Position()
	code := c.ULEB128()
	if code == 0 {
		return Die{cu: cu, pos: pos, next: c.Position()}, nil
	}

	table, err := cu.abbrevTable()
	if err != nil {
		return Die{}, err
	}
	ab, ok := table[code]
	if !ok {
		return Die{}, newErr(UnsupportedDwarf, "unknown abbreviation code %d", code)
	}

	attrLocs := make([]int, len(ab.AttrSpecs))
	for i, spec := range ab.AttrSpecs {
		attrLocs[i] = c.Position()
		if err := c.SkipForm(spec.Form); err != nil {
			return Die{}, err
		}
	}
	return Die{pos: pos, cu: cu, abbrev: ab, attrLocs: attrLocs, next: c.Position()}, nil
}

// nextSibling computes the DIE that follows d in a depth-first sibling
// walk: jump via DW_AT_sibling when present, otherwise parse straight
// after d if it has no children, otherwise skip its entire subtree first.
func nextSibling(d Die) (Die, error) {
	if d.Contains(DW_AT_sibling) {
		a, err := d.At(DW_AT_sibling)
		if err != nil {
			return Die{}, err
		}
		return a.AsReference()
	}
	if !d.abbrev.HasChildren {
		return parseDieAt(d.cu, d.next)
	}
	term, err := subtreeTerminator(d)
	if err != nil {
		return Die{}, err
	}
	return parseDieAt(d.cu, term.next)
}

// subtreeTerminator walks parent's children (recursively, via
// nextSibling) until it reaches the null DIE that closes the subtree.
func subtreeTerminator(parent Die) (Die, error) {
	cur, err := parseDieAt(parent.cu, parent.next)
	if err != nil {
		return Die{}, err
	}
	for !cur.IsNull() {
		cur, err = nextSibling(cur)
		if err != nil {
			return Die{}, err
		}
	}
	return cur, nil
}

// ChildIter is a single-pass forward iterator over a DIE's direct
// children. Not restartable; construct a fresh one from the parent DIE
// to iterate again.
type ChildIter struct {
	parent  Die
	cur     *Die
	started bool
	err     error
}

// Children returns an iterator over d's direct children. If d has no
// children (has_children == false, or d is null), the iterator yields
// nothing.
func (d Die) Children() *ChildIter { return &ChildIter{parent: d} }

// Next advances the iterator and reports whether a child was produced.
func (it *ChildIter) Next() (Die, bool, error) {
	if it.err != nil {
		return Die{}, false, it.err
	}
	var d Die
	var err error
	switch {
	case !it.started:
		it.started = true
		if it.parent.abbrev == nil || !it.parent.abbrev.HasChildren {
			return Die{}, false, nil
		}
		d, err = parseDieAt(it.parent.cu, it.parent.next)
	case it.cur == nil || it.cur.IsNull():
		return Die{}, false, nil
	default:
		d, err = nextSibling(*it.cur)
	}
	if err != nil {
		it.err = err
		return Die{}, false, err
	}
	it.cur = &d
	if d.IsNull() {
		return Die{}, false, nil
	}
	return d, true, nil
}

// Name resolves a DIE's name, following DW_AT_specification then
// DW_AT_abstract_origin when DW_AT_name is absent (spec.md §4.9): common
// for out-of-line member function definitions and inlined call sites.
func (d Die) Name() (string, bool, error) {
	if d.Contains(DW_AT_name) {
		a, err := d.At(DW_AT_name)
		if err != nil {
			return "", false, err
		}
		s, err := a.AsString()
		if err != nil {
			return "", false, err
		}
		return s, true, nil
	}
	if d.Contains(DW_AT_specification) {
		a, err := d.At(DW_AT_specification)
		if err != nil {
			return "", false, err
		}
		ref, err := a.AsReference()
		if err != nil {
			return "", false, err
		}
		return ref.Name()
	}
	if d.Contains(DW_AT_abstract_origin) {
		a, err := d.At(DW_AT_abstract_origin)
		if err != nil {
			return "", false, err
		}
		ref, err := a.AsReference()
		if err != nil {
			return "", false, err
		}
		return ref.Name()
	}
	return "", false, nil
}

func (d Die) rangeList() (RangeList, error) {
	a, err := d.At(DW_AT_ranges)
	if err != nil {
		return RangeList{}, err
	}
	return a.AsRangeList()
}

// LowPC returns the DIE's lowest covered address: the first range-list
// entry's low bound if DW_AT_ranges is present, else DW_AT_low_pc.
func (d Die) LowPC() (elf.FileAddr, error) {
	if d.Contains(DW_AT_ranges) {
		rl, err := d.rangeList()
		if err != nil {
			return elf.FileAddr{}, err
		}
		it := rl.Iterator()
		e, ok, err := it.Next()
		if err != nil {
			return elf.FileAddr{}, err
		}
		if !ok {
			return elf.FileAddr{}, newErr(NoLowPC, "empty range list")
		}
		return e.Low, nil
	}
	if d.Contains(DW_AT_low_pc) {
		a, err := d.At(DW_AT_low_pc)
		if err != nil {
			return elf.FileAddr{}, err
		}
		return a.AsAddress()
	}
	return elf.FileAddr{}, newErr(NoLowPC, "die has no low pc")
}

// HighPC returns the DIE's address range upper bound (exclusive): the
// last range-list entry's high bound if DW_AT_ranges is present; else
// DW_AT_high_pc, which is either an absolute address (DW_FORM_addr) or an
// offset added to LowPC, depending on its form.
func (d Die) HighPC() (elf.FileAddr, error) {
	if d.Contains(DW_AT_ranges) {
		rl, err := d.rangeList()
		if err != nil {
			return elf.FileAddr{}, err
		}
		it := rl.Iterator()
		var last elf.FileAddr
		found := false
		for {
			e, ok, err := it.Next()
			if err != nil {
				return elf.FileAddr{}, err
			}
			if !ok {
				break
			}
			last, found = e.High, true
		}
		if !found {
			return elf.FileAddr{}, newErr(NoHighPC, "empty range list")
		}
		return last, nil
	}
	if d.Contains(DW_AT_high_pc) {
		a, err := d.At(DW_AT_high_pc)
		if err != nil {
			return elf.FileAddr{}, err
		}
		if a.Form() == DW_FORM_addr {
			return a.AsAddress()
		}
		off, err := a.AsInt()
		if err != nil {
			return elf.FileAddr{}, err
		}
		low, err := d.LowPC()
		if err != nil {
			return elf.FileAddr{}, err
		}
		return elf.FileAddr{Elf: low.Elf, Addr: low.Addr + off}, nil
	}
	return elf.FileAddr{}, newErr(NoHighPC, "die has no high pc")
}

// ContainsAddress reports whether addr, which must belong to this DIE's
// ELF object, falls within the DIE's address coverage.
func (d Die) ContainsAddress(addr elf.FileAddr) bool {
	if addr.IsNull() || addr.Elf != d.cu.Dwarf().Elf() {
		return false
	}
	if d.Contains(DW_AT_ranges) {
		rl, err := d.rangeList()
		if err != nil {
			return false
		}
		ok, err := rl.Contains(addr)
		return err == nil && ok
	}
	if d.Contains(DW_AT_low_pc) {
		lo, err := d.LowPC()
		if err != nil {
			return false
		}
		hi, err := d.HighPC()
		if err != nil {
			return false
		}
		return lo.Addr <= addr.Addr && hi.Addr > addr.Addr
	}
	return false
}

// DeclFile returns the source file this DIE was declared in:
// DW_AT_call_file for inlined_subroutine DIEs, DW_AT_decl_file otherwise,
// resolved against the owning compile unit's line table.
func (d Die) DeclFile() (*LineTableFile, error) {
	attrName := uint64(DW_AT_decl_file)
	if d.Tag() == DW_TAG_inlined_subroutine {
		attrName = DW_AT_call_file
	}
	a, err := d.At(attrName)
	if err != nil {
		return nil, err
	}
	idx, err := a.AsInt()
	if err != nil {
		return nil, err
	}
	lt, err := d.cu.LineTable()
	if err != nil {
		return nil, err
	}
	if lt == nil || idx < 1 || int(idx) > len(lt.fileNames) {
		return nil, newErr(MissingAttribute, "file index %d out of range", idx)
	}
	return &lt.fileNames[idx-1], nil
}

// DeclLine returns the source line this DIE was declared at, mirroring
// DeclFile's inlined_subroutine special case.
func (d Die) DeclLine() (uint64, error) {
	attrName := uint64(DW_AT_decl_line)
	if d.Tag() == DW_TAG_inlined_subroutine {
		attrName = DW_AT_call_line
	}
	a, err := d.At(attrName)
	if err != nil {
		return 0, err
	}
	return a.AsInt()
}
