package dwarf

import "github.com/lunixbochs/sdb/elf"

// Attr is a view over one attribute's encoded value: the offset within
// its compile unit's span, plus the form that says how to read it. It
// holds no decoded value; each As* method re-reads the bytes fresh, so an
// Attr is cheap to keep around after the DIE that produced it has moved
// on.
type Attr struct {
	cu   *CompileUnit
	name uint64
	form uint64
	loc  int
}

func (a Attr) Name() uint64 { return a.name }
func (a Attr) Form() uint64 { return a.form }

func (a Attr) cursor() *Cursor {
	c := NewCursor(a.cu.data)
	c.SeekTo(a.loc)
	return c
}

// AsAddress decodes a DW_FORM_addr value: an absolute address in the
// target's address space, tied to the owning ELF object.
func (a Attr) AsAddress() (elf.FileAddr, error) {
	if a.form != DW_FORM_addr {
		return elf.FileAddr{}, newErr(BadForm, "attribute 0x%x is not an address (form 0x%x)", a.name, a.form)
	}
	return elf.FileAddr{Elf: a.cu.Dwarf().Elf(), Addr: a.cursor().U64()}, nil
}

// AsSectionOffset decodes a DW_FORM_sec_offset value: an offset into some
// other debug section (.debug_ranges, .debug_line, ...), resolved by
// whichever attribute carries it.
func (a Attr) AsSectionOffset() (uint64, error) {
	if a.form != DW_FORM_sec_offset {
		return 0, newErr(BadForm, "attribute 0x%x is not a section offset (form 0x%x)", a.name, a.form)
	}
	return uint64(a.cursor().U32()), nil
}

// AsInt decodes a small integer value (data1/2/4/8, udata, or sdata; an
// sdata value is returned as its two's-complement bit pattern).
func (a Attr) AsInt() (uint64, error) {
	c := a.cursor()
	switch a.form {
	case DW_FORM_data1:
		return uint64(c.U8()), nil
	case DW_FORM_data2:
		return uint64(c.U16()), nil
	case DW_FORM_data4:
		return uint64(c.U32()), nil
	case DW_FORM_data8:
		return c.U64(), nil
	case DW_FORM_udata:
		return c.ULEB128(), nil
	case DW_FORM_sdata:
		return uint64(c.SLEB128()), nil
	default:
		return 0, newErr(BadForm, "attribute 0x%x is not an integer (form 0x%x)", a.name, a.form)
	}
}

// AsBlock decodes a length-prefixed byte block (block1/2/4/block/exprloc).
func (a Attr) AsBlock() ([]byte, error) {
	c := a.cursor()
	var n int
	switch a.form {
	case DW_FORM_block1:
		n = int(c.U8())
	case DW_FORM_block2:
		n = int(c.U16())
	case DW_FORM_block4:
		n = int(c.U32())
	case DW_FORM_block, DW_FORM_exprloc:
		n = int(c.ULEB128())
	default:
		return nil, newErr(BadForm, "attribute 0x%x is not a block (form 0x%x)", a.name, a.form)
	}
	start := c.Position()
	return c.Data()[start : start+n], nil
}

// AsReference decodes a reference to another DIE. ref1/2/4/8/ref_udata
// give an offset relative to the owning compile unit; ref_addr gives a
// global .debug_info offset, resolved by finding whichever compile unit
// contains it (spec.md §4.5).
func (a Attr) AsReference() (Die, error) {
	c := a.cursor()
	switch a.form {
	case DW_FORM_ref1:
		return parseDieAt(a.cu, int(c.U8()))
	case DW_FORM_ref2:
		return parseDieAt(a.cu, int(c.U16()))
	case DW_FORM_ref4:
		return parseDieAt(a.cu, int(c.U32()))
	case DW_FORM_ref8:
		return parseDieAt(a.cu, int(c.U64()))
	case DW_FORM_ref_udata:
		return parseDieAt(a.cu, int(c.ULEB128()))
	case DW_FORM_ref_addr:
		global := int(c.U32())
		cu, err := a.cu.Dwarf().compileUnitContainingOffset(global)
		if err != nil {
			return Die{}, err
		}
		return parseDieAt(cu, global-cu.offset)
	default:
		return Die{}, newErr(BadForm, "attribute 0x%x is not a reference (form 0x%x)", a.name, a.form)
	}
}

// AsString decodes an inline (DW_FORM_string) or shared (DW_FORM_strp,
// indexing into .debug_str) NUL-terminated string.
func (a Attr) AsString() (string, error) {
	switch a.form {
	case DW_FORM_string:
		return a.cursor().String(), nil
	case DW_FORM_strp:
		off := a.cursor().U32()
		section := a.cu.Dwarf().debugStr
		if int(off) > len(section) {
			return "", newErr(BadForm, "strp offset out of bounds")
		}
		sc := NewCursor(section)
		sc.SeekTo(int(off))
		return sc.String(), nil
	default:
		return "", newErr(BadForm, "attribute 0x%x is not a string (form 0x%x)", a.name, a.form)
	}
}

// AsRangeList decodes a DW_AT_ranges value into a RangeList, base-addressed
// from the owning compile unit's root DW_AT_low_pc (0 if absent).
func (a Attr) AsRangeList() (RangeList, error) {
	off, err := a.AsSectionOffset()
	if err != nil {
		return RangeList{}, err
	}
	section := a.cu.Dwarf().debugRanges
	if int(off) > len(section) {
		return RangeList{}, newErr(BadForm, "ranges offset out of bounds")
	}

	var base uint64
	root, err := a.cu.Root()
	if err == nil && root.Contains(DW_AT_low_pc) {
		lowAttr, err := root.At(DW_AT_low_pc)
		if err == nil {
			if lowAddr, err := lowAttr.AsAddress(); err == nil {
				base = lowAddr.Addr
			}
		}
	}
	return RangeList{cu: a.cu, data: section[off:], base: base}, nil
}
