package dwarf

// Type wraps a type-describing DIE (base_type, pointer_type, array_type,
// structure/union/class_type, enumeration_type, typedef, const/volatile
// qualifiers, ...) and answers the questions a value formatter needs
// without the caller having to know DWARF's qualifier-wrapping rules.
type Type struct {
	Die Die
}

// stripTags walks DW_AT_type links, unwrapping DIEs whose tag is in tags,
// until it reaches one that isn't, or one with no DW_AT_type at all.
func stripTags(die Die, tags map[uint64]bool) (Die, error) {
	cur := die
	for tags[cur.Tag()] {
		if !cur.Contains(DW_AT_type) {
			return cur, nil
		}
		a, err := cur.At(DW_AT_type)
		if err != nil {
			return Die{}, err
		}
		next, err := a.AsReference()
		if err != nil {
			return Die{}, err
		}
		cur = next
	}
	return cur, nil
}

var cvTypedefTags = map[uint64]bool{DW_TAG_const_type: true, DW_TAG_volatile_type: true, DW_TAG_typedef: true}
var refTags = map[uint64]bool{DW_TAG_reference_type: true, DW_TAG_rvalue_reference_type: true}

// StripCVTypedef strips const, volatile, and typedef wrappers, exposing
// the underlying structural type.
func (t Type) StripCVTypedef() (Type, error) {
	d, err := stripTags(t.Die, cvTypedefTags)
	return Type{Die: d}, err
}

// StripCVRefTypedef additionally strips reference wrappers, on top of
// what StripCVTypedef strips, repeating until a fixed point (a reference
// to a typedef to a const to a reference, and so on, all collapse).
func (t Type) StripCVRefTypedef() (Type, error) {
	cur := t.Die
	for {
		next, err := stripTags(cur, cvTypedefTags)
		if err != nil {
			return Type{}, err
		}
		if refTags[next.Tag()] {
			next, err = stripTags(next, refTags)
			if err != nil {
				return Type{}, err
			}
		}
		if next.Position() == cur.Position() {
			return Type{Die: next}, nil
		}
		cur = next
	}
}

// StripAll strips every qualifier this engine understands (const,
// volatile, typedef, reference) down to the bare structural type.
func (t Type) StripAll() (Type, error) {
	return t.StripCVRefTypedef()
}

// ByteSize returns the type's size in bytes, following DW_AT_byte_size
// when present, or computing it structurally for pointers, arrays, and
// qualifier wrappers that don't carry their own size.
func (t Type) ByteSize() (uint64, error) {
	stripped, err := t.StripCVTypedef()
	if err != nil {
		return 0, err
	}
	d := stripped.Die
	if d.Contains(DW_AT_byte_size) {
		a, err := d.At(DW_AT_byte_size)
		if err != nil {
			return 0, err
		}
		return a.AsInt()
	}
	switch d.Tag() {
	case DW_TAG_pointer_type, DW_TAG_reference_type, DW_TAG_rvalue_reference_type:
		return 8, nil
	case DW_TAG_ptr_to_member_type:
		return ptrToMemberByteSize(d)
	case DW_TAG_array_type:
		return arrayByteSize(d)
	default:
		return 0, newErr(UnsupportedType, "cannot compute byte size for tag 0x%x", d.Tag())
	}
}

// ptrToMemberByteSize is 16 for a pointer-to-member-function (its DW_AT_type
// points at a subrange_type describing the possible vtable-index/this-adjustment
// layouts), 8 for a pointer-to-data-member.
func ptrToMemberByteSize(d Die) (uint64, error) {
	if !d.Contains(DW_AT_type) {
		return 0, newErr(UnsupportedType, "ptr_to_member_type missing DW_AT_type")
	}
	a, err := d.At(DW_AT_type)
	if err != nil {
		return 0, err
	}
	memberDie, err := a.AsReference()
	if err != nil {
		return 0, err
	}
	if memberDie.Tag() == DW_TAG_subrange_type {
		return 16, nil
	}
	return 8, nil
}

func arrayByteSize(d Die) (uint64, error) {
	if !d.Contains(DW_AT_type) {
		return 0, newErr(UnsupportedType, "array type missing element type")
	}
	elemAttr, err := d.At(DW_AT_type)
	if err != nil {
		return 0, err
	}
	elemDie, err := elemAttr.AsReference()
	if err != nil {
		return 0, err
	}
	elemSize, err := (Type{Die: elemDie}).ByteSize()
	if err != nil {
		return 0, err
	}
	total := elemSize
	children := d.Children()
	any := false
	for {
		child, ok, err := children.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		if child.Tag() != DW_TAG_subrange_type {
			continue
		}
		count, err := subrangeCount(child)
		if err != nil {
			return 0, err
		}
		total *= count
		any = true
	}
	if !any {
		return 0, newErr(UnsupportedType, "array type has no subranges")
	}
	return total, nil
}

func subrangeCount(d Die) (uint64, error) {
	if d.Contains(DW_AT_count) {
		a, err := d.At(DW_AT_count)
		if err != nil {
			return 0, err
		}
		return a.AsInt()
	}
	if d.Contains(DW_AT_upper_bound) {
		a, err := d.At(DW_AT_upper_bound)
		if err != nil {
			return 0, err
		}
		ub, err := a.AsInt()
		if err != nil {
			return 0, err
		}
		return ub + 1, nil
	}
	return 0, newErr(UnsupportedType, "subrange has neither count nor upper_bound")
}

// IsCharType reports whether the (cv/typedef-stripped) type is one of the
// two C character types. Plain "char" varies in signedness by platform
// ABI, which is why the encoding, not just the name, is the test.
//
// This preserves the original implementation's operator precedence
// literally: tag==base_type && encoding==signed_char, OR
// encoding==unsigned_char regardless of tag. An unsigned_char encoding on
// a non-base_type DIE therefore still reads true.
func (t Type) IsCharType() (bool, error) {
	stripped, err := t.StripCVTypedef()
	if err != nil {
		return false, err
	}
	d := stripped.Die
	if !d.Contains(DW_AT_encoding) {
		return false, nil
	}
	a, err := d.At(DW_AT_encoding)
	if err != nil {
		return false, err
	}
	enc, err := a.AsInt()
	if err != nil {
		return false, err
	}
	return (d.Tag() == DW_TAG_base_type && enc == DW_ATE_signed_char) || enc == DW_ATE_unsigned_char, nil
}
