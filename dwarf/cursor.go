package dwarf

import "encoding/binary"

// Cursor is a stateful reader over a byte span. It never copies the
// underlying slice; Position always points somewhere inside data (or one
// past its end, when Finished).
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor wraps data starting at offset 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Position returns the current byte offset within the wrapped span,
// suitable for storing as a DIE's attr_loc or the base of a nested
// Cursor.
func (c *Cursor) Position() int { return c.pos }

// Data returns the entire span the cursor was constructed over.
func (c *Cursor) Data() []byte { return c.data }

// Finished reports whether the cursor has consumed the whole span.
func (c *Cursor) Finished() bool { return c.pos >= len(c.data) }

// Skip advances the cursor by n bytes without reading anything.
func (c *Cursor) Skip(n int) { c.pos += n }

// SeekTo repositions the cursor to an absolute offset within its span.
func (c *Cursor) SeekTo(pos int) { c.pos = pos }

func (c *Cursor) U8() uint8 {
	v := c.data[c.pos]
	c.pos++
	return v
}

func (c *Cursor) S8() int8 { return int8(c.U8()) }

func (c *Cursor) U16() uint16 {
	v := binary.LittleEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v
}

func (c *Cursor) S16() int16 { return int16(c.U16()) }

func (c *Cursor) U32() uint32 {
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v
}

func (c *Cursor) S32() int32 { return int32(c.U32()) }

func (c *Cursor) U64() uint64 {
	v := binary.LittleEndian.Uint64(c.data[c.pos:])
	c.pos += 8
	return v
}

func (c *Cursor) S64() int64 { return int64(c.U64()) }

// String reads a NUL-terminated byte string and advances past the
// terminator. The result is a Go string, so its bytes are a copy of the
// underlying data, not a view into it.
func (c *Cursor) String() string {
	start := c.pos
	end := start
	for end < len(c.data) && c.data[end] != 0 {
		end++
	}
	c.pos = end + 1
	return string(c.data[start:end])
}

// ULEB128 decodes an unsigned little-endian base-128 varint: accumulate
// 7-bit groups, low group first, until a byte's high bit is clear.
func (c *Cursor) ULEB128() uint64 {
	var res uint64
	var shift uint
	for {
		b := c.U8()
		res |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	return res
}

// SLEB128 decodes a signed little-endian base-128 varint, sign-extending
// from the last group's bit 0x40 when there are unfilled high bits left.
func (c *Cursor) SLEB128() int64 {
	var res uint64
	var shift uint
	var b byte
	for {
		b = c.U8()
		res |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		res |= ^uint64(0) << shift
	}
	return int64(res)
}

// SkipForm advances the cursor by exactly the byte cost of the given
// DW_FORM_*, without materializing the value. This is what makes DIE
// parsing cheap and lets the engine tolerate attributes it never decodes
// as a typed value.
func (c *Cursor) SkipForm(form uint64) error {
	switch form {
	case DW_FORM_flag_present:
		// no data
	case DW_FORM_data1, DW_FORM_ref1, DW_FORM_flag:
		c.Skip(1)
	case DW_FORM_data2, DW_FORM_ref2:
		c.Skip(2)
	case DW_FORM_data4, DW_FORM_ref4, DW_FORM_ref_addr, DW_FORM_sec_offset, DW_FORM_strp:
		c.Skip(4)
	case DW_FORM_data8, DW_FORM_addr:
		c.Skip(8)
	case DW_FORM_sdata:
		c.SLEB128()
	case DW_FORM_udata, DW_FORM_ref_udata:
		c.ULEB128()
	case DW_FORM_block1:
		c.Skip(int(c.U8()))
	case DW_FORM_block2:
		c.Skip(int(c.U16()))
	case DW_FORM_block4:
		c.Skip(int(c.U32()))
	case DW_FORM_block, DW_FORM_exprloc:
		c.Skip(int(c.ULEB128()))
	case DW_FORM_string:
		_ = c.String()
	case DW_FORM_indirect:
		return c.SkipForm(c.ULEB128())
	default:
		return newErr(UnknownForm, "0x%x", form)
	}
	return nil
}
