package dwarf

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/lunixbochs/sdb/elf"
	"github.com/pkg/errors"
)

// MemReader reads bytes out of a running (or core-dumped) process's
// address space, addressed by runtime virtual address. process.Process
// implements this; tests can fake it over a plain []byte.
type MemReader interface {
	ReadMemory(addr elf.VirtAddr, size uint64) ([]byte, error)
	ReadCString(addr elf.VirtAddr, max int) (string, error)
}

// TypedData pairs a type with the raw bytes backing one instance of it,
// read from a target process.
type TypedData struct {
	Type    Type
	Bytes   []byte
	Address elf.VirtAddr
}

// ReadTypedData reads sizeof(t) bytes at addr and wraps them with t for
// later formatting.
func ReadTypedData(t Type, mem MemReader, addr elf.VirtAddr) (TypedData, error) {
	size, err := t.ByteSize()
	if err != nil {
		return TypedData{}, err
	}
	bytes, err := mem.ReadMemory(addr, size)
	if err != nil {
		return TypedData{}, errors.Wrap(err, "dwarf: read typed data")
	}
	return TypedData{Type: t, Bytes: bytes, Address: addr}, nil
}

// Visualize renders the value as a debugger would print it: numeric
// literals for base types, hex plus a peeked string for char pointers,
// bracketed lists for arrays, and tab-indented, newline-terminated field
// lists for aggregates. depth is the current nesting depth, used to
// indent aggregate members and their closing brace; callers outside this
// package always start at depth 0.
func (td TypedData) Visualize(mem MemReader, depth int) (string, error) {
	stripped, err := td.Type.StripAll()
	if err != nil {
		return "", err
	}
	switch stripped.Die.Tag() {
	case DW_TAG_base_type:
		return visualizeBaseType(stripped.Die, td.Bytes)
	case DW_TAG_pointer_type:
		return visualizePointerType(stripped.Die, td.Bytes, mem)
	case DW_TAG_array_type:
		return visualizeArrayType(stripped.Die, td.Bytes, td.Address, mem)
	case DW_TAG_structure_type, DW_TAG_union_type, DW_TAG_class_type:
		return visualizeClassType(stripped.Die, td.Bytes, td.Address, depth, mem)
	case DW_TAG_enumeration_type:
		return visualizeEnumType(stripped.Die, td.Bytes)
	case DW_TAG_ptr_to_member_type:
		return visualizePtrToMemberType(td.Bytes)
	default:
		return "", newErr(UnsupportedType, "cannot visualize tag 0x%x", stripped.Die.Tag())
	}
}

func visualizeBaseType(d Die, bytes []byte) (string, error) {
	if !d.Contains(DW_AT_encoding) {
		return "", newErr(UnsupportedType, "base type missing encoding")
	}
	a, err := d.At(DW_AT_encoding)
	if err != nil {
		return "", err
	}
	enc, err := a.AsInt()
	if err != nil {
		return "", err
	}

	switch enc {
	case DW_ATE_boolean:
		return fmt.Sprintf("%t", bytes[0] != 0), nil
	case DW_ATE_float:
		switch len(bytes) {
		case 4:
			bits := binary.LittleEndian.Uint32(bytes)
			return fmt.Sprintf("%g", math.Float32frombits(bits)), nil
		case 8:
			bits := binary.LittleEndian.Uint64(bytes)
			return fmt.Sprintf("%g", math.Float64frombits(bits)), nil
		default:
			return "", newErr(UnsupportedType, "unsupported float size %d", len(bytes))
		}
	case DW_ATE_signed_char, DW_ATE_signed:
		return fmt.Sprintf("%d", signExtend(bytes)), nil
	case DW_ATE_unsigned_char, DW_ATE_unsigned:
		return fmt.Sprintf("%d", zeroExtend(bytes)), nil
	default:
		return "", newErr(UnsupportedType, "unsupported base type encoding 0x%x", enc)
	}
}

func zeroExtend(bytes []byte) uint64 {
	var v uint64
	for i, b := range bytes {
		v |= uint64(b) << (8 * uint(i))
	}
	return v
}

func signExtend(bytes []byte) int64 {
	v := zeroExtend(bytes)
	bits := uint(len(bytes) * 8)
	if bits < 64 && v&(1<<(bits-1)) != 0 {
		v |= ^uint64(0) << bits
	}
	return int64(v)
}

func visualizePointerType(d Die, bytes []byte, mem MemReader) (string, error) {
	addr := elf.VirtAddr(zeroExtend(bytes))
	if !d.Contains(DW_AT_type) {
		return fmt.Sprintf("0x%x", uint64(addr)), nil
	}
	a, err := d.At(DW_AT_type)
	if err != nil {
		return "", err
	}
	pointee, err := a.AsReference()
	if err != nil {
		return "", err
	}
	isChar, err := (Type{Die: pointee}).IsCharType()
	if err != nil {
		return "", err
	}
	if !isChar || addr == 0 {
		return fmt.Sprintf("0x%x", uint64(addr)), nil
	}
	s, err := mem.ReadCString(addr, 4096)
	if err != nil {
		return fmt.Sprintf("0x%x", uint64(addr)), nil
	}
	return fmt.Sprintf("0x%x %q", uint64(addr), s), nil
}

// visualizePtrToMemberType renders a pointer-to-member value (whether it
// points at a data member or a member function) as the hex of its first
// 8 bytes; the remaining bytes for a member-function pointer's
// this-adjustment are not decoded further.
func visualizePtrToMemberType(bytes []byte) (string, error) {
	if len(bytes) < 8 {
		return "", newErr(UnsupportedType, "ptr_to_member_type value too short: %d bytes", len(bytes))
	}
	return fmt.Sprintf("0x%x", binary.LittleEndian.Uint64(bytes[:8])), nil
}

func visualizeArrayType(d Die, bytes []byte, addr elf.VirtAddr, mem MemReader) (string, error) {
	if !d.Contains(DW_AT_type) {
		return "", newErr(UnsupportedType, "array missing element type")
	}
	a, err := d.At(DW_AT_type)
	if err != nil {
		return "", err
	}
	elemDie, err := a.AsReference()
	if err != nil {
		return "", err
	}
	elemType := Type{Die: elemDie}
	elemSize, err := elemType.ByteSize()
	if err != nil {
		return "", err
	}

	out := "["
	for offset := uint64(0); offset+elemSize <= uint64(len(bytes)); offset += elemSize {
		if offset > 0 {
			out += ", "
		}
		elem := TypedData{Type: elemType, Bytes: bytes[offset : offset+elemSize], Address: addr + elf.VirtAddr(offset)}
		s, err := elem.Visualize(mem, 0)
		if err != nil {
			return "", err
		}
		out += s
	}
	return out + "]", nil
}

func visualizeEnumType(d Die, bytes []byte) (string, error) {
	v := zeroExtend(bytes)
	children := d.Children()
	for {
		child, ok, err := children.Next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		if !child.Contains(DW_AT_const_value) {
			continue
		}
		a, err := child.At(DW_AT_const_value)
		if err != nil {
			return "", err
		}
		cv, err := a.AsInt()
		if err != nil {
			continue
		}
		if cv == v {
			name, ok, err := child.Name()
			if err == nil && ok {
				return name, nil
			}
		}
	}
	return fmt.Sprintf("%d", v), nil
}

// visualizeClassType renders a struct/union/class value as
// "{\n" + one "\t"*(depth+1)+name+": "+value+"\n" line per included
// member + "\t"*depth + "}". A child is included only when its tag is
// DW_TAG_member and it carries a resolvable location:
// DW_AT_data_member_location for an ordinary member, or
// DW_AT_data_bit_offset for a bitfield laid out DWARF4-style with no
// member-location attribute of its own. Children with any other tag are
// skipped, even when they carry DW_AT_data_bit_offset.
func visualizeClassType(d Die, bytes []byte, addr elf.VirtAddr, depth int, mem MemReader) (string, error) {
	out := "{\n"
	children := d.Children()
	for {
		member, ok, err := children.Next()
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		if member.Tag() != DW_TAG_member {
			continue
		}
		if !member.Contains(DW_AT_data_member_location) && !member.Contains(DW_AT_data_bit_offset) {
			continue
		}
		name, hasName, err := member.Name()
		if err != nil {
			return "", err
		}
		if !hasName {
			name = "<anonymous>"
		}
		if !member.Contains(DW_AT_type) {
			continue
		}
		typeAttr, err := member.At(DW_AT_type)
		if err != nil {
			return "", err
		}
		memberDie, err := typeAttr.AsReference()
		if err != nil {
			return "", err
		}
		memberType := Type{Die: memberDie}

		val, err := visualizeMember(member, memberType, bytes, addr, depth, mem)
		if err != nil {
			return "", err
		}
		out += strings.Repeat("\t", depth+1) + name + ": " + val + "\n"
	}
	return out + strings.Repeat("\t", depth) + "}", nil
}

// memberByteOffset returns a member's byte offset within its enclosing
// aggregate: DW_AT_data_member_location when present, else
// DW_AT_data_bit_offset/8 for a DWARF4 bitfield that only carries the
// aggregate-relative bit offset.
func memberByteOffset(member Die) (uint64, error) {
	if member.Contains(DW_AT_data_member_location) {
		a, err := member.At(DW_AT_data_member_location)
		if err != nil {
			return 0, err
		}
		return a.AsInt()
	}
	if member.Contains(DW_AT_data_bit_offset) {
		a, err := member.At(DW_AT_data_bit_offset)
		if err != nil {
			return 0, err
		}
		total, err := a.AsInt()
		if err != nil {
			return 0, err
		}
		return total / 8, nil
	}
	return 0, nil
}

// visualizeMember renders one struct/union/class field: slice out
// subtype.byte_size() bytes at the member's byte offset, run bitfield
// fixup (a no-op for an ordinary member), and recursively visualize the
// result at the same depth as this aggregate.
func visualizeMember(member Die, memberType Type, bytes []byte, addr elf.VirtAddr, depth int, mem MemReader) (string, error) {
	byteOffset, err := memberByteOffset(member)
	if err != nil {
		return "", err
	}
	size, err := memberType.ByteSize()
	if err != nil {
		return "", err
	}
	if byteOffset+size > uint64(len(bytes)) {
		return "", newErr(UnsupportedType, "member runs past storage")
	}
	memberAddr := addr + elf.VirtAddr(byteOffset)
	val := TypedData{Type: memberType, Bytes: bytes[byteOffset : byteOffset+size], Address: memberAddr}
	val, err = val.FixupBitfield(mem, member)
	if err != nil {
		return "", err
	}
	return val.Visualize(mem, depth)
}

// FixupBitfield extracts a bitfield member's value into a right-aligned
// integer occupying the member's storage_byte_size (its declared type's
// byte size): allocate storage_byte_size bytes and copy bit_size bits,
// starting at bit_offset relative to that storage, to bit 0 of the
// result. A member with no DW_AT_bit_size is not a bitfield and is
// returned unchanged. mem is accepted, unused, to match the documented
// fixup_bitfield(process, member_die) interface.
func (td TypedData) FixupBitfield(mem MemReader, member Die) (TypedData, error) {
	if !member.Contains(DW_AT_bit_size) {
		return td, nil
	}
	bitSizeAttr, err := member.At(DW_AT_bit_size)
	if err != nil {
		return TypedData{}, err
	}
	bitSize, err := bitSizeAttr.AsInt()
	if err != nil {
		return TypedData{}, err
	}

	byteOffset, err := memberByteOffset(member)
	if err != nil {
		return TypedData{}, err
	}
	var bitOffset uint64
	if member.Contains(DW_AT_data_bit_offset) {
		a, err := member.At(DW_AT_data_bit_offset)
		if err != nil {
			return TypedData{}, err
		}
		total, err := a.AsInt()
		if err != nil {
			return TypedData{}, err
		}
		bitOffset = total - byteOffset*8
	}

	storageByteSize, err := td.Type.ByteSize()
	if err != nil {
		return TypedData{}, err
	}
	if uint64(len(td.Bytes)) < storageByteSize {
		return TypedData{}, newErr(UnsupportedType, "bitfield storage runs past member bytes")
	}
	if bitfieldByteSpan(bitOffset, bitSize) > len(td.Bytes) {
		return TypedData{}, newErr(UnsupportedType, "bitfield runs past storage")
	}

	v := ExtractBits(td.Bytes, bitOffset, bitSize)
	fixed := make([]byte, storageByteSize)
	for i := uint64(0); i < storageByteSize; i++ {
		fixed[i] = byte(v >> (8 * i))
	}
	return TypedData{Type: td.Type, Bytes: fixed, Address: td.Address}, nil
}
