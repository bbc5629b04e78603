package dwarf

import "github.com/lunixbochs/sdb/elf"

// RangeEntry is one non-contiguous address span belonging to a range
// list: [Low, High).
type RangeEntry struct {
	Low  elf.FileAddr
	High elf.FileAddr
}

// RangeList is a view over one DW_AT_ranges value: a sequence of address
// pairs in .debug_ranges, terminated by a (0, 0) entry, with an implicit
// running base address that a (~0, new_base) entry can update mid-list.
type RangeList struct {
	cu   *CompileUnit
	data []byte // .debug_ranges from this list's offset to end of section
	base uint64 // initial base address, from the compile unit root's low_pc (0 if absent)
}

// Iterator returns a fresh single-pass iterator over the list.
func (rl RangeList) Iterator() *RangeIter {
	return &RangeIter{cu: rl.cu, c: NewCursor(rl.data), base: rl.base}
}

// Contains reports whether addr falls within any entry of the list.
func (rl RangeList) Contains(addr elf.FileAddr) (bool, error) {
	it := rl.Iterator()
	for {
		e, ok, err := it.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if addr.Addr >= e.Low.Addr && addr.Addr < e.High.Addr {
			return true, nil
		}
	}
}

// RangeIter walks a RangeList's entries in order, transparently applying
// base-address selection entries along the way.
type RangeIter struct {
	cu   *CompileUnit
	c    *Cursor
	base uint64
	done bool
}

// Next returns the next entry, or ok=false once the (0, 0) terminator is
// reached.
func (it *RangeIter) Next() (RangeEntry, bool, error) {
	if it.done {
		return RangeEntry{}, false, nil
	}
	for {
		if it.c.Finished() {
			it.done = true
			return RangeEntry{}, false, nil
		}
		low := it.c.U64()
		high := it.c.U64()
		if low == ^uint64(0) { // base-address selection entry
			it.base = high
			continue
		}
		if low == 0 && high == 0 {
			it.done = true
			return RangeEntry{}, false, nil
		}
		ef := it.cu.Dwarf().Elf()
		return RangeEntry{
			Low:  elf.FileAddr{Elf: ef, Addr: it.base + low},
			High: elf.FileAddr{Elf: ef, Addr: it.base + high},
		}, true, nil
	}
}
