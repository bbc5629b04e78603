package breakpoint

import (
	"github.com/lunixbochs/sdb/dwarf"
	"github.com/lunixbochs/sdb/elf"
	"github.com/pkg/errors"
)

// Resolve maps a Descriptor onto zero or more concrete file addresses.
// Symbol and file:line descriptors go through the DWARF function index
// and line table first; when that yields nothing (a stripped binary, a
// PLT stub, a libc call), it falls back to the ELF symbol table, the
// way sdb::elf::get_symbol_containing_address backstops the DWARF path.
// desc.Filename (the @file scope) is not consulted: every descriptor is
// resolved against d and ef.
func Resolve(desc *Descriptor, d *dwarf.Data, ef *elf.File) ([]elf.FileAddr, error) {
	switch {
	case desc.HasAddr:
		return []elf.FileAddr{{Elf: ef, Addr: desc.Addr}}, nil
	case desc.Sym != "":
		return resolveSymbol(desc, d, ef)
	case desc.Source != "":
		return resolveSourceLine(desc, d)
	default:
		return nil, errors.Errorf("breakpoint: descriptor %q resolves to nothing", desc.Raw)
	}
}

func resolveSymbol(desc *Descriptor, d *dwarf.Data, ef *elf.File) ([]elf.FileAddr, error) {
	var addrs []elf.FileAddr
	if d != nil {
		dies, err := d.FindFunctions(desc.Sym)
		if err != nil {
			return nil, errors.Wrap(err, "breakpoint: resolve symbol")
		}
		for _, die := range dies {
			low, err := die.LowPC()
			if err != nil {
				continue
			}
			addrs = append(addrs, elf.FileAddr{Elf: low.Elf, Addr: low.Addr + desc.Off})
		}
	}
	if len(addrs) > 0 {
		return addrs, nil
	}
	for _, sym := range ef.GetSymbolsByName(desc.Sym) {
		addrs = append(addrs, elf.FileAddr{Elf: ef, Addr: sym.Value + desc.Off})
	}
	if len(addrs) == 0 {
		return nil, errors.Errorf("breakpoint: no symbol named %q", desc.Sym)
	}
	return addrs, nil
}

func resolveSourceLine(desc *Descriptor, d *dwarf.Data) ([]elf.FileAddr, error) {
	var addrs []elf.FileAddr
	for _, cu := range d.CompileUnits() {
		lt, err := cu.LineTable()
		if err != nil {
			return nil, errors.Wrap(err, "breakpoint: load line table")
		}
		rows, err := lt.GetEntriesByLine(desc.Source, desc.Line)
		if err != nil {
			return nil, errors.Wrap(err, "breakpoint: resolve source line")
		}
		for _, row := range rows {
			addrs = append(addrs, row.Entry().Address)
		}
	}
	if len(addrs) == 0 {
		return nil, errors.Errorf("breakpoint: no code at %s:%d", desc.Source, desc.Line)
	}
	return addrs, nil
}
