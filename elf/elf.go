// Package elf memory-maps an ELF64 object and exposes its sections and
// symbols by name and address, translating between file and virtual
// (loaded) addresses once the object has been mapped into a traced
// process.
package elf

import (
	"bytes"
	"encoding/binary"
	"os"
	"sort"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// VirtAddr is an address in a running process's address space.
type VirtAddr uint64

// FileAddr is an address in an ELF object's link-time address space. The
// zero value (Elf == nil) is the null file address: it never resolves.
type FileAddr struct {
	Elf  *File
	Addr uint64
}

func (a FileAddr) IsNull() bool { return a.Elf == nil }

// ToVirt converts a file address to a virtual address using the ELF's
// load bias. Panics if called on the null file address; callers should
// check IsNull first.
func (a FileAddr) ToVirt() VirtAddr {
	return VirtAddr(a.Addr + a.Elf.loadBias)
}

func (a FileAddr) Less(b FileAddr) bool { return a.Addr < b.Addr }

// File is a read-only, mmap-backed view of an ELF64 object. It owns the
// mapping, which is released on Close. It does not keep the file
// descriptor open: Open closes it once the mapping exists. File
// values are not copyable in spirit (they hold OS resources) and should
// always be passed by pointer.
type File struct {
	path string
	fd   int
	data []byte // the full mmap'd file; every span below aliases into this

	header  Header64
	shdrs   []SectionHeader64
	secByName map[string]*SectionHeader64

	symtab       []Symbol64
	symByName    map[string][]*Symbol64
	symByAddr    []addrSym // sorted by Low, for containment queries

	loadBias uint64
}

type addrSym struct {
	low, high uint64
	sym       *Symbol64
}

// Open mmaps path read-only and parses its ELF64 header, section headers,
// and symbol table. The mapping is kept for the lifetime of the File;
// every []byte returned by File's accessors is a sub-slice of it.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "elf: open")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "elf: fstat")
	}
	size := fi.Size()
	if size < int64(ehdrSize) {
		return nil, errors.Wrap(ErrUnsupported("file too small to be ELF"), "elf: open")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "elf: mmap")
	}

	ef := &File{path: path, fd: int(f.Fd()), data: data}
	if err := ef.parseHeader(); err != nil {
		unix.Munmap(data)
		return nil, err
	}
	if err := ef.parseSectionHeaders(); err != nil {
		unix.Munmap(data)
		return nil, err
	}
	ef.buildSectionMap()
	if err := ef.parseSymbolTable(); err != nil {
		unix.Munmap(data)
		return nil, err
	}
	ef.buildSymbolMaps()

	// The fd was only needed to mmap; the mapping keeps the pages alive
	// independent of the descriptor, so re-open a private copy isn't
	// necessary and we can let f.Close() (deferred above) run.
	return ef, nil
}

// Close unmaps the file. Safe to call once; further use of any span or
// symbol handed out previously is undefined.
func (f *File) Close() error {
	if f.data == nil {
		return nil
	}
	err := unix.Munmap(f.data)
	f.data = nil
	return err
}

func (f *File) Path() string    { return f.path }
func (f *File) Header() Header64 { return f.header }

// LoadBias returns the virtual-address displacement applied since
// NotifyLoaded was called; zero if it never was.
func (f *File) LoadBias() uint64 { return f.loadBias }

// NotifyLoaded records the bias between this ELF's file addresses and the
// addresses it was actually mapped to in a traced process. Must be
// called at most once, after the process image is mapped.
func (f *File) NotifyLoaded(bias uint64) { f.loadBias = bias }

// FileToVirt converts a file address into this ELF's virtual address
// space. Returns the zero VirtAddr if addr is the null file address or
// belongs to a different ELF.
func (f *File) FileToVirt(addr FileAddr) (VirtAddr, bool) {
	if addr.IsNull() || addr.Elf != f {
		return 0, false
	}
	return VirtAddr(addr.Addr + f.loadBias), true
}

// VirtToFile converts a virtual address back to a file address, but only
// if it falls inside this ELF's loaded image; otherwise the returned
// FileAddr is null (Elf == nil).
func (f *File) VirtToFile(addr VirtAddr) FileAddr {
	lo, hi, ok := f.imageRange()
	if !ok || uint64(addr) < lo || uint64(addr) >= hi {
		return FileAddr{}
	}
	return FileAddr{Elf: f, Addr: uint64(addr) - f.loadBias}
}

// imageRange returns the [low, high) virtual-address range this ELF
// occupies once loaded, derived from its section addresses.
func (f *File) imageRange() (lo, hi uint64, ok bool) {
	first := true
	for i := range f.shdrs {
		s := &f.shdrs[i]
		if s.Flags&SHF_ALLOC == 0 || s.Size == 0 {
			continue
		}
		start := s.Addr + f.loadBias
		end := start + s.Size
		if first {
			lo, hi = start, end
			first = false
			continue
		}
		if start < lo {
			lo = start
		}
		if end > hi {
			hi = end
		}
	}
	return lo, hi, !first
}

// GetSection returns the section header named name, if present.
func (f *File) GetSection(name string) (*SectionHeader64, bool) {
	s, ok := f.secByName[name]
	return s, ok
}

// GetSectionContents returns the raw bytes of the named section, a
// sub-slice of the mmap'd file. Returns (nil, false) if no such section
// exists, and (nil, true) if the section is SHT_NOBITS.
func (f *File) GetSectionContents(name string) ([]byte, bool) {
	s, ok := f.secByName[name]
	if !ok || s.Type == SHT_NOBITS {
		return nil, ok
	}
	return f.data[s.Offset : s.Offset+s.Size], true
}

// GetSectionContainingAddress returns the section whose loaded [Addr,
// Addr+Size) range contains addr.
func (f *File) GetSectionContainingAddress(addr FileAddr) (*SectionHeader64, bool) {
	if addr.IsNull() || addr.Elf != f {
		return nil, false
	}
	for i := range f.shdrs {
		s := &f.shdrs[i]
		if s.Flags&SHF_ALLOC == 0 {
			continue
		}
		if addr.Addr >= s.Addr && addr.Addr < s.Addr+s.Size {
			return s, true
		}
	}
	return nil, false
}

func (f *File) GetSectionContainingVirtAddress(addr VirtAddr) (*SectionHeader64, bool) {
	return f.GetSectionContainingAddress(f.VirtToFile(addr))
}

// GetSectionStartAddress returns the file address of the start of the
// named section.
func (f *File) GetSectionStartAddress(name string) (FileAddr, bool) {
	s, ok := f.secByName[name]
	if !ok {
		return FileAddr{}, false
	}
	return FileAddr{Elf: f, Addr: s.Addr}, true
}

// GetSymbolsByName returns every symbol table entry with the given name.
func (f *File) GetSymbolsByName(name string) []*Symbol64 {
	return f.symByName[name]
}

// GetSymbolContainingAddress finds the symbol whose [Value, Value+Size)
// range contains addr; used as the fallback when DWARF has nothing to
// say about an address (stripped binaries, PLT stubs).
func (f *File) GetSymbolContainingAddress(addr FileAddr) (*Symbol64, bool) {
	if addr.IsNull() || addr.Elf != f {
		return nil, false
	}
	syms := f.symByAddr
	i := sort.Search(len(syms), func(i int) bool { return syms[i].low > addr.Addr })
	if i == 0 {
		return nil, false
	}
	e := syms[i-1]
	if addr.Addr >= e.low && addr.Addr < e.high {
		return e.sym, true
	}
	return nil, false
}

func (f *File) GetSymbolAtAddress(addr FileAddr) (*Symbol64, bool) {
	if addr.IsNull() || addr.Elf != f {
		return nil, false
	}
	for i := range f.symtab {
		if f.symtab[i].Value == addr.Addr {
			return &f.symtab[i], true
		}
	}
	return nil, false
}

func (f *File) GetString(strtabOff uint32, idx uint32) string {
	sec, ok := f.GetSectionContents(f.sectionNameByIndex(strtabOff))
	if !ok {
		return ""
	}
	return cString(sec, int(idx))
}

// cString reads a NUL-terminated string at offset idx into the raw
// bytes of a string table section.
func cString(tab []byte, idx int) string {
	if idx < 0 || idx >= len(tab) {
		return ""
	}
	end := idx
	for end < len(tab) && tab[end] != 0 {
		end++
	}
	return string(tab[idx:end])
}

func (f *File) sectionNameByIndex(idx uint32) string {
	if int(idx) >= len(f.shdrs) {
		return ""
	}
	return f.sectionName(&f.shdrs[idx])
}

func (f *File) parseHeader() error {
	if len(f.data) < ehdrSize {
		return ErrUnsupported("truncated ELF header")
	}
	if string(f.data[0:4]) != "\x7fELF" {
		return ErrUnsupported("bad ELF magic")
	}
	if f.data[EI_CLASS] != ELFCLASS64 {
		return ErrUnsupported("not a 64-bit ELF object")
	}
	if f.data[EI_DATA] != ELFDATA2LSB {
		return ErrUnsupported("not little-endian")
	}
	var h Header64
	if err := struc.UnpackWithOrder(bytes.NewReader(f.data[:ehdrSize]), &h, binary.LittleEndian); err != nil {
		return ErrUnsupported("malformed ELF header: " + err.Error())
	}
	if h.Machine != EM_X86_64 {
		return ErrUnsupported("not an x86-64 object")
	}
	f.header = h
	return nil
}

func (f *File) parseSectionHeaders() error {
	n := int(f.header.Shnum)
	off := f.header.Shoff
	sz := int(f.header.Shentsize)
	if sz == 0 {
		sz = shdrSize
	}
	f.shdrs = make([]SectionHeader64, n)
	for i := 0; i < n; i++ {
		base := off + uint64(i)*uint64(sz)
		if base+uint64(shdrSize) > uint64(len(f.data)) {
			return ErrUnsupported("truncated section header table")
		}
		b := f.data[base : base+uint64(shdrSize)]
		if err := struc.UnpackWithOrder(bytes.NewReader(b), &f.shdrs[i], binary.LittleEndian); err != nil {
			return ErrUnsupported("malformed section header: " + err.Error())
		}
	}
	return nil
}

// sectionName resolves a section header's name via the section-header
// string table (e_shstrndx), never the more common .strtab.
func (f *File) sectionName(s *SectionHeader64) string {
	if int(f.header.Shstrndx) >= len(f.shdrs) {
		return ""
	}
	strtab := &f.shdrs[f.header.Shstrndx]
	tab := f.data[strtab.Offset : strtab.Offset+strtab.Size]
	return cString(tab, int(s.Name))
}

func (f *File) buildSectionMap() {
	f.secByName = make(map[string]*SectionHeader64, len(f.shdrs))
	for i := range f.shdrs {
		name := f.sectionName(&f.shdrs[i])
		if name != "" {
			f.secByName[name] = &f.shdrs[i]
		}
	}
}

func (f *File) parseSymbolTable() error {
	sec, ok := f.secByName[".symtab"]
	if !ok || sec.EntSize == 0 {
		return nil
	}
	n := int(sec.Size / sec.EntSize)
	f.symtab = make([]Symbol64, n)
	strtab, hasStr := f.secByName[".strtab"]
	var strBytes []byte
	if hasStr {
		strBytes = f.data[strtab.Offset : strtab.Offset+strtab.Size]
	}
	for i := 0; i < n; i++ {
		base := sec.Offset + uint64(i)*sec.EntSize
		b := f.data[base : base+symSize]
		s := &f.symtab[i]
		if err := struc.UnpackWithOrder(bytes.NewReader(b), s, binary.LittleEndian); err != nil {
			return ErrUnsupported("malformed symbol table entry: " + err.Error())
		}
		if hasStr {
			s.NameStr = cString(strBytes, int(s.Name))
		}
	}
	return nil
}

func (f *File) buildSymbolMaps() {
	f.symByName = make(map[string][]*Symbol64)
	for i := range f.symtab {
		s := &f.symtab[i]
		if s.NameStr == "" {
			continue
		}
		f.symByName[s.NameStr] = append(f.symByName[s.NameStr], s)
		if s.Size > 0 {
			f.symByAddr = append(f.symByAddr, addrSym{low: s.Value, high: s.Value + s.Size, sym: s})
		}
	}
	sort.Slice(f.symByAddr, func(i, j int) bool { return f.symByAddr[i].low < f.symByAddr[j].low })
}
