package breakpoint

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/lunixbochs/sdb/elf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSymbolELF writes a minimal ELF64/x86-64 object with one .text
// section and a single STT_FUNC symbol named "main", for exercising the
// symbol-table fallback path without a dwarf.Data.
func buildSymbolELF(t *testing.T) string {
	t.Helper()

	strtab := append([]byte{0}, append([]byte("main"), 0)...)
	sym := make([]byte, 24)
	bo := binary.LittleEndian
	bo.PutUint32(sym[0:4], 1)
	sym[4] = (1 << 4) | 2 // STB_GLOBAL<<4 | STT_FUNC
	bo.PutUint64(sym[8:16], 0x1000)
	bo.PutUint64(sym[16:24], 0x20)
	symtab := append(make([]byte, 24), sym...)

	type sec struct {
		name      string
		data      []byte
		addr      uint64
		alloc     bool
		typ, link uint32
		entsize   uint64
	}
	sections := []sec{
		{name: ".text", data: []byte{0x90, 0x90, 0xc3}, addr: 0x1000, alloc: true, typ: 1},
		{name: ".strtab", data: strtab, typ: 3},
		{name: ".symtab", data: symtab, typ: 2, link: 2, entsize: 24},
	}

	var shstrtab []byte
	shstrtab = append(shstrtab, 0)
	nameOffsets := make([]uint32, len(sections))
	for i, s := range sections {
		nameOffsets[i] = uint32(len(shstrtab))
		shstrtab = append(shstrtab, append([]byte(s.name), 0)...)
	}
	shstrtabNameOff := uint32(len(shstrtab))
	shstrtab = append(shstrtab, append([]byte(".shstrtab"), 0)...)

	const ehdrSize, shdrSize = 64, 64
	body := []byte{}
	offsets := make([]uint64, len(sections))
	align := func() {
		for len(body)%8 != 0 {
			body = append(body, 0)
		}
	}
	for i, s := range sections {
		align()
		offsets[i] = ehdrSize + uint64(len(body))
		body = append(body, s.data...)
	}
	align()
	shstrtabOffset := ehdrSize + uint64(len(body))
	body = append(body, shstrtab...)

	shnum := 1 + len(sections) + 1
	shstrndx := uint16(shnum - 1)
	align()
	shoff := ehdrSize + uint64(len(body))

	var shdrs []byte
	writeShdr := func(name, typ uint32, flags, addr, offset, size uint64, link, info uint32, addralign, entsize uint64) {
		b := make([]byte, shdrSize)
		bo := binary.LittleEndian
		bo.PutUint32(b[0:4], name)
		bo.PutUint32(b[4:8], typ)
		bo.PutUint64(b[8:16], flags)
		bo.PutUint64(b[16:24], addr)
		bo.PutUint64(b[24:32], offset)
		bo.PutUint64(b[32:40], size)
		bo.PutUint32(b[40:44], link)
		bo.PutUint32(b[44:48], info)
		bo.PutUint64(b[48:56], addralign)
		bo.PutUint64(b[56:64], entsize)
		shdrs = append(shdrs, b...)
	}
	writeShdr(0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	for i, s := range sections {
		var flags uint64
		if s.alloc {
			flags = elf.SHF_ALLOC
		}
		writeShdr(nameOffsets[i], s.typ, flags, s.addr, offsets[i], uint64(len(s.data)), s.link, 0, 1, s.entsize)
	}
	writeShdr(shstrtabNameOff, 3, 0, 0, shstrtabOffset, uint64(len(shstrtab)), 0, 0, 1, 0)

	ehdr := make([]byte, ehdrSize)
	ehdr[0], ehdr[1], ehdr[2], ehdr[3] = 0x7f, 'E', 'L', 'F'
	ehdr[elf.EI_CLASS] = elf.ELFCLASS64
	ehdr[elf.EI_DATA] = elf.ELFDATA2LSB
	ehdr[6] = 1
	bo.PutUint16(ehdr[16:18], 2)
	bo.PutUint16(ehdr[18:20], elf.EM_X86_64)
	bo.PutUint32(ehdr[20:24], 1)
	bo.PutUint64(ehdr[40:48], shoff)
	bo.PutUint16(ehdr[52:54], ehdrSize)
	bo.PutUint16(ehdr[58:60], shdrSize)
	bo.PutUint16(ehdr[60:62], uint16(shnum))
	bo.PutUint16(ehdr[62:64], shstrndx)

	full := append(ehdr, body...)
	full = append(full, shdrs...)

	path := filepath.Join(t.TempDir(), "fixture.elf")
	require.NoError(t, os.WriteFile(path, full, 0o644))
	return path
}

func TestResolveAddressDescriptor(t *testing.T) {
	path := buildSymbolELF(t)
	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	d, err := Parse("0x1000")
	require.NoError(t, err)
	addrs, err := Resolve(d, nil, f)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, uint64(0x1000), addrs[0].Addr)
}

func TestResolveSymbolFallsBackToSymtab(t *testing.T) {
	path := buildSymbolELF(t)
	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	d, err := Parse("main+0x4")
	require.NoError(t, err)
	addrs, err := Resolve(d, nil, f)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, uint64(0x1004), addrs[0].Addr)
}

func TestNewBreakpointInstallsSites(t *testing.T) {
	path := buildSymbolELF(t)
	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()
	f.NotifyLoaded(0x550000000000)

	d, err := Parse("main")
	require.NoError(t, err)
	bp, err := New(1, d, nil, f, false, false)
	require.NoError(t, err)
	require.Len(t, bp.Sites, 1)

	inf := newFakeInferior(bp.Sites[0].Address, 0x90)
	require.NoError(t, bp.Enable(inf))
	assert.True(t, bp.IsEnabled())
	assert.True(t, bp.AtAddress(bp.Sites[0].Address))
}
