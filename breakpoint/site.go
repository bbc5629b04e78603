package breakpoint

import (
	"github.com/lunixbochs/sdb/elf"
	"github.com/pkg/errors"
)

// int3 is the x86 single-byte breakpoint instruction (0xCC).
const int3 = 0xCC

// inferior is the subset of process.Process a Site needs to install
// itself; kept as an interface here so this package does not import
// process (which would create a cycle if process ever wants to report
// breakpoint state back).
type inferior interface {
	ReadMemory(addr elf.VirtAddr, size uint64) ([]byte, error)
	WriteMemory(addr elf.VirtAddr, data []byte) error
}

// Site is one installed instance of a Breakpoint: a single address with
// the original byte saved so it can be restored, mirroring
// sdb::breakpoint_site.
type Site struct {
	Address elf.VirtAddr
	orig    byte
	enabled bool
}

// NewSite creates an uninstalled site at addr.
func NewSite(addr elf.VirtAddr) *Site {
	return &Site{Address: addr}
}

// IsEnabled reports whether the int3 patch is currently in memory.
func (s *Site) IsEnabled() bool { return s.enabled }

// Enable saves the original byte at Address and overwrites it with
// int3.
func (s *Site) Enable(p inferior) error {
	if s.enabled {
		return nil
	}
	orig, err := p.ReadMemory(s.Address, 1)
	if err != nil {
		return errors.Wrap(err, "breakpoint: read original byte")
	}
	s.orig = orig[0]
	if err := p.WriteMemory(s.Address, []byte{int3}); err != nil {
		return errors.Wrap(err, "breakpoint: install int3")
	}
	s.enabled = true
	return nil
}

// Disable restores the original byte at Address.
func (s *Site) Disable(p inferior) error {
	if !s.enabled {
		return nil
	}
	if err := p.WriteMemory(s.Address, []byte{s.orig}); err != nil {
		return errors.Wrap(err, "breakpoint: restore original byte")
	}
	s.enabled = false
	return nil
}
