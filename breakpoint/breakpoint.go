package breakpoint

import (
	"github.com/lunixbochs/sdb/dwarf"
	"github.com/lunixbochs/sdb/elf"
	"github.com/pkg/errors"
)

// Breakpoint owns every Site a Descriptor resolved to (a symbol can
// exist in more than one compile unit, or a source line can inline into
// several call sites) and tracks the id_type/is_hardware/is_internal
// bookkeeping sdb::breakpoint keeps.
type Breakpoint struct {
	ID       int
	Desc     *Descriptor
	Hardware bool
	Internal bool

	Sites []*Site

	enabled bool
}

// New resolves desc against d (may be nil for a stripped binary,
// falling straight to the ELF symbol table) and ef, and returns an
// unarmed Breakpoint with one Site per resolved address.
func New(id int, desc *Descriptor, d *dwarf.Data, ef *elf.File, hardware, internal bool) (*Breakpoint, error) {
	fileAddrs, err := Resolve(desc, d, ef)
	if err != nil {
		return nil, err
	}
	b := &Breakpoint{ID: id, Desc: desc, Hardware: hardware, Internal: internal}
	for _, fa := range fileAddrs {
		va, ok := ef.FileToVirt(fa)
		if !ok {
			return nil, errors.Errorf("breakpoint: %s has no runtime mapping yet", desc.Raw)
		}
		b.Sites = append(b.Sites, NewSite(va))
	}
	return b, nil
}

// IsEnabled reports whether Enable has installed this breakpoint's
// sites in the traced process.
func (b *Breakpoint) IsEnabled() bool { return b.enabled }

// Enable installs int3 at every site.
func (b *Breakpoint) Enable(p inferior) error {
	for _, s := range b.Sites {
		if err := s.Enable(p); err != nil {
			return err
		}
	}
	b.enabled = true
	return nil
}

// Disable removes int3 from every site.
func (b *Breakpoint) Disable(p inferior) error {
	for _, s := range b.Sites {
		if err := s.Disable(p); err != nil {
			return err
		}
	}
	b.enabled = false
	return nil
}

// AtAddress reports whether addr matches one of this breakpoint's
// sites, mirroring sdb::breakpoint::at_address.
func (b *Breakpoint) AtAddress(addr elf.VirtAddr) bool {
	for _, s := range b.Sites {
		if s.Address == addr {
			return true
		}
	}
	return false
}

// InRange reports whether any site falls within [low, high), mirroring
// sdb::breakpoint::in_range.
func (b *Breakpoint) InRange(low, high elf.VirtAddr) bool {
	for _, s := range b.Sites {
		if s.Address >= low && s.Address < high {
			return true
		}
	}
	return false
}

// Set is a collection of breakpoints keyed by id, mirroring the
// registry sdb::target keeps.
type Set struct {
	byID   map[int]*Breakpoint
	nextID int
}

// NewSet returns an empty breakpoint registry.
func NewSet() *Set {
	return &Set{byID: make(map[int]*Breakpoint)}
}

// Add resolves desc and registers the resulting Breakpoint under a
// freshly allocated id.
func (s *Set) Add(desc *Descriptor, d *dwarf.Data, ef *elf.File, hardware, internal bool) (*Breakpoint, error) {
	s.nextID++
	b, err := New(s.nextID, desc, d, ef, hardware, internal)
	if err != nil {
		s.nextID--
		return nil, err
	}
	s.byID[b.ID] = b
	return b, nil
}

// Remove disables and forgets the breakpoint with the given id.
func (s *Set) Remove(id int, p inferior) error {
	b, ok := s.byID[id]
	if !ok {
		return errors.Errorf("breakpoint: no breakpoint #%d", id)
	}
	if err := b.Disable(p); err != nil {
		return err
	}
	delete(s.byID, id)
	return nil
}

// Get returns the breakpoint with the given id, if any.
func (s *Set) Get(id int) (*Breakpoint, bool) {
	b, ok := s.byID[id]
	return b, ok
}

// All returns every registered breakpoint, in no particular order.
func (s *Set) All() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(s.byID))
	for _, b := range s.byID {
		out = append(out, b)
	}
	return out
}

// AtAddress returns the breakpoint (if any) whose site matches addr,
// used when a SIGTRAP fires to find out why.
func (s *Set) AtAddress(addr elf.VirtAddr) (*Breakpoint, bool) {
	for _, b := range s.byID {
		if b.enabled && b.AtAddress(addr) {
			return b, true
		}
	}
	return nil, false
}
