package elf

// ErrUnsupported is raised when the object is not the shape this package
// understands: wrong magic, not 64-bit, not little-endian, wrong
// machine. It corresponds to spec.md §7's UnsupportedElf kind.
type ErrUnsupported string

func (e ErrUnsupported) Error() string { return "unsupported elf: " + string(e) }
