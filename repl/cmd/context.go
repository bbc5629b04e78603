// Package cmd holds the REPL's command table and per-session context,
// mirroring the teacher's debug/cmd package: commands are registered by
// name at init time and dispatched through argjoy so their Run funcs can
// take plain typed arguments instead of unpacking []string by hand.
package cmd

import (
	"fmt"
	"io"

	"github.com/lunixbochs/sdb/breakpoint"
	"github.com/lunixbochs/sdb/dwarf"
	"github.com/lunixbochs/sdb/elf"
	"github.com/lunixbochs/sdb/process"
)

// Context is threaded through every command: the terminal to print to,
// and the live inferior plus the debug info describing it.
type Context struct {
	io.ReadWriter

	Proc        *process.Process
	Dwarf       *dwarf.Data
	Elf         *elf.File
	Breakpoints *breakpoint.Set

	// Quit is set by the quit command to end the REPL's read loop.
	Quit bool
}

func (c *Context) Printf(format string, a ...interface{}) (n int, err error) {
	return fmt.Fprintf(c, format, a...)
}

// PC returns the traced process's current program counter as a file
// address, suitable for querying Dwarf/Elf.
func (c *Context) PC() (elf.FileAddr, error) {
	va, err := c.Proc.GetPC()
	if err != nil {
		return elf.FileAddr{}, err
	}
	return c.Elf.VirtToFile(va), nil
}
