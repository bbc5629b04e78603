package cmd

import (
	"encoding/binary"

	"github.com/lunixbochs/sdb/elf"
)

// BacktraceCmd walks the rbp-chain frame pointers, mirroring the classic
// x86-64 System V frame layout: [rbp] = saved rbp, [rbp+8] = return
// address. It stops at a null frame pointer or an unreadable frame.
var BacktraceCmd = register(&Command{
	Name: "backtrace",
	Desc: "Print the call stack by walking saved frame pointers.",
	Run: func(c *Context) error {
		regs, err := c.Proc.GetRegisters()
		if err != nil {
			return err
		}
		pc, err := c.PC()
		if err != nil {
			return err
		}
		printFrame(c, 0, pc)

		fp := regs.Rbp
		for i := 1; fp != 0; i++ {
			buf, err := c.Proc.ReadMemory(elf.VirtAddr(fp), 16)
			if err != nil || len(buf) < 16 {
				break
			}
			savedFP := binary.LittleEndian.Uint64(buf[0:8])
			retAddr := binary.LittleEndian.Uint64(buf[8:16])
			if retAddr == 0 {
				break
			}
			printFrame(c, i, c.Elf.VirtToFile(elf.VirtAddr(retAddr)))
			if savedFP <= fp {
				break
			}
			fp = savedFP
		}
		return nil
	},
})

var BacktraceAlias = register(&Command{
	Name: "bt",
	Desc: "Alias for backtrace.",
	Run:  BacktraceCmd.Run,
})

func printFrame(c *Context, depth int, fa elf.FileAddr) {
	if fa.IsNull() {
		c.Printf("#%d ??\n", depth)
		return
	}
	if c.Dwarf != nil {
		if fn, ok, err := c.Dwarf.FunctionContainingAddress(fa); err == nil && ok {
			if name, has, err := fn.Name(); err == nil && has {
				c.Printf("#%d %#x in %s\n", depth, fa.Addr, name)
				return
			}
		}
	}
	if sym, ok := c.Elf.GetSymbolContainingAddress(fa); ok {
		c.Printf("#%d %#x in %s\n", depth, fa.Addr, sym.NameStr)
		return
	}
	c.Printf("#%d %#x\n", depth, fa.Addr)
}
