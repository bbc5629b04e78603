package cmd

import (
	"encoding/binary"

	"github.com/lunixbochs/sdb/dwarf"
	"github.com/lunixbochs/sdb/elf"
	"github.com/pkg/errors"
)

// dwOpAddr is the DW_OP_addr location-expression opcode: the only
// expression this REPL decodes, matching a file-scope variable with a
// fixed link-time address (spec's location-expression support is
// bounded to exactly this case).
const dwOpAddr = 0x03

// staticAddressFromExprloc decodes "DW_OP_addr <8-byte address>", the
// shape a compiler emits for a non-PIE, non-TLS global's DW_AT_location.
func staticAddressFromExprloc(c *Context, expr []byte) (elf.FileAddr, error) {
	if len(expr) != 9 || expr[0] != dwOpAddr {
		return elf.FileAddr{}, errors.New("print: unsupported location expression")
	}
	addr := binary.LittleEndian.Uint64(expr[1:])
	return elf.FileAddr{Elf: c.Elf, Addr: addr}, nil
}

var PrintCmd = register(&Command{
	Name: "print",
	Desc: "Print the value of a global variable.",
	Run: func(c *Context, name string) error {
		if c.Dwarf == nil {
			return errors.New("print: no debug info loaded")
		}
		vars, err := c.Dwarf.FindGlobalVariables(name)
		if err != nil {
			return err
		}
		if len(vars) == 0 {
			return errors.Errorf("print: no global named %q", name)
		}
		v := vars[0]
		loc, err := v.At(dwarf.DW_AT_location)
		if err != nil {
			return err
		}
		block, err := loc.AsBlock()
		if err != nil {
			return errors.Wrap(err, "print: unsupported location expression")
		}
		fileAddr, err := staticAddressFromExprloc(c, block)
		if err != nil {
			return err
		}
		typeAttr, err := v.At(dwarf.DW_AT_type)
		if err != nil {
			return err
		}
		typeDie, err := typeAttr.AsReference()
		if err != nil {
			return err
		}
		t := dwarf.Type{Die: typeDie}
		virt, ok := c.Elf.FileToVirt(fileAddr)
		if !ok {
			return errors.Errorf("print: %s has no runtime mapping yet", name)
		}
		data, err := dwarf.ReadTypedData(t, c.Proc, virt)
		if err != nil {
			return err
		}
		s, err := data.Visualize(c.Proc, 0)
		if err != nil {
			return err
		}
		c.Printf("%s = %s\n", name, s)
		return nil
	},
})

var PrintAlias = register(&Command{
	Name: "p",
	Desc: "Alias for print.",
	Run:  PrintCmd.Run,
})
