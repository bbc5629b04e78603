package cmd

import (
	"strconv"

	"github.com/lunixbochs/sdb/breakpoint"
	"github.com/pkg/errors"
)

var BreakCmd = register(&Command{
	Name: "break",
	Desc: "Set a breakpoint: address, symbol[+offset], or file:line.",
	Run: func(c *Context, desc string) error {
		d, err := breakpoint.Parse(desc)
		if err != nil {
			return err
		}
		bp, err := c.Breakpoints.Add(d, c.Dwarf, c.Elf, false, false)
		if err != nil {
			return err
		}
		if c.Proc != nil {
			if err := bp.Enable(c.Proc); err != nil {
				return err
			}
		}
		c.Printf("breakpoint %d set at %s (%d site(s))\n", bp.ID, desc, len(bp.Sites))
		return nil
	},
})

var BreakAlias = register(&Command{
	Name: "b",
	Desc: "Alias for break.",
	Run:  BreakCmd.Run,
})

var DeleteCmd = register(&Command{
	Name: "delete",
	Desc: "Remove a breakpoint by id.",
	Run: func(c *Context, idStr string) error {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return errors.Wrap(err, "delete: invalid id")
		}
		return c.Breakpoints.Remove(id, c.Proc)
	},
})

var BreakpointsCmd = register(&Command{
	Name: "breakpoints",
	Desc: "List all breakpoints.",
	Run: func(c *Context) error {
		for _, bp := range c.Breakpoints.All() {
			state := "disabled"
			if bp.IsEnabled() {
				state = "enabled"
			}
			c.Printf("#%d %s [%s] %d site(s)\n", bp.ID, bp.Desc.Raw, state, len(bp.Sites))
		}
		return nil
	},
})
