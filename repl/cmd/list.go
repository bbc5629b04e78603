package cmd

import "github.com/pkg/errors"

var ListCmd = register(&Command{
	Name: "list",
	Desc: "Show the source location of a function.",
	Run: func(c *Context, name string) error {
		if c.Dwarf == nil {
			return errors.New("list: no debug info loaded")
		}
		fns, err := c.Dwarf.FindFunctions(name)
		if err != nil {
			return err
		}
		if len(fns) == 0 {
			return errors.Errorf("list: no function named %q", name)
		}
		fn := fns[0]
		file, err := fn.DeclFile()
		if err != nil {
			return err
		}
		line, err := fn.DeclLine()
		if err != nil {
			return err
		}
		if file == nil {
			c.Printf("%s: line %d\n", name, line)
			return nil
		}
		c.Printf("%s: %s:%d\n", name, file.Path, line)
		return nil
	},
})
