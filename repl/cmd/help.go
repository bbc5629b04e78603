package cmd

import "sort"

var HelpCmd = register(&Command{
	Name: "help",
	Desc: "List available commands.",
	Run: func(c *Context) error {
		names := make([]string, 0, len(Commands))
		for name := range Commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c.Printf("%-12s %s\n", name, Commands[name].Desc)
		}
		return nil
	},
})
