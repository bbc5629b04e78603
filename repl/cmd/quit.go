package cmd

var QuitCmd = register(&Command{
	Name: "quit",
	Desc: "Detach (or kill, if launched) and exit the REPL.",
	Run: func(c *Context) error {
		c.Quit = true
		if c.Proc == nil {
			return nil
		}
		return c.Proc.Kill()
	},
})

var QuitAlias = register(&Command{
	Name: "q",
	Desc: "Alias for quit.",
	Run:  QuitCmd.Run,
})
