package cmd

var StepCmd = register(&Command{
	Name: "step",
	Desc: "Single-step one machine instruction.",
	Run: func(c *Context) error {
		reason, ok, err := stepOverBreakpoint(c)
		if err != nil {
			return err
		}
		if !ok {
			if err := c.Proc.SingleStep(); err != nil {
				return err
			}
			reason, err = c.Proc.WaitOnSignal()
			if err != nil {
				return err
			}
		}
		return reportStop(c, reason)
	},
})

var StepAlias = register(&Command{
	Name: "s",
	Desc: "Alias for step.",
	Run:  StepCmd.Run,
})
