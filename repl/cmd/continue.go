package cmd

import "github.com/lunixbochs/sdb/process"

var ContinueCmd = register(&Command{
	Name: "continue",
	Desc: "Resume the inferior until it stops or exits.",
	Run: func(c *Context) error {
		if _, _, err := stepOverBreakpoint(c); err != nil {
			return err
		}
		state := c.Proc.State()
		if state != process.StateExited && state != process.StateTerminated {
			if err := c.Proc.Resume(); err != nil {
				return err
			}
		}
		reason, err := c.Proc.WaitOnSignal()
		if err != nil {
			return err
		}
		return reportStop(c, reason)
	},
})

var ContinueAlias = register(&Command{
	Name: "c",
	Desc: "Alias for continue.",
	Run:  ContinueCmd.Run,
})
