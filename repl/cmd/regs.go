package cmd

var RegsCmd = register(&Command{
	Name: "regs",
	Desc: "Dump general-purpose registers.",
	Run: func(c *Context) error {
		regs, err := c.Proc.GetRegisters()
		if err != nil {
			return err
		}
		c.Printf("rip 0x%016x  rsp 0x%016x  rbp 0x%016x\n", regs.Rip, regs.Rsp, regs.Rbp)
		c.Printf("rax 0x%016x  rbx 0x%016x  rcx 0x%016x\n", regs.Rax, regs.Rbx, regs.Rcx)
		c.Printf("rdx 0x%016x  rsi 0x%016x  rdi 0x%016x\n", regs.Rdx, regs.Rsi, regs.Rdi)
		c.Printf("r8  0x%016x  r9  0x%016x  r10 0x%016x\n", regs.R8, regs.R9, regs.R10)
		c.Printf("r11 0x%016x  r12 0x%016x  r13 0x%016x\n", regs.R11, regs.R12, regs.R13)
		c.Printf("r14 0x%016x  r15 0x%016x  eflags 0x%016x\n", regs.R14, regs.R15, regs.Eflags)
		return nil
	},
})

var RegsAlias = register(&Command{
	Name: "r",
	Desc: "Alias for regs.",
	Run:  RegsCmd.Run,
})
