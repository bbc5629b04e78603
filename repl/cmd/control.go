package cmd

import (
	"github.com/lunixbochs/sdb/process"
)

// stepOverBreakpoint undoes the effect of the traced process having
// stopped one byte past an installed int3: it rewinds rip, disables the
// site, single-steps across the original instruction, and reinstalls
// the int3, so a subsequent Resume does not immediately retrap on the
// same address.
// The returned bool reports whether it consumed one instruction (ok is
// false, reason is the zero value, when the process was not sitting on
// a breakpoint), so callers issuing a single "step" don't advance twice.
func stepOverBreakpoint(c *Context) (reason process.StopReason, ok bool, err error) {
	pc, err := c.Proc.GetPC()
	if err != nil {
		return process.StopReason{}, false, err
	}
	bp, hit := c.Breakpoints.AtAddress(pc - 1)
	if !hit {
		return process.StopReason{}, false, nil
	}
	if err := c.Proc.SetPC(pc - 1); err != nil {
		return process.StopReason{}, false, err
	}
	if err := bp.Disable(c.Proc); err != nil {
		return process.StopReason{}, false, err
	}
	if err := c.Proc.SingleStep(); err != nil {
		return process.StopReason{}, false, err
	}
	reason, err = c.Proc.WaitOnSignal()
	if err != nil {
		return process.StopReason{}, false, err
	}
	if err := bp.Enable(c.Proc); err != nil {
		return process.StopReason{}, false, err
	}
	return reason, true, nil
}

// reportStop prints a human-readable summary of why the process
// stopped, decorating a breakpoint trap or a source location when debug
// info can resolve one.
func reportStop(c *Context, reason process.StopReason) error {
	c.Printf("%s\n", reason.String())
	if reason.State != process.StateStopped {
		return nil
	}
	fa, err := c.PC()
	if err != nil {
		return nil
	}
	if c.Dwarf == nil {
		return nil
	}
	fn, ok, err := c.Dwarf.FunctionContainingAddress(fa)
	if err != nil || !ok {
		return nil
	}
	name, _, err := fn.Name()
	if err != nil {
		return nil
	}
	c.Printf("stopped in %s at %#x\n", name, fa.Addr)
	return nil
}
