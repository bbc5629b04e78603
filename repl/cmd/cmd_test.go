package cmd

import (
	"bytes"

	"github.com/lunixbochs/sdb/breakpoint"
)

// newTestContext builds a Context with no live process, enough to
// exercise commands that don't touch the inferior (help, breakpoints).
func newTestContext() (*Context, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	c := &Context{
		ReadWriter:  buf,
		Breakpoints: breakpoint.NewSet(),
	}
	return c, buf
}
