package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpListsCommands(t *testing.T) {
	c, buf := newTestContext()
	require.NoError(t, Run(c, "help"))
	assert.Contains(t, buf.String(), "continue")
	assert.Contains(t, buf.String(), "break")
}

func TestRunUnknownCommand(t *testing.T) {
	c, buf := newTestContext()
	require.NoError(t, Run(c, "frobnicate"))
	assert.Contains(t, buf.String(), "command not found")
}

func TestBreakpointsListEmpty(t *testing.T) {
	c, buf := newTestContext()
	require.NoError(t, Run(c, "breakpoints"))
	assert.Equal(t, "", buf.String())
}
