package cmd

import (
	"fmt"
	"reflect"

	"github.com/lunixbochs/argjoy"
	shellwords "github.com/lunixbochs/go-shellwords"
)

// Command is one REPL verb: a name, a one-line description shown by
// help, and a Run func dispatched through argjoy.
type Command struct {
	Name string
	Desc string
	Run  interface{}
}

// Commands holds every registered Command, keyed by name.
var Commands = make(map[string]*Command)

func register(c *Command) *Command {
	fn := reflect.ValueOf(c.Run)
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		panic(fmt.Sprintf("cmd.Command.Run must be a func: got (%T) %#v", c.Run, c.Run))
	}
	Commands[c.Name] = c
	return c
}

var aj = argjoy.NewArgjoy()

// Run tokenizes line and dispatches it to the matching registered
// Command, printing parse and command errors to c rather than
// propagating them (a REPL should never die from a bad command line).
func Run(c *Context, line string) error {
	args, err := shellwords.Parse(line)
	if err != nil {
		c.Printf("parse error: %v\n", err)
		return nil
	}
	if len(args) == 0 {
		return nil
	}
	name, rest := args[0], args[1:]
	command, ok := Commands[name]
	if !ok {
		c.Printf("command not found: %s\n", name)
		return nil
	}
	out, err := aj.Call(command.Run, c, rest)
	if err != nil {
		c.Printf("error: %v\n", err)
		return nil
	}
	if len(out) > 0 {
		if runErr, ok := out[0].(error); ok && runErr != nil {
			c.Printf("error: %v\n", runErr)
		}
	}
	return nil
}
