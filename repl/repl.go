// Package repl drives the interactive command loop: reading lines with
// history (no tab completion is configured), coloring the prompt with the current program
// counter, and dispatching each line through repl/cmd.
package repl

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/lunixbochs/readline"
	"github.com/mgutz/ansi"
	"github.com/shibukawa/configdir"
	"github.com/sirupsen/logrus"

	"github.com/lunixbochs/sdb/breakpoint"
	"github.com/lunixbochs/sdb/dwarf"
	"github.com/lunixbochs/sdb/elf"
	"github.com/lunixbochs/sdb/process"
	"github.com/lunixbochs/sdb/repl/cmd"
)

// writeOnlyReadWriter adapts an io.Writer to io.ReadWriter for readline's
// Stdout(), which only exposes writes; Read is never called on it in
// practice since cmd.Context's ReadWriter is used for output here.
type writeOnlyReadWriter struct {
	io.Writer
}

func (writeOnlyReadWriter) Read(p []byte) (int, error) {
	return 0, io.EOF
}

var log = logrus.WithField("component", "repl")

var promptColor = ansi.ColorCode("cyan+b")

// Repl owns the readline instance and the debugging session it drives.
type Repl struct {
	rl  *readline.Instance
	ctx *cmd.Context
}

// New builds a Repl over an already-attached-or-launched process, its
// backing ELF, and (when available) its parsed DWARF data.
func New(proc *process.Process, ef *elf.File, d *dwarf.Data) (*Repl, error) {
	configDirs := configdir.New("sdb", "repl")
	cacheDir := configDirs.QueryCacheFolder()
	historyPath := ""
	if err := cacheDir.MkdirAll(); err == nil {
		historyPath = filepath.Join(cacheDir.Path, "history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "(sdb) ",
		HistoryFile:     historyPath,
		InterruptPrompt: "^C",
	})
	if err != nil {
		return nil, err
	}
	ctx := &cmd.Context{
		ReadWriter:  writeOnlyReadWriter{rl.Stdout()},
		Proc:        proc,
		Elf:         ef,
		Dwarf:       d,
		Breakpoints: breakpoint.NewSet(),
	}
	return &Repl{rl: rl, ctx: ctx}, nil
}

// setPrompt colors the prompt with the inferior's current pc, mirroring
// ui/repl.go's setPrompt.
func (r *Repl) setPrompt() {
	if r.ctx.Proc == nil {
		r.rl.SetPrompt("(sdb) ")
		return
	}
	pc, err := r.ctx.Proc.GetPC()
	if err != nil {
		r.rl.SetPrompt("(sdb) ")
		return
	}
	r.rl.SetPrompt(fmt.Sprintf("%s(sdb %#x)%s ", promptColor, pc, ansi.Reset))
}

// Run reads and dispatches lines until the user quits or readline exits.
func (r *Repl) Run() {
	defer r.rl.Close()
	for {
		r.setPrompt()
		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			log.WithError(err).Debug("readline exited")
			return
		}
		if err := cmd.Run(r.ctx, line); err != nil {
			log.WithError(err).Warn("command failed")
		}
		if r.ctx.Quit {
			return
		}
	}
}
