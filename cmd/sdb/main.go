// Command sdb is a native x86-64 Linux source-level debugger: it
// launches or attaches to a process, loads its ELF and DWARF debug
// info, and drives an interactive REPL against it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/lunixbochs/sdb/dwarf"
	"github.com/lunixbochs/sdb/elf"
	"github.com/lunixbochs/sdb/process"
	"github.com/lunixbochs/sdb/repl"
)

var log = logrus.WithField("component", "main")

func main() {
	attach := flag.Int("p", 0, "attach to an existing pid instead of launching a binary")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if *attach == 0 && flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: sdb [-p pid] [-v] <path> [args...]")
		os.Exit(2)
	}

	if err := run(*attach, flag.Args()); err != nil {
		log.WithError(err).Error("fatal")
		os.Exit(1)
	}
}

func run(pid int, args []string) error {
	var (
		proc *process.Process
		path string
		err  error
	)
	if pid != 0 {
		proc, err = process.Attach(pid)
		if err != nil {
			return err
		}
		path = fmt.Sprintf("/proc/%d/exe", pid)
	} else {
		path = args[0]
		proc, err = process.Launch(path, args[1:], nil)
		if err != nil {
			return err
		}
	}
	defer proc.Kill()

	ef, err := elf.Open(path)
	if err != nil {
		return err
	}
	defer ef.Close()

	bias, err := proc.DiscoverLoadBias(path, ef)
	if err != nil {
		log.WithError(err).Warn("could not determine load bias, assuming zero")
	}
	proc.NotifyLoaded(ef, bias)

	var d *dwarf.Data
	if _, ok := ef.GetSection(".debug_info"); ok {
		d, err = dwarf.New(ef)
		if err != nil {
			log.WithError(err).Warn("failed to parse debug info, continuing without it")
			d = nil
		}
	} else {
		log.Warn("binary has no .debug_info, symbol-only mode")
	}

	r, err := repl.New(proc, ef, d)
	if err != nil {
		return err
	}
	r.Run()
	return nil
}
