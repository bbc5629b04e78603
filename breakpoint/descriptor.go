// Package breakpoint parses breakpoint descriptors and resolves them
// against a binary's debug info, then installs and removes the software
// breakpoint sites the resolution produces.
package breakpoint

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// descRe accepts the three shapes sdb's front end does: a bare address,
// symbol[+offset], or file:line, each optionally scoped with @file.
// Adapted from models/breakpoint.go's breakRe.
var descRe = regexp.MustCompile(`^((?P<addr>\*?0x[0-9a-fA-F]+|\d+)|(?P<source>.+):(?P<line>\d+)|(?P<sym>.+?)(?P<off>\+0x[0-9a-fA-F]+|\+\d+)?)(@(?P<file>.+))?$`)

// ErrParse is returned when desc matches none of the recognized shapes.
var ErrParse = errors.New("breakpoint: could not parse descriptor")

// Descriptor is an unresolved breakpoint location as typed by a user or
// script: one of an address, a symbol (+ optional offset), or a
// file:line pair, optionally restricted to one loaded object.
type Descriptor struct {
	Raw string

	HasAddr bool
	Addr    uint64

	Sym string
	Off uint64

	Source string
	Line   uint64

	Filename string
}

// Parse decodes a breakpoint descriptor string. Shapes:
//
//	0x1000          absolute address
//	main            function symbol
//	main+0x10       function symbol plus byte offset
//	foo.c:42        source file and line
//	main@libfoo.so  any of the above, scoped to one loaded object
func Parse(desc string) (*Descriptor, error) {
	m := descRe.FindStringSubmatch(desc)
	if m == nil {
		return nil, errors.WithStack(ErrParse)
	}
	names := descRe.SubexpNames()
	get := func(name string) string {
		for i, n := range names {
			if n == name && i < len(m) {
				return m[i]
			}
		}
		return ""
	}
	d := &Descriptor{Raw: desc, Filename: get("file")}

	if addrG := get("addr"); addrG != "" {
		v, err := strconv.ParseUint(trimStar(addrG), 0, 64)
		if err != nil {
			return nil, errors.Wrap(err, "breakpoint: parse address")
		}
		d.HasAddr = true
		d.Addr = v
		return d, nil
	}
	if sourceG, lineG := get("source"), get("line"); sourceG != "" && lineG != "" {
		v, err := strconv.ParseUint(lineG, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "breakpoint: parse line")
		}
		d.Source = sourceG
		d.Line = v
		return d, nil
	}
	if sym := get("sym"); sym != "" {
		d.Sym = sym
		if offG := get("off"); offG != "" {
			v, err := strconv.ParseUint(offG[1:], 0, 64)
			if err != nil {
				return nil, errors.Wrap(err, "breakpoint: parse offset")
			}
			d.Off = v
		}
		return d, nil
	}
	return nil, errors.WithStack(ErrParse)
}

func trimStar(s string) string {
	if len(s) > 0 && s[0] == '*' {
		return s[1:]
	}
	return s
}
