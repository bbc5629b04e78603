package dwarf

import "github.com/lunixbochs/sdb/elf"

// indexedFunction is one entry of the lazily-built function index: enough
// to reparse the DIE on demand without keeping the whole tree resident.
type indexedFunction struct {
	cu  *CompileUnit
	pos int
}

func (f indexedFunction) die() (Die, error) { return parseDieAt(f.cu, f.pos) }

// functionIndex maps a function's linkage/display name to every
// DW_TAG_subprogram or DW_TAG_inlined_subroutine DIE sharing it that
// carries DW_AT_low_pc or DW_AT_ranges (there can be more than one:
// overloads, or several inlined copies; declarations without an address
// range are not indexed), plus the same mapping
// for file-scope DW_TAG_variable DIEs so the REPL's print command can
// resolve a global by name.
type functionIndex struct {
	byName  map[string][]indexedFunction
	globals map[string][]indexedFunction
	built   bool
}

// buildFunctionIndex walks every compile unit's DIE tree once, recording
// each DW_TAG_subprogram or DW_TAG_inlined_subroutine that has an address
// range under its resolved name (spec.md §4.9).
func (d *Data) buildFunctionIndex() error {
	if d.functionIndex.built {
		return nil
	}
	idx := functionIndex{
		byName:  make(map[string][]indexedFunction),
		globals: make(map[string][]indexedFunction),
		built:   true,
	}
	for _, cu := range d.compileUnits {
		root, err := cu.Root()
		if err != nil {
			return err
		}
		children := root.Children()
		for {
			child, ok, err := children.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if child.Tag() == DW_TAG_variable {
				if err := indexByName(cu, child, idx.globals); err != nil {
					return err
				}
			}
		}
		if err := indexDieTree(cu, root, &idx); err != nil {
			return err
		}
	}
	d.functionIndex = idx
	return nil
}

func indexByName(cu *CompileUnit, die Die, into map[string][]indexedFunction) error {
	name, ok, err := die.Name()
	if err != nil {
		return err
	}
	if ok {
		into[name] = append(into[name], indexedFunction{cu: cu, pos: die.Position()})
	}
	return nil
}

func indexDieTree(cu *CompileUnit, die Die, idx *functionIndex) error {
	tag := die.Tag()
	if (tag == DW_TAG_subprogram || tag == DW_TAG_inlined_subroutine) &&
		(die.Contains(DW_AT_low_pc) || die.Contains(DW_AT_ranges)) {
		if err := indexByName(cu, die, idx.byName); err != nil {
			return err
		}
	}
	children := die.Children()
	for {
		child, ok, err := children.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := indexDieTree(cu, child, idx); err != nil {
			return err
		}
	}
	return nil
}

// FindFunctions returns every indexed DW_TAG_subprogram or
// DW_TAG_inlined_subroutine DIE with the given name, building the
// function index on first use.
func (d *Data) FindFunctions(name string) ([]Die, error) {
	if err := d.buildFunctionIndex(); err != nil {
		return nil, err
	}
	entries := d.functionIndex.byName[name]
	dies := make([]Die, 0, len(entries))
	for _, e := range entries {
		die, err := e.die()
		if err != nil {
			return nil, err
		}
		dies = append(dies, die)
	}
	return dies, nil
}

// FindGlobalVariables returns every file-scope DW_TAG_variable DIE with
// the given name, building the function index on first use.
func (d *Data) FindGlobalVariables(name string) ([]Die, error) {
	if err := d.buildFunctionIndex(); err != nil {
		return nil, err
	}
	entries := d.functionIndex.globals[name]
	dies := make([]Die, 0, len(entries))
	for _, e := range entries {
		die, err := e.die()
		if err != nil {
			return nil, err
		}
		dies = append(dies, die)
	}
	return dies, nil
}

// FunctionContainingAddress finds the compile unit whose root DIE's range
// contains addr and scans that unit's DW_TAG_subprogram DIEs for one
// whose address range contains addr. Concrete (non-inlined)
// lookup only; use InlineStackAtAddress to also resolve inlined frames.
func (d *Data) FunctionContainingAddress(addr elf.FileAddr) (Die, bool, error) {
	cu, ok := d.CompileUnitContainingAddress(addr)
	if !ok {
		return Die{}, false, nil
	}
	root, err := cu.Root()
	if err != nil {
		return Die{}, false, err
	}
	return findTag(root, DW_TAG_subprogram, addr)
}

func findTag(die Die, tag uint64, addr elf.FileAddr) (Die, bool, error) {
	if die.Tag() == tag && die.ContainsAddress(addr) {
		return die, true, nil
	}
	children := die.Children()
	for {
		child, ok, err := children.Next()
		if err != nil {
			return Die{}, false, err
		}
		if !ok {
			return Die{}, false, nil
		}
		if found, ok, err := findTag(child, tag, addr); ok || err != nil {
			return found, ok, err
		}
	}
}

// InlineStackAtAddress returns the chain of frames active at addr, from
// outermost (the concrete subprogram) to innermost (the deepest inlined
// call), by descending through nested DW_TAG_inlined_subroutine DIEs that
// each contain addr.
func (d *Data) InlineStackAtAddress(addr elf.FileAddr) ([]Die, error) {
	fn, ok, err := d.FunctionContainingAddress(addr)
	if err != nil || !ok {
		return nil, err
	}
	stack := []Die{fn}
	cur := fn
	for {
		next, ok, err := findTag(cur, DW_TAG_inlined_subroutine, addr)
		if err != nil {
			return nil, err
		}
		if !ok || next.Position() == cur.Position() {
			break
		}
		stack = append(stack, next)
		cur = next
	}
	return stack, nil
}
