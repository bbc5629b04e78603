package dwarf

import (
	"path"
	"strings"

	"github.com/lunixbochs/sdb/elf"
)

// LineTableFile is one entry of a line program's file-name table.
type LineTableFile struct {
	Path    string
	ModTime uint64
	Length  uint64
}

// LineEntry is one row of a decoded line-number matrix: which address
// maps to which (file, line, column), plus the flags DWARF attaches to
// that mapping.
type LineEntry struct {
	Address         elf.FileAddr
	FileIndex       uint64
	FileEntry       *LineTableFile
	Line            uint64
	Column          uint64
	IsStmt          bool
	BasicBlockStart bool
	EndSequence     bool
	PrologueEnd     bool
	EpilogueBegin   bool
	Discriminator   uint64
}

// LineTable is one compile unit's decoded line-number program: the
// header (file/directory tables, opcode parameters) plus the raw
// bytecode, whose rows are materialized lazily and cached on first query
// (spec.md §4.7 describes the row stream itself as lazily produced; this
// engine additionally memoizes the full run per compile unit, since both
// address and line lookups need to scan the whole matrix and a real
// debugger issues many of each per compile unit).
type LineTable struct {
	cu            *CompileUnit
	data          []byte // line-number program bytes, header excluded
	defaultIsStmt bool
	lineBase      int8
	lineRange     uint8
	opcodeBase    uint8
	includeDirs   []string
	fileNames     []LineTableFile

	entries     []LineEntry
	entriesErr  error
	entriesDone bool
}

// FileNames returns the file-name table declared in this line program's
// header (plus any appended later via DW_LNE_define_file).
func (lt *LineTable) FileNames() []LineTableFile { return lt.fileNames }

// parseLineTableFile reads one file_names entry: a name, then dir
// index / mtime / length ULEB128s. An empty
// name marks the table's terminator.
func parseLineTableFile(c *Cursor, compDir string, includeDirs []string) (LineTableFile, bool) {
	name := c.String()
	if name == "" {
		return LineTableFile{}, false
	}
	dirIndex := c.ULEB128()
	modTime := c.ULEB128()
	length := c.ULEB128()

	p := name
	if !strings.HasPrefix(name, "/") {
		var dir string
		if dirIndex == 0 {
			dir = compDir
		} else if int(dirIndex) <= len(includeDirs) {
			dir = includeDirs[dirIndex-1]
		}
		if dir != "" {
			p = path.Join(dir, name)
		}
	}
	return LineTableFile{Path: p, ModTime: modTime, Length: length}, true
}

// parseLineTable decodes the line-number program header referenced by
// cu's root DW_AT_stmt_list. Returns (nil, nil) if the unit has none.
func parseLineTable(cu *CompileUnit) (*LineTable, error) {
	root, err := cu.Root()
	if err != nil {
		return nil, err
	}
	if !root.Contains(DW_AT_stmt_list) {
		return nil, nil
	}
	a, err := root.At(DW_AT_stmt_list)
	if err != nil {
		return nil, err
	}
	offset, err := a.AsSectionOffset()
	if err != nil {
		return nil, err
	}
	section := cu.parent.debugLine
	if int(offset) > len(section) {
		return nil, newErr(UnsupportedLineProgram, "stmt_list offset out of bounds")
	}

	c := NewCursor(section[offset:])
	unitLength := c.U32()
	end := c.Position() + int(unitLength)
	version := c.U16()
	if version != 4 {
		return nil, newErr(UnsupportedLineProgram, "unsupported line program version %d", version)
	}
	c.U32() // header_length; program bytes are found by header size instead below
	minInstrLen := c.U8()
	if minInstrLen != 1 {
		return nil, newErr(UnsupportedLineProgram, "unsupported minimum_instruction_length %d", minInstrLen)
	}
	maxOpsPerInstr := c.U8()
	if maxOpsPerInstr != 1 {
		return nil, newErr(UnsupportedLineProgram, "unsupported maximum_operations_per_instruction %d", maxOpsPerInstr)
	}
	defaultIsStmt := c.U8() != 0
	lineBase := c.S8()
	lineRange := c.U8()
	opcodeBase := c.U8()
	if opcodeBase < 1 || int(opcodeBase) > len(expectedOpcodeLengths)+1 {
		return nil, newErr(UnsupportedLineProgram, "opcode_base out of range: %d", opcodeBase)
	}
	for i := 0; i < int(opcodeBase)-1; i++ {
		if got := c.U8(); got != expectedOpcodeLengths[i] {
			return nil, newErr(UnsupportedLineProgram, "unexpected standard opcode length at index %d", i)
		}
	}

	compDirAttr, err := root.At(DW_AT_comp_dir)
	if err != nil {
		return nil, err
	}
	compDir, err := compDirAttr.AsString()
	if err != nil {
		return nil, err
	}

	var includeDirs []string
	for {
		dir := c.String()
		if dir == "" {
			break
		}
		if !strings.HasPrefix(dir, "/") {
			dir = path.Join(compDir, dir)
		}
		includeDirs = append(includeDirs, dir)
	}
	var fileNames []LineTableFile
	for {
		f, ok := parseLineTableFile(c, compDir, includeDirs)
		if !ok {
			break
		}
		fileNames = append(fileNames, f)
	}

	data := c.Data()[c.Position():end]
	return &LineTable{
		cu: cu, data: data,
		defaultIsStmt: defaultIsStmt,
		lineBase:      lineBase,
		lineRange:     lineRange,
		opcodeBase:    opcodeBase,
		includeDirs:   includeDirs,
		fileNames:     fileNames,
	}, nil
}

// lineRegisters is the line-number state machine's register file
// (DWARF v4 §6.2.2).
type lineRegisters struct {
	Address         elf.FileAddr
	FileIndex       uint64
	Line            uint64
	Column          uint64
	IsStmt          bool
	BasicBlockStart bool
	EndSequence     bool
	PrologueEnd     bool
	EpilogueBegin   bool
	Discriminator   uint64
}

func newLineRegisters(ef *elf.File, defaultIsStmt bool) lineRegisters {
	return lineRegisters{Address: elf.FileAddr{Elf: ef}, FileIndex: 1, Line: 1, IsStmt: defaultIsStmt}
}

func (r lineRegisters) toEntry(lt *LineTable) LineEntry {
	var fe *LineTableFile
	if r.FileIndex >= 1 && int(r.FileIndex) <= len(lt.fileNames) {
		fe = &lt.fileNames[r.FileIndex-1]
	}
	return LineEntry{
		Address: r.Address, FileIndex: r.FileIndex, FileEntry: fe,
		Line: r.Line, Column: r.Column, IsStmt: r.IsStmt,
		BasicBlockStart: r.BasicBlockStart, EndSequence: r.EndSequence,
		PrologueEnd: r.PrologueEnd, EpilogueBegin: r.EpilogueBegin,
		Discriminator: r.Discriminator,
	}
}

// allEntries runs the line-number bytecode once and caches the resulting
// matrix.
func (lt *LineTable) allEntries() ([]LineEntry, error) {
	if lt.entriesDone {
		return lt.entries, lt.entriesErr
	}
	lt.entries, lt.entriesErr = lt.runProgram()
	lt.entriesDone = true
	return lt.entries, lt.entriesErr
}

// runProgram executes the line-number bytecode from byte 0 of lt.data,
// dispatching special (opcode >= opcode_base), standard, and extended
// opcodes per DWARF v4 §6.2.5.
func (lt *LineTable) runProgram() ([]LineEntry, error) {
	ef := lt.cu.Dwarf().Elf()
	c := NewCursor(lt.data)
	regs := newLineRegisters(ef, lt.defaultIsStmt)
	var entries []LineEntry

	resetSingleShot := func() {
		regs.BasicBlockStart = false
		regs.PrologueEnd = false
		regs.EpilogueBegin = false
		regs.Discriminator = 0
	}

	for !c.Finished() {
		opcode := c.U8()
		switch {
		case opcode == 0: // extended opcode
			length := c.ULEB128()
			opStart := c.Position()
			ext := c.U8()
			switch ext {
			case DW_LNE_end_sequence:
				regs.EndSequence = true
				entries = append(entries, regs.toEntry(lt))
				regs = newLineRegisters(ef, lt.defaultIsStmt)
			case DW_LNE_set_address:
				regs.Address = elf.FileAddr{Elf: ef, Addr: c.U64()}
			case DW_LNE_define_file:
				root, err := lt.cu.Root()
				if err != nil {
					return nil, err
				}
				compDirAttr, err := root.At(DW_AT_comp_dir)
				if err != nil {
					return nil, err
				}
				compDir, err := compDirAttr.AsString()
				if err != nil {
					return nil, err
				}
				if f, ok := parseLineTableFile(c, compDir, lt.includeDirs); ok {
					lt.fileNames = append(lt.fileNames, f)
				}
			case DW_LNE_set_discriminator:
				regs.Discriminator = c.ULEB128()
			default:
				return nil, newErr(UnsupportedLineProgram, "unknown extended opcode 0x%x", ext)
			}
			c.SeekTo(opStart + int(length))

		case opcode < lt.opcodeBase: // standard opcode
			switch opcode {
			case DW_LNS_copy:
				entries = append(entries, regs.toEntry(lt))
				resetSingleShot()
			case DW_LNS_advance_pc:
				regs.Address.Addr += c.ULEB128()
			case DW_LNS_advance_line:
				regs.Line = uint64(int64(regs.Line) + c.SLEB128())
			case DW_LNS_set_file:
				regs.FileIndex = c.ULEB128()
			case DW_LNS_set_column:
				regs.Column = c.ULEB128()
			case DW_LNS_negate_stmt:
				regs.IsStmt = !regs.IsStmt
			case DW_LNS_set_basic_block:
				regs.BasicBlockStart = true
			case DW_LNS_const_add_pc:
				adjusted := 255 - int(lt.opcodeBase)
				regs.Address.Addr += uint64(adjusted / int(lt.lineRange))
			case DW_LNS_fixed_advance_pc:
				regs.Address.Addr += uint64(c.U16())
			case DW_LNS_set_prologue_end:
				regs.PrologueEnd = true
			case DW_LNS_set_epilogue_begin:
				regs.EpilogueBegin = true
			case DW_LNS_set_isa:
				c.ULEB128()
			default:
				return nil, newErr(UnsupportedLineProgram, "unexpected standard opcode 0x%x", opcode)
			}

		default: // special opcode
			adjusted := int(opcode) - int(lt.opcodeBase)
			regs.Address.Addr += uint64(adjusted / int(lt.lineRange))
			regs.Line = uint64(int64(regs.Line) + int64(lt.lineBase) + int64(adjusted%int(lt.lineRange)))
			entries = append(entries, regs.toEntry(lt))
			resetSingleShot()
		}
	}
	return entries, nil
}

// LineIter names one row of a LineTable's decoded matrix.
type LineIter struct {
	table *LineTable
	idx   int
}

// Entry returns the row this iterator names.
func (it *LineIter) Entry() LineEntry { return it.table.entries[it.idx] }

// GetEntryByAddress finds the row describing addr: the last row at or
// before addr within its sequence, provided that row isn't itself an
// end_sequence marker. Returns (nil, nil) if no such row exists.
func (lt *LineTable) GetEntryByAddress(addr elf.FileAddr) (*LineIter, error) {
	entries, err := lt.allEntries()
	if err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(entries); i++ {
		prev, cur := entries[i], entries[i+1]
		if !prev.EndSequence && prev.Address.Addr <= addr.Addr && cur.Address.Addr > addr.Addr {
			return &LineIter{table: lt, idx: i}, nil
		}
	}
	return nil, nil
}

// GetEntriesByLine returns every row whose line number matches line and
// whose file matches filePath. An absolute filePath must match a file
// entry's full path exactly; a relative one matches by path-component
// suffix (e.g. "src/main.cpp" matches ".../project/src/main.cpp").
func (lt *LineTable) GetEntriesByLine(filePath string, line uint64) ([]*LineIter, error) {
	entries, err := lt.allEntries()
	if err != nil {
		return nil, err
	}
	abs := strings.HasPrefix(filePath, "/")
	var out []*LineIter
	for i, e := range entries {
		if e.Line != line || e.FileEntry == nil {
			continue
		}
		if abs {
			if e.FileEntry.Path == filePath {
				out = append(out, &LineIter{table: lt, idx: i})
			}
		} else if pathEndsIn(e.FileEntry.Path, filePath) {
			out = append(out, &LineIter{table: lt, idx: i})
		}
	}
	return out, nil
}

// pathEndsIn reports whether rhs names a suffix of lhs's path components,
// e.g. pathEndsIn("/home/user/proj/src/main.cpp", "src/main.cpp") is true.
func pathEndsIn(lhs, rhs string) bool {
	lparts := strings.Split(strings.Trim(lhs, "/"), "/")
	rparts := strings.Split(strings.Trim(rhs, "/"), "/")
	if len(rparts) > len(lparts) {
		return false
	}
	offset := len(lparts) - len(rparts)
	for i, p := range rparts {
		if lparts[offset+i] != p {
			return false
		}
	}
	return true
}
