package dwarf

// DWARF v4 tag, form, attribute, and opcode constants (DWARF v4 §7). Only
// the subset the engine actually decodes or skips is named; everything
// else still round-trips through SkipForm.
const (
	DW_TAG_array_type          = 0x01
	DW_TAG_class_type          = 0x02
	DW_TAG_enumeration_type    = 0x04
	DW_TAG_member              = 0x0d
	DW_TAG_pointer_type        = 0x0f
	DW_TAG_reference_type      = 0x10
	DW_TAG_compile_unit        = 0x11
	DW_TAG_structure_type      = 0x13
	DW_TAG_subroutine_type     = 0x15
	DW_TAG_typedef             = 0x16
	DW_TAG_union_type          = 0x17
	DW_TAG_unspecified_parameters = 0x18
	DW_TAG_inlined_subroutine  = 0x1d
	DW_TAG_subrange_type       = 0x21
	DW_TAG_base_type           = 0x24
	DW_TAG_const_type          = 0x26
	DW_TAG_subprogram          = 0x2e
	DW_TAG_variable            = 0x34
	DW_TAG_volatile_type       = 0x35
	DW_TAG_rvalue_reference_type = 0x42
	DW_TAG_ptr_to_member_type  = 0x1f
)

const (
	DW_FORM_addr         = 0x01
	DW_FORM_block2       = 0x03
	DW_FORM_block4       = 0x04
	DW_FORM_data2        = 0x05
	DW_FORM_data4        = 0x06
	DW_FORM_data8        = 0x07
	DW_FORM_string       = 0x08
	DW_FORM_block        = 0x09
	DW_FORM_block1       = 0x0a
	DW_FORM_data1        = 0x0b
	DW_FORM_flag         = 0x0c
	DW_FORM_sdata        = 0x0d
	DW_FORM_strp         = 0x0e
	DW_FORM_udata        = 0x0f
	DW_FORM_ref_addr     = 0x10
	DW_FORM_ref1         = 0x11
	DW_FORM_ref2         = 0x12
	DW_FORM_ref4         = 0x13
	DW_FORM_ref8         = 0x14
	DW_FORM_ref_udata    = 0x15
	DW_FORM_indirect     = 0x16
	DW_FORM_sec_offset   = 0x17
	DW_FORM_exprloc      = 0x18
	DW_FORM_flag_present = 0x19
)

const (
	DW_AT_sibling              = 0x01
	DW_AT_location             = 0x02
	DW_AT_name                 = 0x03
	DW_AT_byte_size            = 0x0b
	DW_AT_bit_offset           = 0x0c
	DW_AT_bit_size             = 0x0d
	DW_AT_stmt_list            = 0x10
	DW_AT_low_pc               = 0x11
	DW_AT_high_pc              = 0x12
	DW_AT_language             = 0x13
	DW_AT_comp_dir             = 0x1b
	DW_AT_const_value          = 0x1c
	DW_AT_upper_bound          = 0x2f
	DW_AT_abstract_origin      = 0x31
	DW_AT_count                = 0x37
	DW_AT_data_member_location = 0x38
	DW_AT_decl_file            = 0x3a
	DW_AT_decl_line            = 0x3b
	DW_AT_declaration          = 0x3c
	DW_AT_encoding             = 0x3e
	DW_AT_external             = 0x3f
	DW_AT_frame_base           = 0x40
	DW_AT_specification        = 0x47
	DW_AT_type                 = 0x49
	DW_AT_ranges               = 0x55
	DW_AT_call_file            = 0x58
	DW_AT_call_line            = 0x59
	DW_AT_data_bit_offset      = 0x6b
)

const (
	DW_ATE_address         = 0x01
	DW_ATE_boolean         = 0x02
	DW_ATE_float           = 0x04
	DW_ATE_signed          = 0x05
	DW_ATE_signed_char     = 0x06
	DW_ATE_unsigned        = 0x07
	DW_ATE_unsigned_char   = 0x08
	DW_ATE_UTF             = 0x10
)

// Standard line-number program opcodes (DWARF v4 §6.2.5.2).
const (
	DW_LNS_copy               = 0x01
	DW_LNS_advance_pc         = 0x02
	DW_LNS_advance_line       = 0x03
	DW_LNS_set_file           = 0x04
	DW_LNS_set_column         = 0x05
	DW_LNS_negate_stmt        = 0x06
	DW_LNS_set_basic_block    = 0x07
	DW_LNS_const_add_pc       = 0x08
	DW_LNS_fixed_advance_pc   = 0x09
	DW_LNS_set_prologue_end   = 0x0a
	DW_LNS_set_epilogue_begin = 0x0b
	DW_LNS_set_isa            = 0x0c
)

// Extended line-number program opcodes (DWARF v4 §6.2.5.3).
const (
	DW_LNE_end_sequence      = 0x01
	DW_LNE_set_address       = 0x02
	DW_LNE_define_file       = 0x03
	DW_LNE_set_discriminator = 0x04
)

// expectedOpcodeLengths is the standard-opcode-lengths array a DWARF v4
// line-program header must match, one entry per opcode below opcode_base.
var expectedOpcodeLengths = [12]byte{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1}
