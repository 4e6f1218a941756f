package pccc

// PCCC function codes used with CmdExtended (CMD 0x0F) when tunnelled
// through CIP PCCC-Execute (service 0x4B).

const (
	// FncEcho requests an echo response from the processor.
	FncEcho FunctionCode = 0x06

	// FncSetCPUMode changes the processor operating mode.
	FncSetCPUMode FunctionCode = 0x3A

	// FncPLC5TypedWrite is the PLC-5 typed write function.
	FncPLC5TypedWrite FunctionCode = 0x00

	// FncPLC5TypedRead is the PLC-5 typed read function.
	FncPLC5TypedRead FunctionCode = 0x01

	// FncPLC5ReadModifyWrite performs a PLC-5 read-modify-write (bit mask).
	FncPLC5ReadModifyWrite FunctionCode = 0x26

	// FncTypedWrite is the PCCC-on-CIP typed logical write: the most
	// common write against a PLC-5/SLC data table over the CIP tunnel.
	// Data: byte_count(1), file_number(1), file_type(1), element(1), [sub_element(1)], data...
	FncTypedWrite FunctionCode = 0x67

	// FncTypedRead is the PCCC-on-CIP typed logical read: the most common
	// read against a PLC-5/SLC data table over the CIP tunnel.
	// Data: byte_count(1), file_number(1), file_type(1), element(1), [sub_element(1)]
	FncTypedRead FunctionCode = 0x68

	// FncSLCProtectedTypedLogicalRead reads an SLC-500 file using the
	// variable-width typed-logical address form.
	FncSLCProtectedTypedLogicalRead FunctionCode = 0xA2

	// FncSLCProtectedTypedLogicalWrite writes an SLC-500 file using the
	// variable-width typed-logical address form.
	FncSLCProtectedTypedLogicalWrite FunctionCode = 0xAA

	// FncSLCProtectedTypedLogicalBitWrite performs a masked bit write
	// against an SLC-500 file (AND-mask / OR-mask pair).
	FncSLCProtectedTypedLogicalBitWrite FunctionCode = 0xAB

	// FncDiagnosticRead reads diagnostic counters.
	FncDiagnosticRead FunctionCode = 0x41

	// FncChangeMode switches between program/run/test modes.
	// Mode values: 0x01=Program, 0x06=Run, 0x07=Test
	FncChangeMode FunctionCode = 0x80

	// FncReadSLCFileInfo reads SLC file directory information.
	FncReadSLCFileInfo FunctionCode = 0x87
)

// String returns a human-readable name for the function code.
func (f FunctionCode) String() string {
	switch f {
	case FncEcho:
		return "Echo"
	case FncSetCPUMode:
		return "Set_CPU_Mode"
	case FncPLC5TypedWrite:
		return "PLC5_Typed_Write"
	case FncPLC5TypedRead:
		return "PLC5_Typed_Read"
	case FncPLC5ReadModifyWrite:
		return "PLC5_Read_Modify_Write"
	case FncTypedRead:
		return "Typed_Read"
	case FncTypedWrite:
		return "Typed_Write"
	case FncSLCProtectedTypedLogicalRead:
		return "SLC_Protected_Typed_Logical_Read"
	case FncSLCProtectedTypedLogicalWrite:
		return "SLC_Protected_Typed_Logical_Write"
	case FncSLCProtectedTypedLogicalBitWrite:
		return "SLC_Protected_Typed_Logical_Bit_Write"
	case FncDiagnosticRead:
		return "Diagnostic_Read"
	case FncChangeMode:
		return "Change_Mode"
	case FncReadSLCFileInfo:
		return "Read_SLC_File_Info"
	default:
		return "Unknown"
	}
}

// IsRead returns true if the function code is a read operation.
func (f FunctionCode) IsRead() bool {
	switch f {
	case FncTypedRead, FncPLC5TypedRead, FncSLCProtectedTypedLogicalRead,
		FncDiagnosticRead, FncReadSLCFileInfo, FncEcho:
		return true
	default:
		return false
	}
}

// IsWrite returns true if the function code is a write operation.
func (f FunctionCode) IsWrite() bool {
	switch f {
	case FncTypedWrite, FncPLC5TypedWrite, FncPLC5ReadModifyWrite,
		FncSLCProtectedTypedLogicalWrite, FncSLCProtectedTypedLogicalBitWrite:
		return true
	default:
		return false
	}
}

// HasFunctionCode returns true if the command uses a function code byte.
func (c Command) HasFunctionCode() bool {
	return c == CmdExtended
}
