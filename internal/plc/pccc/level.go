package pccc

// Variable-width numeric field encoding shared by the PLC-5 "level" form
// and the SLC "typed-logical" form: values 0..254 pack into one byte,
// values >= 255 pack into a 0xFF escape followed by a little-endian
// 16-bit value.

import (
	"encoding/binary"
	"fmt"
)

func putLevelNumber(buf []byte, n uint16) []byte {
	if n <= 254 {
		return append(buf, byte(n))
	}
	var w [2]byte
	binary.LittleEndian.PutUint16(w[:], n)
	return append(buf, 0xFF, w[0], w[1])
}

func getLevelNumber(data []byte) (uint16, []byte, error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("pccc: truncated level-encoded number")
	}
	if data[0] != 0xFF {
		return uint16(data[0]), data[1:], nil
	}
	if len(data) < 3 {
		return 0, nil, fmt.Errorf("pccc: truncated escaped level-encoded number")
	}
	return binary.LittleEndian.Uint16(data[1:3]), data[3:], nil
}

// EncodePLC5Level encodes addr using the PLC-5 "level" form: a level-flag
// byte (0x06 for a two-level address, 0x0E when a sub-element is present)
// followed by variable-width file-number, element-number, and (if
// present) sub-element-number fields.
func EncodePLC5Level(addr Address) ([]byte, error) {
	var out []byte
	if addr.HasSub {
		out = append(out, 0x0E)
	} else {
		out = append(out, 0x06)
	}
	out = putLevelNumber(out, uint16(addr.FileNumber))
	out = putLevelNumber(out, addr.Element)
	if addr.HasSub {
		out = putLevelNumber(out, uint16(addr.SubElement))
	}
	return out, nil
}

// DecodePLC5Level parses a PLC-5 level-form address. The caller must
// supply fileType and (if the address carries a bit reference) bitNumber
// separately, since the level form carries no file-type code: the CIP
// PCCC-Execute path conveys the file type out of band (spec.md S4.1).
func DecodePLC5Level(data []byte, fileType FileType) (Address, []byte, error) {
	if len(data) < 1 {
		return Address{}, nil, fmt.Errorf("pccc: empty level-encoded address")
	}
	flag := data[0]
	rest := data[1:]

	fileNum, rest, err := getLevelNumber(rest)
	if err != nil {
		return Address{}, nil, err
	}
	elem, rest, err := getLevelNumber(rest)
	if err != nil {
		return Address{}, nil, err
	}
	addr := Address{
		FileType:   fileType,
		FileNumber: uint8(fileNum),
		Element:    elem,
		BitNumber:  -1,
	}
	if flag == 0x0E {
		sub, remaining, err := getLevelNumber(rest)
		if err != nil {
			return Address{}, nil, err
		}
		addr.SubElement = uint8(sub)
		addr.HasSub = true
		rest = remaining
	}
	return addr, rest, nil
}

// EncodeSLCTypedLogical encodes addr using the SLC "typed-logical" form:
// variable-width file-number, file-type-code, element-number, and
// sub-element-number fields. Fails with an error if the file-type code is
// zero (unknown type), per spec.md S4.1.
func EncodeSLCTypedLogical(addr Address) ([]byte, error) {
	if addr.FileType == 0 {
		return nil, fmt.Errorf("pccc: BAD_PARAM: unknown file-type code for address %q", addr.RawAddress)
	}
	var out []byte
	out = putLevelNumber(out, uint16(addr.FileNumber))
	out = putLevelNumber(out, uint16(addr.FileType))
	out = putLevelNumber(out, addr.Element)
	sub := uint16(0)
	if addr.HasSub {
		sub = uint16(addr.SubElement)
	}
	out = putLevelNumber(out, sub)
	return out, nil
}

// DecodeSLCTypedLogical parses an SLC typed-logical address.
func DecodeSLCTypedLogical(data []byte) (Address, []byte, error) {
	fileNum, rest, err := getLevelNumber(data)
	if err != nil {
		return Address{}, nil, err
	}
	fileType, rest, err := getLevelNumber(rest)
	if err != nil {
		return Address{}, nil, err
	}
	if fileType == 0 {
		return Address{}, nil, fmt.Errorf("pccc: BAD_PARAM: unknown file-type code 0 in typed-logical address")
	}
	elem, rest, err := getLevelNumber(rest)
	if err != nil {
		return Address{}, nil, err
	}
	sub, rest, err := getLevelNumber(rest)
	if err != nil {
		return Address{}, nil, err
	}
	addr := Address{
		FileType:   FileType(fileType),
		FileNumber: uint8(fileNum),
		Element:    elem,
		SubElement: uint8(sub),
		HasSub:     sub != 0,
		BitNumber:  -1,
	}
	return addr, rest, nil
}
