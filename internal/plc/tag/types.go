// Package tag implements spec.md S4.5's Tag Coordinator: the per-tag
// IDLE/READ_REQUEST/READ_RESPONSE/WRITE_REQUEST/WRITE_RESPONSE state
// machine, its read-cache TTL, and the typed byte-buffer accessors an
// application reads and writes values through.
package tag

import (
	"fmt"
	"strings"
)

// DataType is a CIP elementary data type code (spec.md S4.5/S6), extended
// with the unsigned widths libplctag's accessor family exposes; the value
// is sent on the wire as the CIP type code, unsigned ones included.
type DataType uint16

const (
	TypeBOOL   DataType = 0x00C1
	TypeSINT   DataType = 0x00C2
	TypeINT    DataType = 0x00C3
	TypeDINT   DataType = 0x00C4
	TypeLINT   DataType = 0x00C5
	TypeUSINT  DataType = 0x00C6
	TypeUINT   DataType = 0x00C7
	TypeUDINT  DataType = 0x00C8
	TypeULINT  DataType = 0x00C9
	TypeREAL   DataType = 0x00CA
	TypeLREAL  DataType = 0x00CB
	TypeSTRING DataType = 0x00D0
)

// Size returns the element size in bytes for fixed-width types, or -1 for
// STRING (variable length, handled separately).
func (dt DataType) Size() int {
	switch dt {
	case TypeBOOL, TypeSINT, TypeUSINT:
		return 1
	case TypeINT, TypeUINT:
		return 2
	case TypeDINT, TypeUDINT, TypeREAL:
		return 4
	case TypeLINT, TypeULINT, TypeLREAL:
		return 8
	case TypeSTRING:
		return -1
	default:
		return -1
	}
}

func (dt DataType) String() string {
	switch dt {
	case TypeBOOL:
		return "BOOL"
	case TypeSINT:
		return "SINT"
	case TypeINT:
		return "INT"
	case TypeDINT:
		return "DINT"
	case TypeLINT:
		return "LINT"
	case TypeUSINT:
		return "USINT"
	case TypeUINT:
		return "UINT"
	case TypeUDINT:
		return "UDINT"
	case TypeULINT:
		return "ULINT"
	case TypeREAL:
		return "REAL"
	case TypeLREAL:
		return "LREAL"
	case TypeSTRING:
		return "STRING"
	default:
		return fmt.Sprintf("UNKNOWN(0x%04X)", uint16(dt))
	}
}

// ParseDataType maps a tag-profile type name (case sensitive, as written
// in config) to its DataType, matching the set `internal/cipclient/
// types.go`'s CIPTypeCode switch recognizes, extended with the unsigned
// aliases.
func ParseDataType(name string) (DataType, bool) {
	switch name {
	case "BOOL":
		return TypeBOOL, true
	case "SINT":
		return TypeSINT, true
	case "INT":
		return TypeINT, true
	case "DINT":
		return TypeDINT, true
	case "LINT":
		return TypeLINT, true
	case "USINT":
		return TypeUSINT, true
	case "UINT":
		return TypeUINT, true
	case "UDINT":
		return TypeUDINT, true
	case "ULINT":
		return TypeULINT, true
	case "REAL":
		return TypeREAL, true
	case "LREAL":
		return TypeLREAL, true
	case "STRING":
		return TypeSTRING, true
	default:
		return 0, false
	}
}

// ParseElemType maps the libplctag attribute-string `elem_type` key's
// lowercase vocabulary to a DataType ("bool array" and "short string"
// carry no distinct wire type of their own: element count and the
// STRING/BOOL length already express them).
func ParseElemType(name string) (DataType, bool) {
	switch strings.ToLower(name) {
	case "bool", "bool array":
		return TypeBOOL, true
	case "sint":
		return TypeSINT, true
	case "int":
		return TypeINT, true
	case "dint":
		return TypeDINT, true
	case "lint":
		return TypeLINT, true
	case "usint":
		return TypeUSINT, true
	case "uint":
		return TypeUINT, true
	case "udint":
		return TypeUDINT, true
	case "ulint":
		return TypeULINT, true
	case "real":
		return TypeREAL, true
	case "lreal":
		return TypeLREAL, true
	case "string", "short string":
		return TypeSTRING, true
	default:
		return 0, false
	}
}
