package dhplus

import (
	"strconv"
	"strings"

	"github.com/tturner/ab-eip-client/internal/plc/status"
)

// Port identifies which backplane port a DH+ segment routes through.
type Port byte

const (
	PortA Port = 1
	PortB Port = 2
)

// IsTriple reports whether tok has the `{A|a|2|B|b|3}:src:dest` shape of
// a DH+ connection-path segment (spec.md S4.1).
func IsTriple(tok string) bool {
	parts := strings.Split(tok, ":")
	if len(parts) != 3 {
		return false
	}
	switch parts[0] {
	case "A", "a", "2", "B", "b", "3":
		return true
	default:
		return false
	}
}

// ParseTriple parses a DH+ triple token into a backplane port and the
// destination node address. The source address is validated but not
// returned: only the destination node matters to the PCCC layer once the
// path has been built (spec.md S4.1: "emit dhp_dest_node for the PCCC
// layer").
func ParseTriple(tok string) (port Port, destNode byte, err error) {
	parts := strings.Split(tok, ":")
	if len(parts) != 3 {
		return 0, 0, status.New(status.BadParam, "malformed DH+ token %q", tok)
	}
	switch parts[0] {
	case "A", "a", "2":
		port = PortA
	case "B", "b", "3":
		port = PortB
	default:
		return 0, 0, status.New(status.BadParam, "unknown DH+ port designator %q", parts[0])
	}
	src, err := strconv.Atoi(parts[1])
	if err != nil || src < 0 || src > MaxNodeAddress {
		return 0, 0, status.New(status.BadParam, "invalid DH+ source address %q", parts[1])
	}
	dst, err := strconv.Atoi(parts[2])
	if err != nil || dst < 0 || dst > MaxNodeAddress {
		return 0, 0, status.New(status.BadParam, "invalid DH+ destination address %q", parts[2])
	}
	return port, byte(dst), nil
}

// RoutingSuffix builds the CIP path suffix that routes through a DH+
// bridge on the given port (spec.md S4.1: `20 A6 24 <port> 2C 01`).
func RoutingSuffix(port Port) []byte {
	return []byte{0x20, 0xA6, 0x24, byte(port), 0x2C, 0x01}
}
