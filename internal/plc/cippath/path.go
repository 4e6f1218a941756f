// Package cippath implements spec.md S4.1's CIP connection-path parser and
// CIP symbolic tag-name encoder: pure functions turning textual
// configuration into wire-ready byte vectors.
package cippath

import (
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/tturner/ab-eip-client/internal/plc/dhplus"
	"github.com/tturner/ab-eip-client/internal/plc/status"
)

// MaxPathBytes is the implementation cap on an encoded path's length
// (spec.md S4.1: "~255 bytes").
const MaxPathBytes = 255

// PLCFamily identifies which routing-suffix rule applies after parsing a
// connection path (spec.md S4.1).
type PLCFamily int

const (
	FamilyLogix PLCFamily = iota
	FamilyPLC5
	FamilySLC
	FamilyMicroLogix
	FamilyMicro800
	FamilyOmron
)

// NeedsCIPConnection reports whether this family routes through a CIP
// Class-3 connection suffix (`20 02 24 01`) rather than a DH+ suffix.
func (f PLCFamily) NeedsCIPConnection() bool {
	switch f {
	case FamilyLogix, FamilyMicro800, FamilyOmron:
		return true
	default:
		return false
	}
}

// IsDHPFamily reports whether this family uses the DH+ routing suffix
// (`20 A6 24 <port> 2C 01`) when a DH+ segment terminates the path.
func (f PLCFamily) IsDHPFamily() bool {
	switch f {
	case FamilyPLC5, FamilySLC, FamilyMicroLogix:
		return true
	default:
		return false
	}
}

func (f PLCFamily) String() string {
	switch f {
	case FamilyLogix:
		return "logix"
	case FamilyPLC5:
		return "plc5"
	case FamilySLC:
		return "slc"
	case FamilyMicroLogix:
		return "micrologix"
	case FamilyMicro800:
		return "micro800"
	case FamilyOmron:
		return "omron"
	default:
		return "unknown"
	}
}

// ParseFamily maps a configuration-facing protocol name (as used in a
// gateway profile's `protocol` field or a libplctag-style attribute
// string's `protocol=` value) to a PLCFamily.
func ParseFamily(name string) (PLCFamily, bool) {
	switch strings.ToLower(name) {
	case "logix", "lgx", "ab_eip", "ab-eip", "controllogix", "compactlogix":
		return FamilyLogix, true
	case "plc5", "plc-5", "ab_plc5":
		return FamilyPLC5, true
	case "slc", "slc500", "slc-500", "ab_slc":
		return FamilySLC, true
	case "micrologix", "ab_micrologix":
		return FamilyMicroLogix, true
	case "micro800", "ab_micro800":
		return FamilyMicro800, true
	case "omron", "njnx":
		return FamilyOmron, true
	default:
		return 0, false
	}
}

// ParsedPath is the result of parsing a connection-path string: the
// encoded bytes, their length in 16-bit words, and whether a DH+ terminal
// segment was present (and if so, the destination node for the PCCC
// layer, per spec.md S4.1).
type ParsedPath struct {
	Bytes       []byte
	WordCount   int
	HasDHP      bool
	DHPDestNode byte
	DHPPort     byte
}

var parseCache sync.Map // uint64 -> ParsedPath

// ParseConnectionPath parses a comma-separated CIP connection path string
// and appends the routing suffix appropriate for family. See spec.md
// S4.1/S9-OpenQuestion-1 for the DH+ terminal-segment rule.
//
// Parsed results are memoised by a hash of (raw, family): a tag-create
// storm against the same path string (the common case — many tags behind
// one gateway) does not re-run the token grammar on every call.
func ParseConnectionPath(raw string, family PLCFamily) (ParsedPath, error) {
	key, err := hashstructure.Hash(struct {
		Raw    string
		Family PLCFamily
	}{raw, family}, hashstructure.FormatV2, nil)
	if err == nil {
		if v, ok := parseCache.Load(key); ok {
			return v.(ParsedPath), nil
		}
	}

	result, perr := parseConnectionPathUncached(raw, family)
	if perr != nil {
		return ParsedPath{}, perr
	}
	if err == nil {
		parseCache.Store(key, result)
	}
	return result, nil
}

func parseConnectionPathUncached(raw string, family PLCFamily) (ParsedPath, error) {
	raw = strings.TrimSpace(raw)
	var bytesOut []byte
	var dhpSeen bool
	var dhpDest, dhpPort byte

	if raw != "" {
		tokens := strings.Split(raw, ",")
		for i := 0; i < len(tokens); i++ {
			tok := strings.TrimSpace(tokens[i])
			if dhpSeen {
				return ParsedPath{}, status.New(status.BadParam, "DH+ segment must be the last path segment (token %q follows it)", tok)
			}
			if dhplus.IsTriple(tok) {
				port, dest, err := dhplus.ParseTriple(tok)
				if err != nil {
					return ParsedPath{}, err
				}
				dhpSeen = true
				dhpPort = byte(port)
				dhpDest = dest
				continue
			}
			if tok == "18" || tok == "19" {
				if i+1 >= len(tokens) {
					return ParsedPath{}, status.New(status.BadParam, "extended IP segment %q missing address token", tok)
				}
				i++
				addrTok := strings.TrimSpace(tokens[i])
				segBytes, err := encodeExtendedIP(tok, addrTok)
				if err != nil {
					return ParsedPath{}, err
				}
				bytesOut = append(bytesOut, segBytes...)
				continue
			}
			hop, err := strconv.Atoi(tok)
			if err != nil {
				return ParsedPath{}, status.New(status.BadParam, "unrecognized path token %q", tok)
			}
			if hop < 0 || hop > 15 {
				return ParsedPath{}, status.New(status.OutOfBounds, "path hop %d out of range 0..15", hop)
			}
			bytesOut = append(bytesOut, byte(hop))
		}
	}

	if dhpSeen && family.IsDHPFamily() {
		bytesOut = append(bytesOut, dhplus.RoutingSuffix(dhplus.Port(dhpPort))...)
	} else if family.NeedsCIPConnection() {
		bytesOut = append(bytesOut, 0x20, 0x02, 0x24, 0x01)
	}

	if len(bytesOut)%2 != 0 {
		bytesOut = append(bytesOut, 0x00)
	}

	if len(bytesOut) > MaxPathBytes {
		return ParsedPath{}, status.New(status.TooLarge, "encoded path length %d exceeds cap %d", len(bytesOut), MaxPathBytes)
	}

	return ParsedPath{
		Bytes:       bytesOut,
		WordCount:   len(bytesOut) / 2,
		HasDHP:      dhpSeen,
		DHPDestNode: dhpDest,
		DHPPort:     dhpPort,
	}, nil
}

func encodeExtendedIP(portTok, addrTok string) ([]byte, error) {
	ip := net.ParseIP(addrTok).To4()
	if ip == nil || strings.Count(addrTok, ".") != 3 {
		return nil, status.New(status.BadParam, "invalid IPv4 literal %q in extended path segment", addrTok)
	}
	for _, part := range strings.Split(addrTok, ".") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return nil, status.New(status.BadParam, "invalid IPv4 octet %q", part)
		}
	}
	var segType byte
	switch portTok {
	case "18":
		segType = 18
	case "19":
		segType = 19
	default:
		return nil, status.New(status.BadParam, "unknown extended path segment type %q", portTok)
	}
	lit := []byte(addrTok)
	out := []byte{segType, byte(len(lit))}
	out = append(out, lit...)
	if len(out)%2 != 0 {
		out = append(out, 0x00)
	}
	return out, nil
}
