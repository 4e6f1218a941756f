package wire

import (
	"encoding/binary"
	"fmt"
)

// CIP service codes used by this client (spec.md S4.2/S6).
const (
	ServiceForwardOpen      byte = 0x54
	ServiceForwardOpenLarge byte = 0x5B
	ServiceForwardClose     byte = 0x4E
	ServiceReadTag          byte = 0x4C
	ServiceReadTagFrag      byte = 0x52
	ServiceWriteTag         byte = 0x4D
	ServiceWriteTagFrag     byte = 0x53
	ServiceReadModifyWrite  byte = 0x4E
	ServicePCCCExecute      byte = 0x4B
	ServiceMultipleService  byte = 0x0A
)

const responseBit byte = 0x80

// wire constants from spec.md S6.
const (
	OriginatorVendorID uint16 = 0xF33D
	OriginatorSerial   uint32 = 0x21504345
	TransportClassA3   byte   = 0xA3
	TickTimeMs         byte   = 10
	TimeoutTicks       byte   = 5
)

// Connection params (spec.md S6).
const (
	ConnParamsPLC5SLC  uint16 = 0x4302
	ConnParamsLogix504 uint16 = 0x43F8
	ConnParamsGeneric  uint16 = 0x4200
)

const DefaultRPIMicros uint32 = 1_000_000

// RequestHeader is the CIP request service header: service code + request
// path (spec.md S4.2).
type RequestHeader struct {
	Service byte
	Path    []byte // already-encoded path bytes (even length)
}

// PackRequestHeader writes the service byte, path-size-in-words byte, and
// path bytes.
func PackRequestHeader(h RequestHeader) ([]byte, error) {
	if len(h.Path)%2 != 0 {
		return nil, fmt.Errorf("wire: request path length %d is not even", len(h.Path))
	}
	buf := make([]byte, 2+len(h.Path))
	buf[0] = h.Service
	buf[1] = byte(len(h.Path) / 2)
	copy(buf[2:], h.Path)
	return buf, nil
}

// UnpackRequestHeader reads a service header from the front of data and
// returns the remaining service-specific body.
func UnpackRequestHeader(data []byte) (RequestHeader, []byte, error) {
	if len(data) < 2 {
		return RequestHeader{}, nil, fmt.Errorf("wire: request header too short")
	}
	service := data[0]
	pathWords := int(data[1])
	pathLen := pathWords * 2
	if len(data) < 2+pathLen {
		return RequestHeader{}, nil, fmt.Errorf("wire: request path truncated")
	}
	return RequestHeader{Service: service, Path: data[2 : 2+pathLen]}, data[2+pathLen:], nil
}

// ResponseHeader is the CIP response service header (spec.md S4.2): the
// service code with the response bit set, a reserved byte, the general
// status, and any additional status words.
type ResponseHeader struct {
	Service         byte // echoes request service, with 0x80 set
	GeneralStatus   byte
	AdditionalSts   []uint16
}

// UnpackResponseHeader reads a CIP response header from the front of data
// and returns the remaining service-specific reply body.
func UnpackResponseHeader(data []byte) (ResponseHeader, []byte, error) {
	if len(data) < 4 {
		return ResponseHeader{}, nil, fmt.Errorf("wire: response header too short")
	}
	service := data[0]
	// data[1] is reserved
	general := data[2]
	extWords := int(data[3])
	offset := 4
	var ext []uint16
	for i := 0; i < extWords; i++ {
		if offset+2 > len(data) {
			return ResponseHeader{}, nil, fmt.Errorf("wire: additional status truncated")
		}
		ext = append(ext, binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
	}
	return ResponseHeader{Service: service, GeneralStatus: general, AdditionalSts: ext}, data[offset:], nil
}

// PackResponseHeader writes a CIP response header (used by the test
// simulator).
func PackResponseHeader(h ResponseHeader) []byte {
	buf := []byte{h.Service | responseBit, 0x00, h.GeneralStatus, byte(len(h.AdditionalSts))}
	for _, w := range h.AdditionalSts {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], w)
		buf = append(buf, b[:]...)
	}
	return buf
}

// RequestService strips the response bit from a reply service code to
// recover the service it answers.
func RequestService(replyService byte) byte {
	return replyService &^ responseBit
}

// IsReply reports whether a service code has the response bit set.
func IsReply(service byte) bool {
	return service&responseBit != 0
}

// --- CIP Read/Write Tag ---

// BuildReadTagRequest builds a Read Tag (0x4C) request body: element count.
func BuildReadTagRequest(path []byte, elementCount uint16) ([]byte, error) {
	hdr, err := PackRequestHeader(RequestHeader{Service: ServiceReadTag, Path: path})
	if err != nil {
		return nil, err
	}
	body := make([]byte, 2)
	binary.LittleEndian.PutUint16(body, elementCount)
	return append(hdr, body...), nil
}

// BuildReadTagFragmentedRequest builds a Read Tag Fragmented (0x52) request
// body: element count + byte offset.
func BuildReadTagFragmentedRequest(path []byte, elementCount uint16, byteOffset uint32) ([]byte, error) {
	hdr, err := PackRequestHeader(RequestHeader{Service: ServiceReadTagFrag, Path: path})
	if err != nil {
		return nil, err
	}
	body := make([]byte, 6)
	binary.LittleEndian.PutUint16(body[0:], elementCount)
	binary.LittleEndian.PutUint32(body[2:], byteOffset)
	return append(hdr, body...), nil
}

// ReadTagReply holds the parsed body of a successful (or partial, status
// 0x06) CIP Read Tag / Read Tag Fragmented reply.
type ReadTagReply struct {
	TypeCode uint16 // present only on the first fragment
	HasType  bool
	Data     []byte
}

// ParseReadTagReplyBody parses the service-specific body after the CIP
// response header. firstFragment selects whether a type code prefix is
// expected (spec.md S4.2: "implementers emit the type code only once, on
// the first fragment").
func ParseReadTagReplyBody(body []byte, firstFragment bool) (ReadTagReply, error) {
	var r ReadTagReply
	if firstFragment {
		if len(body) < 2 {
			return r, fmt.Errorf("wire: read-tag reply missing type code")
		}
		r.TypeCode = binary.LittleEndian.Uint16(body[0:2])
		r.HasType = true
		r.Data = body[2:]
		return r, nil
	}
	r.Data = body
	return r, nil
}

// BuildWriteTagRequest builds a Write Tag (0x4D) request body: type,
// element count, data.
func BuildWriteTagRequest(path []byte, typeCode uint16, elementCount uint16, data []byte) ([]byte, error) {
	hdr, err := PackRequestHeader(RequestHeader{Service: ServiceWriteTag, Path: path})
	if err != nil {
		return nil, err
	}
	body := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint16(body[0:], typeCode)
	binary.LittleEndian.PutUint16(body[2:], elementCount)
	copy(body[4:], data)
	return append(hdr, body...), nil
}

// BuildWriteTagFragmentedRequest builds a Write Tag Fragmented (0x53)
// request body: type, element count, byte offset, data.
func BuildWriteTagFragmentedRequest(path []byte, typeCode uint16, elementCount uint16, byteOffset uint32, data []byte) ([]byte, error) {
	hdr, err := PackRequestHeader(RequestHeader{Service: ServiceWriteTagFrag, Path: path})
	if err != nil {
		return nil, err
	}
	body := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint16(body[0:], typeCode)
	binary.LittleEndian.PutUint16(body[2:], elementCount)
	binary.LittleEndian.PutUint32(body[4:], byteOffset)
	copy(body[8:], data)
	return append(hdr, body...), nil
}

// BuildReadModifyWriteRequest builds a CIP Read-Modify-Write Tag (0x4E)
// request body: mask length, OR mask, AND mask (spec.md S4.5: bit-
// addressed writes never use Write Tag, which would clobber the word's
// other bits). orMask and andMask must be the same length, equal to the
// byte width of the element holding the addressed bit.
func BuildReadModifyWriteRequest(path []byte, orMask, andMask []byte) ([]byte, error) {
	if len(orMask) != len(andMask) {
		return nil, fmt.Errorf("wire: read-modify-write masks differ in length (%d vs %d)", len(orMask), len(andMask))
	}
	hdr, err := PackRequestHeader(RequestHeader{Service: ServiceReadModifyWrite, Path: path})
	if err != nil {
		return nil, err
	}
	body := make([]byte, 2, 2+2*len(orMask))
	binary.LittleEndian.PutUint16(body, uint16(len(orMask)))
	body = append(body, orMask...)
	body = append(body, andMask...)
	return append(hdr, body...), nil
}

// --- Forward Open / Forward Close ---

// ConnectionManagerPath is the fixed `20 06 24 01` EPATH to the Connection
// Manager, instance 1.
var ConnectionManagerPath = []byte{0x20, 0x06, 0x24, 0x01}

// MessageRouterPath is the fixed `20 02 24 01` EPATH to the Message
// Router, instance 1, used for plain CIP-connection routing suffixes and
// Multiple Service Packet requests.
var MessageRouterPath = []byte{0x20, 0x02, 0x24, 0x01}

// PCCCObjectPath is the fixed `20 67 24 01` EPATH to the PCCC object,
// instance 1, used by PCCC-Execute requests.
var PCCCObjectPath = []byte{0x20, 0x67, 0x24, 0x01}

// ForwardOpenParams carries the fields spec.md S4.2 requires for both the
// classic and Large Forward Open service bodies.
type ForwardOpenParams struct {
	Large                bool
	ConnectionSerial     uint16
	OToTConnID           uint32
	TToOConnID           uint32
	TimeoutMultiplier    byte
	RPIMicros            uint32
	OToTConnParams       uint32 // for Large, full 32-bit value; for classic, low 16 bits used
	TToOConnParams       uint32
	ConnectionPath       []byte // already-encoded route to the target, e.g. backplane/slot + Message Router
}

// BuildForwardOpenRequest builds a Forward Open (0x54) or Large Forward
// Open (0x5B) request, per spec.md S4.2/S6.
func BuildForwardOpenRequest(p ForwardOpenParams) ([]byte, error) {
	service := ServiceForwardOpen
	if p.Large {
		service = ServiceForwardOpenLarge
	}
	hdr, err := PackRequestHeader(RequestHeader{Service: service, Path: ConnectionManagerPath})
	if err != nil {
		return nil, err
	}

	pathWords := len(p.ConnectionPath) / 2
	if len(p.ConnectionPath)%2 != 0 {
		return nil, fmt.Errorf("wire: forward-open connection path must be even length")
	}

	body := make([]byte, 0, 32+len(p.ConnectionPath))
	body = append(body, TickTimeMs, TimeoutTicks)
	body = binary.LittleEndian.AppendUint32(body, p.OToTConnID)
	body = binary.LittleEndian.AppendUint32(body, p.TToOConnID)
	body = binary.LittleEndian.AppendUint16(body, p.ConnectionSerial)
	body = binary.LittleEndian.AppendUint16(body, OriginatorVendorID)
	body = binary.LittleEndian.AppendUint32(body, OriginatorSerial)
	body = append(body, p.TimeoutMultiplier, 0, 0, 0)
	body = binary.LittleEndian.AppendUint32(body, p.RPIMicros)
	if p.Large {
		body = binary.LittleEndian.AppendUint32(body, p.OToTConnParams)
	} else {
		body = binary.LittleEndian.AppendUint16(body, uint16(p.OToTConnParams))
	}
	body = binary.LittleEndian.AppendUint32(body, p.RPIMicros)
	if p.Large {
		body = binary.LittleEndian.AppendUint32(body, p.TToOConnParams)
	} else {
		body = binary.LittleEndian.AppendUint16(body, uint16(p.TToOConnParams))
	}
	body = append(body, TransportClassA3)
	body = append(body, byte(pathWords))
	body = append(body, p.ConnectionPath...)

	return append(hdr, body...), nil
}

// ForwardOpenReply is the parsed body of a successful Forward Open reply.
type ForwardOpenReply struct {
	OToTConnID       uint32
	TToOConnID       uint32
	ConnectionSerial uint16
	OriginatorVendor uint16
	OriginatorSerial uint32
	TimeoutMult      byte
	OToTActualRPI    uint32
	TToOActualRPI    uint32
}

// ParseForwardOpenReplyBody parses a successful Forward Open reply body
// (after the CIP response header has already been stripped).
func ParseForwardOpenReplyBody(body []byte) (ForwardOpenReply, error) {
	if len(body) < 28 {
		return ForwardOpenReply{}, fmt.Errorf("wire: forward-open reply too short: %d bytes", len(body))
	}
	var r ForwardOpenReply
	r.OToTConnID = binary.LittleEndian.Uint32(body[0:])
	r.TToOConnID = binary.LittleEndian.Uint32(body[4:])
	r.ConnectionSerial = binary.LittleEndian.Uint16(body[8:])
	r.OriginatorVendor = binary.LittleEndian.Uint16(body[10:])
	r.OriginatorSerial = binary.LittleEndian.Uint32(body[12:])
	r.TimeoutMult = body[16]
	r.OToTActualRPI = binary.LittleEndian.Uint32(body[20:])
	r.TToOActualRPI = binary.LittleEndian.Uint32(body[24:])
	return r, nil
}

// BuildForwardCloseRequest builds a Forward Close (0x4E) request.
func BuildForwardCloseRequest(connectionSerial uint16, connectionPath []byte) ([]byte, error) {
	hdr, err := PackRequestHeader(RequestHeader{Service: ServiceForwardClose, Path: ConnectionManagerPath})
	if err != nil {
		return nil, err
	}
	if len(connectionPath)%2 != 0 {
		return nil, fmt.Errorf("wire: forward-close connection path must be even length")
	}
	body := make([]byte, 0, 8+len(connectionPath))
	body = append(body, TickTimeMs, TimeoutTicks)
	body = binary.LittleEndian.AppendUint16(body, connectionSerial)
	body = binary.LittleEndian.AppendUint16(body, OriginatorVendorID)
	body = binary.LittleEndian.AppendUint32(body, OriginatorSerial)
	body = append(body, byte(len(connectionPath)/2), 0)
	body = append(body, connectionPath...)
	return append(hdr, body...), nil
}

// --- Multiple Service Packet ---

// BuildMultipleServicePacket packs sub-requests (each a fully encoded CIP
// request, service header included) into one Multiple Service Packet
// (0x0A) request, per spec.md S4.2.
func BuildMultipleServicePacket(subRequests [][]byte) ([]byte, error) {
	hdr, err := PackRequestHeader(RequestHeader{Service: ServiceMultipleService, Path: MessageRouterPath})
	if err != nil {
		return nil, err
	}
	n := len(subRequests)
	offsets := make([]uint16, n)
	base := 2 + 2*n
	cursor := base
	for i, r := range subRequests {
		offsets[i] = uint16(cursor)
		cursor += len(r)
	}
	body := make([]byte, 0, cursor)
	body = binary.LittleEndian.AppendUint16(body, uint16(n))
	for _, off := range offsets {
		body = binary.LittleEndian.AppendUint16(body, off)
	}
	for _, r := range subRequests {
		body = append(body, r...)
	}
	return append(hdr, body...), nil
}

// ParseMultipleServiceReplyBody splits a Multiple Service Packet reply
// body into its per-request sub-reply slices (each still carrying its own
// CIP response header).
func ParseMultipleServiceReplyBody(body []byte) ([][]byte, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("wire: multiple-service reply too short")
	}
	n := int(binary.LittleEndian.Uint16(body[0:]))
	if len(body) < 2+2*n {
		return nil, fmt.Errorf("wire: multiple-service reply offsets truncated")
	}
	offsets := make([]int, n)
	for i := 0; i < n; i++ {
		offsets[i] = int(binary.LittleEndian.Uint16(body[2+2*i:]))
	}
	replies := make([][]byte, n)
	for i := 0; i < n; i++ {
		start := offsets[i]
		end := len(body)
		if i+1 < n {
			end = offsets[i+1]
		}
		if start > len(body) || end > len(body) || start > end {
			return nil, fmt.Errorf("wire: multiple-service reply sub-reply %d out of range", i)
		}
		replies[i] = body[start:end]
	}
	return replies, nil
}

// --- PCCC-Execute ---

// PCCCExecuteParams carries the PCCC-Execute (CIP 0x4B) envelope fields
// (spec.md S4.2).
type PCCCExecuteParams struct {
	VendorID       uint16
	VendorSerial   uint32
	PCCCCommand    []byte // CMD,STS,TNS,[FNC],data - from internal/plc/pccc codec
}

// RequestorIDLen is the fixed requestor-id length PCCC-Execute uses (the
// ASCII "AB_API" style requestor id libplctag sends is 7 bytes including
// length, matching spec.md S4.2's `requestor_id_len=7`).
const RequestorIDLen = 7

// BuildPCCCExecuteRequest builds a PCCC-Execute (0x4B) request wrapping an
// already-encoded PCCC command block.
func BuildPCCCExecuteRequest(path []byte, p PCCCExecuteParams) ([]byte, error) {
	hdr, err := PackRequestHeader(RequestHeader{Service: ServicePCCCExecute, Path: path})
	if err != nil {
		return nil, err
	}
	body := make([]byte, 0, 1+RequestorIDLen+2+4+len(p.PCCCCommand))
	body = append(body, RequestorIDLen)
	// 7-byte requestor id: vendor-specific; we emit the vendor id and
	// serial padded to fill it, matching the original's AB requestor id
	// convention closely enough for a same-stack client/simulator pair.
	body = binary.LittleEndian.AppendUint16(body, p.VendorID)
	body = binary.LittleEndian.AppendUint32(body, p.VendorSerial)
	body = append(body, 0) // pad to 7 bytes total
	body = append(body, p.PCCCCommand...)
	return append(hdr, body...), nil
}

// ParsePCCCExecuteReplyBody strips the fixed PCCC-Execute reply prefix
// (none beyond the CIP response header itself) and returns the PCCC
// command-block bytes for the pccc package to decode.
func ParsePCCCExecuteReplyBody(body []byte) ([]byte, error) {
	return body, nil
}
