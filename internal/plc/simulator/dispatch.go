package simulator

import (
	"encoding/binary"

	"github.com/tturner/ab-eip-client/internal/plc/pccc"
	"github.com/tturner/ab-eip-client/internal/plc/wire"
)

// Rockwell general status codes this gateway emits.
const (
	genStatusSuccess       byte = 0x00
	genStatusPathDest      byte = 0x05 // path destination unknown (no such tag/file)
	genStatusPartial       byte = 0x06 // partial transfer (fragmented reply continues)
	genStatusInvalidParam  byte = 0x20
	genStatusConnNotFound  byte = 0x02 // resource unavailable (unknown connection on Forward Close)
)

// dispatchCIP decodes one CIP request (service header + body) and returns
// the corresponding CIP reply bytes (response header + body), including on
// error (replies always carry a response header so the client's decoder
// never sees a truncated frame).
func (gw *Gateway) dispatchCIP(sess *gwSession, req []byte) []byte {
	rh, body, err := wire.UnpackRequestHeader(req)
	if err != nil {
		return buildErrorReply(0, genStatusInvalidParam)
	}

	// ServiceForwardClose and ServiceReadModifyWrite share the 0x4E byte
	// (real CIP scopes service codes per target object class, not
	// globally); the Connection Manager path is how a real gateway tells
	// them apart, so check it before falling into the main switch.
	if rh.Service == wire.ServiceForwardClose && pathEqual(rh.Path, wire.ConnectionManagerPath) {
		return gw.handleForwardClose(sess, rh.Service, body)
	}

	switch rh.Service {
	case wire.ServiceForwardOpen, wire.ServiceForwardOpenLarge:
		return gw.handleForwardOpen(sess, rh.Service, body)
	case wire.ServiceReadModifyWrite:
		return gw.handleReadModifyWrite(rh.Service, rh.Path, body)
	case wire.ServiceReadTag:
		return gw.handleReadTag(rh.Service, rh.Path, body, false)
	case wire.ServiceReadTagFrag:
		return gw.handleReadTag(rh.Service, rh.Path, body, true)
	case wire.ServiceWriteTag:
		return gw.handleWriteTag(rh.Service, rh.Path, body, false)
	case wire.ServiceWriteTagFrag:
		return gw.handleWriteTag(rh.Service, rh.Path, body, true)
	case wire.ServicePCCCExecute:
		return gw.handlePCCCExecute(rh.Service, body)
	case wire.ServiceMultipleService:
		return gw.handleMultipleService(sess, rh.Service, body)
	default:
		return buildErrorReply(rh.Service, genStatusInvalidParam)
	}
}

// pathEqual reports whether two encoded EPATHs are byte-identical.
func pathEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// handleForwardOpen assigns a fresh pair of connection ids and records a
// gwConnection keyed by the O->T id (the id the client will address every
// subsequent SendUnitData frame to), per the addressing convention this
// client's ioworker implements: it sends using sess.OToTConnID and expects
// replies addressed with sess.TToOConnID.
func (gw *Gateway) handleForwardOpen(sess *gwSession, service byte, body []byte) []byte {
	if len(body) < 2 {
		return buildErrorReply(service, genStatusInvalidParam)
	}
	// body[10:12] is the connection serial regardless of classic/large
	// framing (tick/timeout(2) + OToT(4) + TToO(4) + serial(2) + ...).
	if len(body) < 12 {
		return buildErrorReply(service, genStatusInvalidParam)
	}
	serial := binary.LittleEndian.Uint16(body[10:12])

	gw.mu.Lock()
	gw.nextConnID++
	oToT := gw.nextConnID
	gw.nextConnID++
	tToO := gw.nextConnID
	gw.mu.Unlock()

	conn := &gwConnection{oToT: oToT, tToO: tToO, serial: serial}
	sess.mu.Lock()
	sess.conns[oToT] = conn
	sess.mu.Unlock()

	gw.log.LogSessionEvent("simulator", "forward open accepted")

	replyBody := make([]byte, 0, 26)
	replyBody = binary.LittleEndian.AppendUint32(replyBody, oToT)
	replyBody = binary.LittleEndian.AppendUint32(replyBody, tToO)
	replyBody = binary.LittleEndian.AppendUint16(replyBody, serial)
	replyBody = binary.LittleEndian.AppendUint16(replyBody, wire.OriginatorVendorID)
	replyBody = binary.LittleEndian.AppendUint32(replyBody, wire.OriginatorSerial)
	replyBody = append(replyBody, 0) // actual timeout multiplier
	replyBody = append(replyBody, 0, 0, 0)
	replyBody = binary.LittleEndian.AppendUint32(replyBody, wire.DefaultRPIMicros)
	replyBody = binary.LittleEndian.AppendUint32(replyBody, wire.DefaultRPIMicros)

	hdr := wire.PackResponseHeader(wire.ResponseHeader{Service: service, GeneralStatus: genStatusSuccess})
	return append(hdr, replyBody...)
}

func (gw *Gateway) handleForwardClose(sess *gwSession, service byte, body []byte) []byte {
	if len(body) < 4 {
		return buildErrorReply(service, genStatusInvalidParam)
	}
	serial := binary.LittleEndian.Uint16(body[2:4])

	sess.mu.Lock()
	var found uint32
	ok := false
	for id, c := range sess.conns {
		if c.serial == serial {
			found, ok = id, true
			break
		}
	}
	if ok {
		delete(sess.conns, found)
	}
	sess.mu.Unlock()

	if !ok {
		return buildErrorReply(service, genStatusConnNotFound)
	}
	gw.log.LogSessionEvent("simulator", "forward close accepted")
	hdr := wire.PackResponseHeader(wire.ResponseHeader{Service: service, GeneralStatus: genStatusSuccess})
	return append(hdr, 0, 0, 0, 0)
}

// handleReadTag serves Read Tag / Read Tag Fragmented against the Logix
// symbolic-tag namespace. When the remaining bytes beyond the requested
// fragment offset exceed FragmentBytes, it returns only a chunk and
// general status 0x06, exercising this client's partial-transfer
// continuation path.
func (gw *Gateway) handleReadTag(service byte, path, body []byte, fragmented bool) []byte {
	var elementCount uint16
	var byteOffset uint32
	if fragmented {
		if len(body) < 6 {
			return buildErrorReply(service, genStatusInvalidParam)
		}
		elementCount = binary.LittleEndian.Uint16(body[0:2])
		byteOffset = binary.LittleEndian.Uint32(body[2:6])
	} else {
		if len(body) < 2 {
			return buildErrorReply(service, genStatusInvalidParam)
		}
		elementCount = binary.LittleEndian.Uint16(body[0:2])
	}
	_ = elementCount

	gw.mu.Lock()
	v, ok := gw.logixTags[string(path)]
	gw.mu.Unlock()
	if !ok {
		return buildErrorReply(service, genStatusPathDest)
	}

	if int(byteOffset) > len(v.Data) {
		return buildErrorReply(service, genStatusInvalidParam)
	}
	remaining := v.Data[byteOffset:]

	chunk := remaining
	partial := false
	if len(chunk) > FragmentBytes {
		chunk = chunk[:FragmentBytes]
		partial = true
	}

	var replyBody []byte
	if byteOffset == 0 {
		replyBody = make([]byte, 2+len(chunk))
		binary.LittleEndian.PutUint16(replyBody, v.TypeCode)
		copy(replyBody[2:], chunk)
	} else {
		replyBody = make([]byte, len(chunk))
		copy(replyBody, chunk)
	}

	status := genStatusSuccess
	if partial {
		status = genStatusPartial
	}
	hdr := wire.PackResponseHeader(wire.ResponseHeader{Service: service, GeneralStatus: status})
	return append(hdr, replyBody...)
}

// handleWriteTag serves Write Tag / Write Tag Fragmented: byteOffset
// addresses into the tag's backing buffer, growing it to accommodate an
// element count mismatch never occurs in practice here since SetLogixTag
// always sizes the buffer up front.
func (gw *Gateway) handleWriteTag(service byte, path, body []byte, fragmented bool) []byte {
	var typeCode uint16
	var byteOffset uint32
	var data []byte
	if fragmented {
		if len(body) < 8 {
			return buildErrorReply(service, genStatusInvalidParam)
		}
		typeCode = binary.LittleEndian.Uint16(body[0:2])
		byteOffset = binary.LittleEndian.Uint32(body[4:8])
		data = body[8:]
	} else {
		if len(body) < 4 {
			return buildErrorReply(service, genStatusInvalidParam)
		}
		typeCode = binary.LittleEndian.Uint16(body[0:2])
		data = body[4:]
	}

	gw.mu.Lock()
	v, ok := gw.logixTags[string(path)]
	if ok {
		if need := int(byteOffset) + len(data); need > len(v.Data) {
			grown := make([]byte, need)
			copy(grown, v.Data)
			v.Data = grown
		}
		copy(v.Data[byteOffset:], data)
		v.TypeCode = typeCode
	}
	gw.mu.Unlock()

	if !ok {
		return buildErrorReply(service, genStatusPathDest)
	}
	return wire.PackResponseHeader(wire.ResponseHeader{Service: service, GeneralStatus: genStatusSuccess})
}

// handleReadModifyWrite serves CIP Read-Modify-Write Tag: byteOffset 0 is
// implicit (the request addresses the whole tag's element, same as the
// client always builds it for a bit write), and each mask byte is applied
// to the matching data byte as (data & andMask) | (orMask & ^andMask), so
// a bit with and=1 is left untouched and a bit with and=0 takes its or bit.
func (gw *Gateway) handleReadModifyWrite(service byte, path, body []byte) []byte {
	if len(body) < 2 {
		return buildErrorReply(service, genStatusInvalidParam)
	}
	maskLen := int(binary.LittleEndian.Uint16(body[0:2]))
	if len(body) < 2+2*maskLen {
		return buildErrorReply(service, genStatusInvalidParam)
	}
	orMask := body[2 : 2+maskLen]
	andMask := body[2+maskLen : 2+2*maskLen]

	gw.mu.Lock()
	v, ok := gw.logixTags[string(path)]
	if ok {
		if maskLen > len(v.Data) {
			ok = false
		} else {
			for i := 0; i < maskLen; i++ {
				v.Data[i] = (v.Data[i] & andMask[i]) | (orMask[i] &^ andMask[i])
			}
		}
	}
	gw.mu.Unlock()

	if !ok {
		return buildErrorReply(service, genStatusPathDest)
	}
	return wire.PackResponseHeader(wire.ResponseHeader{Service: service, GeneralStatus: genStatusSuccess})
}

// handlePCCCExecute unwraps the PCCC-Execute envelope, decodes the tunnelled
// PCCC command, and serves it against the gateway's data table set. Only
// the typed-logical read/write (FNC 0x68/0x67) pair is served, matching
// the only PCCC forms this client's tag coordinator emits.
func (gw *Gateway) handlePCCCExecute(service byte, body []byte) []byte {
	if len(body) < 1+wire.RequestorIDLen {
		return buildErrorReply(service, genStatusInvalidParam)
	}
	pcccBytes := body[1+wire.RequestorIDLen:]
	preq, err := pccc.DecodeRequest(pcccBytes)
	if err != nil {
		return buildErrorReply(service, genStatusInvalidParam)
	}

	resp := pccc.Response{Command: preq.Command, TNS: preq.TNS, Function: preq.Function}

	switch {
	case preq.Command == pccc.CmdExtended && preq.Function == pccc.FncTypedRead:
		data, rerr := gw.tables.HandleTypedRead(preq.Data)
		if rerr != nil {
			resp.Status = 0xF0
			resp.ExtSTS = 0x02 // address doesn't point to something usable
		} else {
			resp.Data = data
		}
	case preq.Command == pccc.CmdExtended && preq.Function == pccc.FncTypedWrite:
		if werr := gw.tables.HandleTypedWrite(preq.Data); werr != nil {
			resp.Status = 0xF0
			resp.ExtSTS = 0x02
		}
	default:
		resp.Status = 0xF0
		resp.ExtSTS = 0x03 // unsupported function
	}

	encoded := pccc.EncodeResponse(resp)
	hdr := wire.PackResponseHeader(wire.ResponseHeader{Service: service, GeneralStatus: genStatusSuccess})
	return append(hdr, encoded...)
}

// handleMultipleService decodes a Multiple Service Packet request (the
// encode-side counterpart to wire.BuildMultipleServicePacket, which this
// package owns since only a server needs to decode the request half of
// that round trip) and replies with each sub-service's own reply packed
// the same way.
func (gw *Gateway) handleMultipleService(sess *gwSession, service byte, body []byte) []byte {
	if len(body) < 2 {
		return buildErrorReply(service, genStatusInvalidParam)
	}
	n := int(le16(body[0:2]))
	if len(body) < 2+2*n {
		return buildErrorReply(service, genStatusInvalidParam)
	}
	offsets := make([]int, n)
	for i := 0; i < n; i++ {
		offsets[i] = int(le16(body[2+2*i:]))
	}

	replies := make([][]byte, n)
	for i := 0; i < n; i++ {
		start := offsets[i]
		end := len(body)
		if i+1 < n {
			end = offsets[i+1]
		}
		if start > len(body) || end > len(body) || start > end {
			replies[i] = buildErrorReply(0, genStatusInvalidParam)
			continue
		}
		replies[i] = gw.dispatchCIP(sess, body[start:end])
	}

	base := 2 + 2*n
	cursor := base
	replyOffsets := make([]int, n)
	for i, r := range replies {
		replyOffsets[i] = cursor
		cursor += len(r)
	}
	out := make([]byte, 0, cursor)
	out = binary.LittleEndian.AppendUint16(out, uint16(n))
	for _, off := range replyOffsets {
		out = binary.LittleEndian.AppendUint16(out, uint16(off))
	}
	for _, r := range replies {
		out = append(out, r...)
	}

	hdr := wire.PackResponseHeader(wire.ResponseHeader{Service: service, GeneralStatus: genStatusSuccess})
	return append(hdr, out...)
}
