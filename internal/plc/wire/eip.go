// Package wire implements the fixed-layout, little-endian EIP encapsulation
// and CIP framing spec.md S4.2 requires: the encapsulation header, Common
// Packet Format items, CIP service headers, Forward Open/Close, CIP
// read/write (plain and fragmented), and the Multiple Service Packet.
//
// Every pack function has a matching unpack function and round-trips: for
// any value V, Unpack(Pack(V)) == V (spec.md S8 invariant 5's codec
// analogue).
package wire

import (
	"encoding/binary"
	"fmt"
)

// EIP encapsulation commands (spec.md S4.2 / S6).
const (
	CmdRegisterSession   uint16 = 0x0065
	CmdUnregisterSession uint16 = 0x0066
	CmdSendRRData        uint16 = 0x006F
	CmdSendUnitData      uint16 = 0x0070
)

// HeaderLen is the fixed EIP encapsulation header size in bytes.
const HeaderLen = 24

// Header is the 24-byte EIP encapsulation header.
type Header struct {
	Command       uint16
	PayloadLength uint16
	SessionHandle uint32
	Status        uint32
	SenderContext uint64
	Options       uint32
}

// PackHeader writes h into buf[offset:offset+24]. Returns an error instead
// of writing past buf's capacity.
func PackHeader(buf []byte, offset int, h Header) (int, error) {
	if offset+HeaderLen > len(buf) {
		return offset, fmt.Errorf("wire: header would overflow buffer (need %d, have %d)", offset+HeaderLen, len(buf))
	}
	binary.LittleEndian.PutUint16(buf[offset:], h.Command)
	binary.LittleEndian.PutUint16(buf[offset+2:], h.PayloadLength)
	binary.LittleEndian.PutUint32(buf[offset+4:], h.SessionHandle)
	binary.LittleEndian.PutUint32(buf[offset+8:], h.Status)
	binary.LittleEndian.PutUint64(buf[offset+12:], h.SenderContext)
	binary.LittleEndian.PutUint32(buf[offset+20:], h.Options)
	return offset + HeaderLen, nil
}

// UnpackHeader reads a Header from buf[offset:offset+24].
func UnpackHeader(buf []byte, offset int) (Header, int, error) {
	if offset+HeaderLen > len(buf) {
		return Header{}, offset, fmt.Errorf("wire: header read would overflow buffer (need %d, have %d)", offset+HeaderLen, len(buf))
	}
	h := Header{
		Command:       binary.LittleEndian.Uint16(buf[offset:]),
		PayloadLength: binary.LittleEndian.Uint16(buf[offset+2:]),
		SessionHandle: binary.LittleEndian.Uint32(buf[offset+4:]),
		Status:        binary.LittleEndian.Uint32(buf[offset+8:]),
		SenderContext: binary.LittleEndian.Uint64(buf[offset+12:]),
		Options:       binary.LittleEndian.Uint32(buf[offset+20:]),
	}
	return h, offset + HeaderLen, nil
}

// EncodeFrame packs a complete header+payload frame, setting PayloadLength
// from len(payload).
func EncodeFrame(h Header, payload []byte) []byte {
	h.PayloadLength = uint16(len(payload))
	buf := make([]byte, HeaderLen+len(payload))
	_, _ = PackHeader(buf, 0, h)
	copy(buf[HeaderLen:], payload)
	return buf
}

// DecodeFrame splits a buffer into its header and payload. It does not
// require len(buf) == HeaderLen+h.PayloadLength exactly; callers that
// accumulate bytes incrementally use PayloadLength to know how much more
// to wait for (see FrameLen).
func DecodeFrame(buf []byte) (Header, []byte, error) {
	h, off, err := UnpackHeader(buf, 0)
	if err != nil {
		return Header{}, nil, err
	}
	end := off + int(h.PayloadLength)
	if end > len(buf) {
		return Header{}, nil, fmt.Errorf("wire: frame payload truncated (want %d, have %d)", end, len(buf))
	}
	return h, buf[off:end], nil
}

// FrameLen returns the total byte length (header+payload) of the frame
// whose header has already been read from buf; ok is false (with a nil
// error) if fewer than HeaderLen bytes are available yet.
func FrameLen(buf []byte) (int, bool, error) {
	if len(buf) < HeaderLen {
		return 0, false, nil
	}
	h, _, err := UnpackHeader(buf, 0)
	if err != nil {
		return 0, false, err
	}
	return HeaderLen + int(h.PayloadLength), true, nil
}

// BuildRegisterSession builds a RegisterSession request frame.
func BuildRegisterSession(senderContext uint64) []byte {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload[0:], 1) // eip_version
	binary.LittleEndian.PutUint16(payload[2:], 0) // option_flags
	return EncodeFrame(Header{Command: CmdRegisterSession, SenderContext: senderContext}, payload)
}

// BuildUnregisterSession builds an UnregisterSession frame (no payload).
func BuildUnregisterSession(sessionHandle uint32, senderContext uint64) []byte {
	return EncodeFrame(Header{
		Command:       CmdUnregisterSession,
		SessionHandle: sessionHandle,
		SenderContext: senderContext,
	}, nil)
}
