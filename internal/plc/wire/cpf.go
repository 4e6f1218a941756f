package wire

import (
	"encoding/binary"
	"fmt"
)

// CPF item type codes (spec.md S4.2).
const (
	ItemNullAddress     uint16 = 0x0000
	ItemConnectedAddr   uint16 = 0x00A1
	ItemConnectedData   uint16 = 0x00B1
	ItemUnconnectedData uint16 = 0x00B2
)

// Item is one Common Packet Format item: a type, and its raw payload.
type Item struct {
	Type uint16
	Data []byte
}

// CPF is the Common Packet Format envelope carried in a SendRRData or
// SendUnitData payload.
type CPF struct {
	InterfaceHandle uint32
	TimeoutSec      uint16
	Items           []Item
}

// EncodeCPF packs a CPF envelope.
func EncodeCPF(c CPF) []byte {
	buf := make([]byte, 0, 8+2+len(c.Items)*4)
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], c.InterfaceHandle)
	binary.LittleEndian.PutUint16(hdr[4:], c.TimeoutSec)
	binary.LittleEndian.PutUint16(hdr[6:], uint16(len(c.Items)))
	buf = append(buf, hdr[:]...)
	for _, it := range c.Items {
		var ihdr [4]byte
		binary.LittleEndian.PutUint16(ihdr[0:], it.Type)
		binary.LittleEndian.PutUint16(ihdr[2:], uint16(len(it.Data)))
		buf = append(buf, ihdr[:]...)
		buf = append(buf, it.Data...)
	}
	return buf
}

// DecodeCPF unpacks a CPF envelope.
func DecodeCPF(data []byte) (CPF, error) {
	if len(data) < 6 {
		return CPF{}, fmt.Errorf("wire: CPF too short: %d bytes", len(data))
	}
	if len(data) < 8 {
		return CPF{}, fmt.Errorf("wire: CPF header truncated: %d bytes", len(data))
	}
	c := CPF{
		InterfaceHandle: binary.LittleEndian.Uint32(data[0:4]),
		TimeoutSec:      binary.LittleEndian.Uint16(data[4:6]),
	}
	itemCount := int(binary.LittleEndian.Uint16(data[6:8]))
	offset := 8
	for i := 0; i < itemCount; i++ {
		if offset+4 > len(data) {
			return CPF{}, fmt.Errorf("wire: CPF item header truncated")
		}
		typ := binary.LittleEndian.Uint16(data[offset:])
		length := int(binary.LittleEndian.Uint16(data[offset+2:]))
		offset += 4
		if offset+length > len(data) {
			return CPF{}, fmt.Errorf("wire: CPF item payload truncated (item %d, want %d bytes)", i, length)
		}
		c.Items = append(c.Items, Item{Type: typ, Data: data[offset : offset+length]})
		offset += length
	}
	return c, nil
}

// WrapUnconnected builds the CPF envelope for an unconnected (SendRRData)
// CIP request: {Null-Address, Unconnected-Data}.
func WrapUnconnected(cipRequest []byte, timeoutSec uint16) []byte {
	return EncodeCPF(CPF{
		TimeoutSec: timeoutSec,
		Items: []Item{
			{Type: ItemNullAddress},
			{Type: ItemUnconnectedData, Data: cipRequest},
		},
	})
}

// WrapConnected builds the CPF envelope for a connected (SendUnitData) CIP
// request: {Connected-Address, Connected-Data}. The Connected-Data item
// begins with the 16-bit connection sequence number, as spec.md S4.2
// requires.
func WrapConnected(peerConnID uint32, connSeq uint16, cipRequest []byte) []byte {
	addr := make([]byte, 4)
	binary.LittleEndian.PutUint32(addr, peerConnID)

	data := make([]byte, 2+len(cipRequest))
	binary.LittleEndian.PutUint16(data, connSeq)
	copy(data[2:], cipRequest)

	return EncodeCPF(CPF{
		Items: []Item{
			{Type: ItemConnectedAddr, Data: addr},
			{Type: ItemConnectedData, Data: data},
		},
	})
}

// UnwrapUnconnected extracts the CIP request/response bytes from an
// unconnected CPF envelope.
func UnwrapUnconnected(cpf CPF) ([]byte, error) {
	for _, it := range cpf.Items {
		if it.Type == ItemUnconnectedData {
			return it.Data, nil
		}
	}
	return nil, fmt.Errorf("wire: no Unconnected-Data item in CPF")
}

// UnwrapConnected extracts (peerConnID, connSeq, cipBytes) from a connected
// CPF envelope.
func UnwrapConnected(cpf CPF) (peerConnID uint32, connSeq uint16, cipBytes []byte, err error) {
	var haveAddr, haveData bool
	for _, it := range cpf.Items {
		switch it.Type {
		case ItemConnectedAddr:
			if len(it.Data) < 4 {
				return 0, 0, nil, fmt.Errorf("wire: Connected-Address item too short")
			}
			peerConnID = binary.LittleEndian.Uint32(it.Data)
			haveAddr = true
		case ItemConnectedData:
			if len(it.Data) < 2 {
				return 0, 0, nil, fmt.Errorf("wire: Connected-Data item too short")
			}
			connSeq = binary.LittleEndian.Uint16(it.Data)
			cipBytes = it.Data[2:]
			haveData = true
		}
	}
	if !haveAddr || !haveData {
		return 0, 0, nil, fmt.Errorf("wire: connected CPF missing required items")
	}
	return peerConnID, connSeq, cipBytes, nil
}
