package tag

import (
	"sync"
	"time"

	"github.com/tturner/ab-eip-client/internal/plc/cippath"
	"github.com/tturner/ab-eip-client/internal/plc/pccc"
	"github.com/tturner/ab-eip-client/internal/plc/session"
	"github.com/tturner/ab-eip-client/internal/plc/status"
	"github.com/tturner/ab-eip-client/internal/plc/wire"
)

// State is a Tag Coordinator state (spec.md S4.5).
type State int

const (
	Idle State = iota
	ReadRequestState
	ReadResponseState
	WriteRequestState
	WriteResponseState
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case ReadRequestState:
		return "READ_REQUEST"
	case ReadResponseState:
		return "READ_RESPONSE"
	case WriteRequestState:
		return "WRITE_REQUEST"
	case WriteResponseState:
		return "WRITE_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// maxFragmentBytes is the per-frame payload this client requests in a
// fragmented read/write, chosen to fit comfortably under a classic
// Forward Open's 504-byte Class-3 packet (spec.md S6).
const maxFragmentBytes = 480

// Tag is the coordinator for one named PLC value: address resolution,
// the IDLE/READ.../WRITE... state machine, the read-cache TTL, and the
// byte Buffer an application reads and writes typed values through
// (spec.md S4.5).
type Tag struct {
	Name         string
	Family       cippath.PLCFamily
	DataType     DataType
	ElementCount int
	CacheTTL     time.Duration

	Session        *session.Session
	ConnectionPath []byte // pre-encoded route, from cippath.ParseConnectionPath

	Buf *Buffer

	mu              sync.Mutex
	state           State
	lastStatus      status.Code
	cacheExpire     time.Time
	readOffset      uint32
	reqID           uint64
	pcccTNS         uint16
	pendingFragment []byte

	symbolic cippath.EncodedTagName
	pcccAddr pccc.Address
}

// New resolves name's address for family and allocates a Tag ready to
// read/write once attached to a Session.
func New(name string, family cippath.PLCFamily, dt DataType, elementCount int, sess *session.Session, connectionPath []byte) (*Tag, error) {
	t := &Tag{
		Name:           name,
		Family:         family,
		DataType:       dt,
		ElementCount:   elementCount,
		Session:        sess,
		ConnectionPath: connectionPath,
		state:          Idle,
	}

	elemSize := dt.Size()
	if elemSize < 0 {
		elemSize = 88 // STRING: length word + fixed character array, libplctag-style default
	}
	t.Buf = NewBuffer(elemSize * elementCount)

	if family.NeedsCIPConnection() {
		enc, err := cippath.EncodeTagName(name)
		if err != nil {
			return nil, err
		}
		t.symbolic = enc
		return t, nil
	}

	addr, err := pccc.ParseAddress(name)
	if err != nil {
		return nil, err
	}
	t.pcccAddr = addr
	return t, nil
}

// State returns the coordinator's current state.
func (t *Tag) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Status returns the outcome of the most recently completed operation.
func (t *Tag) Status() status.Code {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastStatus
}

// CacheValid reports whether the buffer's contents are still within the
// configured read-cache TTL as of now (spec.md S4.5).
func (t *Tag) CacheValid(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.CacheTTL > 0 && now.Before(t.cacheExpire)
}

// StartRead transitions IDLE -> READ_REQUEST and returns the CIP-level
// request bytes (service header + body, not yet wrapped in CPF/EIP) the
// I/O worker should send. If the cache is still valid it returns
// (nil, status.OK) without touching the wire (spec.md S4.5: "cache TTL
// skips a redundant round trip").
func (t *Tag) StartRead(now time.Time) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CacheTTL > 0 && now.Before(t.cacheExpire) {
		return nil, nil
	}
	if t.state != Idle {
		return nil, status.New(status.NotAllowed, "tag %q: read requested while state=%s", t.Name, t.state)
	}
	t.readOffset = 0
	body, err := t.buildReadLocked()
	if err != nil {
		return nil, err
	}
	t.state = ReadRequestState
	t.lastStatus = status.Pending
	return body, nil
}

func (t *Tag) buildReadLocked() ([]byte, error) {
	switch {
	case t.Family.NeedsCIPConnection():
		return wire.BuildReadTagFragmentedRequest(t.symbolic.Path, uint16(t.ElementCount), t.readOffset)
	default:
		t.pcccTNS++
		req := pccc.TypedReadRequest(t.pcccTNS, t.pcccAddr, uint8(t.Buf.Len()))
		pcccBytes := pccc.EncodeRequest(req)
		return wire.BuildPCCCExecuteRequest(wire.PCCCObjectPath, wire.PCCCExecuteParams{
			VendorID:     wire.OriginatorVendorID,
			VendorSerial: wire.OriginatorSerial,
			PCCCCommand:  pcccBytes,
		})
	}
}

// CompleteRead consumes a reply's CIP-level bytes (service header +
// body for Logix; PCCC-Execute's CIP response header + PCCC block for
// PLC-5/SLC/MicroLogix) and applies spec.md S4.5's read-completion rule:
// partial transfers (general status 0x06) re-arm another fragment at the
// next offset; anything else returns to IDLE.
func (t *Tag) CompleteRead(now time.Time, cipBytes []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != ReadRequestState {
		return status.New(status.NotAllowed, "tag %q: unexpected read reply in state=%s", t.Name, t.state)
	}

	respHdr, body, err := wire.UnpackResponseHeader(cipBytes)
	if err != nil {
		t.finishLocked(status.BadData)
		return err
	}

	if t.Family.NeedsCIPConnection() {
		return t.completeLogixReadLocked(now, respHdr, body)
	}
	return t.completePCCCReadLocked(now, respHdr, body)
}

func (t *Tag) completeLogixReadLocked(now time.Time, respHdr wire.ResponseHeader, body []byte) error {
	const partialTransfer = 0x06
	if respHdr.GeneralStatus != 0 && respHdr.GeneralStatus != partialTransfer {
		t.finishLocked(mapGeneralStatus(respHdr.GeneralStatus))
		return nil
	}
	reply, err := wire.ParseReadTagReplyBody(body, t.readOffset == 0)
	if err != nil {
		t.finishLocked(status.BadData)
		return err
	}
	if int(t.readOffset)+len(reply.Data) > t.Buf.Len() {
		t.Buf.Resize(int(t.readOffset) + len(reply.Data))
	}
	copy(t.Buf.Bytes()[t.readOffset:], reply.Data)
	t.readOffset += uint32(len(reply.Data))

	if respHdr.GeneralStatus == partialTransfer {
		t.state = Idle // re-armed by the next StartRead call from the worker
		t.lastStatus = status.Pending
		return nil
	}
	t.markCachedLocked(now)
	return nil
}

func (t *Tag) completePCCCReadLocked(now time.Time, respHdr wire.ResponseHeader, body []byte) error {
	if respHdr.GeneralStatus != 0 {
		t.finishLocked(mapGeneralStatus(respHdr.GeneralStatus))
		return nil
	}
	resp, err := pccc.DecodeResponse(body)
	if err != nil {
		t.finishLocked(status.BadData)
		return err
	}
	if resp.Status != 0 {
		t.finishLocked(status.RemoteErr)
		return nil
	}
	t.Buf.SetBytes(resp.Data)
	t.markCachedLocked(now)
	return nil
}

func (t *Tag) markCachedLocked(now time.Time) {
	t.state = Idle
	t.lastStatus = status.OK
	if t.CacheTTL > 0 {
		t.cacheExpire = now.Add(t.CacheTTL)
	}
}

func (t *Tag) finishLocked(code status.Code) {
	t.state = Idle
	t.lastStatus = code
}

// StartWrite transitions IDLE -> WRITE_REQUEST, copying data into the
// buffer first, and returns the CIP-level request bytes to send.
func (t *Tag) StartWrite(data []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Idle {
		return nil, status.New(status.NotAllowed, "tag %q: write requested while state=%s", t.Name, t.state)
	}
	t.Buf.SetBytes(data)
	t.readOffset = 0
	body, err := t.buildWriteLocked()
	if err != nil {
		return nil, err
	}
	t.state = WriteRequestState
	t.lastStatus = status.Pending
	return body, nil
}

func (t *Tag) buildWriteLocked() ([]byte, error) {
	data := t.Buf.Bytes()
	switch {
	case t.Family.NeedsCIPConnection():
		if t.symbolic.HasBit {
			return t.buildBitWriteLocked(data)
		}
		if len(data) <= maxFragmentBytes {
			return wire.BuildWriteTagRequest(t.symbolic.Path, uint16(t.DataType), uint16(t.ElementCount), data)
		}
		chunk := data[t.readOffset:]
		if len(chunk) > maxFragmentBytes {
			chunk = chunk[:maxFragmentBytes]
		}
		return wire.BuildWriteTagFragmentedRequest(t.symbolic.Path, uint16(t.DataType), uint16(t.ElementCount), t.readOffset, chunk)
	default:
		if t.pcccAddr.HasBit {
			return t.buildPCCCBitWriteLocked(data)
		}
		t.pcccTNS++
		req := pccc.TypedWriteRequest(t.pcccTNS, t.pcccAddr, data)
		pcccBytes := pccc.EncodeRequest(req)
		return wire.BuildPCCCExecuteRequest(wire.PCCCObjectPath, wire.PCCCExecuteParams{
			VendorID:     wire.OriginatorVendorID,
			VendorSerial: wire.OriginatorSerial,
			PCCCCommand:  pcccBytes,
		})
	}
}

// buildBitWriteLocked builds a CIP Read-Modify-Write Tag request for a
// bit-addressed Logix tag (e.g. "MyDint.3"), masking every bit but the
// one this tag name addresses so sibling bits in the same word are left
// untouched (spec.md S4.5).
func (t *Tag) buildBitWriteLocked(data []byte) ([]byte, error) {
	byteOffset := t.symbolic.Bit / 8
	bitIndex := uint(t.symbolic.Bit % 8)
	if byteOffset >= len(data) {
		return nil, status.New(status.OutOfBounds, "tag %q: bit %d outside %d-byte element", t.Name, t.symbolic.Bit, len(data))
	}
	orMask, andMask := rmwMasks(data, byteOffset, bitIndex)
	return wire.BuildReadModifyWriteRequest(t.symbolic.Path, orMask, andMask)
}

// buildPCCCBitWriteLocked builds a PLC-5 Read-Modify-Write (FNC 0x26) or
// SLC Protected Typed Logical Bit Write (FNC 0xAB) request for a
// bit-addressed PCCC tag (e.g. "B3:0/5" or "N7:0/3").
func (t *Tag) buildPCCCBitWriteLocked(data []byte) ([]byte, error) {
	width := t.pcccAddr.FileType.ByteSize()
	if len(data) < width {
		return nil, status.New(status.BadData, "tag %q: %d-byte buffer too small for a %d-byte element", t.Name, len(data), width)
	}
	bit := uint(t.pcccAddr.BitNumber)
	byteOffset := int(bit / 8)
	bitIndex := bit % 8
	if byteOffset >= width {
		return nil, status.New(status.OutOfBounds, "tag %q: bit %d outside %d-byte element", t.Name, t.pcccAddr.BitNumber, width)
	}
	orMask, andMask := rmwMasks(data[:width], byteOffset, bitIndex)

	fn := pccc.FncSLCProtectedTypedLogicalBitWrite
	if t.Family == cippath.FamilyPLC5 {
		fn = pccc.FncPLC5ReadModifyWrite
	}
	t.pcccTNS++
	req, err := pccc.BitWriteRequest(t.pcccTNS, fn, t.pcccAddr, orMask, andMask)
	if err != nil {
		return nil, err
	}
	pcccBytes := pccc.EncodeRequest(req)
	return wire.BuildPCCCExecuteRequest(wire.PCCCObjectPath, wire.PCCCExecuteParams{
		VendorID:     wire.OriginatorVendorID,
		VendorSerial: wire.OriginatorSerial,
		PCCCCommand:  pcccBytes,
	})
}

// rmwMasks builds the (orMask, andMask) pair that sets the bit at
// (byteOffset, bitIndex) to the value currently staged in data and
// leaves every other bit untouched: result = (current AND andMask) OR
// orMask.
func rmwMasks(data []byte, byteOffset int, bitIndex uint) (orMask, andMask []byte) {
	orMask = make([]byte, len(data))
	andMask = make([]byte, len(data))
	for i := range andMask {
		andMask[i] = 0xFF
	}
	andMask[byteOffset] &^= 1 << bitIndex
	if data[byteOffset]&(1<<bitIndex) != 0 {
		orMask[byteOffset] |= 1 << bitIndex
	}
	return orMask, andMask
}

// CompleteWrite consumes a write reply's CIP-level bytes, advancing a
// fragmented write to its next chunk or returning to IDLE.
func (t *Tag) CompleteWrite(cipBytes []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != WriteRequestState {
		return status.New(status.NotAllowed, "tag %q: unexpected write reply in state=%s", t.Name, t.state)
	}
	respHdr, body, err := wire.UnpackResponseHeader(cipBytes)
	if err != nil {
		t.finishLocked(status.BadData)
		return err
	}
	if respHdr.GeneralStatus != 0 {
		t.finishLocked(mapGeneralStatus(respHdr.GeneralStatus))
		return nil
	}

	if !t.Family.NeedsCIPConnection() {
		resp, derr := pccc.DecodeResponse(body)
		if derr != nil {
			t.finishLocked(status.BadData)
			return derr
		}
		if resp.Status != 0 {
			t.finishLocked(status.RemoteErr)
			return nil
		}
		t.finishLocked(status.OK)
		return nil
	}

	if len(t.Buf.Bytes()) <= maxFragmentBytes {
		t.finishLocked(status.OK)
		return nil
	}
	t.readOffset += maxFragmentBytes
	if int(t.readOffset) >= t.Buf.Len() {
		t.finishLocked(status.OK)
		return nil
	}
	_ = body // write replies carry no data payload on success
	next, err := t.buildWriteLocked()
	if err != nil {
		t.finishLocked(status.BadData)
		return err
	}
	t.pendingFragment = next
	return nil
}

// PendingFragment returns and clears a write-fragment request body
// CompleteWrite produced while advancing a multi-frame write, for the
// I/O worker to send on the next tick.
func (t *Tag) PendingFragment() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.pendingFragment
	t.pendingFragment = nil
	return f
}

// mapGeneralStatus turns a CIP general status byte into this library's
// status taxonomy (spec.md S7's decoder table, narrowed to the handful
// of codes a tag read/write can itself distinguish; callers wanting the
// short/long description table use status.DecodeRockwellStatus).
func mapGeneralStatus(general byte) status.Code {
	switch general {
	case 0x00:
		return status.OK
	case 0x04, 0x05, 0x16:
		return status.NotFound
	case 0x0F:
		return status.NotAllowed
	case 0x13:
		return status.BadData
	case 0x1A, 0x1B, 0x15, 0x11:
		return status.TooLarge
	default:
		return status.RemoteErr
	}
}
