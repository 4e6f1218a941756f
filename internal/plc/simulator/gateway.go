// Package simulator implements an in-process EtherNet/IP + CIP/PCCC
// gateway: a stand-in PLC that speaks enough of the wire protocol this
// client does to exercise session bring-up, Forward Open/Close, tag
// read/write (plain and fragmented), and PCCC-Execute end to end without
// a real controller on the network.
//
// Grounded on the teacher's internal/server/core accept-loop/session-map
// shape, narrowed from a full configurable fault-injecting ENIP server
// down to the minimum a client-side test harness needs: one gwSession
// per TCP connection, Forward-Open-assigned connection IDs, a static
// tag/data-table namespace seeded before Listen.
package simulator

import (
	"encoding/binary"
	"net"
	"sync"

	"github.com/tturner/ab-eip-client/internal/plc/cippath"
	"github.com/tturner/ab-eip-client/internal/plc/logging"
	"github.com/tturner/ab-eip-client/internal/plc/pccc"
	"github.com/tturner/ab-eip-client/internal/plc/wire"
)

// logixValue is one simulated Logix-family tag's type code and backing
// storage, keyed by its encoded symbolic EPATH (the same bytes this
// client's Tag.symbolic.Path carries).
type logixValue struct {
	TypeCode uint16
	Data     []byte
}

// gwConnection is one accepted Forward Open, keyed in its owning
// gwSession by the O->T connection id (the id the client addresses
// traffic to us with).
type gwConnection struct {
	oToT   uint32
	tToO   uint32
	serial uint16
}

// gwSession is one accepted EtherNet/IP session (one TCP connection).
type gwSession struct {
	handle uint32

	mu    sync.Mutex
	conns map[uint32]*gwConnection
}

// Gateway is one simulated PLC: a Logix-style symbolic tag namespace, a
// PCCC data table set, and the EtherNet/IP plumbing to serve both over
// TCP.
type Gateway struct {
	mu        sync.Mutex
	logixTags map[string]*logixValue
	tables    *pccc.DataTableSet

	sessions   map[uint32]*gwSession
	nextHandle uint32
	nextConnID uint32

	log *logging.Logger

	listener net.Listener
	wg       sync.WaitGroup
	closing  bool
}

// FragmentBytes is the chunk size the simulator uses when a Read Tag
// Fragmented reply does not fit in one frame, matching this client's own
// maxFragmentBytes so scenario tests exercise the partial-transfer path
// (general status 0x06) both directions produce it.
const FragmentBytes = 480

// New creates an empty Gateway. A nil logger disables logging.
func New(log *logging.Logger) *Gateway {
	if log == nil {
		log, _ = logging.New(logging.LevelSilent, "")
	}
	return &Gateway{
		logixTags: make(map[string]*logixValue),
		tables:    pccc.NewDataTableSet(),
		sessions:  make(map[uint32]*gwSession),
		log:       log,
	}
}

// Tables exposes the PCCC data table set for test setup (presetting N7,
// F8, etc. before a PLC-5/SLC/MicroLogix scenario runs).
func (gw *Gateway) Tables() *pccc.DataTableSet {
	return gw.tables
}

// SetLogixTag seeds (or replaces) a symbolic Logix tag's value. name
// follows the same grammar this client's cippath.EncodeTagName accepts.
func (gw *Gateway) SetLogixTag(name string, typeCode uint16, data []byte) error {
	enc, err := encodeTagNameKey(name)
	if err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	gw.mu.Lock()
	gw.logixTags[enc] = &logixValue{TypeCode: typeCode, Data: buf}
	gw.mu.Unlock()
	return nil
}

// LogixTag returns the current bytes stored for name, for assertions
// after a simulated write.
func (gw *Gateway) LogixTag(name string) ([]byte, bool) {
	enc, err := encodeTagNameKey(name)
	if err != nil {
		return nil, false
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	v, ok := gw.logixTags[enc]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v.Data))
	copy(out, v.Data)
	return out, true
}

// Listen starts accepting connections on addr ("127.0.0.1:0" for an
// ephemeral port) and returns the bound address.
func (gw *Gateway) Listen(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	gw.listener = ln
	gw.wg.Add(1)
	go gw.acceptLoop()
	return ln.Addr().String(), nil
}

// Close stops accepting new connections and waits for in-flight ones to
// finish.
func (gw *Gateway) Close() error {
	gw.mu.Lock()
	gw.closing = true
	gw.mu.Unlock()
	var err error
	if gw.listener != nil {
		err = gw.listener.Close()
	}
	gw.wg.Wait()
	return err
}

func (gw *Gateway) acceptLoop() {
	defer gw.wg.Done()
	for {
		conn, err := gw.listener.Accept()
		if err != nil {
			return
		}
		gw.wg.Add(1)
		go gw.handleConn(conn)
	}
}

func (gw *Gateway) handleConn(conn net.Conn) {
	defer gw.wg.Done()
	defer conn.Close()

	var sess *gwSession
	buf := make([]byte, 0, 4096)
	readBuf := make([]byte, 4096)

	for {
		n, err := conn.Read(readBuf)
		if err != nil {
			return
		}
		buf = append(buf, readBuf[:n]...)

		for {
			flen, ok, ferr := wire.FrameLen(buf)
			if ferr != nil {
				return
			}
			if !ok || len(buf) < flen {
				break
			}
			frame := buf[:flen]
			buf = buf[flen:]

			resp := gw.dispatchFrame(&sess, frame)
			if resp != nil {
				if _, werr := conn.Write(resp); werr != nil {
					return
				}
			}
		}
	}
}

// dispatchFrame handles one complete EIP frame, mutating *sessPtr on
// RegisterSession/UnregisterSession, and returns the reply frame to
// write back (nil if no reply is sent, as for UnregisterSession).
func (gw *Gateway) dispatchFrame(sessPtr **gwSession, frame []byte) []byte {
	h, payload, err := wire.DecodeFrame(frame)
	if err != nil {
		return nil
	}

	switch h.Command {
	case wire.CmdRegisterSession:
		gw.mu.Lock()
		gw.nextHandle++
		handle := gw.nextHandle
		ns := &gwSession{handle: handle, conns: make(map[uint32]*gwConnection)}
		gw.sessions[handle] = ns
		gw.mu.Unlock()
		*sessPtr = ns
		gw.log.LogSessionEvent("simulator", "registered session")
		return wire.EncodeFrame(wire.Header{
			Command:       wire.CmdRegisterSession,
			SessionHandle: handle,
			SenderContext: h.SenderContext,
		}, payload)

	case wire.CmdUnregisterSession:
		if *sessPtr != nil {
			gw.mu.Lock()
			delete(gw.sessions, (*sessPtr).handle)
			gw.mu.Unlock()
			*sessPtr = nil
		}
		return nil

	case wire.CmdSendRRData:
		if *sessPtr == nil {
			return nil
		}
		cpf, err := wire.DecodeCPF(payload)
		if err != nil {
			return nil
		}
		cipReq, err := wire.UnwrapUnconnected(cpf)
		if err != nil {
			return nil
		}
		cipResp := gw.dispatchCIP(*sessPtr, cipReq)
		respCPF := wire.WrapUnconnected(cipResp, 0)
		return wire.EncodeFrame(wire.Header{
			Command:       wire.CmdSendRRData,
			SessionHandle: (*sessPtr).handle,
			SenderContext: h.SenderContext,
		}, respCPF)

	case wire.CmdSendUnitData:
		if *sessPtr == nil {
			return nil
		}
		cpf, err := wire.DecodeCPF(payload)
		if err != nil {
			return nil
		}
		peerConnID, connSeq, cipReq, err := wire.UnwrapConnected(cpf)
		if err != nil {
			return nil
		}
		(*sessPtr).mu.Lock()
		conn, ok := (*sessPtr).conns[peerConnID]
		(*sessPtr).mu.Unlock()
		if !ok {
			return nil
		}
		cipResp := gw.dispatchCIP(*sessPtr, cipReq)
		respCPF := wire.WrapConnected(conn.tToO, connSeq, cipResp)
		return wire.EncodeFrame(wire.Header{
			Command:       wire.CmdSendUnitData,
			SessionHandle: (*sessPtr).handle,
		}, respCPF)

	default:
		return nil
	}
}

// encodeTagNameKey maps a symbolic tag name to the exact encoded EPATH
// bytes this client's tag coordinator builds for the same name, used as
// the logixTags map key so lookups need no EPATH-to-name decoder.
func encodeTagNameKey(name string) (string, error) {
	enc, err := cippath.EncodeTagName(name)
	if err != nil {
		return "", err
	}
	return string(enc.Path), nil
}

// buildErrorReply packs a bare CIP response header carrying a general
// status error, used whenever a request body fails its minimum-length
// sanity check.
func buildErrorReply(service byte, generalStatus byte) []byte {
	return wire.PackResponseHeader(wire.ResponseHeader{Service: service, GeneralStatus: generalStatus})
}

func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
