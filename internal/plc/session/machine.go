package session

import (
	"fmt"
	"net"
	"time"

	"github.com/tturner/ab-eip-client/internal/plc/status"
	"github.com/tturner/ab-eip-client/internal/plc/wire"
)

// pendingForwardOpen holds the parameters for an in-flight Forward Open,
// set by RequestForwardOpen and consumed once the OPENING state sends it.
type pendingForwardOpen struct {
	params wire.ForwardOpenParams
	sent   bool
}

// pendingForwardClose mirrors pendingForwardOpen for Forward Close.
type pendingForwardClose struct {
	connectionPath []byte
	sent           bool
	sentAt         time.Time
}

// forwardCloseTimeout bounds how long CLOSING waits for a Forward-Close
// reply before giving up and proceeding to UNREGISTERING anyway (spec.md
// S4.4 CLOSING row: "Forward-Close reply or timeout").
const forwardCloseTimeout = 2 * time.Second

func (s *Session) addr() string {
	return net.JoinHostPort(s.Identity.Host, fmt.Sprintf("%d", s.Identity.Port))
}

// WriteFrame writes a complete EIP frame to the socket with a short
// deadline (spec.md S4.6: suspension points are non-blocking socket
// calls only).
func (s *Session) WriteFrame(frame []byte) error {
	if s.conn == nil {
		return status.New(status.BadConnection, "session: write on closed socket")
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(ioDeadline))
	_, err := s.conn.Write(frame)
	return err
}

// PollRead makes one non-blocking-style read attempt, appends any bytes
// received to the receive accumulator, and returns every complete frame
// now available (header+payload), leaving a partial trailing frame in
// the accumulator for the next call.
func (s *Session) PollRead(now time.Time) ([][]byte, error) {
	if s.conn == nil {
		return nil, status.New(status.BadConnection, "session: read on closed socket")
	}
	_ = s.conn.SetReadDeadline(now.Add(ioDeadline))
	buf := make([]byte, 4096)
	n, err := s.conn.Read(buf)
	if n > 0 {
		s.recvBuf = append(s.recvBuf, buf[:n]...)
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			err = nil
		}
	}

	var frames [][]byte
	for {
		flen, ok, ferr := wire.FrameLen(s.recvBuf)
		if ferr != nil {
			return frames, ferr
		}
		if !ok || len(s.recvBuf) < flen {
			break
		}
		frames = append(frames, s.recvBuf[:flen])
		s.recvBuf = s.recvBuf[flen:]
	}
	return frames, err
}

// Connect transitions a CLOSED session to CONNECTING, opening and tuning
// the socket (spec.md S4.4 CONNECTING row). It is a no-op if the session
// is not CLOSED or the backoff window has not elapsed.
func (s *Session) Connect(now time.Time) error {
	if s.State() != Closed {
		return nil
	}
	if !s.BackoffReady(now) {
		return status.New(status.Pending, "session: backoff in effect")
	}
	conn, err := dial(s.Dial, s.addr())
	if err != nil {
		s.backoff.Fail(now)
		s.setErr(err)
		return status.New(status.Open, "session: dial %s: %v", s.addr(), err)
	}
	s.conn = conn
	s.setState(Connecting)
	return nil
}

// Step advances the state machine by one tick (spec.md S4.4's transition
// table). It is called repeatedly by the I/O worker for every session
// that has work pending or is mid-handshake.
func (s *Session) Step(now time.Time) error {
	switch s.State() {
	case Closed:
		return nil // caller decides whether to Connect

	case Connecting:
		ctx := s.NextSenderContext()
		if err := s.WriteFrame(wire.BuildRegisterSession(ctx)); err != nil {
			return s.fail(now, err)
		}
		s.setState(Registering)
		return nil

	case Registering:
		frames, err := s.PollRead(now)
		if err != nil {
			return s.fail(now, err)
		}
		for _, f := range frames {
			h, _, derr := wire.DecodeFrame(f)
			if derr != nil {
				continue
			}
			if h.Command != wire.CmdRegisterSession {
				continue
			}
			if h.Status != 0 {
				return s.fail(now, status.New(status.RemoteErr, "session: register-session status 0x%x", h.Status))
			}
			s.SessionHandle = h.SessionHandle
			s.backoff.Reset()
			s.setState(Ready)
			return nil
		}
		return nil

	case Opening:
		return s.stepOpening(now)

	case Closing:
		return s.stepClosing(now)

	case Unregistering:
		ctx := s.NextSenderContext()
		if err := s.WriteFrame(wire.BuildUnregisterSession(s.SessionHandle, ctx)); err != nil {
			// Unregister is best-effort: proceed to close regardless.
			s.setErr(err)
		}
		s.teardownSocket()
		s.setState(Closed)
		return nil

	case Ready:
		return nil // general traffic is driven by the I/O worker directly
	}
	return nil
}

// Fail tears the session down and applies backoff as if Step had hit a
// socket error, for callers outside this package (the I/O worker) that
// observe a failure while sending or receiving on a READY session.
func (s *Session) Fail(now time.Time, err error) error {
	return s.fail(now, err)
}

func (s *Session) fail(now time.Time, err error) error {
	s.teardownSocket()
	s.backoff.Fail(now)
	s.setErr(err)
	s.Requests.AbortAll(status.BadConnection)
	s.setState(Closed)
	return err
}

func (s *Session) teardownSocket() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.recvBuf = nil
}

// RequestForwardOpen begins opening a CIP connection, used when a tag
// needs connected (Class-3) service and none is active yet (spec.md
// S4.4 READY row: "app queues request needing connection & no connection
// yet").
func (s *Session) RequestForwardOpen(connectionPath []byte, large bool) error {
	if s.State() != Ready {
		return status.New(status.NotAllowed, "session: forward-open requested outside READY (state=%s)", s.State())
	}
	s.ConnectionSerial++
	s.fwdOpen = &pendingForwardOpen{params: wire.ForwardOpenParams{
		Large:             large,
		ConnectionSerial:  s.ConnectionSerial,
		TimeoutMultiplier: 1,
		RPIMicros:         wire.DefaultRPIMicros,
		OToTConnParams:    uint32(wire.ConnParamsLogix504),
		TToOConnParams:    uint32(wire.ConnParamsLogix504),
		ConnectionPath:    connectionPath,
	}}
	s.pendingConnPath = connectionPath
	s.setState(Opening)
	return nil
}

func (s *Session) stepOpening(now time.Time) error {
	fo := s.fwdOpen
	if fo == nil {
		s.setState(Ready)
		return nil
	}
	if !fo.sent {
		req, err := wire.BuildForwardOpenRequest(fo.params)
		if err != nil {
			s.fwdOpen = nil
			s.setState(Ready)
			return err
		}
		ctx := s.NextSenderContext()
		cpf := wire.WrapUnconnected(req, 0)
		frame := wire.EncodeFrame(wire.Header{Command: wire.CmdSendRRData, SessionHandle: s.SessionHandle, SenderContext: ctx}, cpf)
		if err := s.WriteFrame(frame); err != nil {
			return s.fail(now, err)
		}
		fo.sent = true
		return nil
	}

	frames, err := s.PollRead(now)
	if err != nil {
		return s.fail(now, err)
	}
	for _, f := range frames {
		h, payload, derr := wire.DecodeFrame(f)
		if derr != nil || h.Command != wire.CmdSendRRData {
			continue
		}
		cpf, cerr := wire.DecodeCPF(payload)
		if cerr != nil {
			continue
		}
		cipBody, uerr := wire.UnwrapUnconnected(cpf)
		if uerr != nil {
			continue
		}
		respHdr, body, perr := wire.UnpackResponseHeader(cipBody)
		if perr != nil {
			continue
		}
		s.fwdOpen = nil
		if respHdr.GeneralStatus != 0 {
			s.setState(Ready)
			return status.New(status.RemoteErr, "session: forward-open general status 0x%x", respHdr.GeneralStatus)
		}
		reply, rerr := wire.ParseForwardOpenReplyBody(body)
		if rerr != nil {
			s.setState(Ready)
			return rerr
		}
		s.OToTConnID = reply.OToTConnID
		s.TToOConnID = reply.TToOConnID
		s.connected = true
		s.setState(Ready)
		return nil
	}
	return nil
}

// RequestForwardClose begins closing an active CIP connection (spec.md
// S4.4 READY->CLOSING on idle timeout or explicit teardown).
func (s *Session) RequestForwardClose() error {
	if !s.IsConnected() {
		return nil
	}
	s.fwdClose = &pendingForwardClose{connectionPath: s.pendingConnPath}
	s.setState(Closing)
	return nil
}

func (s *Session) stepClosing(now time.Time) error {
	fc := s.fwdClose
	if fc == nil {
		s.setState(Unregistering)
		return nil
	}
	if !fc.sent {
		req, err := wire.BuildForwardCloseRequest(s.ConnectionSerial, fc.connectionPath)
		if err != nil {
			s.fwdClose = nil
			s.setState(Unregistering)
			return err
		}
		ctx := s.NextSenderContext()
		cpf := wire.WrapUnconnected(req, 0)
		frame := wire.EncodeFrame(wire.Header{Command: wire.CmdSendRRData, SessionHandle: s.SessionHandle, SenderContext: ctx}, cpf)
		if err := s.WriteFrame(frame); err != nil {
			return s.fail(now, err)
		}
		fc.sent = true
		fc.sentAt = now
		return nil
	}

	frames, err := s.PollRead(now)
	if err != nil {
		return s.fail(now, err)
	}
	if len(frames) > 0 || closingTimedOut(fc, now) {
		s.connected = false
		s.OToTConnID = 0
		s.TToOConnID = 0
		s.fwdClose = nil
		s.setState(Unregistering)
	}
	return nil
}

// closingTimedOut reports whether a sent Forward-Close has gone
// forwardCloseTimeout without a reply, so a lost reply does not strand
// the session in CLOSING forever (spec.md S4.4 CLOSING row).
func closingTimedOut(fc *pendingForwardClose, now time.Time) bool {
	return fc.sent && now.Sub(fc.sentAt) >= forwardCloseTimeout
}
