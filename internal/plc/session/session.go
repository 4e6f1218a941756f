// Package session implements spec.md S4.4's Session State Machine: one TCP
// socket to one (host, port) gateway, driven CONNECTING -> REGISTERING ->
// READY <-> OPENING/CLOSING -> UNREGISTERING -> CLOSED by repeated calls to
// Step from the I/O worker's single cooperative loop.
package session

import (
	"net"
	"sync"
	"time"

	"github.com/tturner/ab-eip-client/internal/plc/request"
)

// State is a Session State Machine state (spec.md S4.4).
type State int

const (
	Closed State = iota
	Connecting
	Registering
	Ready
	Opening
	Closing
	Unregistering
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Connecting:
		return "CONNECTING"
	case Registering:
		return "REGISTERING"
	case Ready:
		return "READY"
	case Opening:
		return "OPENING"
	case Closing:
		return "CLOSING"
	case Unregistering:
		return "UNREGISTERING"
	default:
		return "UNKNOWN"
	}
}

// Identity is the registry key a Session is looked up by (spec.md S4.4:
// "at most one Session per identity in the registry").
type Identity struct {
	Protocol    string // "plc5", "slc", "logix", ...
	Host        string
	Port        uint16
	EncodedPath string // string(ParsedPath.Bytes), used as a map/comparable key
}

// Session owns one TCP socket to one gateway. Its socket-touching fields
// are modified only from the I/O worker goroutine calling Step; its
// request-list and sequencing fields are guarded by mu so application
// goroutines (via the Tag Coordinator) can enqueue work concurrently.
type Session struct {
	Identity Identity

	mu    sync.Mutex
	state State

	conn net.Conn

	SessionHandle uint32

	nextSenderContext uint64
	connSeq           uint16

	OToTConnID       uint32
	TToOConnID       uint32
	ConnectionSerial uint16
	connected        bool // Forward-Open succeeded, connection id valid
	allowPacking     bool // caller opted into Multiple Service Packet batching

	recvBuf []byte // receive accumulator; grows until a full frame is present

	fwdOpen         *pendingForwardOpen
	fwdClose        *pendingForwardClose
	pendingConnPath []byte

	Requests *request.Store

	refCount int // attached-tag count; registry destroys at zero

	backoff Backoff

	// Dial is overridable for tests; defaults to net.Dial.
	Dial func(network, addr string) (net.Conn, error)

	lastErr error
}

// New creates a Session in the CLOSED state for the given identity.
func New(id Identity) *Session {
	return &Session{
		Identity: id,
		state:    Closed,
		Requests: request.NewStore(),
		backoff:  NewBackoff(),
		Dial:     net.Dial,
	}
}

// State returns the current state under the session mutex.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextSenderContext returns the next 64-bit sender context for an
// unconnected request, skipping zero (spec.md S4.3: "sender_context == 0
// is reserved") and strictly increasing (spec.md S8 invariant 2).
func (s *Session) NextSenderContext() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSenderContext++
	if s.nextSenderContext == 0 {
		s.nextSenderContext = 1
	}
	return s.nextSenderContext
}

// NextConnSeq returns the next 16-bit connection-sequence number for
// connected traffic, incremented per Forward-Open scope (spec.md S4.4).
func (s *Session) NextConnSeq() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connSeq++
	return s.connSeq
}

// IsConnected reports whether a CIP (Forward-Open) connection is active.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// AllowPacking reports whether this session may combine several
// requests into one Multiple Service Packet frame (spec.md S6's
// `allow_packing` attribute, process-wide per gateway since the packet
// is built per-session, not per-tag).
func (s *Session) AllowPacking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allowPacking
}

// SetAllowPacking sets the packing policy. Only ever needs to move from
// false to true in practice (a later tag on the same shared session
// asking for packing), but either direction is safe.
func (s *Session) SetAllowPacking(v bool) {
	s.mu.Lock()
	s.allowPacking = v
	s.mu.Unlock()
}

// Attach increments the reference count (a tag has attached to this
// session). Detach decrements it and reports whether the session is now
// unreferenced and eligible for teardown (spec.md S4.4: "destroyed only
// when its reference count reaches zero").
func (s *Session) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refCount++
}

func (s *Session) Detach() (unreferenced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refCount > 0 {
		s.refCount--
	}
	return s.refCount == 0
}

func (s *Session) RefCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refCount
}

// LastError returns the most recent connection-level error recorded by
// Step, for diagnostic surfacing (spec.md S7).
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// BackoffReady reports whether enough time has passed since the last
// failure for a reconnect attempt (spec.md S4.4: "capped exponential
// backoff, jittered").
func (s *Session) BackoffReady(now time.Time) bool {
	return s.backoff.Ready(now)
}
