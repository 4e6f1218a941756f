// Package request implements spec.md S4.3's per-session request store: a
// container-owned collection of in-flight request descriptors, replacing
// the intrusive `next`-pointer list the original C implementation used
// (spec.md's Design Notes: "no linked-list intrusions across lifetimes").
package request

import (
	"sync"
	"time"

	"github.com/tturner/ab-eip-client/internal/plc/status"
)

// Request is one in-flight request descriptor (spec.md S4.3).
type Request struct {
	// TagID identifies the owning tag (opaque to the store).
	TagID uint64

	// SessionSeq is the 64-bit session-sequence id copied into the encap
	// header's sender-context field for unconnected requests.
	SessionSeq uint64

	// PeerConnID and ConnSeq identify a connected (Class-3) reply; ConnSeq
	// is only meaningful when HasConn is true.
	PeerConnID uint32
	ConnSeq    uint16
	HasConn    bool

	// Body is the serialised request bytes awaiting transmission.
	Body []byte
	// CIPBody is Body's service-header-and-data portion before the EIP/CPF
	// envelope was wrapped around it — kept so a Multiple Service Packet
	// batch can rebuild this request as one of its sub-requests.
	CIPBody []byte
	// SendOffset is how many bytes of Body have been written so far.
	SendOffset int
	// SentAt is when the request's frame was handed to the socket,
	// recorded for round-trip-time logging once a reply matches it.
	SentAt time.Time

	// Grouped holds the member requests a Multiple Service Packet envelope
	// was built from; nil on an ordinary, non-packed request. A grouped
	// request is otherwise a normal Store entry: it carries its own
	// SessionSeq/PeerConnID/ConnSeq and is matched to its reply the same
	// way any other request is.
	Grouped []*Request

	// Response accumulates the reply body as it is received (fragmented
	// reads append across multiple Requests sharing a tag's read state,
	// but a single Request's Response is appended to only once it starts
	// receiving).
	Response []byte

	Status status.Code

	SendInProgress   bool
	RecvInProgress   bool
	ResponseReceived bool
	AbortRequested   bool

	id uint64 // stable arena index, assigned by the Store
}

// ID returns the request's stable arena index, usable as a map key or log
// field without holding a reference to the Request itself.
func (r *Request) ID() uint64 { return r.id }

// Store is a session's FIFO of in-flight requests. It is the container
// that owns Request lifetimes: requests are appended in sequence order
// and removed by arena index, never via pointer-chasing.
type Store struct {
	mu      sync.Mutex
	nextID  uint64
	entries []*Request
}

// NewStore creates an empty request store.
func NewStore() *Store {
	return &Store{}
}

// Append adds r to the store, assigning it a stable id, and returns that
// id. Must be called with the owning session's tag not holding any
// network I/O in progress (spec.md: "appended to Session.requests under
// the session mutex").
func (s *Store) Append(r *Request) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.id = s.nextID
	s.entries = append(s.entries, r)
	return r.id
}

// Remove detaches the request with the given id from the store. It is a
// no-op if the id is not present (already removed).
func (s *Store) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.entries {
		if r.id == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// FindBySenderContext returns the first unconnected, not-yet-completed
// request whose SessionSeq matches ctx.
func (s *Store) FindBySenderContext(ctx uint64) (*Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.entries {
		if !r.HasConn && r.SessionSeq == ctx && !r.ResponseReceived {
			return r, true
		}
	}
	return nil, false
}

// FindByConnSeq returns the first connected, not-yet-completed request
// whose (peerConnID, connSeq) matches — connected replies may arrive out
// of FIFO order (spec.md S4.6: "any-order receive").
func (s *Store) FindByConnSeq(peerConnID uint32, connSeq uint16) (*Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.entries {
		if r.HasConn && r.PeerConnID == peerConnID && r.ConnSeq == connSeq && !r.ResponseReceived {
			return r, true
		}
	}
	return nil, false
}

// NextToSend returns the first request that has not yet started sending,
// in FIFO order (spec.md S4.6: "FIFO send"), or nil if none is pending.
func (s *Store) NextToSend() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.entries {
		if !r.SendInProgress && !r.ResponseReceived && r.SendOffset == 0 {
			return r
		}
	}
	return nil
}

// TakeSendableBatch returns up to limit not-yet-sent requests, in FIFO
// order, without marking them as sent — the caller decides how to send
// them (individually, or folded into one Multiple Service Packet
// envelope) before mutating their send state itself.
func (s *Store) TakeSendableBatch(limit int) []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Request
	for _, r := range s.entries {
		if !r.SendInProgress && !r.ResponseReceived && r.SendOffset == 0 {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// AbortAll marks every outstanding request in the store as abort-
// requested. abort_requested is sticky (spec.md S4.3 invariant): once
// set it is never cleared by the I/O Handler.
func (s *Store) AbortAll(code status.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.entries {
		r.AbortRequested = true
		if !r.ResponseReceived {
			r.Status = code
		}
	}
}

// Abort marks the single request with id as abort-requested.
func (s *Store) Abort(id uint64, code status.Code) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.entries {
		if r.id == id {
			r.AbortRequested = true
			if !r.ResponseReceived {
				r.Status = code
			}
			return true
		}
	}
	return false
}

// Len returns the number of in-flight requests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns a shallow copy of the current entries slice, safe to
// range over without holding the store's lock.
func (s *Store) Snapshot() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Request, len(s.entries))
	copy(out, s.entries)
	return out
}
