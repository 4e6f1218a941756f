// Package ioworker implements spec.md S4.6's single cooperative I/O
// model: one caller-driven tick loop that advances every registered
// session's state machine, sends each session's next queued request,
// and matches inbound frames back to the Request and Tag that issued
// them — in place of one OS thread (or goroutine) blocked per session.
package ioworker

import (
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tturner/ab-eip-client/internal/plc/logging"
	"github.com/tturner/ab-eip-client/internal/plc/request"
	"github.com/tturner/ab-eip-client/internal/plc/session"
	"github.com/tturner/ab-eip-client/internal/plc/status"
	"github.com/tturner/ab-eip-client/internal/plc/tag"
	"github.com/tturner/ab-eip-client/internal/plc/wire"
)

// IdleSleep is how long a caller's tick loop should rest between calls
// to Tick when a tick produced no work, matching spec.md S4.6's
// "~1ms idle sleep between cooperative ticks".
const IdleSleep = time.Millisecond

// maxConcurrentSessions bounds how many sessions one Tick call pumps at
// once; each session's own traffic still proceeds strictly FIFO-send /
// any-order-receive, this only bounds how many distinct sessions run
// their non-blocking socket calls in the same instant.
const maxConcurrentSessions = 8

// maxPackedRequests bounds how many sub-requests one Multiple Service
// Packet envelope carries, well under the reply-offset table's practical
// limit for a single Class-3 frame's payload.
const maxPackedRequests = 8

type entry struct {
	id      uint64
	tag     *tag.Tag
	session *session.Session
}

// Worker is the tick-driven I/O loop. One Worker serves every session a
// process has opened; callers register a Tag (already bound to a
// Session) and then drive reads/writes through Submit* calls, with Tick
// doing the actual socket work.
type Worker struct {
	mu      sync.Mutex
	entries map[uint64]*entry
	nextID  uint64
	log     *logging.Logger
}

// New creates an empty Worker. Logging is silent until SetLogger is
// called.
func New() *Worker {
	log, _ := logging.New(logging.LevelSilent, "")
	return &Worker{entries: make(map[uint64]*entry), log: log}
}

// SetLogger redirects the worker's session-event and per-operation
// logging to log.
func (w *Worker) SetLogger(log *logging.Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log = log
}

// Register attaches t to the worker's tick set, under sess, and returns
// the id its Requests will carry. It attaches a reference to sess
// (spec.md S4.4: "destroyed only when its reference count reaches
// zero").
func (w *Worker) Register(t *tag.Tag, sess *session.Session) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	id := w.nextID
	w.entries[id] = &entry{id: id, tag: t, session: sess}
	sess.Attach()
	return id
}

// Unregister detaches a tag from the tick set and releases its session
// reference, reporting whether the session is now unreferenced (the
// registry is then responsible for tearing it down).
func (w *Worker) Unregister(id uint64) (sessionUnreferenced bool) {
	w.mu.Lock()
	e, ok := w.entries[id]
	if ok {
		delete(w.entries, id)
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	return e.session.Detach()
}

func (w *Worker) lookup(id uint64) (*entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[id]
	return e, ok
}

func (w *Worker) sessions() []*session.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	seen := make(map[*session.Session]bool, len(w.entries))
	out := make([]*session.Session, 0, len(w.entries))
	for _, e := range w.entries {
		if !seen[e.session] {
			seen[e.session] = true
			out = append(out, e.session)
		}
	}
	return out
}

// SubmitRead starts a read on the tag registered as id, queuing its wire
// request on the owning session's Request store for the next Tick to
// send. A cache hit (tag.StartRead returning a nil body) completes
// synchronously and queues nothing.
func (w *Worker) SubmitRead(id uint64, now time.Time) error {
	e, ok := w.lookup(id)
	if !ok {
		return status.New(status.BadParam, "ioworker: unknown tag id %d", id)
	}
	body, err := e.tag.StartRead(now)
	if err != nil {
		return err
	}
	if body == nil {
		return nil // cache hit
	}
	return w.enqueue(e, body)
}

// SubmitWrite starts a write of data on the tag registered as id.
func (w *Worker) SubmitWrite(id uint64, data []byte) error {
	e, ok := w.lookup(id)
	if !ok {
		return status.New(status.BadParam, "ioworker: unknown tag id %d", id)
	}
	body, err := e.tag.StartWrite(data)
	if err != nil {
		return err
	}
	return w.enqueue(e, body)
}

// enqueue wraps a CIP request body in the EIP/CPF envelope appropriate
// to the session's current connection state (spec.md S4.2: unconnected
// SendRRData framed by sender context, or connected SendUnitData framed
// by (peer connection id, connection sequence)) and appends it to the
// session's FIFO request store.
func (w *Worker) enqueue(e *entry, cipBody []byte) error {
	req := w.buildEnvelope(e.session, cipBody)
	req.TagID = e.id
	e.session.Requests.Append(req)
	return nil
}

// buildEnvelope wraps cipBody in the EIP/CPF envelope appropriate to
// sess's current connection state and returns the resulting Request,
// not yet appended to any store — shared by enqueue's one-request-at-a-
// time path and pumpPacked's Multiple Service Packet path, which wraps a
// combined body built from several requests' own CIPBody instead.
func (w *Worker) buildEnvelope(sess *session.Session, cipBody []byte) *request.Request {
	req := &request.Request{CIPBody: cipBody}

	var frame []byte
	if sess.IsConnected() {
		connSeq := sess.NextConnSeq()
		cpf := wire.WrapConnected(sess.OToTConnID, connSeq, cipBody)
		frame = wire.EncodeFrame(wire.Header{
			Command:       wire.CmdSendUnitData,
			SessionHandle: sess.SessionHandle,
		}, cpf)
		req.HasConn = true
		req.PeerConnID = sess.TToOConnID
		req.ConnSeq = connSeq
	} else {
		ctx := sess.NextSenderContext()
		cpf := wire.WrapUnconnected(cipBody, 0)
		frame = wire.EncodeFrame(wire.Header{
			Command:       wire.CmdSendRRData,
			SessionHandle: sess.SessionHandle,
			SenderContext: ctx,
		}, cpf)
		req.SessionSeq = ctx
	}
	req.Body = frame
	return req
}

// Tick advances every registered session by one step: dialing a CLOSED
// session that has work queued, driving the handshake state machine,
// and — once READY — sending the next queued request and matching any
// complete inbound frames to their Request and Tag. It returns only on
// a programming error (a session's own failures are absorbed into that
// session's backoff and its requests' abort status, not returned here).
func (w *Worker) Tick(now time.Time) error {
	sessions := w.sessions()
	if len(sessions) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentSessions)
	for _, sess := range sessions {
		sess := sess
		g.Go(func() error {
			w.tickSession(sess, now)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) tickSession(sess *session.Session, now time.Time) {
	if sess.State() == session.Closed {
		if sess.Requests.Len() > 0 {
			if err := sess.Connect(now); err != nil {
				w.log.LogSessionEvent(sessionLabel(sess), "connect: "+err.Error())
			} else {
				w.log.LogSessionEvent(sessionLabel(sess), "dialing")
			}
		}
		return
	}
	prevState := sess.State()
	if err := sess.Step(now); err != nil {
		w.log.LogSessionEvent(sessionLabel(sess), "step failed: "+err.Error())
		return // Step already tore the session down on failure
	}
	if st := sess.State(); st != prevState {
		w.log.LogSessionEvent(sessionLabel(sess), "state -> "+st.String())
	}
	if sess.State() != session.Ready {
		return
	}
	w.pump(sess, now)
}

func (w *Worker) pump(sess *session.Session, now time.Time) {
	var failed bool
	if sess.AllowPacking() {
		failed = w.pumpPacked(sess, now)
	} else {
		failed = w.pumpSingle(sess, now)
	}
	if failed {
		return
	}

	frames, err := sess.PollRead(now)
	if err != nil {
		sess.Fail(now, err)
		return
	}
	for _, f := range frames {
		w.handleFrame(sess, now, f)
	}
}

// pumpSingle sends at most the session's next queued request, one frame
// per tick, the original (spec.md S4.6) cooperative-worker behavior.
// Returns true if writing the frame failed (the session has already been
// torn down via Fail and this tick should stop touching it).
func (w *Worker) pumpSingle(sess *session.Session, now time.Time) bool {
	r := sess.Requests.NextToSend()
	if r == nil {
		return false
	}
	return w.sendOne(sess, now, r)
}

// pumpPacked folds up to maxPackedRequests pending requests into one
// Multiple Service Packet envelope (spec.md S6 `allow_packing`) instead
// of sending them one per tick. A single pending request still goes out
// on its own; packing only pays off once more than one request queues up
// in the same tick.
func (w *Worker) pumpPacked(sess *session.Session, now time.Time) bool {
	batch := sess.Requests.TakeSendableBatch(maxPackedRequests)
	if len(batch) == 0 {
		return false
	}
	if len(batch) == 1 {
		return w.sendOne(sess, now, batch[0])
	}

	subBodies := make([][]byte, len(batch))
	for i, r := range batch {
		subBodies[i] = r.CIPBody
	}
	packed, err := wire.BuildMultipleServicePacket(subBodies)
	if err != nil {
		// Can't be packed (e.g. a sub-request too large) — fall back to
		// sending just the head of the batch this tick.
		return w.sendOne(sess, now, batch[0])
	}

	group := w.buildEnvelope(sess, packed)
	group.Grouped = batch
	sess.Requests.Append(group)
	if err := sess.WriteFrame(group.Body); err != nil {
		sess.Fail(now, err)
		return true
	}
	group.SendInProgress = true
	group.SendOffset = len(group.Body)
	group.SentAt = now
	for _, r := range batch {
		r.SendInProgress = true
		r.SendOffset = len(r.Body)
		r.SentAt = now
	}
	return false
}

func (w *Worker) sendOne(sess *session.Session, now time.Time, r *request.Request) bool {
	if err := sess.WriteFrame(r.Body); err != nil {
		sess.Fail(now, err)
		return true
	}
	r.SendInProgress = true
	r.SendOffset = len(r.Body)
	r.SentAt = now
	return false
}

func sessionLabel(sess *session.Session) string {
	return sess.Identity.Protocol + "://" + sess.Identity.Host
}

func (w *Worker) handleFrame(sess *session.Session, now time.Time, frame []byte) {
	h, payload, err := wire.DecodeFrame(frame)
	if err != nil {
		return
	}
	cpf, err := wire.DecodeCPF(payload)
	if err != nil {
		return
	}

	var req *request.Request
	var cipBytes []byte
	var ok bool
	switch h.Command {
	case wire.CmdSendRRData:
		cipBytes, err = wire.UnwrapUnconnected(cpf)
		if err != nil {
			return
		}
		req, ok = sess.Requests.FindBySenderContext(h.SenderContext)
	case wire.CmdSendUnitData:
		var peerConnID uint32
		var connSeq uint16
		peerConnID, connSeq, cipBytes, err = wire.UnwrapConnected(cpf)
		if err != nil {
			return
		}
		req, ok = sess.Requests.FindByConnSeq(peerConnID, connSeq)
	default:
		return
	}
	if !ok {
		return
	}

	req.Response = cipBytes
	req.ResponseReceived = true
	sess.Requests.Remove(req.ID())
	if req.AbortRequested {
		return
	}

	if len(req.Grouped) > 0 {
		w.completeGrouped(now, req, cipBytes)
		return
	}

	e, ok := w.lookup(req.TagID)
	if !ok {
		return
	}
	rttMs := float64(now.Sub(req.SentAt)) / float64(time.Millisecond)
	switch e.tag.State() {
	case tag.ReadRequestState:
		_ = e.tag.CompleteRead(now, cipBytes)
		if e.tag.Status() == status.Pending {
			// A fragmented read left more data to fetch (spec.md S4.5:
			// general status 0x06 re-arms at the next offset); the cache
			// TTL only arms on full completion, so this cannot loop on a
			// cache hit.
			if body, serr := e.tag.StartRead(now); serr == nil && body != nil {
				_ = w.enqueue(e, body)
				return
			}
		}
		w.logResult("read", e.tag, rttMs)
	case tag.WriteRequestState:
		_ = e.tag.CompleteWrite(cipBytes)
		if frag := e.tag.PendingFragment(); frag != nil {
			_ = w.enqueue(e, frag)
			return
		}
		w.logResult("write", e.tag, rttMs)
	}
}

// completeGrouped demultiplexes one Multiple Service Packet reply back to
// each member request's owning tag, in the same order the packed request
// listed its sub-requests (spec.md S6 `allow_packing`). A malformed
// envelope or a short reply list fails every remaining member with
// BAD_DATA rather than leaving their tags stuck off-IDLE forever; a
// packed group never carries a fragmented read or write, so there is no
// re-enqueue path to mirror here the way the single-request path has.
func (w *Worker) completeGrouped(now time.Time, group *request.Request, body []byte) {
	_, rest, err := wire.UnpackResponseHeader(body)
	var replies [][]byte
	if err == nil {
		replies, err = wire.ParseMultipleServiceReplyBody(rest)
	}
	for i, r := range group.Grouped {
		e, ok := w.lookup(r.TagID)
		if !ok {
			continue
		}
		var reply []byte
		if err == nil && i < len(replies) {
			reply = replies[i]
		}
		rttMs := float64(now.Sub(r.SentAt)) / float64(time.Millisecond)
		switch e.tag.State() {
		case tag.ReadRequestState:
			_ = e.tag.CompleteRead(now, reply)
			w.logResult("read", e.tag, rttMs)
		case tag.WriteRequestState:
			_ = e.tag.CompleteWrite(reply)
			w.logResult("write", e.tag, rttMs)
		}
	}
}

func (w *Worker) logResult(op string, t *tag.Tag, rttMs float64) {
	code := t.Status()
	w.log.LogOperation(op, t.Name, t.Family.String(), code == status.OK, rttMs, int(code), nil)
}
