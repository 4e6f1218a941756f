package ioworker

import (
	"net"
	"testing"
	"time"

	"github.com/tturner/ab-eip-client/internal/plc/cippath"
	"github.com/tturner/ab-eip-client/internal/plc/session"
	"github.com/tturner/ab-eip-client/internal/plc/status"
	"github.com/tturner/ab-eip-client/internal/plc/tag"
	"github.com/tturner/ab-eip-client/internal/plc/wire"
)

// fakeGateway replies to a Register-Session with a handle, then to every
// subsequent SendRRData frame with a canned Read Tag Fragmented success
// reply carrying a DINT value of 42, echoing the sender context each
// time so the worker's matching logic is exercised end to end.
func fakeGateway(t *testing.T, conn net.Conn) {
	t.Helper()
	buf := make([]byte, 4096)

	n, err := conn.Read(buf)
	if err != nil {
		return
	}
	h, _, err := wire.UnpackHeader(buf[:n], 0)
	if err != nil || h.Command != wire.CmdRegisterSession {
		return
	}
	reply := wire.EncodeFrame(wire.Header{
		Command:       wire.CmdRegisterSession,
		SessionHandle: 0xAABBCCDD,
		SenderContext: h.SenderContext,
	}, buf[wire.HeaderLen:n])
	if _, err := conn.Write(reply); err != nil {
		return
	}

	for {
		n, err = conn.Read(buf)
		if err != nil {
			return
		}
		h, _, err := wire.DecodeFrame(buf[:n])
		if err != nil || h.Command != wire.CmdSendRRData {
			continue
		}
		respHdr := wire.PackResponseHeader(wire.ResponseHeader{Service: wire.ServiceReadTagFrag})
		replyBody := append([]byte{0xC4, 0x00}, 0x2A, 0, 0, 0) // DINT type code + value 42
		cipResp := append(respHdr, replyBody...)
		cpf := wire.WrapUnconnected(cipResp, 0)
		out := wire.EncodeFrame(wire.Header{
			Command:       wire.CmdSendRRData,
			SessionHandle: h.SessionHandle,
			SenderContext: h.SenderContext,
		}, cpf)
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func TestWorkerReadRoundTrip(t *testing.T) {
	client, gateway := net.Pipe()
	defer gateway.Close()
	go fakeGateway(t, gateway)

	sess := session.New(session.Identity{Host: "127.0.0.1", Port: 44818})
	sess.Dial = func(network, addr string) (net.Conn, error) { return client, nil }

	tg, err := tag.New("MyDINT", cippath.FamilyLogix, tag.TypeDINT, 1, sess, nil)
	if err != nil {
		t.Fatal(err)
	}

	w := New()
	id := w.Register(tg, sess)

	now := time.Unix(100, 0)
	if err := sess.Connect(now); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	for i := 0; i < 20 && sess.State() != session.Ready; i++ {
		if err := w.Tick(time.Now()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if sess.State() != session.Ready {
		t.Fatalf("session state = %v, want READY", sess.State())
	}

	if err := w.SubmitRead(id, time.Now()); err != nil {
		t.Fatalf("SubmitRead: %v", err)
	}

	for i := 0; i < 20 && tg.State() != tag.Idle; i++ {
		if err := w.Tick(time.Now()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if tg.State() != tag.Idle {
		t.Fatalf("tag state = %v, want IDLE", tg.State())
	}
	if tg.Status() != status.OK {
		t.Fatalf("tag status = %v, want OK", tg.Status())
	}
	v, err := tg.Buf.GetInt32(0)
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Fatalf("value = %d, want 42", v)
	}
}

func TestUnregisterReleasesSessionReference(t *testing.T) {
	sess := session.New(session.Identity{Host: "h", Port: 1})
	tg, err := tag.New("MyDINT", cippath.FamilyLogix, tag.TypeDINT, 1, sess, nil)
	if err != nil {
		t.Fatal(err)
	}
	w := New()
	id := w.Register(tg, sess)
	if sess.RefCount() != 1 {
		t.Fatalf("RefCount() = %d, want 1", sess.RefCount())
	}
	if unreferenced := w.Unregister(id); !unreferenced {
		t.Fatal("expected session to become unreferenced")
	}
}
