package plctag

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/tturner/ab-eip-client/internal/plc/simulator"
	itag "github.com/tturner/ab-eip-client/internal/plc/tag"
)

func newSimGateway(t *testing.T) (*simulator.Gateway, string, uint16) {
	t.Helper()
	gw := simulator.New(nil)
	addr, err := gw.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { gw.Close() })
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("SplitHostPort(%q): %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port %q: %v", portStr, err)
	}
	return gw, host, uint16(port)
}

func TestCreateReadWriteLogix(t *testing.T) {
	gw, host, port := newSimGateway(t)
	if err := gw.SetLogixTag("MyTag", uint16(itag.TypeDINT), []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("SetLogixTag: %v", err)
	}

	attrs := fmt.Sprintf("protocol=ab_eip&gateway=%s&port=%d&name=MyTag&data_type=DINT&elem_count=1", host, port)
	tg, err := Create(attrs)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tg.Destroy()
	tg.SetTimeout(3 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := tg.Write(ctx, []byte{42, 0, 0, 0}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	stored, ok := gw.LogixTag("MyTag")
	if !ok || string(stored) != string([]byte{42, 0, 0, 0}) {
		t.Fatalf("gateway tag after write = %v, ok=%v", stored, ok)
	}

	if err := tg.Read(ctx); err != nil {
		t.Fatalf("Read: %v", err)
	}
	v, err := tg.GetInt32(0)
	if err != nil || v != 42 {
		t.Fatalf("GetInt32 = %d, err=%v, want 42", v, err)
	}
}

func TestCreatePLC5TypedReadWrite(t *testing.T) {
	_, host, port := newSimGateway(t)

	attrs := fmt.Sprintf("protocol=plc5&gateway=%s&port=%d&name=N7:0&data_type=INT&elem_count=1", host, port)
	tg, err := Create(attrs)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tg.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := tg.Write(ctx, []byte{0x39, 0x05}); err != nil { // 1337 LE16
		t.Fatalf("Write: %v", err)
	}
	if err := tg.Read(ctx); err != nil {
		t.Fatalf("Read: %v", err)
	}
	v, err := tg.GetInt16(0)
	if err != nil || v != 1337 {
		t.Fatalf("GetInt16 = %d, err=%v, want 1337", v, err)
	}
}

func TestCreateMissingProtocolFails(t *testing.T) {
	_, err := Create("gateway=127.0.0.1&name=Foo&data_type=DINT")
	if err == nil {
		t.Fatal("expected error for missing protocol")
	}
}

func TestCreateUnknownDataTypeFails(t *testing.T) {
	_, err := Create("protocol=ab_eip&gateway=127.0.0.1&name=Foo&data_type=NOPE")
	if err == nil {
		t.Fatal("expected error for unknown data_type")
	}
}

func TestCreateOmronClampsElemCountToOne(t *testing.T) {
	gw, host, port := newSimGateway(t)
	if err := gw.SetLogixTag("D100", uint16(itag.TypeINT), []byte{0, 0}); err != nil {
		t.Fatalf("SetLogixTag: %v", err)
	}

	attrs := fmt.Sprintf("cpu=omron&gateway=%s&gateway_port=%d&name=D100&elem_type=INT&elem_count=10", host, port)
	tg, err := Create(attrs)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tg.Destroy()

	if tg.Size() != 2 {
		t.Fatalf("Size() = %d, want 2 (elem_count clamped to 1)", tg.Size())
	}
}

func TestCreateShareSessionFalseUsesPrivateSession(t *testing.T) {
	gw, host, port := newSimGateway(t)
	if err := gw.SetLogixTag("Tag1", uint16(itag.TypeDINT), []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("SetLogixTag: %v", err)
	}
	if err := gw.SetLogixTag("Tag2", uint16(itag.TypeDINT), []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("SetLogixTag: %v", err)
	}

	base := fmt.Sprintf("protocol=ab_eip&gateway=%s&gateway_port=%d&elem_type=DINT&elem_count=1", host, port)
	shared1, err := Create(base + "&name=Tag1")
	if err != nil {
		t.Fatalf("Create shared1: %v", err)
	}
	defer shared1.Destroy()
	shared2, err := Create(base + "&name=Tag2")
	if err != nil {
		t.Fatalf("Create shared2: %v", err)
	}
	defer shared2.Destroy()
	if shared1.sess != shared2.sess {
		t.Fatal("expected two share_session=true tags against the same gateway to share a session")
	}

	private, err := Create(base + "&name=Tag1&share_session=0")
	if err != nil {
		t.Fatalf("Create private: %v", err)
	}
	defer private.Destroy()
	if private.sess == shared1.sess {
		t.Fatal("expected share_session=0 to bypass the shared session registry")
	}
}

func TestCreateUseConnectedMsgFalseSkipsForwardOpen(t *testing.T) {
	gw, host, port := newSimGateway(t)
	if err := gw.SetLogixTag("MyTag", uint16(itag.TypeDINT), []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("SetLogixTag: %v", err)
	}

	attrs := fmt.Sprintf("protocol=ab_eip&gateway=%s&gateway_port=%d&name=MyTag&elem_type=DINT&elem_count=1&use_connected_msg=0", host, port)
	tg, err := Create(attrs)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tg.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := tg.Write(ctx, []byte{7, 0, 0, 0}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if tg.sess.IsConnected() {
		t.Fatal("expected use_connected_msg=0 to keep the session unconnected")
	}
}

func TestCreateAllowPackingBatchesRequests(t *testing.T) {
	gw, host, port := newSimGateway(t)
	if err := gw.SetLogixTag("TagA", uint16(itag.TypeDINT), []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("SetLogixTag: %v", err)
	}
	if err := gw.SetLogixTag("TagB", uint16(itag.TypeDINT), []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("SetLogixTag: %v", err)
	}

	base := fmt.Sprintf("protocol=ab_eip&gateway=%s&gateway_port=%d&elem_type=DINT&elem_count=1&allow_packing=1", host, port)
	tagA, err := Create(base + "&name=TagA")
	if err != nil {
		t.Fatalf("Create tagA: %v", err)
	}
	defer tagA.Destroy()
	tagB, err := Create(base + "&name=TagB")
	if err != nil {
		t.Fatalf("Create tagB: %v", err)
	}
	defer tagB.Destroy()
	if !tagA.sess.AllowPacking() {
		t.Fatal("expected allow_packing=1 to set AllowPacking on the shared session")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := tagA.Write(ctx, []byte{1, 0, 0, 0}); err != nil {
		t.Fatalf("tagA Write: %v", err)
	}
	if err := tagB.Write(ctx, []byte{2, 0, 0, 0}); err != nil {
		t.Fatalf("tagB Write: %v", err)
	}

	storedA, ok := gw.LogixTag("TagA")
	if !ok || string(storedA) != string([]byte{1, 0, 0, 0}) {
		t.Fatalf("gateway TagA after write = %v, ok=%v", storedA, ok)
	}
	storedB, ok := gw.LogixTag("TagB")
	if !ok || string(storedB) != string([]byte{2, 0, 0, 0}) {
		t.Fatalf("gateway TagB after write = %v, ok=%v", storedB, ok)
	}
}

func TestCreateBitAddressedLogixWriteLeavesSiblingBitsAlone(t *testing.T) {
	gw, host, port := newSimGateway(t)
	// Seed with every bit set except bit 3, so a write to bit 3 is the
	// only bit this test expects to change.
	if err := gw.SetLogixTag("MyDint", uint16(itag.TypeDINT), []byte{0xF7, 0xFF, 0xFF, 0xFF}); err != nil {
		t.Fatalf("SetLogixTag: %v", err)
	}

	attrs := fmt.Sprintf("protocol=ab_eip&gateway=%s&gateway_port=%d&name=MyDint.3&elem_type=DINT&elem_count=1", host, port)
	tg, err := Create(attrs)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tg.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	// Bit 3 set, matching its natural position in the element's first
	// byte — buildBitWriteLocked masks everything else off before this
	// reaches the wire, so the other three bytes stay whatever the
	// remote already holds regardless of what's staged here.
	if err := tg.Write(ctx, []byte{0x08, 0, 0, 0}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	stored, ok := gw.LogixTag("MyDint")
	if !ok {
		t.Fatal("expected MyDint to still exist on the gateway")
	}
	if string(stored) != string([]byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Fatalf("gateway MyDint after bit write = %v, want all bits set", stored)
	}
}

func TestReadTimesOutAgainstUnreachableGateway(t *testing.T) {
	// 192.0.2.0/24 is reserved for documentation (RFC 5737); nothing
	// answers there, so the session's dial/backoff loop never reaches
	// READY and Read must surface a timeout rather than hang.
	attrs := "protocol=ab_eip&gateway=192.0.2.1&port=44818&name=Unreachable&data_type=DINT"
	tg, err := Create(attrs)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tg.Destroy()
	tg.SetTimeout(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := tg.Read(ctx); err == nil {
		t.Fatal("expected timeout reading an unreachable gateway")
	}
}
