package main

import (
	"strings"
	"testing"

	"github.com/tturner/ab-eip-client/internal/plc/pccc"
	"github.com/tturner/ab-eip-client/internal/plc/wire"
)

func TestDrainFramesSplitsConcatenatedFrames(t *testing.T) {
	f1 := wire.BuildRegisterSession(1)
	f2 := wire.BuildUnregisterSession(42, 2)
	buf := append(append([]byte{}, f1...), f2...)

	frames, rest := drainFrames(buf)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if len(rest) != 0 {
		t.Fatalf("leftover = %d bytes, want 0", len(rest))
	}

	h1, _, err := wire.DecodeFrame(frames[0])
	if err != nil || h1.Command != wire.CmdRegisterSession {
		t.Fatalf("frame 0 = %+v, err=%v", h1, err)
	}
	h2, _, err := wire.DecodeFrame(frames[1])
	if err != nil || h2.Command != wire.CmdUnregisterSession {
		t.Fatalf("frame 1 = %+v, err=%v", h2, err)
	}
}

func TestDrainFramesHoldsBackPartialFrame(t *testing.T) {
	full := wire.BuildRegisterSession(1)
	partial := full[:len(full)-2]

	frames, rest := drainFrames(partial)
	if len(frames) != 0 {
		t.Fatalf("got %d frames from a partial one, want 0", len(frames))
	}
	if len(rest) != len(partial) {
		t.Fatalf("leftover = %d bytes, want %d (untouched)", len(rest), len(partial))
	}
}

func TestCommandNameKnownAndUnknown(t *testing.T) {
	if got := commandName(wire.CmdSendRRData); got != "SendRRData" {
		t.Fatalf("commandName(SendRRData) = %q", got)
	}
	if got := commandName(0x9999); got == "" {
		t.Fatal("commandName(unknown) returned empty string")
	}
}

func TestDescribePCCCAnnotatesTunnelledTypedRead(t *testing.T) {
	addr, err := pccc.ParseAddress("N7:0")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	preq := pccc.TypedReadRequest(1, addr, 2)
	pcccBytes := pccc.EncodeRequest(preq)

	cipBytes, err := wire.BuildPCCCExecuteRequest(wire.PCCCObjectPath, wire.PCCCExecuteParams{
		VendorID:     wire.OriginatorVendorID,
		VendorSerial: wire.OriginatorSerial,
		PCCCCommand:  pcccBytes,
	})
	if err != nil {
		t.Fatalf("BuildPCCCExecuteRequest: %v", err)
	}

	cpf, err := wire.DecodeCPF(wire.WrapUnconnected(cipBytes, 0))
	if err != nil {
		t.Fatalf("DecodeCPF: %v", err)
	}

	got := describePCCC(cpf)
	if !strings.Contains(got, "Extended") || !strings.Contains(got, "Typed_Read") {
		t.Fatalf("describePCCC = %q, want it to name Extended/Typed_Read", got)
	}
}

func TestDescribePCCCIgnoresNonPCCCCIPTraffic(t *testing.T) {
	reqBytes, err := wire.BuildReadTagRequest([]byte{0x91, 0x05, 'H', 'e', 'l', 'l', 'o'}, 1)
	if err != nil {
		t.Fatalf("BuildReadTagRequest: %v", err)
	}
	cpf, err := wire.DecodeCPF(wire.WrapUnconnected(reqBytes, 0))
	if err != nil {
		t.Fatalf("DecodeCPF: %v", err)
	}
	if got := describePCCC(cpf); got != "" {
		t.Fatalf("describePCCC(non-PCCC CIP traffic) = %q, want empty", got)
	}
}

func TestStreamKeyIsOrderIndependent(t *testing.T) {
	a, b := "10.0.0.1:1234", "10.0.0.2:44818"
	if streamKey(a, b) != streamKey(b, a) {
		t.Fatal("streamKey should be symmetric")
	}
}
