package main

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/tturner/ab-eip-client/internal/plc/pccc"
	"github.com/tturner/ab-eip-client/internal/plc/wire"
)

func commandName(cmd uint16) string {
	switch cmd {
	case wire.CmdRegisterSession:
		return "RegisterSession"
	case wire.CmdUnregisterSession:
		return "UnregisterSession"
	case wire.CmdSendRRData:
		return "SendRRData"
	case wire.CmdSendUnitData:
		return "SendUnitData"
	default:
		return fmt.Sprintf("Unknown(0x%04X)", cmd)
	}
}

// streamKey identifies one direction-independent TCP stream, the same
// sorted-4-tuple approach the teacher's extract_enip.go uses so a
// request and its reply accumulate into the same reassembly buffer.
func streamKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// decodeFile walks pcapFile, reassembling each TCP stream on eipPort and
// printing one line per complete EIP encapsulation frame it can parse,
// grounded on the teacher's extract_enip.go stream-reassembly loop
// (per-stream byte buffer, gopacket.NewPacketSource, TCP port filter)
// but decoding with this module's own wire codec instead of the
// teacher's enip/cip packages.
func decodeFile(pcapFile string, eipPort uint16) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("open pcap file: %w", err)
	}
	defer handle.Close()

	streams := make(map[string][]byte)
	src := gopacket.NewPacketSource(handle, handle.LinkType())

	for packet := range src.Packets() {
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, ok := tcpLayer.(*layers.TCP)
		if !ok || len(tcp.Payload) == 0 {
			continue
		}
		if uint16(tcp.SrcPort) != eipPort && uint16(tcp.DstPort) != eipPort {
			continue
		}

		netLayer := packet.NetworkLayer()
		if netLayer == nil {
			continue
		}
		flow := netLayer.NetworkFlow()
		key := streamKey(flow.Src().String()+":"+tcp.SrcPort.String(), flow.Dst().String()+":"+tcp.DstPort.String())
		streams[key] = append(streams[key], tcp.Payload...)

		ts := packet.Metadata().Timestamp
		direction := fmt.Sprintf("%s:%s -> %s:%s", flow.Src(), tcp.SrcPort, flow.Dst(), tcp.DstPort)
		var frames [][]byte
		frames, streams[key] = drainFrames(streams[key])
		for _, frame := range frames {
			printFrame(ts.String(), direction, frame)
		}
	}
	return nil
}

// drainFrames splits as many complete EIP frames off the front of buf as
// it can and returns them, along with whatever partial frame remains for
// the next TCP segment to complete.
func drainFrames(buf []byte) (frames [][]byte, rest []byte) {
	for {
		n, headerReady, err := wire.FrameLen(buf)
		if err != nil {
			return frames, nil // desynced stream; drop rather than misparse forever
		}
		if !headerReady || len(buf) < n {
			return frames, buf // wait for the rest of this frame in a later segment
		}
		frames = append(frames, buf[:n])
		buf = buf[n:]
	}
}

func printFrame(ts, direction string, frame []byte) {
	h, payload, err := wire.DecodeFrame(frame)
	if err != nil {
		fmt.Printf("%s %s malformed frame (%d bytes): %v\n", ts, direction, len(frame), err)
		return
	}
	line := fmt.Sprintf("%s %s %-18s handle=0x%08X ctx=0x%016X len=%d",
		ts, direction, commandName(h.Command), h.SessionHandle, h.SenderContext, h.PayloadLength)

	switch h.Command {
	case wire.CmdSendRRData, wire.CmdSendUnitData:
		cpf, err := wire.DecodeCPF(payload)
		if err != nil {
			fmt.Println(line + fmt.Sprintf(" [CPF decode error: %v]", err))
			return
		}
		line += fmt.Sprintf(" items=%d", len(cpf.Items))
		if annotation := describePCCC(cpf); annotation != "" {
			line += " " + annotation
		}
		fmt.Println(line)
	default:
		fmt.Println(line)
	}
}

// describePCCC inspects cpf's CIP payload for a tunnelled PCCC-Execute
// (0x4B) request or reply and, if found, returns a short "pccc=CMD/FNC"
// annotation naming the decoded command and function so an offline trace
// of a PLC-5/SLC/MicroLogix conversation reads as more than an opaque CPF
// item count.
func describePCCC(cpf wire.CPF) string {
	var cipBytes []byte
	if bytes, err := wire.UnwrapUnconnected(cpf); err == nil {
		cipBytes = bytes
	} else if _, _, bytes, err := wire.UnwrapConnected(cpf); err == nil {
		cipBytes = bytes
	}
	if len(cipBytes) < 1 {
		return ""
	}

	var pcccBytes []byte
	switch cipBytes[0] {
	case wire.ServicePCCCExecute:
		_, body, err := wire.UnpackRequestHeader(cipBytes)
		if err != nil || len(body) < 1 {
			return ""
		}
		requestorLen := int(body[0])
		if len(body) < 1+requestorLen {
			return ""
		}
		pcccBytes = body[1+requestorLen:]
	case wire.ServicePCCCExecute | 0x80:
		_, body, err := wire.UnpackResponseHeader(cipBytes)
		if err != nil {
			return ""
		}
		pcccBytes, _ = wire.ParsePCCCExecuteReplyBody(body)
	default:
		return ""
	}

	if !pccc.IsPCCCPayload(pcccBytes) {
		return ""
	}
	if req, err := pccc.DecodeRequest(pcccBytes); err == nil {
		if req.Command.HasFunctionCode() {
			return fmt.Sprintf("pccc=%s/%s", req.Command, req.Function)
		}
		return fmt.Sprintf("pccc=%s", req.Command)
	}
	return "pccc=?"
}
