package main

import (
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tturner/ab-eip-client/internal/plc/simulator"
	itag "github.com/tturner/ab-eip-client/internal/plc/tag"
)

func splitHostPortForTest(addr string) (string, int, bool) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false
	}
	return host, port, true
}

func TestAttribStringIncludesPath(t *testing.T) {
	f := &tagFlags{
		protocol: "ab_eip",
		gateway:  "10.0.0.1",
		port:     44818,
		path:     "1,0",
		name:     "MyTag",
		dataType: "DINT",
		count:    1,
		timeout:  time.Second,
	}
	got := f.attribString()
	for _, want := range []string{"protocol=ab_eip", "gateway=10.0.0.1", "name=MyTag", "data_type=DINT", "path=1,0"} {
		if !strings.Contains(got, want) {
			t.Fatalf("attribString() = %q, missing %q", got, want)
		}
	}
}

func TestElemSizeRejectsString(t *testing.T) {
	f := &tagFlags{dataType: "STRING"}
	if _, err := f.elemSize(); err == nil {
		t.Fatal("expected STRING to be rejected as not fixed-width")
	}
}

func TestElemSizeRejectsUnknown(t *testing.T) {
	f := &tagFlags{dataType: "NOPE"}
	if _, err := f.elemSize(); err == nil {
		t.Fatal("expected unknown data type to be rejected")
	}
}

func TestSetAndFormatElementRoundTrip(t *testing.T) {
	gw := simulator.New(nil)
	addr, err := gw.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer gw.Close()
	if err := gw.SetLogixTag("RoundTrip", uint16(itag.TypeDINT), []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("SetLogixTag: %v", err)
	}

	f := &tagFlags{
		protocol: "ab_eip",
		gateway:  addr,
		name:     "RoundTrip",
		dataType: "DINT",
		count:    1,
		timeout:  3 * time.Second,
	}
	gwHost, gwPort, ok := splitHostPortForTest(addr)
	if !ok {
		t.Fatalf("could not split %q", addr)
	}
	f.gateway = gwHost
	f.port = gwPort

	tg, err := f.openTag()
	if err != nil {
		t.Fatalf("openTag: %v", err)
	}
	defer tg.Destroy()

	if err := setElement(tg, "DINT", 0, "1234"); err != nil {
		t.Fatalf("setElement: %v", err)
	}
	got, err := formatElement(tg, "DINT", 0)
	if err != nil {
		t.Fatalf("formatElement: %v", err)
	}
	if got != "1234" {
		t.Fatalf("formatElement() = %q, want %q", got, "1234")
	}
}
