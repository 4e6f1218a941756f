package cippath

import (
	"bytes"
	"testing"

	"github.com/tturner/ab-eip-client/internal/plc/status"
)

func TestParseConnectionPathNumericHops(t *testing.T) {
	p, err := ParseConnectionPath("1,0", FamilyLogix)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x00, 0x20, 0x02, 0x24, 0x01}
	if !bytes.Equal(p.Bytes, want) {
		t.Fatalf("got %x want %x", p.Bytes, want)
	}
	if p.WordCount != len(want)/2 {
		t.Fatalf("word count = %d", p.WordCount)
	}
}

func TestParseConnectionPathExtendedIP(t *testing.T) {
	p, err := ParseConnectionPath("1,18,10.20.30.40", FamilyLogix)
	if err != nil {
		t.Fatal(err)
	}
	// hop(1) + extended-IP(18, len 11, "10.20.30.40", pad) + CIP suffix
	if p.Bytes[0] != 0x01 {
		t.Fatalf("first byte = %x", p.Bytes[0])
	}
	if p.Bytes[1] != 18 || p.Bytes[2] != byte(len("10.20.30.40")) {
		t.Fatalf("extended IP header mismatch: %x", p.Bytes[1:3])
	}
	if len(p.Bytes)%2 != 0 {
		t.Fatalf("odd total length: %d", len(p.Bytes))
	}
}

func TestParseConnectionPathDHPTerminal(t *testing.T) {
	p, err := ParseConnectionPath("1,0,A:0:5", FamilyPLC5)
	if err != nil {
		t.Fatal(err)
	}
	if !p.HasDHP || p.DHPPort != 1 || p.DHPDestNode != 5 {
		t.Fatalf("DH+ fields wrong: %+v", p)
	}
	tail := p.Bytes[len(p.Bytes)-6:]
	want := []byte{0x20, 0xA6, 0x24, 0x01, 0x2C, 0x01}
	if !bytes.Equal(tail, want) {
		t.Fatalf("DH+ suffix = %x want %x", tail, want)
	}
}

func TestParseConnectionPathDHPMustBeTerminal(t *testing.T) {
	_, err := ParseConnectionPath("A:0:5,1", FamilyPLC5)
	if err == nil {
		t.Fatal("expected error for non-terminal DH+ segment")
	}
	if status.CodeOf(err) != status.BadParam {
		t.Fatalf("code = %v", status.CodeOf(err))
	}
}

func TestParseConnectionPathTooLarge(t *testing.T) {
	raw := "0"
	for i := 0; i < 300; i++ {
		raw += ",0"
	}
	_, err := ParseConnectionPath(raw, FamilyLogix)
	if err == nil {
		t.Fatal("expected TooLarge error")
	}
	if status.CodeOf(err) != status.TooLarge {
		t.Fatalf("code = %v", status.CodeOf(err))
	}
}

func TestParseConnectionPathIsCached(t *testing.T) {
	p1, err := ParseConnectionPath("1,0", FamilyLogix)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := ParseConnectionPath("1,0", FamilyLogix)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p1.Bytes, p2.Bytes) {
		t.Fatalf("cached result mismatch")
	}
}

// TestEncodeTagNameSimple covers spec.md S8 invariant 7: the length-prefix
// byte equals (total_length-1)/2.
func TestEncodeTagNameSimple(t *testing.T) {
	enc, err := EncodeTagName("MyDINT")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x91, 0x06, 'M', 'y', 'D', 'I', 'N', 'T'}
	wantPath := append([]byte{byte(len(want) / 2)}, want...)
	if !bytes.Equal(enc.Path, wantPath) {
		t.Fatalf("got %x want %x", enc.Path, wantPath)
	}
	if int(enc.Path[0]) != (len(enc.Path)-1)/2 {
		t.Fatalf("length prefix %d does not satisfy invariant", enc.Path[0])
	}
	if enc.HasBit {
		t.Fatalf("unexpected bit ref")
	}
}

func TestEncodeTagNameArrayAndMember(t *testing.T) {
	enc, err := EncodeTagName("Program:MainProgram.Array[3].Member")
	if err != nil {
		t.Fatal(err)
	}
	if enc.HasBit {
		t.Fatalf("unexpected bit ref")
	}
	if int(enc.Path[0]) != (len(enc.Path)-1)/2 {
		t.Fatalf("length prefix invariant violated: %d vs body %d", enc.Path[0], len(enc.Path)-1)
	}
	// Must contain a numeric segment for [3] encoded as 0x28 0x03.
	if !bytes.Contains(enc.Path, []byte{0x28, 0x03}) {
		t.Fatalf("missing numeric segment in %x", enc.Path)
	}
}

func TestEncodeTagNameBitSegment(t *testing.T) {
	enc, err := EncodeTagName("MyDINT.5")
	if err != nil {
		t.Fatal(err)
	}
	if !enc.HasBit || enc.Bit != 5 {
		t.Fatalf("bit ref = %+v", enc)
	}
	// Bit segment is not part of the wire path.
	want := []byte{0x91, 0x06, 'M', 'y', 'D', 'I', 'N', 'T'}
	wantPath := append([]byte{byte(len(want) / 2)}, want...)
	if !bytes.Equal(enc.Path, wantPath) {
		t.Fatalf("got %x want %x", enc.Path, wantPath)
	}
}

func TestEncodeTagNameBitMustBeFinal(t *testing.T) {
	_, err := EncodeTagName("MyDINT.5.Extra")
	if err == nil {
		t.Fatal("expected error: bit segment not final")
	}
}

func TestEncodeTagNameDeterministic(t *testing.T) {
	a, err := EncodeTagName("MyArray[10]")
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeTagName("MyArray[10]")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Path, b.Path) {
		t.Fatalf("encoding is not deterministic: %x vs %x", a.Path, b.Path)
	}
}

func TestEncodeTagNameLargeNumericSegment(t *testing.T) {
	enc, err := EncodeTagName("MyArray[70000]")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(enc.Path, []byte{0x2A, 0x00}) {
		t.Fatalf("expected 32-bit numeric segment marker in %x", enc.Path)
	}
}
