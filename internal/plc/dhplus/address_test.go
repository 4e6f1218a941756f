package dhplus

import "testing"

func TestIsTriple(t *testing.T) {
	cases := map[string]bool{
		"A:0:5": true,
		"b:1:2": true,
		"2:0:1": true,
		"3:0:1": true,
		"1,0":   false,
		"18":    false,
		"":      false,
	}
	for tok, want := range cases {
		if got := IsTriple(tok); got != want {
			t.Errorf("IsTriple(%q) = %v want %v", tok, got, want)
		}
	}
}

func TestParseTriple(t *testing.T) {
	port, dest, err := ParseTriple("A:0:5")
	if err != nil {
		t.Fatal(err)
	}
	if port != PortA || dest != 5 {
		t.Fatalf("got port=%v dest=%d", port, dest)
	}

	port, dest, err = ParseTriple("b:10:20")
	if err != nil {
		t.Fatal(err)
	}
	if port != PortB || dest != 20 {
		t.Fatalf("got port=%v dest=%d", port, dest)
	}
}

func TestParseTripleRejectsOutOfRangeNode(t *testing.T) {
	if _, _, err := ParseTriple("A:0:64"); err == nil {
		t.Fatal("expected error for node address 64 (max is 63)")
	}
}

func TestRoutingSuffix(t *testing.T) {
	suffix := RoutingSuffix(PortA)
	want := []byte{0x20, 0xA6, 0x24, 0x01, 0x2C, 0x01}
	if len(suffix) != len(want) {
		t.Fatalf("suffix length = %d", len(suffix))
	}
	for i := range want {
		if suffix[i] != want[i] {
			t.Fatalf("suffix[%d] = %x want %x", i, suffix[i], want[i])
		}
	}
}
