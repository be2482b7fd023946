package wire_test

import (
	"testing"

	"github.com/openrobots-dev/rosnode/wire"
)

func TestParseIPv4(t *testing.T) {
	dw, err := wire.ParseIPv4("192.168.56.101")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := wire.FormatIPv4(dw); got != "192.168.56.101" {
		t.Fatalf("roundtrip mismatch: got %s", got)
	}
}

func TestParseIPv4Rejects(t *testing.T) {
	bad := []string{"", "1.2.3", "1.2.3.4.5", "1.2.3.256", "a.b.c.d", "1..3.4"}
	for _, s := range bad {
		if _, err := wire.ParseIPv4(s); err == nil {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestStringConstVsOwned(t *testing.T) {
	backing := []byte("topic")
	c := wire.Const(backing)
	o := wire.Own(backing)

	if !c.Equal(o) {
		t.Fatalf("expected equal contents")
	}

	backing[0] = 'X'
	if c.String() != "Xopic" {
		t.Fatalf("const string should observe mutation of backing array")
	}
	if o.String() != "topic" {
		t.Fatalf("owned string must not observe mutation of backing array")
	}
}
