package wire_test

import (
	"bytes"
	"testing"

	"github.com/openrobots-dev/rosnode/wire"
)

func TestLE32RoundTrip(t *testing.T) {
	for _, x := range []uint32{0, 1, 255, 65535, 1 << 31, ^uint32(0)} {
		var buf bytes.Buffer
		if err := wire.WriteLE32(&buf, x); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := wire.ReadLE32(&buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != x {
			t.Fatalf("roundtrip mismatch: want %d got %d", x, got)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("hello"),
		bytes.Repeat([]byte{0xAB}, 4096),
	}
	for _, s := range cases {
		var buf bytes.Buffer
		if err := wire.WriteString(&buf, s); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := wire.ReadString(&buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(s) != len(got) {
			t.Fatalf("roundtrip length mismatch: want %d got %d", len(s), len(got))
		}
		if !bytes.Equal(s, got) {
			t.Fatalf("roundtrip mismatch")
		}
	}
}

func TestReadStringRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.WriteLE32(&buf, wire.MaxFrameLen+1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := wire.ReadString(&buf); err == nil {
		t.Fatalf("expected oversized frame to be rejected")
	}
}
