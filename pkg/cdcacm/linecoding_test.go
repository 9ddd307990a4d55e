package cdcacm

import (
	"bytes"
	"testing"

	"github.com/usblink/cdcacm/pkg/usberr"
)

func TestLineCodingWireFormat(t *testing.T) {
	lc := LineCoding{BaudRate: 115200, StopBits: StopBits1, Parity: ParityNone, DataBits: 8}
	var buf [LineCodingSize]byte
	if n := lc.MarshalTo(buf[:]); n != LineCodingSize {
		t.Fatalf("MarshalTo = %d, want %d", n, LineCodingSize)
	}
	want := []byte{0x00, 0xc2, 0x01, 0x00, 0x00, 0x00, 0x08}
	if !bytes.Equal(buf[:], want) {
		t.Errorf("wire bytes = % 02x, want % 02x", buf[:], want)
	}
}

func TestLineCodingRoundTrip(t *testing.T) {
	for _, lc := range []LineCoding{
		DefaultLineCoding,
		{BaudRate: 115200, StopBits: StopBits1, Parity: ParityNone, DataBits: 8},
		{BaudRate: 300, StopBits: StopBits2, Parity: ParityOdd, DataBits: 7},
		{BaudRate: 4000000, StopBits: StopBits15, Parity: ParitySpace, DataBits: 16},
	} {
		var buf [LineCodingSize]byte
		lc.MarshalTo(buf[:])
		var got LineCoding
		if !ParseLineCoding(buf[:], &got) {
			t.Fatalf("%v: ParseLineCoding rejected its own wire form", lc)
		}
		if got != lc {
			t.Errorf("round trip %v, got %v", lc, got)
		}
	}
}

func TestLineCodingShortBuffers(t *testing.T) {
	var lc LineCoding
	if n := DefaultLineCoding.MarshalTo(make([]byte, LineCodingSize-1)); n != 0 {
		t.Errorf("MarshalTo into short buffer = %d, want 0", n)
	}
	if ParseLineCoding(make([]byte, LineCodingSize-1), &lc) {
		t.Error("ParseLineCoding accepted a short buffer")
	}
}

func TestSetLineCodingPayload(t *testing.T) {
	s, dev := openTestSession(t)
	dev.Controls = nil

	if err := s.SetLineCoding(LineCoding{BaudRate: 115200, StopBits: StopBits2, Parity: ParityEven, DataBits: 7}); err != nil {
		t.Fatalf("SetLineCoding: %v", err)
	}
	if len(dev.Controls) != 1 {
		t.Fatalf("control transfers = %d, want 1", len(dev.Controls))
	}
	c := dev.Controls[0]
	if c.RType != 0x21 || c.Request != 0x20 || c.Val != 0 || c.Idx != 0 {
		t.Errorf("request = %02x %02x %04x %04x, want 21 20 0000 0000", c.RType, c.Request, c.Val, c.Idx)
	}
	want := []byte{0x00, 0xc2, 0x01, 0x00, 0x02, 0x02, 0x07}
	if !bytes.Equal(c.Data, want) {
		t.Errorf("payload = % 02x, want % 02x", c.Data, want)
	}
}

func TestSetLineCodingRejectsInvalid(t *testing.T) {
	s, dev := openTestSession(t)
	dev.Controls = nil

	for _, lc := range []LineCoding{
		{BaudRate: 9600, StopBits: 3, Parity: ParityNone, DataBits: 8},
		{BaudRate: 9600, StopBits: StopBits1, Parity: 5, DataBits: 8},
		{BaudRate: 9600, StopBits: StopBits1, Parity: ParityNone, DataBits: 9},
		{BaudRate: 9600, StopBits: StopBits1, Parity: ParityNone, DataBits: 0},
	} {
		err := s.SetLineCoding(lc)
		if usberr.CodeOf(err) != usberr.InvalidParam {
			t.Errorf("%v: err = %v, want INVALID_PARAM", lc, err)
		}
	}
	if len(dev.Controls) != 0 {
		t.Errorf("invalid codings reached the device: %d transfers", len(dev.Controls))
	}
}

func TestSetDTRRTSBits(t *testing.T) {
	s, dev := openTestSession(t)
	dev.Controls = nil

	for _, te := range []struct {
		dtr, rts bool
		val      uint16
	}{
		{false, false, 0},
		{true, false, 1},
		{false, true, 2},
		{true, true, 3},
	} {
		if err := s.SetDTRRTS(te.dtr, te.rts); err != nil {
			t.Fatalf("SetDTRRTS(%v, %v): %v", te.dtr, te.rts, err)
		}
		c := dev.Controls[len(dev.Controls)-1]
		if c.RType != 0x21 || c.Request != 0x22 || c.Val != te.val || c.Idx != 0 {
			t.Errorf("SetDTRRTS(%v, %v) = %02x %02x %04x %04x, want 21 22 %04x 0000",
				te.dtr, te.rts, c.RType, c.Request, c.Val, c.Idx, te.val)
		}
		if len(c.Data) != 0 {
			t.Errorf("SetDTRRTS carried %d payload bytes, want none", len(c.Data))
		}
	}
}

func TestLineCodingString(t *testing.T) {
	lc := LineCoding{BaudRate: 19200, StopBits: StopBits15, Parity: ParityMark, DataBits: 7}
	if got, want := lc.String(), "19200 baud, 7 data bits, parity mark, 1.5 stop"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
