package cdcacm

import (
	"fmt"

	"github.com/usblink/cdcacm/pkg/usberr"
)

// CDC PSTN class requests used by the session. Both go to bmRequestType
// 0x21 (class request, interface recipient, host-to-device) with wIndex 0.
const (
	requestTypeClassInterface  = 0x21
	requestSetLineCoding       = 0x20
	requestSetControlLineState = 0x22

	controlLineDTR = 1 << 0
	controlLineRTS = 1 << 1
)

// StopBits is the wire encoding of the stop-bit count.
type StopBits uint8

const (
	StopBits1  StopBits = 0
	StopBits15 StopBits = 1 // one and a half stop bits
	StopBits2  StopBits = 2
)

func (s StopBits) String() string {
	switch s {
	case StopBits1:
		return "1"
	case StopBits15:
		return "1.5"
	case StopBits2:
		return "2"
	}
	return fmt.Sprintf("invalid(%d)", uint8(s))
}

// Parity is the wire encoding of the parity mode.
type Parity uint8

const (
	ParityNone  Parity = 0
	ParityOdd   Parity = 1
	ParityEven  Parity = 2
	ParityMark  Parity = 3
	ParitySpace Parity = 4
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	case ParityMark:
		return "mark"
	case ParitySpace:
		return "space"
	}
	return fmt.Sprintf("invalid(%d)", uint8(p))
}

// LineCodingSize is the wire size of a SET_LINE_CODING payload.
const LineCodingSize = 7

// LineCoding is the serial line configuration carried by SET_LINE_CODING:
// baud rate, stop bits, parity and data bits, in that wire order with the
// baud rate little-endian.
type LineCoding struct {
	BaudRate uint32
	StopBits StopBits
	Parity   Parity
	DataBits uint8
}

// DefaultLineCoding is applied during open: 9600 baud, 8 data bits, no
// parity, 1 stop bit.
var DefaultLineCoding = LineCoding{
	BaudRate: 9600,
	StopBits: StopBits1,
	Parity:   ParityNone,
	DataBits: 8,
}

func (lc LineCoding) validate() error {
	if lc.StopBits > StopBits2 {
		return fmt.Errorf("stop bits %d: %w", lc.StopBits, usberr.InvalidParam)
	}
	if lc.Parity > ParitySpace {
		return fmt.Errorf("parity %d: %w", lc.Parity, usberr.InvalidParam)
	}
	switch lc.DataBits {
	case 5, 6, 7, 8, 16:
	default:
		return fmt.Errorf("data bits %d: %w", lc.DataBits, usberr.InvalidParam)
	}
	return nil
}

// MarshalTo writes the 7-byte wire form into buf. Returns the number of
// bytes written, or 0 if buf is too small.
func (lc LineCoding) MarshalTo(buf []byte) int {
	if len(buf) < LineCodingSize {
		return 0
	}
	buf[0] = byte(lc.BaudRate)
	buf[1] = byte(lc.BaudRate >> 8)
	buf[2] = byte(lc.BaudRate >> 16)
	buf[3] = byte(lc.BaudRate >> 24)
	buf[4] = byte(lc.StopBits)
	buf[5] = byte(lc.Parity)
	buf[6] = lc.DataBits
	return LineCodingSize
}

// ParseLineCoding decodes the 7-byte wire form. Returns false if data is
// too short.
func ParseLineCoding(data []byte, out *LineCoding) bool {
	if len(data) < LineCodingSize {
		return false
	}
	out.BaudRate = uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	out.StopBits = StopBits(data[4])
	out.Parity = Parity(data[5])
	out.DataBits = data[6]
	return true
}

func (lc LineCoding) String() string {
	return fmt.Sprintf("%d baud, %d data bits, parity %s, %s stop", lc.BaudRate, lc.DataBits, lc.Parity, lc.StopBits)
}

// SetLineCoding issues SET_LINE_CODING with the given configuration. The
// session must be open. Field values outside the wire encoding report
// usberr.InvalidParam without touching the device.
func (s *Session) SetLineCoding(lc LineCoding) error {
	if err := s.ensureUsable("set line coding"); err != nil {
		return err
	}
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := lc.validate(); err != nil {
		return s.fail("set line coding", err)
	}
	var buf [LineCodingSize]byte
	lc.MarshalTo(buf[:])
	s.handle.SetControlTimeout(s.WriteTimeout)
	if _, err := s.handle.Control(requestTypeClassInterface, requestSetLineCoding, 0, 0, buf[:]); err != nil {
		return s.fail("control", err)
	}
	return nil
}

// SetDTRRTS issues SET_CONTROL_LINE_STATE with the DTR and RTS bits. The
// session must be open.
func (s *Session) SetDTRRTS(dtr, rts bool) error {
	if err := s.ensureUsable("set dtr/rts"); err != nil {
		return err
	}
	if err := s.ensureOpen(); err != nil {
		return err
	}
	var val uint16
	if dtr {
		val |= controlLineDTR
	}
	if rts {
		val |= controlLineRTS
	}
	s.handle.SetControlTimeout(s.WriteTimeout)
	if _, err := s.handle.Control(requestTypeClassInterface, requestSetControlLineState, val, 0, nil); err != nil {
		return s.fail("control", err)
	}
	return nil
}
