// Package cdcacm drives USB CDC-ACM (virtual serial) devices from the host
// side: enumerate candidates, open one, configure the line, move bytes,
// close. A Session owns at most one open device at a time and is not safe
// for concurrent use.
package cdcacm

import (
	"fmt"
	"time"

	"github.com/usblink/cdcacm/pkg/usb"
	"github.com/usblink/cdcacm/pkg/usberr"
)

// DetachMode selects how open treats a kernel driver already bound to the
// device's interfaces.
type DetachMode int

const (
	// DetachAuto unbinds the kernel driver before claiming. The driver is
	// not rebound on close. With the gousb transport this degrades to
	// DetachAutoReattach, which is the only detach libusb exposes there.
	DetachAuto DetachMode = 0
	// DetachNone leaves kernel drivers alone; claiming then fails if one is
	// bound.
	DetachNone DetachMode = 1
	// DetachAutoReattach unbinds the kernel driver before claiming and asks
	// the OS to rebind it once the interface is released.
	DetachAutoReattach DetachMode = 2
)

// DefaultTimeout is the initial read and write timeout of a new Session.
const DefaultTimeout = 5 * time.Second

// Session is a host-side CDC-ACM session. The zero value is not usable;
// construct one with New or NewWithTransport.
//
// ReadTimeout, WriteTimeout and DetachMode may be adjusted at any point
// between operations. Timeouts bound individual bulk transfers; a timeout
// that moved at least one byte is reported as a successful short transfer.
type Session struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DetachMode   DetachMode

	transport usb.Transport
	handle    usb.Handle
	layout    Layout

	lastOp   string
	lastCode usberr.Code
	lastErr  error
}

// New creates a Session on the gousb-backed transport.
func New() (*Session, error) {
	t, err := usb.NewTransport()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize USB: %w", err)
	}
	return NewWithTransport(t), nil
}

// NewWithTransport creates a Session on the given transport. The Session
// takes ownership: Destroy closes the transport.
func NewWithTransport(t usb.Transport) *Session {
	return &Session{
		ReadTimeout:  DefaultTimeout,
		WriteTimeout: DefaultTimeout,
		transport:    t,
		lastOp:       "init",
	}
}

// Destroy closes a still-open device and releases the transport. The
// Session must not be used afterwards.
func (s *Session) Destroy() error {
	if s.handle != nil {
		s.Close()
	}
	if s.transport == nil {
		return nil
	}
	err := s.transport.Close()
	s.transport = nil
	return err
}

// IsOpen reports whether the session has an open device.
func (s *Session) IsOpen() bool {
	return s.handle != nil
}

// Layout returns the endpoint layout resolved at open time. The zero Layout
// is returned while no device is open.
func (s *Session) Layout() Layout {
	return s.layout
}

// LastError returns the most recently recorded failure, or nil if no
// operation has failed yet.
func (s *Session) LastError() error {
	return s.lastErr
}

// fail records op and the code classified from err, then returns the
// wrapped error. Every fallible Session operation routes its failures
// through here so ErrorString stays current.
func (s *Session) fail(op string, err error) error {
	e := &usberr.Error{Op: op, Code: usberr.CodeOf(err), Err: err}
	s.lastOp = op
	s.lastCode = e.Code
	s.lastErr = e
	return e
}

func (s *Session) ensureUsable(op string) error {
	if s == nil {
		return usberr.New(op, usberr.InvalidParam)
	}
	if s.transport == nil {
		return s.fail(op, usberr.InvalidParam)
	}
	return nil
}

func (s *Session) ensureOpen() error {
	if s.handle == nil {
		return s.fail("not opened", usberr.NoDevice)
	}
	return nil
}

// ErrorString renders the session's last recorded failure into buf as
// "<op> <NAME> <message>", truncated to fit with a trailing NUL byte. It is
// valid for a nil session and for any buffer of at least one byte, and
// returns the rendered (possibly truncated) text.
func ErrorString(s *Session, buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	op := "invalid session"
	code := usberr.InvalidParam
	if s != nil {
		op = s.lastOp
		code = s.lastCode
	}
	msg := fmt.Sprintf("%s %s %s", op, code.Name(), code.Message())
	n := copy(buf[:len(buf)-1], msg)
	buf[n] = 0
	return string(buf[:n])
}
