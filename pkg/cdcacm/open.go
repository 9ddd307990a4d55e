package cdcacm

import (
	"log/slog"

	"github.com/usblink/cdcacm/pkg/usb"
	"github.com/usblink/cdcacm/pkg/usberr"
)

// Open takes the device behind ref to the Open state: resolve the endpoint
// layout, open a handle, apply the detach policy, select the configuration,
// claim the control and data interfaces in ascending order, and apply
// DefaultLineCoding. Any failure after the handle exists closes it again
// (which also gives back interfaces claimed so far), so a failed Open never
// leaks a handle and the device can be retried immediately.
//
// ref stays owned by the caller and may be released as soon as Open
// returns; the open handle does not depend on it.
func (s *Session) Open(ref usb.DeviceRef) error {
	if err := s.ensureUsable("open"); err != nil {
		return err
	}
	if s.handle != nil {
		return s.fail("open", usberr.Busy)
	}

	layout, err := ResolveLayout(ref.Descriptor())
	if err != nil {
		return s.fail("resolve", err)
	}

	h, err := ref.Open()
	if err != nil {
		return s.fail("open", err)
	}

	ifaces := layout.interfaces()

	// Unbind a cdc-acm kernel module if asked to. This may harmlessly
	// fail; the error is kept only to tell a permissions problem apart
	// from a plain configuration failure below.
	var detachErr error
	for _, iface := range ifaces {
		switch s.DetachMode {
		case DetachAuto:
			if err := h.DetachKernelDriver(iface); err != nil {
				detachErr = err
			}
		case DetachAutoReattach:
			if err := h.SetAutoDetach(true); err != nil {
				detachErr = err
			}
		}
	}

	if err := h.SetConfiguration(layout.Config); err != nil {
		s.unwind(h)
		if usberr.CodeOf(detachErr) == usberr.Access {
			return s.fail("set configuration", usberr.Access)
		}
		return s.fail("set configuration", err)
	}

	for _, iface := range ifaces {
		if err := h.ClaimInterface(iface); err != nil {
			s.unwind(h)
			return s.fail("claim interface", err)
		}
	}

	s.handle = h
	s.layout = layout

	if err := s.SetLineCoding(DefaultLineCoding); err != nil {
		s.unwind(h)
		return err
	}

	slog.Debug("cdcacm: session open",
		"config", layout.Config,
		"control", layout.ControlInterface,
		"data", layout.DataInterface,
		"in", layout.In,
		"out", layout.Out)
	return nil
}

// Close releases the control and data interfaces in ascending order,
// stopping at the first release failure, then closes the handle regardless
// and returns the session to Closed. A release failure is reported after
// the handle is gone; the session never stays half-closed.
func (s *Session) Close() error {
	if err := s.ensureUsable("close"); err != nil {
		return err
	}
	if err := s.ensureOpen(); err != nil {
		return err
	}

	var relErr error
	for _, iface := range s.layout.interfaces() {
		if err := s.handle.ReleaseInterface(iface); err != nil {
			relErr = err
			break
		}
	}
	closeErr := s.handle.Close()
	s.handle = nil
	s.layout = Layout{}

	if relErr != nil {
		return s.fail("release interface", relErr)
	}
	if closeErr != nil {
		return s.fail("close", closeErr)
	}
	return nil
}

// unwind closes a partially opened handle and drops back to Closed.
func (s *Session) unwind(h usb.Handle) {
	h.Close()
	s.handle = nil
	s.layout = Layout{}
}
