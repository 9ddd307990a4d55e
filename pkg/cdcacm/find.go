package cdcacm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/usblink/cdcacm/pkg/usb"
	"github.com/usblink/cdcacm/pkg/usberr"
)

// FindAll scans the bus for candidate devices. With vendor and product both
// zero every device whose descriptors carry a CDC data interface is kept (a
// capability probe that never opens anything); otherwise only exact ID
// matches are kept, unprobed. Kept references stay retained for the caller
// and must be freed with the list; all other references are released before
// returning.
func (s *Session) FindAll(vendor, product uint16) (usb.DeviceList, error) {
	const op = "find all"
	if err := s.ensureUsable(op); err != nil {
		return nil, err
	}
	refs, err := s.transport.Devices()
	if err != nil {
		return nil, s.fail(op, err)
	}
	var list usb.DeviceList
	for _, ref := range refs {
		keep := false
		if vendor == 0 && product == 0 {
			_, err := ResolveLayout(ref.Descriptor())
			keep = err == nil
		} else {
			d := ref.Descriptor()
			keep = d.Vendor == vendor && d.Product == product
		}
		if keep {
			list = append(list, ref)
		} else {
			ref.Release()
		}
	}
	return list, nil
}

// DeviceStrings opens ref transiently and reads its manufacturer, product
// description and serial number strings. The transient handle is closed
// again before returning; the session's own state is untouched.
func (s *Session) DeviceStrings(ref usb.DeviceRef) (manufacturer, description, serial string, err error) {
	const op = "get strings"
	if err := s.ensureUsable(op); err != nil {
		return "", "", "", err
	}
	h, err := ref.Open()
	if err != nil {
		return "", "", "", s.fail(op, err)
	}
	defer h.Close()

	m, err := h.Manufacturer()
	if err != nil {
		return "", "", "", s.fail(op, err)
	}
	d, err := h.Product()
	if err != nil {
		return "", "", "", s.fail(op, err)
	}
	sn, err := h.SerialNumber()
	if err != nil {
		return "", "", "", s.fail(op, err)
	}
	return m, d, sn, nil
}

// OpenVIDPID opens the first device with the given vendor and product IDs.
func (s *Session) OpenVIDPID(vendor, product uint16) error {
	return s.OpenDescIndex(vendor, product, "", "", 0)
}

// OpenDesc opens the first device with the given IDs whose product
// description and serial number also match. Empty strings match anything.
func (s *Session) OpenDesc(vendor, product uint16, description, serial string) error {
	return s.OpenDescIndex(vendor, product, description, serial, 0)
}

// OpenDescIndex opens the index-th device (zero-based) with the given IDs
// whose product description and serial number match; empty strings match
// anything. Matching a string filter opens each candidate transiently to
// read its descriptors and closes it again before moving on. Candidates
// that cannot be inspected are skipped; their errors are reported only if
// no device matches at all.
func (s *Session) OpenDescIndex(vendor, product uint16, description, serial string, index uint) error {
	const op = "open"
	if err := s.ensureUsable(op); err != nil {
		return err
	}
	if s.handle != nil {
		return s.fail(op, usberr.Busy)
	}
	refs, err := s.transport.Devices()
	if err != nil {
		return s.fail(op, err)
	}
	list := usb.DeviceList(refs)
	defer list.Free()

	var errs error
	skipped := uint(0)
	for _, ref := range refs {
		d := ref.Descriptor()
		if d.Vendor != vendor || d.Product != product {
			continue
		}
		if description != "" || serial != "" {
			ok, err := matchStrings(ref, description, serial)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			if !ok {
				continue
			}
		}
		if skipped == index {
			return s.Open(ref)
		}
		skipped++
	}
	if errs != nil {
		return s.fail(op, errs)
	}
	return s.fail(op, usberr.NotFound)
}

// matchStrings transiently opens ref and compares its product description
// and serial number against the requested values. Empty filters match.
func matchStrings(ref usb.DeviceRef, description, serial string) (bool, error) {
	h, err := ref.Open()
	if err != nil {
		return false, err
	}
	defer h.Close()

	if description != "" {
		p, err := h.Product()
		if err != nil {
			return false, err
		}
		if p != description {
			return false, nil
		}
	}
	if serial != "" {
		sn, err := h.SerialNumber()
		if err != nil {
			return false, err
		}
		if sn != serial {
			return false, nil
		}
	}
	return true, nil
}

// OpenBusAddr opens the device at the given bus number and device address.
func (s *Session) OpenBusAddr(bus, addr uint8) error {
	const op = "open"
	if err := s.ensureUsable(op); err != nil {
		return err
	}
	if s.handle != nil {
		return s.fail(op, usberr.Busy)
	}
	refs, err := s.transport.Devices()
	if err != nil {
		return s.fail(op, err)
	}
	list := usb.DeviceList(refs)
	defer list.Free()

	for _, ref := range refs {
		if ref.Bus() == int(bus) && ref.Address() == int(addr) {
			return s.Open(ref)
		}
	}
	return s.fail(op, usberr.NotFound)
}

// OpenString opens the first device matching a textual selector:
//
//	d:<bus>/<addr>         device at a bus number and address, decimal
//	i:<vid>:<pid>          first device with the given IDs
//	i:<vid>:<pid>:<index>  index-th device with the given IDs, zero-based
//	s:<vid>:<pid>:<serial> device with the given IDs and serial string
//
// IDs and the index accept decimal or 0x-prefixed hex. Anything malformed
// reports usberr.InvalidParam.
func (s *Session) OpenString(selector string) error {
	const op = "open string"
	if err := s.ensureUsable(op); err != nil {
		return err
	}

	bad := func(reason string) error {
		return s.fail(op, fmt.Errorf("%q: %s: %w", selector, reason, usberr.InvalidParam))
	}

	switch {
	case strings.HasPrefix(selector, "d:"):
		busStr, addrStr, ok := strings.Cut(selector[2:], "/")
		if !ok {
			return bad("want d:<bus>/<addr>")
		}
		bus, err := strconv.ParseUint(busStr, 10, 8)
		if err != nil {
			return bad("bad bus number")
		}
		addr, err := strconv.ParseUint(addrStr, 10, 8)
		if err != nil {
			return bad("bad device address")
		}
		return s.OpenBusAddr(uint8(bus), uint8(addr))

	case strings.HasPrefix(selector, "i:"), strings.HasPrefix(selector, "s:"):
		parts := strings.SplitN(selector[2:], ":", 3)
		if len(parts) < 2 {
			return bad("want <vid>:<pid>")
		}
		vid, err := strconv.ParseUint(parts[0], 0, 16)
		if err != nil {
			return bad("bad vendor id")
		}
		pid, err := strconv.ParseUint(parts[1], 0, 16)
		if err != nil {
			return bad("bad product id")
		}
		if strings.HasPrefix(selector, "s:") {
			if len(parts) < 3 || parts[2] == "" {
				return bad("want <vid>:<pid>:<serial>")
			}
			return s.OpenDesc(uint16(vid), uint16(pid), "", parts[2])
		}
		index := uint64(0)
		if len(parts) == 3 {
			index, err = strconv.ParseUint(parts[2], 0, 32)
			if err != nil {
				return bad("bad index")
			}
		}
		return s.OpenDescIndex(uint16(vid), uint16(pid), "", "", uint(index))
	}
	return bad("unknown selector scheme")
}
