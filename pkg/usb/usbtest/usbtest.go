// Package usbtest provides a scripted in-memory usb.Transport for
// exercising session logic without hardware. Failures are injected through
// exported fields; every side effect lands in a per-device journal so tests
// can assert on exact ordering.
package usbtest

import (
	"fmt"
	"time"

	"github.com/usblink/cdcacm/pkg/usb"
	"github.com/usblink/cdcacm/pkg/usberr"
)

// Transport implements usb.Transport over a fixed set of fake devices.
type Transport struct {
	Bus     []*Device
	EnumErr error
	Closed  bool
}

func (t *Transport) Devices() ([]usb.DeviceRef, error) {
	if t.EnumErr != nil {
		return nil, t.EnumErr
	}
	refs := make([]usb.DeviceRef, 0, len(t.Bus))
	for _, d := range t.Bus {
		d.Refs++
		refs = append(refs, &Ref{Device: d})
	}
	return refs, nil
}

func (t *Transport) Close() error {
	t.Closed = true
	return nil
}

// ControlCall records one control transfer verbatim.
type ControlCall struct {
	RType   uint8
	Request uint8
	Val     uint16
	Idx     uint16
	Data    []byte
}

// Device is one fake device on the bus. Error fields, when set, are
// returned by the corresponding handle method. Refs counts outstanding
// enumeration references; OpenHandles counts handles not yet closed.
type Device struct {
	BusNumber  int
	Addr       int
	Desc       usb.DeviceDescriptor
	Maker      string
	Prod       string
	Serial     string

	OpenErr       error
	DetachErr     error
	AutoDetachErr error
	ConfigErr     error
	ClaimErr      map[int]error
	ReleaseErr    map[int]error
	ControlErr    error
	CloseErr      error
	StringErr     error

	// BulkInFunc and BulkOutFunc, when set, script transfer behavior.
	// Otherwise reads drain InData and writes accumulate in OutData.
	BulkInFunc  func(p []byte) (int, error)
	BulkOutFunc func(p []byte) (int, error)
	InData      []byte
	OutData     []byte

	Refs        int
	OpenHandles int

	// Journal records every handle-level side effect in order, e.g.
	// "claim 1" or "set_config 1".
	Journal []string

	Controls []ControlCall
}

func (d *Device) log(format string, args ...any) {
	d.Journal = append(d.Journal, fmt.Sprintf(format, args...))
}

// Ref implements usb.DeviceRef for a fake device.
type Ref struct {
	Device   *Device
	Released bool
}

func (r *Ref) Descriptor() *usb.DeviceDescriptor { return &r.Device.Desc }

func (r *Ref) Bus() int { return r.Device.BusNumber }

func (r *Ref) Address() int { return r.Device.Addr }

func (r *Ref) Open() (usb.Handle, error) {
	if r.Device.OpenErr != nil {
		return nil, r.Device.OpenErr
	}
	r.Device.OpenHandles++
	r.Device.log("open")
	return &Handle{
		Device:  r.Device,
		Claimed: make(map[int]bool),
	}, nil
}

func (r *Ref) Release() {
	if r.Released {
		return
	}
	r.Released = true
	r.Device.Refs--
}

// Handle implements usb.Handle for a fake device.
type Handle struct {
	Device         *Device
	Claimed        map[int]bool
	Closed         bool
	AutoDetach     bool
	ControlTimeout time.Duration
}

func (h *Handle) DetachKernelDriver(iface int) error {
	h.Device.log("detach %d", iface)
	return h.Device.DetachErr
}

func (h *Handle) SetAutoDetach(enable bool) error {
	h.Device.log("auto_detach %v", enable)
	if h.Device.AutoDetachErr != nil {
		return h.Device.AutoDetachErr
	}
	h.AutoDetach = enable
	return nil
}

func (h *Handle) SetConfiguration(cfg int) error {
	h.Device.log("set_config %d", cfg)
	return h.Device.ConfigErr
}

func (h *Handle) ClaimInterface(iface int) error {
	h.Device.log("claim %d", iface)
	if err := h.Device.ClaimErr[iface]; err != nil {
		return err
	}
	if h.Claimed[iface] {
		return usberr.Busy
	}
	h.Claimed[iface] = true
	return nil
}

func (h *Handle) ReleaseInterface(iface int) error {
	h.Device.log("release %d", iface)
	if err := h.Device.ReleaseErr[iface]; err != nil {
		return err
	}
	if !h.Claimed[iface] {
		return usberr.NotFound
	}
	delete(h.Claimed, iface)
	return nil
}

func (h *Handle) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	h.Device.log("control %02x %02x %04x %04x", rType, request, val, idx)
	if h.Device.ControlErr != nil {
		return 0, h.Device.ControlErr
	}
	h.Device.Controls = append(h.Device.Controls, ControlCall{
		RType:   rType,
		Request: request,
		Val:     val,
		Idx:     idx,
		Data:    append([]byte(nil), data...),
	})
	return len(data), nil
}

func (h *Handle) SetControlTimeout(d time.Duration) error {
	h.ControlTimeout = d
	return nil
}

func (h *Handle) BulkIn(endpoint byte, p []byte, timeout time.Duration) (int, error) {
	h.Device.log("bulk_in %02x %d", endpoint, len(p))
	if h.Device.BulkInFunc != nil {
		return h.Device.BulkInFunc(p)
	}
	n := copy(p, h.Device.InData)
	h.Device.InData = h.Device.InData[n:]
	return n, nil
}

func (h *Handle) BulkOut(endpoint byte, p []byte, timeout time.Duration) (int, error) {
	h.Device.log("bulk_out %02x %d", endpoint, len(p))
	if h.Device.BulkOutFunc != nil {
		return h.Device.BulkOutFunc(p)
	}
	h.Device.OutData = append(h.Device.OutData, p...)
	return len(p), nil
}

func (h *Handle) Manufacturer() (string, error) {
	if h.Device.StringErr != nil {
		return "", h.Device.StringErr
	}
	return h.Device.Maker, nil
}

func (h *Handle) Product() (string, error) {
	if h.Device.StringErr != nil {
		return "", h.Device.StringErr
	}
	return h.Device.Prod, nil
}

func (h *Handle) SerialNumber() (string, error) {
	if h.Device.StringErr != nil {
		return "", h.Device.StringErr
	}
	return h.Device.Serial, nil
}

func (h *Handle) Close() error {
	h.Device.log("close")
	if !h.Closed {
		h.Closed = true
		h.Device.OpenHandles--
		h.Claimed = make(map[int]bool)
	}
	return h.Device.CloseErr
}

// ACMDevice builds a fake device with the canonical CDC-ACM layout:
// configuration 1, a class-2 control interface 0 with an interrupt IN
// endpoint, and a class-10 data interface 1 with bulk endpoints 0x02 OUT
// and 0x81 IN.
func ACMDevice(bus, addr int, vendor, product uint16) *Device {
	return &Device{
		BusNumber: bus,
		Addr:      addr,
		Desc: usb.DeviceDescriptor{
			Vendor:  vendor,
			Product: product,
			Configs: []usb.ConfigDescriptor{
				{
					Number: 1,
					Interfaces: []usb.InterfaceDescriptor{
						{
							Number: 0,
							AltSettings: []usb.AltSetting{
								{
									Alternate: 0,
									Class:     0x02,
									Endpoints: []usb.EndpointDescriptor{
										{Address: 0x83, TransferType: usb.TransferTypeInterrupt},
									},
								},
							},
						},
						{
							Number: 1,
							AltSettings: []usb.AltSetting{
								{
									Alternate: 0,
									Class:     0x0a,
									Endpoints: []usb.EndpointDescriptor{
										{Address: 0x02, TransferType: usb.TransferTypeBulk},
										{Address: 0x81, TransferType: usb.TransferTypeBulk},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

// HIDDevice builds a fake device with no CDC data interface, for probing
// the not-found paths.
func HIDDevice(bus, addr int, vendor, product uint16) *Device {
	return &Device{
		BusNumber: bus,
		Addr:      addr,
		Desc: usb.DeviceDescriptor{
			Vendor:  vendor,
			Product: product,
			Configs: []usb.ConfigDescriptor{
				{
					Number: 1,
					Interfaces: []usb.InterfaceDescriptor{
						{
							Number: 0,
							AltSettings: []usb.AltSetting{
								{
									Alternate: 0,
									Class:     0x03,
									Endpoints: []usb.EndpointDescriptor{
										{Address: 0x81, TransferType: usb.TransferTypeInterrupt},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}
