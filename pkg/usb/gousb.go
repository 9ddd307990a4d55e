package usb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/gousb"
	"github.com/hashicorp/go-multierror"

	"github.com/usblink/cdcacm/pkg/usberr"
)

// LibusbTransport is the production Transport, backed by gousb/libusb.
type LibusbTransport struct {
	ctx *gousb.Context
}

// NewTransport initializes a libusb context and wraps it in a Transport.
func NewTransport() (*LibusbTransport, error) {
	ctx, err := newContext()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize USB: %w", err)
	}
	return &LibusbTransport{ctx: ctx}, nil
}

// gousb.NewContext panics when libusb is missing or broken, so run it on a
// goroutine that converts the panic into an error.
func newContext() (*gousb.Context, error) {
	resC := make(chan *gousb.Context)
	errC := make(chan error)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errC <- fmt.Errorf("%v", r)
			}
		}()

		resC <- gousb.NewContext()
	}()

	select {
	case err := <-errC:
		return nil, err
	case res := <-resC:
		return res, nil
	}
}

func (t *LibusbTransport) Devices() ([]DeviceRef, error) {
	var refs []DeviceRef
	_, err := t.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		refs = append(refs, &libusbRef{
			t:    t,
			bus:  desc.Bus,
			addr: desc.Address,
			desc: convertDescriptor(desc),
		})
		return false
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return refs, nil
}

func (t *LibusbTransport) Close() error {
	return t.ctx.Close()
}

// libusbRef is a descriptor snapshot plus the bus position needed to find
// the device again at open time. It holds no OS resources, so Release is
// trivial.
type libusbRef struct {
	t    *LibusbTransport
	bus  int
	addr int
	desc *DeviceDescriptor
}

func (r *libusbRef) Descriptor() *DeviceDescriptor { return r.desc }

func (r *libusbRef) Bus() int { return r.bus }

func (r *libusbRef) Address() int { return r.addr }

func (r *libusbRef) Release() {}

func (r *libusbRef) Open() (Handle, error) {
	devs, err := r.t.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == r.bus && desc.Address == r.addr
	})
	// Bus/address pairs are unique, but close strays should libusb ever
	// hand us more than one match.
	for i := 1; i < len(devs); i++ {
		devs[i].Close()
	}
	if len(devs) == 0 {
		if err != nil {
			return nil, mapErr(err)
		}
		return nil, usberr.NoDevice
	}
	if err != nil {
		slog.Debug("usb: open scan reported errors", "bus", r.bus, "addr", r.addr, "err", err)
	}
	slog.Debug("usb: opened device", "bus", r.bus, "addr", r.addr)
	return &libusbHandle{
		dev:     devs[0],
		claimed: make(map[int]*gousb.Interface),
		ins:     make(map[byte]*gousb.InEndpoint),
		outs:    make(map[byte]*gousb.OutEndpoint),
	}, nil
}

type libusbHandle struct {
	dev     *gousb.Device
	cfg     *gousb.Config
	claimed map[int]*gousb.Interface
	ins     map[byte]*gousb.InEndpoint
	outs    map[byte]*gousb.OutEndpoint
}

// DetachKernelDriver unbinds the kernel driver via libusb's auto-detach
// machinery; gousb exposes no one-shot detach, so the driver will also be
// rebound when the interface is released. The iface argument is accepted
// for interface parity but auto-detach applies to the whole handle.
func (h *libusbHandle) DetachKernelDriver(iface int) error {
	return mapErr(h.dev.SetAutoDetach(true))
}

func (h *libusbHandle) SetAutoDetach(enable bool) error {
	return mapErr(h.dev.SetAutoDetach(enable))
}

func (h *libusbHandle) SetConfiguration(cfg int) error {
	if h.cfg != nil {
		if h.cfg.Desc.Number == cfg {
			return nil
		}
		if err := h.cfg.Close(); err != nil {
			return mapErr(err)
		}
		h.cfg = nil
	}
	c, err := h.dev.Config(cfg)
	if err != nil {
		return mapErr(err)
	}
	h.cfg = c
	return nil
}

func (h *libusbHandle) ClaimInterface(iface int) error {
	if h.cfg == nil {
		return usberr.NotFound
	}
	if _, ok := h.claimed[iface]; ok {
		return usberr.Busy
	}
	intf, err := h.cfg.Interface(iface, 0)
	if err != nil {
		slog.Debug("usb: claim failed", "iface", iface, "err", err)
		return mapErr(err)
	}
	h.claimed[iface] = intf
	return nil
}

func (h *libusbHandle) ReleaseInterface(iface int) error {
	intf, ok := h.claimed[iface]
	if !ok {
		return usberr.NotFound
	}
	intf.Close()
	delete(h.claimed, iface)
	// Endpoint objects belong to the released interface.
	h.ins = make(map[byte]*gousb.InEndpoint)
	h.outs = make(map[byte]*gousb.OutEndpoint)
	return nil
}

func (h *libusbHandle) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	n, err := h.dev.Control(rType, request, val, idx, data)
	return n, mapErr(err)
}

func (h *libusbHandle) SetControlTimeout(d time.Duration) error {
	h.dev.ControlTimeout = d
	return nil
}

func (h *libusbHandle) BulkIn(endpoint byte, p []byte, timeout time.Duration) (int, error) {
	ep, err := h.inEndpoint(endpoint)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := ep.ReadContext(ctx, p)
	return n, mapErr(err)
}

func (h *libusbHandle) BulkOut(endpoint byte, p []byte, timeout time.Duration) (int, error) {
	ep, err := h.outEndpoint(endpoint)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := ep.WriteContext(ctx, p)
	return n, mapErr(err)
}

func (h *libusbHandle) inEndpoint(addr byte) (*gousb.InEndpoint, error) {
	if ep, ok := h.ins[addr]; ok {
		return ep, nil
	}
	num := int(addr &^ DirectionIn)
	for _, intf := range h.claimed {
		if ep, err := intf.InEndpoint(num); err == nil {
			h.ins[addr] = ep
			return ep, nil
		}
	}
	return nil, usberr.NotFound
}

func (h *libusbHandle) outEndpoint(addr byte) (*gousb.OutEndpoint, error) {
	if ep, ok := h.outs[addr]; ok {
		return ep, nil
	}
	num := int(addr &^ DirectionIn)
	for _, intf := range h.claimed {
		if ep, err := intf.OutEndpoint(num); err == nil {
			h.outs[addr] = ep
			return ep, nil
		}
	}
	return nil, usberr.NotFound
}

func (h *libusbHandle) Manufacturer() (string, error) {
	s, err := h.dev.Manufacturer()
	return s, mapErr(err)
}

func (h *libusbHandle) Product() (string, error) {
	s, err := h.dev.Product()
	return s, mapErr(err)
}

func (h *libusbHandle) SerialNumber() (string, error) {
	s, err := h.dev.SerialNumber()
	return s, mapErr(err)
}

func (h *libusbHandle) Close() error {
	var errs error
	for iface, intf := range h.claimed {
		intf.Close()
		delete(h.claimed, iface)
	}
	if h.cfg != nil {
		if err := h.cfg.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
		h.cfg = nil
	}
	if err := h.dev.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs
}

// convertDescriptor flattens gousb's map-based descriptor tree into the
// ordered snapshot model. Configurations sort by configuration value and
// endpoints by address; gousb does not preserve bus order for either.
func convertDescriptor(d *gousb.DeviceDesc) *DeviceDescriptor {
	out := &DeviceDescriptor{
		Vendor:  uint16(d.Vendor),
		Product: uint16(d.Product),
	}
	cfgNums := make([]int, 0, len(d.Configs))
	for num := range d.Configs {
		cfgNums = append(cfgNums, num)
	}
	sort.Ints(cfgNums)
	for _, num := range cfgNums {
		cfg := d.Configs[num]
		oc := ConfigDescriptor{Number: cfg.Number}
		for _, intf := range cfg.Interfaces {
			oi := InterfaceDescriptor{Number: intf.Number}
			for _, alt := range intf.AltSettings {
				oa := AltSetting{
					Alternate: alt.Alternate,
					Class:     uint8(alt.Class),
				}
				addrs := make([]int, 0, len(alt.Endpoints))
				for addr := range alt.Endpoints {
					addrs = append(addrs, int(addr))
				}
				sort.Ints(addrs)
				for _, addr := range addrs {
					ep := alt.Endpoints[gousb.EndpointAddress(addr)]
					oa.Endpoints = append(oa.Endpoints, EndpointDescriptor{
						Address:      byte(ep.Address),
						TransferType: TransferType(ep.TransferType),
					})
				}
				oi.AltSettings = append(oi.AltSettings, oa)
			}
			oc.Interfaces = append(oc.Interfaces, oi)
		}
		out.Configs = append(out.Configs, oc)
	}
	return out
}

var gousbCodes = map[gousb.Error]usberr.Code{
	gousb.ErrorIO:           usberr.IO,
	gousb.ErrorInvalidParam: usberr.InvalidParam,
	gousb.ErrorAccess:       usberr.Access,
	gousb.ErrorNoDevice:     usberr.NoDevice,
	gousb.ErrorNotFound:     usberr.NotFound,
	gousb.ErrorBusy:         usberr.Busy,
	gousb.ErrorTimeout:      usberr.Timeout,
	gousb.ErrorOverflow:     usberr.Overflow,
	gousb.ErrorPipe:         usberr.Pipe,
	gousb.ErrorInterrupted:  usberr.Interrupted,
	gousb.ErrorNoMem:        usberr.NoMem,
	gousb.ErrorNotSupported: usberr.NotSupported,
	gousb.ErrorOther:        usberr.Other,
}

var transferCodes = map[gousb.TransferStatus]usberr.Code{
	gousb.TransferError:     usberr.IO,
	gousb.TransferTimedOut:  usberr.Timeout,
	gousb.TransferCancelled: usberr.Interrupted,
	gousb.TransferStall:     usberr.Pipe,
	gousb.TransferNoDevice:  usberr.NoDevice,
	gousb.TransferOverflow:  usberr.Overflow,
}

// mapErr converts gousb failures to taxonomy codes. Errors the taxonomy has
// no slot for pass through unchanged and classify as Other.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var ge gousb.Error
	if errors.As(err, &ge) {
		if c, ok := gousbCodes[ge]; ok {
			return c
		}
		return usberr.Other
	}
	var ts gousb.TransferStatus
	if errors.As(err, &ts) {
		if c, ok := transferCodes[ts]; ok {
			return c
		}
		return usberr.Other
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return usberr.Timeout
	}
	return err
}
