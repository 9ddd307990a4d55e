package cdcacm

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/usblink/cdcacm/pkg/usb"
	"github.com/usblink/cdcacm/pkg/usb/usbtest"
	"github.com/usblink/cdcacm/pkg/usberr"
)

func TestResolveLayoutACM(t *testing.T) {
	dev := usbtest.ACMDevice(1, 4, 0x5454, 0x0001)
	got, err := ResolveLayout(&dev.Desc)
	if err != nil {
		t.Fatalf("ResolveLayout: %v", err)
	}
	want := Layout{
		Config:           1,
		ControlInterface: 0,
		DataInterface:    1,
		In:               0x81,
		Out:              0x02,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveLayoutNoCDC(t *testing.T) {
	dev := usbtest.HIDDevice(1, 4, 0x5454, 0x0002)
	_, err := ResolveLayout(&dev.Desc)
	if usberr.CodeOf(err) != usberr.NotFound {
		t.Errorf("ResolveLayout on HID device = %v, want NOT_FOUND", err)
	}
}

func TestResolveLayoutNilDescriptor(t *testing.T) {
	_, err := ResolveLayout(nil)
	if usberr.CodeOf(err) != usberr.InvalidParam {
		t.Errorf("ResolveLayout(nil) = %v, want INVALID_PARAM", err)
	}
}

// A data interface on an odd number pairs downwards, one on an even number
// pairs upwards.
func TestResolveLayoutControlPairing(t *testing.T) {
	for _, te := range []struct {
		data    int
		control int
	}{
		{0, 1},
		{1, 0},
		{2, 3},
		{3, 2},
	} {
		desc := usb.DeviceDescriptor{
			Configs: []usb.ConfigDescriptor{{
				Number: 1,
				Interfaces: []usb.InterfaceDescriptor{{
					Number: te.data,
					AltSettings: []usb.AltSetting{{
						Class: 0x0a,
						Endpoints: []usb.EndpointDescriptor{
							{Address: 0x81, TransferType: usb.TransferTypeBulk},
						},
					}},
				}},
			}},
		}
		l, err := ResolveLayout(&desc)
		if err != nil {
			t.Fatalf("data interface %d: %v", te.data, err)
		}
		if l.ControlInterface != te.control {
			t.Errorf("data interface %d: control = %d, want %d", te.data, l.ControlInterface, te.control)
		}
	}
}

// One endpoint only: both directions land on the same address.
func TestResolveLayoutSingleEndpoint(t *testing.T) {
	desc := usb.DeviceDescriptor{
		Configs: []usb.ConfigDescriptor{{
			Number: 1,
			Interfaces: []usb.InterfaceDescriptor{{
				Number: 1,
				AltSettings: []usb.AltSetting{{
					Class: 0x0a,
					Endpoints: []usb.EndpointDescriptor{
						{Address: 0x02, TransferType: usb.TransferTypeBulk},
					},
				}},
			}},
		}},
	}
	l, err := ResolveLayout(&desc)
	if err != nil {
		t.Fatalf("ResolveLayout: %v", err)
	}
	if l.In != 0x02 || l.Out != 0x02 {
		t.Errorf("In/Out = %#02x/%#02x, want both 0x02", l.In, l.Out)
	}
}

// The first matching alternate setting wins, in listed order; configuration
// numbering does not reorder the scan. Alt settings without endpoints are
// skipped.
func TestResolveLayoutFirstMatchWins(t *testing.T) {
	desc := usb.DeviceDescriptor{
		Configs: []usb.ConfigDescriptor{
			{
				Number: 5,
				Interfaces: []usb.InterfaceDescriptor{{
					Number: 3,
					AltSettings: []usb.AltSetting{
						{Alternate: 0, Class: 0x0a}, // no endpoints
						{
							Alternate: 1,
							Class:     0x0a,
							Endpoints: []usb.EndpointDescriptor{
								{Address: 0x04, TransferType: usb.TransferTypeBulk},
								{Address: 0x85, TransferType: usb.TransferTypeBulk},
							},
						},
					},
				}},
			},
			{
				Number: 1,
				Interfaces: []usb.InterfaceDescriptor{{
					Number: 1,
					AltSettings: []usb.AltSetting{{
						Class: 0x0a,
						Endpoints: []usb.EndpointDescriptor{
							{Address: 0x81, TransferType: usb.TransferTypeBulk},
						},
					}},
				}},
			},
		},
	}
	l, err := ResolveLayout(&desc)
	if err != nil {
		t.Fatalf("ResolveLayout: %v", err)
	}
	want := Layout{Config: 5, ControlInterface: 2, DataInterface: 3, In: 0x85, Out: 0x04}
	if diff := cmp.Diff(want, l); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}
}

// Endpoints past the second are ignored even if they would change the pair.
func TestResolveLayoutExtraEndpointsIgnored(t *testing.T) {
	desc := usb.DeviceDescriptor{
		Configs: []usb.ConfigDescriptor{{
			Number: 1,
			Interfaces: []usb.InterfaceDescriptor{{
				Number: 1,
				AltSettings: []usb.AltSetting{{
					Class: 0x0a,
					Endpoints: []usb.EndpointDescriptor{
						{Address: 0x01, TransferType: usb.TransferTypeBulk},
						{Address: 0x82, TransferType: usb.TransferTypeBulk},
						{Address: 0x83, TransferType: usb.TransferTypeBulk},
					},
				}},
			}},
		}},
	}
	l, err := ResolveLayout(&desc)
	if err != nil {
		t.Fatalf("ResolveLayout: %v", err)
	}
	if l.In != 0x82 || l.Out != 0x01 {
		t.Errorf("In/Out = %#02x/%#02x, want 0x82/0x01", l.In, l.Out)
	}
}

func TestLayoutInterfacesAscending(t *testing.T) {
	l := Layout{ControlInterface: 3, DataInterface: 2}
	if got := l.interfaces(); got != [2]int{2, 3} {
		t.Errorf("interfaces() = %v, want [2 3]", got)
	}
	l = Layout{ControlInterface: 0, DataInterface: 1}
	if got := l.interfaces(); got != [2]int{0, 1} {
		t.Errorf("interfaces() = %v, want [0 1]", got)
	}
}
