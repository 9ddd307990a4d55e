package cdcacm

import (
	"github.com/usblink/cdcacm/pkg/usb"
	"github.com/usblink/cdcacm/pkg/usberr"
)

// classCDCData is the interface class of the CDC data interface (USB-IF
// class code 10). The paired control interface is class 2, but pairing is
// derived by adjacency, not by class; see ResolveLayout.
const classCDCData = 0x0a

// Layout is the addressing a session needs to drive one CDC-ACM function:
// which configuration to select, the two interfaces to claim, and the bulk
// endpoint pair. Endpoint names take the host's view: In is read
// (device-to-host), Out is write.
type Layout struct {
	Config           int
	ControlInterface int
	DataInterface    int
	In               byte
	Out              byte
}

// interfaces returns the control and data interface numbers in ascending
// order, the order they are claimed in and released in.
func (l Layout) interfaces() [2]int {
	if l.ControlInterface < l.DataInterface {
		return [2]int{l.ControlInterface, l.DataInterface}
	}
	return [2]int{l.DataInterface, l.ControlInterface}
}

// ResolveLayout scans a descriptor snapshot for the first alternate setting
// with class 10 and at least one endpoint, in configuration order. That
// interface is the data interface; the control interface is assumed to be
// its adjacent partner (data XOR 1), which holds for compliant ACM layouts
// with the customary consecutive numbering but is not checked against the
// union functional descriptor.
//
// Both endpoint addresses start at the first listed endpoint; a second
// endpoint, if present, replaces In or Out according to its direction bit.
// Endpoints past the second are ignored. Returns usberr.NotFound when no
// configuration carries a CDC data interface.
func ResolveLayout(desc *usb.DeviceDescriptor) (Layout, error) {
	if desc == nil {
		return Layout{}, usberr.InvalidParam
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class != classCDCData || len(alt.Endpoints) == 0 {
					continue
				}
				l := Layout{
					Config:           cfg.Number,
					ControlInterface: intf.Number ^ 1,
					DataInterface:    intf.Number,
					In:               alt.Endpoints[0].Address,
					Out:              alt.Endpoints[0].Address,
				}
				if len(alt.Endpoints) > 1 {
					ep := alt.Endpoints[1]
					if ep.In() {
						l.In = ep.Address
					} else {
						l.Out = ep.Address
					}
				}
				return l, nil
			}
		}
	}
	return Layout{}, usberr.NotFound
}
