package usb

import "fmt"

// DirectionIn is the direction bit of an endpoint address. Set means the
// endpoint moves data device-to-host.
const DirectionIn byte = 0x80

// TransferType is the endpoint transfer kind from bmAttributes.
type TransferType uint8

const (
	TransferTypeControl     TransferType = 0
	TransferTypeIsochronous TransferType = 1
	TransferTypeBulk        TransferType = 2
	TransferTypeInterrupt   TransferType = 3
)

func (t TransferType) String() string {
	switch t {
	case TransferTypeControl:
		return "control"
	case TransferTypeIsochronous:
		return "isochronous"
	case TransferTypeBulk:
		return "bulk"
	case TransferTypeInterrupt:
		return "interrupt"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// DeviceDescriptor is a read-only snapshot of a device's descriptor tree,
// taken at enumeration time so the topology can be inspected without opening
// the device. Unlike the maps the underlying library hands out, all levels
// are ordered slices: configurations by configuration value, endpoints by
// address, interfaces and alternate settings in bus order.
type DeviceDescriptor struct {
	Vendor  uint16
	Product uint16
	Configs []ConfigDescriptor
}

// ConfigDescriptor describes one configuration. Number is the
// bConfigurationValue to pass to Handle.SetConfiguration, not an index.
type ConfigDescriptor struct {
	Number     int
	Interfaces []InterfaceDescriptor
}

// InterfaceDescriptor describes one interface and its alternate settings.
type InterfaceDescriptor struct {
	Number      int
	AltSettings []AltSetting
}

// AltSetting is one alternate setting of an interface.
type AltSetting struct {
	Alternate int
	Class     uint8
	Endpoints []EndpointDescriptor
}

// EndpointDescriptor describes one endpoint of an alternate setting.
type EndpointDescriptor struct {
	Address      byte
	TransferType TransferType
}

// In reports whether the endpoint moves data device-to-host.
func (e EndpointDescriptor) In() bool {
	return e.Address&DirectionIn != 0
}

func (e EndpointDescriptor) String() string {
	dir := "OUT"
	if e.In() {
		dir = "IN"
	}
	return fmt.Sprintf("0x%02x %s %s", e.Address, dir, e.TransferType)
}
