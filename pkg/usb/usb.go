// Package usb abstracts the host-controller library behind narrow
// interfaces so session logic can be exercised against a fake bus. The
// production implementation in this package is backed by gousb/libusb.
package usb

import (
	"time"
)

// Transport provides enumeration-level access to a USB bus. Implementations
// own the underlying library context; Close releases it and invalidates
// every reference and handle obtained through it.
type Transport interface {
	// Devices returns a reference to every device currently on the bus.
	// Each reference is retained on behalf of the caller and must be
	// Released exactly once.
	Devices() ([]DeviceRef, error)

	// Close disposes of the transport. No other methods may be called on it
	// afterwards.
	Close() error
}

// DeviceRef is a retained reference to one enumerated device. It carries
// the descriptor snapshot and can open the device. Releasing the reference
// does not invalidate handles opened through it.
type DeviceRef interface {
	Descriptor() *DeviceDescriptor
	Bus() int
	Address() int

	// Open acquires an operating-system handle to the device.
	Open() (Handle, error)

	// Release drops the enumeration reference. The reference must not be
	// used afterwards.
	Release()
}

// Handle is an open device. All methods report failures with codes from
// pkg/usberr where the backend distinguishes them.
type Handle interface {
	// DetachKernelDriver unbinds a kernel driver from the given interface so
	// it can be claimed. The driver is not rebound on close.
	DetachKernelDriver(iface int) error

	// SetAutoDetach makes the backend detach kernel drivers automatically on
	// claim and rebind them on release.
	SetAutoDetach(enable bool) error

	SetConfiguration(cfg int) error
	ClaimInterface(iface int) error

	// ReleaseInterface gives up a claimed interface. Releasing an interface
	// that is not claimed reports usberr.NotFound.
	ReleaseInterface(iface int) error

	// Control performs a control transfer on endpoint zero and returns the
	// number of data bytes moved.
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)

	// SetControlTimeout bounds subsequent Control calls.
	SetControlTimeout(d time.Duration) error

	// BulkIn reads from the bulk IN endpoint with the given address.
	// A timeout with partial data returns the byte count together with a
	// usberr.Timeout error; the caller decides whether that is fatal.
	BulkIn(endpoint byte, p []byte, timeout time.Duration) (int, error)

	// BulkOut writes to the bulk OUT endpoint with the given address.
	BulkOut(endpoint byte, p []byte, timeout time.Duration) (int, error)

	Manufacturer() (string, error)
	Product() (string, error)
	SerialNumber() (string, error)

	// Close releases any interfaces still claimed and disposes of the
	// handle. No other methods may be called on it afterwards.
	Close() error
}

// DeviceList is a set of retained device references, typically the result
// of an enumeration scan.
type DeviceList []DeviceRef

// Free releases every reference and empties the list. Safe to call on an
// already freed list.
func (l *DeviceList) Free() {
	for _, ref := range *l {
		ref.Release()
	}
	*l = nil
}
