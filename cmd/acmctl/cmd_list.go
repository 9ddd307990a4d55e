package main

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"

	"github.com/usblink/cdcacm/pkg/cdcacm"
)

var listPorts bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List CDC-ACM devices",
	Long: `Scans the USB bus and prints every device carrying a CDC data interface,
with its descriptor strings and resolved endpoint layout. With --vid/--pid
only exact ID matches are listed, whether or not they are CDC-ACM. With
--ports the operating system's view of serial ports is printed instead.`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if listPorts {
			return listSerialPorts()
		}

		var vid, pid uint16
		if flagVID != "" || flagPID != "" {
			var err error
			if vid, pid, err = idsFromFlags(); err != nil {
				return err
			}
		}

		s, err := cdcacm.New()
		if err != nil {
			return err
		}
		defer s.Destroy()

		list, err := s.FindAll(vid, pid)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		defer list.Free()

		fmt.Printf("Found %d device(s)\n", len(list))
		for _, ref := range list {
			d := ref.Descriptor()
			fmt.Printf("Bus %03d Device %03d: ID %04x:%04x", ref.Bus(), ref.Address(), d.Vendor, d.Product)

			maker, desc, serial, err := s.DeviceStrings(ref)
			if err != nil {
				glog.Warningf("Could not read strings of %04x:%04x: %v", d.Vendor, d.Product, err)
			} else {
				if maker != "" || desc != "" {
					fmt.Printf("  %s %s", maker, desc)
				}
				if serial != "" {
					fmt.Printf(" (serial %s)", serial)
				}
			}
			fmt.Println()

			l, err := cdcacm.ResolveLayout(d)
			if err != nil {
				fmt.Printf("  no CDC data interface\n")
				continue
			}
			fmt.Printf("  config %d, interfaces %d/%d, IN %s, OUT %s\n",
				l.Config, l.ControlInterface, l.DataInterface,
				endpointName(l.In), endpointName(l.Out))
		}
		return nil
	},
}

func endpointName(addr byte) string {
	return fmt.Sprintf("0x%02x", addr)
}

func listSerialPorts() error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("could not enumerate serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}
	for _, port := range ports {
		fmt.Println(port.Name)
		if port.IsUSB {
			fmt.Printf("  USB ID %s:%s", port.VID, port.PID)
			if port.SerialNumber != "" {
				fmt.Printf(" (serial %s)", port.SerialNumber)
			}
			fmt.Println()
		}
	}
	return nil
}
