package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usblink/cdcacm/pkg/cdcacm"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Open a device and report its layout",
	Long: `Opens the selected device, applies the line configuration, prints the
resolved configuration, interfaces and endpoints, and closes it again. Use
this to check that a device is reachable before streaming data at it.`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		info := cdcacm.Version()
		fmt.Printf("acmctl (cdcacm %s, snapshot %s)\n", info.Version, info.Snapshot)

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Destroy()

		l := s.Layout()
		fmt.Printf("configuration:     %d\n", l.Config)
		fmt.Printf("control interface: %d\n", l.ControlInterface)
		fmt.Printf("data interface:    %d\n", l.DataInterface)
		fmt.Printf("IN endpoint:       %s\n", endpointName(l.In))
		fmt.Printf("OUT endpoint:      %s\n", endpointName(l.Out))

		if err := s.Close(); err != nil {
			return fmt.Errorf("close failed: %w", err)
		}
		fmt.Println("OK")
		return nil
	},
}
